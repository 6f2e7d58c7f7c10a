package entity

import (
	"cmp"
	"slices"

	"github.com/MrWong99/fearkeeper/internal/naming"
)

// SortAdversaries returns a new slice ordered by type priority, then base
// name, then numeric duplicate marker. The input is not modified and the sort
// is stable, so equal entries keep their relative order.
func SortAdversaries(in []Adversary) []Adversary {
	out := make([]Adversary, len(in))
	for i, a := range in {
		out[i] = a.Clone()
	}
	slices.SortStableFunc(out, CompareAdversaries)
	return out
}

// CompareAdversaries is the comparator behind [SortAdversaries].
func CompareAdversaries(a, b Adversary) int {
	return cmp.Or(
		cmp.Compare(a.Type.Priority(), b.Type.Priority()),
		cmp.Compare(naming.BaseName(a.Name), naming.BaseName(b.Name)),
		cmp.Compare(naming.Suffix(a.Name), naming.Suffix(b.Name)),
	)
}
