// Package naming produces collision-free display names for entities that
// share a base name, e.g. "Goblin (1)", "Goblin (2)".
//
// A trailing " (N)" is always read as a duplicate marker, even when it was
// typed by the user as part of the name.
package naming

import (
	"regexp"
	"slices"
	"strconv"
)

var suffixPattern = regexp.MustCompile(`^(.*) \((\d+)\)$`)

// BaseName returns name without a trailing " (N)" marker. A name without a
// marker is its own base.
func BaseName(name string) string {
	if m := suffixPattern.FindStringSubmatch(name); m != nil {
		return m[1]
	}
	return name
}

// Suffix returns the numeric duplicate marker of name, or 0 when there is
// none.
func Suffix(name string) int {
	m := suffixPattern.FindStringSubmatch(name)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[2])
	if err != nil {
		return 0
	}
	return n
}

// WithSuffix formats base with a duplicate marker.
func WithSuffix(base string, n int) string {
	return base + " (" + strconv.Itoa(n) + ")"
}

// Rename asks the caller to change the display name of an existing entity.
type Rename struct {
	// Index is the position of the entity in the existing slice.
	Index int
	// Name is the entity's new display name.
	Name string
}

// Result is the outcome of [Unique].
type Result struct {
	// Name is the display name for the new entity.
	Name string
	// Rename, when non-nil, must be applied to the existing sibling in the
	// same mutation that adds the new entity.
	Rename *Rename
}

// Unique picks a display name for a new entity called desired, given the
// display names of the entities already in the collection.
//
// Rules:
//   - No existing entity shares the base name: the base is used unchanged.
//   - Exactly one shares it and carries no marker: that entity becomes
//     "<base> (1)" and the new one "<base> (2)".
//   - Otherwise the new entity gets the smallest positive marker not in use.
func Unique(desired string, existing []string) Result {
	base := BaseName(desired)

	var siblings []int
	for i, name := range existing {
		if BaseName(name) == base {
			siblings = append(siblings, i)
		}
	}

	switch {
	case len(siblings) == 0:
		return Result{Name: base}
	case len(siblings) == 1 && existing[siblings[0]] == base:
		return Result{
			Name:   WithSuffix(base, 2),
			Rename: &Rename{Index: siblings[0], Name: WithSuffix(base, 1)},
		}
	}

	used := make([]int, 0, len(siblings))
	for _, i := range siblings {
		used = append(used, Suffix(existing[i]))
	}
	n := 1
	for slices.Contains(used, n) {
		n++
	}
	return Result{Name: WithSuffix(base, n)}
}
