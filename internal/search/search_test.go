package search_test

import (
	"testing"

	"github.com/MrWong99/fearkeeper/internal/search"
)

var bestiary = []string{"Jagged Knife Bandit", "Dire Wolf", "Skeleton Archer", "Cave Ogre", ""}

func TestRank_Substring(t *testing.T) {
	t.Parallel()

	got := search.New().Rank("WOLF", bestiary)
	if len(got) == 0 || got[0].Name != "Dire Wolf" {
		t.Fatalf("Rank(WOLF) = %+v", got)
	}
	if got[0].Score != 1 || got[0].Index != 1 {
		t.Errorf("match = %+v, want score 1 at index 1", got[0])
	}
}

func TestRank_Typo(t *testing.T) {
	t.Parallel()

	got := search.New().Rank("skeleton archr", bestiary)
	if len(got) == 0 || got[0].Name != "Skeleton Archer" {
		t.Fatalf("Rank(skeleton archr) = %+v", got)
	}
	if got[0].Score < 0.85 {
		t.Errorf("score = %f, want >= 0.85", got[0].Score)
	}
}

func TestRank_NoMatch(t *testing.T) {
	t.Parallel()

	if got := search.New().Rank("zzz", bestiary); len(got) != 0 {
		t.Fatalf("Rank(zzz) = %+v, want none", got)
	}
}

func TestRank_EmptyQueryReturnsAll(t *testing.T) {
	t.Parallel()

	got := search.New().Rank("  ", bestiary)
	if len(got) != len(bestiary) {
		t.Fatalf("len = %d, want %d", len(got), len(bestiary))
	}
	for i, m := range got {
		if m.Index != i {
			t.Errorf("result %d has index %d", i, m.Index)
		}
	}
}

func TestRank_SortedByScore(t *testing.T) {
	t.Parallel()

	got := search.New(search.WithFuzzyThreshold(0), search.WithPhoneticThreshold(0)).Rank("ogre", bestiary)
	if len(got) < 2 {
		t.Fatalf("expected several matches with zero thresholds, got %+v", got)
	}
	if got[0].Name != "Cave Ogre" {
		t.Errorf("best match = %q, want Cave Ogre", got[0].Name)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Score > got[i-1].Score {
			t.Fatalf("results not sorted: %+v", got)
		}
	}
}
