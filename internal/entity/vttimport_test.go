package entity_test

import (
	"strings"
	"testing"

	"github.com/MrWong99/fearkeeper/internal/entity"
)

// ─────────────────────────────────────────────────────────────────────────────
// Foundry VTT test fixtures
// ─────────────────────────────────────────────────────────────────────────────

const foundryWorldJSON = `{
  "actors": [
    {
      "_id": "actor-001",
      "name": "Jagged Knife Lackey",
      "type": "adversary",
      "system": {
        "type": "minion",
        "tier": 1,
        "difficulty": 9,
        "damageThresholds": {"major": 0, "severe": 0},
        "resources": {"hitPoints": {"value": 0, "max": 1}, "stress": {"value": 0, "max": 1}},
        "description": "<p>A thug with a rusty knife.</p>"
      },
      "items": [
        {"name": "Minion (3)", "type": "feature", "system": {"description": "<p>Defeated when damaged.</p>"}},
        {"name": "Rusty Knife", "type": "weapon"}
      ]
    },
    {
      "_id": "actor-002",
      "name": "Cave Ogre",
      "type": "adversary",
      "system": {
        "type": "brutish",
        "resources": {"hitPoints": {"value": 2, "max": 8}, "stress": {"value": 0, "max": 3}}
      }
    },
    {
      "_id": "actor-003",
      "name": "Abandoned Grove",
      "type": "environment",
      "system": {"type": "exploration", "tier": 1, "impulses": "<p>Draw in the curious, echo the past</p>"}
    },
    {
      "_id": "actor-004",
      "name": "Hero",
      "type": "character"
    }
  ]
}`

func TestImportFoundryVTT(t *testing.T) {
	t.Parallel()

	lib, err := entity.ImportFoundryVTT(strings.NewReader(foundryWorldJSON), "Foundry")
	if err != nil {
		t.Fatalf("ImportFoundryVTT: unexpected error: %v", err)
	}

	if len(lib.Adversaries) != 2 {
		t.Fatalf("adversaries: expected 2, got %d", len(lib.Adversaries))
	}
	if len(lib.Environments) != 1 {
		t.Fatalf("environments: expected 1, got %d", len(lib.Environments))
	}

	lackey := lib.Adversaries[0]
	if lackey.Type != entity.TypeMinion {
		t.Errorf("lackey type = %q, want Minion", lackey.Type)
	}
	if lackey.MinionThreshold() != 3 {
		t.Errorf("lackey threshold = %d, want 3", lackey.MinionThreshold())
	}
	if len(lackey.Features) != 1 {
		t.Errorf("lackey features = %+v, want only the feature item", lackey.Features)
	}
	if lackey.Description != "A thug with a rusty knife." {
		t.Errorf("description not stripped: %q", lackey.Description)
	}
	if !lackey.IsCustom || lackey.Source != "Foundry" {
		t.Errorf("lackey IsCustom=%v Source=%q", lackey.IsCustom, lackey.Source)
	}

	ogre := lib.Adversaries[1]
	if ogre.Type != entity.TypeOther {
		t.Errorf("unknown role should map to Other, got %q", ogre.Type)
	}
	if ogre.HP != 2 || ogre.HPMax != 8 {
		t.Errorf("ogre hp = %d/%d", ogre.HP, ogre.HPMax)
	}

	grove := lib.Environments[0]
	if len(grove.Impulses) != 2 || grove.Impulses[1] != "echo the past" {
		t.Errorf("impulses = %q", grove.Impulses)
	}
}

func TestImportFoundryVTT_InvalidJSON(t *testing.T) {
	t.Parallel()

	if _, err := entity.ImportFoundryVTT(strings.NewReader("{not json"), ""); err == nil {
		t.Fatal("ImportFoundryVTT: expected error for invalid JSON, got nil")
	}
}

func TestImportFoundryVTT_Empty(t *testing.T) {
	t.Parallel()

	lib, err := entity.ImportFoundryVTT(strings.NewReader(`{"actors": []}`), "")
	if err != nil {
		t.Fatalf("ImportFoundryVTT: %v", err)
	}
	if len(lib.Adversaries)+len(lib.Environments) != 0 {
		t.Fatalf("expected empty library, got %+v", lib)
	}
}
