package entity

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// foundryWorld is the top-level structure of a Foundry VTT world or
// compendium export. Unknown fields are silently ignored.
type foundryWorld struct {
	Actors []foundryActor `json:"actors"`
}

type foundryActor struct {
	ID     string        `json:"_id"`
	Name   string        `json:"name"`
	Type   string        `json:"type"`
	System foundrySystem `json:"system"`
	Items  []foundryItem `json:"items"`
}

type foundrySystem struct {
	Type        string `json:"type"`
	Tier        int    `json:"tier"`
	Difficulty  int    `json:"difficulty"`
	Description string `json:"description"`
	Motives     string `json:"motivesAndTactics"`
	Impulses    string `json:"impulses"`

	DamageThresholds struct {
		Major  int `json:"major"`
		Severe int `json:"severe"`
	} `json:"damageThresholds"`

	Resources struct {
		HitPoints foundryTrack `json:"hitPoints"`
		Stress    foundryTrack `json:"stress"`
	} `json:"resources"`
}

type foundryTrack struct {
	Value int `json:"value"`
	Max   int `json:"max"`
}

type foundryItem struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	System struct {
		Description string `json:"description"`
	} `json:"system"`
}

// ImportFoundryVTT reads a Foundry VTT export (JSON) and converts its
// "adversary" and "environment" actors into a [Library]. Other actor types
// are skipped.
//
// The conversion is best-effort: unknown adversary roles become
// [TypeOther] and rich-text fields are stripped of HTML.
func ImportFoundryVTT(r io.Reader, source string) (*Library, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("entity: foundry vtt: read input: %w", err)
	}

	var world foundryWorld
	if err := json.Unmarshal(data, &world); err != nil {
		return nil, fmt.Errorf("entity: foundry vtt: parse json: %w", err)
	}

	lib := &Library{Name: "Foundry VTT import", Source: source}
	for _, a := range world.Actors {
		if strings.TrimSpace(a.Name) == "" {
			continue
		}
		switch a.Type {
		case "adversary":
			lib.Adversaries = append(lib.Adversaries, foundryAdversary(a))
		case "environment":
			lib.Environments = append(lib.Environments, foundryEnvironment(a))
		}
	}

	if err := lib.Validate(); err != nil {
		return nil, fmt.Errorf("entity: foundry vtt: %w", err)
	}
	lib.normalise()
	return lib, nil
}

func foundryAdversary(a foundryActor) Adversary {
	adv := Adversary{
		Name:        a.Name,
		Type:        foundryAdversaryType(a.System.Type),
		Tier:        a.System.Tier,
		Difficulty:  a.System.Difficulty,
		Thresholds:  Thresholds{Major: a.System.DamageThresholds.Major, Severe: a.System.DamageThresholds.Severe},
		HP:          a.System.Resources.HitPoints.Value,
		HPMax:       a.System.Resources.HitPoints.Max,
		Stress:      a.System.Resources.Stress.Value,
		StressMax:   a.System.Resources.Stress.Max,
		Motives:     stripHTMLTags(a.System.Motives),
		Description: stripHTMLTags(a.System.Description),
	}
	adv.Features = foundryFeatures(a.Items)
	return adv
}

func foundryEnvironment(a foundryActor) Environment {
	env := Environment{
		Name:        a.Name,
		Type:        a.System.Type,
		Tier:        a.System.Tier,
		Difficulty:  a.System.Difficulty,
		Description: stripHTMLTags(a.System.Description),
	}
	if impulses := stripHTMLTags(a.System.Impulses); impulses != "" {
		for _, part := range strings.Split(impulses, ",") {
			if p := strings.TrimSpace(part); p != "" {
				env.Impulses = append(env.Impulses, p)
			}
		}
	}
	env.Features = foundryFeatures(a.Items)
	return env
}

func foundryFeatures(items []foundryItem) []Feature {
	var out []Feature
	for _, it := range items {
		if it.Type != "feature" || strings.TrimSpace(it.Name) == "" {
			continue
		}
		out = append(out, Feature{
			Name:        it.Name,
			Description: stripHTMLTags(it.System.Description),
		})
	}
	return out
}

// foundryAdversaryType maps the lower-case role names used by Foundry onto
// [AdversaryType].
func foundryAdversaryType(s string) AdversaryType {
	s = strings.TrimSpace(s)
	if s == "" {
		return TypeOther
	}
	t := AdversaryType(strings.ToUpper(s[:1]) + strings.ToLower(s[1:]))
	if !t.IsValid() {
		return TypeOther
	}
	return t
}

// stripHTMLTags removes HTML tags from s using a simple state machine.
// It is not a full HTML parser, but it handles the rich-text fields Foundry
// exports.
func stripHTMLTags(s string) string {
	if !strings.ContainsRune(s, '<') {
		return strings.TrimSpace(s)
	}
	var b strings.Builder
	b.Grow(len(s))
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
