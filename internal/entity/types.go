// Package entity defines the tabletop entities tracked by the dashboard
// (adversaries, environments, countdowns, encounters, table settings) and the
// ordered [Collection] every entity store is built on.
//
// Content libraries can be loaded from native YAML files ([LoadLibraryFile])
// or Foundry VTT world exports ([ImportFoundryVTT]).
package entity

import (
	"regexp"
	"slices"
	"strconv"
	"time"

	"github.com/MrWong99/fearkeeper/internal/naming"
)

// AdversaryType classifies an adversary's combat role.
type AdversaryType string

const (
	TypeLeader   AdversaryType = "Leader"
	TypeBruiser  AdversaryType = "Bruiser"
	TypeHorde    AdversaryType = "Horde"
	TypeRanged   AdversaryType = "Ranged"
	TypeStandard AdversaryType = "Standard"
	TypeOther    AdversaryType = "Other"
	TypeMinion   AdversaryType = "Minion"

	// Roles that exist in published stat blocks but have no dedicated sort
	// slot; they order together with [TypeOther].
	TypeSkulk   AdversaryType = "Skulk"
	TypeSolo    AdversaryType = "Solo"
	TypeSupport AdversaryType = "Support"
	TypeSocial  AdversaryType = "Social"
)

var typePriority = map[AdversaryType]int{
	TypeLeader:   1,
	TypeBruiser:  2,
	TypeHorde:    3,
	TypeRanged:   4,
	TypeStandard: 5,
	TypeOther:    6,
	TypeMinion:   7,
}

// Priority returns the sort rank of t. Unrecognised types rank with Other.
func (t AdversaryType) Priority() int {
	if p, ok := typePriority[t]; ok {
		return p
	}
	return typePriority[TypeOther]
}

// IsValid reports whether t is a recognised adversary type.
func (t AdversaryType) IsValid() bool {
	switch t {
	case TypeLeader, TypeBruiser, TypeHorde, TypeRanged, TypeStandard, TypeOther, TypeMinion,
		TypeSkulk, TypeSolo, TypeSupport, TypeSocial:
		return true
	}
	return false
}

// Feature is a named ability on a stat block.
type Feature struct {
	Name        string `json:"name" yaml:"name"`
	Type        string `json:"type,omitempty" yaml:"type,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Thresholds are the damage thresholds of an adversary.
type Thresholds struct {
	Major  int `json:"major" yaml:"major"`
	Severe int `json:"severe" yaml:"severe"`
}

// Attack is an adversary's standard attack.
type Attack struct {
	Name     string `json:"name,omitempty" yaml:"name,omitempty"`
	Modifier int    `json:"modifier" yaml:"modifier"`
	Range    string `json:"range,omitempty" yaml:"range,omitempty"`
	Damage   string `json:"damage,omitempty" yaml:"damage,omitempty"`
}

// Adversary is a combatant controlled by the game master.
//
// HP counts damage taken: 0 is unharmed and HPMax is defeated.
type Adversary struct {
	ID          string        `json:"id" yaml:"id,omitempty"`
	Name        string        `json:"name" yaml:"name"`
	Type        AdversaryType `json:"type" yaml:"type"`
	Tier        int           `json:"tier,omitempty" yaml:"tier,omitempty"`
	Difficulty  int           `json:"difficulty,omitempty" yaml:"difficulty,omitempty"`
	Thresholds  Thresholds    `json:"thresholds" yaml:"thresholds"`
	HP          int           `json:"hp" yaml:"hp,omitempty"`
	HPMax       int           `json:"hpMax" yaml:"hp_max"`
	Stress      int           `json:"stress" yaml:"stress,omitempty"`
	StressMax   int           `json:"stressMax" yaml:"stress_max"`
	Attack      Attack        `json:"attack" yaml:"attack"`
	Motives     string        `json:"motives,omitempty" yaml:"motives,omitempty"`
	Description string        `json:"description,omitempty" yaml:"description,omitempty"`
	Features    []Feature     `json:"features" yaml:"features,omitempty"`
	IsVisible   bool          `json:"isVisible" yaml:"visible,omitempty"`
	IsCustom    bool          `json:"isCustom" yaml:"-"`
	Source      string        `json:"source,omitempty" yaml:"source,omitempty"`
}

// BaseName returns the adversary's name without its duplicate marker.
func (a Adversary) BaseName() string { return naming.BaseName(a.Name) }

// IsMinion reports whether a is a minion.
func (a Adversary) IsMinion() bool { return a.Type == TypeMinion }

var minionFeaturePattern = regexp.MustCompile(`Minion \((\d+)\)`)

// MinionThreshold returns the damage needed to drop one additional minion,
// read from a feature named like "Minion (3)". It is 1 when no such feature
// exists or the number does not parse to a positive integer.
func (a Adversary) MinionThreshold() int {
	for _, f := range a.Features {
		m := minionFeaturePattern.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			return n
		}
		return 1
	}
	return 1
}

// Clamp forces HP and Stress into their valid ranges.
func (a *Adversary) Clamp() {
	a.HPMax = max(a.HPMax, 0)
	a.StressMax = max(a.StressMax, 0)
	a.HP = min(max(a.HP, 0), a.HPMax)
	a.Stress = min(max(a.Stress, 0), a.StressMax)
}

// Clone returns a deep copy of a.
func (a Adversary) Clone() Adversary {
	a.Features = slices.Clone(a.Features)
	return a
}

// Environment is a scene or location with its own features.
type Environment struct {
	ID          string    `json:"id" yaml:"id,omitempty"`
	Name        string    `json:"name" yaml:"name"`
	Type        string    `json:"type,omitempty" yaml:"type,omitempty"`
	Tier        int       `json:"tier,omitempty" yaml:"tier,omitempty"`
	Difficulty  int       `json:"difficulty,omitempty" yaml:"difficulty,omitempty"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Impulses    []string  `json:"impulses,omitempty" yaml:"impulses,omitempty"`
	Features    []Feature `json:"features" yaml:"features,omitempty"`
	IsVisible   bool      `json:"isVisible" yaml:"visible,omitempty"`
	IsCustom    bool      `json:"isCustom" yaml:"-"`
	Source      string    `json:"source,omitempty" yaml:"source,omitempty"`
}

// Clone returns a deep copy of e.
func (e Environment) Clone() Environment {
	e.Impulses = slices.Clone(e.Impulses)
	e.Features = slices.Clone(e.Features)
	return e
}

// CountdownType classifies a countdown.
type CountdownType string

const (
	CountdownStandard    CountdownType = "standard"
	CountdownProgress    CountdownType = "progress"
	CountdownConsequence CountdownType = "consequence"
	CountdownLoop        CountdownType = "loop"
)

// IsValid reports whether t is a recognised countdown type.
func (t CountdownType) IsValid() bool {
	switch t {
	case CountdownStandard, CountdownProgress, CountdownConsequence, CountdownLoop:
		return true
	}
	return false
}

// Countdown is a tracked clock that ticks between 0 and Max.
type Countdown struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Type        CountdownType `json:"type"`
	Value       int           `json:"value"`
	Max         int           `json:"max"`
	Description string        `json:"description,omitempty"`
}

// Clamp forces Value into 0..Max.
func (c *Countdown) Clamp() {
	c.Max = max(c.Max, 0)
	c.Value = min(max(c.Value, 0), c.Max)
}

// ItemKind says which entity an [EncounterItem] holds.
type ItemKind string

const (
	ItemAdversary   ItemKind = "adversary"
	ItemEnvironment ItemKind = "environment"
)

// EncounterItem is one line of a saved encounter: a template entity and how
// many copies of it to place.
type EncounterItem struct {
	Kind        ItemKind     `json:"kind"`
	Quantity    int          `json:"quantity"`
	Adversary   *Adversary   `json:"adversary,omitempty"`
	Environment *Environment `json:"environment,omitempty"`
}

// Encounter is a saved set of adversaries and environments.
type Encounter struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
	Items     []EncounterItem `json:"encounterItems"`
	PartySize int             `json:"partySize"`

	// BattlePointsAdjustments is stored and returned as-is.
	BattlePointsAdjustments map[string]any `json:"battlePointsAdjustments,omitempty"`
}

// Fear is the GM's fear pool.
type Fear struct {
	Value   int  `json:"value"`
	Visible bool `json:"visible"`
}

// Fear bounds.
const (
	FearMin = 0
	FearMax = 12
)

// DefaultPartySize is used when no valid party size is stored.
const DefaultPartySize = 4

// GameSettings are the table-wide settings.
type GameSettings struct {
	Fear      Fear `json:"fear"`
	PartySize int  `json:"partySize"`
}

// DefaultSettings returns the settings used when nothing is stored.
func DefaultSettings() GameSettings {
	return GameSettings{PartySize: DefaultPartySize}
}
