package entity

import "maps"

// AdversaryKind is the kind of the in-play adversary collection.
var AdversaryKind = Kind[Adversary]{
	Name:        "adversary",
	Prefix:      "adv",
	UniqueNames: true,
	ID:          func(a *Adversary) *string { return &a.ID },
	DisplayName: func(a *Adversary) *string { return &a.Name },
	Clone:       Adversary.Clone,
}

// EnvironmentKind is the kind of the in-play environment collection.
var EnvironmentKind = Kind[Environment]{
	Name:        "environment",
	Prefix:      "env",
	UniqueNames: true,
	ID:          func(e *Environment) *string { return &e.ID },
	DisplayName: func(e *Environment) *string { return &e.Name },
	Clone:       Environment.Clone,
}

// CustomAdversaryKind is the kind of the custom adversary library. Library
// entries keep the names their authors gave them.
var CustomAdversaryKind = Kind[Adversary]{
	Name:        "custom adversary",
	Prefix:      "custom-adv",
	ID:          AdversaryKind.ID,
	DisplayName: AdversaryKind.DisplayName,
	Clone:       Adversary.Clone,
}

// CustomEnvironmentKind is the kind of the custom environment library.
var CustomEnvironmentKind = Kind[Environment]{
	Name:        "custom environment",
	Prefix:      "custom-env",
	ID:          EnvironmentKind.ID,
	DisplayName: EnvironmentKind.DisplayName,
	Clone:       Environment.Clone,
}

// CountdownKind is the kind of the countdown collection.
var CountdownKind = Kind[Countdown]{
	Name:        "countdown",
	Prefix:      "cd",
	ID:          func(c *Countdown) *string { return &c.ID },
	DisplayName: func(c *Countdown) *string { return &c.Name },
}

// EncounterKind is the kind of the saved encounter collection.
var EncounterKind = Kind[Encounter]{
	Name:        "encounter",
	Prefix:      "enc",
	ID:          func(e *Encounter) *string { return &e.ID },
	DisplayName: func(e *Encounter) *string { return &e.Name },
	Clone:       Encounter.Clone,
}

// Clone returns a deep copy of e.
func (e Encounter) Clone() Encounter {
	items := make([]EncounterItem, len(e.Items))
	for i, it := range e.Items {
		if it.Adversary != nil {
			a := it.Adversary.Clone()
			it.Adversary = &a
		}
		if it.Environment != nil {
			env := it.Environment.Clone()
			it.Environment = &env
		}
		items[i] = it
	}
	e.Items = items
	e.BattlePointsAdjustments = maps.Clone(e.BattlePointsAdjustments)
	return e
}
