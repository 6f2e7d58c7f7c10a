package entity

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Library is the top-level structure of a content library YAML file.
//
// Example:
//
//	name: "Homebrew Bestiary"
//	source: "Table of Dave"
//	adversaries:
//	  - name: "Bog Goblin"
//	    type: Minion
//	    hp_max: 1
//	    stress_max: 1
//	    features:
//	      - name: "Minion (4)"
//	environments:
//	  - name: "Sunken Causeway"
//	    tier: 1
type Library struct {
	// Name is the library's display name.
	Name string `yaml:"name"`

	// Source is copied onto every entry that has none.
	Source string `yaml:"source"`

	Adversaries  []Adversary   `yaml:"adversaries"`
	Environments []Environment `yaml:"environments"`
}

// LoadLibraryFile reads and parses a content library YAML file from disk.
// Returns a descriptive error if the file cannot be opened or parsed.
func LoadLibraryFile(path string) (*Library, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("entity: open library file %q: %w", path, err)
	}
	defer f.Close()

	lib, err := LoadLibraryFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("entity: parse library file %q: %w", path, err)
	}
	return lib, nil
}

// LoadLibraryFromReader parses library YAML from an [io.Reader] and
// validates every entry. The reader is consumed entirely; the caller is
// responsible for closing it.
func LoadLibraryFromReader(r io.Reader) (*Library, error) {
	var lib Library
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true) // reject unknown keys to catch typos
	if err := dec.Decode(&lib); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("entity: decode library yaml: %w", err)
	}
	if err := lib.Validate(); err != nil {
		return nil, err
	}
	lib.normalise()
	return &lib, nil
}

// Validate checks every entry of the library and joins all failures.
func (l *Library) Validate() error {
	var errs []error
	for i, a := range l.Adversaries {
		if err := ValidateAdversary(a); err != nil {
			errs = append(errs, fmt.Errorf("adversaries[%d]: %w", i, err))
		}
	}
	for i, e := range l.Environments {
		if err := ValidateEnvironment(e); err != nil {
			errs = append(errs, fmt.Errorf("environments[%d]: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// normalise marks every entry as custom, fills in the library source and
// clamps tracks into range.
func (l *Library) normalise() {
	for i := range l.Adversaries {
		a := &l.Adversaries[i]
		a.IsCustom = true
		if a.Source == "" {
			a.Source = l.Source
		}
		a.Clamp()
	}
	for i := range l.Environments {
		e := &l.Environments[i]
		e.IsCustom = true
		if e.Source == "" {
			e.Source = l.Source
		}
	}
}
