package entity

import (
	"errors"
	"fmt"
	"strings"
)

// ValidateAdversary checks an [Adversary] for required fields and coherent
// values.
//
// Rules:
//   - Name must be non-empty.
//   - Type must be a recognised [AdversaryType].
//   - HPMax and StressMax must not be negative.
//   - Every feature must have a name.
func ValidateAdversary(a Adversary) error {
	var errs []error

	if strings.TrimSpace(a.Name) == "" {
		errs = append(errs, errors.New("name must not be empty"))
	}
	if !a.Type.IsValid() {
		errs = append(errs, fmt.Errorf("type %q is not a recognised adversary type", a.Type))
	}
	if a.HPMax < 0 {
		errs = append(errs, fmt.Errorf("hp_max %d must not be negative", a.HPMax))
	}
	if a.StressMax < 0 {
		errs = append(errs, fmt.Errorf("stress_max %d must not be negative", a.StressMax))
	}
	errs = append(errs, validateFeatures(a.Features)...)

	return errors.Join(errs...)
}

// ValidateEnvironment checks an [Environment] for required fields.
func ValidateEnvironment(e Environment) error {
	var errs []error
	if strings.TrimSpace(e.Name) == "" {
		errs = append(errs, errors.New("name must not be empty"))
	}
	errs = append(errs, validateFeatures(e.Features)...)
	return errors.Join(errs...)
}

// ValidateCountdown checks a [Countdown] for required fields.
func ValidateCountdown(c Countdown) error {
	var errs []error
	if strings.TrimSpace(c.Name) == "" {
		errs = append(errs, errors.New("name must not be empty"))
	}
	if c.Type != "" && !c.Type.IsValid() {
		errs = append(errs, fmt.Errorf("type %q is not a recognised countdown type", c.Type))
	}
	if c.Max < 1 {
		errs = append(errs, fmt.Errorf("max %d must be at least 1", c.Max))
	}
	return errors.Join(errs...)
}

func validateFeatures(features []Feature) []error {
	var errs []error
	for i, f := range features {
		if strings.TrimSpace(f.Name) == "" {
			errs = append(errs, fmt.Errorf("features[%d]: name must not be empty", i))
		}
	}
	return errs
}
