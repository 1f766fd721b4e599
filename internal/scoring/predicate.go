package scoring

import (
	"errors"
	"fmt"
	"strings"

	"waxscore/internal"
)

type Kind string

const (
	KindRange    Kind = "range"
	KindMin      Kind = "min"
	KindMax      Kind = "max"
	KindContains Kind = "contains"
)

// Predicate awards Points when the record's Property satisfies the condition.
// Absent or non-numeric values are replaced by Default (DefaultText for
// contains predicates) before the check, so a missing property is judged on the
// documented default instead of a zero value.
type Predicate struct {
	Name          string       `yaml:"name"`
	Property      internal.Key `yaml:"property"`
	Kind          Kind         `yaml:"kind"`
	Min           *float64     `yaml:"min,omitempty"`
	Max           *float64     `yaml:"max,omitempty"`
	Points        int          `yaml:"points"`
	Default       float64      `yaml:"default"`
	DefaultText   string       `yaml:"default_text,omitempty"`
	Substrings    []string     `yaml:"substrings,omitempty"`
	CaseSensitive bool         `yaml:"case_sensitive,omitempty"`
}

var ErrInvalidPredicate = errors.New("invalid predicate")

func (p Predicate) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidPredicate)
	}
	if strings.TrimSpace(string(p.Property)) == "" {
		return fmt.Errorf("%w: %s: empty property", ErrInvalidPredicate, p.Name)
	}
	if p.Points < 0 {
		return fmt.Errorf("%w: %s: negative points", ErrInvalidPredicate, p.Name)
	}
	switch p.Kind {
	case KindRange:
		if p.Min == nil || p.Max == nil {
			return fmt.Errorf("%w: %s: range needs min and max", ErrInvalidPredicate, p.Name)
		}
		if *p.Min > *p.Max {
			return fmt.Errorf("%w: %s: min %g > max %g", ErrInvalidPredicate, p.Name, *p.Min, *p.Max)
		}
	case KindMin:
		if p.Min == nil {
			return fmt.Errorf("%w: %s: min predicate needs min", ErrInvalidPredicate, p.Name)
		}
	case KindMax:
		if p.Max == nil {
			return fmt.Errorf("%w: %s: max predicate needs max", ErrInvalidPredicate, p.Name)
		}
	case KindContains:
		if len(p.Substrings) == 0 {
			return fmt.Errorf("%w: %s: contains predicate needs substrings", ErrInvalidPredicate, p.Name)
		}
	default:
		return fmt.Errorf("%w: %s: unknown kind %q", ErrInvalidPredicate, p.Name, p.Kind)
	}
	return nil
}

func (p Predicate) checkNumber(v float64) bool {
	switch p.Kind {
	case KindRange:
		return *p.Min <= v && v <= *p.Max
	case KindMin:
		return v >= *p.Min
	case KindMax:
		return v <= *p.Max
	}
	return false
}

func (p Predicate) checkText(v string) bool {
	if !p.CaseSensitive {
		v = strings.ToLower(v)
	}
	for _, sub := range p.Substrings {
		if !p.CaseSensitive {
			sub = strings.ToLower(sub)
		}
		if sub != "" && strings.Contains(v, sub) {
			return true
		}
	}
	return false
}
