// Package profile loads the alias and predicate tables that retarget the
// extractor and scorer to a product specification.
package profile

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"waxscore/internal/alias"
	"waxscore/internal/scoring"
)

//go:embed default.yaml
var defaultYAML []byte

const DefaultMinFields = 2

type Profile struct {
	Name       string              `yaml:"name"`
	MinFields  int                 `yaml:"min_fields"`
	Cleanup    []alias.Replacement `yaml:"cleanup"`
	Aliases    []alias.Entry       `yaml:"aliases"`
	Predicates []scoring.Predicate `yaml:"predicates"`
}

var ErrEmptyProfile = errors.New("profile has no aliases")

func Default() Profile {
	p, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded profile: %v", err))
	}
	return p
}

// Load reads a profile from path. An empty path yields the embedded default.
func Load(path string) (Profile, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	blob, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("read profile: %w", err)
	}
	p, err := Parse(blob)
	if err != nil {
		return Profile{}, fmt.Errorf("profile %s: %w", path, err)
	}
	return p, nil
}

func Parse(blob []byte) (Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(blob, &p); err != nil {
		return Profile{}, err
	}
	if p.MinFields <= 0 {
		p.MinFields = DefaultMinFields
	}
	if err := p.Validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

func (p Profile) Validate() error {
	if len(p.Aliases) == 0 {
		return ErrEmptyProfile
	}
	seen := map[string]struct{}{}
	for _, pr := range p.Predicates {
		if err := pr.Validate(); err != nil {
			return err
		}
		if _, dup := seen[pr.Name]; dup {
			return fmt.Errorf("%w: duplicate name %q", scoring.ErrInvalidPredicate, pr.Name)
		}
		seen[pr.Name] = struct{}{}
	}
	return nil
}

func (p Profile) Table() *alias.Table {
	return alias.BuildTable(p.Aliases, p.Cleanup)
}

func (p Profile) Scorer() (*scoring.Scorer, error) {
	return scoring.NewScorer(p.Predicates)
}

func (p Profile) Marshal() ([]byte, error) {
	return yaml.Marshal(p)
}
