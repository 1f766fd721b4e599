package alias

import (
	"waxscore/internal"
	"waxscore/internal/util"
)

// Normalize maps a raw label to its canonical key. Labels that match no alias
// come back as their cleaned, whitespace-free form, so Normalize is idempotent.
func (t *Table) Normalize(label string) internal.Key {
	cleaned := t.Clean(label)
	if key, ok := t.Lookup(cleaned); ok {
		return key
	}
	return internal.Key(cleaned)
}

// Recognized reports whether label resolves to an alias entry.
func (t *Table) Recognized(label string) bool {
	_, ok := t.Lookup(t.Clean(label))
	return ok
}

type Suggestion struct {
	Label string       `json:"label"`
	Key   internal.Key `json:"key"`
	Score float64      `json:"score"`
}

// Suggest finds the closest alias pattern for an unrecognized label by bigram
// similarity. It returns false when nothing reaches minScore.
func (t *Table) Suggest(label string, minScore float64) (Suggestion, bool) {
	cleaned := t.Clean(label)
	best := Suggestion{Label: label}
	for _, e := range t.entries {
		score := util.DiceCoefficient(cleaned, e.pattern)
		if score > best.Score {
			best.Key = e.key
			best.Score = score
		}
	}
	if best.Key == "" || best.Score < minScore {
		return best, false
	}
	return best, true
}
