package scoring

import (
	"strconv"

	"waxscore/internal"
)

// Scorer evaluates records against an ordered predicate table. It holds no
// mutable state and may be shared between goroutines.
type Scorer struct {
	predicates []Predicate
}

func NewScorer(predicates []Predicate) (*Scorer, error) {
	for _, p := range predicates {
		if err := p.Validate(); err != nil {
			return nil, err
		}
	}
	cp := make([]Predicate, len(predicates))
	copy(cp, predicates)
	return &Scorer{predicates: cp}, nil
}

func (s *Scorer) Predicates() []Predicate {
	out := make([]Predicate, len(s.predicates))
	copy(out, s.predicates)
	return out
}

// MaxScore is the score of a record that satisfies every predicate.
func (s *Scorer) MaxScore() int {
	total := 0
	for _, p := range s.predicates {
		total += p.Points
	}
	return total
}

func (s *Scorer) Score(numeric map[internal.Key]float64, text map[internal.Key]string) internal.ScoreResult {
	result := internal.ScoreResult{Outcomes: make([]internal.Outcome, 0, len(s.predicates))}
	for _, p := range s.predicates {
		outcome := s.evaluate(p, numeric, text)
		if outcome.Matched {
			result.Score += outcome.Points
		}
		result.Outcomes = append(result.Outcomes, outcome)
	}
	return result
}

// Apply scores the record in place and returns the same result.
func (s *Scorer) Apply(record *internal.WaxRecord) internal.ScoreResult {
	result := s.Score(record.Numeric, record.Text)
	record.Score = result.Score
	record.Outcomes = result.Outcomes
	return result
}

func (s *Scorer) evaluate(p Predicate, numeric map[internal.Key]float64, text map[internal.Key]string) internal.Outcome {
	outcome := internal.Outcome{Name: p.Name, Property: p.Property}

	if p.Kind == KindContains {
		v, ok := text[p.Property]
		if !ok {
			if n, isNum := numeric[p.Property]; isNum {
				v, ok = strconv.FormatFloat(n, 'f', -1, 64), true
			}
		}
		if !ok {
			v = p.DefaultText
			outcome.UsedDefault = true
		}
		outcome.Value = &v
		if p.checkText(v) {
			outcome.Matched = true
			outcome.Points = p.Points
		}
		return outcome
	}

	v, ok := numeric[p.Property]
	if !ok {
		v = p.Default
		outcome.UsedDefault = true
	}
	str := strconv.FormatFloat(v, 'f', -1, 64)
	outcome.Value = &str
	if p.checkNumber(v) {
		outcome.Matched = true
		outcome.Points = p.Points
	}
	return outcome
}
