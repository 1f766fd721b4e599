package scoring_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waxscore/internal"
	"waxscore/internal/profile"
	"waxscore/internal/scoring"
)

func defaultScorer(t *testing.T) *scoring.Scorer {
	t.Helper()
	s, err := profile.Default().Scorer()
	require.NoError(t, err)
	return s
}

func TestEmptyRecordScoresZero(t *testing.T) {
	s := defaultScorer(t)
	rec := internal.WaxRecord{SourceFile: "x.pdf"}
	res := s.Apply(&rec)
	assert.Equal(t, 0, res.Score)
	assert.Equal(t, 0, rec.Score)
	require.Len(t, res.Outcomes, 8)
	for _, o := range res.Outcomes {
		assert.True(t, o.UsedDefault, o.Name)
		assert.False(t, o.Matched, o.Name)
	}
}

func TestFullMatchScoresMax(t *testing.T) {
	s := defaultScorer(t)
	res := s.Score(map[internal.Key]float64{
		internal.DropMeltingPoint: 110,
		internal.Penetration25C:   7,
		internal.Density23C:       0.94,
		internal.Viscosity135C:    20,
		internal.CongealingPoint:  105,
		internal.OilContent:       0.2,
		internal.AcidValue:        0.1,
	}, map[internal.Key]string{internal.Type: "Fischer-Tropsch wax"})
	assert.Equal(t, s.MaxScore(), res.Score)
	assert.Equal(t, 12, res.Score)
}

func TestDropPointMonotonic(t *testing.T) {
	s := defaultScorer(t)
	numeric := map[internal.Key]float64{internal.DropMeltingPoint: 110, internal.AcidValue: 0.2}
	in := s.Score(numeric, nil).Score
	numeric[internal.DropMeltingPoint] = 120
	out := s.Score(numeric, nil).Score
	assert.Equal(t, 2, in-out)
}

func TestRangeBoundsInclusive(t *testing.T) {
	s := defaultScorer(t)
	assert.Equal(t, 2, s.Score(map[internal.Key]float64{internal.DropMeltingPoint: 102}, nil).Score)
	assert.Equal(t, 2, s.Score(map[internal.Key]float64{internal.DropMeltingPoint: 115}, nil).Score)
	assert.Equal(t, 1, s.Score(map[internal.Key]float64{internal.OilContent: 0.5}, nil).Score)
	assert.Equal(t, 2, s.Score(map[internal.Key]float64{internal.Viscosity135C: 18}, nil).Score)
}

func TestTypeMatchIsCaseInsensitive(t *testing.T) {
	s := defaultScorer(t)
	assert.Equal(t, 1, s.Score(nil, map[internal.Key]string{internal.Type: "FISCHER TROPSCH"}).Score)
	assert.Equal(t, 0, s.Score(nil, map[internal.Key]string{internal.Type: "Montan"}).Score)
}

func TestTextValueForNumericPredicateUsesDefault(t *testing.T) {
	s := defaultScorer(t)
	res := s.Score(nil, map[internal.Key]string{internal.AcidValue: "low"})
	assert.Equal(t, 0, res.Score)
	for _, o := range res.Outcomes {
		if o.Property == internal.AcidValue {
			assert.True(t, o.UsedDefault)
		}
	}
}

func TestCustomPredicates(t *testing.T) {
	max := 50.0
	s, err := scoring.NewScorer([]scoring.Predicate{
		{Name: "sap", Property: internal.SaponificationValue, Kind: scoring.KindMax, Max: &max, Points: 3, Default: 999},
		{Name: "kind", Property: internal.Type, Kind: scoring.KindContains, Substrings: []string{"PE", "Montan"}, CaseSensitive: true, Points: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, 4, s.MaxScore())
	assert.Equal(t, 4, s.Score(map[internal.Key]float64{internal.SaponificationValue: 10}, map[internal.Key]string{internal.Type: "Montan wax"}).Score)
	assert.Equal(t, 0, s.Score(nil, map[internal.Key]string{internal.Type: "montan wax"}).Score)
}

func TestInvalidPredicates(t *testing.T) {
	lo, hi := 10.0, 5.0
	bad := []scoring.Predicate{
		{Name: "", Property: "x", Kind: scoring.KindMin, Min: &lo},
		{Name: "a", Property: "x", Kind: "between"},
		{Name: "b", Property: "x", Kind: scoring.KindRange, Min: &lo, Max: &hi},
		{Name: "c", Property: "x", Kind: scoring.KindContains},
		{Name: "d", Property: "x", Kind: scoring.KindMax},
	}
	for _, p := range bad {
		_, err := scoring.NewScorer([]scoring.Predicate{p})
		assert.ErrorIs(t, err, scoring.ErrInvalidPredicate, p.Name)
	}
}
