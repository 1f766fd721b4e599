package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waxscore/internal"
	"waxscore/internal/profile"
)

func newTestExtractor(t *testing.T) *Extractor {
	t.Helper()
	p := profile.Default()
	return NewExtractor(p.Table(), p.MinFields)
}

func TestExtractTabularRows(t *testing.T) {
	e := newTestExtractor(t)
	doc := internal.Document{
		SourceFile: "vendor-a.pdf",
		Rows: [][]string{
			{"Drop point", "102-108 °C"},
			{"Viscosity (140 °C)", "20 mPa·s"},
			{"Density (23 °C)", "0,93 g/cm³"},
		},
	}

	ex := e.Extract(doc)
	assert.Equal(t, internal.StrategyTabular, ex.Strategy)
	assert.Equal(t, map[internal.Key]float64{
		internal.DropMeltingPoint: 105,
		internal.Viscosity135C:    20,
		internal.Density23C:       0.93,
	}, ex.Fields.Numeric)
	assert.Empty(t, ex.Fields.Text)
}

func TestExtractLinesOnly(t *testing.T) {
	e := newTestExtractor(t)
	doc := internal.Document{
		SourceFile: "scan.png",
		Lines:      []string{"Tropfpunkt: 110 °C", "Säurezahl: 0.2"},
	}

	ex := e.Extract(doc)
	assert.Equal(t, internal.StrategyLines, ex.Strategy)
	assert.False(t, ex.Fallback)
	assert.Equal(t, map[internal.Key]float64{
		internal.DropMeltingPoint: 110,
		internal.AcidValue:        0.2,
	}, ex.Fields.Numeric)
}

func TestExtractFallsBackWhenTableIsThin(t *testing.T) {
	e := newTestExtractor(t)
	doc := internal.Document{
		SourceFile: "thin.pdf",
		Rows:       [][]string{{"Drop point", "110"}, {"Remarks"}},
		Lines:      []string{"Density: 0.93", "Drop point: 104"},
	}

	ex := e.Extract(doc)
	assert.Equal(t, internal.StrategyMerged, ex.Strategy)
	assert.True(t, ex.Fallback)
	assert.Equal(t, 104.0, ex.Fields.Numeric[internal.DropMeltingPoint])
	assert.Equal(t, 0.93, ex.Fields.Numeric[internal.Density23C])
}

func TestExtractFallbackJoinsRowsWithoutLines(t *testing.T) {
	e := newTestExtractor(t)
	doc := internal.Document{
		SourceFile: "scan.pdf",
		Rows:       [][]string{{"Drop point", "110"}, {"Density 23 °C   0.93"}},
	}

	ex := e.Extract(doc)
	assert.Equal(t, internal.StrategyMerged, ex.Strategy)
	assert.Equal(t, 110.0, ex.Fields.Numeric[internal.DropMeltingPoint])
	assert.Equal(t, 0.93, ex.Fields.Numeric[internal.Density23C])
}

func TestExtractTableWithEnoughFieldsSkipsLines(t *testing.T) {
	e := newTestExtractor(t)
	doc := internal.Document{
		SourceFile: "a.pdf",
		Rows:       [][]string{{"Drop point", "110"}, {"Density", "0.93"}},
		Lines:      []string{"Drop point: 90"},
	}

	ex := e.Extract(doc)
	assert.Equal(t, internal.StrategyTabular, ex.Strategy)
	assert.False(t, ex.Fallback)
	assert.Equal(t, 110.0, ex.Fields.Numeric[internal.DropMeltingPoint])
}

func TestExtractFallbackThatFindsNothing(t *testing.T) {
	e := newTestExtractor(t)
	ex := e.Extract(internal.Document{
		SourceFile: "logo.pdf",
		Rows:       [][]string{{"ACME Waxes GmbH"}},
		Lines:      []string{"ACME Waxes GmbH"},
	})
	assert.Equal(t, internal.StrategyNone, ex.Strategy)
	assert.True(t, ex.Fallback)
}

func TestExtractHeaderRow(t *testing.T) {
	e := newTestExtractor(t)
	doc := internal.Document{
		SourceFile: "export.csv",
		Rows: [][]string{
			{"", ""},
			{"Product", "Drop point", "Penetration (25 °C)", "Density"},
			{"FT-105", "108", "6", "0,94"},
			{"FT-110", "112", "4", "0,95"},
		},
	}

	ex := e.Extract(doc)
	assert.Equal(t, internal.StrategyHeader, ex.Strategy)
	assert.Equal(t, 108.0, ex.Fields.Numeric[internal.DropMeltingPoint])
	assert.Equal(t, 6.0, ex.Fields.Numeric[internal.Penetration25C])
	assert.Equal(t, 0.94, ex.Fields.Numeric[internal.Density23C])
}

func TestExtractPairsWhenFirstValueMentionsProperty(t *testing.T) {
	e := newTestExtractor(t)
	rec, ex, err := e.Record(internal.Document{
		SourceFile: "ft-wax.pdf",
		Rows: [][]string{
			{"Type", "Fischer-Tropsch wax, low viscosity"},
			{"Drop point", "110 °C"},
			{"Penetration (25 °C)", "7"},
			{"Acid value", "0.1"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, internal.StrategyTabular, ex.Strategy)
	assert.Equal(t, map[internal.Key]float64{
		internal.DropMeltingPoint: 110,
		internal.Penetration25C:   7,
		internal.AcidValue:        0.1,
	}, rec.Numeric)
	assert.Equal(t, "Fischer-Tropsch wax, low viscosity", rec.Text[internal.Type])

	scorer, err := profile.Default().Scorer()
	require.NoError(t, err)
	assert.Equal(t, 6, scorer.Apply(&rec).Score)
}

func TestExtractTypeKeepsText(t *testing.T) {
	e := newTestExtractor(t)
	doc := internal.Document{
		SourceFile: "ft.xlsx",
		Rows: [][]string{
			{"Type", "  Fischer-Tropsch   wax "},
			{"Drop point", "110"},
		},
	}

	ex := e.Extract(doc)
	assert.Equal(t, "Fischer-Tropsch wax", ex.Fields.Text[internal.Type])
	_, numeric := ex.Fields.Numeric[internal.Type]
	assert.False(t, numeric)
}

func TestExtractDropsEmptyKeysAndValues(t *testing.T) {
	e := newTestExtractor(t)
	ex := e.ExtractRows([][]string{
		{"°C", "110"},
		{"Drop point", "n/a"},
		{"Density", "0.93"},
	})
	assert.Equal(t, 1, ex.Fields.Len())
	assert.Equal(t, 0.93, ex.Fields.Numeric[internal.Density23C])
}

func TestExtractLastDuplicateWins(t *testing.T) {
	e := newTestExtractor(t)
	ex := e.ExtractRows([][]string{
		{"Drop point", "100"},
		{"Tropfpunkt", "110"},
	})
	assert.Equal(t, 110.0, ex.Fields.Numeric[internal.DropMeltingPoint])
}

func TestExtractKeepsUnknownLabelsUnderFallbackKey(t *testing.T) {
	e := newTestExtractor(t)
	ex := e.ExtractLines([]string{"Flash point: 280 °C", "Drop point: 110"})
	assert.Equal(t, 280.0, ex.Fields.Numeric[internal.Key("flashpoint")])
	assert.Equal(t, []string{"Flash point"}, ex.Unrecognized)
}

func TestExtractEmptyDocument(t *testing.T) {
	e := newTestExtractor(t)
	rec, ex, err := e.Record(internal.Document{SourceFile: "empty.pdf"})
	require.NoError(t, err)
	assert.Equal(t, internal.StrategyNone, ex.Strategy)
	assert.Equal(t, "empty.pdf", rec.SourceFile)
	assert.Empty(t, rec.Numeric)
	assert.Empty(t, rec.Text)
}

func TestRecordRequiresSourceFile(t *testing.T) {
	e := newTestExtractor(t)
	_, _, err := e.Record(internal.Document{Lines: []string{"Drop point: 110"}})
	assert.ErrorIs(t, err, ErrNoSourceFile)
}

func TestMinFieldsThreshold(t *testing.T) {
	p := profile.Default()
	e := NewExtractor(p.Table(), 3)
	ex := e.Extract(internal.Document{
		SourceFile: "a.pdf",
		Rows:       [][]string{{"Drop point", "110"}, {"Density", "0.93"}},
		Lines:      []string{"Acid value: 0.1"},
	})
	assert.Equal(t, internal.StrategyMerged, ex.Strategy)
	assert.Equal(t, 3, ex.Fields.Len())
}

func TestSplitLine(t *testing.T) {
	cases := []struct {
		line, label, value string
		ok                 bool
	}{
		{"Drop point: 110 °C", "Drop point", "110 °C", true},
		{"Density 23 °C    0.93 g/cm³", "Density 23 °C", "0.93 g/cm³", true},
		{"Density\t\t0.93", "Density", "0.93", true},
		{"Just a sentence with single spaces", "", "", false},
		{"   ", "", "", false},
	}
	for _, tc := range cases {
		label, value, ok := splitLine(tc.line)
		assert.Equal(t, tc.ok, ok, tc.line)
		assert.Equal(t, tc.label, label, tc.line)
		assert.Equal(t, tc.value, value, tc.line)
	}
}
