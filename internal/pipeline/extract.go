package pipeline

import (
	"errors"
	"strings"

	"waxscore/internal"
	"waxscore/internal/alias"
	"waxscore/internal/util"
)

var ErrNoSourceFile = errors.New("document has no source file")

// Extractor turns decoded rows and lines into a property record. It is
// read-only after construction and may be shared between goroutines.
type Extractor struct {
	table     *alias.Table
	minFields int
}

type Extraction struct {
	Fields       internal.Fields
	Strategy     internal.Strategy
	Unrecognized []string
	// Fallback is set when the document had table rows but too few of them
	// resolved, so the text lines were read as well.
	Fallback bool
}

func NewExtractor(table *alias.Table, minFields int) *Extractor {
	if minFields <= 0 {
		minFields = 2
	}
	return &Extractor{table: table, minFields: minFields}
}

// Extract runs the tabular strategy first. A table that yields fewer than
// minFields values is treated as a scan and the text lines are read as well,
// with line values overwriting table values for the same key.
func (e *Extractor) Extract(doc internal.Document) Extraction {
	tab := e.ExtractRows(doc.Rows)
	if tab.Fields.Len() >= e.minFields {
		return tab
	}

	lines := doc.Lines
	if len(lines) == 0 {
		lines = rowsToLines(doc.Rows)
	}
	byLine := e.ExtractLines(lines)

	out := Extraction{Fields: internal.NewFields(), Fallback: len(doc.Rows) > 0}
	out.Fields.Merge(tab.Fields)
	out.Fields.Merge(byLine.Fields)
	out.Unrecognized = mergeLabels(tab.Unrecognized, byLine.Unrecognized)

	switch {
	case byLine.Fields.Len() == 0 && tab.Fields.Len() == 0:
		out.Strategy = internal.StrategyNone
	case byLine.Fields.Len() == 0:
		out.Strategy = tab.Strategy
	case tab.Fields.Len() == 0:
		out.Strategy = internal.StrategyLines
	default:
		out.Strategy = internal.StrategyMerged
	}
	return out
}

// Record extracts doc into a WaxRecord. Scoring is left to the caller.
func (e *Extractor) Record(doc internal.Document) (internal.WaxRecord, Extraction, error) {
	if strings.TrimSpace(doc.SourceFile) == "" {
		return internal.WaxRecord{}, Extraction{}, ErrNoSourceFile
	}
	ex := e.Extract(doc)
	return internal.WaxRecord{
		SourceFile: doc.SourceFile,
		Numeric:    ex.Fields.Numeric,
		Text:       ex.Fields.Text,
		Strategy:   ex.Strategy,
	}, ex, nil
}

// ExtractRows reads label/value pairs from the first two cells of each row.
// When the first row looks like a header of property names, the rows are also
// read column-wise, and that reading is kept only if it yields more canonical
// properties than the pairwise one.
func (e *Extractor) ExtractRows(rows [][]string) Extraction {
	if len(rows) == 0 {
		return Extraction{Fields: internal.NewFields(), Strategy: internal.StrategyNone}
	}

	pairs := Extraction{Fields: internal.NewFields(), Strategy: internal.StrategyTabular}
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}
		e.add(&pairs, row[0], row[1])
	}

	headerIdx, ok := e.findHeaderRow(rows)
	if !ok {
		return pairs
	}
	columns := Extraction{Fields: internal.NewFields(), Strategy: internal.StrategyHeader}
	header := rows[headerIdx]
	values := firstDataRow(rows[headerIdx+1:])
	for i, label := range header {
		if i < len(values) {
			e.add(&columns, label, values[i])
		}
	}
	if canonicalCount(columns.Fields) > canonicalCount(pairs.Fields) {
		return columns
	}
	return pairs
}

func canonicalCount(f internal.Fields) int {
	n := 0
	for k := range f.Numeric {
		if internal.IsCanonical(k) {
			n++
		}
	}
	for k := range f.Text {
		if internal.IsCanonical(k) {
			n++
		}
	}
	return n
}

// ExtractLines reads "label: value" lines, or lines whose label and value are
// separated by two or more spaces.
func (e *Extractor) ExtractLines(lines []string) Extraction {
	out := Extraction{Fields: internal.NewFields(), Strategy: internal.StrategyLines}
	for _, line := range lines {
		label, value, ok := splitLine(line)
		if !ok {
			continue
		}
		e.add(&out, label, value)
	}
	return out
}

func (e *Extractor) add(out *Extraction, label, value string) {
	key := e.table.Normalize(label)
	if key == "" {
		return
	}

	if internal.IsTextKey(key) {
		text := util.NormalizeSpaces(value)
		if text == "" {
			return
		}
		delete(out.Fields.Numeric, key)
		out.Fields.Text[key] = text
		return
	}

	n, ok := util.ParseNumeric(value)
	if !ok {
		return
	}
	delete(out.Fields.Text, key)
	out.Fields.Numeric[key] = n
	if !internal.IsCanonical(key) {
		out.Unrecognized = mergeLabels(out.Unrecognized, []string{util.NormalizeSpaces(label)})
	}
}

// findHeaderRow looks at the first non-empty row only.
func (e *Extractor) findHeaderRow(rows [][]string) (int, bool) {
	for i, row := range rows {
		if isBlankRow(row) {
			continue
		}
		hits := 0
		for _, cell := range row {
			if internal.IsCanonical(e.table.Normalize(cell)) {
				hits++
			}
		}
		return i, hits >= 2
	}
	return 0, false
}

func splitLine(line string) (string, string, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", "", false
	}
	if label, value, found := strings.Cut(line, ":"); found {
		return strings.TrimSpace(label), strings.TrimSpace(value), true
	}
	parts := util.SplitColumns(line)
	if len(parts) < 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}

func firstDataRow(rows [][]string) []string {
	for _, row := range rows {
		if !isBlankRow(row) {
			return row
		}
	}
	return nil
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func rowsToLines(rows [][]string) []string {
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		cells := make([]string, 0, len(row))
		for _, c := range row {
			if c = util.NormalizeSpaces(c); c != "" {
				cells = append(cells, c)
			}
		}
		if len(cells) > 0 {
			out = append(out, strings.Join(cells, "  "))
		}
	}
	return out
}

func mergeLabels(a, b []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(a)+len(b))
	for _, l := range append(append([]string{}, a...), b...) {
		if l == "" {
			continue
		}
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}
