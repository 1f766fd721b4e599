package pipeline

import (
	"context"
	"fmt"
	"strings"

	"waxscore/internal"
	"waxscore/internal/util"
)

// DocumentFromInput builds a document from inline content. inputType is one
// of "text" (label/value lines), "html" (tables and text) or "file" (input is
// a path decoded by extension).
func DocumentFromInput(ctx context.Context, decoder *Decoder, inputType, source, input string) (internal.Document, error) {
	switch inputType {
	case "text":
		return internal.Document{SourceFile: source, Kind: internal.SourceText, Lines: util.SplitLines(input)}, nil
	case "html":
		rows, lines, err := decodeHTML(input)
		if err != nil {
			return internal.Document{}, err
		}
		return internal.Document{SourceFile: source, Kind: internal.SourceHTML, Rows: rows, Lines: lines}, nil
	case "file":
		return decoder.DecodeFile(ctx, input)
	default:
		return internal.Document{}, fmt.Errorf("unsupported input type: %s", inputType)
	}
}

// ParseAssignments splits "Label=Value" pairs as given on the command line.
func ParseAssignments(pairs []string) ([]internal.RawField, error) {
	out := make([]internal.RawField, 0, len(pairs))
	for _, p := range pairs {
		label, value, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(label) == "" {
			return nil, fmt.Errorf("expected Label=Value, got %q", p)
		}
		out = append(out, internal.RawField{Label: strings.TrimSpace(label), Value: strings.TrimSpace(value)})
	}
	return out, nil
}

// Manual builds a record from hand-entered fields. Labels go through the same
// alias table and values through the same parser as extracted ones.
func (e *Extractor) Manual(source string, fields []internal.RawField) (internal.WaxRecord, error) {
	if strings.TrimSpace(source) == "" {
		return internal.WaxRecord{}, ErrNoSourceFile
	}
	out := Extraction{Fields: internal.NewFields()}
	for _, f := range fields {
		e.add(&out, f.Label, f.Value)
	}
	strategy := internal.StrategyNone
	if out.Fields.Len() > 0 {
		strategy = internal.StrategyManual
	}
	return internal.WaxRecord{
		SourceFile: source,
		Numeric:    out.Fields.Numeric,
		Text:       out.Fields.Text,
		Strategy:   strategy,
	}, nil
}
