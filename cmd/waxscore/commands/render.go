package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"waxscore/internal"
	"waxscore/internal/pipeline"
)

// renderRanking prints records as a ranked table in the CSV column order.
func renderRanking(w io.Writer, records []internal.WaxRecord, maxScore int) {
	header := []string{"#"}
	for _, k := range pipeline.ExportColumns {
		header = append(header, string(k))
	}
	header = append(header, "Type", "Score", "SourceFile")

	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)

	for i, rec := range records {
		row := []string{strconv.Itoa(i + 1)}
		for _, k := range pipeline.ExportColumns {
			row = append(row, formatNumber(rec, k))
		}
		typ, _ := rec.String(internal.Type)
		row = append(row, typ, colorScore(rec.Score, maxScore), rec.SourceFile)
		table.Append(row)
	}
	table.Render()
}

func colorScore(score, maxScore int) string {
	s := fmt.Sprintf("%d/%d", score, maxScore)
	if maxScore <= 0 {
		return s
	}
	ratio := float64(score) / float64(maxScore)
	switch {
	case ratio >= 0.75:
		return color.GreenString(s)
	case ratio >= 0.5:
		return color.YellowString(s)
	default:
		return s
	}
}

func formatNumber(rec internal.WaxRecord, k internal.Key) string {
	v, ok := rec.Number(k)
	if !ok {
		return "-"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
