package commands

import (
	"io"

	"github.com/spf13/cobra"

	"waxscore/internal"
	"waxscore/internal/alias"
	"waxscore/internal/pipeline"
)

var extractType string

var extractCmd = &cobra.Command{
	Use:   "extract <file|->",
	Short: "Extract and score a single document, printing the record as JSON",
	Long: `Extract reads one document and prints its record, extraction strategy,
labels kept under fallback keys and the predicate outcomes.
With "-" the document is read from stdin; --type selects text or html.`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().StringVar(&extractType, "type", "text", "input type for stdin: text|html")
	rootCmd.AddCommand(extractCmd)
}

type extractOutput struct {
	Record       internal.WaxRecord `json:"record"`
	Unrecognized []string           `json:"unrecognized,omitempty"`
	Suggestions  []alias.Suggestion `json:"suggestions,omitempty"`
}

func runExtract(cmd *cobra.Command, args []string) error {
	inputType, source, input := "file", args[0], args[0]
	if args[0] == "-" {
		blob, err := io.ReadAll(io.LimitReader(cmd.InOrStdin(), 32<<20))
		if err != nil {
			return err
		}
		inputType, source, input = extractType, "stdin", string(blob)
	}

	doc, err := pipeline.DocumentFromInput(cmd.Context(), state.decoder, inputType, source, input)
	if err != nil {
		return err
	}
	rec, ex, err := state.extractor.Record(doc)
	if err != nil {
		return err
	}
	state.scorer.Apply(&rec)

	table := state.profile.Table()
	out := extractOutput{Record: rec, Unrecognized: ex.Unrecognized}
	for _, label := range ex.Unrecognized {
		if s, ok := table.Suggest(label, 0.6); ok {
			out.Suggestions = append(out.Suggestions, s)
		}
	}
	return printJSON(cmd.OutOrStdout(), out)
}
