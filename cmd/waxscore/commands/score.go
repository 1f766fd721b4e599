package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"waxscore/internal/pipeline"
	"waxscore/internal/storage"
)

var (
	scoreCSV   string
	scoreXLSX  string
	scoreStore bool
	scoreJSON  bool
)

var scoreCmd = &cobra.Command{
	Use:   "score <files...>",
	Short: "Score spec sheets and print a ranking",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runScore,
}

func init() {
	scoreCmd.Flags().StringVar(&scoreCSV, "csv", "", "write the ranking as CSV to this path")
	scoreCmd.Flags().StringVar(&scoreXLSX, "xlsx", "", "write the ranking and predicate outcomes as XLSX to this path")
	scoreCmd.Flags().BoolVar(&scoreStore, "store", false, "persist the run in the database")
	scoreCmd.Flags().BoolVar(&scoreJSON, "json", false, "print records as JSON instead of a table")
	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, args []string) error {
	var db *storage.DB
	if scoreStore {
		var err error
		if db, err = state.openDB(); err != nil {
			return err
		}
	}

	res, err := state.processor(db).ProcessFiles(cmd.Context(), args)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if scoreJSON {
		if err := printJSON(out, res); err != nil {
			return err
		}
	} else {
		renderRanking(out, res.Records, state.scorer.MaxScore())
		for _, f := range res.Failed {
			fmt.Fprintf(cmd.ErrOrStderr(), "skipped %s: %s\n", f.SourceFile, f.Error)
		}
	}

	if scoreCSV != "" {
		if err := pipeline.ExportCSV(res.Records, scoreCSV); err != nil {
			return err
		}
		state.log.Info().Str("path", scoreCSV).Msg("csv written")
	}
	if scoreXLSX != "" {
		if err := pipeline.ExportXLSX(res.Records, scoreXLSX); err != nil {
			return err
		}
		state.log.Info().Str("path", scoreXLSX).Msg("xlsx written")
	}
	if scoreStore {
		fmt.Fprintf(out, "run %s stored\n", res.RunID)
	}
	return nil
}
