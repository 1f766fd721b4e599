package commands

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"waxscore/internal"
	"waxscore/internal/pipeline"
)

var (
	manualSet    []string
	manualSource string
	manualStore  bool
)

var manualCmd = &cobra.Command{
	Use:   "manual",
	Short: "Score values entered by hand",
	Example: `  waxscore manual --set "Drop point=108" --set "Density=0,94" --set "Type=Fischer-Tropsch"`,
	RunE: runManual,
}

func init() {
	manualCmd.Flags().StringArrayVar(&manualSet, "set", nil, "Label=Value pair (repeatable)")
	manualCmd.Flags().StringVar(&manualSource, "source", "manual entry", "source name recorded with the entry")
	manualCmd.Flags().BoolVar(&manualStore, "store", false, "persist the entry in the database")
	_ = manualCmd.MarkFlagRequired("set")
	rootCmd.AddCommand(manualCmd)
}

func runManual(cmd *cobra.Command, args []string) error {
	fields, err := pipeline.ParseAssignments(manualSet)
	if err != nil {
		return err
	}
	rec, err := state.extractor.Manual(manualSource, fields)
	if err != nil {
		return err
	}
	state.scorer.Apply(&rec)

	if manualStore {
		db, err := state.openDB()
		if err != nil {
			return err
		}
		runID := uuid.NewString()
		if err := db.InsertRun(runID, "manual", nil, nil, map[string]int{"documents": 1}); err != nil {
			return err
		}
		if err := db.InsertRecords(runID, nil, []internal.WaxRecord{rec}); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "run %s stored\n", runID)
	}

	renderRanking(cmd.OutOrStdout(), []internal.WaxRecord{rec}, state.scorer.MaxScore())
	for _, o := range rec.Outcomes {
		mark := " "
		if o.Matched {
			mark = "x"
		}
		note := ""
		if o.UsedDefault {
			note = " (missing)"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "[%s] %-22s %d%s\n", mark, o.Name, o.Points, note)
	}
	return nil
}
