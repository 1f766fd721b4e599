package commands

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"waxscore/internal/catalog"
)

var sheetsScore bool

var sheetsSyncCmd = &cobra.Command{
	Use:   "sheets:sync",
	Short: "Download vendor spec sheets listed in the manifest into the inbox",
	RunE:  runSheetsSync,
}

func init() {
	sheetsSyncCmd.Flags().BoolVar(&sheetsScore, "score", false, "score the downloaded sheets afterwards")
	rootCmd.AddCommand(sheetsSyncCmd)
}

func runSheetsSync(cmd *cobra.Command, args []string) error {
	if err := state.cfg.Require("SHEETS_MANIFEST", state.cfg.SheetsManifest); err != nil {
		return err
	}
	manifest, err := catalog.LoadManifest(state.cfg.SheetsManifest)
	if err != nil {
		return err
	}
	db, err := state.openDB()
	if err != nil {
		return err
	}

	res, err := catalog.NewSyncService(db, state.cfg, state.log).Sync(cmd.Context(), manifest)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "downloaded %d, unchanged %d, failed %d\n", len(res.Downloaded), len(res.Unchanged), len(res.Failed))
	names := make([]string, 0, len(res.Failed))
	for name := range res.Failed {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(cmd.ErrOrStderr(), "  %s: %s\n", name, res.Failed[name])
	}

	if !sheetsScore || len(res.Downloaded) == 0 {
		return nil
	}
	run, err := state.processor(db).ProcessFiles(cmd.Context(), res.Downloaded)
	if err != nil {
		return err
	}
	renderRanking(out, run.Records, state.scorer.MaxScore())
	return nil
}
