package commands

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"waxscore/internal/pipeline"
)

var (
	exportRun string
	exportOut string
	runsLimit int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the records of a stored run as CSV or XLSX",
	RunE:  runExport,
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List stored runs, newest first",
	RunE:  runRuns,
}

func init() {
	exportCmd.Flags().StringVar(&exportRun, "run", "", "run id")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output path; .csv or .xlsx")
	_ = exportCmd.MarkFlagRequired("run")
	_ = exportCmd.MarkFlagRequired("out")
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "number of runs to show")
	rootCmd.AddCommand(exportCmd, runsCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	db, err := state.openDB()
	if err != nil {
		return err
	}
	records, err := db.ListRecordsByRun(exportRun)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("run %s has no records", exportRun)
	}

	switch strings.ToLower(filepath.Ext(exportOut)) {
	case ".csv":
		err = pipeline.ExportCSV(records, exportOut)
	case ".xlsx":
		err = pipeline.ExportXLSX(records, exportOut)
	default:
		return fmt.Errorf("unsupported export format %q", filepath.Ext(exportOut))
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d records written to %s\n", len(records), exportOut)
	return nil
}

func runRuns(cmd *cobra.Command, args []string) error {
	db, err := state.openDB()
	if err != nil {
		return err
	}
	runs, err := db.ListRuns(runsLimit)
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader([]string{"Run", "Origin", "Documents", "Failed", "Created"})
	for _, r := range runs {
		table.Append([]string{r.ID, r.Origin, fmt.Sprint(r.Documents), fmt.Sprint(r.Failed), r.CreatedAt})
	}
	table.Render()
	return nil
}
