package commands

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waxscore/internal"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	t.Setenv("PROFILE_PATH", "")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("DB_PATH", t.TempDir()+"/app.db")
	color.NoColor = true

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		closeState()
	})
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestRenderRanking(t *testing.T) {
	color.NoColor = true
	records := []internal.WaxRecord{
		{SourceFile: "a.pdf", Score: 6, Numeric: map[internal.Key]float64{internal.DropMeltingPoint: 108}, Text: map[internal.Key]string{internal.Type: "FT wax"}},
		{SourceFile: "b.pdf", Score: 1, Numeric: map[internal.Key]float64{}},
	}

	var buf bytes.Buffer
	renderRanking(&buf, records, 12)
	out := buf.String()

	assert.Contains(t, out, "DROPMELTINGPOINT")
	assert.Contains(t, out, "6/12")
	assert.Contains(t, out, "FT wax")
	assert.Less(t, strings.Index(out, "a.pdf"), strings.Index(out, "b.pdf"))
}

func TestColorScoreWithoutMax(t *testing.T) {
	assert.Equal(t, "3/0", colorScore(3, 0))
}

func TestFormatNumber(t *testing.T) {
	rec := internal.WaxRecord{Numeric: map[internal.Key]float64{internal.Density23C: 0.94}}
	assert.Equal(t, "0.94", formatNumber(rec, internal.Density23C))
	assert.Equal(t, "-", formatNumber(rec, internal.AcidValue))
}

func TestManualCommand(t *testing.T) {
	out := execute(t, "manual", "--set", "Tropfpunkt=108", "--set", "Dichte=0,94")

	assert.Contains(t, out, "4/12")
	assert.Contains(t, out, "[x] drop-melting-point")
	assert.Contains(t, out, "[ ] viscosity-135c")
	assert.Contains(t, out, "(missing)")
}

func TestProfileDump(t *testing.T) {
	out := execute(t, "profile:dump")
	assert.Contains(t, out, "Tropfpunkt")
	assert.Contains(t, out, "fischer-tropsch-type")
}

func TestExecuteClosesDatabaseOnError(t *testing.T) {
	t.Setenv("PROFILE_PATH", "")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("DB_PATH", t.TempDir()+"/app.db")
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"export", "--run", "no-such-run", "--out", t.TempDir() + "/runs.csv"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := Execute()
	require.ErrorContains(t, err, "no-such-run")
	require.NotNil(t, state)
	assert.Nil(t, state.db)
}
