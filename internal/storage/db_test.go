package storage

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waxscore/internal"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRecordsRoundTrip(t *testing.T) {
	db := openTestDB(t)
	runID := uuid.NewString()
	require.NoError(t, db.InsertRun(runID, "cli", nil, map[string]float64{"totalMs": 3}, map[string]int{"documents": 2, "failed": 1}))

	records := []internal.WaxRecord{
		{SourceFile: "a.pdf", Score: 3, Strategy: internal.StrategyLines, Numeric: map[internal.Key]float64{internal.DropMeltingPoint: 110}, Text: map[internal.Key]string{}},
		{SourceFile: "b.pdf", Score: 6, Strategy: internal.StrategyTabular, Numeric: map[internal.Key]float64{internal.Density23C: 0.93}, Text: map[internal.Key]string{internal.Type: "FT wax"},
			Outcomes: []internal.Outcome{{Name: "density-23c", Property: internal.Density23C, Matched: true, Points: 2}}},
	}
	require.NoError(t, db.InsertRecords(runID, nil, records))

	got, err := db.ListRecordsByRun(runID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b.pdf", got[0].SourceFile)
	assert.Equal(t, 0.93, got[0].Numeric[internal.Density23C])
	assert.Equal(t, "FT wax", got[0].Text[internal.Type])
	require.Len(t, got[0].Outcomes, 1)
	assert.True(t, got[0].Outcomes[0].Matched)

	runs, err := db.ListRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 2, runs[0].Documents)
	assert.Equal(t, 1, runs[0].Failed)
}

func TestRecordsKeepInfiniteValues(t *testing.T) {
	db := openTestDB(t)
	runID := uuid.NewString()
	require.NoError(t, db.InsertRun(runID, "cli", nil, nil, nil))
	require.NoError(t, db.InsertRecords(runID, nil, []internal.WaxRecord{{
		SourceFile: "overflow.txt",
		Numeric:    map[internal.Key]float64{internal.Viscosity135C: math.Inf(1), internal.Density23C: 0.93},
	}}))

	got, err := db.ListRecordsByRun(runID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, math.IsInf(got[0].Numeric[internal.Viscosity135C], 1))
	assert.Equal(t, 0.93, got[0].Numeric[internal.Density23C])
}

func TestEmailLifecycle(t *testing.T) {
	db := openTestDB(t)
	email, err := db.UpsertEmail("imap", "<m1@vendor>", "Datenblatt", "sales@vendor", "2026-10-01T00:00:00Z", "h", "/tmp/m1.eml", "fetched")
	require.NoError(t, err)

	pending, err := db.ListEmailsByStatus("fetched", 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	runID := uuid.NewString()
	require.NoError(t, db.InsertRun(runID, "mail", &email.ID, nil, nil))
	require.NoError(t, db.InsertRecords(runID, &email.ID, []internal.WaxRecord{{SourceFile: "m1.eml", Numeric: map[internal.Key]float64{}}}))
	require.NoError(t, db.ClearEmailRecords(email.ID))
	recs, err := db.ListRecordsByEmail(email.ID)
	require.NoError(t, err)
	assert.Empty(t, recs)

	require.NoError(t, db.UpdateEmailStatus(email.ID, "processed"))
	again, err := db.MustEmailByProviderMessageID("imap", "<m1@vendor>")
	require.NoError(t, err)
	assert.Equal(t, "processed", again.Status)

	_, err = db.MustEmailByProviderMessageID("imap", "<missing>")
	assert.Error(t, err)
}

func TestMetadata(t *testing.T) {
	db := openTestDB(t)
	v, err := db.GetMetadata("sheets.last_sync")
	require.NoError(t, err)
	assert.Nil(t, v)

	require.NoError(t, db.SetMetadata("sheets.last_sync", "2026-10-17T00:00:00Z"))
	v, err = db.GetMetadata("sheets.last_sync")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "2026-10-17T00:00:00Z", *v)
}

func TestMarkDocument(t *testing.T) {
	db := openTestDB(t)
	known, err := db.HasDocument("abc")
	require.NoError(t, err)
	assert.False(t, known)

	added, err := db.MarkDocument("/inbox/a.pdf", "abc", "run-1")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = db.MarkDocument("/inbox/copy-of-a.pdf", "abc", "run-2")
	require.NoError(t, err)
	assert.False(t, added)

	known, err = db.HasDocument("abc")
	require.NoError(t, err)
	assert.True(t, known)
}
