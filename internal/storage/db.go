package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	_ "modernc.org/sqlite"

	"waxscore/internal"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS emails (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  provider TEXT NOT NULL,
  messageId TEXT NOT NULL,
  subject TEXT,
  sender TEXT,
  receivedAt TEXT,
  hash TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'fetched',
  rawRef TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(provider, messageId)
);

CREATE TABLE IF NOT EXISTS runs (
  id TEXT PRIMARY KEY,
  origin TEXT NOT NULL,
  emailId INTEGER,
  timingsJson TEXT NOT NULL,
  countsJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(emailId) REFERENCES emails(id)
);

CREATE TABLE IF NOT EXISTS records (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  runId TEXT NOT NULL,
  emailId INTEGER,
  sourceFile TEXT NOT NULL,
  score INTEGER NOT NULL,
  strategy TEXT NOT NULL,
  numericJson TEXT NOT NULL,
  textJson TEXT NOT NULL,
  outcomesJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(runId) REFERENCES runs(id),
  FOREIGN KEY(emailId) REFERENCES emails(id)
);
CREATE INDEX IF NOT EXISTS idx_records_run ON records(runId);
CREATE INDEX IF NOT EXISTS idx_records_email ON records(emailId);

CREATE TABLE IF NOT EXISTS documents (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  path TEXT NOT NULL,
  hash TEXT NOT NULL UNIQUE,
  runId TEXT,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

func (d *DB) UpsertEmail(provider, messageID, subject, sender, receivedAt, hash, rawRef, status string) (internal.EmailRow, error) {
	_, err := d.conn.Exec(`
INSERT INTO emails (provider, messageId, subject, sender, receivedAt, hash, status, rawRef)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(provider, messageId) DO UPDATE SET
  subject=excluded.subject,
  sender=excluded.sender,
  receivedAt=excluded.receivedAt,
  hash=excluded.hash,
  rawRef=excluded.rawRef,
  updatedAt=CURRENT_TIMESTAMP
`, provider, messageID, subject, sender, receivedAt, hash, status, rawRef)
	if err != nil {
		return internal.EmailRow{}, err
	}

	row, err := d.GetEmailByProviderMessageID(provider, messageID)
	if err != nil {
		return internal.EmailRow{}, err
	}
	if row == nil {
		return internal.EmailRow{}, errors.New("failed to upsert email")
	}
	return *row, nil
}

const emailColumns = `id, provider, messageId, subject, sender, receivedAt, hash, status, rawRef`

func scanEmail(s interface{ Scan(...any) error }) (internal.EmailRow, error) {
	var row internal.EmailRow
	err := s.Scan(&row.ID, &row.Provider, &row.MessageID, &row.Subject, &row.Sender, &row.ReceivedAt, &row.Hash, &row.Status, &row.RawRef)
	return row, err
}

func (d *DB) GetEmailByProviderMessageID(provider, messageID string) (*internal.EmailRow, error) {
	row, err := scanEmail(d.conn.QueryRow(`SELECT `+emailColumns+` FROM emails WHERE provider = ? AND messageId = ?`, provider, messageID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) GetEmailByID(id int) (*internal.EmailRow, error) {
	row, err := scanEmail(d.conn.QueryRow(`SELECT `+emailColumns+` FROM emails WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) MustEmailByProviderMessageID(provider, messageID string) (internal.EmailRow, error) {
	row, err := d.GetEmailByProviderMessageID(provider, messageID)
	if err != nil {
		return internal.EmailRow{}, err
	}
	if row == nil {
		return internal.EmailRow{}, fmt.Errorf("email not found: provider=%s messageId=%s", provider, messageID)
	}
	return *row, nil
}

func (d *DB) ListEmailsByStatus(status string, limit int) ([]internal.EmailRow, error) {
	rows, err := d.conn.Query(`SELECT `+emailColumns+` FROM emails WHERE status = ? ORDER BY receivedAt ASC LIMIT ?`, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.EmailRow
	for rows.Next() {
		row, err := scanEmail(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) UpdateEmailStatus(emailID int, status string) error {
	_, err := d.conn.Exec(`UPDATE emails SET status = ?, updatedAt = CURRENT_TIMESTAMP WHERE id = ?`, status, emailID)
	return err
}

// ClearEmailRecords drops the records of earlier runs over the same email so
// reprocessing does not duplicate them.
func (d *DB) ClearEmailRecords(emailID int) error {
	_, err := d.conn.Exec(`DELETE FROM records WHERE emailId = ?`, emailID)
	return err
}

func (d *DB) InsertRun(runID, origin string, emailID *int, timings map[string]float64, counts map[string]int) error {
	timingsJSON, _ := json.Marshal(timings)
	countsJSON, _ := json.Marshal(counts)
	_, err := d.conn.Exec(`INSERT INTO runs (id, origin, emailId, timingsJson, countsJson) VALUES (?, ?, ?, ?, ?)`,
		runID, origin, emailID, string(timingsJSON), string(countsJSON))
	return err
}

func (d *DB) InsertRecords(runID string, emailID *int, records []internal.WaxRecord) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
INSERT INTO records (runId, emailId, sourceFile, score, strategy, numericJson, textJson, outcomesJson)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		numericJSON, err := encodeNumeric(r.Numeric)
		if err != nil {
			return err
		}
		textJSON, _ := json.Marshal(r.Text)
		outcomesJSON, _ := json.Marshal(r.Outcomes)
		if _, err := stmt.Exec(runID, emailID, r.SourceFile, r.Score, string(r.Strategy), string(numericJSON), string(textJSON), string(outcomesJSON)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

const recordColumns = `sourceFile, score, strategy, numericJson, textJson, outcomesJson`

func (d *DB) ListRecordsByRun(runID string) ([]internal.WaxRecord, error) {
	return d.queryRecords(`SELECT `+recordColumns+` FROM records WHERE runId = ? ORDER BY score DESC, id ASC`, runID)
}

func (d *DB) ListRecordsByEmail(emailID int) ([]internal.WaxRecord, error) {
	return d.queryRecords(`SELECT `+recordColumns+` FROM records WHERE emailId = ? ORDER BY score DESC, id ASC`, emailID)
}

func (d *DB) queryRecords(query string, args ...any) ([]internal.WaxRecord, error) {
	rows, err := d.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.WaxRecord
	for rows.Next() {
		var r internal.WaxRecord
		var strategy, numericJSON, textJSON, outcomesJSON string
		if err := rows.Scan(&r.SourceFile, &r.Score, &strategy, &numericJSON, &textJSON, &outcomesJSON); err != nil {
			return nil, err
		}
		r.Strategy = internal.Strategy(strategy)
		r.Numeric = decodeNumeric(numericJSON)
		r.Text = map[internal.Key]string{}
		_ = json.Unmarshal([]byte(textJSON), &r.Text)
		_ = json.Unmarshal([]byte(outcomesJSON), &r.Outcomes)
		out = append(out, r)
	}
	return out, rows.Err()
}

// encodeNumeric writes non-finite values as strings, which JSON numbers cannot
// represent.
func encodeNumeric(values map[internal.Key]float64) ([]byte, error) {
	out := make(map[internal.Key]any, len(values))
	for k, v := range values {
		if math.IsInf(v, 0) || math.IsNaN(v) {
			out[k] = strconv.FormatFloat(v, 'g', -1, 64)
			continue
		}
		out[k] = v
	}
	return json.Marshal(out)
}

func decodeNumeric(blob string) map[internal.Key]float64 {
	raw := map[internal.Key]any{}
	_ = json.Unmarshal([]byte(blob), &raw)
	out := make(map[internal.Key]float64, len(raw))
	for k, v := range raw {
		switch v := v.(type) {
		case float64:
			out[k] = v
		case string:
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				out[k] = f
			}
		}
	}
	return out
}

func (d *DB) ListRuns(limit int) ([]internal.RunRow, error) {
	rows, err := d.conn.Query(`
SELECT r.id, r.origin, r.createdAt, r.countsJson
FROM runs r ORDER BY r.createdAt DESC, r.rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.RunRow
	for rows.Next() {
		var row internal.RunRow
		var countsJSON string
		if err := rows.Scan(&row.ID, &row.Origin, &row.CreatedAt, &countsJSON); err != nil {
			return nil, err
		}
		counts := map[string]int{}
		_ = json.Unmarshal([]byte(countsJSON), &counts)
		row.Documents = counts["documents"]
		row.Failed = counts["failed"]
		out = append(out, row)
	}
	return out, rows.Err()
}

// MarkDocument records that the content with the given sha256 was scored in
// runID. It reports false when the hash was already known.
func (d *DB) MarkDocument(path, hash, runID string) (bool, error) {
	res, err := d.conn.Exec(`INSERT INTO documents (path, hash, runId) VALUES (?, ?, ?) ON CONFLICT(hash) DO NOTHING`, path, hash, runID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (d *DB) HasDocument(hash string) (bool, error) {
	var n int
	if err := d.conn.QueryRow(`SELECT COUNT(1) FROM documents WHERE hash = ?`, hash).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}
