package connectors

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"waxscore/internal"
	"waxscore/internal/storage"
)

var ErrEmptyMessage = errors.New("message has no raw content")

// RawMailStore keeps fetched mails as .eml files named by content hash and
// registers them for processing.
type RawMailStore struct {
	db  *storage.DB
	dir string
}

func NewRawMailStore(db *storage.DB, dir string) *RawMailStore {
	return &RawMailStore{db: db, dir: dir}
}

// Store writes msg once per distinct content and upserts its email row with
// status "fetched". Rows that were already processed keep their status.
func (s *RawMailStore) Store(msg internal.FetchedMailMessage) (internal.EmailRow, error) {
	if len(msg.Raw) == 0 {
		return internal.EmailRow{}, fmt.Errorf("%s %s: %w", msg.Provider, msg.MessageID, ErrEmptyMessage)
	}
	sum := sha256.Sum256(msg.Raw)
	hash := hex.EncodeToString(sum[:])

	path, err := s.writeRaw(hash, msg.Raw)
	if err != nil {
		return internal.EmailRow{}, err
	}
	return s.db.UpsertEmail(msg.Provider, msg.MessageID, msg.Subject, msg.From, msg.ReceivedAt, hash, path, "fetched")
}

func (s *RawMailStore) writeRaw(hash string, raw []byte) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(s.dir, hash+".eml")
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	tmp, err := os.CreateTemp(s.dir, ".incoming-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	return path, os.Rename(tmp.Name(), path)
}
