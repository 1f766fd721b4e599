package connectors

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waxscore/internal"
	"waxscore/internal/config"
	"waxscore/internal/storage"
)

type fakeConnector struct {
	messages []internal.FetchedMailMessage
	err      error
	label    string
}

func (f *fakeConnector) FetchInbox(_ context.Context, label string, max int) ([]internal.FetchedMailMessage, error) {
	f.label = label
	if f.err != nil {
		return nil, f.err
	}
	if len(f.messages) > max {
		return f.messages[:max], nil
	}
	return f.messages, nil
}

func TestFetchAndStore(t *testing.T) {
	tmp := t.TempDir()
	db, err := storage.Open(filepath.Join(tmp, "app.db"))
	require.NoError(t, err)
	defer db.Close()

	raw := []byte("Subject: Datenblatt\r\n\r\nTropfpunkt: 110\r\n")
	conn := &fakeConnector{messages: []internal.FetchedMailMessage{
		{Provider: "imap", MessageID: "<a@x>", Subject: "Datenblatt", Raw: raw},
		{Provider: "imap", MessageID: "<b@x>", Subject: "Datenblatt (copy)", Raw: raw},
	}}
	rawDir := filepath.Join(tmp, "raw")
	svc := NewFetchService(db, rawDir, conn, zerolog.Nop())

	res, err := svc.FetchAndStore(context.Background(), "INBOX", 10)
	require.NoError(t, err)
	assert.Equal(t, FetchResult{Fetched: 2, Stored: 2}, res)
	assert.Equal(t, "INBOX", conn.label)

	entries, err := os.ReadDir(rawDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	pending, err := db.ListEmailsByStatus("fetched", 10)
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

func TestFetchAndStoreSkipsEmptyMessages(t *testing.T) {
	tmp := t.TempDir()
	db, err := storage.Open(filepath.Join(tmp, "app.db"))
	require.NoError(t, err)
	defer db.Close()

	conn := &fakeConnector{messages: []internal.FetchedMailMessage{
		{Provider: "gmail", MessageID: "empty"},
		{Provider: "gmail", MessageID: "full", Raw: []byte("Subject: TDS\r\n\r\nDichte: 0,93\r\n")},
	}}
	res, err := NewFetchService(db, filepath.Join(tmp, "raw"), conn, zerolog.Nop()).FetchAndStore(context.Background(), "INBOX", 10)
	require.NoError(t, err)
	assert.Equal(t, FetchResult{Fetched: 2, Stored: 1}, res)

	_, err = db.MustEmailByProviderMessageID("gmail", "empty")
	assert.Error(t, err)
}

func TestFetchAndStoreConnectorError(t *testing.T) {
	tmp := t.TempDir()
	db, err := storage.Open(filepath.Join(tmp, "app.db"))
	require.NoError(t, err)
	defer db.Close()

	svc := NewFetchService(db, tmp, &fakeConnector{err: errors.New("auth failed")}, zerolog.Nop())
	_, err = svc.FetchAndStore(context.Background(), "INBOX", 10)
	assert.EqualError(t, err, "auth failed")
}

func TestNewRejectsUnknownProvider(t *testing.T) {
	_, err := New(config.Config{}, "pop3")
	assert.Error(t, err)

	_, err = New(config.Config{}, "imap")
	assert.ErrorContains(t, err, "IMAP_HOST")
}
