package catalog

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"waxscore/internal/config"
	"waxscore/internal/storage"
)

const lastSyncKey = "sheets.last_sync"

type SyncService struct {
	db       *storage.DB
	client   *Client
	inboxDir string
	log      zerolog.Logger
}

type SyncResult struct {
	Downloaded []string
	Unchanged  []string
	Failed     map[string]string
}

func NewSyncService(db *storage.DB, cfg config.Config, log zerolog.Logger) *SyncService {
	return &SyncService{db: db, client: NewClient(cfg), inboxDir: cfg.InboxDir, log: log}
}

// Sync downloads every sheet of the manifest into the inbox directory. Sheets
// whose ETag is unchanged since the last sync are skipped. One failing sheet
// does not stop the others.
func (s *SyncService) Sync(ctx context.Context, m Manifest) (SyncResult, error) {
	res := SyncResult{Failed: map[string]string{}}
	if err := os.MkdirAll(s.inboxDir, 0o755); err != nil {
		return res, err
	}

	for _, sheet := range m.Sheets {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		log := s.log.With().Str("sheet", sheet.Name).Logger()

		etagKey := "sheets.etag." + sheet.Name
		etag := ""
		if v, err := s.db.GetMetadata(etagKey); err != nil {
			return res, err
		} else if v != nil {
			etag = *v
		}

		dl, err := s.client.Fetch(ctx, sheet.URL, etag)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			log.Warn().Err(err).Msg("sheet download failed")
			res.Failed[sheet.Name] = err.Error()
			continue
		}
		if dl.NotModified {
			log.Debug().Msg("sheet unchanged")
			res.Unchanged = append(res.Unchanged, sheet.Name)
			continue
		}

		path := filepath.Join(s.inboxDir, sheet.fileName(dl.ContentType))
		if err := os.WriteFile(path, dl.Body, 0o644); err != nil {
			return res, err
		}
		if dl.ETag != "" {
			if err := s.db.SetMetadata(etagKey, dl.ETag); err != nil {
				return res, err
			}
		}
		log.Info().Str("path", path).Int("bytes", len(dl.Body)).Msg("sheet downloaded")
		res.Downloaded = append(res.Downloaded, path)
	}

	if err := s.db.SetMetadata(lastSyncKey, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return res, err
	}
	return res, nil
}
