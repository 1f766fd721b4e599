package connectors

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"waxscore/internal/storage"
)

type FetchService struct {
	connector MailConnector
	store     *RawMailStore
	log       zerolog.Logger
}

type FetchResult struct {
	Fetched int
	Stored  int
}

func NewFetchService(db *storage.DB, rawMailDir string, connector MailConnector, log zerolog.Logger) *FetchService {
	return &FetchService{
		connector: connector,
		store:     NewRawMailStore(db, rawMailDir),
		log:       log,
	}
}

// FetchAndStore pulls up to max messages and stores each one. Messages already
// processed keep their status; a refetch only refreshes headers.
func (s *FetchService) FetchAndStore(ctx context.Context, label string, max int) (FetchResult, error) {
	messages, err := s.connector.FetchInbox(ctx, label, max)
	if err != nil {
		return FetchResult{}, err
	}

	stored := 0
	for _, msg := range messages {
		row, err := s.store.Store(msg)
		if errors.Is(err, ErrEmptyMessage) {
			s.log.Warn().Err(err).Msg("mail skipped")
			continue
		}
		if err != nil {
			return FetchResult{Fetched: len(messages), Stored: stored}, err
		}
		s.log.Debug().Str("provider", row.Provider).Str("messageId", row.MessageID).Str("status", row.Status).Msg("mail stored")
		stored++
	}

	return FetchResult{Fetched: len(messages), Stored: stored}, nil
}
