package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"waxscore/internal"
	"waxscore/internal/alias"
	"waxscore/internal/scoring"
	"waxscore/internal/storage"
)

// Observer receives per-document telemetry. metrics.Recorder implements it.
type Observer interface {
	ObserveDocument(kind internal.SourceKind, rec internal.WaxRecord, fallback bool, elapsed time.Duration)
	ObserveFailure(kind internal.SourceKind)
}

type nopObserver struct{}

func (nopObserver) ObserveDocument(internal.SourceKind, internal.WaxRecord, bool, time.Duration) {}
func (nopObserver) ObserveFailure(internal.SourceKind)                                           {}

type ServiceOptions struct {
	Decoder   *Decoder
	Table     *alias.Table
	Extractor *Extractor
	Scorer    *scoring.Scorer
	// DB is optional; without it runs are not persisted and mail processing
	// is unavailable.
	DB       *storage.DB
	Observer Observer
	Logger   zerolog.Logger
	Workers  int
}

type ProcessingService struct {
	decoder   *Decoder
	table     *alias.Table
	extractor *Extractor
	scorer    *scoring.Scorer
	db        *storage.DB
	observer  Observer
	log       zerolog.Logger
	workers   int
}

func NewProcessingService(opts ServiceOptions) *ProcessingService {
	if opts.Decoder == nil {
		opts.Decoder = NewDecoder(nil)
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	return &ProcessingService{
		decoder:   opts.Decoder,
		table:     opts.Table,
		extractor: opts.Extractor,
		scorer:    opts.Scorer,
		db:        opts.DB,
		observer:  opts.Observer,
		log:       opts.Logger,
		workers:   opts.Workers,
	}
}

type Failure struct {
	SourceFile string `json:"sourceFile"`
	Error      string `json:"error"`
}

type RunResult struct {
	RunID   string               `json:"runId"`
	Records []internal.WaxRecord `json:"records"`
	Failed  []Failure            `json:"failed,omitempty"`
	Elapsed time.Duration        `json:"elapsed"`
}

// ScoreDocument extracts and scores one decoded document.
func (s *ProcessingService) ScoreDocument(doc internal.Document) (internal.WaxRecord, Extraction, error) {
	rec, ex, err := s.extractor.Record(doc)
	if err != nil {
		return internal.WaxRecord{}, Extraction{}, err
	}
	result := s.scorer.Apply(&rec)

	s.log.Info().
		Str("source", doc.SourceFile).
		Str("kind", string(doc.Kind)).
		Str("strategy", string(rec.Strategy)).
		Int("fields", ex.Fields.Len()).
		Int("score", result.Score).
		Msg("document scored")
	if len(ex.Unrecognized) > 0 {
		s.log.Debug().Str("source", doc.SourceFile).Strs("labels", ex.Unrecognized).Msg("labels kept under fallback keys")
	}
	for _, o := range result.Outcomes {
		s.log.Debug().
			Str("source", doc.SourceFile).
			Str("predicate", o.Name).
			Bool("matched", o.Matched).
			Bool("default", o.UsedDefault).
			Int("points", o.Points).
			Msg("predicate evaluated")
	}
	return rec, ex, nil
}

// ProcessFiles decodes, extracts and scores every path concurrently. A file
// that cannot be decoded is reported in Failed and does not stop the run.
// Records come back ranked by score.
func (s *ProcessingService) ProcessFiles(ctx context.Context, paths []string) (RunResult, error) {
	start := time.Now()
	runID := uuid.NewString()
	log := s.log.With().Str("run", runID).Logger()

	records := make([]*internal.WaxRecord, len(paths))
	failures := make([]*Failure, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			docStart := time.Now()
			kind, _ := KindForName(path)
			doc, err := s.decoder.DecodeFile(gctx, path)
			if err != nil {
				log.Warn().Err(err).Str("source", path).Msg("decode failed")
				s.observer.ObserveFailure(kind)
				failures[i] = &Failure{SourceFile: path, Error: err.Error()}
				return nil
			}
			rec, ex, err := s.ScoreDocument(doc)
			if err != nil {
				failures[i] = &Failure{SourceFile: path, Error: err.Error()}
				return nil
			}
			s.observer.ObserveDocument(doc.Kind, rec, ex.Fallback, time.Since(docStart))
			records[i] = &rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return RunResult{}, err
	}

	res := RunResult{RunID: runID}
	for i := range paths {
		if records[i] != nil {
			res.Records = append(res.Records, *records[i])
		}
		if failures[i] != nil {
			res.Failed = append(res.Failed, *failures[i])
		}
	}
	internal.Rank(res.Records)
	res.Elapsed = time.Since(start)

	if err := s.persist(runID, "files", nil, res); err != nil {
		return res, err
	}
	log.Info().Int("documents", len(res.Records)).Int("failed", len(res.Failed)).Dur("elapsed", res.Elapsed).Msg("run complete")
	return res, nil
}

func (s *ProcessingService) ProcessByProviderMessageID(ctx context.Context, provider, messageID string) (RunResult, error) {
	if s.db == nil {
		return RunResult{}, fmt.Errorf("mail processing requires a database")
	}
	email, err := s.db.MustEmailByProviderMessageID(provider, messageID)
	if err != nil {
		return RunResult{}, err
	}
	return s.ProcessEmail(ctx, email)
}

// ProcessPending processes fetched emails oldest first and returns how many
// emails and records were handled.
func (s *ProcessingService) ProcessPending(ctx context.Context, limit int, provider string) (int, int, error) {
	if s.db == nil {
		return 0, 0, fmt.Errorf("mail processing requires a database")
	}
	pending, err := s.db.ListEmailsByStatus("fetched", limit)
	if err != nil {
		return 0, 0, err
	}
	processedEmails := 0
	processedRecords := 0
	for _, email := range pending {
		if provider != "" && email.Provider != provider {
			continue
		}
		res, err := s.ProcessEmail(ctx, email)
		if err != nil {
			return processedEmails, processedRecords, err
		}
		processedEmails++
		processedRecords += len(res.Records)
	}
	return processedEmails, processedRecords, nil
}

// ProcessEmail scores every attachment of a stored mail separately, plus the
// body when it carries properties itself. Mails that do not look like spec
// sheets are marked skipped.
func (s *ProcessingService) ProcessEmail(ctx context.Context, email internal.EmailRow) (RunResult, error) {
	if s.db == nil {
		return RunResult{}, fmt.Errorf("mail processing requires a database")
	}
	start := time.Now()
	runID := uuid.NewString()
	log := s.log.With().Str("run", runID).Int("email", email.ID).Logger()

	raw, err := os.ReadFile(email.RawRef)
	if err != nil {
		return RunResult{}, err
	}
	if err := s.db.ClearEmailRecords(email.ID); err != nil {
		return RunResult{}, err
	}

	detect, err := DetectSpecSheetMail(s.table, raw, email.Subject)
	if err != nil {
		return RunResult{}, err
	}
	res := RunResult{RunID: runID}
	if !detect.IsSpecSheet {
		log.Info().Str("subject", email.Subject).Float64("detectScore", detect.Score).Msg("email skipped")
		if err := s.db.UpdateEmailStatus(email.ID, "skipped"); err != nil {
			return RunResult{}, err
		}
		res.Elapsed = time.Since(start)
		return res, s.persist(runID, "mail", &email.ID, res)
	}

	name := emailSourceName(email)
	parts, err := s.decoder.DecodeEmailParts(ctx, name, raw)
	if err != nil {
		s.observer.ObserveFailure(internal.SourceEmail)
		return RunResult{}, err
	}
	for _, part := range parts {
		rec, ex, err := s.ScoreDocument(part)
		if err != nil {
			res.Failed = append(res.Failed, Failure{SourceFile: part.SourceFile, Error: err.Error()})
			continue
		}
		// A body without properties next to real attachments is just a cover letter.
		if part.Kind == internal.SourceEmail && len(rec.Numeric)+len(rec.Text) == 0 && len(res.Records) > 0 {
			continue
		}
		s.observer.ObserveDocument(part.Kind, rec, ex.Fallback, time.Since(start))
		res.Records = append(res.Records, rec)
	}
	internal.Rank(res.Records)
	res.Elapsed = time.Since(start)

	if err := s.persist(runID, "mail", &email.ID, res); err != nil {
		return res, err
	}
	if err := s.db.UpdateEmailStatus(email.ID, "processed"); err != nil {
		return res, err
	}
	log.Info().Int("records", len(res.Records)).Dur("elapsed", res.Elapsed).Msg("email processed")
	return res, nil
}

func (s *ProcessingService) persist(runID, origin string, emailID *int, res RunResult) error {
	if s.db == nil {
		return nil
	}
	timings := map[string]float64{"totalMs": float64(res.Elapsed.Milliseconds())}
	counts := map[string]int{"documents": len(res.Records), "failed": len(res.Failed)}
	if err := s.db.InsertRun(runID, origin, emailID, timings, counts); err != nil {
		return fmt.Errorf("store run: %w", err)
	}
	if len(res.Records) == 0 {
		return nil
	}
	if err := s.db.InsertRecords(runID, emailID, res.Records); err != nil {
		return fmt.Errorf("store records: %w", err)
	}
	return nil
}

func emailSourceName(email internal.EmailRow) string {
	base := filepath.Base(email.RawRef)
	if subject := strings.TrimSpace(email.Subject); subject != "" {
		return subject + " (" + base + ")"
	}
	return base
}
