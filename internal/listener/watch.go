package listener

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"waxscore/internal/pipeline"
	"waxscore/internal/storage"
)

// Watcher scores spec sheets dropped into a directory. Bursts of events for
// the same file are collapsed by waiting for the debounce interval to pass
// without new events. Content already scored (same sha256) is skipped.
type Watcher struct {
	dir       string
	debounce  time.Duration
	processor *pipeline.ProcessingService
	db        *storage.DB
	log       zerolog.Logger
}

func NewWatcher(dir string, debounce time.Duration, processor *pipeline.ProcessingService, db *storage.DB, log zerolog.Logger) *Watcher {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	return &Watcher{dir: dir, debounce: debounce, processor: processor, db: db, log: log}
}

func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()
	if err := fw.Add(w.dir); err != nil {
		return err
	}
	w.log.Info().Str("dir", w.dir).Msg("watching inbox")

	if err := w.ScanExisting(ctx); err != nil {
		w.log.Error().Err(err).Msg("initial scan failed")
	}

	pending := map[string]struct{}{}
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if _, err := pipeline.KindForName(ev.Name); err != nil {
				continue
			}
			pending[ev.Name] = struct{}{}
			timer.Reset(w.debounce)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn().Err(err).Msg("watch error")
		case <-timer.C:
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			pending = map[string]struct{}{}
			if err := w.Handle(ctx, paths); err != nil {
				w.log.Error().Err(err).Msg("scoring new sheets failed")
			}
		}
	}
}

// ScanExisting scores supported files already present in the directory.
func (w *Watcher) ScanExisting(ctx context.Context) error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return err
	}
	paths := []string{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, err := pipeline.KindForName(e.Name()); err != nil {
			continue
		}
		paths = append(paths, filepath.Join(w.dir, e.Name()))
	}
	return w.Handle(ctx, paths)
}

// Handle scores the given files, skipping content seen before, and records
// the hashes of the files that produced a record. Files that failed to decode
// stay unmarked so a later scan picks them up again.
func (w *Watcher) Handle(ctx context.Context, paths []string) error {
	sort.Strings(paths)
	fresh := []string{}
	hashes := map[string]string{}
	for _, p := range paths {
		hash, err := fileHash(p)
		if err != nil {
			w.log.Debug().Err(err).Str("path", p).Msg("file vanished before scoring")
			continue
		}
		if w.db != nil {
			known, err := w.db.HasDocument(hash)
			if err != nil {
				return err
			}
			if known {
				continue
			}
		}
		hashes[p] = hash
		fresh = append(fresh, p)
	}
	if len(fresh) == 0 {
		return nil
	}

	res, err := w.processor.ProcessFiles(ctx, fresh)
	if err != nil {
		return err
	}
	failed := map[string]struct{}{}
	for _, f := range res.Failed {
		failed[f.SourceFile] = struct{}{}
		w.log.Warn().Str("path", f.SourceFile).Str("error", f.Error).Msg("sheet not scored, will retry on next change")
	}
	if w.db != nil {
		for _, p := range fresh {
			if _, ok := failed[p]; ok {
				continue
			}
			if _, err := w.db.MarkDocument(p, hashes[p], res.RunID); err != nil {
				return err
			}
		}
	}
	for _, rec := range res.Records {
		w.log.Info().Str("source", rec.SourceFile).Int("score", rec.Score).Msg("sheet scored")
	}
	return nil
}

func fileHash(path string) (string, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(blob)
	return hex.EncodeToString(sum[:]), nil
}
