package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"waxscore/internal/config"
	"waxscore/internal/listener"
	"waxscore/internal/logging"
	"waxscore/internal/metrics"
	"waxscore/internal/ocr"
	"waxscore/internal/pipeline"
	"waxscore/internal/profile"
	"waxscore/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)
	log := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: os.Stderr})

	p, err := profile.Load(cfg.ProfilePath)
	must(err)
	scorer, err := p.Scorer()
	must(err)
	minFields := p.MinFields
	if cfg.ExtractMinFields > 0 {
		minFields = cfg.ExtractMinFields
	}

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	recorder := metrics.New()
	engine := ocr.NewEngine(ocr.Config{
		Tesseract:   cfg.TesseractBin,
		Lang:        cfg.TesseractLang,
		TessdataDir: cfg.TessdataDir,
		Timeout:     cfg.OCRTimeout(),
	}, ocr.ExecRunner{Log: log})
	processor := pipeline.NewProcessingService(pipeline.ServiceOptions{
		Decoder:   pipeline.NewDecoder(engine),
		Table:     p.Table(),
		Extractor: pipeline.NewExtractor(p.Table(), minFields),
		Scorer:    scorer,
		DB:        db,
		Observer:  recorder,
		Logger:    log,
		Workers:   cfg.Workers,
	})
	svc := listener.NewService(db, cfg, processor, log)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return recorder.Serve(ctx, cfg.MetricsAddr, log) })
	g.Go(func() error {
		defer cancel()
		return svc.Run(ctx)
	})
	must(g.Wait())
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
