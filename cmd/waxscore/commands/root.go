package commands

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"waxscore/internal/config"
	"waxscore/internal/logging"
	"waxscore/internal/metrics"
	"waxscore/internal/ocr"
	"waxscore/internal/pipeline"
	"waxscore/internal/profile"
	"waxscore/internal/scoring"
	"waxscore/internal/storage"
)

var (
	profilePath string
	logLevel    string
	noColor     bool
)

// app holds what every command needs. The database is opened on demand.
type app struct {
	cfg       config.Config
	log       zerolog.Logger
	profile   profile.Profile
	scorer    *scoring.Scorer
	extractor *pipeline.Extractor
	decoder   *pipeline.Decoder
	metrics   *metrics.Recorder
	db        *storage.DB
}

var state *app

var rootCmd = &cobra.Command{
	Use:   "waxscore",
	Short: "Extract and score wax spec sheets",
	Long: `waxscore reads vendor spec sheets (PDF, spreadsheets, mails, scans),
normalizes their property tables and scores each product against a target
envelope defined in a profile.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if noColor {
			color.NoColor = true
		}
		a, err := newApp()
		if err != nil {
			return err
		}
		state = a
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&profilePath, "profile", "p", "", "profile YAML (defaults to PROFILE_PATH or the built-in profile)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (defaults to LOG_LEVEL)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

// Execute runs the root command and closes the database whether or not the
// command succeeded.
func Execute() error {
	err := rootCmd.Execute()
	closeState()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return err
	}
	return nil
}

func closeState() {
	if state != nil && state.db != nil {
		_ = state.db.Close()
		state.db = nil
	}
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if profilePath != "" {
		cfg.ProfilePath = profilePath
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	log := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: os.Stderr})

	p, err := profile.Load(cfg.ProfilePath)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	scorer, err := p.Scorer()
	if err != nil {
		return nil, err
	}
	minFields := p.MinFields
	if cfg.ExtractMinFields > 0 {
		minFields = cfg.ExtractMinFields
	}

	engine := ocr.NewEngine(ocr.Config{
		Tesseract:   cfg.TesseractBin,
		Lang:        cfg.TesseractLang,
		TessdataDir: cfg.TessdataDir,
		Timeout:     cfg.OCRTimeout(),
	}, ocr.ExecRunner{Log: log})

	return &app{
		cfg:       cfg,
		log:       log,
		profile:   p,
		scorer:    scorer,
		extractor: pipeline.NewExtractor(p.Table(), minFields),
		decoder:   pipeline.NewDecoder(engine),
		metrics:   metrics.New(),
	}, nil
}

func (a *app) openDB() (*storage.DB, error) {
	if a.db != nil {
		return a.db, nil
	}
	db, err := storage.Open(a.cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a.db = db
	return db, nil
}

func (a *app) processor(db *storage.DB) *pipeline.ProcessingService {
	return pipeline.NewProcessingService(pipeline.ServiceOptions{
		Decoder:   a.decoder,
		Table:     a.profile.Table(),
		Extractor: a.extractor,
		Scorer:    a.scorer,
		DB:        db,
		Observer:  a.metrics,
		Logger:    a.log,
		Workers:   a.cfg.Workers,
	})
}
