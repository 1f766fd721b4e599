package ocr

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var reBoxNoise = regexp.MustCompile(`[|_]{3,}`)

type Config struct {
	Tesseract   string
	Lang        string
	TessdataDir string
	PSM         int
	Timeout     time.Duration
}

// Engine recognizes text in scanned spec sheets with the tesseract CLI.
type Engine struct {
	cfg    Config
	runner Runner
}

func NewEngine(cfg Config, runner Runner) *Engine {
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Lang == "" {
		cfg.Lang = "eng+deu"
	}
	if runner == nil {
		runner = ExecRunner{Log: zerolog.Nop()}
	}
	return &Engine{cfg: cfg, runner: runner}
}

// Recognize returns the text of the image at path.
func (e *Engine) Recognize(ctx context.Context, path string) (string, error) {
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	// tesseract <file> stdout -l <lang> [--psm N] [--tessdata-dir D]
	args := []string{path, "stdout", "-l", e.cfg.Lang}
	if e.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(e.cfg.PSM))
	}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}

	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return "", fmt.Errorf("tesseract: %w: %s", err, strings.TrimSpace(string(errb)))
	}
	return reBoxNoise.ReplaceAllString(string(out), " "), nil
}
