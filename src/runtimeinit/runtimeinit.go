// Package runtimeinit assembles the production object graph shared by the
// resident app and the one-shot CLI.
package runtimeinit

import (
	"context"
	"fmt"
	"log"
	"time"

	"screen-translator/src/clipboard"
	"screen-translator/src/config"
	"screen-translator/src/logutil"
	"screen-translator/src/ocr"
	"screen-translator/src/overlay"
	"screen-translator/src/pipeline"
	"screen-translator/src/translate"
	"screen-translator/src/watch"
)

type Options struct {
	LoadOptions config.LoadOptions
	// SkipClipboard leaves the clipboard uninitialized, for headless
	// invocations that only print to stdout.
	SkipClipboard bool
	// SkipPing skips the translator reachability probe.
	SkipPing bool
}

// Runtime holds the wired collaborators. Callers pick what they need; the
// CLI ignores the watch manager, the resident uses everything.
type Runtime struct {
	Config     *config.Config
	Translator *translate.Client
	Engine     *ocr.TesseractEngine
	Warmer     *ocr.Warmer
	Overlays   *overlay.Manager
	Processor  *pipeline.Processor
	Watcher    *watch.Manager
}

// Bootstrap loads configuration, verifies the translation backend and builds
// the pipeline. It does not start the overlay manager or any session; the
// caller decides when surfaces should come up.
func Bootstrap(opts Options) (*Runtime, error) {
	cfg, err := config.LoadWithOptions(opts.LoadOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logutil.Setup(cfg.EnableFileLogging)

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENROUTER_API_KEY is required. Checked key file %s and OPENROUTER_API_KEY env var", cfg.APIKeyPath)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("MODEL is required. Please set it in your .env file")
	}

	translator := translate.NewClient(translate.Config{
		APIKey:    cfg.APIKey,
		Model:     cfg.Model,
		Providers: cfg.Providers,
	})
	if !opts.SkipPing {
		pingCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		err := translator.Ping(pingCtx)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("translation backend check failed: %w", err)
		}
		log.Printf("Runtimeinit: translation backend reachable, model=%s key=%s", cfg.Model, logutil.RedactKey(cfg.APIKey))
	}

	if !opts.SkipClipboard {
		if err := clipboard.Init(); err != nil {
			return nil, fmt.Errorf("failed to initialize clipboard: %w", err)
		}
	}

	engine := ocr.NewTesseractEngine()
	warmer := ocr.NewWarmer()
	overlays := overlay.NewManager(overlay.NewSurface, nil)

	proc := &pipeline.Processor{
		Engine:        engine,
		Translator:    translator,
		Overlay:       overlays,
		Warmer:        warmer,
		WarmupTimeout: time.Duration(cfg.WarmupTimeoutSec) * time.Second,
		OCRLang:       cfg.OCRLang,
	}

	watcher := watch.NewManager(proc)
	watcher.SetTimings(
		time.Duration(cfg.ReadTimeSec)*time.Second,
		time.Duration(cfg.GapTimeSec)*time.Second,
	)

	return &Runtime{
		Config:     cfg,
		Translator: translator,
		Engine:     engine,
		Warmer:     warmer,
		Overlays:   overlays,
		Processor:  proc,
		Watcher:    watcher,
	}, nil
}

// Shutdown releases resources owned by the runtime.
func (r *Runtime) Shutdown() {
	r.Watcher.Stop()
	r.Overlays.Stop()
	if err := r.Engine.Close(); err != nil {
		log.Printf("Runtimeinit: OCR engine close failed: %v", err)
	}
}
