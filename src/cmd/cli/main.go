// Command translate-cli recognizes and translates text in a PNG image
// without touching the screen. Useful for scripting and for debugging the
// OCR and translation stages in isolation.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"screen-translator/src/config"
	"screen-translator/src/ocr"
	"screen-translator/src/translate"
)

const (
	maxFileSizeMB = 10
	maxFileSize   = maxFileSizeMB * 1024 * 1024
)

type cliOptions struct {
	filePath   string
	jsonOutput bool
	verbose    bool
	apiKeyPath string
	sourceLang string
	targetLang string
	ocrLang    string
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return runWithArgs(os.Args)
}

func runWithArgs(args []string) error {
	if len(args) == 0 {
		args = []string{"translate-cli"}
	}

	opts := &cliOptions{}
	cmd := newRootCmd(opts)
	cmd.SetArgs(args[1:])
	return cmd.Execute()
}

func newRootCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "translate-cli",
		Short:         "Recognize and translate text in a PNG image",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithOptions(*opts)
		},
	}

	cmd.Flags().StringVar(&opts.filePath, "file", "", "Path to PNG file (use '-' for stdin)")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output results as JSON")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose output to stderr")
	cmd.Flags().StringVar(&opts.apiKeyPath, "api-key-path", "", "Path to API key file (highest precedence)")
	cmd.Flags().StringVar(&opts.sourceLang, "source", "", "Source language (default: auto-detect)")
	cmd.Flags().StringVar(&opts.targetLang, "target", "", "Target language (default: TARGET_LANG from .env)")
	cmd.Flags().StringVar(&opts.ocrLang, "ocr-lang", "", "Tesseract language (default: OCR_LANG from .env)")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runWithOptions(opts cliOptions) error {
	// Configure logging BEFORE any other operations.
	if !opts.verbose {
		log.SetOutput(io.Discard)
	} else {
		log.SetOutput(os.Stderr)
		fmt.Fprintf(os.Stderr, "[verbose] Starting translate-cli\n")
	}

	cfg, err := config.LoadWithOptions(config.LoadOptions{
		APIKeyPathOverride: opts.apiKeyPath,
		SourceLangOverride: opts.sourceLang,
		TargetLangOverride: opts.targetLang,
	})
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if opts.verbose {
		fmt.Fprintf(os.Stderr, "[verbose] Config loaded: Model=%s Target=%s\n", cfg.Model, cfg.TargetLang)
		fmt.Fprintf(os.Stderr, "[verbose] Effective API key path: %s\n", cfg.APIKeyPath)
	}

	if cfg.APIKey == "" {
		return fmt.Errorf("OPENROUTER_API_KEY not found. Checked key file %s and OPENROUTER_API_KEY env var", cfg.APIKeyPath)
	}
	if cfg.Model == "" {
		return fmt.Errorf("MODEL is required in .env file")
	}

	ocrLang := cfg.OCRLang
	if opts.ocrLang != "" {
		ocrLang = opts.ocrLang
	}

	imageData, err := readInput(opts.filePath, opts.verbose)
	if err != nil {
		return err
	}
	if err := validatePNG(imageData); err != nil {
		return err
	}

	translator := translate.NewClient(translate.Config{
		APIKey:    cfg.APIKey,
		Model:     cfg.Model,
		Providers: cfg.Providers,
	})
	engine := ocr.NewTesseractEngine()
	defer engine.Close()

	return process(imageData, opts, cfg, ocrLang, engine, translator)
}

func readInput(filePath string, verbose bool) ([]byte, error) {
	var data []byte
	var err error
	if filePath == "-" {
		if verbose {
			fmt.Fprintf(os.Stderr, "[verbose] Reading image from stdin\n")
		}
		data, err = io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read from stdin: %w", err)
		}
	} else {
		if verbose {
			fmt.Fprintf(os.Stderr, "[verbose] Reading image from file: %s\n", filePath)
		}
		data, err = os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read file %s: %w", filePath, err)
		}
	}

	if len(data) == 0 {
		return nil, fmt.Errorf("input file is empty")
	}
	if len(data) > maxFileSize {
		return nil, fmt.Errorf("input file exceeds maximum size of %d MB", maxFileSizeMB)
	}
	return data, nil
}

var pngMagic = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}

func validatePNG(data []byte) error {
	if len(data) < len(pngMagic) || !bytes.Equal(data[:len(pngMagic)], pngMagic) {
		return fmt.Errorf("input is not a valid PNG file (invalid magic number)")
	}
	return nil
}

func process(imageData []byte, opts cliOptions, cfg *config.Config, ocrLang string, engine ocr.Engine, translator translate.Translator) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	start := time.Now()
	boxes, err := engine.ExtractText(ctx, imageData, ocrLang)
	if err != nil {
		return fmt.Errorf("recognition failed: %w", err)
	}
	if opts.verbose {
		fmt.Fprintf(os.Stderr, "[verbose] Recognized %d text boxes in %v\n", len(boxes), time.Since(start))
	}

	results := make([]BoxResult, 0, len(boxes))
	for _, b := range boxes {
		translated, err := translator.Translate(ctx, b.Text, cfg.TargetLang, cfg.SourceLang)
		if err != nil {
			if opts.verbose {
				fmt.Fprintf(os.Stderr, "[verbose] Translation failed for %q: %v\n", b.Text, err)
			}
			translated = b.Text
		}
		results = append(results, BoxResult{
			Original:   b.Text,
			Translated: translated,
			X:          b.X,
			Y:          b.Y,
			Width:      b.Width,
			Height:     b.Height,
			Confidence: b.Confidence,
		})
	}

	return output(results, opts, time.Since(start))
}

type BoxResult struct {
	Original   string  `json:"original"`
	Translated string  `json:"translated"`
	X          int     `json:"x"`
	Y          int     `json:"y"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Confidence float64 `json:"confidence"`
}

type TranslationResult struct {
	Boxes     []BoxResult `json:"boxes"`
	Source    string      `json:"source"`
	Timestamp string      `json:"timestamp"`
	Duration  float64     `json:"duration_seconds"`
	BoxCount  int         `json:"box_count"`
}

func output(results []BoxResult, opts cliOptions, elapsed time.Duration) error {
	if opts.jsonOutput {
		result := TranslationResult{
			Boxes:     results,
			Source:    opts.filePath,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Duration:  elapsed.Seconds(),
			BoxCount:  len(results),
		}
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(result); err != nil {
			return fmt.Errorf("failed to encode JSON output: %w", err)
		}
		return nil
	}

	lines := make([]string, 0, len(results))
	for _, r := range results {
		lines = append(lines, r.Translated)
	}
	fmt.Println(strings.Join(lines, "\n"))
	return nil
}
