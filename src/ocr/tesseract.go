package ocr

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"
)

// TesseractEngine recognizes text with a persistent Tesseract client.
// The client is created lazily (or by Warm) because loading language data
// is the expensive part of the first call.
type TesseractEngine struct {
	mu     sync.Mutex
	client *gosseract.Client
	lang   string
}

func NewTesseractEngine() *TesseractEngine { return &TesseractEngine{} }

// Warm initializes the underlying client for lang ahead of the first
// ExtractText call. Safe to call concurrently with recognition.
func (e *TesseractEngine) Warm(lang string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ensureClientLocked(lang)
}

func (e *TesseractEngine) ensureClientLocked(lang string) error {
	if lang == "" {
		lang = "eng"
	}
	if e.client != nil && e.lang == lang {
		return nil
	}
	if e.client != nil {
		_ = e.client.Close()
		e.client = nil
	}
	client := gosseract.NewClient()
	if err := client.SetLanguage(lang); err != nil {
		_ = client.Close()
		return fmt.Errorf("failed to set OCR language %q: %w", lang, err)
	}
	// Sparse mode: screen regions mix scattered labels, dialogue lines and
	// HUD text rather than a single uniform block.
	if err := client.SetPageSegMode(gosseract.PSM_SPARSE_TEXT); err != nil {
		_ = client.Close()
		return fmt.Errorf("failed to set page segmentation mode: %w", err)
	}
	e.client = client
	e.lang = lang
	return nil
}

// ExtractText runs recognition over the full PNG bitmap and returns one box
// per text line in bitmap pixel coordinates.
func (e *TesseractEngine) ExtractText(ctx context.Context, png []byte, lang string) ([]Box, error) {
	if len(png) == 0 {
		return nil, fmt.Errorf("empty image")
	}

	type result struct {
		boxes []Box
		err   error
	}
	resCh := make(chan result, 1)

	go func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		boxes, err := e.extractLocked(png, lang)
		resCh <- result{boxes: boxes, err: err}
	}()

	select {
	case r := <-resCh:
		return r.boxes, r.err
	case <-ctx.Done():
		// Recognition finishes in the background; the result is discarded.
		return nil, ctx.Err()
	}
}

func (e *TesseractEngine) extractLocked(png []byte, lang string) ([]Box, error) {
	if err := e.ensureClientLocked(lang); err != nil {
		return nil, err
	}
	if err := e.client.SetImageFromBytes(png); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}
	raw, err := e.client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, fmt.Errorf("OCR failed: %w", err)
	}

	boxes := make([]Box, 0, len(raw))
	for _, bb := range raw {
		text := strings.TrimSpace(bb.Word)
		if text == "" {
			continue
		}
		r := bb.Box
		boxes = append(boxes, Box{
			Text:       text,
			X:          r.Min.X,
			Y:          r.Min.Y,
			Width:      r.Dx(),
			Height:     r.Dy(),
			Confidence: bb.Confidence / 100.0,
		})
	}
	return boxes, nil
}

func (e *TesseractEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client == nil {
		return nil
	}
	err := e.client.Close()
	e.client = nil
	return err
}
