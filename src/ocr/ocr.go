// Package ocr defines the text-recognition interface consumed by the
// translation pipeline and a Tesseract-backed implementation.
package ocr

import (
	"context"
	"log"
	"sync"
	"time"
)

// Box is one OCR hit in full-display pixel coordinates.
type Box struct {
	Text       string
	X          int
	Y          int
	Width      int
	Height     int
	Confidence float64
}

// Engine turns a captured bitmap into recognized text boxes. The language
// hint is supplied by configuration, never auto-detected.
type Engine interface {
	ExtractText(ctx context.Context, png []byte, lang string) ([]Box, error)
	Close() error
}

// Warmer pre-initializes an engine for a language in the background so the
// first recognition after region selection does not pay the startup cost.
// Prewarm is kicked off as soon as selection begins; WaitReady bounds how
// long a caller blocks before proceeding anyway.
type Warmer struct {
	mu    sync.Mutex
	ready chan struct{}
}

func NewWarmer() *Warmer { return &Warmer{} }

// Prewarm starts warm-up via warm and returns immediately. A warm-up already
// in flight is reused.
func (w *Warmer) Prewarm(lang string, warm func(lang string) error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ready != nil {
		select {
		case <-w.ready:
			// Previous warm-up finished; start a fresh one.
		default:
			return
		}
	}
	ch := make(chan struct{})
	w.ready = ch
	go func() {
		defer close(ch)
		if warm == nil {
			return
		}
		if err := warm(lang); err != nil {
			log.Printf("OCR warm-up failed (continuing anyway): %v", err)
		}
	}()
}

// WaitReady blocks until the pending warm-up completes, the timeout elapses,
// or ctx is cancelled. The pipeline proceeds regardless of the outcome; a
// missed warm-up only costs first-call latency.
func (w *Warmer) WaitReady(ctx context.Context, timeout time.Duration) {
	w.mu.Lock()
	ch := w.ready
	w.mu.Unlock()
	if ch == nil {
		return
	}
	select {
	case <-ch:
	case <-time.After(timeout):
		log.Printf("OCR warm-up did not finish within %s, proceeding", timeout)
	case <-ctx.Done():
	}
}
