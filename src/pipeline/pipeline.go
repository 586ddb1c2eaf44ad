// Package pipeline runs the capture -> recognize -> translate -> render
// sequence for a selected screen region.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"screen-translator/src/capture"
	"screen-translator/src/ocr"
	"screen-translator/src/overlay"
	"screen-translator/src/translate"
)

// ErrNoTextFound reports that recognition produced no boxes inside the
// selected region. Not a failure: the overlay is simply left untouched.
var ErrNoTextFound = errors.New("no text found in region")

// CaptureFunc captures the full bitmap of one display.
type CaptureFunc func(displayID int) (capture.Frame, error)

// OverlaySink is the rendering side of the pipeline. Satisfied by
// overlay.Manager; tests substitute fakes.
type OverlaySink interface {
	Update(frame overlay.Frame) error
	ClearAll()
}

const defaultWarmupTimeout = 10 * time.Second

// Processor executes one-shot region translations. All collaborators are
// injected; zero-value fields fall back to production implementations where
// one exists.
type Processor struct {
	Capture       CaptureFunc
	Engine        ocr.Engine
	Translator    translate.Translator
	Overlay       OverlaySink
	Warmer        *ocr.Warmer
	WarmupTimeout time.Duration
	OCRLang       string
}

// ProcessRegion runs one capture -> OCR -> translate -> render cycle over
// region, streaming each translated box to the overlay as soon as it is
// ready rather than waiting for the whole batch. Returns the final set of
// translated boxes.
func (p *Processor) ProcessRegion(ctx context.Context, region capture.Region, sourceLang, targetLang string) ([]overlay.TextBox, error) {
	if !region.Valid() {
		return nil, fmt.Errorf("invalid region dimensions: width=%d, height=%d", region.Width, region.Height)
	}

	frame, boxes, err := p.RecognizeRegion(ctx, region)
	if err != nil {
		log.Printf("Pipeline: recognition failed: %v", err)
		return nil, err
	}
	if len(boxes) == 0 {
		return nil, ErrNoTextFound
	}

	translated := make([]overlay.TextBox, 0, len(boxes))
	for _, b := range boxes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		translated = append(translated, p.TranslateBox(ctx, b, frame, sourceLang, targetLang))
		// Stream the accumulating list so the user sees partial results
		// instead of waiting for the slowest box.
		p.push(frame, region.DisplayID, translated)
	}
	return translated, nil
}

// RecognizeRegion captures the region's display, runs OCR over the full
// bitmap and keeps only boxes that intersect the region.
func (p *Processor) RecognizeRegion(ctx context.Context, region capture.Region) (capture.Frame, []ocr.Box, error) {
	if p.Warmer != nil {
		timeout := p.WarmupTimeout
		if timeout <= 0 {
			timeout = defaultWarmupTimeout
		}
		p.Warmer.WaitReady(ctx, timeout)
	}
	if err := ctx.Err(); err != nil {
		return capture.Frame{}, nil, err
	}

	captureFn := p.Capture
	if captureFn == nil {
		captureFn = capture.CaptureDisplay
	}
	frame, err := captureFn(region.DisplayID)
	if err != nil {
		return capture.Frame{}, nil, fmt.Errorf("capture failed: %w", err)
	}

	boxes, err := p.Engine.ExtractText(ctx, frame.PNG, p.OCRLang)
	if err != nil {
		return capture.Frame{}, nil, fmt.Errorf("recognition failed: %w", err)
	}
	return frame, FilterBoxes(boxes, region), nil
}

// TranslateBox translates one recognized box, falling back to the original
// text when translation fails so a single bad box never drops a line.
func (p *Processor) TranslateBox(ctx context.Context, b ocr.Box, frame capture.Frame, sourceLang, targetLang string) overlay.TextBox {
	text, err := p.Translator.Translate(ctx, b.Text, targetLang, sourceLang)
	if err != nil {
		log.Printf("Pipeline: translation failed for %q, keeping original: %v", b.Text, err)
		text = b.Text
	}
	// OCR coordinates are relative to the captured display's origin;
	// overlay surfaces expect absolute screen coordinates.
	return overlay.TextBox{
		OriginalText:   b.Text,
		TranslatedText: text,
		X:              b.X + frame.Bounds.Min.X,
		Y:              b.Y + frame.Bounds.Min.Y,
		Width:          b.Width,
		Height:         b.Height,
		Confidence:     b.Confidence,
	}
}

func (p *Processor) push(frame capture.Frame, displayID int, boxes []overlay.TextBox) {
	out := make([]overlay.TextBox, len(boxes))
	copy(out, boxes)
	err := p.Overlay.Update(overlay.Frame{
		Boxes:         out,
		DisplayID:     displayID,
		CaptureScale:  frame.ScaleFactor,
		DisplayScale:  frame.ScaleFactor,
		DisplayBounds: frame.Bounds,
	})
	if err != nil {
		log.Printf("Pipeline: overlay update failed: %v", err)
	}
}

// Push delivers an already-translated batch for displayID. Used by the watch
// loop, which renders its new boxes as one batch rather than streaming.
func (p *Processor) Push(frame capture.Frame, displayID int, boxes []overlay.TextBox) {
	p.push(frame, displayID, boxes)
}

// FilterBoxes keeps boxes whose rectangle intersects the region. The test is
// the standard axis-aligned overlap check with inclusive boundaries: a box
// is dropped only when it lies entirely outside the region on some axis, so
// boxes that merely touch the region edge are kept.
func FilterBoxes(boxes []ocr.Box, region capture.Region) []ocr.Box {
	regionRight := region.X + region.Width
	regionBottom := region.Y + region.Height

	var kept []ocr.Box
	for _, b := range boxes {
		boxRight := b.X + b.Width
		boxBottom := b.Y + b.Height
		outside := boxRight < region.X || b.X > regionRight ||
			boxBottom < region.Y || b.Y > regionBottom
		if !outside {
			kept = append(kept, b)
		}
	}
	return kept
}
