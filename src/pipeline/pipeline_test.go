package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"testing"

	"screen-translator/src/capture"
	"screen-translator/src/ocr"
	"screen-translator/src/overlay"
)

type fakeEngine struct {
	boxes []ocr.Box
	err   error
}

func (e *fakeEngine) ExtractText(ctx context.Context, png []byte, lang string) ([]ocr.Box, error) {
	return e.boxes, e.err
}

func (e *fakeEngine) Close() error { return nil }

type fakeTranslator struct {
	translations map[string]string
	err          error
	calls        []string
}

func (f *fakeTranslator) Translate(ctx context.Context, text, targetLang, sourceLang string) (string, error) {
	f.calls = append(f.calls, text)
	if f.err != nil {
		return "", f.err
	}
	if out, ok := f.translations[text]; ok {
		return out, nil
	}
	return "", fmt.Errorf("no translation for %q", text)
}

type fakeSink struct {
	mu      sync.Mutex
	updates []overlay.Frame
	clears  int
}

func (s *fakeSink) Update(frame overlay.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, frame)
	return nil
}

func (s *fakeSink) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clears++
}

func (s *fakeSink) lastUpdate() (overlay.Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.updates) == 0 {
		return overlay.Frame{}, false
	}
	return s.updates[len(s.updates)-1], true
}

func stubCapture(bounds image.Rectangle) CaptureFunc {
	return func(displayID int) (capture.Frame, error) {
		return capture.Frame{
			PNG:         []byte{0x89, 'P', 'N', 'G'},
			Width:       bounds.Dx(),
			Height:      bounds.Dy(),
			Bounds:      bounds,
			ScaleFactor: 1.0,
		}, nil
	}
}

func newTestProcessor(engine ocr.Engine, tr *fakeTranslator, sink *fakeSink) *Processor {
	return &Processor{
		Capture:    stubCapture(image.Rect(0, 0, 1920, 1080)),
		Engine:     engine,
		Translator: tr,
		Overlay:    sink,
		OCRLang:    "eng",
	}
}

func TestProcessRegionKeepsOnlyOverlappingBoxes(t *testing.T) {
	engine := &fakeEngine{boxes: []ocr.Box{
		{Text: "Hello", X: 90, Y: 120, Width: 60, Height: 20, Confidence: 0.95},
		{Text: "Bye", X: 500, Y: 500, Width: 40, Height: 20, Confidence: 0.9},
	}}
	tr := &fakeTranslator{translations: map[string]string{"Hello": "Hola"}}
	sink := &fakeSink{}
	p := newTestProcessor(engine, tr, sink)

	region := capture.Region{X: 100, Y: 100, Width: 300, Height: 100, DisplayID: 0}
	boxes, err := p.ProcessRegion(context.Background(), region, "", "es")
	if err != nil {
		t.Fatalf("ProcessRegion: %v", err)
	}

	if len(boxes) != 1 {
		t.Fatalf("got %d boxes, want 1", len(boxes))
	}
	if boxes[0].TranslatedText != "Hola" {
		t.Errorf("TranslatedText = %q, want %q", boxes[0].TranslatedText, "Hola")
	}
	if boxes[0].OriginalText != "Hello" {
		t.Errorf("OriginalText = %q, want %q", boxes[0].OriginalText, "Hello")
	}

	// "Bye" lies entirely outside the region and must never reach the
	// translator.
	for _, call := range tr.calls {
		if call == "Bye" {
			t.Error("translator was called for a box outside the region")
		}
	}

	frame, ok := sink.lastUpdate()
	if !ok {
		t.Fatal("no overlay update delivered")
	}
	if len(frame.Boxes) != 1 || frame.Boxes[0].TranslatedText != "Hola" {
		t.Errorf("overlay frame = %+v", frame.Boxes)
	}
}

func TestProcessRegionStreamsPartialResults(t *testing.T) {
	engine := &fakeEngine{boxes: []ocr.Box{
		{Text: "one", X: 10, Y: 10, Width: 30, Height: 10},
		{Text: "two", X: 10, Y: 30, Width: 30, Height: 10},
		{Text: "three", X: 10, Y: 50, Width: 30, Height: 10},
	}}
	tr := &fakeTranslator{translations: map[string]string{
		"one": "uno", "two": "dos", "three": "tres",
	}}
	sink := &fakeSink{}
	p := newTestProcessor(engine, tr, sink)

	region := capture.Region{X: 0, Y: 0, Width: 100, Height: 100}
	if _, err := p.ProcessRegion(context.Background(), region, "", "es"); err != nil {
		t.Fatalf("ProcessRegion: %v", err)
	}

	// One push per translated box, each containing the accumulated list.
	if len(sink.updates) != 3 {
		t.Fatalf("got %d overlay updates, want 3", len(sink.updates))
	}
	for i, u := range sink.updates {
		if len(u.Boxes) != i+1 {
			t.Errorf("update %d carries %d boxes, want %d", i, len(u.Boxes), i+1)
		}
	}
}

func TestProcessRegionNoText(t *testing.T) {
	engine := &fakeEngine{}
	sink := &fakeSink{}
	p := newTestProcessor(engine, &fakeTranslator{}, sink)

	region := capture.Region{X: 0, Y: 0, Width: 100, Height: 100}
	_, err := p.ProcessRegion(context.Background(), region, "", "es")
	if !errors.Is(err, ErrNoTextFound) {
		t.Fatalf("err = %v, want ErrNoTextFound", err)
	}
	if len(sink.updates) != 0 {
		t.Errorf("overlay must stay untouched when nothing was recognized")
	}
}

func TestProcessRegionInvalidRegion(t *testing.T) {
	p := newTestProcessor(&fakeEngine{}, &fakeTranslator{}, &fakeSink{})
	if _, err := p.ProcessRegion(context.Background(), capture.Region{}, "", "es"); err == nil {
		t.Fatal("expected error for zero-size region")
	}
}

func TestTranslateBoxFallsBackToOriginal(t *testing.T) {
	tr := &fakeTranslator{err: errors.New("backend down")}
	p := newTestProcessor(&fakeEngine{}, tr, &fakeSink{})

	frame := capture.Frame{Bounds: image.Rect(1920, 0, 3840, 1080)}
	box := ocr.Box{Text: "Hello", X: 10, Y: 20, Width: 60, Height: 20}

	got := p.TranslateBox(context.Background(), box, frame, "", "es")
	if got.TranslatedText != "Hello" {
		t.Errorf("TranslatedText = %q, want the original text", got.TranslatedText)
	}
	// Display-relative OCR coordinates become absolute screen coordinates.
	if got.X != 1930 || got.Y != 20 {
		t.Errorf("box at (%d,%d), want (1930,20)", got.X, got.Y)
	}
}

func TestFilterBoxes(t *testing.T) {
	region := capture.Region{X: 100, Y: 100, Width: 300, Height: 100}

	tests := []struct {
		name string
		box  ocr.Box
		keep bool
	}{
		{"FullyInside", ocr.Box{X: 150, Y: 120, Width: 50, Height: 20}, true},
		{"Straddling", ocr.Box{X: 90, Y: 120, Width: 60, Height: 20}, true},
		{"TouchingLeftEdge", ocr.Box{X: 40, Y: 120, Width: 60, Height: 20}, true},
		{"TouchingRightEdge", ocr.Box{X: 400, Y: 120, Width: 60, Height: 20}, true},
		{"TouchingBottomEdge", ocr.Box{X: 150, Y: 200, Width: 50, Height: 20}, true},
		{"LeftOutside", ocr.Box{X: 20, Y: 120, Width: 60, Height: 20}, false},
		{"BelowOutside", ocr.Box{X: 150, Y: 201, Width: 50, Height: 20}, false},
		{"FarAway", ocr.Box{X: 500, Y: 500, Width: 40, Height: 20}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kept := FilterBoxes([]ocr.Box{tt.box}, region)
			if (len(kept) == 1) != tt.keep {
				t.Errorf("keep = %v, want %v", len(kept) == 1, tt.keep)
			}
		})
	}
}
