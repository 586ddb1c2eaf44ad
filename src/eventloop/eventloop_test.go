package eventloop

import (
	"context"
	"image"
	"sync"
	"testing"
	"time"

	"screen-translator/src/capture"
	"screen-translator/src/config"
	"screen-translator/src/messages"
	"screen-translator/src/ocr"
	"screen-translator/src/overlay"
	"screen-translator/src/pipeline"
	"screen-translator/src/watch"
)

type scriptedSelector struct {
	mu         sync.Mutex
	region     capture.Region
	cancelled  bool
	delay      time.Duration
	active     int
	overlapped bool
	calls      int
}

func (s *scriptedSelector) Select(ctx context.Context) (capture.Region, bool, error) {
	s.mu.Lock()
	s.active++
	if s.active > 1 {
		s.overlapped = true
	}
	s.calls++
	delay := s.delay
	region, cancelled := s.region, s.cancelled
	s.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	s.mu.Lock()
	s.active--
	s.mu.Unlock()
	return region, cancelled, nil
}

type stubEngine struct{ boxes []ocr.Box }

func (e *stubEngine) ExtractText(ctx context.Context, png []byte, lang string) ([]ocr.Box, error) {
	return e.boxes, nil
}
func (e *stubEngine) Close() error { return nil }

type stubTranslator struct{}

func (stubTranslator) Translate(ctx context.Context, text, targetLang, sourceLang string) (string, error) {
	return "[" + text + "]", nil
}

type nullSurface struct{}

func (nullSurface) Show() error                                  { return nil }
func (nullSurface) Hide() error                                  { return nil }
func (nullSurface) RaiseToTop() error                            { return nil }
func (nullSurface) SetBoxes(boxes []overlay.TextBox) error       { return nil }
func (nullSurface) SetBoxesDirect(boxes []overlay.TextBox) error { return nil }
func (nullSurface) Clear() error                                 { return nil }
func (nullSurface) Destroy() error                               { return nil }

func testLoop(t *testing.T, sel *scriptedSelector, engine ocr.Engine) (*Loop, chan messages.Message, context.CancelFunc) {
	t.Helper()

	overlays := overlay.NewManager(
		func(displayID int, bounds image.Rectangle) (overlay.Surface, error) {
			return nullSurface{}, nil
		},
		func() ([]capture.DisplayInfo, error) {
			return []capture.DisplayInfo{{
				ID:          0,
				Bounds:      image.Rect(0, 0, 1920, 1080),
				WorkArea:    image.Rect(0, 0, 1920, 1040),
				ScaleFactor: 1.0,
			}}, nil
		},
	)
	proc := &pipeline.Processor{
		Capture: func(displayID int) (capture.Frame, error) {
			return capture.Frame{
				PNG:         []byte{0x89, 'P', 'N', 'G'},
				Bounds:      image.Rect(0, 0, 1920, 1080),
				ScaleFactor: 1.0,
			}, nil
		},
		Engine:     engine,
		Translator: stubTranslator{},
		Overlay:    overlays,
		OCRLang:    "eng",
	}
	watcher := watch.NewManager(proc)
	watcher.SetTimings(20*time.Millisecond, 10*time.Millisecond)

	cfg := &config.Config{TargetLang: "es", OCRLang: "eng"}
	got := make(chan messages.Message, 32)
	loop := New(cfg, proc, watcher, overlays, sel, func(msg messages.Message) {
		got <- msg
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = loop.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		overlays.Stop()
	})
	return loop, got, cancel
}

func nextMessage(t *testing.T, ch chan messages.Message) messages.Message {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for a message")
		return nil
	}
}

// awaitMessage drains ch until a message of the wanted type arrives.
func awaitMessage(t *testing.T, ch chan messages.Message, msgType string) messages.Message {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case msg := <-ch:
			if msg.Type() == msgType {
				return msg
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", msgType)
			return nil
		}
	}
}

func TestTranslateFlowEmitsLifecycleMessages(t *testing.T) {
	sel := &scriptedSelector{region: capture.Region{X: 100, Y: 100, Width: 300, Height: 100}}
	engine := &stubEngine{boxes: []ocr.Box{
		{Text: "Hello", X: 110, Y: 120, Width: 60, Height: 20},
	}}
	loop, got, _ := testLoop(t, sel, engine)

	loop.RequestTranslate()

	if msg := nextMessage(t, got); msg.Type() != messages.TypeRegionSelected {
		t.Fatalf("first message = %s, want region selection", msg.Type())
	}
	if msg := nextMessage(t, got); msg.Type() != messages.TypeBoxProcessingStart {
		t.Fatalf("second message = %s, want processing start", msg.Type())
	}
	msg := nextMessage(t, got)
	complete, ok := msg.(messages.BoxProcessingComplete)
	if !ok {
		t.Fatalf("third message = %T, want completion", msg)
	}
	if complete.Err != nil {
		t.Errorf("completion error: %v", complete.Err)
	}
	if complete.BoxCount != 1 {
		t.Errorf("BoxCount = %d, want 1", complete.BoxCount)
	}
}

func TestCancelledSelectionEmitsNoProcessing(t *testing.T) {
	sel := &scriptedSelector{cancelled: true}
	loop, got, _ := testLoop(t, sel, &stubEngine{})

	loop.RequestTranslate()

	if msg := nextMessage(t, got); msg.Type() != messages.TypeRegionCancelled {
		t.Fatalf("message = %s, want cancellation", msg.Type())
	}
	select {
	case msg := <-got:
		t.Fatalf("unexpected message after cancellation: %s", msg.Type())
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWatchToggleStartsAndStops(t *testing.T) {
	sel := &scriptedSelector{region: capture.Region{X: 0, Y: 0, Width: 200, Height: 100}}
	loop, got, _ := testLoop(t, sel, &stubEngine{})

	loop.RequestWatchToggle()
	if msg := nextMessage(t, got); msg.Type() != messages.TypeRegionSelected {
		t.Fatalf("message = %s, want region selection", msg.Type())
	}

	started, ok := awaitMessage(t, got, messages.TypeWatchStarted).(messages.WatchStarted)
	if !ok || started.SessionID == "" {
		t.Fatalf("watch start notification missing a session ID: %+v", started)
	}

	deadline := time.Now().Add(2 * time.Second)
	for !loop.Watching() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if !loop.Watching() {
		t.Fatal("watch session did not start")
	}

	loop.RequestWatchToggle()
	stopped, ok := awaitMessage(t, got, messages.TypeWatchStopped).(messages.WatchStopped)
	if !ok || stopped.SessionID != started.SessionID {
		t.Fatalf("watch stop session = %q, want %q", stopped.SessionID, started.SessionID)
	}

	deadline = time.Now().Add(2 * time.Second)
	for loop.Watching() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if loop.Watching() {
		t.Fatal("watch session did not stop on second toggle")
	}
}

func TestDelegatedTranslateRunsOnLoop(t *testing.T) {
	sel := &scriptedSelector{region: capture.Region{X: 100, Y: 100, Width: 300, Height: 100}}
	engine := &stubEngine{boxes: []ocr.Box{
		{Text: "Hello", X: 110, Y: 120, Width: 60, Height: 20},
	}}
	loop, got, _ := testLoop(t, sel, engine)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	boxes, cancelled, err := loop.RequestDelegatedTranslate(ctx)
	if err != nil {
		t.Fatalf("delegated translate: %v", err)
	}
	if cancelled {
		t.Fatal("unexpected cancellation")
	}
	if len(boxes) != 1 || boxes[0].TranslatedText != "[Hello]" {
		t.Fatalf("boxes = %+v, want one translated box", boxes)
	}

	// The pass reports through the notifier like a hotkey-triggered one.
	awaitMessage(t, got, messages.TypeBoxProcessingDone)
}

func TestDelegationNeverOverlapsHotkeySelection(t *testing.T) {
	sel := &scriptedSelector{
		region: capture.Region{X: 0, Y: 0, Width: 200, Height: 100},
		delay:  30 * time.Millisecond,
	}
	loop, _, _ := testLoop(t, sel, &stubEngine{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		// May lose to the hotkey and get refused as busy; either outcome
		// is fine as long as the selector is never entered twice at once.
		_, _, _ = loop.RequestDelegatedTranslate(ctx)
	}()
	loop.RequestTranslate()
	wg.Wait()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		sel.mu.Lock()
		active := sel.active
		sel.mu.Unlock()
		if active == 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	sel.mu.Lock()
	defer sel.mu.Unlock()
	if sel.overlapped {
		t.Fatal("selection surface was entered concurrently")
	}
	if sel.calls == 0 {
		t.Fatal("selector was never entered")
	}
}
