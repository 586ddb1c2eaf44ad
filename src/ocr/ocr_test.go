package ocr

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestWaitReadyWithoutPrewarm(t *testing.T) {
	w := NewWarmer()
	start := time.Now()
	w.WaitReady(context.Background(), time.Second)
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("WaitReady blocked %v with no warm-up pending", elapsed)
	}
}

func TestPrewarmCompletes(t *testing.T) {
	w := NewWarmer()
	var warmed atomic.Bool
	w.Prewarm("eng", func(lang string) error {
		if lang != "eng" {
			t.Errorf("warm called with lang %q", lang)
		}
		warmed.Store(true)
		return nil
	})

	w.WaitReady(context.Background(), 2*time.Second)
	if !warmed.Load() {
		t.Error("warm function did not run before WaitReady returned")
	}
}

func TestPrewarmReusesInflightWarmup(t *testing.T) {
	w := NewWarmer()
	var starts atomic.Int32
	block := make(chan struct{})

	warm := func(string) error {
		starts.Add(1)
		<-block
		return nil
	}
	w.Prewarm("eng", warm)
	w.Prewarm("eng", warm)
	w.Prewarm("eng", warm)

	close(block)
	w.WaitReady(context.Background(), 2*time.Second)

	if n := starts.Load(); n != 1 {
		t.Errorf("warm started %d times for overlapping prewarms, want 1", n)
	}

	// After completion a new Prewarm starts a fresh warm-up.
	done := make(chan struct{})
	w.Prewarm("eng", func(string) error { close(done); return nil })
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Error("fresh warm-up after completion never ran")
	}
}

func TestWaitReadyTimesOut(t *testing.T) {
	w := NewWarmer()
	w.Prewarm("eng", func(string) error {
		time.Sleep(5 * time.Second)
		return nil
	})

	start := time.Now()
	w.WaitReady(context.Background(), 50*time.Millisecond)
	elapsed := time.Since(start)
	if elapsed > time.Second {
		t.Errorf("WaitReady held for %v past its timeout", elapsed)
	}
}

func TestWaitReadyHonorsContext(t *testing.T) {
	w := NewWarmer()
	w.Prewarm("eng", func(string) error {
		time.Sleep(5 * time.Second)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	w.WaitReady(ctx, 10*time.Second)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("WaitReady ignored context cancellation, held %v", elapsed)
	}
}

func TestWarmupFailureStillReleasesWaiters(t *testing.T) {
	w := NewWarmer()
	w.Prewarm("eng", func(string) error {
		return errors.New("tessdata missing")
	})

	start := time.Now()
	w.WaitReady(context.Background(), 2*time.Second)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("failed warm-up kept waiters blocked for %v", elapsed)
	}
}
