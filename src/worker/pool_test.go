package worker

import (
	"context"
	"testing"
	"time"

	"screen-translator/src/capture"
)

func TestSubmitDropsWhenBusy(t *testing.T) {
	started := make(chan struct{}, 3)
	release := make(chan struct{})
	p := New(1, func(ctx context.Context, region capture.Region) (int, error) {
		started <- struct{}{}
		<-release
		return 0, nil
	})
	defer func() {
		close(release)
		p.Close()
	}()

	region := capture.Region{Width: 10, Height: 10}
	done := func(int, error) {}

	if !p.Submit(context.Background(), region, done) {
		t.Fatal("first submit rejected")
	}
	<-started // worker is now busy

	if !p.Submit(context.Background(), region, done) {
		t.Fatal("second submit should occupy the single queue slot")
	}
	if p.Submit(context.Background(), region, done) {
		t.Fatal("third submit should be dropped while the slot is full")
	}
}

func TestResultsDeliveredToCallback(t *testing.T) {
	p := New(1, func(ctx context.Context, region capture.Region) (int, error) {
		return 3, nil
	})
	defer p.Close()

	results := make(chan int, 1)
	ok := p.Submit(context.Background(), capture.Region{Width: 5, Height: 5}, func(n int, err error) {
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		results <- n
	})
	if !ok {
		t.Fatal("submit rejected")
	}

	select {
	case n := <-results:
		if n != 3 {
			t.Errorf("box count = %d, want 3", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("callback never invoked")
	}
}

func TestCloseDrainsQueuedWork(t *testing.T) {
	processed := make(chan struct{}, 2)
	p := New(1, func(ctx context.Context, region capture.Region) (int, error) {
		processed <- struct{}{}
		return 0, nil
	})

	p.Submit(context.Background(), capture.Region{Width: 1, Height: 1}, func(int, error) {})
	p.Close()

	select {
	case <-processed:
	default:
		t.Fatal("Close returned before queued work was processed")
	}
}
