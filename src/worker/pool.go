package worker

import (
	"context"
	"log"
	"runtime"
	"sync"

	"screen-translator/src/capture"
)

// ProcessFunc runs one full region-translation pass (capture, recognize,
// translate, render) and reports how many boxes were rendered.
type ProcessFunc func(ctx context.Context, region capture.Region) (int, error)

// ResultCallback is invoked on completion from a worker goroutine. The event
// loop passes a closure that posts back into the loop safely.
type ResultCallback func(boxCount int, err error)

// Pool is a fixed-size processing pool with a 1-slot input queue (strict
// back-pressure): a second region submitted while one is in flight is
// dropped rather than queued behind it.
type Pool struct {
	jobs    chan job
	process ProcessFunc
	wg      sync.WaitGroup
}

type job struct {
	ctx    context.Context
	region capture.Region
	cb     ResultCallback
}

// New creates a worker pool. Size defaults to NumCPU when size<=0.
func New(size int, process ProcessFunc) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	p := &Pool{jobs: make(chan job, 1), process: process}
	p.start(size)
	return p
}

func (p *Pool) start(n int) {
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for j := range p.jobs {
				log.Printf("Worker: processing region %dx%d on display %d", j.region.Width, j.region.Height, j.region.DisplayID)
				n, err := p.process(j.ctx, j.region)
				log.Printf("Worker: region pass finished, boxes=%d, err=%v", n, err)
				j.cb(n, err)
			}
		}()
	}
}

// Submit enqueues a region pass if the single-slot queue is free. Returns
// false if dropped.
func (p *Pool) Submit(ctx context.Context, region capture.Region, cb ResultCallback) bool {
	select {
	case p.jobs <- job{ctx: ctx, region: region, cb: cb}:
		return true
	default:
		return false
	}
}

// Close stops the pool after draining current work.
func (p *Pool) Close() {
	close(p.jobs)
	p.wg.Wait()
}
