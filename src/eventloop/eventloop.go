// Package eventloop is the single-goroutine coordinator for hotkey and tray
// triggered translation flows.
package eventloop

import (
	"context"
	"errors"
	"log"
	"time"

	"screen-translator/src/capture"
	"screen-translator/src/clipboard"
	"screen-translator/src/config"
	"screen-translator/src/messages"
	"screen-translator/src/ocr"
	"screen-translator/src/overlay"
	"screen-translator/src/pipeline"
	"screen-translator/src/selector"
	"screen-translator/src/watch"
	"screen-translator/src/worker"
)

const topologyPollInterval = 5 * time.Second

// Notifier receives outward notifications for the surrounding UI. May be nil.
type Notifier func(msg messages.Message)

// Loop owns the region selector, the one-shot worker pool and the watch
// manager. All user-triggered flows funnel through Run's goroutine, so only
// one selection surface and one one-shot pass can be in flight at a time.
type Loop struct {
	selector selector.Selector
	proc     *pipeline.Processor
	watcher  *watch.Manager
	overlays *overlay.Manager
	warmer   *ocr.Warmer
	pool     *worker.Pool

	sourceLang      string
	targetLang      string
	ocrLang         string
	copyToClipboard bool

	busy         bool
	selectorOpen bool
	notify       Notifier

	results     chan result
	translateCh chan struct{}
	watchCh     chan struct{}
	displayCh   chan struct{}
	delegateCh  chan delegateRequest
}

type result struct {
	boxCount int
	err      error
	cancel   context.CancelFunc
}

// delegateRequest is a select-and-translate pass run on behalf of another
// process. The reply channel is buffered so the handler never blocks on a
// caller that gave up.
type delegateRequest struct {
	ctx   context.Context
	reply chan delegateReply
}

type delegateReply struct {
	boxes     []overlay.TextBox
	cancelled bool
	err       error
}

// ErrBusy is returned to delegations arriving while a one-shot pass is
// already in flight.
var ErrBusy = errors.New("another translation is in flight")

// New wires a loop from the production collaborators.
func New(cfg *config.Config, proc *pipeline.Processor, watcher *watch.Manager, overlays *overlay.Manager, sel selector.Selector, notify Notifier) *Loop {
	l := &Loop{
		selector:        sel,
		proc:            proc,
		watcher:         watcher,
		overlays:        overlays,
		warmer:          proc.Warmer,
		sourceLang:      cfg.SourceLang,
		targetLang:      cfg.TargetLang,
		ocrLang:         cfg.OCRLang,
		copyToClipboard: cfg.CopyToClipboard,
		notify:          notify,
		results:         make(chan result, 1),
		translateCh:     make(chan struct{}, 4),
		watchCh:         make(chan struct{}, 4),
		displayCh:       make(chan struct{}, 1),
		delegateCh:      make(chan delegateRequest),
	}
	l.pool = worker.New(0, l.processRegion)
	watcher.OnStarted = func(sessionID string) {
		l.emit(messages.WatchStarted{SessionID: sessionID})
	}
	watcher.OnStopped = func(sessionID string) {
		l.emit(messages.WatchStopped{SessionID: sessionID})
	}
	return l
}

func (l *Loop) processRegion(ctx context.Context, region capture.Region) (int, error) {
	boxes, err := l.proc.ProcessRegion(ctx, region, l.sourceLang, l.targetLang)
	if err != nil {
		return 0, err
	}
	if l.copyToClipboard {
		if cerr := clipboard.WriteBoxes(boxes); cerr != nil {
			log.Printf("Loop: clipboard write failed: %v", cerr)
		}
	}
	return len(boxes), nil
}

// RequestTranslate queues a one-shot translation flow. Safe from any goroutine.
func (l *Loop) RequestTranslate() {
	select {
	case l.translateCh <- struct{}{}:
	default:
	}
}

// RequestWatchToggle queues a watch start/stop flow. Safe from any goroutine.
func (l *Loop) RequestWatchToggle() {
	select {
	case l.watchCh <- struct{}{}:
	default:
	}
}

// RequestDelegatedTranslate runs a full select-and-translate pass on the
// loop goroutine on behalf of another process and blocks until it finishes.
// The selection surface is single-flight: it is only ever entered from Run's
// goroutine, the same as hotkey-triggered flows.
func (l *Loop) RequestDelegatedTranslate(ctx context.Context) ([]overlay.TextBox, bool, error) {
	req := delegateRequest{ctx: ctx, reply: make(chan delegateReply, 1)}
	select {
	case l.delegateCh <- req:
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
	select {
	case rep := <-req.reply:
		return rep.boxes, rep.cancelled, rep.err
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

// NotifyDisplayChange queues a display-topology reconciliation.
func (l *Loop) NotifyDisplayChange() {
	select {
	case l.displayCh <- struct{}{}:
	default:
	}
}

// Watching reports whether a watch session is active.
func (l *Loop) Watching() bool { return l.watcher.Watching() }

// SelectorOpen reports whether a selection surface is currently on screen.
func (l *Loop) SelectorOpen() bool { return l.selectorOpen }

func (l *Loop) emit(msg messages.Message) {
	if l.notify != nil {
		l.notify(msg)
	}
}

// Run processes queued requests until ctx is cancelled. It also polls the
// display topology so surfaces track monitor connects/disconnects even when
// no OS notification reaches us.
func (l *Loop) Run(ctx context.Context) error {
	defer l.pool.Close()
	defer l.watcher.Stop()

	go l.pollTopology(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.translateCh:
			l.handleTranslate(ctx)
		case <-l.watchCh:
			l.handleWatchToggle(ctx)
		case req := <-l.delegateCh:
			l.handleDelegated(req)
		case <-l.displayCh:
			l.overlays.HandleDisplayChange()
			l.emit(messages.DisplayTopologyChanged{})
		case res := <-l.results:
			l.handleResult(res)
		}
	}
}

func (l *Loop) pollTopology(ctx context.Context) {
	ticker := time.NewTicker(topologyPollInterval)
	defer ticker.Stop()
	last := topologySignature()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sig := topologySignature()
			if sig != last {
				last = sig
				log.Printf("Loop: display topology changed")
				l.NotifyDisplayChange()
			}
		}
	}
}

func topologySignature() string {
	displays, err := capture.EnumerateDisplays()
	if err != nil {
		return ""
	}
	sig := ""
	for _, d := range displays {
		sig += d.Bounds.String() + ";"
	}
	return sig
}

func (l *Loop) handleTranslate(ctx context.Context) {
	if l.busy {
		log.Printf("Loop: busy, ignoring translate request")
		return
	}

	region, cancelled, err := l.selectRegion(ctx)
	if err != nil {
		log.Printf("Loop: region selection failed: %v", err)
		return
	}
	if cancelled {
		l.emit(messages.RegionCancelled{})
		return
	}
	l.emit(messages.RegionSelected{Region: region})

	jobCtx, cancel := context.WithCancel(ctx)
	l.busy = true
	l.emit(messages.BoxProcessingStarted{Region: region})

	submitted := l.pool.Submit(jobCtx, region, func(boxCount int, err error) {
		// Runs on a worker goroutine; post back into the loop.
		l.results <- result{boxCount: boxCount, err: err, cancel: cancel}
	})
	if !submitted {
		cancel()
		l.busy = false
		log.Printf("Loop: worker pool full, dropping translate request")
	}
}

func (l *Loop) handleResult(res result) {
	l.busy = false
	if res.cancel != nil {
		res.cancel()
	}
	if res.err != nil && !errors.Is(res.err, pipeline.ErrNoTextFound) {
		log.Printf("Loop: one-shot processing failed: %v", res.err)
	}
	l.emit(messages.BoxProcessingComplete{BoxCount: res.boxCount, Err: res.err})
}

// handleDelegated runs the whole pass synchronously on the loop goroutine:
// delegations are rare and the selection is modal anyway, so blocking other
// requests for its duration is fine.
func (l *Loop) handleDelegated(req delegateRequest) {
	if l.busy {
		log.Printf("Loop: busy, refusing delegated translate request")
		req.reply <- delegateReply{err: ErrBusy}
		return
	}

	region, cancelled, err := l.selectRegion(req.ctx)
	if err != nil {
		req.reply <- delegateReply{err: err}
		return
	}
	if cancelled {
		l.emit(messages.RegionCancelled{})
		req.reply <- delegateReply{cancelled: true}
		return
	}
	l.emit(messages.RegionSelected{Region: region})
	l.emit(messages.BoxProcessingStarted{Region: region})

	boxes, err := l.proc.ProcessRegion(req.ctx, region, l.sourceLang, l.targetLang)
	l.emit(messages.BoxProcessingComplete{BoxCount: len(boxes), Err: err})
	req.reply <- delegateReply{boxes: boxes, err: err}
}

func (l *Loop) handleWatchToggle(ctx context.Context) {
	if l.watcher.Watching() {
		l.watcher.Stop()
		return
	}
	if l.busy {
		log.Printf("Loop: busy, ignoring watch request")
		return
	}

	region, cancelled, err := l.selectRegion(ctx)
	if err != nil {
		log.Printf("Loop: region selection failed: %v", err)
		return
	}
	if cancelled {
		l.emit(messages.RegionCancelled{})
		return
	}
	l.emit(messages.RegionSelected{Region: region})
	l.watcher.Start(region, l.sourceLang, l.targetLang)
}

// selectRegion opens the selection surface, warming the OCR engine in the
// background while the user drags.
func (l *Loop) selectRegion(ctx context.Context) (capture.Region, bool, error) {
	if l.warmer != nil {
		lang := l.ocrLang
		l.warmer.Prewarm(lang, l.warmFn())
	}
	l.selectorOpen = true
	defer func() { l.selectorOpen = false }()
	return l.selector.Select(ctx)
}

func (l *Loop) warmFn() func(string) error {
	type warmable interface{ Warm(lang string) error }
	if w, ok := l.proc.Engine.(warmable); ok {
		return w.Warm
	}
	return nil
}
