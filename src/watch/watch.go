// Package watch implements continuous region monitoring: a cancellable loop
// that repeatedly samples a fixed region and translates only text that has
// not been shown before in the session.
package watch

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"screen-translator/src/capture"
	"screen-translator/src/overlay"
	"screen-translator/src/pipeline"
)

const (
	defaultReadTime = 3 * time.Second
	defaultGapTime  = 1 * time.Second
	// fallbackDelay spaces out retries after a cycle fails unexpectedly.
	fallbackDelay = 2 * time.Second
)

// Session owns the lifetime of one continuous watch. The seen-set remembers
// exact text strings already rendered this session; it is read and written
// only by the loop goroutine.
type Session struct {
	ID         string
	Region     capture.Region
	SourceLang string
	TargetLang string

	seen   map[string]struct{}
	cancel context.CancelFunc
	done   chan struct{}
}

// Manager drives at most one active Session. Starting a new session fully
// stops the previous one first, so sessions never overlap.
type Manager struct {
	mu      sync.Mutex
	session *Session

	proc     *pipeline.Processor
	readTime time.Duration
	gapTime  time.Duration

	// Optional outward notifications, consumed by the surrounding UI.
	OnStarted func(sessionID string)
	OnStopped func(sessionID string)
}

func NewManager(proc *pipeline.Processor) *Manager {
	return &Manager{
		proc:     proc,
		readTime: defaultReadTime,
		gapTime:  defaultGapTime,
	}
}

// SetTimings overrides the read and gap waits. Zero values keep defaults.
func (m *Manager) SetTimings(readTime, gapTime time.Duration) {
	if readTime > 0 {
		m.readTime = readTime
	}
	if gapTime > 0 {
		m.gapTime = gapTime
	}
}

// Watching reports whether a session is currently active.
func (m *Manager) Watching() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session != nil
}

// Start begins watching region. Any active session is stopped to completion
// (loop exited, overlays cleared) before the new one is activated with an
// empty seen-set.
func (m *Manager) Start(region capture.Region, sourceLang, targetLang string) *Session {
	m.Stop()

	m.mu.Lock()
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:         uuid.NewString(),
		Region:     region,
		SourceLang: sourceLang,
		TargetLang: targetLang,
		seen:       make(map[string]struct{}),
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	m.session = s
	m.mu.Unlock()

	log.Printf("Watch: session %s started over %+v", s.ID, region)
	if m.OnStarted != nil {
		m.OnStarted(s.ID)
	}
	go m.run(ctx, s)
	return s
}

// Stop cancels the active session, waits for its loop to exit and clears
// all overlay content before returning. Safe to call when idle.
func (m *Manager) Stop() {
	m.mu.Lock()
	s := m.session
	m.session = nil
	m.mu.Unlock()
	if s == nil {
		return
	}

	s.cancel()
	<-s.done
	// The loop clears on exit too; this keeps Stop's contract even if the
	// loop was killed mid-cycle.
	m.proc.Overlay.ClearAll()

	log.Printf("Watch: session %s stopped", s.ID)
	if m.OnStopped != nil {
		m.OnStopped(s.ID)
	}
}

// run is the loop goroutine: cycles are strictly serialized, the next one
// starting only after the previous finished its waits.
func (m *Manager) run(ctx context.Context, s *Session) {
	defer close(s.done)
	for {
		if ctx.Err() != nil {
			m.proc.Overlay.ClearAll()
			return
		}
		delay := m.cycle(ctx, s)
		if !sleep(ctx, delay) {
			m.proc.Overlay.ClearAll()
			return
		}
	}
}

// cycle performs one capture -> recognize -> dedup -> translate -> render
// pass and returns the delay before the next cycle. Failures are logged and
// never terminate the session.
func (m *Manager) cycle(ctx context.Context, s *Session) (delay time.Duration) {
	delay = m.gapTime
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Watch: panic in cycle, continuing: %v", r)
			delay = fallbackDelay
		}
	}()

	frame, boxes, err := m.proc.RecognizeRegion(ctx, s.Region)
	if err != nil {
		if ctx.Err() != nil {
			return 0
		}
		// Treated as "no text found": the loop retries on its normal schedule.
		log.Printf("Watch: recognition failed, retrying next cycle: %v", err)
		return m.gapTime
	}

	fresh := boxes[:0:0]
	for _, b := range boxes {
		if _, ok := s.seen[b.Text]; ok {
			continue
		}
		s.seen[b.Text] = struct{}{}
		fresh = append(fresh, b)
	}
	if len(fresh) == 0 {
		// Nothing new on screen: straight to the gap wait.
		return m.gapTime
	}

	translated := make([]overlay.TextBox, 0, len(fresh))
	for _, b := range fresh {
		if ctx.Err() != nil {
			return 0
		}
		translated = append(translated, m.proc.TranslateBox(ctx, b, frame, s.SourceLang, s.TargetLang))
	}
	// One batch push: the loop drives rendering, not the drag gesture.
	m.proc.Push(frame, s.Region.DisplayID, translated)

	// Leave the translations up for the read time, then wipe them so the
	// next batch starts from a clean overlay.
	if !sleep(ctx, m.readTime) {
		return 0
	}
	m.proc.Overlay.ClearAll()
	return m.gapTime
}

// sleep waits for d unless ctx is cancelled first. Returns false on cancel.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
