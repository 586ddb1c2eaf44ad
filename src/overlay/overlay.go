// Package overlay owns the borderless transparent click-through surfaces
// that render translated text on top of every physical display, including
// above full-screen exclusive applications.
package overlay

import (
	"fmt"
	"image"
	"log"
	"sync"
	"time"

	"screen-translator/src/capture"
)

// TextBox is one translated OCR hit positioned in full-display coordinates.
type TextBox struct {
	OriginalText   string
	TranslatedText string
	X              int
	Y              int
	Width          int
	Height         int
	Confidence     float64
}

// Frame is one content push targeting a single display's surface.
type Frame struct {
	Boxes         []TextBox
	DisplayID     int
	CaptureScale  float64
	DisplayScale  float64
	DisplayBounds image.Rectangle
}

// Surface is one compositor window bound to a display's work area.
// Implementations must tolerate repeated Show/Hide/Clear calls.
type Surface interface {
	Show() error
	Hide() error
	// RaiseToTop re-asserts the highest available compositing level.
	// Full-screen exclusive applications can silently steal the top slot,
	// so this is called on every update and on a periodic timer.
	RaiseToTop() error
	// SetBoxes is the primary content delivery path.
	SetBoxes(boxes []TextBox) error
	// SetBoxesDirect is the fallback delivery path used when SetBoxes
	// fails, so a single channel failure does not drop an update.
	SetBoxesDirect(boxes []TextBox) error
	Clear() error
	Destroy() error
}

// SurfaceFactory creates a surface covering bounds on the given display.
// It must not return until the surface is ready to accept content.
type SurfaceFactory func(displayID int, bounds image.Rectangle) (Surface, error)

// DisplayLister enumerates the current display topology.
type DisplayLister func() ([]capture.DisplayInfo, error)

const defaultLevelInterval = 5 * time.Second

// Manager owns the displayID -> surface registry. All mutation goes through
// its methods; other components only push content or clear.
type Manager struct {
	mu            sync.Mutex
	surfaces      map[int]Surface
	newSurface    SurfaceFactory
	listDisplays  DisplayLister
	active        bool
	levelStop     chan struct{}
	levelInterval time.Duration
}

func NewManager(factory SurfaceFactory, lister DisplayLister) *Manager {
	if factory == nil {
		factory = NewSurface
	}
	if lister == nil {
		lister = capture.EnumerateDisplays
	}
	return &Manager{
		surfaces:      make(map[int]Surface),
		newSurface:    factory,
		listDisplays:  lister,
		levelInterval: defaultLevelInterval,
	}
}

// Start creates one surface per currently-enumerated display, skipping any
// display that already has one. Calling while already active is a no-op.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active {
		return nil
	}

	displays, err := m.listDisplays()
	if err != nil {
		return fmt.Errorf("failed to enumerate displays: %w", err)
	}
	for _, d := range displays {
		if _, ok := m.surfaces[d.ID]; ok {
			continue
		}
		s, err := m.newSurface(d.ID, d.WorkArea)
		if err != nil {
			log.Printf("Overlay: failed to create surface for display %d: %v", d.ID, err)
			continue
		}
		m.surfaces[d.ID] = s
	}

	m.active = true
	m.startLevelMaintenanceLocked()
	return nil
}

// Active reports whether Start has run and Stop has not.
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// SurfaceCount returns the number of live surfaces.
func (m *Manager) SurfaceCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.surfaces)
}

// Update delivers translated boxes to the surface for frame.DisplayID,
// creating it on demand. The surface is shown and raised before content is
// pushed: a surface hidden by a previous clear must be reactivated or the
// new content would never be seen.
func (m *Manager) Update(frame Frame) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.surfaces[frame.DisplayID]
	if !ok {
		bounds := frame.DisplayBounds
		if bounds.Empty() {
			if d, err := m.findDisplayLocked(frame.DisplayID); err == nil {
				bounds = d.WorkArea
			}
		}
		created, err := m.newSurface(frame.DisplayID, bounds)
		if err != nil {
			return fmt.Errorf("failed to create surface for display %d: %w", frame.DisplayID, err)
		}
		m.surfaces[frame.DisplayID] = created
		s = created
		if !m.active {
			m.active = true
		}
		m.startLevelMaintenanceLocked()
	}

	if err := s.Show(); err != nil {
		log.Printf("Overlay: show failed for display %d: %v", frame.DisplayID, err)
	}
	if err := s.RaiseToTop(); err != nil {
		log.Printf("Overlay: raise failed for display %d: %v", frame.DisplayID, err)
	}

	boxes := scaleBoxes(frame)
	if err := s.SetBoxes(boxes); err != nil {
		log.Printf("Overlay: primary delivery failed for display %d: %v, trying direct path", frame.DisplayID, err)
		if derr := s.SetBoxesDirect(boxes); derr != nil {
			log.Printf("Overlay: direct delivery also failed for display %d: %v, dropping update", frame.DisplayID, derr)
			return derr
		}
	}
	return nil
}

// scaleBoxes maps capture-space coordinates to surface coordinates when the
// capture scale differs from the display scale (DPI scaling).
func scaleBoxes(frame Frame) []TextBox {
	if frame.CaptureScale <= 0 || frame.DisplayScale <= 0 || frame.CaptureScale == frame.DisplayScale {
		return frame.Boxes
	}
	ratio := frame.DisplayScale / frame.CaptureScale
	scaled := make([]TextBox, len(frame.Boxes))
	for i, b := range frame.Boxes {
		b.X = int(float64(b.X) * ratio)
		b.Y = int(float64(b.Y) * ratio)
		b.Width = int(float64(b.Width) * ratio)
		b.Height = int(float64(b.Height) * ratio)
		scaled[i] = b
	}
	return scaled
}

// ClearAll wipes text content from every surface without hiding or
// destroying it. Surfaces are shown first so the next update finds them
// ready.
func (m *Manager) ClearAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.surfaces {
		if err := s.Show(); err != nil {
			log.Printf("Overlay: show-before-clear failed for display %d: %v", id, err)
		}
		if err := s.Clear(); err != nil {
			log.Printf("Overlay: clear failed for display %d: %v", id, err)
		}
	}
}

// Stop hides, clears and destroys every surface and empties the registry.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
}

// ForceCleanup is Stop plus an unconditional halt of level maintenance,
// for abnormal shutdown paths where active-state bookkeeping may be off.
func (m *Manager) ForceCleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
	m.stopLevelMaintenanceLocked()
}

func (m *Manager) stopLocked() {
	for id, s := range m.surfaces {
		if err := s.Hide(); err != nil {
			log.Printf("Overlay: hide failed for display %d: %v", id, err)
		}
		if err := s.Clear(); err != nil {
			log.Printf("Overlay: clear failed for display %d: %v", id, err)
		}
		if err := s.Destroy(); err != nil {
			log.Printf("Overlay: destroy failed for display %d: %v", id, err)
		}
		delete(m.surfaces, id)
	}
	m.active = false
	m.stopLevelMaintenanceLocked()
}

// HandleDisplayChange reconciles surfaces against the current topology:
// surfaces for vanished displays are destroyed, newly-present displays get
// fresh surfaces. Called on every OS display-change notification.
func (m *Manager) HandleDisplayChange() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.active {
		return
	}

	displays, err := m.listDisplays()
	if err != nil {
		log.Printf("Overlay: display enumeration failed during topology change: %v", err)
		return
	}

	present := make(map[int]capture.DisplayInfo, len(displays))
	for _, d := range displays {
		present[d.ID] = d
	}

	for id, s := range m.surfaces {
		if _, ok := present[id]; ok {
			continue
		}
		log.Printf("Overlay: display %d disappeared, destroying its surface", id)
		if err := s.Destroy(); err != nil {
			log.Printf("Overlay: destroy failed for display %d: %v", id, err)
		}
		delete(m.surfaces, id)
	}

	for id, d := range present {
		if _, ok := m.surfaces[id]; ok {
			continue
		}
		s, err := m.newSurface(id, d.WorkArea)
		if err != nil {
			log.Printf("Overlay: failed to create surface for new display %d: %v", id, err)
			continue
		}
		m.surfaces[id] = s
	}
}

func (m *Manager) findDisplayLocked(id int) (capture.DisplayInfo, error) {
	displays, err := m.listDisplays()
	if err != nil {
		return capture.DisplayInfo{}, err
	}
	for _, d := range displays {
		if d.ID == id {
			return d, nil
		}
	}
	return capture.DisplayInfo{}, fmt.Errorf("display %d not found", id)
}

func (m *Manager) startLevelMaintenanceLocked() {
	if m.levelStop != nil {
		return
	}
	stop := make(chan struct{})
	m.levelStop = stop
	interval := m.levelInterval
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				m.raiseAll()
			}
		}
	}()
}

func (m *Manager) stopLevelMaintenanceLocked() {
	if m.levelStop != nil {
		close(m.levelStop)
		m.levelStop = nil
	}
}

func (m *Manager) raiseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.active {
		return
	}
	for id, s := range m.surfaces {
		if err := s.RaiseToTop(); err != nil {
			log.Printf("Overlay: periodic raise failed for display %d: %v", id, err)
		}
	}
}
