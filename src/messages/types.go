package messages

import (
	"screen-translator/src/capture"
)

// Message is the base interface for notifications the pipeline emits to the
// surrounding UI (tray, CLI).
type Message interface {
	Type() string
}

const (
	TypeRegionSelected     = "RegionSelected"
	TypeRegionCancelled    = "RegionCancelled"
	TypeBoxProcessingStart = "BoxProcessingStarted"
	TypeBoxProcessingDone  = "BoxProcessingComplete"
	TypeWatchStarted       = "WatchStarted"
	TypeWatchStopped       = "WatchStopped"
	TypeDisplayChanged     = "DisplayTopologyChanged"
)

// RegionSelected - the user finished dragging a selection rectangle.
type RegionSelected struct {
	Region capture.Region
}

func (m RegionSelected) Type() string { return TypeRegionSelected }

// RegionCancelled - the user dismissed the selection surface.
type RegionCancelled struct{}

func (m RegionCancelled) Type() string { return TypeRegionCancelled }

// BoxProcessingStarted - a one-shot translation pass began.
type BoxProcessingStarted struct {
	Region capture.Region
}

func (m BoxProcessingStarted) Type() string { return TypeBoxProcessingStart }

// BoxProcessingComplete - a one-shot translation pass finished.
type BoxProcessingComplete struct {
	BoxCount int
	Err      error
}

func (m BoxProcessingComplete) Type() string { return TypeBoxProcessingDone }

// WatchStarted - a continuous watch session became active.
type WatchStarted struct {
	SessionID string
}

func (m WatchStarted) Type() string { return TypeWatchStarted }

// WatchStopped - the active watch session ended.
type WatchStopped struct {
	SessionID string
}

func (m WatchStopped) Type() string { return TypeWatchStopped }

// DisplayTopologyChanged - the OS reported a display connect/disconnect.
type DisplayTopologyChanged struct{}

func (m DisplayTopologyChanged) Type() string { return TypeDisplayChanged }
