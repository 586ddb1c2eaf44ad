package capture

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"sort"

	"github.com/kbinani/screenshot"
)

// Region is a user-selected rectangle in the coordinate space of one
// physical display, identified by that display's stable id.
type Region struct {
	X         int
	Y         int
	Width     int
	Height    int
	DisplayID int
}

func (r Region) Valid() bool { return r.Width > 0 && r.Height > 0 }

// DisplayInfo describes one physical display. ID is a stable per-topology
// ordinal assigned left-to-right, top-to-bottom, so "Screen 1" is always the
// same monitor for a given arrangement. Index is the OS enumeration index
// needed for the capture call.
type DisplayInfo struct {
	ID          int
	Index       int
	Bounds      image.Rectangle
	WorkArea    image.Rectangle
	ScaleFactor float64
}

// Frame is one captured display bitmap plus the metadata the overlay needs
// to map OCR coordinates back onto the screen.
type Frame struct {
	PNG         []byte
	Width       int
	Height      int
	Bounds      image.Rectangle
	ScaleFactor float64
}

// EnumerateDisplays lists active displays sorted left-to-right then
// top-to-bottom and assigns stable ids in that order.
func EnumerateDisplays() ([]DisplayInfo, error) {
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return nil, fmt.Errorf("no active displays found")
	}

	displays := make([]DisplayInfo, 0, n)
	for i := 0; i < n; i++ {
		b := screenshot.GetDisplayBounds(i)
		displays = append(displays, DisplayInfo{
			Index:       i,
			Bounds:      b,
			WorkArea:    workAreaFor(b),
			ScaleFactor: scaleFactorFor(b),
		})
	}
	sortDisplays(displays)
	for i := range displays {
		displays[i].ID = i
	}
	return displays, nil
}

// sortDisplays orders displays left-to-right, breaking ties top-to-bottom.
func sortDisplays(displays []DisplayInfo) {
	sort.SliceStable(displays, func(i, j int) bool {
		a, b := displays[i].Bounds, displays[j].Bounds
		if a.Min.X != b.Min.X {
			return a.Min.X < b.Min.X
		}
		return a.Min.Y < b.Min.Y
	})
}

// FindDisplay resolves a stable display id against the current topology.
func FindDisplay(id int) (DisplayInfo, error) {
	displays, err := EnumerateDisplays()
	if err != nil {
		return DisplayInfo{}, err
	}
	for _, d := range displays {
		if d.ID == id {
			return d, nil
		}
	}
	return DisplayInfo{}, fmt.Errorf("display %d not present in current topology", id)
}

// DisplayNearPoint returns the display containing the point, or the display
// whose bounds are closest when the point sits outside every display.
func DisplayNearPoint(x, y int) (DisplayInfo, error) {
	displays, err := EnumerateDisplays()
	if err != nil {
		return DisplayInfo{}, err
	}
	p := image.Pt(x, y)
	best := displays[0]
	bestDist := -1
	for _, d := range displays {
		if p.In(d.Bounds) {
			return d, nil
		}
		dist := rectDistance(d.Bounds, p)
		if bestDist < 0 || dist < bestDist {
			best, bestDist = d, dist
		}
	}
	return best, nil
}

func rectDistance(r image.Rectangle, p image.Point) int {
	dx := 0
	if p.X < r.Min.X {
		dx = r.Min.X - p.X
	} else if p.X > r.Max.X {
		dx = p.X - r.Max.X
	}
	dy := 0
	if p.Y < r.Min.Y {
		dy = r.Min.Y - p.Y
	} else if p.Y > r.Max.Y {
		dy = p.Y - r.Max.Y
	}
	return dx*dx + dy*dy
}

// CaptureDisplay captures the full bitmap of the display with the given
// stable id and returns it PNG-encoded.
func CaptureDisplay(id int) (Frame, error) {
	d, err := FindDisplay(id)
	if err != nil {
		return Frame{}, err
	}
	img, err := screenshot.CaptureRect(d.Bounds)
	if err != nil {
		return Frame{}, fmt.Errorf("failed to capture display %d: %w", id, err)
	}
	return encodeFrame(img, d)
}

func encodeFrame(img *image.RGBA, d DisplayInfo) (Frame, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return Frame{}, fmt.Errorf("failed to encode frame as PNG: %w", err)
	}
	b := img.Bounds()
	return Frame{
		PNG:         buf.Bytes(),
		Width:       b.Dx(),
		Height:      b.Dy(),
		Bounds:      d.Bounds,
		ScaleFactor: d.ScaleFactor,
	}, nil
}
