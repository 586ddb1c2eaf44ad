//go:build !windows

package overlay

import (
	"fmt"
	"image"
)

// NewSurface is a stub for non-Windows platforms.
func NewSurface(displayID int, bounds image.Rectangle) (Surface, error) {
	return nil, fmt.Errorf("overlay surfaces not implemented for this platform")
}
