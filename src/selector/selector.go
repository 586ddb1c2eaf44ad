// Package selector implements interactive region selection: a transient
// borderless surface over the display nearest the pointer on which the user
// drags a rectangle.
package selector

import (
	"context"
	"errors"

	"screen-translator/src/capture"
)

var ErrNoDisplay = errors.New("no display available for selection")

// Selector is a synchronous region-selection API. The call blocks until the
// user finishes dragging or cancels, and MUST be invoked from the single
// event-loop goroutine. Returns (region, cancelled, error); when cancelled
// is true the region is undefined and err is nil. The selection surface is
// torn down unconditionally on every outcome.
type Selector interface {
	Select(ctx context.Context) (capture.Region, bool, error)
}

// New returns the platform implementation.
func New() Selector {
	return newPlatformSelector()
}
