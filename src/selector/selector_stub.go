//go:build !windows

package selector

import (
	"context"
	"fmt"

	"screen-translator/src/capture"
)

type stubSelector struct{}

func newPlatformSelector() Selector { return &stubSelector{} }

// Select is a stub for non-Windows platforms.
func (stubSelector) Select(ctx context.Context) (capture.Region, bool, error) {
	return capture.Region{}, false, fmt.Errorf("interactive region selection not implemented for this platform")
}
