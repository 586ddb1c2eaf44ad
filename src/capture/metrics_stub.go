//go:build !windows

package capture

import "image"

func scaleFactorFor(b image.Rectangle) float64 { return 1.0 }

func workAreaFor(b image.Rectangle) image.Rectangle { return b }
