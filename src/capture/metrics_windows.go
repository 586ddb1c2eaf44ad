//go:build windows

package capture

import (
	"image"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32              = windows.NewLazySystemDLL("user32.dll")
	shcore              = windows.NewLazySystemDLL("Shcore.dll")
	procMonitorFromRect = user32.NewProc("MonitorFromRect")
	procGetDpiForMon    = shcore.NewProc("GetDpiForMonitor")
	procGetMonitorInfoW = user32.NewProc("GetMonitorInfoW")
)

const (
	monitorDefaultToNearest = 2
	mdtEffectiveDPI         = 0
	baseDPI                 = 96.0
)

type winRect struct {
	Left, Top, Right, Bottom int32
}

type monitorInfo struct {
	CbSize    uint32
	RcMonitor winRect
	RcWork    winRect
	DwFlags   uint32
}

func monitorForBounds(b image.Rectangle) uintptr {
	r := winRect{
		Left:   int32(b.Min.X),
		Top:    int32(b.Min.Y),
		Right:  int32(b.Max.X),
		Bottom: int32(b.Max.Y),
	}
	h, _, _ := procMonitorFromRect.Call(uintptr(unsafe.Pointer(&r)), monitorDefaultToNearest)
	return h
}

// scaleFactorFor queries the monitor's effective DPI. Falls back to 1.0 when
// Shcore is unavailable (pre-8.1).
func scaleFactorFor(b image.Rectangle) float64 {
	if err := procGetDpiForMon.Find(); err != nil {
		return 1.0
	}
	h := monitorForBounds(b)
	if h == 0 {
		return 1.0
	}
	var dpiX, dpiY uint32
	ret, _, _ := procGetDpiForMon.Call(h, mdtEffectiveDPI,
		uintptr(unsafe.Pointer(&dpiX)), uintptr(unsafe.Pointer(&dpiY)))
	if ret != 0 || dpiX == 0 {
		return 1.0
	}
	return float64(dpiX) / baseDPI
}

// workAreaFor returns the monitor work area (bounds minus taskbar).
func workAreaFor(b image.Rectangle) image.Rectangle {
	h := monitorForBounds(b)
	if h == 0 {
		return b
	}
	var mi monitorInfo
	mi.CbSize = uint32(unsafe.Sizeof(mi))
	ret, _, _ := procGetMonitorInfoW.Call(h, uintptr(unsafe.Pointer(&mi)))
	if ret == 0 {
		return b
	}
	return image.Rect(int(mi.RcWork.Left), int(mi.RcWork.Top), int(mi.RcWork.Right), int(mi.RcWork.Bottom))
}
