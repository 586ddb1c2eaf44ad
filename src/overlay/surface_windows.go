//go:build windows

package overlay

import (
	"fmt"
	"image"
	"runtime"
	"sync"
	"syscall"
	"time"
	"unsafe"

	"github.com/lxn/win"
)

// Win32 layered-window surface. The window is created and serviced on a
// dedicated OS-locked goroutine running its own message loop; content pushes
// arrive either as posted WM_APP messages (primary path) or as a direct
// invalidate from the caller's thread (fallback path).

const (
	wmAppRender  = 0x8000 + 1 // WM_APP + 1
	wmAppDestroy = 0x8000 + 2
)

// Magenta is the layered-window color key: pixels painted with it become
// fully transparent and click-through.
const colorKey = 0x00FF00FF

var (
	surfaceRegistry   = map[win.HWND]*winSurface{}
	surfaceRegistryMu sync.Mutex
)

type winSurface struct {
	hwnd      win.HWND
	bounds    image.Rectangle
	className *uint16

	mu    sync.Mutex
	boxes []TextBox

	ready     chan error
	destroyed chan struct{}
}

// NewSurface creates a borderless transparent click-through topmost window
// covering bounds and blocks until its message loop is running.
func NewSurface(displayID int, bounds image.Rectangle) (Surface, error) {
	if bounds.Empty() {
		return nil, fmt.Errorf("empty bounds for display %d", displayID)
	}
	s := &winSurface{
		bounds:    bounds,
		ready:     make(chan error, 1),
		destroyed: make(chan struct{}),
	}
	go s.run(displayID)
	if err := <-s.ready; err != nil {
		return nil, err
	}
	return s, nil
}

func (s *winSurface) run(displayID int) {
	// The window must live on one OS thread for its whole lifetime.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	classNameStr := fmt.Sprintf("TranslateOverlay_%d_%d", displayID, time.Now().UnixNano())
	s.className = syscall.StringToUTF16Ptr(classNameStr)
	wndClass := win.WNDCLASSEX{
		CbSize:        uint32(unsafe.Sizeof(win.WNDCLASSEX{})),
		Style:         win.CS_HREDRAW | win.CS_VREDRAW,
		LpfnWndProc:   syscall.NewCallback(surfaceWndProc),
		HInstance:     win.GetModuleHandle(nil),
		HbrBackground: 0,
		LpszClassName: s.className,
	}
	if atom := win.RegisterClassEx(&wndClass); atom == 0 {
		s.ready <- fmt.Errorf("failed to register overlay window class")
		return
	}
	defer win.UnregisterClass(s.className)

	hwnd := win.CreateWindowEx(
		win.WS_EX_LAYERED|win.WS_EX_TRANSPARENT|win.WS_EX_TOPMOST|win.WS_EX_TOOLWINDOW|win.WS_EX_NOACTIVATE,
		s.className,
		syscall.StringToUTF16Ptr("Screen Translator Overlay"),
		win.WS_POPUP,
		int32(s.bounds.Min.X), int32(s.bounds.Min.Y),
		int32(s.bounds.Dx()), int32(s.bounds.Dy()),
		0, 0, win.GetModuleHandle(nil), nil,
	)
	if hwnd == 0 {
		s.ready <- fmt.Errorf("failed to create overlay window")
		return
	}
	s.hwnd = hwnd

	surfaceRegistryMu.Lock()
	surfaceRegistry[hwnd] = s
	surfaceRegistryMu.Unlock()

	// Color-keyed transparency: everything painted with the key color is
	// invisible and lets clicks pass through.
	win.SetLayeredWindowAttributes(hwnd, colorKey, 0, win.LWA_COLORKEY)
	win.ShowWindow(hwnd, win.SW_SHOWNOACTIVATE)
	win.SetWindowPos(hwnd, win.HWND_TOPMOST, 0, 0, 0, 0,
		win.SWP_NOMOVE|win.SWP_NOSIZE|win.SWP_NOACTIVATE)

	s.ready <- nil

	var msg win.MSG
	for {
		ret := win.GetMessage(&msg, 0, 0, 0)
		if ret <= 0 {
			break
		}
		win.TranslateMessage(&msg)
		win.DispatchMessage(&msg)
	}

	surfaceRegistryMu.Lock()
	delete(surfaceRegistry, hwnd)
	surfaceRegistryMu.Unlock()
	close(s.destroyed)
}

func surfaceWndProc(hwnd win.HWND, msg uint32, wParam, lParam uintptr) uintptr {
	surfaceRegistryMu.Lock()
	s := surfaceRegistry[hwnd]
	surfaceRegistryMu.Unlock()
	if s == nil {
		return win.DefWindowProc(hwnd, msg, wParam, lParam)
	}

	switch msg {
	case win.WM_PAINT:
		s.paint()
		return 0
	case wmAppRender:
		win.InvalidateRect(hwnd, nil, true)
		return 0
	case wmAppDestroy:
		win.DestroyWindow(hwnd)
		return 0
	case win.WM_DESTROY:
		win.PostQuitMessage(0)
		return 0
	}
	return win.DefWindowProc(hwnd, msg, wParam, lParam)
}

func (s *winSurface) paint() {
	var ps win.PAINTSTRUCT
	hdc := win.BeginPaint(s.hwnd, &ps)
	if hdc == 0 {
		return
	}
	defer win.EndPaint(s.hwnd, &ps)

	w := int32(s.bounds.Dx())
	h := int32(s.bounds.Dy())

	// Wipe to the color key first: anything not repainted below is
	// transparent screen.
	keyBrush := win.CreateSolidBrush(colorKey)
	full := win.RECT{Left: 0, Top: 0, Right: w, Bottom: h}
	win.FillRect(hdc, &full, keyBrush)
	win.DeleteObject(win.HGDIOBJ(keyBrush))

	s.mu.Lock()
	boxes := s.boxes
	s.mu.Unlock()
	if len(boxes) == 0 {
		return
	}

	bgBrush := win.CreateSolidBrush(0x00202020)
	defer win.DeleteObject(win.HGDIOBJ(bgBrush))
	win.SetBkMode(hdc, win.TRANSPARENT)
	win.SetTextColor(hdc, 0x00FFFFFF)

	for _, b := range boxes {
		// Box coordinates arrive in display space; the window origin is
		// the display work-area origin.
		rect := win.RECT{
			Left:   int32(b.X - s.bounds.Min.X),
			Top:    int32(b.Y - s.bounds.Min.Y),
			Right:  int32(b.X - s.bounds.Min.X + b.Width),
			Bottom: int32(b.Y - s.bounds.Min.Y + b.Height),
		}
		win.FillRect(hdc, &rect, bgBrush)

		font := fontForHeight(int32(b.Height))
		old := win.SelectObject(hdc, win.HGDIOBJ(font))
		text := syscall.StringToUTF16Ptr(b.TranslatedText)
		win.DrawTextEx(hdc, text, -1, &rect,
			win.DT_LEFT|win.DT_WORDBREAK|win.DT_NOPREFIX, nil)
		win.SelectObject(hdc, old)
		win.DeleteObject(win.HGDIOBJ(font))
	}
}

func fontForHeight(boxHeight int32) win.HFONT {
	height := boxHeight - 4
	if height < 10 {
		height = 10
	}
	if height > 48 {
		height = 48
	}
	lf := win.LOGFONT{
		LfHeight:  -height,
		LfWeight:  win.FW_SEMIBOLD,
		LfQuality: win.CLEARTYPE_QUALITY,
	}
	copy(lf.LfFaceName[:], syscall.StringToUTF16("Segoe UI"))
	return win.CreateFontIndirect(&lf)
}

func (s *winSurface) Show() error {
	if s.hwnd == 0 {
		return fmt.Errorf("surface window gone")
	}
	win.ShowWindow(s.hwnd, win.SW_SHOWNOACTIVATE)
	return nil
}

func (s *winSurface) Hide() error {
	if s.hwnd == 0 {
		return fmt.Errorf("surface window gone")
	}
	win.ShowWindow(s.hwnd, win.SW_HIDE)
	return nil
}

func (s *winSurface) RaiseToTop() error {
	if s.hwnd == 0 {
		return fmt.Errorf("surface window gone")
	}
	if !win.SetWindowPos(s.hwnd, win.HWND_TOPMOST, 0, 0, 0, 0,
		win.SWP_NOMOVE|win.SWP_NOSIZE|win.SWP_NOACTIVATE) {
		return fmt.Errorf("SetWindowPos failed")
	}
	return nil
}

func (s *winSurface) SetBoxes(boxes []TextBox) error {
	s.mu.Lock()
	s.boxes = boxes
	s.mu.Unlock()
	if !win.PostMessage(s.hwnd, wmAppRender, 0, 0) {
		return fmt.Errorf("failed to post render message")
	}
	return nil
}

// SetBoxesDirect invalidates from the caller's thread instead of going
// through the window's message queue.
func (s *winSurface) SetBoxesDirect(boxes []TextBox) error {
	s.mu.Lock()
	s.boxes = boxes
	s.mu.Unlock()
	if !win.InvalidateRect(s.hwnd, nil, true) {
		return fmt.Errorf("failed to invalidate overlay window")
	}
	win.UpdateWindow(s.hwnd)
	return nil
}

func (s *winSurface) Clear() error {
	return s.SetBoxesDirect(nil)
}

func (s *winSurface) Destroy() error {
	if s.hwnd == 0 {
		return nil
	}
	win.PostMessage(s.hwnd, wmAppDestroy, 0, 0)
	select {
	case <-s.destroyed:
	case <-time.After(2 * time.Second):
		return fmt.Errorf("overlay window did not shut down in time")
	}
	s.hwnd = 0
	return nil
}
