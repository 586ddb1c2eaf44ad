//go:build windows

package selector

import (
	"context"
	"fmt"
	"log"
	"runtime"
	"syscall"
	"time"
	"unsafe"

	"github.com/lxn/win"

	"screen-translator/src/capture"
)

const (
	minSelectionSpan  = 5
	keyPollTimerID    = 1
	keyPollIntervalMs = 25

	// WM_APP + 1, posted by the context watcher to break the message loop.
	wmSelectorCancel = 0x8000 + 1
)

var (
	user32DLL            = syscall.NewLazyDLL("user32.dll")
	gdi32DLL             = syscall.NewLazyDLL("gdi32.dll")
	procGetAsyncKeyState = user32DLL.NewProc("GetAsyncKeyState")
	procCreatePen        = gdi32DLL.NewProc("CreatePen")
	procRectangle        = gdi32DLL.NewProc("Rectangle")
)

// Selection state for the in-flight drag. The wndproc is a package-level
// callback, so the single active selection parks its state here; Select is
// single-flight by contract (event-loop owned).
var activeSelection *selectionState

type selectionState struct {
	display    capture.DisplayInfo
	selecting  bool
	startX     int32
	startY     int32
	endX       int32
	endY       int32
	escWasDown bool
	result     chan selectionResult
}

type selectionResult struct {
	region    capture.Region
	cancelled bool
}

type winSelector struct{}

func newPlatformSelector() Selector { return &winSelector{} }

// Select opens a dimmed drag surface over the display nearest the cursor and
// blocks in a message loop until the user resolves or cancels. The surface
// is destroyed unconditionally on every outcome.
func (w *winSelector) Select(ctx context.Context) (capture.Region, bool, error) {
	// The selection window needs a stable thread for its message loop.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	var pt win.POINT
	win.GetCursorPos(&pt)
	display, err := capture.DisplayNearPoint(int(pt.X), int(pt.Y))
	if err != nil {
		return capture.Region{}, false, ErrNoDisplay
	}
	log.Printf("Selector: selecting on display %d, bounds %v", display.ID, display.Bounds)

	state := &selectionState{
		display: display,
		result:  make(chan selectionResult, 1),
	}
	activeSelection = state
	defer func() { activeSelection = nil }()

	classNameStr := fmt.Sprintf("RegionSelect_%d", time.Now().UnixNano())
	className := syscall.StringToUTF16Ptr(classNameStr)
	wndClass := win.WNDCLASSEX{
		CbSize:        uint32(unsafe.Sizeof(win.WNDCLASSEX{})),
		Style:         win.CS_HREDRAW | win.CS_VREDRAW,
		LpfnWndProc:   syscall.NewCallback(selectionWndProc),
		HInstance:     win.GetModuleHandle(nil),
		HCursor:       win.LoadCursor(0, win.MAKEINTRESOURCE(win.IDC_CROSS)),
		HbrBackground: 0,
		LpszClassName: className,
	}
	if atom := win.RegisterClassEx(&wndClass); atom == 0 {
		return capture.Region{}, false, fmt.Errorf("failed to register selection window class")
	}
	defer win.UnregisterClass(className)

	b := display.Bounds
	hwnd := win.CreateWindowEx(
		win.WS_EX_TOPMOST|win.WS_EX_LAYERED,
		className,
		syscall.StringToUTF16Ptr("Select Region - drag to select, ESC cancels"),
		win.WS_POPUP,
		int32(b.Min.X), int32(b.Min.Y), int32(b.Dx()), int32(b.Dy()),
		0, 0, win.GetModuleHandle(nil), nil,
	)
	if hwnd == 0 {
		return capture.Region{}, false, fmt.Errorf("failed to create selection window")
	}
	defer win.DestroyWindow(hwnd)

	// Dim the display under the selection surface.
	win.SetLayeredWindowAttributes(hwnd, 0, 64, win.LWA_ALPHA)
	win.ShowWindow(hwnd, win.SW_SHOW)
	win.SetForegroundWindow(hwnd)
	win.UpdateWindow(hwnd)

	// Poll ESC on a timer: the layered popup does not reliably receive key
	// messages before the first click gives it focus.
	if timerID := win.SetTimer(hwnd, keyPollTimerID, keyPollIntervalMs, 0); timerID == 0 {
		log.Printf("Selector: failed to start keyboard poll timer")
	}
	defer win.KillTimer(hwnd, keyPollTimerID)

	// Wake the message loop when the caller goes away mid-drag, so the
	// dimmed surface is torn down without waiting for user input.
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			win.PostMessage(hwnd, wmSelectorCancel, 0, 0)
		case <-watchDone:
		}
	}()

	var msg win.MSG
	for {
		ret := win.GetMessage(&msg, 0, 0, 0)
		if ret == 0 { // WM_QUIT
			return capture.Region{}, true, nil
		}
		if ret == -1 {
			return capture.Region{}, false, fmt.Errorf("selection message loop error")
		}
		win.TranslateMessage(&msg)
		win.DispatchMessage(&msg)

		select {
		case res := <-state.result:
			if res.cancelled {
				if err := ctx.Err(); err != nil {
					return capture.Region{}, false, err
				}
				return capture.Region{}, true, nil
			}
			// Honor a cancellation that raced the mouse-up.
			select {
			case <-ctx.Done():
				return capture.Region{}, false, ctx.Err()
			default:
			}
			return res.region, false, nil
		default:
		}
	}
}

func selectionWndProc(hwnd win.HWND, msg uint32, wParam, lParam uintptr) uintptr {
	s := activeSelection
	if s == nil {
		return win.DefWindowProc(hwnd, msg, wParam, lParam)
	}

	switch msg {
	case win.WM_LBUTTONDOWN:
		win.SetCapture(hwnd)
		s.selecting = true
		s.startX = int32(win.LOWORD(uint32(lParam)))
		s.startY = int32(win.HIWORD(uint32(lParam)))
		s.endX, s.endY = s.startX, s.startY
		win.InvalidateRect(hwnd, nil, false)
		return 0

	case win.WM_MOUSEMOVE:
		if s.selecting {
			s.endX = int32(win.LOWORD(uint32(lParam)))
			s.endY = int32(win.HIWORD(uint32(lParam)))
			win.InvalidateRect(hwnd, nil, false)
			win.UpdateWindow(hwnd)
		}
		return 0

	case win.WM_LBUTTONUP:
		if s.selecting {
			win.ReleaseCapture()
			s.selecting = false
			s.endX = int32(win.LOWORD(uint32(lParam)))
			s.endY = int32(win.HIWORD(uint32(lParam)))
			s.resolve()
		}
		return 0

	case win.WM_TIMER:
		if wParam == keyPollTimerID {
			escDown := isKeyDown(win.VK_ESCAPE)
			if escDown && !s.escWasDown {
				s.cancel()
			}
			s.escWasDown = escDown
		}
		return 0

	case win.WM_KEYDOWN:
		if wParam == win.VK_ESCAPE {
			s.cancel()
		}
		return 0

	case wmSelectorCancel:
		s.cancel()
		return 0

	case win.WM_PAINT:
		s.paint(hwnd)
		return 0
	}
	return win.DefWindowProc(hwnd, msg, wParam, lParam)
}

func isKeyDown(vk int32) bool {
	state, _, _ := procGetAsyncKeyState.Call(uintptr(vk))
	return uint16(state)&0x8000 != 0
}

// resolve converts the drag into a Region in the display's coordinate space.
// Drags below the minimum span count as a cancel (accidental click).
func (s *selectionState) resolve() {
	x1, x2 := orderCoords(s.startX, s.endX)
	y1, y2 := orderCoords(s.startY, s.endY)
	if x2-x1 < minSelectionSpan || y2-y1 < minSelectionSpan {
		s.cancel()
		return
	}
	region := capture.Region{
		X:         int(x1),
		Y:         int(y1),
		Width:     int(x2 - x1),
		Height:    int(y2 - y1),
		DisplayID: s.display.ID,
	}
	log.Printf("Selector: region selected %+v", region)
	select {
	case s.result <- selectionResult{region: region}:
	default:
	}
}

func (s *selectionState) cancel() {
	log.Printf("Selector: selection cancelled")
	select {
	case s.result <- selectionResult{cancelled: true}:
	default:
	}
}

func orderCoords(a, b int32) (int32, int32) {
	if b < a {
		return b, a
	}
	return a, b
}

func (s *selectionState) paint(hwnd win.HWND) {
	var ps win.PAINTSTRUCT
	hdc := win.BeginPaint(hwnd, &ps)
	if hdc == 0 {
		return
	}
	defer win.EndPaint(hwnd, &ps)

	bg := win.CreateSolidBrush(0x00000000)
	full := win.RECT{
		Left: 0, Top: 0,
		Right:  int32(s.display.Bounds.Dx()),
		Bottom: int32(s.display.Bounds.Dy()),
	}
	win.FillRect(hdc, &full, bg)
	win.DeleteObject(win.HGDIOBJ(bg))

	if !s.selecting {
		return
	}
	drawSelectionRectangle(hdc, s.startX, s.startY, s.endX, s.endY)
}

func drawSelectionRectangle(hdc win.HDC, startX, startY, endX, endY int32) {
	pen, _, _ := procCreatePen.Call(0, 3, 0x00D7FF) // PS_SOLID, amber
	oldPen := win.SelectObject(hdc, win.HGDIOBJ(pen))
	oldBrush := win.SelectObject(hdc, win.GetStockObject(win.NULL_BRUSH))

	left, right := orderCoords(startX, endX)
	top, bottom := orderCoords(startY, endY)
	procRectangle.Call(uintptr(hdc), uintptr(left), uintptr(top), uintptr(right), uintptr(bottom))

	win.SelectObject(hdc, oldPen)
	win.SelectObject(hdc, oldBrush)
	win.DeleteObject(win.HGDIOBJ(pen))
}
