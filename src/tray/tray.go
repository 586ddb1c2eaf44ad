// Package tray hosts the system tray icon and menu. Menu clicks hand off to
// the event loop; the tray never runs pipeline work itself.
package tray

import (
	"log"
	"sync"

	"github.com/getlantern/systray"
)

// Callbacks connect menu items to the event loop.
type Callbacks struct {
	OnTranslate   func()
	OnWatchToggle func()
	OnQuit        func()
}

var (
	mu         sync.Mutex
	callbacks  Callbacks
	mTranslate *systray.MenuItem
	mWatch     *systray.MenuItem
	watching   bool
)

// Run starts the systray loop. Blocks until Quit is called, so the caller
// usually runs it on the main goroutine with everything else already started.
func Run(cb Callbacks) {
	mu.Lock()
	callbacks = cb
	mu.Unlock()
	systray.Run(onReady, onExit)
}

// Quit tears down the tray and unblocks Run.
func Quit() {
	systray.Quit()
}

// SetWatching flips the watch menu item between start and stop labels.
func SetWatching(active bool) {
	mu.Lock()
	defer mu.Unlock()
	watching = active
	if mWatch == nil {
		return
	}
	if active {
		mWatch.SetTitle("Stop Watching")
		systray.SetTooltip("Screen Translator (watching)")
	} else {
		mWatch.SetTitle("Watch Region")
		systray.SetTooltip("Screen Translator")
	}
}

func onReady() {
	systray.SetIcon(iconBytes())
	systray.SetTitle("Screen Translator")
	systray.SetTooltip("Screen Translator")

	mu.Lock()
	mTranslate = systray.AddMenuItem("Translate Region", "Select a region and translate it once")
	mWatch = systray.AddMenuItem("Watch Region", "Select a region and keep translating it")
	mu.Unlock()
	systray.AddSeparator()
	mQuit := systray.AddMenuItem("Quit", "Exit the application")

	go func() {
		for {
			select {
			case <-mTranslate.ClickedCh:
				fire(callbacks.OnTranslate)
			case <-mWatch.ClickedCh:
				fire(callbacks.OnWatchToggle)
			case <-mQuit.ClickedCh:
				fire(callbacks.OnQuit)
				systray.Quit()
				return
			}
		}
	}()
}

func onExit() {
	log.Printf("Tray: exited")
}

func fire(cb func()) {
	if cb != nil {
		cb()
	}
}
