package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"screen-translator/src/clipboard"
	"screen-translator/src/config"
	"screen-translator/src/eventloop"
	"screen-translator/src/messages"
	"screen-translator/src/overlay"
	"screen-translator/src/pipeline"
	"screen-translator/src/runtimeinit"
	"screen-translator/src/selector"
	"screen-translator/src/singleinstance"
	"screen-translator/src/tray"

	"screen-translator/src/hotkey"
)

// normalizeFlagDashes maps GNU-style --translate-once to Go's -translate-once
func normalizeFlagDashes() {
	for i := 1; i < len(os.Args); i++ {
		if strings.HasPrefix(os.Args[i], "--") {
			os.Args[i] = os.Args[i][1:]
		}
	}
}

// enableDPIAwareness sets per-monitor DPI awareness on Windows so captured
// pixels and window coordinates agree on scaled displays.
func enableDPIAwareness() {
	if runtime.GOOS != "windows" {
		return
	}
	shcore := syscall.NewLazyDLL("Shcore.dll")
	setProcessDpiAwareness := shcore.NewProc("SetProcessDpiAwareness")
	const PROCESS_PER_MONITOR_DPI_AWARE = 2
	if err := setProcessDpiAwareness.Find(); err == nil {
		_, _, _ = setProcessDpiAwareness.Call(uintptr(PROCESS_PER_MONITOR_DPI_AWARE))
		return
	}
	user32 := syscall.NewLazyDLL("user32.dll")
	setProcessDPIAware := user32.NewProc("SetProcessDPIAware")
	if err := setProcessDPIAware.Find(); err == nil {
		_, _, _ = setProcessDPIAware.Call()
	}
}

func main() {
	enableDPIAwareness()

	// Keep the main goroutine on its own OS thread; the tray and the
	// selection window both assume a stable thread identity.
	runtime.LockOSThread()

	translateOnce := flag.Bool("translate-once", false, "Select a region, translate it once, then exit")
	toStdout := flag.Bool("stdout", false, "With -translate-once, print translated text to stdout")
	sourceLang := flag.String("source", "", "Override source language (default: auto-detect)")
	targetLang := flag.String("target", "", "Override target language")
	normalizeFlagDashes()
	flag.Parse()

	loadOpts := config.LoadOptions{
		SourceLangOverride: *sourceLang,
		TargetLangOverride: *targetLang,
	}

	if *translateOnce {
		// Prefer delegating to a resident so we reuse its warm OCR engine.
		// Load .env early so SCREEN_TRANSLATOR_PORT_* apply to the scan.
		_, _ = config.Load()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		delegated, text, err := singleinstance.NewClient().Delegate(ctx, *toStdout)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Delegation failed: %v\n", err)
			os.Exit(1)
		}
		if delegated {
			if *toStdout {
				fmt.Print(text)
			}
			return
		}
		log.Printf("No resident detected, running standalone")
		runTranslateOnce(loadOpts, *toStdout)
		return
	}

	runResident(loadOpts)
}

func runResident(loadOpts config.LoadOptions) {
	// Claim the single-instance port before any expensive setup.
	_, _ = config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := singleinstance.NewServer()
	if err := srv.Start(ctx); err != nil {
		start, _ := singleinstance.PortRange()
		fmt.Fprintf(os.Stderr, "Another instance is already running (port %d): %v\n", start, err)
		os.Exit(1)
	}
	defer srv.Close()

	rt, err := runtimeinit.Bootstrap(runtimeinit.Options{LoadOptions: loadOpts})
	if err != nil {
		log.Fatalf("Startup failed: %v", err)
	}
	defer rt.Shutdown()
	cfg := rt.Config

	log.Printf("Screen Translator initialized")
	log.Printf("Model: %s, target language: %s", cfg.Model, cfg.TargetLang)
	log.Printf("Hotkeys: translate=%s watch=%s", cfg.HotkeyTranslate, cfg.HotkeyWatch)

	if err := rt.Overlays.Start(); err != nil {
		log.Fatalf("Failed to start overlay manager: %v", err)
	}

	sel := selector.New()
	loop := eventloop.New(cfg, rt.Processor, rt.Watcher, rt.Overlays, sel, func(msg messages.Message) {
		switch m := msg.(type) {
		case messages.WatchStarted:
			tray.SetWatching(true)
			log.Printf("Watch session %s started", m.SessionID)
		case messages.WatchStopped:
			tray.SetWatching(false)
			log.Printf("Watch session %s stopped", m.SessionID)
		default:
			log.Printf("Event: %s", msg.Type())
		}
	})

	hotkeys := hotkey.NewListener()
	hotkeys.Bind(cfg.HotkeyTranslate, loop.RequestTranslate)
	hotkeys.Bind(cfg.HotkeyWatch, loop.RequestWatchToggle)
	hotkeys.Start()
	defer hotkeys.Stop()

	go serveDelegations(ctx, srv, loop)

	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		<-ch
		cancel()
	}()

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("Event loop stopped: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		tray.Quit()
	}()

	// Blocks until Quit. Runs on the locked main thread.
	tray.Run(tray.Callbacks{
		OnTranslate:   loop.RequestTranslate,
		OnWatchToggle: loop.RequestWatchToggle,
		OnQuit:        cancel,
	})
	cancel()
	<-loopDone
}

// serveDelegations answers translate-once requests from later invocations.
// Each request is funneled through the event loop so the selection surface
// never runs concurrently with a hotkey-triggered one.
func serveDelegations(ctx context.Context, srv singleinstance.Server, loop *eventloop.Loop) {
	for {
		conn, err := srv.Next(ctx)
		if err != nil {
			return
		}
		handleDelegation(ctx, conn, loop)
	}
}

func handleDelegation(ctx context.Context, conn singleinstance.Conn, loop *eventloop.Loop) {
	defer conn.Close()

	boxes, cancelled, err := loop.RequestDelegatedTranslate(ctx)
	if cancelled {
		_ = conn.RespondError("selection cancelled")
		return
	}
	if err != nil && !errors.Is(err, pipeline.ErrNoTextFound) {
		_ = conn.RespondError(err.Error())
		return
	}
	if conn.Request().WantText {
		_ = conn.RespondText(joinTranslations(boxes))
		return
	}
	_ = conn.RespondText("")
}

// runTranslateOnce does one standalone pass without becoming resident.
func runTranslateOnce(loadOpts config.LoadOptions, toStdout bool) {
	rt, err := runtimeinit.Bootstrap(runtimeinit.Options{
		LoadOptions:   loadOpts,
		SkipClipboard: toStdout,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Startup failed: %v\n", err)
		os.Exit(1)
	}
	defer rt.Shutdown()
	cfg := rt.Config

	if err := rt.Overlays.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start overlay manager: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	region, cancelled, err := selector.New().Select(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Region selection failed: %v\n", err)
		os.Exit(1)
	}
	if cancelled {
		return
	}

	boxes, err := rt.Processor.ProcessRegion(ctx, region, cfg.SourceLang, cfg.TargetLang)
	if errors.Is(err, pipeline.ErrNoTextFound) {
		log.Printf("No text found in region")
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Translation pass failed: %v\n", err)
		os.Exit(1)
	}

	if toStdout {
		fmt.Print(joinTranslations(boxes))
	} else if cfg.CopyToClipboard {
		if err := clipboard.WriteBoxes(boxes); err != nil {
			log.Printf("Clipboard write failed: %v", err)
		}
	}

	// The overlay dies with the process; keep it on screen long enough
	// to be read.
	time.Sleep(time.Duration(cfg.ReadTimeSec) * time.Second)
}

func joinTranslations(boxes []overlay.TextBox) string {
	lines := make([]string, 0, len(boxes))
	for _, b := range boxes {
		lines = append(lines, b.TranslatedText)
	}
	return strings.Join(lines, "\n")
}
