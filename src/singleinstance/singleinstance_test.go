package singleinstance

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"
)

func useTestPorts(t *testing.T, start, end int) {
	t.Setenv("SCREEN_TRANSLATOR_PORT_START", strconv.Itoa(start))
	t.Setenv("SCREEN_TRANSLATOR_PORT_END", strconv.Itoa(end))
}

func TestDelegateRoundTrip(t *testing.T) {
	useTestPorts(t, 47700, 47705)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	srv := NewServer()
	if err := srv.Start(ctx); err != nil {
		t.Skipf("cannot bind loopback port: %v", err)
	}
	defer srv.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		delegated, text, err := NewClient().Delegate(ctx, true)
		if err != nil {
			t.Errorf("delegate: %v", err)
			return
		}
		if !delegated {
			t.Errorf("expected to find the resident")
		}
		if text != "hola\nmundo" {
			t.Errorf("text = %q, want %q", text, "hola\nmundo")
		}
	}()

	conn, err := srv.Next(ctx)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	defer conn.Close()
	if !conn.Request().WantText {
		t.Errorf("expected a text-bearing request")
	}
	if err := conn.RespondText("hola\nmundo"); err != nil {
		t.Fatalf("respond: %v", err)
	}
	<-done
}

func TestDelegateNoResident(t *testing.T) {
	useTestPorts(t, 47710, 47712)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	delegated, _, err := NewClient().Delegate(ctx, false)
	if err != nil {
		t.Fatalf("delegate: %v", err)
	}
	if delegated {
		t.Errorf("no resident is running, delegation should not happen")
	}
}

func TestSecondResidentRefused(t *testing.T) {
	useTestPorts(t, 47715, 47717)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	first := NewServer()
	if err := first.Start(ctx); err != nil {
		t.Skipf("cannot bind loopback port: %v", err)
	}
	defer first.Close()

	second := NewServer()
	if err := second.Start(ctx); err == nil {
		second.Close()
		t.Fatalf("second resident bound the anchor port, expected a refusal")
	}
}

func TestProbeIgnoresForeignListener(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("cannot bind loopback port: %v", err)
	}
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		// A listener in our scan range that never answers the handshake.
		conn.Close()
	}()

	if probeResident(ln.Addr().String(), 500*time.Millisecond) {
		t.Error("foreign listener mistaken for a resident")
	}
}

func TestPortRangeClamping(t *testing.T) {
	useTestPorts(t, 10, 99999)
	start, end := portRange()
	if start != 1024 || end != 65535 {
		t.Errorf("range = [%d,%d], want [1024,65535]", start, end)
	}

	useTestPorts(t, 50000, 48000)
	start, end = portRange()
	if start != 48000 || end != 50000 {
		t.Errorf("inverted range not normalized: [%d,%d]", start, end)
	}
}
