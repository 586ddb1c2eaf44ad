// Package singleinstance keeps at most one resident translator per machine
// and lets later invocations delegate a translate-once request to it over
// TCP loopback instead of starting a second tray, hotkey hook and OCR engine.
package singleinstance

import (
	"context"
)

// Server is the resident side. It owns the loopback endpoint and hands
// accepted translate-once requests to the caller one at a time.
type Server interface {
	// Start binds the anchor port of the configured range. Fails when
	// another resident already holds it.
	Start(ctx context.Context) error
	// Port returns the bound TCP port, or 0 before Start.
	Port() int
	// Next blocks until a client request arrives or ctx ends.
	Next(ctx context.Context) (Conn, error)
	// Close releases the port and stops accepting clients.
	Close() error
}

// Conn is one accepted client request awaiting a response.
type Conn interface {
	// Request returns the parsed client request.
	Request() Request
	// RespondText reports success. text carries the translated lines when
	// the client asked for them and is empty for trigger-only requests.
	RespondText(text string) error
	// RespondError reports failure with a human-readable message.
	RespondError(msg string) error
	Close() error
}

// Request is a single translate-once delegation.
type Request struct {
	// WantText asks the resident to stream the translated text back so
	// the delegating process can print it to stdout. When false the
	// resident only renders the overlay.
	WantText bool
}

// Client is the delegating side.
type Client interface {
	// Delegate scans the configured port range for a resident and hands
	// it a translate-once request. delegated=false with a nil error means
	// no resident was found and the caller should run standalone.
	Delegate(ctx context.Context, wantText bool) (delegated bool, text string, err error)
}

func NewServer() Server { return newTCPServer() }
func NewClient() Client { return newTCPClient() }
