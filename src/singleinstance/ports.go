package singleinstance

import (
	"os"
	"strconv"
)

const (
	defaultPortStart = 47600
	defaultPortEnd   = 47620
)

// portRange returns the inclusive TCP port range the resident may occupy.
// Overridable via SCREEN_TRANSLATOR_PORT_START and SCREEN_TRANSLATOR_PORT_END
// so parallel test runs and multi-user machines can avoid collisions. Values
// are clamped to [1024, 65535].
func portRange() (int, int) {
	start := defaultPortStart
	end := defaultPortEnd
	if v := os.Getenv("SCREEN_TRANSLATOR_PORT_START"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			start = n
		}
	}
	if v := os.Getenv("SCREEN_TRANSLATOR_PORT_END"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			end = n
		}
	}
	if start < 1024 {
		start = 1024
	}
	if end > 65535 {
		end = 65535
	}
	if end < start {
		start, end = end, start
	}
	return start, end
}

// PortRange exposes the effective range for startup logging.
func PortRange() (int, int) { return portRange() }
