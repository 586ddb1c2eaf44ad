package singleinstance

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"time"
)

type tcpClient struct{}

func newTCPClient() Client { return &tcpClient{} }

func (c *tcpClient) Delegate(ctx context.Context, wantText bool) (bool, string, error) {
	timeout := 2 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d > 0 {
			timeout = d
		}
	}

	start, end := portRange()
	for port := start; port <= end; port++ {
		addr := net.JoinHostPort(residentHost, strconv.Itoa(port))
		if !probeResident(addr, timeout) {
			continue
		}
		conn, err := net.DialTimeout("tcp", addr, timeout)
		if err != nil {
			continue
		}
		// Found a resident; from here on failures are real errors, not
		// reasons to fall back to a standalone run.
		text, err := delegateOn(conn, wantText)
		return true, text, err
	}
	return false, "", nil
}

// probeResident answers whether addr speaks our handshake. A successful
// dial alone is not enough: an unrelated program may own a port inside the
// scan range.
func probeResident(addr string, timeout time.Duration) bool {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return false
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(timeout))
	if _, err := conn.Write([]byte(pingLine)); err != nil {
		return false
	}
	resp, err := bufio.NewReader(conn).ReadString('\n')
	return err == nil && resp == pongLine
}

// delegateOn runs the request handshake on an established connection.
func delegateOn(conn net.Conn, wantText bool) (string, error) {
	defer conn.Close()

	w := bufio.NewWriter(conn)
	line := triggerLine
	if wantText {
		line = textLine
	}
	if _, err := w.WriteString(line); err != nil {
		return "", err
	}
	if err := w.Flush(); err != nil {
		return "", err
	}

	br := bufio.NewReader(conn)
	status, err := br.ReadString('\n')
	if err != nil {
		return "", err
	}
	body, _ := io.ReadAll(br)
	switch status {
	case okLine:
		return string(body), nil
	case errLine:
		return "", errors.New(string(body))
	}
	return "", errors.New("unexpected response: " + status)
}
