// Copyright (c) 2026 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package peer

import (
	"bufio"
	"errors"
	"io"
	"net"
	"strings"
	"sync"

	"github.com/decred/chatd/internal/wire"
	"github.com/gorilla/websocket"
)

// Conn is a bidirectional line transport.
type Conn interface {
	// ReadLine returns the next inbound line without its terminator.
	ReadLine() (string, error)

	// WriteLine writes a single line.  The transport adds any framing.
	WriteLine(line string) error

	// Close closes the transport, unblocking any pending ReadLine.
	Close() error

	// RemoteAddr returns the address of the remote end.
	RemoteAddr() net.Addr
}

// streamConn frames lines over a byte stream with CRLF terminators.
type streamConn struct {
	conn    net.Conn
	scanner *bufio.Scanner
	w       *bufio.Writer
}

// NewStreamConn returns a Conn framing newline terminated lines over a byte
// stream such as a TCP connection.
func NewStreamConn(conn net.Conn) Conn {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 512), wire.MaxLineLength+2)
	return &streamConn{
		conn:    conn,
		scanner: scanner,
		w:       bufio.NewWriter(conn),
	}
}

// ReadLine returns the next line.  A trailing CR is removed.
//
// This is part of the Conn interface.
func (c *streamConn) ReadLine() (string, error) {
	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return c.scanner.Text(), nil
}

// WriteLine writes the line followed by CRLF.
//
// This is part of the Conn interface.
func (c *streamConn) WriteLine(line string) error {
	if _, err := c.w.WriteString(line); err != nil {
		return err
	}
	if _, err := c.w.WriteString("\r\n"); err != nil {
		return err
	}
	return c.w.Flush()
}

// Close closes the underlying stream.
//
// This is part of the Conn interface.
func (c *streamConn) Close() error {
	return c.conn.Close()
}

// RemoteAddr returns the remote address of the stream.
//
// This is part of the Conn interface.
func (c *streamConn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// wsConn carries lines in websocket text messages.  Inbound messages may hold
// several newline separated lines while every outbound line is sent as its
// own message without a terminator.
type wsConn struct {
	conn    *websocket.Conn
	pending []string

	writeMtx sync.Mutex
}

// NewWebsocketConn returns a Conn carrying lines over the websocket.
func NewWebsocketConn(conn *websocket.Conn) Conn {
	conn.SetReadLimit(wire.MaxLineLength)
	return &wsConn{conn: conn}
}

// ReadLine returns the next line, reading another websocket message when the
// lines of the previous one are exhausted.
//
// This is part of the Conn interface.
func (c *wsConn) ReadLine() (string, error) {
	for len(c.pending) == 0 {
		msgType, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure,
				websocket.CloseGoingAway) {

				return "", io.EOF
			}
			return "", err
		}
		if msgType != websocket.TextMessage {
			continue
		}
		for _, line := range strings.Split(string(msg), "\n") {
			line = strings.TrimRight(line, "\r")
			if line != "" {
				c.pending = append(c.pending, line)
			}
		}
	}
	line := c.pending[0]
	c.pending = c.pending[1:]
	return line, nil
}

// WriteLine sends the line as a single text message.
//
// This is part of the Conn interface.
func (c *wsConn) WriteLine(line string) error {
	c.writeMtx.Lock()
	defer c.writeMtx.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, []byte(line))
}

// Close sends a close frame when possible and closes the websocket.
//
// This is part of the Conn interface.
func (c *wsConn) Close() error {
	c.writeMtx.Lock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	err := c.conn.WriteMessage(websocket.CloseMessage, msg)
	c.writeMtx.Unlock()
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		log.Tracef("Unable to send websocket close: %v", err)
	}
	return c.conn.Close()
}

// RemoteAddr returns the remote address of the websocket.
//
// This is part of the Conn interface.
func (c *wsConn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}
