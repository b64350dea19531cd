// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2026 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package peer runs the reader and writer goroutines of a single connection,
// turning inbound lines into parsed messages and rendering queued replies.
package peer

import (
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/decred/chatd/internal/mailbox"
	"github.com/decred/chatd/internal/wire"
)

// setNickMsg updates the nick used when rendering subsequent replies.
type setNickMsg struct {
	nick string
}

// closeMsg closes the connection once every reply queued before it was
// written.
type closeMsg struct{}

// Peer is one connection with an inbound message stream and an unbounded
// outbound reply queue.  Replies are rendered with a context owned by the
// writer goroutine.
type Peer struct {
	conn       Conn
	addr       string
	host       string
	serverName string

	inbound  chan *wire.Message
	outQueue *mailbox.Mailbox[any]

	disconnected atomic.Bool
	quit         chan struct{}
	quitOnce     sync.Once
	wg           sync.WaitGroup
}

// New returns a peer for the connection.  Numerics are rendered with the
// server name as their source.  Start must be called to begin processing.
func New(conn Conn, serverName string) *Peer {
	addr := conn.RemoteAddr().String()
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	return &Peer{
		conn:       conn,
		addr:       addr,
		host:       host,
		serverName: serverName,
		inbound:    make(chan *wire.Message),
		outQueue:   mailbox.New[any](),
		quit:       make(chan struct{}),
	}
}

// String returns the remote address of the peer.
func (p *Peer) String() string {
	return p.addr
}

// Host returns the remote host without the port.
func (p *Peer) Host() string {
	return p.host
}

// shouldLogReadError returns whether or not the passed error, which is
// expected to have come from reading in the inHandler, should be logged.
func (p *Peer) shouldLogReadError(err error) bool {
	// No logging when the connection is being forcibly closed from the
	// server side.
	if p.disconnected.Load() {
		return false
	}

	// No logging when the remote end has disconnected.
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) ||
		errors.Is(err, io.ErrClosedPipe) {

		return false
	}

	return true
}

// inHandler reads and parses inbound lines.  Lines that fail to parse are
// logged and skipped.  It must be run as a goroutine.
func (p *Peer) inHandler() {
out:
	for {
		line, err := p.conn.ReadLine()
		if err != nil {
			if p.shouldLogReadError(err) {
				log.Errorf("Receive error from %s: %v", p, err)
			}
			break out
		}
		if line == "" {
			continue
		}

		msg, err := wire.ParseLine(line)
		if err != nil {
			log.Debugf("Ignoring line from %s: %v", p, err)
			continue
		}
		log.Tracef("Received %s from %s", msg.Command, p)

		select {
		case p.inbound <- msg:
		case <-p.quit:
			break out
		}
	}

	close(p.inbound)
	p.wg.Done()
	log.Tracef("Peer input handler done for %s", p)
}

// outHandler renders and writes queued replies.  It must be run as a
// goroutine.
func (p *Peer) outHandler() {
	rc := wire.RenderContext{ServerName: p.serverName}

out:
	for {
		select {
		case <-p.outQueue.Signal():
			for {
				item, ok := p.outQueue.Next()
				if !ok {
					break
				}
				switch msg := item.(type) {
				case *setNickMsg:
					rc.Nick = msg.nick

				case *closeMsg:
					p.Disconnect()
					break out

				case wire.Reply:
					line := msg.Render(&rc)
					if err := p.conn.WriteLine(line); err != nil {
						if !p.disconnected.Load() {
							log.Debugf("Send error to %s: %v", p, err)
						}
						p.Disconnect()
						break out
					}
				}
			}

		case <-p.quit:
			break out
		}
	}

	p.outQueue.Close()
	p.wg.Done()
	log.Tracef("Peer output handler done for %s", p)
}

// Start begins reading and writing.
func (p *Peer) Start() {
	p.wg.Add(2)
	go p.inHandler()
	go p.outHandler()
}

// Inbound returns the stream of parsed inbound messages.  It is closed once
// the connection can no longer be read.
func (p *Peer) Inbound() <-chan *wire.Message {
	return p.inbound
}

// Send queues the reply for writing.  It never blocks.
func (p *Peer) Send(reply wire.Reply) {
	p.outQueue.Send(reply)
}

// SetNick sets the nick that replies queued after this call are addressed
// to.
func (p *Peer) SetNick(nick string) {
	p.outQueue.Send(&setNickMsg{nick: nick})
}

// Close disconnects the peer after every reply queued so far has been
// written.
func (p *Peer) Close() {
	if err := p.outQueue.Send(&closeMsg{}); err != nil {
		p.Disconnect()
	}
}

// Disconnect closes the connection immediately.
func (p *Peer) Disconnect() {
	p.quitOnce.Do(func() {
		p.disconnected.Store(true)
		close(p.quit)
		p.conn.Close()
		log.Debugf("Disconnected %s", p)
	})
}

// Done returns a channel that is closed once the peer is disconnected.
func (p *Peer) Done() <-chan struct{} {
	return p.quit
}

// WaitForDisconnect waits until the peer is disconnected and its goroutines
// have finished.
func (p *Peer) WaitForDisconnect() {
	<-p.quit
	p.wg.Wait()
}
