// Copyright (c) 2016 The btcsuite developers
// Copyright (c) 2017-2026 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package connmgr

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/decred/dcrd/crypto/rand"
)

var (
	// maxRetryDuration is the max duration of time retrying of a server
	// link is allowed to grow to.  The retry logic increases the interval
	// by the base retry duration for every failed attempt.
	maxRetryDuration = time.Minute * 5
)

const (
	// defaultRetryDuration is the default base duration of time for
	// retrying server links.
	defaultRetryDuration = time.Second * 5
)

// Role identifies the kind of connections a listener accepts.
type Role uint8

const (
	// RoleClient listeners accept client connections.
	RoleClient Role = iota

	// RoleServer listeners accept connections from linking servers.  Both
	// roles speak the same protocol until the remote side upgrades.
	RoleServer
)

// String returns a human-readable name for the role.
func (r Role) String() string {
	switch r {
	case RoleClient:
		return "client"
	case RoleServer:
		return "server"
	}
	return fmt.Sprintf("Unknown Role (%d)", uint8(r))
}

// Listener pairs a network listener with the role of the connections it
// accepts.
type Listener struct {
	net.Listener
	Role Role
}

// LinkState represents the state of an outbound server link.
type LinkState uint32

// LinkState can be either pending, established, disconnected, failed or
// canceled.  An established link which was disconnected is categorized as
// disconnected until it is retried.
const (
	LinkPending LinkState = iota
	LinkEstablished
	LinkDisconnected
	LinkFailed
	LinkCanceled
)

// String returns a human-readable name for the state.
func (s LinkState) String() string {
	switch s {
	case LinkPending:
		return "pending"
	case LinkEstablished:
		return "established"
	case LinkDisconnected:
		return "disconnected"
	case LinkFailed:
		return "failed"
	case LinkCanceled:
		return "canceled"
	}
	return fmt.Sprintf("Unknown LinkState (%d)", uint32(s))
}

// LinkReq is a request to maintain a link to a remote server.  If permanent,
// the link is redialed after it drops.
type LinkReq struct {
	// The following variables must only be used atomically.
	id    atomic.Uint64
	state atomic.Uint32

	// The following fields are owned by the connection handler and must not
	// be accessed outside of it.
	//
	// retryCount is the number of dial attempts that failed since the last
	// established link.
	retryCount uint32
	conn       net.Conn

	// Addr is the host:port of the remote server.
	Addr string

	// Permanent links are redialed with an increasing backoff whenever
	// they fail or drop.
	Permanent bool
}

// updateState updates the state of the link request.
func (c *LinkReq) updateState(state LinkState) {
	c.state.Store(uint32(state))
}

// ID returns a unique identifier for the link request.
func (c *LinkReq) ID() uint64 {
	return c.id.Load()
}

// State is the current state of the link.
func (c *LinkReq) State() LinkState {
	return LinkState(c.state.Load())
}

// String returns a human-readable string for the link request.
func (c *LinkReq) String() string {
	if c.Addr == "" {
		return fmt.Sprintf("reqid %d", c.ID())
	}
	return fmt.Sprintf("%s (reqid %d)", c.Addr, c.ID())
}

// Config holds the configuration options related to the connection manager.
type Config struct {
	// Listeners are owned by the connection manager once it runs and are
	// closed when it stops.  Every accepted connection is handed to
	// OnAccept along with the role of the listener that accepted it.
	Listeners []Listener

	// OnAccept is fired for every accepted connection.  It is the
	// callback's responsibility to close the connection.
	OnAccept func(net.Conn, Role)

	// RetryDuration is the base duration to wait before redialing a
	// failed link.  Defaults to 5s.
	RetryDuration time.Duration

	// OnConnection is fired when an outbound link is established.  The
	// callback owns the connection and must call Disconnect or Remove with
	// the request id once the link ends.
	OnConnection func(*LinkReq, net.Conn)

	// OnDisconnection is fired when an outbound link is torn down.
	OnDisconnection func(*LinkReq)

	// Dial connects to the address on the named network.
	Dial func(ctx context.Context, network, addr string) (net.Conn, error)

	// Timeout bounds every dial attempt.  Zero means no limit beyond the
	// context.
	Timeout time.Duration
}

// registerPending registers a link before it is dialed so it can be canceled
// through Remove while the dial is in flight.
type registerPending struct {
	c    *LinkReq
	done chan struct{}
}

// handleConnected is used to queue a successful dial.
type handleConnected struct {
	c    *LinkReq
	conn net.Conn
}

// handleDisconnected is used to tear down a link.
type handleDisconnected struct {
	id    uint64
	retry bool
}

// handleFailed is used to report a failed dial.
type handleFailed struct {
	c   *LinkReq
	err error
}

// listLinks requests a snapshot of every known link request.
type listLinks struct {
	reply chan []*LinkReq
}

// ConnManager accepts inbound connections and maintains outbound server
// links.
type ConnManager struct {
	// linkReqCount is the number of link requests that have been made and
	// is used to assign unique request ids.
	linkReqCount atomic.Uint64

	// The following fields are used for lifecycle management of the
	// connection manager.
	wg   sync.WaitGroup
	quit chan struct{}

	// cfg is set at creation time and treated as immutable after that.
	cfg Config

	// requests is used internally to interact with the connection handler
	// goroutine.
	requests chan interface{}
}

// handleFailedConn schedules a redial of a failed or dropped permanent link
// after a backoff of retryCount times the base retry duration plus up to a
// quarter of that as jitter.
func (cm *ConnManager) handleFailedConn(ctx context.Context, c *LinkReq) {
	// Ignore during shutdown.
	if ctx.Err() != nil {
		return
	}
	if !c.Permanent {
		return
	}

	c.retryCount++
	d := time.Duration(c.retryCount) * cm.cfg.RetryDuration
	if d > maxRetryDuration {
		d = maxRetryDuration
	}
	if jitter := d / 4; jitter > 0 {
		d += rand.Duration(jitter)
	}
	log.Debugf("Retrying link to %v in %v", c, d)
	go func() {
		select {
		case <-time.After(d):
			cm.Connect(ctx, c)
		case <-cm.quit:
		}
	}()
}

// connHandler handles all link related requests.  It must be run as a
// goroutine.
func (cm *ConnManager) connHandler(ctx context.Context) {
	var (
		// pending holds all registered link requests that have yet to
		// succeed.
		pending = make(map[uint64]*LinkReq)

		// conns holds all established links.
		conns = make(map[uint64]*LinkReq)
	)

out:
	for {
		select {
		case req := <-cm.requests:
			switch msg := req.(type) {
			case registerPending:
				linkReq := msg.c
				linkReq.updateState(LinkPending)
				pending[linkReq.ID()] = linkReq
				close(msg.done)

			case handleConnected:
				linkReq := msg.c
				if _, ok := pending[linkReq.ID()]; !ok {
					if msg.conn != nil {
						msg.conn.Close()
					}
					log.Debugf("Ignoring link for canceled "+
						"linkreq=%v", linkReq)
					continue
				}

				linkReq.updateState(LinkEstablished)
				linkReq.conn = msg.conn
				linkReq.retryCount = 0
				conns[linkReq.ID()] = linkReq
				delete(pending, linkReq.ID())
				log.Infof("Linked to %v", linkReq)

				if cm.cfg.OnConnection != nil {
					cm.wg.Add(1)
					go func(c *LinkReq, conn net.Conn) {
						cm.cfg.OnConnection(c, conn)
						cm.wg.Done()
					}(linkReq, msg.conn)
				}

			case handleDisconnected:
				linkReq, ok := conns[msg.id]
				if !ok {
					linkReq, ok = pending[msg.id]
					if !ok {
						log.Errorf("Unknown linkid=%d", msg.id)
						continue
					}

					// A dial is still in flight or waiting on a
					// retry.  Drop it so a later success is
					// ignored.
					linkReq.updateState(LinkCanceled)
					log.Debugf("Canceling: %v", linkReq)
					delete(pending, msg.id)
					continue
				}

				log.Infof("Link to %v closed", linkReq)
				delete(conns, msg.id)
				if linkReq.conn != nil {
					linkReq.conn.Close()
					linkReq.conn = nil
				}

				retry := msg.retry && linkReq.Permanent
				if retry {
					linkReq.updateState(LinkPending)
					pending[msg.id] = linkReq
				} else {
					linkReq.updateState(LinkDisconnected)
				}

				if cm.cfg.OnDisconnection != nil {
					cm.wg.Add(1)
					go func(c *LinkReq) {
						cm.cfg.OnDisconnection(c)
						cm.wg.Done()
					}(linkReq)
				}

				if retry {
					cm.handleFailedConn(ctx, linkReq)
				}

			case handleFailed:
				linkReq := msg.c
				if _, ok := pending[linkReq.ID()]; !ok {
					log.Debugf("Ignoring failure for canceled "+
						"linkreq=%v", linkReq)
					continue
				}

				linkReq.updateState(LinkFailed)
				log.Warnf("Failed to link to %v: %v", linkReq, msg.err)
				if !linkReq.Permanent {
					delete(pending, linkReq.ID())
					continue
				}
				cm.handleFailedConn(ctx, linkReq)

			case listLinks:
				reqs := make([]*LinkReq, 0, len(pending)+len(conns))
				for _, r := range conns {
					reqs = append(reqs, r)
				}
				for _, r := range pending {
					reqs = append(reqs, r)
				}
				msg.reply <- reqs
			}

		case <-ctx.Done():
			break out
		}
	}

	// Established links are owned by their callbacks, but closing the
	// sockets here unblocks them during shutdown.
	for _, linkReq := range conns {
		if linkReq.conn != nil {
			linkReq.conn.Close()
		}
	}

	cm.wg.Done()
	log.Trace("Connection handler done")
}

// Connect assigns an id to the link request when it does not have one yet and
// dials it.  Failed permanent links are retried with an increasing backoff.
//
// The attempt is ignored once the connection manager has been shut down or
// when the request was canceled while it waited for a retry.
func (cm *ConnManager) Connect(ctx context.Context, c *LinkReq) {
	select {
	case <-cm.quit:
		return
	default:
	}
	if ctx.Err() != nil {
		return
	}

	if c.State() == LinkCanceled {
		log.Debugf("Ignoring connect for canceled linkreq=%v", c)
		return
	}

	if c.ID() == 0 {
		c.id.Store(cm.linkReqCount.Add(1))

		done := make(chan struct{})
		select {
		case cm.requests <- registerPending{c, done}:
		case <-cm.quit:
			return
		}
		select {
		case <-done:
		case <-cm.quit:
			return
		}
	}

	log.Debugf("Attempting to link to %v", c)

	if cm.cfg.Timeout != 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cm.cfg.Timeout)
		defer cancel()
	}
	conn, err := cm.cfg.Dial(ctx, "tcp", c.Addr)
	if err != nil {
		select {
		case cm.requests <- handleFailed{c, err}:
		case <-cm.quit:
		}
		return
	}

	select {
	case cm.requests <- handleConnected{c, conn}:
	case <-cm.quit:
		conn.Close()
	}
}

// Disconnect tears down the link with the given id.  Permanent links are
// redialed with an increasing backoff.
func (cm *ConnManager) Disconnect(id uint64) {
	select {
	case cm.requests <- handleDisconnected{id, true}:
	case <-cm.quit:
	}
}

// Remove tears down the link with the given id and forgets it.
//
// NOTE: This method can also be used to cancel a dial that has not yet
// succeeded.
func (cm *ConnManager) Remove(id uint64) {
	select {
	case cm.requests <- handleDisconnected{id, false}:
	case <-cm.quit:
	}
}

// Links returns every link request the manager knows about, established ones
// first.  It returns nil once the manager has stopped.
func (cm *ConnManager) Links() []*LinkReq {
	reply := make(chan []*LinkReq, 1)
	select {
	case cm.requests <- listLinks{reply}:
	case <-cm.quit:
		return nil
	}
	select {
	case reqs := <-reply:
		return reqs
	case <-cm.quit:
		return nil
	}
}

// listenHandler accepts incoming connections on a given listener.  It must be
// run as a goroutine.
func (cm *ConnManager) listenHandler(ctx context.Context, listener Listener) {
	log.Infof("Listening for %v connections on %s", listener.Role,
		listener.Addr())
	for ctx.Err() == nil {
		conn, err := listener.Accept()
		if err != nil {
			// Only log the error if not forcibly shutting down.
			if ctx.Err() == nil {
				log.Errorf("Can't accept connection: %v", err)
			}
			continue
		}
		log.Debugf("Accepted %v connection from %s", listener.Role,
			conn.RemoteAddr())
		cm.wg.Add(1)
		go func(conn net.Conn) {
			cm.cfg.OnAccept(conn, listener.Role)
			cm.wg.Done()
		}(conn)
	}

	cm.wg.Done()
	log.Tracef("Listener handler done for %s", listener.Addr())
}

// Run starts the connection manager along with its configured listeners.  It
// blocks until the provided context is cancelled and every callback it fired
// has returned.
func (cm *ConnManager) Run(ctx context.Context) {
	log.Trace("Starting connection manager")

	cm.wg.Add(1)
	go cm.connHandler(ctx)

	for _, listener := range cm.cfg.Listeners {
		cm.wg.Add(1)
		go cm.listenHandler(ctx, listener)
	}

	// Shutdown the connection manager when the context is canceled.
	cm.wg.Add(1)
	go func(ctx context.Context, listeners []Listener) {
		<-ctx.Done()
		close(cm.quit)

		// Ignore the error since this is shutdown and there is no way
		// to recover anyways.
		for _, listener := range listeners {
			_ = listener.Close()
		}

		cm.wg.Done()
	}(ctx, cm.cfg.Listeners)

	cm.wg.Wait()
	log.Trace("Connection manager stopped")
}

// New returns a new connection manager with the provided configuration.
//
// Use Run to start listening, then Connect to establish server links.
func New(cfg *Config) (*ConnManager, error) {
	if cfg.Dial == nil {
		return nil, makeError(ErrDialNil, "config: dial cannot be nil")
	}
	if len(cfg.Listeners) > 0 && cfg.OnAccept == nil {
		str := "config: listeners require an accept callback"
		return nil, makeError(ErrAcceptNil, str)
	}
	if cfg.RetryDuration <= 0 {
		cfg.RetryDuration = defaultRetryDuration
	}
	cm := ConnManager{
		cfg:      *cfg, // Copy so caller can't mutate
		requests: make(chan interface{}),
		quit:     make(chan struct{}),
	}
	return &cm, nil
}
