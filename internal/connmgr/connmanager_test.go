// Copyright (c) 2016 The btcsuite developers
// Copyright (c) 2019-2026 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package connmgr

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func init() {
	// Override the max retry duration when running tests.
	maxRetryDuration = 2 * time.Millisecond
}

// runConnMgrAsync invokes the Run method on the passed connection manager in a
// separate goroutine and returns a cancelable context and wait group the caller
// can use to shutdown the connection manager and wait for clean shutdown.
func runConnMgrAsync(ctx context.Context, cmgr *ConnManager) (context.Context, context.CancelFunc, *sync.WaitGroup) {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		cmgr.Run(ctx)
		wg.Done()
	}()
	return ctx, cancel, &wg
}

// mockAddr mocks a network address
type mockAddr struct {
	net, address string
}

func (m mockAddr) Network() string { return m.net }
func (m mockAddr) String() string  { return m.address }

// mockConn mocks a network connection by implementing the net.Conn interface.
type mockConn struct {
	io.Reader
	io.Writer

	laddr, raddr string

	closeOnce sync.Once
	closed    chan struct{}
}

func newMockConn(laddr, raddr string) *mockConn {
	r, w := io.Pipe()
	return &mockConn{
		Reader: r,
		Writer: w,
		laddr:  laddr,
		raddr:  raddr,
		closed: make(chan struct{}),
	}
}

func (c *mockConn) LocalAddr() net.Addr  { return mockAddr{"tcp", c.laddr} }
func (c *mockConn) RemoteAddr() net.Addr { return mockAddr{"tcp", c.raddr} }

func (c *mockConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *mockConn) SetDeadline(t time.Time) error      { return nil }
func (c *mockConn) SetReadDeadline(t time.Time) error  { return nil }
func (c *mockConn) SetWriteDeadline(t time.Time) error { return nil }

// mockDialer returns a mock connection to the given address.
func mockDialer(ctx context.Context, network, addr string) (net.Conn, error) {
	return newMockConn("127.0.0.1:6667", addr), nil
}

func assertLinkState(t *testing.T, req *LinkReq, want LinkState) {
	t.Helper()
	if got := req.State(); got != want {
		t.Fatalf("unexpected link state -- got %v, want %v", got, want)
	}
}

func recv[T any](t *testing.T, c chan T) T {
	t.Helper()
	select {
	case v := <-c:
		return v
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for callback")
	}
	panic("unreachable")
}

// TestNewConfig tests that new ConnManager config is validated as expected.
func TestNewConfig(t *testing.T) {
	_, err := New(&Config{})
	if !errors.Is(err, ErrDialNil) {
		t.Fatalf("New: unexpected error -- got %v, want %v", err, ErrDialNil)
	}

	_, err = New(&Config{
		Dial:      mockDialer,
		Listeners: []Listener{{newMockListener("127.0.0.1:6667"), RoleClient}},
	})
	if !errors.Is(err, ErrAcceptNil) {
		t.Fatalf("New: unexpected error -- got %v, want %v", err,
			ErrAcceptNil)
	}

	cmgr, err := New(&Config{Dial: mockDialer})
	if err != nil {
		t.Fatalf("New unexpected error: %v", err)
	}
	if cmgr.cfg.RetryDuration != defaultRetryDuration {
		t.Fatalf("unexpected default retry duration %v",
			cmgr.cfg.RetryDuration)
	}
}

// TestRetryPermanent ensures a permanent link is redialed after Disconnect
// and forgotten after Remove.
func TestRetryPermanent(t *testing.T) {
	connected := make(chan *LinkReq)
	disconnected := make(chan *LinkReq)
	cmgr, err := New(&Config{
		RetryDuration: time.Millisecond,
		Dial:          mockDialer,
		OnConnection: func(c *LinkReq, conn net.Conn) {
			connected <- c
		},
		OnDisconnection: func(c *LinkReq) {
			disconnected <- c
		},
	})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	ctx, shutdown, wg := runConnMgrAsync(context.Background(), cmgr)

	req := &LinkReq{Addr: "hub.example:7000", Permanent: true}
	go cmgr.Connect(ctx, req)
	if got := recv(t, connected); got != req {
		t.Fatalf("unexpected link request %v", got)
	}
	if req.ID() == 0 {
		t.Fatal("link request was not assigned an id")
	}
	assertLinkState(t, req, LinkEstablished)

	cmgr.Disconnect(req.ID())
	recv(t, disconnected)
	recv(t, connected)
	assertLinkState(t, req, LinkEstablished)

	cmgr.Remove(req.ID())
	recv(t, disconnected)
	assertLinkState(t, req, LinkDisconnected)
	if links := cmgr.Links(); len(links) != 0 {
		t.Fatalf("removed link still tracked: %v", links)
	}

	shutdown()
	wg.Wait()
}

// TestRetryFailedDial ensures permanent links keep being redialed after
// failures while temporary ones are dropped after the first failure.
func TestRetryFailedDial(t *testing.T) {
	var attempts atomic.Int32
	connected := make(chan *LinkReq)
	cmgr, err := New(&Config{
		RetryDuration: time.Millisecond,
		Dial: func(ctx context.Context, network, addr string) (net.Conn, error) {
			if addr == "down.example:7000" || attempts.Add(1) <= 3 {
				return nil, errors.New("connection refused")
			}
			return mockDialer(ctx, network, addr)
		},
		OnConnection: func(c *LinkReq, conn net.Conn) {
			connected <- c
		},
	})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	ctx, shutdown, wg := runConnMgrAsync(context.Background(), cmgr)

	temp := &LinkReq{Addr: "down.example:7000"}
	cmgr.Connect(ctx, temp)
	// Links is served after the failure report, so the temporary request
	// must already be gone.
	if links := cmgr.Links(); len(links) != 0 {
		t.Fatalf("failed temporary link still tracked: %v", links)
	}
	assertLinkState(t, temp, LinkFailed)

	req := &LinkReq{Addr: "hub.example:7000", Permanent: true}
	go cmgr.Connect(ctx, req)
	recv(t, connected)
	if got := attempts.Load(); got != 4 {
		t.Fatalf("unexpected dial attempts -- got %d, want 4", got)
	}
	assertLinkState(t, req, LinkEstablished)

	shutdown()
	wg.Wait()
}

// TestRemovePendingLink ensures a link removed while its dial is in flight is
// closed and ignored once the dial completes.
func TestRemovePendingLink(t *testing.T) {
	dialing := make(chan struct{})
	release := make(chan struct{})
	conn := newMockConn("127.0.0.1:6667", "hub.example:7000")
	cmgr, err := New(&Config{
		Dial: func(ctx context.Context, network, addr string) (net.Conn, error) {
			close(dialing)
			<-release
			return conn, nil
		},
		OnConnection: func(c *LinkReq, conn net.Conn) {
			t.Error("connection callback fired for removed link")
		},
	})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	ctx, shutdown, wg := runConnMgrAsync(context.Background(), cmgr)

	req := &LinkReq{Addr: "hub.example:7000", Permanent: true}
	go cmgr.Connect(ctx, req)
	recv(t, dialing)
	assertLinkState(t, req, LinkPending)

	cmgr.Remove(req.ID())
	if links := cmgr.Links(); len(links) != 0 {
		t.Fatalf("removed link still tracked: %v", links)
	}
	assertLinkState(t, req, LinkCanceled)
	close(release)
	recv(t, conn.closed)

	shutdown()
	wg.Wait()
}

// TestDialTimeout ensures the configured timeout bounds every dial.
func TestDialTimeout(t *testing.T) {
	failed := make(chan error, 1)
	cmgr, err := New(&Config{
		Timeout: time.Millisecond,
		Dial: func(ctx context.Context, network, addr string) (net.Conn, error) {
			<-ctx.Done()
			failed <- ctx.Err()
			return nil, ctx.Err()
		},
	})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	ctx, shutdown, wg := runConnMgrAsync(context.Background(), cmgr)

	go cmgr.Connect(ctx, &LinkReq{Addr: "slow.example:7000"})
	if err := recv(t, failed); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("unexpected dial error: %v", err)
	}

	shutdown()
	wg.Wait()
}

// mockListener implements the net.Listener interface and is used to test
// code that deals with net.Listeners without having to actually make any real
// connections.
type mockListener struct {
	localAddr   string
	provideConn chan net.Conn
}

// Accept returns a mock connection when it receives a signal via the Connect
// function.
//
// This is part of the net.Listener interface.
func (m *mockListener) Accept() (net.Conn, error) {
	for conn := range m.provideConn {
		return conn, nil
	}
	return nil, errors.New("network connection closed")
}

// Close closes the mock listener which will cause any blocked Accept
// operations to be unblocked and return errors.
//
// This is part of the net.Listener interface.
func (m *mockListener) Close() error {
	close(m.provideConn)
	return nil
}

// Addr returns the address the mock listener was configured with.
//
// This is part of the net.Listener interface.
func (m *mockListener) Addr() net.Addr {
	return mockAddr{"tcp", m.localAddr}
}

// Connect fakes a connection to the mock listener from the provided remote
// address.
func (m *mockListener) Connect(raddr string) {
	m.provideConn <- newMockConn(m.localAddr, raddr)
}

// newMockListener returns a new mock listener for the provided local address
// and port.  No ports are actually opened.
func newMockListener(localAddr string) *mockListener {
	return &mockListener{
		localAddr:   localAddr,
		provideConn: make(chan net.Conn),
	}
}

// TestListeners ensures accepted connections are handed to the accept
// callback along with the role of their listener.
func TestListeners(t *testing.T) {
	type accepted struct {
		conn net.Conn
		role Role
	}
	receivedConns := make(chan accepted)
	clients := newMockListener("127.0.0.1:6667")
	servers := newMockListener("127.0.0.1:7000")
	cmgr, err := New(&Config{
		Listeners: []Listener{
			{clients, RoleClient},
			{servers, RoleServer},
		},
		OnAccept: func(conn net.Conn, role Role) {
			receivedConns <- accepted{conn, role}
		},
		Dial: mockDialer,
	})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	_, shutdown, wg := runConnMgrAsync(context.Background(), cmgr)

	go func() {
		clients.Connect("10.0.0.1:50000")
		clients.Connect("10.0.0.2:50000")
		servers.Connect("10.0.0.3:50000")
	}()

	roles := make(map[Role]int)
	for i := 0; i < 3; i++ {
		got := recv(t, receivedConns)
		if got.role == RoleServer && got.conn.RemoteAddr().String() != "10.0.0.3:50000" {
			t.Fatalf("#%d: unexpected server connection from %v", i,
				got.conn.RemoteAddr())
		}
		roles[got.role]++
	}
	if roles[RoleClient] != 2 || roles[RoleServer] != 1 {
		t.Fatalf("unexpected role tally: %v", roles)
	}

	shutdown()
	wg.Wait()
}

// TestRunWaitsForCallbacks ensures Run does not return while an accept
// callback it fired is still running.
func TestRunWaitsForCallbacks(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var finished atomic.Bool
	clients := newMockListener("127.0.0.1:6667")
	cmgr, err := New(&Config{
		Listeners: []Listener{{clients, RoleClient}},
		OnAccept: func(conn net.Conn, role Role) {
			close(entered)
			<-release
			finished.Store(true)
		},
		Dial: mockDialer,
	})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	_, shutdown, wg := runConnMgrAsync(context.Background(), cmgr)

	go clients.Connect("10.0.0.1:50000")
	recv(t, entered)

	stopped := make(chan struct{})
	go func() {
		shutdown()
		wg.Wait()
		close(stopped)
	}()
	select {
	case <-stopped:
		t.Fatal("Run returned before the accept callback finished")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	recv(t, stopped)
	if !finished.Load() {
		t.Fatal("accept callback did not finish before Run returned")
	}
}
