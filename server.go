// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2026 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/decred/chatd/internal/cloak"
	"github.com/decred/chatd/internal/connmgr"
	"github.com/decred/chatd/internal/link"
	"github.com/decred/chatd/internal/motd"
	"github.com/decred/chatd/internal/peer"
	"github.com/decred/chatd/internal/progresslog"
	"github.com/decred/chatd/internal/registry"
	"github.com/decred/chatd/internal/session"
	"github.com/decred/go-socks/socks"
	"github.com/gorilla/websocket"
)

const (
	// connectionTimeout bounds each dial of an outbound server link.
	connectionTimeout = time.Second * 30

	// wsHandshakeTimeout bounds reading the HTTP request that opens a
	// WebSocket connection.
	wsHandshakeTimeout = time.Second * 10
)

// server ties the registry, the listeners and the outbound server links of
// the daemon together.
type server struct {
	cfg      *config
	registry *registry.Registry
	motd     *motd.MOTD
	sessCfg  *session.Config
	linkCfg  *link.Config
	connMgr  *connmgr.ConnManager
	progress *progresslog.Logger

	listeners   []connmgr.Listener
	wsListeners []net.Listener
	wsServer    *http.Server
	upgrader    websocket.Upgrader

	// wsConns tracks the sessions served over hijacked websocket
	// connections, which the http server no longer accounts for.
	wsMtx     sync.Mutex
	wsClosing bool
	wsConns   sync.WaitGroup
}

// serveConn runs a session over the connection and, when the session upgrades
// into a server link, a link over the same connection.  It blocks until the
// connection is done.
func (s *server) serveConn(ctx context.Context, conn peer.Conn) {
	p := peer.New(conn, s.cfg.ServerName)
	p.Start()
	s.progress.LogProgress(progresslog.EventClient, false)
	defer s.progress.LogProgress(progresslog.EventClosed, false)

	upgrade, err := session.New(s.sessCfg, p).Run(ctx)
	if err != nil {
		srvrLog.Warnf("Unable to serve %s: %v", p, err)
		return
	}
	if !upgrade {
		return
	}

	srvrLog.Infof("Connection from %s upgraded to a server link", p)
	s.progress.LogProgress(progresslog.EventLink, false)
	if err := link.New(s.linkCfg, p).Run(ctx); err != nil {
		srvrLog.Warnf("Server link with %s failed: %v", p, err)
	}
}

// inboundConn is invoked by the connection manager for every accepted TCP
// connection.
func (s *server) inboundConn(ctx context.Context, conn net.Conn, role connmgr.Role) {
	srvrLog.Debugf("New %v connection from %s", role, conn.RemoteAddr())
	s.serveConn(ctx, peer.NewStreamConn(conn))
}

// outboundLink is invoked by the connection manager when a configured server
// link is established.  The connection enters the link state machine
// directly, and the link is handed back for a redial once it ends.
func (s *server) outboundLink(ctx context.Context, req *connmgr.LinkReq, conn net.Conn) {
	p := peer.New(peer.NewStreamConn(conn), s.cfg.ServerName)
	p.Start()
	s.progress.LogProgress(progresslog.EventLink, false)
	if err := link.New(s.linkCfg, p).Run(ctx); err != nil {
		srvrLog.Warnf("Server link with %v failed: %v", req, err)
	}
	s.progress.LogProgress(progresslog.EventClosed, false)
	s.connMgr.Disconnect(req.ID())
}

// ServeHTTP upgrades the request to a WebSocket connection and serves a
// client session over it.
func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader already replied with an HTTP error.
		srvrLog.Debugf("Unable to upgrade %s to a websocket: %v",
			r.RemoteAddr, err)
		return
	}
	if !s.trackWebsocket() {
		ws.Close()
		return
	}
	defer s.wsConns.Done()
	s.serveConn(r.Context(), peer.NewWebsocketConn(ws))
}

// trackWebsocket registers a websocket session with the server unless it is
// already shutting down.
func (s *server) trackWebsocket() bool {
	s.wsMtx.Lock()
	defer s.wsMtx.Unlock()
	if s.wsClosing {
		return false
	}
	s.wsConns.Add(1)
	return true
}

// waitWebsockets refuses any further websocket sessions and blocks until the
// tracked ones are done.
func (s *server) waitWebsockets() {
	s.wsMtx.Lock()
	s.wsClosing = true
	s.wsMtx.Unlock()
	s.wsConns.Wait()
}

// Run starts the registry, the message of the day watcher, the connection
// manager and the WebSocket listeners, then dials the configured server links.
// It blocks until the provided context is cancelled and every connection has
// been served.  The connection manager only returns once its callbacks did.
func (s *server) Run(ctx context.Context) {
	srvrLog.Trace("Starting server")

	// Registry must stop after every connection released its handles,
	// so it runs under its own context.
	regCtx, regCancel := context.WithCancel(context.Background())
	var regWg sync.WaitGroup
	regWg.Add(1)
	go func() {
		s.registry.Run(regCtx)
		regWg.Done()
	}()

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		if err := s.motd.Watch(ctx); err != nil {
			srvrLog.Errorf("Unable to watch the message of the day: %v",
				err)
		}
		wg.Done()
	}()
	go func() {
		reloadListener(ctx, func() {
			if err := s.motd.Reload(); err != nil {
				srvrLog.Errorf("Unable to reload the message of "+
					"the day: %v", err)
			}
		})
		wg.Done()
	}()
	go func() {
		s.connMgr.Run(ctx)
		wg.Done()
	}()

	for _, listener := range s.wsListeners {
		wg.Add(1)
		go func(listener net.Listener) {
			srvrLog.Infof("Listening for websocket clients on %s",
				listener.Addr())
			err := s.wsServer.Serve(listener)
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				srvrLog.Errorf("Websocket listener %s failed: %v",
					listener.Addr(), err)
				requestShutdown()
			}
			wg.Done()
		}(listener)
	}

	for _, addr := range s.cfg.Connect {
		go s.connMgr.Connect(ctx, &connmgr.LinkReq{
			Addr:      addr,
			Permanent: true,
		})
	}

	<-ctx.Done()
	srvrLog.Info("Server shutting down")

	// Hijacked websocket connections are not tracked by the http server,
	// so their sessions stop through the base context instead.
	s.wsServer.Close()
	wg.Wait()
	s.waitWebsockets()

	regCancel()
	regWg.Wait()
	srvrLog.Trace("Server stopped")
}

// listen opens a TCP listener on every address.  All previously opened
// listeners are closed when any of them fails.
func listen(addrs []string) ([]net.Listener, error) {
	listeners := make([]net.Listener, 0, len(addrs))
	for _, addr := range addrs {
		l, err := net.Listen("tcp", addr)
		if err != nil {
			for _, l := range listeners {
				l.Close()
			}
			return nil, err
		}
		listeners = append(listeners, l)
	}
	return listeners, nil
}

// newServer returns a new chatd server configured to serve the listeners and
// links of the provided configuration.  Connections are served until the
// passed context is cancelled.
func newServer(ctx context.Context, cfg *config) (*server, error) {
	m, err := motd.New(cfg.MotdFile)
	if err != nil {
		return nil, err
	}

	reg := registry.New()
	s := server{
		cfg:      cfg,
		registry: reg,
		motd:     m,
		sessCfg: &session.Config{
			ServerName:   cfg.ServerName,
			LinkPassword: cfg.LinkPass,
			Registry:     reg,
			Motd:         m.Lines,
			IdleTimeout:  cfg.IdleTimeout,
		},
		linkCfg: &link.Config{
			ServerName:   cfg.ServerName,
			ServerDesc:   cfg.ServerDesc,
			LinkPassword: cfg.LinkPass,
			Registry:     reg,
			Cloak:        cloak.New(cfg.CloakKey),
		},
		progress: progresslog.New("Served", srvrLog),
		upgrader: websocket.Upgrader{
			// Browser clients connect from arbitrary pages.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.wsServer = &http.Server{
		Handler:           &s,
		ReadHeaderTimeout: wsHandshakeTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	closeAll := func() {
		for _, l := range s.listeners {
			l.Close()
		}
		for _, l := range s.wsListeners {
			l.Close()
		}
	}
	for _, group := range []struct {
		addrs []string
		role  connmgr.Role
	}{
		{cfg.ClientListeners, connmgr.RoleClient},
		{cfg.ServerListeners, connmgr.RoleServer},
	} {
		ls, err := listen(group.addrs)
		if err != nil {
			closeAll()
			return nil, err
		}
		for _, l := range ls {
			s.listeners = append(s.listeners, connmgr.Listener{
				Listener: l,
				Role:     group.role,
			})
		}
	}
	s.wsListeners, err = listen(cfg.WSListeners)
	if err != nil {
		closeAll()
		return nil, err
	}
	if len(s.listeners) == 0 && len(s.wsListeners) == 0 {
		return nil, errors.New("no valid listen address")
	}

	// Server links are dialed through the SOCKS5 proxy when one is
	// configured.
	var dialer net.Dialer
	dial := dialer.DialContext
	if cfg.Proxy != "" {
		proxy := &socks.Proxy{
			Addr:     cfg.Proxy,
			Username: cfg.ProxyUser,
			Password: cfg.ProxyPass,
		}
		dial = proxy.DialContext
	}

	s.connMgr, err = connmgr.New(&connmgr.Config{
		Listeners: s.listeners,
		OnAccept: func(conn net.Conn, role connmgr.Role) {
			s.inboundConn(ctx, conn, role)
		},
		OnConnection: func(req *connmgr.LinkReq, conn net.Conn) {
			s.outboundLink(ctx, req, conn)
		},
		Dial:    dial,
		Timeout: connectionTimeout,
	})
	if err != nil {
		closeAll()
		return nil, err
	}

	return &s, nil
}
