// Copyright (c) 2026 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package link implements server to server links.  A link bursts the local
// users and channels to the remote server and mirrors each remote user
// locally with a proxy that joins and talks in channels like a local user.
package link

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"

	"github.com/decred/chatd/internal/cloak"
	"github.com/decred/chatd/internal/member"
	"github.com/decred/chatd/internal/peer"
	"github.com/decred/chatd/internal/registry"
	"github.com/decred/chatd/internal/wire"
)

// closedReason is the part reason of remote users when their link goes away.
const closedReason = "Link closed"

// state is the state of a link.
type state int

const (
	// stateSync is a link whose peer has not finished its burst.
	stateSync state = iota

	// stateConnected is a fully synchronized link.
	stateConnected
)

// String returns the state as a human-readable string.
func (s state) String() string {
	switch s {
	case stateSync:
		return "sync"
	case stateConnected:
		return "connected"
	}
	return "unknown"
}

// Config holds the configuration shared by all links.
type Config struct {
	// ServerName is the name of this daemon.
	ServerName string

	// ServerDesc is the description announced to linked servers.
	ServerDesc string

	// LinkPassword is the shared secret sent to linked servers.
	LinkPassword string

	// Registry is the registry remote users are registered with.
	Registry *registry.Registry

	// Cloak computes the cloaked hosts of local users.  Hosts are
	// announced as "*" when it is nil.
	Cloak *cloak.Cloaker
}

// Link is the actor serving one connection to another server.
type Link struct {
	cfg  *Config
	peer *peer.Peer

	// The following fields are only accessed by the actor goroutine.
	state      state
	remoteName string
	proxies    map[string]*Proxy
	wg         sync.WaitGroup
}

// New returns a link over the peer.  The peer must already be started.
func New(cfg *Config, p *peer.Peer) *Link {
	return &Link{
		cfg:     cfg,
		peer:    p,
		proxies: make(map[string]*Proxy),
	}
}

// protoOptions returns the capabilities announced in PROTOCTL.
func (l *Link) protoOptions() []wire.ProtoOption {
	return []wire.ProtoOption{
		wire.ProtoEAuth(l.cfg.ServerName),
		wire.ProtoNoQuit,
		wire.ProtoNickV2,
		wire.ProtoSjoin,
		wire.ProtoSj3,
		wire.ProtoClk,
		wire.ProtoNickIP,
		wire.ProtoTklExt,
		wire.ProtoEsvid,
		wire.ProtoMlock,
		wire.ProtoExtSwhois,
	}
}

// cloakedHost returns the host announced for a local user.
func (l *Link) cloakedHost(host string) string {
	if l.cfg.Cloak == nil {
		return "*"
	}
	return l.cfg.Cloak.Host(host)
}

// sync introduces this server and bursts every registered user and every
// channel, followed by EOS.
func (l *Link) sync() error {
	l.peer.Send(&wire.MsgPass{Password: l.cfg.LinkPassword})
	l.peer.Send(&wire.MsgProtoCtl{Options: l.protoOptions()})
	l.peer.Send(&wire.MsgServer{Name: l.cfg.ServerName, Hops: 1,
		Description: l.cfg.ServerDesc})

	sessions, err := l.cfg.Registry.ListSessions()
	if err != nil {
		return err
	}
	var numUsers int
	for _, addr := range sessions {
		mask, err := addr.Mask()
		if err != nil {
			// Unregistered or departed sessions are not announced.
			log.Tracef("Skipping session in burst: %v", err)
			continue
		}
		l.peer.Send(&wire.MsgNick{
			Nick:         mask.Nick,
			Hops:         mask.Hops,
			Timestamp:    mask.Timestamp,
			User:         mask.User,
			Host:         mask.Host,
			ServerName:   mask.ServerName,
			ServiceStamp: "0",
			Modes:        "+i",
			CloakedHost:  l.cloakedHost(mask.Host),
			RealName:     mask.Real,
		})
		numUsers++
	}

	chans, err := l.cfg.Registry.ListChannels()
	if err != nil {
		return err
	}
	var numChans int
	for _, ch := range chans {
		members, err := ch.ListMembers()
		if err != nil {
			log.Tracef("Skipping channel %s in burst: %v", ch.Name(), err)
			continue
		}
		if len(members) == 0 {
			continue
		}
		nicks := make([]string, 0, len(members))
		for _, m := range members {
			nicks = append(nicks, m.Mask.Nick)
		}
		l.peer.Send(&wire.MsgSjoin{
			Timestamp: strconv.FormatInt(ch.Created().Unix(), 10),
			Channel:   ch.Name(),
			Members:   nicks,
		})
		numChans++
	}

	l.peer.Send(&wire.MsgEOS{})
	log.Infof("Sent burst of %d users and %d channels to %s", numUsers,
		numChans, l.peer)
	return nil
}

// parseMemberNick splits the leading status markers from an SJOIN member
// into modes.
func parseMemberNick(token string) (string, string) {
	var modes []byte
	for len(token) > 0 {
		switch token[0] {
		case '@':
			modes = append(modes, 'o')
		case '%':
			modes = append(modes, 'h')
		case '+':
			modes = append(modes, 'v')
		default:
			return token, string(modes)
		}
		token = token[1:]
	}
	return token, string(modes)
}

// proxy returns the proxy for the remote nick.
func (l *Link) proxy(nick string) (*Proxy, bool) {
	p, ok := l.proxies[member.FoldNick(nick)]
	return p, ok
}

// handleServer records the name of the remote server.
func (l *Link) handleServer(msg *wire.Message) {
	name, ok := msg.Arg(0)
	if !ok {
		return
	}
	l.remoteName = name
	log.Infof("Linked with %s (%s)", name, l.peer)
}

// handleNick mirrors a remote user with a new proxy.
func (l *Link) handleNick(ctx context.Context, msg *wire.Message) {
	if len(msg.Params) < 6 {
		log.Debugf("Ignoring NICK with %d parameters from %s",
			len(msg.Params), l.peer)
		return
	}
	hops, err := strconv.ParseUint(msg.Params[1], 10, 32)
	if err != nil {
		log.Debugf("Ignoring NICK with bad hop count %q from %s",
			msg.Params[1], l.peer)
		return
	}
	mask := member.Mask{
		Nick:       msg.Params[0],
		User:       msg.Params[3],
		Host:       msg.Params[4],
		Real:       msg.TrailingText(),
		Hops:       uint32(hops),
		Timestamp:  msg.Params[2],
		ServerName: msg.Params[5],
	}
	if _, ok := l.proxy(mask.Nick); ok {
		log.Debugf("Ignoring duplicate remote user %s", mask.Nick)
		return
	}

	p, err := newProxy(l.cfg.Registry, mask)
	if errors.Is(err, registry.ErrNickCollision) {
		log.Warnf("Remote user %s collides with a local nick", mask.Nick)
		return
	}
	if err != nil {
		log.Errorf("Unable to register remote user %s: %v", mask.Nick, err)
		return
	}
	l.proxies[member.FoldNick(mask.Nick)] = p
	l.wg.Add(1)
	go func() {
		p.run(ctx)
		l.wg.Done()
	}()
	log.Debugf("Registered remote user %s", mask.String())
}

// handleSjoin joins the listed remote users to the channel.
func (l *Link) handleSjoin(msg *wire.Message) {
	if len(msg.Params) < 2 {
		log.Debugf("Ignoring SJOIN with %d parameters from %s",
			len(msg.Params), l.peer)
		return
	}
	name := msg.Params[1]
	for _, token := range msg.Trailing {
		if token == "" {
			continue
		}
		nick, modes := parseMemberNick(token)
		p, ok := l.proxy(nick)
		if !ok {
			log.Debugf("SJOIN to %s for unknown user %s", name, nick)
			continue
		}
		p.Join(name, modes)
	}
}

// handlePart makes the remote user named by the prefix leave a channel.
func (l *Link) handlePart(msg *wire.Message) {
	p, ok := l.proxy(msg.PrefixNick())
	if !ok {
		log.Debugf("PART from unknown user %q", msg.Prefix)
		return
	}
	args := msg.Args()
	if len(args) < 1 {
		return
	}
	var reason string
	if len(args) > 1 {
		reason = args[1]
	}
	for _, name := range strings.Split(args[0], ",") {
		p.Part(name, reason)
	}
}

// handlePrivmsg relays a message from the remote user named by the prefix to
// a channel or a local user.
func (l *Link) handlePrivmsg(msg *wire.Message) {
	p, ok := l.proxy(msg.PrefixNick())
	if !ok {
		log.Debugf("PRIVMSG from unknown user %q", msg.Prefix)
		return
	}
	args := msg.Args()
	if len(args) < 2 {
		return
	}
	target, text := args[0], args[1]
	if member.IsChannelName(target) {
		p.PrivmsgChan(target, text)
		return
	}
	p.PrivmsgUser(target, text)
}

// handleQuit stops the proxy of the remote user named by the prefix.
func (l *Link) handleQuit(msg *wire.Message) {
	nick := msg.PrefixNick()
	p, ok := l.proxy(nick)
	if !ok {
		log.Debugf("QUIT from unknown user %q", msg.Prefix)
		return
	}
	reason, _ := msg.Arg(0)
	p.Exit(reason)
	delete(l.proxies, member.FoldNick(nick))
}

// handleMessage dispatches a command received from the remote server.
func (l *Link) handleMessage(ctx context.Context, msg *wire.Message) {
	switch msg.Command {
	case "SMO":
		log.Infof("SMO from %s: %s", l.peer, msg.TrailingText())

	case "PING":
		l.peer.Send(&wire.MsgPong{Msg: strings.Join(msg.Args(), " ")})

	case "EOS":
		if l.state == stateSync {
			l.state = stateConnected
			log.Infof("Link with %s synchronized (%d remote users)",
				l.peer, len(l.proxies))
		}

	case "SERVER":
		l.handleServer(msg)

	case "NICK":
		l.handleNick(ctx, msg)

	case "SJOIN":
		l.handleSjoin(msg)

	case "PART":
		l.handlePart(msg)

	case "PRIVMSG":
		l.handlePrivmsg(msg)

	case "QUIT":
		l.handleQuit(msg)

	default:
		log.Debugf("Unhandled %s from %s in %s state", msg.Command, l.peer,
			l.state)
	}
}

// Run bursts the local state and relays the remote server's commands until
// the connection closes or the context is cancelled.  Every remote user is
// released before Run returns.
func (l *Link) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		for _, p := range l.proxies {
			p.Exit(closedReason)
		}
		l.wg.Wait()
		cancel()
		l.peer.Close()
		log.Infof("Link with %s closed", l.peer)
	}()

	if err := l.sync(); err != nil {
		return err
	}

	for {
		select {
		case msg, ok := <-l.peer.Inbound():
			if !ok {
				return nil
			}
			l.handleMessage(ctx, msg)

		case <-l.peer.Done():
			return nil

		case <-ctx.Done():
			return nil
		}
	}
}
