// Copyright (c) 2026 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package session implements the actor serving one client connection.  It
// runs the registration state machine, dispatches client commands to the
// registry and channels, and renders notifications from other actors.
package session

import (
	"context"
	"crypto/subtle"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/decred/chatd/internal/channel"
	"github.com/decred/chatd/internal/member"
	"github.com/decred/chatd/internal/peer"
	"github.com/decred/chatd/internal/registry"
	"github.com/decred/chatd/internal/wire"
)

const (
	// DefaultIdleTimeout is the time a connection may stay silent before it
	// is closed.
	DefaultIdleTimeout = 6 * time.Minute

	// pingTimeoutReason is the part reason used when a connection idles out.
	pingTimeoutReason = "Ping timeout"

	// shutdownReason is the part reason used when the daemon stops.
	shutdownReason = "Server shutting down"

	// closedReason is the part reason used when the client went away.
	closedReason = "Connection closed"
)

// state is the registration state of a session.
type state int

const (
	// stateNewConnection accumulates NICK and USER until both are known.
	stateNewConnection state = iota

	// stateConnected is a registered client.
	stateConnected
)

// Config holds the configuration shared by all sessions.
type Config struct {
	// ServerName is the name of this daemon.
	ServerName string

	// LinkPassword is the shared secret that upgrades a connection into a
	// server link.  Upgrades are disabled when it is empty.
	LinkPassword string

	// Registry is the registry sessions register with.
	Registry *registry.Registry

	// Motd returns the current message of the day.  It may be nil.
	Motd func() []string

	// IdleTimeout is the inactivity timeout.  DefaultIdleTimeout is used
	// when it is zero.
	IdleTimeout time.Duration
}

// Session is the actor serving one client connection.
type Session struct {
	cfg   *Config
	peer  *peer.Peer
	inbox *member.Inbox

	// The following fields are only accessed by the actor goroutine.
	handle     *registry.SessionHandle
	chans      *channel.Set
	state      state
	nick       string
	user       string
	realName   string
	mask       member.Mask
	quitReason string
}

// New returns a session for the peer.  The peer must already be started.
func New(cfg *Config, p *peer.Peer) *Session {
	return &Session{
		cfg:   cfg,
		peer:  p,
		inbox: member.NewInbox(),
		chans: channel.NewSet(),
	}
}

// errQuit is returned by command handlers to end the session.
var errQuit = errors.New("quit")

// errUpgrade is returned by command handlers to hand the connection over to a
// server link.
var errUpgrade = errors.New("upgrade")

// Run serves the connection until the client quits, the connection closes,
// the idle timeout expires or the context is cancelled.  It reports whether
// the client presented the link password, in which case the peer is left
// open for a server link to take over.  Every registration and membership
// held by the session is released before Run returns.
func (s *Session) Run(ctx context.Context) (bool, error) {
	handle, err := s.cfg.Registry.RegisterSession(s.inbox.Addr())
	if err != nil {
		s.inbox.Close()
		s.peer.Close()
		return false, err
	}
	s.handle = handle
	log.Debugf("New session %d from %s", handle.ID(), s.peer)

	upgrade := s.loop(ctx)

	s.chans.ReleaseAll(s.quitReason)
	s.handle.Release()
	s.inbox.Close()
	if !upgrade {
		s.peer.Close()
	}
	log.Debugf("Session %d from %s done (%s)", handle.ID(), s.peer,
		s.quitReason)
	return upgrade, nil
}

// loop is the event loop of the session.  It returns true when the connection
// is to be upgraded.
func (s *Session) loop(ctx context.Context) bool {
	idleTimeout := s.cfg.IdleTimeout
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	idleTimer := time.NewTimer(idleTimeout)
	defer idleTimer.Stop()

	for {
		select {
		case msg, ok := <-s.peer.Inbound():
			if !ok {
				s.quitReason = closedReason
				return false
			}
			if !idleTimer.Stop() {
				select {
				case <-idleTimer.C:
				default:
				}
			}
			idleTimer.Reset(idleTimeout)

			switch err := s.handleMessage(msg); {
			case errors.Is(err, errUpgrade):
				s.quitReason = "Upgraded to server link"
				return true
			case errors.Is(err, errQuit):
				return false
			case err != nil:
				log.Errorf("Session %s: %v", s.peer, err)
				s.quitReason = closedReason
				return false
			}

		case <-s.inbox.Signal():
			for {
				n, ok := s.inbox.Next()
				if !ok {
					break
				}
				s.handleNotification(n)
			}

		case <-idleTimer.C:
			log.Infof("Closing idle connection %s", s.peer)
			s.peer.Send(&wire.RplError{Msg: "Closing link"})
			s.quitReason = pingTimeoutReason
			return false

		case <-s.peer.Done():
			s.quitReason = closedReason
			return false

		case <-ctx.Done():
			s.peer.Send(&wire.RplError{Msg: "Server shutting down"})
			s.quitReason = shutdownReason
			return false
		}
	}
}

// handleMessage dispatches a client command according to the registration
// state.
func (s *Session) handleMessage(msg *wire.Message) error {
	switch s.state {
	case stateNewConnection:
		switch msg.Command {
		case "PASS":
			return s.handlePass(msg)
		case "NICK":
			return s.handleNick(msg)
		case "USER":
			return s.handleUser(msg)
		case "PING":
			return s.handlePing(msg)
		case "QUIT":
			return s.handleQuit(msg)
		}
		log.Debugf("Ignoring %s from unregistered %s", msg.Command, s.peer)
		return nil

	case stateConnected:
		switch msg.Command {
		case "PING":
			return s.handlePing(msg)
		case "MODE":
			return s.handleMode(msg)
		case "WHO":
			return s.handleWho(msg)
		case "PRIVMSG":
			return s.handlePrivmsg(msg)
		case "JOIN":
			return s.handleJoin(msg)
		case "PART":
			return s.handlePart(msg)
		case "QUIT":
			return s.handleQuit(msg)
		}
		log.Debugf("Ignoring %s from %s", msg.Command, s.nick)
		return nil
	}
	return nil
}

// needMoreParams replies that the command lacks parameters.
func (s *Session) needMoreParams(msg *wire.Message) error {
	s.peer.Send(&wire.RplNeedMoreParams{Command: msg.Command})
	return nil
}

// handlePass upgrades the connection when the password is the link password.
// Any other password is ignored.
func (s *Session) handlePass(msg *wire.Message) error {
	pass, ok := msg.Arg(0)
	if !ok {
		return s.needMoreParams(msg)
	}
	if s.cfg.LinkPassword == "" {
		log.Debugf("Ignoring PASS from %s: linking disabled", s.peer)
		return nil
	}
	if subtle.ConstantTimeCompare([]byte(pass),
		[]byte(s.cfg.LinkPassword)) != 1 {

		log.Warnf("Ignoring PASS with wrong link password from %s", s.peer)
		return nil
	}
	log.Infof("Upgrading %s to a server link", s.peer)
	return errUpgrade
}

// handleNick records the requested nick and attempts registration.
func (s *Session) handleNick(msg *wire.Message) error {
	nick, ok := msg.Arg(0)
	if !ok || nick == "" {
		return s.needMoreParams(msg)
	}
	s.nick = nick
	return s.tryRegister()
}

// handleUser records the user name and real name and attempts registration.
func (s *Session) handleUser(msg *wire.Message) error {
	args := msg.Args()
	if len(args) < 4 || args[0] == "" {
		return s.needMoreParams(msg)
	}
	s.user = args[0]
	s.realName = args[3]
	return s.tryRegister()
}

// tryRegister claims the nick once both NICK and USER were received and
// completes registration on success.
func (s *Session) tryRegister() error {
	if s.nick == "" || s.user == "" {
		return nil
	}

	err := s.handle.ClaimNick(s.nick)
	if errors.Is(err, registry.ErrNickCollision) {
		s.peer.Send(&wire.RplNickInUse{Nick: s.nick})
		s.nick = ""
		return nil
	}
	if err != nil {
		return err
	}

	s.mask = member.Mask{
		Nick:       s.nick,
		User:       s.user,
		Host:       s.peer.Host(),
		Real:       s.realName,
		Timestamp:  strconv.FormatInt(time.Now().Unix(), 10),
		ServerName: s.cfg.ServerName,
	}
	s.state = stateConnected
	log.Infof("Registered %s from %s", s.mask.String(), s.peer)

	s.peer.SetNick(s.nick)
	s.peer.Send(&wire.RplWelcome{Msg: "Welcome to the Internet Relay " +
		"Network " + s.mask.String()})
	s.peer.Send(&wire.RplYourHost{})
	s.peer.Send(&wire.RplMotdStart{})
	if s.cfg.Motd != nil {
		for _, line := range s.cfg.Motd() {
			s.peer.Send(&wire.RplMotd{Line: line})
		}
	}
	s.peer.Send(&wire.RplMotdEnd{})
	s.peer.Send(&wire.RplModeSelf{Mode: 'i', Enabled: true})
	return nil
}

// handlePing answers with a PONG carrying the same token.
func (s *Session) handlePing(msg *wire.Message) error {
	token, _ := msg.Arg(0)
	s.peer.Send(&wire.RplPong{Msg: token})
	return nil
}

// handleQuit ends the session.  The quit message becomes the part reason.
func (s *Session) handleQuit(msg *wire.Message) error {
	reason, _ := msg.Arg(0)
	if reason != "" {
		s.quitReason = reason
	}
	s.peer.Send(&wire.RplError{Msg: "Closing link"})
	return errQuit
}

// handleMode accepts mode changes without applying them.
func (s *Session) handleMode(msg *wire.Message) error {
	log.Tracef("Ignoring MODE %v from %s", msg.Params, s.nick)
	return nil
}

// handleWho requests a listing of a channel the client is in.
func (s *Session) handleWho(msg *wire.Message) error {
	target, ok := msg.Arg(0)
	if !ok {
		return s.needMoreParams(msg)
	}
	if !member.IsChannelName(target) {
		log.Debugf("WHO for user %s from %s is not supported", target,
			s.nick)
		return nil
	}
	ms, ok := s.chans.Get(target)
	if !ok {
		s.peer.Send(&wire.RplWhoReply{Channel: target})
		s.peer.Send(&wire.RplEndOfWho{})
		return nil
	}
	return ms.Who()
}

// handlePrivmsg delivers a message to a channel the client is in or to a
// user.
func (s *Session) handlePrivmsg(msg *wire.Message) error {
	args := msg.Args()
	if len(args) < 2 {
		return s.needMoreParams(msg)
	}
	target, text := args[0], args[1]

	if member.IsChannelName(target) {
		ms, ok := s.chans.Get(target)
		if !ok {
			s.peer.Send(&wire.RplCannotSendToChan{Channel: target})
			return nil
		}
		return ms.Privmsg(text)
	}

	addr, err := s.cfg.Registry.LookupByNick(target)
	if errors.Is(err, registry.ErrNickNotFound) {
		s.peer.Send(&wire.RplNickNotFound{Target: target})
		return nil
	}
	if err != nil {
		return err
	}
	if err := addr.Notify(member.Privmsg{Mask: s.mask, Text: text}); err != nil {
		s.peer.Send(&wire.RplNickNotFound{Target: target})
	}
	return nil
}

// handleJoin joins each listed channel the client is not yet in.
func (s *Session) handleJoin(msg *wire.Message) error {
	list, ok := msg.Arg(0)
	if !ok {
		return s.needMoreParams(msg)
	}
	for _, name := range strings.Split(list, ",") {
		if !member.IsChannelName(name) {
			s.peer.Send(&wire.RplNoSuchChannel{Channel: name})
			continue
		}
		if _, ok := s.chans.Get(name); ok {
			continue
		}
		ms, err := s.cfg.Registry.Join(name, s.inbox.Addr(), s.mask)
		if err != nil {
			return err
		}
		s.chans.Add(name, ms)
	}
	return nil
}

// handlePart leaves each listed channel with the optional reason.
func (s *Session) handlePart(msg *wire.Message) error {
	args := msg.Args()
	if len(args) < 1 {
		return s.needMoreParams(msg)
	}
	var reason string
	if len(args) > 1 {
		reason = args[1]
	}
	for _, name := range strings.Split(args[0], ",") {
		ms, ok := s.chans.Remove(name)
		if !ok {
			s.peer.Send(&wire.RplNoSuchChannel{Channel: name})
			continue
		}
		if reason != "" {
			ms.SetPartReason(reason)
		}
		ms.Release()
	}
	return nil
}

// handleNotification renders a notification from another actor.
func (s *Session) handleNotification(n member.Notification) {
	switch n := n.(type) {
	case member.JoinSelf:
		s.peer.Send(&wire.RplJoin{Mask: n.Mask.String(), Channel: n.Channel})
		if ms, ok := s.chans.Get(n.Channel); ok {
			if err := ms.Names(); err != nil {
				log.Debugf("Unable to list names of %s: %v", n.Channel, err)
			}
		}

	case member.JoinOther:
		s.peer.Send(&wire.RplJoin{Mask: n.Mask.String(), Channel: n.Channel})

	case member.PartSelf:
		s.peer.Send(&wire.RplPart{Mask: n.Mask.String(), Channel: n.Channel,
			Reason: n.Reason})

	case member.PartOther:
		s.peer.Send(&wire.RplPart{Mask: n.Mask.String(), Channel: n.Channel,
			Reason: n.Reason})

	case member.WhoList:
		s.peer.Send(&wire.RplWhoReply{Channel: n.Channel})
		for _, nick := range n.Nicks {
			s.peer.Send(&wire.RplWhoSpcRpl{Mask: nick, Modes: "H"})
		}
		s.peer.Send(&wire.RplEndOfWho{})

	case member.NameList:
		s.peer.Send(&wire.RplNameReply{Channel: n.Channel, Names: n.Nicks})
		s.peer.Send(&wire.RplEndOfNames{Channel: n.Channel})

	case member.Privmsg:
		s.peer.Send(&wire.RplPrivmsg{Mask: n.Mask.String(), Msg: n.Text})

	case member.PrivmsgChan:
		s.peer.Send(&wire.RplPrivmsgChan{Mask: n.Mask.String(),
			Channel: n.Channel, Msg: n.Text})

	case member.MaskQuery:
		if s.state != stateConnected {
			n.Reply <- member.MaskReply{Err: member.InvalidState(s.nick)}
			return
		}
		n.Reply <- member.MaskReply{Mask: s.mask}

	default:
		log.Warnf("Unhandled notification type %T", n)
	}
}
