// Copyright (c) 2026 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package link

import (
	"context"

	"github.com/decred/chatd/internal/channel"
	"github.com/decred/chatd/internal/mailbox"
	"github.com/decred/chatd/internal/member"
	"github.com/decred/chatd/internal/registry"
)

// proxyJoin instructs a proxy to join a channel.
type proxyJoin struct {
	channel string
	modes   string
}

// proxyPart instructs a proxy to leave a channel.
type proxyPart struct {
	channel string
	reason  string
}

// proxyPrivmsgChan instructs a proxy to talk in a channel.
type proxyPrivmsgChan struct {
	channel string
	text    string
}

// proxyPrivmsgUser instructs a proxy to message a local user.
type proxyPrivmsgUser struct {
	nick string
	text string
}

// proxyExit instructs a proxy to release everything and stop.
type proxyExit struct {
	reason string
}

// Proxy is the local stand-in for a user on a linked server.  It registers
// and joins channels exactly like a session, so local actors cannot tell it
// apart from a local user, but nothing it is notified of is written anywhere.
type Proxy struct {
	registry *registry.Registry
	mask     member.Mask
	inbox    *member.Inbox
	control  *mailbox.Mailbox[any]

	// The following fields are only accessed by the proxy goroutine once
	// it is started.
	handle *registry.SessionHandle
	chans  *channel.Set
}

// newProxy registers the mask and claims its nick.  Nothing is left
// registered when an error is returned.
func newProxy(r *registry.Registry, mask member.Mask) (*Proxy, error) {
	p := &Proxy{
		registry: r,
		mask:     mask,
		inbox:    member.NewInbox(),
		control:  mailbox.New[any](),
		chans:    channel.NewSet(),
	}
	handle, err := r.RegisterSession(p.inbox.Addr())
	if err != nil {
		p.inbox.Close()
		return nil, err
	}
	p.handle = handle
	if err := handle.ClaimNick(mask.Nick); err != nil {
		p.handle.Release()
		p.inbox.Close()
		return nil, err
	}
	return p, nil
}

// Join instructs the proxy to join the channel.  The modes are the member
// status letters the remote server announced and are only logged.
func (p *Proxy) Join(channel, modes string) error {
	return p.control.Send(&proxyJoin{channel: channel, modes: modes})
}

// Part instructs the proxy to leave the channel.
func (p *Proxy) Part(channel, reason string) error {
	return p.control.Send(&proxyPart{channel: channel, reason: reason})
}

// PrivmsgChan instructs the proxy to send text to a channel.
func (p *Proxy) PrivmsgChan(channel, text string) error {
	return p.control.Send(&proxyPrivmsgChan{channel: channel, text: text})
}

// PrivmsgUser instructs the proxy to send text to a local user.
func (p *Proxy) PrivmsgUser(nick, text string) error {
	return p.control.Send(&proxyPrivmsgUser{nick: nick, text: text})
}

// Exit instructs the proxy to part every channel with the reason and stop.
func (p *Proxy) Exit(reason string) error {
	return p.control.Send(&proxyExit{reason: reason})
}

// handleNotification answers mask queries.  Everything else is dropped since
// no connection backs the identity.
func (p *Proxy) handleNotification(n member.Notification) {
	switch n := n.(type) {
	case member.MaskQuery:
		n.Reply <- member.MaskReply{Mask: p.mask}
	default:
		log.Tracef("Proxy %s dropped %T", p.mask.Nick, n)
	}
}

// handleControl carries out an instruction from the link.  It returns false
// once the proxy should stop.
func (p *Proxy) handleControl(msg any) bool {
	switch msg := msg.(type) {
	case *proxyJoin:
		if _, ok := p.chans.Get(msg.channel); ok {
			return true
		}
		ms, err := p.registry.Join(msg.channel, p.inbox.Addr(), p.mask)
		if err != nil {
			log.Errorf("Proxy %s unable to join %s: %v", p.mask.Nick,
				msg.channel, err)
			return true
		}
		p.chans.Add(msg.channel, ms)
		log.Tracef("Proxy %s joined %s (modes %q)", p.mask.Nick,
			msg.channel, msg.modes)

	case *proxyPart:
		ms, ok := p.chans.Remove(msg.channel)
		if !ok {
			return true
		}
		if msg.reason != "" {
			ms.SetPartReason(msg.reason)
		}
		ms.Release()

	case *proxyPrivmsgChan:
		ms, ok := p.chans.Get(msg.channel)
		if !ok {
			log.Debugf("Proxy %s is not in %s", p.mask.Nick, msg.channel)
			return true
		}
		if err := ms.Privmsg(msg.text); err != nil {
			log.Debugf("Proxy %s message to %s failed: %v", p.mask.Nick,
				msg.channel, err)
		}

	case *proxyPrivmsgUser:
		addr, err := p.registry.LookupByNick(msg.nick)
		if err != nil {
			log.Debugf("Proxy %s message to %s failed: %v", p.mask.Nick,
				msg.nick, err)
			return true
		}
		addr.Notify(member.Privmsg{Mask: p.mask, Text: msg.text})

	case *proxyExit:
		p.chans.ReleaseAll(msg.reason)
		return false
	}
	return true
}

// run processes notifications and link instructions until told to exit or
// the context is cancelled.  Everything the proxy holds is released on
// return.  It must be run as a goroutine.
func (p *Proxy) run(ctx context.Context) {
	defer func() {
		p.chans.ReleaseAll("")
		p.handle.Release()
		p.inbox.Close()
		p.control.Close()
		log.Debugf("Proxy for %s stopped", p.mask.Nick)
	}()

	for {
		select {
		case <-p.inbox.Signal():
			for {
				n, ok := p.inbox.Next()
				if !ok {
					break
				}
				p.handleNotification(n)
			}

		case <-p.control.Signal():
			for {
				msg, ok := p.control.Next()
				if !ok {
					break
				}
				if !p.handleControl(msg) {
					return
				}
			}

		case <-ctx.Done():
			return
		}
	}
}
