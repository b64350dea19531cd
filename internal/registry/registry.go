// Copyright (c) 2026 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package registry implements the actor that owns session identities, the
// nick table and the channel directory.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/decred/chatd/internal/channel"
	"github.com/decred/chatd/internal/mailbox"
	"github.com/decred/chatd/internal/member"
)

// maxJoinAttempts is the number of times Join retries a channel that closed
// between lookup and join.
const maxJoinAttempts = 3

// DirectoryID identifies a registered session.  It is unique while the
// session is registered and is reused lowest first after release.
type DirectoryID uint64

// entry is a registered session.
type entry struct {
	addr member.Addr
	nick string
}

// registerMsg is sent to the actor to register a session.
type registerMsg struct {
	addr  member.Addr
	reply chan DirectoryID
}

// deregisterMsg is sent to the actor when the last copy of a session handle
// is released.
type deregisterMsg struct {
	id DirectoryID
}

// claimNickMsg is sent to the actor to claim a nick for a session.
type claimNickMsg struct {
	id    DirectoryID
	nick  string
	reply chan error
}

// lookupNickResponse is the reply to a lookupNickMsg.
type lookupNickResponse struct {
	addr member.Addr
	err  error
}

// lookupNickMsg is sent to the actor to find the session holding a nick.
type lookupNickMsg struct {
	nick  string
	reply chan lookupNickResponse
}

// lookupChannelMsg is sent to the actor to find or create a channel.
type lookupChannelMsg struct {
	name  string
	reply chan *channel.Channel
}

// listSessionsMsg is sent to the actor to list the registered sessions.
type listSessionsMsg struct {
	reply chan []member.Addr
}

// listChannelsMsg is sent to the actor to list the channels.
type listChannelsMsg struct {
	reply chan []*channel.Channel
}

// channelEmptyMsg is sent by a channel when its last member left.
type channelEmptyMsg struct {
	ch *channel.Channel
}

// Registry is the actor owning the session directory, the nick table and the
// channel directory.  Requests are processed one at a time by Run, which
// makes lookup-or-create of channels race free.
type Registry struct {
	msgs *mailbox.Mailbox[any]

	// The following fields are only accessed by the actor goroutine.
	entries  []*entry
	nicks    map[string]DirectoryID
	channels map[string]*channel.Channel
	wg       sync.WaitGroup
}

// New returns a new registry.  Run must be called for it to process requests.
func New() *Registry {
	return &Registry{
		msgs:     mailbox.New[any](),
		nicks:    make(map[string]DirectoryID),
		channels: make(map[string]*channel.Channel),
	}
}

// handleRegister allocates the lowest free id for the session and replies
// with it before anything else happens.
func (r *Registry) handleRegister(msg *registerMsg) {
	e := &entry{addr: msg.addr}
	for i, slot := range r.entries {
		if slot == nil {
			r.entries[i] = e
			msg.reply <- DirectoryID(i)
			return
		}
	}
	r.entries = append(r.entries, e)
	msg.reply <- DirectoryID(len(r.entries) - 1)
}

// entry returns the registered session for the id or nil.
func (r *Registry) entry(id DirectoryID) *entry {
	if id >= DirectoryID(len(r.entries)) {
		return nil
	}
	return r.entries[id]
}

// handleDeregister removes the session and its nick.  Unknown ids are
// ignored.
func (r *Registry) handleDeregister(msg *deregisterMsg) {
	e := r.entry(msg.id)
	if e == nil {
		return
	}
	if e.nick != "" {
		delete(r.nicks, member.FoldNick(e.nick))
		log.Debugf("Released nick %s", e.nick)
	}
	r.entries[msg.id] = nil
	for len(r.entries) > 0 && r.entries[len(r.entries)-1] == nil {
		r.entries = r.entries[:len(r.entries)-1]
	}
}

// handleClaimNick assigns the nick to the session unless a different session
// already holds it.  Claiming the nick the session already holds succeeds.
func (r *Registry) handleClaimNick(msg *claimNickMsg) {
	e := r.entry(msg.id)
	if e == nil {
		str := fmt.Sprintf("session %d is not registered", msg.id)
		msg.reply <- makeError(ErrNickNotFound, str)
		return
	}

	key := member.FoldNick(msg.nick)
	if holder, ok := r.nicks[key]; ok && holder != msg.id {
		str := fmt.Sprintf("nick %s is already in use", msg.nick)
		msg.reply <- makeError(ErrNickCollision, str)
		return
	}
	if e.nick != "" && member.FoldNick(e.nick) != key {
		delete(r.nicks, member.FoldNick(e.nick))
	}
	e.nick = msg.nick
	r.nicks[key] = msg.id
	msg.reply <- nil
}

// handleLookupNick finds the session holding the nick.
func (r *Registry) handleLookupNick(msg *lookupNickMsg) {
	id, ok := r.nicks[member.FoldNick(msg.nick)]
	if !ok {
		str := fmt.Sprintf("no session holds nick %s", msg.nick)
		msg.reply <- lookupNickResponse{err: makeError(ErrNickNotFound, str)}
		return
	}
	msg.reply <- lookupNickResponse{addr: r.entries[id].addr}
}

// handleLookupChannel returns the channel for the name, creating and starting
// it on first use.
func (r *Registry) handleLookupChannel(ctx context.Context, msg *lookupChannelMsg) {
	key := channel.FoldName(msg.name)
	ch, ok := r.channels[key]
	if !ok {
		ch = channel.New(msg.name, r.channelEmpty)
		r.channels[key] = ch
		r.wg.Add(1)
		go func() {
			ch.Run(ctx)
			r.wg.Done()
		}()
		log.Debugf("Created channel %s", msg.name)
	}
	msg.reply <- ch
}

// handleChannelEmpty collects the channel when it is still the registered
// channel for its name and still has no members.
func (r *Registry) handleChannelEmpty(msg *channelEmptyMsg) {
	key := channel.FoldName(msg.ch.Name())
	if r.channels[key] != msg.ch {
		return
	}
	if msg.ch.CloseIfEmpty() {
		delete(r.channels, key)
		log.Debugf("Removed empty channel %s", msg.ch.Name())
	}
}

// handleListSessions replies with the registered sessions in id order.
func (r *Registry) handleListSessions(msg *listSessionsMsg) {
	addrs := make([]member.Addr, 0, len(r.entries))
	for _, e := range r.entries {
		if e != nil {
			addrs = append(addrs, e.addr)
		}
	}
	msg.reply <- addrs
}

// handleListChannels replies with the channels sorted by name.
func (r *Registry) handleListChannels(msg *listChannelsMsg) {
	chans := make([]*channel.Channel, 0, len(r.channels))
	for _, ch := range r.channels {
		chans = append(chans, ch)
	}
	sort.Slice(chans, func(i, j int) bool {
		return chans[i].Name() < chans[j].Name()
	})
	msg.reply <- chans
}

// channelEmpty is invoked by channels when their last member leaves.
func (r *Registry) channelEmpty(ch *channel.Channel) {
	r.msgs.Send(&channelEmptyMsg{ch: ch})
}

// Run processes registry requests until the context is cancelled.  Channels
// created by the registry run until the same context is cancelled and Run
// waits for them before returning.
func (r *Registry) Run(ctx context.Context) {
	log.Trace("Starting registry")

out:
	for {
		select {
		case <-r.msgs.Signal():
			for {
				data, ok := r.msgs.Next()
				if !ok {
					break
				}
				switch msg := data.(type) {
				case *registerMsg:
					r.handleRegister(msg)

				case *deregisterMsg:
					r.handleDeregister(msg)

				case *claimNickMsg:
					r.handleClaimNick(msg)

				case *lookupNickMsg:
					r.handleLookupNick(msg)

				case *lookupChannelMsg:
					r.handleLookupChannel(ctx, msg)

				case *listSessionsMsg:
					r.handleListSessions(msg)

				case *listChannelsMsg:
					r.handleListChannels(msg)

				case *channelEmptyMsg:
					r.handleChannelEmpty(msg)

				default:
					log.Warnf("Invalid message type in registry: %T", msg)
				}
			}

		case <-ctx.Done():
			break out
		}
	}

	r.msgs.Close()
	r.wg.Wait()
	log.Trace("Registry stopped")
}

// request sends the message to the registry and waits for the reply.
func request[T any](r *Registry, msg any, reply chan T) (T, error) {
	var zero T
	if err := r.msgs.Send(msg); err != nil {
		return zero, makeError(ErrRegistryStopped, "registry is not running")
	}
	select {
	case resp := <-reply:
		return resp, nil
	case <-r.msgs.Done():
		return zero, makeError(ErrRegistryStopped, "registry is not running")
	}
}

// RegisterSession allocates an identity for the member and returns the
// handle owning it.  The handle must be stored by the caller before it is
// cloned.
func (r *Registry) RegisterSession(addr member.Addr) (*SessionHandle, error) {
	reply := make(chan DirectoryID, 1)
	id, err := request(r, &registerMsg{addr: addr, reply: reply}, reply)
	if err != nil {
		return nil, err
	}
	return newSessionHandle(r, id), nil
}

// claimNick claims the nick for the session with the id.
func (r *Registry) claimNick(id DirectoryID, nick string) error {
	reply := make(chan error, 1)
	err, reqErr := request(r, &claimNickMsg{id: id, nick: nick,
		reply: reply}, reply)
	if reqErr != nil {
		return reqErr
	}
	return err
}

// deregister queues removal of the session with the id.
func (r *Registry) deregister(id DirectoryID) {
	if err := r.msgs.Send(&deregisterMsg{id: id}); err != nil {
		log.Debugf("Deregister of session %d not delivered: %v", id, err)
	}
}

// LookupByNick returns the address of the session holding the nick.
func (r *Registry) LookupByNick(nick string) (member.Addr, error) {
	reply := make(chan lookupNickResponse, 1)
	resp, err := request(r, &lookupNickMsg{nick: nick, reply: reply}, reply)
	if err != nil {
		return member.Addr{}, err
	}
	return resp.addr, resp.err
}

// LookupOrCreateChannel returns the channel with the name, creating it when
// it does not exist.  Concurrent callers for a new name all receive the same
// channel.
func (r *Registry) LookupOrCreateChannel(name string) (*channel.Channel, error) {
	reply := make(chan *channel.Channel, 1)
	return request(r, &lookupChannelMsg{name: name, reply: reply}, reply)
}

// ListSessions returns the addresses of all registered sessions in id order.
func (r *Registry) ListSessions() ([]member.Addr, error) {
	reply := make(chan []member.Addr, 1)
	return request(r, &listSessionsMsg{reply: reply}, reply)
}

// ListChannels returns all channels sorted by name.
func (r *Registry) ListChannels() ([]*channel.Channel, error) {
	reply := make(chan []*channel.Channel, 1)
	return request(r, &listChannelsMsg{reply: reply}, reply)
}

// Join looks up or creates the named channel and joins the member to it.  A
// channel that was collected between the lookup and the join is looked up
// again.
func (r *Registry) Join(name string, addr member.Addr, mask member.Mask) (*channel.Membership, error) {
	for attempt := 0; attempt < maxJoinAttempts; attempt++ {
		ch, err := r.LookupOrCreateChannel(name)
		if err != nil {
			return nil, err
		}
		ms, err := ch.Join(addr, mask)
		if errors.Is(err, channel.ErrChannelClosed) {
			log.Debugf("Channel %s closed during join, retrying", name)
			continue
		}
		return ms, err
	}
	str := fmt.Sprintf("unable to join %s after %d attempts", name,
		maxJoinAttempts)
	return nil, makeError(ErrJoinFailed, str)
}
