// Copyright (c) 2026 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package channel implements the channel actor which owns the member slot
// table of one channel and fans messages out to its members.
package channel

import (
	"context"
	"time"

	"github.com/decred/chatd/internal/mailbox"
	"github.com/decred/chatd/internal/member"
)

// DefaultPartReason is sent with a part when the member did not set one.
const DefaultPartReason = "No reason provided"

// ID identifies a member slot within a channel.  It is unique among occupied
// slots and freed slots are reused lowest first.
type ID int

// Member describes one occupant of a channel.
type Member struct {
	Addr member.Addr
	Mask member.Mask
}

// joinMsg is sent to the actor to add a member.
type joinMsg struct {
	member Member
	reply  chan ID
}

// partMsg is sent to the actor to remove the member at a slot.
type partMsg struct {
	id     ID
	reason string
}

// privmsgMsg is sent to the actor to relay text from a member to the others.
type privmsgMsg struct {
	id   ID
	text string
}

// whoMsg is sent to the actor to list the members to the member at a slot.
type whoMsg struct {
	id ID
}

// namesMsg is sent to the actor to list the member nicks to the member at a
// slot in NAMES form.
type namesMsg struct {
	id ID
}

// listMembersMsg is sent to the actor to fetch a snapshot of the members.
type listMembersMsg struct {
	reply chan []Member
}

// closeIfEmptyMsg is sent to the actor to stop it when it has no members.
type closeIfEmptyMsg struct {
	reply chan bool
}

// Channel is an actor that owns the member slot table of a single channel.
// All of its state is confined to the goroutine running Run.
type Channel struct {
	name    string
	created time.Time
	onEmpty func(*Channel)
	msgs    *mailbox.Mailbox[any]

	// The following fields are only accessed by the actor goroutine.
	slots    []*Member
	occupied int
}

// New returns a channel with the given display name.  The onEmpty callback,
// when non-nil, is invoked from the actor goroutine each time the last member
// leaves.  It must not block.
func New(name string, onEmpty func(*Channel)) *Channel {
	return &Channel{
		name:    name,
		created: time.Now(),
		onEmpty: onEmpty,
		msgs:    mailbox.New[any](),
	}
}

// Name returns the display name of the channel.
func (c *Channel) Name() string {
	return c.name
}

// Created returns the time the channel was created.
func (c *Channel) Created() time.Time {
	return c.created
}

// Done returns a channel that is closed once the channel actor stops.
func (c *Channel) Done() <-chan struct{} {
	return c.msgs.Done()
}

// allocSlot stores the member in the lowest free slot and returns its id.
func (c *Channel) allocSlot(m *Member) ID {
	c.occupied++
	for i, slot := range c.slots {
		if slot == nil {
			c.slots[i] = m
			return ID(i)
		}
	}
	c.slots = append(c.slots, m)
	return ID(len(c.slots) - 1)
}

// slot returns the member at the id or nil when the slot is empty.
func (c *Channel) slot(id ID) *Member {
	if id < 0 || int(id) >= len(c.slots) {
		return nil
	}
	return c.slots[id]
}

// notify delivers the notification to a member.  Delivery failures only mean
// the member is exiting, and its membership release will clear the slot.
func (c *Channel) notify(m *Member, n member.Notification) {
	if err := m.Addr.Notify(n); err != nil {
		log.Debugf("Unable to notify %s in %s: %v", m.Mask.Nick, c.name, err)
	}
}

// broadcast delivers the notification to every occupied slot other than
// skip, in slot order.
func (c *Channel) broadcast(skip ID, n member.Notification) {
	for i, m := range c.slots {
		if m == nil || ID(i) == skip {
			continue
		}
		c.notify(m, n)
	}
}

// nicks returns the nicks of all members in slot order.
func (c *Channel) nicks() []string {
	nicks := make([]string, 0, c.occupied)
	for _, m := range c.slots {
		if m != nil {
			nicks = append(nicks, m.Mask.Nick)
		}
	}
	return nicks
}

// handleJoin adds the member.  The caller is blocked on the reply, so it is
// sent before any notification that could reach the caller's inbox.
func (c *Channel) handleJoin(msg *joinMsg) {
	m := msg.member
	id := c.allocSlot(&m)
	msg.reply <- id

	c.broadcast(id, member.JoinOther{Mask: m.Mask, Channel: c.name})
	c.notify(&m, member.JoinSelf{Mask: m.Mask, Channel: c.name})
	log.Debugf("%s joined %s in slot %d", m.Mask.Nick, c.name, id)
}

// handlePart removes the member at the slot after telling it and the others.
// Parting an empty slot is a no-op.
func (c *Channel) handlePart(msg *partMsg) {
	m := c.slot(msg.id)
	if m == nil {
		return
	}
	c.notify(m, member.PartSelf{Mask: m.Mask, Channel: c.name,
		Reason: msg.reason})
	c.broadcast(msg.id, member.PartOther{Mask: m.Mask, Channel: c.name,
		Reason: msg.reason})
	c.slots[msg.id] = nil
	c.occupied--
	log.Debugf("%s parted %s (%s)", m.Mask.Nick, c.name, msg.reason)

	// Drop trailing empty slots.
	for len(c.slots) > 0 && c.slots[len(c.slots)-1] == nil {
		c.slots = c.slots[:len(c.slots)-1]
	}
	if c.occupied == 0 && c.onEmpty != nil {
		c.onEmpty(c)
	}
}

// handlePrivmsg relays text from the member at the slot to every other
// member.
func (c *Channel) handlePrivmsg(msg *privmsgMsg) {
	m := c.slot(msg.id)
	if m == nil {
		return
	}
	c.broadcast(msg.id, member.PrivmsgChan{Mask: m.Mask, Channel: c.name,
		Text: msg.text})
}

// handleWho lists the member nicks to the member at the slot only.
func (c *Channel) handleWho(msg *whoMsg) {
	m := c.slot(msg.id)
	if m == nil {
		return
	}
	c.notify(m, member.WhoList{Channel: c.name, Nicks: c.nicks()})
}

// handleNames lists the member nicks to the member at the slot only.
func (c *Channel) handleNames(msg *namesMsg) {
	m := c.slot(msg.id)
	if m == nil {
		return
	}
	c.notify(m, member.NameList{Channel: c.name, Nicks: c.nicks()})
}

// handleListMembers replies with a snapshot of the members in slot order.
func (c *Channel) handleListMembers(msg *listMembersMsg) {
	members := make([]Member, 0, c.occupied)
	for _, m := range c.slots {
		if m != nil {
			members = append(members, *m)
		}
	}
	msg.reply <- members
}

// Run processes channel requests until the context is cancelled or the
// channel is closed because it is empty.  It must be run as a goroutine.
func (c *Channel) Run(ctx context.Context) {
	log.Tracef("Starting channel %s", c.name)
	defer c.msgs.Close()

out:
	for {
		select {
		case <-c.msgs.Signal():
			for {
				data, ok := c.msgs.Next()
				if !ok {
					break
				}
				switch msg := data.(type) {
				case *joinMsg:
					c.handleJoin(msg)

				case *partMsg:
					c.handlePart(msg)

				case *privmsgMsg:
					c.handlePrivmsg(msg)

				case *whoMsg:
					c.handleWho(msg)

				case *namesMsg:
					c.handleNames(msg)

				case *listMembersMsg:
					c.handleListMembers(msg)

				case *closeIfEmptyMsg:
					empty := c.occupied == 0
					msg.reply <- empty
					if empty {
						break out
					}

				default:
					log.Warnf("Invalid message type in channel %s: %T",
						c.name, msg)
				}
			}

		case <-ctx.Done():
			break out
		}
	}

	log.Tracef("Channel %s stopped", c.name)
}

// send queues a request for the actor.
func (c *Channel) send(msg any) error {
	if err := c.msgs.Send(msg); err != nil {
		return closedError(c.name)
	}
	return nil
}

// Join adds the member to the channel and returns a membership whose release
// parts the member again.  The joining member receives a JoinSelf
// notification after every existing member has been told of the join.
func (c *Channel) Join(addr member.Addr, mask member.Mask) (*Membership, error) {
	reply := make(chan ID, 1)
	err := c.send(&joinMsg{member: Member{Addr: addr, Mask: mask},
		reply: reply})
	if err != nil {
		return nil, err
	}
	select {
	case id := <-reply:
		return newMembership(c, id), nil
	case <-c.msgs.Done():
		select {
		case id := <-reply:
			return newMembership(c, id), nil
		default:
		}
		return nil, closedError(c.name)
	}
}

// ListMembers returns the current members in slot order.
func (c *Channel) ListMembers() ([]Member, error) {
	reply := make(chan []Member, 1)
	if err := c.send(&listMembersMsg{reply: reply}); err != nil {
		return nil, err
	}
	select {
	case members := <-reply:
		return members, nil
	case <-c.msgs.Done():
		return nil, closedError(c.name)
	}
}

// CloseIfEmpty stops the channel when it has no members and reports whether
// it did.  Joins that race with the close observe ErrChannelClosed.
func (c *Channel) CloseIfEmpty() bool {
	reply := make(chan bool, 1)
	if err := c.send(&closeIfEmptyMsg{reply: reply}); err != nil {
		return true
	}
	select {
	case closed := <-reply:
		return closed
	case <-c.msgs.Done():
		return true
	}
}

// part removes the member at the slot.
func (c *Channel) part(id ID, reason string) error {
	return c.send(&partMsg{id: id, reason: reason})
}

// privmsg relays text from the member at the slot.
func (c *Channel) privmsg(id ID, text string) error {
	return c.send(&privmsgMsg{id: id, text: text})
}

// who requests a WHO listing for the member at the slot.
func (c *Channel) who(id ID) error {
	return c.send(&whoMsg{id: id})
}

// names requests a NAMES listing for the member at the slot.
func (c *Channel) names(id ID) error {
	return c.send(&namesMsg{id: id})
}
