// Copyright (c) 2026 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package channel

import (
	"sync"
)

// membershipState is shared by every copy of a membership.
type membershipState struct {
	ch *Channel
	id ID

	mtx        sync.Mutex
	partReason string
	refs       int
}

// Membership is the capability for one member's seat in a channel.  Releasing
// the last copy parts the member from the channel exactly once.
//
// A membership must be stored by its owner before it is cloned.
type Membership struct {
	state    *membershipState
	released sync.Once
}

// newMembership returns the first copy of a membership for the slot.
func newMembership(ch *Channel, id ID) *Membership {
	return &Membership{state: &membershipState{ch: ch, id: id, refs: 1}}
}

// Channel returns the channel the membership belongs to.
func (m *Membership) Channel() *Channel {
	return m.state.ch
}

// ID returns the member slot held by the membership.
func (m *Membership) ID() ID {
	return m.state.id
}

// SetPartReason sets the reason sent with the part when the membership is
// released.
func (m *Membership) SetPartReason(reason string) {
	m.state.mtx.Lock()
	m.state.partReason = reason
	m.state.mtx.Unlock()
}

// Privmsg relays text to every other member of the channel.
func (m *Membership) Privmsg(text string) error {
	return m.state.ch.privmsg(m.state.id, text)
}

// Who requests a WHO listing delivered to this member.
func (m *Membership) Who() error {
	return m.state.ch.who(m.state.id)
}

// Names requests a NAMES listing delivered to this member.
func (m *Membership) Names() error {
	return m.state.ch.names(m.state.id)
}

// Clone returns another copy of the membership.  Each copy must be released.
func (m *Membership) Clone() *Membership {
	m.state.mtx.Lock()
	m.state.refs++
	m.state.mtx.Unlock()
	return &Membership{state: m.state}
}

// Release gives up this copy of the membership.  Releasing a copy more than
// once has no effect.  When the last copy is released the member is parted
// with the reason set by SetPartReason, or DefaultPartReason.
func (m *Membership) Release() {
	m.released.Do(func() {
		s := m.state
		s.mtx.Lock()
		s.refs--
		last := s.refs == 0
		reason := s.partReason
		s.mtx.Unlock()
		if !last {
			return
		}

		if reason == "" {
			reason = DefaultPartReason
		}
		if err := s.ch.part(s.id, reason); err != nil {
			log.Debugf("Part from %s not delivered: %v", s.ch.name, err)
		}
	})
}
