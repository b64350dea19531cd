// Copyright (c) 2026 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package member

import (
	"github.com/decred/chatd/internal/mailbox"
)

// Inbox is the receiving side of a member's notification mailbox.  It is
// owned by the member's actor.
type Inbox struct {
	mb *mailbox.Mailbox[Notification]
}

// NewInbox returns a new empty inbox.
func NewInbox() *Inbox {
	return &Inbox{mb: mailbox.New[Notification]()}
}

// Addr returns the send-only address of the inbox.
func (i *Inbox) Addr() Addr {
	return Addr{mb: i.mb}
}

// Signal returns a channel that receives a value when notifications may be
// waiting.
func (i *Inbox) Signal() <-chan struct{} {
	return i.mb.Signal()
}

// Next removes and returns the oldest queued notification.
func (i *Inbox) Next() (Notification, bool) {
	return i.mb.Next()
}

// Close closes the inbox.  Further notifications are rejected and pending
// mask queries observe ErrMemberGone.
func (i *Inbox) Close() {
	i.mb.Close()
}

// Addr is a send-only capability for a member's inbox.  Addresses are
// comparable and the zero value refers to no member.
type Addr struct {
	mb *mailbox.Mailbox[Notification]
}

// IsZero reports whether the address refers to no member.
func (a Addr) IsZero() bool {
	return a.mb == nil
}

// Notify queues the notification for the member.  It never blocks and
// returns mailbox.ErrClosed when the member has exited.
func (a Addr) Notify(n Notification) error {
	return a.mb.Send(n)
}

// Done returns a channel that is closed once the member has exited.
func (a Addr) Done() <-chan struct{} {
	return a.mb.Done()
}

// Mask asks the member for its current mask and waits for the answer.
func (a Addr) Mask() (Mask, error) {
	reply := make(chan MaskReply, 1)
	if err := a.Notify(MaskQuery{Reply: reply}); err != nil {
		return Mask{}, makeError(ErrMemberGone, "member exited before "+
			"mask query")
	}
	select {
	case r := <-reply:
		return r.Mask, r.Err
	case <-a.mb.Done():
		select {
		case r := <-reply:
			return r.Mask, r.Err
		default:
		}
		return Mask{}, makeError(ErrMemberGone, "member exited before "+
			"answering mask query")
	}
}
