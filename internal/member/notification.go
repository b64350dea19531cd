// Copyright (c) 2026 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package member

// Notification is a message pushed into a member's inbox by a channel, the
// registry or another member.
type Notification interface {
	notification()
}

// JoinSelf confirms the member itself joined a channel.
type JoinSelf struct {
	Mask    Mask
	Channel string
}

// JoinOther reports another member joined a channel the member is in.
type JoinOther struct {
	Mask    Mask
	Channel string
}

// PartSelf confirms the member itself left a channel.
type PartSelf struct {
	Mask    Mask
	Channel string
	Reason  string
}

// PartOther reports another member left a channel the member is in.
type PartOther struct {
	Mask    Mask
	Channel string
	Reason  string
}

// WhoList is the answer to a WHO request, listing member nicks in slot
// order.
type WhoList struct {
	Channel string
	Nicks   []string
}

// NameList is the answer to a NAMES request, listing member nicks in slot
// order.
type NameList struct {
	Channel string
	Nicks   []string
}

// Privmsg is a message sent directly to the member.
type Privmsg struct {
	Mask Mask
	Text string
}

// PrivmsgChan is a message sent to a channel the member is in.
type PrivmsgChan struct {
	Mask    Mask
	Channel string
	Text    string
}

// MaskReply is the answer to a MaskQuery.
type MaskReply struct {
	Mask Mask
	Err  error
}

// MaskQuery asks the member for its current mask.  The member must send
// exactly one MaskReply on Reply, which is buffered.
type MaskQuery struct {
	Reply chan MaskReply
}

func (JoinSelf) notification()    {}
func (JoinOther) notification()   {}
func (PartSelf) notification()    {}
func (PartOther) notification()   {}
func (WhoList) notification()     {}
func (NameList) notification()    {}
func (Privmsg) notification()     {}
func (PrivmsgChan) notification() {}
func (MaskQuery) notification()   {}
