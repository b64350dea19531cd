// Copyright (c) 2026 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package channel

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/decred/chatd/internal/member"
)

// testMember is a member whose notifications are inspected by the test.
type testMember struct {
	inbox *member.Inbox
	mask  member.Mask
}

func newTestMember(nick string) *testMember {
	return &testMember{
		inbox: member.NewInbox(),
		mask:  member.Mask{Nick: nick, User: nick, Host: "127.0.0.1"},
	}
}

// next waits for the next notification delivered to the member.
func (m *testMember) next(t *testing.T) member.Notification {
	t.Helper()
	timeout := time.After(time.Second)
	for {
		if n, ok := m.inbox.Next(); ok {
			return n
		}
		select {
		case <-m.inbox.Signal():
		case <-timeout:
			t.Fatalf("timeout waiting for notification to %s", m.mask.Nick)
		}
	}
}

// expectEmpty ensures no notification is queued for the member.
func (m *testMember) expectEmpty(t *testing.T) {
	t.Helper()
	if n, ok := m.inbox.Next(); ok {
		t.Fatalf("unexpected notification to %s: %#v", m.mask.Nick, n)
	}
}

// join joins the member to the channel and fails the test on error.
func (m *testMember) join(t *testing.T, ch *Channel) *Membership {
	t.Helper()
	ms, err := ch.Join(m.inbox.Addr(), m.mask)
	if err != nil {
		t.Fatalf("Join %s: unexpected error: %v", m.mask.Nick, err)
	}
	return ms
}

// settle waits until every request queued before it has been processed.
func settle(t *testing.T, ch *Channel) []Member {
	t.Helper()
	members, err := ch.ListMembers()
	if err != nil {
		t.Fatalf("ListMembers: unexpected error: %v", err)
	}
	return members
}

// startChannel runs a new channel for the duration of the test.
func startChannel(t *testing.T, name string, onEmpty func(*Channel)) *Channel {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	ch := New(name, onEmpty)
	go ch.Run(ctx)
	return ch
}

// TestJoinOrdering ensures a join is announced to the existing members but
// not the joiner, and that WHO lists members in join order.
func TestJoinOrdering(t *testing.T) {
	ch := startChannel(t, "#x", nil)
	a, b := newTestMember("A"), newTestMember("B")

	msA := a.join(t, ch)
	defer msA.Release()
	msB := b.join(t, ch)
	defer msB.Release()
	if msA.ID() != 0 || msB.ID() != 1 {
		t.Fatalf("unexpected slots -- got %d and %d, want 0 and 1",
			msA.ID(), msB.ID())
	}

	if n, ok := a.next(t).(member.JoinSelf); !ok || n.Channel != "#x" {
		t.Fatalf("A: expected JoinSelf for #x, got %#v", n)
	}
	n := a.next(t)
	other, ok := n.(member.JoinOther)
	if !ok || other.Mask.Nick != "B" {
		t.Fatalf("A: expected JoinOther for B, got %#v", n)
	}

	if err := msA.Who(); err != nil {
		t.Fatalf("Who: unexpected error: %v", err)
	}
	n = a.next(t)
	who, ok := n.(member.WhoList)
	if !ok {
		t.Fatalf("A: expected WhoList, got %#v", n)
	}
	if want := []string{"A", "B"}; !reflect.DeepEqual(who.Nicks, want) {
		t.Fatalf("unexpected WHO order -- got %v, want %v", who.Nicks, want)
	}

	if n, ok := b.next(t).(member.JoinSelf); !ok || n.Mask.Nick != "B" {
		t.Fatalf("B: expected JoinSelf, got %#v", n)
	}
	b.expectEmpty(t)
}

// TestReleasePartReason ensures releasing a membership parts the member with
// the default reason unless another was set.
func TestReleasePartReason(t *testing.T) {
	ch := startChannel(t, "#x", nil)
	a, b := newTestMember("A"), newTestMember("B")

	msB := b.join(t, ch)
	defer msB.Release()

	tests := []struct {
		reason string
		want   string
	}{
		{"", DefaultPartReason},
		{"gone fishing", "gone fishing"},
	}
	for i, test := range tests {
		msA := a.join(t, ch)
		settle(t, ch)
		if test.reason != "" {
			msA.SetPartReason(test.reason)
		}
		msA.Release()
		settle(t, ch)

		// Skip the join notifications and look for the part.
		var part member.PartOther
		for {
			n := b.next(t)
			if p, ok := n.(member.PartOther); ok {
				part = p
				break
			}
		}
		if part.Mask.Nick != "A" || part.Reason != test.want {
			t.Errorf("#%d: unexpected part -- got %s/%q, want A/%q", i,
				part.Mask.Nick, part.Reason, test.want)
		}

		var self member.PartSelf
		for {
			n := a.next(t)
			if p, ok := n.(member.PartSelf); ok {
				self = p
				break
			}
		}
		if self.Reason != test.want {
			t.Errorf("#%d: unexpected self part reason -- got %q, want %q",
				i, self.Reason, test.want)
		}
	}
}

// TestSlotReuse ensures freed slots are reused lowest first.
func TestSlotReuse(t *testing.T) {
	ch := startChannel(t, "#x", nil)
	a, b, c, d := newTestMember("A"), newTestMember("B"),
		newTestMember("C"), newTestMember("D")

	msA := a.join(t, ch)
	defer msA.Release()
	msB := b.join(t, ch)
	msC := c.join(t, ch)
	defer msC.Release()

	msB.Release()
	msD := d.join(t, ch)
	defer msD.Release()
	if msD.ID() != 1 {
		t.Fatalf("unexpected reused slot -- got %d, want 1", msD.ID())
	}

	members := settle(t, ch)
	var nicks []string
	for _, m := range members {
		nicks = append(nicks, m.Mask.Nick)
	}
	if want := []string{"A", "D", "C"}; !reflect.DeepEqual(nicks, want) {
		t.Fatalf("unexpected members -- got %v, want %v", nicks, want)
	}
}

// TestPrivmsgBroadcast ensures channel messages reach every member except
// the sender.
func TestPrivmsgBroadcast(t *testing.T) {
	ch := startChannel(t, "#x", nil)
	a, b, c := newTestMember("A"), newTestMember("B"), newTestMember("C")

	msA := a.join(t, ch)
	defer msA.Release()
	msB := b.join(t, ch)
	defer msB.Release()
	msC := c.join(t, ch)
	defer msC.Release()
	settle(t, ch)

	// Discard the join notifications.
	for _, m := range []*testMember{a, b, c} {
		for {
			if _, ok := m.inbox.Next(); !ok {
				break
			}
		}
	}

	if err := msB.Privmsg("hello there"); err != nil {
		t.Fatalf("Privmsg: unexpected error: %v", err)
	}
	settle(t, ch)
	for _, m := range []*testMember{a, c} {
		n := m.next(t)
		msg, ok := n.(member.PrivmsgChan)
		if !ok || msg.Text != "hello there" || msg.Mask.Nick != "B" {
			t.Fatalf("%s: unexpected notification %#v", m.mask.Nick, n)
		}
	}
	b.expectEmpty(t)
}

// TestMembershipClone ensures only the release of the last copy parts the
// member and that repeated releases are ignored.
func TestMembershipClone(t *testing.T) {
	ch := startChannel(t, "#x", nil)
	a := newTestMember("A")

	msA := a.join(t, ch)
	dup := msA.Clone()
	msA.Release()
	msA.Release()
	if members := settle(t, ch); len(members) != 1 {
		t.Fatalf("member parted before the last release: %d members",
			len(members))
	}
	dup.Release()
	if members := settle(t, ch); len(members) != 0 {
		t.Fatalf("member still present after the last release: %d members",
			len(members))
	}
}

// TestCloseIfEmpty ensures an emptied channel reports itself and can only be
// closed while it has no members.
func TestCloseIfEmpty(t *testing.T) {
	emptied := make(chan *Channel, 1)
	ch := startChannel(t, "#x", func(c *Channel) { emptied <- c })
	a := newTestMember("A")

	msA := a.join(t, ch)
	if ch.CloseIfEmpty() {
		t.Fatal("closed a channel with members")
	}
	msA.Release()

	select {
	case c := <-emptied:
		if c != ch {
			t.Fatal("empty notification for the wrong channel")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for empty notification")
	}
	if !ch.CloseIfEmpty() {
		t.Fatal("did not close an empty channel")
	}

	_, err := ch.Join(a.inbox.Addr(), a.mask)
	if !errors.Is(err, ErrChannelClosed) {
		t.Fatalf("unexpected join error -- got %v, want %v", err,
			ErrChannelClosed)
	}
}

// TestSet ensures the membership set tracks and releases memberships.
func TestSet(t *testing.T) {
	chX := startChannel(t, "#X", nil)
	chY := startChannel(t, "#y", nil)
	a, b := newTestMember("A"), newTestMember("B")
	msBX := b.join(t, chX)
	defer msBX.Release()

	set := NewSet()
	set.Add("#X", a.join(t, chX))
	set.Add("#y", a.join(t, chY))
	if _, ok := set.Get("#x"); !ok {
		t.Fatal("lookup is not case-insensitive")
	}
	if want := []string{"#X", "#y"}; !reflect.DeepEqual(set.Names(), want) {
		t.Fatalf("unexpected names -- got %v, want %v", set.Names(), want)
	}

	set.ReleaseAll("Quit: bye")
	if set.Len() != 0 {
		t.Fatalf("set not empty after ReleaseAll: %d", set.Len())
	}
	settle(t, chX)
	var part member.PartOther
	for {
		if p, ok := b.next(t).(member.PartOther); ok {
			part = p
			break
		}
	}
	if part.Reason != "Quit: bye" {
		t.Fatalf("unexpected part reason %q", part.Reason)
	}
}
