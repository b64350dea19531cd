// Copyright (c) 2026 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package registry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/decred/chatd/internal/channel"
	"github.com/decred/chatd/internal/member"
)

// startRegistry runs a new registry for the duration of the test.
func startRegistry(t *testing.T) *Registry {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	r := New()
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return r
}

// register registers a fresh member and fails the test on error.
func register(t *testing.T, r *Registry) (*SessionHandle, *member.Inbox) {
	t.Helper()
	inbox := member.NewInbox()
	h, err := r.RegisterSession(inbox.Addr())
	if err != nil {
		t.Fatalf("RegisterSession: unexpected error: %v", err)
	}
	return h, inbox
}

// TestRegisterSessionUnique ensures concurrently registered sessions receive
// distinct ids and that ids are only reused after release.
func TestRegisterSessionUnique(t *testing.T) {
	const numSessions = 64
	r := startRegistry(t)

	handles := make([]*SessionHandle, numSessions)
	var wg sync.WaitGroup
	wg.Add(numSessions)
	for i := 0; i < numSessions; i++ {
		go func(i int) {
			defer wg.Done()
			h, err := r.RegisterSession(member.NewInbox().Addr())
			if err != nil {
				t.Errorf("RegisterSession #%d: unexpected error: %v", i, err)
				return
			}
			handles[i] = h
		}(i)
	}
	wg.Wait()
	if t.Failed() {
		return
	}

	seen := make(map[DirectoryID]struct{}, numSessions)
	for i, h := range handles {
		if _, ok := seen[h.ID()]; ok {
			t.Fatalf("#%d: duplicate id %d", i, h.ID())
		}
		seen[h.ID()] = struct{}{}
	}

	// Ids of live handles are never handed out again.
	extra, _ := register(t, r)
	if _, ok := seen[extra.ID()]; ok {
		t.Fatalf("id %d issued while still held", extra.ID())
	}

	// A released id is eligible for reuse.
	freed := handles[10].ID()
	handles[10].Release()
	reused, _ := register(t, r)
	if reused.ID() != freed {
		t.Fatalf("unexpected id after release -- got %d, want %d",
			reused.ID(), freed)
	}

	sessions, err := r.ListSessions()
	if err != nil {
		t.Fatalf("ListSessions: unexpected error: %v", err)
	}
	if len(sessions) != numSessions+1 {
		t.Fatalf("unexpected session count -- got %d, want %d",
			len(sessions), numSessions+1)
	}
}

// TestClaimNickCollision ensures a nick held by one session cannot be claimed
// by another and that the holder keeps it.
func TestClaimNickCollision(t *testing.T) {
	r := startRegistry(t)
	a, inboxA := register(t, r)
	defer a.Release()
	b, _ := register(t, r)
	defer b.Release()

	if err := a.ClaimNick("bob"); err != nil {
		t.Fatalf("ClaimNick A: unexpected error: %v", err)
	}
	if err := b.ClaimNick("bob"); !errors.Is(err, ErrNickCollision) {
		t.Fatalf("ClaimNick B: unexpected error -- got %v, want %v", err,
			ErrNickCollision)
	}
	if err := b.ClaimNick("BOB"); !errors.Is(err, ErrNickCollision) {
		t.Fatalf("ClaimNick B: nick comparison is not case-insensitive: %v",
			err)
	}

	addr, err := r.LookupByNick("bob")
	if err != nil {
		t.Fatalf("LookupByNick: unexpected error: %v", err)
	}
	if addr != inboxA.Addr() {
		t.Fatal("nick mapping changed after a failed claim")
	}

	// Reclaiming the held nick is idempotent.
	if err := a.ClaimNick("bob"); err != nil {
		t.Fatalf("ClaimNick A again: unexpected error: %v", err)
	}
}

// TestNickLifecycle ensures nicks are freed by nick changes and by release.
func TestNickLifecycle(t *testing.T) {
	r := startRegistry(t)
	a, _ := register(t, r)
	b, _ := register(t, r)
	defer b.Release()

	if err := a.ClaimNick("alice"); err != nil {
		t.Fatalf("ClaimNick: unexpected error: %v", err)
	}
	if err := a.ClaimNick("alicia"); err != nil {
		t.Fatalf("ClaimNick: unexpected error: %v", err)
	}
	if _, err := r.LookupByNick("alice"); !errors.Is(err, ErrNickNotFound) {
		t.Fatalf("old nick still mapped: %v", err)
	}
	if err := b.ClaimNick("alice"); err != nil {
		t.Fatalf("ClaimNick of freed nick: unexpected error: %v", err)
	}

	dup := a.Clone()
	a.Release()
	if _, err := r.LookupByNick("alicia"); err != nil {
		t.Fatalf("nick released while a copy is held: %v", err)
	}
	dup.Release()
	dup.Release()
	if _, err := r.LookupByNick("alicia"); !errors.Is(err, ErrNickNotFound) {
		t.Fatalf("nick still mapped after last release: %v", err)
	}
}

// TestLookupOrCreateChannelConcurrent ensures concurrent first lookups of a
// channel all receive the same channel.
func TestLookupOrCreateChannelConcurrent(t *testing.T) {
	const numCallers = 16
	r := startRegistry(t)

	results := make([]*channel.Channel, numCallers)
	var wg sync.WaitGroup
	wg.Add(numCallers)
	for i := 0; i < numCallers; i++ {
		go func(i int) {
			defer wg.Done()
			ch, err := r.LookupOrCreateChannel("#y")
			if err != nil {
				t.Errorf("LookupOrCreateChannel #%d: unexpected error: %v",
					i, err)
				return
			}
			results[i] = ch
		}(i)
	}
	wg.Wait()
	if t.Failed() {
		return
	}

	for i, ch := range results {
		if ch != results[0] {
			t.Fatalf("#%d: received a different channel", i)
		}
	}
	chans, err := r.ListChannels()
	if err != nil {
		t.Fatalf("ListChannels: unexpected error: %v", err)
	}
	if len(chans) != 1 || chans[0] != results[0] {
		t.Fatalf("unexpected channels: %d created", len(chans))
	}
}

// TestEmptyChannelCollected ensures a channel is removed once its last member
// leaves and that a later join creates a fresh channel.
func TestEmptyChannelCollected(t *testing.T) {
	r := startRegistry(t)
	inbox := member.NewInbox()
	mask := member.Mask{Nick: "bob", User: "b", Host: "h"}

	ms, err := r.Join("#z", inbox.Addr(), mask)
	if err != nil {
		t.Fatalf("Join: unexpected error: %v", err)
	}
	first := ms.Channel()
	ms.Release()

	select {
	case <-first.Done():
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for the empty channel to close")
	}

	ms, err = r.Join("#Z", inbox.Addr(), mask)
	if err != nil {
		t.Fatalf("Join: unexpected error: %v", err)
	}
	defer ms.Release()
	if ms.Channel() == first {
		t.Fatal("joined a collected channel")
	}
	chans, err := r.ListChannels()
	if err != nil {
		t.Fatalf("ListChannels: unexpected error: %v", err)
	}
	if len(chans) != 1 || chans[0] != ms.Channel() {
		t.Fatalf("unexpected channel directory: %d channels", len(chans))
	}
}

// TestRegistryStopped ensures requests fail once the registry stopped.
func TestRegistryStopped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := New()
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()
	cancel()
	<-done

	_, err := r.RegisterSession(member.NewInbox().Addr())
	if !errors.Is(err, ErrRegistryStopped) {
		t.Fatalf("unexpected error -- got %v, want %v", err,
			ErrRegistryStopped)
	}
}
