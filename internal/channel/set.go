// Copyright (c) 2026 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package channel

import (
	"sort"
	"strings"
)

// Set tracks the memberships owned by one member keyed by case-folded channel
// name.  It is not safe for concurrent use; it belongs to a single actor.
type Set struct {
	byName map[string]*Membership
}

// NewSet returns an empty membership set.
func NewSet() *Set {
	return &Set{byName: make(map[string]*Membership)}
}

// FoldName returns the canonical form of a channel name.
func FoldName(name string) string {
	return strings.ToLower(name)
}

// Add stores the membership under the channel name.  An existing membership
// for the same channel is released.
func (s *Set) Add(name string, m *Membership) {
	key := FoldName(name)
	if old, ok := s.byName[key]; ok {
		old.Release()
	}
	s.byName[key] = m
}

// Get returns the membership for the channel name.
func (s *Set) Get(name string) (*Membership, bool) {
	m, ok := s.byName[FoldName(name)]
	return m, ok
}

// Remove deletes the membership for the channel name from the set without
// releasing it and returns it.
func (s *Set) Remove(name string) (*Membership, bool) {
	key := FoldName(name)
	m, ok := s.byName[key]
	if ok {
		delete(s.byName, key)
	}
	return m, ok
}

// Len returns the number of memberships.
func (s *Set) Len() int {
	return len(s.byName)
}

// Names returns the display names of the channels in the set, sorted.
func (s *Set) Names() []string {
	names := make([]string, 0, len(s.byName))
	for _, m := range s.byName {
		names = append(names, m.Channel().Name())
	}
	sort.Strings(names)
	return names
}

// ReleaseAll parts every channel in the set with the reason and empties it.
func (s *Set) ReleaseAll(reason string) {
	for key, m := range s.byName {
		if reason != "" {
			m.SetPartReason(reason)
		}
		m.Release()
		delete(s.byName, key)
	}
}
