// Copyright (c) 2026 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package registry

import "sync"

// handleState is shared by every copy of a session handle.
type handleState struct {
	r  *Registry
	id DirectoryID

	mtx  sync.Mutex
	refs int
}

// SessionHandle is the capability for a registered identity.  Releasing the
// last copy deregisters the identity exactly once.
//
// A handle must be stored by its owner before it is cloned.
type SessionHandle struct {
	state    *handleState
	released sync.Once
}

// newSessionHandle returns the first copy of a handle for the id.
func newSessionHandle(r *Registry, id DirectoryID) *SessionHandle {
	return &SessionHandle{state: &handleState{r: r, id: id, refs: 1}}
}

// ID returns the identity held by the handle.
func (h *SessionHandle) ID() DirectoryID {
	return h.state.id
}

// ClaimNick claims the nick for the identity.  It returns ErrNickCollision
// when another identity holds the nick.
func (h *SessionHandle) ClaimNick(nick string) error {
	return h.state.r.claimNick(h.state.id, nick)
}

// Clone returns another copy of the handle.  Each copy must be released.
func (h *SessionHandle) Clone() *SessionHandle {
	h.state.mtx.Lock()
	h.state.refs++
	h.state.mtx.Unlock()
	return &SessionHandle{state: h.state}
}

// Release gives up this copy of the handle.  Releasing a copy more than once
// has no effect.  Releasing the last copy deregisters the identity.
func (h *SessionHandle) Release() {
	h.released.Do(func() {
		s := h.state
		s.mtx.Lock()
		s.refs--
		last := s.refs == 0
		s.mtx.Unlock()
		if last {
			s.r.deregister(s.id)
		}
	})
}
