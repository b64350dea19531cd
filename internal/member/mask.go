// Copyright (c) 2026 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package member

import "strings"

// Mask describes the identity of a user as it is rendered into message
// prefixes and federation bursts.
type Mask struct {
	Nick       string
	User       string
	Host       string
	Real       string
	Hops       uint32
	Timestamp  string
	ServerName string
}

// String returns the short nick!user@host form used on client lines.
func (m *Mask) String() string {
	return m.Nick + "!" + m.User + "@" + m.Host
}

// FoldNick returns the canonical form of a nick used for uniqueness checks.
func FoldNick(nick string) string {
	return strings.ToLower(nick)
}

// IsChannelName reports whether the target names a channel rather than a
// user.
func IsChannelName(target string) bool {
	return len(target) > 1 && (target[0] == '#' || target[0] == '&')
}
