// Copyright (c) 2026 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"fmt"
	"strings"
)

// MaxLineLength is the maximum number of bytes accepted for a single inbound
// line, excluding the terminating newline.  It is generous compared to the
// traditional 512 byte limit since federation bursts can carry long SJOIN
// member lists.
const MaxLineLength = 16 * 1024

// Message is a single parsed protocol line.
//
// Trailing holds the text that followed the first parameter beginning with a
// colon, split on single spaces so that strings.Join(Trailing, " ")
// reproduces it exactly.  Trailing is nil when the line had no trailing
// parameter at all and a one element slice holding the empty string when the
// trailing parameter was present but empty.
type Message struct {
	Prefix   string
	Command  string
	Params   []string
	Trailing []string
}

// isSpace reports whether the byte separates tokens.
func isSpace(b byte) bool {
	return b == ' ' || b == '\t'
}

// ParseLine parses a raw protocol line of the form
//
//	[":" prefix " "] command {" " param} [" :" trailing]
//
// Trailing whitespace (including any CR/LF) is removed before parsing and
// the command is upper-cased.
func ParseLine(line string) (*Message, error) {
	line = strings.TrimRight(line, " \t\r\n")

	var msg Message
	pos := 0
	skipSpaces := func() {
		for pos < len(line) && isSpace(line[pos]) {
			pos++
		}
	}
	nextToken := func() string {
		start := pos
		for pos < len(line) && !isSpace(line[pos]) {
			pos++
		}
		return line[start:pos]
	}

	skipSpaces()
	if pos < len(line) && line[pos] == ':' {
		pos++
		msg.Prefix = nextToken()
		if msg.Prefix == "" {
			str := fmt.Sprintf("line %q has an empty prefix", line)
			return nil, messageError(ErrEmptyPrefix, str)
		}
		skipSpaces()
	}

	msg.Command = strings.ToUpper(nextToken())
	if msg.Command == "" {
		str := fmt.Sprintf("line %q has no command", line)
		return nil, messageError(ErrMalformedString, str)
	}

	for {
		skipSpaces()
		if pos >= len(line) {
			break
		}
		if line[pos] == ':' {
			msg.Trailing = strings.Split(line[pos+1:], " ")
			break
		}
		msg.Params = append(msg.Params, nextToken())
	}

	return &msg, nil
}

// HasTrailing reports whether the message carried a trailing parameter.
func (m *Message) HasTrailing() bool {
	return m.Trailing != nil
}

// TrailingText returns the trailing parameter as a single string.
func (m *Message) TrailingText() string {
	return strings.Join(m.Trailing, " ")
}

// Args returns the ordinary parameters followed by the trailing text, when
// present, as a final argument.  Clients are free to send the last argument
// of most commands in either form, so handlers that do not care about the
// distinction use this.
func (m *Message) Args() []string {
	if !m.HasTrailing() {
		return m.Params
	}
	args := make([]string, 0, len(m.Params)+1)
	args = append(args, m.Params...)
	return append(args, m.TrailingText())
}

// Arg returns the i'th element of Args and whether it exists.
func (m *Message) Arg(i int) (string, bool) {
	args := m.Args()
	if i < 0 || i >= len(args) {
		return "", false
	}
	return args[i], true
}

// PrefixNick returns the nick portion of the prefix, which is everything
// before the first '!' or '@'.
func (m *Message) PrefixNick() string {
	if i := strings.IndexAny(m.Prefix, "!@"); i >= 0 {
		return m.Prefix[:i]
	}
	return m.Prefix
}

// String returns the message in wire form without the line terminator.
func (m *Message) String() string {
	var sb strings.Builder
	if m.Prefix != "" {
		sb.WriteByte(':')
		sb.WriteString(m.Prefix)
		sb.WriteByte(' ')
	}
	sb.WriteString(m.Command)
	for _, param := range m.Params {
		sb.WriteByte(' ')
		sb.WriteString(param)
	}
	if m.HasTrailing() {
		sb.WriteString(" :")
		sb.WriteString(m.TrailingText())
	}
	return sb.String()
}
