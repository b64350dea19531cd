// Copyright (c) 2020-2026 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package member

// ErrorKind identifies a kind of error.  It has full support for errors.Is and
// errors.As, so the caller can directly check against an error kind when
// determining the reason for an error.
type ErrorKind string

const (
	// ErrInvalidState indicates a member was asked for its mask before it
	// completed registration.
	ErrInvalidState = ErrorKind("ErrInvalidState")

	// ErrMemberGone indicates the member exited before answering a query.
	ErrMemberGone = ErrorKind("ErrMemberGone")
)

// Error satisfies the error interface and prints human-readable errors.
func (e ErrorKind) Error() string {
	return string(e)
}

// Error identifies an error related to a member.  It has full support for
// errors.Is and errors.As, so the caller can ascertain the specific reason for
// the error by checking the underlying error.
type Error struct {
	Description string
	Err         error
}

// Error satisfies the error interface and prints human-readable errors.
func (e Error) Error() string {
	return e.Description
}

// Unwrap returns the underlying wrapped error.
func (e Error) Unwrap() error {
	return e.Err
}

// makeError creates an Error given a set of arguments.
func makeError(kind ErrorKind, desc string) Error {
	return Error{Err: kind, Description: desc}
}

// InvalidState returns an error that reports the member has not finished
// registering.  Sessions answer mask queries with it while unregistered.
func InvalidState(nick string) error {
	if nick == "" {
		nick = "*"
	}
	return makeError(ErrInvalidState, "member "+nick+" is not registered")
}
