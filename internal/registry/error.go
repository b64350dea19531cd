// Copyright (c) 2020-2026 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package registry

// ErrorKind identifies a kind of error.  It has full support for errors.Is and
// errors.As, so the caller can directly check against an error kind when
// determining the reason for an error.
type ErrorKind string

const (
	// ErrNickCollision indicates a nick is already claimed by another
	// session.
	ErrNickCollision = ErrorKind("ErrNickCollision")

	// ErrNickNotFound indicates no session holds the requested nick.
	ErrNickNotFound = ErrorKind("ErrNickNotFound")

	// ErrRegistryStopped indicates the registry is no longer running.
	ErrRegistryStopped = ErrorKind("ErrRegistryStopped")

	// ErrJoinFailed indicates a channel kept closing while a member tried
	// to join it.
	ErrJoinFailed = ErrorKind("ErrJoinFailed")
)

// Error satisfies the error interface and prints human-readable errors.
func (e ErrorKind) Error() string {
	return string(e)
}

// Error identifies an error returned by the registry.  It has full support for
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
