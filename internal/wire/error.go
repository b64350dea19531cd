// Copyright (c) 2013-2015 The btcsuite developers
// Copyright (c) 2015-2026 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

// ErrorKind identifies a kind of error.  It has full support for errors.Is and
// errors.As, so the caller can directly check against an error kind when
// determining the reason for an error.
type ErrorKind string

const (
	// ErrMalformedString indicates a line could not be parsed into a
	// command, for example because it is empty or only carries a prefix.
	ErrMalformedString = ErrorKind("ErrMalformedString")

	// ErrEmptyPrefix indicates a line began with a prefix marker that was
	// not followed by a prefix.
	ErrEmptyPrefix = ErrorKind("ErrEmptyPrefix")
)

// Error satisfies the error interface and prints human-readable errors.
func (e ErrorKind) Error() string {
	return string(e)
}

// MessageError describes an issue with a line received from the network.  It
// has full support for errors.Is and errors.As, so the caller can ascertain
// the specific reason for the error by checking the underlying error.
type MessageError struct {
	Description string
	Err         error
}

// Error satisfies the error interface and prints human-readable errors.
func (e MessageError) Error() string {
	return e.Description
}

// Unwrap returns the underlying wrapped error.
func (e MessageError) Unwrap() error {
	return e.Err
}

// messageError creates a MessageError given a set of arguments.
func messageError(kind ErrorKind, desc string) MessageError {
	return MessageError{Err: kind, Description: desc}
}
