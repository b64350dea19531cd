// Copyright (c) 2017-2026 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package sampleconfig

import (
	_ "embed"
)

// sampleChatdConf is a string containing the commented example config for
// chatd.
//
//go:embed sample-chatd.yaml
var sampleChatdConf string

// Chatd returns a string containing the commented example config for chatd.
func Chatd() string {
	return sampleChatdConf
}
