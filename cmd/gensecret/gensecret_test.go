// Copyright (c) 2026 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"encoding/hex"
	"testing"
)

// TestGenSecret ensures secrets have the requested size and out of range
// sizes are rejected.
func TestGenSecret(t *testing.T) {
	tests := []struct {
		size    uint
		wantErr bool
	}{
		{size: 15, wantErr: true},
		{size: 16},
		{size: 32},
		{size: 64},
		{size: 65, wantErr: true},
	}
	for _, test := range tests {
		secret, err := genSecret(test.size)
		if test.wantErr {
			if err == nil {
				t.Errorf("size %d: expected error", test.size)
			}
			continue
		}
		if err != nil {
			t.Errorf("size %d: unexpected error: %v", test.size, err)
			continue
		}
		b, err := hex.DecodeString(secret)
		if err != nil {
			t.Errorf("size %d: secret is not hex: %v", test.size, err)
			continue
		}
		if uint(len(b)) != test.size {
			t.Errorf("size %d: got %d bytes", test.size, len(b))
		}
	}

	a, _ := genSecret(32)
	b, _ := genSecret(32)
	if a == b {
		t.Error("consecutive secrets are identical")
	}
}
