// Copyright (c) 2026 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cloak

import (
	"regexp"
	"strings"
	"testing"
)

// TestHostFormat ensures cloaks have the expected shape and never reveal the
// original host.
func TestHostFormat(t *testing.T) {
	tests := []struct {
		host    string
		pattern string
	}{
		{"127.0.0.1", `^[0-9A-F]{8}\.[0-9A-F]{8}\.[0-9A-F]{8}\.IP$`},
		{"2001:db8::1", `^[0-9A-F]{8}\.[0-9A-F]{8}\.[0-9A-F]{8}\.IP$`},
		{"client.example.org", `^chatd-[0-9A-F]{8}\.example\.org$`},
		{"example.org", `^chatd-[0-9A-F]{8}\.org$`},
		{"a.b.example.org", `^chatd-[0-9A-F]{8}\.example\.org$`},
		{"localhost", `^chatd-[0-9A-F]{8}$`},
	}

	c := New("secret")
	for i, test := range tests {
		got := c.Host(test.host)
		if !regexp.MustCompile(test.pattern).MatchString(got) {
			t.Errorf("#%d (%s): cloak %q does not match %s", i, test.host,
				got, test.pattern)
		}
		if strings.Contains(got, test.host) {
			t.Errorf("#%d (%s): cloak %q reveals the host", i, test.host,
				got)
		}
	}
}

// TestHostStable ensures cloaks only depend on the key and the host.
func TestHostStable(t *testing.T) {
	a, b, other := New("secret"), New("secret"), New("other")
	const host = "10.1.2.3"
	if a.Host(host) != a.Host(host) {
		t.Fatal("cloak changed between calls")
	}
	if a.Host(host) != b.Host(host) {
		t.Fatal("cloaks with the same key differ")
	}
	if a.Host(host) == other.Host(host) {
		t.Fatal("cloaks with different keys match")
	}
	if a.Host(host) == a.Host("10.1.2.4") {
		t.Fatal("different hosts share a cloak")
	}
}

// TestRandomKey ensures an empty secret selects a random key.
func TestRandomKey(t *testing.T) {
	if New("").Host("10.1.2.3") == New("").Host("10.1.2.3") {
		t.Fatal("random keys produced the same cloak")
	}
}
