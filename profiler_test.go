// Copyright (c) 2026 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"net/http"
	"strconv"
	"testing"
)

// TestValidateProfileAddr ensures profile addresses are validated as
// expected.
func TestValidateProfileAddr(t *testing.T) {
	tests := []struct {
		addr  string
		valid bool
	}{
		{"127.0.0.1:6060", true},
		{"[::1]:6060", true},
		{"localhost:65535", true},
		{"127.0.0.1:1023", false},
		{"127.0.0.1:65536", false},
		{"127.0.0.1", false},
	}
	for i, test := range tests {
		err := validateProfileAddr(test.addr)
		if (err == nil) != test.valid {
			t.Errorf("#%d (%s): unexpected result -- got err %v, want "+
				"valid %v", i, test.addr, err, test.valid)
		}
	}

	if got := portToLocalHostAddr("6060"); got != "127.0.0.1:6060" {
		t.Errorf("unexpected address for bare port: %q", got)
	}
}

// TestProfileServer ensures the profile server serves the pprof index and
// can be stopped repeatedly.
func TestProfileServer(t *testing.T) {
	var s profileServer
	if s.Addr() != nil {
		t.Fatal("address reported before start")
	}
	// Port zero is rejected by validation, so probe for a free port in the
	// permitted range.
	var started bool
	for port := 40000; port < 40050 && !started; port++ {
		started = s.Start("127.0.0.1:"+strconv.Itoa(port)) == nil
	}
	if !started {
		t.Skip("no free port for the profile server")
	}
	defer s.Stop()

	resp, err := http.Get("http://" + s.Addr().String() + "/debug/pprof/")
	if err != nil {
		t.Fatalf("unable to fetch pprof index: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}

	if err := s.Stop(); err != nil {
		t.Fatalf("Stop: unexpected error: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("second Stop: unexpected error: %v", err)
	}
	if s.Addr() != nil {
		t.Fatal("address reported after stop")
	}
}
