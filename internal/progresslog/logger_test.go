// Copyright (c) 2021-2026 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package progresslog

import (
	"io"
	"testing"
	"time"

	"github.com/decred/slog"
)

var (
	backendLog = slog.NewBackend(io.Discard)
	testLog    = backendLog.Logger("TEST")
)

// TestLogProgress ensures the logging functionality works as expected via a
// test logger.
func TestLogProgress(t *testing.T) {
	tests := []struct {
		name        string
		reset       bool
		event       Event
		forceLog    bool
		lastLogTime time.Time
		wantClients uint64
		wantLinks   uint64
		wantClosed  uint64
	}{{
		name:        "round 1, client, last log time < 10 secs ago, not forced",
		event:       EventClient,
		lastLogTime: time.Now(),
		wantClients: 1,
	}, {
		name:        "round 1, link, last log time < 10 secs ago, not forced",
		event:       EventLink,
		lastLogTime: time.Now(),
		wantClients: 1,
		wantLinks:   1,
	}, {
		name:        "round 1, closed, last log time < 10 secs ago, not forced",
		event:       EventClosed,
		lastLogTime: time.Now(),
		wantClients: 1,
		wantLinks:   1,
		wantClosed:  1,
	}, {
		name:        "round 1, client, last log time < 10 secs ago, forced",
		event:       EventClient,
		forceLog:    true,
		lastLogTime: time.Now(),
	}, {
		name:        "round 2, client, last log time < 10 secs ago, not forced",
		reset:       true,
		event:       EventClient,
		lastLogTime: time.Now(),
		wantClients: 1,
	}, {
		name:        "round 2, closed, last log time > 10 secs ago, not forced",
		event:       EventClosed,
		lastLogTime: time.Now().Add(-11 * time.Second),
	}}

	progressLogger := New("Served", testLog)
	for _, test := range tests {
		if test.reset {
			progressLogger = New("Served", testLog)
		}
		progressLogger.SetLastLogTime(test.lastLogTime)
		progressLogger.LogProgress(test.event, test.forceLog)
		progressLogger.Lock()
		clients := progressLogger.clients
		links := progressLogger.links
		closed := progressLogger.closed
		progressLogger.Unlock()
		if clients != test.wantClients || links != test.wantLinks ||
			closed != test.wantClosed {

			t.Errorf("%s: unexpected totals -- got %d/%d/%d, want "+
				"%d/%d/%d", test.name, clients, links, closed,
				test.wantClients, test.wantLinks, test.wantClosed)
		}
	}
}
