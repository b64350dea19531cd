// Copyright (c) 2015-2026 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package progresslog

import (
	"sync"
	"time"

	"github.com/decred/slog"
)

// Event is a kind of connection activity.
type Event uint8

const (
	// EventClient is an accepted client connection.
	EventClient Event = iota

	// EventLink is an established server link.
	EventLink

	// EventClosed is a connection of either kind that closed.
	EventClosed
)

// logInterval is the minimum time between unforced log statements.
const logInterval = time.Second * 10

// pickNoun returns the singular or plural form of a noun depending on the
// provided count.
func pickNoun(n uint64, singular, plural string) string {
	if n == 1 {
		return singular
	}
	return plural
}

// Logger provides periodic logging of connection activity.
type Logger struct {
	sync.Mutex
	subsystemLogger slog.Logger
	progressAction  string

	// lastLogTime tracks the last time a log statement was shown.
	lastLogTime time.Time

	// These fields accumulate activity between log statements.
	clients uint64
	links   uint64
	closed  uint64
}

// New returns a new connection activity logger.
func New(progressAction string, logger slog.Logger) *Logger {
	return &Logger{
		lastLogTime:     time.Now(),
		progressAction:  progressAction,
		subsystemLogger: logger,
	}
}

// LogProgress accumulates the event and periodically (every 10 seconds) logs
// an information message with the totals since the previous one.
//
// The force flag may be used to force a log message to be shown regardless of
// the time the last one was shown.
//
// The progress message is templated as follows:
//
//	{progressAction} {numClients} {client|clients} and {numLinks}
//	{server link|server links} in the last {timePeriod} ({numClosed} closed)
func (l *Logger) LogProgress(ev Event, forceLog bool) {
	l.Lock()
	defer l.Unlock()

	switch ev {
	case EventClient:
		l.clients++
	case EventLink:
		l.links++
	case EventClosed:
		l.closed++
	}
	now := time.Now()
	duration := now.Sub(l.lastLogTime)
	if !forceLog && duration < logInterval {
		return
	}

	l.subsystemLogger.Infof("%s %d %s and %d %s in the last %0.2fs (%d "+
		"closed)", l.progressAction,
		l.clients, pickNoun(l.clients, "client", "clients"),
		l.links, pickNoun(l.links, "server link", "server links"),
		duration.Seconds(), l.closed)

	l.clients = 0
	l.links = 0
	l.closed = 0
	l.lastLogTime = now
}

// SetLastLogTime updates the last time data was logged to the provided time.
func (l *Logger) SetLastLogTime(time time.Time) {
	l.Lock()
	l.lastLogTime = time
	l.Unlock()
}
