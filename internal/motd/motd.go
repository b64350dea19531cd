// Copyright (c) 2026 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package motd provides the message of the day shown to clients after
// registration, optionally reloaded whenever its file changes.
package motd

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// DefaultLine is the message of the day used when no file is configured.
const DefaultLine = "Hello MOTD"

// MOTD holds the current message of the day.  It is safe for concurrent
// access.
type MOTD struct {
	path string

	mtx   sync.RWMutex
	lines []string
}

// New returns the message of the day read from the file at path.  An empty
// path yields the default message.
func New(path string) (*MOTD, error) {
	m := &MOTD{path: path, lines: []string{DefaultLine}}
	if path == "" {
		return m, nil
	}
	if err := m.Reload(); err != nil {
		return nil, err
	}
	return m, nil
}

// parse splits the file contents into lines.  Trailing whitespace is removed
// and trailing blank lines are dropped.
func parse(b []byte) []string {
	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(b))
	for scanner.Scan() {
		lines = append(lines, strings.TrimRight(scanner.Text(), " \t"))
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) == 0 {
		lines = []string{DefaultLine}
	}
	return lines
}

// Reload reads the file again.
func (m *MOTD) Reload() error {
	if m.path == "" {
		return nil
	}
	b, err := os.ReadFile(m.path)
	if err != nil {
		return err
	}
	lines := parse(b)

	m.mtx.Lock()
	m.lines = lines
	m.mtx.Unlock()
	log.Debugf("Loaded %d line message of the day from %s", len(lines),
		m.path)
	return nil
}

// Lines returns a copy of the current message of the day.
func (m *MOTD) Lines() []string {
	m.mtx.RLock()
	lines := make([]string, len(m.lines))
	copy(lines, m.lines)
	m.mtx.RUnlock()
	return lines
}

// Watch reloads the message of the day whenever its file is written or
// replaced until the context is cancelled.  The directory is watched rather
// than the file so editors that replace the file are handled.
func (m *MOTD) Watch(ctx context.Context) error {
	if m.path == "" {
		<-ctx.Done()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	target := filepath.Clean(m.path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return err
	}

	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if err := m.Reload(); err != nil {
				log.Warnf("Unable to reload message of the day: %v", err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Errorf("Message of the day watcher error: %v", err)

		case <-ctx.Done():
			return nil
		}
	}
}
