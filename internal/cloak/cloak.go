// Copyright (c) 2026 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package cloak derives the cloaked hosts advertised for local users in
// federation bursts.
package cloak

import (
	"encoding/hex"
	"net"
	"strings"

	"github.com/decred/dcrd/container/lru"
	"github.com/decred/dcrd/crypto/rand"
	"lukechampine.com/blake3"
)

// cacheSize is the maximum number of cloaked hosts kept in memory.
const cacheSize = 4096

// keySize is the size of the keyed hash key.
const keySize = 32

// Cloaker computes stable keyed cloaks of hosts.  It is safe for concurrent
// access.
type Cloaker struct {
	key   [keySize]byte
	cache *lru.Map[string, string]
}

// New returns a cloaker keyed by the secret.  An empty secret selects a
// random key, so cloaks differ between daemon restarts.
func New(secret string) *Cloaker {
	c := &Cloaker{cache: lru.NewMap[string, string](cacheSize)}
	if secret == "" {
		rand.Read(c.key[:])
	} else {
		c.key = blake3.Sum256([]byte(secret))
	}
	return c
}

// digest returns the keyed hash of the data encoded as upper case hex.
func (c *Cloaker) digest(data string) string {
	h := blake3.New(keySize, c.key[:])
	h.Write([]byte(data))
	return strings.ToUpper(hex.EncodeToString(h.Sum(nil)))
}

// Host returns the cloak of the host.  Addresses cloak into three hash
// segments followed by "IP" while names keep up to their last two labels,
// dropping at least the first one.
func (c *Cloaker) Host(host string) string {
	if cloaked, ok := c.cache.Get(host); ok {
		return cloaked
	}

	sum := c.digest(host)
	var cloaked string
	if net.ParseIP(host) != nil {
		cloaked = sum[0:8] + "." + sum[8:16] + "." + sum[16:24] + ".IP"
	} else {
		// Keep at most the last two labels and never the whole name.
		labels := strings.Split(host, ".")
		keep := len(labels) - 1
		if keep > 2 {
			keep = 2
		}
		cloaked = "chatd-" + sum[0:8]
		if keep > 0 {
			suffix := strings.Join(labels[len(labels)-keep:], ".")
			cloaked += "." + suffix
		}
	}
	c.cache.Put(host, cloaked)
	return cloaked
}
