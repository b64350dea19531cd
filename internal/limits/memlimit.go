// Copyright (c) 2022-2026 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package limits

import "runtime/debug"

// SetMemoryLimit configures the runtime to use the provided limit in bytes as
// a soft memory limit.  A non-positive limit leaves the runtime default in
// place.
func SetMemoryLimit(limit int64) {
	if limit <= 0 {
		return
	}
	debug.SetMemoryLimit(limit)
}
