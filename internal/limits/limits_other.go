// Copyright (c) 2013-2014 The btcsuite developers
// Copyright (c) 2015-2026 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

//go:build !linux && !darwin

package limits

// SetLimits is a no-op on platforms without a tunable open file limit.
func SetLimits() error {
	return nil
}
