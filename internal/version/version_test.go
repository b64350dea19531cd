// Copyright (c) 2021-2026 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package version

import "testing"

// TestSemVerParsing ensures parsing a semantic version string works as
// expected.
func TestSemVerParsing(t *testing.T) {
	tests := []struct {
		ver     string
		major   uint
		minor   uint
		patch   uint
		pre     string
		build   string
		invalid bool
	}{
		{ver: "0.0.4", patch: 4},
		{ver: "10.20.30", major: 10, minor: 20, patch: 30},
		{ver: "1.1.2-prerelease+meta", major: 1, minor: 1, patch: 2,
			pre: "prerelease", build: "meta"},
		{ver: "1.0.0-alpha.1", major: 1, pre: "alpha.1"},
		{ver: "0.1.0-pre", minor: 1, pre: "pre"},
		{ver: "1.2", invalid: true},
		{ver: "1.2.3.4", invalid: true},
		{ver: "01.1.1", invalid: true},
		{ver: "1.1.1-", invalid: true},
		{ver: "1.1.1-pre..1", invalid: true},
		{ver: "1.1.1+meta_bad", invalid: true},
		{ver: "a.b.c", invalid: true},
	}

	for i, test := range tests {
		major, minor, patch, pre, build, err := parseSemVer(test.ver)
		if test.invalid {
			if err == nil {
				t.Errorf("#%d (%s): expected error", i, test.ver)
			}
			continue
		}
		if err != nil {
			t.Errorf("#%d (%s): unexpected error: %v", i, test.ver, err)
			continue
		}
		if major != test.major || minor != test.minor ||
			patch != test.patch || pre != test.pre || build != test.build {

			t.Errorf("#%d (%s): got %d.%d.%d-%s+%s", i, test.ver, major,
				minor, patch, pre, build)
		}
	}
}
