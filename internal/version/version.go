// Copyright (c) 2013-2014 The btcsuite developers
// Copyright (c) 2015-2026 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package version provides the version information of chatd.
package version

import (
	"fmt"
	"runtime/debug"
	"strconv"
	"strings"
)

// semanticAlphabet defines the allowed characters for the pre-release and
// build metadata portions of a semantic version string.
const semanticAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz-."

var (
	// Version is the application version per the semantic versioning 2.0.0
	// spec (https://semver.org/).
	//
	// It is defined as a variable so it can be overridden during the build
	// process with:
	// '-ldflags "-X github.com/decred/chatd/internal/version.Version=fullsemver"'
	//
	// It MUST be a full semantic version or the package will panic at
	// runtime.
	Version = "0.1.0-pre"

	// These fields are set by init from Version.
	Major         uint
	Minor         uint
	Patch         uint
	PreRelease    string
	BuildMetadata string
)

// checkSemString returns an error if the passed string contains characters
// that are not in the semantic alphabet or empty dot separated identifiers.
func checkSemString(s, fieldName string) error {
	for _, r := range s {
		if !strings.ContainsRune(semanticAlphabet, r) {
			return fmt.Errorf("malformed semver %s: %q invalid", fieldName, r)
		}
	}
	for _, ident := range strings.Split(s, ".") {
		if ident == "" {
			return fmt.Errorf("malformed semver %s: empty identifier",
				fieldName)
		}
	}
	return nil
}

// parseSemVer parses the components of a semantic version string.
func parseSemVer(s string) (major, minor, patch uint, pre, build string, err error) {
	core, build, hasBuild := strings.Cut(s, "+")
	core, pre, hasPre := strings.Cut(core, "-")
	if hasBuild {
		if err := checkSemString(build, "build metadata"); err != nil {
			return 0, 0, 0, "", "", err
		}
	}
	if hasPre {
		if err := checkSemString(pre, "pre-release"); err != nil {
			return 0, 0, 0, "", "", err
		}
	}

	parts := strings.Split(core, ".")
	if len(parts) != 3 {
		err := fmt.Errorf("malformed version string %q: want "+
			"MAJOR.MINOR.PATCH", s)
		return 0, 0, 0, "", "", err
	}
	var nums [3]uint
	for i, part := range parts {
		if len(part) > 1 && part[0] == '0' {
			err := fmt.Errorf("malformed version string %q: leading zero",
				s)
			return 0, 0, 0, "", "", err
		}
		val, err := strconv.ParseUint(part, 10, 0)
		if err != nil {
			return 0, 0, 0, "", "", fmt.Errorf("malformed semver: %w", err)
		}
		nums[i] = uint(val)
	}
	return nums[0], nums[1], nums[2], pre, build, nil
}

func init() {
	var err error
	Major, Minor, Patch, PreRelease, BuildMetadata, err = parseSemVer(Version)
	if err != nil {
		panic(err)
	}
	if BuildMetadata == "" {
		BuildMetadata = vcsCommitID()
		if BuildMetadata != "" {
			Version = fmt.Sprintf("%s+%s", Version, BuildMetadata)
		}
	}
}

// vcsCommitID returns the abbreviated commit the binary was built from, if
// known.
func vcsCommitID() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	var vcs, revision string
	for _, bs := range bi.Settings {
		switch bs.Key {
		case "vcs":
			vcs = bs.Value
		case "vcs.revision":
			revision = bs.Value
		}
	}
	if vcs == "git" && len(revision) > 9 {
		revision = revision[:9]
	}
	if vcs == "" {
		return ""
	}
	return revision
}

// String returns the application version.
func String() string {
	return Version
}
