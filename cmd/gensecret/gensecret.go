// Copyright (c) 2026 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// gensecret prints random hex secrets suitable for the linkpass and cloakkey
// options of chatd.
package main

import (
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/decred/dcrd/crypto/rand"
)

const (
	minSecretSize = 16
	maxSecretSize = 64
)

var (
	size = flag.Uint("size", 32, "number of random bytes in each secret (16-64)")
	n    = flag.Uint("n", 1, "number of secrets to print")
)

// genSecret returns a hex encoded secret of the given number of random bytes.
func genSecret(size uint) (string, error) {
	if size < minSecretSize || size > maxSecretSize {
		return "", fmt.Errorf("secret size must be between %d and %d bytes",
			minSecretSize, maxSecretSize)
	}
	b := make([]byte, size)
	rand.Read(b)
	return hex.EncodeToString(b), nil
}

func main() {
	flag.Parse()
	if *n == 0 {
		fmt.Fprintln(os.Stderr, errors.New("nothing to generate"))
		os.Exit(1)
	}
	for i := uint(0); i < *n; i++ {
		secret, err := genSecret(*size)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(secret)
	}
}
