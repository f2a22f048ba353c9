package util

import (
	"crypto/rand"
	"encoding/hex"
)

// NewID returns a 128-bit random hex id, optionally prefixed with a short
// kind marker ("run_3f2a..."). Sync run records use these as their keys.
func NewID(prefix string) string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	if prefix == "" {
		return hex.EncodeToString(bytes)
	}
	return prefix + "_" + hex.EncodeToString(bytes)
}
