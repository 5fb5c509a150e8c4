package util

import (
	"crypto/rand"
	"encoding/hex"
)

// NewID returns a random hex id. Its main consumer is the request-id
// middleware, so it stays short enough to read in log lines.
func NewID() string {
	b := make([]byte, 10)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
