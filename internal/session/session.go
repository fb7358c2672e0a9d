// Package session generates the per-run session hash that correlates every
// request of one pipeline run on the remote queue.
package session

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// IDLength is the number of hex characters in a session hash.
const IDLength = 10

var idPattern = regexp.MustCompile(`^[0-9a-f]{10}$`)

// NewID returns a fresh session hash: the first ten hex digits of a random
// UUID with dashes removed.
func NewID() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return raw[:IDLength]
}

// Valid reports whether id has the session hash shape.
func Valid(id string) bool {
	return idPattern.MatchString(id)
}
