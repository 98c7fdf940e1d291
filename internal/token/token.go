// Package token issues bundle tokens.
package token

import "github.com/google/uuid"

// New returns a random UUID string. Collisions are not checked here; the
// bundle store rejects a reused token on write.
func New() string {
	return uuid.NewString()
}
