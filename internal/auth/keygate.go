package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ServiceKeyHeader carries the trusted-service key.
const ServiceKeyHeader = "X-Api-Key"

// KeyGate admits requests presenting the configured trusted-service key.
// The configured value may be the key itself or a bcrypt hash of it.
type KeyGate struct {
	digest [sha256.Size]byte
	hash   []byte
	set    bool
}

// NewKeyGate builds a gate for configured. An empty value rejects every request.
func NewKeyGate(configured string) *KeyGate {
	configured = strings.TrimSpace(configured)
	g := &KeyGate{set: configured != ""}
	if isBcryptHash(configured) {
		g.hash = []byte(configured)
		return g
	}
	g.digest = sha256.Sum256([]byte(configured))
	return g
}

// Configured reports whether a key was provided at startup.
func (g *KeyGate) Configured() bool {
	return g.set
}

// Verify compares presented against the configured key in constant time.
// A missing and a wrong key return the same error.
func (g *KeyGate) Verify(presented string) error {
	if !g.set || presented == "" {
		return ErrInvalidServiceKey
	}
	if g.hash != nil {
		if bcrypt.CompareHashAndPassword(g.hash, []byte(presented)) != nil {
			return ErrInvalidServiceKey
		}
		return nil
	}
	got := sha256.Sum256([]byte(presented))
	if subtle.ConstantTimeCompare(got[:], g.digest[:]) != 1 {
		return ErrInvalidServiceKey
	}
	return nil
}

// Check verifies the key header of r.
func (g *KeyGate) Check(r *http.Request) error {
	return g.Verify(r.Header.Get(ServiceKeyHeader))
}

func isBcryptHash(v string) bool {
	if len(v) != 60 {
		return false
	}
	for _, prefix := range []string{"$2a$", "$2b$", "$2y$"} {
		if strings.HasPrefix(v, prefix) {
			return true
		}
	}
	return false
}
