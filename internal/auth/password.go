package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Verifier checks a plaintext password against a stored hash.
//
// Call sites never see how the comparison is performed; the peppering
// scheme below can be replaced (e.g. by per-user salts) behind this
// interface without touching handlers.
type Verifier interface {
	Verify(password, encodedHash string) bool
}

// PepperedVerifier verifies bcrypt hashes of password+secret.
//
// The stored hash covers the concatenation of the user's password and the
// process-wide shared secret, coupling credential verification to that
// secret. Deliberate scheme, preserved as-is.
type PepperedVerifier struct {
	secret string
}

// NewPepperedVerifier creates a Verifier peppered with the shared secret.
func NewPepperedVerifier(secret string) *PepperedVerifier {
	return &PepperedVerifier{secret: secret}
}

// Verify returns true if password+secret matches the stored bcrypt hash.
func (v *PepperedVerifier) Verify(password, encodedHash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password+v.secret))
	return err == nil
}

// Hash produces a bcrypt hash of password+secret. Used by provisioning
// tooling and tests; the API surface itself never writes hashes.
func (v *PepperedVerifier) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password+v.secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}
