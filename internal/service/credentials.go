package service

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/facegate/facegate/internal/gateerrors"
)

// CredentialVerifier hashes and checks principal passwords. Reconciliation
// requires a credential proof before it will enrich a profile set.
type CredentialVerifier interface {
	Hash(password string) (string, error)
	Verify(hash, password string) error
}

// BcryptVerifier implements CredentialVerifier with bcrypt.
type BcryptVerifier struct {
	cost int
}

// NewBcryptVerifier creates a verifier using the default bcrypt cost.
func NewBcryptVerifier() *BcryptVerifier {
	return &BcryptVerifier{cost: bcrypt.DefaultCost}
}

// Hash returns the bcrypt hash of a password.
func (v *BcryptVerifier) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), v.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	return string(hash), nil
}

// Verify checks a password against its hash. A mismatch maps to
// UnauthorizedError so callers never learn which part failed.
func (v *BcryptVerifier) Verify(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return gateerrors.NewUnauthorizedError("invalid credentials")
	}

	return nil
}

// Ensure BcryptVerifier implements CredentialVerifier.
var _ CredentialVerifier = (*BcryptVerifier)(nil)
