package vault

import (
	"fmt"

	"github.com/google/uuid"
)

// PasswordPolicy is checked at vault creation and password change. It is
// deliberately small; the KDF cost is the real defense.
type PasswordPolicy struct {
	MinLength int
}

func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{MinLength: 8}
}

func (p PasswordPolicy) Validate(password []byte) error {
	if len(password) < p.MinLength {
		return fmt.Errorf("%w: need at least %d characters", ErrWeakPassword, p.MinLength)
	}
	return nil
}

func newVaultID() string { return uuid.NewString() }
