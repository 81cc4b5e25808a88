// Package platform holds the OS-facing odds and ends: clipboard access and
// process hardening.
package platform

import (
	"time"

	"github.com/atotto/clipboard"
)

// Clipboard copies text and clears it again after ttl, so a copied secret
// does not sit in the paste buffer forever.
type Clipboard interface {
	Set(text string, ttl time.Duration) error
}

type systemClipboard struct{}

func (systemClipboard) Set(text string, ttl time.Duration) error {
	if err := clipboard.WriteAll(text); err != nil {
		return err
	}
	if ttl > 0 {
		time.AfterFunc(ttl, func() {
			// Only clear if the buffer still holds our value; the user
			// may have copied something else since.
			if cur, err := clipboard.ReadAll(); err == nil && cur == text {
				_ = clipboard.WriteAll("")
			}
		})
	}
	return nil
}

func NewClipboard() Clipboard { return systemClipboard{} }
