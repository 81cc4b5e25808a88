package crypto

import (
	xchacha "golang.org/x/crypto/chacha20poly1305"
)

// OpenAny first tries the current AES-GCM layout; if authentication fails it
// falls back to the XChaCha20-Poly1305 layout written by early vault builds.
func OpenAny(key *[KeySize]byte, blob, aad []byte) ([]byte, error) {
	if pt, err := Open(key, blob, aad); err == nil {
		return pt, nil
	}
	a, err := xchacha.NewX(key[:])
	if err != nil {
		return nil, ErrDecryptFailed
	}
	if len(blob) < xchacha.NonceSizeX {
		return nil, ErrDecryptFailed
	}
	pt, err := a.Open(nil, blob[:xchacha.NonceSizeX], blob[xchacha.NonceSizeX:], aad)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return pt, nil
}
