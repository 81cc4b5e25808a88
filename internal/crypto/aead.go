package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
)

// NonceSize is the AES-GCM nonce length prepended to every blob.
const NonceSize = 12

// ErrDecryptFailed is returned for every authentication failure: wrong key,
// flipped bits, truncated blob, mismatched AAD. Callers must not be able to
// tell these apart.
var ErrDecryptFailed = errors.New("crypto: invalid password or corrupted data")

// Seal encrypts plaintext under key with AES-256-GCM. A fresh random nonce is
// drawn for every call; the returned layout is nonce||ciphertext||tag. The
// aad binds the blob to its location and must be replayed on Open.
func Seal(key *[KeySize]byte, plaintext, aad []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	out := make([]byte, 0, NonceSize+len(plaintext)+aead.Overhead())
	out = append(out, nonce...)
	return aead.Seal(out, nonce, plaintext, aad), nil
}

// Open authenticates and decrypts a blob produced by Seal. The tag is
// verified before any plaintext is returned.
func Open(key *[KeySize]byte, blob, aad []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(blob) < NonceSize+aead.Overhead() {
		return nil, ErrDecryptFailed
	}
	pt, err := aead.Open(nil, blob[:NonceSize], blob[NonceSize:], aad)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return pt, nil
}

func newGCM(key *[KeySize]byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
