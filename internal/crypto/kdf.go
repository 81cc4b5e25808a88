package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"
)

const (
	// SaltSize is the length of the per-vault KDF salt.
	SaltSize = 16
	// KeySize is the length of all derived key material.
	KeySize = 32
)

var ErrBadKDFParams = errors.New("crypto: invalid kdf parameters")

// KDFParams are the Argon2id cost parameters baked into a vault at creation
// time. Memory is in KiB.
type KDFParams struct {
	Memory      uint32 `json:"m"`
	Time        uint32 `json:"t"`
	Parallelism uint8  `json:"p"`
	Salt        []byte `json:"salt"`
}

// NewSalt returns a fresh random salt.
func NewSalt() []byte {
	salt := make([]byte, SaltSize)
	_, _ = rand.Read(salt)
	return salt
}

// DefaultKDFParams returns the creation-time defaults: 64 MiB, 3 passes,
// 4 lanes, fresh 16-byte salt.
func DefaultKDFParams() KDFParams {
	return KDFParams{Memory: 64 * 1024, Time: 3, Parallelism: 4, Salt: NewSalt()}
}

func (p KDFParams) validate() error {
	if p.Memory == 0 || p.Time == 0 || p.Parallelism == 0 || len(p.Salt) < SaltSize {
		return ErrBadKDFParams
	}
	return nil
}

// DerivedKey holds the two outputs of a derivation: the data-encryption key
// and the password-verification value. The verifier may be persisted; the
// encryption key never is.
type DerivedKey struct {
	enc      [KeySize]byte
	verifier [KeySize]byte
	locked   bool
}

// Enc returns the data-encryption key.
func (k *DerivedKey) Enc() *[KeySize]byte { return &k.enc }

// Verifier returns the password-verification bytes.
func (k *DerivedKey) Verifier() []byte { return k.verifier[:] }

// VerifierString returns the verifier encoded for the metadata file.
func (k *DerivedKey) VerifierString() string {
	return base64.RawStdEncoding.EncodeToString(k.verifier[:])
}

// Zero wipes the key material. Safe to call more than once.
func (k *DerivedKey) Zero() {
	if k == nil {
		return
	}
	if k.locked {
		_ = unlockMemory(k.enc[:])
		k.locked = false
	}
	for i := range k.enc {
		k.enc[i] = 0
	}
	for i := range k.verifier {
		k.verifier[i] = 0
	}
}

// DeriveKey turns a master password into key material. Argon2id produces a
// 32-byte intermediate which HKDF-SHA256 splits into the encryption key and
// the verifier, so the stored verifier never equals the data key. The
// password buffer is wiped before returning, on every path.
func DeriveKey(password []byte, p KDFParams) (*DerivedKey, error) {
	defer Zero(password)
	if err := p.validate(); err != nil {
		return nil, err
	}

	master := argon2.IDKey(password, p.Salt, p.Time, p.Memory, p.Parallelism, KeySize)
	defer Zero(master)

	k := &DerivedKey{}
	if err := expand(master, p.Salt, "clerk/enc/v1", k.enc[:]); err != nil {
		return nil, err
	}
	if err := expand(master, p.Salt, "clerk/verify/v1", k.verifier[:]); err != nil {
		k.Zero()
		return nil, err
	}
	if err := lockMemory(k.enc[:]); err == nil {
		k.locked = true
	}
	return k, nil
}

// Export serializes the key material for the session cache. Protecting the
// returned bytes is the caller's problem.
func (k *DerivedKey) Export() []byte {
	out := make([]byte, 2*KeySize)
	copy(out, k.enc[:])
	copy(out[KeySize:], k.verifier[:])
	return out
}

// KeyFromExport rebuilds a DerivedKey from Export output. The input buffer is
// wiped before returning.
func KeyFromExport(raw []byte) (*DerivedKey, error) {
	defer Zero(raw)
	if len(raw) != 2*KeySize {
		return nil, errors.New("crypto: bad exported key length")
	}
	k := &DerivedKey{}
	copy(k.enc[:], raw[:KeySize])
	copy(k.verifier[:], raw[KeySize:])
	if err := lockMemory(k.enc[:]); err == nil {
		k.locked = true
	}
	return k, nil
}

// VerifierMatches compares a stored verifier against a freshly derived one in
// constant time.
func VerifierMatches(stored string, k *DerivedKey) bool {
	ref, err := base64.RawStdEncoding.DecodeString(stored)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(ref, k.verifier[:]) == 1
}

func expand(master, salt []byte, info string, out []byte) error {
	stream := hkdf.New(sha256.New, master, salt, []byte(info))
	_, err := io.ReadFull(stream, out)
	return err
}

// EncodeSalt renders a salt for the metadata file.
func EncodeSalt(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}
