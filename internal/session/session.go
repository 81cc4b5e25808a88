// Package session caches derived key material between CLI invocations so a
// terminal session does not re-prompt for the master password on every
// command. Entries are scoped per vault and per session identifier; two
// concurrent terminals never share or overwrite each other's entry.
package session

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"os"
	"strconv"
	"time"
)

// CredentialStore is the capability contract for "remember this session".
// A missing or expired entry is reported as found=false, never as an error;
// callers fall back to prompting for the password.
type CredentialStore interface {
	Save(sessionID string, wrapped []byte, ttl time.Duration) error
	Load(sessionID string) (wrapped []byte, found bool, err error)
	Clear(sessionID string) error
}

// DefaultTTL bounds how long a cached session stays valid.
const DefaultTTL = 12 * time.Hour

const envSessionID = "CLERK_SESSION"

// DefaultSessionID identifies the calling terminal session: the CLERK_SESSION
// environment variable when set, otherwise the parent process id.
func DefaultSessionID() string {
	if id := os.Getenv(envSessionID); id != "" {
		return id
	}
	return strconv.Itoa(os.Getppid())
}

// record is the serialized form shared by both backends.
type record struct {
	Key     string `json:"key"`
	Expires int64  `json:"expires"`
}

// encodeRecord honors the TTL as given; defaulting is the caller's job. A
// zero or negative TTL produces an entry that is already expired.
func encodeRecord(wrapped []byte, ttl time.Duration) ([]byte, error) {
	return json.Marshal(record{
		Key:     base64.StdEncoding.EncodeToString(wrapped),
		Expires: time.Now().Add(ttl).Unix(),
	})
}

// decodeRecord returns (nil, false) for expired or malformed records.
func decodeRecord(buf []byte) ([]byte, bool) {
	var r record
	if err := json.Unmarshal(buf, &r); err != nil {
		return nil, false
	}
	if time.Now().Unix() >= r.Expires {
		return nil, false
	}
	key, err := base64.StdEncoding.DecodeString(r.Key)
	if err != nil {
		return nil, false
	}
	return key, true
}

var errNoBackend = errors.New("session: no credential backend available")

// Open returns the best available credential store for a vault: the OS-native
// keychain when one is reachable, otherwise an owner-only temp file store.
func Open(vaultID string) CredentialStore {
	if ks, err := newKeyringStore(vaultID); err == nil {
		return ks
	}
	if fs, err := NewFileStore(vaultID); err == nil {
		return fs
	}
	return unavailableStore{}
}

// unavailableStore degrades to "never authenticated" when neither backend
// can be initialized.
type unavailableStore struct{}

func (unavailableStore) Save(string, []byte, time.Duration) error { return errNoBackend }
func (unavailableStore) Load(string) ([]byte, bool, error)        { return nil, false, nil }
func (unavailableStore) Clear(string) error                       { return nil }
