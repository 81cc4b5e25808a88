package session

import (
	"errors"
	"time"

	"github.com/99designs/keyring"
)

const keyringService = "clerk"

// keyringStore keeps wrapped keys in the OS credential manager (macOS
// Keychain, Windows Credential Manager, Secret Service on Linux).
type keyringStore struct {
	ring    keyring.Keyring
	vaultID string
}

func newKeyringStore(vaultID string) (*keyringStore, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: keyringService,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.WinCredBackend,
			keyring.SecretServiceBackend,
			keyring.KWalletBackend,
		},
	})
	if err != nil {
		return nil, err
	}
	return &keyringStore{ring: ring, vaultID: vaultID}, nil
}

func (s *keyringStore) entryName(sessionID string) string {
	return "vault-" + s.vaultID + ":" + sessionID
}

func (s *keyringStore) Save(sessionID string, wrapped []byte, ttl time.Duration) error {
	buf, err := encodeRecord(wrapped, ttl)
	if err != nil {
		return err
	}
	return s.ring.Set(keyring.Item{
		Key:   s.entryName(sessionID),
		Data:  buf,
		Label: "Clerk vault session",
	})
}

func (s *keyringStore) Load(sessionID string) ([]byte, bool, error) {
	item, err := s.ring.Get(s.entryName(sessionID))
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	key, ok := decodeRecord(item.Data)
	if !ok {
		_ = s.ring.Remove(s.entryName(sessionID))
		return nil, false, nil
	}
	return key, true, nil
}

func (s *keyringStore) Clear(sessionID string) error {
	err := s.ring.Remove(s.entryName(sessionID))
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return nil
	}
	return err
}
