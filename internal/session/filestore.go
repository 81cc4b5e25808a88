package session

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// FileStore is the fallback backend: one JSON file per (vault, session) pair
// under an owner-only temp directory. Good enough where no OS keychain is
// reachable (headless boxes, CI).
type FileStore struct {
	dir     string
	vaultID string
}

func NewFileStore(vaultID string) (*FileStore, error) {
	dir := filepath.Join(os.TempDir(), fmt.Sprintf("clerk-session-%d", os.Getuid()))
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("session: create cache dir: %w", err)
	}
	// MkdirAll leaves existing permissions alone; enforce ours.
	if err := os.Chmod(dir, 0700); err != nil {
		return nil, err
	}
	return &FileStore{dir: dir, vaultID: vaultID}, nil
}

func (s *FileStore) path(sessionID string) string {
	return filepath.Join(s.dir, s.vaultID+"-"+sessionID+".json")
}

func (s *FileStore) Save(sessionID string, wrapped []byte, ttl time.Duration) error {
	buf, err := encodeRecord(wrapped, ttl)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path(sessionID), buf, 0600)
}

func (s *FileStore) Load(sessionID string) ([]byte, bool, error) {
	buf, err := os.ReadFile(s.path(sessionID))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	key, ok := decodeRecord(buf)
	if !ok {
		_ = os.Remove(s.path(sessionID))
		return nil, false, nil
	}
	return key, true, nil
}

func (s *FileStore) Clear(sessionID string) error {
	err := os.Remove(s.path(sessionID))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
