package vault

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Cemililkim/Clerk/internal/crypto"
)

const (
	// SchemaVersion is written into new metadata files. Readers accept only
	// versions they know.
	SchemaVersion = 1

	// MetadataFile and DatabaseFile are the two artifacts a vault directory
	// holds. Metadata carries KDF parameters and the password verifier,
	// never key material.
	MetadataFile = "vault.clerk"
	DatabaseFile = "vault.db"
)

// Metadata is the on-disk vault header.
type Metadata struct {
	Version   int              `json:"version"`
	VaultID   string           `json:"vault_id"`
	Name      string           `json:"name,omitempty"`
	KDF       crypto.KDFParams `json:"kdf"`
	Verifier  string           `json:"verifier"`
	CreatedAt int64            `json:"created_at"`
}

func metadataPath(dir string) string { return filepath.Join(dir, MetadataFile) }
func databasePath(dir string) string { return filepath.Join(dir, DatabaseFile) }

func readMetadata(dir string) (Metadata, error) {
	var m Metadata
	buf, err := os.ReadFile(metadataPath(dir))
	if os.IsNotExist(err) {
		return m, ErrVaultNotFound
	}
	if err != nil {
		return m, fmt.Errorf("vault: read metadata: %w", err)
	}
	if err := json.Unmarshal(buf, &m); err != nil {
		return m, fmt.Errorf("vault: parse metadata: %w", err)
	}
	if m.Version != SchemaVersion {
		return m, fmt.Errorf("vault: unsupported metadata version %d", m.Version)
	}
	return m, nil
}

// writeFileAtomic writes via a temp file in the same directory and renames
// over the target, so readers never observe a half-written file.
func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func writeMetadata(dir string, m Metadata) error {
	buf, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	if err := writeFileAtomic(metadataPath(dir), buf); err != nil {
		return fmt.Errorf("vault: write metadata: %w", err)
	}
	return nil
}

func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("vault: create directory: %w", err)
	}
	return nil
}

func newMetadata(name string, params crypto.KDFParams, verifier string) Metadata {
	return Metadata{
		Version:   SchemaVersion,
		VaultID:   newVaultID(),
		Name:      name,
		KDF:       params,
		Verifier:  verifier,
		CreatedAt: time.Now().Unix(),
	}
}
