package vault

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// backupVersion identifies the container format, independent of the vault
// schema version carried inside the payload.
const backupVersion = "1"

// BackupMeta is the cleartext preview of a backup: enough to tell what is
// inside without a password, never any secret material.
type BackupMeta struct {
	Version      string `json:"version"`
	CreatedAt    string `json:"createdAt"`
	VaultName    string `json:"vaultName,omitempty"`
	Projects     int    `json:"projectCount"`
	Environments int    `json:"environmentCount"`
	Variables    int    `json:"variableCount"`
}

// backupContainer is the portable backup file. The payloads are the raw vault
// files, so values inside stay encrypted under the vault's own key.
type backupContainer struct {
	Metadata     BackupMeta `json:"metadata"`
	VaultData    string     `json:"vaultData"`
	DatabaseData string     `json:"databaseData"`
}

// CreateBackup serializes the whole vault into a single portable JSON blob.
// Requires an unlocked vault so the counts can be read.
func (e *Engine) CreateBackup(ctx context.Context) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.guard(); err != nil {
		return nil, err
	}

	metaRaw, err := os.ReadFile(metadataPath(e.cfg.Dir))
	if err != nil {
		return nil, fmt.Errorf("vault: read metadata for backup: %w", err)
	}
	var db bytes.Buffer
	if err := e.snapshotDatabase(&db); err != nil {
		return nil, fmt.Errorf("vault: snapshot database: %w", err)
	}
	counts, err := e.st.Counts()
	if err != nil {
		return nil, err
	}

	c := backupContainer{
		Metadata: BackupMeta{
			Version:      backupVersion,
			CreatedAt:    time.Now().UTC().Format(time.RFC3339),
			VaultName:    e.meta.Name,
			Projects:     counts.Projects,
			Environments: counts.Environments,
			Variables:    counts.Variables,
		},
		VaultData:    base64.StdEncoding.EncodeToString(metaRaw),
		DatabaseData: base64.StdEncoding.EncodeToString(db.Bytes()),
	}
	_ = e.st.AppendAudit("backup", "vault", 0, e.meta.Name, "")
	return json.MarshalIndent(c, "", "  ")
}

// BackupInfo parses a backup's preview metadata without touching the vault.
func BackupInfo(data []byte) (BackupMeta, error) {
	c, err := parseBackup(data)
	if err != nil {
		return BackupMeta{}, err
	}
	return c.Metadata, nil
}

func parseBackup(data []byte) (backupContainer, error) {
	var c backupContainer
	if err := json.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("%w: not valid JSON", ErrInvalidBackup)
	}
	if c.Metadata.Version != backupVersion {
		return c, fmt.Errorf("%w: unsupported version %q", ErrInvalidBackup, c.Metadata.Version)
	}
	if c.VaultData == "" || c.DatabaseData == "" {
		return c, fmt.Errorf("%w: missing payload", ErrInvalidBackup)
	}
	return c, nil
}

// RestoreBackup validates the container, snapshots the current vault files
// aside, and replaces them with the backup's contents. The engine ends up
// locked: the restored vault answers to the password it was created with,
// which need not match the current one.
func (e *Engine) RestoreBackup(ctx context.Context, data []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.guard(); err != nil {
		return err
	}

	c, err := parseBackup(data)
	if err != nil {
		return err
	}
	metaRaw, err := base64.StdEncoding.DecodeString(c.VaultData)
	if err != nil {
		return fmt.Errorf("%w: bad vault payload", ErrInvalidBackup)
	}
	dbRaw, err := base64.StdEncoding.DecodeString(c.DatabaseData)
	if err != nil {
		return fmt.Errorf("%w: bad database payload", ErrInvalidBackup)
	}
	var restored Metadata
	if err := json.Unmarshal(metaRaw, &restored); err != nil || restored.Version != SchemaVersion || restored.Verifier == "" {
		return fmt.Errorf("%w: payload is not a vault header", ErrInvalidBackup)
	}

	// Keep the pre-restore files; a bad restore must never be the only copy.
	stamp := time.Now().Unix()
	if err := copyFile(metadataPath(e.cfg.Dir), fmt.Sprintf("%s.bak-%d", metadataPath(e.cfg.Dir), stamp)); err != nil {
		return fmt.Errorf("vault: snapshot current metadata: %w", err)
	}
	if err := copyFile(databasePath(e.cfg.Dir), fmt.Sprintf("%s.bak-%d", databasePath(e.cfg.Dir), stamp)); err != nil {
		return fmt.Errorf("vault: snapshot current database: %w", err)
	}

	e.lockLocked()

	if err := writeFileAtomic(databasePath(e.cfg.Dir), dbRaw); err != nil {
		return fmt.Errorf("vault: write restored database: %w", err)
	}
	if err := writeFileAtomic(metadataPath(e.cfg.Dir), metaRaw); err != nil {
		return fmt.Errorf("vault: write restored metadata: %w", err)
	}
	e.meta = nil
	e.log.Info().Str("vault_id", restored.VaultID).Msg("vault restored from backup")
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
