package vault_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cemililkim/Clerk/internal/vault"
)

func TestBackupRestoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	eng, envID := createVault(t, dir, newFakeCreds())
	_, err := eng.SetVariable(ctx, envID, "DATABASE_URL", "postgres://localhost/app", "")
	require.NoError(t, err)

	data, err := eng.CreateBackup(ctx)
	require.NoError(t, err)

	info, err := vault.BackupInfo(data)
	require.NoError(t, err)
	assert.Equal(t, "1", info.Version)
	assert.Equal(t, 1, info.Projects)
	assert.Equal(t, 1, info.Environments)
	assert.Equal(t, 1, info.Variables)
	// Secrets never appear in a backup in the clear.
	assert.NotContains(t, string(data), "postgres://localhost/app")

	// Diverge from the backed-up state, then restore.
	require.NoError(t, eng.DeleteVariable(ctx, envID, "DATABASE_URL"))
	_, err = eng.SetVariable(ctx, envID, "OTHER", "x", "")
	require.NoError(t, err)

	require.NoError(t, eng.RestoreBackup(ctx, data))
	assert.False(t, eng.Unlocked(), "restore must leave the vault locked")

	// Pre-restore files were snapshotted aside, and the atomic writes left
	// no temp files behind.
	baks, err := filepath.Glob(filepath.Join(dir, "*.bak-*"))
	require.NoError(t, err)
	assert.Len(t, baks, 2)
	tmps, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, tmps)

	require.NoError(t, eng.Unlock(ctx, pw(masterPassword), false))
	got, err := eng.GetValue(ctx, envID, "DATABASE_URL")
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/app", got)
	_, err = eng.GetValue(ctx, envID, "OTHER")
	assert.Error(t, err, "post-backup data must be gone after restore")
}

func TestRestoreRejectsInvalidPayloads(t *testing.T) {
	ctx := context.Background()
	eng, _ := createVault(t, t.TempDir(), newFakeCreds())

	err := eng.RestoreBackup(ctx, []byte("not json at all"))
	assert.ErrorIs(t, err, vault.ErrInvalidBackup)

	err = eng.RestoreBackup(ctx, []byte(`{"metadata":{"version":"99"},"vaultData":"x","databaseData":"y"}`))
	assert.ErrorIs(t, err, vault.ErrInvalidBackup)

	err = eng.RestoreBackup(ctx, []byte(`{"metadata":{"version":"1"},"vaultData":"","databaseData":""}`))
	assert.ErrorIs(t, err, vault.ErrInvalidBackup)

	err = eng.RestoreBackup(ctx, []byte(`{"metadata":{"version":"1"},"vaultData":"bm90IGEgdmF1bHQ","databaseData":"eA"}`))
	assert.ErrorIs(t, err, vault.ErrInvalidBackup)

	// A failed restore leaves the engine usable.
	assert.True(t, eng.Unlocked())
}

func TestBackupRequiresUnlocked(t *testing.T) {
	ctx := context.Background()
	eng, _ := createVault(t, t.TempDir(), newFakeCreds())
	eng.Lock()

	_, err := eng.CreateBackup(ctx)
	assert.ErrorIs(t, err, vault.ErrNotUnlocked)
	err = eng.RestoreBackup(ctx, []byte("{}"))
	assert.ErrorIs(t, err, vault.ErrNotUnlocked)
}

func TestBackupInfoRejectsGarbage(t *testing.T) {
	_, err := vault.BackupInfo([]byte("garbage"))
	assert.ErrorIs(t, err, vault.ErrInvalidBackup)
}
