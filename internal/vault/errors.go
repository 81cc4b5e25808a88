package vault

import "errors"

var (
	// ErrVaultExists means create was called where a vault already lives.
	ErrVaultExists = errors.New("vault: already initialized at this location")
	// ErrVaultNotFound means no metadata file exists at the vault location.
	ErrVaultNotFound = errors.New("vault: not found, run init first")
	// ErrInvalidPassword covers wrong password and corrupted-data failures
	// alike; callers cannot tell the two apart.
	ErrInvalidPassword = errors.New("vault: invalid password or corrupted data")
	// ErrWeakPassword means the candidate master password fails policy.
	ErrWeakPassword = errors.New("vault: password does not meet the minimum policy")
	// ErrNotUnlocked guards every secret operation while the vault is locked.
	ErrNotUnlocked = errors.New("vault: locked, unlock first")
	// ErrInvalidBackup means the backup payload could not be validated.
	ErrInvalidBackup = errors.New("vault: invalid or unsupported backup file")
)
