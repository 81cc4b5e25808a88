package vault

import (
	"context"
	"fmt"
	"os"

	"github.com/Cemililkim/Clerk/internal/crypto"
	"github.com/Cemililkim/Clerk/internal/store"
)

// ChangePassword re-encrypts every stored value under a key derived from the
// new password, with a fresh salt. The rewrite happens on a copy of the
// database; the live files are replaced only after every value has been
// re-encrypted, so a failure anywhere leaves the vault usable with the old
// password. On success the engine is left unlocked under the new key and any
// cached session for the old key is cleared.
func (e *Engine) ChangePassword(ctx context.Context, oldPassword, newPassword []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.cfg.Policy.Validate(newPassword); err != nil {
		crypto.Zero(oldPassword)
		crypto.Zero(newPassword)
		return err
	}
	meta, err := readMetadata(e.cfg.Dir)
	if err != nil {
		crypto.Zero(oldPassword)
		crypto.Zero(newPassword)
		return err
	}

	oldKey, err := crypto.DeriveKey(oldPassword, meta.KDF)
	if err != nil {
		crypto.Zero(newPassword)
		return ErrInvalidPassword
	}
	defer oldKey.Zero()
	if !crypto.VerifierMatches(meta.Verifier, oldKey) {
		crypto.Zero(newPassword)
		return ErrInvalidPassword
	}

	newParams := e.freshKDFParams()
	newKey, err := crypto.DeriveKey(newPassword, newParams)
	if err != nil {
		return err
	}

	if err := e.rekeyLocked(meta, oldKey, newKey, newParams); err != nil {
		newKey.Zero()
		return err
	}
	return nil
}

func (e *Engine) rekeyLocked(meta Metadata, oldKey, newKey *crypto.DerivedKey, newParams crypto.KDFParams) error {
	st := e.st
	if st == nil {
		var err error
		st, err = store.Open(databasePath(e.cfg.Dir))
		if err != nil {
			return err
		}
	}

	// Work on a snapshot so a mid-rewrite failure cannot corrupt the live
	// database.
	tmpDB := databasePath(e.cfg.Dir) + ".rekey"
	err := snapshotTo(st, tmpDB)
	if st != e.st {
		st.Close()
	}
	if err != nil {
		return err
	}
	tmp, err := store.Open(tmpDB)
	if err != nil {
		os.Remove(tmpDB)
		return err
	}

	if err := rewriteVariables(tmp, oldKey, newKey); err != nil {
		tmp.Close()
		os.Remove(tmpDB)
		return err
	}
	_ = tmp.AppendAudit("change-password", "vault", 0, meta.Name, "")
	if err := tmp.Close(); err != nil {
		os.Remove(tmpDB)
		return err
	}

	newMeta := meta
	newMeta.KDF = newParams
	newMeta.Verifier = newKey.VerifierString()

	// Swap in the rewritten database first, then the metadata. The metadata
	// rename is the commit point: until it lands, the old password must
	// still open the vault, so the previous database is kept aside and
	// restored if the commit fails.
	wasOpen := e.st != nil
	if e.st != nil {
		e.st.Close()
		e.st = nil
	}
	reopenOld := func() {
		if !wasOpen {
			return
		}
		if s, oerr := store.Open(databasePath(e.cfg.Dir)); oerr == nil {
			e.st = s
		}
	}

	oldDB := databasePath(e.cfg.Dir) + ".old"
	if err := os.Rename(databasePath(e.cfg.Dir), oldDB); err != nil {
		os.Remove(tmpDB)
		reopenOld()
		return fmt.Errorf("vault: stage database swap: %w", err)
	}
	if err := os.Rename(tmpDB, databasePath(e.cfg.Dir)); err != nil {
		_ = os.Rename(oldDB, databasePath(e.cfg.Dir))
		os.Remove(tmpDB)
		reopenOld()
		return fmt.Errorf("vault: swap database: %w", err)
	}
	if err := writeMetadata(e.cfg.Dir, newMeta); err != nil {
		// The header still names the old key; put the old data back so
		// the vault stays consistent under the old password.
		_ = os.Rename(oldDB, databasePath(e.cfg.Dir))
		reopenOld()
		return err
	}
	os.Remove(oldDB)

	reopened, err := store.Open(databasePath(e.cfg.Dir))
	if err != nil {
		return err
	}
	if e.key != nil {
		e.key.Zero()
	}
	e.meta, e.key, e.st = &newMeta, newKey, reopened
	if cs := e.credStore(); cs != nil {
		_ = cs.Clear(e.cfg.SessionID)
	}
	e.log.Info().Msg("master password changed")
	return nil
}

func snapshotTo(st *store.Store, path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	if err := st.Snapshot(f); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

// rewriteVariables decrypts each value with the old key and seals it again
// with the new one. Any decrypt failure aborts the whole pass.
func rewriteVariables(st *store.Store, oldKey, newKey *crypto.DerivedKey) error {
	var vars []store.Variable
	if err := st.ForEachVariable(func(v store.Variable) error {
		vars = append(vars, v)
		return nil
	}); err != nil {
		return err
	}
	for _, v := range vars {
		ad := aad(v.EnvironmentID, v.Key)
		pt, err := crypto.OpenAny(oldKey.Enc(), v.EncryptedValue, ad)
		if err != nil {
			return fmt.Errorf("re-encrypt %q: %w", v.Key, err)
		}
		ct, err := crypto.Seal(newKey.Enc(), pt, ad)
		crypto.Zero(pt)
		if err != nil {
			return err
		}
		if err := st.PutEncryptedValue(v.ID, ct); err != nil {
			return err
		}
	}
	return nil
}
