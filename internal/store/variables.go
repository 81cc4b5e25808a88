package store

import (
	"encoding/json"
	"fmt"
	"strings"

	"go.etcd.io/bbolt"
)

func (s *Store) CreateVariable(envID uint64, key string, encValue []byte, description string) (Variable, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return Variable{}, fmt.Errorf("%w: variable key required", ErrValidation)
	}
	var v Variable
	err := s.db.Update(func(tx *bbolt.Tx) error {
		var e Environment
		if err := getJSON(tx.Bucket(bucketEnvironments), itob(envID), &e); err != nil {
			return err
		}
		keys := tx.Bucket(bucketVarKeys)
		if keys.Get(scopedKey(envID, key)) != nil {
			return fmt.Errorf("%w: variable %q", ErrDuplicateKey, key)
		}
		b := tx.Bucket(bucketVariables)
		id, err := b.NextSequence()
		if err != nil {
			return err
		}
		ts := now()
		v = Variable{
			ID:             id,
			EnvironmentID:  envID,
			Key:            key,
			EncryptedValue: encValue,
			Description:    description,
			CreatedAt:      ts,
			UpdatedAt:      ts,
		}
		buf, err := json.Marshal(v)
		if err != nil {
			return err
		}
		if err := b.Put(itob(id), buf); err != nil {
			return err
		}
		return keys.Put(scopedKey(envID, key), itob(id))
	})
	return v, err
}

func (s *Store) GetVariable(id uint64) (Variable, error) {
	var v Variable
	err := s.db.View(func(tx *bbolt.Tx) error {
		return getJSON(tx.Bucket(bucketVariables), itob(id), &v)
	})
	return v, err
}

func (s *Store) GetVariableByKey(envID uint64, key string) (Variable, error) {
	var v Variable
	err := s.db.View(func(tx *bbolt.Tx) error {
		id := tx.Bucket(bucketVarKeys).Get(scopedKey(envID, key))
		if id == nil {
			return fmt.Errorf("%w: variable %q", ErrNotFound, key)
		}
		return getJSON(tx.Bucket(bucketVariables), id, &v)
	})
	return v, err
}

// ListVariables returns an environment's variables, ciphertext untouched,
// sorted by key.
func (s *Store) ListVariables(envID uint64) ([]Variable, error) {
	var out []Variable
	err := s.db.View(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketEnvironments).Get(itob(envID)) == nil {
			return fmt.Errorf("%w: environment %d", ErrNotFound, envID)
		}
		vars, err := variablesOf(tx, envID)
		if err != nil {
			return err
		}
		out = vars
		return nil
	})
	sortVariables(out)
	return out, err
}

// UpdateVariableValue replaces a variable's ciphertext and bumps UpdatedAt.
func (s *Store) UpdateVariableValue(id uint64, encValue []byte) error {
	return s.mutateVariable(id, func(v *Variable) {
		v.EncryptedValue = encValue
		v.UpdatedAt = now()
	})
}

// PutEncryptedValue replaces ciphertext without touching timestamps; used
// when the vault is re-keyed and the plaintext has not changed.
func (s *Store) PutEncryptedValue(id uint64, encValue []byte) error {
	return s.mutateVariable(id, func(v *Variable) {
		v.EncryptedValue = encValue
	})
}

// UpdateVariableDescription updates the optional description.
func (s *Store) UpdateVariableDescription(id uint64, description string) error {
	return s.mutateVariable(id, func(v *Variable) {
		v.Description = description
		v.UpdatedAt = now()
	})
}

func (s *Store) mutateVariable(id uint64, mut func(*Variable)) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketVariables)
		var v Variable
		if err := getJSON(b, itob(id), &v); err != nil {
			return err
		}
		mut(&v)
		buf, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return b.Put(itob(id), buf)
	})
}

func (s *Store) DeleteVariable(id uint64) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		var v Variable
		if err := getJSON(tx.Bucket(bucketVariables), itob(id), &v); err != nil {
			return err
		}
		return deleteVariableTx(tx, v)
	})
}

// ForEachVariable walks every variable in the store. Used by re-keying and
// integrity checks; fn must not retain the ciphertext slice.
func (s *Store) ForEachVariable(fn func(Variable) error) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketVariables).ForEach(func(_, buf []byte) error {
			var v Variable
			if err := json.Unmarshal(buf, &v); err != nil {
				return err
			}
			return fn(v)
		})
	})
}

func variablesOf(tx *bbolt.Tx, envID uint64) ([]Variable, error) {
	var out []Variable
	err := tx.Bucket(bucketVariables).ForEach(func(_, buf []byte) error {
		var v Variable
		if err := json.Unmarshal(buf, &v); err != nil {
			return err
		}
		if v.EnvironmentID == envID {
			out = append(out, v)
		}
		return nil
	})
	return out, err
}

func deleteVariableTx(tx *bbolt.Tx, v Variable) error {
	if err := tx.Bucket(bucketVarKeys).Delete(scopedKey(v.EnvironmentID, v.Key)); err != nil {
		return err
	}
	return tx.Bucket(bucketVariables).Delete(itob(v.ID))
}
