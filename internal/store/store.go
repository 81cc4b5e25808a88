package store

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"go.etcd.io/bbolt"
)

var (
	ErrNotFound     = errors.New("store: not found")
	ErrDuplicateKey = errors.New("store: duplicate key")
	ErrValidation   = errors.New("store: invalid input")
)

// Bucket names. The idx buckets enforce name uniqueness: project names
// globally, environment names per project, variable keys per environment.
var (
	bucketProjects     = []byte("projects")
	bucketEnvironments = []byte("environments")
	bucketVariables    = []byte("variables")
	bucketAudit        = []byte("audit")
	bucketAuditMeta    = []byte("audit_meta")
	bucketProjectNames = []byte("idx:project-name")
	bucketEnvNames     = []byte("idx:env-name")
	bucketVarKeys      = []byte("idx:var-key")
)

// Store is the structured persistence layer. Variable values arrive and
// leave as ciphertext; encryption lives a layer above.
type Store struct {
	db *bbolt.DB
}

// Open opens (or creates) the vault database and ensures all buckets exist.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 10 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{
			bucketProjects, bucketEnvironments, bucketVariables,
			bucketAudit, bucketAuditMeta,
			bucketProjectNames, bucketEnvNames, bucketVarKeys,
		} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("store: init schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database. Safe to call on a nil store.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string { return s.db.Path() }

// Snapshot writes a consistent copy of the database to w.
func (s *Store) Snapshot(w io.Writer) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		_, err := tx.WriteTo(w)
		return err
	})
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

// scopedKey namespaces a name under a parent id for the index buckets.
func scopedKey(parent uint64, name string) []byte {
	return append(itob(parent), name...)
}

func now() int64 { return time.Now().Unix() }

// ---- Projects ----

func (s *Store) CreateProject(name, description string) (Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Project{}, fmt.Errorf("%w: project name required", ErrValidation)
	}
	var p Project
	err := s.db.Update(func(tx *bbolt.Tx) error {
		names := tx.Bucket(bucketProjectNames)
		if names.Get([]byte(name)) != nil {
			return fmt.Errorf("%w: project %q", ErrDuplicateKey, name)
		}
		b := tx.Bucket(bucketProjects)
		id, err := b.NextSequence()
		if err != nil {
			return err
		}
		ts := now()
		p = Project{ID: id, Name: name, Description: description, CreatedAt: ts, UpdatedAt: ts}
		buf, err := json.Marshal(p)
		if err != nil {
			return err
		}
		if err := b.Put(itob(id), buf); err != nil {
			return err
		}
		return names.Put([]byte(name), itob(id))
	})
	return p, err
}

func (s *Store) GetProject(id uint64) (Project, error) {
	var p Project
	err := s.db.View(func(tx *bbolt.Tx) error {
		return getJSON(tx.Bucket(bucketProjects), itob(id), &p)
	})
	return p, err
}

func (s *Store) GetProjectByName(name string) (Project, error) {
	var p Project
	err := s.db.View(func(tx *bbolt.Tx) error {
		id := tx.Bucket(bucketProjectNames).Get([]byte(name))
		if id == nil {
			return fmt.Errorf("%w: project %q", ErrNotFound, name)
		}
		return getJSON(tx.Bucket(bucketProjects), id, &p)
	})
	return p, err
}

func (s *Store) ListProjects() ([]Project, error) {
	var out []Project
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketProjects).ForEach(func(_, v []byte) error {
			var p Project
			if err := json.Unmarshal(v, &p); err != nil {
				return err
			}
			out = append(out, p)
			return nil
		})
	})
	return out, err
}

// DeleteProject removes a project, its environments and their variables in
// one transaction.
func (s *Store) DeleteProject(id uint64) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		var p Project
		if err := getJSON(tx.Bucket(bucketProjects), itob(id), &p); err != nil {
			return err
		}
		envs, err := environmentsOf(tx, id)
		if err != nil {
			return err
		}
		for _, e := range envs {
			if err := deleteEnvironmentTx(tx, e); err != nil {
				return err
			}
		}
		if err := tx.Bucket(bucketProjectNames).Delete([]byte(p.Name)); err != nil {
			return err
		}
		return tx.Bucket(bucketProjects).Delete(itob(id))
	})
}

// ---- Environments ----

func (s *Store) CreateEnvironment(projectID uint64, name, description string) (Environment, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Environment{}, fmt.Errorf("%w: environment name required", ErrValidation)
	}
	var e Environment
	err := s.db.Update(func(tx *bbolt.Tx) error {
		var p Project
		if err := getJSON(tx.Bucket(bucketProjects), itob(projectID), &p); err != nil {
			return err
		}
		names := tx.Bucket(bucketEnvNames)
		if names.Get(scopedKey(projectID, name)) != nil {
			return fmt.Errorf("%w: environment %q", ErrDuplicateKey, name)
		}
		b := tx.Bucket(bucketEnvironments)
		id, err := b.NextSequence()
		if err != nil {
			return err
		}
		ts := now()
		e = Environment{ID: id, ProjectID: projectID, Name: name, Description: description, CreatedAt: ts, UpdatedAt: ts}
		buf, err := json.Marshal(e)
		if err != nil {
			return err
		}
		if err := b.Put(itob(id), buf); err != nil {
			return err
		}
		return names.Put(scopedKey(projectID, name), itob(id))
	})
	return e, err
}

func (s *Store) GetEnvironment(id uint64) (Environment, error) {
	var e Environment
	err := s.db.View(func(tx *bbolt.Tx) error {
		return getJSON(tx.Bucket(bucketEnvironments), itob(id), &e)
	})
	return e, err
}

func (s *Store) GetEnvironmentByName(projectID uint64, name string) (Environment, error) {
	var e Environment
	err := s.db.View(func(tx *bbolt.Tx) error {
		id := tx.Bucket(bucketEnvNames).Get(scopedKey(projectID, name))
		if id == nil {
			return fmt.Errorf("%w: environment %q", ErrNotFound, name)
		}
		return getJSON(tx.Bucket(bucketEnvironments), id, &e)
	})
	return e, err
}

func (s *Store) ListEnvironments(projectID uint64) ([]Environment, error) {
	var out []Environment
	err := s.db.View(func(tx *bbolt.Tx) error {
		envs, err := environmentsOf(tx, projectID)
		if err != nil {
			return err
		}
		out = envs
		return nil
	})
	return out, err
}

func (s *Store) DeleteEnvironment(id uint64) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		var e Environment
		if err := getJSON(tx.Bucket(bucketEnvironments), itob(id), &e); err != nil {
			return err
		}
		return deleteEnvironmentTx(tx, e)
	})
}

func environmentsOf(tx *bbolt.Tx, projectID uint64) ([]Environment, error) {
	var out []Environment
	err := tx.Bucket(bucketEnvironments).ForEach(func(_, v []byte) error {
		var e Environment
		if err := json.Unmarshal(v, &e); err != nil {
			return err
		}
		if e.ProjectID == projectID {
			out = append(out, e)
		}
		return nil
	})
	return out, err
}

// deleteEnvironmentTx removes an environment and its variables. Cascade
// lives here so project deletion reuses it inside the same transaction.
func deleteEnvironmentTx(tx *bbolt.Tx, e Environment) error {
	vars, err := variablesOf(tx, e.ID)
	if err != nil {
		return err
	}
	for _, v := range vars {
		if err := deleteVariableTx(tx, v); err != nil {
			return err
		}
	}
	if err := tx.Bucket(bucketEnvNames).Delete(scopedKey(e.ProjectID, e.Name)); err != nil {
		return err
	}
	return tx.Bucket(bucketEnvironments).Delete(itob(e.ID))
}

// ---- shared helpers ----

func getJSON(b *bbolt.Bucket, key []byte, out interface{}) error {
	v := b.Get(key)
	if v == nil {
		return ErrNotFound
	}
	return json.Unmarshal(v, out)
}

// Counts returns non-sensitive entity counts.
func (s *Store) Counts() (Stats, error) {
	var st Stats
	err := s.db.View(func(tx *bbolt.Tx) error {
		st.Projects = tx.Bucket(bucketProjects).Stats().KeyN
		st.Environments = tx.Bucket(bucketEnvironments).Stats().KeyN
		st.Variables = tx.Bucket(bucketVariables).Stats().KeyN
		return nil
	})
	return st, err
}

func sortVariables(vars []Variable) {
	sort.Slice(vars, func(i, j int) bool { return vars[i].Key < vars[j].Key })
}
