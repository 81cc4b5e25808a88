// Package vault orchestrates the encrypted secret store: key derivation,
// lifecycle (create, unlock, lock, password change), encrypted variable
// operations, import/export, and backups. All plaintext handling happens
// here; the store below only ever sees ciphertext.
package vault

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/Cemililkim/Clerk/internal/crypto"
	"github.com/Cemililkim/Clerk/internal/session"
	"github.com/Cemililkim/Clerk/internal/store"
)

// Config carries engine wiring. Zero values get sensible defaults.
type Config struct {
	// Dir is the vault directory holding the metadata and database files.
	Dir string

	Policy PasswordPolicy

	// Creds is the session cache backend. Nil means pick the best backend
	// for this vault lazily (OS keychain, then file fallback).
	Creds     session.CredentialStore
	SessionID string
	// SessionTTL bounds cached sessions. Zero means session.DefaultTTL.
	SessionTTL time.Duration

	// UnlockEvery throttles password attempts. Zero means one try per
	// second after the burst.
	UnlockEvery time.Duration
	UnlockBurst int

	// KDF overrides the derivation cost used at creation and password
	// change. Zero values mean the defaults; the salt is always fresh.
	KDF crypto.KDFParams

	Logger zerolog.Logger
}

func (c *Config) setDefaults() {
	if c.Policy.MinLength == 0 {
		c.Policy = DefaultPasswordPolicy()
	}
	if c.SessionID == "" {
		c.SessionID = session.DefaultSessionID()
	}
	if c.SessionTTL == 0 {
		c.SessionTTL = session.DefaultTTL
	}
	if c.UnlockEvery == 0 {
		c.UnlockEvery = time.Second
	}
	if c.UnlockBurst == 0 {
		c.UnlockBurst = 3
	}
}

// Engine is the single entry point for everything a caller does to a vault.
// Safe for concurrent use; one mutex serializes lifecycle and data ops.
type Engine struct {
	mu      sync.Mutex
	cfg     Config
	limiter *rate.Limiter
	log     zerolog.Logger

	meta  *Metadata
	key   *crypto.DerivedKey
	st    *store.Store
	creds session.CredentialStore
}

func New(cfg Config) *Engine {
	cfg.setDefaults()
	return &Engine{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Every(cfg.UnlockEvery), cfg.UnlockBurst),
		log:     cfg.Logger.With().Str("component", "vault").Logger(),
		creds:   cfg.Creds,
	}
}

// Exists reports whether a vault has been initialized at the configured
// directory.
func (e *Engine) Exists() bool {
	_, err := readMetadata(e.cfg.Dir)
	return err == nil
}

// Unlocked reports whether secret operations are currently allowed.
func (e *Engine) Unlocked() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.key != nil
}

// Meta reads the on-disk header. Works locked or unlocked.
func (e *Engine) Meta() (Metadata, error) {
	return readMetadata(e.cfg.Dir)
}

func (e *Engine) freshKDFParams() crypto.KDFParams {
	p := e.cfg.KDF
	if p.Memory == 0 || p.Time == 0 || p.Parallelism == 0 {
		return crypto.DefaultKDFParams()
	}
	p.Salt = crypto.NewSalt()
	return p
}

func (e *Engine) credStore() session.CredentialStore {
	if e.creds == nil && e.meta != nil {
		e.creds = session.Open(e.meta.VaultID)
	}
	return e.creds
}

// Create initializes a new vault and leaves it unlocked. The password buffer
// is consumed and wiped regardless of outcome.
func (e *Engine) Create(ctx context.Context, name string, password []byte) (Metadata, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.cfg.Policy.Validate(password); err != nil {
		crypto.Zero(password)
		return Metadata{}, err
	}
	// Refuse on file existence, not parse success: a corrupt or
	// newer-versioned header is still someone's vault, and overwriting its
	// salt and verifier would lose the data for good.
	if _, err := os.Stat(metadataPath(e.cfg.Dir)); err == nil {
		crypto.Zero(password)
		return Metadata{}, ErrVaultExists
	}
	if err := ensureDir(e.cfg.Dir); err != nil {
		crypto.Zero(password)
		return Metadata{}, err
	}

	params := e.freshKDFParams()
	key, err := crypto.DeriveKey(password, params)
	if err != nil {
		return Metadata{}, err
	}

	meta := newMetadata(name, params, key.VerifierString())
	if err := writeMetadata(e.cfg.Dir, meta); err != nil {
		key.Zero()
		return Metadata{}, err
	}

	st, err := store.Open(databasePath(e.cfg.Dir))
	if err != nil {
		key.Zero()
		return Metadata{}, err
	}

	e.meta, e.key, e.st = &meta, key, st
	_ = e.st.AppendAudit("create", "vault", 0, meta.Name, "")
	e.log.Info().Str("vault_id", meta.VaultID).Msg("vault created")
	return meta, nil
}

// Unlock verifies the password, derives the key, and opens the database.
// Wrong password and corrupted data share one error so an attacker learns
// nothing from the failure mode. With remember set, the derived key is cached
// in the session store for this terminal session.
func (e *Engine) Unlock(ctx context.Context, password []byte, remember bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.key != nil {
		crypto.Zero(password)
		return nil
	}
	if err := e.limiter.Wait(ctx); err != nil {
		crypto.Zero(password)
		return err
	}

	meta, err := readMetadata(e.cfg.Dir)
	if err == ErrVaultNotFound {
		crypto.Zero(password)
		return err
	}
	if err != nil {
		crypto.Zero(password)
		e.log.Debug().Err(err).Msg("metadata unreadable during unlock")
		return ErrInvalidPassword
	}

	key, err := crypto.DeriveKey(password, meta.KDF)
	if err != nil {
		e.log.Debug().Err(err).Msg("key derivation failed during unlock")
		return ErrInvalidPassword
	}
	if !crypto.VerifierMatches(meta.Verifier, key) {
		key.Zero()
		return ErrInvalidPassword
	}

	st, err := store.Open(databasePath(e.cfg.Dir))
	if err != nil {
		key.Zero()
		return err
	}

	e.meta, e.key, e.st = &meta, key, st
	if remember {
		if cs := e.credStore(); cs != nil {
			if err := cs.Save(e.cfg.SessionID, key.Export(), e.cfg.SessionTTL); err != nil {
				e.log.Warn().Err(err).Msg("session cache unavailable")
			}
		}
	}
	e.log.Info().Str("vault_id", meta.VaultID).Msg("vault unlocked")
	return nil
}

// AutoUnlock tries the cached session key. A missing, expired, or stale entry
// is not an error; it just means the caller has to prompt.
func (e *Engine) AutoUnlock(ctx context.Context) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.key != nil {
		return true, nil
	}
	meta, err := readMetadata(e.cfg.Dir)
	if err != nil {
		return false, err
	}
	e.meta = &meta

	cs := e.credStore()
	if cs == nil {
		return false, nil
	}
	raw, found, err := cs.Load(e.cfg.SessionID)
	if err != nil || !found {
		return false, err
	}
	key, err := crypto.KeyFromExport(raw)
	if err != nil {
		_ = cs.Clear(e.cfg.SessionID)
		return false, nil
	}
	// A cached key from before a password change no longer matches the
	// verifier on disk; drop it.
	if !crypto.VerifierMatches(meta.Verifier, key) {
		key.Zero()
		_ = cs.Clear(e.cfg.SessionID)
		return false, nil
	}

	st, err := store.Open(databasePath(e.cfg.Dir))
	if err != nil {
		key.Zero()
		return false, err
	}
	e.key, e.st = key, st
	e.log.Debug().Msg("unlocked from session cache")
	return true, nil
}

// Lock wipes the key, closes the database, and clears the cached session.
// Idempotent, and clears the session cache even when this process never
// unlocked.
func (e *Engine) Lock() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lockLocked()
}

func (e *Engine) lockLocked() {
	if e.key != nil {
		e.key.Zero()
		e.key = nil
	}
	if e.st != nil {
		_ = e.st.Close()
		e.st = nil
	}
	if e.meta == nil {
		if m, err := readMetadata(e.cfg.Dir); err == nil {
			e.meta = &m
		}
	}
	if cs := e.credStore(); cs != nil {
		_ = cs.Clear(e.cfg.SessionID)
	}
	e.log.Info().Msg("vault locked")
}

// Close releases resources without clearing the cached session, for process
// shutdown.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.key != nil {
		e.key.Zero()
		e.key = nil
	}
	if e.st != nil {
		err := e.st.Close()
		e.st = nil
		return err
	}
	return nil
}

// guard is the locked-vault check every secret operation starts with.
func (e *Engine) guard() error {
	if e.key == nil || e.st == nil {
		return ErrNotUnlocked
	}
	return nil
}

func aad(envID uint64, key string) []byte {
	return []byte(fmt.Sprintf("env:%d;key:%s", envID, key))
}

// --- project and environment operations ---

func (e *Engine) CreateProject(ctx context.Context, name, description string) (store.Project, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.guard(); err != nil {
		return store.Project{}, err
	}
	p, err := e.st.CreateProject(name, description)
	if err != nil {
		return store.Project{}, err
	}
	_ = e.st.AppendAudit("create", "project", p.ID, p.Name, "")
	return p, nil
}

func (e *Engine) Projects(ctx context.Context) ([]store.Project, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.guard(); err != nil {
		return nil, err
	}
	return e.st.ListProjects()
}

func (e *Engine) ProjectByName(ctx context.Context, name string) (store.Project, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.guard(); err != nil {
		return store.Project{}, err
	}
	return e.st.GetProjectByName(name)
}

// DeleteProject cascades to every environment and variable underneath.
func (e *Engine) DeleteProject(ctx context.Context, id uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.guard(); err != nil {
		return err
	}
	p, err := e.st.GetProject(id)
	if err != nil {
		return err
	}
	if err := e.st.DeleteProject(id); err != nil {
		return err
	}
	_ = e.st.AppendAudit("delete", "project", id, p.Name, "")
	return nil
}

func (e *Engine) CreateEnvironment(ctx context.Context, projectID uint64, name, description string) (store.Environment, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.guard(); err != nil {
		return store.Environment{}, err
	}
	env, err := e.st.CreateEnvironment(projectID, name, description)
	if err != nil {
		return store.Environment{}, err
	}
	_ = e.st.AppendAudit("create", "environment", env.ID, env.Name, "")
	return env, nil
}

func (e *Engine) Environments(ctx context.Context, projectID uint64) ([]store.Environment, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.guard(); err != nil {
		return nil, err
	}
	return e.st.ListEnvironments(projectID)
}

func (e *Engine) EnvironmentByName(ctx context.Context, projectID uint64, name string) (store.Environment, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.guard(); err != nil {
		return store.Environment{}, err
	}
	return e.st.GetEnvironmentByName(projectID, name)
}

func (e *Engine) DeleteEnvironment(ctx context.Context, id uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.guard(); err != nil {
		return err
	}
	env, err := e.st.GetEnvironment(id)
	if err != nil {
		return err
	}
	if err := e.st.DeleteEnvironment(id); err != nil {
		return err
	}
	_ = e.st.AppendAudit("delete", "environment", id, env.Name, "")
	return nil
}

// --- variable operations ---

// SetVariable encrypts and stores a value, creating the variable or
// replacing an existing one under the same key.
func (e *Engine) SetVariable(ctx context.Context, envID uint64, key, value, description string) (store.Variable, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.guard(); err != nil {
		return store.Variable{}, err
	}
	return e.setVariableLocked(envID, key, value, description)
}

func (e *Engine) setVariableLocked(envID uint64, key, value, description string) (store.Variable, error) {
	ct, err := crypto.Seal(e.key.Enc(), []byte(value), aad(envID, key))
	if err != nil {
		return store.Variable{}, err
	}
	if existing, err := e.st.GetVariableByKey(envID, key); err == nil {
		if err := e.st.UpdateVariableValue(existing.ID, ct); err != nil {
			return store.Variable{}, err
		}
		if description != "" && description != existing.Description {
			if err := e.st.UpdateVariableDescription(existing.ID, description); err != nil {
				return store.Variable{}, err
			}
		}
		_ = e.st.AppendAudit("update", "variable", existing.ID, key, "")
		return e.st.GetVariable(existing.ID)
	}
	v, err := e.st.CreateVariable(envID, key, ct, description)
	if err != nil {
		return store.Variable{}, err
	}
	_ = e.st.AppendAudit("create", "variable", v.ID, key, "")
	return v, nil
}

// Variables lists metadata only; ciphertext stays opaque until a caller asks
// for a value.
func (e *Engine) Variables(ctx context.Context, envID uint64) ([]store.Variable, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.guard(); err != nil {
		return nil, err
	}
	return e.st.ListVariables(envID)
}

func (e *Engine) VariableByKey(ctx context.Context, envID uint64, key string) (store.Variable, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.guard(); err != nil {
		return store.Variable{}, err
	}
	return e.st.GetVariableByKey(envID, key)
}

// GetValue decrypts one variable's value.
func (e *Engine) GetValue(ctx context.Context, envID uint64, key string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.guard(); err != nil {
		return "", err
	}
	v, err := e.st.GetVariableByKey(envID, key)
	if err != nil {
		return "", err
	}
	pt, err := crypto.OpenAny(e.key.Enc(), v.EncryptedValue, aad(envID, key))
	if err != nil {
		return "", err
	}
	return string(pt), nil
}

func (e *Engine) UpdateVariableDescription(ctx context.Context, id uint64, description string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.guard(); err != nil {
		return err
	}
	return e.st.UpdateVariableDescription(id, description)
}

func (e *Engine) DeleteVariable(ctx context.Context, envID uint64, key string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.guard(); err != nil {
		return err
	}
	v, err := e.st.GetVariableByKey(envID, key)
	if err != nil {
		return err
	}
	if err := e.st.DeleteVariable(v.ID); err != nil {
		return err
	}
	_ = e.st.AppendAudit("delete", "variable", v.ID, key, "")
	return nil
}

// DecryptEnvironment returns every variable of an environment as plaintext,
// for export and command injection.
func (e *Engine) DecryptEnvironment(ctx context.Context, envID uint64) (map[string]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.guard(); err != nil {
		return nil, err
	}
	return e.decryptEnvironmentLocked(envID)
}

func (e *Engine) decryptEnvironmentLocked(envID uint64) (map[string]string, error) {
	vars, err := e.st.ListVariables(envID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(vars))
	for _, v := range vars {
		pt, err := crypto.OpenAny(e.key.Enc(), v.EncryptedValue, aad(envID, v.Key))
		if err != nil {
			return nil, fmt.Errorf("decrypt %q: %w", v.Key, err)
		}
		out[v.Key] = string(pt)
	}
	return out, nil
}

// CopyVariable re-encrypts a value for the destination environment. Ciphertext
// is bound to its location, so a raw byte copy would never decrypt there.
func (e *Engine) CopyVariable(ctx context.Context, srcEnvID, dstEnvID uint64, key string, overwrite bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.guard(); err != nil {
		return err
	}
	src, err := e.st.GetVariableByKey(srcEnvID, key)
	if err != nil {
		return err
	}
	pt, err := crypto.OpenAny(e.key.Enc(), src.EncryptedValue, aad(srcEnvID, key))
	if err != nil {
		return err
	}
	defer crypto.Zero(pt)

	if _, err := e.st.GetVariableByKey(dstEnvID, key); err == nil && !overwrite {
		return fmt.Errorf("%w: %q exists in destination", store.ErrDuplicateKey, key)
	}
	_, err = e.setVariableLocked(dstEnvID, key, string(pt), src.Description)
	return err
}

// --- import ---

// ImportReport summarizes a dotenv import. Imports are partial-success:
// parse failures and skipped keys are reported while good lines land.
type ImportReport struct {
	Imported int
	Updated  int
	Skipped  []string
	Errors   []store.LineError
}

// ImportEnv imports dotenv text into an environment. Existing keys are
// skipped unless overwrite is set.
func (e *Engine) ImportEnv(ctx context.Context, envID uint64, text string, overwrite bool) (ImportReport, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	var r ImportReport
	if err := e.guard(); err != nil {
		return r, err
	}

	pairs, errs := store.ParseEnv(text)
	r.Errors = errs
	for _, p := range pairs {
		_, err := e.st.GetVariableByKey(envID, p.Key)
		exists := err == nil
		if exists && !overwrite {
			r.Skipped = append(r.Skipped, p.Key)
			continue
		}
		if _, err := e.setVariableLocked(envID, p.Key, p.Value, ""); err != nil {
			r.Errors = append(r.Errors, store.LineError{Line: p.Line, Err: err.Error()})
			continue
		}
		if exists {
			r.Updated++
		} else {
			r.Imported++
		}
	}
	_ = e.st.AppendAudit("import", "environment", envID, "",
		fmt.Sprintf("imported=%d updated=%d skipped=%d errors=%d", r.Imported, r.Updated, len(r.Skipped), len(r.Errors)))
	return r, nil
}

// --- audit and stats ---

func (e *Engine) AuditEntries(ctx context.Context, limit int) ([]store.AuditEntry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.guard(); err != nil {
		return nil, err
	}
	return e.st.ListAudit(limit)
}

func (e *Engine) VerifyAudit(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.guard(); err != nil {
		return err
	}
	return e.st.VerifyAudit()
}

func (e *Engine) Counts(ctx context.Context) (store.Stats, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.guard(); err != nil {
		return store.Stats{}, err
	}
	return e.st.Counts()
}

func (e *Engine) snapshotDatabase(w io.Writer) error {
	return e.st.Snapshot(w)
}
