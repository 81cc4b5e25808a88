package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "vault.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestProjectCRUD(t *testing.T) {
	st := newTestStore(t)

	p, err := st.CreateProject("api", "backend service")
	require.NoError(t, err)
	assert.NotZero(t, p.ID)
	assert.Equal(t, "api", p.Name)

	got, err := st.GetProjectByName("api")
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	all, err := st.ListProjects()
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, st.DeleteProject(p.ID))
	_, err = st.GetProject(p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProjectNameUnique(t *testing.T) {
	st := newTestStore(t)

	_, err := st.CreateProject("api", "")
	require.NoError(t, err)
	_, err = st.CreateProject("api", "second")
	assert.ErrorIs(t, err, ErrDuplicateKey)

	// Deleting frees the name.
	p, err := st.GetProjectByName("api")
	require.NoError(t, err)
	require.NoError(t, st.DeleteProject(p.ID))
	_, err = st.CreateProject("api", "")
	assert.NoError(t, err)
}

func TestProjectNameValidation(t *testing.T) {
	st := newTestStore(t)
	_, err := st.CreateProject("   ", "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestEnvironmentScopedUniqueness(t *testing.T) {
	st := newTestStore(t)

	api, err := st.CreateProject("api", "")
	require.NoError(t, err)
	web, err := st.CreateProject("web", "")
	require.NoError(t, err)

	_, err = st.CreateEnvironment(api.ID, "prod", "")
	require.NoError(t, err)

	// Same name in the same project collides.
	_, err = st.CreateEnvironment(api.ID, "prod", "")
	assert.ErrorIs(t, err, ErrDuplicateKey)

	// Same name in a different project is fine.
	_, err = st.CreateEnvironment(web.ID, "prod", "")
	assert.NoError(t, err)
}

func TestEnvironmentRequiresProject(t *testing.T) {
	st := newTestStore(t)
	_, err := st.CreateEnvironment(999, "prod", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestVariableKeyUniquePerEnvironment(t *testing.T) {
	st := newTestStore(t)

	p, err := st.CreateProject("api", "")
	require.NoError(t, err)
	prod, err := st.CreateEnvironment(p.ID, "prod", "")
	require.NoError(t, err)
	staging, err := st.CreateEnvironment(p.ID, "staging", "")
	require.NoError(t, err)

	_, err = st.CreateVariable(prod.ID, "DATABASE_URL", []byte{1, 2, 3}, "")
	require.NoError(t, err)
	_, err = st.CreateVariable(prod.ID, "DATABASE_URL", []byte{4, 5, 6}, "")
	assert.ErrorIs(t, err, ErrDuplicateKey)
	_, err = st.CreateVariable(staging.ID, "DATABASE_URL", []byte{4, 5, 6}, "")
	assert.NoError(t, err)
}

func TestCascadeDelete(t *testing.T) {
	st := newTestStore(t)

	p, err := st.CreateProject("api", "")
	require.NoError(t, err)
	prod, err := st.CreateEnvironment(p.ID, "prod", "")
	require.NoError(t, err)
	staging, err := st.CreateEnvironment(p.ID, "staging", "")
	require.NoError(t, err)
	v1, err := st.CreateVariable(prod.ID, "A", []byte{1}, "")
	require.NoError(t, err)
	_, err = st.CreateVariable(staging.ID, "B", []byte{2}, "")
	require.NoError(t, err)

	other, err := st.CreateProject("web", "")
	require.NoError(t, err)
	otherEnv, err := st.CreateEnvironment(other.ID, "prod", "")
	require.NoError(t, err)
	survivor, err := st.CreateVariable(otherEnv.ID, "C", []byte{3}, "")
	require.NoError(t, err)

	require.NoError(t, st.DeleteProject(p.ID))

	_, err = st.GetEnvironment(prod.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = st.GetVariable(v1.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// Unrelated data untouched.
	_, err = st.GetVariable(survivor.ID)
	assert.NoError(t, err)

	stats, err := st.Counts()
	require.NoError(t, err)
	assert.Equal(t, Stats{Projects: 1, Environments: 1, Variables: 1}, stats)
}

func TestDeleteEnvironmentCascadesVariables(t *testing.T) {
	st := newTestStore(t)

	p, err := st.CreateProject("api", "")
	require.NoError(t, err)
	env, err := st.CreateEnvironment(p.ID, "prod", "")
	require.NoError(t, err)
	v, err := st.CreateVariable(env.ID, "A", []byte{1}, "")
	require.NoError(t, err)

	require.NoError(t, st.DeleteEnvironment(env.ID))
	_, err = st.GetVariable(v.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// The key index entry is gone too: recreating env and key works.
	env2, err := st.CreateEnvironment(p.ID, "prod", "")
	require.NoError(t, err)
	_, err = st.CreateVariable(env2.ID, "A", []byte{9}, "")
	assert.NoError(t, err)
}

func TestListVariablesSorted(t *testing.T) {
	st := newTestStore(t)

	p, err := st.CreateProject("api", "")
	require.NoError(t, err)
	env, err := st.CreateEnvironment(p.ID, "prod", "")
	require.NoError(t, err)
	for _, k := range []string{"ZETA", "ALPHA", "MID"} {
		_, err = st.CreateVariable(env.ID, k, []byte{1}, "")
		require.NoError(t, err)
	}

	vars, err := st.ListVariables(env.ID)
	require.NoError(t, err)
	require.Len(t, vars, 3)
	assert.Equal(t, "ALPHA", vars[0].Key)
	assert.Equal(t, "MID", vars[1].Key)
	assert.Equal(t, "ZETA", vars[2].Key)
}

func TestUpdateVariableValueBumpsTimestamp(t *testing.T) {
	st := newTestStore(t)

	p, _ := st.CreateProject("api", "")
	env, _ := st.CreateEnvironment(p.ID, "prod", "")
	v, err := st.CreateVariable(env.ID, "A", []byte{1}, "")
	require.NoError(t, err)

	require.NoError(t, st.UpdateVariableValue(v.ID, []byte{2}))
	got, err := st.GetVariable(v.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte{2}, got.EncryptedValue)
	assert.GreaterOrEqual(t, got.UpdatedAt, v.UpdatedAt)

	// Rekey path leaves timestamps alone.
	require.NoError(t, st.PutEncryptedValue(v.ID, []byte{3}))
	rekeyed, err := st.GetVariable(v.ID)
	require.NoError(t, err)
	assert.Equal(t, got.UpdatedAt, rekeyed.UpdatedAt)
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vault.db")

	st, err := Open(path)
	require.NoError(t, err)
	p, err := st.CreateProject("api", "")
	require.NoError(t, err)
	require.NoError(t, st.Close())

	st2, err := Open(path)
	require.NoError(t, err)
	defer st2.Close()
	got, err := st2.GetProject(p.ID)
	require.NoError(t, err)
	assert.Equal(t, "api", got.Name)
}
