package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFileStore(t *testing.T) *FileStore {
	t.Helper()
	fs, err := NewFileStore("test-vault")
	require.NoError(t, err)
	t.Cleanup(func() { fs.Clear("s1"); fs.Clear("s2") })
	return fs
}

func TestFileStoreRoundTrip(t *testing.T) {
	fs := newTestFileStore(t)
	wrapped := []byte("0123456789abcdef0123456789abcdef")

	require.NoError(t, fs.Save("s1", wrapped, time.Minute))
	got, found, err := fs.Load("s1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, wrapped, got)
}

func TestFileStoreMissingEntry(t *testing.T) {
	fs := newTestFileStore(t)
	_, found, err := fs.Load("never-saved")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestFileStoreExpiry(t *testing.T) {
	fs := newTestFileStore(t)
	require.NoError(t, fs.Save("s1", []byte("key"), -time.Minute))

	_, found, err := fs.Load("s1")
	require.NoError(t, err)
	assert.False(t, found, "expired entry must read as absent")

	// The expired file is deleted on read.
	_, found, _ = fs.Load("s1")
	assert.False(t, found)
}

func TestFileStoreZeroTTLIsExpired(t *testing.T) {
	fs := newTestFileStore(t)
	require.NoError(t, fs.Save("s1", []byte("key"), 0))
	_, found, err := fs.Load("s1")
	require.NoError(t, err)
	assert.False(t, found, "zero TTL must not be promoted to a default")
}

func TestFileStoreSessionIsolation(t *testing.T) {
	fs := newTestFileStore(t)
	require.NoError(t, fs.Save("s1", []byte("key-one"), time.Minute))
	require.NoError(t, fs.Save("s2", []byte("key-two"), time.Minute))

	got1, found, err := fs.Load("s1")
	require.NoError(t, err)
	require.True(t, found)
	got2, found, err := fs.Load("s2")
	require.NoError(t, err)
	require.True(t, found)
	assert.NotEqual(t, got1, got2)

	require.NoError(t, fs.Clear("s1"))
	_, found, _ = fs.Load("s1")
	assert.False(t, found)
	_, found, _ = fs.Load("s2")
	assert.True(t, found, "clearing one session must not touch another")
}

func TestClearMissingEntryIsNoop(t *testing.T) {
	fs := newTestFileStore(t)
	assert.NoError(t, fs.Clear("never-saved"))
}

func TestDefaultSessionIDHonorsEnv(t *testing.T) {
	t.Setenv(envSessionID, "custom-session")
	assert.Equal(t, "custom-session", DefaultSessionID())
}

func TestRecordRejectsGarbage(t *testing.T) {
	_, ok := decodeRecord([]byte("not json"))
	assert.False(t, ok)
	_, ok = decodeRecord([]byte(`{"key":"!!!not-base64","expires":9999999999}`))
	assert.False(t, ok)
}
