// internal/storage/storage_test.go

package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type record struct {
	Title string `json:"title"`
	Count int    `json:"count"`
}

func newTestManager(t *testing.T) (*Manager, string) {
	t.Helper()
	dir := t.TempDir()
	m, err := NewManager(dir, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, m.Close())
	})
	return m, dir
}

func TestNewManager_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "store")
	_, err := NewManager(dir, zaptest.NewLogger(t))
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestManager_OpenIsIdempotent(t *testing.T) {
	m, _ := newTestManager(t)

	db1, err := m.Open("app")
	require.NoError(t, err)
	db2, err := m.Open("app")
	require.NoError(t, err)
	assert.Same(t, db1, db2)

	_, err = m.Open("cache")
	require.NoError(t, err)
	assert.Equal(t, []string{"app", "cache"}, m.Databases())
}

func TestObjectStore_PutGetRoundTrip(t *testing.T) {
	m, _ := newTestManager(t)
	db, err := m.Open("app")
	require.NoError(t, err)
	store := db.CreateObjectStore("kv")

	in := record{Title: "first", Count: 3}
	require.NoError(t, store.Put("a", in))

	var out record
	require.NoError(t, store.Get("a", &out))
	assert.Equal(t, in, out)
	assert.True(t, store.Has("a"))
	assert.False(t, store.Has("b"))
	assert.Equal(t, 1, store.Count())

	var keyErr *KeyNotFoundError
	require.ErrorAs(t, store.Get("b", &out), &keyErr)
	assert.Equal(t, "kv", keyErr.Store)
	assert.Equal(t, "b", keyErr.Key)

	require.NoError(t, store.Delete("a"))
	assert.False(t, store.Has("a"))
	require.ErrorAs(t, store.Delete("a"), &keyErr)
}

func TestObjectStore_RawRecords(t *testing.T) {
	m, _ := newTestManager(t)
	db, err := m.Open("app")
	require.NoError(t, err)
	store := db.CreateObjectStore("kv")

	require.Error(t, store.PutRaw("bad", []byte(`{"a":`)))
	assert.False(t, store.Has("bad"))

	require.NoError(t, store.PutRaw("good", []byte(`{"n":1}`)))
	raw, err := store.GetRaw("good")
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":1}`, string(raw))

	// Returned bytes are copies; scribbling on them cannot corrupt the store.
	raw[0] = 'X'
	again, err := store.GetRaw("good")
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":1}`, string(again))
}

func TestObjectStore_KeysAndGetAll(t *testing.T) {
	m, _ := newTestManager(t)
	db, err := m.Open("app")
	require.NoError(t, err)
	store := db.CreateObjectStore("kv")

	require.NoError(t, store.PutRaw("z", []byte(`"last"`)))
	require.NoError(t, store.PutRaw("a", []byte(`"first"`)))
	require.NoError(t, store.PutRaw("m", []byte(`"middle"`)))

	assert.Equal(t, []string{"a", "m", "z"}, store.Keys())

	all := store.GetAll()
	require.Len(t, all, 3)
	assert.Equal(t, `"first"`, string(all[0]))
	assert.Equal(t, `"middle"`, string(all[1]))
	assert.Equal(t, `"last"`, string(all[2]))

	store.Clear()
	assert.Zero(t, store.Count())
	assert.Empty(t, store.Keys())
}

func TestDatabase_StoreLifecycle(t *testing.T) {
	m, _ := newTestManager(t)
	db, err := m.Open("app")
	require.NoError(t, err)
	assert.Equal(t, "app", db.Name())

	kv := db.CreateObjectStore("kv")
	assert.Same(t, kv, db.CreateObjectStore("kv"))
	db.CreateObjectStore("blobs")
	assert.Equal(t, []string{"blobs", "kv"}, db.StoreNames())

	got, err := db.ObjectStore("kv")
	require.NoError(t, err)
	assert.Same(t, kv, got)

	var storeErr *StoreNotFoundError
	_, err = db.ObjectStore("missing")
	require.ErrorAs(t, err, &storeErr)

	require.NoError(t, db.DeleteObjectStore("kv"))
	assert.Equal(t, []string{"blobs"}, db.StoreNames())
	require.ErrorAs(t, db.DeleteObjectStore("kv"), &storeErr)
}

func TestManager_PersistenceAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	logger := zaptest.NewLogger(t)

	m1, err := NewManager(dir, logger)
	require.NoError(t, err)
	db, err := m1.Open("app")
	require.NoError(t, err)
	store := db.CreateObjectStore("sessions")
	require.NoError(t, store.Put("u1", record{Title: "one", Count: 1}))
	require.NoError(t, store.Put("u2", record{Title: "two", Count: 2}))
	require.NoError(t, m1.Close())

	m2, err := NewManager(dir, logger)
	require.NoError(t, err)
	db2, err := m2.Open("app")
	require.NoError(t, err)
	store2, err := db2.ObjectStore("sessions")
	require.NoError(t, err)

	var got record
	require.NoError(t, store2.Get("u2", &got))
	assert.Equal(t, record{Title: "two", Count: 2}, got)
	assert.Equal(t, []string{"u1", "u2"}, store2.Keys())
}

func TestManager_DeleteDatabase(t *testing.T) {
	t.Run("in memory", func(t *testing.T) {
		m, err := NewManager("", zaptest.NewLogger(t))
		require.NoError(t, err)

		var dbErr *DatabaseNotFoundError
		require.ErrorAs(t, m.DeleteDatabase("ghost"), &dbErr)

		_, err = m.Open("app")
		require.NoError(t, err)
		require.NoError(t, m.DeleteDatabase("app"))
		assert.Empty(t, m.Databases())
	})

	t.Run("on disk", func(t *testing.T) {
		m, dir := newTestManager(t)
		db, err := m.Open("app")
		require.NoError(t, err)
		require.NoError(t, db.CreateObjectStore("kv").Put("k", 1))
		require.NoError(t, m.Flush())

		path := filepath.Join(dir, "app.json")
		_, err = os.Stat(path)
		require.NoError(t, err)

		require.NoError(t, m.DeleteDatabase("app"))
		_, err = os.Stat(path)
		assert.True(t, os.IsNotExist(err))

		var dbErr *DatabaseNotFoundError
		require.ErrorAs(t, m.DeleteDatabase("app"), &dbErr)
	})
}

func TestManager_InMemoryMode(t *testing.T) {
	m, err := NewManager("", zaptest.NewLogger(t))
	require.NoError(t, err)

	db, err := m.Open("scratch")
	require.NoError(t, err)
	store := db.CreateObjectStore("kv")
	require.NoError(t, store.Put("k", record{Title: "ram", Count: 9}))

	var out record
	require.NoError(t, store.Get("k", &out))
	assert.Equal(t, 9, out.Count)
	require.NoError(t, m.Flush())
	require.NoError(t, m.Close())
}

func TestManager_DatabasePathSanitization(t *testing.T) {
	m, dir := newTestManager(t)

	path := m.databasePath("../evil name!")
	assert.Equal(t, filepath.Join(dir, "___evil_name_.json"), path)
	assert.NotContains(t, path, "..")
}

func TestManager_OpenRejectsCorruptFile(t *testing.T) {
	m, _ := newTestManager(t)
	require.NoError(t, os.WriteFile(m.databasePath("broken"), []byte("{nope"), 0o644))

	_, err := m.Open("broken")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode")
}
