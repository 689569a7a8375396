// internal/storage/storage.go

// Package storage provides a small origin-storage layer modeled on the
// IndexedDB shape: named databases holding named object stores holding
// JSON records under string keys. Each database persists to a single JSON
// file; writes are throttled so bursts of script mutations do not turn
// into bursts of disk I/O.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var codec = jsoniter.ConfigCompatibleWithStandardLibrary

// flushInterval caps how often a dirty database is rewritten to disk.
// Pending changes that miss the window are persisted on Close or Flush.
const flushInterval = 250 * time.Millisecond

// Manager owns the storage directory and the set of open databases.
type Manager struct {
	mu        sync.RWMutex
	dir       string
	databases map[string]*Database
	limiter   *rate.Limiter
	log       *zap.Logger
}

// NewManager creates the storage directory if needed and returns a
// manager rooted there. An empty dir keeps everything in memory.
func NewManager(dir string, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %w", err)
		}
	}
	return &Manager{
		dir:       dir,
		databases: make(map[string]*Database),
		limiter:   rate.NewLimiter(rate.Every(flushInterval), 1),
		log:       logger.Named("storage"),
	}, nil
}

// Open returns the named database, loading it from disk on first use and
// creating it empty when no file exists yet.
func (m *Manager) Open(name string) (*Database, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if db, ok := m.databases[name]; ok {
		return db, nil
	}
	db := &Database{
		manager: m,
		name:    name,
		stores:  make(map[string]*ObjectStore),
	}
	if m.dir != "" {
		if err := m.loadDatabase(db); err != nil {
			return nil, err
		}
	}
	m.databases[name] = db
	m.log.Debug("Opened database", zap.String("database", name), zap.Int("stores", len(db.stores)))
	return db, nil
}

// DeleteDatabase drops the named database and removes its file. Deleting
// a database that was never opened and has no file is a DatabaseNotFoundError.
func (m *Manager) DeleteDatabase(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, open := m.databases[name]
	delete(m.databases, name)

	if m.dir == "" {
		if !open {
			return NewDatabaseNotFoundError(name)
		}
		return nil
	}
	path := m.databasePath(name)
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			if !open {
				return NewDatabaseNotFoundError(name)
			}
			return nil
		}
		return fmt.Errorf("failed to delete database file: %w", err)
	}
	m.log.Debug("Deleted database", zap.String("database", name))
	return nil
}

// Databases lists the names of the currently open databases, sorted.
func (m *Manager) Databases() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.databases))
	for name := range m.databases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Flush persists every dirty database immediately, bypassing the throttle.
func (m *Manager) Flush() error {
	m.mu.RLock()
	dbs := make([]*Database, 0, len(m.databases))
	for _, db := range m.databases {
		dbs = append(dbs, db)
	}
	m.mu.RUnlock()

	var firstErr error
	for _, db := range dbs {
		if err := db.flush(true); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Close flushes all pending writes. The manager stays usable afterwards;
// Close exists so callers have a single shutdown hook to defer.
func (m *Manager) Close() error {
	return m.Flush()
}

// databasePath maps a database name to its backing file. Names are
// sanitized so script-chosen names cannot escape the storage directory.
func (m *Manager) databasePath(name string) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
	return filepath.Join(m.dir, safe+".json")
}

type databaseFile struct {
	Name   string                                   `json:"name"`
	Stores map[string]map[string]jsoniter.RawMessage `json:"stores"`
}

func (m *Manager) loadDatabase(db *Database) error {
	data, err := os.ReadFile(m.databasePath(db.name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read database file: %w", err)
	}
	var file databaseFile
	if err := codec.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to decode database %q: %w", db.name, err)
	}
	for storeName, records := range file.Stores {
		store := &ObjectStore{db: db, name: storeName, records: make(map[string]jsoniter.RawMessage, len(records))}
		for k, v := range records {
			store.records[k] = append(jsoniter.RawMessage(nil), v...)
		}
		db.stores[storeName] = store
	}
	return nil
}

// persistDatabase writes the database file atomically via a temp file
// rename. Callers hold the database lock.
func (m *Manager) persistDatabase(db *Database) error {
	if m.dir == "" {
		return nil
	}
	file := databaseFile{Name: db.name, Stores: make(map[string]map[string]jsoniter.RawMessage, len(db.stores))}
	for storeName, store := range db.stores {
		records := make(map[string]jsoniter.RawMessage, len(store.records))
		for k, v := range store.records {
			records[k] = v
		}
		file.Stores[storeName] = records
	}
	data, err := codec.MarshalIndent(&file, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode database %q: %w", db.name, err)
	}

	path := m.databasePath(db.name)
	tmp, err := os.CreateTemp(m.dir, ".umbra-db-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write database %q: %w", db.name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace database file: %w", err)
	}
	m.log.Debug("Persisted database", zap.String("database", db.name), zap.Int("bytes", len(data)))
	return nil
}

// Database is a named collection of object stores.
type Database struct {
	mu      sync.RWMutex
	manager *Manager
	name    string
	stores  map[string]*ObjectStore
	dirty   bool
}

// Name returns the database name.
func (db *Database) Name() string { return db.name }

// CreateObjectStore returns the named store, creating it when absent.
func (db *Database) CreateObjectStore(name string) *ObjectStore {
	db.mu.Lock()
	store, ok := db.stores[name]
	if !ok {
		store = &ObjectStore{db: db, name: name, records: make(map[string]jsoniter.RawMessage)}
		db.stores[name] = store
		db.dirty = true
	}
	db.mu.Unlock()
	if !ok {
		db.scheduleFlush()
	}
	return store
}

// ObjectStore returns the named store or a StoreNotFoundError.
func (db *Database) ObjectStore(name string) (*ObjectStore, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	store, ok := db.stores[name]
	if !ok {
		return nil, NewStoreNotFoundError(db.name, name)
	}
	return store, nil
}

// DeleteObjectStore drops the named store and its records.
func (db *Database) DeleteObjectStore(name string) error {
	db.mu.Lock()
	if _, ok := db.stores[name]; !ok {
		db.mu.Unlock()
		return NewStoreNotFoundError(db.name, name)
	}
	delete(db.stores, name)
	db.dirty = true
	db.mu.Unlock()
	db.scheduleFlush()
	return nil
}

// StoreNames lists the object store names, sorted.
func (db *Database) StoreNames() []string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	names := make([]string, 0, len(db.stores))
	for name := range db.stores {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// scheduleFlush persists now when the throttle allows it and otherwise
// leaves the database marked dirty for the next Flush or Close. Disk
// trouble is logged rather than surfaced so script-facing mutations keep
// their in-memory result.
func (db *Database) scheduleFlush() {
	if db.manager == nil || db.manager.dir == "" {
		return
	}
	if !db.manager.limiter.Allow() {
		return
	}
	if err := db.flush(false); err != nil {
		db.manager.log.Warn("Failed to persist database", zap.String("database", db.name), zap.Error(err))
	}
}

func (db *Database) flush(force bool) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if !db.dirty && !force {
		return nil
	}
	if err := db.manager.persistDatabase(db); err != nil {
		return err
	}
	db.dirty = false
	return nil
}

// ObjectStore is a flat key to JSON-record map inside a database.
type ObjectStore struct {
	db      *Database
	name    string
	records map[string]jsoniter.RawMessage
}

// Name returns the store name.
func (s *ObjectStore) Name() string { return s.name }

// Put marshals value and stores it under key, replacing any prior record.
func (s *ObjectStore) Put(key string, value any) error {
	raw, err := codec.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode record %q: %w", key, err)
	}
	return s.PutRaw(key, raw)
}

// PutRaw stores an already-encoded JSON record under key. The bytes are
// copied, so callers may reuse the slice.
func (s *ObjectStore) PutRaw(key string, raw []byte) error {
	if !codec.Valid(raw) {
		return fmt.Errorf("record %q is not valid JSON", key)
	}
	s.db.mu.Lock()
	s.records[key] = append(jsoniter.RawMessage(nil), raw...)
	s.db.dirty = true
	s.db.mu.Unlock()
	s.db.scheduleFlush()
	return nil
}

// Get unmarshals the record under key into out.
func (s *ObjectStore) Get(key string, out any) error {
	raw, err := s.GetRaw(key)
	if err != nil {
		return err
	}
	if err := codec.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode record %q: %w", key, err)
	}
	return nil
}

// GetRaw returns a copy of the encoded record under key.
func (s *ObjectStore) GetRaw(key string) ([]byte, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	raw, ok := s.records[key]
	if !ok {
		return nil, NewKeyNotFoundError(s.name, key)
	}
	return append([]byte(nil), raw...), nil
}

// Has reports whether a record exists under key.
func (s *ObjectStore) Has(key string) bool {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	_, ok := s.records[key]
	return ok
}

// Delete removes the record under key.
func (s *ObjectStore) Delete(key string) error {
	s.db.mu.Lock()
	if _, ok := s.records[key]; !ok {
		s.db.mu.Unlock()
		return NewKeyNotFoundError(s.name, key)
	}
	delete(s.records, key)
	s.db.dirty = true
	s.db.mu.Unlock()
	s.db.scheduleFlush()
	return nil
}

// Keys lists the record keys, sorted.
func (s *ObjectStore) Keys() []string {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	keys := make([]string, 0, len(s.records))
	for k := range s.records {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GetAll returns copies of every record in key order.
func (s *ObjectStore) GetAll() []jsoniter.RawMessage {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	keys := make([]string, 0, len(s.records))
	for k := range s.records {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]jsoniter.RawMessage, 0, len(keys))
	for _, k := range keys {
		out = append(out, append(jsoniter.RawMessage(nil), s.records[k]...))
	}
	return out
}

// Count returns the number of records.
func (s *ObjectStore) Count() int {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	return len(s.records)
}

// Clear removes every record.
func (s *ObjectStore) Clear() {
	s.db.mu.Lock()
	s.records = make(map[string]jsoniter.RawMessage)
	s.db.dirty = true
	s.db.mu.Unlock()
	s.db.scheduleFlush()
}
