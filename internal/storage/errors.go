// internal/storage/errors.go

package storage

import "fmt"

// DatabaseNotFoundError is returned when a named database has never been
// opened and no file for it exists on disk.
type DatabaseNotFoundError struct {
	Name string
}

func (e *DatabaseNotFoundError) Error() string {
	return fmt.Sprintf("storage: database %q not found", e.Name)
}

// NewDatabaseNotFoundError builds a DatabaseNotFoundError.
func NewDatabaseNotFoundError(name string) *DatabaseNotFoundError {
	return &DatabaseNotFoundError{Name: name}
}

// StoreNotFoundError is returned when a database has no object store with
// the requested name.
type StoreNotFoundError struct {
	Database string
	Store    string
}

func (e *StoreNotFoundError) Error() string {
	return fmt.Sprintf("storage: database %q has no object store %q", e.Database, e.Store)
}

// NewStoreNotFoundError builds a StoreNotFoundError.
func NewStoreNotFoundError(database, store string) *StoreNotFoundError {
	return &StoreNotFoundError{Database: database, Store: store}
}

// KeyNotFoundError is returned when an object store has no record under
// the requested key.
type KeyNotFoundError struct {
	Store string
	Key   string
}

func (e *KeyNotFoundError) Error() string {
	return fmt.Sprintf("storage: store %q has no record %q", e.Store, e.Key)
}

// NewKeyNotFoundError builds a KeyNotFoundError.
func NewKeyNotFoundError(store, key string) *KeyNotFoundError {
	return &KeyNotFoundError{Store: store, Key: key}
}
