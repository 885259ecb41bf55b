// Package storage persists chain data: a key-value DB abstraction with a
// LevelDB backend, the block store, and StateDB, the buffered world state
// the engine executes against.
package storage

// DB is the key-value store every other storage type sits on. Get returns
// core.ErrNotFound for a missing key.
type DB interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
	Delete(key []byte) error
	// NewIterator walks keys with prefix in ascending byte order.
	NewIterator(prefix []byte) Iterator
	NewBatch() Batch
	Close() error
}

type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Release()
	Error() error
}

// Batch collects writes that Write applies atomically.
type Batch interface {
	Set(key, value []byte)
	Delete(key []byte)
	Reset()
	Write() error
}
