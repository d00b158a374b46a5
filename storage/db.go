package storage

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/ethdb/leveldb"
	"github.com/ethereum/go-ethereum/triedb"
)

// Database is a generic interface for a key-value store.
// This allows the node to use any database backend (in-memory or persistent)
// underneath the state trie.
type Database interface {
	Put(key []byte, value []byte) error
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	// TrieDB returns the trie node database layered over the store. The
	// handle is created once and shared by every trie opened on the store.
	TrieDB() *triedb.Database
	Close() // A way to gracefully shut down the database connection.
}

// kvStore adapts a go-ethereum ethdb.Database to the Database interface and
// lazily builds the hash-scheme trie database on top of it.
type kvStore struct {
	db ethdb.Database

	once   sync.Once
	trieDB *triedb.Database
}

func (s *kvStore) Put(key []byte, value []byte) error {
	return s.db.Put(key, value)
}

func (s *kvStore) Get(key []byte) ([]byte, error) {
	value, err := s.db.Get(key)
	if err != nil {
		return nil, fmt.Errorf("key not found")
	}
	return value, nil
}

func (s *kvStore) Has(key []byte) (bool, error) {
	return s.db.Has(key)
}

func (s *kvStore) TrieDB() *triedb.Database {
	s.once.Do(func() {
		s.trieDB = triedb.NewDatabase(s.db, triedb.HashDefaults)
	})
	return s.trieDB
}

// --- In-Memory DB (for testing) ---

type MemDB struct {
	kvStore
}

func NewMemDB() *MemDB {
	return &MemDB{kvStore: kvStore{db: rawdb.NewMemoryDatabase()}}
}

// Close satisfies the Database interface for MemDB.
func (db *MemDB) Close() {
	_ = db.db.Close()
}

// --- Persistent DB ---

const (
	levelDBCacheMB = 16
	levelDBHandles = 16
	levelDBNS      = "lulo/state/"
)

// LevelDB is a persistent key-value store using LevelDB.
type LevelDB struct {
	kvStore
}

// NewLevelDB creates or opens a LevelDB database at the specified path.
func NewLevelDB(path string) (*LevelDB, error) {
	kv, err := leveldb.New(path, levelDBCacheMB, levelDBHandles, levelDBNS, false)
	if err != nil {
		return nil, err
	}
	return &LevelDB{kvStore: kvStore{db: rawdb.NewDatabase(kv)}}, nil
}

// Close closes the trie database and the underlying connection.
func (ldb *LevelDB) Close() {
	if ldb.trieDB != nil {
		_ = ldb.trieDB.Close()
	}
	_ = ldb.db.Close()
}
