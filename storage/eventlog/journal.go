// Package eventlog keeps an append-only journal of committed ledger events in
// LevelDB. Every record gets a dense sequence number starting at 1 so readers
// can resume from a cursor.
package eventlog

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/lulo-labs/lulo-sc/core/events"
)

const (
	// DefaultReadLimit caps Read when the caller does not supply a limit.
	DefaultReadLimit = 100
	// MaxReadLimit is the largest page Read returns.
	MaxReadLimit = 1000
)

var (
	recordPrefix = []byte("evt/")

	ErrClosed = errors.New("eventlog: journal closed")
)

// Journal is safe for concurrent use.
type Journal struct {
	db *leveldb.DB

	mu     sync.Mutex
	next   uint64
	closed bool
	subs   map[int]chan events.Committed
	subID  int
}

// Open opens or creates a journal stored in dir.
func Open(dir string) (*Journal, error) {
	db, err := leveldb.OpenFile(dir, &opt.Options{})
	if err != nil {
		return nil, fmt.Errorf("eventlog: open %s: %w", dir, err)
	}
	return newJournal(db)
}

// OpenMemory returns a journal that lives only in memory.
func OpenMemory() (*Journal, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, err
	}
	return newJournal(db)
}

func newJournal(db *leveldb.DB) (*Journal, error) {
	j := &Journal{db: db, next: 1, subs: make(map[int]chan events.Committed)}
	iter := db.NewIterator(util.BytesPrefix(recordPrefix), nil)
	if iter.Last() {
		j.next = binary.BigEndian.Uint64(iter.Key()[len(recordPrefix):]) + 1
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

func recordKey(seq uint64) []byte {
	key := make([]byte, len(recordPrefix)+8)
	copy(key, recordPrefix)
	binary.BigEndian.PutUint64(key[len(recordPrefix):], seq)
	return key
}

// HandleCommitted appends records in order, assigns their sequence numbers
// and forwards them to live subscribers.
func (j *Journal) HandleCommitted(records []events.Committed) error {
	if len(records) == 0 {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return ErrClosed
	}
	batch := new(leveldb.Batch)
	stamped := make([]events.Committed, len(records))
	for i, rec := range records {
		rec.Sequence = j.next + uint64(i)
		encoded, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("eventlog: encode record: %w", err)
		}
		batch.Put(recordKey(rec.Sequence), encoded)
		stamped[i] = rec
	}
	if err := j.db.Write(batch, &opt.WriteOptions{Sync: true}); err != nil {
		return fmt.Errorf("eventlog: append: %w", err)
	}
	j.next += uint64(len(records))
	for id, ch := range j.subs {
		for _, rec := range stamped {
			select {
			case ch <- rec:
			default:
				// Slow subscriber; it resumes from the journal by cursor.
				close(ch)
				delete(j.subs, id)
			}
			if _, ok := j.subs[id]; !ok {
				break
			}
		}
	}
	return nil
}

// Read returns up to limit records with a sequence of at least cursor,
// together with the cursor of the following page.
func (j *Journal) Read(cursor uint64, limit int) ([]events.Committed, uint64, error) {
	if limit <= 0 {
		limit = DefaultReadLimit
	}
	if limit > MaxReadLimit {
		limit = MaxReadLimit
	}
	if cursor == 0 {
		cursor = 1
	}
	rng := util.BytesPrefix(recordPrefix)
	rng.Start = recordKey(cursor)
	iter := j.db.NewIterator(rng, nil)
	defer iter.Release()
	out := make([]events.Committed, 0, limit)
	next := cursor
	for len(out) < limit && iter.Next() {
		var rec events.Committed
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			return nil, cursor, fmt.Errorf("eventlog: decode record: %w", err)
		}
		out = append(out, rec)
		next = rec.Sequence + 1
	}
	if err := iter.Error(); err != nil {
		if errors.Is(err, leveldb.ErrClosed) {
			return nil, cursor, ErrClosed
		}
		return nil, cursor, err
	}
	return out, next, nil
}

// Head returns the sequence the next appended record will receive.
func (j *Journal) Head() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.next
}

// Subscribe registers a live subscriber. The channel is closed when the
// subscriber falls behind by more than buffer records, when cancel is called
// or when the journal closes.
func (j *Journal) Subscribe(buffer int) (<-chan events.Committed, uint64, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan events.Committed, buffer)
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		close(ch)
		return ch, j.next, func() {}
	}
	id := j.subID
	j.subID++
	j.subs[id] = ch
	cancel := func() {
		j.mu.Lock()
		defer j.mu.Unlock()
		if existing, ok := j.subs[id]; ok {
			close(existing)
			delete(j.subs, id)
		}
	}
	return ch, j.next, cancel
}

// Close closes every subscriber and the underlying database.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true
	for id, ch := range j.subs {
		close(ch)
		delete(j.subs, id)
	}
	return j.db.Close()
}
