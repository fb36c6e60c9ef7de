// Package store queues crash entries that could not be delivered so they
// can be sent later.
package store

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/sthembisoo/raygun4go/raygun/messages"
)

const (
	DefaultMaxEntries  = 64
	DefaultMaxAttempts = 5
	DefaultConcurrency = 4

	entryPrefix = "entry:"
	sequenceKey = "seq:entry"
	// Sequence numbers leased from badger per batch.
	sequenceBandwidth = 64
)

var (
	ErrFull     = errors.New("store is full")
	ErrNotFound = errors.New("entry not found")
)

// Entry is one queued crash entry.
type Entry struct {
	ID       string
	SavedAt  time.Time
	Attempts int
	Message  *messages.Message

	payload []byte
}

// record is the stored form of an Entry; the message is kept as zstd
// compressed JSON, exactly what is posted to the API.
type record struct {
	SavedAt  time.Time `msgpack:"saved_at"`
	Attempts int       `msgpack:"attempts"`
	Payload  []byte    `msgpack:"payload"`
}

// Store is a badger backed queue of entries, ordered by insertion.
type Store struct {
	db     *badger.DB
	seq    *badger.Sequence
	log    logrus.FieldLogger
	saveMu sync.Mutex

	maxEntries  int
	maxAttempts int
	concurrency int
}

type Option func(*Store)

func WithMaxEntries(n int) Option  { return func(s *Store) { s.maxEntries = n } }
func WithMaxAttempts(n int) Option { return func(s *Store) { s.maxAttempts = n } }
func WithConcurrency(n int) Option { return func(s *Store) { s.concurrency = n } }

func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Store) { s.log = l }
}

// Open opens or creates the store in dir.
func Open(dir string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir failed: %w", err)
	}
	return open(badger.DefaultOptions(dir), opts...)
}

// OpenInMemory opens a store that is lost when closed.
func OpenInMemory(opts ...Option) (*Store, error) {
	return open(badger.DefaultOptions("").WithInMemory(true), opts...)
}

func open(dbOpts badger.Options, opts ...Option) (*Store, error) {
	dbOpts = dbOpts.
		WithCompression(options.None). // payloads are compressed already
		WithNumMemtables(2).
		WithMemTableSize(8 << 20).
		WithValueLogFileSize(16 << 20).
		WithLoggingLevel(badger.ERROR).
		WithMetricsEnabled(false)

	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("open store db failed: %w", err)
	}
	seq, err := db.GetSequence([]byte(sequenceKey), sequenceBandwidth)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open store sequence failed: %w", err)
	}

	s := &Store{
		db:          db,
		seq:         seq,
		log:         logrus.StandardLogger(),
		maxEntries:  DefaultMaxEntries,
		maxAttempts: DefaultMaxAttempts,
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Store) Close() error {
	if err := s.seq.Release(); err != nil {
		_ = s.db.Close()
		return fmt.Errorf("release store sequence failed: %w", err)
	}
	return s.db.Close()
}

// Save queues msg and returns its id.
func (s *Store) Save(msg *messages.Message) (string, error) {
	payload, err := encodeMessage(msg)
	if err != nil {
		return "", err
	}
	blob, err := encodeRecord(record{SavedAt: time.Now().UTC(), Payload: payload})
	if err != nil {
		return "", err
	}

	// Badger does not detect phantom inserts, so the count and the insert
	// are serialized here.
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	var id string
	err = s.db.Update(func(txn *badger.Txn) error {
		queued := countKeys(txn, []byte(entryPrefix))
		if s.maxEntries > 0 && queued >= s.maxEntries {
			return fmt.Errorf("%w: %d entries queued", ErrFull, queued)
		}

		n, err := s.seq.Next()
		if err != nil {
			return fmt.Errorf("failed to allocate entry id: %w", err)
		}
		// Zero padded hex keeps badger's key order equal to insertion order.
		id = fmt.Sprintf("%016x", n)
		return txn.Set([]byte(entryPrefix+id), blob)
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func encodeRecord(rec record) ([]byte, error) {
	blob, err := msgpack.Marshal(&rec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode entry: %w", err)
	}
	return blob, nil
}

func (s *Store) put(id string, rec record) error {
	blob, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(entryPrefix+id), blob)
	})
}

func countKeys(txn *badger.Txn, prefix []byte) int {
	itOpts := badger.DefaultIteratorOptions
	itOpts.PrefetchValues = false
	it := txn.NewIterator(itOpts)
	defer it.Close()

	n := 0
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		n++
	}
	return n
}

// Load returns the entry with the given id.
func (s *Store) Load(id string) (*Entry, error) {
	var blob []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(entryPrefix + id))
		if err != nil {
			return err
		}
		blob, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	} else if err != nil {
		return nil, fmt.Errorf("failed to read entry %s: %w", id, err)
	}

	var rec record
	if err := msgpack.Unmarshal(blob, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode entry %s: %w", id, err)
	}
	msg, err := decodeMessage(rec.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode entry %s: %w", id, err)
	}
	return &Entry{ID: id, SavedAt: rec.SavedAt, Attempts: rec.Attempts, Message: msg, payload: rec.Payload}, nil
}

// Delete removes an entry. Deleting a missing entry is not an error.
func (s *Store) Delete(id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(entryPrefix + id))
	})
}

// IDs lists queued entries, oldest first.
func (s *Store) IDs() ([]string, error) {
	var ids []string
	prefix := []byte(entryPrefix)
	err := s.db.View(func(txn *badger.Txn) error {
		itOpts := badger.DefaultIteratorOptions
		itOpts.PrefetchValues = false
		it := txn.NewIterator(itOpts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			ids = append(ids, string(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	return ids, nil
}

// recordAttempt bumps the attempt count of an entry, returning the new count.
func (s *Store) recordAttempt(e *Entry) (int, error) {
	e.Attempts++
	return e.Attempts, s.put(e.ID, record{SavedAt: e.SavedAt, Attempts: e.Attempts, Payload: e.payload})
}
