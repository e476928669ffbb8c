// Package bolt persists the vector index in a bbolt database file inside a
// directory. Records are JSON values keyed by a big-endian sequence number,
// so cursor order is insertion order.
package bolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"go.etcd.io/bbolt"

	"chatpdf/internal/domain"
	"chatpdf/internal/vectorstore"
)

// FileName is the database file created inside the persist directory.
const FileName = "index.db"

var (
	bucketMeta    = []byte("meta")
	bucketVectors = []byte("vectors")
	keyDimension  = []byte("dimension")
)

// Config configures the bolt storage.
type Config struct {
	Dir         string
	OpenTimeout time.Duration
}

// Storage implements vectorstore.Storage on bbolt.
type Storage struct {
	dir     string
	timeout time.Duration

	mu sync.Mutex
	db *bbolt.DB
}

func NewStorage(cfg Config) *Storage {
	timeout := cfg.OpenTimeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &Storage{dir: cfg.Dir, timeout: timeout}
}

func (s *Storage) path() string { return filepath.Join(s.dir, FileName) }

// handle returns the open database, opening it first. With create unset a
// missing file yields vectorstore.ErrNotFound.
func (s *Storage) handle(create bool) (*bbolt.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return s.db, nil
	}
	if !create {
		if _, err := os.Stat(s.path()); errors.Is(err, os.ErrNotExist) {
			return nil, vectorstore.ErrNotFound
		}
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, err
	}
	db, err := bbolt.Open(s.path(), 0o600, &bbolt.Options{Timeout: s.timeout})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.path(), err)
	}
	s.db = db
	return db, nil
}

func (s *Storage) Open(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	db, err := s.handle(true)
	if err != nil {
		return err
	}
	return db.Update(func(tx *bbolt.Tx) error {
		meta, err := tx.CreateBucketIfNotExists(bucketMeta)
		if err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(bucketVectors); err != nil {
			return err
		}
		if v := meta.Get(keyDimension); v != nil {
			existing, err := strconv.Atoi(string(v))
			if err != nil {
				return fmt.Errorf("corrupt dimension %q: %w", v, err)
			}
			if existing != dimension {
				return fmt.Errorf("%w: index has %d, got %d", domain.ErrDimensionMismatch, existing, dimension)
			}
			return nil
		}
		return meta.Put(keyDimension, []byte(strconv.Itoa(dimension)))
	})
}

func (s *Storage) Attach(_ context.Context) (int, error) {
	db, err := s.handle(false)
	if err != nil {
		return 0, err
	}
	var dim int
	err = db.View(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		if meta == nil {
			return vectorstore.ErrNotFound
		}
		v := meta.Get(keyDimension)
		if v == nil {
			return vectorstore.ErrNotFound
		}
		d, perr := strconv.Atoi(string(v))
		dim = d
		return perr
	})
	return dim, err
}

// Exists reports whether the directory holds at least one vector. It
// neither creates anything nor keeps a closed storage open.
func (s *Storage) Exists(_ context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	db := s.db
	if db == nil {
		if _, err := os.Stat(s.path()); errors.Is(err, os.ErrNotExist) {
			return false, nil
		} else if err != nil {
			return false, err
		}
		ro, err := bbolt.Open(s.path(), 0o600, &bbolt.Options{ReadOnly: true, Timeout: s.timeout})
		if err != nil {
			return false, fmt.Errorf("open %s: %w", s.path(), err)
		}
		defer ro.Close()
		db = ro
	}
	var exists bool
	err := db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketVectors)
		if b == nil {
			return nil
		}
		k, _ := b.Cursor().First()
		exists = k != nil
		return nil
	})
	return exists, err
}

// Append writes all records in a single transaction.
func (s *Storage) Append(_ context.Context, records []domain.IndexedVector) error {
	db, err := s.handle(false)
	if err != nil {
		return err
	}
	return db.Update(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		b := tx.Bucket(bucketVectors)
		if meta == nil || b == nil {
			return errors.New("storage not opened")
		}
		dim, err := strconv.Atoi(string(meta.Get(keyDimension)))
		if err != nil {
			return fmt.Errorf("corrupt dimension: %w", err)
		}
		for _, r := range records {
			if len(r.Embedding) != dim {
				return fmt.Errorf("%w: index has %d, got %d", domain.ErrDimensionMismatch, dim, len(r.Embedding))
			}
			seq, err := b.NextSequence()
			if err != nil {
				return err
			}
			data, err := json.Marshal(r)
			if err != nil {
				return err
			}
			if err := b.Put(seqKey(seq), data); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Storage) Search(ctx context.Context, vector []float64, topK int, threshold float64) ([]domain.SearchResult, error) {
	db, err := s.handle(false)
	if err != nil {
		return nil, err
	}
	ranker := vectorstore.NewRanker(vector, threshold)
	err = db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketVectors)
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			var r domain.IndexedVector
			if err := json.Unmarshal(v, &r); err != nil {
				return err
			}
			ranker.Add(r.Chunk, r.Embedding)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return ranker.Top(topK), nil
}

// Clear drops every vector and the recorded dimension.
func (s *Storage) Clear(_ context.Context) error {
	db, err := s.handle(false)
	if errors.Is(err, vectorstore.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketVectors, bucketMeta} {
			if tx.Bucket(name) == nil {
				continue
			}
			if err := tx.DeleteBucket(name); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func seqKey(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)
	return k
}
