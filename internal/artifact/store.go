// Creditline - Credit Report Retrieval Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/creditline

// Package artifact holds downloaded report files for the lifetime of a
// client session.
//
// Files are kept in an in-memory BadgerDB instance, sealed with AES-256-GCM
// and written with a TTL as a run of chunks no larger than chunkSize, since
// in-memory badger rejects values over 1 MiB. Callers receive a *Handle and must Release it when
// the file is no longer displayed; the store releases anything left over on
// TTL expiry (Sweep) and on Close.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tomtom215/creditline/internal/logging"
	"github.com/tomtom215/creditline/internal/metrics"
)

const (
	keyPrefix = "artifact:"

	// chunkSize bounds each stored value.
	chunkSize = 512 << 10
)

// Release reasons, used as metric labels.
const (
	ReasonReplaced = "replaced"
	ReasonDeleted  = "deleted"
	ReasonExpired  = "expired"
	ReasonShutdown = "shutdown"
)

var (
	// ErrNotFound is returned for released or expired artifacts.
	ErrNotFound = errors.New("artifact: not found")

	// ErrTooLarge is returned when an artifact exceeds MaxBytes.
	ErrTooLarge = errors.New("artifact: exceeds size limit")

	// ErrStoreClosed is returned after Close.
	ErrStoreClosed = errors.New("artifact: store is closed")
)

// Meta describes a stored file.
type Meta struct {
	ContentType string `json:"content_type"`
	Filename    string `json:"filename"`
}

// Options configures a Store.
type Options struct {
	TTL           time.Duration
	MaxBytes      int64
	SealingSecret string
}

// Store is an in-memory, TTL-bounded artifact store.
type Store struct {
	db       *badger.DB
	sealer   *sealer
	ttl      time.Duration
	maxBytes int64

	mu      sync.Mutex
	handles map[string]*Handle
	closed  bool
}

// Open creates a Store backed by an in-memory BadgerDB.
func Open(opts Options) (*Store, error) {
	if opts.TTL <= 0 {
		opts.TTL = time.Hour
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = 50 << 20
	}

	s, err := newSealer(opts.SealingSecret)
	if err != nil {
		return nil, err
	}

	dbOpts := badger.DefaultOptions("").
		WithInMemory(true).
		WithLogger(badgerLogger{logging.WithComponent("artifact-store")})
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("open artifact store: %w", err)
	}

	return &Store{
		db:       db,
		sealer:   s,
		ttl:      opts.TTL,
		maxBytes: opts.MaxBytes,
		handles:  make(map[string]*Handle),
	}, nil
}

// Put seals and stores data, returning a handle that expires after the TTL.
func (s *Store) Put(ctx context.Context, data []byte, meta Meta) (*Handle, error) {
	if int64(len(data)) > s.maxBytes {
		return nil, fmt.Errorf("%w: %d bytes (limit %d)", ErrTooLarge, len(data), s.maxBytes)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	id := uuid.NewString()
	sealed, err := s.sealer.seal(id, data)
	if err != nil {
		return nil, err
	}

	chunks, err := s.writeChunks(id, sealed)
	if err != nil {
		return nil, err
	}

	h := &Handle{
		ID:        id,
		Meta:      meta,
		Size:      len(data),
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(s.ttl),
		store:     s,
		chunks:    chunks,
	}
	s.handles[id] = h
	metrics.RecordArtifactStored(len(data))

	logging.Ctx(ctx).Debug().Str("artifact_id", id).Int("bytes", len(data)).
		Str("filename", meta.Filename).Msg("Artifact stored")
	return h, nil
}

// Get returns the live handle for id.
func (s *Store) Get(id string) (*Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.handles[id]
	if !ok || h.Released() {
		return nil, ErrNotFound
	}
	return h, nil
}

// Len is the number of live handles.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handles)
}

func chunkKey(id string, n int) []byte {
	return []byte(fmt.Sprintf("%s%s:%d", keyPrefix, id, n))
}

// writeChunks stores sealed as consecutive chunks of id and returns the
// chunk count. A failed write removes whatever was already flushed.
func (s *Store) writeChunks(id string, sealed []byte) (int, error) {
	wb := s.db.NewWriteBatch()
	n := 0
	for off := 0; off < len(sealed); off += chunkSize {
		end := min(off+chunkSize, len(sealed))
		if err := wb.SetEntry(badger.NewEntry(chunkKey(id, n), sealed[off:end]).WithTTL(s.ttl)); err != nil {
			wb.Cancel()
			_ = s.deleteChunks(id, n+1)
			return 0, storeError("store artifact", err)
		}
		n++
	}
	if err := wb.Flush(); err != nil {
		_ = s.deleteChunks(id, n)
		return 0, storeError("store artifact", err)
	}
	return n, nil
}

func (s *Store) read(id string, chunks int) ([]byte, error) {
	sealed := make([]byte, 0, chunks*chunkSize)
	err := s.db.View(func(txn *badger.Txn) error {
		for n := 0; n < chunks; n++ {
			item, err := txn.Get(chunkKey(id, n))
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			if err != nil {
				return storeError("get artifact", err)
			}
			if err := item.Value(func(v []byte) error {
				sealed = append(sealed, v...)
				return nil
			}); err != nil {
				return storeError("get artifact", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.sealer.open(id, sealed)
}

func (s *Store) deleteChunks(id string, chunks int) error {
	wb := s.db.NewWriteBatch()
	for n := 0; n < chunks; n++ {
		if err := wb.Delete(chunkKey(id, n)); err != nil {
			wb.Cancel()
			return storeError("delete artifact", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return storeError("delete artifact", err)
	}
	return nil
}

// storeError wraps a badger error. Size errors carry a hex dump of the
// offending value after the first line; only that first line is kept.
func storeError(op string, err error) error {
	first, _, dump := strings.Cut(err.Error(), "\n")
	if !dump {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %s", op, strings.TrimRight(strings.TrimSpace(first), ":"))
}

// release removes id from the database and the handle index.
func (s *Store) release(id, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.releaseLocked(id, reason)
}

func (s *Store) releaseLocked(id, reason string) error {
	h, ok := s.handles[id]
	if !ok {
		return nil
	}
	delete(s.handles, id)
	metrics.RecordArtifactReleased(reason)

	if s.closed {
		return nil
	}
	return s.deleteChunks(id, h.chunks)
}

// Sweep releases every handle whose TTL has passed and returns how many
// were released.
func (s *Store) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	released := 0
	for id, h := range s.handles {
		if now.Before(h.ExpiresAt) {
			continue
		}
		h.released.Store(true)
		if err := s.releaseLocked(id, ReasonExpired); err != nil {
			logging.Warn().Err(err).Str("artifact_id", id).Msg("Failed to delete expired artifact")
		}
		released++
	}
	return released
}

// Close releases all handles and closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}

	for id, h := range s.handles {
		h.released.Store(true)
		delete(s.handles, id)
		metrics.RecordArtifactReleased(ReasonShutdown)
	}
	s.closed = true
	return s.db.Close()
}

// Handle is a reference to one stored artifact.
type Handle struct {
	ID        string    `json:"id"`
	Meta      Meta      `json:"meta"`
	Size      int       `json:"size"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`

	store    *Store
	chunks   int
	released atomic.Bool
}

// Bytes returns the unsealed file contents.
func (h *Handle) Bytes() ([]byte, error) {
	if h.Released() {
		return nil, ErrNotFound
	}
	return h.store.read(h.ID, h.chunks)
}

// Release frees the artifact. It is safe to call more than once; only the
// first call has an effect.
func (h *Handle) Release(reason string) error {
	if !h.released.CompareAndSwap(false, true) {
		return nil
	}
	return h.store.release(h.ID, reason)
}

// Released reports whether the handle has been released.
func (h *Handle) Released() bool {
	return h.released.Load()
}

// badgerLogger routes badger's printf-style logging through zerolog.
type badgerLogger struct {
	log zerolog.Logger
}

func (b badgerLogger) Errorf(format string, args ...interface{}) {
	b.log.Error().Msgf(strings.TrimSpace(format), args...)
}

func (b badgerLogger) Warningf(format string, args ...interface{}) {
	b.log.Warn().Msgf(strings.TrimSpace(format), args...)
}

func (b badgerLogger) Infof(format string, args ...interface{}) {
	b.log.Debug().Msgf(strings.TrimSpace(format), args...)
}

func (b badgerLogger) Debugf(format string, args ...interface{}) {
	b.log.Trace().Msgf(strings.TrimSpace(format), args...)
}
