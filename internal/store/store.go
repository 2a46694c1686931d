// Gazetteer - Diaspora Place and Event Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gazetteer

// Package store implements the named cache store: one durable JSON blob
// per cache name under a single directory, fronted by the in-memory hot
// layer. The store treats record payloads as opaque JSON so each domain
// decodes into its own record type.
package store

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/gazetteer/internal/cache"
	"github.com/tomtom215/gazetteer/internal/logging"
	"github.com/tomtom215/gazetteer/internal/metrics"
)

// Entry is one named cache blob: the raw record payload plus when it
// was fetched from the providers.
type Entry struct {
	FetchedAt time.Time       `json:"fetched_at"`
	Records   json.RawMessage `json:"records"`
}

// Store persists named record sets to disk with an in-memory hot layer.
//
// Concurrency contract: concurrent writers to the same name are
// last-writer-wins at whole-blob granularity. Writes are atomic
// (temp file + rename) so a reader never observes a partial blob.
type Store struct {
	dir string
	ttl time.Duration
	hot cache.Cacher
	log zerolog.Logger

	// mu serializes writes per store. Reads go through the hot layer
	// or the filesystem and need no lock.
	mu sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithHotLayer replaces the default hot layer. Used in tests.
func WithHotLayer(c cache.Cacher) Option {
	return func(s *Store) { s.hot = c }
}

// New creates a store rooted at dir. The directory is created on first
// write, not here, so a read-only deployment can still serve an
// existing cache.
func New(dir string, ttl, hotTTL time.Duration, opts ...Option) *Store {
	s := &Store{
		dir: dir,
		ttl: ttl,
		hot: cache.New(hotTTL),
		log: logging.WithComponent("store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// path returns the blob path for a cache name.
func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name+".json")
}

// Read returns the entry for name, or ok=false on a miss.
//
// A missing file, an unreadable file, and a corrupt blob all read as a
// miss: the cache is an optimization, never a source of failure.
func (s *Store) Read(name string) (*Entry, bool) {
	if v, ok := s.hot.Get(name); ok {
		if entry, ok := v.(*Entry); ok {
			metrics.RecordCacheHit(name)
			return entry, true
		}
	}

	entry, ok := s.readFile(name)
	if !ok {
		metrics.RecordCacheMiss(name)
		return nil, false
	}

	s.hot.Set(name, entry)
	metrics.RecordCacheHit(name)
	return entry, true
}

// readFile loads and decodes the durable blob for name.
func (s *Store) readFile(name string) (*Entry, bool) {
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn().Err(err).Str("cache", name).Msg("Cache file unreadable, treating as miss")
		}
		return nil, false
	}

	entry := &Entry{}
	if err := json.Unmarshal(data, entry); err == nil && entry.Records != nil {
		return entry, true
	}

	// Legacy blobs are a bare record array with no fetch timestamp.
	// Accept them but report a zero FetchedAt so they read as stale.
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var records json.RawMessage
		if err := json.Unmarshal(data, &records); err == nil {
			return &Entry{Records: records}, true
		}
	}

	s.log.Warn().Str("cache", name).Msg("Cache file corrupt, treating as miss")
	return nil, false
}

// ReadRecords reads the entry for name and decodes its records into out.
// A decode failure counts as corruption and reads as a miss.
func (s *Store) ReadRecords(name string, out interface{}) (time.Time, bool) {
	entry, ok := s.Read(name)
	if !ok {
		return time.Time{}, false
	}
	if err := json.Unmarshal(entry.Records, out); err != nil {
		s.log.Warn().Err(err).Str("cache", name).Msg("Cache records undecodable, treating as miss")
		return time.Time{}, false
	}
	return entry.FetchedAt, true
}

// Write replaces the blob for name with the given records, stamped now.
// The whole previous record set is overwritten.
func (s *Store) Write(name string, records interface{}) error {
	payload, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("marshal records for %s: %w", name, err)
	}

	entry := &Entry{
		FetchedAt: time.Now().UTC(),
		Records:   payload,
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal cache entry for %s: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	// Write to a temp file in the same directory, then rename.
	// Rename is atomic on the same filesystem, so readers see either
	// the old blob or the new one, never a partial write.
	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", name, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file for %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file for %s: %w", name, err)
	}
	if err := os.Rename(tmpName, s.path(name)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp file for %s: %w", name, err)
	}

	s.hot.Set(name, entry)
	metrics.RecordCacheWrite(name, len(data))

	s.log.Info().Str("cache", name).Int("bytes", len(data)).Msg("Cache blob written")
	return nil
}

// Stale reports whether an entry is older than the store TTL.
// Stale entries are still served; the scheduler refreshes them.
func (s *Store) Stale(entry *Entry) bool {
	if s.ttl <= 0 {
		return false
	}
	return time.Since(entry.FetchedAt) > s.ttl
}

// Invalidate drops the hot-layer copy of name. The durable blob stays.
func (s *Store) Invalidate(name string) {
	s.hot.Delete(name)
}

// Preload warms the hot layer with the named blobs. Startup calls this
// explicitly so first requests don't pay the file-read cost. Missing
// or corrupt blobs are logged and skipped.
func (s *Store) Preload(names ...string) {
	for _, name := range names {
		entry, ok := s.readFile(name)
		if !ok {
			s.log.Info().Str("cache", name).Msg("Preload: no usable blob")
			continue
		}
		s.hot.Set(name, entry)
		s.log.Info().
			Str("cache", name).
			Time("fetched_at", entry.FetchedAt).
			Bool("stale", s.Stale(entry)).
			Msg("Preload: blob loaded")
	}
}

// HotStats exposes hot layer statistics for the health endpoint.
func (s *Store) HotStats() cache.Stats {
	return s.hot.GetStats()
}
