// Package reference owns the ground-truth answers used for grading: the
// persistent Reference Cache and the LLM-backed generator that fills it.
package reference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"finbench/internal/corpus"
	"finbench/internal/domain/benchmark"
	"finbench/internal/logging"
	"finbench/internal/observability"
)

// CacheVersion is the on-disk format version. A file with any other version
// is moved aside on open.
const CacheVersion = "1.0.0"

// Key addresses one reference answer.
type Key struct {
	Year      int
	CompanyID string
	Task      benchmark.TaskID
}

// NewKey builds the cache key for a document and task.
func NewKey(doc corpus.DocumentKey, task benchmark.TaskID) Key {
	return Key{Year: doc.Year, CompanyID: corpus.NormalizeCompanyID(doc.CompanyID), Task: task}
}

// String renders the persisted composite key "<year>_<company_id>_<task>".
func (k Key) String() string {
	return fmt.Sprintf("%d_%s_%s", k.Year, corpus.NormalizeCompanyID(k.CompanyID), k.Task)
}

// GenerateFunc produces a reference answer on a cache miss.
type GenerateFunc func(ctx context.Context) (benchmark.Answer, error)

type storedEntry struct {
	Data      benchmark.Answer `json:"data"`
	CachedAt  time.Time        `json:"cached_at"`
	CompanyID string           `json:"company_id"`
	Year      int              `json:"year"`
	Task      benchmark.TaskID `json:"task"`
}

type cacheFile struct {
	CacheVersion string                     `json:"cache_version"`
	CreatedAt    time.Time                  `json:"created_at"`
	LastUpdated  time.Time                  `json:"last_updated"`
	Model        string                     `json:"model,omitempty"`
	Entries      map[string]json.RawMessage `json:"entries"`
}

// Store is the persistent Reference Cache. Reads are served from memory;
// every new entry is written to disk atomically before any caller sees it.
// Generation is serialized per key and unrelated keys proceed in parallel.
type Store struct {
	path string

	mu          sync.RWMutex
	entries     map[string]storedEntry
	createdAt   time.Time
	lastUpdated time.Time
	model       string

	// writeMu serializes snapshot+write+publish so no entry is lost between
	// concurrent writers.
	writeMu sync.Mutex
	flights singleflight.Group

	generationTimeout time.Duration
	configuredModel   string
	logger            logging.Logger
	metrics           *observability.MetricsCollector
	now               func() time.Time

	hits        atomic.Int64
	misses      atomic.Int64
	generations atomic.Int64
	failures    atomic.Int64
	corruptions atomic.Int64
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(logger logging.Logger) Option {
	return func(s *Store) { s.logger = logging.OrNop(logger) }
}

// WithMetrics records lookups and generations.
func WithMetrics(m *observability.MetricsCollector) Option {
	return func(s *Store) { s.metrics = m }
}

// WithModel records the generator model that fills the cache.
func WithModel(model string) Option {
	return func(s *Store) { s.configuredModel = model }
}

// WithGenerationTimeout bounds a detached generation. Zero means unbounded.
func WithGenerationTimeout(d time.Duration) Option {
	return func(s *Store) { s.generationTimeout = d }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Open loads the cache at path, creating its directory if needed. An
// unreadable file or a version mismatch is renamed to "<path>.backup" and the
// cache starts empty; individual entries failing validation are dropped.
func Open(path string, opts ...Option) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("reference cache path is required")
	}
	s := &Store{
		path:    path,
		entries: make(map[string]storedEntry),
		logger:  logging.NewComponentLogger("ReferenceCache"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	if s.model == "" {
		s.model = s.configuredModel
	} else if s.configuredModel != "" && s.configuredModel != s.model {
		s.logger.Warn("reference cache %s was populated by model %s; configured model is %s, stored answers are kept", path, s.model, s.configuredModel)
	}
	return s, nil
}

func (s *Store) load() error {
	s.createdAt = s.now().UTC()
	s.lastUpdated = s.createdAt

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read reference cache: %w", err)
	}

	var file cacheFile
	if err := json.Unmarshal(data, &file); err != nil {
		return s.moveAside(fmt.Sprintf("unparsable cache file: %v", err))
	}
	if file.CacheVersion != CacheVersion {
		return s.moveAside(fmt.Sprintf("cache version %q, want %q", file.CacheVersion, CacheVersion))
	}

	if !file.CreatedAt.IsZero() {
		s.createdAt = file.CreatedAt
	}
	if !file.LastUpdated.IsZero() {
		s.lastUpdated = file.LastUpdated
	}
	s.model = file.Model

	for key, raw := range file.Entries {
		entry, err := decodeEntry(key, raw)
		if err != nil {
			if !IsCorruption(err) {
				return fmt.Errorf("load reference cache entry %s: %w", key, err)
			}
			s.corruptions.Add(1)
			s.logger.Warn("dropping reference cache entry %s: %v", key, err)
			continue
		}
		s.entries[key] = entry
	}
	s.logger.Info("loaded %d reference answers from %s", len(s.entries), s.path)
	return nil
}

func decodeEntry(key string, raw json.RawMessage) (storedEntry, error) {
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return storedEntry{}, benchmark.NewError(benchmark.KindCacheCorruption, "", err)
	}
	if err := benchmark.ValidateAnswerJSON(envelope.Data); err != nil {
		return storedEntry{}, benchmark.NewError(benchmark.KindCacheCorruption, "", err)
	}
	var entry storedEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return storedEntry{}, benchmark.NewError(benchmark.KindCacheCorruption, "", err)
	}
	want := Key{Year: entry.Year, CompanyID: entry.CompanyID, Task: entry.Data.Task}.String()
	if want != key {
		return storedEntry{}, benchmark.NewError(benchmark.KindCacheCorruption, entry.Data.Task,
			fmt.Errorf("entry metadata addresses %s", want))
	}
	if err := entry.Data.Validate(); err != nil {
		return storedEntry{}, benchmark.NewError(benchmark.KindCacheCorruption, entry.Data.Task, err)
	}
	return entry, nil
}

func (s *Store) moveAside(reason string) error {
	backup := s.path + ".backup"
	if err := os.Rename(s.path, backup); err != nil {
		return fmt.Errorf("move corrupt reference cache aside: %w", err)
	}
	s.corruptions.Add(1)
	s.logger.Warn("reference cache %s reset (%s); previous file kept at %s", s.path, reason, backup)
	return nil
}

// Path returns the backing file.
func (s *Store) Path() string { return s.path }

// Get returns the stored answer for key without generating.
func (s *Store) Get(key Key) (benchmark.Answer, bool) {
	s.mu.RLock()
	entry, ok := s.entries[key.String()]
	s.mu.RUnlock()
	if !ok {
		return benchmark.Answer{}, false
	}
	return entry.Data.Clone(), true
}

// GetOrCreate returns the answer stored for key, generating it on a miss.
// Concurrent callers for one key share a single generation and all receive
// its result. A failed or invalid generation stores nothing, so the next
// call starts over. Generation is detached from the caller's cancellation;
// a cancelled caller returns ctx.Err() while the generation completes for
// everyone else.
func (s *Store) GetOrCreate(ctx context.Context, key Key, generate GenerateFunc) (benchmark.Answer, error) {
	if err := ctx.Err(); err != nil {
		return benchmark.Answer{}, err
	}
	if !key.Task.Valid() {
		return benchmark.Answer{}, fmt.Errorf("unknown task %q", key.Task)
	}
	if answer, ok := s.Get(key); ok {
		s.hits.Add(1)
		s.metrics.RecordCacheLookup(ctx, string(key.Task), "hit")
		return answer, nil
	}
	s.misses.Add(1)
	s.metrics.RecordCacheLookup(ctx, string(key.Task), "miss")

	ch := s.flights.DoChan(key.String(), func() (any, error) {
		// Another flight may have stored the key between our miss and now.
		if answer, ok := s.Get(key); ok {
			return answer, nil
		}
		return s.generate(ctx, key, generate)
	})

	select {
	case <-ctx.Done():
		return benchmark.Answer{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return benchmark.Answer{}, res.Err
		}
		return res.Val.(benchmark.Answer).Clone(), nil
	}
}

func (s *Store) generate(callerCtx context.Context, key Key, generate GenerateFunc) (benchmark.Answer, error) {
	ctx := context.WithoutCancel(callerCtx)
	if s.generationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.generationTimeout)
		defer cancel()
	}
	logger := logging.FromContext(ctx, s.logger)

	start := s.now()
	s.generations.Add(1)
	answer, err := generate(ctx)
	latency := s.now().Sub(start)
	if err == nil {
		answer, err = s.admit(key, answer)
	}
	if err != nil {
		s.failures.Add(1)
		s.metrics.RecordGeneration(ctx, string(key.Task), "error", latency)
		logger.Warn("reference generation for %s failed after %s: %v", key, latency.Round(time.Millisecond), err)
		return benchmark.Answer{}, err
	}
	if err := s.put(key, answer); err != nil {
		s.metrics.RecordGeneration(ctx, string(key.Task), "error", latency)
		return benchmark.Answer{}, err
	}
	s.metrics.RecordGeneration(ctx, string(key.Task), "ok", latency)
	logger.Info("stored reference answer %s (%s)", key, latency.Round(time.Millisecond))
	return answer, nil
}

// admit normalizes and validates a freshly generated answer.
func (s *Store) admit(key Key, answer benchmark.Answer) (benchmark.Answer, error) {
	answer = answer.Normalized()
	if answer.Task != key.Task {
		return benchmark.Answer{}, benchmark.NewError(benchmark.KindGenerationFailure, key.Task,
			fmt.Errorf("generator returned an answer for %q", answer.Task))
	}
	if err := benchmark.ValidateAnswer(answer); err != nil {
		return benchmark.Answer{}, benchmark.NewError(benchmark.KindGenerationFailure, key.Task, err)
	}
	return answer, nil
}

// put persists the entry, then publishes it to readers.
func (s *Store) put(key Key, answer benchmark.Answer) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	now := s.now().UTC()
	entry := storedEntry{
		Data:      answer,
		CachedAt:  now,
		CompanyID: corpus.NormalizeCompanyID(key.CompanyID),
		Year:      key.Year,
		Task:      key.Task,
	}

	s.mu.RLock()
	next := make(map[string]storedEntry, len(s.entries)+1)
	for k, v := range s.entries {
		next[k] = v
	}
	createdAt, model := s.createdAt, s.model
	s.mu.RUnlock()
	next[key.String()] = entry

	if err := s.writeFile(next, createdAt, now, model); err != nil {
		return err
	}

	s.mu.Lock()
	s.entries[key.String()] = entry
	s.lastUpdated = now
	s.mu.Unlock()
	return nil
}

func (s *Store) writeFile(entries map[string]storedEntry, createdAt, updated time.Time, model string) error {
	file := cacheFile{
		CacheVersion: CacheVersion,
		CreatedAt:    createdAt,
		LastUpdated:  updated,
		Model:        model,
		Entries:      make(map[string]json.RawMessage, len(entries)),
	}
	for k, entry := range entries {
		raw, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("encode reference entry %s: %w", k, err)
		}
		file.Entries[k] = raw
	}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("encode reference cache: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create reference cache temp file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write reference cache: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync reference cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close reference cache: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		cleanup()
		return fmt.Errorf("chmod reference cache: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		cleanup()
		return fmt.Errorf("replace reference cache: %w", err)
	}
	return nil
}

// Filter selects entries for invalidation. Zero fields match everything.
type Filter struct {
	Year      int
	CompanyID string
	Task      benchmark.TaskID
}

func (f Filter) matches(e storedEntry) bool {
	if f.Year != 0 && f.Year != e.Year {
		return false
	}
	if f.CompanyID != "" && corpus.NormalizeCompanyID(f.CompanyID) != e.CompanyID {
		return false
	}
	if f.Task != "" && f.Task != e.Task {
		return false
	}
	return true
}

// Invalidate removes matching entries and rewrites the file. It returns the
// number of entries removed.
func (s *Store) Invalidate(filter Filter) (int, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	next := make(map[string]storedEntry, len(s.entries))
	removed := 0
	for k, v := range s.entries {
		if filter.matches(v) {
			removed++
			continue
		}
		next[k] = v
	}
	createdAt, model := s.createdAt, s.model
	s.mu.RUnlock()

	if removed == 0 {
		return 0, nil
	}
	now := s.now().UTC()
	if err := s.writeFile(next, createdAt, now, model); err != nil {
		return 0, err
	}

	s.mu.Lock()
	s.entries = next
	s.lastUpdated = now
	s.mu.Unlock()
	s.logger.Info("invalidated %d reference answers", removed)
	return removed, nil
}

// Stats summarizes the cache contents and lifetime counters.
type Stats struct {
	Path         string                   `json:"path" yaml:"path"`
	Version      string                   `json:"cache_version" yaml:"cache_version"`
	Model        string                   `json:"model" yaml:"model"`
	CreatedAt    time.Time                `json:"created_at" yaml:"created_at"`
	LastUpdated  time.Time                `json:"last_updated" yaml:"last_updated"`
	TotalEntries int                      `json:"total_entries" yaml:"total_entries"`
	ByTask       map[benchmark.TaskID]int `json:"by_task" yaml:"by_task"`
	Years        []int                    `json:"years" yaml:"years"`
	Hits         int64                    `json:"hits" yaml:"hits"`
	Misses       int64                    `json:"misses" yaml:"misses"`
	Generations  int64                    `json:"generations" yaml:"generations"`
	Failures     int64                    `json:"generation_failures" yaml:"generation_failures"`
	Corruptions  int64                    `json:"corruptions" yaml:"corruptions"`
}

// Stats returns a snapshot of the cache.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{
		Path:         s.path,
		Version:      CacheVersion,
		Model:        s.model,
		CreatedAt:    s.createdAt,
		LastUpdated:  s.lastUpdated,
		TotalEntries: len(s.entries),
		ByTask:       make(map[benchmark.TaskID]int, len(benchmark.AllTasks)),
		Hits:         s.hits.Load(),
		Misses:       s.misses.Load(),
		Generations:  s.generations.Load(),
		Failures:     s.failures.Load(),
		Corruptions:  s.corruptions.Load(),
	}
	years := make(map[int]struct{})
	for _, e := range s.entries {
		st.ByTask[e.Task]++
		years[e.Year] = struct{}{}
	}
	for y := range years {
		st.Years = append(st.Years, y)
	}
	sort.Ints(st.Years)
	return st
}

// IsCorruption reports whether err marks a cache entry that failed validation.
func IsCorruption(err error) bool {
	return errors.Is(err, benchmark.ErrCacheCorruption)
}
