// Package corpus reads pre-parsed 10-K filings laid out as
// <root>/<year>/<company_id>_<year>.json, each file a JSON object whose
// section_* keys hold section text.
package corpus

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"finbench/internal/domain/benchmark"
	"finbench/internal/logging"
)

// Accessor is the read-only view of the filing corpus.
type Accessor interface {
	// Fetch returns one section's text. It fails with benchmark.ErrDocumentNotFound
	// or benchmark.ErrSectionMissing.
	Fetch(ctx context.Context, key DocumentKey, section Section) (string, error)
	// List returns every document available for year, sorted by company id.
	List(ctx context.Context, year int) ([]DocumentKey, error)
}

// Filing is one parsed document.
type Filing struct {
	Key      DocumentKey
	Path     string
	Sections map[Section]string
}

const (
	defaultDocCacheSize    = 64
	defaultMinSectionChars = 100
)

// Option customizes a FileCorpus.
type Option func(*FileCorpus)

// WithDocCacheSize sets how many parsed filings stay in memory.
func WithDocCacheSize(n int) Option {
	return func(c *FileCorpus) {
		if n > 0 {
			c.cacheSize = n
		}
	}
}

// WithMinSectionChars sets the length below which a section counts as missing.
func WithMinSectionChars(n int) Option {
	return func(c *FileCorpus) {
		if n >= 0 {
			c.minSectionChars = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(c *FileCorpus) {
		c.logger = logging.OrNop(logger)
	}
}

// FileCorpus is an Accessor backed by a directory tree.
type FileCorpus struct {
	root            string
	cacheSize       int
	minSectionChars int
	logger          logging.Logger

	docs *lru.Cache[DocumentKey, *Filing]

	mu      sync.Mutex
	indexes map[int]map[string]string // year -> normalized company id -> path
}

// NewFileCorpus opens the corpus rooted at root.
func NewFileCorpus(root string, opts ...Option) (*FileCorpus, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("open corpus: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("open corpus: %s is not a directory", root)
	}

	c := &FileCorpus{
		root:            root,
		cacheSize:       defaultDocCacheSize,
		minSectionChars: defaultMinSectionChars,
		logger:          logging.NewComponentLogger("Corpus"),
		indexes:         make(map[int]map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}

	docs, err := lru.New[DocumentKey, *Filing](c.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create document cache: %w", err)
	}
	c.docs = docs
	return c, nil
}

// Root returns the corpus directory.
func (c *FileCorpus) Root() string {
	return c.root
}

// List implements Accessor.
func (c *FileCorpus) List(ctx context.Context, year int) ([]DocumentKey, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	index, err := c.index(year)
	if err != nil {
		return nil, err
	}
	keys := make([]DocumentKey, 0, len(index))
	for companyID := range index {
		keys = append(keys, DocumentKey{Year: year, CompanyID: companyID})
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].CompanyID < keys[j].CompanyID })
	return keys, nil
}

// Fetch implements Accessor.
func (c *FileCorpus) Fetch(ctx context.Context, key DocumentKey, section Section) (string, error) {
	filing, err := c.Load(ctx, key)
	if err != nil {
		return "", err
	}
	text, ok := filing.Sections[section]
	if !ok || len(strings.TrimSpace(text)) < max(c.minSectionChars, 1) {
		return "", fmt.Errorf("%w: %s not present in %s", benchmark.ErrSectionMissing, section, key)
	}
	return text, nil
}

// Load returns the whole parsed filing, from cache when possible.
func (c *FileCorpus) Load(ctx context.Context, key DocumentKey) (*Filing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key = NewDocumentKey(key.Year, key.CompanyID)
	if filing, ok := c.docs.Get(key); ok {
		return filing, nil
	}

	index, err := c.index(key.Year)
	if err != nil {
		return nil, err
	}
	path, ok := index[key.CompanyID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", benchmark.ErrDocumentNotFound, key)
	}

	filing, err := readFiling(path, key)
	if err != nil {
		return nil, err
	}
	c.docs.Add(key, filing)
	return filing, nil
}

// Refresh drops cached directory listings and documents.
func (c *FileCorpus) Refresh() {
	c.mu.Lock()
	c.indexes = make(map[int]map[string]string)
	c.mu.Unlock()
	c.docs.Purge()
}

func (c *FileCorpus) index(year int) (map[string]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if index, ok := c.indexes[year]; ok {
		return index, nil
	}

	dir := filepath.Join(c.root, strconv.Itoa(year))
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	index := make(map[string]string, len(entries))
	for _, entry := range entries {
		companyID, ok := parseFileName(entry.Name(), year)
		if entry.IsDir() || !ok {
			continue
		}
		if prev, dup := index[companyID]; dup {
			c.logger.Warn("Duplicate filing for %s_%d: keeping %s, ignoring %s", companyID, year, prev, entry.Name())
			continue
		}
		index[companyID] = filepath.Join(dir, entry.Name())
	}
	c.indexes[year] = index
	return index, nil
}

// parseFileName extracts the normalized company id from "<id>_<year>.json".
func parseFileName(name string, year int) (string, bool) {
	stem, ok := strings.CutSuffix(name, ".json")
	if !ok {
		return "", false
	}
	companyID, fileYear, ok := strings.Cut(stem, "_")
	if !ok || fileYear != strconv.Itoa(year) {
		return "", false
	}
	companyID = NormalizeCompanyID(companyID)
	return companyID, companyID != ""
}

func readFiling(path string, key DocumentKey) (*Filing, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read filing %s: %w", key, err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse filing %s: %w", key, err)
	}

	filing := &Filing{Key: key, Path: path, Sections: make(map[Section]string, len(Sections))}
	for _, section := range Sections {
		value, ok := raw[string(section)]
		if !ok {
			continue
		}
		var text string
		if err := json.Unmarshal(value, &text); err != nil {
			// null or non-string values count as absent
			continue
		}
		filing.Sections[section] = text
	}
	return filing, nil
}
