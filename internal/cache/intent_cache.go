// Package cache implements the two-tier intent cache that sits in front of
// the recogniser: an exact-text map backed by an inverted keyword index for
// approximate lookups. Its whole purpose is to keep repeat and near-repeat
// queries away from the language model.
package cache

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DefaultThreshold is the minimum Jaccard similarity for a fuzzy hit.
const DefaultThreshold = 0.7

// saveDebounce is the minimum interval between unforced persistence writes.
const saveDebounce = 30 * time.Second

// Extractor segments query text into keywords. The keyword.Indexer satisfies
// this; tests substitute a fixed table.
type Extractor interface {
	Extract(text string) []string
}

// Result reports the outcome of a cache lookup. Hit is the explicit hit
// indicator; callers must not infer hits from side effects.
type Result struct {
	// Entry is the cached serialized intent, nil on a miss.
	Entry json.RawMessage
	// Hit reports whether either tier matched.
	Hit bool
	// Exact reports whether the hit came from the exact tier.
	Exact bool
	// Similarity is the Jaccard score of a fuzzy hit, 1 for an exact hit.
	Similarity float64
	// MatchedQuery is the cached query text that produced the entry.
	MatchedQuery string
}

// IntentCache is a capacity-bounded cache of serialized intents keyed by the
// query text that produced them. A single mutex serialises lookups, inserts
// and saves: fuzzy lookup reads the exact map and the keyword index together,
// and eviction mutates both in lockstep.
type IntentCache struct {
	mu sync.Mutex

	path       string
	maxEntries int
	extractor  Extractor
	logger     *log.Logger

	exact map[string]json.RawMessage
	// order holds cache keys in first-insertion order. Go maps do not keep
	// insertion order, and both FIFO eviction and the fuzzy tie-break need it.
	order []string
	index map[string]map[string]struct{}

	lastSave time.Time
	now      func() time.Time
}

// New creates an empty cache persisted at path, holding at most maxEntries
// entries. Call Load to read a previously saved cache.
func New(path string, maxEntries int, extractor Extractor, logger *log.Logger) *IntentCache {
	if logger == nil {
		logger = log.New(os.Stderr, "intent-cache: ", log.LstdFlags)
	}
	return &IntentCache{
		path:       path,
		maxEntries: maxEntries,
		extractor:  extractor,
		logger:     logger,
		exact:      make(map[string]json.RawMessage),
		index:      make(map[string]map[string]struct{}),
		now:        time.Now,
	}
}

// Lookup resolves query against both tiers. The exact tier always wins; the
// fuzzy tier selects the highest-Jaccard candidate sharing at least one
// keyword, with ties broken by first-insertion order, and matches only when
// the score reaches threshold.
func (c *IntentCache) Lookup(query string, threshold float64) Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.exact[query]; ok {
		return Result{Entry: entry, Hit: true, Exact: true, Similarity: 1, MatchedQuery: query}
	}

	keywords := c.extractor.Extract(query)
	if len(keywords) == 0 {
		return Result{}
	}

	candidates := make(map[string]struct{})
	for _, kw := range keywords {
		for q := range c.index[kw] {
			candidates[q] = struct{}{}
		}
	}
	if len(candidates) == 0 {
		return Result{}
	}

	querySet := toSet(keywords)
	var (
		bestQuery string
		bestScore float64
	)
	// Walk candidates in insertion order so equal scores resolve to the
	// first-seen entry.
	for _, q := range c.order {
		if _, ok := candidates[q]; !ok {
			continue
		}
		score := jaccard(querySet, toSet(c.extractor.Extract(q)))
		if score > bestScore {
			bestScore = score
			bestQuery = q
		}
	}

	if bestQuery == "" || bestScore < threshold {
		return Result{}
	}
	return Result{
		Entry:        c.exact[bestQuery],
		Hit:          true,
		Similarity:   bestScore,
		MatchedQuery: bestQuery,
	}
}

// Add inserts or overwrites the entry for query. When the cache is at
// capacity the oldest quarter of entries is evicted first. Every hundredth
// insertion triggers a debounced save.
func (c *IntentCache) Add(query string, entry json.RawMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.exact) >= c.maxEntries {
		c.evictLocked()
	}

	if _, exists := c.exact[query]; !exists {
		c.order = append(c.order, query)
	}
	c.exact[query] = entry
	c.indexLocked(query)

	if len(c.exact)%100 == 0 {
		if err := c.saveLocked(false); err != nil {
			c.logger.Printf("periodic save failed: %v", err)
		}
	}
}

// Size returns the number of cached entries.
func (c *IntentCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.exact)
}

// Save writes the exact cache to disk. Unforced saves are skipped when the
// last save happened under thirty seconds ago. A write failure is logged and
// returned, but the in-memory cache stays authoritative either way.
func (c *IntentCache) Save(force bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.saveLocked(force); err != nil {
		c.logger.Printf("save failed: %v", err)
		return err
	}
	return nil
}

// persistedCache is the on-disk shape of the cache file.
type persistedCache struct {
	ExactCache map[string]json.RawMessage `json:"exact_cache"`
	UpdatedAt  int64                      `json:"updated_at"`
}

func (c *IntentCache) saveLocked(force bool) error {
	if !force && c.now().Sub(c.lastSave) < saveDebounce {
		return nil
	}

	// Marshal entries in insertion order so reloads rebuild the same FIFO
	// order. encoding/json sorts map keys, so the object is built by hand.
	var buf bytes.Buffer
	buf.WriteString(`{"exact_cache":{`)
	for i, q := range c.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(q)
		if err != nil {
			return fmt.Errorf("cache: failed to marshal key: %w", err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(c.exact[q])
	}
	fmt.Fprintf(&buf, `},"updated_at":%d}`, c.now().Unix())

	if dir := filepath.Dir(c.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("cache: failed to create directory %q: %w", dir, err)
		}
	}
	if err := os.WriteFile(c.path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("cache: failed to write %q: %w", c.path, err)
	}

	c.lastSave = c.now()
	c.logger.Printf("saved %d entries to %s", len(c.exact), c.path)
	return nil
}

// Load reads the persisted cache if one exists. Any read or parse failure is
// logged and leaves an empty cache; startup never fails on cache state. The
// keyword index is always rebuilt from the loaded entries, never persisted.
func (c *IntentCache) Load() {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.path)
	if err != nil {
		if !os.IsNotExist(err) {
			c.logger.Printf("failed to read %s: %v", c.path, err)
		}
		return
	}

	keys, entries, err := decodeExactCache(data)
	if err != nil {
		c.logger.Printf("failed to parse %s, starting with empty cache: %v", c.path, err)
		c.exact = make(map[string]json.RawMessage)
		c.order = nil
		c.index = make(map[string]map[string]struct{})
		return
	}

	c.exact = entries
	c.order = keys
	c.index = make(map[string]map[string]struct{})
	for _, q := range keys {
		c.indexLocked(q)
	}
	c.logger.Printf("loaded %d entries from %s", len(c.exact), c.path)
}

// decodeExactCache decodes the "exact_cache" object preserving its key
// order, which encodes the FIFO insertion order across restarts.
func decodeExactCache(data []byte) ([]string, map[string]json.RawMessage, error) {
	var file struct {
		ExactCache json.RawMessage `json:"exact_cache"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, nil, err
	}
	if len(file.ExactCache) == 0 {
		return nil, map[string]json.RawMessage{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(file.ExactCache))
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, nil, fmt.Errorf("exact_cache is not an object")
	}

	var keys []string
	entries := make(map[string]json.RawMessage)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("unexpected key token %v", keyTok)
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, nil, err
		}
		if _, seen := entries[key]; !seen {
			keys = append(keys, key)
		}
		entries[key] = value
	}
	return keys, entries, nil
}

// evictLocked drops the oldest 25% of entries and their index memberships.
// FIFO by insertion order: predictable, cheap, and good enough for a cache
// that is an optimisation rather than a store of record.
func (c *IntentCache) evictLocked() {
	if len(c.exact) <= c.maxEntries/2 {
		return
	}

	n := len(c.exact) * 25 / 100
	victims := c.order[:n]
	for _, q := range victims {
		c.deindexLocked(q)
		delete(c.exact, q)
	}
	c.order = append([]string(nil), c.order[n:]...)

	c.logger.Printf("evicted %d entries", n)
}

func (c *IntentCache) indexLocked(query string) {
	for _, kw := range c.extractor.Extract(query) {
		bucket, ok := c.index[kw]
		if !ok {
			bucket = make(map[string]struct{})
			c.index[kw] = bucket
		}
		bucket[query] = struct{}{}
	}
}

// deindexLocked removes query from every keyword bucket it occupies and
// deletes buckets left empty, keeping the no-orphan invariant.
func (c *IntentCache) deindexLocked(query string) {
	for _, kw := range c.extractor.Extract(query) {
		bucket, ok := c.index[kw]
		if !ok {
			continue
		}
		delete(bucket, query)
		if len(bucket) == 0 {
			delete(c.index, kw)
		}
	}
}

func toSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// jaccard computes |a∩b| / |a∪b|, zero when both sets are empty.
func jaccard(a, b map[string]struct{}) float64 {
	overlap := 0
	for w := range a {
		if _, ok := b[w]; ok {
			overlap++
		}
	}
	union := len(a) + len(b) - overlap
	if union == 0 {
		return 0
	}
	return float64(overlap) / float64(union)
}
