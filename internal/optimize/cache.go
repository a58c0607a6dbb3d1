package optimize

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/shirou/gopsutil/v4/process"
)

// EvictionPolicy selects how the cache picks victims when full.
type EvictionPolicy int

const (
	EvictLRU EvictionPolicy = iota
	EvictLFU
	EvictTTL
	EvictMixed
)

var evictionNames = map[EvictionPolicy]string{
	EvictLRU:   "lru",
	EvictLFU:   "lfu",
	EvictTTL:   "ttl",
	EvictMixed: "mixed",
}

func (p EvictionPolicy) String() string {
	if name, ok := evictionNames[p]; ok {
		return name
	}
	return fmt.Sprintf("EvictionPolicy(%d)", int(p))
}

// ParseEvictionPolicy converts a policy name to an EvictionPolicy.
func ParseEvictionPolicy(s string) (EvictionPolicy, error) {
	for policy, name := range evictionNames {
		if name == strings.ToLower(strings.TrimSpace(s)) {
			return policy, nil
		}
	}
	return EvictMixed, fmt.Errorf("unknown eviction policy: %q", s)
}

// CacheConfig sizes the semantic cache.
type CacheConfig struct {
	MaxEntries      int
	MaxMemoryMB     int
	TTL             time.Duration
	Policy          EvictionPolicy
	CleanupInterval time.Duration
}

// DefaultCacheConfig returns the stock cache sizing.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		MaxEntries:      1000,
		MaxMemoryMB:     64,
		TTL:             24 * time.Hour,
		Policy:          EvictMixed,
		CleanupInterval: 5 * time.Minute,
	}
}

// CacheKey addresses one cached result by the semantic hash of its
// query and the hash of the flags that produced it.
type CacheKey struct {
	QueryHash string
	FlagsHash string
	Combined  string
}

// NewCacheKey derives the cache key for a query/flags pair.
func NewCacheKey(query string, flags Flags) CacheKey {
	q := hashString(NormalizeQuery(query))
	f := hashString(flagsMaterial(flags))
	return CacheKey{QueryHash: q, FlagsHash: f, Combined: q + ":" + f}
}

func hashString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// flagsMaterial serializes the flags that change the optimized
// output: mode, goal, domain, determinism and the temperature bucket.
// Temperature is rounded to 2 decimals so float noise does not split
// cache entries.
func flagsMaterial(flags Flags) string {
	return fmt.Sprintf("%s|%s|%s|%t|%.2f",
		flags.Mode, flags.Goal, flags.Domain,
		flags.UseDeterministic, flags.Temperature)
}

// NormalizeQuery lowercases and collapses whitespace so that
// trivially different spellings share a cache entry. Content inside
// double quotes is preserved verbatim.
func NormalizeQuery(query string) string {
	var b strings.Builder
	inQuotes := false
	pendingSpace := false
	for _, r := range query {
		if r == '"' {
			inQuotes = !inQuotes
			if pendingSpace && b.Len() > 0 {
				b.WriteRune(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
			continue
		}
		if inQuotes {
			b.WriteRune(r)
			continue
		}
		switch r {
		case ' ', '\t', '\n', '\r':
			pendingSpace = true
		default:
			if pendingSpace && b.Len() > 0 {
				b.WriteRune(' ')
			}
			pendingSpace = false
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

type cacheEntry struct {
	result       *Result
	createdAt    time.Time
	lastAccessed time.Time
	accessCount  int64
	sequence     int64
	size         int64
	key          CacheKey
}

// Cache is the in-memory semantic result cache with TTL expiry and
// configurable eviction.
type Cache struct {
	cfg CacheConfig

	mu          sync.Mutex
	entries     map[string]*cacheEntry
	memoryBytes int64
	sequence    int64
	lastCleanup time.Time

	statsMu     sync.Mutex
	hits        int64
	misses      int64
	evictions   int64
	expirations int64
}

// NewCache creates a cache with the given configuration.
func NewCache(cfg CacheConfig) *Cache {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultCacheConfig().MaxEntries
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultCacheConfig().TTL
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultCacheConfig().CleanupInterval
	}
	return &Cache{
		cfg:         cfg,
		entries:     map[string]*cacheEntry{},
		lastCleanup: time.Now(),
	}
}

// Get looks up a cached result. A hit returns a copy flagged as a
// cache hit with its compilation time collapsed to the lookup cost.
func (c *Cache) Get(query string, flags Flags) (*Result, bool) {
	key := NewCacheKey(query, flags)

	c.mu.Lock()
	entry, ok := c.entries[key.Combined]
	if ok && time.Since(entry.createdAt) > c.cfg.TTL {
		c.removeLocked(key.Combined)
		ok = false
		c.statsMu.Lock()
		c.expirations++
		c.statsMu.Unlock()
	}
	if !ok {
		c.mu.Unlock()
		c.statsMu.Lock()
		c.misses++
		c.statsMu.Unlock()
		return nil, false
	}
	entry.lastAccessed = time.Now()
	entry.accessCount++
	result := *entry.result
	c.mu.Unlock()

	c.statsMu.Lock()
	c.hits++
	c.statsMu.Unlock()

	result.Metrics.CacheHit = true
	result.Metrics.CompilationTime = time.Millisecond
	return &result, true
}

// Put stores a successful result. Failed results are never cached.
// Returns false when the entry cannot fit within the memory limit
// even after eviction.
func (c *Cache) Put(query string, flags Flags, result *Result) bool {
	if result == nil || !result.Success {
		return false
	}
	key := NewCacheKey(query, flags)
	size := estimateEntrySize(key, result)

	c.mu.Lock()
	defer c.mu.Unlock()

	if time.Since(c.lastCleanup) > c.cfg.CleanupInterval {
		c.cleanupLocked()
	}

	if old, ok := c.entries[key.Combined]; ok {
		c.memoryBytes -= old.size
		delete(c.entries, key.Combined)
	}

	for len(c.entries) >= c.cfg.MaxEntries {
		if !c.evictLocked() {
			return false
		}
	}

	if limit := c.memoryLimitBytes(); limit > 0 {
		for c.memoryBytes+size > limit {
			if !c.evictLocked() {
				return false
			}
		}
	}

	stored := *result
	c.sequence++
	c.entries[key.Combined] = &cacheEntry{
		result:       &stored,
		createdAt:    time.Now(),
		lastAccessed: time.Now(),
		sequence:     c.sequence,
		size:         size,
		key:          key,
	}
	c.memoryBytes += size
	return true
}

func (c *Cache) memoryLimitBytes() int64 {
	return int64(c.cfg.MaxMemoryMB) * 1024 * 1024
}

func estimateEntrySize(key CacheKey, result *Result) int64 {
	const overhead = 256
	return int64(len(result.CompiledPrompt) +
		len(result.ErrorMessage) +
		len(result.OriginalQuery) +
		len(key.Combined) +
		overhead)
}

func (c *Cache) removeLocked(key string) {
	if entry, ok := c.entries[key]; ok {
		c.memoryBytes -= entry.size
		delete(c.entries, key)
	}
}

// CleanupExpired removes expired entries; the MCP server runs this on
// a schedule. Returns how many entries were removed.
func (c *Cache) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cleanupLocked()
}

func (c *Cache) cleanupLocked() int {
	removed := 0
	now := time.Now()
	for key, entry := range c.entries {
		if now.Sub(entry.createdAt) > c.cfg.TTL {
			c.removeLocked(key)
			removed++
		}
	}
	if removed > 0 {
		c.statsMu.Lock()
		c.expirations += int64(removed)
		c.statsMu.Unlock()
	}
	c.lastCleanup = now
	return removed
}

// evictLocked removes the entry scoring worst under the configured
// policy. Returns false when the cache is already empty.
func (c *Cache) evictLocked() bool {
	var victim string
	var victimEntry *cacheEntry
	for key, entry := range c.entries {
		if victimEntry == nil || c.worseThan(entry, victimEntry) {
			victim = key
			victimEntry = entry
		}
	}
	if victimEntry == nil {
		return false
	}
	c.removeLocked(victim)
	c.statsMu.Lock()
	c.evictions++
	c.statsMu.Unlock()
	return true
}

// worseThan reports whether a is a better eviction victim than b.
func (c *Cache) worseThan(a, b *cacheEntry) bool {
	switch c.cfg.Policy {
	case EvictLRU:
		if !a.lastAccessed.Equal(b.lastAccessed) {
			return a.lastAccessed.Before(b.lastAccessed)
		}
		return a.sequence < b.sequence
	case EvictLFU:
		if a.accessCount != b.accessCount {
			return a.accessCount < b.accessCount
		}
		return a.sequence < b.sequence
	case EvictTTL:
		return a.createdAt.Before(b.createdAt)
	default: // EvictMixed
		return mixedScore(a) > mixedScore(b)
	}
}

// mixedScore blends recency age with inverse access frequency; higher
// scores evict first.
func mixedScore(e *cacheEntry) float64 {
	age := time.Since(e.lastAccessed).Seconds()
	return 0.6*age + 0.4*age/float64(e.accessCount+1)
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats snapshots cache statistics, including the process RSS so
// operators can judge the configured memory limit.
func (c *Cache) Stats() CacheStatistics {
	c.mu.Lock()
	entries := len(c.entries)
	memory := c.memoryBytes
	c.mu.Unlock()

	c.statsMu.Lock()
	stats := CacheStatistics{
		Hits:        c.hits,
		Misses:      c.misses,
		Evictions:   c.evictions,
		Expirations: c.expirations,
		Entries:     entries,
		MemoryBytes: memory,
	}
	c.statsMu.Unlock()

	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}
	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if info, err := proc.MemoryInfo(); err == nil && info != nil {
			stats.ProcessRSSBytes = info.RSS
		}
	}
	return stats
}
