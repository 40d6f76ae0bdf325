package retrieval

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/observability"
)

const (
	// DefaultCacheEntries bounds the response cache when no size is configured.
	DefaultCacheEntries = 5000

	defaultConversation = "default"
	seedPrefix          = "seed:"
	seedConfidence      = 0.9
)

// normalizations are applied in order, so "refrigerator not working" and
// "fridge broken" share a fingerprint.
var normalizations = []struct{ from, to string }{
	{"refrigerator", "fridge"},
	{"dish washer", "dishwasher"},
	{"ice maker", "icemaker"},
	{"not working", "broken"},
	{"wont start", "not starting"},
}

// seeds are canned diagnostic answers shared by every conversation.
var seeds = []struct{ query, response string }{
	{
		"fridge not cooling",
		"I can help diagnose your cooling issue. This is usually caused by a few common problems. " +
			"1. Is the compressor running (do you hear humming)? 2. Are the vents inside blocked by food? " +
			"3. When did you last clean the condenser coils? Based on your answers we'll likely need to look at " +
			"the evaporator fan, condenser coils or thermostat.",
	},
	{
		"ice maker broken",
		"Ice maker problems are very common. Let's troubleshoot: 1. Is the ice maker getting power (any lights or sounds)? " +
			"2. Is water reaching the refrigerator? 3. Are you seeing any error codes? 4. When did it last make ice? " +
			"Most ice maker issues are water supply problems, a faulty water inlet valve or the ice maker assembly itself.",
	},
	{
		"dishwasher not cleaning",
		"Poor cleaning is frustrating. Let's diagnose it step by step: 1. Are the spray arms spinning freely? " +
			"2. Is your water temperature around 120F? 3. Are you using rinse aid? 4. When did you last clean the filter " +
			"at the bottom? Most cleaning issues come from clogged spray arms, dirty filters or a worn wash pump motor.",
	},
	{
		"water leaking",
		"Water leaks need immediate attention. Let's find the source: 1. Where exactly is the water coming from? " +
			"2. Is it constant or only during cycles? 3. Check the door seals and connections. Most leaks are from worn " +
			"door gaskets, loose hose connections or damaged water inlet valves.",
	},
	{
		"loud noise",
		"Unusual noises can indicate several issues. 1. When does the noise occur (startup, during the cycle, draining)? " +
			"2. What type of sound is it (grinding, squealing, banging)? 3. What is your model number? Common causes are " +
			"worn bearings, loose parts or objects stuck in the drain pump.",
	},
}

// CacheStats reports response cache effectiveness.
type CacheStats struct {
	TotalQueries int64   `json:"total_queries"`
	Hits         int64   `json:"cache_hits"`
	Misses       int64   `json:"cache_misses"`
	HitRate      float64 `json:"hit_rate"`
	Size         int     `json:"cached_responses"`
}

// ResponseCache maps a (query, conversation) fingerprint to a previous answer.
// Entries beyond the capacity are evicted least recently used first.
type ResponseCache struct {
	entries *lru.Cache[string, *CachedAnswer]
	logger  *observability.Logger
	now     func() time.Time

	mu     sync.Mutex
	total  int64
	hits   int64
	misses int64
}

// NewResponseCache creates a cache holding at most size entries, seeded with
// the canned diagnostic answers.
func NewResponseCache(size int, logger *observability.Logger) (*ResponseCache, error) {
	if size <= 0 {
		size = DefaultCacheEntries
	}
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	entries, err := lru.New[string, *CachedAnswer](size)
	if err != nil {
		return nil, err
	}

	c := &ResponseCache{
		entries: entries,
		logger:  logger,
		now:     time.Now,
	}
	c.seed()
	logger.Info().Int("entries", entries.Len()).Int("capacity", size).Msg("Response cache initialized")
	return c, nil
}

// NormalizeQuery folds case, whitespace and common phrasing variants.
func NormalizeQuery(query string) string {
	n := strings.ToLower(strings.TrimSpace(query))
	for _, r := range normalizations {
		n = strings.ReplaceAll(n, r.from, r.to)
	}
	return n
}

// Fingerprint returns the cache key for a query within a conversation.
func Fingerprint(query, conversationID string) string {
	if conversationID == "" {
		conversationID = defaultConversation
	}
	sum := sha256.Sum256([]byte(NormalizeQuery(query) + "_" + conversationID))
	return hex.EncodeToString(sum[:])
}

// seedKey returns the key seeds are stored under. Its prefix keeps it out of
// reach of Fingerprint, so no conversation can overwrite or publish to it.
func seedKey(query string) string {
	sum := sha256.Sum256([]byte(NormalizeQuery(query)))
	return seedPrefix + hex.EncodeToString(sum[:])
}

// Get returns a copy of the cached answer for query. A miss in the
// conversation falls back to the seeded answers.
func (c *ResponseCache) Get(query, conversationID string) (*CachedAnswer, bool) {
	keys := []string{Fingerprint(query, conversationID), seedKey(query)}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.total++

	for _, key := range keys {
		entry, ok := c.entries.Get(key)
		if !ok {
			continue
		}
		entry.HitCount++
		c.hits++
		c.logger.Debug().
			Str("query", truncate(query, 50)).
			Int("hit_count", entry.HitCount).
			Msg("Response cache hit")

		out := *entry
		out.Answer = entry.Answer.clone()
		return &out, true
	}
	c.misses++
	return nil, false
}

// Put stores answer for query, replacing any previous entry.
func (c *ResponseCache) Put(query, conversationID string, answer Answer) {
	entry := &CachedAnswer{Answer: answer.clone(), CreatedAt: c.now()}
	c.mu.Lock()
	defer c.mu.Unlock()
	if evicted := c.entries.Add(Fingerprint(query, conversationID), entry); evicted {
		c.logger.Debug().Msg("Response cache evicted least recently used entry")
	}
}

// Stats returns running counters.
func (c *ResponseCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := CacheStats{
		TotalQueries: c.total,
		Hits:         c.hits,
		Misses:       c.misses,
		Size:         c.entries.Len(),
	}
	if c.total > 0 {
		s.HitRate = float64(c.hits) / float64(c.total)
	}
	return s
}

// Clear drops every entry and restores the seeds. Counters are kept.
func (c *ResponseCache) Clear() {
	c.mu.Lock()
	c.entries.Purge()
	c.mu.Unlock()
	c.seed()
	c.logger.Info().Msg("Response cache cleared")
}

func (c *ResponseCache) seed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range seeds {
		c.entries.Add(seedKey(s.query), &CachedAnswer{
			Answer: Answer{
				Response:   s.response,
				Source:     SourceCache,
				Confidence: seedConfidence,
			}.clone(),
			CreatedAt: c.now(),
		})
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
