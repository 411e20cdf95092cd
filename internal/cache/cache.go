// Package cache keeps finished optimization results in memory so that an
// unchanged request is answered without saturating again.
package cache

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/opencontainers/go-digest"

	"github.com/gnoswap-labs/witness"
	"github.com/gnoswap-labs/witness/internal/rewrite"
)

const (
	DefaultMaxEntries = 16
	DefaultMaxAge     = time.Hour
)

// Key digests everything a run depends on: the source text, the
// parameters and the rules in order.
func Key(src string, params witness.Params, rules []*rewrite.Rule) digest.Digest {
	if rules == nil {
		rules = rewrite.DefaultRules()
	}
	d := digest.Canonical.Digester()
	h := d.Hash()
	fmt.Fprintf(h, "%d %g %d %d\x00", params.MaxIterations, params.Lambda, params.Candidates, params.MaxAttempts)
	for _, r := range rules {
		io.WriteString(h, r.String())
		io.WriteString(h, "\x00")
	}
	io.WriteString(h, src)
	return d.Digest()
}

type Entry struct {
	Result       *witness.Result
	CreatedAt    time.Time
	LastAccessed time.Time
}

type Cache struct {
	mutex      sync.Mutex
	entries    map[digest.Digest]Entry
	maxEntries int
	maxAge     time.Duration
	now        func() time.Time
}

// New returns an empty cache. Non-positive limits select the defaults.
func New(maxEntries int, maxAge time.Duration) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Cache{
		entries:    make(map[digest.Digest]Entry),
		maxEntries: maxEntries,
		maxAge:     maxAge,
		now:        time.Now,
	}
}

func (c *Cache) Get(key digest.Digest) (*witness.Result, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	entry, exists := c.entries[key]
	if !exists {
		return nil, false
	}
	// too old
	if c.now().Sub(entry.CreatedAt) > c.maxAge {
		delete(c.entries, key)
		return nil, false
	}

	entry.LastAccessed = c.now()
	c.entries[key] = entry
	return entry.Result, true
}

// Set stores res under key, evicting the least recently used entry when
// the cache is full.
func (c *Cache) Set(key digest.Digest, res *witness.Result) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictOldest()
	}
	now := c.now()
	c.entries[key] = Entry{
		Result:       res,
		CreatedAt:    now,
		LastAccessed: now,
	}
}

func (c *Cache) evictOldest() {
	var oldest digest.Digest
	var oldestAt time.Time
	for key, entry := range c.entries {
		if oldest == "" || entry.LastAccessed.Before(oldestAt) {
			oldest, oldestAt = key, entry.LastAccessed
		}
	}
	delete(c.entries, oldest)
}

func (c *Cache) Len() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.entries)
}
