package application

import (
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

// SearchCache stores recent place listings so repeated searches skip the
// store and the open-at evaluation while places remain unchanged. Every
// place write invalidates the whole cache.
type SearchCache struct {
	mu         sync.RWMutex
	now        func() time.Time
	ttl        time.Duration
	maxEntries int
	entries    map[string]searchCacheEntry
}

type searchCacheEntry struct {
	places    []Place
	expiresAt time.Time
}

// NewSearchCache returns a cache whose entries live for ttl. Non-positive
// arguments select 30s and 128 entries.
func NewSearchCache(ttl time.Duration, maxEntries int, now func() time.Time) *SearchCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if maxEntries <= 0 {
		maxEntries = 128
	}
	if now == nil {
		now = time.Now
	}
	return &SearchCache{
		now:        now,
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]searchCacheEntry),
	}
}

// Get returns a copy of the cached listing for key.
func (c *SearchCache) Get(key string) ([]Place, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}
	return clonePlaces(entry.places), true
}

// Store caches a copy of places under key.
func (c *SearchCache) Store(key string, places []Place) {
	if c == nil {
		return
	}
	cloned := clonePlaces(places)
	expiry := c.now().Add(c.ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.cleanupLocked()
	if len(c.entries) >= c.maxEntries {
		c.evictOneLocked()
	}
	c.entries[key] = searchCacheEntry{places: cloned, expiresAt: expiry}
}

// Invalidate drops every entry.
func (c *SearchCache) Invalidate() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.entries = make(map[string]searchCacheEntry)
	c.mu.Unlock()
}

// Len reports the number of live and expired entries held.
func (c *SearchCache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *SearchCache) cleanupLocked() {
	now := c.now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}

func (c *SearchCache) evictOneLocked() {
	var (
		oldestKey string
		oldest    time.Time
	)
	for key, entry := range c.entries {
		if oldestKey == "" || entry.expiresAt.Before(oldest) {
			oldestKey, oldest = key, entry.expiresAt
		}
	}
	delete(c.entries, oldestKey)
}

func clonePlaces(places []Place) []Place {
	if len(places) == 0 {
		return nil
	}
	out := make([]Place, len(places))
	for i, p := range places {
		out[i] = clonePlace(p)
	}
	return out
}

func clonePlace(p Place) Place {
	out := p
	out.Phones = slices.Clone(p.Phones)
	out.Images = slices.Clone(p.Images)
	out.Schedules = slices.Clone(p.Schedules)
	if p.RejectionReason != nil {
		reason := *p.RejectionReason
		out.RejectionReason = &reason
	}
	return out
}

// buildSearchCacheKey quotes every part so separators inside user input
// cannot make two filters collide.
func buildSearchCacheKey(params ListPlacesParams) string {
	f := params.Filter
	var openAt string
	if f.OpenAt != nil {
		openAt = f.OpenAt.UTC().Truncate(time.Minute).Format(time.RFC3339)
	}

	parts := []string{
		params.Principal.UserID,
		strconv.FormatBool(params.Principal.IsModerator),
		strings.ToLower(strings.TrimSpace(f.Query)),
		string(f.Category),
		strings.ToLower(strings.TrimSpace(f.City)),
		f.OwnerID,
		string(f.Status),
		openAt,
	}
	for i, part := range parts {
		parts[i] = strconv.Quote(part)
	}
	return strings.Join(parts, "|")
}
