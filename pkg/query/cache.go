package query

import (
	"strings"
	"sync"
	"time"
)

// DefaultStaleTime matches the marketplace feed's cache window.
const DefaultStaleTime = 5 * time.Minute

// entry holds the cached pages and fetch bookkeeping for one key.
type entry struct {
	pages map[int]Page

	// fetchGen is bumped on every fetch start and every cancellation.
	// A completing fetch whose generation no longer matches is
	// discarded: its data raced with a cancel or a newer fetch.
	fetchGen  uint64
	fetching  bool
	lastFetch time.Time
	stale     bool
}

// Cache is a keyed store of paginated query results.
// All methods are safe for concurrent use.
type Cache struct {
	mu        sync.Mutex
	entries   map[Key]*entry
	versions  map[int64]uint64
	staleTime time.Duration
}

// Option configures a Cache.
type Option func(*Cache)

// WithStaleTime sets how long a completed fetch suppresses refetching.
// Default: DefaultStaleTime.
func WithStaleTime(d time.Duration) Option {
	return func(c *Cache) {
		c.staleTime = d
	}
}

// New creates an empty Cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries:   make(map[Key]*entry),
		versions:  make(map[int64]uint64),
		staleTime: DefaultStaleTime,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) entryLocked(key Key) *entry {
	e, ok := c.entries[key]
	if !ok {
		e = &entry{pages: make(map[int]Page)}
		c.entries[key] = e
	}
	return e
}

// SetPage stores one page of results under key. The items are copied
// in; the caller keeps ownership of its slice.
func (c *Cache) SetPage(key Key, pageIndex int, items Page) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entryLocked(key)
	e.pages[pageIndex] = clonePage(items)
}

// Pages returns copies of all pages stored under key, ordered by page
// index. Missing keys yield nil.
func (c *Cache) Pages(key Key) []Page {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil
	}
	return copyPagesLocked(e)
}

func copyPagesLocked(e *entry) []Page {
	if len(e.pages) == 0 {
		return nil
	}
	maxIdx := -1
	for idx := range e.pages {
		if idx > maxIdx {
			maxIdx = idx
		}
	}
	out := make([]Page, 0, len(e.pages))
	for idx := 0; idx <= maxIdx; idx++ {
		if p, ok := e.pages[idx]; ok {
			out = append(out, clonePage(p))
		}
	}
	return out
}

// Find returns the first cached copy of the item with the given ID
// under any key matching prefix.
func (c *Cache) Find(prefix string, id int64) (Item, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, e := range c.entries {
		if !strings.HasPrefix(string(key), prefix) {
			continue
		}
		for _, page := range e.pages {
			for i := range page {
				if page[i].ID == id {
					it := page[i]
					if it.Collections != nil {
						it.Collections = append([]string(nil), it.Collections...)
					}
					return it, true
				}
			}
		}
	}
	return Item{}, false
}

// UpdateMatching applies fn to every item of every page of every key
// matching prefix, in one pass under the cache lock. fn mutates the
// item in place and reports whether it changed it. Returns the number
// of items changed.
//
// Because the whole pass runs inside one critical section, no reader
// can observe some pages updated and others not.
func (c *Cache) UpdateMatching(prefix string, fn func(*Item) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	updated := 0
	for key, e := range c.entries {
		if !strings.HasPrefix(string(key), prefix) {
			continue
		}
		for _, page := range e.pages {
			for i := range page {
				if fn(&page[i]) {
					updated++
				}
			}
		}
	}
	return updated
}

// Invalidate marks every entry matching prefix as stale. Stale entries
// keep serving cached pages but no longer suppress refetching.
func (c *Cache) Invalidate(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, e := range c.entries {
		if strings.HasPrefix(string(key), prefix) {
			e.stale = true
		}
	}
}

// IsStale reports whether the entry needs refetching: unknown, marked
// stale, or past the stale time.
func (c *Cache) IsStale(key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return true
	}
	return e.stale || time.Since(e.lastFetch) >= c.staleTime
}

// CancelRefetch discards any in-flight fetch for entries matching
// prefix by bumping their generation. A late CompleteFetch for the old
// generation becomes a no-op, so a stale refetch can never overwrite a
// newer optimistic write.
func (c *Cache) CancelRefetch(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, e := range c.entries {
		if strings.HasPrefix(string(key), prefix) {
			if e.fetching {
				e.fetchGen++
				e.fetching = false
			}
		}
	}
}

// BeginFetch starts a fetch for key and returns the generation token
// to pass to CompleteFetch. ok is false when the entry is still fresh
// (fetched within the stale time and not invalidated) or a fetch is
// already running; callers should skip the network round trip.
func (c *Cache) BeginFetch(key Key) (gen uint64, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entryLocked(key)
	if e.fetching {
		return 0, false
	}
	if !e.stale && !e.lastFetch.IsZero() && time.Since(e.lastFetch) < c.staleTime {
		return 0, false
	}
	e.fetchGen++
	e.fetching = true
	return e.fetchGen, true
}

// CompleteFetch installs the result of a fetch started with
// BeginFetch. The result is discarded (returns false) when the
// generation no longer matches, i.e. the fetch was cancelled or
// superseded. On error the entry is left stale so the next BeginFetch
// retries.
func (c *Cache) CompleteFetch(key Key, gen uint64, pages []Page, err error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || e.fetchGen != gen {
		return false
	}
	e.fetching = false
	if err != nil {
		e.stale = true
		return false
	}

	e.pages = make(map[int]Page, len(pages))
	for i, p := range pages {
		e.pages[i] = clonePage(p)
	}
	e.lastFetch = time.Now()
	e.stale = false
	return true
}

// Version returns the current version stamp for a target item ID.
// Stamps are global to the cache, not per key: the same item cached
// under several keys shares one stamp.
func (c *Cache) Version(id int64) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.versions[id]
}

// BumpVersion increments and returns the version stamp for a target
// item ID. The optimistic controller bumps the stamp on every toggle
// so a late failure can detect that its rollback has been superseded.
func (c *Cache) BumpVersion(id int64) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.versions[id]++
	return c.versions[id]
}

// Keys returns all keys matching prefix, for diagnostics.
func (c *Cache) Keys(prefix string) []Key {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []Key
	for key := range c.entries {
		if strings.HasPrefix(string(key), prefix) {
			out = append(out, key)
		}
	}
	return out
}
