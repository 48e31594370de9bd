package query

import "strings"

// Snapshot is a deep copy of every cache entry matching a prefix,
// taken before an optimistic write so a failed mutation can restore
// the exact prior state.
type Snapshot struct {
	prefix string
	pages  map[Key]map[int]Page
}

// Prefix returns the prefix the snapshot was taken for.
func (s *Snapshot) Prefix() string {
	return s.prefix
}

// Snapshot captures all entries whose key matches prefix.
func (c *Cache) Snapshot(prefix string) *Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := &Snapshot{
		prefix: prefix,
		pages:  make(map[Key]map[int]Page),
	}
	for key, e := range c.entries {
		if !strings.HasPrefix(string(key), prefix) {
			continue
		}
		pages := make(map[int]Page, len(e.pages))
		for idx, p := range e.pages {
			pages[idx] = clonePage(p)
		}
		snap.pages[key] = pages
	}
	return snap
}

// RestoreSnapshot puts every captured entry back exactly as it was.
// Entries created under the prefix after the snapshot was taken are
// removed, so the restored state equals the captured state.
func (c *Cache) RestoreSnapshot(snap *Snapshot) {
	if snap == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.entries {
		if !strings.HasPrefix(string(key), snap.prefix) {
			continue
		}
		if _, captured := snap.pages[key]; !captured {
			delete(c.entries, key)
		}
	}
	for key, pages := range snap.pages {
		e := c.entryLocked(key)
		e.pages = make(map[int]Page, len(pages))
		for idx, p := range pages {
			e.pages[idx] = clonePage(p)
		}
	}
}
