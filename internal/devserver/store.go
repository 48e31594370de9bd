// Package devserver is a local, in-memory emulator of the data
// platform: the REST rows and mutation endpoints the platform client
// consumes, and the realtime room hub the websocket transport speaks
// to. It exists so the toolkit can be developed and integration-tested
// without a hosted project.
package devserver

import (
	"encoding/json"
	"sort"
	"sync"
)

// ImageRow is one generated design image in the emulator's table.
type ImageRow struct {
	ID        int64  `json:"id"`
	ImageURL  string `json:"image_url"`
	CreatorID string `json:"creator_id"`
	LikeCount int    `json:"like_count"`
	IsPublic  bool   `json:"is_public"`
}

type likeKey struct {
	userID string
	itemID int64
}

type membershipKey struct {
	collectionID string
	itemID       int64
}

// Store is the emulator's in-memory table set.
type Store struct {
	mu          sync.Mutex
	images      map[int64]*ImageRow
	likes       map[likeKey]struct{}
	memberships map[membershipKey]struct{}
	sessions    map[string]SessionRow // bearer token -> session
}

// SessionRow is a signed-in user known to the emulator.
type SessionRow struct {
	UserID    string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		images:      make(map[int64]*ImageRow),
		likes:       make(map[likeKey]struct{}),
		memberships: make(map[membershipKey]struct{}),
		sessions:    make(map[string]SessionRow),
	}
}

// SeedImage inserts or replaces an image row.
func (s *Store) SeedImage(row ImageRow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := row
	s.images[row.ID] = &r
}

// SeedSession registers a bearer token for a user.
func (s *Store) SeedSession(token string, row SessionRow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[token] = row
}

// Session resolves a bearer token.
func (s *Store) Session(token string) (SessionRow, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.sessions[token]
	return row, ok
}

// ToggleLike applies a like state for (userID, itemID) and returns the
// new count. Setting an already-set state is idempotent.
func (s *Store) ToggleLike(userID string, itemID int64, liked bool) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	img, ok := s.images[itemID]
	if !ok {
		return 0, false
	}

	key := likeKey{userID: userID, itemID: itemID}
	_, has := s.likes[key]
	switch {
	case liked && !has:
		s.likes[key] = struct{}{}
		img.LikeCount++
	case !liked && has:
		delete(s.likes, key)
		if img.LikeCount > 0 {
			img.LikeCount--
		}
	}
	return img.LikeCount, true
}

// AddMembership inserts a collection membership. Returns false when
// the membership already exists (uniqueness constraint).
func (s *Store) AddMembership(collectionID string, itemID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := membershipKey{collectionID: collectionID, itemID: itemID}
	if _, exists := s.memberships[key]; exists {
		return false
	}
	s.memberships[key] = struct{}{}
	return true
}

// RemoveMembership deletes a collection membership.
func (s *Store) RemoveMembership(collectionID string, itemID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.memberships, membershipKey{collectionID: collectionID, itemID: itemID})
}

// QueryImages returns public image rows ordered by ID descending,
// within the inclusive [from, to] offset range.
func (s *Store) QueryImages(from, to int) []json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := make([]*ImageRow, 0, len(s.images))
	for _, img := range s.images {
		if img.IsPublic {
			rows = append(rows, img)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID > rows[j].ID })

	if from >= len(rows) {
		return nil
	}
	if to >= len(rows) {
		to = len(rows) - 1
	}

	out := make([]json.RawMessage, 0, to-from+1)
	for _, img := range rows[from : to+1] {
		raw, err := json.Marshal(img)
		if err != nil {
			continue
		}
		out = append(out, raw)
	}
	return out
}
