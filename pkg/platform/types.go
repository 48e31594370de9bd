package platform

import (
	"context"
	"encoding/json"
	"fmt"
)

// ToggleLikeRequest records or removes a like on a design image.
// Liked is the state the caller wants to reach, not the prior state.
type ToggleLikeRequest struct {
	ItemID int64  `json:"item_id"`
	UserID string `json:"user_id"`
	Liked  bool   `json:"liked"`
}

// Validate checks the request before it goes on the wire.
func (r ToggleLikeRequest) Validate() error {
	if r.ItemID <= 0 {
		return fmt.Errorf("%w: item_id must be positive", ErrInvalidRequest)
	}
	if r.UserID == "" {
		return fmt.Errorf("%w: user_id required", ErrInvalidRequest)
	}
	return nil
}

// ToggleLikeResult is the platform's acknowledgment of a like toggle.
type ToggleLikeResult struct {
	OK       bool `json:"ok"`
	NewCount int  `json:"new_count"`
}

// CollectionAddRequest adds an item to a collection.
type CollectionAddRequest struct {
	CollectionID string `json:"collection_id"`
	ItemID       int64  `json:"item_id"`
	UserID       string `json:"user_id"`
}

// Validate checks the request before it goes on the wire.
func (r CollectionAddRequest) Validate() error {
	if r.CollectionID == "" {
		return fmt.Errorf("%w: collection_id required", ErrInvalidRequest)
	}
	if r.ItemID <= 0 {
		return fmt.Errorf("%w: item_id must be positive", ErrInvalidRequest)
	}
	if r.UserID == "" {
		return fmt.Errorf("%w: user_id required", ErrInvalidRequest)
	}
	return nil
}

// CollectionRemoveRequest removes an item from a collection.
type CollectionRemoveRequest struct {
	CollectionID string `json:"collection_id"`
	ItemID       int64  `json:"item_id"`
	UserID       string `json:"user_id"`
}

// Validate checks the request before it goes on the wire.
func (r CollectionRemoveRequest) Validate() error {
	return CollectionAddRequest(r).Validate()
}

// CollectionMutationResult is the platform's acknowledgment of a
// collection membership change. Duplicate is set when an add hit the
// collection's uniqueness constraint.
type CollectionMutationResult struct {
	OK        bool `json:"ok"`
	Duplicate bool `json:"duplicate,omitempty"`
}

// RowQuery selects rows from a platform table. From/To are inclusive
// row offsets, matching the platform's range pagination.
type RowQuery struct {
	Table  string `json:"table"`
	Filter string `json:"filter,omitempty"`
	Order  string `json:"order,omitempty"`
	From   int    `json:"from"`
	To     int    `json:"to"`
}

// Validate checks the query before it goes on the wire.
func (q RowQuery) Validate() error {
	if q.Table == "" {
		return fmt.Errorf("%w: table required", ErrInvalidRequest)
	}
	if q.From < 0 || q.To < q.From {
		return fmt.Errorf("%w: bad range [%d,%d]", ErrInvalidRequest, q.From, q.To)
	}
	return nil
}

// User is the authenticated platform user.
type User struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// Session is an authenticated platform session. A nil *Session means
// the caller is not signed in.
type Session struct {
	User User `json:"user"`
}

// Mutator issues state-changing calls against the platform.
type Mutator interface {
	ToggleLike(ctx context.Context, req ToggleLikeRequest) (ToggleLikeResult, error)
	AddToCollection(ctx context.Context, req CollectionAddRequest) (CollectionMutationResult, error)
	RemoveFromCollection(ctx context.Context, req CollectionRemoveRequest) (CollectionMutationResult, error)
}

// SessionSource resolves the current authenticated session.
// Implementations return (nil, nil) for an unauthenticated caller.
type SessionSource interface {
	GetSession(ctx context.Context) (*Session, error)
}

// RowReader reads rows from platform tables.
type RowReader interface {
	Query(ctx context.Context, q RowQuery) ([]json.RawMessage, error)
}
