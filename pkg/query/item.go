package query

// Key identifies a cached query result, e.g. "marketplace-images" or
// "collections:u1". Prefix matching over keys mirrors how related
// queries share invalidation.
type Key string

// Item is one domain record in a cached page: a generated design image
// with its social state. The cache owns all Item values it holds;
// callers always receive copies.
type Item struct {
	ID          int64    `json:"id"`
	ImageURL    string   `json:"image_url"`
	CreatorID   string   `json:"creator_id"`
	CreatorName string   `json:"creator_name"`
	LikeCount   int      `json:"like_count"`
	HasLiked    bool     `json:"has_liked"`
	Collections []string `json:"collections,omitempty"`
}

// InCollection reports whether the item is a member of the given
// collection.
func (it *Item) InCollection(collectionID string) bool {
	for _, c := range it.Collections {
		if c == collectionID {
			return true
		}
	}
	return false
}

// Page is an ordered sequence of items, one page of a paginated list.
// Item IDs must be unique within the concatenation of all pages stored
// under a single key.
type Page []Item

func clonePage(p Page) Page {
	out := make(Page, len(p))
	for i, it := range p {
		out[i] = it
		if it.Collections != nil {
			out[i].Collections = append([]string(nil), it.Collections...)
		}
	}
	return out
}
