// Package query provides the client-side cache of paginated query
// results.
//
// The cache is an explicit service object handed to its consumers, not
// a package-level singleton, so tests and multi-tenant hosts can run
// isolated instances. It supports the operations the optimistic
// mutation controller depends on:
//
//   - overwriting cached items across every key matching a prefix in a
//     single synchronous pass (no reader observes a half-updated state)
//   - snapshotting matching entries and restoring them exactly
//   - invalidation and stale-time fetch suppression
//   - a fetch generation counter so an in-flight refetch can be
//     cancelled and its late result discarded
//
// Basic usage:
//
//	cache := query.New(query.WithStaleTime(5 * time.Minute))
//	cache.SetPage("marketplace-images", 0, items)
//	cache.UpdateMatching("marketplace-images", func(it *query.Item) bool {
//	    if it.ID != 42 {
//	        return false
//	    }
//	    it.HasLiked = true
//	    it.LikeCount++
//	    return true
//	})
package query
