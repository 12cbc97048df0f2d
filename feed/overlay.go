package feed

import (
	"sort"
	"sync"

	"pixelfeed/models"
)

// overlay is the single reconciliation layer for optimistic local
// mutations. A submitted comment is appended here with a local
// wall-clock placeholder timestamp and marked pending; every incoming
// store snapshot is merged through Merge, which drops pending entries
// the snapshot has confirmed. No call site keeps its own mirror.
type overlay struct {
	mu      sync.Mutex
	pending map[string][]models.Comment // postID -> pending comments
}

func newOverlay() *overlay {
	return &overlay{pending: make(map[string][]models.Comment)}
}

func (o *overlay) Add(c models.Comment) {
	c.Pending = true
	o.mu.Lock()
	o.pending[c.PostID] = append(o.pending[c.PostID], c)
	o.mu.Unlock()
}

// Drop removes a pending entry that failed to commit, rolling the
// optimistic append back.
func (o *overlay) Drop(postID, commentID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	kept := o.pending[postID][:0]
	for _, c := range o.pending[postID] {
		if c.CommentID != commentID {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		delete(o.pending, postID)
	} else {
		o.pending[postID] = kept
	}
}

// Merge combines a confirmed snapshot with the still-pending entries
// for the post. Pending entries present in the snapshot are cleared
// for good, so a comment is never double-counted once the
// subscription catches up. The result is ordered by CreatedAt
// ascending.
func (o *overlay) Merge(postID string, confirmed []models.Comment) []models.Comment {
	o.mu.Lock()
	defer o.mu.Unlock()

	seen := make(map[string]bool, len(confirmed))
	for _, c := range confirmed {
		seen[c.CommentID] = true
	}

	kept := []models.Comment{}
	for _, c := range o.pending[postID] {
		if !seen[c.CommentID] {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		delete(o.pending, postID)
	} else {
		o.pending[postID] = kept
	}

	merged := make([]models.Comment, 0, len(confirmed)+len(kept))
	merged = append(merged, confirmed...)
	merged = append(merged, kept...)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].CreatedAt.Before(merged[j].CreatedAt)
	})
	return merged
}

// ClearPost discards any pending entries for a deleted post.
func (o *overlay) ClearPost(postID string) {
	o.mu.Lock()
	delete(o.pending, postID)
	o.mu.Unlock()
}
