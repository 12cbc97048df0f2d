// Package counters manages set-membership toggles: the like set on a
// post and the follower/following sets on the user graph. Displayed
// counts are always derived from the set snapshot, never kept as an
// independently incremented number, so count and set cannot drift.
package counters

import (
	"context"
	"sync"

	"pixelfeed/apperr"
	"pixelfeed/models"
	"pixelfeed/store"
)

type Counters struct {
	store store.EntityStore

	mu       sync.Mutex
	inflight map[string]bool
}

func New(st store.EntityStore) *Counters {
	return &Counters{store: st, inflight: make(map[string]bool)}
}

// begin marks a toggle in flight for the given target. At most one
// toggle per (target, user) pair may be pending; a second invocation
// before confirmation is dropped so it cannot double-toggle.
func (c *Counters) begin(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight[key] {
		return false
	}
	c.inflight[key] = true
	return true
}

func (c *Counters) end(key string) {
	c.mu.Lock()
	delete(c.inflight, key)
	c.mu.Unlock()
}

// ToggleLike flips uid's membership in the post's like set and
// returns the new set. The mutation is a single atomic set add or
// remove against the store, never a whole-array overwrite.
func (c *Counters) ToggleLike(ctx context.Context, postID, uid string) ([]string, error) {
	if uid == "" {
		return nil, apperr.ErrAuthRequired
	}

	key := "like:" + postID + ":" + uid
	if !c.begin(key) {
		// A toggle for this pair is already pending; report the
		// current state unchanged.
		post, err := c.store.Post(ctx, postID)
		if err != nil {
			return nil, err
		}
		return post.Likes, nil
	}
	defer c.end(key)

	post, err := c.store.Post(ctx, postID)
	if err != nil {
		return nil, err
	}

	err = store.WithRetry(ctx, func(ctx context.Context) error {
		if post.LikedBy(uid) {
			return c.store.RemoveLike(ctx, postID, uid)
		}
		return c.store.AddLike(ctx, postID, uid)
	})
	if err != nil {
		return nil, err
	}

	updated, err := c.store.Post(ctx, postID)
	if err != nil {
		return nil, err
	}
	return updated.Likes, nil
}

// ToggleFollow flips the follow edge from uid to targetUID. Both
// sides of the graph (target.followers and actor.following) are
// mutated in one atomic batch, so a partial failure can never leave
// the graph asymmetric.
func (c *Counters) ToggleFollow(ctx context.Context, targetUID, uid string) (bool, error) {
	if uid == "" {
		return false, apperr.ErrAuthRequired
	}
	if targetUID == uid {
		return false, apperr.Validation("cannot follow yourself")
	}

	key := "follow:" + targetUID + ":" + uid
	if !c.begin(key) {
		target, err := c.store.User(ctx, targetUID)
		if err != nil {
			return false, err
		}
		return target.FollowedBy(uid), nil
	}
	defer c.end(key)

	target, err := c.store.User(ctx, targetUID)
	if err != nil {
		return false, err
	}
	if _, err := c.store.User(ctx, uid); err != nil {
		return false, err
	}

	following := target.FollowedBy(uid)
	err = store.WithRetry(ctx, func(ctx context.Context) error {
		return c.store.RunBatch(ctx, func(b store.Batch) error {
			if following {
				b.RemoveFollower(targetUID, uid)
				b.RemoveFollowing(uid, targetUID)
			} else {
				b.AddFollower(targetUID, uid)
				b.AddFollowing(uid, targetUID)
			}
			return nil
		})
	})
	if err != nil {
		return false, err
	}
	return !following, nil
}

// LikeCount derives the displayed count from the set snapshot.
func LikeCount(p models.Post) int { return len(p.Likes) }
