// Package cascade guarantees that no comment outlives its post. The
// post document and every comment referencing it are removed in a
// single atomic batch; a concurrent subscriber observes either the
// full pre-delete state or the full post-delete state, never anything
// in between.
package cascade

import (
	"context"

	"pixelfeed/apperr"
	"pixelfeed/store"
)

type Coordinator struct {
	store store.EntityStore
}

func New(st store.EntityStore) *Coordinator {
	return &Coordinator{store: st}
}

// DeletePost removes the post and its comments as one unit. Only the
// post's author may delete it; the check runs before any write. On
// failure nothing is mutated and the caller may retry.
func (c *Coordinator) DeletePost(ctx context.Context, postID, requesterID string) error {
	if requesterID == "" {
		return apperr.ErrAuthRequired
	}

	post, err := c.store.Post(ctx, postID)
	if err != nil {
		return err
	}
	if post.UserID != requesterID {
		return apperr.ErrForbidden
	}

	comments, err := c.store.CommentsByPost(ctx, postID)
	if err != nil {
		return err
	}

	return store.WithRetry(ctx, func(ctx context.Context) error {
		return c.store.RunBatch(ctx, func(b store.Batch) error {
			for _, cm := range comments {
				b.DeleteComment(cm.CommentID)
			}
			b.DeletePost(postID)
			return nil
		})
	})
}
