// Package store is the adapter boundary in front of the document
// database. Every mutation is expressed as a whole-document insert or
// an atomic field-level operation (set add/remove, single-field set),
// never a blind read-modify-write of a whole array, so concurrent
// clients cannot lose each other's updates. The only multi-document
// atomicity the application needs is exposed through RunBatch.
package store

import (
	"context"

	"pixelfeed/models"
)

// Unsubscribe releases a live subscription. After it returns, the
// onChange callback is guaranteed not to be invoked again.
type Unsubscribe func()

// Batch collects multi-document operations that commit atomically:
// either every queued operation is applied or none is.
type Batch interface {
	DeletePost(postID string)
	DeleteComment(commentID string)
	AddFollower(uid, followerID string)
	RemoveFollower(uid, followerID string)
	AddFollowing(uid, targetID string)
	RemoveFollowing(uid, targetID string)
}

// EntityStore is the full query and mutation surface the application
// consumes from the backing document database.
type EntityStore interface {
	// Point reads.
	Post(ctx context.Context, postID string) (models.Post, error)
	User(ctx context.Context, uid string) (models.User, error)

	// Queries.
	PostsByRecency(ctx context.Context) ([]models.Post, error)
	PostsByUser(ctx context.Context, uid string) ([]models.Post, error)
	CommentsByPost(ctx context.Context, postID string) ([]models.Comment, error)
	UserByName(ctx context.Context, userName string) (models.User, error)
	UsersByIDs(ctx context.Context, uids []string) ([]models.User, error)

	// Writes. The store assigns CreatedAt on insert; the caller's
	// value is a local placeholder only.
	InsertUser(ctx context.Context, u models.User) error
	InsertPost(ctx context.Context, p models.Post) (models.Post, error)
	InsertComment(ctx context.Context, c models.Comment) (models.Comment, error)
	SetPostCaption(ctx context.Context, postID, caption string) error
	SetUserProfile(ctx context.Context, uid string, patch models.ProfilePatch) error
	SetLastLogin(ctx context.Context, uid string) error

	// Atomic set membership on a post's like set.
	AddLike(ctx context.Context, postID, uid string) error
	RemoveLike(ctx context.Context, postID, uid string) error

	// RunBatch commits every operation queued on the Batch as one
	// unit. On error nothing is applied.
	RunBatch(ctx context.Context, fn func(Batch) error) error

	// Live subscriptions. The callback first receives the current
	// full snapshot, then a fresh full snapshot after every change.
	SubscribePosts(onChange func([]models.Post)) (Unsubscribe, error)
	SubscribeComments(postID string, onChange func([]models.Comment)) (Unsubscribe, error)
	SubscribeUser(uid string, onChange func(models.User)) (Unsubscribe, error)
}
