// Package profile derives per-user views (post grid, counts,
// follower lists) as pure projections over the same live post and
// user documents the rest of the app observes. Nothing here persists
// a separate counter.
package profile

import (
	"context"

	"pixelfeed/feed"
	"pixelfeed/models"
	"pixelfeed/store"
)

type Aggregator struct {
	engine *feed.Engine
	store  store.EntityStore
}

func NewAggregator(engine *feed.Engine, st store.EntityStore) *Aggregator {
	return &Aggregator{engine: engine, store: st}
}

// OrderedPosts projects the live feed snapshot down to one user's
// posts, createdAt descending. When the engine has no snapshot yet it
// falls back to a direct ordered query.
func (a *Aggregator) OrderedPosts(ctx context.Context, userID string) ([]models.Post, error) {
	all := a.engine.Posts()
	if len(all) == 0 {
		return a.store.PostsByUser(ctx, userID)
	}
	out := []models.Post{}
	for _, p := range all {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

// Aggregate builds the profile view. Every count is derived from the
// current set snapshot: len(posts), len(followers), len(following).
func (a *Aggregator) Aggregate(ctx context.Context, userID, viewerID string) (models.UserProfileResponse, error) {
	user, err := a.store.User(ctx, userID)
	if err != nil {
		return models.UserProfileResponse{}, err
	}

	posts, err := a.OrderedPosts(ctx, userID)
	if err != nil {
		return models.UserProfileResponse{}, err
	}

	return models.UserProfileResponse{
		UserID:         user.UserID,
		UserName:       user.UserName,
		PhotoURL:       user.PhotoURL,
		Biography:      user.Biography,
		PostCount:      len(posts),
		FollowersCount: len(user.Followers),
		FollowingCount: len(user.Following),
		IsFollowing:    viewerID != "" && user.FollowedBy(viewerID),
		Posts:          posts,
	}, nil
}

// Followers resolves the follower uid set to user records.
func (a *Aggregator) Followers(ctx context.Context, userID string) ([]models.User, error) {
	user, err := a.store.User(ctx, userID)
	if err != nil {
		return nil, err
	}
	return a.store.UsersByIDs(ctx, user.Followers)
}

// Following resolves the following uid set to user records.
func (a *Aggregator) Following(ctx context.Context, userID string) ([]models.User, error) {
	user, err := a.store.User(ctx, userID)
	if err != nil {
		return nil, err
	}
	return a.store.UsersByIDs(ctx, user.Following)
}
