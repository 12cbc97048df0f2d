package profile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pixelfeed/feed"
	"pixelfeed/models"
	"pixelfeed/session"
	"pixelfeed/store"
)

func newTestAggregator(t *testing.T) (*store.Memory, *feed.Engine, *Aggregator) {
	t.Helper()
	st := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, st.InsertUser(ctx, models.User{UserID: "u1", UserName: "ana"}))
	require.NoError(t, st.InsertUser(ctx, models.User{UserID: "u2", UserName: "bob"}))
	engine, err := feed.NewEngine(st)
	require.NoError(t, err)
	t.Cleanup(engine.Close)
	return st, engine, NewAggregator(engine, st)
}

func TestAggregateDerivesCountsFromSets(t *testing.T) {
	st, engine, agg := newTestAggregator(t)
	ctx := context.Background()
	ana := session.Identity{UID: "u1", UserName: "ana"}

	first, err := engine.CreatePost(ctx, ana, "https://img/1.jpg", "one")
	require.NoError(t, err)
	second, err := engine.CreatePost(ctx, ana, "https://img/2.jpg", "two")
	require.NoError(t, err)

	// u2 follows u1.
	require.NoError(t, st.RunBatch(ctx, func(b store.Batch) error {
		b.AddFollower("u1", "u2")
		b.AddFollowing("u2", "u1")
		return nil
	}))

	view, err := agg.Aggregate(ctx, "u1", "u2")
	require.NoError(t, err)
	assert.Equal(t, "ana", view.UserName)
	assert.Equal(t, 2, view.PostCount)
	assert.Equal(t, 1, view.FollowersCount)
	assert.Equal(t, 0, view.FollowingCount)
	assert.True(t, view.IsFollowing)

	// Grid is newest first.
	require.Len(t, view.Posts, 2)
	assert.Equal(t, second.PostID, view.Posts[0].PostID)
	assert.Equal(t, first.PostID, view.Posts[1].PostID)

	// An anonymous viewer is never "following".
	view, err = agg.Aggregate(ctx, "u1", "")
	require.NoError(t, err)
	assert.False(t, view.IsFollowing)
}

func TestOrderedPostsFiltersToOwner(t *testing.T) {
	_, engine, agg := newTestAggregator(t)
	ctx := context.Background()

	_, err := engine.CreatePost(ctx, session.Identity{UID: "u1", UserName: "ana"}, "https://img/1.jpg", "mine")
	require.NoError(t, err)
	_, err = engine.CreatePost(ctx, session.Identity{UID: "u2", UserName: "bob"}, "https://img/2.jpg", "theirs")
	require.NoError(t, err)

	posts, err := agg.OrderedPosts(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "mine", posts[0].Caption)
}

func TestFollowerListsResolveUsers(t *testing.T) {
	st, _, agg := newTestAggregator(t)
	ctx := context.Background()

	require.NoError(t, st.RunBatch(ctx, func(b store.Batch) error {
		b.AddFollower("u1", "u2")
		b.AddFollowing("u2", "u1")
		return nil
	}))

	followers, err := agg.Followers(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, followers, 1)
	assert.Equal(t, "bob", followers[0].UserName)

	following, err := agg.Following(ctx, "u2")
	require.NoError(t, err)
	require.Len(t, following, 1)
	assert.Equal(t, "ana", following[0].UserName)
}
