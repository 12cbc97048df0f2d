package counters

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pixelfeed/apperr"
	"pixelfeed/models"
	"pixelfeed/store"
)

func seedStore(t *testing.T) *store.Memory {
	t.Helper()
	st := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, st.InsertUser(ctx, models.User{UserID: "u1", UserName: "ana"}))
	require.NoError(t, st.InsertUser(ctx, models.User{UserID: "u2", UserName: "bob"}))
	_, err := st.InsertPost(ctx, models.Post{PostID: "p1", UserID: "u1", UserName: "ana", ImageURL: "https://img/1.jpg"})
	require.NoError(t, err)
	return st
}

func TestToggleLikeAddsThenRemoves(t *testing.T) {
	st := seedStore(t)
	c := New(st)
	ctx := context.Background()

	likes, err := c.ToggleLike(ctx, "p1", "u2")
	require.NoError(t, err)
	assert.Equal(t, []string{"u2"}, likes)

	likes, err = c.ToggleLike(ctx, "p1", "u2")
	require.NoError(t, err)
	assert.Empty(t, likes)

	post, err := st.Post(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 0, LikeCount(post))
}

func TestToggleLikeIsSetMembership(t *testing.T) {
	st := seedStore(t)
	c := New(st)
	ctx := context.Background()

	// Two distinct users, one like each.
	_, err := c.ToggleLike(ctx, "p1", "u1")
	require.NoError(t, err)
	likes, err := c.ToggleLike(ctx, "p1", "u2")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"u1", "u2"}, likes)

	post, err := st.Post(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 2, LikeCount(post))
}

func TestToggleLikeErrors(t *testing.T) {
	st := seedStore(t)
	c := New(st)
	ctx := context.Background()

	_, err := c.ToggleLike(ctx, "p1", "")
	assert.ErrorIs(t, err, apperr.ErrAuthRequired)

	_, err = c.ToggleLike(ctx, "pmissing", "u2")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestToggleFollowMutatesBothSides(t *testing.T) {
	st := seedStore(t)
	c := New(st)
	ctx := context.Background()

	following, err := c.ToggleFollow(ctx, "u1", "u2")
	require.NoError(t, err)
	assert.True(t, following)

	target, err := st.User(ctx, "u1")
	require.NoError(t, err)
	actor, err := st.User(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, []string{"u2"}, target.Followers)
	assert.Equal(t, []string{"u1"}, actor.Following)

	following, err = c.ToggleFollow(ctx, "u1", "u2")
	require.NoError(t, err)
	assert.False(t, following)

	target, err = st.User(ctx, "u1")
	require.NoError(t, err)
	actor, err = st.User(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, target.Followers)
	assert.Empty(t, actor.Following)
}

func TestToggleFollowRejectsSelf(t *testing.T) {
	st := seedStore(t)
	c := New(st)
	ctx := context.Background()

	_, err := c.ToggleFollow(ctx, "u1", "u1")
	assert.True(t, apperr.IsValidation(err))

	u, err := st.User(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, u.Followers)
	assert.Empty(t, u.Following)
}

func TestToggleFollowErrors(t *testing.T) {
	st := seedStore(t)
	c := New(st)
	ctx := context.Background()

	_, err := c.ToggleFollow(ctx, "u1", "")
	assert.ErrorIs(t, err, apperr.ErrAuthRequired)

	_, err = c.ToggleFollow(ctx, "umissing", "u2")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = c.ToggleFollow(ctx, "u1", "umissing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestToggleFollowLeavesGraphSymmetricOnFailure(t *testing.T) {
	st := seedStore(t)
	c := New(st)
	ctx := context.Background()

	st.FailBatches = 3 // outlast every retry
	_, err := c.ToggleFollow(ctx, "u1", "u2")
	require.Error(t, err)
	assert.True(t, apperr.IsTransient(err))

	target, err := st.User(ctx, "u1")
	require.NoError(t, err)
	actor, err := st.User(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, target.Followers, "failed batch must not touch either side")
	assert.Empty(t, actor.Following, "failed batch must not touch either side")
}

func TestDuplicatePendingToggleIsDropped(t *testing.T) {
	st := seedStore(t)
	c := New(st)
	ctx := context.Background()

	// Simulate a toggle already in flight for this pair.
	key := "like:p1:u2"
	require.True(t, c.begin(key))

	likes, err := c.ToggleLike(ctx, "p1", "u2")
	require.NoError(t, err)
	assert.Empty(t, likes, "second invocation reports current state unchanged")

	c.end(key)
	likes, err = c.ToggleLike(ctx, "p1", "u2")
	require.NoError(t, err)
	assert.Equal(t, []string{"u2"}, likes)
}
