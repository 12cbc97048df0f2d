package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pixelfeed/apperr"
	"pixelfeed/models"
)

func TestPostsByRecencyNewestFirst(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	for _, id := range []string{"p1", "p2", "p3"} {
		_, err := m.InsertPost(ctx, models.Post{PostID: id, UserID: "u1"})
		require.NoError(t, err)
	}

	posts, err := m.PostsByRecency(ctx)
	require.NoError(t, err)
	require.Len(t, posts, 3)
	assert.Equal(t, "p3", posts[0].PostID)
	assert.Equal(t, "p2", posts[1].PostID)
	assert.Equal(t, "p1", posts[2].PostID)
}

func TestServerTimestampsStrictlyIncrease(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	_, err := m.InsertPost(ctx, models.Post{PostID: "p1", UserID: "u1"})
	require.NoError(t, err)

	var prev models.Comment
	for i, id := range []string{"c1", "c2", "c3"} {
		c, err := m.InsertComment(ctx, models.Comment{CommentID: id, PostID: "p1", UserID: "u1", Text: "x"})
		require.NoError(t, err)
		if i > 0 {
			assert.True(t, c.CreatedAt.After(prev.CreatedAt),
				"timestamps must increase even for back-to-back writes")
		}
		prev = c
	}
}

func TestInsertCommentRejectsOrphan(t *testing.T) {
	m := NewMemory()
	_, err := m.InsertComment(context.Background(), models.Comment{CommentID: "c1", PostID: "pmissing"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCommentSubscriptionScopedToPost(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	for _, id := range []string{"p1", "p2"} {
		_, err := m.InsertPost(ctx, models.Post{PostID: id, UserID: "u1"})
		require.NoError(t, err)
	}

	calls := 0
	unsub, err := m.SubscribeComments("p1", func([]models.Comment) { calls++ })
	require.NoError(t, err)
	defer unsub()
	assert.Equal(t, 1, calls, "initial snapshot")

	_, err = m.InsertComment(ctx, models.Comment{CommentID: "c1", PostID: "p2", UserID: "u1", Text: "x"})
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "another post's comment does not notify")

	_, err = m.InsertComment(ctx, models.Comment{CommentID: "c2", PostID: "p1", UserID: "u1", Text: "y"})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestUnsubscribeStopsNotifications(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	calls := 0
	unsub, err := m.SubscribePosts(func([]models.Post) { calls++ })
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	unsub()
	_, err = m.InsertPost(ctx, models.Post{PostID: "p1", UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRunBatchAllOrNothing(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	_, err := m.InsertPost(ctx, models.Post{PostID: "p1", UserID: "u1"})
	require.NoError(t, err)
	_, err = m.InsertComment(ctx, models.Comment{CommentID: "c1", PostID: "p1", UserID: "u1", Text: "x"})
	require.NoError(t, err)

	m.FailBatches = 1
	err = m.RunBatch(ctx, func(b Batch) error {
		b.DeleteComment("c1")
		b.DeletePost("p1")
		return nil
	})
	require.Error(t, err)
	assert.True(t, apperr.IsTransient(err))

	_, err = m.Post(ctx, "p1")
	require.NoError(t, err)
	comments, err := m.CommentsByPost(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, comments, 1)

	require.NoError(t, m.RunBatch(ctx, func(b Batch) error {
		b.DeleteComment("c1")
		b.DeletePost("p1")
		return nil
	}))
	_, err = m.Post(ctx, "p1")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestAddLikeIsIdempotentSetAdd(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	_, err := m.InsertPost(ctx, models.Post{PostID: "p1", UserID: "u1"})
	require.NoError(t, err)

	require.NoError(t, m.AddLike(ctx, "p1", "u2"))
	require.NoError(t, m.AddLike(ctx, "p1", "u2"))

	post, err := m.Post(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"u2"}, post.Likes)

	require.NoError(t, m.RemoveLike(ctx, "p1", "u2"))
	post, err = m.Post(ctx, "p1")
	require.NoError(t, err)
	assert.Empty(t, post.Likes)
}
