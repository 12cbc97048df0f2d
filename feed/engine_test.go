package feed

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pixelfeed/apperr"
	"pixelfeed/models"
	"pixelfeed/session"
	"pixelfeed/store"
)

var (
	ana = session.Identity{UID: "u1", UserName: "ana"}
	bob = session.Identity{UID: "u2", UserName: "bob"}
)

func newTestEngine(t *testing.T) (*store.Memory, *Engine) {
	t.Helper()
	st := store.NewMemory()
	require.NoError(t, st.InsertUser(context.Background(), models.User{UserID: "u1", UserName: "ana"}))
	require.NoError(t, st.InsertUser(context.Background(), models.User{UserID: "u2", UserName: "bob"}))
	e, err := NewEngine(st)
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return st, e
}

func TestCreatePostAppearsNewestFirst(t *testing.T) {
	_, e := newTestEngine(t)
	ctx := context.Background()

	first, err := e.CreatePost(ctx, ana, "https://img/1.jpg", "sunrise")
	require.NoError(t, err)
	second, err := e.CreatePost(ctx, bob, "https://img/2.jpg", "coffee")
	require.NoError(t, err)

	posts := e.Posts()
	require.Len(t, posts, 2)
	assert.Equal(t, second.PostID, posts[0].PostID)
	assert.Equal(t, first.PostID, posts[1].PostID)
	assert.True(t, posts[0].CreatedAt.After(posts[1].CreatedAt))
}

func TestCreatePostValidation(t *testing.T) {
	_, e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.CreatePost(ctx, session.Identity{}, "https://img/1.jpg", "x")
	assert.ErrorIs(t, err, apperr.ErrAuthRequired)

	_, err = e.CreatePost(ctx, ana, "", "x")
	assert.True(t, apperr.IsValidation(err))
}

func TestSubmitCommentValidation(t *testing.T) {
	_, e := newTestEngine(t)
	ctx := context.Background()
	post, err := e.CreatePost(ctx, ana, "https://img/1.jpg", "sunrise")
	require.NoError(t, err)

	_, err = e.SubmitComment(ctx, post.PostID, session.Identity{}, "hi")
	assert.ErrorIs(t, err, apperr.ErrAuthRequired)

	_, err = e.SubmitComment(ctx, post.PostID, bob, "   ")
	assert.True(t, apperr.IsValidation(err))

	// A comment for a post that no longer exists is rejected, never
	// written as an orphan.
	_, err = e.SubmitComment(ctx, "pmissing", bob, "hi")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCommentsOrderedOldestFirst(t *testing.T) {
	_, e := newTestEngine(t)
	ctx := context.Background()
	post, err := e.CreatePost(ctx, ana, "https://img/1.jpg", "sunrise")
	require.NoError(t, err)

	for _, text := range []string{"first", "second", "third"} {
		_, err := e.SubmitComment(ctx, post.PostID, bob, text)
		require.NoError(t, err)
	}

	comments, err := e.GroupCommentsForPost(ctx, post.PostID)
	require.NoError(t, err)
	require.Len(t, comments, 3)
	assert.Equal(t, "first", comments[0].Text)
	assert.Equal(t, "second", comments[1].Text)
	assert.Equal(t, "third", comments[2].Text)
	assert.True(t, comments[0].CreatedAt.Before(comments[1].CreatedAt))
	assert.True(t, comments[1].CreatedAt.Before(comments[2].CreatedAt))
}

func TestOptimisticCommentNeverDoubleCounted(t *testing.T) {
	_, e := newTestEngine(t)
	ctx := context.Background()
	post, err := e.CreatePost(ctx, ana, "https://img/1.jpg", "sunrise")
	require.NoError(t, err)

	var mu sync.Mutex
	var snapshots [][]models.Comment
	unsub, err := e.SubscribeComments(post.PostID, func(cs []models.Comment) {
		mu.Lock()
		snapshots = append(snapshots, cs)
		mu.Unlock()
	})
	require.NoError(t, err)
	defer unsub()

	_, err = e.SubmitComment(ctx, post.PostID, bob, "hello")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	// Initial empty snapshot, optimistic pending entry, confirmed echo.
	require.GreaterOrEqual(t, len(snapshots), 3)
	assert.Empty(t, snapshots[0])

	pending := snapshots[1]
	require.Len(t, pending, 1)
	assert.True(t, pending[0].Pending)

	final := snapshots[len(snapshots)-1]
	require.Len(t, final, 1)
	assert.False(t, final[0].Pending)
	assert.Equal(t, "hello", final[0].Text)
}

func TestSubscribePostsDeliversSnapshotAndStopsAfterUnsubscribe(t *testing.T) {
	_, e := newTestEngine(t)
	ctx := context.Background()
	_, err := e.CreatePost(ctx, ana, "https://img/1.jpg", "sunrise")
	require.NoError(t, err)

	var mu sync.Mutex
	calls := 0
	unsub := e.SubscribePosts(func(posts []models.Post) {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	mu.Lock()
	assert.Equal(t, 1, calls, "initial snapshot delivered immediately")
	mu.Unlock()

	unsub()
	_, err = e.CreatePost(ctx, bob, "https://img/2.jpg", "coffee")
	require.NoError(t, err)

	mu.Lock()
	assert.Equal(t, 1, calls, "no callbacks after unsubscribe")
	mu.Unlock()
}

func TestCommentStreamReleasedWithLastSubscriber(t *testing.T) {
	_, e := newTestEngine(t)
	ctx := context.Background()
	post, err := e.CreatePost(ctx, ana, "https://img/1.jpg", "sunrise")
	require.NoError(t, err)

	unsub1, err := e.SubscribeComments(post.PostID, func([]models.Comment) {})
	require.NoError(t, err)
	unsub2, err := e.SubscribeComments(post.PostID, func([]models.Comment) {})
	require.NoError(t, err)

	e.mu.Lock()
	assert.Equal(t, 2, e.streams[post.PostID].refs)
	e.mu.Unlock()

	unsub1()
	e.mu.Lock()
	assert.Equal(t, 1, e.streams[post.PostID].refs)
	e.mu.Unlock()

	unsub2()
	e.mu.Lock()
	_, open := e.streams[post.PostID]
	e.mu.Unlock()
	assert.False(t, open, "stream closed when the last subscriber leaves")
}

func TestEditPostCaptionOwnerOnly(t *testing.T) {
	_, e := newTestEngine(t)
	ctx := context.Background()
	post, err := e.CreatePost(ctx, ana, "https://img/1.jpg", "sunrise")
	require.NoError(t, err)

	err = e.EditPostCaption(ctx, post.PostID, "hacked", bob)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	require.NoError(t, e.EditPostCaption(ctx, post.PostID, "golden hour", ana))
	updated, err := e.Post(ctx, post.PostID)
	require.NoError(t, err)
	assert.Equal(t, "golden hour", updated.Caption)
}

func TestSearchPosts(t *testing.T) {
	_, e := newTestEngine(t)
	ctx := context.Background()
	_, err := e.CreatePost(ctx, ana, "https://img/1.jpg", "Sunrise over the bay")
	require.NoError(t, err)
	_, err = e.CreatePost(ctx, bob, "https://img/2.jpg", "morning coffee")
	require.NoError(t, err)

	assert.Len(t, e.SearchPosts("sunrise"), 1)
	assert.Len(t, e.SearchPosts("BOB"), 1)
	assert.Len(t, e.SearchPosts(""), 2)
	assert.Empty(t, e.SearchPosts("nothing here"))
}
