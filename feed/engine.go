// Package feed owns the live, ordered view of posts and their
// comments. Two kinds of store subscriptions feed it: the feed-wide
// posts stream, opened once for the engine's lifetime, and per-post
// comment streams, opened lazily when a post enters view and released
// when its last consumer unsubscribes.
package feed

import (
	"context"
	"strings"
	"sync"
	"time"

	"pixelfeed/apperr"
	"pixelfeed/models"
	"pixelfeed/session"
	"pixelfeed/store"
	"pixelfeed/utils"
)

type commentStream struct {
	refs     int
	snapshot []models.Comment
	unsub    store.Unsubscribe
}

type commentWatcher struct {
	postID   string
	onChange func([]models.Comment)
}

type Engine struct {
	store store.EntityStore

	mu          sync.Mutex
	posts       []models.Post
	streams     map[string]*commentStream
	postSubs    map[int]func([]models.Post)
	commentSubs map[int]commentWatcher
	nextSubID   int

	overlay    *overlay
	unsubPosts store.Unsubscribe
}

// NewEngine opens the feed-wide posts subscription and blocks until
// the initial snapshot has been delivered.
func NewEngine(st store.EntityStore) (*Engine, error) {
	e := &Engine{
		store:       st,
		streams:     make(map[string]*commentStream),
		postSubs:    make(map[int]func([]models.Post)),
		commentSubs: make(map[int]commentWatcher),
		overlay:     newOverlay(),
	}

	unsub, err := st.SubscribePosts(e.onPostsSnapshot)
	if err != nil {
		return nil, err
	}
	e.unsubPosts = unsub
	return e, nil
}

func (e *Engine) Close() {
	e.mu.Lock()
	unsub := e.unsubPosts
	streams := e.streams
	e.streams = make(map[string]*commentStream)
	e.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	for _, s := range streams {
		s.unsub()
	}
}

// onPostsSnapshot replaces the ordered post list with the store's
// snapshot. The store delivers posts createdAt-descending; ties keep
// their arrival order.
func (e *Engine) onPostsSnapshot(posts []models.Post) {
	e.mu.Lock()
	e.posts = posts
	subs := make([]func([]models.Post), 0, len(e.postSubs))
	for _, fn := range e.postSubs {
		subs = append(subs, fn)
	}
	e.mu.Unlock()

	for _, fn := range subs {
		fn(posts)
	}
}

// Posts returns the current ordered snapshot, newest first.
func (e *Engine) Posts() []models.Post {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]models.Post{}, e.posts...)
}

// Post returns one post from the live snapshot, falling back to a
// point read when the snapshot has not caught up yet.
func (e *Engine) Post(ctx context.Context, postID string) (models.Post, error) {
	e.mu.Lock()
	for _, p := range e.posts {
		if p.PostID == postID {
			e.mu.Unlock()
			return p, nil
		}
	}
	e.mu.Unlock()
	return e.store.Post(ctx, postID)
}

// SubscribePosts registers a live consumer of the ordered post list.
// The current snapshot is delivered immediately. The returned func
// must be called on teardown; afterwards onChange is never invoked.
func (e *Engine) SubscribePosts(onChange func([]models.Post)) store.Unsubscribe {
	e.mu.Lock()
	id := e.nextSubID
	e.nextSubID++
	e.postSubs[id] = onChange
	snap := append([]models.Post{}, e.posts...)
	e.mu.Unlock()

	onChange(snap)
	return func() {
		e.mu.Lock()
		delete(e.postSubs, id)
		e.mu.Unlock()
	}
}

// SubscribeComments registers a live consumer of one post's comments,
// ordered createdAt-ascending with pending optimistic entries merged
// in. The underlying store stream is shared and refcounted.
func (e *Engine) SubscribeComments(postID string, onChange func([]models.Comment)) (store.Unsubscribe, error) {
	if err := e.retainCommentStream(postID); err != nil {
		return nil, err
	}

	e.mu.Lock()
	id := e.nextSubID
	e.nextSubID++
	e.commentSubs[id] = commentWatcher{postID: postID, onChange: onChange}
	snap := append([]models.Comment{}, e.streams[postID].snapshot...)
	e.mu.Unlock()

	onChange(e.overlay.Merge(postID, snap))
	return func() {
		e.mu.Lock()
		delete(e.commentSubs, id)
		e.mu.Unlock()
		e.releaseCommentStream(postID)
	}, nil
}

func (e *Engine) retainCommentStream(postID string) error {
	e.mu.Lock()
	if s, ok := e.streams[postID]; ok {
		s.refs++
		e.mu.Unlock()
		return nil
	}
	s := &commentStream{refs: 1}
	e.streams[postID] = s
	e.mu.Unlock()

	unsub, err := e.store.SubscribeComments(postID, func(comments []models.Comment) {
		e.onCommentsSnapshot(postID, comments)
	})
	if err != nil {
		e.mu.Lock()
		delete(e.streams, postID)
		e.mu.Unlock()
		return err
	}

	e.mu.Lock()
	s.unsub = unsub
	e.mu.Unlock()
	return nil
}

func (e *Engine) releaseCommentStream(postID string) {
	e.mu.Lock()
	s, ok := e.streams[postID]
	if !ok {
		e.mu.Unlock()
		return
	}
	s.refs--
	if s.refs > 0 {
		e.mu.Unlock()
		return
	}
	delete(e.streams, postID)
	e.mu.Unlock()

	if s.unsub != nil {
		s.unsub()
	}
}

func (e *Engine) onCommentsSnapshot(postID string, comments []models.Comment) {
	e.mu.Lock()
	s, ok := e.streams[postID]
	if ok {
		s.snapshot = comments
	}
	watchers := []func([]models.Comment){}
	for _, w := range e.commentSubs {
		if w.postID == postID {
			watchers = append(watchers, w.onChange)
		}
	}
	e.mu.Unlock()

	merged := e.overlay.Merge(postID, comments)
	for _, fn := range watchers {
		fn(merged)
	}
}

// GroupCommentsForPost returns the post's comments oldest-first,
// pending entries included. When no live stream is open it falls back
// to a one-shot query.
func (e *Engine) GroupCommentsForPost(ctx context.Context, postID string) ([]models.Comment, error) {
	e.mu.Lock()
	s, ok := e.streams[postID]
	var snap []models.Comment
	if ok {
		snap = append([]models.Comment{}, s.snapshot...)
	}
	e.mu.Unlock()

	if !ok {
		var err error
		snap, err = e.store.CommentsByPost(ctx, postID)
		if err != nil {
			return nil, err
		}
	}
	return e.overlay.Merge(postID, snap), nil
}

// SubmitComment validates, optimistically appends, then writes the
// comment. The submitting user sees it at once; the pending entry is
// cleared when the subscription echoes the confirmed document back.
func (e *Engine) SubmitComment(ctx context.Context, postID string, ident session.Identity, text string) (models.Comment, error) {
	if ident.UID == "" {
		return models.Comment{}, apperr.ErrAuthRequired
	}
	if strings.TrimSpace(text) == "" {
		return models.Comment{}, apperr.Validation("comment cannot be empty")
	}
	if _, err := e.Post(ctx, postID); err != nil {
		return models.Comment{}, err
	}

	comment := models.Comment{
		CommentID:  "c" + utils.GenerateID(12),
		PostID:     postID,
		UserID:     ident.UID,
		UserName:   ident.UserName,
		UserAvatar: ident.PhotoURL,
		Text:       text,
		CreatedAt:  time.Now(), // placeholder until the server value echoes back
	}

	e.overlay.Add(comment)
	e.notifyCommentWatchers(postID)

	confirmed, err := e.store.InsertComment(ctx, comment)
	if err != nil {
		e.overlay.Drop(postID, comment.CommentID)
		e.notifyCommentWatchers(postID)
		return models.Comment{}, err
	}
	return confirmed, nil
}

func (e *Engine) notifyCommentWatchers(postID string) {
	e.mu.Lock()
	s, ok := e.streams[postID]
	var snap []models.Comment
	if ok {
		snap = append([]models.Comment{}, s.snapshot...)
	}
	watchers := []func([]models.Comment){}
	for _, w := range e.commentSubs {
		if w.postID == postID {
			watchers = append(watchers, w.onChange)
		}
	}
	e.mu.Unlock()

	merged := e.overlay.Merge(postID, snap)
	for _, fn := range watchers {
		fn(merged)
	}
}

// CreatePost inserts a new post owned by the identity. The store
// assigns the timestamp.
func (e *Engine) CreatePost(ctx context.Context, ident session.Identity, imageURL, caption string) (models.Post, error) {
	if ident.UID == "" {
		return models.Post{}, apperr.ErrAuthRequired
	}
	if imageURL == "" {
		return models.Post{}, apperr.Validation("image is required")
	}

	post := models.Post{
		PostID:   "p" + utils.GenerateID(12),
		ImageURL: imageURL,
		Caption:  caption,
		UserID:   ident.UID,
		UserName: ident.UserName,
		Likes:    []string{},
	}

	var created models.Post
	err := store.WithRetry(ctx, func(ctx context.Context) error {
		var err error
		created, err = e.store.InsertPost(ctx, post)
		return err
	})
	if err != nil {
		return models.Post{}, err
	}
	return created, nil
}

// EditPostCaption is owner-only; the check runs before any write.
func (e *Engine) EditPostCaption(ctx context.Context, postID, caption string, ident session.Identity) error {
	if ident.UID == "" {
		return apperr.ErrAuthRequired
	}
	post, err := e.Post(ctx, postID)
	if err != nil {
		return err
	}
	if post.UserID != ident.UID {
		return apperr.ErrForbidden
	}
	return store.WithRetry(ctx, func(ctx context.Context) error {
		return e.store.SetPostCaption(ctx, postID, caption)
	})
}

// ForgetPost discards local state for a deleted post: any pending
// comment overlay entries. Live streams drain naturally when their
// snapshots empty out.
func (e *Engine) ForgetPost(postID string) {
	e.overlay.ClearPost(postID)
}

// SearchPosts filters the live snapshot by caption or author name,
// case-insensitive.
func (e *Engine) SearchPosts(q string) []models.Post {
	q = strings.ToLower(strings.TrimSpace(q))
	posts := e.Posts()
	if q == "" {
		return posts
	}
	out := []models.Post{}
	for _, p := range posts {
		if strings.Contains(strings.ToLower(p.Caption), q) ||
			strings.Contains(strings.ToLower(p.UserName), q) {
			out = append(out, p)
		}
	}
	return out
}
