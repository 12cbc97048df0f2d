package store

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"pixelfeed/apperr"
	"pixelfeed/models"
)

// Memory is an in-process EntityStore with the same snapshot-push
// subscription semantics as the Mongo adapter. It backs the tests and
// the STORE=memory local mode.
type Memory struct {
	mu       sync.Mutex
	users    map[string]models.User
	posts    map[string]models.Post
	comments map[string]models.Comment

	clock int64 // monotonically increasing write counter

	postSubs    map[int]func([]models.Post)
	commentSubs map[int]commentSub
	userSubs    map[int]userSub
	nextSubID   int

	// FailBatches makes the next N RunBatch calls fail before applying
	// anything. Used to exercise the no-partial-cascade guarantee.
	FailBatches int
}

type commentSub struct {
	postID   string
	onChange func([]models.Comment)
}

type userSub struct {
	uid      string
	onChange func(models.User)
}

func NewMemory() *Memory {
	return &Memory{
		users:       make(map[string]models.User),
		posts:       make(map[string]models.Post),
		comments:    make(map[string]models.Comment),
		postSubs:    make(map[int]func([]models.Post)),
		commentSubs: make(map[int]commentSub),
		userSubs:    make(map[int]userSub),
	}
}

// serverNow returns a timestamp guaranteed to increase with every
// write, even when the wall clock does not move between writes.
func (m *Memory) serverNow() time.Time {
	m.clock++
	return time.Now().Add(time.Duration(m.clock) * time.Microsecond)
}

// --- Point reads ---

func (m *Memory) Post(_ context.Context, postID string) (models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[postID]
	if !ok {
		return models.Post{}, apperr.ErrNotFound
	}
	return clonePost(p), nil
}

func (m *Memory) User(_ context.Context, uid string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[uid]
	if !ok {
		return models.User{}, apperr.ErrNotFound
	}
	return cloneUser(u), nil
}

func (m *Memory) UserByName(_ context.Context, userName string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.UserName, userName) {
			return cloneUser(u), nil
		}
	}
	return models.User{}, apperr.ErrNotFound
}

func (m *Memory) UsersByIDs(_ context.Context, uids []string) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.User{}
	for _, id := range uids {
		if u, ok := m.users[id]; ok {
			out = append(out, cloneUser(u))
		}
	}
	return out, nil
}

// --- Queries ---

func (m *Memory) PostsByRecency(_ context.Context) ([]models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.postsByRecencyLocked(), nil
}

func (m *Memory) postsByRecencyLocked() []models.Post {
	out := []models.Post{}
	for _, p := range m.posts {
		out = append(out, clonePost(p))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (m *Memory) PostsByUser(_ context.Context, uid string) ([]models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Post{}
	for _, p := range m.posts {
		if p.UserID == uid {
			out = append(out, clonePost(p))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Memory) CommentsByPost(_ context.Context, postID string) ([]models.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.commentsByPostLocked(postID), nil
}

func (m *Memory) commentsByPostLocked(postID string) []models.Comment {
	out := []models.Comment{}
	for _, c := range m.comments {
		if c.PostID == postID {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// --- Writes ---

func (m *Memory) InsertUser(_ context.Context, u models.User) error {
	m.mu.Lock()
	if _, exists := m.users[u.UserID]; exists {
		m.mu.Unlock()
		return apperr.Validation("user %s already exists", u.UserID)
	}
	u.CreatedAt = m.serverNow()
	m.users[u.UserID] = u
	m.mu.Unlock()
	m.notifyUser(u.UserID)
	return nil
}

func (m *Memory) InsertPost(_ context.Context, p models.Post) (models.Post, error) {
	m.mu.Lock()
	p.CreatedAt = m.serverNow()
	if p.Likes == nil {
		p.Likes = []string{}
	}
	m.posts[p.PostID] = p
	m.mu.Unlock()
	m.notifyPosts()
	return p, nil
}

func (m *Memory) InsertComment(_ context.Context, c models.Comment) (models.Comment, error) {
	m.mu.Lock()
	if _, ok := m.posts[c.PostID]; !ok {
		m.mu.Unlock()
		return models.Comment{}, apperr.ErrNotFound
	}
	c.CreatedAt = m.serverNow()
	c.Pending = false
	m.comments[c.CommentID] = c
	m.mu.Unlock()
	m.notifyComments(c.PostID)
	return c, nil
}

func (m *Memory) SetPostCaption(_ context.Context, postID, caption string) error {
	m.mu.Lock()
	p, ok := m.posts[postID]
	if !ok {
		m.mu.Unlock()
		return apperr.ErrNotFound
	}
	p.Caption = caption
	m.posts[postID] = p
	m.mu.Unlock()
	m.notifyPosts()
	return nil
}

func (m *Memory) SetUserProfile(_ context.Context, uid string, patch models.ProfilePatch) error {
	m.mu.Lock()
	u, ok := m.users[uid]
	if !ok {
		m.mu.Unlock()
		return apperr.ErrNotFound
	}
	if patch.UserName != nil {
		u.UserName = *patch.UserName
	}
	if patch.Biography != nil {
		u.Biography = *patch.Biography
	}
	if patch.PhotoURL != nil {
		u.PhotoURL = *patch.PhotoURL
	}
	m.users[uid] = u
	m.mu.Unlock()
	m.notifyUser(uid)
	return nil
}

func (m *Memory) SetLastLogin(_ context.Context, uid string) error {
	m.mu.Lock()
	u, ok := m.users[uid]
	if !ok {
		m.mu.Unlock()
		return apperr.ErrNotFound
	}
	u.LastLogin = m.serverNow()
	m.users[uid] = u
	m.mu.Unlock()
	return nil
}

func (m *Memory) AddLike(_ context.Context, postID, uid string) error {
	m.mu.Lock()
	p, ok := m.posts[postID]
	if !ok {
		m.mu.Unlock()
		return apperr.ErrNotFound
	}
	p.Likes = addToSet(p.Likes, uid)
	m.posts[postID] = p
	m.mu.Unlock()
	m.notifyPosts()
	return nil
}

func (m *Memory) RemoveLike(_ context.Context, postID, uid string) error {
	m.mu.Lock()
	p, ok := m.posts[postID]
	if !ok {
		m.mu.Unlock()
		return apperr.ErrNotFound
	}
	p.Likes = removeFromSet(p.Likes, uid)
	m.posts[postID] = p
	m.mu.Unlock()
	m.notifyPosts()
	return nil
}

// --- Batch ---

type memoryBatch struct {
	ops []func(m *Memory)

	postsTouched bool
	commentPosts map[string]bool
	usersTouched map[string]bool
}

func (b *memoryBatch) DeletePost(postID string) {
	b.postsTouched = true
	b.ops = append(b.ops, func(m *Memory) { delete(m.posts, postID) })
}

func (b *memoryBatch) DeleteComment(commentID string) {
	b.ops = append(b.ops, func(m *Memory) {
		if c, ok := m.comments[commentID]; ok {
			b.commentPosts[c.PostID] = true
			delete(m.comments, commentID)
		}
	})
}

func (b *memoryBatch) touchUser(uid string, apply func(u *models.User)) {
	b.usersTouched[uid] = true
	b.ops = append(b.ops, func(m *Memory) {
		if u, ok := m.users[uid]; ok {
			apply(&u)
			m.users[uid] = u
		}
	})
}

func (b *memoryBatch) AddFollower(uid, followerID string) {
	b.touchUser(uid, func(u *models.User) { u.Followers = addToSet(u.Followers, followerID) })
}

func (b *memoryBatch) RemoveFollower(uid, followerID string) {
	b.touchUser(uid, func(u *models.User) { u.Followers = removeFromSet(u.Followers, followerID) })
}

func (b *memoryBatch) AddFollowing(uid, targetID string) {
	b.touchUser(uid, func(u *models.User) { u.Following = addToSet(u.Following, targetID) })
}

func (b *memoryBatch) RemoveFollowing(uid, targetID string) {
	b.touchUser(uid, func(u *models.User) { u.Following = removeFromSet(u.Following, targetID) })
}

func (m *Memory) RunBatch(_ context.Context, fn func(Batch) error) error {
	b := &memoryBatch{
		commentPosts: make(map[string]bool),
		usersTouched: make(map[string]bool),
	}
	if err := fn(b); err != nil {
		return err
	}

	m.mu.Lock()
	if m.FailBatches > 0 {
		m.FailBatches--
		m.mu.Unlock()
		return apperr.Transient("batch commit", errors.New("injected failure"))
	}
	for _, op := range b.ops {
		op(m)
	}
	m.mu.Unlock()

	// Subscribers observe only the committed state.
	if b.postsTouched {
		m.notifyPosts()
	}
	for postID := range b.commentPosts {
		m.notifyComments(postID)
	}
	for uid := range b.usersTouched {
		m.notifyUser(uid)
	}
	return nil
}

// --- Subscriptions ---

func (m *Memory) SubscribePosts(onChange func([]models.Post)) (Unsubscribe, error) {
	m.mu.Lock()
	id := m.nextSubID
	m.nextSubID++
	m.postSubs[id] = onChange
	snap := m.postsByRecencyLocked()
	m.mu.Unlock()

	onChange(snap)
	return func() {
		m.mu.Lock()
		delete(m.postSubs, id)
		m.mu.Unlock()
	}, nil
}

func (m *Memory) SubscribeComments(postID string, onChange func([]models.Comment)) (Unsubscribe, error) {
	m.mu.Lock()
	id := m.nextSubID
	m.nextSubID++
	m.commentSubs[id] = commentSub{postID: postID, onChange: onChange}
	snap := m.commentsByPostLocked(postID)
	m.mu.Unlock()

	onChange(snap)
	return func() {
		m.mu.Lock()
		delete(m.commentSubs, id)
		m.mu.Unlock()
	}, nil
}

func (m *Memory) SubscribeUser(uid string, onChange func(models.User)) (Unsubscribe, error) {
	m.mu.Lock()
	id := m.nextSubID
	m.nextSubID++
	m.userSubs[id] = userSub{uid: uid, onChange: onChange}
	u, ok := m.users[uid]
	m.mu.Unlock()

	if ok {
		onChange(cloneUser(u))
	}
	return func() {
		m.mu.Lock()
		delete(m.userSubs, id)
		m.mu.Unlock()
	}, nil
}

func (m *Memory) notifyPosts() {
	m.mu.Lock()
	snap := m.postsByRecencyLocked()
	subs := make([]func([]models.Post), 0, len(m.postSubs))
	for _, fn := range m.postSubs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()
	for _, fn := range subs {
		fn(snap)
	}
}

func (m *Memory) notifyComments(postID string) {
	m.mu.Lock()
	snap := m.commentsByPostLocked(postID)
	subs := []func([]models.Comment){}
	for _, s := range m.commentSubs {
		if s.postID == postID {
			subs = append(subs, s.onChange)
		}
	}
	m.mu.Unlock()
	for _, fn := range subs {
		fn(snap)
	}
}

func (m *Memory) notifyUser(uid string) {
	m.mu.Lock()
	u, ok := m.users[uid]
	subs := []func(models.User){}
	for _, s := range m.userSubs {
		if s.uid == uid {
			subs = append(subs, s.onChange)
		}
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	for _, fn := range subs {
		fn(cloneUser(u))
	}
}

// --- helpers ---

func addToSet(set []string, v string) []string {
	for _, s := range set {
		if s == v {
			return set
		}
	}
	return append(append([]string{}, set...), v)
}

func removeFromSet(set []string, v string) []string {
	out := []string{}
	for _, s := range set {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}

func clonePost(p models.Post) models.Post {
	p.Likes = append([]string{}, p.Likes...)
	return p
}

func cloneUser(u models.User) models.User {
	u.Followers = append([]string{}, u.Followers...)
	u.Following = append([]string{}, u.Following...)
	return u
}
