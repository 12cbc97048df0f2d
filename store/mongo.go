package store

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"pixelfeed/apperr"
	"pixelfeed/db"
	"pixelfeed/models"
)

// Mongo implements EntityStore on top of the shared collections in
// package db. Documents failing the schema check are rejected at this
// boundary rather than propagated as half-formed records.
type Mongo struct{}

func NewMongo() *Mongo { return &Mongo{} }

// --- schema validation boundary ---

func validatePost(p models.Post) error {
	if p.PostID == "" || p.UserID == "" || p.ImageURL == "" {
		return apperr.Validation("malformed post document")
	}
	return nil
}

func validateComment(c models.Comment) error {
	if c.CommentID == "" || c.PostID == "" || c.UserID == "" {
		return apperr.Validation("malformed comment document")
	}
	return nil
}

func validateUser(u models.User) error {
	if u.UserID == "" || u.UserName == "" {
		return apperr.Validation("malformed user document")
	}
	return nil
}

// --- Point reads ---

func (s *Mongo) Post(ctx context.Context, postID string) (models.Post, error) {
	var p models.Post
	err := db.PostsCollection.FindOne(ctx, bson.M{"postid": postID}).Decode(&p)
	if err == mongo.ErrNoDocuments {
		return models.Post{}, apperr.ErrNotFound
	}
	if err != nil {
		return models.Post{}, apperr.Transient("post read", err)
	}
	if err := validatePost(p); err != nil {
		return models.Post{}, err
	}
	return p, nil
}

func (s *Mongo) User(ctx context.Context, uid string) (models.User, error) {
	var u models.User
	err := db.UserCollection.FindOne(ctx, bson.M{"userid": uid}).Decode(&u)
	if err == mongo.ErrNoDocuments {
		return models.User{}, apperr.ErrNotFound
	}
	if err != nil {
		return models.User{}, apperr.Transient("user read", err)
	}
	if err := validateUser(u); err != nil {
		return models.User{}, err
	}
	return u, nil
}

func (s *Mongo) UserByName(ctx context.Context, userName string) (models.User, error) {
	var u models.User
	err := db.UserCollection.FindOne(ctx, bson.M{"username": userName}).Decode(&u)
	if err == mongo.ErrNoDocuments {
		return models.User{}, apperr.ErrNotFound
	}
	if err != nil {
		return models.User{}, apperr.Transient("user read", err)
	}
	return u, nil
}

// --- Queries ---

func (s *Mongo) PostsByRecency(ctx context.Context) ([]models.Post, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdat", Value: -1}})
	return s.findPosts(ctx, bson.M{}, opts)
}

func (s *Mongo) PostsByUser(ctx context.Context, uid string) ([]models.Post, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdat", Value: -1}})
	return s.findPosts(ctx, bson.M{"userid": uid}, opts)
}

func (s *Mongo) findPosts(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Post, error) {
	cursor, err := db.PostsCollection.Find(ctx, filter, opts)
	if err != nil {
		return nil, apperr.Transient("posts query", err)
	}
	defer cursor.Close(ctx)

	posts := []models.Post{}
	for cursor.Next(ctx) {
		var p models.Post
		if err := cursor.Decode(&p); err != nil {
			return nil, apperr.Transient("posts decode", err)
		}
		if err := validatePost(p); err != nil {
			log.Printf("skipping malformed post document: %v", err)
			continue
		}
		posts = append(posts, p)
	}
	if err := cursor.Err(); err != nil {
		return nil, apperr.Transient("posts cursor", err)
	}
	return posts, nil
}

func (s *Mongo) CommentsByPost(ctx context.Context, postID string) ([]models.Comment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdat", Value: 1}})
	cursor, err := db.CommentsCollection.Find(ctx, bson.M{"postid": postID}, opts)
	if err != nil {
		return nil, apperr.Transient("comments query", err)
	}
	defer cursor.Close(ctx)

	comments := []models.Comment{}
	for cursor.Next(ctx) {
		var c models.Comment
		if err := cursor.Decode(&c); err != nil {
			return nil, apperr.Transient("comments decode", err)
		}
		if err := validateComment(c); err != nil {
			log.Printf("skipping malformed comment document: %v", err)
			continue
		}
		comments = append(comments, c)
	}
	if err := cursor.Err(); err != nil {
		return nil, apperr.Transient("comments cursor", err)
	}
	return comments, nil
}

func (s *Mongo) UsersByIDs(ctx context.Context, uids []string) ([]models.User, error) {
	if len(uids) == 0 {
		return []models.User{}, nil
	}
	cursor, err := db.UserCollection.Find(ctx, bson.M{"userid": bson.M{"$in": uids}})
	if err != nil {
		return nil, apperr.Transient("users query", err)
	}
	defer cursor.Close(ctx)

	users := []models.User{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, apperr.Transient("users decode", err)
	}
	return users, nil
}

// --- Writes ---

func (s *Mongo) InsertUser(ctx context.Context, u models.User) error {
	u.CreatedAt = time.Now()
	if err := validateUser(u); err != nil {
		return err
	}
	_, err := db.UserCollection.InsertOne(ctx, u)
	return apperr.Transient("user insert", err)
}

func (s *Mongo) InsertPost(ctx context.Context, p models.Post) (models.Post, error) {
	p.CreatedAt = time.Now()
	if p.Likes == nil {
		p.Likes = []string{}
	}
	if err := validatePost(p); err != nil {
		return models.Post{}, err
	}
	if _, err := db.PostsCollection.InsertOne(ctx, p); err != nil {
		return models.Post{}, apperr.Transient("post insert", err)
	}
	return p, nil
}

func (s *Mongo) InsertComment(ctx context.Context, c models.Comment) (models.Comment, error) {
	c.CreatedAt = time.Now()
	c.Pending = false
	if err := validateComment(c); err != nil {
		return models.Comment{}, err
	}
	// Comments must never be created for a post that no longer exists.
	count, err := db.PostsCollection.CountDocuments(ctx, bson.M{"postid": c.PostID})
	if err != nil {
		return models.Comment{}, apperr.Transient("post lookup", err)
	}
	if count == 0 {
		return models.Comment{}, apperr.ErrNotFound
	}
	if _, err := db.CommentsCollection.InsertOne(ctx, c); err != nil {
		return models.Comment{}, apperr.Transient("comment insert", err)
	}
	return c, nil
}

func (s *Mongo) SetPostCaption(ctx context.Context, postID, caption string) error {
	res, err := db.PostsCollection.UpdateOne(ctx,
		bson.M{"postid": postID},
		bson.M{"$set": bson.M{"caption": caption}},
	)
	if err != nil {
		return apperr.Transient("caption update", err)
	}
	if res.MatchedCount == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (s *Mongo) SetUserProfile(ctx context.Context, uid string, patch models.ProfilePatch) error {
	set := bson.M{}
	if patch.UserName != nil {
		set["username"] = *patch.UserName
	}
	if patch.Biography != nil {
		set["biography"] = *patch.Biography
	}
	if patch.PhotoURL != nil {
		set["photourl"] = *patch.PhotoURL
	}
	if len(set) == 0 {
		return nil
	}
	res, err := db.UserCollection.UpdateOne(ctx, bson.M{"userid": uid}, bson.M{"$set": set})
	if err != nil {
		return apperr.Transient("profile update", err)
	}
	if res.MatchedCount == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (s *Mongo) SetLastLogin(ctx context.Context, uid string) error {
	_, err := db.UserCollection.UpdateOne(ctx,
		bson.M{"userid": uid},
		bson.M{"$set": bson.M{"last_login": time.Now()}},
	)
	return apperr.Transient("last login update", err)
}

// --- Atomic set membership ---

func (s *Mongo) AddLike(ctx context.Context, postID, uid string) error {
	return s.updateLikes(ctx, postID, bson.M{"$addToSet": bson.M{"likes": uid}})
}

func (s *Mongo) RemoveLike(ctx context.Context, postID, uid string) error {
	return s.updateLikes(ctx, postID, bson.M{"$pull": bson.M{"likes": uid}})
}

func (s *Mongo) updateLikes(ctx context.Context, postID string, update bson.M) error {
	res, err := db.PostsCollection.UpdateOne(ctx, bson.M{"postid": postID}, update)
	if err != nil {
		return apperr.Transient("like update", err)
	}
	if res.MatchedCount == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// --- Batch ---

type mongoBatch struct {
	ops []func(mongo.SessionContext) error
}

func (b *mongoBatch) DeletePost(postID string) {
	b.ops = append(b.ops, func(sc mongo.SessionContext) error {
		_, err := db.PostsCollection.DeleteOne(sc, bson.M{"postid": postID})
		return err
	})
}

func (b *mongoBatch) DeleteComment(commentID string) {
	b.ops = append(b.ops, func(sc mongo.SessionContext) error {
		_, err := db.CommentsCollection.DeleteOne(sc, bson.M{"commentid": commentID})
		return err
	})
}

func (b *mongoBatch) userUpdate(uid string, update bson.M) {
	b.ops = append(b.ops, func(sc mongo.SessionContext) error {
		_, err := db.UserCollection.UpdateOne(sc, bson.M{"userid": uid}, update)
		return err
	})
}

func (b *mongoBatch) AddFollower(uid, followerID string) {
	b.userUpdate(uid, bson.M{"$addToSet": bson.M{"followers": followerID}})
}

func (b *mongoBatch) RemoveFollower(uid, followerID string) {
	b.userUpdate(uid, bson.M{"$pull": bson.M{"followers": followerID}})
}

func (b *mongoBatch) AddFollowing(uid, targetID string) {
	b.userUpdate(uid, bson.M{"$addToSet": bson.M{"following": targetID}})
}

func (b *mongoBatch) RemoveFollowing(uid, targetID string) {
	b.userUpdate(uid, bson.M{"$pull": bson.M{"following": targetID}})
}

// RunBatch commits all queued operations in a single transaction, so
// no subscriber can observe a half-applied cascade.
func (s *Mongo) RunBatch(ctx context.Context, fn func(Batch) error) error {
	b := &mongoBatch{}
	if err := fn(b); err != nil {
		return err
	}
	if len(b.ops) == 0 {
		return nil
	}

	sess, err := db.Client.StartSession()
	if err != nil {
		return apperr.Transient("batch session", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		for _, op := range b.ops {
			if err := op(sc); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	return apperr.Transient("batch commit", err)
}

// --- Subscriptions ---

// pollInterval paces the fallback loop used when change streams are
// unavailable (standalone mongod without a replica set).
const pollInterval = 2 * time.Second

// watchLoop delivers an initial snapshot, then a fresh snapshot after
// every change event. Once stop is closed no further deliveries
// happen.
func watchLoop(coll *mongo.Collection, pipeline mongo.Pipeline, stop chan struct{}, deliver func() bool) {
	if !deliver() {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-stop
		cancel()
	}()

	stream, err := coll.Watch(ctx, pipeline)
	if err != nil {
		// Standalone deployments have no oplog; poll instead.
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if !deliver() {
					return
				}
			}
		}
	}
	defer stream.Close(context.Background())

	for stream.Next(ctx) {
		if !deliver() {
			return
		}
	}
}

// subscription guards a callback so that Unsubscribe guarantees no
// further onChange invocations.
type subscription struct {
	mu     sync.Mutex
	closed bool
	stop   chan struct{}
}

func newSubscription() *subscription {
	return &subscription{stop: make(chan struct{})}
}

func (s *subscription) fire(fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	fn()
	return true
}

func (s *subscription) unsubscribe() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.stop)
	}
	s.mu.Unlock()
}

func (s *Mongo) SubscribePosts(onChange func([]models.Post)) (Unsubscribe, error) {
	sub := newSubscription()
	deliver := func() bool {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		posts, err := s.PostsByRecency(ctx)
		if err != nil {
			log.Printf("posts subscription refresh: %v", err)
			return !subClosed(sub)
		}
		return sub.fire(func() { onChange(posts) })
	}
	go watchLoop(db.PostsCollection, mongo.Pipeline{}, sub.stop, deliver)
	return sub.unsubscribe, nil
}

func (s *Mongo) SubscribeComments(postID string, onChange func([]models.Comment)) (Unsubscribe, error) {
	sub := newSubscription()
	// Delete events carry no fullDocument, so the stream is not
	// narrowed by postid; the re-query is scoped regardless.
	deliver := func() bool {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		comments, err := s.CommentsByPost(ctx, postID)
		if err != nil {
			log.Printf("comments subscription refresh: %v", err)
			return !subClosed(sub)
		}
		return sub.fire(func() { onChange(comments) })
	}
	go watchLoop(db.CommentsCollection, mongo.Pipeline{}, sub.stop, deliver)
	return sub.unsubscribe, nil
}

func (s *Mongo) SubscribeUser(uid string, onChange func(models.User)) (Unsubscribe, error) {
	sub := newSubscription()
	deliver := func() bool {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		u, err := s.User(ctx, uid)
		if err != nil {
			if !errors.Is(err, apperr.ErrNotFound) {
				log.Printf("user subscription refresh: %v", err)
			}
			return !subClosed(sub)
		}
		return sub.fire(func() { onChange(u) })
	}
	go watchLoop(db.UserCollection, mongo.Pipeline{}, sub.stop, deliver)
	return sub.unsubscribe, nil
}

func subClosed(s *subscription) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
