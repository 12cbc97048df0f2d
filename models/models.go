package models

import "time"

// Post is a single photo post. Likes is a set of user ids, never a
// stored counter; the displayed count is always len(Likes).
type Post struct {
	PostID    string    `json:"id" bson:"postid"`
	ImageURL  string    `json:"imageUrl" bson:"imageurl"`
	Caption   string    `json:"caption" bson:"caption"`
	UserID    string    `json:"userId" bson:"userid"`
	UserName  string    `json:"userName" bson:"username"`
	Likes     []string  `json:"likes" bson:"likes"`
	CreatedAt time.Time `json:"createdAt" bson:"createdat"`
}

func (p Post) LikedBy(uid string) bool {
	for _, id := range p.Likes {
		if id == uid {
			return true
		}
	}
	return false
}

// Comment is immutable once created and only ever removed as part of
// its parent post's cascading delete.
type Comment struct {
	CommentID  string    `json:"id" bson:"commentid"`
	PostID     string    `json:"postId" bson:"postid"`
	UserID     string    `json:"userId" bson:"userid"`
	UserName   string    `json:"userName" bson:"username"`
	UserAvatar string    `json:"userAvatar,omitempty" bson:"useravatar,omitempty"`
	Text       string    `json:"text" bson:"text"`
	CreatedAt  time.Time `json:"createdAt" bson:"createdat"`

	// Pending marks an optimistic local entry that has not been echoed
	// back by the store yet. Never persisted.
	Pending bool `json:"pending,omitempty" bson:"-"`
}

// Index is an event emitted over the message queue when an entity
// changes, consumed by the activity feed and search indexer.
type Index struct {
	EntityType string `json:"entity_type"`
	Method     string `json:"method"`
	EntityId   string `json:"entity_id"`
	ItemId     string `json:"item_id"`
	ItemType   string `json:"item_type"`
}
