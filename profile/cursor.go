package profile

import "pixelfeed/models"

// Cursor tracks the open post inside an ordered grid for the
// next/previous navigation of the single-post modal. Movement never
// increments a raw index: the target post's id is located in the
// freshly sorted sequence, so the cursor stays correct when the
// underlying list changes mid-navigation. No wraparound at either
// boundary.
type Cursor struct {
	posts []models.Post
	index int
}

// NewCursor anchors a cursor on postID within the ordered sequence.
// ok is false when the post is not in the sequence (racing delete).
func NewCursor(posts []models.Post, postID string) (Cursor, bool) {
	for i, p := range posts {
		if p.PostID == postID {
			return Cursor{posts: posts, index: i}, true
		}
	}
	return Cursor{}, false
}

func (c Cursor) Current() models.Post { return c.posts[c.index] }
func (c Cursor) Index() int           { return c.index }
func (c Cursor) HasNext() bool        { return c.index < len(c.posts)-1 }
func (c Cursor) HasPrevious() bool    { return c.index > 0 }

// Next moves to the following post, re-anchoring by id in the fresh
// sequence.
func (c Cursor) Next(fresh []models.Post) (Cursor, bool) {
	if !c.HasNext() {
		return c, false
	}
	return NewCursor(fresh, c.posts[c.index+1].PostID)
}

// Previous moves to the preceding post, re-anchoring by id in the
// fresh sequence.
func (c Cursor) Previous(fresh []models.Post) (Cursor, bool) {
	if !c.HasPrevious() {
		return c, false
	}
	return NewCursor(fresh, c.posts[c.index-1].PostID)
}

// Refresh re-anchors the current post in a fresh sequence after the
// underlying list changed externally.
func (c Cursor) Refresh(fresh []models.Post) (Cursor, bool) {
	return NewCursor(fresh, c.Current().PostID)
}
