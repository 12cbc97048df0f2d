package models

import "time"

// User is the canonical account document. Followers holds the uids of
// users following this account; Following the uids this account
// follows. The cross-entity invariant (A following B implies B has A
// as a follower) is kept by mutating both documents in one batch.
type User struct {
	UserID       string    `json:"uid" bson:"userid"`
	UserName     string    `json:"userName" bson:"username"`
	Email        string    `json:"email" bson:"email"`
	PasswordHash string    `json:"-" bson:"password_hash"`
	PhotoURL     string    `json:"photoURL,omitempty" bson:"photourl,omitempty"`
	Biography    string    `json:"biography,omitempty" bson:"biography,omitempty"`
	Followers    []string  `json:"followers,omitempty" bson:"followers,omitempty"`
	Following    []string  `json:"following,omitempty" bson:"following,omitempty"`
	CreatedAt    time.Time `json:"createdAt" bson:"createdat"`
	LastLogin    time.Time `json:"lastLogin,omitempty" bson:"last_login,omitempty"`
}

func (u User) FollowedBy(uid string) bool {
	for _, id := range u.Followers {
		if id == uid {
			return true
		}
	}
	return false
}

// UserProfileResponse is the projection returned by the profile
// endpoints; counts are derived from the sets, never stored.
type UserProfileResponse struct {
	UserID         string `json:"uid"`
	UserName       string `json:"userName"`
	PhotoURL       string `json:"photoURL,omitempty"`
	Biography      string `json:"biography,omitempty"`
	PostCount      int    `json:"postCount"`
	FollowersCount int    `json:"followersCount"`
	FollowingCount int    `json:"followingCount"`
	IsFollowing    bool   `json:"isFollowing"`
	Posts          []Post `json:"posts"`
}

// ProfilePatch carries the editable profile fields. Nil means leave
// the field untouched.
type ProfilePatch struct {
	UserName  *string `json:"userName,omitempty"`
	Biography *string `json:"biography,omitempty"`
	PhotoURL  *string `json:"photoURL,omitempty"`
}
