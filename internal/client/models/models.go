package models

import "time"

// User is the profile returned by /auth/me and embedded in posts/comments.
type User struct {
	ID        ID        `json:"id"`
	Username  string    `json:"username,omitempty"`
	Name      string    `json:"name,omitempty"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt,omitzero"`
}

// DisplayName picks the most human-friendly label available.
func (u User) DisplayName() string {
	switch {
	case u.Name != "":
		return u.Name
	case u.Username != "":
		return u.Username
	default:
		return u.Email
	}
}

type Post struct {
	ID        ID        `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	AuthorID  ID        `json:"authorId"`
	Author    *User     `json:"author,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitzero"`
}

// WrittenBy reports whether userID authored the post. Some API versions
// only embed the author profile, others only send authorId.
func (p Post) WrittenBy(userID ID) bool {
	if p.AuthorID != 0 {
		return p.AuthorID == userID
	}
	return p.Author != nil && p.Author.ID == userID
}

type Comment struct {
	ID        ID        `json:"id"`
	PostID    ID        `json:"postId"`
	Content   string    `json:"content"`
	AuthorID  ID        `json:"authorId"`
	Author    *User     `json:"author,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitzero"`
}

// LoginResponse is the body of POST /auth/login. User is optional.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	User        *User  `json:"user,omitempty"`
}
