package models

// Credentials is the body of POST /auth/login.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Registration is the body of POST /users/register.
type Registration struct {
	Username string `json:"username" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// ProfileUpdate is the body of PUT /auth/me. An empty password keeps the
// current one and is left out of the request.
type ProfileUpdate struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password,omitempty"`
}

// PostInput is the body of POST /posts and PUT /posts/:id.
type PostInput struct {
	Title   string `json:"title" validate:"required"`
	Content string `json:"content" validate:"required,min=10"`
}

// CommentInput is the body of POST /comments.
type CommentInput struct {
	PostID  ID     `json:"postId" validate:"required"`
	Content string `json:"content" validate:"required"`
}
