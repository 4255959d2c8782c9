// Package apitest runs an in-memory fake of the blog REST API for tests.
//
// The fake keeps users, posts and comments in memory, issues HS256 JWT
// bearer tokens, records every request it receives and can be told to fail
// a route with a given status.
package apitest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/blogkeeper/internal/client/models"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Request is one recorded call.
type Request struct {
	Method        string
	Path          string
	Route         string
	Authorization string
	Body          []byte
}

type failure struct {
	status  int
	message string
}

type account struct {
	user     models.User
	password string
}

type Server struct {
	*httptest.Server

	// OmitUserOnLogin makes /auth/login answer with the token only.
	OmitUserOnLogin bool

	secret []byte
	now    func() time.Time

	mu       sync.Mutex
	accounts map[models.ID]*account
	tokens   map[string]models.ID
	posts    map[models.ID]models.Post
	comments map[models.ID][]models.Comment
	failures map[string]failure
	requests []Request

	nextUserID    models.ID
	nextPostID    models.ID
	nextCommentID models.ID
}

// New starts the fake and stops it when the test ends.
func New(tb testing.TB) *Server {
	tb.Helper()
	gin.SetMode(gin.TestMode)

	s := &Server{
		secret:   []byte(uuid.NewString()),
		now:      time.Now,
		accounts: make(map[models.ID]*account),
		tokens:   make(map[string]models.ID),
		posts:    make(map[models.ID]models.Post),
		comments: make(map[models.ID][]models.Comment),
		failures: make(map[string]failure),
	}
	s.Server = httptest.NewServer(s.router())
	tb.Cleanup(s.Close)
	return s
}

func (s *Server) router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.record, s.injectFailure)

	r.POST("/auth/login", s.login)
	r.POST("/users/register", s.register)
	r.GET("/posts", s.listPosts)
	r.GET("/posts/:id", s.getPost)
	r.GET("/comments/post/:id", s.listComments)

	authed := r.Group("/", s.authenticate)
	authed.GET("/auth/me", s.me)
	authed.PUT("/auth/me", s.updateMe)
	authed.POST("/posts", s.createPost)
	authed.PUT("/posts/:id", s.updatePost)
	authed.DELETE("/posts/:id", s.deletePost)
	authed.POST("/comments", s.createComment)
	authed.DELETE("/comments/:id", s.deleteComment)

	return r
}

func failureKey(method, route string) string {
	return strings.ToUpper(method) + " " + route
}

// Fail makes every request to route (a gin pattern such as "/posts/:id")
// answer with status and {"message": message} until Recover is called.
func (s *Server) Fail(method, route string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[failureKey(method, route)] = failure{status: status, message: message}
}

func (s *Server) Recover() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = make(map[string]failure)
}

// ExpireTokens invalidates every issued token.
func (s *Server) ExpireTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = make(map[string]models.ID)
}

func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// Count returns how many recorded requests match method and path.
func (s *Server) Count(method, path string) int {
	n := 0
	for _, r := range s.Requests() {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

func (s *Server) ResetRequests() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = nil
}

func (s *Server) AddUser(username, email, password string) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addUserLocked(username, email, password)
}

func (s *Server) addUserLocked(username, email, password string) models.User {
	s.nextUserID++
	u := models.User{
		ID:        s.nextUserID,
		Username:  username,
		Email:     email,
		CreatedAt: s.now().UTC(),
	}
	s.accounts[u.ID] = &account{user: u, password: password}
	return u
}

// IssueToken returns a fresh valid token for userID.
func (s *Server) IssueToken(userID models.ID) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issueTokenLocked(userID)
}

func (s *Server) issueTokenLocked(userID models.ID) string {
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(s.now()),
		ExpiresAt: jwt.NewNumericDate(s.now().Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		panic(fmt.Sprintf("apitest: sign token: %v", err))
	}
	s.tokens[token] = userID
	return token
}

func (s *Server) SeedPost(authorID models.ID, title, content string) models.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addPostLocked(authorID, models.PostInput{Title: title, Content: content})
}

func (s *Server) addPostLocked(authorID models.ID, in models.PostInput) models.Post {
	s.nextPostID++
	p := models.Post{
		ID:        s.nextPostID,
		Title:     in.Title,
		Content:   in.Content,
		AuthorID:  authorID,
		CreatedAt: s.now().UTC(),
	}
	if a, ok := s.accounts[authorID]; ok {
		u := a.user
		p.Author = &u
	}
	s.posts[p.ID] = p
	return p
}

func (s *Server) SeedComment(postID, authorID models.ID, content string) models.Comment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addCommentLocked(postID, authorID, content)
}

func (s *Server) addCommentLocked(postID, authorID models.ID, content string) models.Comment {
	s.nextCommentID++
	c := models.Comment{
		ID:        s.nextCommentID,
		PostID:    postID,
		Content:   strings.TrimSpace(content),
		AuthorID:  authorID,
		CreatedAt: s.now().UTC(),
	}
	if a, ok := s.accounts[authorID]; ok {
		u := a.user
		c.Author = &u
	}
	s.comments[postID] = append(s.comments[postID], c)
	return c
}

// Post returns the server copy of a post.
func (s *Server) Post(id models.ID) (models.Post, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	return p, ok
}

func (s *Server) Comments(postID models.ID) []models.Comment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Comment(nil), s.comments[postID]...)
}

/*************
 * middleware
 *************/

func (s *Server) record(c *gin.Context) {
	var body []byte
	if c.Request.Body != nil {
		body, _ = io.ReadAll(c.Request.Body)
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
	}

	s.mu.Lock()
	s.requests = append(s.requests, Request{
		Method:        c.Request.Method,
		Path:          c.Request.URL.Path,
		Route:         c.FullPath(),
		Authorization: c.GetHeader("Authorization"),
		Body:          body,
	})
	s.mu.Unlock()

	c.Next()
}

func (s *Server) injectFailure(c *gin.Context) {
	s.mu.Lock()
	f, ok := s.failures[failureKey(c.Request.Method, c.FullPath())]
	s.mu.Unlock()

	if ok {
		c.AbortWithStatusJSON(f.status, gin.H{"message": f.message})
		return
	}
	c.Next()
}

func (s *Server) authenticate(c *gin.Context) {
	token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
	if !ok || token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
		return
	}

	s.mu.Lock()
	userID, ok := s.tokens[token]
	s.mu.Unlock()
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
		return
	}

	c.Set("userID", userID)
	c.Next()
}

func currentUser(c *gin.Context) models.ID {
	return c.MustGet("userID").(models.ID)
}

/*************
 * handlers
 *************/

func bind[T any](c *gin.Context) (T, bool) {
	var in T
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return in, false
	}
	if err := models.Validate(in); err != nil {
		var ve *models.ValidationError
		if errors.As(err, &ve) {
			msgs := make([]string, 0, len(ve.Fields))
			for _, m := range ve.Fields {
				msgs = append(msgs, m)
			}
			sort.Strings(msgs)
			c.JSON(http.StatusBadRequest, gin.H{"message": msgs})
			return in, false
		}
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return in, false
	}
	return in, true
}

func paramID(c *gin.Context) (models.ID, bool) {
	id, err := models.ParseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid id"})
		return 0, false
	}
	return id, true
}

func (s *Server) login(c *gin.Context) {
	in, ok := bind[models.Credentials](c)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.accounts {
		if strings.EqualFold(a.user.Email, in.Email) && a.password == in.Password {
			resp := models.LoginResponse{AccessToken: s.issueTokenLocked(a.user.ID)}
			if !s.OmitUserOnLogin {
				u := a.user
				resp.User = &u
			}
			c.JSON(http.StatusOK, resp)
			return
		}
	}
	c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid credentials"})
}

func (s *Server) register(c *gin.Context) {
	in, ok := bind[models.Registration](c)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.accounts {
		if strings.EqualFold(a.user.Email, in.Email) {
			c.JSON(http.StatusConflict, gin.H{"message": "Email already registered"})
			return
		}
	}
	u := s.addUserLocked(in.Username, in.Email, in.Password)
	c.JSON(http.StatusCreated, u)
}

func (s *Server) me(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[currentUser(c)]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
		return
	}
	c.JSON(http.StatusOK, a.user)
}

func (s *Server) updateMe(c *gin.Context) {
	in, ok := bind[models.ProfileUpdate](c)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[currentUser(c)]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
		return
	}
	a.user.Email = in.Email
	if in.Password != "" {
		a.password = in.Password
	}
	c.JSON(http.StatusOK, a.user)
}

func (s *Server) listPosts(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Post, 0, len(s.posts))
	for _, p := range s.posts {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	c.JSON(http.StatusOK, out)
}

func (s *Server) getPost(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[id]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "Post not found"})
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) createPost(c *gin.Context) {
	in, ok := bind[models.PostInput](c)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusCreated, s.addPostLocked(currentUser(c), in))
}

// ownedPost looks up the :id post and checks it belongs to the caller.
// Must be called with s.mu held.
func (s *Server) ownedPost(c *gin.Context) (models.Post, bool) {
	id, ok := paramID(c)
	if !ok {
		return models.Post{}, false
	}
	p, ok := s.posts[id]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "Post not found"})
		return models.Post{}, false
	}
	if p.AuthorID != currentUser(c) {
		c.JSON(http.StatusForbidden, gin.H{"message": "You can only modify your own posts"})
		return models.Post{}, false
	}
	return p, true
}

func (s *Server) updatePost(c *gin.Context) {
	in, ok := bind[models.PostInput](c)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.ownedPost(c)
	if !ok {
		return
	}
	p.Title = in.Title
	p.Content = in.Content
	s.posts[p.ID] = p
	c.JSON(http.StatusOK, p)
}

func (s *Server) deletePost(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.ownedPost(c)
	if !ok {
		return
	}
	delete(s.posts, p.ID)
	delete(s.comments, p.ID)
	c.JSON(http.StatusOK, gin.H{"message": "Post deleted"})
}

func (s *Server) listComments(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := append([]models.Comment{}, s.comments[id]...)
	c.JSON(http.StatusOK, out)
}

func (s *Server) createComment(c *gin.Context) {
	in, ok := bind[models.CommentInput](c)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[in.PostID]; !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "Post not found"})
		return
	}
	c.JSON(http.StatusCreated, s.addCommentLocked(in.PostID, currentUser(c), in.Content))
}

func (s *Server) deleteComment(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for postID, thread := range s.comments {
		for i, cm := range thread {
			if cm.ID != id {
				continue
			}
			if cm.AuthorID != currentUser(c) {
				c.JSON(http.StatusForbidden, gin.H{"message": "You can only delete your own comments"})
				return
			}
			s.comments[postID] = append(thread[:i:i], thread[i+1:]...)
			c.JSON(http.StatusOK, gin.H{"message": "Comment deleted"})
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"message": "Comment not found"})
}
