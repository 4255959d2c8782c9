// Package comments caches comment threads per post.
//
// Writes never patch a thread locally: after a successful add or delete the
// whole thread is fetched again, so the cache only ever holds what the
// server returned. Two writes racing on the same post resolve in whatever
// order their refetches complete.
package comments

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/dmitrijs2005/blogkeeper/internal/client/api"
	"github.com/dmitrijs2005/blogkeeper/internal/client/models"
	"github.com/dmitrijs2005/blogkeeper/internal/logging"
)

// Cache holds comment threads keyed by post id.
type Cache struct {
	api api.Doer
	log logging.Logger

	mu      sync.RWMutex
	threads map[models.ID][]models.Comment
	loading map[models.ID]bool
	errs    map[models.ID]string
	err     string
}

// New returns an empty Cache. A nil log discards.
func New(doer api.Doer, log logging.Logger) *Cache {
	if log == nil {
		log = logging.Discard()
	}
	return &Cache{
		api:     doer,
		log:     log.With("store", "comments"),
		threads: make(map[models.ID][]models.Comment),
		loading: make(map[models.ID]bool),
		errs:    make(map[models.ID]string),
	}
}

func (c *Cache) fail(ctx context.Context, postID models.ID, err error, fallback string) error {
	msg := api.Message(err, fallback)
	c.mu.Lock()
	c.loading[postID] = false
	c.err = msg
	c.errs[postID] = msg
	c.mu.Unlock()

	c.log.Warn(ctx, fallback, "post_id", postID, "error", err)
	return err
}

// begin marks postID as busy and forgets its previous failure.
func (c *Cache) begin(postID models.ID) {
	c.mu.Lock()
	c.loading[postID] = true
	c.err = ""
	delete(c.errs, postID)
	c.mu.Unlock()
}

// Fetch replaces the thread of postID with the server list.
func (c *Cache) Fetch(ctx context.Context, postID models.ID) ([]models.Comment, error) {
	c.begin(postID)

	var list []models.Comment
	err := c.api.Do(ctx, http.MethodGet, fmt.Sprintf("/comments/post/%d", postID), nil, &list)

	c.mu.Lock()
	c.loading[postID] = false
	if err == nil {
		if list == nil {
			list = []models.Comment{}
		}
		c.threads[postID] = list
	}
	c.mu.Unlock()

	if err != nil {
		return nil, c.fail(ctx, postID, err, "Failed to fetch comments")
	}
	return append([]models.Comment(nil), list...), nil
}

// Add posts a comment and then refetches the thread. A non-empty token
// overrides the session token for the write.
func (c *Cache) Add(ctx context.Context, postID models.ID, content, token string) error {
	c.begin(postID)

	in := models.CommentInput{PostID: postID, Content: content}
	if err := c.api.Do(ctx, http.MethodPost, "/comments", in, nil, api.WithBearer(token)); err != nil {
		return c.fail(ctx, postID, err, "Failed to add comment")
	}

	if _, err := c.Fetch(ctx, postID); err != nil {
		return err
	}
	c.log.Info(ctx, "comment added", "post_id", postID)
	return nil
}

// Delete removes commentID and then refetches the thread of postID.
func (c *Cache) Delete(ctx context.Context, commentID, postID models.ID, token string) error {
	c.begin(postID)

	if err := c.api.Do(ctx, http.MethodDelete, fmt.Sprintf("/comments/%d", commentID), nil, nil, api.WithBearer(token)); err != nil {
		return c.fail(ctx, postID, err, "Failed to delete comment")
	}

	if _, err := c.Fetch(ctx, postID); err != nil {
		return err
	}
	c.log.Info(ctx, "comment deleted", "post_id", postID, "comment_id", commentID)
	return nil
}

// Comments returns the cached thread, empty when it was never fetched.
func (c *Cache) Comments(postID models.ID) []models.Comment {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]models.Comment{}, c.threads[postID]...)
}

func (c *Cache) Count(postID models.ID) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.threads[postID])
}

func (c *Cache) IsLoading(postID models.ID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loading[postID]
}

// ErrFor is the last failure of an operation on postID.
func (c *Cache) ErrFor(postID models.ID) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.errs[postID]
}

// Err is the last failure of any operation.
func (c *Cache) Err() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

func (c *Cache) ClearError() {
	c.mu.Lock()
	c.err = ""
	c.errs = make(map[models.ID]string)
	c.mu.Unlock()
}

// Clear evicts the thread of postID.
func (c *Cache) Clear(postID models.ID) {
	c.mu.Lock()
	delete(c.threads, postID)
	delete(c.loading, postID)
	delete(c.errs, postID)
	c.mu.Unlock()
}

// ClearAll evicts every thread together with its loading flag and error.
// The store-level Err is kept; ClearError resets it.
func (c *Cache) ClearAll() {
	c.mu.Lock()
	c.threads = make(map[models.ID][]models.Comment)
	c.loading = make(map[models.ID]bool)
	c.errs = make(map[models.ID]string)
	c.mu.Unlock()
}
