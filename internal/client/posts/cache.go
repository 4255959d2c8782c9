// Package posts caches blog posts fetched from the API together with the
// currently focused post.
//
// Each write has its own busy flag (creating, updating, deleting) so a
// slow delete does not hide a list refresh. A failure is recorded as the
// cache's last error and returned unchanged to the caller.
package posts

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/dmitrijs2005/blogkeeper/internal/client/api"
	"github.com/dmitrijs2005/blogkeeper/internal/client/models"
	"github.com/dmitrijs2005/blogkeeper/internal/logging"
)

type op int

const (
	opLoad op = iota
	opCreate
	opUpdate
	opDelete
)

// Cache keeps the post list and the focused post.
//
// Contract:
//   - the list is newest first; Create prepends, FetchOne upserts;
//   - Update and Delete change only entries already in the list;
//   - each kind of operation has its own busy flag, and Err is the message
//     of the latest failure, cleared when the next operation starts.
//
// Getters return copies.
type Cache struct {
	api api.Doer
	log logging.Logger

	mu      sync.RWMutex
	posts   []models.Post
	current *models.Post
	busy    [4]bool
	err     string
}

// New returns an empty Cache. A nil log discards.
func New(doer api.Doer, log logging.Logger) *Cache {
	if log == nil {
		log = logging.Discard()
	}
	return &Cache{api: doer, log: log.With("store", "posts")}
}

func (c *Cache) begin(o op) {
	c.mu.Lock()
	c.busy[o] = true
	c.err = ""
	c.mu.Unlock()
}

func (c *Cache) fail(ctx context.Context, o op, err error, fallback string, args ...any) error {
	msg := api.Message(err, fallback)
	c.mu.Lock()
	c.busy[o] = false
	c.err = msg
	c.mu.Unlock()

	c.log.Warn(ctx, fallback, append(args, "error", err)...)
	return err
}

// Fetch replaces the whole collection with the server list.
func (c *Cache) Fetch(ctx context.Context) ([]models.Post, error) {
	c.begin(opLoad)

	var list []models.Post
	if err := c.api.Do(ctx, http.MethodGet, "/posts", nil, &list); err != nil {
		return nil, c.fail(ctx, opLoad, err, "Failed to fetch posts")
	}

	c.mu.Lock()
	c.posts = append([]models.Post(nil), list...)
	c.busy[opLoad] = false
	c.mu.Unlock()

	c.log.Debug(ctx, "posts fetched", "count", len(list))
	return list, nil
}

// FetchOne loads a single post, upserts it and makes it current. A post
// already in the collection is replaced where it is; a new one goes first.
func (c *Cache) FetchOne(ctx context.Context, id models.ID) (models.Post, error) {
	c.begin(opLoad)

	var p models.Post
	if err := c.api.Do(ctx, http.MethodGet, postPath(id), nil, &p); err != nil {
		return models.Post{}, c.fail(ctx, opLoad, err, "Failed to fetch post", "post_id", id)
	}

	c.mu.Lock()
	if i := c.indexLocked(p.ID); i >= 0 {
		c.posts[i] = p
	} else {
		c.posts = prepend(c.posts, p)
	}
	cur := p
	c.current = &cur
	c.busy[opLoad] = false
	c.mu.Unlock()

	return p, nil
}

// Create submits a new post and puts the server's copy first.
func (c *Cache) Create(ctx context.Context, in models.PostInput) (models.Post, error) {
	c.begin(opCreate)

	var p models.Post
	if err := c.api.Do(ctx, http.MethodPost, "/posts", in, &p); err != nil {
		return models.Post{}, c.fail(ctx, opCreate, err, "Failed to create post")
	}

	c.mu.Lock()
	c.posts = prepend(c.posts, p)
	c.busy[opCreate] = false
	c.mu.Unlock()

	c.log.Info(ctx, "post created", "post_id", p.ID)
	return p, nil
}

// Update replaces the post with the server's answer. Posts not held in the
// collection are not added. A non-empty token overrides the session token.
func (c *Cache) Update(ctx context.Context, id models.ID, in models.PostInput, token string) (models.Post, error) {
	c.begin(opUpdate)

	var p models.Post
	if err := c.api.Do(ctx, http.MethodPut, postPath(id), in, &p, api.WithBearer(token)); err != nil {
		return models.Post{}, c.fail(ctx, opUpdate, err, "Failed to update post", "post_id", id)
	}

	c.mu.Lock()
	if i := c.indexLocked(id); i >= 0 {
		c.posts[i] = p
	}
	if c.current != nil && c.current.ID == id {
		cur := p
		c.current = &cur
	}
	c.busy[opUpdate] = false
	c.mu.Unlock()

	c.log.Info(ctx, "post updated", "post_id", id)
	return p, nil
}

// Delete removes the post and clears the focus if it pointed at it.
func (c *Cache) Delete(ctx context.Context, id models.ID, token string) error {
	c.begin(opDelete)

	if err := c.api.Do(ctx, http.MethodDelete, postPath(id), nil, nil, api.WithBearer(token)); err != nil {
		return c.fail(ctx, opDelete, err, "Failed to delete post", "post_id", id)
	}

	c.mu.Lock()
	if i := c.indexLocked(id); i >= 0 {
		c.posts = append(c.posts[:i:i], c.posts[i+1:]...)
	}
	if c.current != nil && c.current.ID == id {
		c.current = nil
	}
	c.busy[opDelete] = false
	c.mu.Unlock()

	c.log.Info(ctx, "post deleted", "post_id", id)
	return nil
}

// Get looks a post up without touching the network.
func (c *Cache) Get(id models.ID) (models.Post, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i := c.indexLocked(id); i >= 0 {
		return c.posts[i], true
	}
	return models.Post{}, false
}

// Posts returns the cached list in display order.
func (c *Cache) Posts() []models.Post {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]models.Post(nil), c.posts...)
}

// ByAuthor returns the cached posts written by userID, in cache order.
func (c *Cache) ByAuthor(userID models.ID) []models.Post {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []models.Post
	for _, p := range c.posts {
		if p.WrittenBy(userID) {
			out = append(out, p)
		}
	}
	return out
}

func (c *Cache) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.posts)
}

// Current is the post last opened with FetchOne or SetCurrent.
func (c *Cache) Current() (models.Post, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current == nil {
		return models.Post{}, false
	}
	return *c.current, true
}

func (c *Cache) SetCurrent(p models.Post) {
	c.mu.Lock()
	c.current = &p
	c.mu.Unlock()
}

func (c *Cache) ClearCurrent() {
	c.mu.Lock()
	c.current = nil
	c.mu.Unlock()
}

// Clear drops every cached post, the focus and the error.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.posts = nil
	c.current = nil
	c.err = ""
	c.mu.Unlock()
}

func (c *Cache) ClearError() {
	c.mu.Lock()
	c.err = ""
	c.mu.Unlock()
}

func (c *Cache) Err() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

// IsLoading and its siblings report whether that kind of request is in flight.
func (c *Cache) IsLoading() bool  { return c.flag(opLoad) }
func (c *Cache) IsCreating() bool { return c.flag(opCreate) }
func (c *Cache) IsUpdating() bool { return c.flag(opUpdate) }
func (c *Cache) IsDeleting() bool { return c.flag(opDelete) }

func (c *Cache) flag(o op) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.busy[o]
}

func (c *Cache) indexLocked(id models.ID) int {
	for i, p := range c.posts {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func prepend(list []models.Post, p models.Post) []models.Post {
	out := make([]models.Post, 0, len(list)+1)
	out = append(out, p)
	return append(out, list...)
}

func postPath(id models.ID) string {
	return fmt.Sprintf("/posts/%d", id)
}
