package comments

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/dmitrijs2005/blogkeeper/internal/client/api"
	"github.com/dmitrijs2005/blogkeeper/internal/client/apitest"
	"github.com/dmitrijs2005/blogkeeper/internal/client/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticToken string

func (s staticToken) Token() string { return string(s) }

type fixture struct {
	srv   *apitest.Server
	cache *Cache
	alice models.User
	post  models.Post
}

func setup(t *testing.T) *fixture {
	t.Helper()
	srv := apitest.New(t)
	alice := srv.AddUser("alice", "a@b.com", "x")
	post := srv.SeedPost(alice.ID, "hello", "hello world body")

	client := api.New(srv.URL, api.WithTokenSource(staticToken(srv.IssueToken(alice.ID))))
	return &fixture{srv: srv, cache: New(client, nil), alice: alice, post: post}
}

func TestLookupsDefaultToEmpty(t *testing.T) {
	c := New(nil, nil)

	assert.Empty(t, c.Comments(1))
	assert.NotNil(t, c.Comments(1))
	assert.Equal(t, 0, c.Count(1))
	assert.False(t, c.IsLoading(1))
	assert.Empty(t, c.ErrFor(1))
}

func TestFetch_ReplacesThread(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.srv.SeedComment(f.post.ID, f.alice.ID, "first")

	list, err := f.cache.Fetch(ctx, f.post.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 1, f.cache.Count(f.post.ID))

	f.srv.SeedComment(f.post.ID, f.alice.ID, "second")
	_, err = f.cache.Fetch(ctx, f.post.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, f.cache.Count(f.post.ID))
	assert.False(t, f.cache.IsLoading(f.post.ID))
}

func TestAdd_RefetchConvergence(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.srv.SeedComment(f.post.ID, f.alice.ID, "existing")
	_, err := f.cache.Fetch(ctx, f.post.ID)
	require.NoError(t, err)
	before := f.cache.Count(f.post.ID)

	require.NoError(t, f.cache.Add(ctx, f.post.ID, "hello", ""))

	thread := f.cache.Comments(f.post.ID)
	assert.Len(t, thread, before+1)

	hellos := 0
	for _, c := range thread {
		if c.Content == "hello" {
			hellos++
			assert.NotZero(t, c.ID)
			assert.Equal(t, f.post.ID, c.PostID)
		}
	}
	assert.Equal(t, 1, hellos)
	assert.Equal(t, f.srv.Comments(f.post.ID), thread)

	// the write is followed by exactly one thread read
	assert.Equal(t, 1, f.srv.Count(http.MethodPost, "/comments"))
	assert.Equal(t, 2, f.srv.Count(http.MethodGet, "/comments/post/"+f.post.ID.String()))
}

func TestAdd_ServerShapesContent(t *testing.T) {
	f := setup(t)

	require.NoError(t, f.cache.Add(context.Background(), f.post.ID, "  padded  ", ""))

	thread := f.cache.Comments(f.post.ID)
	require.Len(t, thread, 1)
	assert.Equal(t, "padded", thread[0].Content)
}

func TestAdd_FailureSkipsRefetch(t *testing.T) {
	f := setup(t)

	err := f.cache.Add(context.Background(), 999, "orphan", "")
	require.ErrorIs(t, err, api.ErrNotFound)
	assert.Equal(t, "Post not found", f.cache.Err())
	assert.Equal(t, "Post not found", f.cache.ErrFor(999))
	assert.Equal(t, 0, f.srv.Count(http.MethodGet, "/comments/post/999"))
}

func TestAdd_RefetchFailureIsReturned(t *testing.T) {
	f := setup(t)
	f.srv.Fail(http.MethodGet, "/comments/post/:id", http.StatusBadGateway, "")

	err := f.cache.Add(context.Background(), f.post.ID, "hello", "")
	require.Error(t, err)
	assert.Equal(t, "Failed to fetch comments", f.cache.Err())
	// the comment exists server-side even though the thread could not be read
	assert.Len(t, f.srv.Comments(f.post.ID), 1)
}

func TestDelete_Refetches(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	c1 := f.srv.SeedComment(f.post.ID, f.alice.ID, "one")
	f.srv.SeedComment(f.post.ID, f.alice.ID, "two")
	_, err := f.cache.Fetch(ctx, f.post.ID)
	require.NoError(t, err)

	require.NoError(t, f.cache.Delete(ctx, c1.ID, f.post.ID, ""))

	thread := f.cache.Comments(f.post.ID)
	require.Len(t, thread, 1)
	assert.Equal(t, "two", thread[0].Content)
}

func TestDelete_ForbiddenWithOtherUsersToken(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	c1 := f.srv.SeedComment(f.post.ID, f.alice.ID, "mine")
	bob := f.srv.AddUser("bob", "bob@b.com", "y")

	err := f.cache.Delete(ctx, c1.ID, f.post.ID, f.srv.IssueToken(bob.ID))
	require.ErrorIs(t, err, api.ErrForbidden)
	assert.Equal(t, "You can only delete your own comments", f.cache.ErrFor(f.post.ID))
	assert.Len(t, f.srv.Comments(f.post.ID), 1)
}

func TestClearAndClearAll(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	other := f.srv.SeedPost(f.alice.ID, "other", "other post body")
	f.srv.SeedComment(f.post.ID, f.alice.ID, "a")
	f.srv.SeedComment(other.ID, f.alice.ID, "b")

	_, err := f.cache.Fetch(ctx, f.post.ID)
	require.NoError(t, err)
	_, err = f.cache.Fetch(ctx, other.ID)
	require.NoError(t, err)

	f.cache.Clear(f.post.ID)
	assert.Equal(t, 0, f.cache.Count(f.post.ID))
	assert.Equal(t, 1, f.cache.Count(other.ID))

	f.cache.ClearAll()
	assert.Equal(t, 0, f.cache.Count(other.ID))
}

// gatedDoer blocks thread reads of one post and fails another.
type gatedDoer struct {
	blockPath string
	failPath  string
	started   chan struct{}
	release   chan struct{}
}

func (d *gatedDoer) Do(_ context.Context, _, path string, _, out any, _ ...api.RequestOption) error {
	switch {
	case path == d.blockPath:
		close(d.started)
		<-d.release
	case path == d.failPath:
		return &api.HTTPError{Status: http.StatusInternalServerError, Message: "boom"}
	}
	if l, ok := out.(*[]models.Comment); ok && strings.HasPrefix(path, "/comments/post/") {
		*l = []models.Comment{{ID: 1, Content: "x"}}
	}
	return nil
}

func TestMapIsolation(t *testing.T) {
	d := &gatedDoer{
		blockPath: "/comments/post/1",
		failPath:  "/comments/post/2",
		started:   make(chan struct{}),
		release:   make(chan struct{}),
	}
	c := New(d, nil)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := c.Fetch(ctx, 1)
		done <- err
	}()
	<-d.started

	_, err := c.Fetch(ctx, 2)
	var he *api.HTTPError
	require.True(t, errors.As(err, &he))

	assert.True(t, c.IsLoading(1))
	assert.False(t, c.IsLoading(2))
	assert.Equal(t, "boom", c.ErrFor(2))
	assert.Empty(t, c.ErrFor(1))
	assert.Equal(t, 0, c.Count(1))

	close(d.release)
	require.NoError(t, <-done)

	assert.False(t, c.IsLoading(1))
	assert.Equal(t, 1, c.Count(1))
	assert.Equal(t, 0, c.Count(2))
	assert.Equal(t, "boom", c.ErrFor(2))

	c.ClearError()
	assert.Empty(t, c.ErrFor(2))
	assert.Empty(t, c.Err())
}

// busyDoer records whether the cache reports postID as loading while a
// request is in flight, and can fail the writes.
type busyDoer struct {
	cache   *Cache
	postID  models.ID
	failWr  bool
	loading map[string]bool
}

func (d *busyDoer) Do(_ context.Context, method, _ string, _, _ any, _ ...api.RequestOption) error {
	d.loading[method] = d.cache.IsLoading(d.postID)
	if d.failWr && method != http.MethodGet {
		return &api.HTTPError{Status: http.StatusInternalServerError}
	}
	return nil
}

func TestWrites_MarkPostLoading(t *testing.T) {
	tests := []struct {
		name  string
		write func(ctx context.Context, c *Cache) error
	}{
		{"add", func(ctx context.Context, c *Cache) error { return c.Add(ctx, 7, "hello", "") }},
		{"delete", func(ctx context.Context, c *Cache) error { return c.Delete(ctx, 3, 7, "") }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := &busyDoer{postID: 7, loading: map[string]bool{}}
			c := New(d, nil)
			d.cache = c

			require.NoError(t, tc.write(context.Background(), c))

			assert.Len(t, d.loading, 2)
			for method, busy := range d.loading {
				assert.True(t, busy, "loading during %s", method)
			}
			assert.False(t, c.IsLoading(7))
			assert.False(t, c.IsLoading(8))
		})
	}
}

func TestWrites_FailureResetsLoading(t *testing.T) {
	d := &busyDoer{postID: 7, failWr: true, loading: map[string]bool{}}
	c := New(d, nil)
	d.cache = c

	require.Error(t, c.Add(context.Background(), 7, "hello", ""))
	assert.True(t, d.loading[http.MethodPost])
	assert.False(t, c.IsLoading(7))
	assert.Equal(t, "Failed to add comment", c.ErrFor(7))

	require.Error(t, c.Delete(context.Background(), 3, 7, ""))
	assert.True(t, d.loading[http.MethodDelete])
	assert.False(t, c.IsLoading(7))
	assert.Equal(t, "Failed to delete comment", c.Err())
}

func TestClearAll_KeepsStoreError(t *testing.T) {
	d := &busyDoer{postID: 7, failWr: true, loading: map[string]bool{}}
	c := New(d, nil)
	d.cache = c

	require.Error(t, c.Add(context.Background(), 7, "hello", ""))
	c.ClearAll()

	assert.Empty(t, c.ErrFor(7))
	assert.Equal(t, "Failed to add comment", c.Err())

	c.ClearError()
	assert.Empty(t, c.Err())
}
