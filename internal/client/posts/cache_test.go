package posts

import (
	"context"
	"net/http"
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
	api   *api.Client
	cache *Cache
	alice models.User
	bob   models.User
}

func setup(t *testing.T) *fixture {
	t.Helper()
	srv := apitest.New(t)
	alice := srv.AddUser("alice", "a@b.com", "x")
	bob := srv.AddUser("bob", "bob@b.com", "y")

	client := api.New(srv.URL, api.WithTokenSource(staticToken(srv.IssueToken(alice.ID))))
	return &fixture{srv: srv, api: client, cache: New(client, nil), alice: alice, bob: bob}
}

func TestFetch_ReplacesCollection(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.srv.SeedPost(f.alice.ID, "one", "first post body")
	f.srv.SeedPost(f.bob.ID, "two", "second post body")

	list, err := f.cache.Fetch(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 2, f.cache.Count())
	assert.False(t, f.cache.IsLoading())
	assert.Empty(t, f.cache.Err())

	f.srv.SeedPost(f.alice.ID, "three", "third post body")
	_, err = f.cache.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, f.cache.Count())
}

func TestFetch_FailureRecordsErrorAndReturnsIt(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.srv.SeedPost(f.alice.ID, "one", "first post body")
	_, err := f.cache.Fetch(ctx)
	require.NoError(t, err)

	f.srv.Fail(http.MethodGet, "/posts", http.StatusInternalServerError, "")
	_, err = f.cache.Fetch(ctx)

	var he *api.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusInternalServerError, he.Status)
	assert.Equal(t, "Failed to fetch posts", f.cache.Err())
	assert.False(t, f.cache.IsLoading())
	// the old collection survives a failed refresh
	assert.Equal(t, 1, f.cache.Count())

	f.cache.ClearError()
	assert.Empty(t, f.cache.Err())
}

func TestFetchOne_UpsertInPlace(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.srv.SeedPost(f.alice.ID, "one", "first post body")
	p2 := f.srv.SeedPost(f.alice.ID, "two", "second post body")
	f.srv.SeedPost(f.alice.ID, "three", "third post body")

	_, err := f.cache.Fetch(ctx)
	require.NoError(t, err)
	before := f.cache.Posts()
	idx := -1
	for i, p := range before {
		if p.ID == p2.ID {
			idx = i
		}
	}
	require.NotEqual(t, -1, idx)

	got, err := f.cache.FetchOne(ctx, p2.ID)
	require.NoError(t, err)
	assert.Equal(t, p2.ID, got.ID)

	after := f.cache.Posts()
	assert.Len(t, after, len(before))
	assert.Equal(t, p2.ID, after[idx].ID)

	cur, ok := f.cache.Current()
	require.True(t, ok)
	assert.Equal(t, p2.ID, cur.ID)
}

func TestFetchOne_NewPostIsPrepended(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.srv.SeedPost(f.alice.ID, "one", "first post body")
	_, err := f.cache.Fetch(ctx)
	require.NoError(t, err)

	p := f.srv.SeedPost(f.bob.ID, "late", "arrived after the list")
	_, err = f.cache.FetchOne(ctx, p.ID)
	require.NoError(t, err)

	list := f.cache.Posts()
	require.Len(t, list, 2)
	assert.Equal(t, p.ID, list[0].ID)
}

func TestFetchOne_NotFound(t *testing.T) {
	f := setup(t)

	_, err := f.cache.FetchOne(context.Background(), 404)
	require.ErrorIs(t, err, api.ErrNotFound)
	assert.Equal(t, "Post not found", f.cache.Err())
	_, ok := f.cache.Current()
	assert.False(t, ok)
}

func TestCreate_MinimumContentGoesFirst(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.srv.SeedPost(f.bob.ID, "old", "older post body")
	_, err := f.cache.Fetch(ctx)
	require.NoError(t, err)

	p, err := f.cache.Create(ctx, models.PostInput{Title: "T", Content: "0123456789"})
	require.NoError(t, err)
	assert.NotZero(t, p.ID)
	assert.Equal(t, f.alice.ID, p.AuthorID)

	list := f.cache.Posts()
	require.Len(t, list, 2)
	assert.Equal(t, p.ID, list[0].ID)
	assert.False(t, f.cache.IsCreating())
}

func TestCreate_Failure(t *testing.T) {
	f := setup(t)

	_, err := f.cache.Create(context.Background(), models.PostInput{Title: "T", Content: "short"})
	require.Error(t, err)
	assert.Contains(t, f.cache.Err(), "content must be at least 10 characters")
	assert.Equal(t, 0, f.cache.Count())
	assert.False(t, f.cache.IsCreating())
}

func TestUpdate_ReplacesEntryAndCurrent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	p := f.srv.SeedPost(f.alice.ID, "draft", "draft post body")
	_, err := f.cache.FetchOne(ctx, p.ID)
	require.NoError(t, err)

	got, err := f.cache.Update(ctx, p.ID, models.PostInput{Title: "final", Content: "final post body"}, "")
	require.NoError(t, err)
	assert.Equal(t, "final", got.Title)

	cached, ok := f.cache.Get(p.ID)
	require.True(t, ok)
	assert.Equal(t, "final", cached.Title)

	cur, ok := f.cache.Current()
	require.True(t, ok)
	assert.Equal(t, "final", cur.Title)
	assert.False(t, f.cache.IsUpdating())
}

func TestUpdate_LeavesOtherCurrentAlone(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	p1 := f.srv.SeedPost(f.alice.ID, "one", "first post body")
	p2 := f.srv.SeedPost(f.alice.ID, "two", "second post body")
	_, err := f.cache.Fetch(ctx)
	require.NoError(t, err)
	_, err = f.cache.FetchOne(ctx, p1.ID)
	require.NoError(t, err)

	_, err = f.cache.Update(ctx, p2.ID, models.PostInput{Title: "two!", Content: "second post body"}, "")
	require.NoError(t, err)

	cur, _ := f.cache.Current()
	assert.Equal(t, "one", cur.Title)
}

func TestUpdate_ForbiddenKeepsCache(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	p := f.srv.SeedPost(f.bob.ID, "bob's", "bob's post body")
	_, err := f.cache.Fetch(ctx)
	require.NoError(t, err)

	_, err = f.cache.Update(ctx, p.ID, models.PostInput{Title: "hijack", Content: "hijacked body"}, "")
	require.ErrorIs(t, err, api.ErrForbidden)
	assert.Equal(t, "You can only modify your own posts", f.cache.Err())

	cached, _ := f.cache.Get(p.ID)
	assert.Equal(t, "bob's", cached.Title)
}

func TestUpdate_ExplicitTokenOverridesSession(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	p := f.srv.SeedPost(f.bob.ID, "bob's", "bob's post body")

	_, err := f.cache.Update(ctx, p.ID, models.PostInput{Title: "by bob", Content: "bob's post body"}, f.srv.IssueToken(f.bob.ID))
	require.NoError(t, err)

	server, _ := f.srv.Post(p.ID)
	assert.Equal(t, "by bob", server.Title)
}

func TestDelete_FocusConsistency(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	p1 := f.srv.SeedPost(f.alice.ID, "one", "first post body")
	p2 := f.srv.SeedPost(f.alice.ID, "two", "second post body")
	_, err := f.cache.Fetch(ctx)
	require.NoError(t, err)

	_, err = f.cache.FetchOne(ctx, p1.ID)
	require.NoError(t, err)

	// deleting another post keeps the focus
	require.NoError(t, f.cache.Delete(ctx, p2.ID, ""))
	cur, ok := f.cache.Current()
	require.True(t, ok)
	assert.Equal(t, p1.ID, cur.ID)
	assert.Equal(t, 1, f.cache.Count())

	// deleting the focused post clears it
	require.NoError(t, f.cache.Delete(ctx, p1.ID, ""))
	_, ok = f.cache.Current()
	assert.False(t, ok)
	assert.Equal(t, 0, f.cache.Count())
	assert.False(t, f.cache.IsDeleting())
}

func TestDelete_Failure(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	p := f.srv.SeedPost(f.alice.ID, "one", "first post body")
	_, err := f.cache.FetchOne(ctx, p.ID)
	require.NoError(t, err)

	f.srv.Fail(http.MethodDelete, "/posts/:id", http.StatusInternalServerError, "db down")
	require.Error(t, f.cache.Delete(ctx, p.ID, ""))
	assert.Equal(t, "db down", f.cache.Err())

	_, ok := f.cache.Current()
	assert.True(t, ok)
	assert.Equal(t, 1, f.cache.Count())
}

func TestGet_CanonicalIDs(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	p := f.srv.SeedPost(f.alice.ID, "one", "first post body")
	_, err := f.cache.Fetch(ctx)
	require.NoError(t, err)

	id, err := models.ParseID(p.ID.String())
	require.NoError(t, err)

	got, ok := f.cache.Get(id)
	require.True(t, ok)
	assert.Equal(t, p.ID, got.ID)

	_, ok = f.cache.Get(p.ID + 100)
	assert.False(t, ok)
}

func TestByAuthor(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.srv.SeedPost(f.alice.ID, "a1", "alice post body")
	f.srv.SeedPost(f.bob.ID, "b1", "bob post body")
	f.srv.SeedPost(f.alice.ID, "a2", "alice post body")
	_, err := f.cache.Fetch(ctx)
	require.NoError(t, err)

	mine := f.cache.ByAuthor(f.alice.ID)
	require.Len(t, mine, 2)
	for _, p := range mine {
		assert.Equal(t, f.alice.ID, p.AuthorID)
	}
}

func TestSetClearCurrentAndClear(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.srv.SeedPost(f.alice.ID, "a1", "alice post body")
	_, err := f.cache.Fetch(ctx)
	require.NoError(t, err)

	f.cache.SetCurrent(models.Post{ID: 9, Title: "pinned"})
	cur, ok := f.cache.Current()
	require.True(t, ok)
	assert.Equal(t, "pinned", cur.Title)

	f.cache.ClearCurrent()
	_, ok = f.cache.Current()
	assert.False(t, ok)

	f.cache.SetCurrent(models.Post{ID: 9})
	f.cache.Clear()
	_, ok = f.cache.Current()
	assert.False(t, ok)
	assert.Empty(t, f.cache.Posts())
}

func TestUnauthorizedReachesListener(t *testing.T) {
	f := setup(t)
	fired := 0
	f.api.OnUnauthorized(func(context.Context) { fired++ })
	f.srv.ExpireTokens()

	_, err := f.cache.Create(context.Background(), models.PostInput{Title: "T", Content: "0123456789"})
	require.ErrorIs(t, err, api.ErrUnauthorized)
	assert.Equal(t, 1, fired)
	assert.Equal(t, "Unauthorized", f.cache.Err())
	assert.False(t, f.cache.IsCreating())
}

// blockingDoer holds every call until release is closed.
type blockingDoer struct {
	started chan string
	release chan struct{}
}

func (d *blockingDoer) Do(ctx context.Context, method, path string, _, out any, _ ...api.RequestOption) error {
	d.started <- method
	<-d.release
	if p, ok := out.(*models.Post); ok {
		*p = models.Post{ID: 1}
	}
	return nil
}

func TestFlagsAreIndependent(t *testing.T) {
	d := &blockingDoer{started: make(chan string, 1), release: make(chan struct{})}
	c := New(d, nil)

	done := make(chan error, 1)
	go func() { done <- c.Delete(context.Background(), 1, "") }()
	<-d.started

	assert.True(t, c.IsDeleting())
	assert.False(t, c.IsLoading())
	assert.False(t, c.IsCreating())
	assert.False(t, c.IsUpdating())

	close(d.release)
	require.NoError(t, <-done)
	assert.False(t, c.IsDeleting())
}
