package cli

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/dmitrijs2005/blogkeeper/internal/client/api"
	"github.com/dmitrijs2005/blogkeeper/internal/client/comments"
	"github.com/dmitrijs2005/blogkeeper/internal/client/config"
	"github.com/dmitrijs2005/blogkeeper/internal/client/posts"
	"github.com/dmitrijs2005/blogkeeper/internal/client/session"
	"github.com/dmitrijs2005/blogkeeper/internal/client/state"
	"github.com/dmitrijs2005/blogkeeper/internal/client/theme"
	"github.com/dmitrijs2005/blogkeeper/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
)

// App is the interactive blog client. It owns the API client and every
// store, and it is the only subscriber to the client's 401 event.
type App struct {
	api      *api.Client
	repo     state.Repository
	session  *session.Store
	posts    *posts.Cache
	comments *comments.Cache
	theme    *theme.Store
	metrics  prometheus.Gatherer
	log      logging.Logger

	reader *bufio.Reader
	out    io.Writer
	db     *sql.DB

	// set by a 401 on an authenticated session
	loginRequired atomic.Bool
	unsubscribe   func()
}

// NewApp opens the state database and builds the API client and stores
// from cfg.
func NewApp(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer, log logging.Logger) (*App, error) {
	db, err := state.Open(ctx, cfg.StateDB)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	client := api.New(cfg.APIURL,
		api.WithTimeout(cfg.RequestTimeout),
		api.WithLogger(log),
		api.WithMetrics(reg),
	)

	a := newApp(client, state.NewSQLiteRepository(db), reg, in, out, log)
	a.db = db
	return a, nil
}

func newApp(client *api.Client, repo state.Repository, metrics prometheus.Gatherer, in io.Reader, out io.Writer, log logging.Logger) *App {
	if log == nil {
		log = logging.Discard()
	}

	a := &App{
		api:      client,
		repo:     repo,
		session:  session.New(client, repo, log),
		posts:    posts.New(client, log),
		comments: comments.New(client, log),
		theme:    theme.New(repo, log),
		metrics:  metrics,
		log:      log,
		reader:   bufio.NewReader(in),
		out:      out,
	}

	client.SetTokenSource(a.session)
	a.unsubscribe = client.OnUnauthorized(a.handleUnauthorized)
	return a
}

// handleUnauthorized resets everything that belongs to the old identity.
// Only a session that was logged in is sent back to the login prompt; a
// failed login attempt is not an expiry.
func (a *App) handleUnauthorized(ctx context.Context) {
	wasAuthenticated := a.session.IsAuthenticated()

	a.session.Logout(ctx)
	a.comments.ClearAll()
	a.posts.ClearCurrent()

	if wasAuthenticated {
		a.loginRequired.Store(true)
		a.println("Session expired. Please log in again.")
	}
}

// start restores persisted state and revalidates the saved token.
func (a *App) start(ctx context.Context) {
	if err := a.session.Restore(ctx); err != nil {
		a.log.Error(ctx, "failed to restore session", "error", err)
	}
	if err := a.theme.Restore(ctx); err != nil {
		a.log.Error(ctx, "failed to restore theme", "error", err)
	}

	if !a.session.IsAuthenticated() {
		return
	}
	if err := a.session.LoadUserFromToken(ctx); err != nil {
		// a 401 has already announced itself through handleUnauthorized
		if !a.needsLogin() {
			a.println("Saved session is no longer valid, please log in.")
		}
		return
	}
	if u := a.session.User(); u != nil {
		a.println("Welcome back,", u.DisplayName())
	}
}

// Run restores state and runs the REPL until the user exits or input ends.
func (a *App) Run(ctx context.Context) {
	a.println("Blog CLI (type 'help' for commands)")
	a.log.Info(ctx, "client started", "api_url", a.api.BaseURL())
	a.start(ctx)
	runREPL(ctx, a, a.out, a.reader)
}

// Close detaches from the API client and closes the state database.
func (a *App) Close() error {
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

func (a *App) isLoggedIn() bool { return a.session.IsAuthenticated() }

func (a *App) needsLogin() bool { return a.loginRequired.Load() }

func (a *App) prompt() string {
	label := "blog:dark"
	if a.theme.IsLight() {
		label = "blog"
	}
	if u := a.session.User(); u != nil {
		return fmt.Sprintf("%s (%s)> ", label, u.DisplayName())
	}
	if a.session.IsAuthenticated() {
		return label + " (*)> "
	}
	return label + "> "
}

func (a *App) println(args ...any) {
	fmt.Fprintln(a.out, args...)
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}
