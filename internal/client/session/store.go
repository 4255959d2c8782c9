package session

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/dmitrijs2005/blogkeeper/internal/client/api"
	"github.com/dmitrijs2005/blogkeeper/internal/client/models"
	"github.com/dmitrijs2005/blogkeeper/internal/client/state"
	"github.com/dmitrijs2005/blogkeeper/internal/logging"
	"github.com/golang-jwt/jwt/v5"
)

// StorageKey names the persisted session document.
const StorageKey = "auth-storage"

// ErrNoToken is reported when a successful login response carries no
// access token.
var ErrNoToken = errors.New("login response carried no access token")

// Status is the position of a Store in its lifecycle.
type Status int

const (
	Anonymous Status = iota
	TokenOnly
	Authenticated
)

func (s Status) String() string {
	switch s {
	case TokenOnly:
		return "token-only"
	case Authenticated:
		return "authenticated"
	default:
		return "anonymous"
	}
}

// LoginResult is what Login reports. Expected failures such as bad
// credentials are returned here instead of as an error.
type LoginResult struct {
	Success bool
	Error   string
	Err     error
}

type snapshot struct {
	Token string       `json:"token,omitempty"`
	User  *models.User `json:"user,omitempty"`
}

// Store holds the login session of the current user.
//
// Contract:
//   - Token and User are persisted together under StorageKey after every
//     change, and the key is deleted on Logout;
//   - a Store with a token but no user is TokenOnly until
//     LoadUserFromToken or Login fills the user in;
//   - IsLoading and Err describe the most recent operation only.
//
// Methods are safe for concurrent use. No lock is held during a request.
type Store struct {
	api  api.Doer
	repo state.Repository
	log  logging.Logger

	mu      sync.RWMutex
	token   string
	user    *models.User
	loading bool
	err     string

	// serializes snapshot+write so the newest state is written last
	persistMu sync.Mutex
}

// New returns an anonymous Store. Call Restore to pick up a saved session.
// A nil log discards.
func New(doer api.Doer, repo state.Repository, log logging.Logger) *Store {
	if log == nil {
		log = logging.Discard()
	}
	return &Store{api: doer, repo: repo, log: log.With("store", "session")}
}

// Restore loads the persisted token and user. Transient flags start clean.
func (s *Store) Restore(ctx context.Context) error {
	var env state.Envelope[snapshot]
	ok, err := s.repo.Load(ctx, StorageKey, &env)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	s.err = ""
	if !ok {
		s.token, s.user = "", nil
		return nil
	}
	s.token = env.State.Token
	s.user = cloneUser(env.State.User)
	return nil
}

// Login posts creds to /auth/login and stores the returned token and user.
// When the response has no user, the profile is fetched with the new token.
// Failures come back in the LoginResult with Err set; they are never
// returned as a Go error.
func (s *Store) Login(ctx context.Context, creds models.Credentials) LoginResult {
	s.mu.Lock()
	s.loading = true
	s.err = ""
	s.mu.Unlock()

	var resp models.LoginResponse
	err := s.api.Do(ctx, http.MethodPost, "/auth/login", creds, &resp)
	if err == nil && resp.AccessToken == "" {
		err = ErrNoToken
	}
	if err != nil {
		msg := api.Message(err, "Login failed")
		s.mu.Lock()
		s.loading = false
		s.err = msg
		s.mu.Unlock()
		s.log.Warn(ctx, "login failed", "email", creds.Email, "error", err)
		return LoginResult{Error: msg, Err: err}
	}

	s.mu.Lock()
	s.token = resp.AccessToken
	s.user = cloneUser(resp.User)
	if s.user != nil {
		s.loading = false
	}
	s.mu.Unlock()
	s.persist(ctx)

	if resp.User == nil {
		// the profile is optional in the login response; a failed lookup
		// leaves the session in TokenOnly
		if _, err := s.fetchProfile(ctx, resp.AccessToken); err != nil {
			s.log.Warn(ctx, "profile fetch after login failed", "error", err)
		}
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
	}

	s.log.Info(ctx, "logged in", "email", creds.Email, "status", s.Status().String())
	return LoginResult{Success: true}
}

// LoadUserFromToken hydrates the profile for the current token. Without a
// token it does nothing. Any failure is treated as an invalid token and
// logs the session out.
func (s *Store) LoadUserFromToken(ctx context.Context) error {
	token := s.Token()
	if token == "" {
		return nil
	}

	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()

	_, err := s.fetchProfile(ctx, token)
	if err != nil {
		s.log.Warn(ctx, "token rejected, logging out", "error", err)
		s.Logout(ctx)
		return err
	}

	s.mu.Lock()
	s.loading = false
	s.mu.Unlock()
	return nil
}

// fetchProfile loads /auth/me with token and stores the profile, unless
// the token was replaced while the request was in flight.
func (s *Store) fetchProfile(ctx context.Context, token string) (*models.User, error) {
	var u models.User
	if err := s.api.Do(ctx, http.MethodGet, "/auth/me", nil, &u, api.WithBearer(token)); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.token != token {
		s.mu.Unlock()
		s.log.Debug(ctx, "token changed during profile fetch, result dropped")
		return &u, nil
	}
	s.user = cloneUser(&u)
	s.mu.Unlock()

	s.persist(ctx)
	return &u, nil
}

// Logout clears token, user and error and forgets the persisted session.
func (s *Store) Logout(ctx context.Context) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	wasAuthenticated := s.token != ""
	s.token = ""
	s.user = nil
	s.loading = false
	s.err = ""
	s.mu.Unlock()

	if err := s.repo.Delete(ctx, StorageKey); err != nil {
		s.log.Error(ctx, "failed to forget persisted session", "error", err)
	}
	if wasAuthenticated {
		s.log.Info(ctx, "logged out")
	}
}

// Register creates an account with POST /users/register. It does not log
// in. On failure Err holds the server message or "Registration failed".
func (s *Store) Register(ctx context.Context, reg models.Registration) error {
	s.mu.Lock()
	s.loading = true
	s.err = ""
	s.mu.Unlock()

	err := s.api.Do(ctx, http.MethodPost, "/users/register", reg, nil)

	s.mu.Lock()
	s.loading = false
	if err != nil {
		s.err = api.Message(err, "Registration failed")
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Warn(ctx, "registration failed", "email", reg.Email, "error", err)
		return err
	}
	s.log.Info(ctx, "registered", "email", reg.Email)
	return nil
}

// UpdateProfile sends PUT /auth/me and replaces the stored user with the
// server's answer.
func (s *Store) UpdateProfile(ctx context.Context, upd models.ProfileUpdate) (models.User, error) {
	s.mu.Lock()
	s.loading = true
	s.err = ""
	s.mu.Unlock()

	var u models.User
	err := s.api.Do(ctx, http.MethodPut, "/auth/me", upd, &u)
	if err != nil {
		s.mu.Lock()
		s.loading = false
		s.err = api.Message(err, "Failed to update profile")
		s.mu.Unlock()
		s.log.Warn(ctx, "profile update failed", "error", err)
		return models.User{}, err
	}

	s.mu.Lock()
	s.loading = false
	s.mu.Unlock()
	s.SetUser(ctx, &u)
	return u, nil
}

// SetUser replaces the profile without touching the token.
func (s *Store) SetUser(ctx context.Context, u *models.User) {
	s.mu.Lock()
	s.user = cloneUser(u)
	s.mu.Unlock()
	s.persist(ctx)
}

// SetError replaces the error shown for the session, e.g. a form problem.
func (s *Store) SetError(msg string) {
	s.mu.Lock()
	s.err = msg
	s.mu.Unlock()
}

func (s *Store) ClearError() { s.SetError("") }

// Token is the bearer token, empty when anonymous. It makes Store an
// api.TokenSource.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// User returns a copy of the profile, or nil when it is not loaded.
func (s *Store) User() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneUser(s.user)
}

func (s *Store) IsAuthenticated() bool { return s.Token() != "" }

// HasUserData reports whether the profile has been loaded.
func (s *Store) HasUserData() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil
}

// Status derives Anonymous, TokenOnly or Authenticated from token and user.
func (s *Store) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch {
	case s.token == "":
		return Anonymous
	case s.user == nil:
		return TokenOnly
	default:
		return Authenticated
	}
}

func (s *Store) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

func (s *Store) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// ExpiresAt reads the exp claim of the current token when it is a JWT.
// The signature is not checked; the server stays the authority.
func (s *Store) ExpiresAt() (time.Time, bool) {
	token := s.Token()
	if token == "" {
		return time.Time{}, false
	}

	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

func (s *Store) persist(ctx context.Context) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.RLock()
	snap := snapshot{Token: s.token, User: cloneUser(s.user)}
	s.mu.RUnlock()

	if snap.Token == "" && snap.User == nil {
		return
	}
	if err := s.repo.Save(ctx, StorageKey, state.Envelope[snapshot]{State: snap}); err != nil {
		s.log.Error(ctx, "failed to persist session", "error", err)
	}
}

func cloneUser(u *models.User) *models.User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
