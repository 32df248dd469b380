package auth

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
	apperrors "github.com/jrsteele09/go-underwriter/internal/errors"
	"github.com/jrsteele09/go-underwriter/internal/restclient"
	"github.com/jrsteele09/go-underwriter/oauthmodel"
	"github.com/jrsteele09/go-underwriter/tokenstore"
	"github.com/jrsteele09/go-underwriter/users"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
)

// Backend routes, relative to the configured backend URL.
const (
	RouteLogin    = "/login"
	RouteRegister = "/register"
	RouteRefresh  = "/refresh"
)

// State is the observable authentication state of a session.
type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticated
)

func (s State) String() string {
	if s == StateAuthenticated {
		return "authenticated"
	}
	return "unauthenticated"
}

// Service owns the client-side session: who is signed in, and the credentials persisted for them.
// A Service starts in the loading state and leaves it once Init has run.
type Service struct {
	store      tokenstore.Store
	backend    *resty.Client
	httpClient *http.Client
	validator  *Validator

	mu           sync.RWMutex
	user         *users.User
	loading      bool
	observers    map[int]func(State)
	nextObserver int
}

// ServiceOption defines a function type to modify the Service instance.
type ServiceOption func(*Service)

// WithHTTPClient sets the client used for the unauthenticated backend routes.
func WithHTTPClient(client *http.Client) ServiceOption {
	return func(s *Service) {
		s.httpClient = client
	}
}

// NewService creates a session service bound to store and the backend at backendURL.
func NewService(store tokenstore.Store, backendURL string, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("[NewService] %w: store is required", apperrors.ErrInvalidRequest)
	}
	if backendURL == "" {
		return nil, fmt.Errorf("[NewService] %w: backend url is required", apperrors.ErrInvalidRequest)
	}

	s := &Service{
		store:     store,
		validator: NewValidator(),
		loading:   true,
		observers: make(map[int]func(State)),
	}
	for _, opt := range options {
		opt(s)
	}
	s.backend = restclient.New(backendURL, s.httpClient)
	return s, nil
}

// Init restores a persisted session. It only authenticates when both the token and a non-empty
// user record are present; the stored user is migrated to the current schema and re-persisted
// when the migration changed it. Init always clears the loading flag.
func (s *Service) Init() {
	defer func() {
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
	}()

	token, hasToken := s.store.Get(tokenstore.KeyToken)
	raw, hasUser := s.store.Get(tokenstore.KeyUser)
	if !hasToken || token == "" || !hasUser || raw == "" {
		return
	}

	user, changed, err := users.Migrate(raw)
	if err != nil {
		log.Err(err).Msg("[Service Init] stored user record unreadable, staying signed out")
		return
	}
	if changed {
		if err := s.persistUser(user); err != nil {
			log.Err(err).Msg("[Service Init] failed to re-persist migrated user")
		}
	}
	s.transition(&user)
}

// Login exchanges credentials for a session. On any failure the stored session and the state are
// left as they were.
func (s *Service) Login(ctx context.Context, email, password string) error {
	req := oauthmodel.LoginRequest{Email: email, Password: password}
	if err := s.validator.ValidateLogin(req); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}

	resp, err := s.backend.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		Post(RouteLogin)
	if err != nil {
		return apperrors.Wrapf(err, "[Service Login] backend unreachable")
	}
	if !resp.IsSuccess() {
		log.Warn().Int("status", resp.StatusCode()).Msg("[Service Login] rejected")
		return ErrInvalidCredentials
	}

	var body oauthmodel.LoginResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return fmt.Errorf("[Service Login] %w: %v", ErrInvalidCredentials, err)
	}
	if body.Token == "" {
		return fmt.Errorf("[Service Login] %w: %w", ErrInvalidCredentials, ErrMissingTokenInReply)
	}

	user := users.User{ID: users.PlaceholderID, Email: email, UserName: users.CleanField(body.Username)}
	if err := s.persistSession(body.Token, body.RefreshToken, user); err != nil {
		return err
	}
	s.transition(&user)
	log.Info().Str("email", email).Msg("signed in")
	return nil
}

// Register creates an account and, when the backend accepts it, signs straight in.
func (s *Service) Register(ctx context.Context, email, userName, password string) error {
	req := oauthmodel.RegisterRequest{Email: email, UserName: userName, Password: password}
	if err := s.validator.ValidateRegistration(req, password); err != nil {
		return fmt.Errorf("%w: %v", ErrRegistrationFailed, err)
	}

	resp, err := s.backend.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		Post(RouteRegister)
	if err != nil {
		return apperrors.Wrapf(err, "[Service Register] backend unreachable")
	}
	if !resp.IsSuccess() {
		log.Warn().Int("status", resp.StatusCode()).Msg("[Service Register] rejected")
		return ErrRegistrationFailed
	}
	return s.Login(ctx, email, password)
}

// Logout clears every session key and the in-memory user. It is safe to call when signed out.
func (s *Service) Logout() {
	if err := tokenstore.RemoveAll(s.store, tokenstore.SessionKeys...); err != nil {
		log.Err(err).Msg("[Service Logout] session keys not fully removed")
	}
	s.transition(nil)
}

// SetUser replaces the in-memory user and persists it; nil removes the stored user.
func (s *Service) SetUser(user *users.User) error {
	if user == nil {
		if err := s.store.Remove(tokenstore.KeyUser); err != nil {
			return apperrors.Wrapf(err, "[Service SetUser] remove user")
		}
		s.transition(nil)
		return nil
	}
	if err := s.persistUser(*user); err != nil {
		return err
	}
	u := *user
	s.transition(&u)
	return nil
}

// RefreshToken exchanges the stored refresh token for a new bearer token. It never returns an
// error: false means the session could not be renewed. Without a stored refresh token no request
// is made.
func (s *Service) RefreshToken(ctx context.Context) bool {
	refresh, ok := s.store.Get(tokenstore.KeyRefreshToken)
	if !ok || refresh == "" {
		return false
	}

	resp, err := s.backend.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(oauthmodel.RefreshRequest{RefreshToken: refresh}).
		Post(RouteRefresh)
	if err != nil {
		log.Err(err).Msg("[Service RefreshToken] backend unreachable")
		return false
	}
	if !resp.IsSuccess() {
		log.Warn().Int("status", resp.StatusCode()).Msg("[Service RefreshToken] rejected")
		return false
	}

	token := firstString(resp.Body(), oauthmodel.RefreshTokenPaths)
	if token == "" {
		log.Warn().Msg("[Service RefreshToken] response carried no token")
		return false
	}
	if err := s.store.Set(tokenstore.KeyToken, token); err != nil {
		log.Err(err).Msg("[Service RefreshToken] failed to persist token")
		return false
	}

	if userName := firstString(resp.Body(), oauthmodel.RefreshUserNamePaths); userName != "" {
		s.mergeUserName(userName)
	}
	return true
}

// User returns a copy of the signed-in user.
func (s *Service) User() (users.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return users.User{}, false
	}
	return *s.user, true
}

func (s *Service) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return stateOf(s.user)
}

func (s *Service) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Token returns the stored credentials in the shape the oauth2 package sets on requests.
func (s *Service) Token() (*oauth2.Token, bool) {
	access, ok := s.store.Get(tokenstore.KeyToken)
	if !ok || access == "" {
		return nil, false
	}
	refresh, _ := s.store.Get(tokenstore.KeyRefreshToken)
	return &oauth2.Token{AccessToken: access, TokenType: "Bearer", RefreshToken: refresh}, true
}

// Subscribe registers fn for state transitions. fn is called once per transition, outside any
// lock, on the goroutine that caused it.
func (s *Service) Subscribe(fn func(State)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextObserver
	s.nextObserver++
	s.observers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

// persistSession writes the session keys. If any write fails, the keys already written are
// removed so no half-stored session is left behind.
func (s *Service) persistSession(token, refreshToken string, user users.User) error {
	written := []string{tokenstore.KeyToken}
	rollback := func(err error) error {
		if rmErr := tokenstore.RemoveAll(s.store, written...); rmErr != nil {
			log.Err(rmErr).Msg("[Service] failed to roll back partial session")
		}
		return err
	}

	if err := s.store.Set(tokenstore.KeyToken, token); err != nil {
		return apperrors.Wrapf(err, "[Service] persist token")
	}
	if refreshToken != "" {
		written = append(written, tokenstore.KeyRefreshToken)
		if err := s.store.Set(tokenstore.KeyRefreshToken, refreshToken); err != nil {
			return rollback(apperrors.Wrapf(err, "[Service] persist refresh token"))
		}
	} else if err := s.store.Remove(tokenstore.KeyRefreshToken); err != nil {
		return rollback(apperrors.Wrapf(err, "[Service] drop stale refresh token"))
	}
	if err := s.persistUser(user); err != nil {
		return rollback(err)
	}
	return nil
}

func (s *Service) persistUser(user users.User) error {
	encoded, err := users.Encode(user)
	if err != nil {
		return apperrors.Wrapf(err, "[Service] encode user")
	}
	if err := s.store.Set(tokenstore.KeyUser, encoded); err != nil {
		return apperrors.Wrapf(err, "[Service] persist user")
	}
	return nil
}

func (s *Service) mergeUserName(userName string) {
	s.mu.Lock()
	if s.user == nil {
		s.mu.Unlock()
		return
	}
	updated := *s.user
	updated.UserName = users.CleanField(userName)
	s.user = &updated
	s.mu.Unlock()

	if err := s.persistUser(updated); err != nil {
		log.Err(err).Msg("[Service RefreshToken] failed to persist refreshed user name")
	}
}

// transition swaps the user and notifies observers if the state changed.
func (s *Service) transition(user *users.User) {
	s.mu.Lock()
	before := stateOf(s.user)
	s.user = user
	after := stateOf(s.user)
	var notify []func(State)
	if before != after {
		notify = make([]func(State), 0, len(s.observers))
		for _, fn := range s.observers {
			notify = append(notify, fn)
		}
	}
	s.mu.Unlock()

	for _, fn := range notify {
		fn(after)
	}
}

func stateOf(user *users.User) State {
	if user == nil {
		return StateUnauthenticated
	}
	return StateAuthenticated
}

func firstString(body []byte, paths []string) string {
	for _, path := range paths {
		if r := gjson.GetBytes(body, path); r.Type == gjson.String && r.Str != "" {
			return r.Str
		}
	}
	return ""
}
