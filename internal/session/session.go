package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"

	"github.com/digkill/TiendiaBot/internal/models"
	"github.com/digkill/TiendiaBot/internal/telemetry"
	"github.com/digkill/TiendiaBot/internal/tiendia"
)

var (
	ErrInvalidCredentials = errors.New("a valid email and a password are required")
	ErrMissingToken       = errors.New("login response did not include a token")
	ErrNotAuthenticated   = errors.New("user not authenticated")
)

// legacyPlaceholderToken was stored by old app builds when login returned no
// token. It never authenticates.
const legacyPlaceholderToken = "mobile-token-placeholder"

// TokenStore persists the single auth token slot of each chat.
type TokenStore interface {
	Get(ctx context.Context, chatID int64) (string, error)
	Set(ctx context.Context, chatID int64, token string) error
	Delete(ctx context.Context, chatID int64) error
}

type AuthAPI interface {
	Login(ctx context.Context, creds tiendia.Credentials) (*tiendia.AuthResult, error)
	LoginOrRegister(ctx context.Context, creds tiendia.Credentials) (*tiendia.AuthResult, error)
	Profile(ctx context.Context, token string) (*models.User, error)
	Logout(ctx context.Context, token string) error
	SavePushToken(ctx context.Context, token, pushToken string) error
}

// Snapshot is an immutable view handed to subscribers.
type Snapshot struct {
	User           *models.User
	Loading        bool
	CreditsVersion uint64
}

// Session is the per-chat holder of the signed-in user. All credit writes go
// through setCreditsLocked so local spends, purchases, and pushes are applied
// in one order.
type Session struct {
	chatID   int64
	api      AuthAPI
	tokens   TokenStore
	log      *slog.Logger
	validate *validator.Validate
	now      func() time.Time

	mu             sync.Mutex
	user           *models.User
	loading        bool
	creditsVersion uint64
	lastPushAt     time.Time
	listeners      map[int]func(Snapshot)
	nextListener   int
}

type Option func(*Session)

// WithClock overrides time.Now; used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

func New(chatID int64, api AuthAPI, tokens TokenStore, log *slog.Logger, opts ...Option) *Session {
	s := &Session{
		chatID:    chatID,
		api:       api,
		tokens:    tokens,
		log:       log.With("chat_id", chatID),
		validate:  validator.New(),
		now:       time.Now,
		loading:   true,
		listeners: make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) ChatID() int64 {
	return s.chatID
}

// User returns a copy of the current user, or nil when signed out.
func (s *Session) User() *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyUser(s.user)
}

func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

func (s *Session) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user != nil
}

// Credits returns the local balance, 0 when signed out.
func (s *Session) Credits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return 0
	}
	return s.user.Credits
}

// Token reads the persisted token. Callers read it before every authenticated
// request instead of caching it.
func (s *Session) Token(ctx context.Context) (string, error) {
	token, err := s.tokens.Get(ctx, s.chatID)
	if err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	return token, nil
}

// Subscribe registers fn to be called after every change. The returned func
// removes it.
func (s *Session) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// CheckAuthStatus restores the session from the persisted token. It runs once
// per chat and clears Loading when done.
func (s *Session) CheckAuthStatus(ctx context.Context) {
	defer func() {
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
		s.notify()
	}()

	token, err := s.Token(ctx)
	if err != nil {
		s.log.Error("check auth status", "err", err)
		return
	}
	if !usableToken(token, s.now()) {
		if token != "" {
			s.dropToken(ctx)
		}
		s.setUser(nil)
		return
	}

	user, err := s.api.Profile(ctx, token)
	if err != nil {
		s.log.Warn("restore session failed", "err", err)
		s.dropToken(ctx)
		s.setUser(nil)
		return
	}
	s.setUser(user)
}

func (s *Session) Login(ctx context.Context, email, password string) error {
	return s.authenticate(ctx, email, password, s.api.Login)
}

func (s *Session) LoginOrRegister(ctx context.Context, email, password string) error {
	return s.authenticate(ctx, email, password, s.api.LoginOrRegister)
}

func (s *Session) authenticate(ctx context.Context, email, password string, fn func(context.Context, tiendia.Credentials) (*tiendia.AuthResult, error)) error {
	creds := tiendia.Credentials{Email: email, Password: password}
	if err := s.validate.Struct(creds); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}

	res, err := fn(ctx, creds)
	if err != nil {
		return err
	}
	if res.Token == "" {
		return ErrMissingToken
	}
	if err := s.tokens.Set(ctx, s.chatID, res.Token); err != nil {
		return fmt.Errorf("persist token: %w", err)
	}
	user := res.User
	s.setUser(&user)
	s.log.Info("signed in", "user_id", user.ID)
	return nil
}

// Logout invalidates the token remotely on a best-effort basis. Local state is
// cleared no matter what the server says.
func (s *Session) Logout(ctx context.Context) {
	token, err := s.Token(ctx)
	if err != nil {
		s.log.Error("logout read token", "err", err)
	}
	if token != "" {
		if err := s.api.Logout(ctx, token); err != nil {
			s.log.Warn("remote logout failed", "err", err)
		}
	}
	s.dropToken(ctx)
	s.setUser(nil)
	s.log.Info("signed out")
}

// RefreshUser re-fetches the profile. Failures are logged and otherwise
// ignored.
func (s *Session) RefreshUser(ctx context.Context) {
	token, err := s.Token(ctx)
	if err != nil {
		s.log.Warn("refresh user read token", "err", err)
		return
	}
	if token == "" {
		return
	}
	user, err := s.api.Profile(ctx, token)
	if err != nil {
		s.log.Debug("refresh user failed", "err", err)
		return
	}
	s.setUser(user)
}

// UpdateCredits overwrites the local balance. There is no rollback: the next
// RefreshUser reconciles with the server.
func (s *Session) UpdateCredits(credits int) {
	s.mu.Lock()
	ok := s.setCreditsLocked(credits)
	s.mu.Unlock()
	s.recordCreditWrite("local", ok)
}

// AdjustCredits applies delta to the current balance under the same lock as
// every other credit write.
func (s *Session) AdjustCredits(delta int) {
	s.mu.Lock()
	ok := false
	if s.user != nil {
		ok = s.setCreditsLocked(s.user.Credits + delta)
	}
	s.mu.Unlock()
	s.recordCreditWrite("local", ok)
}

// ApplyPush handles the data section of a push notification. A credit update
// issued before the last applied one is stale and dropped.
func (s *Session) ApplyPush(ctx context.Context, data models.PushData) {
	if data.Action != models.PushActionCreditsUpdated {
		return
	}
	if data.NewBalance == nil {
		s.RefreshUser(ctx)
		return
	}

	s.mu.Lock()
	applied := false
	switch {
	case s.user == nil:
	case data.IssuedAt != nil && data.IssuedAt.Before(s.lastPushAt):
		s.log.Info("dropping stale credit push", "issued_at", *data.IssuedAt, "last_applied", s.lastPushAt)
	default:
		applied = s.setCreditsLocked(*data.NewBalance)
		if applied && data.IssuedAt != nil {
			s.lastPushAt = *data.IssuedAt
		}
	}
	s.mu.Unlock()
	s.recordCreditWrite("push", applied)
}

// EnablePushNotifications registers pushToken with the backend so credit
// updates are pushed to this chat.
func (s *Session) EnablePushNotifications(ctx context.Context, pushToken string) error {
	token, err := s.Token(ctx)
	if err != nil {
		return err
	}
	if token == "" {
		return ErrNotAuthenticated
	}
	return s.api.SavePushToken(ctx, token, pushToken)
}

func (s *Session) setCreditsLocked(credits int) bool {
	if s.user == nil {
		return false
	}
	s.user.Credits = credits
	s.creditsVersion++
	return true
}

func (s *Session) recordCreditWrite(source string, applied bool) {
	outcome := "applied"
	if !applied {
		outcome = "ignored"
	}
	telemetry.ObserveCreditUpdate(source, outcome)
	if applied {
		s.notify()
	}
}

func (s *Session) setUser(user *models.User) {
	s.mu.Lock()
	s.user = copyUser(user)
	s.creditsVersion++
	if user == nil {
		s.lastPushAt = time.Time{}
	}
	s.mu.Unlock()
	s.notify()
}

func (s *Session) dropToken(ctx context.Context) {
	if err := s.tokens.Delete(ctx, s.chatID); err != nil {
		s.log.Error("delete token", "err", err)
	}
}

func (s *Session) notify() {
	s.mu.Lock()
	snap := Snapshot{User: copyUser(s.user), Loading: s.loading, CreditsVersion: s.creditsVersion}
	listeners := make([]func(Snapshot), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(snap)
	}
}

// usableToken rejects empty and placeholder tokens, and JWTs whose exp has
// passed. Opaque tokens are assumed valid until the server says otherwise.
func usableToken(token string, now time.Time) bool {
	if token == "" || token == legacyPlaceholderToken {
		return false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return true
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return true
	}
	return now.Before(exp.Time)
}

func copyUser(u *models.User) *models.User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
