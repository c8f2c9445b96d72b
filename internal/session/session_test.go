package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/digkill/TiendiaBot/internal/models"
	"github.com/digkill/TiendiaBot/internal/tiendia"
	"github.com/digkill/TiendiaBot/pkg/logger"
)

const chatID int64 = 42

type mockAuthAPI struct {
	mock.Mock
}

func (m *mockAuthAPI) Login(ctx context.Context, creds tiendia.Credentials) (*tiendia.AuthResult, error) {
	args := m.Called(ctx, creds)
	res, _ := args.Get(0).(*tiendia.AuthResult)
	return res, args.Error(1)
}

func (m *mockAuthAPI) LoginOrRegister(ctx context.Context, creds tiendia.Credentials) (*tiendia.AuthResult, error) {
	args := m.Called(ctx, creds)
	res, _ := args.Get(0).(*tiendia.AuthResult)
	return res, args.Error(1)
}

func (m *mockAuthAPI) Profile(ctx context.Context, token string) (*models.User, error) {
	args := m.Called(ctx, token)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *mockAuthAPI) Logout(ctx context.Context, token string) error {
	return m.Called(ctx, token).Error(0)
}

func (m *mockAuthAPI) SavePushToken(ctx context.Context, token, pushToken string) error {
	return m.Called(ctx, token, pushToken).Error(0)
}

func newTestSession(t *testing.T, api *mockAuthAPI, opts ...Option) (*Session, *MemoryTokenStore) {
	t.Helper()
	store := NewMemoryTokenStore()
	return New(chatID, api, store, logger.Discard(), opts...), store
}

func signedIn(t *testing.T, credits int) (*Session, *mockAuthAPI, *MemoryTokenStore) {
	t.Helper()
	api := &mockAuthAPI{}
	api.On("LoginOrRegister", mock.Anything, mock.Anything).
		Return(&tiendia.AuthResult{User: models.User{ID: 1, Email: "ana@example.com", Credits: credits}, Token: "tok"}, nil).
		Once()
	s, store := newTestSession(t, api)
	require.NoError(t, s.LoginOrRegister(context.Background(), "ana@example.com", "secret"))
	return s, api, store
}

func jwtWithExpiry(t *testing.T, exp time.Time) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": exp.Unix()}).SignedString([]byte("k"))
	require.NoError(t, err)
	return token
}

func TestNewSessionIsLoading(t *testing.T) {
	s, _ := newTestSession(t, &mockAuthAPI{})
	assert.True(t, s.Loading())
	assert.False(t, s.Authenticated())
	assert.Equal(t, 0, s.Credits())
}

func TestCheckAuthStatusWithoutToken(t *testing.T) {
	api := &mockAuthAPI{}
	s, _ := newTestSession(t, api)

	s.CheckAuthStatus(context.Background())

	assert.False(t, s.Loading())
	assert.Nil(t, s.User())
	api.AssertNotCalled(t, "Profile", mock.Anything, mock.Anything)
}

func TestCheckAuthStatusRestoresUser(t *testing.T) {
	api := &mockAuthAPI{}
	api.On("Profile", mock.Anything, "tok").Return(&models.User{ID: 5, Credits: 300}, nil)
	s, store := newTestSession(t, api)
	require.NoError(t, store.Set(context.Background(), chatID, "tok"))

	s.CheckAuthStatus(context.Background())

	assert.False(t, s.Loading())
	require.NotNil(t, s.User())
	assert.Equal(t, int64(5), s.User().ID)
	assert.Equal(t, 300, s.Credits())
}

func TestCheckAuthStatusDropsRejectedToken(t *testing.T) {
	api := &mockAuthAPI{}
	api.On("Profile", mock.Anything, "tok").Return(nil, &tiendia.APIError{Status: 401, Message: "Token inválido"})
	s, store := newTestSession(t, api)
	require.NoError(t, store.Set(context.Background(), chatID, "tok"))

	s.CheckAuthStatus(context.Background())

	assert.False(t, s.Authenticated())
	token, _ := store.Get(context.Background(), chatID)
	assert.Empty(t, token)
}

func TestCheckAuthStatusSkipsUnusableTokens(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tokens := map[string]string{
		"placeholder": legacyPlaceholderToken,
		"expired jwt": jwtWithExpiry(t, now.Add(-time.Minute)),
	}
	for name, token := range tokens {
		t.Run(name, func(t *testing.T) {
			api := &mockAuthAPI{}
			s, store := newTestSession(t, api, WithClock(func() time.Time { return now }))
			require.NoError(t, store.Set(context.Background(), chatID, token))

			s.CheckAuthStatus(context.Background())

			assert.False(t, s.Authenticated())
			api.AssertNotCalled(t, "Profile", mock.Anything, mock.Anything)
			stored, _ := store.Get(context.Background(), chatID)
			assert.Empty(t, stored)
		})
	}
}

func TestUsableToken(t *testing.T) {
	now := time.Now()
	assert.False(t, usableToken("", now))
	assert.True(t, usableToken("opaque-session-id", now))
	assert.True(t, usableToken(jwtWithExpiry(t, now.Add(time.Hour)), now))
	assert.False(t, usableToken(jwtWithExpiry(t, now.Add(-time.Hour)), now))
}

func TestLoginValidatesBeforeNetwork(t *testing.T) {
	api := &mockAuthAPI{}
	s, _ := newTestSession(t, api)

	err := s.Login(context.Background(), "not-an-email", "secret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	err = s.Login(context.Background(), "ana@example.com", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	api.AssertNotCalled(t, "Login", mock.Anything, mock.Anything)
}

func TestLoginSurfacesServerMessage(t *testing.T) {
	api := &mockAuthAPI{}
	api.On("Login", mock.Anything, mock.Anything).Return(nil, &tiendia.APIError{Status: 401, Message: "Credenciales inválidas"})
	s, store := newTestSession(t, api)

	err := s.Login(context.Background(), "ana@example.com", "wrong")
	require.Error(t, err)
	assert.Equal(t, "Credenciales inválidas", err.Error())
	assert.False(t, s.Authenticated())
	token, _ := store.Get(context.Background(), chatID)
	assert.Empty(t, token)
}

func TestLoginRequiresToken(t *testing.T) {
	api := &mockAuthAPI{}
	api.On("Login", mock.Anything, mock.Anything).Return(&tiendia.AuthResult{User: models.User{ID: 1}}, nil)
	s, _ := newTestSession(t, api)

	err := s.Login(context.Background(), "ana@example.com", "secret")
	assert.ErrorIs(t, err, ErrMissingToken)
	assert.False(t, s.Authenticated())
}

func TestLoginOrRegisterPersistsToken(t *testing.T) {
	s, _, store := signedIn(t, 120)

	token, err := store.Get(context.Background(), chatID)
	require.NoError(t, err)
	assert.Equal(t, "tok", token)
	assert.Equal(t, 120, s.Credits())
}

func TestLogoutClearsStateWhenRemoteFails(t *testing.T) {
	s, api, store := signedIn(t, 100)
	api.On("Logout", mock.Anything, "tok").Return(errors.New("dial tcp: connection refused"))

	s.Logout(context.Background())

	assert.Nil(t, s.User())
	token, _ := store.Get(context.Background(), chatID)
	assert.Empty(t, token)
	api.AssertExpectations(t)
}

func TestLogoutWithoutToken(t *testing.T) {
	api := &mockAuthAPI{}
	s, _ := newTestSession(t, api)

	s.Logout(context.Background())

	assert.Nil(t, s.User())
	api.AssertNotCalled(t, "Logout", mock.Anything, mock.Anything)
}

func TestRefreshUserIgnoresFailures(t *testing.T) {
	s, api, _ := signedIn(t, 100)
	api.On("Profile", mock.Anything, "tok").Return(nil, errors.New("timeout")).Once()

	s.RefreshUser(context.Background())
	assert.Equal(t, 100, s.Credits())

	api.On("Profile", mock.Anything, "tok").Return(&models.User{ID: 1, Credits: 600}, nil).Once()
	s.RefreshUser(context.Background())
	assert.Equal(t, 600, s.Credits())
}

func TestUpdateAndAdjustCredits(t *testing.T) {
	s, _, _ := signedIn(t, 100)

	s.AdjustCredits(-models.GenerationCost)
	assert.Equal(t, 50, s.Credits())

	s.UpdateCredits(900)
	assert.Equal(t, 900, s.Credits())
}

func TestCreditWritesIgnoredWhenSignedOut(t *testing.T) {
	s, _ := newTestSession(t, &mockAuthAPI{})
	s.UpdateCredits(10)
	s.AdjustCredits(10)
	s.ApplyPush(context.Background(), models.PushData{Action: models.PushActionCreditsUpdated, NewBalance: intPtr(5)})
	assert.Nil(t, s.User())
}

func TestApplyPushOverwritesBalance(t *testing.T) {
	s, _, _ := signedIn(t, 100)

	s.ApplyPush(context.Background(), models.PushData{Action: models.PushActionCreditsUpdated, NewBalance: intPtr(2600)})
	assert.Equal(t, 2600, s.Credits())

	s.ApplyPush(context.Background(), models.PushData{Action: "promo", NewBalance: intPtr(1)})
	assert.Equal(t, 2600, s.Credits())
}

func TestApplyPushDropsStaleUpdates(t *testing.T) {
	s, _, _ := signedIn(t, 100)
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	later := t0.Add(time.Minute)

	s.ApplyPush(context.Background(), models.PushData{Action: models.PushActionCreditsUpdated, NewBalance: intPtr(600), IssuedAt: &later})
	s.ApplyPush(context.Background(), models.PushData{Action: models.PushActionCreditsUpdated, NewBalance: intPtr(550), IssuedAt: &t0})

	assert.Equal(t, 600, s.Credits())
}

func TestApplyPushWithoutBalanceRefreshes(t *testing.T) {
	s, api, _ := signedIn(t, 100)
	api.On("Profile", mock.Anything, "tok").Return(&models.User{ID: 1, Credits: 150}, nil).Once()

	s.ApplyPush(context.Background(), models.PushData{Action: models.PushActionCreditsUpdated})

	assert.Equal(t, 150, s.Credits())
	api.AssertExpectations(t)
}

func TestEnablePushNotifications(t *testing.T) {
	s, api, _ := signedIn(t, 100)
	api.On("SavePushToken", mock.Anything, "tok", "42").Return(nil)
	require.NoError(t, s.EnablePushNotifications(context.Background(), "42"))

	signedOut, _ := newTestSession(t, &mockAuthAPI{})
	assert.ErrorIs(t, signedOut.EnablePushNotifications(context.Background(), "42"), ErrNotAuthenticated)
}

func TestSubscribeReceivesSnapshots(t *testing.T) {
	s, _, _ := signedIn(t, 100)

	var seen []int
	unsubscribe := s.Subscribe(func(snap Snapshot) {
		if snap.User != nil {
			seen = append(seen, snap.User.Credits)
		}
	})
	s.UpdateCredits(70)
	s.AdjustCredits(-20)
	unsubscribe()
	s.UpdateCredits(1)

	assert.Equal(t, []int{70, 50}, seen)
}

func TestSnapshotIsACopy(t *testing.T) {
	s, _, _ := signedIn(t, 100)
	u := s.User()
	u.Credits = 0
	assert.Equal(t, 100, s.Credits())
}

func intPtr(v int) *int { return &v }
