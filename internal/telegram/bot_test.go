package telegram

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digkill/TiendiaBot/internal/billing"
	"github.com/digkill/TiendiaBot/internal/generation"
	"github.com/digkill/TiendiaBot/internal/models"
	"github.com/digkill/TiendiaBot/internal/session"
	"github.com/digkill/TiendiaBot/internal/slider"
	"github.com/digkill/TiendiaBot/internal/tiendia"
	"github.com/digkill/TiendiaBot/pkg/logger"
)

func TestCallbackRoundTrip(t *testing.T) {
	cases := []struct {
		kind callbackKind
		id   int64
		mode string
	}{
		{cbProduct, 12, ""},
		{cbGenerate, 12, "back"},
		{cbGenerate, 99999999999, ""},
		{cbDeleteProduct, 3, ""},
		{cbDeleteImage, 4, ""},
		{cbBuy, 5, ""},
		{cbRegenerate, 0, ""},
		{cbDownload, 0, ""},
		{cbReset, 0, ""},
		{cbSliderLeft, 0, ""},
		{cbSliderRight, 0, ""},
		{cbCancel, 0, ""},
	}
	for _, tc := range cases {
		data := callbackData(tc.kind, tc.id, tc.mode)
		assert.LessOrEqual(t, len(data), 64, data)

		action, id, err := parseCallback(data)
		require.NoError(t, err, data)
		assert.Equal(t, tc.kind, action.kind, data)
		assert.Equal(t, tc.id, id, data)
		assert.Equal(t, tc.mode, action.mode, data)
	}
}

func TestParseCallbackRejectsMalformed(t *testing.T) {
	for _, data := range []string{"", "zzz", "p", "p:x", "p:1:front:extra", "regen:1", "g:"} {
		_, _, err := parseCallback(data)
		assert.Error(t, err, data)
	}
}

func TestUserMessage(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{generation.ErrInsufficientCredits, "No tienes suficientes créditos para generar una imagen. Usa /buy para recargar."},
		{fmt.Errorf("wrap: %w", generation.ErrBusy), "Ya hay una generación en curso. Espera a que termine."},
		{generation.ErrNoImageURL, "La respuesta de la API no contenía una URL de imagen."},
		{session.ErrNotAuthenticated, "Debes iniciar sesión. Usa /login."},
		{billing.ErrNotAuthenticated, "Debes iniciar sesión. Usa /login."},
		{billing.ErrUnknownPack, "Por favor selecciona un pack de imágenes."},
		{&tiendia.APIError{Status: 400, Message: "Sin créditos"}, "Sin créditos"},
		{errors.New("dial tcp: refused"), "Ocurrió un error al conectar con el servidor."},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, userMessage(tc.err), tc.err.Error())
	}
}

func TestUserMessageUnwrapsAPIError(t *testing.T) {
	err := fmt.Errorf("delete product 3: %w", &tiendia.APIError{Status: 500, Message: "Error al eliminar el producto"})
	assert.Equal(t, "Error al eliminar el producto", userMessage(err))
}

func TestStateManagerBuildsChatOnce(t *testing.T) {
	var (
		mu    sync.Mutex
		built int
	)
	m := NewStateManager(func(_ context.Context, chatID int64) *Chat {
		mu.Lock()
		built++
		mu.Unlock()
		return &Chat{ID: chatID}
	})

	_, ok := m.Lookup(7)
	assert.False(t, ok)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, int64(7), m.Get(context.Background(), 7).ID)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, built)
	assert.Equal(t, 1, m.Len())
	chat, ok := m.Lookup(7)
	require.True(t, ok)
	assert.Same(t, m.Get(context.Background(), 7), chat)
}

func TestStateManagerBuildsOutsideLock(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	m := NewStateManager(func(_ context.Context, chatID int64) *Chat {
		if chatID == 1 {
			close(started)
			<-release
		}
		return &Chat{ID: chatID}
	})

	done := make(chan *Chat)
	go func() { done <- m.Get(context.Background(), 1) }()
	<-started

	assert.Equal(t, int64(2), m.Get(context.Background(), 2).ID)
	_, ok := m.Lookup(1)
	assert.False(t, ok, "chat 1 is still being built")

	close(release)
	chat := <-done
	assert.Equal(t, int64(1), chat.ID)
	found, ok := m.Lookup(1)
	require.True(t, ok)
	assert.Same(t, chat, found)
}

func newPushBot(t *testing.T, built *int) (*Bot, *session.MemoryTokenStore) {
	t.Helper()
	tokens := session.NewMemoryTokenStore()
	b := &Bot{log: logger.Discard(), tokens: tokens}
	b.state = NewStateManager(func(_ context.Context, chatID int64) *Chat {
		*built++
		return &Chat{ID: chatID, Session: session.New(chatID, nil, tokens, logger.Discard())}
	})
	return b, tokens
}

func TestPushForUnknownChatWithoutToken(t *testing.T) {
	built := 0
	b, _ := newPushBot(t, &built)

	err := b.HandlePush(context.Background(), 404, models.PushData{Action: models.PushActionCreditsUpdated})

	assert.ErrorIs(t, err, session.ErrNotAuthenticated)
	assert.Zero(t, built)
	assert.Zero(t, b.state.Len())
}

func TestPushForStoredTokenBuildsChat(t *testing.T) {
	built := 0
	b, tokens := newPushBot(t, &built)
	require.NoError(t, tokens.Set(context.Background(), 9, "tok"))

	chat, err := b.chatForPush(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, int64(9), chat.ID)

	_, err = b.chatForPush(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, 1, built)
}

func TestAttractFramesSkipStillKeyframes(t *testing.T) {
	s := slider.New(720)
	s.Attract()

	frames := attractFrames(s)

	assert.Equal(t, []attractFrame{
		{wait: slider.AttractDelay + slider.AttractSweep, pos: 720},
		{wait: slider.AttractPause + slider.AttractReturn, pos: 360},
	}, frames)
	assert.Equal(t, slider.Animating, s.Phase(), "the live slider is not advanced")
	assert.Equal(t, 0.0, s.Position())
}

func TestAttractFramesAfterGrab(t *testing.T) {
	s := slider.New(720)
	s.Attract()
	s.Grab()
	assert.Empty(t, attractFrames(s))
}

func TestChatLoginSteps(t *testing.T) {
	chat := &Chat{}
	chat.SetStep(StepAwaitingEmail)
	chat.setPendingEmail("ana@example.com")
	assert.Equal(t, StepAwaitingPassword, chat.Step())

	assert.Equal(t, "ana@example.com", chat.takePendingEmail())
	assert.Equal(t, StepIdle, chat.Step())
	assert.Empty(t, chat.takePendingEmail())
}

func TestClearComparisonBumpsSequence(t *testing.T) {
	chat := &Chat{before: []byte{1}, after: []byte{2}, compareMsgID: 10}
	chat.clearComparison()
	assert.Nil(t, chat.before)
	assert.Nil(t, chat.after)
	assert.Zero(t, chat.compareMsgID)
	assert.Equal(t, 1, chat.attractSeq)
}

func TestNormalizeImageContentType(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n0000")

	ct, err := normalizeImageContentType("image/JPG; charset=binary", nil)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", ct)

	ct, err = normalizeImageContentType("application/octet-stream", png)
	require.NoError(t, err)
	assert.Equal(t, "image/png", ct)

	_, err = normalizeImageContentType("text/plain", []byte("hello"))
	assert.ErrorIs(t, err, errNotImage)
}

func TestParseIDArg(t *testing.T) {
	id, err := parseIDArg([]string{"#15"}, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(15), id)

	_, err = parseIDArg(nil, 0)
	assert.Error(t, err)
	_, err = parseIDArg([]string{"abc"}, 0)
	assert.Error(t, err)
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "", displayName(nil))
	assert.Equal(t, "Ana", displayName(&models.User{Name: "Ana", Username: "ana", Email: "a@x.io"}))
	assert.Equal(t, "ana", displayName(&models.User{Username: "ana", Email: "a@x.io"}))
	assert.Equal(t, "a@x.io", displayName(&models.User{Email: "a@x.io"}))
}
