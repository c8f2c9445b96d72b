package billing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/digkill/TiendiaBot/internal/models"
	"github.com/digkill/TiendiaBot/internal/tiendia"
	"github.com/digkill/TiendiaBot/pkg/logger"
)

type mockPaymentAPI struct {
	mock.Mock
}

func (m *mockPaymentAPI) CreatePreference(ctx context.Context, token string, req tiendia.PaymentRequest) (string, error) {
	args := m.Called(ctx, token, req)
	return args.String(0), args.Error(1)
}

func (m *mockPaymentAPI) CreateDLocalPayment(ctx context.Context, token string, req tiendia.PaymentRequest) (string, error) {
	args := m.Called(ctx, token, req)
	return args.String(0), args.Error(1)
}

func (m *mockPaymentAPI) AdminAddCredits(ctx context.Context, token string, credits int) error {
	return m.Called(ctx, token, credits).Error(0)
}

type stubBuyer struct {
	user  *models.User
	added int
}

func (b *stubBuyer) User() *models.User { return b.user }
func (b *stubBuyer) Token(context.Context) (string, error) { return "tok", nil }
func (b *stubBuyer) AdjustCredits(delta int) { b.added += delta }

func newTestService(api *mockPaymentAPI) *Service {
	return NewService(api, "review2025@tiendia.app", "tiendia://", logger.Discard())
}

func TestOffersConvertUSDPrices(t *testing.T) {
	offers := Offers("br")
	require.Len(t, offers, 4)
	assert.Equal(t, "BRL", offers[0].Currency)
	assert.Equal(t, 0.83, offers[0].Price)
	assert.Equal(t, 29.27, offers[2].Price)
	for _, o := range offers {
		assert.False(t, o.Disabled)
	}
}

func TestOffersArgentinaUsesPesoList(t *testing.T) {
	offers := Offers("AR")
	require.Len(t, offers, 4)
	assert.Equal(t, "ARS", offers[1].Currency)
	assert.Equal(t, 1200.0, offers[1].Price)
	assert.Equal(t, 1.0, offers[1].PriceUSD)
}

func TestOffersUnknownCountryIsUSD(t *testing.T) {
	offers := Offers("ZZ")
	assert.Equal(t, "USD", offers[0].Currency)
	assert.Equal(t, 0.13, offers[0].Price)
	assert.Equal(t, 8.8, offers[3].Price)
}

func TestLimitedPackCountries(t *testing.T) {
	assert.True(t, IsPackDisabled("MX", 1))
	assert.True(t, IsPackDisabled("pe", 2))
	assert.False(t, IsPackDisabled("MX", 3))
	assert.False(t, IsPackDisabled("AR", 1))

	offers := Offers("UY")
	assert.True(t, offers[0].Disabled)
	assert.False(t, offers[3].Disabled)
}

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "$0.13", FormatPrice(0.13, "USD"))
	assert.Equal(t, "R$0,83", FormatPrice(0.83, "BRL"))
	assert.Equal(t, "XYZ 1.50", FormatPrice(1.5, "XYZ"))
}

func TestCurrencyFor(t *testing.T) {
	assert.Equal(t, "PYG", CurrencyFor("py"))
	assert.Equal(t, "USD", CurrencyFor("EC"))
}

func TestCheckoutArgentinaUsesMercadoPago(t *testing.T) {
	api := &mockPaymentAPI{}
	api.On("CreatePreference", mock.Anything, "tok", tiendia.PaymentRequest{Credits: 4200, UserID: 3, URI: "tiendia://"}).
		Return("https://mp.example.com/init", nil)
	buyer := &stubBuyer{user: &models.User{ID: 3, Email: "a@example.com"}}

	res, err := newTestService(api).Checkout(context.Background(), buyer, "ar", 3)
	require.NoError(t, err)
	assert.Equal(t, "Mercado Pago", res.Provider)
	assert.Equal(t, "https://mp.example.com/init", res.URL)
	assert.Zero(t, buyer.added)
	api.AssertExpectations(t)
}

func TestCheckoutElsewhereUsesDLocalInUSD(t *testing.T) {
	api := &mockPaymentAPI{}
	api.On("CreateDLocalPayment", mock.Anything, "tok", tiendia.PaymentRequest{Credits: 1.25, UserID: 3, URI: "tiendia://"}).
		Return("https://dlocal.example.com/pay", nil)
	buyer := &stubBuyer{user: &models.User{ID: 3}}

	res, err := newTestService(api).Checkout(context.Background(), buyer, "BR", 2)
	require.NoError(t, err)
	assert.Equal(t, "dLocal", res.Provider)
	assert.Equal(t, "https://dlocal.example.com/pay", res.URL)
}

func TestCheckoutReviewAccountAddsCredits(t *testing.T) {
	api := &mockPaymentAPI{}
	api.On("AdminAddCredits", mock.Anything, "tok", 500).Return(nil)
	buyer := &stubBuyer{user: &models.User{ID: 1, Email: "Review2025@tiendia.app"}}

	res, err := newTestService(api).Checkout(context.Background(), buyer, "AR", 2)
	require.NoError(t, err)
	assert.Equal(t, 500, res.CreditsAdded)
	assert.Equal(t, 500, buyer.added)
	api.AssertNotCalled(t, "CreatePreference", mock.Anything, mock.Anything, mock.Anything)
}

func TestCheckoutReviewFailureDoesNotCredit(t *testing.T) {
	api := &mockPaymentAPI{}
	api.On("AdminAddCredits", mock.Anything, "tok", 50).Return(errors.New("forbidden"))
	buyer := &stubBuyer{user: &models.User{ID: 1, Email: "review2025@tiendia.app"}}

	_, err := newTestService(api).Checkout(context.Background(), buyer, "US", 1)
	require.Error(t, err)
	assert.Zero(t, buyer.added)
}

func TestCheckoutRejections(t *testing.T) {
	svc := newTestService(&mockPaymentAPI{})

	_, err := svc.Checkout(context.Background(), &stubBuyer{}, "US", 1)
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	buyer := &stubBuyer{user: &models.User{ID: 3}}
	_, err = svc.Checkout(context.Background(), buyer, "US", 9)
	assert.ErrorIs(t, err, ErrUnknownPack)

	_, err = svc.Checkout(context.Background(), buyer, "MX", 1)
	assert.ErrorIs(t, err, ErrPackUnavailable)
}

func TestCheckoutMissingURL(t *testing.T) {
	api := &mockPaymentAPI{}
	api.On("CreateDLocalPayment", mock.Anything, "tok", mock.Anything).Return("", tiendia.ErrNoCheckoutURL)
	buyer := &stubBuyer{user: &models.User{ID: 3}}

	_, err := newTestService(api).Checkout(context.Background(), buyer, "CL", 4)
	assert.ErrorIs(t, err, tiendia.ErrNoCheckoutURL)
}
