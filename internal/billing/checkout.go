package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/digkill/TiendiaBot/internal/models"
	"github.com/digkill/TiendiaBot/internal/tiendia"
)

var (
	ErrNotAuthenticated = errors.New("user not authenticated")
	ErrUnknownPack      = errors.New("unknown pack")
	ErrPackUnavailable  = errors.New("pack not available in this country")
)

type PaymentAPI interface {
	CreatePreference(ctx context.Context, token string, req tiendia.PaymentRequest) (string, error)
	CreateDLocalPayment(ctx context.Context, token string, req tiendia.PaymentRequest) (string, error)
	AdminAddCredits(ctx context.Context, token string, credits int) error
}

// Buyer is the session paying for a pack.
type Buyer interface {
	User() *models.User
	Token(ctx context.Context) (string, error)
	AdjustCredits(delta int)
}

// CheckoutResult is either a URL to open or, for the review account, credits
// granted on the spot.
type CheckoutResult struct {
	Provider     string
	URL          string
	CreditsAdded int
}

type Service struct {
	api         PaymentAPI
	reviewEmail string
	returnURI   string
	log         *slog.Logger
}

func NewService(api PaymentAPI, reviewEmail, returnURI string, log *slog.Logger) *Service {
	return &Service{api: api, reviewEmail: reviewEmail, returnURI: returnURI, log: log}
}

// IsReviewAccount reports whether user is the store review account, which is
// always priced in USD and never sent to a payment provider.
func (s *Service) IsReviewAccount(user *models.User) bool {
	return user != nil && s.reviewEmail != "" && strings.EqualFold(user.Email, s.reviewEmail)
}

// EffectiveCountry is the country prices are computed for.
func (s *Service) EffectiveCountry(user *models.User, country string) string {
	if s.IsReviewAccount(user) {
		return "US"
	}
	return strings.ToUpper(country)
}

// Checkout starts the purchase of packID. Credits bought through a provider
// arrive later as a push; only the review account is credited here.
func (s *Service) Checkout(ctx context.Context, buyer Buyer, country string, packID int) (*CheckoutResult, error) {
	user := buyer.User()
	if user == nil {
		return nil, ErrNotAuthenticated
	}
	token, err := buyer.Token(ctx)
	if err != nil {
		return nil, err
	}

	country = s.EffectiveCountry(user, country)
	offer, ok := FindOffer(country, packID)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownPack, packID)
	}
	if offer.Disabled {
		return nil, ErrPackUnavailable
	}

	if s.IsReviewAccount(user) {
		if err := s.api.AdminAddCredits(ctx, token, offer.Credits); err != nil {
			return nil, fmt.Errorf("add review credits: %w", err)
		}
		buyer.AdjustCredits(offer.Credits)
		s.log.Info("review credits added", "user_id", user.ID, "credits", offer.Credits)
		return &CheckoutResult{Provider: "review", CreditsAdded: offer.Credits}, nil
	}

	req := tiendia.PaymentRequest{UserID: user.ID, URI: s.returnURI}
	var url string
	if country == CountryArgentina {
		req.Credits = offer.Price
		url, err = s.api.CreatePreference(ctx, token, req)
	} else {
		req.Credits = offer.PriceUSD
		url, err = s.api.CreateDLocalPayment(ctx, token, req)
	}
	if err != nil {
		return nil, err
	}

	s.log.Info("checkout started", "user_id", user.ID, "pack_id", packID, "country", country)
	return &CheckoutResult{Provider: ProviderName(country), URL: url}, nil
}
