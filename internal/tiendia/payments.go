package tiendia

import (
	"context"
	"errors"
	"net/http"
)

var ErrNoCheckoutURL = errors.New("payment response did not contain a checkout URL")

// PaymentRequest is shared by both regional payment endpoints. Credits holds
// the price in the provider's currency, as the backend expects.
type PaymentRequest struct {
	Credits float64 `json:"credits"`
	UserID  int64   `json:"userId"`
	URI     string  `json:"uri"`
}

// CreatePreference starts a Mercado Pago checkout and returns its init point.
func (c *Client) CreatePreference(ctx context.Context, token string, req PaymentRequest) (string, error) {
	var resp struct {
		Preference struct {
			InitPoint string `json:"init_point"`
		} `json:"preference"`
	}
	err := c.do(ctx, call{
		operation: "create_preference",
		method:    http.MethodPost,
		path:      "/api/payments/create-preference",
		token:     token,
		body:      req,
		fallback:  "Error al crear la preferencia de pago",
	}, &resp)
	if err != nil {
		return "", err
	}
	if resp.Preference.InitPoint == "" {
		return "", ErrNoCheckoutURL
	}
	return resp.Preference.InitPoint, nil
}

// CreateDLocalPayment starts a dLocal checkout and returns its redirect URL.
func (c *Client) CreateDLocalPayment(ctx context.Context, token string, req PaymentRequest) (string, error) {
	var resp struct {
		RedirectURL string `json:"redirect_url"`
	}
	err := c.do(ctx, call{
		operation: "create_dlocal_payment",
		method:    http.MethodPost,
		path:      "/api/payments/create-dlocal-payment",
		token:     token,
		body:      req,
		fallback:  "Error al crear la preferencia de pago",
	}, &resp)
	if err != nil {
		return "", err
	}
	if resp.RedirectURL == "" {
		return "", ErrNoCheckoutURL
	}
	return resp.RedirectURL, nil
}

// AdminAddCredits grants credits directly. The backend only accepts it for the
// store review account.
func (c *Client) AdminAddCredits(ctx context.Context, token string, credits int) error {
	return c.do(ctx, call{
		operation: "admin_add_credits",
		method:    http.MethodPost,
		path:      "/api/credits/admin-add-credits",
		token:     token,
		body:      map[string]int{"credits": credits},
		fallback:  "Error cargando creditos automaticos",
	}, nil)
}
