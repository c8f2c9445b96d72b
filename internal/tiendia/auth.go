package tiendia

import (
	"context"
	"errors"
	"net/http"

	"github.com/digkill/TiendiaBot/internal/models"
)

var ErrEmptyUser = errors.New("response did not contain a user")

// Credentials is the login body. Validation tags are enforced by the session
// before any request goes out.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResult is a successful login: the user plus the opaque token to persist.
type AuthResult struct {
	User  models.User
	Token string
}

type authResponse struct {
	Message string        `json:"message"`
	User    []models.User `json:"user"`
	NewUser []models.User `json:"newUser"`
	Token   string        `json:"token"`
}

func (r authResponse) first() (models.User, error) {
	switch {
	case len(r.User) > 0:
		return r.User[0], nil
	case len(r.NewUser) > 0:
		return r.NewUser[0], nil
	default:
		return models.User{}, ErrEmptyUser
	}
}

func (c *Client) Login(ctx context.Context, creds Credentials) (*AuthResult, error) {
	return c.authenticate(ctx, "login", "/api/auth/login", creds, "Error al iniciar sesión")
}

func (c *Client) LoginOrRegister(ctx context.Context, creds Credentials) (*AuthResult, error) {
	return c.authenticate(ctx, "login_or_register", "/api/auth/login-or-register", creds, "Error al iniciar sesión o registrar")
}

func (c *Client) Register(ctx context.Context, creds Credentials) (*AuthResult, error) {
	return c.authenticate(ctx, "register", "/api/auth/register", creds, "Error al registrar")
}

func (c *Client) authenticate(ctx context.Context, op, path string, creds Credentials, fallback string) (*AuthResult, error) {
	var resp authResponse
	err := c.do(ctx, call{
		operation: op,
		method:    http.MethodPost,
		path:      path,
		body:      creds,
		fallback:  fallback,
	}, &resp)
	if err != nil {
		return nil, err
	}
	user, err := resp.first()
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, Token: resp.Token}, nil
}

func (c *Client) Profile(ctx context.Context, token string) (*models.User, error) {
	var resp authResponse
	err := c.do(ctx, call{
		operation: "profile",
		method:    http.MethodGet,
		path:      "/api/auth/profile",
		token:     token,
		fallback:  "Error al obtener perfil",
	}, &resp)
	if err != nil {
		return nil, err
	}
	user, err := resp.first()
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) Logout(ctx context.Context, token string) error {
	return c.do(ctx, call{
		operation: "logout",
		method:    http.MethodDelete,
		path:      "/api/auth/logout",
		token:     token,
		fallback:  "Error al cerrar sesión",
	}, nil)
}

func (c *Client) SavePushToken(ctx context.Context, token, pushToken string) error {
	return c.do(ctx, call{
		operation: "save_push_token",
		method:    http.MethodPost,
		path:      "/api/auth/save-push-token",
		token:     token,
		body:      map[string]string{"pushToken": pushToken},
		fallback:  "No se pudo guardar el token de notificaciones",
	}, nil)
}
