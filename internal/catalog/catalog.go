package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/digkill/TiendiaBot/internal/models"
)

var ErrNotAuthenticated = errors.New("user not authenticated")

type API interface {
	ListProducts(ctx context.Context, token string, userID int64) ([]models.Product, error)
	DeleteProduct(ctx context.Context, token string, id int64) error
	ListUserImages(ctx context.Context, token string, userID int64) ([]models.GeneratedImage, error)
	DeleteImage(ctx context.Context, token string, imageID int64) error
}

// Auth is the slice of the session the catalog depends on.
type Auth interface {
	User() *models.User
	Token(ctx context.Context) (string, error)
}

// Store holds the products and generated images of one chat. Fetches replace
// a collection wholesale; deletes touch local state only after the server
// confirmed them.
type Store struct {
	api  API
	auth Auth
	log  *slog.Logger

	mu       sync.RWMutex
	products []models.Product
	images   []models.GeneratedImage
}

func NewStore(api API, auth Auth, log *slog.Logger) *Store {
	return &Store{api: api, auth: auth, log: log}
}

func (s *Store) credentials(ctx context.Context) (string, int64, error) {
	user := s.auth.User()
	if user == nil {
		return "", 0, ErrNotAuthenticated
	}
	token, err := s.auth.Token(ctx)
	if err != nil {
		return "", 0, err
	}
	if token == "" {
		return "", 0, ErrNotAuthenticated
	}
	return token, user.ID, nil
}

// GetProducts fetches the user's products and replaces the local list.
func (s *Store) GetProducts(ctx context.Context) ([]models.Product, error) {
	token, userID, err := s.credentials(ctx)
	if err != nil {
		return nil, err
	}
	products, err := s.api.ListProducts(ctx, token, userID)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	s.mu.Lock()
	s.products = append([]models.Product(nil), products...)
	s.mu.Unlock()
	return s.Products(), nil
}

func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	token, _, err := s.credentials(ctx)
	if err != nil {
		return err
	}
	if err := s.api.DeleteProduct(ctx, token, id); err != nil {
		return fmt.Errorf("delete product %d: %w", id, err)
	}

	s.mu.Lock()
	s.products = removeProduct(s.products, id)
	s.mu.Unlock()
	s.log.Info("product deleted", "product_id", id)
	return nil
}

// GetUserImages fetches the gallery and replaces the local list.
func (s *Store) GetUserImages(ctx context.Context) ([]models.GeneratedImage, error) {
	token, userID, err := s.credentials(ctx)
	if err != nil {
		return nil, err
	}
	images, err := s.api.ListUserImages(ctx, token, userID)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}

	s.mu.Lock()
	s.images = append([]models.GeneratedImage(nil), images...)
	s.mu.Unlock()
	return s.Images(), nil
}

func (s *Store) DeleteImage(ctx context.Context, imageID int64) error {
	token, _, err := s.credentials(ctx)
	if err != nil {
		return err
	}
	if err := s.api.DeleteImage(ctx, token, imageID); err != nil {
		return fmt.Errorf("delete image %d: %w", imageID, err)
	}

	s.mu.Lock()
	s.images = removeImage(s.images, imageID)
	s.mu.Unlock()
	s.log.Info("image deleted", "image_id", imageID)
	return nil
}

// Product looks up a product from the last fetch.
func (s *Store) Product(id int64) (models.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.products {
		if p.ID == id {
			return p, true
		}
	}
	return models.Product{}, false
}

func (s *Store) Image(id int64) (models.GeneratedImage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, img := range s.images {
		if img.ID == id {
			return img, true
		}
	}
	return models.GeneratedImage{}, false
}

func (s *Store) Products() []models.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Product(nil), s.products...)
}

func (s *Store) Images() []models.GeneratedImage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.GeneratedImage(nil), s.images...)
}

// Clear drops both collections, e.g. after logout.
func (s *Store) Clear() {
	s.mu.Lock()
	s.products = nil
	s.images = nil
	s.mu.Unlock()
}

func removeProduct(products []models.Product, id int64) []models.Product {
	out := make([]models.Product, 0, len(products))
	for _, p := range products {
		if p.ID != id {
			out = append(out, p)
		}
	}
	return out
}

func removeImage(images []models.GeneratedImage, id int64) []models.GeneratedImage {
	out := make([]models.GeneratedImage, 0, len(images))
	for _, img := range images {
		if img.ID != id {
			out = append(out, img)
		}
	}
	return out
}
