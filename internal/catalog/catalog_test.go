package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/digkill/TiendiaBot/internal/models"
	"github.com/digkill/TiendiaBot/pkg/logger"
)

type mockAPI struct {
	mock.Mock
}

func (m *mockAPI) ListProducts(ctx context.Context, token string, userID int64) ([]models.Product, error) {
	args := m.Called(ctx, token, userID)
	products, _ := args.Get(0).([]models.Product)
	return products, args.Error(1)
}

func (m *mockAPI) DeleteProduct(ctx context.Context, token string, id int64) error {
	return m.Called(ctx, token, id).Error(0)
}

func (m *mockAPI) ListUserImages(ctx context.Context, token string, userID int64) ([]models.GeneratedImage, error) {
	args := m.Called(ctx, token, userID)
	images, _ := args.Get(0).([]models.GeneratedImage)
	return images, args.Error(1)
}

func (m *mockAPI) DeleteImage(ctx context.Context, token string, imageID int64) error {
	return m.Called(ctx, token, imageID).Error(0)
}

type stubAuth struct {
	user  *models.User
	token string
}

func (a stubAuth) User() *models.User { return a.user }
func (a stubAuth) Token(context.Context) (string, error) { return a.token, nil }

func newTestStore(api *mockAPI) *Store {
	return NewStore(api, stubAuth{user: &models.User{ID: 9}, token: "tok"}, logger.Discard())
}

func seededStore(t *testing.T) (*Store, *mockAPI) {
	t.Helper()
	api := &mockAPI{}
	api.On("ListProducts", mock.Anything, "tok", int64(9)).
		Return([]models.Product{{ID: 1, Name: "Remera"}, {ID: 2, Name: "Buzo"}}, nil).Once()
	api.On("ListUserImages", mock.Anything, "tok", int64(9)).
		Return([]models.GeneratedImage{{ID: 10, ProductID: 1}, {ID: 11, ProductID: 2}}, nil).Once()

	s := newTestStore(api)
	_, err := s.GetProducts(context.Background())
	require.NoError(t, err)
	_, err = s.GetUserImages(context.Background())
	require.NoError(t, err)
	return s, api
}

func TestRequiresSignedInUser(t *testing.T) {
	api := &mockAPI{}
	s := NewStore(api, stubAuth{}, logger.Discard())

	_, err := s.GetProducts(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	_, err = s.GetUserImages(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.ErrorIs(t, s.DeleteProduct(context.Background(), 1), ErrNotAuthenticated)
	assert.ErrorIs(t, s.DeleteImage(context.Background(), 1), ErrNotAuthenticated)

	noToken := NewStore(api, stubAuth{user: &models.User{ID: 1}}, logger.Discard())
	_, err = noToken.GetProducts(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	api.AssertNotCalled(t, "ListProducts", mock.Anything, mock.Anything, mock.Anything)
}

func TestFetchReplacesCollection(t *testing.T) {
	s, api := seededStore(t)
	api.On("ListProducts", mock.Anything, "tok", int64(9)).
		Return([]models.Product{{ID: 3, Name: "Campera"}}, nil).Once()

	products, err := s.GetProducts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.Product{{ID: 3, Name: "Campera"}}, products)

	_, ok := s.Product(1)
	assert.False(t, ok)
	p, ok := s.Product(3)
	assert.True(t, ok)
	assert.Equal(t, "Campera", p.Name)
}

func TestFailedFetchKeepsCollection(t *testing.T) {
	s, api := seededStore(t)
	api.On("ListProducts", mock.Anything, "tok", int64(9)).Return(nil, errors.New("boom")).Once()

	_, err := s.GetProducts(context.Background())
	require.Error(t, err)
	assert.Len(t, s.Products(), 2)
}

func TestDeleteProductConfirmsBeforeMutating(t *testing.T) {
	s, api := seededStore(t)
	before := s.Products()

	api.On("DeleteProduct", mock.Anything, "tok", int64(1)).Return(errors.New("Error al eliminar producto")).Once()
	require.Error(t, s.DeleteProduct(context.Background(), 1))
	assert.Equal(t, before, s.Products())

	api.On("DeleteProduct", mock.Anything, "tok", int64(1)).Return(nil).Once()
	require.NoError(t, s.DeleteProduct(context.Background(), 1))
	assert.Equal(t, []models.Product{{ID: 2, Name: "Buzo"}}, s.Products())
}

func TestDeleteImageConfirmsBeforeMutating(t *testing.T) {
	s, api := seededStore(t)
	before := s.Images()

	api.On("DeleteImage", mock.Anything, "tok", int64(11)).Return(errors.New("Error al eliminar imagen")).Once()
	require.Error(t, s.DeleteImage(context.Background(), 11))
	assert.Equal(t, before, s.Images())

	api.On("DeleteImage", mock.Anything, "tok", int64(11)).Return(nil).Once()
	require.NoError(t, s.DeleteImage(context.Background(), 11))
	assert.Equal(t, []models.GeneratedImage{{ID: 10, ProductID: 1}}, s.Images())

	_, ok := s.Image(11)
	assert.False(t, ok)
}

func TestAccessorsReturnCopies(t *testing.T) {
	s, _ := seededStore(t)
	products := s.Products()
	products[0].Name = "changed"
	p, _ := s.Product(1)
	assert.Equal(t, "Remera", p.Name)

	s.Clear()
	assert.Empty(t, s.Products())
	assert.Empty(t, s.Images())
}
