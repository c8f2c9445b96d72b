package tiendia

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/digkill/TiendiaBot/internal/models"
	"github.com/digkill/TiendiaBot/internal/telemetry"
)

// GeneratedImageResponse is the union of what the generation endpoints return.
// Each endpoint fills exactly one of the URL fields.
type GeneratedImageResponse struct {
	AdImageURL           string `json:"adImageUrl,omitempty"`
	BackImageURL         string `json:"backImageUrl,omitempty"`
	BabyImageURL         string `json:"babyImageUrl,omitempty"`
	KidImageURL          string `json:"kidImageUrl,omitempty"`
	PersonalizedImageURL string `json:"personalizedImageUrl,omitempty"`
	ImageID              int64  `json:"imageId,omitempty"`
}

// ImageURL returns the generated image, or "" when the response had none.
func (r *GeneratedImageResponse) ImageURL() string {
	if r == nil {
		return ""
	}
	for _, u := range []string{r.PersonalizedImageURL, r.BabyImageURL, r.KidImageURL, r.BackImageURL, r.AdImageURL} {
		if u != "" {
			return u
		}
	}
	return ""
}

// Personalization is the body of the personalize endpoint. Empty fields are
// left for the server to choose.
type Personalization struct {
	Gender   string `json:"gender,omitempty"`
	Age      string `json:"age,omitempty"`
	SkinTone string `json:"skinTone,omitempty"`
	BodyType string `json:"bodyType,omitempty"`
}

// NewProductResult is returned by the upload-and-generate endpoint.
type NewProductResult struct {
	ID                int64  `json:"id,omitempty"`
	Name              string `json:"name,omitempty"`
	OriginalImageURL  string `json:"originalImageUrl"`
	GeneratedImageURL string `json:"generatedImageUrl"`
}

func (c *Client) ListProducts(ctx context.Context, token string, userID int64) ([]models.Product, error) {
	var resp struct {
		Products []models.Product `json:"products"`
	}
	err := c.do(ctx, call{
		operation: "list_products",
		method:    http.MethodGet,
		path:      "/api/products/list/" + strconv.FormatInt(userID, 10),
		token:     token,
		fallback:  "Error al obtener productos",
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Products == nil {
		return []models.Product{}, nil
	}
	return resp.Products, nil
}

func (c *Client) DeleteProduct(ctx context.Context, token string, id int64) error {
	return c.do(ctx, call{
		operation: "delete_product",
		method:    http.MethodDelete,
		path:      "/api/products/delete/" + strconv.FormatInt(id, 10),
		token:     token,
		fallback:  "Error al eliminar producto",
	}, nil)
}

func (c *Client) GenerateAd(ctx context.Context, token string, id int64) (*GeneratedImageResponse, error) {
	return c.generate(ctx, "generate_ad", "/api/products/generate-ad/", token, id, map[string]bool{"includeModel": true}, "Error al generar imagen")
}

func (c *Client) GenerateBackImage(ctx context.Context, token string, id int64) (*GeneratedImageResponse, error) {
	return c.generate(ctx, "generate_back", "/api/products/back-image/", token, id, struct{}{}, "Error al generar imagen de espalda")
}

func (c *Client) GenerateBabyImage(ctx context.Context, token string, id int64) (*GeneratedImageResponse, error) {
	return c.generate(ctx, "generate_baby", "/api/products/baby-image/", token, id, struct{}{}, "Error al generar imagen de bebé")
}

func (c *Client) GenerateKidImage(ctx context.Context, token string, id int64) (*GeneratedImageResponse, error) {
	return c.generate(ctx, "generate_kid", "/api/products/kid-image/", token, id, struct{}{}, "Error al generar imagen de niño")
}

func (c *Client) PersonalizeImage(ctx context.Context, token string, id int64, p Personalization) (*GeneratedImageResponse, error) {
	return c.generate(ctx, "personalize", "/api/products/personalize/", token, id, p, "Error al personalizar imagen")
}

func (c *Client) generate(ctx context.Context, op, prefix, token string, id int64, body any, fallback string) (*GeneratedImageResponse, error) {
	var resp GeneratedImageResponse
	err := c.do(ctx, call{
		operation: op,
		method:    http.MethodPost,
		path:      prefix + strconv.FormatInt(id, 10),
		token:     token,
		body:      body,
		fallback:  fallback,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// GenerateProductAndImage uploads a photo as a data URI, creating a product and
// its first generated image in one call.
func (c *Client) GenerateProductAndImage(ctx context.Context, token string, image []byte, contentType string) (*NewProductResult, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("no image data to upload")
	}
	if contentType == "" {
		contentType = http.DetectContentType(image)
	}
	var resp struct {
		Product NewProductResult `json:"product"`
	}
	err := c.do(ctx, call{
		operation: "generate_product_and_image",
		method:    http.MethodPost,
		path:      "/api/products/generate-product-and-image",
		token:     token,
		body: map[string]any{
			"image":        DataURI(contentType, image),
			"includeModel": true,
		},
		fallback: "Error al generar el producto",
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp.Product, nil
}

func (c *Client) ListUserImages(ctx context.Context, token string, userID int64) ([]models.GeneratedImage, error) {
	var resp struct {
		Images []models.GeneratedImage `json:"images"`
	}
	err := c.do(ctx, call{
		operation: "list_user_images",
		method:    http.MethodGet,
		path:      "/api/products/images/by-user/" + strconv.FormatInt(userID, 10),
		token:     token,
		fallback:  "Error al obtener imágenes del usuario",
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Images == nil {
		return []models.GeneratedImage{}, nil
	}
	return resp.Images, nil
}

func (c *Client) DeleteImage(ctx context.Context, token string, imageID int64) error {
	return c.do(ctx, call{
		operation: "delete_image",
		method:    http.MethodDelete,
		path:      "/api/products/images/" + strconv.FormatInt(imageID, 10),
		token:     token,
		fallback:  "Error al eliminar imagen",
	}, nil)
}

// FetchImage downloads an image completely. It is the prefetch step that gates
// the comparison view, so a partial body is an error.
func (c *Client) FetchImage(ctx context.Context, imageURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build image request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		telemetry.ObserveAPIRequest("fetch_image", "error", time.Since(start))
		return nil, "", fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()
	telemetry.ObserveAPIRequest("fetch_image", strconv.Itoa(resp.StatusCode), time.Since(start))

	if resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("fetch image: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read image body: %w", err)
	}
	if len(body) == 0 {
		return nil, "", fmt.Errorf("fetch image: empty body")
	}

	ct := resp.Header.Get("Content-Type")
	if idx := strings.Index(ct, ";"); idx > 0 {
		ct = ct[:idx]
	}
	if !strings.HasPrefix(ct, "image/") {
		ct = http.DetectContentType(body)
	}
	return body, ct, nil
}

// DataURI encodes data the way the upload endpoint expects it.
func DataURI(contentType string, data []byte) string {
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
