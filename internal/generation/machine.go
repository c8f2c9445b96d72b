package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/digkill/TiendiaBot/internal/models"
	"github.com/digkill/TiendiaBot/internal/tiendia"
)

var (
	ErrInsufficientCredits = errors.New("not enough credits to generate an image")
	ErrBusy                = errors.New("a generation is already in progress")
	ErrNoImageURL          = errors.New("response did not contain an image URL")
	ErrNothingToRegenerate = errors.New("no previous generation to repeat")
	ErrNoResult            = errors.New("no generated image to download")
	ErrNotAuthenticated    = errors.New("user not authenticated")
)

type State int

const (
	Idle State = iota
	Submitting
	PendingPrefetch
	Comparing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Submitting:
		return "submitting"
	case PendingPrefetch:
		return "pending_prefetch"
	case Comparing:
		return "comparing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type API interface {
	GenerateAd(ctx context.Context, token string, id int64) (*tiendia.GeneratedImageResponse, error)
	GenerateBackImage(ctx context.Context, token string, id int64) (*tiendia.GeneratedImageResponse, error)
	GenerateBabyImage(ctx context.Context, token string, id int64) (*tiendia.GeneratedImageResponse, error)
	GenerateKidImage(ctx context.Context, token string, id int64) (*tiendia.GeneratedImageResponse, error)
	PersonalizeImage(ctx context.Context, token string, id int64, p tiendia.Personalization) (*tiendia.GeneratedImageResponse, error)
	GenerateProductAndImage(ctx context.Context, token string, image []byte, contentType string) (*tiendia.NewProductResult, error)
	FetchImage(ctx context.Context, imageURL string) ([]byte, string, error)
}

// Wallet is the part of the session that pays for generations.
type Wallet interface {
	User() *models.User
	Token(ctx context.Context) (string, error)
	AdjustCredits(delta int)
}

// ProductRefresher reloads the product list after an upload created a product.
type ProductRefresher interface {
	GetProducts(ctx context.Context) ([]models.Product, error)
}

// Result is what the comparison view shows.
type Result struct {
	ProductID    int64
	ProductName  string
	OriginalURL  string
	GeneratedURL string
	Generated    []byte
	ContentType  string
	Descriptor   Descriptor
}

// source is either an existing product or an uploaded photo.
type source struct {
	product     models.Product
	upload      []byte
	contentType string
}

func (s source) isUpload() bool { return len(s.upload) > 0 }

// Machine drives one chat's generation screen. Network calls run without the
// lock held; the Submitting and PendingPrefetch states keep a second trigger
// out.
type Machine struct {
	api      API
	wallet   Wallet
	products ProductRefresher
	log      *slog.Logger
	now      func() time.Time

	mu     sync.Mutex
	state  State
	src    *source
	desc   Descriptor
	result *Result
}

func NewMachine(api API, wallet Wallet, products ProductRefresher, log *slog.Logger) *Machine {
	return &Machine{
		api:      api,
		wallet:   wallet,
		products: products,
		log:      log,
		now:      time.Now,
	}
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Result returns the image being compared, or nil outside Comparing.
func (m *Machine) Result() *Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Comparing || m.result == nil {
		return nil
	}
	r := *m.result
	return &r
}

// Generate runs a fresh generation for product. Success spends one
// generation's worth of credits.
func (m *Machine) Generate(ctx context.Context, product models.Product, d Descriptor) (*Result, error) {
	if d == nil {
		d = Front{}
	}
	return m.run(ctx, source{product: product}, d, false)
}

// GenerateNewProduct uploads a photo, which creates a product and its first
// image in one call.
func (m *Machine) GenerateNewProduct(ctx context.Context, image []byte, contentType string) (*Result, error) {
	if len(image) == 0 {
		return nil, errors.New("no image selected")
	}
	return m.run(ctx, source{upload: image, contentType: contentType}, Front{}, false)
}

// Regenerate repeats the last generation with the same source and descriptor.
// It is not charged locally; the next profile refresh carries whatever the
// server decided.
func (m *Machine) Regenerate(ctx context.Context) (*Result, error) {
	m.mu.Lock()
	src, desc := m.src, m.desc
	m.mu.Unlock()
	if src == nil || desc == nil {
		return nil, ErrNothingToRegenerate
	}
	return m.run(ctx, *src, desc, true)
}

// Reset drops the comparison and returns to Idle. It is refused while a
// request is in flight.
func (m *Machine) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.busyLocked() {
		return ErrBusy
	}
	m.state = Idle
	m.src = nil
	m.desc = nil
	m.result = nil
	return nil
}

// Download returns the generated image and the file name it is saved under.
func (m *Machine) Download() ([]byte, string, error) {
	res := m.Result()
	if res == nil || len(res.Generated) == 0 {
		return nil, "", ErrNoResult
	}
	return res.Generated, DownloadFilename(res.ProductName, m.now()), nil
}

// DownloadFilename is "<name>_<unix millis>.png" with whitespace replaced by
// underscores.
func DownloadFilename(productName string, at time.Time) string {
	name := strings.Join(strings.Fields(productName), "_")
	if name == "" {
		name = "producto"
	}
	return fmt.Sprintf("%s_%d.png", name, at.UnixMilli())
}

func (m *Machine) busyLocked() bool {
	return m.state == Submitting || m.state == PendingPrefetch
}

func (m *Machine) run(ctx context.Context, src source, d Descriptor, regenerate bool) (*Result, error) {
	user := m.wallet.User()
	if user == nil {
		return nil, ErrNotAuthenticated
	}
	if !user.CanAfford() {
		return nil, ErrInsufficientCredits
	}

	m.mu.Lock()
	if m.busyLocked() {
		m.mu.Unlock()
		return nil, ErrBusy
	}
	prior := m.state
	m.state = Submitting
	m.mu.Unlock()

	res, err := m.submit(ctx, src, d)
	if err != nil {
		m.mu.Lock()
		m.state = prior
		m.mu.Unlock()
		m.log.Warn("generation failed", "mode", d.Label(), "regenerate", regenerate, "err", err)
		return nil, err
	}

	m.mu.Lock()
	m.state = Comparing
	m.src = &src
	m.desc = d
	m.result = res
	m.mu.Unlock()

	if !regenerate {
		m.wallet.AdjustCredits(-models.GenerationCost)
	}
	m.log.Info("generation ready", "mode", d.Label(), "product_id", res.ProductID, "regenerate", regenerate)

	if src.isUpload() && m.products != nil {
		if _, err := m.products.GetProducts(ctx); err != nil {
			m.log.Warn("refresh products after upload", "err", err)
		}
	}

	out := *res
	return &out, nil
}

// submit performs the single generation request and then fetches the image
// in full.
func (m *Machine) submit(ctx context.Context, src source, d Descriptor) (*Result, error) {
	token, err := m.wallet.Token(ctx)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, ErrNotAuthenticated
	}

	res := &Result{Descriptor: d}
	if src.isUpload() {
		created, err := m.api.GenerateProductAndImage(ctx, token, src.upload, src.contentType)
		if err != nil {
			return nil, err
		}
		res.ProductID = created.ID
		res.ProductName = created.Name
		res.OriginalURL = created.OriginalImageURL
		res.GeneratedURL = created.GeneratedImageURL
	} else {
		resp, err := d.request(ctx, m.api, token, src.product.ID)
		if err != nil {
			return nil, err
		}
		res.ProductID = src.product.ID
		res.ProductName = src.product.Name
		res.OriginalURL = src.product.SourceImage()
		res.GeneratedURL = resp.ImageURL()
	}
	if res.GeneratedURL == "" {
		return nil, ErrNoImageURL
	}

	m.mu.Lock()
	m.state = PendingPrefetch
	m.mu.Unlock()

	data, ct, err := m.api.FetchImage(ctx, res.GeneratedURL)
	if err != nil {
		return nil, fmt.Errorf("prefetch generated image: %w", err)
	}
	res.Generated = data
	res.ContentType = ct
	return res, nil
}
