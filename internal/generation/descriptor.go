package generation

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/digkill/TiendiaBot/internal/tiendia"
)

// Descriptor records which generation mode produced the displayed image, so a
// regenerate can repeat it. The set of variants is closed.
type Descriptor interface {
	Label() string
	request(ctx context.Context, api API, token string, productID int64) (*tiendia.GeneratedImageResponse, error)
}

type Front struct{}

type Back struct{}

type Baby struct{}

type Kid struct{}

// Personalized carries the model options. Empty fields are left to the server.
type Personalized struct {
	Gender   string `validate:"omitempty,oneof=male female"`
	Age      string `validate:"omitempty,oneof=youth adult senior"`
	SkinTone string `validate:"omitempty,oneof=light medium dark"`
	BodyType string `validate:"omitempty,oneof=slim athletic curvy"`
}

func (Front) Label() string { return "front" }
func (Back) Label() string  { return "back" }
func (Baby) Label() string  { return "baby" }
func (Kid) Label() string   { return "kid" }

func (p Personalized) Label() string {
	var parts []string
	for _, v := range []string{p.Gender, p.Age, p.SkinTone, p.BodyType} {
		if v != "" {
			parts = append(parts, v)
		}
	}
	if len(parts) == 0 {
		return "personalized"
	}
	return "personalized(" + strings.Join(parts, ",") + ")"
}

func (Front) request(ctx context.Context, api API, token string, id int64) (*tiendia.GeneratedImageResponse, error) {
	return api.GenerateAd(ctx, token, id)
}

func (Back) request(ctx context.Context, api API, token string, id int64) (*tiendia.GeneratedImageResponse, error) {
	return api.GenerateBackImage(ctx, token, id)
}

func (Baby) request(ctx context.Context, api API, token string, id int64) (*tiendia.GeneratedImageResponse, error) {
	return api.GenerateBabyImage(ctx, token, id)
}

func (Kid) request(ctx context.Context, api API, token string, id int64) (*tiendia.GeneratedImageResponse, error) {
	return api.GenerateKidImage(ctx, token, id)
}

func (p Personalized) request(ctx context.Context, api API, token string, id int64) (*tiendia.GeneratedImageResponse, error) {
	return api.PersonalizeImage(ctx, token, id, tiendia.Personalization{
		Gender:   p.Gender,
		Age:      p.Age,
		SkinTone: p.SkinTone,
		BodyType: p.BodyType,
	})
}

var validate = validator.New()

// Validate rejects option values the server does not know.
func (p Personalized) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("invalid personalization: %w", err)
	}
	return nil
}

// ParseMode maps a mode keyword to its descriptor. Personalized has its own
// constructor since it carries options.
func ParseMode(mode string) (Descriptor, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "front", "default":
		return Front{}, nil
	case "back":
		return Back{}, nil
	case "baby":
		return Baby{}, nil
	case "kid":
		return Kid{}, nil
	default:
		return nil, fmt.Errorf("unknown generation mode %q", mode)
	}
}

// ParsePersonalized reads key=value options, e.g. "gender=female age=adult".
func ParsePersonalized(args []string) (Personalized, error) {
	var p Personalized
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return Personalized{}, fmt.Errorf("expected key=value, got %q", arg)
		}
		value = strings.ToLower(strings.TrimSpace(value))
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "gender":
			p.Gender = value
		case "age":
			p.Age = value
		case "skin", "skintone":
			p.SkinTone = value
		case "body", "bodytype":
			p.BodyType = value
		default:
			return Personalized{}, fmt.Errorf("unknown option %q", key)
		}
	}
	if err := p.Validate(); err != nil {
		return Personalized{}, err
	}
	return p, nil
}
