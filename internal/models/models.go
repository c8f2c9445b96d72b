package models

import "time"

// GenerationCost is the number of credits one generation spends.
const GenerationCost = 50

type User struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name,omitempty"`
	Username  string `json:"username,omitempty"`
	Phone     string `json:"phone,omitempty"`
	ImageURL  string `json:"imageUrl,omitempty"`
	GoogleID  string `json:"googleId,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
	Credits   int    `json:"credits"`
}

// CanAfford reports whether the balance covers one generation.
func (u *User) CanAfford() bool {
	return u != nil && u.Credits >= GenerationCost
}

type Product struct {
	ID             int64   `json:"id"`
	Name           string  `json:"name"`
	ImageURL       *string `json:"imageURL"`
	Price          *int    `json:"price,omitempty"`
	Sizes          string  `json:"sizes,omitempty"`
	StoreImageURLs string  `json:"storeImageURLs,omitempty"`
	CreatedByID    int64   `json:"createdById,omitempty"`
}

// SourceImage returns the product's source image URL or "" when it has none.
func (p Product) SourceImage() string {
	if p.ImageURL == nil {
		return ""
	}
	return *p.ImageURL
}

// GeneratedImage is one entry of the gallery. CreatedAt is kept as the server
// sent it; its format is not fixed.
type GeneratedImage struct {
	ID          int64  `json:"imageId"`
	URL         string `json:"imageUrl"`
	ProductID   int64  `json:"productId"`
	ProductName string `json:"productName"`
	CreatedAt   string `json:"createdAt,omitempty"`
}

// PushData is the data section of a push notification sent by the backend.
type PushData struct {
	Action     string     `json:"action"`
	NewBalance *int       `json:"newBalance,omitempty"`
	IssuedAt   *time.Time `json:"issuedAt,omitempty"`
}

const PushActionCreditsUpdated = "credits_updated"

// Pack is a purchasable bundle of credits.
type Pack struct {
	ID       int     `json:"id"`
	Images   int     `json:"images"`
	PriceUSD float64 `json:"priceUSD"`
	Price    float64 `json:"price"`
	Credits  int     `json:"credits"`
	Discount int     `json:"discount,omitempty"`
}
