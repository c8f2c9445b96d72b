package billing

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/digkill/TiendiaBot/internal/models"
)

const (
	CountryArgentina = "AR"
	CurrencyUSD      = "USD"
	CurrencyARS      = "ARS"
)

var basePacks = []models.Pack{
	{ID: 1, Images: 1, PriceUSD: 0.125, Credits: 50},
	{ID: 2, Images: 10, PriceUSD: 1.25, Credits: 500},
	{ID: 3, Images: 50, PriceUSD: 4.4, Credits: 2500, Discount: 30},
	{ID: 4, Images: 100, PriceUSD: 8.8, Credits: 5000, Discount: 30},
}

// Argentina is billed in pesos through Mercado Pago with its own price list.
var argentinaPacks = []models.Pack{
	{ID: 1, Images: 1, PriceUSD: 0.1, Price: 120, Credits: 50},
	{ID: 2, Images: 10, PriceUSD: 1, Price: 1200, Credits: 500},
	{ID: 3, Images: 50, PriceUSD: 3.5, Price: 4200, Credits: 2500, Discount: 30},
	{ID: 4, Images: 100, PriceUSD: 7, Price: 8400, Credits: 5000, Discount: 30},
}

// usdRates converts one USD into the target currency. Display only.
var usdRates = map[string]float64{
	"BRL": 6.65227,
	"CLP": 1083.9528,
	"COP": 4689.8892,
	"MXN": 21.85355,
	"PEN": 3.96795,
	"UYU": 47.26736,
	"ARS": 1320.473,
	"PYG": 8281.6755,
	"BOB": 11.536,
	"DOP": 61.527,
	"EUR": 1.0294,
	"GTQ": 8.18511,
	"CRC": 536.19994,
	"MYR": 4.64839,
	"IDR": 17419.6107,
	"KES": 137.45974,
	"NGN": 2867.1485,
}

var countryCurrency = map[string]string{
	"AR": "ARS",
	"BR": "BRL",
	"CL": "CLP",
	"CO": "COP",
	"MX": "MXN",
	"PE": "PEN",
	"UY": "UYU",
	"PY": "PYG",
	"BO": "BOB",
	"DO": "DOP",
	"GT": "GTQ",
	"CR": "CRC",
	"MY": "MYR",
	"ID": "IDR",
	"KE": "KES",
	"NG": "NGN",
	"US": "USD",
}

type currencyInfo struct {
	symbol string
	locale language.Tag
}

var currencies = map[string]currencyInfo{
	"ARS": {"$", language.MustParse("es-AR")},
	"BRL": {"R$", language.MustParse("pt-BR")},
	"CLP": {"$", language.MustParse("es-CL")},
	"COP": {"$", language.MustParse("es-CO")},
	"MXN": {"$", language.MustParse("es-MX")},
	"PEN": {"S/", language.MustParse("es-PE")},
	"UYU": {"$", language.MustParse("es-UY")},
	"PYG": {"₲", language.MustParse("es-PY")},
	"BOB": {"Bs", language.MustParse("es-BO")},
	"DOP": {"RD$", language.MustParse("es-DO")},
	"GTQ": {"Q", language.MustParse("es-GT")},
	"CRC": {"₡", language.MustParse("es-CR")},
	"MYR": {"RM", language.MustParse("ms-MY")},
	"IDR": {"Rp", language.MustParse("id-ID")},
	"KES": {"KSh", language.MustParse("en-KE")},
	"NGN": {"₦", language.MustParse("en-NG")},
	"USD": {"$", language.AmericanEnglish},
	"EUR": {"€", language.MustParse("de-DE")},
}

// limitedPackCountries only get the two larger packs.
var limitedPackCountries = map[string]bool{
	"CO": true,
	"EC": true,
	"GT": true,
	"MX": true,
	"PA": true,
	"PE": true,
	"PY": true,
	"UY": true,
}

// Offer is a pack as shown to a buyer in one country.
type Offer struct {
	models.Pack
	Currency string
	Disabled bool
}

func (o Offer) FormattedPrice() string {
	return FormatPrice(o.Price, o.Currency)
}

// CurrencyFor maps a country code to its billing currency, USD when unknown.
func CurrencyFor(country string) string {
	if c, ok := countryCurrency[strings.ToUpper(country)]; ok {
		return c
	}
	return CurrencyUSD
}

// IsPackDisabled reports whether the pack cannot be bought from country.
func IsPackDisabled(country string, packID int) bool {
	return limitedPackCountries[strings.ToUpper(country)] && packID != 3 && packID != 4
}

// Offers lists the packs for country with prices converted to its currency.
// A currency without a known rate is shown in USD.
func Offers(country string) []Offer {
	country = strings.ToUpper(country)
	packs := basePacks
	if country == CountryArgentina {
		packs = argentinaPacks
	}

	currency := CurrencyFor(country)
	rate, ok := usdRates[currency]
	switch {
	case currency == CurrencyUSD:
		rate = 1
	case !ok:
		currency, rate = CurrencyUSD, 1
	}

	offers := make([]Offer, 0, len(packs))
	for _, p := range packs {
		if p.Price == 0 {
			p.Price = math.Round(p.PriceUSD*rate*100) / 100
		}
		offers = append(offers, Offer{
			Pack:     p,
			Currency: currency,
			Disabled: IsPackDisabled(country, p.ID),
		})
	}
	return offers
}

// FindOffer returns the offer for packID in country.
func FindOffer(country string, packID int) (Offer, bool) {
	for _, o := range Offers(country) {
		if o.ID == packID {
			return o, true
		}
	}
	return Offer{}, false
}

// FormatPrice renders price with the currency symbol and local separators.
// Pesos are shown without forced decimals.
func FormatPrice(price float64, currency string) string {
	info, ok := currencies[currency]
	if !ok {
		return fmt.Sprintf("%s %.2f", currency, price)
	}
	p := message.NewPrinter(info.locale)
	if currency == CurrencyARS {
		return info.symbol + p.Sprint(number.Decimal(price))
	}
	return info.symbol + p.Sprint(number.Decimal(price, number.Scale(2)))
}

// ProviderName is the checkout provider shown for country.
func ProviderName(country string) string {
	if strings.ToUpper(country) == CountryArgentina {
		return "Mercado Pago"
	}
	return "dLocal"
}
