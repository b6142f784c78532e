package entities

import "github.com/shopspring/decimal"

// Offering is the catalog's answer for a service at a location.
type Offering struct {
	ServiceRef              string          `json:"serviceRef"`
	Location                string          `json:"location"`
	Offered                 bool            `json:"offered"`
	Category                string          `json:"category"`
	Price                   decimal.Decimal `json:"price"`
	Currency                string          `json:"currency"`
	DurationMinutes         int             `json:"durationMinutes"`
	HomeCollectionAvailable bool            `json:"homeCollectionAvailable"`
	HomeCollectionSurcharge decimal.Decimal `json:"homeCollectionSurcharge"`
}
