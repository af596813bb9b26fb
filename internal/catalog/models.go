package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// retailMargin is the default consumer markup over the wholesaler
// price when a retailer has not set their own price.
var retailMargin = decimal.RequireFromString("1.38")

type Product struct {
	ID                    uuid.UUID
	Name                  string
	CategoryID            uuid.UUID
	CategoryName          string
	UnitID                uuid.UUID
	UnitName              string
	BaseCostCents         int64
	WholesalerPriceCents  int64
	RetailerOverrideCents *int64
	Stock                 int
	Description           string
	Image                 *string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// SuggestedRetailCents is round(wholesalerPrice * 1.38).
func (p Product) SuggestedRetailCents() int64 {
	return decimal.NewFromInt(p.WholesalerPriceCents).Mul(retailMargin).Round(0).IntPart()
}

// ConsumerCents is the retailer override when set, the suggested retail
// price otherwise.
func (p Product) ConsumerCents() int64 {
	if p.RetailerOverrideCents != nil {
		return *p.RetailerOverrideCents
	}
	return p.SuggestedRetailCents()
}

type Category struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Unit struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
