package catalog

import "github.com/easonhq/eason/internal/users"

// PriceView is the subset of a product's pricing fields visible to a
// given caller role. Absent fields marshal as omitted, never zero.
type PriceView struct {
	RoleShownAs string `json:"roleShownAs"`

	// guest
	FinalPriceCents *int64 `json:"finalPrice,omitempty"`

	// wholesaler
	SellingPriceCents *int64 `json:"sellingPrice,omitempty"`
	BaseCostCents     *int64 `json:"baseCost,omitempty"`

	// retailer
	PurchasePriceCents         *int64 `json:"purchasePrice,omitempty"`
	SuggestedSellingPriceCents *int64 `json:"suggestedSellingPrice,omitempty"`
	CurrentSellingPriceCents   *int64 `json:"currentSellingPrice,omitempty"`

	// admin
	WholesalerPriceCents  *int64 `json:"wholesalerPrice,omitempty"`
	SuggestedRetailCents  *int64 `json:"suggestedRetailPrice,omitempty"`
	RetailerOverrideCents *int64 `json:"retailerPriceOverride,omitempty"`
	ConsumerPriceCents    *int64 `json:"consumerPrice,omitempty"`
}

func ptr(v int64) *int64 { return &v }

// ResolvePrice maps (product, viewer role) to the price view that role
// is entitled to see. Pure; never fails.
func ResolvePrice(p Product, role users.Role) PriceView {
	switch role {
	case users.RoleWholesaler:
		return PriceView{
			RoleShownAs:       "wholesaler",
			SellingPriceCents: ptr(p.WholesalerPriceCents),
			BaseCostCents:     ptr(p.BaseCostCents),
		}
	case users.RoleRetailer:
		return PriceView{
			RoleShownAs:                "retailer",
			PurchasePriceCents:         ptr(p.WholesalerPriceCents),
			SuggestedSellingPriceCents: ptr(p.SuggestedRetailCents()),
			CurrentSellingPriceCents:   p.RetailerOverrideCents,
		}
	case users.RoleAdmin:
		return PriceView{
			RoleShownAs:           "admin",
			BaseCostCents:         ptr(p.BaseCostCents),
			WholesalerPriceCents:  ptr(p.WholesalerPriceCents),
			SuggestedRetailCents:  ptr(p.SuggestedRetailCents()),
			RetailerOverrideCents: p.RetailerOverrideCents,
			ConsumerPriceCents:    ptr(p.ConsumerCents()),
		}
	case users.RoleGuest:
		fallthrough
	default:
		// guests and anything unrecognized get the consumer view
		return PriceView{
			RoleShownAs:     "consumer",
			FinalPriceCents: ptr(p.ConsumerCents()),
		}
	}
}
