package app

import (
	"maps"
	"slices"
)

// Metadata keys written to Stripe objects.
const (
	MetaProductType = "productType"
	MetaUserID      = "userId"
	MetaType        = "type"

	typeSubscription = "subscription"
)

var catalog = map[string]Product{
	"remove_ads": {
		ID:          "remove_ads",
		Name:        "Remove Ads",
		Description: "Permanently remove all advertisements",
		UnitAmount:  299,
		Quantity:    1,
		Metadata:    map[string]string{MetaProductType: "remove_ads", "feature": "ad_free"},
	},
	"premium_unlock": {
		ID:          "premium_unlock",
		Name:        "Premium Unlock",
		Description: "Unlock every premium feature forever",
		UnitAmount:  499,
		Quantity:    1,
		Metadata:    map[string]string{MetaProductType: "premium_unlock", "feature": "premium"},
	},
	"coins_small": {
		ID:          "coins_small",
		Name:        "100 Coins",
		Description: "A small pouch of 100 coins",
		UnitAmount:  99,
		Quantity:    1,
		Metadata:    map[string]string{MetaProductType: "coins_small", "coins": "100"},
	},
	"coins_large": {
		ID:          "coins_large",
		Name:        "1000 Coins",
		Description: "A chest of 1000 coins",
		UnitAmount:  799,
		Quantity:    1,
		Metadata:    map[string]string{MetaProductType: "coins_large", "coins": "1000"},
	},
}

// ProMonthly is the only subscription plan.
var ProMonthly = Plan{
	ID:         "pro_monthly",
	Name:       "Pro Membership",
	UnitAmount: 999,
	Interval:   "month",
}

// LookupProduct returns the catalog entry for id. The returned metadata is a
// copy; the catalog itself never changes.
func LookupProduct(id string) (Product, error) {
	p, ok := catalog[id]
	if !ok {
		return Product{}, newError(ErrUnknownProduct, "Invalid product type", nil)
	}
	p.Metadata = maps.Clone(p.Metadata)
	return p, nil
}

// Catalog returns every product ordered by id.
func Catalog() []Product {
	out := make([]Product, 0, len(catalog))
	for _, id := range slices.Sorted(maps.Keys(catalog)) {
		p, _ := LookupProduct(id)
		out = append(out, p)
	}
	return out
}
