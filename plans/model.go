package plans

// Plan is a purchasable entitlement: a single-activity credit pack or a
// monthly/yearly subscription.
type Plan struct {
	ID              int     `json:"id"`
	Code            string  `json:"code"` // single | monthly | yearly
	Name            string  `json:"name"`
	Currency        string  `json:"currency"`
	Price           float64 `json:"price"`
	Credits         int     `json:"credits"`       // single-use credits granted (credit packs)
	DurationDays    int     `json:"duration_days"` // subscription length, 0 for credit packs
	StripeProductID string  `json:"stripe_product_id,omitempty"`
	StripePriceID   string  `json:"stripe_price_id,omitempty"`
}

// Recurring reports whether this plan is a time-boxed subscription rather
// than a credit pack.
func (p *Plan) Recurring() bool { return p.DurationDays > 0 }
