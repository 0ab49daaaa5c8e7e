package tiers

// Tier constants (single source of truth)
const (
	TierFree        = "free"
	TierPromotional = "promotional"
	TierStandard    = "standard"
)

// Assignment is what a registration position entitles an account to.
type Assignment struct {
	Tier              string
	MonthlyPriceCents int64
	TrialDays         int
}

// Policy maps a registration order to a tier. Thresholds and prices are
// injected so the mapping stays a pure function of its inputs.
//
// Orders 1..FreeMax are free, the next PromotionalMax get the promotional
// price with the long trial, everyone after pays the standard price.
type Policy struct {
	FreeMax            int64
	PromotionalMax     int64
	PromoPriceCents    int64
	StandardPriceCents int64
	PromoTrialDays     int
	StandardTrialDays  int
}

// Assign returns the tier, monthly price and trial length for a registration
// order. The tier is fixed at signup and never recomputed from a later order.
func (p Policy) Assign(order int64) Assignment {
	switch {
	case order <= p.FreeMax:
		// free tier has no billing and therefore no trial
		return Assignment{Tier: TierFree, MonthlyPriceCents: 0, TrialDays: 0}
	case order <= p.FreeMax+p.PromotionalMax:
		return Assignment{Tier: TierPromotional, MonthlyPriceCents: p.PromoPriceCents, TrialDays: p.PromoTrialDays}
	default:
		return Assignment{Tier: TierStandard, MonthlyPriceCents: p.StandardPriceCents, TrialDays: p.StandardTrialDays}
	}
}

// TrialDaysFor returns the trial length for an already-assigned tier.
func (p Policy) TrialDaysFor(tier string) int {
	switch tier {
	case TierPromotional:
		return p.PromoTrialDays
	case TierStandard:
		return p.StandardTrialDays
	default:
		return 0
	}
}
