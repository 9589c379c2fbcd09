package entitlement

import (
	"errors"
	"time"

	"traveo-backend/migrations"
)

// Tier is the basis authorizing one activity creation.
type Tier string

const (
	TierPremium Tier = "PREMIUM"
	TierSingle  Tier = "SINGLE"
	TierFree    Tier = "FREE"
)

// ErrForbidden means the user has no usable entitlement left.
var ErrForbidden = errors.New("must purchase a plan to create an activity")

// Evaluate decides which entitlement covers an activity creation for the user
// at the given instant. Rules are checked in order, first match wins:
//  1. PREMIUM: active monthly/yearly plan with an end date strictly in the future
//  2. SINGLE: single plan with credits remaining
//  3. FREE: free trial not yet used
//
// Pure function of the user snapshot and now; it never mutates anything.
// The matching counter is consumed later, inside the create transaction.
func Evaluate(u *migrations.User, now time.Time) (Tier, error) {
	if u == nil {
		return "", ErrForbidden
	}
	if (u.PlanType == migrations.PlanMonthly || u.PlanType == migrations.PlanYearly) &&
		u.PlanEnd != nil && now.Before(*u.PlanEnd) {
		return TierPremium, nil
	}
	if u.PlanType == migrations.PlanSingle && u.SingleCredits > 0 {
		return TierSingle, nil
	}
	if !u.FreeTrialUsed {
		return TierFree, nil
	}
	return "", ErrForbidden
}
