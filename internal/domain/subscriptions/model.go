package subscriptions

import (
	"time"

	"invoicehub/internal/domain/tiers"
)

// Subscription statuses mirror the payment processor's lifecycle:
// incomplete → trialing → active ⇄ past_due → canceled, with unpaid reachable
// from active/past_due. canceled is terminal. Free-tier subscriptions stay
// active forever and never see processor events.
const (
	StatusIncomplete = "incomplete"
	StatusTrialing   = "trialing"
	StatusActive     = "active"
	StatusPastDue    = "past_due"
	StatusUnpaid     = "unpaid"
	StatusCanceled   = "canceled"
)

// Subscription is the locally persisted billing record, one per user. Stripe
// is the source of truth; status and period fields are mutated only by the
// webhook reconciler (or an explicit admin repair).
type Subscription struct {
	ID     string `gorm:"primaryKey;type:uuid"`
	UserID uint   `gorm:"not null;uniqueIndex:idx_subscriptions_user_id"`

	// Assigned once at signup, strictly increasing across all subscriptions.
	RegistrationOrder int64  `gorm:"not null;uniqueIndex:idx_subscriptions_registration_order"`
	Tier              string `gorm:"type:varchar(20);not null"`
	Status            string `gorm:"type:varchar(20);not null;default:'incomplete'"`

	StripeCustomerID     *string `gorm:"column:stripe_customer_id;uniqueIndex:idx_subscriptions_stripe_customer_id"`
	StripeSubscriptionID *string `gorm:"column:stripe_subscription_id;uniqueIndex:idx_subscriptions_stripe_subscription_id"`

	CurrentPeriodStart *time.Time `gorm:"column:current_period_start"`
	CurrentPeriodEnd   *time.Time `gorm:"column:current_period_end"`
	CancelAtPeriodEnd  bool       `gorm:"not null;default:false"`
	TrialEnd           *time.Time `gorm:"column:trial_end"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// RegistrationCounter is the singleton row backing the registration sequence.
// It is created lazily on first use; a race to create it converges on one row.
type RegistrationCounter struct {
	ID           uint  `gorm:"primaryKey"`
	CurrentCount int64 `gorm:"not null;default:0"`
	UpdatedAt    time.Time
}

// AccessBlocked reports whether the access-gating layer should lock the
// account out of the product. Free-tier accounts are never blocked.
func AccessBlocked(tier string, status string) bool {
	if tier == tiers.TierFree {
		return false
	}
	switch status {
	case StatusPastDue, StatusUnpaid, StatusCanceled:
		return true
	}
	return false
}
