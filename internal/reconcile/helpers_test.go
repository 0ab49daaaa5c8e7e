package reconcile

import (
	"testing"
	"time"

	"invoicehub/internal/domain/subscriptions"
	"invoicehub/internal/domain/tiers"
	"invoicehub/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func testPolicy() tiers.Policy {
	return tiers.Policy{
		FreeMax:            1,
		PromotionalMax:     3,
		PromoPriceCents:    900,
		StandardPriceCents: 1900,
		PromoTrialDays:     90,
		StandardTrialDays:  30,
	}
}

func newTestReconciler(t *testing.T) (*subscriptions.GormStore, *Reconciler) {
	t.Helper()
	store := subscriptions.NewStore(testutil.OpenDB(t))
	return store, NewReconciler(store, testPolicy())
}

type seedOpts struct {
	userID      uint
	tier        string
	status      string
	ref         string
	customerRef string
	periodStart *time.Time
	periodEnd   *time.Time
}

func seed(t *testing.T, store subscriptions.Store, opts seedOpts) *subscriptions.Subscription {
	t.Helper()
	if opts.tier == "" {
		opts.tier = tiers.TierPromotional
	}
	if opts.status == "" {
		opts.status = subscriptions.StatusIncomplete
	}

	sub := &subscriptions.Subscription{
		ID:                 uuid.NewString(),
		UserID:             opts.userID,
		RegistrationOrder:  int64(opts.userID),
		Tier:               opts.tier,
		Status:             opts.status,
		CurrentPeriodStart: opts.periodStart,
		CurrentPeriodEnd:   opts.periodEnd,
	}
	if opts.ref != "" {
		sub.StripeSubscriptionID = &opts.ref
	}
	if opts.customerRef != "" {
		sub.StripeCustomerID = &opts.customerRef
	}
	require.NoError(t, store.Create(sub))
	return sub
}

func mustGet(t *testing.T, store subscriptions.Store, id string) *subscriptions.Subscription {
	t.Helper()
	sub, err := store.Get(id)
	require.NoError(t, err)
	return sub
}

func ts(day int) time.Time {
	return time.Date(2026, 8, day, 12, 0, 0, 0, time.UTC)
}
