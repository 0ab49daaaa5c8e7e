package reconcile

import (
	"testing"
	"time"

	"invoicehub/internal/domain/subscriptions"
	"invoicehub/internal/domain/tiers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscriptionCreatedLinksRefsAndStartsTrial(t *testing.T) {
	store, rec := newTestReconciler(t)
	local := seed(t, store, seedOpts{userID: 7, tier: tiers.TierPromotional})

	trialEnd := ts(20)
	err := rec.Process(SubscriptionCreated{State: SubscriptionState{
		SubscriptionID:     "sub_1",
		CustomerID:         "cus_1",
		UserID:             7,
		Status:             "trialing",
		CurrentPeriodStart: ts(1),
		CurrentPeriodEnd:   ts(31),
		TrialEnd:           trialEnd,
	}})
	require.NoError(t, err)

	got := mustGet(t, store, local.ID)
	require.NotNil(t, got.StripeSubscriptionID)
	assert.Equal(t, "sub_1", *got.StripeSubscriptionID)
	require.NotNil(t, got.StripeCustomerID)
	assert.Equal(t, "cus_1", *got.StripeCustomerID)
	assert.Equal(t, subscriptions.StatusTrialing, got.Status)
	require.NotNil(t, got.TrialEnd)
	assert.Equal(t, trialEnd.Unix(), got.TrialEnd.Unix())
	require.NotNil(t, got.CurrentPeriodStart)
	assert.Equal(t, ts(1).Unix(), got.CurrentPeriodStart.Unix())
}

func TestSubscriptionCreatedStampsPolicyTrialWhenEventHasNone(t *testing.T) {
	store, rec := newTestReconciler(t)
	local := seed(t, store, seedOpts{userID: 7, tier: tiers.TierStandard})

	before := time.Now()
	err := rec.Process(SubscriptionCreated{State: SubscriptionState{
		SubscriptionID: "sub_1",
		UserID:         7,
		Status:         "active",
	}})
	require.NoError(t, err)

	got := mustGet(t, store, local.ID)
	assert.Equal(t, subscriptions.StatusTrialing, got.Status)
	require.NotNil(t, got.TrialEnd)

	// standard tier trial is 30 days in the test policy
	wantMin := before.AddDate(0, 0, 30).Add(-time.Minute)
	wantMax := time.Now().AddDate(0, 0, 30).Add(time.Minute)
	assert.True(t, got.TrialEnd.After(wantMin) && got.TrialEnd.Before(wantMax),
		"trial end %s not within expected window", got.TrialEnd)
}

func TestSubscriptionCreatedForUnknownUserIsANoop(t *testing.T) {
	_, rec := newTestReconciler(t)

	err := rec.Process(SubscriptionCreated{State: SubscriptionState{
		SubscriptionID: "sub_1",
		UserID:         999,
		Status:         "trialing",
	}})
	assert.NoError(t, err)
}

func TestProcessingIsIdempotent(t *testing.T) {
	store, rec := newTestReconciler(t)
	local := seed(t, store, seedOpts{userID: 7})

	event := SubscriptionCreated{State: SubscriptionState{
		SubscriptionID:     "sub_1",
		CustomerID:         "cus_1",
		UserID:             7,
		Status:             "trialing",
		CurrentPeriodStart: ts(1),
		CurrentPeriodEnd:   ts(31),
		TrialEnd:           ts(20),
	}}

	require.NoError(t, rec.Process(event))
	first := mustGet(t, store, local.ID)

	require.NoError(t, rec.Process(event))
	second := mustGet(t, store, local.ID)

	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.StripeSubscriptionID, second.StripeSubscriptionID)
	assert.Equal(t, first.StripeCustomerID, second.StripeCustomerID)
	assert.Equal(t, first.CancelAtPeriodEnd, second.CancelAtPeriodEnd)
	assert.Equal(t, first.CurrentPeriodStart.Unix(), second.CurrentPeriodStart.Unix())
	assert.Equal(t, first.CurrentPeriodEnd.Unix(), second.CurrentPeriodEnd.Unix())
	assert.Equal(t, first.TrialEnd.Unix(), second.TrialEnd.Unix())
}

func TestRenewalResetsCancelFlagAndRefreshesPeriods(t *testing.T) {
	store, rec := newTestReconciler(t)
	oldStart := ts(1)
	oldEnd := ts(31)
	local := seed(t, store, seedOpts{
		userID:      7,
		status:      subscriptions.StatusActive,
		ref:         "sub_1",
		periodStart: &oldStart,
		periodEnd:   &oldEnd,
	})

	// stale scheduled cancellation survives locally until the renewal arrives
	flag := true
	require.NoError(t, store.ApplyState(local.ID, subscriptions.StateUpdate{CancelAtPeriodEnd: &flag}))

	newStart := ts(31)
	newEnd := newStart.AddDate(0, 1, 0)
	err := rec.Process(SubscriptionUpdated{State: SubscriptionState{
		SubscriptionID:     "sub_1",
		Status:             "active",
		CancelAtPeriodEnd:  true,
		CurrentPeriodStart: newStart,
		CurrentPeriodEnd:   newEnd,
	}})
	require.NoError(t, err)

	got := mustGet(t, store, local.ID)
	assert.Equal(t, subscriptions.StatusActive, got.Status)
	assert.False(t, got.CancelAtPeriodEnd)
	assert.Equal(t, newStart.Unix(), got.CurrentPeriodStart.Unix())
	assert.Equal(t, newEnd.Unix(), got.CurrentPeriodEnd.Unix())
}

func TestScheduledCancellationStaysActiveWithFlag(t *testing.T) {
	store, rec := newTestReconciler(t)
	start := ts(1)
	local := seed(t, store, seedOpts{
		userID:      7,
		status:      subscriptions.StatusActive,
		ref:         "sub_1",
		periodStart: &start,
	})

	end := ts(31)
	err := rec.Process(SubscriptionUpdated{State: SubscriptionState{
		SubscriptionID:     "sub_1",
		Status:             "active",
		CancelAtPeriodEnd:  true,
		CurrentPeriodStart: start,
		CurrentPeriodEnd:   end,
	}})
	require.NoError(t, err)

	got := mustGet(t, store, local.ID)
	assert.Equal(t, subscriptions.StatusActive, got.Status, "scheduled cancellation is not yet effective")
	assert.True(t, got.CancelAtPeriodEnd)
	assert.Equal(t, end.Unix(), got.CurrentPeriodEnd.Unix())
}

func TestSubscriptionDeletedCancels(t *testing.T) {
	store, rec := newTestReconciler(t)
	local := seed(t, store, seedOpts{userID: 7, status: subscriptions.StatusActive, ref: "sub_1"})

	end := ts(31)
	err := rec.Process(SubscriptionDeleted{State: SubscriptionState{
		SubscriptionID:   "sub_1",
		Status:           "canceled",
		CurrentPeriodEnd: end,
	}})
	require.NoError(t, err)

	got := mustGet(t, store, local.ID)
	assert.Equal(t, subscriptions.StatusCanceled, got.Status)
	assert.Equal(t, end.Unix(), got.CurrentPeriodEnd.Unix())
}

func TestPaymentFailedThenSucceeded(t *testing.T) {
	store, rec := newTestReconciler(t)
	local := seed(t, store, seedOpts{userID: 7, status: subscriptions.StatusActive, ref: "sub_1"})

	err := rec.Process(PaymentFailed{InvoiceID: "in_1", SubscriptionID: "sub_1"})
	require.NoError(t, err)
	assert.Equal(t, subscriptions.StatusPastDue, mustGet(t, store, local.ID).Status)

	start := ts(1)
	end := ts(31)
	err = rec.Process(PaymentSucceeded{
		InvoiceID:      "in_2",
		SubscriptionID: "sub_1",
		PeriodStart:    start,
		PeriodEnd:      end,
	})
	require.NoError(t, err)

	got := mustGet(t, store, local.ID)
	assert.Equal(t, subscriptions.StatusActive, got.Status)
	assert.Equal(t, start.Unix(), got.CurrentPeriodStart.Unix())
	assert.Equal(t, end.Unix(), got.CurrentPeriodEnd.Unix())
}

func TestPaymentEventsWithoutSubscriptionRefAreNoops(t *testing.T) {
	_, rec := newTestReconciler(t)

	assert.NoError(t, rec.Process(PaymentSucceeded{InvoiceID: "in_1"}))
	assert.NoError(t, rec.Process(PaymentFailed{InvoiceID: "in_1"}))
}

func TestUnknownSubscriptionRefIsANoopNotAnError(t *testing.T) {
	_, rec := newTestReconciler(t)

	assert.NoError(t, rec.Process(SubscriptionUpdated{State: SubscriptionState{
		SubscriptionID: "sub_missing",
		Status:         "active",
	}}))
	assert.NoError(t, rec.Process(PaymentFailed{InvoiceID: "in_1", SubscriptionID: "sub_missing"}))
}

func TestCustomerBackfillNeverOverwrites(t *testing.T) {
	store, rec := newTestReconciler(t)
	local := seed(t, store, seedOpts{userID: 7})

	require.NoError(t, rec.Process(CustomerUpserted{CustomerID: "cus_1", UserID: 7}))
	got := mustGet(t, store, local.ID)
	require.NotNil(t, got.StripeCustomerID)
	assert.Equal(t, "cus_1", *got.StripeCustomerID)

	// a second customer event must not replace the stored ref
	require.NoError(t, rec.Process(CustomerUpserted{CustomerID: "cus_other", UserID: 7}))
	got = mustGet(t, store, local.ID)
	assert.Equal(t, "cus_1", *got.StripeCustomerID)
}

func TestUnmappedProcessorStatusFailsOpenToActive(t *testing.T) {
	store, rec := newTestReconciler(t)
	local := seed(t, store, seedOpts{userID: 7, status: subscriptions.StatusTrialing, ref: "sub_1"})

	err := rec.Process(SubscriptionUpdated{State: SubscriptionState{
		SubscriptionID: "sub_1",
		Status:         "paused",
	}})
	require.NoError(t, err)

	assert.Equal(t, subscriptions.StatusActive, mustGet(t, store, local.ID).Status)
}

func TestInformationalEventsDoNotTouchState(t *testing.T) {
	store, rec := newTestReconciler(t)
	local := seed(t, store, seedOpts{userID: 7, status: subscriptions.StatusTrialing, ref: "sub_1"})

	require.NoError(t, rec.Process(Informational{Type: "customer.subscription.trial_will_end"}))
	require.NoError(t, rec.Process(CheckoutCompleted{SessionID: "cs_1", Mode: "subscription", SubscriptionID: "sub_1"}))

	got := mustGet(t, store, local.ID)
	assert.Equal(t, subscriptions.StatusTrialing, got.Status)
	assert.Nil(t, got.CurrentPeriodStart)
}

func TestOutOfOrderDeliveryConverges(t *testing.T) {
	store, rec := newTestReconciler(t)
	local := seed(t, store, seedOpts{userID: 7})

	// the payment_failed generated after subscription.created arrives first;
	// it cannot resolve the ref yet and is dropped
	require.NoError(t, rec.Process(PaymentFailed{InvoiceID: "in_1", SubscriptionID: "sub_1"}))

	require.NoError(t, rec.Process(SubscriptionCreated{State: SubscriptionState{
		SubscriptionID: "sub_1",
		UserID:         7,
		Status:         "trialing",
		TrialEnd:       ts(20),
	}}))

	// redelivery of the failed payment now lands
	require.NoError(t, rec.Process(PaymentFailed{InvoiceID: "in_1", SubscriptionID: "sub_1"}))

	assert.Equal(t, subscriptions.StatusPastDue, mustGet(t, store, local.ID).Status)
}
