package reconcile

import (
	"errors"
	"testing"

	"invoicehub/internal/domain/subscriptions"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProcessor serves canned authoritative state, standing in for the
// Stripe API.
type fakeProcessor struct {
	states map[string]SubscriptionState
	err    error
}

func (f *fakeProcessor) FetchSubscription(ref string) (*SubscriptionState, error) {
	if f.err != nil {
		return nil, f.err
	}
	state, ok := f.states[ref]
	if !ok {
		return nil, errors.New("no such subscription")
	}
	return &state, nil
}

func newTestAuditor(t *testing.T) (*subscriptions.GormStore, *fakeProcessor, *Auditor) {
	t.Helper()
	store, rec := newTestReconciler(t)
	processor := &fakeProcessor{states: map[string]SubscriptionState{}}
	return store, processor, NewAuditor(store, processor, rec)
}

func TestAuditConsistencyMatches(t *testing.T) {
	store, processor, auditor := newTestAuditor(t)
	start, end := ts(1), ts(31)
	seed(t, store, seedOpts{
		userID:      7,
		status:      subscriptions.StatusActive,
		ref:         "sub_1",
		periodStart: &start,
		periodEnd:   &end,
	})

	processor.states["sub_1"] = SubscriptionState{
		SubscriptionID:     "sub_1",
		Status:             "active",
		CurrentPeriodStart: start,
		CurrentPeriodEnd:   end,
	}

	consistent, err := auditor.AuditConsistency("sub_1")
	require.NoError(t, err)
	assert.True(t, consistent)
}

func TestAuditConsistencyDetectsDrift(t *testing.T) {
	store, processor, auditor := newTestAuditor(t)
	start, end := ts(1), ts(31)
	seed(t, store, seedOpts{
		userID:      7,
		status:      subscriptions.StatusActive,
		ref:         "sub_1",
		periodStart: &start,
		periodEnd:   &end,
	})

	// the processor moved on: renewal happened but the event never landed
	processor.states["sub_1"] = SubscriptionState{
		SubscriptionID:     "sub_1",
		Status:             "past_due",
		CancelAtPeriodEnd:  true,
		CurrentPeriodStart: ts(31),
		CurrentPeriodEnd:   ts(31).AddDate(0, 1, 0),
	}

	consistent, err := auditor.AuditConsistency("sub_1")
	require.NoError(t, err)
	assert.False(t, consistent)
}

func TestRepairThenAuditIsAlwaysConsistent(t *testing.T) {
	store, processor, auditor := newTestAuditor(t)
	seed(t, store, seedOpts{userID: 7, status: subscriptions.StatusIncomplete, ref: "sub_1"})

	processor.states["sub_1"] = SubscriptionState{
		SubscriptionID:     "sub_1",
		Status:             "active",
		CancelAtPeriodEnd:  true,
		CurrentPeriodStart: ts(1),
		CurrentPeriodEnd:   ts(31),
	}

	consistent, err := auditor.AuditConsistency("sub_1")
	require.NoError(t, err)
	require.False(t, consistent, "drifted before repair")

	require.NoError(t, auditor.Repair("sub_1"))

	consistent, err = auditor.AuditConsistency("sub_1")
	require.NoError(t, err)
	assert.True(t, consistent, "repair must leave local state matching the processor")
}

func TestRepairClearsPeriodsTheProcessorNoLongerReports(t *testing.T) {
	store, processor, auditor := newTestAuditor(t)
	start, end := ts(1), ts(31)
	seed(t, store, seedOpts{
		userID:      7,
		status:      subscriptions.StatusActive,
		ref:         "sub_1",
		periodStart: &start,
		periodEnd:   &end,
	})

	// the processor has no period bounds at all for this subscription
	processor.states["sub_1"] = SubscriptionState{
		SubscriptionID: "sub_1",
		Status:         "incomplete",
	}

	require.NoError(t, auditor.Repair("sub_1"))

	local, err := store.ByStripeSubscriptionID("sub_1")
	require.NoError(t, err)
	assert.Equal(t, subscriptions.StatusIncomplete, local.Status)
	assert.Nil(t, local.CurrentPeriodStart)
	assert.Nil(t, local.CurrentPeriodEnd)

	consistent, err := auditor.AuditConsistency("sub_1")
	require.NoError(t, err)
	assert.True(t, consistent, "audit must pass immediately after repair")
}

func TestAuditUnknownLocalSubscriptionErrors(t *testing.T) {
	_, processor, auditor := newTestAuditor(t)
	processor.states["sub_1"] = SubscriptionState{SubscriptionID: "sub_1", Status: "active"}

	_, err := auditor.AuditConsistency("sub_1")
	assert.Error(t, err)
}

func TestRepairSurfacesProcessorFailure(t *testing.T) {
	store, processor, auditor := newTestAuditor(t)
	seed(t, store, seedOpts{userID: 7, ref: "sub_1"})
	processor.err = errors.New("stripe is down")

	assert.Error(t, auditor.Repair("sub_1"))
}
