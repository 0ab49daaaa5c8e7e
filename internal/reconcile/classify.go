package reconcile

import (
	"invoicehub/internal/domain/subscriptions"
)

// Outcome of disambiguating a subscription.updated event against the prior
// persisted record.
type Outcome int

const (
	// GenericSync: re-map status and period bounds from the event, nothing more.
	GenericSync Outcome = iota
	// Renewal: billing cycle rolled over on a still-active subscription.
	Renewal
	// Cancellation: the subscription was canceled, or a cancellation was
	// scheduled for period end.
	Cancellation
)

func (o Outcome) String() string {
	switch o {
	case Renewal:
		return "renewal"
	case Cancellation:
		return "cancellation"
	default:
		return "generic_sync"
	}
}

// Classify decides how a subscription.updated event should be applied.
//
// A renewal is an active subscription whose period start moved strictly
// forward relative to what is stored locally. The stored period start is used
// only as a comparison value; a stale read here can at worst downgrade a
// renewal to a generic sync, which the next audit corrects.
func Classify(state SubscriptionState, prior *subscriptions.Subscription) Outcome {
	if state.Status == "active" &&
		prior.CurrentPeriodStart != nil &&
		!state.CurrentPeriodStart.IsZero() &&
		state.CurrentPeriodStart.After(*prior.CurrentPeriodStart) {
		return Renewal
	}

	if state.Status == "canceled" || state.CancelAtPeriodEnd {
		return Cancellation
	}

	return GenericSync
}
