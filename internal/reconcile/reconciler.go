package reconcile

import (
	"errors"
	"log"
	"time"

	"invoicehub/internal/domain/subscriptions"
	"invoicehub/internal/domain/tiers"
)

// Reconciler applies processor events to the local subscription store.
//
// Processing is idempotent per event: the full target state is recomputed
// from the payload and written unconditionally, so at-least-once delivery and
// re-delivery produce the same end state. Events referencing a subscription
// this system has no record of are logged and dropped — retrying cannot
// resolve a permanently missing mapping.
type Reconciler struct {
	Store  subscriptions.Store
	Policy tiers.Policy
}

func NewReconciler(store subscriptions.Store, policy tiers.Policy) *Reconciler {
	return &Reconciler{Store: store, Policy: policy}
}

// Process applies one event. It returns nil for no-ops (informational events,
// unknown subscription references) and a ReconciliationError for transient
// failures worth retrying.
func (r *Reconciler) Process(event Event) error {
	switch ev := event.(type) {
	case SubscriptionCreated:
		return r.subscriptionCreated(ev.State)
	case SubscriptionUpdated:
		return r.subscriptionUpdated(ev.State)
	case SubscriptionDeleted:
		return r.applyCancellationByRef(ev.State)
	case PaymentSucceeded:
		return r.paymentSucceeded(ev)
	case PaymentFailed:
		return r.paymentFailed(ev)
	case CheckoutCompleted:
		if ev.Mode == "subscription" {
			// the customer.subscription.created event carries the real state
			log.Printf("✅ checkout session %s completed for subscription %s", ev.SessionID, ev.SubscriptionID)
		}
		return nil
	case CustomerUpserted:
		return r.customerUpserted(ev)
	case Informational:
		return nil
	default:
		log.Printf("⚠️ reconciler received unhandled event variant %T", event)
		return nil
	}
}

// subscriptionCreated links the local record to the processor's identifiers.
// The local subscription is found via the account reference in the event
// metadata — at this point the processor subscription ref is not yet stored.
func (r *Reconciler) subscriptionCreated(state SubscriptionState) error {
	if state.UserID == 0 {
		log.Printf("⚠️ subscription.created %s carries no user reference, skipping", state.SubscriptionID)
		return nil
	}

	prior, err := r.Store.ByUserID(state.UserID)
	if err != nil {
		if errors.Is(err, subscriptions.ErrNotFound) {
			log.Printf("⚠️ subscription.created %s references unknown user %d, skipping", state.SubscriptionID, state.UserID)
			return nil
		}
		return reconciliationErr("subscription.created lookup", err)
	}

	update := stateUpdateFrom(state)
	if state.CustomerID != "" {
		update.StripeCustomerID = &state.CustomerID
	}
	update.StripeSubscriptionID = &state.SubscriptionID

	// a fresh paid signup moves straight into its trial
	if prior.Status == subscriptions.StatusIncomplete {
		trialing := subscriptions.StatusTrialing
		update.Status = &trialing

		trialEnd := state.TrialEnd
		if trialEnd.IsZero() {
			trialEnd = time.Now().AddDate(0, 0, r.Policy.TrialDaysFor(prior.Tier))
		}
		update.TrialEnd = &trialEnd
	}

	if err := r.Store.ApplyState(prior.ID, update); err != nil {
		return reconciliationErr("subscription.created apply", err)
	}
	return nil
}

func (r *Reconciler) subscriptionUpdated(state SubscriptionState) error {
	prior, handled, err := r.byRef("subscription.updated", state.SubscriptionID)
	if err != nil || handled {
		return err
	}

	switch Classify(state, prior) {
	case Renewal:
		update := stateUpdateFrom(state)
		noCancel := false
		update.CancelAtPeriodEnd = &noCancel
		if err := r.Store.ApplyState(prior.ID, update); err != nil {
			return reconciliationErr("renewal apply", err)
		}
		log.Printf("✅ subscription %s renewed through %s", state.SubscriptionID, state.CurrentPeriodEnd.Format(time.RFC3339))
		return nil

	case Cancellation:
		return r.applyCancellation(prior, state)

	default:
		if err := r.Store.ApplyState(prior.ID, stateUpdateFrom(state)); err != nil {
			return reconciliationErr("subscription.updated apply", err)
		}
		return nil
	}
}

func (r *Reconciler) applyCancellationByRef(state SubscriptionState) error {
	prior, handled, err := r.byRef("subscription.deleted", state.SubscriptionID)
	if err != nil || handled {
		return err
	}
	return r.applyCancellation(prior, state)
}

// applyCancellation handles both real and scheduled cancellations. When the
// processor still reports the subscription active with cancel_at_period_end
// set, the cancellation is scheduled but not yet effective, so the local
// status stays active with the flag persisted.
func (r *Reconciler) applyCancellation(prior *subscriptions.Subscription, state SubscriptionState) error {
	update := subscriptions.StateUpdate{}

	cancelFlag := state.CancelAtPeriodEnd
	update.CancelAtPeriodEnd = &cancelFlag

	status := subscriptions.StatusCanceled
	if state.CancelAtPeriodEnd && state.Status == "active" {
		status = subscriptions.StatusActive
	}
	update.Status = &status

	if !state.CurrentPeriodEnd.IsZero() {
		update.CurrentPeriodEnd = &state.CurrentPeriodEnd
	}

	if err := r.Store.ApplyState(prior.ID, update); err != nil {
		return reconciliationErr("cancellation apply", err)
	}

	if status == subscriptions.StatusCanceled {
		log.Printf("✅ subscription %s canceled", state.SubscriptionID)
	} else {
		log.Printf("✅ subscription %s scheduled to cancel at period end", state.SubscriptionID)
	}
	return nil
}

func (r *Reconciler) paymentSucceeded(ev PaymentSucceeded) error {
	if ev.SubscriptionID == "" {
		// one-time invoice, nothing to reconcile
		return nil
	}
	prior, handled, err := r.byRef("invoice.payment_succeeded", ev.SubscriptionID)
	if err != nil || handled {
		return err
	}

	active := subscriptions.StatusActive
	update := subscriptions.StateUpdate{Status: &active}
	if !ev.PeriodStart.IsZero() {
		update.CurrentPeriodStart = &ev.PeriodStart
	}
	if !ev.PeriodEnd.IsZero() {
		update.CurrentPeriodEnd = &ev.PeriodEnd
	}

	if err := r.Store.ApplyState(prior.ID, update); err != nil {
		return reconciliationErr("payment_succeeded apply", err)
	}
	return nil
}

// paymentFailed marks the subscription past_due. It never cancels — if the
// processor gives up on collection, a separate subscription event follows.
func (r *Reconciler) paymentFailed(ev PaymentFailed) error {
	if ev.SubscriptionID == "" {
		return nil
	}
	prior, handled, err := r.byRef("invoice.payment_failed", ev.SubscriptionID)
	if err != nil || handled {
		return err
	}

	pastDue := subscriptions.StatusPastDue
	if err := r.Store.ApplyState(prior.ID, subscriptions.StateUpdate{Status: &pastDue}); err != nil {
		return reconciliationErr("payment_failed apply", err)
	}
	log.Printf("⚠️ payment failed for subscription %s (invoice %s), marked past_due", ev.SubscriptionID, ev.InvoiceID)
	return nil
}

// customerUpserted backfills the processor customer ref when it is locally
// absent. An existing ref is never overwritten.
func (r *Reconciler) customerUpserted(ev CustomerUpserted) error {
	if ev.UserID == 0 || ev.CustomerID == "" {
		return nil
	}

	prior, err := r.Store.ByUserID(ev.UserID)
	if err != nil {
		if errors.Is(err, subscriptions.ErrNotFound) {
			log.Printf("⚠️ customer event %s references unknown user %d, skipping", ev.CustomerID, ev.UserID)
			return nil
		}
		return reconciliationErr("customer lookup", err)
	}

	if prior.StripeCustomerID != nil && *prior.StripeCustomerID != "" {
		return nil
	}

	if err := r.Store.ApplyState(prior.ID, subscriptions.StateUpdate{StripeCustomerID: &ev.CustomerID}); err != nil {
		return reconciliationErr("customer backfill apply", err)
	}
	return nil
}

// Resync unconditionally applies the generic-sync mapping of freshly fetched
// processor state, regardless of event history. This is the repair path for
// drift caused by missed or permanently failed events.
//
// Unlike event processing, the period bounds are always written — clearing
// the local columns when the processor reports none — so the record ends up
// matching the processor's view exactly and a follow-up audit passes.
func (r *Reconciler) Resync(state SubscriptionState) error {
	prior, handled, err := r.byRef("resync", state.SubscriptionID)
	if err != nil {
		return err
	}
	if handled {
		return reconciliationErr("resync", subscriptions.ErrNotFound)
	}

	update := stateUpdateFrom(state)
	update.CurrentPeriodStart = &state.CurrentPeriodStart
	update.CurrentPeriodEnd = &state.CurrentPeriodEnd

	if err := r.Store.ApplyState(prior.ID, update); err != nil {
		return reconciliationErr("resync apply", err)
	}
	return nil
}

// byRef resolves a subscription by its processor ref. handled=true means the
// event was consumed as a logged no-op (unknown reference).
func (r *Reconciler) byRef(op string, ref string) (*subscriptions.Subscription, bool, error) {
	sub, err := r.Store.ByStripeSubscriptionID(ref)
	if err != nil {
		if errors.Is(err, subscriptions.ErrNotFound) {
			log.Printf("⚠️ %s references unknown subscription %s, skipping", op, ref)
			return nil, true, nil
		}
		return nil, false, reconciliationErr(op+" lookup", err)
	}
	return sub, false, nil
}

// stateUpdateFrom is the generic-sync mapping: status, cancellation flag and
// period bounds recomputed from the processor's view.
func stateUpdateFrom(state SubscriptionState) subscriptions.StateUpdate {
	status := MapStatus(state.Status)
	cancel := state.CancelAtPeriodEnd

	update := subscriptions.StateUpdate{
		Status:            &status,
		CancelAtPeriodEnd: &cancel,
	}
	if !state.CurrentPeriodStart.IsZero() {
		update.CurrentPeriodStart = &state.CurrentPeriodStart
	}
	if !state.CurrentPeriodEnd.IsZero() {
		update.CurrentPeriodEnd = &state.CurrentPeriodEnd
	}
	return update
}
