package reconcile

import (
	"errors"
	"fmt"
	"log"
	"time"

	"invoicehub/internal/domain/subscriptions"
)

// ProcessorClient fetches authoritative subscription state directly from the
// payment processor, bypassing the event stream.
type ProcessorClient interface {
	FetchSubscription(ref string) (*SubscriptionState, error)
}

// Auditor detects and repairs drift between the local record and the
// processor. Drift is a state, not an exception: a mismatch is logged and
// reported, and Repair is the self-healing path for it.
type Auditor struct {
	Store      subscriptions.Store
	Processor  ProcessorClient
	Reconciler *Reconciler
}

func NewAuditor(store subscriptions.Store, processor ProcessorClient, rec *Reconciler) *Auditor {
	return &Auditor{Store: store, Processor: processor, Reconciler: rec}
}

// AuditConsistency re-fetches the processor's view of a subscription and
// compares it field by field against the local record. It returns whether
// they match and logs the full diff when they do not.
func (a *Auditor) AuditConsistency(ref string) (bool, error) {
	local, err := a.Store.ByStripeSubscriptionID(ref)
	if err != nil {
		if errors.Is(err, subscriptions.ErrNotFound) {
			return false, fmt.Errorf("no local subscription for ref %s", ref)
		}
		return false, err
	}

	remote, err := a.Processor.FetchSubscription(ref)
	if err != nil {
		return false, fmt.Errorf("failed to fetch processor state for %s: %w", ref, err)
	}

	diff := diffStates(local, remote)
	if len(diff) == 0 {
		return true, nil
	}

	log.Printf("⚠️ consistency drift on subscription %s (%d fields):", ref, len(diff))
	for _, line := range diff {
		log.Printf("   %s", line)
	}
	return false, nil
}

// Repair forces a full re-sync from freshly fetched processor state through
// the same generic-sync path events use, regardless of event history.
func (a *Auditor) Repair(ref string) error {
	remote, err := a.Processor.FetchSubscription(ref)
	if err != nil {
		return fmt.Errorf("failed to fetch processor state for %s: %w", ref, err)
	}

	if err := a.Reconciler.Resync(*remote); err != nil {
		return err
	}
	log.Printf("✅ subscription %s re-synced from processor state", ref)
	return nil
}

func diffStates(local *subscriptions.Subscription, remote *SubscriptionState) []string {
	var diff []string

	if want := MapStatus(remote.Status); local.Status != want {
		diff = append(diff, fmt.Sprintf("status: local=%s processor=%s", local.Status, want))
	}
	if local.CancelAtPeriodEnd != remote.CancelAtPeriodEnd {
		diff = append(diff, fmt.Sprintf("cancel_at_period_end: local=%t processor=%t", local.CancelAtPeriodEnd, remote.CancelAtPeriodEnd))
	}
	if !timesMatch(local.CurrentPeriodStart, remote.CurrentPeriodStart) {
		diff = append(diff, fmt.Sprintf("current_period_start: local=%s processor=%s",
			formatTime(local.CurrentPeriodStart), remote.CurrentPeriodStart.Format(time.RFC3339)))
	}
	if !timesMatch(local.CurrentPeriodEnd, remote.CurrentPeriodEnd) {
		diff = append(diff, fmt.Sprintf("current_period_end: local=%s processor=%s",
			formatTime(local.CurrentPeriodEnd), remote.CurrentPeriodEnd.Format(time.RFC3339)))
	}

	return diff
}

func timesMatch(local *time.Time, remote time.Time) bool {
	if local == nil {
		return remote.IsZero()
	}
	if remote.IsZero() {
		return false
	}
	// second precision: processor timestamps are unix seconds
	return local.Unix() == remote.Unix()
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "<unset>"
	}
	return t.Format(time.RFC3339)
}
