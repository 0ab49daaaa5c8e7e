package reconcile

import (
	"log"
	"strings"

	"invoicehub/internal/domain/subscriptions"
)

// MapStatus translates a Stripe subscription status to the local one.
// Unrecognized statuses fail open to active rather than locking out a paying
// customer, but loudly: every unmapped value is logged so it shows up in
// monitoring instead of silently granting access.
func MapStatus(processorStatus string) string {
	switch strings.TrimSpace(processorStatus) {
	case "trialing":
		return subscriptions.StatusTrialing
	case "active":
		return subscriptions.StatusActive
	case "past_due":
		return subscriptions.StatusPastDue
	case "canceled":
		return subscriptions.StatusCanceled
	case "unpaid":
		return subscriptions.StatusUnpaid
	case "incomplete":
		return subscriptions.StatusIncomplete
	default:
		log.Printf("⚠️ unmapped stripe subscription status %q, treating as active", processorStatus)
		return subscriptions.StatusActive
	}
}
