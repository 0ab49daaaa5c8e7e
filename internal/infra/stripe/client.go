package stripe

import (
	"errors"
	"fmt"
	"os"

	"invoicehub/internal/reconcile"

	stripeapi "github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/subscription"
)

// Client is the live ProcessorClient used by the consistency auditor. It
// pulls the authoritative subscription object straight from the Stripe API.
type Client struct{}

func (Client) FetchSubscription(ref string) (*reconcile.SubscriptionState, error) {
	stripeapi.Key = os.Getenv("STRIPE_SECRET_KEY")
	if stripeapi.Key == "" {
		return nil, errors.New("STRIPE_SECRET_KEY not configured")
	}

	sub, err := subscription.Get(ref, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch subscription %s: %w", ref, err)
	}

	state := reconcile.StateFromStripeSubscription(sub)
	return &state, nil
}
