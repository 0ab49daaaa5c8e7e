package reconcile

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/webhook"
)

// Event is the closed set of processor notifications the reconciler acts on.
// Stripe's loosely-typed payloads are parsed into one of these variants at the
// boundary; everything downstream works on the typed variant only.
type Event interface {
	isEvent()
}

// SubscriptionState is the billing state carried by a subscription-shaped
// event (or fetched directly from Stripe during an audit). Zero time values
// mean the field was absent from the payload.
type SubscriptionState struct {
	SubscriptionID     string
	CustomerID         string
	UserID             uint
	Status             string
	CancelAtPeriodEnd  bool
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	TrialEnd           time.Time
}

type SubscriptionCreated struct {
	State SubscriptionState
}

type SubscriptionUpdated struct {
	State SubscriptionState
}

type SubscriptionDeleted struct {
	State SubscriptionState
}

type PaymentSucceeded struct {
	InvoiceID      string
	SubscriptionID string
	PeriodStart    time.Time
	PeriodEnd      time.Time
}

type PaymentFailed struct {
	InvoiceID      string
	SubscriptionID string
}

// CheckoutCompleted is log-only for subscription-mode checkouts: the real
// state change arrives with the subsequent customer.subscription.created.
type CheckoutCompleted struct {
	SessionID      string
	Mode           string
	SubscriptionID string
}

type CustomerUpserted struct {
	CustomerID string
	UserID     uint
}

// Informational covers event types that never mutate local state
// (trial_will_end, upcoming invoices, anything unrecognized).
type Informational struct {
	Type string
}

func (SubscriptionCreated) isEvent() {}
func (SubscriptionUpdated) isEvent() {}
func (SubscriptionDeleted) isEvent() {}
func (PaymentSucceeded) isEvent()    {}
func (PaymentFailed) isEvent()       {}
func (CheckoutCompleted) isEvent()   {}
func (CustomerUpserted) isEvent()    {}
func (Informational) isEvent()       {}

// ValidateAndParse verifies the webhook signature against the endpoint secret
// and parses the payload into a typed event. Signature mismatches come back
// wrapping ErrSignature and must never be retried.
func ValidateAndParse(payload []byte, sigHeader string, secret string) (Event, error) {
	stripeEvent, err := webhook.ConstructEventWithOptions(
		payload,
		sigHeader,
		secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignature, err)
	}
	return Parse(stripeEvent)
}

// Parse maps a verified Stripe event onto the closed event union.
func Parse(stripeEvent stripe.Event) (Event, error) {
	switch stripeEvent.Type {
	case "customer.subscription.created":
		state, err := subscriptionStateFromRaw(stripeEvent.Data.Raw)
		if err != nil {
			return nil, err
		}
		return SubscriptionCreated{State: state}, nil

	case "customer.subscription.updated":
		state, err := subscriptionStateFromRaw(stripeEvent.Data.Raw)
		if err != nil {
			return nil, err
		}
		return SubscriptionUpdated{State: state}, nil

	case "customer.subscription.deleted":
		state, err := subscriptionStateFromRaw(stripeEvent.Data.Raw)
		if err != nil {
			return nil, err
		}
		return SubscriptionDeleted{State: state}, nil

	case "invoice.payment_succeeded":
		var inv stripe.Invoice
		if err := json.Unmarshal(stripeEvent.Data.Raw, &inv); err != nil {
			return nil, fmt.Errorf("failed to parse invoice payload: %w", err)
		}
		start, end := invoicePeriod(&inv)
		return PaymentSucceeded{
			InvoiceID:      inv.ID,
			SubscriptionID: invoiceSubscriptionID(&inv),
			PeriodStart:    start,
			PeriodEnd:      end,
		}, nil

	case "invoice.payment_failed":
		var inv stripe.Invoice
		if err := json.Unmarshal(stripeEvent.Data.Raw, &inv); err != nil {
			return nil, fmt.Errorf("failed to parse invoice payload: %w", err)
		}
		return PaymentFailed{
			InvoiceID:      inv.ID,
			SubscriptionID: invoiceSubscriptionID(&inv),
		}, nil

	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(stripeEvent.Data.Raw, &session); err != nil {
			return nil, fmt.Errorf("failed to parse checkout session payload: %w", err)
		}
		subID := ""
		if session.Subscription != nil {
			subID = session.Subscription.ID
		}
		return CheckoutCompleted{
			SessionID:      session.ID,
			Mode:           string(session.Mode),
			SubscriptionID: subID,
		}, nil

	case "customer.created", "customer.updated":
		var customer stripe.Customer
		if err := json.Unmarshal(stripeEvent.Data.Raw, &customer); err != nil {
			return nil, fmt.Errorf("failed to parse customer payload: %w", err)
		}
		return CustomerUpserted{
			CustomerID: customer.ID,
			UserID:     userIDFromMetadata(customer.Metadata),
		}, nil

	default:
		// trial_will_end, invoice.created, invoice.upcoming and everything
		// unrecognized: acknowledged, never acted on.
		return Informational{Type: string(stripeEvent.Type)}, nil
	}
}

// StateFromStripeSubscription maps a Stripe subscription object (from an event
// payload or a direct API fetch) to the neutral state the reconciler consumes.
func StateFromStripeSubscription(sub *stripe.Subscription) SubscriptionState {
	state := SubscriptionState{
		SubscriptionID:    sub.ID,
		Status:            string(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		UserID:            userIDFromMetadata(sub.Metadata),
	}
	if sub.Customer != nil {
		state.CustomerID = sub.Customer.ID
	}
	if sub.CurrentPeriodStart != 0 {
		state.CurrentPeriodStart = time.Unix(sub.CurrentPeriodStart, 0)
	}
	if sub.CurrentPeriodEnd != 0 {
		state.CurrentPeriodEnd = time.Unix(sub.CurrentPeriodEnd, 0)
	}
	if sub.TrialEnd != 0 {
		state.TrialEnd = time.Unix(sub.TrialEnd, 0)
	}
	return state
}

func subscriptionStateFromRaw(raw json.RawMessage) (SubscriptionState, error) {
	var sub stripe.Subscription
	if err := json.Unmarshal(raw, &sub); err != nil {
		return SubscriptionState{}, fmt.Errorf("failed to parse subscription payload: %w", err)
	}
	if sub.ID == "" {
		return SubscriptionState{}, fmt.Errorf("subscription payload missing id")
	}
	return StateFromStripeSubscription(&sub), nil
}

func invoiceSubscriptionID(inv *stripe.Invoice) string {
	if inv.Subscription == nil {
		return ""
	}
	return inv.Subscription.ID
}

// invoicePeriod prefers the first line item's period, which for subscription
// invoices is the billing cycle being paid for; the invoice-level period is
// only a fallback.
func invoicePeriod(inv *stripe.Invoice) (time.Time, time.Time) {
	if inv.Lines != nil && len(inv.Lines.Data) > 0 && inv.Lines.Data[0].Period != nil {
		p := inv.Lines.Data[0].Period
		if p.Start != 0 && p.End != 0 {
			return time.Unix(p.Start, 0), time.Unix(p.End, 0)
		}
	}
	var start, end time.Time
	if inv.PeriodStart != 0 {
		start = time.Unix(inv.PeriodStart, 0)
	}
	if inv.PeriodEnd != 0 {
		end = time.Unix(inv.PeriodEnd, 0)
	}
	return start, end
}

func userIDFromMetadata(md map[string]string) uint {
	if md == nil {
		return 0
	}
	s := md["user_id"]
	if s == "" {
		return 0
	}
	uid, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0
	}
	return uint(uid)
}
