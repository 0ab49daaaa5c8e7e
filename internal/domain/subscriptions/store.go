package subscriptions

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// ErrNotFound is returned when a lookup matches no subscription.
var ErrNotFound = errors.New("subscription not found")

// StateUpdate carries the fields the reconciler recomputes from a processor
// event. Nil fields are left untouched; set fields are written unconditionally
// in a single statement, which is what makes event processing idempotent.
// A pointer to the zero time clears the timestamp column, so a repair can
// erase period bounds the processor no longer reports.
type StateUpdate struct {
	Status               *string
	StripeCustomerID     *string
	StripeSubscriptionID *string
	CancelAtPeriodEnd    *bool
	CurrentPeriodStart   *time.Time
	CurrentPeriodEnd     *time.Time
	TrialEnd             *time.Time
}

// Store is the persistence contract the registration assigner and the webhook
// reconciler operate against.
type Store interface {
	Get(id string) (*Subscription, error)
	ByUserID(userID uint) (*Subscription, error)
	ByStripeSubscriptionID(ref string) (*Subscription, error)
	ByStripeCustomerID(ref string) (*Subscription, error)
	All() ([]Subscription, error)
	Create(sub *Subscription) error
	ApplyState(id string, update StateUpdate) error
}

// GormStore is the GORM-backed Store used in production and in tests
// (Postgres and SQLite respectively).
type GormStore struct {
	DB *gorm.DB
}

func NewStore(db *gorm.DB) *GormStore {
	return &GormStore{DB: db}
}

func (s *GormStore) Get(id string) (*Subscription, error) {
	var sub Subscription
	if err := s.DB.Where("id = ?", id).First(&sub).Error; err != nil {
		return nil, translate(err)
	}
	return &sub, nil
}

func (s *GormStore) ByUserID(userID uint) (*Subscription, error) {
	var sub Subscription
	if err := s.DB.Where("user_id = ?", userID).First(&sub).Error; err != nil {
		return nil, translate(err)
	}
	return &sub, nil
}

func (s *GormStore) ByStripeSubscriptionID(ref string) (*Subscription, error) {
	var sub Subscription
	if err := s.DB.Where("stripe_subscription_id = ?", ref).First(&sub).Error; err != nil {
		return nil, translate(err)
	}
	return &sub, nil
}

func (s *GormStore) ByStripeCustomerID(ref string) (*Subscription, error) {
	var sub Subscription
	if err := s.DB.Where("stripe_customer_id = ?", ref).First(&sub).Error; err != nil {
		return nil, translate(err)
	}
	return &sub, nil
}

func (s *GormStore) All() ([]Subscription, error) {
	var subs []Subscription
	if err := s.DB.Order("registration_order ASC").Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

func (s *GormStore) Create(sub *Subscription) error {
	return s.DB.Create(sub).Error
}

// ApplyState writes the recomputed target state as one UPDATE statement. The
// row-level atomicity of that single statement is the only concurrency control
// the reconciler needs.
func (s *GormStore) ApplyState(id string, update StateUpdate) error {
	fields := map[string]interface{}{}
	if update.Status != nil {
		fields["status"] = *update.Status
	}
	if update.StripeCustomerID != nil {
		fields["stripe_customer_id"] = *update.StripeCustomerID
	}
	if update.StripeSubscriptionID != nil {
		fields["stripe_subscription_id"] = *update.StripeSubscriptionID
	}
	if update.CancelAtPeriodEnd != nil {
		fields["cancel_at_period_end"] = *update.CancelAtPeriodEnd
	}
	if update.CurrentPeriodStart != nil {
		fields["current_period_start"] = timeOrNull(*update.CurrentPeriodStart)
	}
	if update.CurrentPeriodEnd != nil {
		fields["current_period_end"] = timeOrNull(*update.CurrentPeriodEnd)
	}
	if update.TrialEnd != nil {
		fields["trial_end"] = *update.TrialEnd
	}
	if len(fields) == 0 {
		return nil
	}

	return s.DB.Model(&Subscription{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func timeOrNull(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
