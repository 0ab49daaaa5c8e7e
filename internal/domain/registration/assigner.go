package registration

import (
	"errors"
	"fmt"
	"time"

	"invoicehub/internal/domain/subscriptions"
	"invoicehub/internal/domain/tiers"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// counterID is the primary key of the singleton registration counter row.
const counterID = 1

// RegistrationFailure is surfaced synchronously to the signup flow, which must
// not grant access without a subscription record.
type RegistrationFailure struct {
	UserID uint
	Err    error
}

func (e *RegistrationFailure) Error() string {
	return fmt.Sprintf("subscription assignment failed for user %d: %v", e.UserID, e.Err)
}

func (e *RegistrationFailure) Unwrap() error {
	return e.Err
}

// Assigner hands out registration orders and creates the subscription record
// for a newly registered account.
type Assigner struct {
	DB     *gorm.DB
	Policy tiers.Policy
}

// NextOrder returns the next registration order. The increment runs as a
// single UPDATE ... RETURNING statement so two concurrent callers can never
// observe the same value; no in-process lock is involved. A crash after the
// increment but before the subscription insert leaves a gap in the sequence,
// which is fine — orders must be unique, not contiguous.
func (a *Assigner) NextOrder() (int64, error) {
	var counter subscriptions.RegistrationCounter
	if err := a.DB.First(&counter, counterID).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, err
		}
		seed := subscriptions.RegistrationCounter{ID: counterID, CurrentCount: 0}
		if createErr := a.DB.Create(&seed).Error; createErr != nil {
			// A concurrent caller won the insert race. That counts as success
			// as long as the row is there now.
			if readErr := a.DB.First(&counter, counterID).Error; readErr != nil {
				return 0, createErr
			}
		}
	}

	var next int64
	res := a.DB.Raw(
		`UPDATE registration_counters SET current_count = current_count + 1, updated_at = ? WHERE id = ? RETURNING current_count`,
		time.Now(), counterID,
	).Scan(&next)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, errors.New("registration counter row missing")
	}

	return next, nil
}

// Assign creates the subscription record for a freshly created account. Free
// tier accounts start active (no payment setup needed); paid tiers start
// incomplete until the first successful checkout comes back via webhook.
//
// The counter increment and the subscription insert are deliberately not one
// transaction: a failure in between burns an order number but can never hand
// the same order to two subscriptions.
func (a *Assigner) Assign(userID uint) (*subscriptions.Subscription, error) {
	order, err := a.NextOrder()
	if err != nil {
		return nil, &RegistrationFailure{UserID: userID, Err: err}
	}

	assignment := a.Policy.Assign(order)

	status := subscriptions.StatusIncomplete
	if assignment.Tier == tiers.TierFree {
		status = subscriptions.StatusActive
	}

	sub := subscriptions.Subscription{
		ID:                uuid.NewString(),
		UserID:            userID,
		RegistrationOrder: order,
		Tier:              assignment.Tier,
		Status:            status,
	}

	if err := a.DB.Create(&sub).Error; err != nil {
		return nil, &RegistrationFailure{UserID: userID, Err: err}
	}

	return &sub, nil
}
