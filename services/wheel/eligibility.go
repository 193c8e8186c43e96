package wheel

import (
	"fmt"
	"time"

	"loyaltyplane/pkg/errutil"
)

type EligibilityStatus string

const (
	Eligible          EligibilityStatus = "ELIGIBLE"
	WheelInactive     EligibilityStatus = "WHEEL_INACTIVE"
	WheelNotStarted   EligibilityStatus = "WHEEL_NOT_STARTED"
	WheelEnded        EligibilityStatus = "WHEEL_ENDED"
	DailyLimitReached EligibilityStatus = "DAILY_LIMIT_REACHED"
	CooldownActive    EligibilityStatus = "COOLDOWN_ACTIVE"
)

type Eligibility struct {
	Status     EligibilityStatus
	RetryAfter time.Duration // set for COOLDOWN_ACTIVE
}

// CheckEligibility evaluates the wheel's gating rules for one member. It is
// pure given its inputs; callers read dailySpins and lastSpin inside the
// same locked unit that records the spin, so the check-then-act window is
// closed. The daily window is the server's wall-clock calendar day.
func CheckEligibility(w *Wheel, dailySpins int64, lastSpin *Spin, now time.Time) Eligibility {
	if !w.Active {
		return Eligibility{Status: WheelInactive}
	}
	if w.StartDate != nil && now.Before(*w.StartDate) {
		return Eligibility{Status: WheelNotStarted}
	}
	if w.EndDate != nil && now.After(*w.EndDate) {
		return Eligibility{Status: WheelEnded}
	}
	if w.MaxSpinsPerDay > 0 && dailySpins >= int64(w.MaxSpinsPerDay) {
		return Eligibility{Status: DailyLimitReached}
	}
	if w.CooldownMinutes > 0 && lastSpin != nil {
		readyAt := lastSpin.CreatedAt.Add(time.Duration(w.CooldownMinutes) * time.Minute)
		if now.Before(readyAt) {
			return Eligibility{Status: CooldownActive, RetryAfter: readyAt.Sub(now)}
		}
	}

	return Eligibility{Status: Eligible}
}

// EligibilityError is the terminal outcome of a gated spin attempt. It
// carries the machine-readable reason and, for cooldowns, how long the
// caller should wait before retrying.
type EligibilityError struct {
	Reason     EligibilityStatus
	RetryAfter time.Duration
}

func (e EligibilityError) Error() string {
	if e.Reason == CooldownActive {
		return fmt.Sprintf("spin not allowed: %s, retry in %s", e.Reason, e.RetryAfter.Round(time.Second))
	}
	return fmt.Sprintf("spin not allowed: %s", e.Reason)
}

// Status maps the reason onto the shared error taxonomy so the transport
// layer can derive a response code without knowing this package.
func (e EligibilityError) Status() errutil.CoreStatus {
	switch e.Reason {
	case DailyLimitReached, CooldownActive:
		return errutil.StatusTooManyRequests
	default:
		return errutil.StatusUnprocessableEntity
	}
}
