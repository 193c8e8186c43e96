package wheel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"loyaltyplane/pkg/errutil"
)

func activeWheel() *Wheel {
	return &Wheel{ID: "wheel-1", Active: true}
}

func TestCheckEligibilityEligible(t *testing.T) {
	elig := CheckEligibility(activeWheel(), 0, nil, time.Now())
	require.Equal(t, Eligible, elig.Status)
}

func TestCheckEligibilityInactiveWheel(t *testing.T) {
	w := activeWheel()
	w.Active = false

	elig := CheckEligibility(w, 0, nil, time.Now())
	require.Equal(t, WheelInactive, elig.Status)
}

func TestCheckEligibilityWindow(t *testing.T) {
	now := time.Now()
	start := now.Add(time.Hour)
	end := now.Add(2 * time.Hour)

	w := activeWheel()
	w.StartDate = &start
	w.EndDate = &end

	require.Equal(t, WheelNotStarted, CheckEligibility(w, 0, nil, now).Status)
	require.Equal(t, Eligible, CheckEligibility(w, 0, nil, now.Add(90*time.Minute)).Status)
	require.Equal(t, WheelEnded, CheckEligibility(w, 0, nil, now.Add(3*time.Hour)).Status)
}

func TestCheckEligibilityDailyLimit(t *testing.T) {
	w := activeWheel()
	w.MaxSpinsPerDay = 3

	require.Equal(t, Eligible, CheckEligibility(w, 2, nil, time.Now()).Status)
	require.Equal(t, DailyLimitReached, CheckEligibility(w, 3, nil, time.Now()).Status)
	require.Equal(t, DailyLimitReached, CheckEligibility(w, 4, nil, time.Now()).Status)
}

func TestCheckEligibilityUnlimitedSpins(t *testing.T) {
	elig := CheckEligibility(activeWheel(), 10_000, nil, time.Now())
	require.Equal(t, Eligible, elig.Status)
}

func TestCheckEligibilityCooldown(t *testing.T) {
	now := time.Now()
	w := activeWheel()
	w.CooldownMinutes = 10

	last := &Spin{CreatedAt: now.Add(-4 * time.Minute)}
	elig := CheckEligibility(w, 1, last, now)
	require.Equal(t, CooldownActive, elig.Status)
	require.InDelta(t, (6 * time.Minute).Seconds(), elig.RetryAfter.Seconds(), 1)

	old := &Spin{CreatedAt: now.Add(-11 * time.Minute)}
	require.Equal(t, Eligible, CheckEligibility(w, 1, old, now).Status)

	require.Equal(t, Eligible, CheckEligibility(w, 1, nil, now).Status)
}

func TestCheckEligibilityOrder(t *testing.T) {
	// the wheel state gates before per-member limits
	now := time.Now()
	w := activeWheel()
	w.Active = false
	w.MaxSpinsPerDay = 1

	elig := CheckEligibility(w, 5, nil, now)
	require.Equal(t, WheelInactive, elig.Status)
}

func TestEligibilityErrorStatus(t *testing.T) {
	require.Equal(t, errutil.StatusTooManyRequests, EligibilityError{Reason: DailyLimitReached}.Status())
	require.Equal(t, errutil.StatusTooManyRequests, EligibilityError{Reason: CooldownActive}.Status())
	require.Equal(t, errutil.StatusUnprocessableEntity, EligibilityError{Reason: WheelInactive}.Status())
	require.Equal(t, errutil.StatusUnprocessableEntity, EligibilityError{Reason: WheelEnded}.Status())

	err := EligibilityError{Reason: CooldownActive, RetryAfter: 90 * time.Second}
	require.Contains(t, err.Error(), "COOLDOWN_ACTIVE")
	require.Contains(t, err.Error(), "1m30s")
}
