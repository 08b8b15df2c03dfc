package lease

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcus-ai/marcus/pkg/config"
	"github.com/marcus-ai/marcus/pkg/domain"
)

func testConfig() config.TaskLeaseConfig {
	return config.TaskLeaseConfig{
		DefaultHours:           2.0,
		MaxRenewals:            10,
		WarningHours:           0.5,
		GracePeriodMinutes:     30,
		RenewalDecayFactor:     0.9,
		MinLeaseHours:          1.0,
		MaxLeaseHours:          24.0,
		StuckThresholdRenewals: 3,
		EnableAdaptive:         true,
	}
}

func TestCreateAppliesPriorityAndEstimateMultipliers(t *testing.T) {
	m := New(testConfig())

	urgentSmall := m.Create("t1", "a1", domain.PriorityUrgent, 1)
	lowLarge := m.Create("t2", "a1", domain.PriorityLow, 20)

	urgentDuration := urgentSmall.LeaseExpires.Sub(urgentSmall.CreatedAt)
	lowDuration := lowLarge.LeaseExpires.Sub(lowLarge.CreatedAt)

	assert.Less(t, urgentDuration, lowDuration, "an urgent, small task should get a shorter lease than a low-priority, large one")
}

func TestClampBoundsLeaseDuration(t *testing.T) {
	cfg := testConfig()
	cfg.MinLeaseHours = 1.0
	cfg.MaxLeaseHours = 3.0
	m := New(cfg)

	// Urgent + small pushes the raw base well under the 1h floor.
	l := m.Create("t1", "a1", domain.PriorityUrgent, 1)
	dur := l.LeaseExpires.Sub(l.CreatedAt)
	assert.GreaterOrEqual(t, dur, time.Duration(float64(cfg.MinLeaseHours)*float64(time.Hour)))

	// Low + large pushes the raw base well over the 3h ceiling.
	l2 := m.Create("t2", "a1", domain.PriorityLow, 20)
	dur2 := l2.LeaseExpires.Sub(l2.CreatedAt)
	assert.LessOrEqual(t, dur2, time.Duration(float64(cfg.MaxLeaseHours)*float64(time.Hour)))
}

func TestRenewDecaysLeaseDurationAcrossRenewals(t *testing.T) {
	cfg := testConfig()
	cfg.MinLeaseHours = 0 // disable clamp floor so decay is directly observable
	m := New(cfg)

	l := m.Create("t1", "a1", domain.PriorityMedium, 5)
	firstExpiry := l.LeaseExpires

	renewed, ok := m.Renew("t1", 10, "progress")
	require.True(t, ok)
	firstRemaining := renewed.LeaseExpires.Sub(time.Now().UTC())

	renewed2, ok := m.Renew("t1", 20, "more progress")
	require.True(t, ok)
	secondRemaining := renewed2.LeaseExpires.Sub(time.Now().UTC())

	assert.Less(t, secondRemaining, firstRemaining, "each renewal should shrink the remaining lease window via the decay factor")
	assert.NotEqual(t, firstExpiry, renewed.LeaseExpires)
}

func TestRenewUnknownTaskReturnsFalse(t *testing.T) {
	m := New(testConfig())
	_, ok := m.Renew("missing", 5, "")
	assert.False(t, ok)
}

func TestRenewMarksStuckAfterThresholdWithNoProgress(t *testing.T) {
	cfg := testConfig()
	cfg.StuckThresholdRenewals = 2
	m := New(cfg)

	m.Create("t1", "a1", domain.PriorityMedium, 5)

	l, ok := m.Renew("t1", 0, "no progress")
	require.True(t, ok)
	assert.False(t, l.Stuck, "below the threshold, a lease should not be flagged stuck yet")

	l, ok = m.Renew("t1", 0, "still no progress")
	require.True(t, ok)
	assert.True(t, l.Stuck, "repeated no-progress renewals at the threshold should mark the lease stuck")

	l, ok = m.Renew("t1", 50, "finally moving")
	require.True(t, ok)
	assert.False(t, l.Stuck, "progress advancing clears the stuck flag")
}

func TestRenewOnlyCountsConsecutiveStallsNotLifetimeRenewals(t *testing.T) {
	cfg := testConfig()
	cfg.StuckThresholdRenewals = 2
	m := New(cfg)

	m.Create("t1", "a1", domain.PriorityMedium, 5)

	l, ok := m.Renew("t1", 10, "progress")
	require.True(t, ok)
	assert.False(t, l.Stuck)

	l, ok = m.Renew("t1", 10, "stalled")
	require.True(t, ok)
	assert.False(t, l.Stuck, "a single stall after an advancing renewal must not trip the threshold")

	l, ok = m.Renew("t1", 10, "stalled again")
	require.True(t, ok)
	assert.True(t, l.Stuck, "two consecutive stalls should trip the threshold regardless of prior renewal count")
}

func TestExpiredReturnsOnlyLeasesPastExpiryAndGracePeriod(t *testing.T) {
	cfg := testConfig()
	cfg.GracePeriodMinutes = 30
	m := New(cfg)
	m.Create("within-grace", "a1", domain.PriorityMedium, 1)
	m.Create("past-grace", "a2", domain.PriorityMedium, 1)

	withinGrace, _ := m.Get("within-grace")
	withinGrace.LeaseExpires = time.Now().UTC().Add(-time.Minute)

	pastGrace, _ := m.Get("past-grace")
	pastGrace.LeaseExpires = time.Now().UTC().Add(-31 * time.Minute)

	expired := m.Expired(time.Now().UTC())
	require.Len(t, expired, 1, "a lease past expiry but still within its grace period must not be reclaimed yet")
	assert.Equal(t, "past-grace", expired[0].TaskID)
}

func TestExpireRemovesLease(t *testing.T) {
	m := New(testConfig())
	m.Create("t1", "a1", domain.PriorityMedium, 1)
	m.Expire("t1")

	_, ok := m.Get("t1")
	assert.False(t, ok)
}

func TestStatisticsSeparatesActiveFromExpired(t *testing.T) {
	m := New(testConfig())
	m.Create("active", "a1", domain.PriorityMedium, 1)
	m.Create("stale", "a2", domain.PriorityMedium, 1)

	l, _ := m.Get("stale")
	l.LeaseExpires = time.Now().UTC().Add(-time.Minute)

	stats := m.Statistics()
	assert.Equal(t, 1, stats.Active)
	assert.Equal(t, 1, stats.Expired)
}
