package enrichment

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/yungbote/vocabdrill-backend/internal/platform/envutil"
	"github.com/yungbote/vocabdrill-backend/internal/platform/httpx"
	"github.com/yungbote/vocabdrill-backend/internal/platform/llm"
)

// Level is how hard the breaker trips for a failure. Higher is more severe.
type Level int

const (
	LevelNone Level = iota
	LevelRateLimited
	LevelOutage
	LevelQuota
)

func (l Level) String() string {
	switch l {
	case LevelRateLimited:
		return "rate_limited"
	case LevelOutage:
		return "service_outage"
	case LevelQuota:
		return "quota_exhausted"
	}
	return "none"
}

// Classify maps a processing error onto a breaker level. Aggregated
// provider failures take the most severe level of any attempt.
func Classify(err error) Level {
	if err == nil || errors.Is(err, context.Canceled) {
		return LevelNone
	}
	var all *llm.AllProvidersFailedError
	if errors.As(err, &all) {
		worst := LevelNone
		for _, a := range all.Attempts {
			if l := classifyOne(a); l > worst {
				worst = l
			}
		}
		return worst
	}
	return classifyOne(err)
}

func classifyOne(err error) Level {
	body := strings.ToLower(llm.RawResponse(err))
	if strings.Contains(body, "insufficient_quota") || strings.Contains(body, "quota") {
		return LevelQuota
	}
	code := httpx.StatusCode(err)
	switch {
	case code == 429:
		return LevelRateLimited
	case code >= 500:
		return LevelOutage
	case code != 0:
		return LevelNone
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return LevelOutage
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return LevelOutage
	}
	return LevelNone
}

type BreakerConfig struct {
	RateLimitBase        time.Duration
	RateLimitMax         time.Duration
	OutageSleep          time.Duration
	TotalFailureLimit    int
	TotalFailureCooldown time.Duration
	// QuotaResetHour is the UTC hour at which daily quotas refill.
	QuotaResetHour int
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		RateLimitBase:        30 * time.Second,
		RateLimitMax:         30 * time.Minute,
		OutageSleep:          15 * time.Minute,
		TotalFailureLimit:    3,
		TotalFailureCooldown: 10 * time.Minute,
		QuotaResetHour:       0,
	}
}

func BreakerConfigFromEnv() BreakerConfig {
	c := DefaultBreakerConfig()
	c.RateLimitBase = envutil.Duration("ETL_RATE_LIMIT_COOLDOWN", c.RateLimitBase)
	c.RateLimitMax = envutil.Duration("ETL_RATE_LIMIT_COOLDOWN_MAX", c.RateLimitMax)
	c.OutageSleep = envutil.Duration("ETL_OUTAGE_SLEEP", c.OutageSleep)
	c.TotalFailureLimit = envutil.Int("ETL_TOTAL_FAILURE_LIMIT", c.TotalFailureLimit)
	c.TotalFailureCooldown = envutil.Duration("ETL_TOTAL_FAILURE_COOLDOWN", c.TotalFailureCooldown)
	c.QuotaResetHour = envutil.Int("ETL_QUOTA_RESET_HOUR_UTC", c.QuotaResetHour)
	return c
}

// Breaker tracks consecutive trips. It is owned by one runner loop and is
// not safe for concurrent use.
type Breaker struct {
	cfg          BreakerConfig
	rateTrips    int
	totalFailure int
}

func NewBreaker(cfg BreakerConfig) *Breaker {
	return &Breaker{cfg: cfg}
}

// Trip records a breaker event and returns how long to pause.
func (b *Breaker) Trip(level Level, now time.Time) time.Duration {
	switch level {
	case LevelRateLimited:
		b.rateTrips++
		d := b.cfg.RateLimitBase
		for i := 1; i < b.rateTrips && d < b.cfg.RateLimitMax; i++ {
			d *= 2
		}
		if b.cfg.RateLimitMax > 0 && d > b.cfg.RateLimitMax {
			d = b.cfg.RateLimitMax
		}
		return d
	case LevelQuota:
		return untilNextReset(now, b.cfg.QuotaResetHour)
	case LevelOutage:
		return b.cfg.OutageSleep
	}
	return 0
}

// Succeeded clears the rate-limit escalation and the total-failure streak.
func (b *Breaker) Succeeded() {
	b.rateTrips = 0
	b.totalFailure = 0
}

// ResetStreak clears only the total-failure streak, for batches that made
// progress while still tripping the breaker.
func (b *Breaker) ResetStreak() {
	b.totalFailure = 0
}

// BatchFailed counts a batch where nothing succeeded. It returns a cooldown
// once the streak exceeds the limit, and resets the streak when it does.
func (b *Breaker) BatchFailed() time.Duration {
	b.totalFailure++
	if b.cfg.TotalFailureLimit > 0 && b.totalFailure > b.cfg.TotalFailureLimit {
		b.totalFailure = 0
		return b.cfg.TotalFailureCooldown
	}
	return 0
}

func untilNextReset(now time.Time, hour int) time.Duration {
	now = now.UTC()
	if hour < 0 || hour > 23 {
		hour = 0
	}
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next.Sub(now)
}
