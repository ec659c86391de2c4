package enrichment

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/yungbote/vocabdrill-backend/internal/platform/llm"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Level
	}{
		{"nil", nil, LevelNone},
		{"canceled", context.Canceled, LevelNone},
		{"429", &llm.HTTPError{Provider: "a", StatusCode: 429, Body: "slow down"}, LevelRateLimited},
		{"quota body", &llm.HTTPError{Provider: "a", StatusCode: 429, Body: `{"error":{"code":"insufficient_quota"}}`}, LevelQuota},
		{"503", fmt.Errorf("wrapped: %w", &llm.HTTPError{Provider: "a", StatusCode: 503}), LevelOutage},
		{"400", &llm.HTTPError{Provider: "a", StatusCode: 400, Body: "bad"}, LevelNone},
		{"deadline", context.DeadlineExceeded, LevelOutage},
		{"plain", errors.New("schema"), LevelNone},
		{"aggregate takes worst", &llm.AllProvidersFailedError{Attempts: []*llm.ProviderError{
			{Provider: "a", Err: &llm.HTTPError{Provider: "a", StatusCode: 429}},
			{Provider: "b", Err: &llm.HTTPError{Provider: "b", StatusCode: 502}},
		}}, LevelOutage},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.err); got != tc.want {
				t.Fatalf("Classify() = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestBreakerRateLimitEscalatesAndResets(t *testing.T) {
	b := NewBreaker(DefaultBreakerConfig())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	want := []time.Duration{30 * time.Second, time.Minute, 2 * time.Minute, 4 * time.Minute}
	for i, w := range want {
		if got := b.Trip(LevelRateLimited, now); got != w {
			t.Fatalf("trip %d: got %s want %s", i+1, got, w)
		}
	}
	for i := 0; i < 10; i++ {
		b.Trip(LevelRateLimited, now)
	}
	if got := b.Trip(LevelRateLimited, now); got != 30*time.Minute {
		t.Fatalf("expected cap at 30m, got %s", got)
	}
	b.Succeeded()
	if got := b.Trip(LevelRateLimited, now); got != 30*time.Second {
		t.Fatalf("expected reset to base, got %s", got)
	}
}

func TestBreakerQuotaSleepsUntilMidnightUTC(t *testing.T) {
	b := NewBreaker(DefaultBreakerConfig())
	now := time.Date(2026, 3, 1, 22, 30, 0, 0, time.UTC)
	if got := b.Trip(LevelQuota, now); got != 90*time.Minute {
		t.Fatalf("got %s", got)
	}
	if got := b.Trip(LevelQuota, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)); got != 24*time.Hour {
		t.Fatalf("exactly at reset should wait a full day, got %s", got)
	}
	if got := b.Trip(LevelOutage, now); got != 15*time.Minute {
		t.Fatalf("outage sleep = %s", got)
	}
}

func TestBreakerTotalFailureThreshold(t *testing.T) {
	b := NewBreaker(DefaultBreakerConfig())
	for i := 1; i <= 3; i++ {
		if d := b.BatchFailed(); d != 0 {
			t.Fatalf("failure %d should not cool down yet, got %s", i, d)
		}
	}
	if d := b.BatchFailed(); d != 10*time.Minute {
		t.Fatalf("fourth failure should cool down 10m, got %s", d)
	}
	if d := b.BatchFailed(); d != 0 {
		t.Fatalf("streak should reset after cooldown, got %s", d)
	}
}
