package srs

import (
	"math/rand"
	"testing"
	"time"

	"github.com/yungbote/vocabdrill-backend/internal/domain/learning"
)

func TestRepeatNewCard(t *testing.T) {
	p := DefaultParams()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := p.Repeat(Card{State: learning.StateNew}, now)

	cases := []struct {
		rating learning.Rating
		state  learning.CardState
		due    time.Duration
	}{
		{learning.RatingAgain, learning.StateLearning, time.Minute},
		{learning.RatingHard, learning.StateLearning, 5 * time.Minute},
		{learning.RatingGood, learning.StateLearning, 10 * time.Minute},
		{learning.RatingEasy, learning.StateReview, 14 * 24 * time.Hour},
	}
	for _, tc := range cases {
		got := s.For(tc.rating).Card
		if got.State != tc.state {
			t.Fatalf("%s: state=%s want %s", tc.rating, got.State, tc.state)
		}
		if d := got.Due.Sub(now); d != tc.due {
			t.Fatalf("%s: due in %v want %v", tc.rating, d, tc.due)
		}
		if got.Reps != 1 {
			t.Fatalf("%s: reps=%d", tc.rating, got.Reps)
		}
		if got.Difficulty < 1 || got.Difficulty > 10 {
			t.Fatalf("%s: difficulty out of range: %v", tc.rating, got.Difficulty)
		}
	}
	if got := s.For(learning.RatingAgain).Card.Stability; got != DefaultWeights[0] {
		t.Fatalf("again stability=%v want %v", got, DefaultWeights[0])
	}
}

func TestRepeatLearningGraduates(t *testing.T) {
	p := DefaultParams()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := p.Next(Card{State: learning.StateNew}, learning.RatingGood, now)
	later := now.Add(10 * time.Minute)
	s := p.Repeat(c, later)
	if st := s.For(learning.RatingHard).Card.State; st != learning.StateLearning {
		t.Fatalf("hard in learning: state=%s", st)
	}
	good := s.For(learning.RatingGood).Card
	easy := s.For(learning.RatingEasy).Card
	if good.State != learning.StateReview || easy.State != learning.StateReview {
		t.Fatalf("expected graduation, got good=%s easy=%s", good.State, easy.State)
	}
	if easy.ScheduledDays <= good.ScheduledDays {
		t.Fatalf("easy interval %d not above good %d", easy.ScheduledDays, good.ScheduledDays)
	}
}

func TestRepeatReviewOrdering(t *testing.T) {
	p := DefaultParams()
	last := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := Card{
		Stability:  10,
		Difficulty: 5,
		Reps:       4,
		Lapses:     1,
		State:      learning.StateReview,
		LastReview: &last,
		Due:        last.Add(10 * 24 * time.Hour),
	}
	now := last.Add(10*24*time.Hour + 5*time.Hour)
	s := p.Repeat(c, now)

	again := s.For(learning.RatingAgain).Card
	if again.State != learning.StateRelearning || again.Lapses != 2 {
		t.Fatalf("again: state=%s lapses=%d", again.State, again.Lapses)
	}
	if again.Due.Sub(now) != 5*time.Minute {
		t.Fatalf("again: due in %v", again.Due.Sub(now))
	}
	if again.ElapsedDays != 10 {
		t.Fatalf("elapsed days=%d want 10", again.ElapsedDays)
	}
	if again.Stability >= c.Stability {
		t.Fatalf("forgetting should shrink stability: %v", again.Stability)
	}

	hard := s.For(learning.RatingHard).Card.ScheduledDays
	good := s.For(learning.RatingGood).Card.ScheduledDays
	easy := s.For(learning.RatingEasy).Card.ScheduledDays
	if !(hard <= good && good < easy) {
		t.Fatalf("interval ordering broken: hard=%d good=%d easy=%d", hard, good, easy)
	}
	if c.Lapses != 1 || c.State != learning.StateReview {
		t.Fatalf("Repeat mutated its input")
	}
}

func TestElapsedDaysFloors(t *testing.T) {
	last := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if got := ElapsedDays(&last, last.Add(47*time.Hour)); got != 1 {
		t.Fatalf("ElapsedDays=%d want 1", got)
	}
	if got := ElapsedDays(nil, last); got != 0 {
		t.Fatalf("ElapsedDays(nil)=%d want 0", got)
	}
	if got := ElapsedDays(&last, last.Add(-time.Hour)); got != 0 {
		t.Fatalf("ElapsedDays(before)=%d want 0", got)
	}
}

func TestRandomSequencesStayBounded(t *testing.T) {
	p := DefaultParams()
	rng := rand.New(rand.NewSource(7))
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := Card{State: learning.StateNew}
	for i := 0; i < 500; i++ {
		r := learning.Rating(rng.Intn(4) + 1)
		c = p.Next(c, r, now)
		if c.Difficulty < 1 || c.Difficulty > 10 {
			t.Fatalf("step %d: difficulty %v out of range", i, c.Difficulty)
		}
		if c.Stability <= 0 {
			t.Fatalf("step %d: non-positive stability %v", i, c.Stability)
		}
		if c.ScheduledDays > p.MaximumInterval {
			t.Fatalf("step %d: interval %d above maximum", i, c.ScheduledDays)
		}
		now = c.Due
	}
}

func TestRepeatReviewWithoutHistoryIsSameDay(t *testing.T) {
	p := DefaultParams()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := Card{Stability: 5, Difficulty: 5, Reps: 3, State: learning.StateReview, Due: now}
	good := p.Next(c, learning.RatingGood, now)
	if good.ElapsedDays != 0 {
		t.Fatalf("elapsed days=%d want 0", good.ElapsedDays)
	}
	if good.State != learning.StateReview || good.Reps != 4 {
		t.Fatalf("unexpected card %+v", good)
	}
	if good.LastReview == nil || !good.LastReview.Equal(now) {
		t.Fatalf("last review not stamped: %v", good.LastReview)
	}
}
