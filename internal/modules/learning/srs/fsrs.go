// Package srs adapts the FSRS-4.5 memory model to progress rows and keeps
// the per-track dimension scoring alongside it. Everything here is a pure
// function of its inputs; callers own persistence.
package srs

import (
	"math"
	"time"

	fsrs "github.com/open-spaced-repetition/go-fsrs"

	"github.com/yungbote/vocabdrill-backend/internal/domain/learning"
)

// DefaultWeights are the published FSRS-4.5 defaults.
var DefaultWeights = [17]float64{
	0.4872, 1.4003, 3.7145, 13.8206, 5.1618, 1.2298, 0.8975, 0.031,
	1.6474, 0.1367, 1.0461, 2.1072, 0.0793, 0.3246, 1.587, 0.2272, 2.8755,
}

type Params struct {
	W                [17]float64
	RequestRetention float64
	MaximumInterval  int
}

func DefaultParams() Params {
	return Params{
		W:                DefaultWeights,
		RequestRetention: 0.9,
		MaximumInterval:  36500,
	}
}

// scheduler builds the library parameters, falling back to defaults for
// out-of-range values.
func (p Params) scheduler() fsrs.Parameters {
	fp := fsrs.DefaultParam()
	fp.W = p.W
	if p.RequestRetention > 0 && p.RequestRetention < 1 {
		fp.RequestRetention = p.RequestRetention
	}
	if p.MaximumInterval > 0 {
		setNum(&fp.MaximumInterval, p.MaximumInterval)
	}
	return fp
}

type number interface {
	~int | ~int64 | ~uint64 | ~float64
}

func setNum[T number](dst *T, v int) { *dst = T(v) }

// Card is the scheduler's view of one progress row.
type Card struct {
	Stability     float64
	Difficulty    float64
	ElapsedDays   int
	ScheduledDays int
	Reps          int
	Lapses        int
	State         learning.CardState
	LastReview    *time.Time
	Due           time.Time
}

func CardFromProgress(p *learning.LearningProgress) Card {
	if p == nil {
		return Card{State: learning.StateNew}
	}
	return Card{
		Stability:     p.Stability,
		Difficulty:    p.Difficulty,
		ElapsedDays:   p.ElapsedDays,
		ScheduledDays: p.ScheduledDays,
		Reps:          p.Reps,
		Lapses:        p.Lapses,
		State:         p.State,
		LastReview:    p.LastReviewedAt,
		Due:           p.NextDueAt,
	}
}

// Apply copies the card's memory state onto a progress row.
func (c Card) Apply(p *learning.LearningProgress) {
	p.Stability = c.Stability
	p.Difficulty = c.Difficulty
	p.ElapsedDays = c.ElapsedDays
	p.ScheduledDays = c.ScheduledDays
	p.Reps = c.Reps
	p.Lapses = c.Lapses
	p.State = c.State
	p.LastReviewedAt = c.LastReview
	p.NextDueAt = c.Due
}

func (c Card) toFSRS() fsrs.Card {
	out := fsrs.NewCard()
	out.Stability = c.Stability
	out.Difficulty = c.Difficulty
	setNum(&out.ElapsedDays, c.ElapsedDays)
	setNum(&out.ScheduledDays, c.ScheduledDays)
	setNum(&out.Reps, c.Reps)
	setNum(&out.Lapses, c.Lapses)
	out.State = toFSRSState(c.State)
	out.Due = c.Due
	if c.LastReview != nil {
		out.LastReview = *c.LastReview
	}
	return out
}

func fromFSRS(fc fsrs.Card) Card {
	last := fc.LastReview.UTC()
	return Card{
		Stability:     fc.Stability,
		Difficulty:    fc.Difficulty,
		ElapsedDays:   int(fc.ElapsedDays),
		ScheduledDays: int(fc.ScheduledDays),
		Reps:          int(fc.Reps),
		Lapses:        int(fc.Lapses),
		State:         fromFSRSState(fc.State),
		LastReview:    &last,
		Due:           fc.Due.UTC(),
	}
}

func toFSRSState(s learning.CardState) fsrs.State {
	switch s {
	case learning.StateLearning:
		return fsrs.Learning
	case learning.StateReview:
		return fsrs.Review
	case learning.StateRelearning:
		return fsrs.Relearning
	}
	return fsrs.New
}

func fromFSRSState(s fsrs.State) learning.CardState {
	switch s {
	case fsrs.Learning:
		return learning.StateLearning
	case fsrs.Review:
		return learning.StateReview
	case fsrs.Relearning:
		return learning.StateRelearning
	}
	return learning.StateNew
}

var fsrsRatings = [4]fsrs.Rating{fsrs.Again, fsrs.Hard, fsrs.Good, fsrs.Easy}

// Outcome is the branch of the schedule chosen for one rating.
type Outcome struct {
	Card   Card
	Rating learning.Rating
}

// Schedule is every possible next state, indexed by rating-1.
type Schedule [4]Outcome

func (s Schedule) For(r learning.Rating) Outcome {
	if !r.Valid() {
		r = learning.RatingGood
	}
	return s[r-1]
}

// ElapsedDays is the whole number of days between the last review and now.
func ElapsedDays(last *time.Time, now time.Time) int {
	if last == nil || last.IsZero() || now.Before(*last) {
		return 0
	}
	return int(math.Floor(now.Sub(*last).Hours() / 24))
}

// Repeat computes the next state for all four ratings. It does not mutate c.
func (p Params) Repeat(c Card, now time.Time) Schedule {
	now = now.UTC()
	fc := c.toFSRS()
	if c.State != learning.StateNew && (c.LastReview == nil || now.Before(*c.LastReview)) {
		// no usable history; treat the review as same-day
		fc.LastReview = now
	}
	fp := p.scheduler()
	branches := fp.Repeat(fc, now)

	var s Schedule
	for i, r := range fsrsRatings {
		s[i] = Outcome{Card: fromFSRS(branches[r].Card), Rating: learning.Rating(i + 1)}
	}
	return s
}

// Next is Repeat narrowed to a single rating.
func (p Params) Next(c Card, r learning.Rating, now time.Time) Card {
	return p.Repeat(c, now).For(r).Card
}
