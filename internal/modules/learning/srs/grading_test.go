package srs

import (
	"math/rand"
	"testing"

	"github.com/yungbote/vocabdrill-backend/internal/domain/learning"
)

func TestEffectiveRatingCrossTrack(t *testing.T) {
	cases := []struct {
		name    string
		mode    learning.Mode
		track   learning.Track
		rating  learning.Rating
		want    learning.Rating
		capped  bool
		grader  ImplicitGrader
		latency int
	}{
		{"same track easy", learning.ModeSyntax, learning.TrackVisual, learning.RatingEasy, learning.RatingEasy, false, IdentityGrader, 0},
		{"cross track easy", learning.ModeAudio, learning.TrackVisual, learning.RatingEasy, learning.RatingGood, true, IdentityGrader, 0},
		{"cross track good", learning.ModeAudio, learning.TrackVisual, learning.RatingGood, learning.RatingGood, false, IdentityGrader, 0},
		{"cross track hard", learning.ModeContext, learning.TrackAudio, learning.RatingHard, learning.RatingHard, false, IdentityGrader, 0},
		{"implicit upgrade then cap", learning.ModeContext, learning.TrackVisual, learning.RatingGood, learning.RatingGood, true, LatencyGrader(8000, 1500), 900},
		{"implicit upgrade same track", learning.ModeBlitz, learning.TrackVisual, learning.RatingGood, learning.RatingEasy, false, LatencyGrader(8000, 1500), 900},
	}
	for _, tc := range cases {
		g := EffectiveRating(GradeInput{Rating: tc.rating, Mode: tc.mode, ResponseTimeMs: tc.latency}, tc.track, tc.grader)
		if g.Effective != tc.want || g.CrossTrackCapped != tc.capped {
			t.Fatalf("%s: got %s capped=%v want %s capped=%v", tc.name, g.Effective, g.CrossTrackCapped, tc.want, tc.capped)
		}
		if g.Raw != tc.rating {
			t.Fatalf("%s: raw rating rewritten to %s", tc.name, g.Raw)
		}
	}
}

func TestLatencyGrader(t *testing.T) {
	g := LatencyGrader(8000, 1500)
	if got := g(GradeInput{Rating: learning.RatingEasy, ResponseTimeMs: 9000}); got != learning.RatingGood {
		t.Fatalf("slow easy: got %s", got)
	}
	if got := g(GradeInput{Rating: learning.RatingGood, ResponseTimeMs: 3000, Retried: true}); got != learning.RatingHard {
		t.Fatalf("retried good: got %s", got)
	}
	if got := g(GradeInput{Rating: learning.RatingHard, ResponseTimeMs: 100}); got != learning.RatingHard {
		t.Fatalf("hard is never adjusted: got %s", got)
	}
}

func TestDimensionTableIsTotal(t *testing.T) {
	for _, track := range []learning.Track{learning.TrackVisual, learning.TrackAudio, learning.TrackContext} {
		for _, mode := range learning.AllModes() {
			if d := DimensionFor(track, mode); d == "" {
				t.Fatalf("no dimension for (%s, %s)", track, mode)
			}
		}
	}
	if d := DimensionFor(learning.TrackVisual, learning.ModeSyntax); d != learning.DimVisual {
		t.Fatalf("(visual, syntax)=%s", d)
	}
	if d := DimensionFor(learning.TrackAudio, learning.ModeAudio); d != learning.DimAudio {
		t.Fatalf("(audio, audio)=%s", d)
	}
}

func TestMasteryStaysClamped(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	p := &learning.LearningProgress{}
	tracks := []learning.Track{learning.TrackVisual, learning.TrackAudio, learning.TrackContext}
	for i := 0; i < 2000; i++ {
		track := tracks[rng.Intn(len(tracks))]
		mode := learning.Mode(rng.Intn(int(learning.ModeCount)))
		r := learning.Rating(rng.Intn(4) + 1)
		ApplyDimension(p, DimensionFor(track, mode), r)
		p.MasteryScore = Mastery(p)
		if p.MasteryScore < 0 || p.MasteryScore > 100 {
			t.Fatalf("step %d: mastery %v out of range", i, p.MasteryScore)
		}
		for _, v := range []float64{p.DimV, p.DimC, p.DimA, p.DimX, p.DimM} {
			if v < DimensionMin || v > DimensionMax {
				t.Fatalf("step %d: dimension %v out of range", i, v)
			}
		}
	}

	full := &learning.LearningProgress{DimV: 100, DimC: 100, DimA: 100, DimX: 100, DimM: 100}
	if got := Mastery(full); got != 100 {
		t.Fatalf("full mastery=%v", got)
	}
}

func TestApplyDimensionTouchesOne(t *testing.T) {
	p := &learning.LearningProgress{DimV: 50, DimC: 50, DimA: 50, DimX: 50, DimM: 50}
	ApplyDimension(p, learning.DimAudio, learning.RatingAgain)
	if p.DimA != 45 || p.DimV != 50 || p.DimC != 50 || p.DimX != 50 || p.DimM != 50 {
		t.Fatalf("unexpected dimensions: %+v", p)
	}
	ApplyDimension(p, learning.DimAudio, learning.RatingHard)
	if p.DimA != 50 {
		t.Fatalf("hard should credit +5, got %v", p.DimA)
	}
}
