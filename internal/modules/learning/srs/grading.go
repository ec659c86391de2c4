package srs

import (
	"math"

	"github.com/yungbote/vocabdrill-backend/internal/domain/learning"
)

// GradeInput is what an implicit grader sees of a single answer.
type GradeInput struct {
	Rating         learning.Rating
	ResponseTimeMs int
	Retried        bool
	Mode           learning.Mode
}

// ImplicitGrader may adjust a rating from answer latency before it is applied.
type ImplicitGrader func(GradeInput) learning.Rating

// IdentityGrader leaves the rating unchanged.
func IdentityGrader(in GradeInput) learning.Rating { return in.Rating }

// LatencyGrader downgrades slow or retried correct answers by one step and
// upgrades very fast first-try Good answers to Easy.
func LatencyGrader(slowMs, fastMs int) ImplicitGrader {
	return func(in GradeInput) learning.Rating {
		if in.Rating < learning.RatingGood || in.ResponseTimeMs <= 0 {
			return in.Rating
		}
		switch {
		case in.Retried || (slowMs > 0 && in.ResponseTimeMs >= slowMs):
			return in.Rating - 1
		case in.Rating == learning.RatingGood && fastMs > 0 && in.ResponseTimeMs <= fastMs:
			return learning.RatingEasy
		}
		return in.Rating
	}
}

// Grading records how the raw rating became the applied one.
type Grading struct {
	Raw              learning.Rating `json:"raw"`
	Effective        learning.Rating `json:"effective"`
	ImplicitAdjusted bool            `json:"implicit_adjusted"`
	CrossTrackCapped bool            `json:"cross_track_capped"`
}

// EffectiveRating runs the implicit grader, then caps Easy to Good when the
// answer was given under a different track than the content targets.
func EffectiveRating(in GradeInput, reviewTrack learning.Track, grader ImplicitGrader) Grading {
	g := Grading{Raw: in.Rating, Effective: in.Rating}
	if grader != nil && in.Rating >= learning.RatingGood && in.ResponseTimeMs > 0 {
		adj := grader(in)
		if adj.Valid() && adj != in.Rating {
			g.Effective = adj
			g.ImplicitAdjusted = true
		}
	}
	if in.Mode.Track() != reviewTrack && g.Effective == learning.RatingEasy {
		g.Effective = learning.RatingGood
		g.CrossTrackCapped = true
	}
	return g
}

const (
	DimensionStep = 5.0
	DimensionMin  = 0.0
	DimensionMax  = 100.0
)

// dimensionTable maps (review track, content mode) to the dimension the
// outcome is credited to. Exposure under a track the mode does not target
// lands in the mixed dimension.
var dimensionTable = map[learning.Track][learning.ModeCount]learning.Dimension{
	learning.TrackVisual: {
		learning.ModeSyntax:  learning.DimVisual,
		learning.ModeBlitz:   learning.DimCollocate,
		learning.ModePhrase:  learning.DimCollocate,
		learning.ModeAudio:   learning.DimMixed,
		learning.ModeContext: learning.DimMixed,
	},
	learning.TrackAudio: {
		learning.ModeSyntax:  learning.DimMixed,
		learning.ModeBlitz:   learning.DimMixed,
		learning.ModePhrase:  learning.DimMixed,
		learning.ModeAudio:   learning.DimAudio,
		learning.ModeContext: learning.DimMixed,
	},
	learning.TrackContext: {
		learning.ModeSyntax:  learning.DimMixed,
		learning.ModeBlitz:   learning.DimMixed,
		learning.ModePhrase:  learning.DimMixed,
		learning.ModeAudio:   learning.DimMixed,
		learning.ModeContext: learning.DimContext,
	},
}

func DimensionFor(track learning.Track, mode learning.Mode) learning.Dimension {
	row, ok := dimensionTable[track]
	if !ok || !mode.Valid() {
		return learning.DimMixed
	}
	return row[mode]
}

// ApplyDimension moves exactly one dimension by one step and clamps it.
func ApplyDimension(p *learning.LearningProgress, dim learning.Dimension, r learning.Rating) {
	v := p.Dim(dim)
	if v == nil {
		return
	}
	delta := DimensionStep
	if r == learning.RatingAgain {
		delta = -DimensionStep
	}
	*v = clampDimension(*v + delta)
}

var masteryWeights = []struct {
	dim    learning.Dimension
	weight float64
}{
	{learning.DimVisual, 0.25},
	{learning.DimCollocate, 0.20},
	{learning.DimAudio, 0.20},
	{learning.DimContext, 0.20},
	{learning.DimMixed, 0.15},
}

// Mastery is the weighted mean of the five dimensions, in [0,100].
func Mastery(p *learning.LearningProgress) float64 {
	if p == nil {
		return 0
	}
	sum := 0.0
	for _, mw := range masteryWeights {
		sum += mw.weight * clampDimension(*p.Dim(mw.dim))
	}
	return math.Round(sum*100) / 100
}

func clampDimension(v float64) float64 {
	return math.Min(math.Max(v, DimensionMin), DimensionMax)
}
