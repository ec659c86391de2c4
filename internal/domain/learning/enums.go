package learning

import (
	"fmt"
	"strings"
)

// Track is a learning modality with its own spaced-repetition state per word.
type Track string

const (
	TrackVisual  Track = "visual"
	TrackAudio   Track = "audio"
	TrackContext Track = "context"
)

func ParseTrack(s string) (Track, error) {
	switch Track(strings.ToLower(strings.TrimSpace(s))) {
	case TrackVisual:
		return TrackVisual, nil
	case TrackAudio:
		return TrackAudio, nil
	case TrackContext:
		return TrackContext, nil
	}
	return "", fmt.Errorf("unknown track %q", s)
}

// Mode is the content sub-style a drill is rendered in. The set is closed;
// tables indexed by Mode are sized with ModeCount.
type Mode int

const (
	ModeSyntax Mode = iota
	ModeBlitz
	ModePhrase
	ModeAudio
	ModeContext
	ModeCount
)

var modeNames = [ModeCount]string{
	ModeSyntax:  "syntax",
	ModeBlitz:   "blitz",
	ModePhrase:  "phrase",
	ModeAudio:   "audio",
	ModeContext: "context",
}

var modeTracks = [ModeCount]Track{
	ModeSyntax:  TrackVisual,
	ModeBlitz:   TrackVisual,
	ModePhrase:  TrackVisual,
	ModeAudio:   TrackAudio,
	ModeContext: TrackContext,
}

func (m Mode) Valid() bool { return m >= 0 && m < ModeCount }

func (m Mode) String() string {
	if !m.Valid() {
		return fmt.Sprintf("mode(%d)", int(m))
	}
	return modeNames[m]
}

// Track is the spaced-repetition track a mode's drills are graded against.
func (m Mode) Track() Track {
	if !m.Valid() {
		return TrackVisual
	}
	return modeTracks[m]
}

func ParseMode(s string) (Mode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range modeNames {
		if name == s {
			return Mode(i), nil
		}
	}
	return 0, fmt.Errorf("unknown mode %q", s)
}

func AllModes() []Mode {
	out := make([]Mode, 0, ModeCount)
	for m := Mode(0); m < ModeCount; m++ {
		out = append(out, m)
	}
	return out
}

func (m Mode) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("invalid mode %d", int(m))
	}
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(b []byte) error {
	parsed, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

type Rating int

const (
	RatingAgain Rating = 1
	RatingHard  Rating = 2
	RatingGood  Rating = 3
	RatingEasy  Rating = 4
)

func (r Rating) Valid() bool { return r >= RatingAgain && r <= RatingEasy }

func (r Rating) String() string {
	switch r {
	case RatingAgain:
		return "again"
	case RatingHard:
		return "hard"
	case RatingGood:
		return "good"
	case RatingEasy:
		return "easy"
	}
	return fmt.Sprintf("rating(%d)", int(r))
}

type CardState int

const (
	StateNew CardState = iota
	StateLearning
	StateReview
	StateRelearning
)

func (s CardState) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateLearning:
		return "learning"
	case StateReview:
		return "review"
	case StateRelearning:
		return "relearning"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// PriorityTier ranks a word's value to the learner. Higher is more valuable.
type PriorityTier int

const (
	TierNoise PriorityTier = iota
	TierSupport
	TierCore
)

func (t PriorityTier) String() string {
	switch t {
	case TierNoise:
		return "noise"
	case TierSupport:
		return "support"
	case TierCore:
		return "core"
	}
	return fmt.Sprintf("tier(%d)", int(t))
}

func ParsePriorityTier(s string) (PriorityTier, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "core":
		return TierCore, true
	case "support":
		return TierSupport, true
	case "noise":
		return TierNoise, true
	}
	return TierNoise, false
}

// Dimension is one of the five bounded skill scores kept per progress row.
type Dimension string

const (
	DimVisual    Dimension = "V"
	DimCollocate Dimension = "C"
	DimAudio     Dimension = "A"
	DimContext   Dimension = "X"
	DimMixed     Dimension = "M"
)
