package generation

import (
	"github.com/yungbote/vocabdrill-backend/internal/domain/learning"
	"github.com/yungbote/vocabdrill-backend/internal/modules/drills/prompts"
)

// Family is the generator style a candidate is rendered with.
type Family int

const (
	FamilyStructural Family = iota
	FamilyRapidRecall
	FamilyPhrase
	FamilyCount
)

var familyNames = [FamilyCount]string{
	FamilyStructural:  "structural",
	FamilyRapidRecall: "rapid_recall",
	FamilyPhrase:      "phrase",
}

var familyPrompts = [FamilyCount]prompts.PromptName{
	FamilyStructural:  prompts.PromptDrillStructural,
	FamilyRapidRecall: prompts.PromptDrillRapidRecall,
	FamilyPhrase:      prompts.PromptDrillPhrase,
}

func (f Family) String() string {
	if f < 0 || f >= FamilyCount {
		return "unknown"
	}
	return familyNames[f]
}

func (f Family) Prompt() prompts.PromptName { return familyPrompts[f] }

type routeRule int

const (
	routeUnset routeRule = iota
	// structural until the card is stable, rapid recall after
	routeByStability
	routePhrase
)

// modeRoutes must have an entry for every mode; see TestEveryModeRouted.
var modeRoutes = [learning.ModeCount]routeRule{
	learning.ModeSyntax:  routeByStability,
	learning.ModeBlitz:   routeByStability,
	learning.ModePhrase:  routePhrase,
	learning.ModeAudio:   routePhrase,
	learning.ModeContext: routeByStability,
}

// Router assigns each candidate to exactly one family. It holds no mutable
// state and is safe for concurrent use.
type Router struct {
	// RapidRecallStability is the stability, in days, at which a review
	// card graduates from structural to rapid-recall drills.
	RapidRecallStability float64
}

func DefaultRouter() Router { return Router{RapidRecallStability: 21} }

func (r Router) Route(mode learning.Mode, c learning.DrillCandidate) Family {
	rule := routeByStability
	if mode.Valid() {
		rule = modeRoutes[mode]
	}
	switch rule {
	case routePhrase:
		return FamilyPhrase
	default:
		if c.Type == learning.CandidateReview && c.Memory != nil &&
			c.Memory.State == learning.StateReview && c.Memory.Stability >= r.RapidRecallStability {
			return FamilyRapidRecall
		}
		return FamilyStructural
	}
}

// CandidateGroup is the set of candidates one family renders in one batch.
type CandidateGroup struct {
	Family     Family
	Candidates []learning.DrillCandidate
}

// Group buckets candidates by family, preserving input order within each
// group. Empty families are omitted.
func (r Router) Group(mode learning.Mode, cands []learning.DrillCandidate) []CandidateGroup {
	var buckets [FamilyCount][]learning.DrillCandidate
	for _, c := range cands {
		f := r.Route(mode, c)
		buckets[f] = append(buckets[f], c)
	}
	out := make([]CandidateGroup, 0, FamilyCount)
	for f := Family(0); f < FamilyCount; f++ {
		if len(buckets[f]) > 0 {
			out = append(out, CandidateGroup{Family: f, Candidates: buckets[f]})
		}
	}
	return out
}
