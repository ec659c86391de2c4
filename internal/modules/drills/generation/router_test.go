package generation

import (
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/vocabdrill-backend/internal/domain/learning"
)

func TestEveryModeRouted(t *testing.T) {
	for _, m := range learning.AllModes() {
		if modeRoutes[m] == routeUnset {
			t.Fatalf("mode %s has no route", m)
		}
	}
	for f := Family(0); f < FamilyCount; f++ {
		if familyNames[f] == "" || familyPrompts[f] == "" {
			t.Fatalf("family %d incomplete", f)
		}
	}
}

func review(stability float64) learning.DrillCandidate {
	return learning.DrillCandidate{
		VocabID: uuid.New(),
		Word:    "w",
		Type:    learning.CandidateReview,
		Memory:  &learning.MemorySnapshot{State: learning.StateReview, Stability: stability},
	}
}

func TestRoute(t *testing.T) {
	r := DefaultRouter()
	cases := []struct {
		name string
		mode learning.Mode
		c    learning.DrillCandidate
		want Family
	}{
		{"new word", learning.ModeSyntax, learning.DrillCandidate{Type: learning.CandidateNew}, FamilyStructural},
		{"unstable review", learning.ModeSyntax, review(3), FamilyStructural},
		{"stable review", learning.ModeBlitz, review(30), FamilyRapidRecall},
		{"relearning stays structural", learning.ModeSyntax, learning.DrillCandidate{
			Type: learning.CandidateReview, Memory: &learning.MemorySnapshot{State: learning.StateRelearning, Stability: 40},
		}, FamilyStructural},
		{"audio", learning.ModeAudio, review(30), FamilyPhrase},
		{"phrase new", learning.ModePhrase, learning.DrillCandidate{Type: learning.CandidateNew}, FamilyPhrase},
	}
	for _, tc := range cases {
		if got := r.Route(tc.mode, tc.c); got != tc.want {
			t.Fatalf("%s: got %s want %s", tc.name, got, tc.want)
		}
	}
}

func TestGroupPreservesOrder(t *testing.T) {
	r := DefaultRouter()
	a := learning.DrillCandidate{Word: "a", Type: learning.CandidateNew}
	b := review(50)
	b.Word = "b"
	c := learning.DrillCandidate{Word: "c", Type: learning.CandidateNew}
	groups := r.Group(learning.ModeSyntax, []learning.DrillCandidate{a, b, c})
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if groups[0].Family != FamilyStructural || groups[0].Candidates[0].Word != "a" || groups[0].Candidates[1].Word != "c" {
		t.Fatalf("unexpected structural group %+v", groups[0])
	}
	if groups[1].Family != FamilyRapidRecall || len(groups[1].Candidates) != 1 {
		t.Fatalf("unexpected rapid group %+v", groups[1])
	}
}

func TestPivotAlwaysValidates(t *testing.T) {
	c := learning.DrillCandidate{Word: "Lucid", Definition: "clear and easy to understand"}
	for f := Family(0); f < FamilyCount; f++ {
		if err := Validate(f, c.Word, Pivot(f, c)); err != nil {
			t.Fatalf("pivot for %s invalid: %v", f, err)
		}
	}
}
