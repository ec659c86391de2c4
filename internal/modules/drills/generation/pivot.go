package generation

import (
	"encoding/json"
	"strings"

	"github.com/yungbote/vocabdrill-backend/internal/domain/learning"
)

// Pivot builds the minimal drill served when generated content fails its
// schema check. It is built only from catalog data and always validates.
func Pivot(f Family, c learning.DrillCandidate) json.RawMessage {
	word := strings.TrimSpace(c.Word)
	def := strings.TrimSpace(c.Definition)
	if def == "" {
		def = "a word to practice"
	}
	var v any
	switch f {
	case FamilyRapidRecall:
		v = rapidRecallItem{
			Word:         word,
			Collocations: []string{word, "use " + word},
			Prompt:       "use ___",
		}
	case FamilyPhrase:
		v = phraseItem{
			Word:      word,
			Phrase:    word,
			Meaning:   def,
			SpeakText: word,
		}
	default:
		v = structuralItem{
			Word:     word,
			Sentence: word + ": " + def,
			Pattern:  "definition",
			Cloze:    "___: " + def,
		}
	}
	raw, _ := json.Marshal(v)
	return raw
}
