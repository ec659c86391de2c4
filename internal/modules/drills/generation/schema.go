package generation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var ErrSchema = errors.New("drill failed schema check")

type structuralItem struct {
	Word     string `json:"word"`
	Sentence string `json:"sentence"`
	Pattern  string `json:"pattern"`
	Cloze    string `json:"cloze"`
}

type rapidRecallItem struct {
	Word         string   `json:"word"`
	Collocations []string `json:"collocations"`
	Prompt       string   `json:"prompt"`
}

type phraseItem struct {
	Word      string `json:"word"`
	Phrase    string `json:"phrase"`
	Meaning   string `json:"meaning"`
	SpeakText string `json:"speak_text"`
}

// Validate checks one generated item against its family's shape for word.
func Validate(f Family, word string, raw json.RawMessage) error {
	word = strings.ToLower(strings.TrimSpace(word))
	contains := func(s string) bool { return strings.Contains(strings.ToLower(s), word) }
	if w := itemWord(raw); w != "" && w != word {
		return fmt.Errorf("%w: item is for %q, not %q", ErrSchema, w, word)
	}

	switch f {
	case FamilyStructural:
		var it structuralItem
		if err := strictDecode(raw, &it); err != nil {
			return err
		}
		if !contains(it.Sentence) {
			return fmt.Errorf("%w: sentence does not use %q", ErrSchema, word)
		}
		if strings.TrimSpace(it.Pattern) == "" || !strings.Contains(it.Cloze, "___") {
			return fmt.Errorf("%w: missing pattern or cloze", ErrSchema)
		}
	case FamilyRapidRecall:
		var it rapidRecallItem
		if err := strictDecode(raw, &it); err != nil {
			return err
		}
		if len(it.Collocations) < 2 {
			return fmt.Errorf("%w: need at least 2 collocations", ErrSchema)
		}
		for _, c := range it.Collocations {
			if !contains(c) {
				return fmt.Errorf("%w: collocation %q does not use %q", ErrSchema, c, word)
			}
		}
		if !strings.Contains(it.Prompt, "___") {
			return fmt.Errorf("%w: prompt has no blank", ErrSchema)
		}
	case FamilyPhrase:
		var it phraseItem
		if err := strictDecode(raw, &it); err != nil {
			return err
		}
		if !contains(it.Phrase) || strings.TrimSpace(it.Meaning) == "" {
			return fmt.Errorf("%w: phrase must use %q and carry a meaning", ErrSchema, word)
		}
	default:
		return fmt.Errorf("%w: unknown family %d", ErrSchema, int(f))
	}
	return nil
}

func strictDecode(raw json.RawMessage, out any) error {
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", ErrSchema, err)
	}
	return nil
}

// itemWord reads the "word" field of a generated item, if any.
func itemWord(raw json.RawMessage) string {
	var probe struct {
		Word string `json:"word"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(probe.Word))
}
