package prompts

type PromptName string

const (
	// Drill generation, one per family
	PromptDrillStructural  PromptName = "drill_structural"
	PromptDrillRapidRecall PromptName = "drill_rapid_recall"
	PromptDrillPhrase      PromptName = "drill_phrase"

	// Offline enrichment
	PromptVocabEnrichment PromptName = "vocab_enrichment"
)
