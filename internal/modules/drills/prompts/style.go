package prompts

import "strings"

const styleMarker = "VOCABDRILL_PROMPT_STYLE_V1"

// applyStyle prepends the shared JSON-output guidance to a system prompt.
// Applying it twice is a no-op.
func applyStyle(system string) string {
	base := strings.TrimSpace(system)
	if base == "" || strings.Contains(base, styleMarker) {
		return base
	}

	summary := ""
	for _, line := range strings.Split(base, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			summary = trimmed
			break
		}
	}

	var b strings.Builder
	b.WriteString(styleMarker)
	b.WriteString("\nYou write vocabulary practice material for an adult learner.")
	if summary != "" {
		b.WriteString("\nTask summary: " + summary)
	}
	b.WriteString("\nOutput only the requested JSON object. Never wrap it in markdown fences.")
	b.WriteString("\nUse each input word exactly as given; do not substitute synonyms or inflections.")
	b.WriteString("\nIf a word cannot be used as asked, still return its item with your best attempt.")
	b.WriteString("\n---\n")
	b.WriteString(base)
	return b.String()
}
