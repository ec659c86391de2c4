package prompts

// Input is a superset of all fields any prompt might need.
// Missing fields render empty strings (templates use missingkey=zero).
type Input struct {
	Mode      string
	Count     int
	WordsJSON string // [{word, definition, context_words}]
	Track     string
	Scenario  string
}
