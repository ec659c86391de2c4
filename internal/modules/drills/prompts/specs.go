package prompts

const itemsContract = `Respond ONLY with a JSON object of the form {"items":[...]} containing exactly one item per input word, in input order. No markdown, no commentary.`

func registerAll() {
	RegisterSpec(Spec{
		Name:    PromptDrillStructural,
		Version: 1,
		System: `You write vocabulary drills for adult English learners.
Each drill anchors one target word in a short, natural sentence built on a core sentence pattern (subject-verb-object, relative clause, conditional, and so on).
` + itemsContract,
		User: `Mode: {{.Mode}}
Write {{.Count}} structural drills, one per word below. If context words are listed for a word, weave at least one of them into the sentence.

Each item: {"word": string, "sentence": string containing the word, "pattern": short name of the sentence pattern, "cloze": the sentence with the word replaced by "___"}

Words:
{{.WordsJSON}}`,
		Validators: []Validator{requireWords},
	})

	RegisterSpec(Spec{
		Name:    PromptDrillRapidRecall,
		Version: 1,
		System: `You write rapid-recall vocabulary drills for learners who already know these words well.
Drills are collocation-only and dense: no full sentences, no explanations.
` + itemsContract,
		User: `Mode: {{.Mode}}
Write {{.Count}} rapid-recall drills, one per word below.

Each item: {"word": string, "collocations": array of 3 to 5 short collocations that contain the word, "prompt": one collocation with the word replaced by "___"}

Words:
{{.WordsJSON}}`,
		Validators: []Validator{requireWords},
	})

	RegisterSpec(Spec{
		Name:    PromptDrillPhrase,
		Version: 1,
		System: `You write phrase drills meant to be read aloud or listened to.
Phrases are short, high-frequency, and easy to pronounce.
` + itemsContract,
		User: `Mode: {{.Mode}}
Write {{.Count}} phrase drills, one per word below.

Each item: {"word": string, "phrase": a 3 to 8 word phrase containing the word, "meaning": plain-language meaning of the phrase, "speak_text": the text a speech engine should read}

Words:
{{.WordsJSON}}`,
		Validators: []Validator{requireWords},
	})

	RegisterSpec(Spec{
		Name:    PromptVocabEnrichment,
		Version: 1,
		System: `You are a lexicographer building a learner dictionary.
` + itemsContract,
		User: `Enrich {{.Count}} words.

Each item: {"word": string, "definition": one-line learner definition, "definitions": array of up to 3 senses, "collocations": array of up to 6 collocations, "scenario_tags": array of up to 4 usage scenarios, "frequency_score": number 0..1 (1 = most common), "tier": one of "core", "support", "noise"}

Words:
{{.WordsJSON}}`,
		Validators: []Validator{requireWords},
	})
}
