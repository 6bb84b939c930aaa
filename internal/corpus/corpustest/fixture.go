// Package corpustest provides a small, fixed Q/A corpus for tests.
package corpustest

import "github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/internal/corpus"

func str(s string) *string { return &s }

// Questions returns four questions; two share a category, one has none.
func Questions() []corpus.Question {
	return []corpus.Question{
		{ID: 1, Title: "How do magnets work", Content: str("I wonder about magnets"), Category: str("Science")},
		{ID: 2, Title: "Best pizza", Content: nil, Category: nil},
		{ID: 3, Title: "Why is the sky blue", Content: nil, Category: str("Science")},
		{ID: 4, Title: "Cheap flights", Content: str("to Paris"), Category: str("Travel")},
	}
}

// Answers returns one answer per question.
func Answers() []corpus.Answer {
	return []corpus.Answer{
		{ID: 10, Content: "Magnets work by magnetic fields", IsBest: true, QuestionID: 1},
		{ID: 11, Content: "Try the pizza place downtown", IsBest: true, QuestionID: 2},
		{ID: 12, Content: "Rayleigh scattering makes the sky blue", IsBest: true, QuestionID: 3},
		{ID: 13, Content: "Book flights early", IsBest: false, QuestionID: 4},
	}
}

// Source returns a MemorySource over Questions and Answers.
func Source() *corpus.MemorySource {
	return corpus.NewMemorySource(Questions(), Answers())
}

// Larger returns a corpus of n answers spread over a handful of topics, for
// exercising experts that need more than a few documents.
func Larger(n int) *corpus.MemorySource {
	topics := []struct {
		category string
		title    string
		answer   string
	}{
		{"Science", "why is the sky blue at noon", "rayleigh scattering of sunlight makes the sky look blue"},
		{"Science", "how do magnets attract metal", "magnetic fields align the domains inside the metal"},
		{"Food", "where to find good pizza", "the pizza place downtown bakes pizza in a wood oven"},
		{"Food", "how to bake sourdough bread", "feed the starter then bake the bread in a hot oven"},
		{"Travel", "cheap flights to paris", "book flights early and fly midweek to paris"},
		{"Travel", "what to pack for a beach trip", "pack sunscreen towels and a hat for the beach"},
	}
	questions := make([]corpus.Question, 0, n)
	answers := make([]corpus.Answer, 0, n)
	for i := 0; i < n; i++ {
		t := topics[i%len(topics)]
		qid := int64(i + 1)
		questions = append(questions, corpus.Question{
			ID:       qid,
			Title:    t.title,
			Category: str(t.category),
		})
		answers = append(answers, corpus.Answer{
			ID:         100 + qid,
			Content:    t.answer,
			IsBest:     true,
			QuestionID: qid,
		})
	}
	return corpus.NewMemorySource(questions, answers)
}
