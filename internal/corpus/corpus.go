// Package corpus exposes read-only, batched access to the stored question,
// answer and category records that vocabularies and expert indices are built
// from.
package corpus

import "context"

// Kind selects which record type to count or iterate.
type Kind int

const (
	KindQuestion Kind = iota
	KindAnswer
)

func (k Kind) String() string {
	switch k {
	case KindQuestion:
		return "question"
	case KindAnswer:
		return "answer"
	default:
		return "unknown"
	}
}

// Question is a stored question. Content and Category are optional.
type Question struct {
	ID       int64
	Title    string
	Content  *string
	Category *string
}

// Answer is a stored answer. Question is populated by sources that can join
// the parent question cheaply; it may be nil.
type Answer struct {
	ID         int64
	Content    string
	IsBest     bool
	QuestionID int64
	Question   *Question
}

// Source is the corpus collaborator. Iteration is ordered by primary key,
// restartable on every call, and never holds more than batchSize records in
// a single callback.
type Source interface {
	Count(ctx context.Context, kind Kind) (int, error)
	IterateQuestions(ctx context.Context, batchSize int, fn func([]Question) error) error
	IterateAnswers(ctx context.Context, batchSize int, fn func([]Answer) error) error
}

// Fingerprint summarises a corpus snapshot by its record counts.
type Fingerprint struct {
	Questions int `json:"questions"`
	Answers   int `json:"answers"`
}

// TakeFingerprint counts questions and answers in src.
func TakeFingerprint(ctx context.Context, src Source) (Fingerprint, error) {
	q, err := src.Count(ctx, KindQuestion)
	if err != nil {
		return Fingerprint{}, err
	}
	a, err := src.Count(ctx, KindAnswer)
	if err != nil {
		return Fingerprint{}, err
	}
	return Fingerprint{Questions: q, Answers: a}, nil
}
