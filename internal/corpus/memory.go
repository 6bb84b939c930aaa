package corpus

import (
	"context"
	"fmt"

	apperrors "github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/pkg/errors"
)

// MemorySource serves a fixed slice of records. Answers whose Question is nil
// are joined to the matching question by QuestionID.
type MemorySource struct {
	questions []Question
	answers   []Answer
}

// NewMemorySource copies the given records.
func NewMemorySource(questions []Question, answers []Answer) *MemorySource {
	byID := make(map[int64]*Question, len(questions))
	qs := make([]Question, len(questions))
	copy(qs, questions)
	for i := range qs {
		byID[qs[i].ID] = &qs[i]
	}
	as := make([]Answer, len(answers))
	copy(as, answers)
	for i := range as {
		if as[i].Question == nil {
			as[i].Question = byID[as[i].QuestionID]
		}
	}
	return &MemorySource{questions: qs, answers: as}
}

func (m *MemorySource) Count(_ context.Context, kind Kind) (int, error) {
	switch kind {
	case KindQuestion:
		return len(m.questions), nil
	case KindAnswer:
		return len(m.answers), nil
	default:
		return 0, fmt.Errorf("counting %s: %w", kind, apperrors.ErrInvalidArgument)
	}
}

func (m *MemorySource) IterateQuestions(ctx context.Context, batchSize int, fn func([]Question) error) error {
	return iterate(ctx, m.questions, batchSize, fn)
}

func (m *MemorySource) IterateAnswers(ctx context.Context, batchSize int, fn func([]Answer) error) error {
	return iterate(ctx, m.answers, batchSize, fn)
}

func iterate[T any](ctx context.Context, records []T, batchSize int, fn func([]T) error) error {
	if batchSize <= 0 {
		return fmt.Errorf("batch size %d: %w", batchSize, apperrors.ErrInvalidArgument)
	}
	for start := 0; start < len(records); start += batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+batchSize, len(records))
		batch := make([]T, end-start)
		copy(batch, records[start:end])
		if err := fn(batch); err != nil {
			return err
		}
	}
	return nil
}
