package encoder

import (
	"context"
	"errors"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/internal/corpus"
)

// Corpus is the encoded answer collection experts index. Entry i of every
// slice describes the same answer.
type Corpus struct {
	DocIDs    []int64
	Bags      []Bag
	Sequences [][]int
}

func (c *Corpus) Len() int {
	if c == nil {
		return 0
	}
	return len(c.DocIDs)
}

// EncodeAnswerCorpus streams every answer in src into a Corpus. Sequences are the
// unpadded token ids, kept for experts that look at word order.
func (e *Encoder) EncodeAnswerCorpus(ctx context.Context, src corpus.Source, batchSize int) (*Corpus, error) {
	total, err := src.Count(ctx, corpus.KindAnswer)
	if err != nil {
		return nil, fmt.Errorf("counting answers: %w", err)
	}
	c := &Corpus{
		DocIDs:    make([]int64, 0, total),
		Bags:      make([]Bag, 0, total),
		Sequences: make([][]int, 0, total),
	}
	err = src.IterateAnswers(ctx, batchSize, func(batch []corpus.Answer) error {
		for _, a := range batch {
			ids := e.IDs(&a.Content)
			c.DocIDs = append(c.DocIDs, a.ID)
			c.Bags = append(c.Bags, BagOf(ids))
			c.Sequences = append(c.Sequences, ids)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("encoding answers: %w", err)
	}
	return c, nil
}

// Lengths are the fixed sequence lengths of a training set.
type Lengths struct {
	Question int
	Answer   int
}

// TrainingSet pairs every answer with its question and category, padded for
// sequence models.
type TrainingSet struct {
	AnswerIDs  []int64
	Answers    [][]int
	Questions  [][]int
	Categories []int
}

func (t *TrainingSet) Len() int { return len(t.AnswerIDs) }

var errLimitReached = errors.New("training set limit reached")

// TrainingSet encodes up to limit answers (all when limit is negative). The
// question sequence is the title followed by the content.
func (e *Encoder) TrainingSet(ctx context.Context, src corpus.Source, batchSize int, lengths Lengths, padding Padding, limit int) (*TrainingSet, error) {
	ts := &TrainingSet{}
	if limit == 0 {
		return ts, nil
	}
	padID := e.vocab.PadID()
	err := src.IterateAnswers(ctx, batchSize, func(batch []corpus.Answer) error {
		for _, a := range batch {
			var questionIDs []int
			category := e.EncodeCategory(nil)
			if q := a.Question; q != nil {
				questionIDs = append(e.IDs(&q.Title), e.IDs(q.Content)...)
				category = e.EncodeCategory(q.Category)
			}
			ts.AnswerIDs = append(ts.AnswerIDs, a.ID)
			ts.Answers = append(ts.Answers, Pad(e.IDs(&a.Content), lengths.Answer, padID, padding))
			ts.Questions = append(ts.Questions, Pad(questionIDs, lengths.Question, padID, padding))
			ts.Categories = append(ts.Categories, category)
			if limit > 0 && ts.Len() >= limit {
				return errLimitReached
			}
		}
		return nil
	})
	if err != nil && !errors.Is(err, errLimitReached) {
		return nil, fmt.Errorf("building training set: %w", err)
	}
	return ts, nil
}
