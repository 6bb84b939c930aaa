// Package encoder turns raw text and corpus records into the numeric forms
// consumed by retrieval experts and training pipelines. Every function is
// deterministic for a given Vocabulary.
package encoder

import (
	"sort"

	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/internal/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/internal/vocabulary"
)

// TermCount is one entry of a bag of tokens.
type TermCount struct {
	ID    int `json:"id"`
	Count int `json:"count"`
}

// Bag is a sparse bag of tokens sorted by ID; every Count is at least 1.
type Bag []TermCount

// Len is the total number of tokens in the bag.
func (b Bag) Len() int {
	n := 0
	for _, tc := range b {
		n += tc.Count
	}
	return n
}

// Padding selects which side of a short sequence receives pad ids and which
// side of a long one is cut.
type Padding int

const (
	// PadPost keeps the first maxLen tokens and pads on the right.
	PadPost Padding = iota
	// PadPre keeps the last maxLen tokens and pads on the left.
	PadPre
)

// ParsePadding maps "pre" to PadPre; anything else is PadPost.
func ParsePadding(s string) Padding {
	if s == "pre" {
		return PadPre
	}
	return PadPost
}

// Encoder is safe for concurrent use.
type Encoder struct {
	vocab *vocabulary.Vocabulary
}

func New(vocab *vocabulary.Vocabulary) *Encoder {
	return &Encoder{vocab: vocab}
}

func (e *Encoder) Vocabulary() *vocabulary.Vocabulary { return e.vocab }

// IDs maps text to token ids in order, unknown tokens included.
func (e *Encoder) IDs(text *string) []int {
	tokens := tokenizer.TokenizePtr(text)
	if len(tokens) == 0 {
		return nil
	}
	ids := make([]int, len(tokens))
	for i, tok := range tokens {
		ids[i] = e.vocab.TokenToID(tok)
	}
	return ids
}

// EncodeBOW returns the sparse bag of tokens for text. A nil text encodes
// to an empty bag.
func (e *Encoder) EncodeBOW(text *string) Bag {
	return BagOf(e.IDs(text))
}

// EncodeBOWString is EncodeBOW for a non-optional field.
func (e *Encoder) EncodeBOWString(text string) Bag {
	return e.EncodeBOW(&text)
}

// EncodeSequence returns exactly maxLen ids: the token ids of text, cut or
// filled with the vocabulary's pad id according to padding. A negative
// maxLen is treated as zero.
func (e *Encoder) EncodeSequence(text *string, maxLen int, padding Padding) []int {
	return Pad(e.IDs(text), maxLen, e.vocab.PadID(), padding)
}

func (e *Encoder) EncodeCategory(category *string) int {
	return e.vocab.CategoryToID(category)
}

// BagOf aggregates ids into a Bag.
func BagOf(ids []int) Bag {
	if len(ids) == 0 {
		return Bag{}
	}
	counts := make(map[int]int, len(ids))
	for _, id := range ids {
		counts[id]++
	}
	bag := make(Bag, 0, len(counts))
	for id, c := range counts {
		bag = append(bag, TermCount{ID: id, Count: c})
	}
	sort.Slice(bag, func(i, j int) bool { return bag[i].ID < bag[j].ID })
	return bag
}

// Pad cuts or fills ids to exactly maxLen entries.
func Pad(ids []int, maxLen, padID int, padding Padding) []int {
	if maxLen < 0 {
		maxLen = 0
	}
	out := make([]int, maxLen)
	if len(ids) >= maxLen {
		if padding == PadPre {
			copy(out, ids[len(ids)-maxLen:])
		} else {
			copy(out, ids[:maxLen])
		}
		return out
	}
	fill := maxLen - len(ids)
	if padding == PadPre {
		for i := 0; i < fill; i++ {
			out[i] = padID
		}
		copy(out[fill:], ids)
		return out
	}
	copy(out, ids)
	for i := len(ids); i < maxLen; i++ {
		out[i] = padID
	}
	return out
}
