package encoder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/internal/cachestore"
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/internal/corpus/corpustest"
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/internal/vocabulary"
)

func strp(s string) *string { return &s }

func newEncoder(t *testing.T) *Encoder {
	t.Helper()
	v, err := vocabulary.BuildOrLoad(context.Background(), corpustest.Source(), cachestore.NewMemoryStore(),
		vocabulary.Options{BatchSize: 2})
	require.NoError(t, err)
	return New(v)
}

func TestEncodeBOW(t *testing.T) {
	e := newEncoder(t)
	v := e.Vocabulary()

	bag := e.EncodeBOWString("The sky, the SKY and the zeppelin")
	want := Bag{
		{ID: v.TokenToID("the"), Count: 3},
		{ID: v.TokenToID("sky"), Count: 2},
		{ID: v.UnknownTokenID(), Count: 2},
	}
	assert.ElementsMatch(t, want, bag)
	assert.Equal(t, 7, bag.Len())
	for i := 1; i < len(bag); i++ {
		assert.Less(t, bag[i-1].ID, bag[i].ID)
	}
}

func TestEncodeIsDeterministic(t *testing.T) {
	e := newEncoder(t)
	text := "why do magnets make the sky blue and the pizza cheap"
	assert.Equal(t, e.EncodeBOW(&text), e.EncodeBOW(&text))
	assert.Equal(t, e.EncodeSequence(&text, 7, PadPost), e.EncodeSequence(&text, 7, PadPost))
}

func TestEncodeNilIsEmpty(t *testing.T) {
	e := newEncoder(t)
	assert.Empty(t, e.EncodeBOW(nil))
	assert.Equal(t, []int{e.Vocabulary().PadID(), e.Vocabulary().PadID()}, e.EncodeSequence(nil, 2, PadPost))
}

func TestUnknownOnlyQuery(t *testing.T) {
	e := newEncoder(t)
	bag := e.EncodeBOWString("xylophone quux")
	require.Len(t, bag, 1)
	assert.Equal(t, TermCount{ID: e.Vocabulary().UnknownTokenID(), Count: 2}, bag[0])
}

func TestEncodeSequenceLengthLaw(t *testing.T) {
	e := newEncoder(t)
	texts := []*string{nil, strp(""), strp("sky"), strp("how do magnets work i wonder about magnets and more")}
	for _, text := range texts {
		for _, l := range []int{0, 1, 3, 10, 50} {
			for _, p := range []Padding{PadPost, PadPre} {
				assert.Len(t, e.EncodeSequence(text, l, p), l)
			}
		}
	}
	assert.Empty(t, e.EncodeSequence(strp("sky"), -3, PadPost))
}

func TestEncodeSequencePadding(t *testing.T) {
	e := newEncoder(t)
	v := e.Vocabulary()
	pad := v.PadID()
	how, do, magnets, work := v.TokenToID("how"), v.TokenToID("do"), v.TokenToID("magnets"), v.TokenToID("work")
	text := "How do magnets work"

	assert.Equal(t, []int{how, do, magnets, work, pad, pad}, e.EncodeSequence(&text, 6, PadPost))
	assert.Equal(t, []int{pad, pad, how, do, magnets, work}, e.EncodeSequence(&text, 6, PadPre))
	assert.Equal(t, []int{how, do}, e.EncodeSequence(&text, 2, PadPost))
	assert.Equal(t, []int{magnets, work}, e.EncodeSequence(&text, 2, PadPre))
	assert.NotEqual(t, v.UnknownTokenID(), pad)
}

func TestEncodeCategory(t *testing.T) {
	e := newEncoder(t)
	assert.Equal(t, 1, e.EncodeCategory(strp("Science")))
	assert.Equal(t, e.Vocabulary().NumCategories()+1, e.EncodeCategory(nil))
}

func TestEncodeAnswerCorpus(t *testing.T) {
	e := newEncoder(t)
	c, err := e.EncodeAnswerCorpus(context.Background(), corpustest.Source(), 3)
	require.NoError(t, err)
	require.Equal(t, 4, c.Len())
	assert.Equal(t, []int64{10, 11, 12, 13}, c.DocIDs)
	assert.Equal(t, 5, c.Bags[0].Len())
	assert.Len(t, c.Sequences[3], 3)
}

func TestTrainingSet(t *testing.T) {
	e := newEncoder(t)
	v := e.Vocabulary()
	ts, err := e.TrainingSet(context.Background(), corpustest.Source(), 2, Lengths{Question: 8, Answer: 4}, PadPost, 3)
	require.NoError(t, err)
	require.Equal(t, 3, ts.Len())

	assert.Equal(t, []int64{10, 11, 12}, ts.AnswerIDs)
	for i := range ts.AnswerIDs {
		assert.Len(t, ts.Answers[i], 4)
		assert.Len(t, ts.Questions[i], 8)
	}
	// question 1: title + content
	assert.Equal(t, v.TokenToID("i"), ts.Questions[0][4])
	assert.Equal(t, []int{1, v.UnknownCategoryID(), 1}, ts.Categories)

	all, err := e.TrainingSet(context.Background(), corpustest.Source(), 2, Lengths{Question: 8, Answer: 4}, PadPre, -1)
	require.NoError(t, err)
	assert.Equal(t, 4, all.Len())
}
