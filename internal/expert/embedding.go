package expert

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/internal/encoder"
)

const (
	word2vecWindow = 2
	word2vecSalt   = 0x77326576
	doc2vecSalt    = 0x64327663
)

// word2vecModel learns a context vector per token by random indexing: each
// occurrence adds the index vectors of its neighbours within the window. A
// document is the count-weighted mean of its tokens' context vectors.
type word2vecModel struct {
	Dims    int               `json:"dims"`
	Context map[int][]float64 `json:"context"`
}

func trainWord2Vec(c *encoder.Corpus, dims int) (model, error) {
	if dims <= 0 {
		return nil, fmt.Errorf("word2vec: %d dimensions", dims)
	}
	index := make(map[int][]Entry)
	lookup := func(id int) []Entry {
		iv, ok := index[id]
		if !ok {
			iv = indexVector(id, dims, word2vecSalt)
			index[id] = iv
		}
		return iv
	}

	vectors := make(map[int][]float64)
	for _, seq := range c.Sequences {
		for i, id := range seq {
			vec, ok := vectors[id]
			if !ok {
				vec = make([]float64, dims)
				vectors[id] = vec
			}
			lo, hi := max(0, i-word2vecWindow), min(len(seq)-1, i+word2vecWindow)
			for j := lo; j <= hi; j++ {
				if j == i {
					continue
				}
				for _, e := range lookup(seq[j]) {
					vec[e.I] += e.V
				}
			}
		}
	}
	for id, vec := range vectors {
		vectors[id] = unitDense(vec)
	}
	return &word2vecModel{Dims: dims, Context: vectors}, nil
}

func (m *word2vecModel) transform(bag encoder.Bag) Vector {
	out := make([]float64, m.Dims)
	var seen bool
	for _, tc := range bag {
		vec, ok := m.Context[tc.ID]
		if !ok {
			continue
		}
		seen = true
		for i, x := range vec {
			out[i] += float64(tc.Count) * x
		}
	}
	if !seen {
		return nil
	}
	return denseVector(out).normalized()
}

// doc2vecModel embeds whole paragraphs by projecting their tf-idf weights
// through a fixed random-indexing basis.
type doc2vecModel struct {
	Dims  int         `json:"dims"`
	TFIDF *tfidfModel `json:"tfidf"`
}

func trainDoc2Vec(c *encoder.Corpus, dims int) (model, error) {
	if dims <= 0 {
		return nil, fmt.Errorf("doc2vec: %d dimensions", dims)
	}
	return &doc2vecModel{Dims: dims, TFIDF: fitTFIDF(c)}, nil
}

func (m *doc2vecModel) transform(bag encoder.Bag) Vector {
	weights := m.TFIDF.weights(bag)
	if len(weights) == 0 {
		return nil
	}
	out := make([]float64, m.Dims)
	for _, w := range weights {
		for _, e := range indexVector(w.I, m.Dims, doc2vecSalt) {
			out[e.I] += w.V * e.V
		}
	}
	return denseVector(out).normalized()
}

func unitDense(vec []float64) []float64 {
	n := denseVector(vec).normalized()
	out := make([]float64, len(vec))
	for _, e := range n {
		out[e.I] = e.V
	}
	return out
}
