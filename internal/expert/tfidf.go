package expert

import (
	"math"

	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/internal/encoder"
)

// tfidfModel weights term counts by log2(N/df). Terms that never occur in
// the training corpus carry no weight.
type tfidfModel struct {
	NumDocs int             `json:"num_docs"`
	IDF     map[int]float64 `json:"idf"`
}

func trainTFIDF(c *encoder.Corpus, _ int) (model, error) {
	return fitTFIDF(c), nil
}

func fitTFIDF(c *encoder.Corpus) *tfidfModel {
	df := make(map[int]int)
	for _, bag := range c.Bags {
		for _, tc := range bag {
			df[tc.ID]++
		}
	}
	m := &tfidfModel{NumDocs: c.Len(), IDF: make(map[int]float64, len(df))}
	for id, n := range df {
		m.IDF[id] = math.Log2(float64(m.NumDocs) / float64(n))
	}
	return m
}

// weights returns the unnormalized tf-idf vector of bag, indexed by term id.
func (m *tfidfModel) weights(bag encoder.Bag) Vector {
	v := make(Vector, 0, len(bag))
	for _, tc := range bag {
		idf, ok := m.IDF[tc.ID]
		if !ok || idf == 0 {
			continue
		}
		v = append(v, Entry{I: tc.ID, V: float64(tc.Count) * idf})
	}
	return v
}

func (m *tfidfModel) transform(bag encoder.Bag) Vector {
	return m.weights(bag).normalized()
}
