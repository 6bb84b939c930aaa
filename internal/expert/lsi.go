package expert

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/internal/encoder"
)

// lsiModel projects tf-idf vectors onto the leading left singular vectors of
// the term-document matrix.
type lsiModel struct {
	TFIDF *tfidfModel `json:"tfidf"`
	Rows  map[int]int `json:"rows"`
	// Basis[r] holds the projection coefficients of term row r.
	Basis  [][]float64 `json:"basis"`
	Topics int         `json:"topics"`
}

func trainLSI(c *encoder.Corpus, numTopics int) (model, error) {
	tfidf := fitTFIDF(c)

	terms := make([]int, 0, len(tfidf.IDF))
	for id, idf := range tfidf.IDF {
		if idf != 0 {
			terms = append(terms, id)
		}
	}
	if len(terms) == 0 {
		// Every term occurs in every document: nothing to factorize, and
		// every query projects to the zero vector.
		return &lsiModel{TFIDF: tfidf, Rows: map[int]int{}}, nil
	}
	sort.Ints(terms)
	rows := make(map[int]int, len(terms))
	for r, id := range terms {
		rows[id] = r
	}

	a := mat.NewDense(len(terms), c.Len(), nil)
	for d, bag := range c.Bags {
		for _, e := range tfidf.transform(bag) {
			a.Set(rows[e.I], d, e.V)
		}
	}
	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		return nil, fmt.Errorf("lsi: singular value decomposition did not converge")
	}
	var u mat.Dense
	svd.UTo(&u)

	_, cols := u.Dims()
	k := min(numTopics, cols)
	basis := make([][]float64, len(terms))
	for r := range basis {
		basis[r] = make([]float64, k)
		for j := 0; j < k; j++ {
			basis[r][j] = u.At(r, j)
		}
	}
	return &lsiModel{TFIDF: tfidf, Rows: rows, Basis: basis, Topics: k}, nil
}

func (m *lsiModel) transform(bag encoder.Bag) Vector {
	out := make([]float64, m.Topics)
	for _, e := range m.TFIDF.transform(bag) {
		r, ok := m.Rows[e.I]
		if !ok {
			continue
		}
		for j, coef := range m.Basis[r] {
			out[j] += e.V * coef
		}
	}
	return denseVector(out).normalized()
}
