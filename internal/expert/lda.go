package expert

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/internal/encoder"
)

const (
	ldaSeed        = 42
	ldaBeta        = 0.01
	ldaIterations  = 50
	ldaFoldInSteps = 20
)

// ldaModel is a topic model trained by collapsed Gibbs sampling. Documents
// are represented by their inferred topic mixture.
type ldaModel struct {
	Topics int     `json:"topics"`
	Alpha  float64 `json:"alpha"`
	// Phi[term][k] is p(term | topic k).
	Phi map[int][]float64 `json:"phi"`
}

func trainLDA(c *encoder.Corpus, numTopics int) (model, error) {
	if numTopics <= 0 {
		return nil, fmt.Errorf("lda: %d topics", numTopics)
	}
	vocab := make(map[int]int)
	var terms []int
	for _, seq := range c.Sequences {
		for _, id := range seq {
			if _, ok := vocab[id]; !ok {
				vocab[id] = 0
				terms = append(terms, id)
			}
		}
	}
	if len(terms) == 0 {
		return nil, fmt.Errorf("lda: corpus has no tokens")
	}
	sort.Ints(terms)
	for w, id := range terms {
		vocab[id] = w
	}

	k := numTopics
	alpha := 1 / float64(k)
	nW := len(terms)
	rng := rand.New(rand.NewSource(ldaSeed))

	docs := make([][]int, len(c.Sequences))
	z := make([][]int, len(c.Sequences))
	nDK := make([][]int, len(c.Sequences))
	nKW := make([][]int, k)
	for t := range nKW {
		nKW[t] = make([]int, nW)
	}
	nK := make([]int, k)

	for d, seq := range c.Sequences {
		docs[d] = make([]int, len(seq))
		z[d] = make([]int, len(seq))
		nDK[d] = make([]int, k)
		for i, id := range seq {
			w := vocab[id]
			t := rng.Intn(k)
			docs[d][i], z[d][i] = w, t
			nDK[d][t]++
			nKW[t][w]++
			nK[t]++
		}
	}

	p := make([]float64, k)
	wBeta := float64(nW) * ldaBeta
	for iter := 0; iter < ldaIterations; iter++ {
		for d, words := range docs {
			for i, w := range words {
				t := z[d][i]
				nDK[d][t]--
				nKW[t][w]--
				nK[t]--

				var total float64
				for j := 0; j < k; j++ {
					total += (float64(nDK[d][j]) + alpha) * (float64(nKW[j][w]) + ldaBeta) / (float64(nK[j]) + wBeta)
					p[j] = total
				}
				u := rng.Float64() * total
				t = sort.SearchFloat64s(p, u)
				if t >= k {
					t = k - 1
				}

				z[d][i] = t
				nDK[d][t]++
				nKW[t][w]++
				nK[t]++
			}
		}
	}

	phi := make(map[int][]float64, nW)
	for w, id := range terms {
		row := make([]float64, k)
		for t := 0; t < k; t++ {
			row[t] = (float64(nKW[t][w]) + ldaBeta) / (float64(nK[t]) + wBeta)
		}
		phi[id] = row
	}
	return &ldaModel{Topics: k, Alpha: alpha, Phi: phi}, nil
}

// transform folds bag into the model with a fixed number of EM steps over
// the topic mixture, leaving the topics themselves untouched.
func (m *ldaModel) transform(bag encoder.Bag) Vector {
	var known encoder.Bag
	for _, tc := range bag {
		if _, ok := m.Phi[tc.ID]; ok {
			known = append(known, tc)
		}
	}
	if len(known) == 0 {
		return nil
	}
	k := m.Topics
	theta := make([]float64, k)
	for t := range theta {
		theta[t] = 1 / float64(k)
	}
	acc := make([]float64, k)
	resp := make([]float64, k)
	length := float64(known.Len())
	for step := 0; step < ldaFoldInSteps; step++ {
		clear(acc)
		for _, tc := range known {
			phi := m.Phi[tc.ID]
			var norm float64
			for t := 0; t < k; t++ {
				resp[t] = theta[t] * phi[t]
				norm += resp[t]
			}
			if norm == 0 {
				continue
			}
			for t := 0; t < k; t++ {
				acc[t] += float64(tc.Count) * resp[t] / norm
			}
		}
		for t := 0; t < k; t++ {
			theta[t] = (acc[t] + m.Alpha) / (length + float64(k)*m.Alpha)
		}
	}
	return denseVector(theta).normalized()
}
