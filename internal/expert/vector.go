package expert

import (
	"math"
	"math/rand"
)

// Entry is one non-zero coordinate of a Vector.
type Entry struct {
	I int     `json:"i"`
	V float64 `json:"v"`
}

// Vector is a sparse vector sorted by coordinate.
type Vector []Entry

func denseVector(values []float64) Vector {
	v := make(Vector, 0, len(values))
	for i, x := range values {
		if x != 0 {
			v = append(v, Entry{I: i, V: x})
		}
	}
	return v
}

// normalized returns v scaled to unit length, or nil for a zero vector.
func (v Vector) normalized() Vector {
	var norm float64
	for _, e := range v {
		norm += e.V * e.V
	}
	if norm == 0 {
		return nil
	}
	norm = math.Sqrt(norm)
	out := make(Vector, len(v))
	for i, e := range v {
		out[i] = Entry{I: e.I, V: e.V / norm}
	}
	return out
}

func dot(a, b Vector) float64 {
	var sum float64
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i].I == b[j].I:
			sum += a[i].V * b[j].V
			i++
			j++
		case a[i].I < b[j].I:
			i++
		default:
			j++
		}
	}
	return sum
}

// indexVector is the fixed sparse ternary vector of a token in a
// random-indexing space of the given dimension. The same (id, dims, salt)
// always yields the same vector.
func indexVector(id, dims int, salt int64) []Entry {
	nnz := min(dims, max(4, dims/10))
	rng := rand.New(rand.NewSource(int64(id)*2654435761 + salt))
	positions := rng.Perm(dims)[:nnz]
	out := make([]Entry, nnz)
	for i, p := range positions {
		sign := 1.0
		if rng.Intn(2) == 0 {
			sign = -1
		}
		out[i] = Entry{I: p, V: sign}
	}
	return out
}
