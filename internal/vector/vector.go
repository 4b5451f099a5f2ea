// Package vector holds the embedding type and its wire encoding.
package vector

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Dim is the embedding dimension fixed at index creation.
const Dim = 512

// Embedding is a dense float32 vector. Treat it as immutable once computed.
type Embedding []float32

// Validate checks that e has exactly dim components.
func (e Embedding) Validate(dim int) error {
	if len(e) != dim {
		return fmt.Errorf("vector: expected %d components, got %d", dim, len(e))
	}
	return nil
}

// Comparable reports why e has no cosine distance to other vectors: a
// non-finite component or a zero norm. It returns nil for usable vectors.
func (e Embedding) Comparable() error {
	var norm float64
	for i, v := range e {
		x := float64(v)
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return fmt.Errorf("vector: component %d is %v", i, v)
		}
		norm += x * x
	}
	if norm == 0 {
		return fmt.Errorf("vector: zero norm")
	}
	return nil
}

// Bytes encodes e as little-endian IEEE 754 float32 values without a length
// prefix. The result is 4*len(e) bytes.
func (e Embedding) Bytes() []byte {
	b := make([]byte, len(e)*4)
	for i, v := range e {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return b
}

// FromBytes decodes a blob produced by Bytes.
func FromBytes(b []byte) (Embedding, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("vector: invalid blob length %d (not multiple of 4)", len(b))
	}
	n := len(b) / 4
	e := make(Embedding, n)
	for i := 0; i < n; i++ {
		e[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return e, nil
}

// CosineDistance returns 1 - cos(a, b). Zero vectors have distance 1.
func CosineDistance(a, b Embedding) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector: dimension mismatch %d != %d", len(a), len(b))
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 1, nil
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb)), nil
}

// Float64s converts provider output to an Embedding.
func Float64s(v []float64) Embedding {
	e := make(Embedding, len(v))
	for i, x := range v {
		e[i] = float32(x)
	}
	return e
}
