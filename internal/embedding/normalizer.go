package embedding

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidEmbeddings is returned for any payload the normalizer cannot reduce to
// one vector per input. It is never papered over with zero vectors.
var ErrInvalidEmbeddings = errors.New("invalid embeddings response")

// Shape identifies the layout of an embeddings payload by nesting depth.
type Shape int

const (
	// ShapeFlat is a single vector of numbers.
	ShapeFlat Shape = iota + 1
	// ShapePerInput is a list of vectors. With one expected input and several rows,
	// the rows are token vectors of that input.
	ShapePerInput
	// ShapePerInputTokens is a list of token-vector lists, one per input.
	ShapePerInputTokens
)

func (s Shape) String() string {
	switch s {
	case ShapeFlat:
		return "flat"
	case ShapePerInput:
		return "per_input"
	case ShapePerInputTokens:
		return "per_input_tokens"
	default:
		return "unknown"
	}
}

// Tensor is a classified embeddings payload. Exactly one of the slices is set,
// matching Shape.
type Tensor struct {
	Shape          Shape
	Flat           []float32
	PerInput       [][]float32
	PerInputTokens [][][]float32
}

// ParseTensor classifies a decoded JSON body (as produced by encoding/json into any).
func ParseTensor(body any) (*Tensor, error) {
	outer, ok := body.([]any)
	if !ok || len(outer) == 0 {
		return nil, fmt.Errorf("%w: expected a non-empty array", ErrInvalidEmbeddings)
	}

	switch first := outer[0].(type) {
	case float64, json.Number:
		vec, err := toVector(outer)
		if err != nil {
			return nil, err
		}
		return &Tensor{Shape: ShapeFlat, Flat: vec}, nil

	case []any:
		if len(first) == 0 {
			return nil, fmt.Errorf("%w: empty first row", ErrInvalidEmbeddings)
		}
		if _, nested := first[0].([]any); nested {
			entries := make([][][]float32, len(outer))
			for i, e := range outer {
				rows, ok := e.([]any)
				if !ok {
					return nil, fmt.Errorf("%w: entry %d is not a list of token vectors", ErrInvalidEmbeddings, i)
				}
				matrix, err := toMatrix(rows)
				if err != nil {
					return nil, err
				}
				entries[i] = matrix
			}
			return &Tensor{Shape: ShapePerInputTokens, PerInputTokens: entries}, nil
		}
		matrix, err := toMatrix(outer)
		if err != nil {
			return nil, err
		}
		return &Tensor{Shape: ShapePerInput, PerInput: matrix}, nil

	default:
		return nil, fmt.Errorf("%w: unexpected element type %T", ErrInvalidEmbeddings, first)
	}
}

// Normalize reduces an upstream embeddings body to one vector per input.
func Normalize(body any, expected int) ([][]float32, error) {
	t, err := ParseTensor(body)
	if err != nil {
		return nil, err
	}

	var out [][]float32
	switch t.Shape {
	case ShapeFlat:
		out = [][]float32{t.Flat}
	case ShapePerInput:
		if expected == 1 && len(t.PerInput) != 1 {
			out = [][]float32{MeanPool(t.PerInput)}
			break
		}
		dim := len(t.PerInput[0])
		for i, v := range t.PerInput {
			if len(v) != dim {
				return nil, fmt.Errorf("%w: vector %d has dimension %d, expected %d", ErrInvalidEmbeddings, i, len(v), dim)
			}
		}
		out = t.PerInput
	case ShapePerInputTokens:
		out = make([][]float32, len(t.PerInputTokens))
		for i, tokens := range t.PerInputTokens {
			out[i] = MeanPool(tokens)
		}
	}

	if len(out) != expected {
		return nil, fmt.Errorf("%w: got %d vectors for %d inputs (%s)", ErrInvalidEmbeddings, len(out), expected, t.Shape)
	}
	for i, v := range out {
		if len(v) == 0 {
			return nil, fmt.Errorf("%w: empty vector for input %d", ErrInvalidEmbeddings, i)
		}
	}
	return out, nil
}

// MeanPool averages token vectors component-wise. Tokens whose length differs from
// the first token are skipped. Returns an empty vector when nothing can be pooled.
func MeanPool(tokens [][]float32) []float32 {
	if len(tokens) == 0 || len(tokens[0]) == 0 {
		return []float32{}
	}
	dim := len(tokens[0])
	sums := make([]float64, dim)
	count := 0
	for _, tok := range tokens {
		if len(tok) != dim {
			continue
		}
		for i, v := range tok {
			sums[i] += float64(v)
		}
		count++
	}
	out := make([]float32, dim)
	for i, s := range sums {
		out[i] = float32(s / float64(count))
	}
	return out
}

func toMatrix(rows []any) ([][]float32, error) {
	out := make([][]float32, len(rows))
	for i, r := range rows {
		row, ok := r.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: row %d is not a list", ErrInvalidEmbeddings, i)
		}
		vec, err := toVector(row)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func toVector(values []any) ([]float32, error) {
	out := make([]float32, len(values))
	for i, v := range values {
		switch n := v.(type) {
		case float64:
			out[i] = float32(n)
		case json.Number:
			f, err := n.Float64()
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidEmbeddings, err)
			}
			out[i] = float32(f)
		default:
			return nil, fmt.Errorf("%w: non-numeric value of type %T", ErrInvalidEmbeddings, v)
		}
	}
	return out, nil
}
