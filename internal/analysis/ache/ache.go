// Package ache implements the per-class "ache" analysis: a small vector
// scoring how much benefit an expression shape carries, joined by
// elementwise maximum whenever classes merge.
package ache

import "slices"

// Dim is the dimensionality of the default profile.
const Dim = 2

// Vector is the analysis value attached to every equivalence class.
// Missing components are read as zero.
type Vector []float64

// Zero returns a zero vector of dimension n.
func Zero(n int) Vector {
	return make(Vector, n)
}

// At returns component i, or zero when i is out of range.
func (v Vector) At(i int) float64 {
	if i < 0 || i >= len(v) {
		return 0
	}
	return v[i]
}

// Sum returns the aggregate scalar of the vector.
func (v Vector) Sum() float64 {
	var s float64
	for _, x := range v {
		s += x
	}
	return s
}

// Clone returns an independent copy.
func (v Vector) Clone() Vector {
	return slices.Clone(v)
}

// Equal reports whether both vectors hold the same components.
func (v Vector) Equal(o Vector) bool {
	return slices.Equal(v, o)
}

// Join returns the elementwise maximum of a and b. The result has the
// length of the longer operand.
func Join(a, b Vector) Vector {
	n := max(len(a), len(b))
	out := make(Vector, n)
	for i := range n {
		out[i] = max(a.At(i), b.At(i))
	}
	return out
}

// Merge joins src into dst and reports whether dst changed.
func Merge(dst *Vector, src Vector) bool {
	joined := Join(*dst, src)
	if joined.Equal(*dst) {
		return false
	}
	*dst = joined
	return true
}

// Analysis computes and combines per-class data. Make receives the
// operator of a new node and the data of its children classes.
type Analysis interface {
	Make(op string, children []Vector) Vector
	Merge(dst *Vector, src Vector) bool
}

// Profile is an Analysis whose local value depends only on the operator.
type Profile struct {
	dim   int
	table map[string]Vector
}

// NewProfile builds a profile of the given dimension. Table entries are
// copied.
func NewProfile(dim int, table map[string]Vector) *Profile {
	p := &Profile{dim: dim, table: make(map[string]Vector, len(table))}
	for op, v := range table {
		p.table[op] = v.Clone()
	}
	return p
}

// DefaultProfile returns the built-in operator table.
func DefaultProfile() *Profile {
	return NewProfile(Dim, map[string]Vector{
		"compose":   {0.7, 0.7},
		"and":       {0.7, 0.7},
		"filter":    {0.5, 0.2},
		"map":       {0.2, 0.4},
		"normalize": {0.1, 0.1},
		"glyph":     {0.3, 0.3},
		"seq":       {0.05, 0.05},
	})
}

// Local returns the local vector for op, zero when op has no entry.
func (p *Profile) Local(op string) Vector {
	if v, ok := p.table[op]; ok {
		return v.Clone()
	}
	return Zero(p.dim)
}

// Make ignores children; the ache of a node is its operator's local value.
func (p *Profile) Make(op string, _ []Vector) Vector {
	return p.Local(op)
}

func (p *Profile) Merge(dst *Vector, src Vector) bool {
	return Merge(dst, src)
}
