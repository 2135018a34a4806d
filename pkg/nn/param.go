// Package nn implements the small differentiable toolkit the detectors are
// built on: dense layers with explicit backward closures, parameter sets
// tagged trainable or frozen, gradients scoped to one parameter set, and an
// Adam optimizer whose state belongs to exactly one set.
package nn

import (
	"errors"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrFrozen is returned when gradients or updates target a frozen set.
	ErrFrozen = errors.New("nn: parameter set is frozen")
	// ErrForeignGradients is returned when an optimizer receives gradients for another set.
	ErrForeignGradients = errors.New("nn: gradients belong to a different parameter set")
	// ErrEmptyLayers is returned when a block is built without layer widths.
	ErrEmptyLayers = errors.New("nn: layer widths must not be empty")
	// ErrShape is returned for invalid layer dimensions.
	ErrShape = errors.New("nn: invalid shape")
)

// Param is a single learnable matrix.
type Param struct {
	Name  string
	Value *mat.Dense
}

// Size returns the number of scalars in the parameter.
func (p *Param) Size() int {
	r, c := p.Value.Dims()
	return r * c
}

// Mode tags a parameter set as trainable or frozen.
type Mode int

const (
	Trainable Mode = iota
	Frozen
)

func (m Mode) String() string {
	if m == Frozen {
		return "frozen"
	}
	return "trainable"
}

// ParamSet is the group of parameters owned by one network. Only a
// trainable set can receive gradients or optimizer updates.
type ParamSet struct {
	name   string
	mode   Mode
	params []*Param
	index  map[*Param]struct{}
}

// NewParamSet groups params under name. The set starts trainable.
func NewParamSet(name string, params ...*Param) *ParamSet {
	s := &ParamSet{
		name:   name,
		params: params,
		index:  make(map[*Param]struct{}, len(params)),
	}
	for _, p := range params {
		s.index[p] = struct{}{}
	}
	return s
}

// Name returns the set name.
func (s *ParamSet) Name() string { return s.name }

// Params returns the parameters in declaration order.
func (s *ParamSet) Params() []*Param { return s.params }

// Mode returns the current mode.
func (s *ParamSet) Mode() Mode { return s.mode }

// Freeze marks the set read-only.
func (s *ParamSet) Freeze() { s.mode = Frozen }

// Unfreeze marks the set trainable.
func (s *ParamSet) Unfreeze() { s.mode = Trainable }

// Contains reports whether p belongs to the set.
func (s *ParamSet) Contains(p *Param) bool {
	_, ok := s.index[p]
	return ok
}

// Size returns the total number of scalars in the set.
func (s *ParamSet) Size() int {
	n := 0
	for _, p := range s.params {
		n += p.Size()
	}
	return n
}

// Snapshot returns deep copies of all parameter values.
func (s *ParamSet) Snapshot() []*mat.Dense {
	out := make([]*mat.Dense, len(s.params))
	for i, p := range s.params {
		out[i] = mat.DenseCopyOf(p.Value)
	}
	return out
}
