// Package goeval implements the default, pure Go backend for the forward-Laplacian
// interpreter: eager evaluation of the primitive operations plus their forward-mode (JVP) and
// forward-over-forward (JVP2) propagation, on tensors of dtypes Float32 and Float64.
//
// It is registered under the name "goeval"; import it for the side effect:
//
//	import _ "github.com/gomlx/fwdlap/backends/goeval"
//
// The implementation favors clarity over speed: kernels are generic Go loops, with
// broadcasting resolved by strides. Tangent batches ("directions") are laid out on one extra
// trailing axis, so every direction of one element is a contiguous chunk, and structural ops
// move whole chunks at a time.
package goeval

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/fwdlap/backends"
	"github.com/gomlx/fwdlap/types/tensors"
)

// BackendName to use in backends.NewWithConfig to select this backend.
const BackendName = "goeval"

func init() {
	backends.Register(BackendName, New)
}

// Backend implements backends.Backend with pure Go kernels.
//
// It is stateless: the same Backend can be shared by concurrent interpretations.
type Backend struct{}

// New returns the pure Go reference backend. The config string is ignored.
func New(config string) backends.Backend {
	_ = config
	return &Backend{}
}

// Name implements backends.Backend.
func (b *Backend) Name() string { return BackendName }

// Description implements backends.Backend.
func (b *Backend) Description() string {
	return "Pure Go eager evaluation of primitives, with forward-mode jet propagation"
}

// execFn evaluates one primitive.
type execFn func(b *Backend, op backends.Op, inputs []*tensors.Tensor) *tensors.Tensor

// jetFn evaluates one primitive and propagates a batch of first (and optionally second) order
// directional coefficients through it. tangents entries may be nil (zero tangent). out2 is nil
// when secondOrder is false or when the op is linear (zero second order coefficients).
type jetFn func(b *Backend, op backends.Op, inputs, tangents []*tensors.Tensor, secondOrder bool) (output, outputTangents, output2nd *tensors.Tensor)

// Per-op dispatch tables, filled by the init functions of the exec_*.go and jet_*.go files.
var (
	nodeExecutors  [backends.OpTypeLast]execFn
	jetPropagators [backends.OpTypeLast]jetFn
)

// Apply implements backends.Backend.
func (b *Backend) Apply(op backends.Op, inputs ...*tensors.Tensor) *tensors.Tensor {
	if op.Type <= backends.OpTypeInvalid || op.Type >= backends.OpTypeLast {
		exceptions.Panicf("goeval: invalid op type %d", op.Type)
	}
	fn := nodeExecutors[op.Type]
	if fn == nil {
		exceptions.Panicf("goeval: operation %s is not implemented", op)
	}
	checkNumInputs(op, len(inputs))
	return fn(b, op, inputs)
}

// JVP implements backends.Backend.
func (b *Backend) JVP(op backends.Op, inputs, tangents []*tensors.Tensor) (output, outputTangents *tensors.Tensor) {
	output, outputTangents, _ = b.jet(op, inputs, tangents, false)
	return
}

// JVP2 implements backends.Backend.
func (b *Backend) JVP2(op backends.Op, inputs, tangents []*tensors.Tensor) (output, outputTangents, output2nd *tensors.Tensor) {
	output, outputTangents, output2nd = b.jet(op, inputs, tangents, true)
	if output2nd == nil {
		// Linear primitives have identically zero second-order coefficients.
		output2nd = tensors.FromShape(outputTangents.Shape())
	}
	return
}

func (b *Backend) jet(op backends.Op, inputs, tangents []*tensors.Tensor, secondOrder bool) (output, outputTangents, output2nd *tensors.Tensor) {
	if op.Type <= backends.OpTypeInvalid || op.Type >= backends.OpTypeLast {
		exceptions.Panicf("goeval: invalid op type %d", op.Type)
	}
	fn := jetPropagators[op.Type]
	if fn == nil {
		exceptions.Panicf("goeval: forward-mode propagation for operation %s is not implemented", op)
	}
	checkNumInputs(op, len(inputs))
	if len(tangents) != len(inputs) {
		exceptions.Panicf("goeval: op %s got %d inputs but %d tangents", op, len(inputs), len(tangents))
	}
	if numDirections(inputs, tangents) == 0 {
		exceptions.Panicf("goeval: op %s requires at least one non-nil tangent", op)
	}
	return fn(b, op, inputs, tangents, secondOrder)
}

func checkNumInputs(op backends.Op, got int) {
	want := op.Type.NumInputs()
	if want >= 0 && got != want {
		exceptions.Panicf("goeval: operation %s takes %d inputs, got %d", op, want, got)
	}
	if op.Type == backends.OpTypeConcatenate && got == 0 {
		exceptions.Panicf("goeval: operation %s takes at least one input", op)
	}
}

// numDirections returns the size of the trailing direction axis shared by all non-nil
// tangents, checking consistency against the corresponding input shape.
func numDirections(inputs, tangents []*tensors.Tensor) int {
	numDirs := 0
	for ii, tangent := range tangents {
		if tangent == nil {
			continue
		}
		if tangent.Rank() != inputs[ii].Rank()+1 {
			exceptions.Panicf("goeval: tangent #%d has shape %s, want the input shape %s plus one trailing direction axis",
				ii, tangent.Shape(), inputs[ii].Shape())
		}
		d := tangent.Shape().Dim(-1)
		if numDirs != 0 && d != numDirs {
			exceptions.Panicf("goeval: tangents disagree on the number of directions: %d vs %d", numDirs, d)
		}
		numDirs = d
	}
	return numDirs
}
