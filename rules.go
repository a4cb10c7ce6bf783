/*
 *	Copyright 2025 Jan Pfeifer
 *
 *	Licensed under the Apache License, Version 2.0 (the "License");
 *	you may not use this file except in compliance with the License.
 *	You may obtain a copy of the License at
 *
 *	http://www.apache.org/licenses/LICENSE-2.0
 *
 *	Unless required by applicable law or agreed to in writing, software
 *	distributed under the License is distributed on an "AS IS" BASIS,
 *	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *	See the License for the specific language governing permissions and
 *	limitations under the License.
 */

package fwdlap

import (
	"slices"

	"github.com/gomlx/fwdlap/backends"
	"github.com/gomlx/fwdlap/types/shapes"
	"github.com/gomlx/fwdlap/types/tensors"
	"github.com/gomlx/fwdlap/types/xslices"
)

// Shared helpers for the propagation rules. Rules compute their array math through the
// backend's Apply, so a faster backend accelerates the propagation itself too.

func valuesOf(inputs []*LapDual) []*tensors.Tensor {
	values := make([]*tensors.Tensor, len(inputs))
	for ii, input := range inputs {
		values[ii] = input.Value
	}
	return values
}

func allConstant(inputs []*LapDual) bool {
	for _, input := range inputs {
		if !input.IsConstant() {
			return false
		}
	}
	return true
}

// applyNode evaluates the context's operation on the given concrete inputs.
func (ctx *ruleContext) applyNode(values []*tensors.Tensor) *tensors.Tensor {
	return ctx.backend.Apply(ctx.node.Op(), values...)
}

func (ctx *ruleContext) binary(opType backends.OpType, lhs, rhs *tensors.Tensor) *tensors.Tensor {
	return ctx.backend.Apply(backends.Op{Type: opType}, lhs, rhs)
}

func (ctx *ruleContext) mul(lhs, rhs *tensors.Tensor) *tensors.Tensor {
	return ctx.binary(backends.OpTypeMul, lhs, rhs)
}

func (ctx *ruleContext) add(lhs, rhs *tensors.Tensor) *tensors.Tensor {
	return ctx.binary(backends.OpTypeAdd, lhs, rhs)
}

// addMaybe adds two optional (nil = zero) tensors.
func (ctx *ruleContext) addMaybe(lhs, rhs *tensors.Tensor) *tensors.Tensor {
	if lhs == nil {
		return rhs
	}
	if rhs == nil {
		return lhs
	}
	return ctx.add(lhs, rhs)
}

// broadcastTo broadcasts an S-shaped tensor to the (elementwise-broadcast compatible) target
// dimensions.
func (ctx *ruleContext) broadcastTo(t *tensors.Tensor, dims []int) *tensors.Tensor {
	if slices.Equal(t.Shape().Dimensions, dims) {
		return t
	}
	return ctx.backend.Apply(backends.Op{
		Type: backends.OpTypeBroadcastInDim,
		Dims: dims,
		Axes: xslices.Iota(0, t.Rank()),
	}, t)
}

// broadcastJacobian broadcasts a Jacobian of an S-shaped value to the target value
// dimensions: data (and any per-element mask) get the broadcast applied below the slot axis;
// a shared mask holds for the duplicated elements unchanged.
func (ctx *ruleContext) broadcastJacobian(j *SparseJacobian, dims []int) *SparseJacobian {
	valueShape := j.ValueShape()
	if slices.Equal(valueShape.Dimensions, dims) {
		return j
	}
	numDirs := j.NumDirections()
	op := backends.Op{
		Type: backends.OpTypeBroadcastInDim,
		Dims: append(xslices.Copy(dims), numDirs),
		Axes: append(xslices.Iota(0, valueShape.Rank()), len(dims)),
	}
	data := ctx.backend.Apply(op, j.Data)
	mask := j.Mask
	if mask != nil && !j.HasSharedMask() {
		mask = ctx.backend.Apply(op, j.Mask)
	}
	return &SparseJacobian{Data: data, Mask: mask, NumInputs: j.NumInputs}
}

// zerosOf returns a zeroed tensor of the given shape.
func zerosOf(shape shapes.Shape) *tensors.Tensor {
	return tensors.FromShape(shape)
}

// defaultRule propagates through any operation generically: the inputs' Jacobians are aligned
// over one common direction space and scattered into tangent batches, and a single batched
// forward-over-forward pass produces the output value, the output Jacobian data (same
// direction space) and the per-direction second-order coefficients. The Laplacian is the
// summed coefficients plus the chain term. Correct for any operation the backend can
// evaluate, but not sparsity-aware beyond the inputs' shared patterns.
func defaultRule(ctx *ruleContext, inputs []*LapDual) *LapDual {
	values := valuesOf(inputs)
	if allConstant(inputs) {
		return constDual(ctx.applyNode(values))
	}
	tangents, mask, _ := tangentsForInputs(inputs, ctx.cfg)
	op := ctx.node.Op()

	var output, outputTangents, second *tensors.Tensor
	if ctx.entry.linear {
		output, outputTangents = ctx.backend.JVP(op, values, tangents)
	} else {
		var output2nd *tensors.Tensor
		output, outputTangents, output2nd = ctx.backend.JVP2(op, values, tangents)
		second = sumDirections(ctx, output2nd)
	}
	jacobian := &SparseJacobian{
		Data:      outputTangents,
		Mask:      mask,
		NumInputs: activeNumInputs(inputs),
	}
	laplacian := ctx.addMaybe(laplacianChainTerm(ctx, inputs), second)
	if laplacian == nil {
		laplacian = zerosOf(output.Shape())
	}
	return &LapDual{Value: output, Jacobian: jacobian, Laplacian: laplacian}
}

func activeNumInputs(inputs []*LapDual) int {
	for _, input := range inputs {
		if !input.IsConstant() {
			return input.Jacobian.NumInputs
		}
	}
	return 0
}
