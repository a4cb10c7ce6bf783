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
	"k8s.io/klog/v2"

	"github.com/gomlx/exceptions"

	"github.com/gomlx/fwdlap/backends"
	"github.com/gomlx/fwdlap/types/tensors"
	"github.com/gomlx/fwdlap/types/xslices"
)

// Structural rules: operations that move elements around without touching their values
// (reshape, transpose, slice, gather with fixed indices, broadcast). They are linear, and
// the Jacobian data and any per-element mask follow the elements through the very same
// operation, re-issued with the trailing direction/slot axis carried along untouched.

func init() {
	for _, opType := range []backends.OpType{
		backends.OpTypeReshape, backends.OpTypeTranspose, backends.OpTypeBroadcastInDim,
		backends.OpTypeSlice,
	} {
		Register(opType, structuralRemapRule, WithLinear())
	}
	Register(backends.OpTypeGather, gatherRule, WithLinear())
	Register(backends.OpTypeReduceSum, reduceSumRule, WithLinear())

	// These mix elements across the value, so they ride the generic batched path; they
	// are still linear (ReduceMax and Where piecewise so), sparing the second-order pass.
	for _, opType := range []backends.OpType{
		backends.OpTypeConcatenate, backends.OpTypeWhere, backends.OpTypeReduceMax,
	} {
		Register(opType, defaultRule, WithLinear())
	}
	// Dot is intentionally left to the fallback default rule: it is bilinear, and its
	// second-order term (the mixed 2·dot(dx, dy) coefficient) comes out of the backend's
	// forward-over-forward pass.
}

// opWithTrailingAxis rewrites a structural operation's attributes so it acts on a tensor with
// one extra trailing axis of size extra (direction data or mask slots), moving elements the
// same way and keeping the trailing axis in place.
func opWithTrailingAxis(op backends.Op, srcRank, extra int) backends.Op {
	switch op.Type {
	case backends.OpTypeReshape:
		op.Dims = append(xslices.Copy(op.Dims), extra)
	case backends.OpTypeTranspose:
		op.Axes = append(xslices.Copy(op.Axes), srcRank)
	case backends.OpTypeSlice:
		op.Starts = append(xslices.Copy(op.Starts), 0)
		op.Limits = append(xslices.Copy(op.Limits), extra)
	case backends.OpTypeBroadcastInDim:
		newRank := len(op.Dims)
		op.Dims = append(xslices.Copy(op.Dims), extra)
		op.Axes = append(xslices.Copy(op.Axes), newRank)
	case backends.OpTypeGather:
		// The gather axis indexes the operand's leading axes; the trailing axis rides
		// along unchanged.
	default:
		exceptions.Panicf("opWithTrailingAxis: not a structural operation: %s", op.Type)
	}
	return op
}

// structuralRemapRule propagates through a pure element remap: value, Jacobian data,
// per-element mask and Laplacian all move by the same operation. Shared masks and the sparsity
// pattern in general survive untouched.
func structuralRemapRule(ctx *ruleContext, inputs []*LapDual) *LapDual {
	x := inputs[0]
	values := valuesOf(inputs)
	output := ctx.applyNode(values)
	if x.IsConstant() {
		return constDual(output)
	}
	op := ctx.node.Op()
	rest := values[1:] // Gather's indices operand.

	j := x.Jacobian
	opData := opWithTrailingAxis(op, x.Value.Rank(), j.NumDirections())
	data := ctx.backend.Apply(opData, append([]*tensors.Tensor{j.Data}, rest...)...)
	mask := j.Mask
	if mask != nil && !j.HasSharedMask() {
		opMask := opWithTrailingAxis(op, x.Value.Rank(), mask.Shape().Dim(-1))
		mask = ctx.backend.Apply(opMask, append([]*tensors.Tensor{mask}, rest...)...)
	}
	laplacian := ctx.backend.Apply(op, append([]*tensors.Tensor{x.Laplacian}, rest...)...)
	jacobian := &SparseJacobian{Data: data, Mask: mask, NumInputs: j.NumInputs}
	return &LapDual{Value: output, Jacobian: jacobian, Laplacian: laplacian}
}

// gatherRule: with indices that don't depend on the parameters the gather is a pure element
// remap, preserving sparsity. Parameter-dependent (dynamic) indices defeat the static mask
// bookkeeping, so that case falls back to the generic batched path, densifying.
func gatherRule(ctx *ruleContext, inputs []*LapDual) *LapDual {
	if ctx.inputStatic[1] {
		return structuralRemapRule(ctx, inputs)
	}
	if klog.V(1).Enabled() {
		klog.Infof("fwdlap: %s has parameter-dependent indices, falling back to the dense "+
			"propagation path", ctx.node)
	}
	return defaultRule(ctx, inputs)
}

// reduceSumRule: summing is linear, and when every element shares one direction layout
// (shared mask or dense) the output Jacobian is just the same reduction applied to the data,
// same mask. Per-element layouts would need slot-by-slot merging across the reduced elements,
// which the generic path handles (densified).
func reduceSumRule(ctx *ruleContext, inputs []*LapDual) *LapDual {
	x := inputs[0]
	if x.IsConstant() {
		return constDual(ctx.applyNode(valuesOf(inputs)))
	}
	j := x.Jacobian
	if !j.IsDense() && !j.HasSharedMask() {
		return defaultRule(ctx, inputs)
	}
	op := ctx.node.Op()
	output := ctx.applyNode(valuesOf(inputs))
	// The reduction axes index the value's axes, all below the trailing direction axis.
	data := ctx.backend.Apply(op, j.Data)
	laplacian := ctx.backend.Apply(op, x.Laplacian)
	jacobian := &SparseJacobian{Data: data, Mask: j.Mask, NumInputs: j.NumInputs}
	return &LapDual{Value: output, Jacobian: jacobian, Laplacian: laplacian}
}
