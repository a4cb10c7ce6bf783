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
	"github.com/gomlx/fwdlap/backends"
	"github.com/gomlx/fwdlap/types/tensors"
)

// Elementwise unary rules: since element i of the output depends only on element i of the
// input, the output Jacobian is the input Jacobian scaled per element by f', with the exact
// same sparsity pattern (per-element patterns included, which the generic batched path would
// have to densify), and the second-order contribution has the closed form f''·Σₜ Jₜ².

func init() {
	for _, opType := range []backends.OpType{
		backends.OpTypeExp, backends.OpTypeLog, backends.OpTypeLog1p, backends.OpTypeSin,
		backends.OpTypeCos, backends.OpTypeTanh, backends.OpTypeLogistic,
		backends.OpTypeSqrt, backends.OpTypeRsqrt, backends.OpTypeErf,
	} {
		Register(opType, elementwiseUnaryRule, WithElementwise())
	}
	// Neg, Abs and Sign have zero second derivative (almost everywhere for Abs and Sign),
	// so they take the first-order-only path on top of the same rule.
	for _, opType := range []backends.OpType{
		backends.OpTypeNeg, backends.OpTypeAbs, backends.OpTypeSign,
	} {
		Register(opType, elementwiseUnaryRule, WithElementwise(), WithLinear())
	}
	Register(backends.OpTypeConvertDType, convertDTypeRule, WithElementwise(), WithLinear())
}

// elementwiseUnaryRule propagates through a one-input elementwise operation. The per-element
// derivatives f' (and f'' when the operation is not linear) are obtained by pushing a single
// all-ones direction through the backend's forward-mode evaluation, so the rule needs no
// per-operation calculus of its own.
//
// Laplacian: Δf(x) = f'·Δx + f''·Σₜ Jₜ², where the sum over direction slots equals the sum
// over the input coordinates the element depends on, because within one element the non-pad
// slots reference distinct coordinates (and pad slots carry zero data).
func elementwiseUnaryRule(ctx *ruleContext, inputs []*LapDual) *LapDual {
	x := inputs[0]
	if x.IsConstant() {
		return constDual(ctx.applyNode(valuesOf(inputs)))
	}
	op := ctx.node.Op()
	values := []*tensors.Tensor{x.Value}
	probe := []*tensors.Tensor{onesTangent(x.Value)}

	var output, f1, f2 *tensors.Tensor
	if ctx.entry.linear {
		output, f1 = ctx.backend.JVP(op, values, probe)
	} else {
		output, f1, f2 = ctx.backend.JVP2(op, values, probe)
	}
	deriv1 := fromOneDirection(f1)

	jacobian := x.Jacobian.Scale(deriv1)
	laplacian := ctx.mul(deriv1, x.Laplacian)
	if f2 != nil {
		deriv2 := fromOneDirection(f2)
		laplacian = ctx.add(laplacian, ctx.mul(deriv2, sumOfSquares(ctx, x.Jacobian)))
	}
	return &LapDual{Value: output, Jacobian: jacobian, Laplacian: laplacian}
}

// convertDTypeRule: converting between float dtypes is the identity on derivatives (converted
// along with the value); converting to a non-float dtype kills them.
func convertDTypeRule(ctx *ruleContext, inputs []*LapDual) *LapDual {
	x := inputs[0]
	output := ctx.applyNode(valuesOf(inputs))
	if x.IsConstant() || !output.DType().IsFloat() {
		return constDual(output)
	}
	op := ctx.node.Op()
	jacobian := &SparseJacobian{
		Data:      ctx.backend.Apply(op, x.Jacobian.Data),
		Mask:      x.Jacobian.Mask,
		NumInputs: x.Jacobian.NumInputs,
	}
	laplacian := ctx.backend.Apply(op, x.Laplacian)
	return &LapDual{Value: output, Jacobian: jacobian, Laplacian: laplacian}
}

// sumOfSquares contracts Σₜ Jₜ² per element, yielding a value-shaped tensor.
func sumOfSquares(ctx *ruleContext, j *SparseJacobian) *tensors.Tensor {
	return sumDirections(ctx, ctx.mul(j.Data, j.Data))
}

// sumOfProducts contracts Σₜ Aₜ·Bₜ per element after aligning the two Jacobians onto a common
// slot layout, which makes the slot sum equal the sum over shared input coordinates.
func sumOfProducts(ctx *ruleContext, a, b *SparseJacobian) *tensors.Tensor {
	a2, b2 := alignPatterns(a, b, ctx.cfg)
	return sumDirections(ctx, ctx.mul(a2.Data, b2.Data))
}
