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

// Binary elementwise rules. Writing f(x, y) per element, the output Jacobian is
// ∂f/∂x·Jx + ∂f/∂y·Jy with the inputs' sparsity patterns preserved (merged per element when
// they differ), and the second-order contribution expands to
//
//	fxx·Σₜ Jxₜ² + 2·fxy·Σₜ JxₜJyₜ + fyy·Σₜ Jyₜ²
//
// again with closed-form slot sums instead of a densified batched pass.

func init() {
	for _, opType := range []backends.OpType{backends.OpTypeMul, backends.OpTypeDiv,
		backends.OpTypePow} {
		Register(opType, binaryElementwiseRule, WithElementwise())
	}
	// Add and Sub are linear; Max and Min are piecewise linear with zero second derivative
	// almost everywhere.
	for _, opType := range []backends.OpType{backends.OpTypeAdd, backends.OpTypeSub,
		backends.OpTypeMax, backends.OpTypeMin} {
		Register(opType, binaryElementwiseRule, WithElementwise(), WithLinear())
	}
}

// binaryElementwiseRule propagates through a two-input elementwise operation with
// broadcasting. The partial derivatives come from forward-mode probes of the primitive with
// all-ones directions: probing x alone gives (fx, fxx), y alone (fy, fyy), and both together
// gives the sum of all second-order terms, from which the mixed 2·fxy falls out by
// subtraction. Inputs narrower than the output have their Jacobian and Laplacian broadcast
// first, so all the per-element algebra lines up on the output's elements.
func binaryElementwiseRule(ctx *ruleContext, inputs []*LapDual) *LapDual {
	x, y := inputs[0], inputs[1]
	if allConstant(inputs) {
		return constDual(ctx.applyNode(valuesOf(inputs)))
	}
	op := ctx.node.Op()
	values := valuesOf(inputs)
	outDims := ctx.node.Shape().Dimensions

	var jx, jy *SparseJacobian
	var lapX, lapY *tensors.Tensor
	if !x.IsConstant() {
		jx = ctx.broadcastJacobian(x.Jacobian, outDims)
		lapX = ctx.broadcastTo(x.Laplacian, outDims)
	}
	if !y.IsConstant() {
		jy = ctx.broadcastJacobian(y.Jacobian, outDims)
		lapY = ctx.broadcastTo(y.Laplacian, outDims)
	}

	probe := func(withX, withY bool) (out, deriv1, deriv2 *tensors.Tensor) {
		tangents := make([]*tensors.Tensor, 2)
		if withX {
			tangents[0] = onesTangent(x.Value)
		}
		if withY {
			tangents[1] = onesTangent(y.Value)
		}
		var d1, d2 *tensors.Tensor
		if ctx.entry.linear {
			out, d1 = ctx.backend.JVP(op, values, tangents)
		} else {
			out, d1, d2 = ctx.backend.JVP2(op, values, tangents)
			deriv2 = fromOneDirection(d2)
		}
		deriv1 = fromOneDirection(d1)
		return
	}

	var output, fx, fy, fxx, fyy *tensors.Tensor
	if jx != nil {
		output, fx, fxx = probe(true, false)
	}
	if jy != nil {
		output, fy, fyy = probe(false, true)
	}

	var jacobian *SparseJacobian
	if jx != nil {
		jacobian = jx.Scale(fx)
	}
	if jy != nil {
		jacobian = addJacobians(jacobian, jy.Scale(fy), ctx.cfg)
	}

	var laplacian *tensors.Tensor
	if jx != nil {
		laplacian = ctx.mul(fx, lapX)
		if fxx != nil {
			laplacian = ctx.add(laplacian, ctx.mul(fxx, sumOfSquares(ctx, jx)))
		}
	}
	if jy != nil {
		laplacian = ctx.addMaybe(laplacian, ctx.mul(fy, lapY))
		if fyy != nil {
			laplacian = ctx.add(laplacian, ctx.mul(fyy, sumOfSquares(ctx, jy)))
		}
	}
	if jx != nil && jy != nil && !ctx.entry.linear {
		// The both-inputs probe returns fxx+2fxy+fyy as its second-order coefficient.
		_, _, both2 := probe(true, true)
		twiceFxy := ctx.binary(backends.OpTypeSub, ctx.binary(backends.OpTypeSub, both2, fxx), fyy)
		laplacian = ctx.add(laplacian, ctx.mul(twiceFxy, sumOfProducts(ctx, jx, jy)))
	}
	return &LapDual{Value: output, Jacobian: jacobian, Laplacian: laplacian}
}
