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

// Second-order helpers: the Laplacian of a node is the chain term (the inputs' accumulated
// Laplacians pushed through the operation's linearization) plus the operation's own
// second-order contribution tr(JᵗHJ), obtained from the per-direction second-order
// coefficients of a forward-over-forward pass -- the Hessian is never materialized.

import (
	"github.com/gomlx/fwdlap/backends"
	"github.com/gomlx/fwdlap/types/tensors"
)

// laplacianChainTerm pushes the inputs' accumulated Laplacians through the operation's
// first-order linearization: one JVP call with the Laplacians as a single direction. Returns
// nil when every input is constant.
func laplacianChainTerm(ctx *ruleContext, inputs []*LapDual) *tensors.Tensor {
	values := make([]*tensors.Tensor, len(inputs))
	tangents := make([]*tensors.Tensor, len(inputs))
	any := false
	for ii, input := range inputs {
		values[ii] = input.Value
		if input.IsConstant() {
			continue
		}
		tangents[ii] = asOneDirection(input.Laplacian)
		any = true
	}
	if !any {
		return nil
	}
	_, outTangents := ctx.backend.JVP(ctx.node.Op(), values, tangents)
	return fromOneDirection(outTangents)
}

// sumDirections contracts a direction batch (*S, d) over its trailing axis, yielding S. Used
// to sum per-direction second-order coefficients into the Laplacian contribution.
func sumDirections(ctx *ruleContext, batch *tensors.Tensor) *tensors.Tensor {
	return ctx.backend.Apply(backends.Op{
		Type: backends.OpTypeReduceSum,
		Axes: []int{batch.Rank() - 1},
	}, batch)
}
