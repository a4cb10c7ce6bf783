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
	"github.com/gomlx/exceptions"

	"github.com/gomlx/fwdlap/backends"
	"github.com/gomlx/fwdlap/graph"
	"github.com/gomlx/fwdlap/types/tensors"
)

// interpret runs the forward-Laplacian pass over the graph: every node is visited in
// dependency order and assigned a LapDual. Float parameters are the differentiation inputs,
// seeded with identity Jacobians over one global flat coordinate space; subgraphs that don't
// depend on any parameter (static) are constant-folded, so attributes computed from them
// (e.g. gather indices) are known concretely during propagation.
func interpret(cfg *config, g *graph.Graph, params []*tensors.Tensor) []*LapDual {
	gParams := g.Parameters()
	if len(params) != len(gParams) {
		exceptions.Panicf("graph %q takes %d parameters, got %d", g.Name(), len(gParams),
			len(params))
	}
	for ii, node := range gParams {
		if !params[ii].Shape().Equal(node.Shape()) {
			exceptions.Panicf("parameter %q expects %s, got %s", node.ParameterName(),
				node.Shape(), params[ii].Shape())
		}
	}

	// One flat coordinate space over all float parameters, in declaration order.
	numInputs := 0
	offsets := make(map[graph.NodeId]int, len(gParams))
	paramIndex := make(map[graph.NodeId]int, len(gParams))
	for ii, node := range gParams {
		paramIndex[node.Id()] = ii
		offsets[node.Id()] = numInputs
		if node.DType().IsFloat() {
			numInputs += node.Shape().Size()
		}
	}

	backend := cfg.backend
	duals := make([]*LapDual, g.NumNodes())
	static := make([]bool, g.NumNodes())
	for _, node := range g.Nodes() {
		id := node.Id()
		switch node.Type() {
		case backends.OpTypeParameter:
			value := params[paramIndex[id]]
			if !node.DType().IsFloat() {
				duals[id] = constDual(value)
				continue
			}
			var jacobian *SparseJacobian
			if cfg.sparsity {
				jacobian = identityJacobian(node.Shape(), offsets[id], numInputs)
			} else {
				jacobian = denseIdentityJacobian(node.Shape(), offsets[id], numInputs)
			}
			duals[id] = &LapDual{
				Value:     value,
				Jacobian:  jacobian,
				Laplacian: zerosOf(node.Shape()),
			}

		case backends.OpTypeConstant:
			duals[id] = constDual(node.ConstValue())
			static[id] = true

		default:
			inputNodes := node.Inputs()
			inputDuals := make([]*LapDual, len(inputNodes))
			inputStatic := make([]bool, len(inputNodes))
			allStatic := true
			for ii, input := range inputNodes {
				inputDuals[ii] = duals[input.Id()]
				inputStatic[ii] = static[input.Id()]
				allStatic = allStatic && inputStatic[ii]
			}
			if allStatic {
				duals[id] = constDual(backend.Apply(node.Op(), valuesOf(inputDuals)...))
				static[id] = true
				continue
			}
			entry := lookupRule(node.Type())
			ctx := &ruleContext{
				backend:     backend,
				cfg:         cfg,
				node:        node,
				entry:       &entry,
				inputStatic: inputStatic,
			}
			duals[id] = entry.rule(ctx, inputDuals)
			if duals[id] == nil {
				exceptions.Panicf("propagation rule for %s returned nil", node)
			}
		}
	}
	return duals
}
