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
	"fmt"
	"strings"
	"sync"

	"github.com/gomlx/exceptions"

	"github.com/gomlx/fwdlap/graph"
	"github.com/gomlx/fwdlap/types/tensors"
)

// GraphFn is the function Wrap traces: it builds the computation with the graph package
// operations, from the given parameter nodes (one per tensor later passed to Call, same
// order) to one or more outputs.
type GraphFn func(g *graph.Graph, inputs []*graph.Node) []*graph.Node

// Exec wraps a GraphFn for execution with the forward-Laplacian pass. It traces the function
// once per distinct combination of input shapes and caches the traced graph, so repeated
// calls with same-shaped tensors don't re-trace. Safe for concurrent use.
type Exec struct {
	fn  GraphFn
	cfg *config

	mu     sync.Mutex
	traces map[string]*execTrace
}

type execTrace struct {
	g         *graph.Graph
	outputs   []*graph.Node
	numInputs int
}

// Wrap prepares fn for execution. The options select the backend and tune the sparsity
// bookkeeping; the defaults work for any fn.
func Wrap(fn GraphFn, options ...Option) *Exec {
	return &Exec{
		fn:     fn,
		cfg:    newConfig(options...),
		traces: make(map[string]*execTrace),
	}
}

// Call runs the wrapped function at the given inputs and returns, per output, its value,
// Jacobian and Laplacian with respect to the float inputs. It panics on error; see
// CallWithErr for the error-returning version.
func (e *Exec) Call(inputs ...*tensors.Tensor) []*Result {
	trace := e.traceFor(inputs)
	duals := interpret(e.cfg, trace.g, inputs)
	results := make([]*Result, len(trace.outputs))
	for ii, output := range trace.outputs {
		dual := duals[output.Id()]
		result := &Result{
			Value:     dual.Value,
			Jacobian:  dual.Jacobian,
			Laplacian: dual.Laplacian,
			numInputs: trace.numInputs,
		}
		if result.Laplacian == nil {
			result.Laplacian = zerosOf(dual.Value.Shape())
		}
		results[ii] = result
	}
	return results
}

// CallWithErr is Call with the panics converted to errors.
func (e *Exec) CallWithErr(inputs ...*tensors.Tensor) (results []*Result, err error) {
	err = exceptions.TryCatch[error](func() {
		results = e.Call(inputs...)
	})
	if err != nil {
		results = nil
	}
	return
}

// traceFor returns the cached trace for the inputs' shapes, tracing the function if this
// combination of shapes is new.
func (e *Exec) traceFor(inputs []*tensors.Tensor) *execTrace {
	var signature strings.Builder
	for _, input := range inputs {
		signature.WriteString(input.Shape().String())
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if trace, found := e.traces[signature.String()]; found {
		return trace
	}

	g := graph.New(fmt.Sprintf("fwdlap#%d", len(e.traces)))
	params := make([]*graph.Node, len(inputs))
	for ii, input := range inputs {
		params[ii] = graph.Parameter(g, fmt.Sprintf("x%d", ii), input.Shape())
	}
	outputs := e.fn(g, params)
	if len(outputs) == 0 {
		exceptions.Panicf("wrapped function returned no outputs")
	}
	numInputs := 0
	for _, param := range params {
		if param.DType().IsFloat() {
			numInputs += param.Shape().Size()
		}
	}
	trace := &execTrace{g: g, outputs: outputs, numInputs: numInputs}
	e.traces[signature.String()] = trace
	return trace
}
