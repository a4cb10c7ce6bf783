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

// Package fwdlap computes the value, the Jacobian and the Laplacian (the trace of the
// Hessian) of a traced computation in a single forward pass, without ever materializing the
// Hessian.
//
// Wrap a function that builds its computation with the graph package, then call it with
// concrete tensors:
//
//	exec := fwdlap.Wrap(func(g *graph.Graph, inputs []*graph.Node) []*graph.Node {
//		x := inputs[0]
//		return []*graph.Node{graph.ReduceAllSum(graph.Mul(x, x))}
//	})
//	r := exec.Call(x)[0] // r.Value, r.Jacobian, r.Laplacian
//
// The forward pass interprets the graph node by node, carrying per node a LapDual: the
// concrete value, a compressed-sparse Jacobian with respect to the float inputs, and the
// accumulated Laplacian. The sparse Jacobian representation exploits locality: most
// operations touch few input coordinates per output element, so the Jacobian is stored as a
// small data batch plus an index mask instead of a dense (output × inputs) matrix, and the
// propagation rules keep the pattern sparse as long as it pays off (see
// WithMaxSparseFraction).
//
// Propagation rules for new operations can be installed with Register; operations without a
// specialized rule take a generic batched forward-over-forward path that is correct for
// anything the backend can evaluate.
package fwdlap

import (
	"github.com/gomlx/exceptions"

	"github.com/gomlx/fwdlap/backends"

	_ "github.com/gomlx/fwdlap/backends/goeval" // Default backend.
)

// config aggregates the Wrap options.
type config struct {
	backend           backends.Backend
	sparsity          bool
	maxSparseFraction float64
}

// Option configures Wrap.
type Option func(*config)

func newConfig(options ...Option) *config {
	cfg := &config{
		sparsity:          true,
		maxSparseFraction: 0.6,
	}
	for _, option := range options {
		option(cfg)
	}
	if cfg.backend == nil {
		cfg.backend = backends.New()
	}
	return cfg
}

// WithBackend sets the numerical backend used both to evaluate the computation and to push
// derivatives through it. It defaults to backends.New(), the first registered backend.
func WithBackend(backend backends.Backend) Option {
	return func(cfg *config) { cfg.backend = backend }
}

// WithSparsity enables (default) or disables the sparse Jacobian bookkeeping. With sparsity
// disabled every Jacobian is dense over all input coordinates; results are identical, only
// cost changes.
func WithSparsity(enabled bool) Option {
	return func(cfg *config) { cfg.sparsity = enabled }
}

// WithMaxSparseFraction sets the densification threshold, in (0, 1]: whenever aligning
// sparsity patterns would need more than fraction×numInputs slots, the Jacobians involved
// are densified instead, since the sparse representation would cost more than the dense one
// it approximates. Default is 0.6.
func WithMaxSparseFraction(fraction float64) Option {
	if fraction <= 0 || fraction > 1 {
		exceptions.Panicf("WithMaxSparseFraction: fraction must be in (0, 1], got %g", fraction)
	}
	return func(cfg *config) { cfg.maxSparseFraction = fraction }
}

// shouldDensify decides whether a merged pattern of unionSize slots over numInputs input
// coordinates is still worth keeping sparse.
func (cfg *config) shouldDensify(unionSize, numInputs int) bool {
	return float64(unionSize) > cfg.maxSparseFraction*float64(numInputs)
}
