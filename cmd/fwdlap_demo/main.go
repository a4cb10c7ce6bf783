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

// fwdlap_demo computes the value, gradient and Laplacian of a toy unnormalized log-density
// f(x) = -Σᵢ (xᵢ² + softplus(xᵢ)) at a random point, in one forward pass. Run with -v=1 to
// see when the sparse Jacobian bookkeeping decides to densify.
package main

import (
	"flag"
	"fmt"
	"math/rand/v2"

	"github.com/janpfeifer/must"
	"k8s.io/klog/v2"

	"github.com/gomlx/fwdlap"
	"github.com/gomlx/fwdlap/graph"
	"github.com/gomlx/fwdlap/types/tensors"
)

var (
	flagSize     = flag.Int("size", 8, "Number of input coordinates.")
	flagSparsity = flag.Bool("sparsity", true, "Enable the sparse Jacobian bookkeeping.")
	flagSeed     = flag.Uint64("seed", 42, "Seed for the random evaluation point.")
)

func logDensity(g *graph.Graph, inputs []*graph.Node) []*graph.Node {
	x := inputs[0]
	quadratic := graph.ReduceAllSum(graph.Square(x))
	barrier := graph.ReduceAllSum(graph.Softplus(x))
	return []*graph.Node{graph.Neg(graph.Add(quadratic, barrier))}
}

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	rng := rand.New(rand.NewPCG(*flagSeed, 0))
	xFlat := make([]float64, *flagSize)
	for ii := range xFlat {
		xFlat[ii] = rng.NormFloat64()
	}
	x := tensors.FromFlatDataAndDimensions(xFlat, *flagSize)

	exec := fwdlap.Wrap(logDensity, fwdlap.WithSparsity(*flagSparsity))
	result := must.M1(exec.CallWithErr(x))[0]

	fmt.Printf("x        = %s\n", x.GoStr())
	fmt.Printf("f(x)     = %s\n", result.Value.GoStr())
	fmt.Printf("∇f(x)    = %s\n", result.JacobianDense().GoStr())
	fmt.Printf("Δf(x)    = %s\n", result.Laplacian.GoStr())
	if result.Jacobian != nil {
		fmt.Printf("jacobian : %s\n", result.Jacobian)
	}
}
