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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gomlx/fwdlap/graph"
	"github.com/gomlx/fwdlap/types/tensors"
)

// checkFiniteDifferences verifies a single-input, single-output function's Jacobian with
// central differences and its Laplacian with the second-order central stencil, in float64.
func checkFiniteDifferences(t *testing.T, fn GraphFn, xFlat []float64, dims ...int) {
	t.Helper()
	exec := Wrap(fn)
	evalAt := func(flat []float64) []float64 {
		x := tensors.FromFlatDataAndDimensions(flat, dims...)
		return tensors.ConstFlatData[float64](exec.Call(x)[0].Value)
	}

	x := tensors.FromFlatDataAndDimensions(xFlat, dims...)
	r := exec.Call(x)[0]
	f0 := tensors.ConstFlatData[float64](r.Value)
	numInputs := len(xFlat)
	outSize := len(f0)
	jac := tensors.ConstFlatData[float64](r.JacobianDense())
	lap := tensors.ConstFlatData[float64](r.Laplacian)

	const eps = 1e-5
	lapFD := make([]float64, outSize)
	for in := 0; in < numInputs; in++ {
		perturbed := append([]float64{}, xFlat...)
		perturbed[in] = xFlat[in] + eps
		fPlus := evalAt(perturbed)
		perturbed[in] = xFlat[in] - eps
		fMinus := evalAt(perturbed)
		for out := 0; out < outSize; out++ {
			wantJ := (fPlus[out] - fMinus[out]) / (2 * eps)
			assert.InDeltaf(t, wantJ, jac[out*numInputs+in], 1e-5,
				"d out[%d] / d in[%d]", out, in)
			lapFD[out] += (fPlus[out] - 2*f0[out] + fMinus[out]) / (eps * eps)
		}
	}
	for out := 0; out < outSize; out++ {
		assert.InDeltaf(t, lapFD[out], lap[out], 1e-3, "laplacian of out[%d]", out)
	}
}

func TestRulesAgainstFiniteDifferences(t *testing.T) {
	testCases := []struct {
		name  string
		fn    GraphFn
		xFlat []float64
		dims  []int
	}{
		{
			name: "transcendental chain",
			fn: func(g *graph.Graph, inputs []*graph.Node) []*graph.Node {
				x := inputs[0]
				return []*graph.Node{graph.Mul(graph.Exp(graph.Sin(x)), x)}
			},
			xFlat: []float64{0.5, -1.25, 2.0, 0.1},
			dims:  []int{4},
		},
		{
			name: "positive domain chain",
			fn: func(g *graph.Graph, inputs []*graph.Node) []*graph.Node {
				x := inputs[0]
				return []*graph.Node{graph.Log(graph.Sqrt(graph.AddScalar(graph.Square(x), 1)))}
			},
			xFlat: []float64{0.5, 1.5, 2.5},
			dims:  []int{3},
		},
		{
			name: "division and power",
			fn: func(g *graph.Graph, inputs []*graph.Node) []*graph.Node {
				x := inputs[0]
				num := graph.Pow(x, graph.Scalar(g, x.DType(), 3))
				den := graph.AddScalar(graph.Tanh(x), 2)
				return []*graph.Node{graph.Div(num, den)}
			},
			xFlat: []float64{0.5, 1.5, -0.75},
			dims:  []int{3},
		},
		{
			name: "softplus and logistic",
			fn: func(g *graph.Graph, inputs []*graph.Node) []*graph.Node {
				x := inputs[0]
				return []*graph.Node{graph.Mul(graph.Softplus(x), graph.Sigmoid(x))}
			},
			xFlat: []float64{-2, -0.5, 0.5, 2},
			dims:  []int{4},
		},
		{
			name: "reduce sum of squares",
			fn: func(g *graph.Graph, inputs []*graph.Node) []*graph.Node {
				x := inputs[0]
				return []*graph.Node{graph.ReduceSum(graph.Square(x), 1)}
			},
			xFlat: []float64{1, 2, 3, 4, 5, 6},
			dims:  []int{2, 3},
		},
		{
			name: "matrix dot with itself",
			fn: func(g *graph.Graph, inputs []*graph.Node) []*graph.Node {
				x := inputs[0]
				return []*graph.Node{graph.Dot(x, graph.Transpose(x, 1, 0))}
			},
			xFlat: []float64{1, 2, 3, 4, 5, 6},
			dims:  []int{2, 3},
		},
		{
			name: "reduce max is piecewise linear",
			fn: func(g *graph.Graph, inputs []*graph.Node) []*graph.Node {
				x := inputs[0]
				return []*graph.Node{graph.ReduceAllMax(graph.Square(x))}
			},
			xFlat: []float64{0.5, 2.0, -1.0},
			dims:  []int{3},
		},
		{
			name: "where selects branch derivatives",
			fn: func(g *graph.Graph, inputs []*graph.Node) []*graph.Node {
				x := inputs[0]
				cond := graph.Const(g, []bool{true, false, true})
				return []*graph.Node{graph.Where(cond, graph.Square(x), graph.Exp(x))}
			},
			xFlat: []float64{0.5, 1.0, -1.5},
			dims:  []int{3},
		},
		{
			name: "concatenate",
			fn: func(g *graph.Graph, inputs []*graph.Node) []*graph.Node {
				x := inputs[0]
				return []*graph.Node{graph.Concatenate(
					[]*graph.Node{graph.Square(x), graph.Neg(x)}, 0)}
			},
			xFlat: []float64{1, -2, 3},
			dims:  []int{3},
		},
		{
			name: "broadcast against reduced mean",
			fn: func(g *graph.Graph, inputs []*graph.Node) []*graph.Node {
				x := inputs[0]
				mean := graph.DivScalar(graph.ReduceAllSum(x), 6)
				return []*graph.Node{graph.Mul(x, graph.Sub(x, mean))}
			},
			xFlat: []float64{1, 2, 3, 4, 5, 6},
			dims:  []int{6},
		},
		{
			name: "erf and cos mix",
			fn: func(g *graph.Graph, inputs []*graph.Node) []*graph.Node {
				x := inputs[0]
				return []*graph.Node{graph.ReduceAllSum(graph.Mul(graph.Erf(x), graph.Cos(x)))}
			},
			xFlat: []float64{0.25, -0.75, 1.25},
			dims:  []int{3},
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			checkFiniteDifferences(t, testCase.fn, testCase.xFlat, testCase.dims...)
		})
	}
}

func TestMaxSparseFractionControlsDensification(t *testing.T) {
	// Summing K of N elements needs K slots: sparse below the threshold, dense above.
	fn := func(g *graph.Graph, inputs []*graph.Node) []*graph.Node {
		head := graph.Slice(inputs[0], []int{0}, []int{4})
		return []*graph.Node{graph.ReduceAllSum(head)}
	}
	x := tensors.FromFlatDataAndDimensions([]float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 10)

	r := Wrap(fn, WithMaxSparseFraction(0.9)).Call(x)[0]
	require.False(t, r.Jacobian.IsDense())
	assert.Equal(t, 4, r.Jacobian.NumDirections())

	r = Wrap(fn, WithMaxSparseFraction(0.2)).Call(x)[0]
	require.True(t, r.Jacobian.IsDense())
	assert.Equal(t, 10, r.Jacobian.NumDirections())

	for _, fraction := range []float64{-1, 0, 1.5} {
		assert.Panics(t, func() { WithMaxSparseFraction(fraction) }, fmt.Sprintf("%g", fraction))
	}
}
