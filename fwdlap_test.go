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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gomlx/fwdlap/backends"
	"github.com/gomlx/fwdlap/graph"
	"github.com/gomlx/fwdlap/types/tensors"
	"github.com/gomlx/gopjrt/dtypes"
)

func TestSumOfSquares(t *testing.T) {
	exec := Wrap(func(g *graph.Graph, inputs []*graph.Node) []*graph.Node {
		return []*graph.Node{graph.ReduceAllSum(graph.Square(inputs[0]))}
	})
	r := exec.Call(tensors.FromFlatDataAndDimensions([]float64{0, 1, 2}, 3))[0]

	require.True(t, r.Value.IsScalar())
	assert.Equal(t, 5.0, r.Value.Value())
	assert.Equal(t, []float64{0, 2, 4}, tensors.ConstFlatData[float64](r.JacobianDense()))
	assert.Equal(t, 6.0, r.Laplacian.Value())
}

func TestDotQuadraticForm(t *testing.T) {
	exec := Wrap(func(g *graph.Graph, inputs []*graph.Node) []*graph.Node {
		return []*graph.Node{graph.Dot(inputs[0], inputs[0])}
	})
	r := exec.Call(tensors.FromFlatDataAndDimensions([]float64{0, 1, 2}, 3))[0]

	assert.Equal(t, 5.0, r.Value.Value())
	assert.Equal(t, []float64{0, 2, 4}, tensors.ConstFlatData[float64](r.JacobianDense()))
	assert.InDelta(t, 6.0, r.Laplacian.Value().(float64), 1e-12)
}

func TestElementwiseKeepsSparsity(t *testing.T) {
	exec := Wrap(func(g *graph.Graph, inputs []*graph.Node) []*graph.Node {
		return []*graph.Node{graph.Exp(inputs[0])}
	})
	x := tensors.FromFlatDataAndDimensions([]float64{0, 1, 2, 3, 4, 5, 6, 7}, 8)
	r := exec.Call(x)[0]

	// An elementwise chain never mixes elements: one slot per element, untouched from
	// the identity seed.
	require.NotNil(t, r.Jacobian)
	require.False(t, r.Jacobian.IsDense())
	assert.Equal(t, 1, r.Jacobian.NumDirections())

	// d/dxᵢ eˣᵢ = eˣᵢ and Δ eˣᵢ = eˣᵢ.
	jac := r.JacobianDense()
	values := tensors.ConstFlatData[float64](r.Value)
	jacFlat := tensors.ConstFlatData[float64](jac)
	lap := tensors.ConstFlatData[float64](r.Laplacian)
	for ii := 0; ii < 8; ii++ {
		for jj := 0; jj < 8; jj++ {
			want := 0.0
			if ii == jj {
				want = values[ii]
			}
			assert.InDelta(t, want, jacFlat[ii*8+jj], 1e-12)
		}
		assert.InDelta(t, values[ii], lap[ii], 1e-12)
	}
}

func TestTwoParameters(t *testing.T) {
	// f(x, w) = Σᵢ xᵢwᵢ: linear in each parameter, zero Laplacian, Jacobian [w; x] over
	// the concatenated coordinate space.
	exec := Wrap(func(g *graph.Graph, inputs []*graph.Node) []*graph.Node {
		return []*graph.Node{graph.ReduceAllSum(graph.Mul(inputs[0], inputs[1]))}
	})
	x := tensors.FromFlatDataAndDimensions([]float64{1, 2, 3}, 3)
	w := tensors.FromFlatDataAndDimensions([]float64{10, 20, 30}, 3)
	r := exec.Call(x, w)[0]

	assert.Equal(t, 140.0, r.Value.Value())
	assert.Equal(t, []float64{10, 20, 30, 1, 2, 3},
		tensors.ConstFlatData[float64](r.JacobianDense()))
	assert.InDelta(t, 0.0, r.Laplacian.Value().(float64), 1e-12)
}

func TestConstantOutput(t *testing.T) {
	exec := Wrap(func(g *graph.Graph, inputs []*graph.Node) []*graph.Node {
		return []*graph.Node{graph.Const(g, []float64{7, 8})}
	})
	r := exec.Call(tensors.FromFlatDataAndDimensions([]float64{1, 2, 3}, 3))[0]

	assert.Nil(t, r.Jacobian)
	assert.Equal(t, []float64{7, 8}, tensors.ConstFlatData[float64](r.Value))
	assert.Equal(t, []float64{0, 0}, tensors.ConstFlatData[float64](r.Laplacian))
	jac := r.JacobianDense()
	assert.Equal(t, []int{2, 3}, jac.Shape().Dimensions)
	assert.Equal(t, []float64{0, 0, 0, 0, 0, 0}, tensors.ConstFlatData[float64](jac))
}

func TestLinearOpsZeroLaplacian(t *testing.T) {
	exec := Wrap(func(g *graph.Graph, inputs []*graph.Node) []*graph.Node {
		x := graph.Reshape(inputs[0], 3, 2)
		x = graph.Transpose(x, 1, 0)
		x = graph.Slice(x, []int{0, 0}, []int{2, 2})
		x = graph.MulScalar(x, 3)
		x = graph.AddScalar(x, 1)
		return []*graph.Node{graph.ReduceSum(x, 0)}
	})
	x := tensors.FromFlatDataAndDimensions([]float64{1, 2, 3, 4, 5, 6}, 6)
	r := exec.Call(x)[0]

	require.Equal(t, []int{2}, r.Value.Shape().Dimensions)
	// Reshaped to [[1 2] [3 4] [5 6]], transposed to [[1 3 5] [2 4 6]], sliced to
	// [[1 3] [2 4]], then 3·x+1 and column sums.
	assert.Equal(t, []float64{11, 23}, tensors.ConstFlatData[float64](r.Value))
	assert.Equal(t, []float64{0, 0}, tensors.ConstFlatData[float64](r.Laplacian))
	assert.Equal(t, []float64{
		3, 3, 0, 0, 0, 0,
		0, 0, 3, 3, 0, 0,
	}, tensors.ConstFlatData[float64](r.JacobianDense()))
}

func TestGatherStaticIndicesKeepSparsity(t *testing.T) {
	exec := Wrap(func(g *graph.Graph, inputs []*graph.Node) []*graph.Node {
		indices := graph.Const(g, []int64{2, 0})
		return []*graph.Node{graph.Gather(inputs[0], indices, 0)}
	})
	x := tensors.FromFlatDataAndDimensions([]float64{10, 20, 30}, 3)
	r := exec.Call(x)[0]

	require.False(t, r.Jacobian.IsDense())
	assert.Equal(t, 1, r.Jacobian.NumDirections())
	assert.Equal(t, []float64{30, 10}, tensors.ConstFlatData[float64](r.Value))
	assert.Equal(t, []float64{
		0, 0, 1,
		1, 0, 0,
	}, tensors.ConstFlatData[float64](r.JacobianDense()))
	assert.Equal(t, []float64{0, 0}, tensors.ConstFlatData[float64](r.Laplacian))
}

func TestGatherDynamicIndicesFallBackToDense(t *testing.T) {
	exec := Wrap(func(g *graph.Graph, inputs []*graph.Node) []*graph.Node {
		return []*graph.Node{graph.Gather(inputs[0], inputs[1], 0)}
	})
	x := tensors.FromFlatDataAndDimensions([]float64{10, 20, 30}, 3)
	indices := tensors.FromFlatDataAndDimensions([]int64{2, 0}, 2)
	r := exec.Call(x, indices)[0]

	// Indices coming in as a parameter are not known to the trace, so the sparse mask
	// bookkeeping is off; the numbers are the same as with constant indices.
	require.NotNil(t, r.Jacobian)
	assert.True(t, r.Jacobian.IsDense())
	assert.Equal(t, []float64{30, 10}, tensors.ConstFlatData[float64](r.Value))
	assert.Equal(t, []float64{
		0, 0, 1,
		1, 0, 0,
	}, tensors.ConstFlatData[float64](r.JacobianDense()))
	assert.Equal(t, []float64{0, 0}, tensors.ConstFlatData[float64](r.Laplacian))
}

func TestSparsityOnOffAgree(t *testing.T) {
	fn := func(g *graph.Graph, inputs []*graph.Node) []*graph.Node {
		x := inputs[0]
		y := graph.Mul(graph.Exp(graph.Sin(x)), x)
		z := graph.Add(y, graph.Tanh(x))
		return []*graph.Node{
			graph.ReduceAllSum(z),
			graph.Dot(z, z),
		}
	}
	x := tensors.FromFlatDataAndDimensions([]float64{0.5, -1.5, 2.5, 0.1}, 4)

	sparse := Wrap(fn).Call(x)
	dense := Wrap(fn, WithSparsity(false)).Call(x)
	require.Len(t, sparse, 2)
	require.Len(t, dense, 2)
	for ii := range sparse {
		assert.True(t, sparse[ii].Value.InDelta(dense[ii].Value, 1e-10))
		assert.True(t, sparse[ii].JacobianDense().InDelta(dense[ii].JacobianDense(), 1e-10))
		assert.True(t, sparse[ii].Laplacian.InDelta(dense[ii].Laplacian, 1e-10))
	}
}

func TestDefaultRuleMatchesSpecialized(t *testing.T) {
	fn := func(g *graph.Graph, inputs []*graph.Node) []*graph.Node {
		x := inputs[0]
		return []*graph.Node{graph.ReduceAllSum(graph.Mul(graph.Exp(x), x))}
	}
	x := tensors.FromFlatDataAndDimensions([]float64{0.5, -0.25, 1.5}, 3)
	specialized := Wrap(fn).Call(x)[0]

	for _, opType := range []backends.OpType{backends.OpTypeMul, backends.OpTypeExp} {
		restore := deregisterForTest(opType)
		generic := Wrap(fn).Call(x)[0]
		restore()

		assert.True(t, specialized.Value.InDelta(generic.Value, 1e-10), "op %s", opType)
		assert.True(t, specialized.JacobianDense().InDelta(generic.JacobianDense(), 1e-10),
			"op %s", opType)
		assert.True(t, specialized.Laplacian.InDelta(generic.Laplacian, 1e-10), "op %s", opType)
	}
}

func TestBroadcastingBinary(t *testing.T) {
	// Scalar × vector, exercising the Jacobian broadcast path: f(s, v) = s·v.
	exec := Wrap(func(g *graph.Graph, inputs []*graph.Node) []*graph.Node {
		return []*graph.Node{graph.Mul(inputs[0], inputs[1])}
	})
	s := tensors.FromScalar(3.0)
	v := tensors.FromFlatDataAndDimensions([]float64{1, 2}, 2)
	r := exec.Call(s, v)[0]

	assert.Equal(t, []float64{3, 6}, tensors.ConstFlatData[float64](r.Value))
	// Coordinates: [s, v0, v1]. ∂(s·vᵢ)/∂s = vᵢ, ∂(s·vᵢ)/∂vᵢ = s.
	assert.Equal(t, []float64{
		1, 3, 0,
		2, 0, 3,
	}, tensors.ConstFlatData[float64](r.JacobianDense()))
	// Both pure second derivatives vanish and the Laplacian only sums the diagonal of
	// the Hessian, so Δ(s·vᵢ) = 0.
	assert.Equal(t, []float64{0, 0}, tensors.ConstFlatData[float64](r.Laplacian))
}

func TestRetracePerShape(t *testing.T) {
	calls := 0
	exec := Wrap(func(g *graph.Graph, inputs []*graph.Node) []*graph.Node {
		calls++
		return []*graph.Node{graph.ReduceAllSum(graph.Square(inputs[0]))}
	})
	exec.Call(tensors.FromFlatDataAndDimensions([]float64{1, 2}, 2))
	exec.Call(tensors.FromFlatDataAndDimensions([]float64{3, 4}, 2))
	assert.Equal(t, 1, calls)
	r := exec.Call(tensors.FromFlatDataAndDimensions([]float64{1, 2, 3}, 3))[0]
	assert.Equal(t, 2, calls)
	assert.Equal(t, 14.0, r.Value.Value())
}

func TestCallWithErr(t *testing.T) {
	exec := Wrap(func(g *graph.Graph, inputs []*graph.Node) []*graph.Node {
		return []*graph.Node{graph.Neg(inputs[0])}
	})
	_, err := exec.CallWithErr(
		tensors.FromFlatDataAndDimensions([]float64{1}, 1),
		tensors.FromFlatDataAndDimensions([]float64{2}, 1))
	require.Error(t, err)

	results, err := exec.CallWithErr(tensors.FromFlatDataAndDimensions([]float64{1, 2}, 2))
	require.NoError(t, err)
	assert.Equal(t, []float64{-1, -2}, tensors.ConstFlatData[float64](results[0].Value))
}

func TestIntParameterIsNotDifferentiated(t *testing.T) {
	exec := Wrap(func(g *graph.Graph, inputs []*graph.Node) []*graph.Node {
		asFloat := graph.ConvertDType(inputs[1], dtypes.Float64)
		return []*graph.Node{graph.Mul(inputs[0], asFloat)}
	})
	x := tensors.FromFlatDataAndDimensions([]float64{1.5, 2.5}, 2)
	k := tensors.FromFlatDataAndDimensions([]int64{2, 4}, 2)
	r := exec.Call(x, k)[0]

	assert.Equal(t, []float64{3, 10}, tensors.ConstFlatData[float64](r.Value))
	// Only the 2 float coordinates exist.
	jac := r.JacobianDense()
	require.Equal(t, []int{2, 2}, jac.Shape().Dimensions)
	assert.Equal(t, []float64{2, 0, 0, 4}, tensors.ConstFlatData[float64](jac))
	assert.Equal(t, []float64{0, 0}, tensors.ConstFlatData[float64](r.Laplacian))
}
