package goeval

import (
	"fmt"
	"math"
	"testing"

	"github.com/gomlx/fwdlap/backends"
	"github.com/gomlx/fwdlap/types/tensors"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testBackend = New("")

func vector(values ...float64) *tensors.Tensor {
	return tensors.FromFlatDataAndDimensions(values, len(values))
}

func matrix2x3(values ...float64) *tensors.Tensor {
	return tensors.FromFlatDataAndDimensions(values, 2, 3)
}

// oneDirection reshapes a tensor of the operand's shape into a tangent batch with a single
// direction.
func oneDirection(t *tensors.Tensor) *tensors.Tensor {
	dims := append(append([]int{}, t.Shape().Dimensions...), 1)
	return tensors.Reshape(t, dims...)
}

func TestApplyUnary(t *testing.T) {
	x := vector(-1, 0, 0.5, 2)
	got := testBackend.Apply(backends.Op{Type: backends.OpTypeExp}, x)
	for ii, xi := range []float64{-1, 0, 0.5, 2} {
		assert.InDelta(t, math.Exp(xi), tensors.ConstFlatData[float64](got)[ii], 1e-12)
	}

	got = testBackend.Apply(backends.Op{Type: backends.OpTypeAbs}, x)
	assert.Equal(t, []float64{1, 0, 0.5, 2}, tensors.ConstFlatData[float64](got))
}

func TestApplyBinaryBroadcast(t *testing.T) {
	lhs := matrix2x3(1, 2, 3, 4, 5, 6)
	rhs := tensors.FromFlatDataAndDimensions([]float64{10, 100}, 2, 1)
	got := testBackend.Apply(backends.Op{Type: backends.OpTypeMul}, lhs, rhs)
	require.NoError(t, got.Shape().CheckDims(2, 3))
	assert.Equal(t, []float64{10, 20, 30, 400, 500, 600}, tensors.ConstFlatData[float64](got))

	scalar := tensors.FromScalar(2.0)
	got = testBackend.Apply(backends.Op{Type: backends.OpTypePow}, lhs, scalar)
	assert.Equal(t, []float64{1, 4, 9, 16, 25, 36}, tensors.ConstFlatData[float64](got))
}

func TestApplyWhere(t *testing.T) {
	cond := tensors.FromValue([]bool{true, false, true})
	onTrue := vector(1, 2, 3)
	onFalse := vector(-1, -2, -3)
	got := testBackend.Apply(backends.Op{Type: backends.OpTypeWhere}, cond, onTrue, onFalse)
	assert.Equal(t, []float64{1, -2, 3}, tensors.ConstFlatData[float64](got))
}

func TestApplyStructural(t *testing.T) {
	x := matrix2x3(1, 2, 3, 4, 5, 6)

	got := testBackend.Apply(backends.Op{Type: backends.OpTypeTranspose, Axes: []int{1, 0}}, x)
	require.NoError(t, got.Shape().CheckDims(3, 2))
	assert.Equal(t, []float64{1, 4, 2, 5, 3, 6}, tensors.ConstFlatData[float64](got))

	got = testBackend.Apply(backends.Op{Type: backends.OpTypeReshape, Dims: []int{3, 2}}, x)
	require.NoError(t, got.Shape().CheckDims(3, 2))
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, tensors.ConstFlatData[float64](got))

	got = testBackend.Apply(backends.Op{Type: backends.OpTypeSlice, Starts: []int{0, 1}, Limits: []int{2, 3}}, x)
	require.NoError(t, got.Shape().CheckDims(2, 2))
	assert.Equal(t, []float64{2, 3, 5, 6}, tensors.ConstFlatData[float64](got))

	indices := tensors.FromValue([]int64{2, 0, 0})
	got = testBackend.Apply(backends.Op{Type: backends.OpTypeGather, Axes: []int{1}}, x, indices)
	require.NoError(t, got.Shape().CheckDims(2, 3))
	assert.Equal(t, []float64{3, 1, 1, 6, 4, 4}, tensors.ConstFlatData[float64](got))

	row := tensors.FromFlatDataAndDimensions([]float64{7, 8, 9}, 1, 3)
	got = testBackend.Apply(backends.Op{Type: backends.OpTypeConcatenate, Axes: []int{0}}, x, row)
	require.NoError(t, got.Shape().CheckDims(3, 3))
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6, 7, 8, 9}, tensors.ConstFlatData[float64](got))

	small := tensors.FromFlatDataAndDimensions([]float64{1, 2}, 2, 1)
	got = testBackend.Apply(backends.Op{
		Type: backends.OpTypeBroadcastInDim, Dims: []int{2, 3}, Axes: []int{0, 1}}, small)
	require.NoError(t, got.Shape().CheckDims(2, 3))
	assert.Equal(t, []float64{1, 1, 1, 2, 2, 2}, tensors.ConstFlatData[float64](got))

	got = testBackend.Apply(backends.Op{
		Type: backends.OpTypeIota, DType: dtypes.Float64, Dims: []int{2, 3}, Axes: []int{1}})
	assert.Equal(t, []float64{0, 1, 2, 0, 1, 2}, tensors.ConstFlatData[float64](got))
}

func TestApplyReduce(t *testing.T) {
	x := matrix2x3(1, 2, 3, 4, 5, 6)

	got := testBackend.Apply(backends.Op{Type: backends.OpTypeReduceSum, Axes: []int{1}}, x)
	require.NoError(t, got.Shape().CheckDims(2))
	assert.Equal(t, []float64{6, 15}, tensors.ConstFlatData[float64](got))

	got = testBackend.Apply(backends.Op{Type: backends.OpTypeReduceSum}, x)
	require.True(t, got.IsScalar())
	assert.Equal(t, 21.0, tensors.ToScalar[float64](got))

	got = testBackend.Apply(backends.Op{Type: backends.OpTypeReduceMax, Axes: []int{0}}, x)
	require.NoError(t, got.Shape().CheckDims(3))
	assert.Equal(t, []float64{4, 5, 6}, tensors.ConstFlatData[float64](got))
}

func TestApplyDot(t *testing.T) {
	a := matrix2x3(1, 2, 3, 4, 5, 6)
	bT := tensors.FromFlatDataAndDimensions([]float64{1, 0, 0, 1, 1, 1}, 3, 2)
	got := testBackend.Apply(backends.Op{Type: backends.OpTypeDot}, a, bT)
	require.NoError(t, got.Shape().CheckDims(2, 2))
	assert.Equal(t, []float64{4, 5, 10, 11}, tensors.ConstFlatData[float64](got))

	v := vector(1, 2, 3)
	w := vector(4, 5, 6)
	got = testBackend.Apply(backends.Op{Type: backends.OpTypeDot}, v, w)
	require.True(t, got.IsScalar())
	assert.Equal(t, 32.0, tensors.ToScalar[float64](got))
}

// perturb returns input + eps·direction, elementwise. direction has the input's shape.
func perturb(input, direction *tensors.Tensor, eps float64) *tensors.Tensor {
	in := tensors.ConstFlatData[float64](input)
	dir := tensors.ConstFlatData[float64](direction)
	shifted := make([]float64, len(in))
	for ii := range in {
		shifted[ii] = in[ii] + eps*dir[ii]
	}
	return tensors.FromFlatDataAndDimensions(shifted, input.Shape().Dimensions...)
}

// checkJetAgainstFiniteDifferences runs JVP2 with one direction per input and compares the
// first and second order coefficients against central finite differences of Apply.
func checkJetAgainstFiniteDifferences(t *testing.T, op backends.Op, inputs, directions []*tensors.Tensor) {
	t.Helper()
	tangents := make([]*tensors.Tensor, len(inputs))
	for ii, dir := range directions {
		if dir != nil {
			tangents[ii] = oneDirection(dir.Clone())
		}
	}
	output, outputTangents, output2nd := testBackend.JVP2(op, inputs, tangents)

	const eps = 1e-4
	shift := func(eps float64) *tensors.Tensor {
		shifted := make([]*tensors.Tensor, len(inputs))
		for ii, input := range inputs {
			if directions[ii] == nil {
				shifted[ii] = input
			} else {
				shifted[ii] = perturb(input, directions[ii], eps)
			}
		}
		return testBackend.Apply(op, shifted...)
	}
	plus := tensors.ConstFlatData[float64](shift(eps))
	minus := tensors.ConstFlatData[float64](shift(-eps))

	outFlat := tensors.ConstFlatData[float64](output)
	dOutFlat := tensors.ConstFlatData[float64](outputTangents)
	d2Flat := tensors.ConstFlatData[float64](output2nd)
	require.Len(t, dOutFlat, len(outFlat))
	require.Len(t, d2Flat, len(outFlat))
	for ii := range outFlat {
		firstOrder := (plus[ii] - minus[ii]) / (2 * eps)
		secondOrder := (plus[ii] - 2*outFlat[ii] + minus[ii]) / (eps * eps)
		assert.InDeltaf(t, firstOrder, dOutFlat[ii], 1e-5, "first order coefficient #%d of %s", ii, op)
		assert.InDeltaf(t, secondOrder, d2Flat[ii], 1e-3, "second order coefficient #%d of %s", ii, op)
	}
}

func TestJetUnaryFiniteDifferences(t *testing.T) {
	x := vector(-1.5, -0.3, 0.2, 0.9, 2.1)
	dir := vector(1, -2, 0.5, 3, -1)
	for _, opType := range []backends.OpType{
		backends.OpTypeExp, backends.OpTypeSin, backends.OpTypeCos, backends.OpTypeTanh,
		backends.OpTypeLogistic, backends.OpTypeErf, backends.OpTypeNeg,
	} {
		t.Run(opType.String(), func(t *testing.T) {
			checkJetAgainstFiniteDifferences(t, backends.Op{Type: opType},
				[]*tensors.Tensor{x}, []*tensors.Tensor{dir})
		})
	}

	// Positive domain ops.
	xPos := vector(0.3, 0.8, 1.7, 3.2)
	dirPos := vector(1, -1, 2, 0.5)
	for _, opType := range []backends.OpType{
		backends.OpTypeLog, backends.OpTypeLog1p, backends.OpTypeSqrt, backends.OpTypeRsqrt,
	} {
		t.Run(opType.String(), func(t *testing.T) {
			checkJetAgainstFiniteDifferences(t, backends.Op{Type: opType},
				[]*tensors.Tensor{xPos}, []*tensors.Tensor{dirPos})
		})
	}
}

func TestJetBinaryFiniteDifferences(t *testing.T) {
	x := vector(0.7, 1.4, 2.2)
	y := vector(1.1, 0.5, 3.0)
	dx := vector(1, -0.5, 2)
	dy := vector(-1, 2, 0.3)
	for _, opType := range []backends.OpType{
		backends.OpTypeAdd, backends.OpTypeSub, backends.OpTypeMul, backends.OpTypeDiv,
		backends.OpTypePow,
	} {
		for _, tc := range []struct {
			name     string
			dirs     []*tensors.Tensor
		}{
			{"both", []*tensors.Tensor{dx, dy}},
			{"lhs-only", []*tensors.Tensor{dx, nil}},
			{"rhs-only", []*tensors.Tensor{nil, dy}},
		} {
			t.Run(fmt.Sprintf("%s-%s", opType, tc.name), func(t *testing.T) {
				checkJetAgainstFiniteDifferences(t, backends.Op{Type: opType},
					[]*tensors.Tensor{x, y}, tc.dirs)
			})
		}
	}
}

func TestJetDotFiniteDifferences(t *testing.T) {
	a := matrix2x3(0.5, -1, 2, 1.5, 0.3, -0.7)
	b := tensors.FromFlatDataAndDimensions([]float64{1, 2, -1, 0.5, 3, -2}, 3, 2)
	da := matrix2x3(1, 0.5, -1, 2, -0.3, 1)
	db := tensors.FromFlatDataAndDimensions([]float64{0.5, -1, 2, 1, -0.5, 3}, 3, 2)
	checkJetAgainstFiniteDifferences(t, backends.Op{Type: backends.OpTypeDot},
		[]*tensors.Tensor{a, b}, []*tensors.Tensor{da, db})
	checkJetAgainstFiniteDifferences(t, backends.Op{Type: backends.OpTypeDot},
		[]*tensors.Tensor{a, b}, []*tensors.Tensor{da, nil})
}

func TestJetStructural(t *testing.T) {
	x := matrix2x3(1, 2, 3, 4, 5, 6)
	// Two directions per element, tangent shape (2, 3, 2).
	dx := tensors.FromFlatDataAndDimensions(
		[]float64{1, 10, 2, 20, 3, 30, 4, 40, 5, 50, 6, 60}, 2, 3, 2)

	op := backends.Op{Type: backends.OpTypeTranspose, Axes: []int{1, 0}}
	output, outputTangents := testBackend.JVP(op, []*tensors.Tensor{x}, []*tensors.Tensor{dx})
	require.NoError(t, output.Shape().CheckDims(3, 2))
	require.NoError(t, outputTangents.Shape().CheckDims(3, 2, 2))
	assert.Equal(t, []float64{1, 10, 4, 40, 2, 20, 5, 50, 3, 30, 6, 60},
		tensors.ConstFlatData[float64](outputTangents))

	op = backends.Op{Type: backends.OpTypeReduceSum, Axes: []int{0}}
	output, outputTangents = testBackend.JVP(op, []*tensors.Tensor{x}, []*tensors.Tensor{dx})
	require.NoError(t, output.Shape().CheckDims(3))
	require.NoError(t, outputTangents.Shape().CheckDims(3, 2))
	assert.Equal(t, []float64{5, 50, 7, 70, 9, 90}, tensors.ConstFlatData[float64](outputTangents))

	op = backends.Op{Type: backends.OpTypeReduceMax, Axes: []int{1}}
	output, outputTangents = testBackend.JVP(op, []*tensors.Tensor{x}, []*tensors.Tensor{dx})
	assert.Equal(t, []float64{3, 6}, tensors.ConstFlatData[float64](output))
	assert.Equal(t, []float64{3, 30, 6, 60}, tensors.ConstFlatData[float64](outputTangents))
}

func TestJVP2LinearOpsReturnZeros(t *testing.T) {
	x := vector(1, 2, 3)
	dx := oneDirection(vector(1, 1, 1))
	_, outputTangents, output2nd := testBackend.JVP2(
		backends.Op{Type: backends.OpTypeNeg}, []*tensors.Tensor{x}, []*tensors.Tensor{dx})
	require.NotNil(t, output2nd)
	assert.True(t, outputTangents.Shape().Equal(output2nd.Shape()))
	for _, v := range tensors.ConstFlatData[float64](output2nd) {
		assert.Zero(t, v)
	}
}

func TestTangentValidation(t *testing.T) {
	x := vector(1, 2, 3)
	require.Panics(t, func() {
		testBackend.JVP(backends.Op{Type: backends.OpTypeExp},
			[]*tensors.Tensor{x}, []*tensors.Tensor{x})
	})
	require.Panics(t, func() {
		testBackend.JVP(backends.Op{Type: backends.OpTypeExp},
			[]*tensors.Tensor{x}, []*tensors.Tensor{nil})
	})
}
