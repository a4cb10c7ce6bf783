package shapeinference

import (
	"testing"

	"github.com/gomlx/fwdlap/backends"
	"github.com/gomlx/fwdlap/types/shapes"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	F64 = dtypes.Float64
	S   = shapes.Make
)

func TestBinaryOp(t *testing.T) {
	out, err := BinaryOp(backends.OpTypeAdd, S(F64, 2, 3), S(F64, 2, 3))
	require.NoError(t, err)
	assert.True(t, out.Equal(S(F64, 2, 3)))

	out, err = BinaryOp(backends.OpTypeMul, S(F64, 2, 1), S(F64, 2, 3))
	require.NoError(t, err)
	assert.True(t, out.Equal(S(F64, 2, 3)))

	out, err = BinaryOp(backends.OpTypeMul, S(F64), S(F64, 5))
	require.NoError(t, err)
	assert.True(t, out.Equal(S(F64, 5)))

	_, err = BinaryOp(backends.OpTypeAdd, S(F64, 2), S(F64, 3))
	require.Error(t, err)
	_, err = BinaryOp(backends.OpTypeAdd, S(F64, 2), S(dtypes.Float32, 2))
	require.Error(t, err)
}

func TestReduceOp(t *testing.T) {
	out, err := ReduceOp(S(F64, 2, 3, 4), []int{1})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 4}, out.Dimensions)

	out, err = ReduceOp(S(F64, 2, 3), nil)
	require.NoError(t, err)
	assert.True(t, out.IsScalar())

	_, err = ReduceOp(S(F64, 2), []int{1})
	require.Error(t, err)
	_, err = ReduceOp(S(F64, 2, 3), []int{0, 0})
	require.Error(t, err)
}

func TestDotOp(t *testing.T) {
	out, err := DotOp(S(F64, 4), S(F64, 4))
	require.NoError(t, err)
	assert.True(t, out.IsScalar())

	out, err = DotOp(S(F64, 2, 4), S(F64, 4))
	require.NoError(t, err)
	assert.Equal(t, []int{2}, out.Dimensions)

	out, err = DotOp(S(F64, 2, 4), S(F64, 4, 3))
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, out.Dimensions)

	_, err = DotOp(S(F64, 2, 4), S(F64, 3))
	require.Error(t, err)
}

func TestStructuralOps(t *testing.T) {
	out, err := ReshapeOp(S(F64, 2, 3), []int{6})
	require.NoError(t, err)
	assert.Equal(t, []int{6}, out.Dimensions)
	_, err = ReshapeOp(S(F64, 2, 3), []int{5})
	require.Error(t, err)

	out, err = TransposeOp(S(F64, 2, 3), []int{1, 0})
	require.NoError(t, err)
	assert.Equal(t, []int{3, 2}, out.Dimensions)
	_, err = TransposeOp(S(F64, 2, 3), []int{0, 0})
	require.Error(t, err)

	out, err = BroadcastInDimOp(S(F64, 3), []int{2, 3}, []int{1})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, out.Dimensions)
	_, err = BroadcastInDimOp(S(F64, 3), []int{2, 4}, []int{1})
	require.Error(t, err)

	out, err = ConcatenateOp([]shapes.Shape{S(F64, 2, 3), S(F64, 2, 5)}, 1)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 8}, out.Dimensions)
	_, err = ConcatenateOp([]shapes.Shape{S(F64, 2, 3), S(F64, 3, 3)}, 1)
	require.Error(t, err)

	out, err = SliceOp(S(F64, 5, 4), []int{1, 0}, []int{3, 4})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 4}, out.Dimensions)
	_, err = SliceOp(S(F64, 5), []int{3}, []int{2})
	require.Error(t, err)

	out, err = GatherOp(S(F64, 5, 2), S(dtypes.Int32, 3), 0)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 2}, out.Dimensions)
	_, err = GatherOp(S(F64, 5), S(F64, 3), 0)
	require.Error(t, err)
}

func TestWhereOp(t *testing.T) {
	out, err := WhereOp(S(dtypes.Bool, 3), S(F64, 3), S(F64, 3))
	require.NoError(t, err)
	assert.True(t, out.Equal(S(F64, 3)))

	out, err = WhereOp(S(dtypes.Bool), S(F64, 3), S(F64))
	require.NoError(t, err)
	assert.True(t, out.Equal(S(F64, 3)))

	_, err = WhereOp(S(F64, 3), S(F64, 3), S(F64, 3))
	require.Error(t, err)
}
