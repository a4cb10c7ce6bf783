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

package tensors

import (
	"testing"

	"github.com/gomlx/fwdlap/types/shapes"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromValue(t *testing.T) {
	tensor := FromValue([][]float32{{1.1, 1.2}, {2.1, 2.2}, {3.1, 3.2}})
	require.True(t, tensor.Shape().Equal(shapes.Make(dtypes.Float32, 3, 2)))
	assert.Equal(t, []float32{1.1, 1.2, 2.1, 2.2, 3.1, 3.2}, ConstFlatData[float32](tensor))
	assert.Equal(t, [][]float32{{1.1, 1.2}, {2.1, 2.2}, {3.1, 3.2}}, tensor.Value())

	scalar := FromValue(5.0)
	require.True(t, scalar.IsScalar())
	assert.Equal(t, 5.0, ToScalar[float64](scalar))

	// Go `int` maps to Int64.
	ints := FromValue([]int{1, 2, 3})
	assert.Equal(t, dtypes.Int64, ints.DType())
	assert.Equal(t, []int64{1, 2, 3}, ConstFlatData[int64](ints))

	require.Panics(t, func() { FromValue([][]float64{{1}, {2, 3}}) })
	require.Panics(t, func() { FromValue([]string{"oops"}) })
}

func TestFromFlatDataAndDimensions(t *testing.T) {
	tensor := FromFlatDataAndDimensions([]float64{0, 1, 2, 3, 4, 5}, 2, 3)
	assert.Equal(t, [][]float64{{0, 1, 2}, {3, 4, 5}}, tensor.Value())
	assert.Equal(t, []int{3, 1}, tensor.LayoutStrides())
	require.Panics(t, func() { FromFlatDataAndDimensions([]float64{0, 1}, 3) })
}

func TestFromScalarAndDimensions(t *testing.T) {
	tensor := FromScalarAndDimensions(float32(7), 2, 2)
	assert.Equal(t, [][]float32{{7, 7}, {7, 7}}, tensor.Value())
}

func TestEqualAndInDelta(t *testing.T) {
	a := FromValue([]float64{1, 2, 3})
	b := FromValue([]float64{1, 2, 3})
	c := FromValue([]float64{1, 2, 3.01})
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.True(t, a.InDelta(c, 0.1))
	assert.False(t, a.InDelta(c, 0.001))
	assert.False(t, a.InDelta(FromValue([][]float64{{1, 2, 3}}), 1.0))
}

func TestClone(t *testing.T) {
	a := FromValue([]float64{1, 2})
	b := a.Clone()
	MutableFlatData[float64](b)[0] = 10
	assert.Equal(t, []float64{1, 2}, ConstFlatData[float64](a))
	assert.Equal(t, []float64{10, 2}, ConstFlatData[float64](b))
}

func TestConvertDType(t *testing.T) {
	a := FromValue([]float64{0, 1.5, -2})
	f32 := ConvertDType(a, dtypes.Float32)
	assert.Equal(t, []float32{0, 1.5, -2}, ConstFlatData[float32](f32))

	i32 := ConvertDType(a, dtypes.Int32)
	assert.Equal(t, []int32{0, 1, -2}, ConstFlatData[int32](i32))

	b := ConvertDType(a, dtypes.Bool)
	assert.Equal(t, []bool{false, true, true}, ConstFlatData[bool](b))
	back := ConvertDType(b, dtypes.Float64)
	assert.Equal(t, []float64{0, 1, 1}, ConstFlatData[float64](back))

	f16 := ConvertDType(a, dtypes.Float16)
	assert.True(t, a.InDelta(ConvertDType(f16, dtypes.Float64), 1e-3))

	bf16 := ConvertDType(a, dtypes.BFloat16)
	assert.True(t, a.InDelta(ConvertDType(bf16, dtypes.Float64), 1e-1))
}

func TestToScalarAndFlatAccessors(t *testing.T) {
	a := FromScalar(int32(3))
	assert.Equal(t, int32(3), ToScalar[int32](a))
	require.Panics(t, func() { ToScalar[float64](a) }) // dtype mismatch
	require.Panics(t, func() { ConstFlatData[float32](a) })
	c := CopyFlatData[int32](a)
	c[0] = 9
	assert.Equal(t, int32(3), ToScalar[int32](a))
}
