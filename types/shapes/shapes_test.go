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

package shapes

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMake(t *testing.T) {
	s := Make(dtypes.Float64, 2, 3)
	assert.Equal(t, 2, s.Rank())
	assert.Equal(t, 6, s.Size())
	assert.Equal(t, 3, s.Dim(1))
	assert.Equal(t, 3, s.Dim(-1))
	assert.Equal(t, "(Float64)[2 3]", s.String())
	require.Panics(t, func() { Make(dtypes.Float32, 3, 0) })
	require.Panics(t, func() { s.Dim(2) })
}

func TestScalar(t *testing.T) {
	s := Scalar[float32]()
	assert.True(t, s.Ok())
	assert.True(t, s.IsScalar())
	assert.Equal(t, 1, s.Size())
	assert.False(t, Invalid().Ok())
}

func TestEqualAndClone(t *testing.T) {
	s := Make(dtypes.Float32, 4, 1)
	s2 := s.Clone()
	assert.True(t, s.Equal(s2))
	s2.Dimensions[0] = 2
	assert.False(t, s.Equal(s2))
	assert.True(t, s.EqualDimensions(Make(dtypes.Int32, 4, 1)))
	assert.False(t, s.Equal(Make(dtypes.Int32, 4, 1)))
}

func TestConcatenateDimensions(t *testing.T) {
	s := ConcatenateDimensions(Make(dtypes.Float64, 2, 3), Make(dtypes.Float64, 5))
	assert.Equal(t, []int{2, 3, 5}, s.Dimensions)
	assert.Equal(t, dtypes.Float64, s.DType)
}

func TestAsserts(t *testing.T) {
	s := Make(dtypes.Float32, 7, 2)
	require.NotPanics(t, func() { s.AssertDims(7, -1) })
	require.Panics(t, func() { s.AssertDims(7, 3) })
	require.Panics(t, func() { s.AssertRank(3) })
	require.NotPanics(t, func() { s.AssertFloat() })
	require.Panics(t, func() { s.AssertInt() })
}
