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

// Package shapes defines Shape and associated tools.
//
// Shape represents the shape (rank, dimensions and DType) of either a concrete tensor or of the
// expected value of a node in a computation graph. DType is the data type of the unit element of a
// tensor, and its enumeration is defined in github.com/gomlx/gopjrt/dtypes.
//
// Glossary:
//
//   - Rank: number of axes (dimensions) of a tensor.
//   - Axis: the index of a dimension on a multidimensional tensor.
//   - Dimension: the size of a tensor in one of its axes.
//   - Scalar: a shape with no axes, only a single value of the associated DType.
//
// Example: `[][]float32{{0, 1, 2}, {3, 4, 5}}` converted to a tensor has shape `(Float32)[2 3]`:
// rank 2, axis 0 has dimension 2, axis 1 has dimension 3. It could be created with
// `shapes.Make(dtypes.Float32, 2, 3)`.
package shapes

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gomlx/exceptions"
	. "github.com/gomlx/gopjrt/dtypes"
)

// Shape represents the shape of either a concrete tensor or the expected value of a
// computation node.
//
// Use Make to create a new shape.
type Shape struct {
	DType      DType
	Dimensions []int
}

// Make returns a Shape structure filled with the values given.
func Make(dtype DType, dimensions ...int) Shape {
	s := Shape{Dimensions: slices.Clone(dimensions), DType: dtype}
	for _, dim := range dimensions {
		if dim <= 0 {
			exceptions.Panicf("shapes.Make(%s): cannot create a shape with an axis with dimension <= 0", s)
		}
	}
	return s
}

// Scalar returns a scalar Shape for the given type.
func Scalar[T Number]() Shape {
	return Shape{DType: FromGenericsType[T]()}
}

// Invalid returns an invalid shape.
func Invalid() Shape { return Shape{DType: InvalidDType} }

// Ok returns whether this is a valid Shape.
func (s Shape) Ok() bool { return s.DType != InvalidDType }

// Rank of the shape, that is, the number of axes (or dimensions).
func (s Shape) Rank() int { return len(s.Dimensions) }

// IsScalar returns whether the shape is a scalar, that is, it has rank 0.
func (s Shape) IsScalar() bool { return s.Ok() && s.Rank() == 0 }

// Dim returns the dimension of the given axis. axis can be negative, in which case it is taken
// from the end — Dim(-1) is the dimension of the last axis. It panics if axis is out of range.
func (s Shape) Dim(axis int) int {
	adjustedAxis := AdjustAxisToRank(axis, s.Rank())
	if adjustedAxis < 0 || adjustedAxis >= s.Rank() {
		exceptions.Panicf("Shape.Dim(%d): axis out of range for rank %d (shape %s)", axis, s.Rank(), s)
	}
	return s.Dimensions[adjustedAxis]
}

// Shape returns itself, so Shape implements the HasShape interface.
func (s Shape) Shape() Shape { return s }

// Size returns the number of elements of the shape: the product of all dimensions, and 1 for a
// scalar.
func (s Shape) Size() (size int) {
	size = 1
	for _, dim := range s.Dimensions {
		size *= dim
	}
	return
}

// String implements fmt.Stringer.
func (s Shape) String() string {
	if s.Rank() == 0 {
		return fmt.Sprintf("(%s)", s.DType)
	}
	b := strings.Builder{}
	fmt.Fprintf(&b, "(%s)[", s.DType)
	for ii, dim := range s.Dimensions {
		if ii > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%d", dim)
	}
	b.WriteByte(']')
	return b.String()
}

// Equal compares DType and dimensions.
func (s Shape) Equal(s2 Shape) bool {
	return s.DType == s2.DType && s.EqualDimensions(s2)
}

// EqualDimensions compares only the dimensions, ignoring DType.
func (s Shape) EqualDimensions(s2 Shape) bool {
	return slices.Equal(s.Dimensions, s2.Dimensions)
}

// Clone makes a deep copy of the shape.
func (s Shape) Clone() (s2 Shape) {
	s2.DType = s.DType
	s2.Dimensions = slices.Clone(s.Dimensions)
	return
}

// ConcatenateDimensions of the two shapes. The resulting rank is the sum of both ranks, and the
// DType is taken from s1.
func ConcatenateDimensions(s1, s2 Shape) (shape Shape) {
	shape.DType = s1.DType
	shape.Dimensions = make([]int, 0, s1.Rank()+s2.Rank())
	shape.Dimensions = append(shape.Dimensions, s1.Dimensions...)
	shape.Dimensions = append(shape.Dimensions, s2.Dimensions...)
	return
}

// AdjustAxisToRank converts negative axes to their positive equivalent for the given rank.
// Non-negative axes are returned unchanged.
func AdjustAxisToRank(axis, rank int) int {
	if axis < 0 {
		return rank + axis
	}
	return axis
}

// HasShape is an interface for objects that have an associated Shape, e.g. tensors.Tensor and
// graph.Node.
type HasShape interface {
	Shape() Shape
}
