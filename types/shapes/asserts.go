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
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

// CheckDims checks that the shape has the given dimensions and rank. A value of -1 in dimensions
// means it can take any value and is not checked.
func (s Shape) CheckDims(dimensions ...int) error {
	if s.Rank() != len(dimensions) {
		return errors.Errorf("shape (%s) has incompatible rank %d -- wanted %d", s, s.Rank(), len(dimensions))
	}
	for axis, wantDim := range dimensions {
		if wantDim != -1 && s.Dimensions[axis] != wantDim {
			return errors.Errorf("shape (%s) has incompatible dimension %d for axis %d -- wanted %d",
				s, s.Dimensions[axis], axis, wantDim)
		}
	}
	return nil
}

// AssertDims panics if the shape does not have the given dimensions and rank. A value of -1 in
// dimensions means it can take any value and is not checked.
func (s Shape) AssertDims(dimensions ...int) {
	if err := s.CheckDims(dimensions...); err != nil {
		panic(err)
	}
}

// CheckRank checks that the shape has the given rank.
func (s Shape) CheckRank(rank int) error {
	if s.Rank() != rank {
		return errors.Errorf("shape (%s) has incompatible rank %d -- wanted %d", s, s.Rank(), rank)
	}
	return nil
}

// AssertRank panics if the shape does not have the given rank.
func (s Shape) AssertRank(rank int) {
	if err := s.CheckRank(rank); err != nil {
		panic(err)
	}
}

// AssertScalar panics if the shape is not a scalar.
func (s Shape) AssertScalar() {
	s.AssertRank(0)
}

// AssertDims panics if the shaped object does not have the given dimensions and rank. A value of
// -1 in dimensions means it can take any value and is not checked.
func AssertDims(shaped HasShape, dimensions ...int) {
	shaped.Shape().AssertDims(dimensions...)
}

// AssertRank panics if the shaped object does not have the given rank.
func AssertRank(shaped HasShape, rank int) {
	shaped.Shape().AssertRank(rank)
}

// AssertSameDType panics if the two shaped objects do not share the same DType.
func AssertSameDType(s1, s2 HasShape) {
	if s1.Shape().DType != s2.Shape().DType {
		exceptions.Panicf("shapes %s and %s have different dtypes", s1.Shape(), s2.Shape())
	}
}

// AssertFloat panics if the shape's DType is not a float type.
func (s Shape) AssertFloat() {
	if !s.DType.IsFloat() {
		exceptions.Panicf("shape %s: a float dtype is required", s)
	}
}

// AssertInt panics if the shape's DType is not an integer type.
func (s Shape) AssertInt() {
	if !s.DType.IsInt() {
		exceptions.Panicf("shape %s: an integer dtype is required", s)
	}
}
