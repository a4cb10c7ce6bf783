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

// Package xslices provide generic slice utilities used throughout the library.
package xslices

import (
	"golang.org/x/exp/constraints"
)

// Number represents the numeric types supported by the utilities in this package.
type Number interface {
	constraints.Integer | constraints.Float
}

// SliceWithValue creates a slice of the given size filled with the given value.
func SliceWithValue[T any](size int, value T) []T {
	s := make([]T, size)
	for ii := range s {
		s[ii] = value
	}
	return s
}

// Iota returns a slice of the given size with sequentially increasing values, starting with start.
func Iota[T Number](start T, size int) (slice []T) {
	slice = make([]T, size)
	c := start
	for ii := range slice {
		slice[ii] = c
		c += T(1)
	}
	return
}

// Map applies fn to each element of in, returning a new slice with the results.
func Map[In, Out any](in []In, fn func(e In) Out) (out []Out) {
	out = make([]Out, len(in))
	for ii, e := range in {
		out[ii] = fn(e)
	}
	return
}

// Last returns the last element of the slice. It panics if the slice is empty.
func Last[T any](slice []T) T {
	return slice[len(slice)-1]
}

// At returns the i-th element of the slice, where i can be negative to index from the end:
// At(slice, -1) is the last element.
func At[T any](slice []T, i int) T {
	if i < 0 {
		i = len(slice) + i
	}
	return slice[i]
}

// Copy returns a copy of the slice, preserving nil.
func Copy[T any](slice []T) []T {
	if slice == nil {
		return nil
	}
	s := make([]T, len(slice))
	copy(s, slice)
	return s
}

// Max scans the slice and returns the largest element. It panics if the slice is empty.
func Max[T constraints.Ordered](slice []T) (max T) {
	max = slice[0]
	for _, v := range slice[1:] {
		if v > max {
			max = v
		}
	}
	return
}

// Product multiplies all elements of the slice. It returns 1 for an empty slice.
func Product[T Number](slice []T) (product T) {
	product = T(1)
	for _, v := range slice {
		product *= v
	}
	return
}
