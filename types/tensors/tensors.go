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

// Package tensors implements a local, dense, multidimensional array: the concrete values that
// flow through the forward-Laplacian interpreter and that back the compressed Jacobian
// representation.
//
// A Tensor is an immutable shape plus a flat Go slice of the corresponding dtype, laid out
// row-major. There is no device or accelerator storage here: backends operate directly on
// the flat data, see the backends package.
//
// To create a Tensor:
//
//   - FromValue: from a Go scalar or (nested) slices, e.g. `FromValue([][]float32{{1, 2}, {3, 4}})`.
//   - FromFlatDataAndDimensions: from flat data and dimensions.
//   - FromScalar, FromShape: scalar and zero-initialized tensors.
//
// To access the data use the generic ConstFlatData / MutableFlatData, or Value to convert back
// to (nested) Go slices.
package tensors

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/fwdlap/types/shapes"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gopjrt/dtypes/bfloat16"
	"github.com/pkg/errors"
	"github.com/x448/float16"
)

// Tensor is a local, dense, multidimensional array of one of the supported dtypes.
//
// The zero value of Tensor is not valid: use one of the From* constructors.
type Tensor struct {
	shape shapes.Shape

	// flat holds a []T with T matching shape.DType, with shape.Size() elements in row-major
	// order.
	flat any
}

// MaxSizeForString is the largest tensor size printed in full by String; larger tensors print
// only their shape.
var MaxSizeForString = 500

// FromShape returns a Tensor of the given shape, zero-initialized.
func FromShape(shape shapes.Shape) *Tensor {
	if !shape.Ok() {
		exceptions.Panicf("tensors.FromShape: invalid shape %s", shape)
	}
	return &Tensor{shape: shape.Clone(), flat: makeFlat(shape.DType, shape.Size())}
}

func makeFlat(dtype dtypes.DType, size int) any {
	switch dtype {
	case dtypes.Bool:
		return make([]bool, size)
	case dtypes.Int32:
		return make([]int32, size)
	case dtypes.Int64:
		return make([]int64, size)
	case dtypes.Float16:
		return make([]float16.Float16, size)
	case dtypes.BFloat16:
		return make([]bfloat16.BFloat16, size)
	case dtypes.Float32:
		return make([]float32, size)
	case dtypes.Float64:
		return make([]float64, size)
	}
	exceptions.Panicf("tensors: unsupported dtype %s", dtype)
	return nil
}

// FromScalar returns a scalar (rank 0) Tensor with the given value.
func FromScalar[T dtypes.Supported](value T) *Tensor {
	return FromFlatDataAndDimensions([]T{value})
}

// FromScalarAndDimensions returns a Tensor of the given dimensions filled with the scalar value.
func FromScalarAndDimensions[T dtypes.Supported](value T, dimensions ...int) *Tensor {
	dtype := dtypes.FromGenericsType[T]()
	t := FromShape(shapes.Make(dtype, dimensions...))
	flat := MutableFlatData[T](t)
	for ii := range flat {
		flat[ii] = value
	}
	return t
}

// FromFlatDataAndDimensions creates a Tensor with the given dimensions, filled with the
// flattened values given in data. The DType is inferred from the data type, and the data is
// copied.
func FromFlatDataAndDimensions[T dtypes.Supported](data []T, dimensions ...int) *Tensor {
	dtype := dtypes.FromGenericsType[T]()
	shape := shapes.Make(dtype, dimensions...)
	if len(data) != shape.Size() {
		exceptions.Panicf("FromFlatDataAndDimensions(%s): data size is %d, but dimensions size is %d",
			shape, len(data), shape.Size())
	}
	t := FromShape(shape)
	copy(t.flat.([]T), data)
	return t
}

// FromValue returns a Tensor constructed from the given multidimensional slice (or scalar).
// If the rank of value is larger than 1, the shape of all sub-slices must be the same.
//
// It panics if the shape is not regular or the element type is not supported.
func FromValue(value any) *Tensor {
	if t, ok := value.(*Tensor); ok {
		return t
	}
	shape, err := shapeForValue(value)
	if err != nil {
		panic(errors.Wrapf(err, "tensors.FromValue(%T)", value))
	}
	t := FromShape(shape)
	flatV := reflect.ValueOf(t.flat)
	if shape.IsScalar() {
		flatV.Index(0).Set(reflect.ValueOf(value).Convert(flatV.Type().Elem()))
		return t
	}
	copySlicesRecursively(flatV, reflect.ValueOf(value), t.LayoutStrides())
	return t
}

// shapeForValue returns the Shape of a Go scalar or nested slice. Go `int` values map to Int64.
func shapeForValue(value any) (shape shapes.Shape, err error) {
	err = shapeForValueRecursive(&shape, reflect.ValueOf(value))
	return
}

func shapeForValueRecursive(shape *shapes.Shape, v reflect.Value) error {
	if v.Kind() == reflect.Slice {
		if v.Len() == 0 {
			return errors.Errorf("empty slices are not valid for Tensor conversion, " +
				"zero-dimension tensors cannot be represented with Go slices")
		}
		shape.Dimensions = append(shape.Dimensions, v.Len())
		axis := len(shape.Dimensions) - 1
		if err := shapeForValueRecursive(shape, v.Index(0)); err != nil {
			return err
		}
		// All sub-slices must have the same length.
		for ii := 1; ii < v.Len(); ii++ {
			if v.Index(ii).Kind() == reflect.Slice && v.Index(ii).Len() != shape.Dimensions[axis+1] {
				return errors.Errorf("sub-slices with irregular lengths cannot be converted to a Tensor")
			}
		}
		return nil
	}
	if v.Kind() == reflect.Int {
		shape.DType = dtypes.Int64
		return nil
	}
	shape.DType = dtypes.FromGoType(v.Type())
	if shape.DType == dtypes.InvalidDType {
		return errors.Errorf("cannot convert type %s to a tensor dtype", v.Type())
	}
	return nil
}

// copySlicesRecursively copies values of a multidimensional slice to flat data, given the
// strides of each axis.
func copySlicesRecursively(flat reflect.Value, mdSlice reflect.Value, strides []int) {
	if len(strides) == 1 {
		elemT := flat.Type().Elem()
		for ii := 0; ii < mdSlice.Len(); ii++ {
			flat.Index(ii).Set(mdSlice.Index(ii).Convert(elemT))
		}
		return
	}
	subStrides := strides[1:]
	for ii := 0; ii < mdSlice.Len(); ii++ {
		subFlat := flat.Slice(ii*strides[0], (ii+1)*strides[0])
		copySlicesRecursively(subFlat, mdSlice.Index(ii), subStrides)
	}
}

// Shape of the Tensor.
func (t *Tensor) Shape() shapes.Shape { return t.shape }

// DType of the Tensor's shape.
func (t *Tensor) DType() dtypes.DType { return t.shape.DType }

// Rank of the Tensor's shape.
func (t *Tensor) Rank() int { return t.shape.Rank() }

// Size is the number of elements stored in the Tensor.
func (t *Tensor) Size() int { return t.shape.Size() }

// IsScalar returns whether the Tensor holds a single value.
func (t *Tensor) IsScalar() bool { return t.shape.IsScalar() }

// AssertValid panics if the tensor is nil or has no data.
func (t *Tensor) AssertValid() {
	if t == nil || t.flat == nil || !t.shape.Ok() {
		exceptions.Panicf("tensors: Tensor is nil or invalid")
	}
}

// LayoutStrides returns the row-major strides for each axis of the Tensor.
func (t *Tensor) LayoutStrides() (strides []int) {
	rank := t.shape.Rank()
	strides = make([]int, rank)
	currentStride := 1
	for axis := rank - 1; axis >= 0; axis-- {
		strides[axis] = currentStride
		currentStride *= t.shape.Dimensions[axis]
	}
	return
}

// ConstFlatData returns the flat data of the Tensor for reading. The slice aliases the tensor
// storage, so it must not be modified -- use MutableFlatData for that.
//
// It panics if T does not match the Tensor's dtype.
func ConstFlatData[T dtypes.Supported](t *Tensor) []T {
	t.AssertValid()
	flat, ok := t.flat.([]T)
	if !ok {
		var v T
		exceptions.Panicf("ConstFlatData[%T] is incompatible with Tensor's dtype %s", v, t.shape.DType)
	}
	return flat
}

// MutableFlatData returns the flat data of the Tensor for reading and writing.
// It panics if T does not match the Tensor's dtype.
func MutableFlatData[T dtypes.Supported](t *Tensor) []T {
	return ConstFlatData[T](t)
}

// CopyFlatData returns a copy of the flat data of the Tensor.
func CopyFlatData[T dtypes.Supported](t *Tensor) []T {
	flat := ConstFlatData[T](t)
	c := make([]T, len(flat))
	copy(c, flat)
	return c
}

// ToScalar returns the value of a scalar (or size 1) Tensor.
func ToScalar[T dtypes.Supported](t *Tensor) T {
	if t.Size() != 1 {
		exceptions.Panicf("ToScalar requires a tensor of size 1, got shape %s", t.shape)
	}
	return ConstFlatData[T](t)[0]
}

// Reshape returns a Tensor with the same flat data and the new dimensions, whose size must
// match. The returned Tensor shares the underlying data with t: it is a view, not a copy.
func Reshape(t *Tensor, dimensions ...int) *Tensor {
	t.AssertValid()
	shape := shapes.Make(t.shape.DType, dimensions...)
	if shape.Size() != t.Size() {
		exceptions.Panicf("tensors.Reshape(%s, %v): new dimensions have size %d, want %d",
			t.shape, dimensions, shape.Size(), t.Size())
	}
	return &Tensor{shape: shape, flat: t.flat}
}

// Clone returns a deep copy of the Tensor.
func (t *Tensor) Clone() *Tensor {
	t.AssertValid()
	c := FromShape(t.shape)
	reflect.Copy(reflect.ValueOf(c.flat), reflect.ValueOf(t.flat))
	return c
}

// Equal returns whether the two tensors have the same shape and exactly the same values.
func (t *Tensor) Equal(other *Tensor) bool {
	t.AssertValid()
	other.AssertValid()
	if t == other {
		return true
	}
	if !t.shape.Equal(other.shape) {
		return false
	}
	return reflect.DeepEqual(t.flat, other.flat)
}

// InDelta returns whether the two tensors have the same shape and all values are within delta
// of each other. Only defined for float dtypes.
func (t *Tensor) InDelta(other *Tensor, delta float64) bool {
	t.AssertValid()
	other.AssertValid()
	if !t.shape.Equal(other.shape) {
		return false
	}
	flat0 := t.Float64Data()
	flat1 := other.Float64Data()
	for ii := range flat0 {
		diff := flat0[ii] - flat1[ii]
		if diff < -delta || diff > delta {
			return false
		}
	}
	return true
}

// Float64Data returns the flat data converted (copied) to float64, whatever the float dtype of
// the Tensor.
func (t *Tensor) Float64Data() []float64 {
	t.AssertValid()
	flat := make([]float64, t.Size())
	switch data := t.flat.(type) {
	case []float64:
		copy(flat, data)
	case []float32:
		for ii, v := range data {
			flat[ii] = float64(v)
		}
	case []float16.Float16:
		for ii, v := range data {
			flat[ii] = float64(v.Float32())
		}
	case []bfloat16.BFloat16:
		for ii, v := range data {
			flat[ii] = float64(v.Float32())
		}
	case []int32:
		for ii, v := range data {
			flat[ii] = float64(v)
		}
	case []int64:
		for ii, v := range data {
			flat[ii] = float64(v)
		}
	case []bool:
		for ii, v := range data {
			if v {
				flat[ii] = 1
			}
		}
	default:
		exceptions.Panicf("Float64Data is not defined for dtype %s", t.shape.DType)
	}
	return flat
}

// Value returns the Tensor contents as a Go scalar (for rank 0) or nested slices.
func (t *Tensor) Value() any {
	t.AssertValid()
	flatV := reflect.ValueOf(t.flat)
	if t.IsScalar() {
		return flatV.Index(0).Interface()
	}
	return valueSlicesRecursively(flatV, t.shape.Dimensions, t.LayoutStrides()).Interface()
}

func valueSlicesRecursively(flat reflect.Value, dimensions, strides []int) reflect.Value {
	if len(dimensions) == 1 {
		return flat
	}
	sliceT := flat.Type()
	for range dimensions[1:] {
		sliceT = reflect.SliceOf(sliceT)
	}
	result := reflect.MakeSlice(sliceT, dimensions[0], dimensions[0])
	for ii := 0; ii < dimensions[0]; ii++ {
		sub := valueSlicesRecursively(
			flat.Slice(ii*strides[0], (ii+1)*strides[0]), dimensions[1:], strides[1:])
		result.Index(ii).Set(sub)
	}
	return result
}

// GoStr converts the Tensor contents to a multiline Go-syntax representation of its value.
func (t *Tensor) GoStr() string {
	t.AssertValid()
	value := t.Value()
	if t.IsScalar() {
		return fmt.Sprintf("%v", value)
	}
	return fmt.Sprintf("%s%v", t.shape, value)
}

// String implements fmt.Stringer. Large tensors print only their shape.
func (t *Tensor) String() string {
	if t == nil {
		return "(nil tensor)"
	}
	if t.flat == nil || !t.shape.Ok() {
		return "(invalid tensor)"
	}
	if t.Size() > MaxSizeForString {
		return fmt.Sprintf("Tensor%s: (... too large, %d values ...)", t.shape, t.Size())
	}
	s := t.GoStr()
	if strings.Contains(s, "\n") {
		return fmt.Sprintf("Tensor%s:\n%s", t.shape, s)
	}
	return fmt.Sprintf("Tensor%s: %s", t.shape, s)
}
