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
	"github.com/gomlx/exceptions"
	"github.com/gomlx/fwdlap/types/shapes"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gopjrt/dtypes/bfloat16"
	"github.com/x448/float16"
)

// ConvertDType returns a copy of the Tensor converted to the given dtype.
//
// Numeric conversions go through float64 for float targets and int64 for integer targets, so
// 16 bit floats (Float16 and BFloat16) round the same way they would on device. Bool converts
// to 0/1 and, in the other direction, any non-zero value converts to true.
func ConvertDType(t *Tensor, dtype dtypes.DType) *Tensor {
	t.AssertValid()
	if t.shape.DType == dtype {
		return t.Clone()
	}
	newT := FromShape(shapes.Make(dtype, t.shape.Dimensions...))
	switch dtype {
	case dtypes.Bool:
		flat := MutableFlatData[bool](newT)
		for ii, v := range t.Float64Data() {
			flat[ii] = v != 0
		}
	case dtypes.Int32:
		flat := MutableFlatData[int32](newT)
		for ii, v := range t.intSourceData() {
			flat[ii] = int32(v)
		}
	case dtypes.Int64:
		flat := MutableFlatData[int64](newT)
		copy(flat, t.intSourceData())
	case dtypes.Float16:
		flat := MutableFlatData[float16.Float16](newT)
		for ii, v := range t.Float64Data() {
			flat[ii] = float16.Fromfloat32(float32(v))
		}
	case dtypes.BFloat16:
		flat := MutableFlatData[bfloat16.BFloat16](newT)
		for ii, v := range t.Float64Data() {
			flat[ii] = bfloat16.FromFloat32(float32(v))
		}
	case dtypes.Float32:
		flat := MutableFlatData[float32](newT)
		for ii, v := range t.Float64Data() {
			flat[ii] = float32(v)
		}
	case dtypes.Float64:
		flat := MutableFlatData[float64](newT)
		copy(flat, t.Float64Data())
	default:
		exceptions.Panicf("ConvertDType: unsupported target dtype %s", dtype)
	}
	return newT
}

// intSourceData returns the flat data converted (copied) to int64, truncating floats.
func (t *Tensor) intSourceData() []int64 {
	flat := make([]int64, t.Size())
	switch data := t.flat.(type) {
	case []int32:
		for ii, v := range data {
			flat[ii] = int64(v)
		}
	case []int64:
		copy(flat, data)
	case []bool:
		for ii, v := range data {
			if v {
				flat[ii] = 1
			}
		}
	default:
		for ii, v := range t.Float64Data() {
			flat[ii] = int64(v)
		}
	}
	return flat
}
