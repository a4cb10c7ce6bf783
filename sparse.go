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
	"fmt"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/fwdlap/types/shapes"
	"github.com/gomlx/fwdlap/types/tensors"
	"github.com/gomlx/fwdlap/types/xslices"
	"github.com/gomlx/gopjrt/dtypes"
)

// MaskPadIndex is the sentinel stored in mask slots that carry no input coordinate. The
// corresponding data slots are always zero.
const MaskPadIndex = int32(-1)

// SparseJacobian is the compressed Jacobian of one value with respect to the function's flat
// input space of size NumInputs.
//
// Data has the value's shape S plus one trailing axis of d "slots": the nonzero partial
// derivatives. d is a per-Jacobian bound on how many input coordinates any single element
// depends on. Mask gives the input coordinate (flat index in [0, NumInputs)) each slot refers
// to; it is an Int32 tensor, either of shape (d) -- the same slot assignment shared by all
// elements -- or of shape (*S, d) with a per-element assignment. Slots not in use hold
// MaskPadIndex in the mask and 0 in the data. Within one element, non-pad slots always refer
// to distinct input coordinates.
//
// A nil Mask means dense: d == NumInputs and slot i is input coordinate i.
//
// Compression is a performance optimization, never an approximation: Dense() of any
// SparseJacobian produced here equals the true Jacobian.
type SparseJacobian struct {
	Data *tensors.Tensor
	Mask *tensors.Tensor

	// NumInputs is the size n of the function's flat input space.
	NumInputs int
}

// NumDirections returns d, the size of the trailing slot axis.
func (j *SparseJacobian) NumDirections() int { return j.Data.Shape().Dim(-1) }

// IsDense reports whether the Jacobian carries no sparsity info (nil mask).
func (j *SparseJacobian) IsDense() bool { return j.Mask == nil }

// HasSharedMask reports whether the mask is shared by all elements (shape (d)).
func (j *SparseJacobian) HasSharedMask() bool { return j.Mask != nil && j.Mask.Rank() == 1 }

// ValueShape returns S, the shape of the value this is the Jacobian of.
func (j *SparseJacobian) ValueShape() shapes.Shape {
	dims := j.Data.Shape().Dimensions
	return shapes.Make(j.Data.DType(), dims[:len(dims)-1]...)
}

// NumElements returns the number of elements of the value (the size of S).
func (j *SparseJacobian) NumElements() int { return j.Data.Size() / j.NumDirections() }

// maskAt returns the input coordinate of the given element's slot.
func (j *SparseJacobian) maskAt(mask []int32, elem, slot int) int32 {
	if j.HasSharedMask() {
		return mask[slot]
	}
	return mask[elem*j.NumDirections()+slot]
}

// String implements fmt.Stringer with a summary of the representation.
func (j *SparseJacobian) String() string {
	if j == nil {
		return "SparseJacobian(zero)"
	}
	if j.IsDense() {
		return fmt.Sprintf("SparseJacobian(dense, data=%s, n=%d)", j.Data.Shape(), j.NumInputs)
	}
	kind := "per-element"
	if j.HasSharedMask() {
		kind = "shared"
	}
	return fmt.Sprintf("SparseJacobian(%s mask, data=%s, n=%d)", kind, j.Data.Shape(), j.NumInputs)
}

// Dense materializes the logically (*S, n) Jacobian by scatter-adding the data slots per the
// mask. For a dense Jacobian it returns a copy of Data.
func (j *SparseJacobian) Dense() *tensors.Tensor {
	if j.IsDense() {
		return j.Data.Clone()
	}
	valueShape := j.ValueShape()
	outShape := shapes.Make(j.Data.DType(),
		append(xslices.Copy(valueShape.Dimensions), j.NumInputs)...)
	output := tensors.FromShape(outShape)
	mask := tensors.ConstFlatData[int32](j.Mask)
	switch j.Data.DType() {
	case dtypes.Float32:
		scatterDense(j, tensors.ConstFlatData[float32](j.Data), mask,
			tensors.MutableFlatData[float32](output))
	case dtypes.Float64:
		scatterDense(j, tensors.ConstFlatData[float64](j.Data), mask,
			tensors.MutableFlatData[float64](output))
	default:
		exceptions.Panicf("SparseJacobian.Dense: unsupported dtype %s", j.Data.DType())
	}
	return output
}

func scatterDense[T float32 | float64](j *SparseJacobian, data []T, mask []int32, out []T) {
	numDirs := j.NumDirections()
	numElems := j.NumElements()
	n := j.NumInputs
	for elem := 0; elem < numElems; elem++ {
		for slot := 0; slot < numDirs; slot++ {
			idx := j.maskAt(mask, elem, slot)
			if idx == MaskPadIndex {
				continue
			}
			if idx < 0 || int(idx) >= n {
				exceptions.Panicf("SparseJacobian mask entry %d out of range [0, %d)", idx, n)
			}
			out[elem*n+int(idx)] += data[elem*numDirs+slot]
		}
	}
}

// ToDense returns an equivalent Jacobian in the dense representation. Returns j itself if
// already dense.
func (j *SparseJacobian) ToDense() *SparseJacobian {
	if j.IsDense() {
		return j
	}
	return &SparseJacobian{Data: j.Dense(), NumInputs: j.NumInputs}
}

// Scale multiplies the data by a per-element factor, leaving the mask untouched. scale must
// be a scalar or have exactly one value per element of S. This implements the effect of an
// elementwise (diagonal) linear map on the Jacobian.
func (j *SparseJacobian) Scale(scale *tensors.Tensor) *SparseJacobian {
	numElems := j.NumElements()
	if scale.Size() != numElems && !scale.IsScalar() {
		exceptions.Panicf("SparseJacobian.Scale: scale %s doesn't match the %d value elements",
			scale.Shape(), numElems)
	}
	output := tensors.FromShape(j.Data.Shape())
	switch j.Data.DType() {
	case dtypes.Float32:
		scaleSlots(tensors.ConstFlatData[float32](j.Data), tensors.ConstFlatData[float32](scale),
			tensors.MutableFlatData[float32](output), j.NumDirections())
	case dtypes.Float64:
		scaleSlots(tensors.ConstFlatData[float64](j.Data), tensors.ConstFlatData[float64](scale),
			tensors.MutableFlatData[float64](output), j.NumDirections())
	default:
		exceptions.Panicf("SparseJacobian.Scale: unsupported dtype %s", j.Data.DType())
	}
	return &SparseJacobian{Data: output, Mask: j.Mask, NumInputs: j.NumInputs}
}

func scaleSlots[T float32 | float64](data, scale []T, out []T, numDirs int) {
	for ii := range out {
		factor := scale[0]
		if len(scale) > 1 {
			factor = scale[ii/numDirs]
		}
		out[ii] = data[ii] * factor
	}
}

// identityJacobian seeds a parameter leaf: element i of the value depends on input coordinate
// offset+i with derivative 1. One slot per element, per-element iota mask.
func identityJacobian(shape shapes.Shape, offset, numInputs int) *SparseJacobian {
	dataShape := shapes.Make(shape.DType, append(xslices.Copy(shape.Dimensions), 1)...)
	data := tensors.FromShape(dataShape)
	switch shape.DType {
	case dtypes.Float32:
		fillOnes(tensors.MutableFlatData[float32](data))
	case dtypes.Float64:
		fillOnes(tensors.MutableFlatData[float64](data))
	default:
		exceptions.Panicf("cannot seed Jacobian for parameter of dtype %s", shape.DType)
	}
	maskShape := shapes.Make(dtypes.Int32, dataShape.Dimensions...)
	mask := tensors.FromShape(maskShape)
	maskFlat := tensors.MutableFlatData[int32](mask)
	for ii := range maskFlat {
		maskFlat[ii] = int32(offset + ii)
	}
	return &SparseJacobian{Data: data, Mask: mask, NumInputs: numInputs}
}

// denseIdentityJacobian seeds a parameter leaf in the dense representation: the (*S, n) slice
// of the identity starting at the given offset.
func denseIdentityJacobian(shape shapes.Shape, offset, numInputs int) *SparseJacobian {
	dataShape := shapes.Make(shape.DType, append(xslices.Copy(shape.Dimensions), numInputs)...)
	data := tensors.FromShape(dataShape)
	switch shape.DType {
	case dtypes.Float32:
		fillIdentity(tensors.MutableFlatData[float32](data), offset, numInputs)
	case dtypes.Float64:
		fillIdentity(tensors.MutableFlatData[float64](data), offset, numInputs)
	default:
		exceptions.Panicf("cannot seed Jacobian for parameter of dtype %s", shape.DType)
	}
	return &SparseJacobian{Data: data, NumInputs: numInputs}
}

func fillOnes[T float32 | float64](out []T) {
	for ii := range out {
		out[ii] = 1
	}
}

func fillIdentity[T float32 | float64](out []T, offset, numInputs int) {
	numElems := len(out) / numInputs
	for elem := 0; elem < numElems; elem++ {
		out[elem*numInputs+offset+elem] = 1
	}
}

// alignPatterns re-expresses a and b over one common mask, so their data slots line up for
// elementwise combination. Both must have the same value shape and input space. Identical
// masks are kept as-is; differing masks are unioned (shared with shared stays shared,
// otherwise per element); the union densifies both when it grows past the configured fraction
// of the input space.
func alignPatterns(a, b *SparseJacobian, cfg *config) (*SparseJacobian, *SparseJacobian) {
	if a.NumInputs != b.NumInputs {
		exceptions.Panicf("cannot align Jacobians over different input spaces (%d vs %d)",
			a.NumInputs, b.NumInputs)
	}
	if !a.ValueShape().Equal(b.ValueShape()) {
		exceptions.Panicf("cannot align Jacobians of values %s vs %s",
			a.ValueShape(), b.ValueShape())
	}
	if a.IsDense() || b.IsDense() {
		return a.ToDense(), b.ToDense()
	}
	if a.Mask == b.Mask || a.Mask.Equal(b.Mask) {
		return a, b
	}
	if a.HasSharedMask() && b.HasSharedMask() {
		merged, posOf := unionOfSharedMasks(
			tensors.ConstFlatData[int32](a.Mask), tensors.ConstFlatData[int32](b.Mask))
		if cfg.shouldDensify(len(merged), a.NumInputs) {
			return a.ToDense(), b.ToDense()
		}
		mask := tensors.FromFlatDataAndDimensions(merged, len(merged))
		return a.remapToSharedMask(mask, posOf), b.remapToSharedMask(mask, posOf)
	}
	return alignPerElement(a, b, cfg)
}

// unionOfSharedMasks merges two shared masks, preserving a's slot order, and returns the
// merged index list plus the position of every index in it.
func unionOfSharedMasks(maskA, maskB []int32) (merged []int32, posOf map[int32]int) {
	posOf = make(map[int32]int, len(maskA)+len(maskB))
	for _, mask := range [][]int32{maskA, maskB} {
		for _, idx := range mask {
			if idx == MaskPadIndex {
				continue
			}
			if _, found := posOf[idx]; !found {
				posOf[idx] = len(merged)
				merged = append(merged, idx)
			}
		}
	}
	return
}

// remapToSharedMask scatters a sparse Jacobian's data into the slots of a (larger) shared
// mask. Works from either representation: shared-mask sources move whole slots, per-element
// sources scatter element by element.
func (j *SparseJacobian) remapToSharedMask(mask *tensors.Tensor, posOf map[int32]int) *SparseJacobian {
	newD := mask.Size()
	dataShape := shapes.Make(j.Data.DType(),
		append(xslices.Copy(j.ValueShape().Dimensions), newD)...)
	output := tensors.FromShape(dataShape)
	switch j.Data.DType() {
	case dtypes.Float32:
		remapSlots(j, tensors.ConstFlatData[float32](j.Data),
			tensors.MutableFlatData[float32](output), posOf, newD)
	case dtypes.Float64:
		remapSlots(j, tensors.ConstFlatData[float64](j.Data),
			tensors.MutableFlatData[float64](output), posOf, newD)
	}
	return &SparseJacobian{Data: output, Mask: mask, NumInputs: j.NumInputs}
}

func remapSlots[T float32 | float64](j *SparseJacobian, data, out []T, posOf map[int32]int, newD int) {
	oldMask := tensors.ConstFlatData[int32](j.Mask)
	oldD := j.NumDirections()
	numElems := j.NumElements()
	for elem := 0; elem < numElems; elem++ {
		for slot := 0; slot < oldD; slot++ {
			idx := j.maskAt(oldMask, elem, slot)
			if idx == MaskPadIndex {
				continue
			}
			out[elem*newD+posOf[idx]] += data[elem*oldD+slot]
		}
	}
}

// alignPerElement unions two sparsity patterns element by element; the new slot count is the
// largest per-element union, padded with MaskPadIndex elsewhere.
func alignPerElement(a, b *SparseJacobian, cfg *config) (*SparseJacobian, *SparseJacobian) {
	maskA := tensors.ConstFlatData[int32](a.Mask)
	maskB := tensors.ConstFlatData[int32](b.Mask)
	numElems := a.NumElements()
	dA, dB := a.NumDirections(), b.NumDirections()

	// First pass: size of the largest per-element union.
	newD := 0
	seen := make(map[int32]bool, dA+dB)
	for elem := 0; elem < numElems; elem++ {
		clear(seen)
		for slot := 0; slot < dA; slot++ {
			if idx := a.maskAt(maskA, elem, slot); idx != MaskPadIndex {
				seen[idx] = true
			}
		}
		for slot := 0; slot < dB; slot++ {
			if idx := b.maskAt(maskB, elem, slot); idx != MaskPadIndex {
				seen[idx] = true
			}
		}
		newD = max(newD, len(seen))
	}
	if newD == 0 {
		newD = 1
	}
	if cfg.shouldDensify(newD, a.NumInputs) {
		return a.ToDense(), b.ToDense()
	}

	valueDims := a.ValueShape().Dimensions
	mask := tensors.FromShape(shapes.Make(dtypes.Int32, append(xslices.Copy(valueDims), newD)...))
	maskFlat := tensors.MutableFlatData[int32](mask)
	for ii := range maskFlat {
		maskFlat[ii] = MaskPadIndex
	}
	outA := tensors.FromShape(shapes.Make(a.Data.DType(), append(xslices.Copy(valueDims), newD)...))
	outB := tensors.FromShape(shapes.Make(b.Data.DType(), append(xslices.Copy(valueDims), newD)...))

	posOf := make(map[int32]int, newD)
	for elem := 0; elem < numElems; elem++ {
		clear(posOf)
		scatterElem(a, maskA, elem, maskFlat, outA, posOf, newD)
		scatterElem(b, maskB, elem, maskFlat, outB, posOf, newD)
	}
	return &SparseJacobian{Data: outA, Mask: mask, NumInputs: a.NumInputs},
		&SparseJacobian{Data: outB, Mask: mask, NumInputs: b.NumInputs}
}

// scatterElem copies one element's slots of j into the union representation, assigning union
// slots on first sight of each input coordinate.
func scatterElem(j *SparseJacobian, mask []int32, elem int, unionMask []int32, out *tensors.Tensor, posOf map[int32]int, newD int) {
	numDirs := j.NumDirections()
	for slot := 0; slot < numDirs; slot++ {
		idx := j.maskAt(mask, elem, slot)
		if idx == MaskPadIndex {
			continue
		}
		pos, found := posOf[idx]
		if !found {
			pos = len(posOf)
			posOf[idx] = pos
			unionMask[elem*newD+pos] = idx
		}
		switch j.Data.DType() {
		case dtypes.Float32:
			tensors.MutableFlatData[float32](out)[elem*newD+pos] +=
				tensors.ConstFlatData[float32](j.Data)[elem*numDirs+slot]
		case dtypes.Float64:
			tensors.MutableFlatData[float64](out)[elem*newD+pos] +=
				tensors.ConstFlatData[float64](j.Data)[elem*numDirs+slot]
		}
	}
}

// addJacobians returns the Jacobian of a sum: data added slot by slot after aligning the
// sparsity patterns. nil stands for the zero Jacobian.
func addJacobians(a, b *SparseJacobian, cfg *config) *SparseJacobian {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	a2, b2 := alignPatterns(a, b, cfg)
	output := tensors.FromShape(a2.Data.Shape())
	switch a2.Data.DType() {
	case dtypes.Float32:
		addFlat(tensors.ConstFlatData[float32](a2.Data), tensors.ConstFlatData[float32](b2.Data),
			tensors.MutableFlatData[float32](output))
	case dtypes.Float64:
		addFlat(tensors.ConstFlatData[float64](a2.Data), tensors.ConstFlatData[float64](b2.Data),
			tensors.MutableFlatData[float64](output))
	}
	return &SparseJacobian{Data: output, Mask: a2.Mask, NumInputs: a2.NumInputs}
}

func addFlat[T float32 | float64](a, b []T, out []T) {
	for ii := range out {
		out[ii] = a[ii] + b[ii]
	}
}
