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
	"github.com/gomlx/exceptions"
	"github.com/gomlx/fwdlap/types/shapes"
	"github.com/gomlx/fwdlap/types/tensors"
	"github.com/gomlx/gopjrt/dtypes"
	"k8s.io/klog/v2"
)

// tangentsForInputs aligns the non-constant inputs' Jacobians over one common direction
// space and returns the per-input tangent batches for a batched JVP/JVP2 call (nil for
// constant inputs), the shared mask of the direction space (nil when dense) and the number of
// directions.
//
// The direction space must assign the same input coordinate to slot t for every element of
// every input, so per-element sparsity patterns get unioned over all their elements into one
// shared mask (the cheap case: operations that touch few input coordinates overall). When the
// union grows past the densification threshold the batch goes dense instead, one direction
// per input coordinate. Either way each direction t of the batch is the derivative of the
// inputs along one input coordinate, which is exactly what a forward-mode pass needs.
func tangentsForInputs(inputs []*LapDual, cfg *config) (tangents []*tensors.Tensor, mask *tensors.Tensor, numDirs int) {
	var active []*SparseJacobian
	for _, input := range inputs {
		if !input.IsConstant() {
			active = append(active, input.Jacobian)
		}
	}
	numInputs := active[0].NumInputs

	dense := false
	for _, jacobian := range active {
		if jacobian.IsDense() {
			dense = true
			break
		}
	}

	var aligned []*SparseJacobian
	if !dense {
		// Union of every input coordinate any element of any input references.
		var merged []int32
		posOf := make(map[int32]int)
		for _, jacobian := range active {
			for _, idx := range tensors.ConstFlatData[int32](jacobian.Mask) {
				if idx == MaskPadIndex {
					continue
				}
				if _, found := posOf[idx]; !found {
					posOf[idx] = len(merged)
					merged = append(merged, idx)
				}
			}
		}
		if cfg.shouldDensify(len(merged), numInputs) {
			if klog.V(1).Enabled() {
				klog.Infof("fwdlap: direction space of %d of %d input coordinates, "+
					"densifying", len(merged), numInputs)
			}
			dense = true
		} else {
			mask = tensors.FromFlatDataAndDimensions(merged, len(merged))
			numDirs = len(merged)
			for _, jacobian := range active {
				aligned = append(aligned, jacobian.remapToSharedMask(mask, posOf))
			}
		}
	}
	if dense {
		mask = nil
		numDirs = numInputs
		for _, jacobian := range active {
			aligned = append(aligned, jacobian.ToDense())
		}
	}

	tangents = make([]*tensors.Tensor, len(inputs))
	next := 0
	for ii, input := range inputs {
		if input.IsConstant() {
			continue
		}
		tangents[ii] = aligned[next].Data
		next++
	}
	return
}

// onesTangent builds a single all-ones direction for the given value: shape (*S, 1). Pushing
// it through an elementwise op yields the per-element derivative.
func onesTangent(value *tensors.Tensor) *tensors.Tensor {
	dims := append(append([]int{}, value.Shape().Dimensions...), 1)
	out := tensors.FromShape(shapes.Make(value.DType(), dims...))
	switch value.DType() {
	case dtypes.Float32:
		fillOnes(tensors.MutableFlatData[float32](out))
	case dtypes.Float64:
		fillOnes(tensors.MutableFlatData[float64](out))
	default:
		exceptions.Panicf("cannot build tangents for dtype %s", value.DType())
	}
	return out
}

// asOneDirection views an S-shaped tensor as a single-direction tangent batch (*S, 1).
func asOneDirection(t *tensors.Tensor) *tensors.Tensor {
	dims := append(append([]int{}, t.Shape().Dimensions...), 1)
	return tensors.Reshape(t, dims...)
}

// fromOneDirection drops the trailing single-direction axis.
func fromOneDirection(t *tensors.Tensor) *tensors.Tensor {
	dims := t.Shape().Dimensions
	return tensors.Reshape(t, dims[:len(dims)-1]...)
}
