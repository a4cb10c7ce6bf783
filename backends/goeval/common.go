package goeval

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/fwdlap/types/shapes"
	"github.com/gomlx/fwdlap/types/tensors"
	"github.com/gomlx/fwdlap/types/xslices"
	"github.com/gomlx/gopjrt/dtypes"
)

// floatPOD are the dtypes this backend computes with.
type floatPOD interface {
	float32 | float64
}

// broadcastStrides returns the row-major strides of operand when broadcast to outDims:
// stride 0 on broadcast axes (dimension 1 against a larger output dimension) and on every axis
// for scalars. The operand must be a scalar or have rank len(outDims); axes beyond the
// operand's must be covered by outDims as-is.
func broadcastStrides(operand shapes.Shape, outDims []int) []int {
	strides := make([]int, len(outDims))
	if operand.IsScalar() {
		return strides
	}
	if operand.Rank() != len(outDims) {
		exceptions.Panicf("goeval: cannot broadcast shape %s to dimensions %v", operand, outDims)
	}
	currentStride := 1
	for axis := operand.Rank() - 1; axis >= 0; axis-- {
		if operand.Dimensions[axis] != 1 {
			strides[axis] = currentStride
		} else if outDims[axis] != 1 {
			strides[axis] = 0
		} else {
			strides[axis] = currentStride
		}
		currentStride *= operand.Dimensions[axis]
	}
	return strides
}

// broadcastLoop iterates over every element of an output with the given dimensions, calling
// body with the output flat position and the flat position of each operand, per the operands'
// broadcast strides.
func broadcastLoop(outDims []int, operandStrides [][]int, body func(outPos int, operandPos []int)) {
	rank := len(outDims)
	size := 1
	for _, dim := range outDims {
		size *= dim
	}
	pos := make([]int, len(operandStrides))
	if rank == 0 {
		if size > 0 {
			body(0, pos)
		}
		return
	}
	idx := make([]int, rank)
	for outPos := 0; outPos < size; outPos++ {
		body(outPos, pos)
		for axis := rank - 1; axis >= 0; axis-- {
			idx[axis]++
			for ii, strides := range operandStrides {
				pos[ii] += strides[axis]
			}
			if idx[axis] < outDims[axis] {
				break
			}
			idx[axis] = 0
			for ii, strides := range operandStrides {
				pos[ii] -= strides[axis] * outDims[axis]
			}
		}
	}
}

// rowMajorStrides returns the row-major strides of a tensor with the given dimensions.
func rowMajorStrides(dims []int) []int {
	strides := make([]int, len(dims))
	currentStride := 1
	for axis := len(dims) - 1; axis >= 0; axis-- {
		strides[axis] = currentStride
		currentStride *= dims[axis]
	}
	return strides
}

// copyByMapping copies, for every output element, the chunk of the mapped input element:
// out[outElem*chunk+t] = in[mapping[outElem]*chunk+t]. With chunk == 1 this is a plain gather
// of elements; with chunk == numDirections it moves all directions of an element at once.
func copyByMapping[T any](out, in []T, mapping []int, chunk int) {
	for outElem, inElem := range mapping {
		copy(out[outElem*chunk:(outElem+1)*chunk], in[inElem*chunk:inElem*chunk+chunk])
	}
}

// withTrailingAxis returns a view of t with one extra trailing axis of dimension 1, so it
// broadcasts against a batch of tangent directions.
func withTrailingAxis(t *tensors.Tensor) *tensors.Tensor {
	dims := append(xslices.Copy(t.Shape().Dimensions), 1)
	return tensors.Reshape(t, dims...)
}

// indicesToInts converts an integer tensor to a flat []int.
func indicesToInts(t *tensors.Tensor) []int {
	switch t.DType() {
	case dtypes.Int32:
		flat := tensors.ConstFlatData[int32](t)
		ints := make([]int, len(flat))
		for ii, v := range flat {
			ints[ii] = int(v)
		}
		return ints
	case dtypes.Int64:
		flat := tensors.ConstFlatData[int64](t)
		ints := make([]int, len(flat))
		for ii, v := range flat {
			ints[ii] = int(v)
		}
		return ints
	}
	exceptions.Panicf("goeval: indices must be Int32 or Int64, got dtype %s", t.DType())
	return nil
}

// checkComputeDType panics if this backend cannot compute with the given dtype.
func checkComputeDType(dtype dtypes.DType) {
	if dtype != dtypes.Float32 && dtype != dtypes.Float64 {
		exceptions.Panicf("goeval computes only with Float32 or Float64, got %s", dtype)
	}
}
