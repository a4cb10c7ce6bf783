package goeval

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/fwdlap/backends"
	"github.com/gomlx/fwdlap/backends/shapeinference"
	"github.com/gomlx/fwdlap/types/shapes"
	"github.com/gomlx/fwdlap/types/tensors"
	"github.com/gomlx/gopjrt/dtypes"
)

func init() {
	nodeExecutors[backends.OpTypeIota] = execIota
	nodeExecutors[backends.OpTypeReshape] = execReshape
	nodeExecutors[backends.OpTypeTranspose] = execTranspose
	nodeExecutors[backends.OpTypeBroadcastInDim] = execBroadcastInDim
	nodeExecutors[backends.OpTypeSlice] = execSlice
	nodeExecutors[backends.OpTypeGather] = execGather
	nodeExecutors[backends.OpTypeConcatenate] = execConcatenate
	nodeExecutors[backends.OpTypeReduceSum] = execReduceSum
	nodeExecutors[backends.OpTypeReduceMax] = execReduceMax
	nodeExecutors[backends.OpTypeDot] = execDot
}

func execIota(b *Backend, op backends.Op, inputs []*tensors.Tensor) *tensors.Tensor {
	outShape, err := shapeinference.IotaOp(op.DType, op.Dims, op.Axes[0])
	if err != nil {
		panic(err)
	}
	output := tensors.FromShape(outShape)
	axis := op.Axes[0]
	strides := rowMajorStrides(outShape.Dimensions)
	axisDim := outShape.Dimensions[axis]
	axisStride := strides[axis]
	switch outShape.DType {
	case dtypes.Float32:
		iotaGeneric(tensors.MutableFlatData[float32](output), axisDim, axisStride)
	case dtypes.Float64:
		iotaGeneric(tensors.MutableFlatData[float64](output), axisDim, axisStride)
	case dtypes.Int32:
		iotaGeneric(tensors.MutableFlatData[int32](output), axisDim, axisStride)
	case dtypes.Int64:
		iotaGeneric(tensors.MutableFlatData[int64](output), axisDim, axisStride)
	default:
		exceptions.Panicf("goeval: Iota does not support dtype %s", outShape.DType)
	}
	return output
}

func iotaGeneric[T interface {
	floatPOD | int32 | int64
}](out []T, axisDim, axisStride int) {
	for pos := range out {
		out[pos] = T((pos / axisStride) % axisDim)
	}
}

func execReshape(b *Backend, op backends.Op, inputs []*tensors.Tensor) *tensors.Tensor {
	outShape, err := shapeinference.ReshapeOp(inputs[0].Shape(), op.Dims)
	if err != nil {
		panic(err)
	}
	return tensors.Reshape(inputs[0].Clone(), outShape.Dimensions...)
}

// elementRemap returns, for every output element of a structural (index shuffling) op, the
// flat position of the input element it takes its value from. It is dtype- and data-agnostic,
// so the same remap moves values, compressed Jacobian data (in whole direction chunks) and
// index masks.
func elementRemap(op backends.Op, inShape shapes.Shape, indices []int) (mapping []int, outShape shapes.Shape) {
	var err error
	switch op.Type {
	case backends.OpTypeTranspose:
		outShape, err = shapeinference.TransposeOp(inShape, op.Axes)
		if err != nil {
			panic(err)
		}
		mapping = transposeRemap(inShape, op.Axes, outShape)
	case backends.OpTypeBroadcastInDim:
		outShape, err = shapeinference.BroadcastInDimOp(inShape, op.Dims, op.Axes)
		if err != nil {
			panic(err)
		}
		mapping = broadcastInDimRemap(inShape, op.Dims, op.Axes)
	case backends.OpTypeSlice:
		outShape, err = shapeinference.SliceOp(inShape, op.Starts, op.Limits)
		if err != nil {
			panic(err)
		}
		mapping = sliceRemap(inShape, op.Starts, outShape)
	case backends.OpTypeGather:
		if len(indices) == 0 {
			exceptions.Panicf("goeval: Gather requires at least one index")
		}
		indicesShape := shapes.Make(dtypes.Int64, len(indices))
		outShape, err = shapeinference.GatherOp(inShape, indicesShape, op.Axes[0])
		if err != nil {
			panic(err)
		}
		mapping = gatherRemap(inShape, op.Axes[0], indices, outShape)
	default:
		exceptions.Panicf("goeval: operation %s has no element remap", op)
	}
	return
}

func transposeRemap(inShape shapes.Shape, permutations []int, outShape shapes.Shape) []int {
	inStrides := rowMajorStrides(inShape.Dimensions)
	// Strides of the input seen through the output layout.
	mappedStrides := make([]int, outShape.Rank())
	for toAxis, fromAxis := range permutations {
		mappedStrides[toAxis] = inStrides[fromAxis]
	}
	return remapFromStrides(outShape.Dimensions, mappedStrides, 0)
}

func broadcastInDimRemap(inShape shapes.Shape, dims []int, broadcastAxes []int) []int {
	inStrides := rowMajorStrides(inShape.Dimensions)
	mappedStrides := make([]int, len(dims))
	for operandAxis, outputAxis := range broadcastAxes {
		if inShape.Dimensions[operandAxis] != 1 {
			mappedStrides[outputAxis] = inStrides[operandAxis]
		}
	}
	return remapFromStrides(dims, mappedStrides, 0)
}

func sliceRemap(inShape shapes.Shape, starts []int, outShape shapes.Shape) []int {
	inStrides := rowMajorStrides(inShape.Dimensions)
	offset := 0
	for axis, start := range starts {
		offset += start * inStrides[axis]
	}
	return remapFromStrides(outShape.Dimensions, inStrides, offset)
}

func gatherRemap(inShape shapes.Shape, axis int, indices []int, outShape shapes.Shape) []int {
	inStrides := rowMajorStrides(inShape.Dimensions)
	axisDim := inShape.Dimensions[axis]
	size := outShape.Size()
	mapping := make([]int, size)
	outStrides := rowMajorStrides(outShape.Dimensions)
	for outPos := range mapping {
		inPos := 0
		for outAxis, stride := range outStrides {
			idx := (outPos / stride) % outShape.Dimensions[outAxis]
			if outAxis == axis {
				gathered := indices[idx]
				if gathered < 0 || gathered >= axisDim {
					exceptions.Panicf("goeval: Gather index %d out of range for axis %d of shape %s",
						gathered, axis, inShape)
				}
				idx = gathered
			}
			inPos += idx * inStrides[outAxis]
		}
		mapping[outPos] = inPos
	}
	return mapping
}

// remapFromStrides builds the output→input element mapping of an op whose input position is an
// affine function of the output multi-index: offset + Σ idx[axis]·mappedStrides[axis].
func remapFromStrides(outDims []int, mappedStrides []int, offset int) []int {
	size := 1
	for _, dim := range outDims {
		size *= dim
	}
	mapping := make([]int, size)
	strides := [][]int{mappedStrides}
	broadcastLoop(outDims, strides, func(outPos int, pos []int) {
		mapping[outPos] = offset + pos[0]
	})
	return mapping
}

// applyRemap moves elements (in chunks) according to the output→input mapping. chunk is the
// number of contiguous values per element, e.g. the number of tangent directions.
func applyRemap(input *tensors.Tensor, mapping []int, outShape shapes.Shape, chunk int) *tensors.Tensor {
	output := tensors.FromShape(outShape)
	switch input.DType() {
	case dtypes.Float32:
		copyByMapping(tensors.MutableFlatData[float32](output), tensors.ConstFlatData[float32](input), mapping, chunk)
	case dtypes.Float64:
		copyByMapping(tensors.MutableFlatData[float64](output), tensors.ConstFlatData[float64](input), mapping, chunk)
	case dtypes.Int32:
		copyByMapping(tensors.MutableFlatData[int32](output), tensors.ConstFlatData[int32](input), mapping, chunk)
	case dtypes.Int64:
		copyByMapping(tensors.MutableFlatData[int64](output), tensors.ConstFlatData[int64](input), mapping, chunk)
	case dtypes.Bool:
		copyByMapping(tensors.MutableFlatData[bool](output), tensors.ConstFlatData[bool](input), mapping, chunk)
	default:
		exceptions.Panicf("goeval: remap does not support dtype %s", input.DType())
	}
	return output
}

func execTranspose(b *Backend, op backends.Op, inputs []*tensors.Tensor) *tensors.Tensor {
	mapping, outShape := elementRemap(op, inputs[0].Shape(), nil)
	outShape.DType = inputs[0].DType()
	return applyRemap(inputs[0], mapping, outShape, 1)
}

func execBroadcastInDim(b *Backend, op backends.Op, inputs []*tensors.Tensor) *tensors.Tensor {
	mapping, outShape := elementRemap(op, inputs[0].Shape(), nil)
	outShape.DType = inputs[0].DType()
	return applyRemap(inputs[0], mapping, outShape, 1)
}

func execSlice(b *Backend, op backends.Op, inputs []*tensors.Tensor) *tensors.Tensor {
	mapping, outShape := elementRemap(op, inputs[0].Shape(), nil)
	outShape.DType = inputs[0].DType()
	return applyRemap(inputs[0], mapping, outShape, 1)
}

func execGather(b *Backend, op backends.Op, inputs []*tensors.Tensor) *tensors.Tensor {
	indices := indicesToInts(inputs[1])
	mapping, outShape := elementRemap(op, inputs[0].Shape(), indices)
	outShape.DType = inputs[0].DType()
	return applyRemap(inputs[0], mapping, outShape, 1)
}

func execConcatenate(b *Backend, op backends.Op, inputs []*tensors.Tensor) *tensors.Tensor {
	inShapes := make([]shapes.Shape, len(inputs))
	for ii, input := range inputs {
		inShapes[ii] = input.Shape()
	}
	outShape, err := shapeinference.ConcatenateOp(inShapes, op.Axes[0])
	if err != nil {
		panic(err)
	}
	output := tensors.FromShape(outShape)
	concatTensors(inputs, output, op.Axes[0], 1)
	return output
}

func concatTensors(inputs []*tensors.Tensor, output *tensors.Tensor, axis, chunk int) {
	switch output.DType() {
	case dtypes.Float32:
		concatGeneric[float32](inputs, output, axis, chunk)
	case dtypes.Float64:
		concatGeneric[float64](inputs, output, axis, chunk)
	case dtypes.Int32:
		concatGeneric[int32](inputs, output, axis, chunk)
	case dtypes.Int64:
		concatGeneric[int64](inputs, output, axis, chunk)
	default:
		exceptions.Panicf("goeval: Concatenate does not support dtype %s", output.DType())
	}
}

// concatGeneric copies each input's slabs into the output along the concatenation axis. chunk
// multiplies the inner slab size, for moving whole direction chunks.
func concatGeneric[T dtypes.Supported](inputs []*tensors.Tensor, output *tensors.Tensor, axis int, chunk int) {
	outShape := output.Shape()
	outer := 1
	for a := 0; a < axis; a++ {
		outer *= outShape.Dimensions[a]
	}
	inner := chunk
	for a := axis + 1; a < outShape.Rank(); a++ {
		inner *= outShape.Dimensions[a]
	}
	outFlat := tensors.MutableFlatData[T](output)
	outAxisDim := outShape.Dimensions[axis]
	offset := 0
	for _, input := range inputs {
		inFlat := tensors.ConstFlatData[T](input)
		inAxisDim := input.Shape().Dimensions[axis]
		slab := inAxisDim * inner
		for o := 0; o < outer; o++ {
			copy(outFlat[(o*outAxisDim+offset)*inner:(o*outAxisDim+offset)*inner+slab],
				inFlat[o*slab:(o+1)*slab])
		}
		offset += inAxisDim
	}
}

// reduceOutStrides returns, per input axis, the stride of the output position: 0 for reduced
// axes. The extra trailing direction axis, if present in inDims beyond the operand's rank, is
// kept.
func reduceOutStrides(inDims []int, reduceAxes []int) (outStrides []int, outSize int) {
	reduced := make([]bool, len(inDims))
	for _, axis := range reduceAxes {
		reduced[axis] = true
	}
	outStrides = make([]int, len(inDims))
	stride := 1
	for axis := len(inDims) - 1; axis >= 0; axis-- {
		if reduced[axis] {
			continue
		}
		outStrides[axis] = stride
		stride *= inDims[axis]
	}
	outSize = stride
	return
}

func reduceSumT(input *tensors.Tensor, axes []int, outShape shapes.Shape) *tensors.Tensor {
	checkComputeDType(input.DType())
	output := tensors.FromShape(outShape)
	outStrides, _ := reduceOutStrides(input.Shape().Dimensions, axes)
	switch input.DType() {
	case dtypes.Float32:
		reduceSumGeneric(tensors.ConstFlatData[float32](input), tensors.MutableFlatData[float32](output),
			input.Shape().Dimensions, outStrides)
	case dtypes.Float64:
		reduceSumGeneric(tensors.ConstFlatData[float64](input), tensors.MutableFlatData[float64](output),
			input.Shape().Dimensions, outStrides)
	}
	return output
}

func reduceSumGeneric[T floatPOD](in, out []T, inDims []int, outStrides []int) {
	broadcastLoop(inDims, [][]int{outStrides}, func(inPos int, pos []int) {
		out[pos[0]] += in[inPos]
	})
}

func execReduceSum(b *Backend, op backends.Op, inputs []*tensors.Tensor) *tensors.Tensor {
	outShape, err := shapeinference.ReduceOp(inputs[0].Shape(), op.Axes)
	if err != nil {
		panic(err)
	}
	return reduceSumT(inputs[0], op.Axes, outShape)
}

// reduceMaxT reduces with max. It also returns, per output element, the flat input position of
// the (first) maximum, used by the forward-mode rule.
func reduceMaxT(input *tensors.Tensor, axes []int, outShape shapes.Shape) (output *tensors.Tensor, argMap []int) {
	checkComputeDType(input.DType())
	output = tensors.FromShape(outShape)
	outStrides, outSize := reduceOutStrides(input.Shape().Dimensions, axes)
	argMap = make([]int, outSize)
	switch input.DType() {
	case dtypes.Float32:
		reduceMaxGeneric(tensors.ConstFlatData[float32](input), tensors.MutableFlatData[float32](output),
			input.Shape().Dimensions, outStrides, argMap)
	case dtypes.Float64:
		reduceMaxGeneric(tensors.ConstFlatData[float64](input), tensors.MutableFlatData[float64](output),
			input.Shape().Dimensions, outStrides, argMap)
	}
	return
}

func reduceMaxGeneric[T floatPOD](in, out []T, inDims []int, outStrides []int, argMap []int) {
	seen := make([]bool, len(argMap))
	broadcastLoop(inDims, [][]int{outStrides}, func(inPos int, pos []int) {
		outPos := pos[0]
		if !seen[outPos] || in[inPos] > out[outPos] {
			seen[outPos] = true
			out[outPos] = in[inPos]
			argMap[outPos] = inPos
		}
	})
}

func execReduceMax(b *Backend, op backends.Op, inputs []*tensors.Tensor) *tensors.Tensor {
	outShape, err := shapeinference.ReduceOp(inputs[0].Shape(), op.Axes)
	if err != nil {
		panic(err)
	}
	output, _ := reduceMaxT(inputs[0], op.Axes, outShape)
	return output
}

// dotDims extracts the (m, k, n) dimensions of a Dot: lhs is (m, k) or (k), rhs is (k, n) or
// (k).
func dotDims(lhs, rhs shapes.Shape) (m, k, n int) {
	m, n = 1, 1
	if lhs.Rank() == 2 {
		m = lhs.Dimensions[0]
	}
	k = lhs.Dimensions[lhs.Rank()-1]
	if rhs.Rank() == 2 {
		n = rhs.Dimensions[1]
	}
	return
}

// dotT contracts lhs (m, k) with rhs (k, n), where either operand may carry a trailing
// direction chunk (lhsChunk or rhsChunk > 1). The output carries max(lhsChunk, rhsChunk)
// directions. Contracting two batched operands contracts them direction by direction.
func dotT(lhs, rhs *tensors.Tensor, m, k, n int, lhsChunk, rhsChunk int, outShape shapes.Shape) *tensors.Tensor {
	checkComputeDType(lhs.DType())
	output := tensors.FromShape(outShape)
	switch lhs.DType() {
	case dtypes.Float32:
		dotGeneric(tensors.ConstFlatData[float32](lhs), tensors.ConstFlatData[float32](rhs),
			tensors.MutableFlatData[float32](output), m, k, n, lhsChunk, rhsChunk)
	case dtypes.Float64:
		dotGeneric(tensors.ConstFlatData[float64](lhs), tensors.ConstFlatData[float64](rhs),
			tensors.MutableFlatData[float64](output), m, k, n, lhsChunk, rhsChunk)
	}
	return output
}

func dotGeneric[T floatPOD](lhs, rhs, out []T, m, k, n int, lhsChunk, rhsChunk int) {
	outChunk := max(lhsChunk, rhsChunk)
	for i := 0; i < m; i++ {
		for l := 0; l < k; l++ {
			for j := 0; j < n; j++ {
				outBase := (i*n + j) * outChunk
				lhsBase := (i*k + l) * lhsChunk
				rhsBase := (l*n + j) * rhsChunk
				for t := 0; t < outChunk; t++ {
					lhsT, rhsT := 0, 0
					if lhsChunk > 1 {
						lhsT = t
					}
					if rhsChunk > 1 {
						rhsT = t
					}
					out[outBase+t] += lhs[lhsBase+lhsT] * rhs[rhsBase+rhsT]
				}
			}
		}
	}
}

func execDot(b *Backend, op backends.Op, inputs []*tensors.Tensor) *tensors.Tensor {
	lhs, rhs := inputs[0], inputs[1]
	outShape, err := shapeinference.DotOp(lhs.Shape(), rhs.Shape())
	if err != nil {
		panic(err)
	}
	m, k, n := dotDims(lhs.Shape(), rhs.Shape())
	return dotT(lhs, rhs, m, k, n, 1, 1, outShape)
}
