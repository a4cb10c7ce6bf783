package goeval

// Forward-mode (jet) propagation: each propagator evaluates its primitive and pushes a batch
// of first-order directional coefficients through it on the trailing direction axis. With
// secondOrder set, nonlinear primitives also produce the second-order directional
// coefficients; linear primitives return nil for them.

import (
	"github.com/gomlx/fwdlap/backends"
	"github.com/gomlx/fwdlap/backends/shapeinference"
	"github.com/gomlx/fwdlap/types/shapes"
	"github.com/gomlx/fwdlap/types/tensors"
	"github.com/gomlx/fwdlap/types/xslices"
)

func init() {
	for opType := range unaryTable {
		jetPropagators[opType] = jetUnary
	}
	for opType := range binaryTable {
		jetPropagators[opType] = jetBinary
	}
	jetPropagators[backends.OpTypeConvertDType] = jetConvertDType
	jetPropagators[backends.OpTypeWhere] = jetWhere
	jetPropagators[backends.OpTypeReshape] = jetReshape
	jetPropagators[backends.OpTypeTranspose] = jetRemap
	jetPropagators[backends.OpTypeBroadcastInDim] = jetRemap
	jetPropagators[backends.OpTypeSlice] = jetRemap
	jetPropagators[backends.OpTypeGather] = jetRemap
	jetPropagators[backends.OpTypeConcatenate] = jetConcatenate
	jetPropagators[backends.OpTypeReduceSum] = jetReduceSum
	jetPropagators[backends.OpTypeReduceMax] = jetReduceMax
	jetPropagators[backends.OpTypeDot] = jetDot
}

func addFloats(a, b float64) float64 { return a + b }

func mulFloats(a, b float64) float64 { return a * b }

// tangentShape is the operand shape plus the trailing direction axis.
func tangentShape(s shapes.Shape, numDirs int) shapes.Shape {
	return shapes.Make(s.DType, append(xslices.Copy(s.Dimensions), numDirs)...)
}

// alignTangentRank reshapes the tangent of a scalar operand from (d) to (1, ..., 1, d) so it
// broadcasts against tangents of rank outRank+1.
func alignTangentRank(tangent *tensors.Tensor, outRank int) *tensors.Tensor {
	operandRank := tangent.Rank() - 1
	if operandRank == outRank {
		return tangent
	}
	dims := xslices.SliceWithValue(outRank+1, 1)
	dims[outRank] = tangent.Shape().Dim(-1)
	return tensors.Reshape(tangent, dims...)
}

// addTangents sums two tangent batches, treating nil as zero.
func addTangents(a, b *tensors.Tensor) *tensors.Tensor {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return binOpT(addFloats, a, b)
}

// scaleTangent multiplies a tangent batch by a per-element coefficient of the operand's shape.
func scaleTangent(coeff, tangent *tensors.Tensor) *tensors.Tensor {
	return binOpT(mulFloats, withTrailingAxis(coeff), alignTangentRank(tangent, coeff.Rank()))
}

func jetUnary(b *Backend, op backends.Op, inputs, tangents []*tensors.Tensor, secondOrder bool) (output, outputTangents, output2nd *tensors.Tensor) {
	fns := unaryTable[op.Type]
	x, dx := inputs[0], tangents[0]
	output = mapFloat(x, fns.f)
	outputTangents = scaleTangent(mapFloat(x, fns.f1), dx)
	if secondOrder && !fns.zeroSecondOrder {
		dx2 := binOpT(mulFloats, dx, dx)
		output2nd = scaleTangent(mapFloat(x, fns.f2), dx2)
	}
	return
}

func jetBinary(b *Backend, op backends.Op, inputs, tangents []*tensors.Tensor, secondOrder bool) (output, outputTangents, output2nd *tensors.Tensor) {
	fns := binaryTable[op.Type]
	x, y := inputs[0], inputs[1]
	dx, dy := tangents[0], tangents[1]
	output = binOpT(fns.f, x, y)
	outRank := output.Rank()
	if dx != nil {
		dx = alignTangentRank(dx, outRank)
		outputTangents = binOpT(mulFloats, withTrailingAxis(binOpT(fns.fa, x, y)), dx)
	}
	if dy != nil {
		dy = alignTangentRank(dy, outRank)
		term := binOpT(mulFloats, withTrailingAxis(binOpT(fns.fb, x, y)), dy)
		outputTangents = addTangents(outputTangents, term)
	}
	if !secondOrder || fns.zeroSecondOrder {
		return
	}
	// d²(f(x, y)) = f_xx·dx² + 2·f_xy·dx·dy + f_yy·dy², per direction.
	if dx != nil {
		dx2 := binOpT(mulFloats, dx, dx)
		output2nd = binOpT(mulFloats, withTrailingAxis(binOpT(fns.faa, x, y)), dx2)
	}
	if dx != nil && dy != nil {
		cross := binOpT(mulFloats, dx, dy)
		twiceFab := func(a, b float64) float64 { return 2 * fns.fab(a, b) }
		output2nd = addTangents(output2nd, binOpT(mulFloats, withTrailingAxis(binOpT(twiceFab, x, y)), cross))
	}
	if dy != nil {
		dy2 := binOpT(mulFloats, dy, dy)
		output2nd = addTangents(output2nd, binOpT(mulFloats, withTrailingAxis(binOpT(fns.fbb, x, y)), dy2))
	}
	return
}

func jetConvertDType(b *Backend, op backends.Op, inputs, tangents []*tensors.Tensor, secondOrder bool) (output, outputTangents, output2nd *tensors.Tensor) {
	checkComputeDType(op.DType)
	output = tensors.ConvertDType(inputs[0], op.DType)
	outputTangents = tensors.ConvertDType(tangents[0], op.DType)
	return
}

func jetWhere(b *Backend, op backends.Op, inputs, tangents []*tensors.Tensor, secondOrder bool) (output, outputTangents, output2nd *tensors.Tensor) {
	condition, onTrue, onFalse := inputs[0], inputs[1], inputs[2]
	output = selectT(condition, onTrue, onFalse)
	numDirs := numDirections(inputs, tangents)
	outTangentShape := tangentShape(output.Shape(), numDirs)
	dTrue, dFalse := tangents[1], tangents[2]
	if dTrue == nil {
		dTrue = tensors.FromShape(outTangentShape)
	} else {
		dTrue = alignTangentRank(dTrue, output.Rank())
	}
	if dFalse == nil {
		dFalse = tensors.FromShape(outTangentShape)
	} else {
		dFalse = alignTangentRank(dFalse, output.Rank())
	}
	outputTangents = selectT(withTrailingAxis(condition), dTrue, dFalse)
	return
}

func jetReshape(b *Backend, op backends.Op, inputs, tangents []*tensors.Tensor, secondOrder bool) (output, outputTangents, output2nd *tensors.Tensor) {
	output = execReshape(b, op, inputs)
	numDirs := tangents[0].Shape().Dim(-1)
	dims := append(xslices.Copy(op.Dims), numDirs)
	outputTangents = tensors.Reshape(tangents[0].Clone(), dims...)
	return
}

// jetRemap propagates through the index shuffling ops (Transpose, BroadcastInDim, Slice and
// Gather): the tangents move by the same element mapping as the values, one whole direction
// chunk per element.
func jetRemap(b *Backend, op backends.Op, inputs, tangents []*tensors.Tensor, secondOrder bool) (output, outputTangents, output2nd *tensors.Tensor) {
	var indices []int
	if op.Type == backends.OpTypeGather {
		indices = indicesToInts(inputs[1])
	}
	mapping, outShape := elementRemap(op, inputs[0].Shape(), indices)
	outShape.DType = inputs[0].DType()
	output = applyRemap(inputs[0], mapping, outShape, 1)
	dx := tangents[0]
	numDirs := dx.Shape().Dim(-1)
	outputTangents = applyRemap(dx, mapping, tangentShape(outShape, numDirs), numDirs)
	return
}

func jetConcatenate(b *Backend, op backends.Op, inputs, tangents []*tensors.Tensor, secondOrder bool) (output, outputTangents, output2nd *tensors.Tensor) {
	output = execConcatenate(b, op, inputs)
	numDirs := numDirections(inputs, tangents)
	tangentInputs := make([]*tensors.Tensor, len(inputs))
	for ii, tangent := range tangents {
		if tangent == nil {
			tangent = tensors.FromShape(tangentShape(inputs[ii].Shape(), numDirs))
		}
		tangentInputs[ii] = tangent
	}
	outputTangents = tensors.FromShape(tangentShape(output.Shape(), numDirs))
	concatTensors(tangentInputs, outputTangents, op.Axes[0], 1)
	return
}

func jetReduceSum(b *Backend, op backends.Op, inputs, tangents []*tensors.Tensor, secondOrder bool) (output, outputTangents, output2nd *tensors.Tensor) {
	outShape, err := shapeinference.ReduceOp(inputs[0].Shape(), op.Axes)
	if err != nil {
		panic(err)
	}
	output = reduceSumT(inputs[0], op.Axes, outShape)
	dx := tangents[0]
	numDirs := dx.Shape().Dim(-1)
	outputTangents = reduceSumT(dx, op.Axes, tangentShape(outShape, numDirs))
	return
}

func jetReduceMax(b *Backend, op backends.Op, inputs, tangents []*tensors.Tensor, secondOrder bool) (output, outputTangents, output2nd *tensors.Tensor) {
	outShape, err := shapeinference.ReduceOp(inputs[0].Shape(), op.Axes)
	if err != nil {
		panic(err)
	}
	var argMap []int
	output, argMap = reduceMaxT(inputs[0], op.Axes, outShape)
	// The derivative flows from the (first) maximum element of each reduced group.
	dx := tangents[0]
	numDirs := dx.Shape().Dim(-1)
	outputTangents = applyRemap(dx, argMap, tangentShape(outShape, numDirs), numDirs)
	return
}

func jetDot(b *Backend, op backends.Op, inputs, tangents []*tensors.Tensor, secondOrder bool) (output, outputTangents, output2nd *tensors.Tensor) {
	lhs, rhs := inputs[0], inputs[1]
	dLhs, dRhs := tangents[0], tangents[1]
	outShape, err := shapeinference.DotOp(lhs.Shape(), rhs.Shape())
	if err != nil {
		panic(err)
	}
	m, k, n := dotDims(lhs.Shape(), rhs.Shape())
	output = dotT(lhs, rhs, m, k, n, 1, 1, outShape)
	numDirs := numDirections(inputs, tangents)
	outTangentShape := tangentShape(outShape, numDirs)
	if dLhs != nil {
		outputTangents = dotT(dLhs, rhs, m, k, n, numDirs, 1, outTangentShape)
	}
	if dRhs != nil {
		outputTangents = addTangents(outputTangents, dotT(lhs, dRhs, m, k, n, 1, numDirs, outTangentShape))
	}
	if secondOrder && dLhs != nil && dRhs != nil {
		// The contraction is bilinear: d² = 2·dot(dLhs, dRhs), per direction.
		output2nd = mapFloat(dotT(dLhs, dRhs, m, k, n, numDirs, numDirs, outTangentShape),
			func(v float64) float64 { return 2 * v })
	}
	return
}
