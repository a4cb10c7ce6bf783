// Package shapeinference calculates the output shape of every primitive operation and validates
// its inputs.
//
// Shapes here are always statically known: an operation whose output shape would depend on the
// concrete value of a tensor cannot be expressed (see the graph package for how value-dependent
// indexing falls back to a dense Jacobian representation instead).
//
// The majority of unary operations don't change the shape; binary operations follow the
// standard broadcasting rules (scalar with anything, or matching ranks with axes of dimension
// 1 broadcast). For the remaining ops it defines one function per OpType.
package shapeinference

import (
	"slices"

	"github.com/gomlx/fwdlap/backends"
	"github.com/gomlx/fwdlap/types/shapes"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

// UnaryOp returns the output shape of the elementwise unary operations: the shape of its
// operand, with the dtype validated against the operation.
func UnaryOp(opType backends.OpType, operand shapes.Shape) (output shapes.Shape, err error) {
	if !opType.IsUnaryElementwise() || opType == backends.OpTypeConvertDType {
		err = errors.Errorf("operation %s cannot be processed with UnaryOp", opType)
		return
	}
	switch opType {
	case backends.OpTypeNeg, backends.OpTypeAbs, backends.OpTypeSign:
		if !operand.DType.IsFloat() && !operand.DType.IsInt() {
			err = errors.Errorf("unary op %s requires a numeric operand, got %s", opType, operand)
			return
		}
	default:
		if !operand.DType.IsFloat() {
			err = errors.Errorf("unary op %s requires a float operand, got %s", opType, operand)
			return
		}
	}
	return operand.Clone(), nil
}

// ConvertDTypeOp returns the operand shape with the target dtype.
func ConvertDTypeOp(operand shapes.Shape, dtype dtypes.DType) (output shapes.Shape, err error) {
	if dtype == dtypes.InvalidDType {
		err = errors.Errorf("ConvertDType: invalid target dtype")
		return
	}
	output = operand.Clone()
	output.DType = dtype
	return
}

// BinaryOp returns the output shape of the elementwise binary operations, applying the
// broadcasting rules: a scalar broadcasts with anything; otherwise ranks must match and axes
// with dimension 1 broadcast to the other operand's dimension.
func BinaryOp(opType backends.OpType, lhs, rhs shapes.Shape) (output shapes.Shape, err error) {
	if !opType.IsBinaryElementwise() {
		err = errors.Errorf("operation %s cannot be processed with BinaryOp", opType)
		return
	}
	if lhs.DType == dtypes.InvalidDType || rhs.DType == dtypes.InvalidDType {
		err = errors.Errorf("invalid shape %s or %s for BinaryOp %s", lhs, rhs, opType)
		return
	}
	if lhs.DType != rhs.DType {
		err = errors.Errorf("data types (DType) for BinaryOp %s must match, got %s and %s", opType, lhs, rhs)
		return
	}
	return BroadcastShapes(lhs, rhs)
}

// BroadcastShapes returns the shape resulting from broadcasting the two operands together.
// The dtype is taken from lhs.
func BroadcastShapes(lhs, rhs shapes.Shape) (output shapes.Shape, err error) {
	if lhs.IsScalar() {
		output = rhs.Clone()
		output.DType = lhs.DType
		return
	}
	if rhs.IsScalar() {
		return lhs.Clone(), nil
	}
	if lhs.Rank() != rhs.Rank() {
		err = errors.Errorf("if operands are not scalars, their rank must match for broadcasting, got shapes %s and %s", lhs, rhs)
		return
	}
	output = lhs.Clone()
	for axis := range output.Rank() {
		lhsDim := lhs.Dimensions[axis]
		rhsDim := rhs.Dimensions[axis]
		if lhsDim != 1 && rhsDim != 1 && lhsDim != rhsDim {
			err = errors.Errorf("dimension of axis #%d doesn't match and cannot be broadcast, got shapes %s and %s", axis, lhs, rhs)
			return
		}
		output.Dimensions[axis] = max(lhsDim, rhsDim)
	}
	return
}

// WhereOp returns the output shape of a Where(condition, onTrue, onFalse) operation.
// The condition must be Bool and either scalar or of the broadcast shape of onTrue/onFalse;
// onTrue and onFalse broadcast together.
func WhereOp(condition, onTrue, onFalse shapes.Shape) (output shapes.Shape, err error) {
	if condition.DType != dtypes.Bool {
		err = errors.Errorf("Where requires a Bool condition, got %s", condition)
		return
	}
	if onTrue.DType != onFalse.DType {
		err = errors.Errorf("Where requires onTrue and onFalse to share a dtype, got %s and %s", onTrue, onFalse)
		return
	}
	output, err = BroadcastShapes(onTrue, onFalse)
	if err != nil {
		return
	}
	if !condition.IsScalar() && !condition.EqualDimensions(output) {
		condBroadcast := condition.Clone()
		condBroadcast.DType = output.DType
		output, err = BroadcastShapes(output, condBroadcast)
		if err != nil {
			err = errors.Errorf("Where condition shape %s is not broadcastable with value shape %s", condition, output)
		}
	}
	return
}

// ReduceOp returns the output shape of ReduceSum/ReduceMax over the given axes.
// Reduced axes are removed from the shape. Axes must be unique and in range.
func ReduceOp(operand shapes.Shape, axes []int) (output shapes.Shape, err error) {
	if len(axes) == 0 {
		// Full reduction to a scalar.
		return shapes.Shape{DType: operand.DType}, nil
	}
	seen := make(map[int]bool, len(axes))
	for _, axis := range axes {
		if axis < 0 || axis >= operand.Rank() {
			err = errors.Errorf("reduce axis %d out of range for shape %s", axis, operand)
			return
		}
		if seen[axis] {
			err = errors.Errorf("duplicate reduce axis %d for shape %s", axis, operand)
			return
		}
		seen[axis] = true
	}
	output = shapes.Shape{DType: operand.DType}
	for axis, dim := range operand.Dimensions {
		if !seen[axis] {
			output.Dimensions = append(output.Dimensions, dim)
		}
	}
	return
}

// DotOp returns the output shape for Dot, following the usual convention:
// vector·vector → scalar, matrix·vector → vector, matrix·matrix → matrix.
func DotOp(lhs, rhs shapes.Shape) (output shapes.Shape, err error) {
	if lhs.DType != rhs.DType {
		err = errors.Errorf("Dot operands must share a dtype, got %s and %s", lhs, rhs)
		return
	}
	if lhs.Rank() == 0 || lhs.Rank() > 2 || rhs.Rank() == 0 || rhs.Rank() > 2 {
		err = errors.Errorf("Dot only takes vector or matrix operands, got %s and %s", lhs, rhs)
		return
	}
	contractLhs := lhs.Dimensions[lhs.Rank()-1]
	contractRhs := rhs.Dimensions[0]
	if contractLhs != contractRhs {
		err = errors.Errorf("Dot contracting dimensions don't match: %s and %s", lhs, rhs)
		return
	}
	output = shapes.Shape{DType: lhs.DType}
	if lhs.Rank() == 2 {
		output.Dimensions = append(output.Dimensions, lhs.Dimensions[0])
	}
	if rhs.Rank() == 2 {
		output.Dimensions = append(output.Dimensions, rhs.Dimensions[1])
	}
	return
}

// ReshapeOp checks the total size is preserved and returns the new shape.
func ReshapeOp(operand shapes.Shape, dims []int) (output shapes.Shape, err error) {
	output = shapes.Shape{DType: operand.DType, Dimensions: slices.Clone(dims)}
	for _, dim := range dims {
		if dim <= 0 {
			err = errors.Errorf("Reshape only takes positive dimensions, got %v", dims)
			return
		}
	}
	if output.Size() != operand.Size() {
		err = errors.Errorf("Reshape from %s to dimensions %v changes the total size from %d to %d",
			operand, dims, operand.Size(), output.Size())
	}
	return
}

// TransposeOp checks permutations is a permutation of the operand axes and returns the permuted
// shape.
func TransposeOp(operand shapes.Shape, permutations []int) (output shapes.Shape, err error) {
	if len(permutations) != operand.Rank() {
		err = errors.Errorf("Transpose of %s requires %d permutation values, got %v",
			operand, operand.Rank(), permutations)
		return
	}
	output = shapes.Shape{DType: operand.DType, Dimensions: make([]int, operand.Rank())}
	seen := make([]bool, operand.Rank())
	for toAxis, fromAxis := range permutations {
		if fromAxis < 0 || fromAxis >= operand.Rank() || seen[fromAxis] {
			err = errors.Errorf("Transpose of %s given an invalid permutation %v", operand, permutations)
			return
		}
		seen[fromAxis] = true
		output.Dimensions[toAxis] = operand.Dimensions[fromAxis]
	}
	return
}

// BroadcastInDimOp checks that the operand axes map (in order) to axes of the target dimensions
// with matching (or 1) dimensions, and returns the target shape.
func BroadcastInDimOp(operand shapes.Shape, dims []int, broadcastAxes []int) (output shapes.Shape, err error) {
	if len(broadcastAxes) != operand.Rank() {
		err = errors.Errorf("BroadcastInDim of %s requires one broadcast axis per operand axis, got %v",
			operand, broadcastAxes)
		return
	}
	output = shapes.Shape{DType: operand.DType, Dimensions: slices.Clone(dims)}
	lastAxis := -1
	for operandAxis, outputAxis := range broadcastAxes {
		if outputAxis <= lastAxis || outputAxis >= len(dims) {
			err = errors.Errorf("BroadcastInDim axes %v must be increasing and within the target rank %d",
				broadcastAxes, len(dims))
			return
		}
		lastAxis = outputAxis
		operandDim := operand.Dimensions[operandAxis]
		if operandDim != 1 && operandDim != dims[outputAxis] {
			err = errors.Errorf("BroadcastInDim of %s to dimensions %v: operand axis %d (dim %d) doesn't match target axis %d (dim %d)",
				operand, dims, operandAxis, operandDim, outputAxis, dims[outputAxis])
			return
		}
	}
	return
}

// ConcatenateOp returns the shape of the concatenation of the inputs along the given axis.
func ConcatenateOp(inputs []shapes.Shape, axis int) (output shapes.Shape, err error) {
	if len(inputs) == 0 {
		err = errors.Errorf("Concatenate requires at least one input")
		return
	}
	output = inputs[0].Clone()
	if axis < 0 || axis >= output.Rank() {
		err = errors.Errorf("Concatenate axis %d out of range for shape %s", axis, inputs[0])
		return
	}
	for _, input := range inputs[1:] {
		if input.DType != output.DType || input.Rank() != output.Rank() {
			err = errors.Errorf("Concatenate inputs must share dtype and rank, got %s and %s", inputs[0], input)
			return
		}
		for otherAxis := range output.Rank() {
			if otherAxis == axis {
				continue
			}
			if input.Dimensions[otherAxis] != output.Dimensions[otherAxis] {
				err = errors.Errorf("Concatenate inputs disagree on axis %d: %s vs %s", otherAxis, inputs[0], input)
				return
			}
		}
		output.Dimensions[axis] += input.Dimensions[axis]
	}
	return
}

// SliceOp returns the shape of the slice [starts, limits) of the operand, one pair per axis.
func SliceOp(operand shapes.Shape, starts, limits []int) (output shapes.Shape, err error) {
	if len(starts) != operand.Rank() || len(limits) != operand.Rank() {
		err = errors.Errorf("Slice of %s requires %d starts and limits, got %v and %v",
			operand, operand.Rank(), starts, limits)
		return
	}
	output = shapes.Shape{DType: operand.DType, Dimensions: make([]int, operand.Rank())}
	for axis := range operand.Rank() {
		if starts[axis] < 0 || limits[axis] > operand.Dimensions[axis] || starts[axis] >= limits[axis] {
			err = errors.Errorf("Slice of %s with invalid range [%d, %d) for axis %d",
				operand, starts[axis], limits[axis], axis)
			return
		}
		output.Dimensions[axis] = limits[axis] - starts[axis]
	}
	return
}

// GatherOp returns the shape of gathering, along the given operand axis, the slices selected by
// the 1-dimensional integer indices.
func GatherOp(operand, indices shapes.Shape, axis int) (output shapes.Shape, err error) {
	if !indices.DType.IsInt() {
		err = errors.Errorf("Gather requires integer indices, got %s", indices)
		return
	}
	if indices.Rank() != 1 {
		err = errors.Errorf("Gather requires indices of rank 1, got %s", indices)
		return
	}
	if axis < 0 || axis >= operand.Rank() {
		err = errors.Errorf("Gather axis %d out of range for shape %s", axis, operand)
		return
	}
	output = operand.Clone()
	output.Dimensions[axis] = indices.Dimensions[0]
	return
}

// IotaOp returns a shape with the given dtype and dimensions, validating the axis.
func IotaOp(dtype dtypes.DType, dims []int, axis int) (output shapes.Shape, err error) {
	if axis < 0 || axis >= len(dims) {
		err = errors.Errorf("Iota axis %d out of range for dimensions %v", axis, dims)
		return
	}
	output = shapes.Shape{DType: dtype, Dimensions: slices.Clone(dims)}
	return
}
