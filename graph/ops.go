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

package graph

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/fwdlap/backends"
	"github.com/gomlx/fwdlap/backends/shapeinference"
	"github.com/gomlx/fwdlap/types/shapes"
	"github.com/gomlx/fwdlap/types/tensors"
	"github.com/gomlx/fwdlap/types/xslices"
	"github.com/gomlx/gopjrt/dtypes"
)

// Parameter creates an input node of the given shape. The name must be unique within the
// graph; it identifies the argument when the graph is executed.
func Parameter(g *Graph, name string, shape shapes.Shape) *Node {
	if !shape.Ok() {
		exceptions.Panicf("Parameter %q must be given a valid shape", name)
	}
	if _, found := g.parameterNameToNode[name]; found {
		exceptions.Panicf("graph %q already has a parameter named %q", g.name, name)
	}
	node := newNode(g, backends.Op{Type: backends.OpTypeParameter}, nil, shape)
	node.name = name
	g.parameters = append(g.parameters, node)
	g.parameterNameToNode[name] = node
	return node
}

// ConstTensor creates a constant node with the given tensor value. The tensor must not be
// mutated afterwards.
func ConstTensor(g *Graph, value *tensors.Tensor) *Node {
	value.AssertValid()
	node := newNode(g, backends.Op{Type: backends.OpTypeConstant}, nil, value.Shape())
	node.constValue = value
	return node
}

// Const creates a constant node from a Go value -- a scalar or (regular) multi-dimensional
// slice. See tensors.FromValue for the accepted values.
func Const(g *Graph, value any) *Node {
	return ConstTensor(g, tensors.FromValue(value))
}

// Scalar creates a constant scalar node of the given dtype.
func Scalar(g *Graph, dtype dtypes.DType, value float64) *Node {
	return ConstTensor(g, tensors.ConvertDType(tensors.FromScalar(value), dtype))
}

// Iota creates a node of the given shape whose elements count up along the given axis,
// starting from 0. The axis can be negative, counting from the end.
func Iota(g *Graph, shape shapes.Shape, axis int) *Node {
	adjustedAxis := shapes.AdjustAxisToRank(axis, shape.Rank())
	outShape, err := shapeinference.IotaOp(shape.DType, shape.Dimensions, adjustedAxis)
	if err != nil {
		panic(err)
	}
	return newNode(g, backends.Op{
		Type:  backends.OpTypeIota,
		DType: shape.DType,
		Dims:  xslices.Copy(shape.Dimensions),
		Axes:  []int{adjustedAxis},
	}, nil, outShape)
}

// unaryOp funnels the elementwise one-input operations.
func unaryOp(opType backends.OpType, x *Node) *Node {
	outShape, err := shapeinference.UnaryOp(opType, x.shape)
	if err != nil {
		panic(err)
	}
	return newNode(x.graph, backends.Op{Type: opType}, []*Node{x}, outShape)
}

// Neg returns (-x), elementwise.
func Neg(x *Node) *Node { return unaryOp(backends.OpTypeNeg, x) }

// Abs returns the absolute value of x, elementwise.
func Abs(x *Node) *Node { return unaryOp(backends.OpTypeAbs, x) }

// Sign returns -1, 0 or +1 per element of x.
func Sign(x *Node) *Node { return unaryOp(backends.OpTypeSign, x) }

// Exp returns e^x, elementwise.
func Exp(x *Node) *Node { return unaryOp(backends.OpTypeExp, x) }

// Log returns the natural logarithm of x, elementwise.
func Log(x *Node) *Node { return unaryOp(backends.OpTypeLog, x) }

// Log1p returns log(1+x), elementwise.
func Log1p(x *Node) *Node { return unaryOp(backends.OpTypeLog1p, x) }

// Sin returns the sine of x (in radians), elementwise.
func Sin(x *Node) *Node { return unaryOp(backends.OpTypeSin, x) }

// Cos returns the cosine of x (in radians), elementwise.
func Cos(x *Node) *Node { return unaryOp(backends.OpTypeCos, x) }

// Tanh returns the hyperbolic tangent of x, elementwise.
func Tanh(x *Node) *Node { return unaryOp(backends.OpTypeTanh, x) }

// Logistic returns 1/(1+e^-x), elementwise. Also known as the sigmoid.
func Logistic(x *Node) *Node { return unaryOp(backends.OpTypeLogistic, x) }

// Sigmoid is an alias for Logistic.
func Sigmoid(x *Node) *Node { return Logistic(x) }

// Sqrt returns the square root of x, elementwise.
func Sqrt(x *Node) *Node { return unaryOp(backends.OpTypeSqrt, x) }

// Rsqrt returns 1/sqrt(x), elementwise.
func Rsqrt(x *Node) *Node { return unaryOp(backends.OpTypeRsqrt, x) }

// Erf returns the Gauss error function of x, elementwise.
func Erf(x *Node) *Node { return unaryOp(backends.OpTypeErf, x) }

// ConvertDType converts x to the given dtype, elementwise.
func ConvertDType(x *Node, dtype dtypes.DType) *Node {
	if x.DType() == dtype {
		return x
	}
	outShape, err := shapeinference.ConvertDTypeOp(x.shape, dtype)
	if err != nil {
		panic(err)
	}
	return newNode(x.graph, backends.Op{Type: backends.OpTypeConvertDType, DType: dtype},
		[]*Node{x}, outShape)
}

// binaryOp funnels the elementwise two-input operations, with broadcasting: the operands must
// have the same dtype and either one is a scalar or they have the same rank with matching or
// 1-sized dimensions.
func binaryOp(opType backends.OpType, lhs, rhs *Node) *Node {
	lhs.graph.assertSameGraph(rhs)
	outShape, err := shapeinference.BinaryOp(opType, lhs.shape, rhs.shape)
	if err != nil {
		panic(err)
	}
	return newNode(lhs.graph, backends.Op{Type: opType}, []*Node{lhs, rhs}, outShape)
}

// Add returns lhs+rhs, elementwise, with broadcasting.
func Add(lhs, rhs *Node) *Node { return binaryOp(backends.OpTypeAdd, lhs, rhs) }

// Sub returns lhs-rhs, elementwise, with broadcasting.
func Sub(lhs, rhs *Node) *Node { return binaryOp(backends.OpTypeSub, lhs, rhs) }

// Mul returns lhs*rhs, elementwise, with broadcasting.
func Mul(lhs, rhs *Node) *Node { return binaryOp(backends.OpTypeMul, lhs, rhs) }

// Div returns lhs/rhs, elementwise, with broadcasting.
func Div(lhs, rhs *Node) *Node { return binaryOp(backends.OpTypeDiv, lhs, rhs) }

// Pow returns lhs^rhs, elementwise, with broadcasting.
func Pow(lhs, rhs *Node) *Node { return binaryOp(backends.OpTypePow, lhs, rhs) }

// Max returns the elementwise maximum of lhs and rhs, with broadcasting.
func Max(lhs, rhs *Node) *Node { return binaryOp(backends.OpTypeMax, lhs, rhs) }

// Min returns the elementwise minimum of lhs and rhs, with broadcasting.
func Min(lhs, rhs *Node) *Node { return binaryOp(backends.OpTypeMin, lhs, rhs) }

// Where returns, per element, onTrue where condition holds and onFalse elsewhere. condition
// must be boolean, either a scalar or of the operands' (broadcast) shape.
func Where(condition, onTrue, onFalse *Node) *Node {
	condition.graph.assertSameGraph(onTrue, onFalse)
	outShape, err := shapeinference.WhereOp(condition.shape, onTrue.shape, onFalse.shape)
	if err != nil {
		panic(err)
	}
	return newNode(condition.graph, backends.Op{Type: backends.OpTypeWhere},
		[]*Node{condition, onTrue, onFalse}, outShape)
}

// adjustAxesToRank converts negative axes (counting from the end) and checks for range and
// duplicates.
func adjustAxesToRank(rank int, axes []int, opName string) []int {
	adjusted := make([]int, len(axes))
	seen := make(map[int]bool, len(axes))
	for ii, axis := range axes {
		if axis < 0 {
			axis += rank
		}
		if axis < 0 || axis >= rank {
			exceptions.Panicf("%s: axis %d out of range for rank %d", opName, axes[ii], rank)
		}
		if seen[axis] {
			exceptions.Panicf("%s: axis %d given more than once", opName, axis)
		}
		seen[axis] = true
		adjusted[ii] = axis
	}
	return adjusted
}

// ReduceSum sums over the given axes, which are removed from the shape. Axes can be negative,
// counting from the end. If no axes are given it reduces over all axes, returning a scalar.
func ReduceSum(x *Node, axes ...int) *Node {
	return reduceOp(backends.OpTypeReduceSum, x, axes)
}

// ReduceAllSum sums over all axes of x, returning a scalar.
func ReduceAllSum(x *Node) *Node { return ReduceSum(x) }

// ReduceMax takes the maximum over the given axes, which are removed from the shape. Axes can
// be negative, counting from the end. If no axes are given it reduces over all axes.
func ReduceMax(x *Node, axes ...int) *Node {
	return reduceOp(backends.OpTypeReduceMax, x, axes)
}

// ReduceAllMax takes the maximum over all axes of x, returning a scalar.
func ReduceAllMax(x *Node) *Node { return ReduceMax(x) }

func reduceOp(opType backends.OpType, x *Node, axes []int) *Node {
	if len(axes) == 0 {
		axes = xslices.Iota(0, x.Rank())
	} else {
		axes = adjustAxesToRank(x.Rank(), axes, opType.String())
	}
	outShape, err := shapeinference.ReduceOp(x.shape, axes)
	if err != nil {
		panic(err)
	}
	return newNode(x.graph, backends.Op{Type: opType, Axes: axes}, []*Node{x}, outShape)
}

// Dot contracts the last axis of lhs with the first axis of rhs: matrix×matrix, matrix×vector,
// vector×matrix or vector×vector (dot product). Both operands must be rank 1 or 2 with the
// same dtype and a matching contraction dimension.
func Dot(lhs, rhs *Node) *Node {
	lhs.graph.assertSameGraph(rhs)
	outShape, err := shapeinference.DotOp(lhs.shape, rhs.shape)
	if err != nil {
		panic(err)
	}
	return newNode(lhs.graph, backends.Op{Type: backends.OpTypeDot}, []*Node{lhs, rhs}, outShape)
}

// Reshape reinterprets x with the given dimensions. The total size must not change.
func Reshape(x *Node, dims ...int) *Node {
	outShape, err := shapeinference.ReshapeOp(x.shape, dims)
	if err != nil {
		panic(err)
	}
	return newNode(x.graph, backends.Op{Type: backends.OpTypeReshape, Dims: xslices.Copy(dims)},
		[]*Node{x}, outShape)
}

// Transpose permutes the axes of x: output axis ii takes input axis permutations[ii]. The
// permutation must have exactly one entry per axis.
func Transpose(x *Node, permutations ...int) *Node {
	permutations = adjustAxesToRank(x.Rank(), permutations, "Transpose")
	outShape, err := shapeinference.TransposeOp(x.shape, permutations)
	if err != nil {
		panic(err)
	}
	return newNode(x.graph, backends.Op{Type: backends.OpTypeTranspose, Axes: permutations},
		[]*Node{x}, outShape)
}

// BroadcastInDim broadcasts x to the given dimensions: broadcastAxes[ii] gives the output
// axis of x's axis ii, and must be increasing. Axes of x with dimension 1 are expanded; the
// remaining output axes are filled by repetition.
func BroadcastInDim(x *Node, dims []int, broadcastAxes []int) *Node {
	broadcastAxes = adjustAxesToRank(len(dims), broadcastAxes, "BroadcastInDim")
	outShape, err := shapeinference.BroadcastInDimOp(x.shape, dims, broadcastAxes)
	if err != nil {
		panic(err)
	}
	return newNode(x.graph, backends.Op{
		Type: backends.OpTypeBroadcastInDim,
		Dims: xslices.Copy(dims),
		Axes: broadcastAxes,
	}, []*Node{x}, outShape)
}

// Concatenate joins the operands along the given axis. All operands must have the same dtype
// and the same dimensions everywhere else. The axis can be negative, counting from the end.
func Concatenate(operands []*Node, axis int) *Node {
	if len(operands) == 0 {
		exceptions.Panicf("Concatenate requires at least one operand")
	}
	g := operands[0].graph
	g.assertSameGraph(operands...)
	axis = shapes.AdjustAxisToRank(axis, operands[0].Rank())
	inShapes := make([]shapes.Shape, len(operands))
	for ii, operand := range operands {
		inShapes[ii] = operand.shape
	}
	outShape, err := shapeinference.ConcatenateOp(inShapes, axis)
	if err != nil {
		panic(err)
	}
	return newNode(g, backends.Op{Type: backends.OpTypeConcatenate, Axes: []int{axis}},
		operands, outShape)
}

// Slice takes the hyper-rectangle [starts[ii], limits[ii]) of every axis ii of x. Both starts
// and limits must have one entry per axis.
func Slice(x *Node, starts, limits []int) *Node {
	outShape, err := shapeinference.SliceOp(x.shape, starts, limits)
	if err != nil {
		panic(err)
	}
	return newNode(x.graph, backends.Op{
		Type:   backends.OpTypeSlice,
		Starts: xslices.Copy(starts),
		Limits: xslices.Copy(limits),
	}, []*Node{x}, outShape)
}

// Gather picks slices of x along the given axis, per the 1-dimensional integer indices. The
// output has x's shape with the given axis resized to the number of indices. The axis can be
// negative, counting from the end.
func Gather(x *Node, indices *Node, axis int) *Node {
	x.graph.assertSameGraph(indices)
	axis = shapes.AdjustAxisToRank(axis, x.Rank())
	outShape, err := shapeinference.GatherOp(x.shape, indices.shape, axis)
	if err != nil {
		panic(err)
	}
	return newNode(x.graph, backends.Op{Type: backends.OpTypeGather, Axes: []int{axis}},
		[]*Node{x, indices}, outShape)
}
