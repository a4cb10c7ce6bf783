package goeval

import (
	"math"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/fwdlap/backends"
	"github.com/gomlx/fwdlap/backends/shapeinference"
	"github.com/gomlx/fwdlap/types/shapes"
	"github.com/gomlx/fwdlap/types/tensors"
	"github.com/gomlx/gopjrt/dtypes"
)

func init() {
	for _, opType := range []backends.OpType{
		backends.OpTypeAdd, backends.OpTypeSub, backends.OpTypeMul, backends.OpTypeDiv,
		backends.OpTypePow, backends.OpTypeMax, backends.OpTypeMin,
	} {
		nodeExecutors[opType] = execBinary
	}
	nodeExecutors[backends.OpTypeWhere] = execWhere
}

// binaryFns holds the scalar function of a binary elementwise op along with its first and
// second partial derivatives, all on float64. For the piecewise-linear ops (Max, Min) the
// partials are taken almost everywhere and the second partials are identically zero.
type binaryFns struct {
	f, fa, fb      func(a, b float64) float64
	faa, fab, fbb  func(a, b float64) float64
	zeroSecondOrder bool
}

func zero2Fn(a, b float64) float64 { return 0 }

var binaryTable = map[backends.OpType]binaryFns{
	backends.OpTypeAdd: {
		f:  func(a, b float64) float64 { return a + b },
		fa: func(a, b float64) float64 { return 1 },
		fb: func(a, b float64) float64 { return 1 },
		faa: zero2Fn, fab: zero2Fn, fbb: zero2Fn,
		zeroSecondOrder: true,
	},
	backends.OpTypeSub: {
		f:  func(a, b float64) float64 { return a - b },
		fa: func(a, b float64) float64 { return 1 },
		fb: func(a, b float64) float64 { return -1 },
		faa: zero2Fn, fab: zero2Fn, fbb: zero2Fn,
		zeroSecondOrder: true,
	},
	backends.OpTypeMul: {
		f:  func(a, b float64) float64 { return a * b },
		fa: func(a, b float64) float64 { return b },
		fb: func(a, b float64) float64 { return a },
		faa: zero2Fn,
		fab: func(a, b float64) float64 { return 1 },
		fbb: zero2Fn,
	},
	backends.OpTypeDiv: {
		f:  func(a, b float64) float64 { return a / b },
		fa: func(a, b float64) float64 { return 1 / b },
		fb: func(a, b float64) float64 { return -a / (b * b) },
		faa: zero2Fn,
		fab: func(a, b float64) float64 { return -1 / (b * b) },
		fbb: func(a, b float64) float64 { return 2 * a / (b * b * b) },
	},
	backends.OpTypePow: {
		f:  math.Pow,
		fa: func(a, b float64) float64 { return b * math.Pow(a, b-1) },
		fb: func(a, b float64) float64 { return math.Pow(a, b) * math.Log(a) },
		faa: func(a, b float64) float64 { return b * (b - 1) * math.Pow(a, b-2) },
		fab: func(a, b float64) float64 { return math.Pow(a, b-1) * (1 + b*math.Log(a)) },
		fbb: func(a, b float64) float64 {
			logA := math.Log(a)
			return math.Pow(a, b) * logA * logA
		},
	},
	backends.OpTypeMax: {
		f:  math.Max,
		fa: func(a, b float64) float64 { return boolToFloat(a >= b) },
		fb: func(a, b float64) float64 { return boolToFloat(a < b) },
		faa: zero2Fn, fab: zero2Fn, fbb: zero2Fn,
		zeroSecondOrder: true,
	},
	backends.OpTypeMin: {
		f:  math.Min,
		fa: func(a, b float64) float64 { return boolToFloat(a <= b) },
		fb: func(a, b float64) float64 { return boolToFloat(a > b) },
		faa: zero2Fn, fab: zero2Fn, fbb: zero2Fn,
		zeroSecondOrder: true,
	},
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func execBinary(b *Backend, op backends.Op, inputs []*tensors.Tensor) *tensors.Tensor {
	fns, found := binaryTable[op.Type]
	if !found {
		exceptions.Panicf("goeval: binary operation %s is not implemented", op)
	}
	return binOpT(fns.f, inputs[0], inputs[1])
}

// binOpT applies the scalar function elementwise with broadcasting. Both operands must be
// floats of the same dtype.
func binOpT(fn func(a, b float64) float64, lhs, rhs *tensors.Tensor) *tensors.Tensor {
	checkComputeDType(lhs.DType())
	outShape, err := shapeinference.BroadcastShapes(lhs.Shape(), rhs.Shape())
	if err != nil {
		panic(err)
	}
	output := tensors.FromShape(outShape)
	lhsStrides := broadcastStrides(lhs.Shape(), outShape.Dimensions)
	rhsStrides := broadcastStrides(rhs.Shape(), outShape.Dimensions)
	switch lhs.DType() {
	case dtypes.Float32:
		binOpGeneric(fn, tensors.ConstFlatData[float32](lhs), tensors.ConstFlatData[float32](rhs),
			tensors.MutableFlatData[float32](output), outShape.Dimensions, lhsStrides, rhsStrides)
	case dtypes.Float64:
		binOpGeneric(fn, tensors.ConstFlatData[float64](lhs), tensors.ConstFlatData[float64](rhs),
			tensors.MutableFlatData[float64](output), outShape.Dimensions, lhsStrides, rhsStrides)
	}
	return output
}

func binOpGeneric[T floatPOD](fn func(a, b float64) float64, lhs, rhs, out []T, outDims []int, lhsStrides, rhsStrides []int) {
	broadcastLoop(outDims, [][]int{lhsStrides, rhsStrides}, func(outPos int, pos []int) {
		out[outPos] = T(fn(float64(lhs[pos[0]]), float64(rhs[pos[1]])))
	})
}

func execWhere(b *Backend, op backends.Op, inputs []*tensors.Tensor) *tensors.Tensor {
	return selectT(inputs[0], inputs[1], inputs[2])
}

// selectT picks elementwise from onTrue or onFalse according to condition, with broadcasting.
func selectT(condition, onTrue, onFalse *tensors.Tensor) *tensors.Tensor {
	outShape, err := shapeinference.WhereOp(condition.Shape(), onTrue.Shape(), onFalse.Shape())
	if err != nil {
		panic(err)
	}
	checkComputeDType(outShape.DType)
	output := tensors.FromShape(outShape)
	condStrides := broadcastStrides(condShapeForBroadcast(condition.Shape(), outShape), outShape.Dimensions)
	onTrueStrides := broadcastStrides(onTrue.Shape(), outShape.Dimensions)
	onFalseStrides := broadcastStrides(onFalse.Shape(), outShape.Dimensions)
	cond := tensors.ConstFlatData[bool](condition)
	switch outShape.DType {
	case dtypes.Float32:
		selectGeneric(cond, tensors.ConstFlatData[float32](onTrue), tensors.ConstFlatData[float32](onFalse),
			tensors.MutableFlatData[float32](output), outShape.Dimensions, condStrides, onTrueStrides, onFalseStrides)
	case dtypes.Float64:
		selectGeneric(cond, tensors.ConstFlatData[float64](onTrue), tensors.ConstFlatData[float64](onFalse),
			tensors.MutableFlatData[float64](output), outShape.Dimensions, condStrides, onTrueStrides, onFalseStrides)
	}
	return output
}

// condShapeForBroadcast reinterprets the condition shape with the output dtype, only for
// computing broadcast strides.
func condShapeForBroadcast(condition, output shapes.Shape) shapes.Shape {
	s := condition.Clone()
	s.DType = output.DType
	return s
}

func selectGeneric[T floatPOD](cond []bool, onTrue, onFalse, out []T, outDims []int, condStrides, onTrueStrides, onFalseStrides []int) {
	broadcastLoop(outDims, [][]int{condStrides, onTrueStrides, onFalseStrides}, func(outPos int, pos []int) {
		if cond[pos[0]] {
			out[outPos] = onTrue[pos[1]]
		} else {
			out[outPos] = onFalse[pos[2]]
		}
	})
}
