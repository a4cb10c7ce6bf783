package goeval

import (
	"math"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/fwdlap/backends"
	"github.com/gomlx/fwdlap/types/tensors"
	"github.com/gomlx/gopjrt/dtypes"
)

func init() {
	for _, opType := range []backends.OpType{
		backends.OpTypeNeg, backends.OpTypeAbs, backends.OpTypeSign, backends.OpTypeExp,
		backends.OpTypeLog, backends.OpTypeLog1p, backends.OpTypeSin, backends.OpTypeCos,
		backends.OpTypeTanh, backends.OpTypeLogistic, backends.OpTypeSqrt, backends.OpTypeRsqrt,
		backends.OpTypeErf,
	} {
		nodeExecutors[opType] = execUnary
	}
	nodeExecutors[backends.OpTypeConvertDType] = execConvertDType
}

// unaryFns holds the scalar function of a unary elementwise op and its first and second
// derivatives, all on float64. For the piecewise-linear ops (Abs, Sign), f1 is the derivative
// almost everywhere and f2 is identically zero.
type unaryFns struct {
	f, f1, f2 func(x float64) float64

	// zeroSecondOrder marks ops whose second derivative is identically zero (almost
	// everywhere), so the propagation can skip the second-order coefficients.
	zeroSecondOrder bool
}

var unaryTable = map[backends.OpType]unaryFns{
	backends.OpTypeNeg: {
		f:  func(x float64) float64 { return -x },
		f1: func(x float64) float64 { return -1 },
		f2: zeroFn,
		zeroSecondOrder: true,
	},
	backends.OpTypeAbs: {
		f:  math.Abs,
		f1: signOf,
		f2: zeroFn,
		zeroSecondOrder: true,
	},
	backends.OpTypeSign: {
		f:  signOf,
		f1: zeroFn,
		f2: zeroFn,
		zeroSecondOrder: true,
	},
	backends.OpTypeExp: {
		f:  math.Exp,
		f1: math.Exp,
		f2: math.Exp,
	},
	backends.OpTypeLog: {
		f:  math.Log,
		f1: func(x float64) float64 { return 1 / x },
		f2: func(x float64) float64 { return -1 / (x * x) },
	},
	backends.OpTypeLog1p: {
		f:  math.Log1p,
		f1: func(x float64) float64 { return 1 / (1 + x) },
		f2: func(x float64) float64 { return -1 / ((1 + x) * (1 + x)) },
	},
	backends.OpTypeSin: {
		f:  math.Sin,
		f1: math.Cos,
		f2: func(x float64) float64 { return -math.Sin(x) },
	},
	backends.OpTypeCos: {
		f:  math.Cos,
		f1: func(x float64) float64 { return -math.Sin(x) },
		f2: func(x float64) float64 { return -math.Cos(x) },
	},
	backends.OpTypeTanh: {
		f: math.Tanh,
		f1: func(x float64) float64 {
			t := math.Tanh(x)
			return 1 - t*t
		},
		f2: func(x float64) float64 {
			t := math.Tanh(x)
			return -2 * t * (1 - t*t)
		},
	},
	backends.OpTypeLogistic: {
		f: logistic,
		f1: func(x float64) float64 {
			s := logistic(x)
			return s * (1 - s)
		},
		f2: func(x float64) float64 {
			s := logistic(x)
			return s * (1 - s) * (1 - 2*s)
		},
	},
	backends.OpTypeSqrt: {
		f:  math.Sqrt,
		f1: func(x float64) float64 { return 0.5 / math.Sqrt(x) },
		f2: func(x float64) float64 { return -0.25 / (x * math.Sqrt(x)) },
	},
	backends.OpTypeRsqrt: {
		f:  func(x float64) float64 { return 1 / math.Sqrt(x) },
		f1: func(x float64) float64 { return -0.5 / (x * math.Sqrt(x)) },
		f2: func(x float64) float64 { return 0.75 / (x * x * math.Sqrt(x)) },
	},
	backends.OpTypeErf: {
		f:  math.Erf,
		f1: erfDeriv,
		f2: func(x float64) float64 { return -2 * x * erfDeriv(x) },
	},
}

func zeroFn(x float64) float64 { return 0 }

func signOf(x float64) float64 {
	if x > 0 {
		return 1
	} else if x < 0 {
		return -1
	}
	return 0
}

func logistic(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

// erfDeriv is d/dx erf(x) = 2/√π · e^(-x²).
func erfDeriv(x float64) float64 { return 2 / math.Sqrt(math.Pi) * math.Exp(-x*x) }

func execUnary(b *Backend, op backends.Op, inputs []*tensors.Tensor) *tensors.Tensor {
	input := inputs[0]
	checkComputeDType(input.DType())
	fns, found := unaryTable[op.Type]
	if !found {
		exceptions.Panicf("goeval: unary operation %s is not implemented", op)
	}
	return mapFloat(input, fns.f)
}

// mapFloat applies the scalar function elementwise, returning a new tensor with the input's
// shape.
func mapFloat(input *tensors.Tensor, fn func(x float64) float64) *tensors.Tensor {
	output := tensors.FromShape(input.Shape())
	switch input.DType() {
	case dtypes.Float32:
		mapFloatGeneric(tensors.ConstFlatData[float32](input), tensors.MutableFlatData[float32](output), fn)
	case dtypes.Float64:
		mapFloatGeneric(tensors.ConstFlatData[float64](input), tensors.MutableFlatData[float64](output), fn)
	}
	return output
}

func mapFloatGeneric[T floatPOD](inputs, outputs []T, fn func(x float64) float64) {
	for ii, input := range inputs {
		outputs[ii] = T(fn(float64(input)))
	}
}

func execConvertDType(b *Backend, op backends.Op, inputs []*tensors.Tensor) *tensors.Tensor {
	return tensors.ConvertDType(inputs[0], op.DType)
}
