package backends

import (
	"fmt"
	"strings"

	"github.com/gomlx/gopjrt/dtypes"
)

// OpType is an enum of all primitive operations that can be supported by a Backend.
//
// Nothing precludes a specialized backend from supporting other ops: it requires registering a
// propagation rule for them in the root package, since the structural default rule only knows
// the ops enumerated here.
type OpType int

//go:generate go tool enumer -type=OpType -trimprefix=OpType -output=gen_optype_enumer.go optype.go

const (
	OpTypeInvalid OpType = iota
	OpTypeParameter
	OpTypeConstant
	OpTypeIota

	// Unary elementwise.

	OpTypeNeg
	OpTypeAbs
	OpTypeSign
	OpTypeExp
	OpTypeLog
	OpTypeLog1p
	OpTypeSin
	OpTypeCos
	OpTypeTanh
	OpTypeLogistic
	OpTypeSqrt
	OpTypeRsqrt
	OpTypeErf
	OpTypeConvertDType

	// Binary elementwise, with broadcasting.

	OpTypeAdd
	OpTypeSub
	OpTypeMul
	OpTypeDiv
	OpTypePow
	OpTypeMax
	OpTypeMin

	// Reductions and contractions.

	OpTypeReduceSum
	OpTypeReduceMax
	OpTypeDot

	// Structural ops.

	OpTypeReshape
	OpTypeTranspose
	OpTypeBroadcastInDim
	OpTypeConcatenate
	OpTypeSlice
	OpTypeGather
	OpTypeWhere

	// OpTypeLast is a sentinel, keep it last: it is used to size per-op dispatch tables.
	OpTypeLast
)

// Op reifies one primitive operation: its type plus whatever static (non-tensor) attributes the
// type requires. Tensor arguments are passed separately — see Backend.Apply.
//
// Only the attribute fields relevant to Type are set:
//
//   - Axes: reduction axes (ReduceSum, ReduceMax), the permutation (Transpose), the operand
//     axis→target axis mapping (BroadcastInDim), the concatenation axis (Concatenate) or the
//     gather/iota axis (Gather, Iota) as a single element.
//   - Dims: target dimensions for Reshape, BroadcastInDim and Iota.
//   - Starts, Limits: for Slice, one per axis.
//   - DType: target dtype for ConvertDType and Iota.
type Op struct {
	Type OpType

	Axes           []int
	Dims           []int
	Starts, Limits []int
	DType          dtypes.DType
}

// String implements fmt.Stringer, printing only the attributes that are set.
func (op Op) String() string {
	parts := []string{op.Type.String()}
	if len(op.Axes) > 0 {
		parts = append(parts, fmt.Sprintf("axes=%v", op.Axes))
	}
	if len(op.Dims) > 0 {
		parts = append(parts, fmt.Sprintf("dims=%v", op.Dims))
	}
	if len(op.Starts) > 0 {
		parts = append(parts, fmt.Sprintf("starts=%v, limits=%v", op.Starts, op.Limits))
	}
	if op.DType != dtypes.InvalidDType {
		parts = append(parts, fmt.Sprintf("dtype=%s", op.DType))
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return fmt.Sprintf("%s[%s]", parts[0], strings.Join(parts[1:], ", "))
}

// NumInputs returns how many tensor inputs the op type consumes, or -1 when variadic
// (Concatenate).
func (t OpType) NumInputs() int {
	switch t {
	case OpTypeParameter, OpTypeConstant, OpTypeIota:
		return 0
	case OpTypeNeg, OpTypeAbs, OpTypeSign, OpTypeExp, OpTypeLog, OpTypeLog1p, OpTypeSin,
		OpTypeCos, OpTypeTanh, OpTypeLogistic, OpTypeSqrt, OpTypeRsqrt, OpTypeErf,
		OpTypeConvertDType, OpTypeReduceSum, OpTypeReduceMax, OpTypeReshape, OpTypeTranspose,
		OpTypeBroadcastInDim, OpTypeSlice:
		return 1
	case OpTypeAdd, OpTypeSub, OpTypeMul, OpTypeDiv, OpTypePow, OpTypeMax, OpTypeMin,
		OpTypeDot, OpTypeGather:
		return 2
	case OpTypeWhere:
		return 3
	case OpTypeConcatenate:
		return -1
	}
	return -1
}

// IsUnaryElementwise returns whether the op type is a one-input elementwise operation:
// each output element depends only on the corresponding input element.
func (t OpType) IsUnaryElementwise() bool {
	switch t {
	case OpTypeNeg, OpTypeAbs, OpTypeSign, OpTypeExp, OpTypeLog, OpTypeLog1p, OpTypeSin,
		OpTypeCos, OpTypeTanh, OpTypeLogistic, OpTypeSqrt, OpTypeRsqrt, OpTypeErf,
		OpTypeConvertDType:
		return true
	}
	return false
}

// IsBinaryElementwise returns whether the op type is a two-input elementwise operation with
// broadcasting.
func (t OpType) IsBinaryElementwise() bool {
	switch t {
	case OpTypeAdd, OpTypeSub, OpTypeMul, OpTypeDiv, OpTypePow, OpTypeMax, OpTypeMin:
		return true
	}
	return false
}
