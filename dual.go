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

	"github.com/gomlx/fwdlap/types/tensors"
)

// LapDual is the augmented value flowing through the interpretation: the ordinary value of a
// graph node, its compressed Jacobian with respect to the function's original input and the
// accumulated Laplacian (trace of the Hessian) of the node as a function of that input.
//
// A nil Jacobian (and Laplacian) marks a constant: a node whose value doesn't depend on any
// parameter. Otherwise Laplacian has the value's shape and both are consistent with Value
// under the propagation rules that produced them.
type LapDual struct {
	Value     *tensors.Tensor
	Jacobian  *SparseJacobian
	Laplacian *tensors.Tensor
}

// IsConstant reports whether the dual carries no derivative information (zero Jacobian and
// Laplacian).
func (d *LapDual) IsConstant() bool { return d.Jacobian == nil }

// constDual wraps a value with zero derivatives.
func constDual(value *tensors.Tensor) *LapDual {
	return &LapDual{Value: value}
}

// String implements fmt.Stringer.
func (d *LapDual) String() string {
	if d.IsConstant() {
		return fmt.Sprintf("LapDual(const %s)", d.Value.Shape())
	}
	return fmt.Sprintf("LapDual(%s, %s)", d.Value.Shape(), d.Jacobian)
}
