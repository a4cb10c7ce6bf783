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

	"github.com/gomlx/fwdlap/types/shapes"
	"github.com/gomlx/fwdlap/types/tensors"
)

// Result holds the three outputs of the forward-Laplacian pass for one output of the wrapped
// function, with respect to the flattened concatenation of all float inputs.
type Result struct {
	// Value of the output, as the backend computed it.
	Value *tensors.Tensor

	// Jacobian of the output, compressed-sparse. Nil when the output doesn't depend on any
	// float input.
	Jacobian *SparseJacobian

	// Laplacian of the output: per output element, the sum of the second derivatives along
	// every input coordinate. Zero-valued when the output is constant.
	Laplacian *tensors.Tensor

	numInputs int
}

// JacobianDense materializes the Jacobian as a dense tensor of shape (output dimensions...,
// numInputs). For constant outputs it is all zeros.
func (r *Result) JacobianDense() *tensors.Tensor {
	if r.Jacobian != nil {
		return r.Jacobian.Dense()
	}
	dims := append(append([]int{}, r.Value.Shape().Dimensions...), r.numInputs)
	return tensors.FromShape(shapes.Make(r.Value.DType(), dims...))
}

// String implements fmt.Stringer.
func (r *Result) String() string {
	return fmt.Sprintf("Result{value=%s, jacobian=%s, laplacian=%s}",
		r.Value.Shape(), r.Jacobian, r.Laplacian.Shape())
}
