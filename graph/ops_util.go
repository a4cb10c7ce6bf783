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
	"github.com/gomlx/fwdlap/types/tensors"
	"github.com/gomlx/fwdlap/types/xslices"
)

// Convenience wrappers around the basic operations.

// ScalarZero returns a constant scalar 0 of x's dtype.
func ScalarZero(x *Node) *Node { return Scalar(x.graph, x.DType(), 0) }

// ScalarOne returns a constant scalar 1 of x's dtype.
func ScalarOne(x *Node) *Node { return Scalar(x.graph, x.DType(), 1) }

// ZerosLike returns a constant of zeros with x's shape.
func ZerosLike(x *Node) *Node {
	return ConstTensor(x.graph, tensors.FromShape(x.shape))
}

// OnesLike returns a constant of ones with x's shape.
func OnesLike(x *Node) *Node {
	return BroadcastToShape(ScalarOne(x), x)
}

// BroadcastToShape broadcasts a scalar x to like's shape.
func BroadcastToShape(x, like *Node) *Node {
	if like.IsScalar() {
		return x
	}
	return BroadcastInDim(x, xslices.Copy(like.shape.Dimensions), nil)
}

// AddScalar returns x+value, elementwise.
func AddScalar(x *Node, value float64) *Node {
	return Add(x, Scalar(x.graph, x.DType(), value))
}

// MulScalar returns x*value, elementwise.
func MulScalar(x *Node, value float64) *Node {
	return Mul(x, Scalar(x.graph, x.DType(), value))
}

// DivScalar returns x/value, elementwise.
func DivScalar(x *Node, value float64) *Node {
	return Div(x, Scalar(x.graph, x.DType(), value))
}

// Square returns x*x, elementwise.
func Square(x *Node) *Node { return Mul(x, x) }

// OneMinus returns 1-x, elementwise.
func OneMinus(x *Node) *Node { return Sub(ScalarOne(x), x) }

// Softplus returns log(1+e^x), elementwise, computed as log1p(exp(x)).
func Softplus(x *Node) *Node { return Log1p(Exp(x)) }
