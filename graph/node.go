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
	"fmt"
	"strings"

	"github.com/gomlx/fwdlap/backends"
	"github.com/gomlx/fwdlap/types/shapes"
	"github.com/gomlx/fwdlap/types/tensors"
	"github.com/gomlx/gopjrt/dtypes"
)

// NodeId is a unique identifier of a Node within its Graph. Ids are assigned in creation
// order, so a node's id is always larger than its inputs' ids.
type NodeId int

// InvalidNodeId is returned where a node id is expected but there is none.
const InvalidNodeId = NodeId(-1)

// Node is one operation of the computation graph: the backends.Op payload (operation type
// plus its static attributes), the input nodes and the inferred output shape.
//
// Parameter and Constant nodes have no inputs; Constant nodes additionally hold their value.
type Node struct {
	graph  *Graph
	id     NodeId
	op     backends.Op
	inputs []*Node
	shape  shapes.Shape

	// name is set for Parameter nodes only.
	name string

	// constValue is set for Constant nodes only.
	constValue *tensors.Tensor
}

// Graph this node belongs to.
func (n *Node) Graph() *Graph { return n.graph }

// Id of the node within its graph.
func (n *Node) Id() NodeId { return n.id }

// Op returns the operation payload: the operation type and its static attributes.
func (n *Node) Op() backends.Op { return n.op }

// Type is a shortcut to the node's operation type.
func (n *Node) Type() backends.OpType { return n.op.Type }

// Shape of the node's output.
func (n *Node) Shape() shapes.Shape { return n.shape }

// DType of the node's output. Shortcut to node.Shape().DType.
func (n *Node) DType() dtypes.DType { return n.shape.DType }

// Rank of the node's output. Shortcut to node.Shape().Rank().
func (n *Node) Rank() int { return n.shape.Rank() }

// IsScalar reports whether the node's output is a scalar.
func (n *Node) IsScalar() bool { return n.shape.IsScalar() }

// Inputs of the node, in order. The returned slice is owned by the node and must not be
// modified.
func (n *Node) Inputs() []*Node { return n.inputs }

// NumInputs returns the number of inputs of the node.
func (n *Node) NumInputs() int { return len(n.inputs) }

// IsParameter reports whether this is a Parameter node.
func (n *Node) IsParameter() bool { return n.op.Type == backends.OpTypeParameter }

// IsConstant reports whether this is a Constant node.
func (n *Node) IsConstant() bool { return n.op.Type == backends.OpTypeConstant }

// ParameterName returns the name given at Parameter creation, or "" for other nodes.
func (n *Node) ParameterName() string { return n.name }

// ConstValue returns the value of a Constant node, nil for other nodes. The returned tensor
// is owned by the node and must not be mutated.
func (n *Node) ConstValue() *tensors.Tensor { return n.constValue }

// String implements fmt.Stringer, with a one-line description of the node.
func (n *Node) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "#%d %s", n.id, n.op)
	if n.IsParameter() {
		fmt.Fprintf(&sb, "(%q)", n.name)
	}
	if len(n.inputs) > 0 {
		ids := make([]string, len(n.inputs))
		for ii, input := range n.inputs {
			ids[ii] = fmt.Sprintf("#%d", input.id)
		}
		fmt.Fprintf(&sb, "(%s)", strings.Join(ids, ", "))
	}
	fmt.Fprintf(&sb, " -> %s", n.shape)
	return sb.String()
}

// newNode builds a node, registers it in the graph and returns it. All operation constructors
// funnel through here.
func newNode(g *Graph, op backends.Op, inputs []*Node, shape shapes.Shape) *Node {
	g.assertSameGraph(inputs...)
	node := &Node{
		graph:  g,
		op:     op,
		inputs: inputs,
		shape:  shape,
	}
	g.registerNode(node)
	return node
}
