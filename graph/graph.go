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

// Package graph defines the computation graph on which the forward-Laplacian interpretation
// runs.
//
// A Graph is built by tracing: the operation constructors (Add, Exp, Dot, ...) each append a
// Node carrying its backends.Op payload, its input nodes and its statically inferred output
// shape. Nodes are append-only and a node's inputs always have smaller ids, so walking the
// nodes in id order visits every node after its inputs.
//
// Shapes and dtypes are checked at trace time: an invalid combination panics immediately,
// naming the operation, rather than failing later during interpretation.
package graph

import (
	"strings"

	"github.com/gomlx/exceptions"
)

// Graph holds the traced computation: its nodes in creation order and its parameters (the
// differentiable inputs).
//
// A Graph is not safe for concurrent tracing; once built it is immutable and can be
// interpreted concurrently.
type Graph struct {
	name       string
	nodes      []*Node
	parameters []*Node

	parameterNameToNode map[string]*Node
}

// New constructs an empty Graph with the given name.
func New(name string) *Graph {
	return &Graph{
		name:                name,
		parameterNameToNode: make(map[string]*Node),
	}
}

// Name of the computation this graph was traced from.
func (g *Graph) Name() string { return g.name }

// NumNodes returns the number of nodes in the graph.
func (g *Graph) NumNodes() int { return len(g.nodes) }

// NodeById returns the node with the given id. It panics if out of range.
func (g *Graph) NodeById(id NodeId) *Node {
	if id < 0 || int(id) >= len(g.nodes) {
		exceptions.Panicf("graph %q has no node with id %d", g.name, id)
	}
	return g.nodes[id]
}

// Nodes returns the graph's nodes in creation (dependency) order. The returned slice is owned
// by the graph and must not be modified.
func (g *Graph) Nodes() []*Node { return g.nodes }

// NumParameters returns the number of parameters created for this graph.
func (g *Graph) NumParameters() int { return len(g.parameters) }

// Parameters returns the parameter nodes in creation order.
func (g *Graph) Parameters() []*Node { return g.parameters }

// ParameterByName returns the parameter node with the given name, or nil if there is none.
func (g *Graph) ParameterByName(name string) *Node { return g.parameterNameToNode[name] }

// String lists the graph's nodes, one per line.
func (g *Graph) String() string {
	var sb strings.Builder
	sb.WriteString("Graph ")
	sb.WriteString(g.name)
	sb.WriteString(":\n")
	for _, node := range g.nodes {
		sb.WriteString("\t")
		sb.WriteString(node.String())
		sb.WriteString("\n")
	}
	return sb.String()
}

// registerNode assigns the node's id and appends it to the graph.
func (g *Graph) registerNode(node *Node) {
	node.id = NodeId(len(g.nodes))
	g.nodes = append(g.nodes, node)
}

// assertSameGraph panics if any of the nodes is nil or belongs to a different graph.
func (g *Graph) assertSameGraph(nodes ...*Node) {
	for _, node := range nodes {
		if node == nil {
			exceptions.Panicf("nil node passed to an operation on graph %q", g.name)
		}
		if node.graph != g {
			exceptions.Panicf("node %s belongs to graph %q, not to graph %q",
				node, node.graph.name, g.name)
		}
	}
}
