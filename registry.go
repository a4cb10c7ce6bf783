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
	"github.com/gomlx/fwdlap/backends"
	"github.com/gomlx/fwdlap/graph"
)

// Rule computes the augmented output of one operation from its augmented inputs. The context
// gives access to the node (operation attributes and output shape), the backend and the
// interpretation configuration.
type Rule func(ctx *ruleContext, inputs []*LapDual) *LapDual

// ruleContext is what a Rule sees of the interpretation.
type ruleContext struct {
	backend backends.Backend
	cfg     *config
	node    *graph.Node
	entry   *ruleEntry

	// inputStatic tells, per input, whether the interpreter could evaluate that whole
	// subgraph concretely before propagation (no parameter dependency).
	inputStatic []bool
}

// ruleEntry is one registration: the rule plus the flags that enable shortcuts.
type ruleEntry struct {
	rule Rule

	// linear ops contribute no second-order term; their Hessian-trace computation is
	// skipped entirely.
	linear bool

	// elementwise ops act independently per element, consuming only the corresponding
	// input element. They take the cheapest propagation path and preserve any sparsity
	// pattern.
	elementwise bool

	// inAxes lists the input axes the operation actually couples, nil meaning all of
	// them. Metadata only, for rule implementations that want it; the empty (non-nil)
	// slice is equivalent to elementwise.
	inAxes []int
}

// opRules maps each operation to its propagation rule. It is populated by the Register calls
// in the init functions of the rules_*.go files and must not change once interpretation
// starts; lookups fall back to the structural default rule.
var opRules = make(map[backends.OpType]ruleEntry)

// RuleOption configures a Register call.
type RuleOption func(*ruleEntry)

// WithLinear marks the operation as linear: zero second-order contribution.
func WithLinear() RuleOption {
	return func(entry *ruleEntry) { entry.linear = true }
}

// WithElementwise marks the operation as elementwise (acting independently per element).
// Implies the operation couples no axes.
func WithElementwise() RuleOption {
	return func(entry *ruleEntry) {
		entry.elementwise = true
		entry.inAxes = []int{}
	}
}

// WithInAxes declares which input axes the operation couples. Not declaring it means all
// axes are treated as coupled.
func WithInAxes(axes ...int) RuleOption {
	return func(entry *ruleEntry) { entry.inAxes = axes }
}

// Register installs the propagation rule for an operation type, replacing any previous
// registration. Call it from an init function (or otherwise before any interpretation): the
// registry is read-only once interpretations run, which is what makes concurrent calls safe.
func Register(opType backends.OpType, rule Rule, options ...RuleOption) {
	entry := ruleEntry{rule: rule}
	for _, option := range options {
		option(&entry)
	}
	opRules[opType] = entry
}

// lookupRule returns the registration for the operation, or the structural default rule.
func lookupRule(opType backends.OpType) ruleEntry {
	if entry, found := opRules[opType]; found {
		return entry
	}
	return ruleEntry{rule: defaultRule}
}

// deregisterForTest removes an operation's registration, forcing the structural default rule,
// and returns a function restoring it.
func deregisterForTest(opType backends.OpType) (restore func()) {
	entry, found := opRules[opType]
	delete(opRules, opType)
	return func() {
		if found {
			opRules[opType] = entry
		}
	}
}
