// Package backends defines the interface the forward-Laplacian interpreter requires from a host
// numerical runtime: eager evaluation of primitive operations (Apply) and the forward-mode
// differentiation of those primitives (JVP and JVP2).
//
// The interpreter in the root package never computes array values itself, it issues primitives
// to a Backend. A backend that doesn't implement every operation can simply panic with a "not
// implemented" error for that op, and it will still work for functions that don't use it.
//
// The default backend is the pure Go reference implementation in backends/goeval, imported for
// side effects:
//
//	import _ "github.com/gomlx/fwdlap/backends/goeval"
//
// To simplify error handling, all methods are expected to throw (panic) with a stack trace in
// case of errors. See package github.com/gomlx/exceptions.
package backends

import (
	"os"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/fwdlap/types/tensors"
)

// Backend is the API a host numerical runtime needs to implement to drive the
// forward-Laplacian interpreter.
type Backend interface {
	// Name returns the short name of the backend, e.g. "goeval".
	Name() string

	// Description is a longer description of the Backend that can be used to pretty-print.
	Description() string

	// Apply evaluates one primitive at the given inputs and returns its value.
	// This is the "host array runtime" side of the contract.
	Apply(op Op, inputs ...*tensors.Tensor) *tensors.Tensor

	// JVP evaluates one primitive and pushes a batch of tangent directions through it,
	// returning the value and the batched directional derivatives (Jacobian-vector
	// products). This is the "host forward-mode engine" side of the contract.
	//
	// tangents holds one entry per input; a nil entry means that input has zero tangent
	// (e.g. a constant). Non-nil tangents have the input's shape plus one extra trailing
	// axis with the number of directions, the same for every input. The returned
	// outputTangents has the output's shape plus the same trailing axis.
	//
	// The directions are pushed vectorized, not one at a time.
	JVP(op Op, inputs []*tensors.Tensor, tangents []*tensors.Tensor) (output, outputTangents *tensors.Tensor)

	// JVP2 is JVP nested over itself: a forward-over-forward evaluation that additionally
	// returns, per direction v, the second-order directional coefficient vᵀ·H·v of the
	// primitive (input second-order coefficients taken as zero), without materializing the
	// Hessian H. Shapes are as in JVP.
	JVP2(op Op, inputs []*tensors.Tensor, tangents []*tensors.Tensor) (output, outputTangents, output2nd *tensors.Tensor)
}

// Constructor takes a config string (optionally empty) and returns a Backend.
type Constructor func(config string) Backend

var (
	registeredConstructors = make(map[string]Constructor)
	firstRegistered        string
)

// Register a backend constructor under the given name.
//
// To be safe, call Register during initialization of a package. Registration is expected to be
// complete before any interpretation starts; the registry is read-only afterwards.
func Register(name string, constructor Constructor) {
	if len(registeredConstructors) == 0 {
		firstRegistered = name
	}
	registeredConstructors[name] = constructor
}

// DefaultConfig is the backend configuration to use if none is given. See NewWithConfig for the
// format.
var DefaultConfig string

// FWDLAP_BACKEND is the environment variable with the default backend configuration to use.
//
// The format of the config is "<backend_name>:<backend_configuration>", with the
// ":<backend_configuration>" part optional and backend specific.
const FWDLAP_BACKEND = "FWDLAP_BACKEND"

// New returns a new default Backend.
//
// The default is:
//
// 1. The environment variable FWDLAP_BACKEND is used as a configuration if defined.
// 2. Next the variable DefaultConfig is used as a configuration if defined.
// 3. The first registered backend is used with an empty configuration.
//
// It panics if no backend was registered.
func New() Backend {
	if config, found := os.LookupEnv(FWDLAP_BACKEND); found {
		return NewWithConfig(config)
	}
	if DefaultConfig != "" {
		return NewWithConfig(DefaultConfig)
	}
	return NewWithConfig("")
}

// NewWithConfig creates a Backend from a configuration string formatted as
// "<backend_name>:<backend_configuration>". An empty name selects the first registered backend.
func NewWithConfig(config string) Backend {
	if len(registeredConstructors) == 0 {
		exceptions.Panicf(`no registered backends for fwdlap -- maybe import the default with import _ "github.com/gomlx/fwdlap/backends/goeval"?`)
	}
	backendName := firstRegistered
	backendConfig := config
	if idx := strings.Index(config, ":"); idx != -1 {
		backendName = config[:idx]
		backendConfig = config[idx+1:]
	}
	constructor, found := registeredConstructors[backendName]
	if !found {
		exceptions.Panicf("can't find backend %q for configuration %q given", backendName, config)
	}
	return constructor(backendConfig)
}
