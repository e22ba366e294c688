// Package flux provides the core discrete-tick resource-flow graph engine.
package flux

import "errors"

// Validation and invariant errors surfaced by graph edit operations.
// These prevent the mutation that triggered them; the graph is unchanged
// when one is returned.
var (
	// ErrIDExists indicates a node id collision on AddNode.
	ErrIDExists = errors.New("id already exists")

	// ErrEdgeIDExists indicates an edge id collision on AddEdge.
	ErrEdgeIDExists = errors.New("edge id already exists")

	// ErrIDNotFound indicates a lookup for an id with no live element.
	ErrIDNotFound = errors.New("id not found")

	// ErrDuplicateLabel indicates a label collision across the graph.
	ErrDuplicateLabel = errors.New("duplicate label")

	// ErrInvalidLabel indicates a label that fails the identifier lexer.
	// Labels double as expression variables, so they must parse as one.
	ErrInvalidLabel = errors.New("label must follow javascript variable naming format")

	// ErrInvalidToken indicates a token name that fails the identifier lexer.
	ErrInvalidToken = errors.New("token must follow javascript variable naming format")

	// ErrUnknownEndpoint indicates an edge endpoint id with no live element.
	ErrUnknownEndpoint = errors.New("connecting Node with non-existing id")

	// ErrSelfLoop indicates an edge whose endpoints are the same element.
	ErrSelfLoop = errors.New("cannot connect to self")

	// ErrEdgeFromEdge indicates an edge whose source is itself an edge.
	ErrEdgeFromEdge = errors.New("edge must not start from edge")

	// ErrEdgeToEdge indicates an edge whose destination is itself an edge.
	ErrEdgeToEdge = errors.New("edge must not point to edge")

	// ErrMissingSwapIndex indicates an edge touching a swap without a pipe slot index.
	ErrMissingSwapIndex = errors.New("missing swap input index")

	// ErrSwapIndexOutOfRange indicates a non-contiguous pipe slot index.
	ErrSwapIndexOutOfRange = errors.New("swap index out of range")
)

// Amount and configuration errors surfaced by kind-specific operations.
var (
	// ErrNegativeAmount indicates a negative delta passed to a pool or buffer.
	ErrNegativeAmount = errors.New("must add/subtract a non-negative number")

	// ErrNegativeWeight indicates a negative gate output weight.
	ErrNegativeWeight = errors.New("output weight must be >= 0")

	// ErrEdgeNotOnGate indicates a weight update for an edge that is not
	// an output of the addressed gate.
	ErrEdgeNotOnGate = errors.New("the output edge is not connected to this gate")

	// ErrNotConverter indicates a converter operation addressed to another kind.
	ErrNotConverter = errors.New("Selected element is not a converter")

	// ErrNotGate indicates a gate operation addressed to another kind.
	ErrNotGate = errors.New("Selected element is not a gate")

	// ErrNegativeSwapAmount indicates a negative amount passed to Swap.Swap.
	ErrNegativeSwapAmount = errors.New("cannot swap negative amount of token")

	// ErrTokenNamesUndefined indicates a token name that resolves to nothing:
	// an empty swap token, or a converter requirement for a token no upstream
	// node produces.
	ErrTokenNamesUndefined = errors.New("not all token names are defined")

	// ErrNonPositiveTokenAmount indicates a swap side configured with a
	// non-positive amount.
	ErrNonPositiveTokenAmount = errors.New("all tokens must have positive amount")

	// ErrDuplicateTokens indicates a swap configured with tokenA == tokenB.
	ErrDuplicateTokens = errors.New("duplicate token types not allowed")
)
