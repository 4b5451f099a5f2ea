// Package errkind defines the tagged error type shared by the embedding,
// vector store, and detector layers.
//
// Callers branch on the kind or code of an error, never on its message:
//
//	if errors.Is(err, errkind.ErrIndexNotFound) {
//	    // run `ticketdup init` first
//	}
//
//	switch errkind.KindOf(err) {
//	case errkind.KindProvider:
//	case errkind.KindStore:
//	}
package errkind

import (
	"errors"
	"fmt"
	"strings"
)

// Kind groups error codes by the layer that produced them.
type Kind int

const (
	// KindUnknown is returned by KindOf for errors that are not *Error.
	KindUnknown Kind = iota
	// KindInput covers caller input rejected before any external call.
	KindInput
	// KindProvider covers embedding provider failures.
	KindProvider
	// KindStore covers vector store failures.
	KindStore
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindProvider:
		return "provider"
	case KindStore:
		return "store"
	default:
		return "unknown"
	}
}

// Code identifies a specific failure.
type Code string

const (
	CodeEmptyInput           Code = "empty_input"
	CodeEmbeddingUnavailable Code = "embedding_unavailable"
	CodeInputTooLarge        Code = "input_too_large"
	CodeConnectionFailure    Code = "connection_failure"
	CodeIndexNotFound        Code = "index_not_found"
	CodeIndexExists          Code = "index_exists"
	CodeMalformedVector      Code = "malformed_vector"
	CodeTimeoutExceeded      Code = "timeout_exceeded"
)

// Sentinels for errors.Is. Matching compares Code only, so a sentinel matches
// any *Error with the same code regardless of kind or context fields.
var (
	ErrEmptyInput           = &Error{Kind: KindInput, Code: CodeEmptyInput}
	ErrEmbeddingUnavailable = &Error{Kind: KindProvider, Code: CodeEmbeddingUnavailable}
	ErrInputTooLarge        = &Error{Kind: KindProvider, Code: CodeInputTooLarge}
	ErrConnectionFailure    = &Error{Kind: KindStore, Code: CodeConnectionFailure}
	ErrIndexNotFound        = &Error{Kind: KindStore, Code: CodeIndexNotFound}
	ErrIndexExists          = &Error{Kind: KindStore, Code: CodeIndexExists}
	ErrMalformedVector      = &Error{Kind: KindStore, Code: CodeMalformedVector}
	ErrTimeoutExceeded      = &Error{Kind: KindStore, Code: CodeTimeoutExceeded}
)

// Error is the tagged error carried across layer boundaries.
type Error struct {
	Kind Kind
	Code Code

	// Op is the failing operation, e.g. "knn" or "generate".
	Op string
	// Index is the index name, when one is involved.
	Index string
	// ID is the ticket id, when one is involved.
	ID string
	// Expected and Actual carry vector dimensions for CodeMalformedVector.
	Expected int
	Actual   int

	// Err is the underlying cause, e.g. the provider or server message.
	Err error
}

// New builds an *Error with the given kind, code, and op.
func New(kind Kind, code Code, op string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Op: op, Err: cause}
}

// Error implements error.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	b.WriteString(": ")
	b.WriteString(string(e.Code))
	if e.Op != "" {
		b.WriteString(" (op=")
		b.WriteString(e.Op)
		b.WriteString(")")
	}
	if e.Index != "" {
		fmt.Fprintf(&b, " index=%q", e.Index)
	}
	if e.ID != "" {
		fmt.Fprintf(&b, " id=%q", e.ID)
	}
	if e.Expected != 0 || e.Actual != 0 {
		fmt.Fprintf(&b, " expected_dim=%d actual_dim=%d", e.Expected, e.Actual)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithIndex returns a copy of e annotated with the index name.
func (e *Error) WithIndex(index string) *Error {
	c := *e
	c.Index = index
	return &c
}

// WithID returns a copy of e annotated with the ticket id.
func (e *Error) WithID(id string) *Error {
	c := *e
	c.ID = id
	return &c
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Dimension builds a CodeMalformedVector error for a length mismatch.
func Dimension(op string, expected, actual int) *Error {
	return &Error{
		Kind:     KindStore,
		Code:     CodeMalformedVector,
		Op:       op,
		Expected: expected,
		Actual:   actual,
	}
}
