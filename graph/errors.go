package graph

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvariant is matched by every invariant violation reported by the graph.
// Invariant violations are programming errors in the optimizer or malformed
// input: they are never silently corrected.
var ErrInvariant = errors.New("graph: invariant violation")

// ErrFrozen is the panic value used when a finalized graph is mutated.
var ErrFrozen = errors.New("graph: mutation of a finalized graph")

// InvariantKind names the invariant that was violated.
type InvariantKind string

// Enumeration of invariant kinds.
const (
	InvDuplicateIdentifier InvariantKind = "duplicate-identifier"
	InvUnknownModule       InvariantKind = "unknown-module"
	InvChunkCycle          InvariantKind = "chunk-cycle"
	InvDanglingEdge        InvariantKind = "dangling-edge"
	InvAsymmetricEdge      InvariantKind = "asymmetric-edge"
	InvMembership          InvariantKind = "membership"
	InvEmptyChunk          InvariantKind = "empty-chunk"
	InvDuplicateChunk      InvariantKind = "duplicate-chunk"
	InvEntry               InvariantKind = "entry"
)

// InvariantError describes a single invariant violation along with the chunk
// and/or module at fault.
type InvariantError struct {
	Kind   InvariantKind
	Chunk  string
	Module string
	Detail string
}

func (e *InvariantError) Error() string {
	var sb strings.Builder
	sb.WriteString("graph: ")
	sb.WriteString(string(e.Kind))

	if e.Chunk != "" {
		fmt.Fprintf(&sb, " in chunk %s", e.Chunk)
	}

	if e.Module != "" {
		fmt.Fprintf(&sb, " for module `%s`", e.Module)
	}

	if e.Detail != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Detail)
	}

	return sb.String()
}

// Is makes every InvariantError match ErrInvariant.
func (e *InvariantError) Is(target error) bool {
	return target == ErrInvariant
}

func violation(kind InvariantKind, c *Chunk, m *Module, detail string, args ...interface{}) *InvariantError {
	e := &InvariantError{Kind: kind, Detail: fmt.Sprintf(detail, args...)}
	if c != nil {
		e.Chunk = c.String()
	}

	if m != nil {
		e.Module = m.Identifier
	}

	return e
}
