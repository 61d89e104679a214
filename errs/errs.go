// Copyright 2023 Sneller, Inc.
//
//  Licensed under the Apache License, Version 2.0 (the "License");
//  you may not use this file except in compliance with the License.
//  You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.

// Package errs defines the Telomere error taxonomy: a fixed set of
// failure kinds plus the context (component, batch index, bit offset)
// every Telomere error carries so callers can report precisely where a
// codec invariant broke.
package errs

import (
	"errors"
	"fmt"
)

// Kind is one of the fixed failure categories a Telomere operation can
// report. It does not identify a Go type, only a taxonomy bucket.
type Kind uint8

const (
	// Io covers input/output read or write failure.
	Io Kind = iota
	// Header covers a malformed file header, non-canonical EVQL, or
	// unknown format version.
	Header
	// Arity covers an invalid arity code: a reserved value or an
	// overlong encoding of an otherwise valid arity.
	Arity
	// SeedSearch covers seed enumeration exhausted without a match
	// where one was required, e.g. a corrupted seed index on decode.
	SeedSearch
	// Bundling covers overlapping selected spans, which indicates an
	// encoder bug.
	Bundling
	// Superposition covers a candidate pruning inconsistency.
	Superposition
	// HashMismatch covers a batch or file truncated-hash check that
	// failed against reconstructed bytes.
	HashMismatch
	// Internal covers an unreachable invariant.
	Internal
)

func (k Kind) String() string {
	switch k {
	case Io:
		return "io"
	case Header:
		return "header"
	case Arity:
		return "arity"
	case SeedSearch:
		return "seed-search"
	case Bundling:
		return "bundling"
	case Superposition:
		return "superposition"
	case HashMismatch:
		return "hash-mismatch"
	case Internal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error is a Telomere codec error. It always names the Kind and the
// component that raised it; BatchIndex and BitOffset are set whenever
// the failing cursor position is known, and are -1 otherwise.
type Error struct {
	Kind       Kind
	Component  string
	BatchIndex int
	BitOffset  int64
	Msg        string
	Err        error
}

func (e *Error) Error() string {
	s := fmt.Sprintf("telomere: %s: %s: %s", e.Kind, e.Component, e.Msg)
	if e.BatchIndex >= 0 {
		s += fmt.Sprintf(" (batch %d)", e.BatchIndex)
	}
	if e.BitOffset >= 0 {
		s += fmt.Sprintf(" (bit offset %d)", e.BitOffset)
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error with no known batch index or bit offset.
func New(kind Kind, component, msg string) *Error {
	return &Error{Kind: kind, Component: component, BatchIndex: -1, BitOffset: -1, Msg: msg}
}

// Newf is New with formatting.
func Newf(kind Kind, component, format string, args ...any) *Error {
	return New(kind, component, fmt.Sprintf(format, args...))
}

// Wrap builds an Error that wraps an underlying error.
func Wrap(kind Kind, component, msg string, err error) *Error {
	return &Error{Kind: kind, Component: component, BatchIndex: -1, BitOffset: -1, Msg: msg, Err: err}
}

// WithBatch returns a copy of e with BatchIndex set.
func (e *Error) WithBatch(idx int) *Error {
	cp := *e
	cp.BatchIndex = idx
	return &cp
}

// WithBitOffset returns a copy of e with BitOffset set.
func (e *Error) WithBitOffset(off int64) *Error {
	cp := *e
	cp.BitOffset = off
	return &cp
}

// Is reports whether err is a Telomere error of the given Kind,
// following the same wrapping chain as errors.As.
func Is(err error, kind Kind) bool {
	var te *Error
	if !errors.As(err, &te) {
		return false
	}
	return te.Kind == kind
}

// ErrEOF is returned by bit-level readers when a read crosses the end
// of the underlying buffer.
var ErrEOF = errors.New("telomere: unexpected end of bitstream")
