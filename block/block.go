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

// Package block holds the shared data model every later stage of a
// pass operates on: the fixed-size block partitioning of a byte
// stream, spans (seed-backed or literal block ranges), candidates
// (tentative spans with a bit cost and a discovery-order label), and
// the block table stack a pass driver keeps across iterations.
package block

import "github.com/telomere-project/telomere/errs"

// Span is a half-open block range [Start, Start+Arity) backed either
// by a seed reference or by literal bytes. Arity is 1 or >= 3; arity 2
// is never constructed (it has no arity-code encoding).
type Span struct {
	Start   int
	Arity   int
	Literal bool

	// SeedIndex is meaningful only when Literal is false.
	SeedIndex uint64
	// LiteralBytes is meaningful only when Literal is true; its length
	// is always Arity blocks' worth of bytes (with tail adjustment for
	// a span covering the file's final block).
	LiteralBytes []byte
}

// End returns the exclusive end of the span's block range.
func (s Span) End() int { return s.Start + s.Arity }

// Overlaps reports whether s and o cover any block in common.
func (s Span) Overlaps(o Span) bool {
	return s.Start < o.End() && o.Start < s.End()
}

// Candidate is a tentative span with its bit cost and superposition
// label ("N", "NA", "NB", ... by position in the starting block's
// sorted candidate list; the first candidate is always the bare "N").
type Candidate struct {
	Span     Span
	CostBits int
	Label    string
}

// Table is one pass's view of the byte stream: its block partitioning
// and the raw bytes those blocks come from.
type Table struct {
	Data         []byte
	BlockSize    int
	LastBlockLen int
}

// NewTable partitions data into blockSize-byte blocks; the final block
// may be shorter.
func NewTable(data []byte, blockSize int) (*Table, error) {
	if blockSize < 1 || blockSize > 255 {
		return nil, errs.Newf(errs.Internal, "block", "block size %d out of range [1,255]", blockSize)
	}
	last := len(data) % blockSize
	if last == 0 {
		last = blockSize
	}
	return &Table{Data: data, BlockSize: blockSize, LastBlockLen: last}, nil
}

// NumBlocks returns the number of blocks data is partitioned into.
func (t *Table) NumBlocks() int {
	if len(t.Data) == 0 {
		return 0
	}
	n := len(t.Data) / t.BlockSize
	if len(t.Data)%t.BlockSize != 0 {
		n++
	}
	return n
}

// IsFinal reports whether global block index b is the table's last
// block.
func (t *Table) IsFinal(b int) bool { return b == t.NumBlocks()-1 }

// BlockLen returns the number of valid bytes in block b (BlockSize,
// except possibly for the final block).
func (t *Table) BlockLen(b int) int {
	if t.IsFinal(b) {
		return t.LastBlockLen
	}
	return t.BlockSize
}

// SpanBytes returns the concatenation of blocks [start, start+arity)'s
// bytes, honoring a shortened final block.
func (t *Table) SpanBytes(start, arity int) []byte {
	from := start * t.BlockSize
	to := from
	for b := start; b < start+arity; b++ {
		to += t.BlockLen(b)
	}
	if to > len(t.Data) {
		to = len(t.Data)
	}
	return t.Data[from:to]
}

// Stack is the ordered list of per-pass block tables a pass driver
// retains so it can roll back to the previous pass's output on
// divergence or cancellation.
type Stack struct {
	tables []*Table
}

// Push appends a new pass's table.
func (s *Stack) Push(t *Table) { s.tables = append(s.tables, t) }

// Pop discards the most recently pushed table and returns it.
func (s *Stack) Pop() *Table {
	if len(s.tables) == 0 {
		return nil
	}
	t := s.tables[len(s.tables)-1]
	s.tables = s.tables[:len(s.tables)-1]
	return t
}

// Current returns the most recently pushed table, or nil if empty.
func (s *Stack) Current() *Table {
	if len(s.tables) == 0 {
		return nil
	}
	return s.tables[len(s.tables)-1]
}

// Len reports how many tables the stack currently holds.
func (s *Stack) Len() int { return len(s.tables) }
