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

// Package batch groups selected spans into batches of 1..=3
// consecutive spans, each framed by a byte-aligned 3-byte header (a
// 4-bit block-count field, a 16-bit truncated-SHA-256 payload hash,
// and 4 reserved bits), and verifies that hash against reconstructed
// bytes on decode.
package batch

import (
	"crypto/sha256"

	"github.com/telomere-project/telomere/bitio"
	"github.com/telomere-project/telomere/block"
	"github.com/telomere-project/telomere/errs"
)

// MaxSpansPerBatch is the greedy packing width from spec §4.8.
const MaxSpansPerBatch = 3

// HeaderBits is the fixed width of the batch header: 4 (block count)
// + 16 (hash) + 4 (reserved).
const HeaderBits = 24

// Batch is one grouping of consecutive selected spans plus its framing
// fields.
type Batch struct {
	Spans      []block.Span
	BlockCount int
	Hash       uint16
}

// Hash16 returns the 16-bit truncated SHA-256 prefix of payload, big
// endian, per spec §4.8.
func Hash16(payload []byte) uint16 {
	sum := sha256.Sum256(payload)
	return uint16(sum[0])<<8 | uint16(sum[1])
}

// blockCountFor computes a batch's 4-bit block-count field: the sum
// of arities if every span is a compressed seed, or the span count if
// any span in the batch is a literal.
func blockCountFor(spans []block.Span) int {
	hasLiteral := false
	sum := 0
	for _, s := range spans {
		if s.Literal {
			hasLiteral = true
		}
		sum += s.Arity
	}
	if hasLiteral {
		return len(spans)
	}
	return sum
}

// Group packs a pass's selected span list into batches, greedily
// left-to-right, up to MaxSpansPerBatch spans per batch, never
// crossing the final block's boundary and never producing a
// block-count field that would overflow 4 bits.
//
// A batch mixing a literal with an arity->=3 seed span would make its
// block-count field ambiguous on decode (it reads as "number of
// spans" once any literal is present, which only coincides with
// "total blocks covered" when every span in the batch is exactly one
// block wide). Group keeps that invariant by construction: once a
// batch holds a literal, only further arity-1 spans (seed or literal)
// are admitted to it.
func Group(spans []block.Span, numBlocks int) []Batch {
	var batches []Batch
	var cur []block.Span
	curHasLiteral := false
	curHasWide := false
	flush := func() {
		if len(cur) == 0 {
			return
		}
		batches = append(batches, Batch{Spans: cur, BlockCount: blockCountFor(cur)})
		cur = nil
		curHasLiteral = false
		curHasWide = false
	}
	for _, s := range spans {
		wide := s.Arity != 1
		mixesLiteralWithWideSpan := (curHasLiteral && wide) || (s.Literal && curHasWide)
		candidate := append(append([]block.Span(nil), cur...), s)
		if len(cur) >= MaxSpansPerBatch || blockCountFor(candidate) > 0xF || mixesLiteralWithWideSpan {
			flush()
			candidate = []block.Span{s}
		}
		cur = candidate
		if s.Literal {
			curHasLiteral = true
		}
		if wide {
			curHasWide = true
		}
		if s.End() >= numBlocks {
			flush()
		}
	}
	flush()
	return batches
}

// Payload returns the concatenation of each span's decoded bytes,
// using decode to turn a span back into bytes (literal bytes verbatim,
// or the seed's G-expansion for a seed reference).
func (b Batch) Payload(decode func(block.Span) ([]byte, error)) ([]byte, error) {
	var out []byte
	for _, s := range b.Spans {
		bs, err := decode(s)
		if err != nil {
			return nil, err
		}
		out = append(out, bs...)
	}
	return out, nil
}

// WriteHeader writes a batch's 3-byte header. w must be byte-aligned.
func WriteHeader(w *bitio.Writer, blockCount int, hash uint16) {
	w.WriteBits(uint64(blockCount), 4)
	w.WriteBits(uint64(hash), 16)
	w.WriteBits(0, 4) // reserved
}

// ReadHeader reads a batch's 3-byte header. r must be byte-aligned.
func ReadHeader(r *bitio.Reader) (blockCount int, hash uint16, err error) {
	bc, err := r.ReadBits(4)
	if err != nil {
		return 0, 0, errs.Wrap(errs.Header, "batch", "truncated block-count field", err).WithBitOffset(r.BitsConsumed())
	}
	h, err := r.ReadBits(16)
	if err != nil {
		return 0, 0, errs.Wrap(errs.Header, "batch", "truncated hash field", err).WithBitOffset(r.BitsConsumed())
	}
	if _, err := r.ReadBits(4); err != nil {
		return 0, 0, errs.Wrap(errs.Header, "batch", "truncated reserved field", err).WithBitOffset(r.BitsConsumed())
	}
	return int(bc), uint16(h), nil
}

// CheckHash reports a HashMismatch error, naming batchIndex, if
// payload's truncated hash does not equal want.
func CheckHash(payload []byte, want uint16, batchIndex int) error {
	got := Hash16(payload)
	if got != want {
		return errs.Newf(errs.HashMismatch, "batch", "payload hash %04x != header hash %04x", got, want).WithBatch(batchIndex)
	}
	return nil
}
