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

// Package arity implements the span-header prefix code: a 1-bit toggle
// followed by zero or more VQL-style 2-bit windows, mapping the
// bitstring space to {arity 1 (no payload windows), literal marker,
// reserved, arity 3, 4, 5, ...}.
//
// After a `1` toggle the first window is special: `00` is the literal
// marker, `01` is reserved (a protocol violation), and `10` begins the
// same tier/terminal-digit accumulation evql uses, offset so its
// window sequence starts counting from arity 3 rather than from 0.
package arity

import (
	"github.com/telomere-project/telomere/errs"
	"github.com/telomere-project/telomere/evql"

	"github.com/telomere-project/telomere/bitio"
)

const (
	windowLiteral  = 0b00
	windowReserved = 0b01
	windowFirst    = 0b10
	windowContinue = 0b11
	windowBits     = 2
)

// Code is the decoded result of a span header: either the literal
// marker, or a numeric arity (1, or >=3).
type Code struct {
	Literal bool
	Arity   int
}

// EncodeArity1 writes the arity-1 span header (toggle 0 alone).
func EncodeArity1(w *bitio.Writer) {
	w.WriteBits(0, 1)
}

// EncodeLiteral writes the literal-marker span header (toggle 1,
// window 00).
func EncodeLiteral(w *bitio.Writer) {
	w.WriteBits(1, 1)
	w.WriteBits(windowLiteral, windowBits)
}

// EncodeArityN writes the span header for a >=3 arity using the
// tier/terminal-digit windowing, where v = arity-1 and a window
// sequence of tier continuations + one terminal digit window encodes
// v the same way evql does.
func EncodeArityN(w *bitio.Writer, n int) {
	if n < 3 {
		panic("arity.EncodeArityN: n must be >= 3")
	}
	w.WriteBits(1, 1)
	v := uint64(n - 1)
	evql.Encode(w, v)
}

// Decode reads one span header.
func Decode(r *bitio.Reader) (Code, error) {
	toggle, err := r.ReadBits(1)
	if err != nil {
		return Code{}, errs.Wrap(errs.Arity, "arity", "truncated toggle bit", err).WithBitOffset(r.BitsConsumed())
	}
	if toggle == 0 {
		return Code{Arity: 1}, nil
	}

	win, err := r.ReadBits(windowBits)
	if err != nil {
		return Code{}, errs.Wrap(errs.Arity, "arity", "truncated first window", err).WithBitOffset(r.BitsConsumed())
	}
	switch win {
	case windowLiteral:
		return Code{Literal: true}, nil
	case windowReserved:
		return Code{}, errs.New(errs.Arity, "arity", "reserved arity-2 window").WithBitOffset(r.BitsConsumed())
	case windowFirst:
		return Code{Arity: 3}, nil
	}

	// win == windowContinue: same accumulation evql uses, with one
	// continuation window already consumed.
	tier := uint64(1)
	for {
		w, err := r.ReadBits(windowBits)
		if err != nil {
			return Code{}, errs.Wrap(errs.Arity, "arity", "truncated window", err).WithBitOffset(r.BitsConsumed())
		}
		if w == windowContinue {
			tier++
			continue
		}
		v := 3*tier + w
		return Code{Arity: int(v) + 1}, nil
	}
}

// BitsLiteral returns the bit cost of the literal-marker header.
func BitsLiteral() int { return 1 + windowBits }

// Bits returns the bit cost of a >=3 arity header.
func Bits(n int) int {
	if n < 3 {
		panic("arity.Bits: n must be >= 3")
	}
	return 1 + evql.Bits(uint64(n-1))
}

// BitsArity1 returns the bit cost of the arity-1 span header alone
// (not counting the seed-index or literal payload that follows it).
func BitsArity1() int { return 1 }
