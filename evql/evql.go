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

// Package evql implements the self-delimiting unsigned-integer codec
// used for the file header's length fields and for seed-index payloads.
//
// A value is written as zero or more 2-bit continuation windows (`11`)
// followed by one terminal window (`00`, `01`, or `10`) carrying a
// digit in [0, 2]. The number of continuation windows is the value's
// magnitude tier; value v encodes as tier = v/3 continuation windows
// then a terminal window carrying digit v%3. The mapping from window
// sequence to value is a bijection, so encoding a value always
// produces its unique shortest representation and there is no
// alternate, longer bit pattern that decodes to that same value.
package evql

import (
	"github.com/telomere-project/telomere/bitio"
	"github.com/telomere-project/telomere/errs"
)

const (
	windowContinue = 0b11
	windowBits     = 2
)

// Encode writes v to w as a sequence of EVQL windows.
func Encode(w *bitio.Writer, v uint64) {
	tier := v / 3
	digit := v % 3
	for i := uint64(0); i < tier; i++ {
		w.WriteBits(windowContinue, windowBits)
	}
	w.WriteBits(digit, windowBits)
}

// Decode reads one EVQL-encoded value from r.
func Decode(r *bitio.Reader) (uint64, error) {
	var tier uint64
	for {
		win, err := r.ReadBits(windowBits)
		if err != nil {
			return 0, errs.Wrap(errs.Header, "evql", "truncated window", err).WithBitOffset(r.BitsConsumed())
		}
		if win == windowContinue {
			tier++
			continue
		}
		return 3*tier + win, nil
	}
}

// DecodeBounded reads one EVQL-encoded value from r and rejects it
// with a Header error if it exceeds max. Fields with a fixed domain
// (format version, block size, last-block length) use this instead of
// Decode so that a lengthened, out-of-range encoding is reported the
// same way a structurally malformed header is: as Header, not as a
// silently-accepted larger value.
func DecodeBounded(r *bitio.Reader, max uint64) (uint64, error) {
	v, err := Decode(r)
	if err != nil {
		return 0, err
	}
	if v > max {
		return 0, errs.Newf(errs.Header, "evql", "value %d exceeds maximum %d", v, max).WithBitOffset(r.BitsConsumed())
	}
	return v, nil
}

// Bits returns the number of bits Encode(v) would write, without
// writing anything. The candidate generator uses this to score
// seed-index cost (spec: cost_bits = arity_bits(a) + evql_bits(i)).
func Bits(v uint64) int {
	tier := v / 3
	return int(tier+1) * windowBits
}
