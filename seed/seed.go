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

// Package seed implements the canonical bijection between nonnegative
// integers and non-empty byte strings (ordered first by ascending
// length, then lexicographically in big-endian byte order), and G, the
// iterated SHA-256 expander that turns a seed into an arbitrary-length
// byte stream. Index 0 is the one-byte seed 0x00, index 255 is 0xFF,
// and index 256 is the two-byte seed 0x00 0x00; there is no empty
// seed.
package seed

import "crypto/sha256"

// MaxLen is one past the longest seed length this package's index
// arithmetic supports without uint64 overflow: seeds of 1..MaxLen-1
// bytes are indexable (256^8 does not fit in a uint64). The candidate
// generator's default budget only ever reaches length 3 (max_seed_len
// default 3, ~16.8M seeds); 7 leaves ample headroom.
const MaxLen = 8

// pow256 returns 256^n. Callers never request n > MaxLen.
func pow256(n int) uint64 {
	v := uint64(1)
	for i := 0; i < n; i++ {
		v *= 256
	}
	return v
}

// offsetBefore returns the number of seeds strictly shorter than
// length, i.e. the index of the first seed of the given length.
func offsetBefore(length int) uint64 {
	var sum uint64
	for l := 1; l < length; l++ {
		sum += pow256(l)
	}
	return sum
}

// Of returns the seed at the given canonical index.
func Of(index uint64) []byte {
	length := 1
	cum := uint64(0)
	for {
		count := pow256(length)
		if index < cum+count {
			break
		}
		cum += count
		length++
	}
	local := index - cum
	out := make([]byte, length)
	for i := length - 1; i >= 0; i-- {
		out[i] = byte(local & 0xFF)
		local >>= 8
	}
	return out
}

// IndexOf returns the canonical index of s. s must be non-empty.
func IndexOf(s []byte) uint64 {
	var local uint64
	for _, b := range s {
		local = local<<8 | uint64(b)
	}
	return offsetBefore(len(s)) + local
}

// MaxIndex returns the largest index Of can materialize without the
// length arithmetic overflowing uint64 (every seed up to MaxLen-1
// bytes). Decoders reject any wire seed index at or above this bound.
func MaxIndex() uint64 {
	return offsetBefore(MaxLen)
}

// CountUpTo returns the number of seeds whose length is in [1, maxLen].
// With maxLen=3 this is 256+65536+16777216 = 16,843,008, matching the
// candidate generator's default ~16.8M-seed enumeration budget.
func CountUpTo(maxLen int) uint64 {
	return offsetBefore(maxLen + 1)
}

// G expands seed s into n bytes: d0 = SHA-256(s), d(i+1) = SHA-256(di),
// and the output is the concatenation d0 || d1 || ... truncated to n
// bytes.
func G(s []byte, n int) []byte {
	out := make([]byte, 0, n)
	d := sha256.Sum256(s)
	for len(out) < n {
		remaining := n - len(out)
		if remaining >= len(d) {
			out = append(out, d[:]...)
		} else {
			out = append(out, d[:remaining]...)
		}
		d = sha256.Sum256(d[:])
	}
	return out
}
