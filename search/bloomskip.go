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

package search

import (
	"math/bits"
	"sync"

	"github.com/telomere-project/telomere/internal/xints"
)

// BloomSkip is an in-memory, unpersisted Bloom filter over
// (block digest, seed-length bound) pairs already known to have no
// matching seed. It lets repeat passes over unchanged blocks skip
// redundant searches. It is purely a performance heuristic: a false
// positive only costs a missed compression opportunity (the block
// falls back to its literal candidate), never correctness, and a
// false negative never occurs by construction (Bloom filters have no
// false negatives).
// Concurrent search workers share one filter; a missed (not yet
// visible) mark only costs a redundant search with an identical
// outcome, so selection stays deterministic.
type BloomSkip struct {
	mu    sync.RWMutex
	words []uint64
	bits  uint64
}

// NewBloomSkip returns a filter backed by sizeBits bits, rounded up to
// a whole number of 64-bit words.
func NewBloomSkip(sizeBits int) *BloomSkip {
	if sizeBits < 64 {
		sizeBits = 64
	}
	words := xints.CeilDiv(sizeBits, 64)
	return &BloomSkip{words: make([]uint64, words), bits: uint64(words) * 64}
}

func (b *BloomSkip) indexes(digest uint64, seedLen int) (uint64, uint64) {
	h1 := digest ^ uint64(seedLen)*0x9E3779B97F4A7C15
	h2 := bits.RotateLeft64(h1^0xD6E8FEB86659FD93, 31)
	return h1 % b.bits, h2 % b.bits
}

func (b *BloomSkip) set(idx uint64) {
	b.words[idx/64] |= 1 << (idx % 64)
}

func (b *BloomSkip) get(idx uint64) bool {
	return b.words[idx/64]&(1<<(idx%64)) != 0
}

// MarkFailed records that no seed up to seedLen bytes matched the
// block whose structural digest is digest.
func (b *BloomSkip) MarkFailed(digest uint64, seedLen int) {
	i1, i2 := b.indexes(digest, seedLen)
	b.mu.Lock()
	b.set(i1)
	b.set(i2)
	b.mu.Unlock()
}

// MightHaveFailed reports whether this (digest, seedLen) pair was
// previously marked failed. A true result may be a false positive; a
// false result is always accurate.
func (b *BloomSkip) MightHaveFailed(digest uint64, seedLen int) bool {
	i1, i2 := b.indexes(digest, seedLen)
	b.mu.RLock()
	hit := b.get(i1) && b.get(i2)
	b.mu.RUnlock()
	return hit
}
