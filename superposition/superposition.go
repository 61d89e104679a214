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

// Package superposition holds, for one pass, the per-starting-block
// candidate lists the candidate generator produced, and applies the
// pruning rules that keep each list small before the bundler runs. It
// is an arena keyed by starting block index, not a graph of pointers
// (spec §9 "Superposition graph": represent as an arena, not cyclic
// pointers).
package superposition

import "github.com/telomere-project/telomere/block"

// DefaultDeltaBits is the pruning threshold from spec §4.6: a
// candidate is dropped once its cost exceeds the best candidate for
// the same starting block by more than this many bits.
const DefaultDeltaBits = 8

// Store is the per-pass candidate arena, keyed by starting block
// index. Lists are expected to already be canonically sorted (cost,
// then arity, then seed index, literal last) by the caller, matching
// spec §5's ordering guarantee.
type Store struct {
	byStart map[int][]block.Candidate
}

// New returns an empty store.
func New() *Store {
	return &Store{byStart: make(map[int][]block.Candidate)}
}

// Set installs the sorted candidate list for a starting block,
// assigning labels ("N", "NA", "NB", ...) by position in that list.
// The order in which the generator discovered the candidates is not
// recorded; labels follow the sorted order.
func (s *Store) Set(start int, sorted []block.Candidate) {
	labeled := make([]block.Candidate, len(sorted))
	copy(labeled, sorted)
	for i := range labeled {
		labeled[i].Label = subLabel(i)
	}
	s.byStart[start] = labeled
}

func subLabel(i int) string {
	if i == 0 {
		return "N"
	}
	// 1 -> "NA", 2 -> "NB", ...
	return "N" + string(rune('A'+i-1))
}

// Candidates returns the current candidate list for a starting block.
func (s *Store) Candidates(start int) []block.Candidate {
	return s.byStart[start]
}

// Best returns the first (cheapest) candidate for a starting block.
func (s *Store) Best(start int) (block.Candidate, bool) {
	list := s.byStart[start]
	if len(list) == 0 {
		return block.Candidate{}, false
	}
	return list[0], true
}

// StartingBlocks returns every starting block index currently held.
func (s *Store) StartingBlocks() []int {
	out := make([]int, 0, len(s.byStart))
	for start := range s.byStart {
		out = append(out, start)
	}
	return out
}

// Prune drops, from every starting block's list, any candidate whose
// cost exceeds the best candidate's cost by more than deltaBits (spec
// §4.6 rule 1). It never reorders a list; it only truncates from the
// tail, since lists are sorted ascending by cost.
func (s *Store) Prune(deltaBits int) {
	for start, list := range s.byStart {
		if len(list) == 0 {
			continue
		}
		best := list[0].CostBits
		cut := len(list)
		for i, c := range list {
			if c.CostBits > best+deltaBits {
				cut = i
				break
			}
		}
		s.byStart[start] = list[:cut]
	}
}

// ClaimSpan removes the candidate lists for every block a selected
// bundle covers (spec §4.6 rule 2: once a bundle using block b is
// selected, all non-bundled candidates for the covered blocks are
// dropped). The bundle's own selection is recorded by the bundler, not
// the store; the store's job within a pass ends once its blocks are
// claimed.
func (s *Store) ClaimSpan(span block.Span) {
	for b := span.Start; b < span.End(); b++ {
		delete(s.byStart, b)
	}
}
