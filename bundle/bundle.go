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

// Package bundle implements the greedy, one-layer bundler: given a
// pass's pruned superposition store, it selects a non-overlapping span
// covering every block, preferring wider arities.
package bundle

import (
	"golang.org/x/exp/slices"

	"github.com/telomere-project/telomere/block"
	"github.com/telomere-project/telomere/errs"
	"github.com/telomere-project/telomere/superposition"
)

// Select runs the bundler over store for a table of numBlocks blocks,
// returning the selected span list ordered by starting block. It is
// idempotent: re-running on an unmodified store's candidate lists
// yields the same selection (spec §4.7).
func Select(store *superposition.Store, numBlocks int) ([]block.Span, error) {
	claimed := make([]bool, numBlocks)

	var merge []block.Candidate
	for _, start := range store.StartingBlocks() {
		for _, c := range store.Candidates(start) {
			if c.Span.Arity >= 2 {
				merge = append(merge, c)
			}
		}
	}
	slices.SortFunc(merge, func(a, b block.Candidate) bool {
		if a.Span.Arity != b.Span.Arity {
			return a.Span.Arity > b.Span.Arity
		}
		if a.Span.Start != b.Span.Start {
			return a.Span.Start < b.Span.Start
		}
		return a.CostBits < b.CostBits
	})

	var selected []block.Span
	for _, c := range merge {
		if anyClaimed(claimed, c.Span) {
			continue
		}
		markClaimed(claimed, c.Span)
		selected = append(selected, c.Span)
		store.ClaimSpan(c.Span)
	}

	for b := 0; b < numBlocks; b++ {
		if claimed[b] {
			continue
		}
		best, ok := store.Best(b)
		if !ok {
			return nil, errs.Newf(errs.Bundling, "bundle", "block %d has no surviving candidate (literal fallback missing)", b)
		}
		selected = append(selected, best.Span)
		claimed[b] = true
	}

	slices.SortFunc(selected, func(a, b block.Span) bool { return a.Start < b.Start })
	if err := checkNoOverlap(selected); err != nil {
		return nil, err
	}
	return selected, nil
}

func anyClaimed(claimed []bool, s block.Span) bool {
	for b := s.Start; b < s.End(); b++ {
		if claimed[b] {
			return true
		}
	}
	return false
}

func markClaimed(claimed []bool, s block.Span) {
	for b := s.Start; b < s.End(); b++ {
		claimed[b] = true
	}
}

func checkNoOverlap(spans []block.Span) error {
	for i := 1; i < len(spans); i++ {
		if spans[i].Start < spans[i-1].End() {
			return errs.Newf(errs.Bundling, "bundle", "span starting at %d overlaps the previous span ending at %d", spans[i].Start, spans[i-1].End())
		}
	}
	return nil
}
