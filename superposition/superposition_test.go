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

package superposition

import (
	"testing"

	"github.com/telomere-project/telomere/block"
)

func TestSetAssignsLabels(t *testing.T) {
	s := New()
	s.Set(0, []block.Candidate{
		{CostBits: 1}, {CostBits: 2}, {CostBits: 3},
	})
	list := s.Candidates(0)
	want := []string{"N", "NA", "NB"}
	for i, c := range list {
		if c.Label != want[i] {
			t.Fatalf("label %d = %q, want %q", i, c.Label, want[i])
		}
	}
}

func TestBestReturnsFirst(t *testing.T) {
	s := New()
	s.Set(0, []block.Candidate{{CostBits: 5}, {CostBits: 9}})
	best, ok := s.Best(0)
	if !ok || best.CostBits != 5 {
		t.Fatalf("Best() = %+v, %v", best, ok)
	}
	if _, ok := s.Best(99); ok {
		t.Fatal("expected no best for unknown block")
	}
}

func TestPruneDropsBeyondDelta(t *testing.T) {
	s := New()
	s.Set(0, []block.Candidate{
		{CostBits: 10}, {CostBits: 15}, {CostBits: 18}, {CostBits: 19},
	})
	s.Prune(8)
	list := s.Candidates(0)
	if len(list) != 3 {
		t.Fatalf("got %d candidates after prune, want 3 (19 > 10+8)", len(list))
	}
	for _, c := range list {
		if c.CostBits > 18 {
			t.Fatalf("candidate with cost %d survived a delta-8 prune from best 10", c.CostBits)
		}
	}
}

func TestClaimSpanRemovesCoveredBlocks(t *testing.T) {
	s := New()
	s.Set(0, []block.Candidate{{CostBits: 1}})
	s.Set(1, []block.Candidate{{CostBits: 1}})
	s.Set(2, []block.Candidate{{CostBits: 1}})
	s.Set(3, []block.Candidate{{CostBits: 1}})

	s.ClaimSpan(block.Span{Start: 0, Arity: 3})

	if len(s.Candidates(0)) != 0 || len(s.Candidates(1)) != 0 || len(s.Candidates(2)) != 0 {
		t.Fatal("expected blocks 0-2 to be claimed")
	}
	if len(s.Candidates(3)) == 0 {
		t.Fatal("expected block 3 to remain untouched")
	}
}
