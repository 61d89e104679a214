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

// Package search implements the candidate generator: for each
// starting block and each arity, it enumerates seed indices in
// ascending order and tests whether G(seed, arity*block_size) matches
// the span's bytes exactly. Because evql.Bits is non-decreasing in the
// seed index, the first match found while scanning ascending indices
// is already the cheapest one available, so one match per (start,
// arity) pair is sufficient. GenerateAll adds each block's literal
// fallback candidate; the per-block choice among arities is made by
// the caller (bundle/superposition).
package search

import (
	"bytes"
	"context"
	"runtime"
	"sync"

	"golang.org/x/exp/slices"

	"github.com/telomere-project/telomere/arity"
	"github.com/telomere-project/telomere/block"
	"github.com/telomere-project/telomere/evql"
	"github.com/telomere-project/telomere/internal/blockhash"
	"github.com/telomere-project/telomere/seed"
)

// Config bounds the candidate generator's search.
type Config struct {
	MaxArity   int // default 5
	MaxSeedLen int // default 3
	Workers    int // 0 means runtime.GOMAXPROCS(0)
}

// DefaultConfig matches the spec's stated defaults.
func DefaultConfig() Config {
	return Config{MaxArity: 5, MaxSeedLen: 3}
}

// Budget returns the number of seed indices to try for the given
// arity given a maximum seed length. It is monotonically
// non-decreasing in maxSeedLen (so a larger --max-seed-len never
// finds fewer matches) and non-increasing in arity (a wider span costs
// arity times as much to hash-expand per candidate, so the budget
// is divided down accordingly, with a floor of 1).
func Budget(arityVal, maxSeedLen int) uint64 {
	total := seed.CountUpTo(maxSeedLen)
	if arityVal <= 1 {
		return total
	}
	b := total / uint64(arityVal)
	if b == 0 {
		b = 1
	}
	return b
}

// Match is a found seed-backed candidate plus the diagnostics the
// original's seed_detect.rs/seed_logger.rs tracked per span: how many
// seed indices were tried before success.
type Match struct {
	Candidate block.Candidate
	Tries     uint64
}

func arityCostBits(a int) int {
	if a == 1 {
		return arity.BitsArity1()
	}
	return arity.Bits(a)
}

// SearchSpan searches for a seed matching tbl's bytes at
// [start, start+arityVal). bs may be nil; if non-nil, a span already
// marked as a known failure for this seed-length bound is skipped
// without retrying — a pure performance heuristic, never a
// correctness requirement, since literal fallback always exists.
func SearchSpan(tbl *block.Table, start, arityVal int, cfg Config, bs *BloomSkip) (Match, bool) {
	target := tbl.SpanBytes(start, arityVal)
	digest := blockhash.Sum64(target)
	if bs != nil && bs.MightHaveFailed(digest, cfg.MaxSeedLen) {
		return Match{}, false
	}

	budget := Budget(arityVal, cfg.MaxSeedLen)
	var tries uint64
	for i := uint64(0); i < budget; i++ {
		s := seed.Of(i)
		if len(s) > cfg.MaxSeedLen {
			break
		}
		g := seed.G(s, len(target))
		tries++
		if bytes.Equal(g, target) {
			cand := block.Candidate{
				Span: block.Span{
					Start:     start,
					Arity:     arityVal,
					SeedIndex: i,
				},
				CostBits: arityCostBits(arityVal) + evql.Bits(i),
			}
			return Match{Candidate: cand, Tries: tries}, true
		}
	}
	if bs != nil {
		bs.MarkFailed(digest, cfg.MaxSeedLen)
	}
	return Match{Tries: tries}, false
}

// LiteralCandidate builds the always-available literal fallback
// candidate for a single block starting at start.
func LiteralCandidate(tbl *block.Table, start int) block.Candidate {
	data := tbl.SpanBytes(start, 1)
	cp := append([]byte(nil), data...)
	return block.Candidate{
		Span: block.Span{
			Start:        start,
			Arity:        1,
			Literal:      true,
			LiteralBytes: cp,
		},
		CostBits: arity.BitsLiteral() + len(cp)*8,
	}
}

// job is one (start, arity) search task handed to a worker.
type job struct {
	start int
	arity int
}

// GenerateAll runs the candidate generator over every starting block
// and every arity in {1, 3, 4, ..., cfg.MaxArity}, spreading the work
// across a worker pool keyed by CPU count (spec §5's data-parallel
// scheduling model). It returns, per starting block, the list of
// found candidates (seed matches across arities plus the literal
// fallback), already in SortCandidates order, per spec §5's ordering
// guarantee that discovery order is allowed to be nondeterministic but
// the sorted-at-pass-end list is not.
func GenerateAll(ctx context.Context, tbl *block.Table, cfg Config, bs *BloomSkip) map[int][]block.Candidate {
	n := tbl.NumBlocks()
	arities := arityList(cfg.MaxArity)

	// A shortened final block always encodes as a literal, so no seed
	// search covers it and no bundle may reach into it.
	searchable := n
	if n > 0 && tbl.LastBlockLen != tbl.BlockSize {
		searchable = n - 1
	}

	jobs := make(chan job, n*len(arities))
	for start := 0; start < n; start++ {
		for _, a := range arities {
			if start+a > searchable {
				continue
			}
			jobs <- job{start: start, arity: a}
		}
	}
	close(jobs)

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	var mu sync.Mutex
	results := make(map[int][]block.Candidate, n)
	addResult := func(start int, c block.Candidate) {
		mu.Lock()
		results[start] = append(results[start], c)
		mu.Unlock()
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				select {
				case <-ctx.Done():
					return
				default:
				}
				if m, ok := SearchSpan(tbl, j.start, j.arity, cfg, bs); ok {
					addResult(j.start, m.Candidate)
				}
			}
		}()
	}
	wg.Wait()

	for start := 0; start < n; start++ {
		addResult(start, LiteralCandidate(tbl, start))
	}

	for start, list := range results {
		results[start] = SortCandidates(list)
	}
	return results
}

func arityList(maxArity int) []int {
	out := []int{1}
	for a := 3; a <= maxArity; a++ {
		out = append(out, a)
	}
	return out
}

// SortCandidates canonically orders a span's candidate list: by cost,
// with literal losing every cost tie, then arity, then seed index (spec
// §4.5's tie-break rule, reused at pass end per §5's ordering
// guarantee).
func SortCandidates(list []block.Candidate) []block.Candidate {
	out := append([]block.Candidate(nil), list...)
	slices.SortFunc(out, func(a, b block.Candidate) bool {
		if a.CostBits != b.CostBits {
			return a.CostBits < b.CostBits
		}
		if a.Span.Literal != b.Span.Literal {
			return b.Span.Literal // literal sorts after non-literal on a tie
		}
		if a.Span.Arity != b.Span.Arity {
			return a.Span.Arity < b.Span.Arity
		}
		return a.Span.SeedIndex < b.Span.SeedIndex
	})
	return out
}
