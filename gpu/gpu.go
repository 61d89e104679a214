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

// Package gpu defines the opaque seed-matching backend interface (spec
// §6.3): a capability that consumes block bytes, offsets, and a seed
// range, and returns a compact match log. Only the internals are out
// of scope; the interface, the CPU fallback implementing it, and the
// controller-side reconciliation (Fold) that folds a backend's match
// log into the superposition store are in scope (spec §9 "Dynamic
// dispatch over backends").
package gpu

import (
	"golang.org/x/sys/cpu"

	"github.com/telomere-project/telomere/arity"
	"github.com/telomere-project/telomere/block"
	"github.com/telomere-project/telomere/evql"
	"github.com/telomere-project/telomere/search"
	"github.com/telomere-project/telomere/seed"
	"github.com/telomere-project/telomere/superposition"
)

// MatchRecord is one (seed index, block index) match a backend found.
type MatchRecord struct {
	SeedIndex  uint64
	BlockIndex int
}

// Backend is the opaque seed-matching capability. A real GPU
// implementation satisfies this interface without this package ever
// needing to know how.
type Backend interface {
	// Available reports whether the backend can currently run. The
	// controller falls back to CPU with a single diagnostic if this
	// is false (spec §6.3).
	Available() bool
	// Match searches startSeedIndex..startSeedIndex+count-1 against
	// each block described by offsets/lengths within blocks, for seeds
	// up to maxSeedLen bytes, and returns every match found. It never
	// mutates shared state.
	Match(blocks []byte, offsets, lengths []int, startSeedIndex, count uint64, maxSeedLen int) ([]MatchRecord, error)
}

// TileHint returns the seed-range tile size a controller should use
// per Match dispatch. Hosts with wide vector units amortize per-call
// overhead over a larger tile. Tiling never changes which matches are
// found, only how many dispatches find them, so compressed output
// stays identical across hosts.
func TileHint() uint64 {
	if cpu.X86.HasAVX2 {
		return 1 << 17
	}
	return 1 << 16
}

// CPUBackend is the always-available fallback: it runs the same
// iterated-SHA-256 match test the search package uses, directly
// against the Backend interface's buffer-oriented contract.
type CPUBackend struct{}

// Available always reports true for the CPU fallback.
func (CPUBackend) Available() bool { return true }

// Match implements Backend by iterating candidate seed indices against
// each described block range.
func (CPUBackend) Match(blocks []byte, offsets, lengths []int, startSeedIndex, count uint64, maxSeedLen int) ([]MatchRecord, error) {
	var out []MatchRecord
	for bi := range offsets {
		target := blocks[offsets[bi] : offsets[bi]+lengths[bi]]
		for i := startSeedIndex; i < startSeedIndex+count; i++ {
			s := seed.Of(i)
			if len(s) > maxSeedLen {
				break
			}
			if g := seed.G(s, len(target)); equalBytes(g, target) {
				out = append(out, MatchRecord{SeedIndex: i, BlockIndex: bi})
				break
			}
		}
	}
	return out, nil
}

func equalBytes(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Fold reconciles a backend's match log into store as new
// single-block candidates, computing each one's cost the same way the
// CPU candidate generator does. The backend itself never touches
// store; only the controller, via Fold, does (spec §5 "Shared
// resources").
func Fold(log []MatchRecord, blockStarts []int, store *superposition.Store) {
	for _, m := range log {
		if m.BlockIndex < 0 || m.BlockIndex >= len(blockStarts) {
			continue
		}
		start := blockStarts[m.BlockIndex]
		existing := store.Candidates(start)
		if hasSeedCandidate(existing, m.SeedIndex) {
			continue
		}
		cand := block.Candidate{
			Span: block.Span{
				Start:     start,
				Arity:     1,
				SeedIndex: m.SeedIndex,
			},
			CostBits: arity.BitsArity1() + evql.Bits(m.SeedIndex),
		}
		merged := append(append([]block.Candidate(nil), existing...), cand)
		store.Set(start, search.SortCandidates(merged))
	}
}

// hasSeedCandidate reports whether list already holds an arity-1 seed
// candidate with the given index, so a backend rediscovering a match
// the CPU search already found does not produce a duplicate entry.
func hasSeedCandidate(list []block.Candidate, seedIndex uint64) bool {
	for _, c := range list {
		if !c.Span.Literal && c.Span.Arity == 1 && c.Span.SeedIndex == seedIndex {
			return true
		}
	}
	return false
}
