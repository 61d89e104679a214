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

// Package pass implements the pass driver: one full
// compress-the-current-bitstream iteration (partition, search, prune,
// bundle, write), plus the layer decoder that undoes a single pass.
// Multi-pass iteration and convergence live in the root telomere
// package; this package owns everything that happens within one pass.
package pass

import (
	"context"

	"github.com/telomere-project/telomere/arity"
	"github.com/telomere-project/telomere/batch"
	"github.com/telomere-project/telomere/bitio"
	"github.com/telomere-project/telomere/block"
	"github.com/telomere-project/telomere/bundle"
	"github.com/telomere-project/telomere/errs"
	"github.com/telomere-project/telomere/evql"
	"github.com/telomere-project/telomere/fileformat"
	"github.com/telomere-project/telomere/gpu"
	"github.com/telomere-project/telomere/search"
	"github.com/telomere-project/telomere/superposition"
)

// Config parameterizes a single pass.
type Config struct {
	BlockSize      int // default 3
	MaxArity       int // default 5
	MaxSeedLen     int // default 3
	Workers        int // 0 means GOMAXPROCS
	PruneDeltaBits int // default superposition.DefaultDeltaBits

	// Backend, when non-nil, contributes additional single-block seed
	// matches via its match log. When it reports unavailable the driver
	// emits one diagnostic through Diag and proceeds CPU-only.
	Backend gpu.Backend
	// Diag receives human-readable one-line diagnostics. Nil means
	// discard.
	Diag func(string)
}

// DefaultConfig returns the spec defaults.
func DefaultConfig() Config {
	return Config{
		BlockSize:      3,
		MaxArity:       5,
		MaxSeedLen:     3,
		PruneDeltaBits: superposition.DefaultDeltaBits,
	}
}

// Stats aggregates what one pass selected.
type Stats struct {
	LiteralSpans int
	SeedSpans    int
	// ArityHist counts selected spans by arity. Index 0 and 2 are
	// always zero.
	ArityHist map[int]int
	InputLen  int
	OutputLen int
}

// SavedBits returns how many bits the pass shaved off its input, which
// may be negative when framing overhead dominates.
func (s Stats) SavedBits() int {
	return (s.InputLen - s.OutputLen) * 8
}

// Result is one pass's outcome.
type Result struct {
	Bytes []byte
	Spans []block.Span
	Stats Stats
	// ChangedBlocks lists the block indices whose span assignment
	// differs from the previous pass at the same index. Diagnostic
	// only; the first pass reports every block as changed.
	ChangedBlocks []int
}

// phase is the driver's state within a pass. Transitions are total:
// searching -> bundling -> writing, then back to searching at the next
// pass.
type phase uint8

const (
	searchInProgress phase = iota
	bundling
	writing
)

func (p phase) String() string {
	switch p {
	case searchInProgress:
		return "search"
	case bundling:
		return "bundling"
	default:
		return "writing"
	}
}

// Driver runs passes over successive byte streams, keeping the block
// table stack and the cross-pass search skip filter.
type Driver struct {
	cfg   Config
	stack block.Stack
	bloom *search.BloomSkip
	phase phase

	prevAssign    []block.Span
	warnedBackend bool
}

// NewDriver returns a Driver for cfg. Zero fields of cfg are replaced
// with their defaults.
func NewDriver(cfg Config) *Driver {
	def := DefaultConfig()
	if cfg.BlockSize == 0 {
		cfg.BlockSize = def.BlockSize
	}
	if cfg.MaxArity == 0 {
		cfg.MaxArity = def.MaxArity
	}
	if cfg.MaxSeedLen == 0 {
		cfg.MaxSeedLen = def.MaxSeedLen
	}
	if cfg.PruneDeltaBits == 0 {
		cfg.PruneDeltaBits = def.PruneDeltaBits
	}
	return &Driver{
		cfg:   cfg,
		bloom: search.NewBloomSkip(1 << 20),
	}
}

// Stack exposes the driver's block table stack, one entry per pass run
// so far.
func (d *Driver) Stack() *block.Stack { return &d.stack }

// RunOnce executes pass number passNum (1-based) over data and returns
// the written bitstream. The pass number is recorded in the layer's
// file header so a decoder knows how many layers to unwrap.
func (d *Driver) RunOnce(ctx context.Context, data []byte, passNum int) (Result, error) {
	tbl, err := block.NewTable(data, d.cfg.BlockSize)
	if err != nil {
		return Result{}, err
	}
	d.stack.Push(tbl)

	d.phase = searchInProgress
	scfg := search.Config{
		MaxArity:   d.cfg.MaxArity,
		MaxSeedLen: d.cfg.MaxSeedLen,
		Workers:    d.cfg.Workers,
	}
	cands := search.GenerateAll(ctx, tbl, scfg, d.bloom)
	if err := ctx.Err(); err != nil {
		d.stack.Pop()
		return Result{}, errs.Wrap(errs.Internal, "pass", "cancelled during "+d.phase.String(), err)
	}

	store := superposition.New()
	for start, list := range cands {
		store.Set(start, list)
	}
	if d.cfg.Backend != nil {
		d.foldBackend(tbl, store)
	}
	store.Prune(d.cfg.PruneDeltaBits)

	d.phase = bundling
	spans, err := bundle.Select(store, tbl.NumBlocks())
	if err != nil {
		d.stack.Pop()
		return Result{}, err
	}

	d.phase = writing
	out := encodeLayer(tbl, spans, uint64(passNum))

	res := Result{
		Bytes:         out,
		Spans:         spans,
		Stats:         statsFor(tbl, spans, out),
		ChangedBlocks: d.changedBlocks(tbl.NumBlocks(), spans),
	}
	d.prevAssign = assignment(tbl.NumBlocks(), spans)
	return res, nil
}

// foldBackend folds the configured backend's match log into store, or
// emits the one-time fallback diagnostic if the backend is not
// available.
func (d *Driver) foldBackend(tbl *block.Table, store *superposition.Store) {
	if !d.cfg.Backend.Available() {
		if !d.warnedBackend {
			if d.cfg.Diag != nil {
				d.cfg.Diag("seed-match backend unavailable; continuing on CPU")
			}
			d.warnedBackend = true
		}
		return
	}

	n := tbl.NumBlocks()
	if n > 0 && tbl.LastBlockLen != tbl.BlockSize {
		n-- // the shortened tail block is literal-only
	}
	if n == 0 {
		return
	}
	offsets := make([]int, n)
	lengths := make([]int, n)
	starts := make([]int, n)
	for b := 0; b < n; b++ {
		offsets[b] = b * tbl.BlockSize
		lengths[b] = tbl.BlockSize
		starts[b] = b
	}

	// Tile the seed range so a backend with bounded dispatch size sees
	// bounded chunks regardless of total budget.
	tile := gpu.TileHint()
	budget := search.Budget(1, d.cfg.MaxSeedLen)
	for lo := uint64(0); lo < budget; lo += tile {
		count := tile
		if lo+count > budget {
			count = budget - lo
		}
		log, err := d.cfg.Backend.Match(tbl.Data, offsets, lengths, lo, count, d.cfg.MaxSeedLen)
		if err != nil {
			if !d.warnedBackend {
				if d.cfg.Diag != nil {
					d.cfg.Diag("seed-match backend failed mid-run; continuing on CPU: " + err.Error())
				}
				d.warnedBackend = true
			}
			return
		}
		gpu.Fold(log, starts, store)
	}
}

// assignment maps each block index to the span covering it.
func assignment(numBlocks int, spans []block.Span) []block.Span {
	out := make([]block.Span, numBlocks)
	for _, s := range spans {
		for b := s.Start; b < s.End() && b < numBlocks; b++ {
			out[b] = s
		}
	}
	return out
}

func sameSpan(a, b block.Span) bool {
	return a.Start == b.Start && a.Arity == b.Arity &&
		a.Literal == b.Literal && a.SeedIndex == b.SeedIndex
}

func (d *Driver) changedBlocks(numBlocks int, spans []block.Span) []int {
	cur := assignment(numBlocks, spans)
	var changed []int
	for b := 0; b < numBlocks; b++ {
		if b >= len(d.prevAssign) || !sameSpan(cur[b], d.prevAssign[b]) {
			changed = append(changed, b)
		}
	}
	return changed
}

func statsFor(tbl *block.Table, spans []block.Span, out []byte) Stats {
	st := Stats{
		ArityHist: make(map[int]int),
		InputLen:  len(tbl.Data),
		OutputLen: len(out),
	}
	for _, s := range spans {
		if s.Literal {
			st.LiteralSpans++
		} else {
			st.SeedSpans++
		}
		st.ArityHist[s.Arity]++
	}
	return st
}

// encodeLayer writes one pass's bitstream: the file header
// (byte-aligned by a flush), then each batch byte-aligned, its span
// headers bit-packed and payloads following without intervening
// alignment.
func encodeLayer(tbl *block.Table, spans []block.Span, passNum uint64) []byte {
	w := bitio.NewWriter()
	fileformat.WriteHeader(w, fileformat.Header{
		Version:      fileformat.CurrentVersion,
		Passes:       passNum,
		BlockSize:    tbl.BlockSize,
		LastBlockLen: tbl.LastBlockLen,
		OriginalLen:  uint64(len(tbl.Data)),
		OutputHash:   fileformat.TruncatedHash13(tbl.Data),
	})
	w.Flush()

	for _, b := range batch.Group(spans, tbl.NumBlocks()) {
		var payload []byte
		for _, s := range b.Spans {
			payload = append(payload, tbl.SpanBytes(s.Start, s.Arity)...)
		}
		batch.WriteHeader(w, b.BlockCount, batch.Hash16(payload))
		for _, s := range b.Spans {
			writeSpan(w, s)
		}
		w.Flush()
	}
	return w.Flush()
}

func writeSpan(w *bitio.Writer, s block.Span) {
	switch {
	case s.Literal:
		arity.EncodeLiteral(w)
		for _, by := range s.LiteralBytes {
			w.WriteBits(uint64(by), 8)
		}
	case s.Arity == 1:
		arity.EncodeArity1(w)
		evql.Encode(w, s.SeedIndex)
	default:
		arity.EncodeArityN(w, s.Arity)
		evql.Encode(w, s.SeedIndex)
	}
}
