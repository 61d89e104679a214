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

// Package telomere is the top-level codec API: Compress iterates
// passes over the input until the output stops shrinking (or the pass
// cap is hit) and Decompress unwraps the resulting nested layers back
// to the original bytes. All compressed output consists only of
// headers and short seeds; raw input bytes appear only inside
// explicitly tagged literal regions.
package telomere

import (
	"context"

	"github.com/telomere-project/telomere/errs"
	"github.com/telomere-project/telomere/fileformat"
	"github.com/telomere-project/telomere/gpu"
	"github.com/telomere-project/telomere/internal/xints"
	"github.com/telomere-project/telomere/pass"
)

// DefaultPasses is the default cap on compression passes.
const DefaultPasses = 10

// Config is the encoder configuration. The zero value is not valid;
// start from DefaultConfig.
type Config struct {
	BlockSize  int // 1..=255, default 3
	Passes     int // maximum passes, default 10
	MaxArity   int // widest bundle in blocks, default 5
	MaxSeedLen int // longest seed tried, in bytes, default 3
	Workers    int // search parallelism; 0 means GOMAXPROCS

	// Backend optionally accelerates single-block seed matching; nil
	// means CPU only. Diag receives one-line diagnostics (backend
	// fallback etc.); nil discards them.
	Backend gpu.Backend
	Diag    func(string)
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		BlockSize:  3,
		Passes:     DefaultPasses,
		MaxArity:   5,
		MaxSeedLen: 3,
	}
}

// normalize clamps cfg into its valid domain, replacing unset fields
// with defaults.
func (c Config) normalize() Config {
	def := DefaultConfig()
	if c.BlockSize == 0 {
		c.BlockSize = def.BlockSize
	}
	c.BlockSize = xints.Clamp(c.BlockSize, 1, fileformat.MaxBlockSize)
	if c.Passes == 0 {
		c.Passes = def.Passes
	}
	c.Passes = xints.Max(c.Passes, 1)
	if c.MaxArity == 0 {
		c.MaxArity = def.MaxArity
	}
	c.MaxArity = xints.Max(c.MaxArity, 1)
	if c.MaxSeedLen == 0 {
		c.MaxSeedLen = def.MaxSeedLen
	}
	c.MaxSeedLen = xints.Clamp(c.MaxSeedLen, 1, 7)
	return c
}

// Summary reports what Compress did, for callers that surface
// progress or a JSON report.
type Summary struct {
	Passes    int
	InputLen  int
	OutputLen int
	PassStats []pass.Stats
	// ChangedBlocks holds, per taken pass, the block indices whose
	// span assignment changed relative to the pass before it.
	ChangedBlocks [][]int
}

// Compress runs up to cfg.Passes compression passes over input and
// returns the final bitstream. Pass 1 is always taken; each further
// pass is kept only while it strictly shrinks the stream, otherwise
// the driver reverts to the previous pass's output and halts.
func Compress(ctx context.Context, input []byte, cfg Config) ([]byte, Summary, error) {
	cfg = cfg.normalize()
	d := pass.NewDriver(pass.Config{
		BlockSize:  cfg.BlockSize,
		MaxArity:   cfg.MaxArity,
		MaxSeedLen: cfg.MaxSeedLen,
		Workers:    cfg.Workers,
		Backend:    cfg.Backend,
		Diag:       cfg.Diag,
	})

	sum := Summary{InputLen: len(input)}
	cur := input
	var out []byte
	for p := 1; p <= cfg.Passes; p++ {
		res, err := d.RunOnce(ctx, cur, p)
		if err != nil {
			if p == 1 {
				return nil, Summary{}, err
			}
			// A failed pass is discarded; the previous pass's
			// bitstream is the last valid state.
			break
		}
		if p > 1 && len(res.Bytes) >= len(out) {
			break
		}
		out = res.Bytes
		cur = res.Bytes
		sum.Passes = p
		sum.PassStats = append(sum.PassStats, res.Stats)
		sum.ChangedBlocks = append(sum.ChangedBlocks, res.ChangedBlocks)
	}
	sum.OutputLen = len(out)
	return out, sum, nil
}

// Decompress reconstructs the original input from a compressed
// bitstream, unwrapping every nested pass layer and verifying each
// layer's truncated output hash along the way.
func Decompress(data []byte) ([]byte, error) {
	payload, hdr, err := pass.DecodeLayer(data)
	if err != nil {
		return nil, err
	}
	for hdr.Passes > 1 {
		inner, innerHdr, err := pass.DecodeLayer(payload)
		if err != nil {
			return nil, err
		}
		if innerHdr.Passes != hdr.Passes-1 {
			return nil, errs.Newf(errs.Header, "telomere",
				"nested layer declares %d passes, outer layer promised %d",
				innerHdr.Passes, hdr.Passes-1)
		}
		payload = inner
		hdr = innerHdr
	}
	return payload, nil
}
