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

package pass

import (
	"errors"

	"github.com/telomere-project/telomere/arity"
	"github.com/telomere-project/telomere/batch"
	"github.com/telomere-project/telomere/bitio"
	"github.com/telomere-project/telomere/errs"
	"github.com/telomere-project/telomere/evql"
	"github.com/telomere-project/telomere/fileformat"
	"github.com/telomere-project/telomere/internal/xints"
	"github.com/telomere-project/telomere/seed"
)

// DecodeLayer undoes a single pass: it parses one layer's file header
// and batches out of data and returns the reconstructed payload (the
// previous pass's bitstream, or the original input for the innermost
// layer) along with the parsed header. Decode is strictly sequential;
// every decoder error is fatal to the whole decode.
func DecodeLayer(data []byte) ([]byte, fileformat.Header, error) {
	r := bitio.NewReader(data)
	hdr, err := fileformat.ReadHeader(r)
	if err != nil {
		return nil, fileformat.Header{}, err
	}
	r.Align()

	totalBlocks := 0
	if hdr.OriginalLen > 0 {
		totalBlocks = xints.CeilDiv(int(hdr.OriginalLen), hdr.BlockSize)
	}
	blockLen := func(b int) int {
		if b == totalBlocks-1 {
			return hdr.LastBlockLen
		}
		return hdr.BlockSize
	}

	out := make([]byte, 0, hdr.OriginalLen)
	nextBlock := 0
	batchIdx := 0
	for nextBlock < totalBlocks {
		r.Align()
		bc, hash, err := batch.ReadHeader(r)
		if err != nil {
			return nil, hdr, withBatch(err, batchIdx)
		}
		if bc == 0 {
			return nil, hdr, errs.New(errs.Header, "pass", "batch covers zero blocks").
				WithBatch(batchIdx).WithBitOffset(r.BitsConsumed())
		}

		payload, covered, err := decodeBatchSpans(r, bc, nextBlock, totalBlocks, blockLen)
		if err != nil {
			return nil, hdr, withBatch(err, batchIdx)
		}
		if err := batch.CheckHash(payload, hash, batchIdx); err != nil {
			return nil, hdr, err
		}
		out = append(out, payload...)
		nextBlock += covered
		batchIdx++
	}

	if uint64(len(out)) != hdr.OriginalLen {
		return nil, hdr, errs.Newf(errs.Internal, "pass",
			"reconstructed %d bytes, header promised %d", len(out), hdr.OriginalLen)
	}
	if got := fileformat.TruncatedHash13(out); got != hdr.OutputHash {
		return nil, hdr, errs.Newf(errs.HashMismatch, "pass",
			"output hash %04x != header hash %04x", got, hdr.OutputHash)
	}
	return out, hdr, nil
}

// decodeBatchSpans reads one batch's span headers and payloads. The
// block-count field decrements by each seed span's arity and by one
// per literal span; the encoder's packing rule (a batch holding a
// literal admits only single-block spans) makes the two block-count
// interpretations coincide under that schedule.
func decodeBatchSpans(r *bitio.Reader, bc, nextBlock, totalBlocks int, blockLen func(int) int) ([]byte, int, error) {
	var payload []byte
	covered := 0
	remaining := bc
	for remaining > 0 {
		code, err := arity.Decode(r)
		if err != nil {
			return nil, 0, err
		}
		if code.Literal {
			b := nextBlock + covered
			if b >= totalBlocks {
				return nil, 0, errs.New(errs.Header, "pass", "literal span past final block").
					WithBitOffset(r.BitsConsumed())
			}
			n := blockLen(b)
			for i := 0; i < n; i++ {
				v, err := r.ReadBits(8)
				if err != nil {
					return nil, 0, errs.Wrap(errs.Io, "pass", "truncated literal payload", err).
						WithBitOffset(r.BitsConsumed())
				}
				payload = append(payload, byte(v))
			}
			covered++
			remaining--
			continue
		}

		a := code.Arity
		if a > remaining {
			return nil, 0, errs.Newf(errs.Arity, "pass",
				"span arity %d exceeds batch's %d remaining blocks", a, remaining).
				WithBitOffset(r.BitsConsumed())
		}
		if nextBlock+covered+a > totalBlocks {
			return nil, 0, errs.Newf(errs.Header, "pass",
				"span of arity %d runs past the final block", a).
				WithBitOffset(r.BitsConsumed())
		}
		idx, err := evql.Decode(r)
		if err != nil {
			return nil, 0, err
		}
		if idx >= seed.MaxIndex() {
			return nil, 0, errs.Newf(errs.SeedSearch, "pass", "seed index %d out of range", idx).
				WithBitOffset(r.BitsConsumed())
		}
		n := 0
		for b := nextBlock + covered; b < nextBlock+covered+a; b++ {
			n += blockLen(b)
		}
		payload = append(payload, seed.G(seed.Of(idx), n)...)
		covered += a
		remaining -= a
	}
	return payload, covered, nil
}

// withBatch stamps a batch index onto a Telomere error that does not
// already carry one.
func withBatch(err error, idx int) error {
	var te *errs.Error
	if errors.As(err, &te) && te.BatchIndex < 0 {
		cp := te.WithBatch(idx)
		return cp
	}
	return err
}
