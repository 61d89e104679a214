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

// Package fileformat implements the Telomere file header: format
// version, pass count, block size, last-block length, and original
// input length (all EVQL-encoded), followed by a 13-bit truncated
// SHA-256 of the
// decompressed output. Bit layout and the truncation rule (the low 13
// bits of the digest's last two bytes) are grounded on the project's
// own earlier fixed-width 3-byte header, which this format
// generalizes to EVQL so block_size and original_len are no longer
// bounded to 4 and 13 bits respectively.
package fileformat

import (
	"crypto/sha256"

	"github.com/telomere-project/telomere/bitio"
	"github.com/telomere-project/telomere/errs"
	"github.com/telomere-project/telomere/evql"
)

// CurrentVersion is the only format version this implementation
// writes or accepts.
const CurrentVersion = 0

// OutputHashBits is the width of the whole-file integrity field.
const OutputHashBits = 13

// MaxBlockSize is the encoder-configurable upper bound from spec §3.
const MaxBlockSize = 255

// Header is the Telomere file header.
type Header struct {
	Version      uint64
	Passes       uint64 // nested layers at or below this one, inclusive; 1 means no further nesting
	BlockSize    int
	LastBlockLen int
	OriginalLen  uint64
	OutputHash   uint16 // low 13 bits significant
}

// TruncatedHash13 returns the low 13 bits of the last two bytes of
// SHA-256(data), the whole-file integrity check.
func TruncatedHash13(data []byte) uint16 {
	sum := sha256.Sum256(data)
	low := uint16(sum[30])<<8 | uint16(sum[31])
	return low & 0x1FFF
}

// WriteHeader writes h's fields to w. The caller must call w.Flush()
// (or otherwise byte-align) immediately afterward, before writing the
// first batch, per spec §4.9.
func WriteHeader(w *bitio.Writer, h Header) {
	evql.Encode(w, h.Version)
	evql.Encode(w, h.Passes)
	evql.Encode(w, uint64(h.BlockSize))
	evql.Encode(w, uint64(h.LastBlockLen))
	evql.Encode(w, h.OriginalLen)
	w.WriteBits(uint64(h.OutputHash&0x1FFF), OutputHashBits)
}

// ReadHeader reads a file header from r. The caller must call
// r.Align() immediately afterward, before reading the first batch.
func ReadHeader(r *bitio.Reader) (Header, error) {
	version, err := evql.DecodeBounded(r, 7)
	if err != nil {
		return Header{}, errs.Wrap(errs.Header, "fileformat", "malformed version field", err)
	}
	if version != CurrentVersion {
		return Header{}, errs.Newf(errs.Header, "fileformat", "unknown format version %d", version)
	}

	passes, err := evql.Decode(r)
	if err != nil {
		return Header{}, errs.Wrap(errs.Header, "fileformat", "malformed pass-count field", err)
	}
	if passes == 0 {
		return Header{}, errs.New(errs.Header, "fileformat", "pass count must be at least 1")
	}

	blockSizeVal, err := evql.DecodeBounded(r, MaxBlockSize)
	if err != nil {
		return Header{}, errs.Wrap(errs.Header, "fileformat", "malformed block-size field", err)
	}
	if blockSizeVal == 0 {
		return Header{}, errs.New(errs.Header, "fileformat", "block size must be at least 1")
	}

	lastBlockLenVal, err := evql.DecodeBounded(r, blockSizeVal)
	if err != nil {
		return Header{}, errs.Wrap(errs.Header, "fileformat", "malformed last-block-length field", err)
	}
	if lastBlockLenVal == 0 {
		return Header{}, errs.New(errs.Header, "fileformat", "last block length must be at least 1")
	}

	originalLen, err := evql.Decode(r)
	if err != nil {
		return Header{}, errs.Wrap(errs.Header, "fileformat", "malformed original-length field", err)
	}
	if originalLen > 0 {
		want := originalLen % blockSizeVal
		if want == 0 {
			want = blockSizeVal
		}
		if want != lastBlockLenVal {
			return Header{}, errs.Newf(errs.Header, "fileformat", "last block length %d inconsistent with original length %d and block size %d", lastBlockLenVal, originalLen, blockSizeVal)
		}
	}

	hashBits, err := r.ReadBits(OutputHashBits)
	if err != nil {
		return Header{}, errs.Wrap(errs.Header, "fileformat", "truncated output-hash field", err)
	}

	return Header{
		Version:      version,
		Passes:       passes,
		BlockSize:    int(blockSizeVal),
		LastBlockLen: int(lastBlockLenVal),
		OriginalLen:  originalLen,
		OutputHash:   uint16(hashBits),
	}, nil
}
