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

package evql

import (
	"testing"

	"github.com/telomere-project/telomere/bitio"
	"github.com/telomere-project/telomere/errs"
)

func TestRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 100, 1000, 1 << 20, 16_800_000}
	for _, v := range values {
		w := bitio.NewWriter()
		Encode(w, v)
		r := bitio.NewReader(w.Flush())
		got, err := Decode(r)
		if err != nil {
			t.Fatalf("Decode(%d): %v", v, err)
		}
		if got != v {
			t.Fatalf("Decode(Encode(%d)) = %d", v, got)
		}
	}
}

func TestBitsMatchesEncodedLength(t *testing.T) {
	for _, v := range []uint64{0, 2, 3, 5, 9, 12, 300} {
		w := bitio.NewWriter()
		Encode(w, v)
		if got, want := int(w.BitsConsumed()), Bits(v); got != want {
			t.Fatalf("Bits(%d) = %d, encoded length = %d", v, want, got)
		}
	}
}

func TestKnownWindowShapes(t *testing.T) {
	cases := []struct {
		v    uint64
		bits string
	}{
		{0, "00"},
		{1, "01"},
		{2, "10"},
		{3, "1100"},
		{4, "1101"},
		{5, "1110"},
		{6, "111100"},
	}
	for _, tc := range cases {
		w := bitio.NewWriter()
		Encode(w, tc.v)
		got := bitsString(w.Flush(), len(tc.bits))
		if got != tc.bits {
			t.Fatalf("Encode(%d) = %s, want %s", tc.v, got, tc.bits)
		}
	}
}

func bitsString(buf []byte, n int) string {
	r := bitio.NewReader(buf)
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		b, err := r.ReadBit()
		if err != nil {
			panic(err)
		}
		out[i] = '0' + b
	}
	return string(out)
}

func TestDecodeBoundedRejectsOutOfRange(t *testing.T) {
	w := bitio.NewWriter()
	Encode(w, 9) // tier 3, would-be block size 9 if max were 8
	r := bitio.NewReader(w.Flush())
	if _, err := DecodeBounded(r, 8); !errs.Is(err, errs.Header) {
		t.Fatalf("expected Header error, got %v", err)
	}
}

func TestDecodeBoundedAcceptsInRange(t *testing.T) {
	w := bitio.NewWriter()
	Encode(w, 7)
	r := bitio.NewReader(w.Flush())
	got, err := DecodeBounded(r, 15)
	if err != nil {
		t.Fatal(err)
	}
	if got != 7 {
		t.Fatalf("got %d, want 7", got)
	}
}

func TestDecodeTruncatedFails(t *testing.T) {
	w := bitio.NewWriter()
	w.WriteBits(windowContinue, windowBits)
	buf := w.Flush()
	// Flush pads the continuation window with zero bits, which would
	// read back as a terminal window; hand the reader an empty slice
	// instead so the very first window read runs past the end.
	r := bitio.NewReader(buf[:0])
	if _, err := Decode(r); !errs.Is(err, errs.Header) {
		t.Fatalf("expected Header error on truncated input, got %v", err)
	}
}
