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

package block

import (
	"bytes"
	"testing"
)

func TestNewTablePartitioning(t *testing.T) {
	data := []byte{0, 1, 2, 3, 4, 5, 6, 7, 8}
	tbl, err := NewTable(data, 3)
	if err != nil {
		t.Fatal(err)
	}
	if tbl.NumBlocks() != 3 {
		t.Fatalf("NumBlocks() = %d, want 3", tbl.NumBlocks())
	}
	if tbl.LastBlockLen != 3 {
		t.Fatalf("LastBlockLen = %d, want 3", tbl.LastBlockLen)
	}
}

func TestShortFinalBlock(t *testing.T) {
	tbl, err := NewTable([]byte("Hi"), 3)
	if err != nil {
		t.Fatal(err)
	}
	if tbl.NumBlocks() != 1 {
		t.Fatalf("NumBlocks() = %d, want 1", tbl.NumBlocks())
	}
	if tbl.LastBlockLen != 2 {
		t.Fatalf("LastBlockLen = %d, want 2", tbl.LastBlockLen)
	}
	if !bytes.Equal(tbl.SpanBytes(0, 1), []byte("Hi")) {
		t.Fatalf("SpanBytes(0,1) = %q", tbl.SpanBytes(0, 1))
	}
}

func TestSpanBytesMultiBlock(t *testing.T) {
	data := []byte{0, 1, 2, 3, 4, 5, 6, 7, 8}
	tbl, _ := NewTable(data, 3)
	got := tbl.SpanBytes(0, 3)
	if !bytes.Equal(got, data) {
		t.Fatalf("SpanBytes(0,3) = %v, want %v", got, data)
	}
	got = tbl.SpanBytes(1, 2)
	if !bytes.Equal(got, data[3:9]) {
		t.Fatalf("SpanBytes(1,2) = %v, want %v", got, data[3:9])
	}
}

func TestSpanOverlap(t *testing.T) {
	a := Span{Start: 0, Arity: 3}
	b := Span{Start: 2, Arity: 1}
	c := Span{Start: 3, Arity: 1}
	if !a.Overlaps(b) {
		t.Fatal("expected overlap")
	}
	if a.Overlaps(c) {
		t.Fatal("expected no overlap")
	}
}

func TestStackPushPopCurrent(t *testing.T) {
	var s Stack
	if s.Current() != nil {
		t.Fatal("expected nil current on empty stack")
	}
	t0, _ := NewTable([]byte{1, 2, 3}, 3)
	t1, _ := NewTable([]byte{1, 2, 3, 4, 5, 6}, 3)
	s.Push(t0)
	s.Push(t1)
	if s.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", s.Len())
	}
	if s.Current() != t1 {
		t.Fatal("Current() should be the most recently pushed table")
	}
	popped := s.Pop()
	if popped != t1 {
		t.Fatal("Pop() should return the most recently pushed table")
	}
	if s.Current() != t0 {
		t.Fatal("Current() should roll back to the previous table")
	}
}

func TestEmptyInputHasZeroBlocks(t *testing.T) {
	tbl, err := NewTable(nil, 3)
	if err != nil {
		t.Fatal(err)
	}
	if tbl.NumBlocks() != 0 {
		t.Fatalf("NumBlocks() = %d, want 0", tbl.NumBlocks())
	}
}
