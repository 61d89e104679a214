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

package gpu

import (
	"testing"

	"github.com/telomere-project/telomere/seed"
	"github.com/telomere-project/telomere/superposition"
)

func TestCPUBackendAvailable(t *testing.T) {
	var b Backend = CPUBackend{}
	if !b.Available() {
		t.Fatal("CPUBackend should always be available")
	}
}

func TestCPUBackendFindsPlantedSeed(t *testing.T) {
	planted := seed.Of(17)
	target := seed.G(planted, 3)
	buf := append([]byte{0xFF, 0xFF, 0xFF}, target...)

	b := CPUBackend{}
	log, err := b.Match(buf, []int{3}, []int{3}, 1, 64, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(log) != 1 || log[0].SeedIndex != 17 {
		t.Fatalf("got %+v, want a single match at seed index 17", log)
	}
}

func TestFoldAddsCandidateWithoutMutatingLog(t *testing.T) {
	store := superposition.New()
	store.Set(5, nil)
	log := []MatchRecord{{SeedIndex: 9, BlockIndex: 0}}
	logCopy := append([]MatchRecord(nil), log...)

	Fold(log, []int{5}, store)

	if len(log) != len(logCopy) || log[0] != logCopy[0] {
		t.Fatal("Fold must not mutate the backend's match log")
	}
	cands := store.Candidates(5)
	if len(cands) != 1 || cands[0].Span.SeedIndex != 9 {
		t.Fatalf("expected one folded candidate at seed 9, got %+v", cands)
	}
}
