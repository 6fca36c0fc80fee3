// Copyright (c) 2021 PaddlePaddle Authors. All Rights Reserved.
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package dataset

import (
	"fmt"
	"sort"

	"github.com/PaddlePaddle/PaddleDTX/crypto/core/hash"
)

// BatchGenerator splits aligned record IDs into mini batches.
// Parties holding the same IDs derive the same batches for the same round
// regardless of their local record order.
type BatchGenerator struct {
	ids       []string
	batchSize int
}

// NewBatchGenerator creates a generator, batchSize <= 0 or >= len(ids) means one full batch
func NewBatchGenerator(ids []string, batchSize int) *BatchGenerator {
	if batchSize <= 0 || batchSize >= len(ids) {
		batchSize = len(ids)
	}
	return &BatchGenerator{
		ids:       append([]string{}, ids...),
		batchSize: batchSize,
	}
}

// BatchNum returns the number of batches per round
func (bg *BatchGenerator) BatchNum() int {
	if len(bg.ids) == 0 {
		return 0
	}
	return (len(bg.ids) + bg.batchSize - 1) / bg.batchSize
}

// Batches returns the batches of IDs for round.
// A full batch keeps the original order, otherwise IDs are rearranged in
// deterministic random order by hash(id+round) before slicing.
func (bg *BatchGenerator) Batches(round int) [][]string {
	if bg.BatchNum() == 0 {
		return nil
	}
	if bg.batchSize == len(bg.ids) {
		return [][]string{append([]string{}, bg.ids...)}
	}

	ordered := bg.reorder(round)
	batches := make([][]string, 0, bg.BatchNum())
	for start := 0; start < len(ordered); start += bg.batchSize {
		end := start + bg.batchSize
		if end > len(ordered) {
			end = len(ordered)
		}
		batches = append(batches, ordered[start:end])
	}
	return batches
}

func (bg *BatchGenerator) reorder(round int) []string {
	hashID := make(map[string]string, len(bg.ids))
	hashes := make([]string, 0, len(bg.ids))
	for _, id := range bg.ids {
		s := string(hash.HashUsingSha256([]byte(fmt.Sprintf("%s+%d", id, round))))
		hashID[s] = id
		hashes = append(hashes, s)
	}
	sort.Strings(hashes)

	ordered := make([]string, 0, len(hashes))
	for _, h := range hashes {
		ordered = append(ordered, hashID[h])
	}
	return ordered
}
