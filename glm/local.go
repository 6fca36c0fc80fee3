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

package glm

import (
	"context"

	"github.com/PaddlePaddle/PaddleDTX/hetero/cipher"
	"github.com/PaddlePaddle/PaddleDTX/hetero/common/vecmath"
	"github.com/PaddlePaddle/PaddleDTX/hetero/dataset"
)

// localStrategy trains on the features and labels of one party.
// Per record gradient terms are aggregated under the cipher and decrypted once per weight slot.
type localStrategy struct {
	batches *dataset.BatchGenerator
}

func (s *localStrategy) prepare(ctx context.Context, m *Model, td *trainData) error {
	s.batches = batchesOf(td, m.params.BatchSize)
	return nil
}

func (s *localStrategy) iterate(ctx context.Context, m *Model, td *trainData, k int) (*iterResult, error) {
	w := m.weights.Clone()
	var (
		lossSum  float64
		deltaSum vecmath.Vector
	)
	batches := s.batches.Batches(k)
	for _, ids := range batches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := td.rows(ids)
		if err != nil {
			return nil, err
		}
		y := pick(td.labels, rows)
		mu, err := ComputeMu(features(td, rows), w, pick(td.exposure, rows))
		if err != nil {
			return nil, err
		}
		lossSum += poissonLoss(mu, y) + m.opt.penaltyLoss(w)

		residual := make([]float64, len(mu))
		for i := range mu {
			residual[i] = mu[i] - y[i]
		}
		d, err := cipher.EncryptVector(m.op, residual)
		if err != nil {
			return nil, err
		}
		encGrad, err := encGradients(m, m.op, td, rows, d, w)
		if err != nil {
			return nil, err
		}
		grad, err := decryptGradient(m.op, &encGradient{Grad: encGrad, Count: len(rows)})
		if err != nil {
			return nil, err
		}

		delta := m.opt.delta(grad, k)
		if w, err = w.Step(delta); err != nil {
			return nil, err
		}
		if deltaSum == nil {
			deltaSum = delta
		} else if deltaSum, err = vecmath.AddScaled(deltaSum, 1, delta); err != nil {
			return nil, err
		}
	}

	loss := lossSum / float64(len(batches))
	return &iterResult{
		weights:     w,
		loss:        loss,
		isConverged: m.converge.IsConverged(loss, m.lastLoss(), deltaSum),
	}, nil
}

func (s *localStrategy) predict(ctx context.Context, m *Model, td *trainData, data *dataset.Table) (*Prediction, error) {
	mu, err := ComputeMu(td.features, m.weights, td.exposure)
	if err != nil {
		return nil, err
	}
	return &Prediction{IDs: td.ids, Mu: mu, Labels: labelsOf(data)}, nil
}
