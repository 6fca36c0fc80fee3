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

	"github.com/PaddlePaddle/PaddleDTX/xdb/errorx"

	"github.com/PaddlePaddle/PaddleDTX/hetero/cipher"
	"github.com/PaddlePaddle/PaddleDTX/hetero/common/vecmath"
	"github.com/PaddlePaddle/PaddleDTX/hetero/dataset"
	"github.com/PaddlePaddle/PaddleDTX/hetero/errcodes"
	"github.com/PaddlePaddle/PaddleDTX/hetero/transfer"
)

// hostStrategy holds features only, it never sees labels or plaintext residuals
type hostStrategy struct {
	op      cipher.Operator
	batches *dataset.BatchGenerator
	calls   int
}

func (s *hostStrategy) prepare(ctx context.Context, m *Model, td *trainData) error {
	var pk pubKeyMsg
	if err := m.ch.Receive(ctx, transfer.RoleArbiter, tagPubKey, &pk); err != nil {
		return err
	}
	op, err := cipher.FromPublicKey(pk.Method, pk.Key, m.params.Precision)
	if err != nil {
		return err
	}
	s.op = op
	s.batches = batchesOf(td, m.params.BatchSize)
	return nil
}

func (s *hostStrategy) iterate(ctx context.Context, m *Model, td *trainData, k int) (*iterResult, error) {
	w := m.weights.Clone()
	for b, ids := range s.batches.Batches(k) {
		rows, err := td.rows(ids)
		if err != nil {
			return nil, err
		}
		wx, err := LinearPredictor(features(td, rows), w)
		if err != nil {
			return nil, err
		}
		expWx, err := cipher.EncryptVector(s.op, vecmath.ExpVec(wx))
		if err != nil {
			return nil, err
		}
		encWx, err := cipher.EncryptVector(s.op, wx)
		if err != nil {
			return nil, err
		}
		regLoss, err := s.op.Encrypt(m.opt.penaltyLoss(w))
		if err != nil {
			return nil, err
		}
		hf := &hostForward{IDs: ids, ExpWx: expWx, Wx: encWx, RegLoss: regLoss}
		if err := m.ch.Send(ctx, transfer.RoleGuest, transfer.Tag(tagHostForward, k, b), hf); err != nil {
			return nil, err
		}

		var fg foreGradient
		if err := m.ch.Receive(ctx, transfer.RoleGuest, transfer.Tag(tagForeGradient, k, b), &fg); err != nil {
			return nil, err
		}
		if !sameIDs(fg.IDs, ids) || len(fg.D) != len(ids) {
			return nil, errorx.New(errcodes.ErrCodeProtocol, "guest gradient %d.%d is not aligned with host batch", k, b)
		}
		grad, err := encGradients(m, s.op, td, rows, fg.D, w)
		if err != nil {
			return nil, err
		}
		if err := m.ch.Send(ctx, transfer.RoleArbiter, transfer.Tag(tagHostGradient, k, b), &encGradient{Grad: grad, Count: len(rows)}); err != nil {
			return nil, err
		}

		var delta deltaMsg
		if err := m.ch.Receive(ctx, transfer.RoleArbiter, transfer.Tag(tagHostDelta, k, b), &delta); err != nil {
			return nil, err
		}
		if w, err = w.Step(delta.Delta); err != nil {
			return nil, errorx.NewCode(err, errcodes.ErrCodeProtocol, "invalid delta of batch %d.%d", k, b)
		}
	}

	var cm convergeMsg
	if err := m.ch.Receive(ctx, transfer.RoleArbiter, transfer.Tag(tagConverge, k), &cm); err != nil {
		return nil, err
	}
	return &iterResult{weights: w, loss: cm.Loss, isConverged: cm.IsConverged}, nil
}

// predict sends the host's linear predictors to the guest, the host gets no prediction back
func (s *hostStrategy) predict(ctx context.Context, m *Model, td *trainData, data *dataset.Table) (*Prediction, error) {
	tag := transfer.Tag(tagHostWx, s.calls)
	s.calls++
	wx, err := LinearPredictor(td.features, m.weights)
	if err != nil {
		return nil, err
	}
	if err := m.ch.Send(ctx, transfer.RoleGuest, tag, &hostWx{IDs: td.ids, Wx: wx}); err != nil {
		return nil, err
	}
	return nil, nil
}
