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
	"math"

	"github.com/PaddlePaddle/PaddleDTX/xdb/errorx"

	"github.com/PaddlePaddle/PaddleDTX/hetero/cipher"
	"github.com/PaddlePaddle/PaddleDTX/hetero/common/vecmath"
	"github.com/PaddlePaddle/PaddleDTX/hetero/dataset"
	"github.com/PaddlePaddle/PaddleDTX/hetero/errcodes"
	"github.com/PaddlePaddle/PaddleDTX/hetero/transfer"
)

// guestStrategy holds labels, exposure and the intercept.
// It turns the host's encrypted forward values into encrypted residuals and the encrypted loss.
type guestStrategy struct {
	op      cipher.Operator
	batches *dataset.BatchGenerator
	calls   int
}

func (s *guestStrategy) prepare(ctx context.Context, m *Model, td *trainData) error {
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
	return m.ch.Send(ctx, transfer.RoleArbiter, tagBatchInfo, &batchInfo{BatchNum: s.batches.BatchNum()})
}

func (s *guestStrategy) iterate(ctx context.Context, m *Model, td *trainData, k int) (*iterResult, error) {
	w := m.weights.Clone()
	for b, ids := range s.batches.Batches(k) {
		rows, err := td.rows(ids)
		if err != nil {
			return nil, err
		}
		var hf hostForward
		if err := m.ch.Receive(ctx, transfer.RoleHost, transfer.Tag(tagHostForward, k, b), &hf); err != nil {
			return nil, err
		}
		if !sameIDs(hf.IDs, ids) || len(hf.ExpWx) != len(ids) || len(hf.Wx) != len(ids) {
			return nil, errorx.New(errcodes.ErrCodeProtocol, "host batch %d.%d is not aligned with guest batch", k, b)
		}

		wx, err := LinearPredictor(features(td, rows), w)
		if err != nil {
			return nil, err
		}
		y := pick(td.labels, rows)
		e := pick(td.exposure, rows)

		d, lossSum, err := s.residuals(m, &hf, wx, y, e, b)
		if err != nil {
			return nil, err
		}
		if err := m.ch.Send(ctx, transfer.RoleHost, transfer.Tag(tagForeGradient, k, b), &foreGradient{IDs: ids, D: d}); err != nil {
			return nil, err
		}

		grad, err := encGradients(m, s.op, td, rows, d, w)
		if err != nil {
			return nil, err
		}
		if err := m.ch.Send(ctx, transfer.RoleArbiter, transfer.Tag(tagGuestGradient, k, b), &encGradient{Grad: grad, Count: len(rows)}); err != nil {
			return nil, err
		}

		penalty, err := s.op.AddPlain(hf.RegLoss, m.opt.penaltyLoss(w))
		if err != nil {
			return nil, err
		}
		if err := m.ch.Send(ctx, transfer.RoleArbiter, transfer.Tag(tagLoss, k, b), &encLoss{Sum: lossSum, Penalty: penalty, Count: len(rows)}); err != nil {
			return nil, err
		}

		var delta deltaMsg
		if err := m.ch.Receive(ctx, transfer.RoleArbiter, transfer.Tag(tagGuestDelta, k, b), &delta); err != nil {
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

// residuals returns enc(mu_i - y_i) of every record and the encrypted summed loss of the batch,
// mu_i = exp(wx_h_i) * exp(wx_g_i) / e_i and loss_i = mu_i - y_i * (wx_h_i + wx_g_i - log e_i)
func (s *guestStrategy) residuals(m *Model, hf *hostForward, wx, y, e []float64, b int) ([]*cipher.Ciphertext, *cipher.Ciphertext, error) {
	reEncrypt := m.params.ReEncryptBatches > 0 && (b+1)%m.params.ReEncryptBatches == 0
	d := make([]*cipher.Ciphertext, 0, len(wx))
	terms := make([]*cipher.Ciphertext, 0, len(wx))
	for i := range wx {
		logE := 0.0
		factor := vecmath.Exp(wx[i])
		if e != nil {
			logE = math.Log(e[i])
			factor /= e[i]
		}
		mu, err := s.op.MulScalar(hf.ExpWx[i], factor)
		if err != nil {
			return nil, nil, err
		}
		di, err := s.op.AddPlain(mu, -y[i])
		if err != nil {
			return nil, nil, err
		}
		if reEncrypt {
			if di, err = s.op.Rerandomize(di); err != nil {
				return nil, nil, err
			}
		}
		d = append(d, di)

		yWxh, err := s.op.MulScalar(hf.Wx[i], -y[i])
		if err != nil {
			return nil, nil, err
		}
		li, err := s.op.Add(mu, yWxh)
		if err != nil {
			return nil, nil, err
		}
		if li, err = s.op.AddPlain(li, -y[i]*(wx[i]-logE)); err != nil {
			return nil, nil, err
		}
		terms = append(terms, li)
	}
	sum, err := cipher.Sum(s.op, terms)
	if err != nil {
		return nil, nil, err
	}
	return d, sum, nil
}

func (s *guestStrategy) predict(ctx context.Context, m *Model, td *trainData, data *dataset.Table) (*Prediction, error) {
	tag := transfer.Tag(tagHostWx, s.calls)
	s.calls++
	var hw hostWx
	if err := m.ch.Receive(ctx, transfer.RoleHost, tag, &hw); err != nil {
		return nil, err
	}
	if len(hw.IDs) != len(hw.Wx) {
		return nil, errorx.New(errcodes.ErrCodeProtocol, "host sent %d ids with %d predictors", len(hw.IDs), len(hw.Wx))
	}
	hostWxOf := make(map[string]float64, len(hw.IDs))
	for i, id := range hw.IDs {
		hostWxOf[id] = hw.Wx[i]
	}

	wx, err := LinearPredictor(td.features, m.weights)
	if err != nil {
		return nil, err
	}
	for i, id := range td.ids {
		h, ok := hostWxOf[id]
		if !ok {
			return nil, errorx.New(errcodes.ErrCodeProtocol, "record %s missing in host predictors", id)
		}
		wx[i] += h
	}
	return &Prediction{IDs: td.ids, Mu: MuFromLinear(wx, td.exposure), Labels: labelsOf(data)}, nil
}
