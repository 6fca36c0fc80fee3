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

	"github.com/PaddlePaddle/PaddleDTX/hetero/common/vecmath"
	"github.com/PaddlePaddle/PaddleDTX/hetero/dataset"
	"github.com/PaddlePaddle/PaddleDTX/hetero/errcodes"
	"github.com/PaddlePaddle/PaddleDTX/hetero/transfer"
)

// arbiterStrategy holds the private key, it decrypts gradients and losses and decides convergence.
// It holds no data and no weights.
type arbiterStrategy struct {
	batchNum int
}

func (s *arbiterStrategy) prepare(ctx context.Context, m *Model, td *trainData) error {
	key, err := m.op.PublicKey()
	if err != nil {
		return err
	}
	pk := &pubKeyMsg{Method: m.op.Method(), Key: key}
	for _, to := range []string{transfer.RoleGuest, transfer.RoleHost} {
		if err := m.ch.Send(ctx, to, tagPubKey, pk); err != nil {
			return err
		}
	}
	var bi batchInfo
	if err := m.ch.Receive(ctx, transfer.RoleGuest, tagBatchInfo, &bi); err != nil {
		return err
	}
	if bi.BatchNum <= 0 {
		return errorx.New(errcodes.ErrCodeProtocol, "invalid batch number %d", bi.BatchNum)
	}
	s.batchNum = bi.BatchNum
	return nil
}

func (s *arbiterStrategy) iterate(ctx context.Context, m *Model, td *trainData, k int) (*iterResult, error) {
	var (
		lossSum    float64
		guestDelta vecmath.Vector
		hostDelta  vecmath.Vector
		err        error
	)
	for b := 0; b < s.batchNum; b++ {
		if guestDelta, err = s.answerGradient(ctx, m, transfer.RoleGuest, k, b, guestDelta); err != nil {
			return nil, err
		}
		if hostDelta, err = s.answerGradient(ctx, m, transfer.RoleHost, k, b, hostDelta); err != nil {
			return nil, err
		}

		var el encLoss
		if err := m.ch.Receive(ctx, transfer.RoleGuest, transfer.Tag(tagLoss, k, b), &el); err != nil {
			return nil, err
		}
		if el.Count <= 0 || el.Sum == nil || el.Penalty == nil {
			return nil, errorx.New(errcodes.ErrCodeProtocol, "invalid loss of batch %d.%d", k, b)
		}
		sum, err := m.op.Decrypt(el.Sum)
		if err != nil {
			return nil, err
		}
		penalty, err := m.op.Decrypt(el.Penalty)
		if err != nil {
			return nil, err
		}
		lossSum += sum/float64(el.Count) + penalty
	}

	loss := lossSum / float64(s.batchNum)
	delta := append(guestDelta.Clone(), hostDelta...)
	cm := &convergeMsg{
		Loss:        loss,
		IsConverged: m.converge.IsConverged(loss, m.lastLoss(), delta),
	}
	for _, to := range []string{transfer.RoleGuest, transfer.RoleHost} {
		if err := m.ch.Send(ctx, to, transfer.Tag(tagConverge, k), cm); err != nil {
			return nil, err
		}
	}
	return &iterResult{loss: cm.Loss, isConverged: cm.IsConverged}, nil
}

// answerGradient decrypts the gradient of party, sends back its step and returns acc plus the step
func (s *arbiterStrategy) answerGradient(ctx context.Context, m *Model, party string, k, b int, acc vecmath.Vector) (vecmath.Vector, error) {
	gradTag, deltaTag := tagGuestGradient, tagGuestDelta
	if party == transfer.RoleHost {
		gradTag, deltaTag = tagHostGradient, tagHostDelta
	}
	var eg encGradient
	if err := m.ch.Receive(ctx, party, transfer.Tag(gradTag, k, b), &eg); err != nil {
		return nil, err
	}
	grad, err := decryptGradient(m.op, &eg)
	if err != nil {
		return nil, err
	}
	delta := m.opt.delta(grad, k)
	if err := m.ch.Send(ctx, party, transfer.Tag(deltaTag, k, b), &deltaMsg{Delta: delta}); err != nil {
		return nil, err
	}
	if acc == nil {
		return delta, nil
	}
	return vecmath.AddScaled(acc, 1, delta)
}

func (s *arbiterStrategy) predict(ctx context.Context, m *Model, td *trainData, data *dataset.Table) (*Prediction, error) {
	return nil, nil
}
