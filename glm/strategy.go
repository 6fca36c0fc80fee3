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
	"sort"

	"github.com/PaddlePaddle/PaddleDTX/xdb/errorx"

	"github.com/PaddlePaddle/PaddleDTX/hetero/cipher"
	"github.com/PaddlePaddle/PaddleDTX/hetero/common/vecmath"
	"github.com/PaddlePaddle/PaddleDTX/hetero/dataset"
	"github.com/PaddlePaddle/PaddleDTX/hetero/errcodes"
)

// strategy is the per role part of training and prediction.
// prepare runs once per fit after local checks, iterate runs one full pass over the batches of iteration k.
type strategy interface {
	prepare(ctx context.Context, m *Model, td *trainData) error
	iterate(ctx context.Context, m *Model, td *trainData, k int) (*iterResult, error)
	predict(ctx context.Context, m *Model, td *trainData, data *dataset.Table) (*Prediction, error)
}

// message tags
const (
	tagPubKey        = "pubkey"
	tagBatchInfo     = "batch_info"
	tagHostForward   = "host_forward"
	tagForeGradient  = "fore_gradient"
	tagGuestGradient = "guest_gradient"
	tagHostGradient  = "host_gradient"
	tagGuestDelta    = "guest_delta"
	tagHostDelta     = "host_delta"
	tagLoss          = "loss"
	tagConverge      = "converge"
	tagHostWx        = "host_wx"
)

type pubKeyMsg struct {
	Method string `json:"method"`
	Key    []byte `json:"key"`
}

type batchInfo struct {
	BatchNum int `json:"batch_num"`
}

// hostForward carries enc(exp(wx_h)), enc(wx_h) of a batch and the host's encrypted penalty
type hostForward struct {
	IDs     []string             `json:"ids"`
	ExpWx   []*cipher.Ciphertext `json:"exp_wx"`
	Wx      []*cipher.Ciphertext `json:"wx"`
	RegLoss *cipher.Ciphertext   `json:"reg_loss"`
}

// foreGradient carries enc(mu_i - y_i) of a batch
type foreGradient struct {
	IDs []string             `json:"ids"`
	D   []*cipher.Ciphertext `json:"d"`
}

// encGradient is the summed gradient of a batch, the arbiter divides it by Count
type encGradient struct {
	Grad  []*cipher.Ciphertext `json:"grad"`
	Count int                  `json:"count"`
}

type deltaMsg struct {
	Delta []float64 `json:"delta"`
}

// encLoss is the summed loss of a batch plus the penalty of both parties
type encLoss struct {
	Sum     *cipher.Ciphertext `json:"sum"`
	Penalty *cipher.Ciphertext `json:"penalty"`
	Count   int                `json:"count"`
}

type convergeMsg struct {
	Loss        float64 `json:"loss"`
	IsConverged bool    `json:"is_converged"`
}

type hostWx struct {
	IDs []string  `json:"ids"`
	Wx  []float64 `json:"wx"`
}

// batchesOf returns a generator both data parties derive identically from the shared IDs
func batchesOf(td *trainData, batchSize int) *dataset.BatchGenerator {
	ids := append([]string{}, td.ids...)
	sort.Strings(ids)
	return dataset.NewBatchGenerator(ids, batchSize)
}

// encGradients returns sum_i d_i * x_ij for every weight slot j, plus n times the penalty gradient
func encGradients(m *Model, op cipher.Operator, td *trainData, rows []int, d []*cipher.Ciphertext, w *Weights) ([]*cipher.Ciphertext, error) {
	pg := m.opt.penaltyGradient(w)
	n := float64(len(rows))
	grad := make([]*cipher.Ciphertext, 0, len(pg))
	for j := range pg {
		var (
			g   *cipher.Ciphertext
			err error
		)
		if j == len(td.header) {
			g, err = cipher.Sum(op, d)
		} else {
			g, err = cipher.WeightedSum(op, d, td.column(rows, j))
		}
		if err != nil {
			return nil, errorx.Wrap(err, "failed to aggregate gradient of slot %d", j)
		}
		if pg[j] != 0 {
			if g, err = op.AddPlain(g, n*pg[j]); err != nil {
				return nil, err
			}
		}
		grad = append(grad, g)
	}
	return grad, nil
}

// decryptGradient returns the mean gradient of a batch
func decryptGradient(op cipher.Operator, eg *encGradient) (vecmath.Vector, error) {
	if eg.Count <= 0 {
		return nil, errorx.New(errcodes.ErrCodeProtocol, "gradient of an empty batch")
	}
	grad, err := cipher.DecryptVector(op, eg.Grad)
	if err != nil {
		return nil, err
	}
	return vecmath.Scale(1/float64(eg.Count), grad), nil
}

func sameIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func features(td *trainData, rows []int) []vecmath.Vector {
	xs := make([]vecmath.Vector, 0, len(rows))
	for _, r := range rows {
		xs = append(xs, td.features[r])
	}
	return xs
}

func pick(v []float64, rows []int) []float64 {
	if v == nil {
		return nil
	}
	out := make([]float64, 0, len(rows))
	for _, r := range rows {
		out = append(out, v[r])
	}
	return out
}
