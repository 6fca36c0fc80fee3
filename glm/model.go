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

// Package glm implements hetero poisson regression trained on encrypted gradients.
// A Model owns weights and convergence state, the per role protocol lives in a strategy.
package glm

import (
	"context"
	"math"

	"github.com/PaddlePaddle/PaddleDTX/xdb/errorx"
	"github.com/sirupsen/logrus"

	"github.com/PaddlePaddle/PaddleDTX/hetero/cipher"
	"github.com/PaddlePaddle/PaddleDTX/hetero/common/vecmath"
	"github.com/PaddlePaddle/PaddleDTX/hetero/dataset"
	"github.com/PaddlePaddle/PaddleDTX/hetero/errcodes"
	"github.com/PaddlePaddle/PaddleDTX/hetero/transfer"
)

// RoleLocal trains on one party's data without any peer
const RoleLocal = "local"

var logger = logrus.WithField("module", "glm")

// LossCallback is invoked once per finished iteration
type LossCallback func(iter int, loss float64)

// Model is the training core of poisson regression
type Model struct {
	role     string
	params   Params
	ch       transfer.Channel
	op       cipher.Operator
	strategy strategy
	converge ConvergeFunc
	opt      *optimizer
	callback LossCallback

	header      []string
	weights     *Weights
	nIter       int
	lossHistory []float64
	isConverged bool
}

// NewModel creates the model of role. ch may be nil for RoleLocal.
func NewModel(role string, params Params, ch transfer.Channel) (*Model, error) {
	m := &Model{role: role, ch: ch}
	if err := m.InitModel(params); err != nil {
		return nil, err
	}
	return m, nil
}

// InitModel binds hyperparameters, picks the cipher and the role strategy
func (m *Model) InitModel(params Params) error {
	if err := params.Validate(); err != nil {
		return err
	}
	switch m.role {
	case transfer.RoleHost:
		// the intercept and the exposure belong to the guest
		if params.FitIntercept || params.ExposureIndex != -1 {
			logger.Debug("host ignores fit_intercept and exposure_index")
		}
		params.FitIntercept = false
		params.ExposureIndex = -1
		m.strategy = &hostStrategy{}
	case transfer.RoleGuest:
		m.strategy = &guestStrategy{}
	case transfer.RoleArbiter:
		params.ExposureIndex = -1
		m.strategy = &arbiterStrategy{}
	case RoleLocal:
		m.strategy = &localStrategy{}
	default:
		return errorx.New(errcodes.ErrCodeConfig, "unsupported role %s", m.role)
	}
	if m.role != RoleLocal && m.ch == nil {
		return errorx.New(errcodes.ErrCodeConfig, "role %s requires a transfer channel", m.role)
	}

	converge, err := NewConvergeFunc(params.ConvergeFunc, params.Eps)
	if err != nil {
		return err
	}
	// only the key holder generates key material, the others receive the public key
	if m.role == transfer.RoleArbiter || m.role == RoleLocal {
		op, err := cipher.NewOperator(params.EncryptMethod, params.KeyLength, params.Precision)
		if err != nil {
			return err
		}
		m.op = op
	}

	m.params = params
	m.converge = converge
	m.opt = newOptimizer(params)
	return nil
}

// Params returns the bound hyperparameters
func (m *Model) Params() Params {
	return m.params
}

// Role returns the role of the model
func (m *Model) Role() string {
	return m.role
}

// SetLossCallback registers cb, called after every iteration
func (m *Model) SetLossCallback(cb LossCallback) {
	m.callback = cb
}

// Header returns the feature names the weights are keyed by
func (m *Model) Header() []string {
	return append([]string{}, m.header...)
}

// Weights returns the committed weights, nil before training or loading
func (m *Model) Weights() *Weights {
	if m.weights == nil {
		return nil
	}
	return m.weights.Clone()
}

// NIter returns the number of finished iterations
func (m *Model) NIter() int {
	return m.nIter
}

// LossHistory returns the loss of every finished iteration
func (m *Model) LossHistory() []float64 {
	return append([]float64{}, m.lossHistory...)
}

// IsConverged reports whether the convergence function was satisfied
func (m *Model) IsConverged() bool {
	return m.isConverged
}

// LoadInstance returns ins without its exposure column
func (m *Model) LoadInstance(ins *dataset.Instance) (*dataset.Instance, error) {
	if m.params.ExposureIndex == -1 {
		return ins, nil
	}
	if err := m.checkExposureIndex(len(ins.Features)); err != nil {
		return nil, err
	}
	out := ins.Clone()
	out.Features = append(out.Features[:m.params.ExposureIndex:m.params.ExposureIndex], ins.Features[m.params.ExposureIndex+1:]...)
	return out, nil
}

// LoadExposure returns the exposure of ins, 1 when no exposure column is used
func (m *Model) LoadExposure(ins *dataset.Instance) (float64, error) {
	if m.params.ExposureIndex == -1 {
		return 1, nil
	}
	if err := m.checkExposureIndex(len(ins.Features)); err != nil {
		return 0, err
	}
	return ins.Features[m.params.ExposureIndex], nil
}

func (m *Model) checkExposureIndex(n int) error {
	if m.params.ExposureIndex < -1 || m.params.ExposureIndex >= n {
		return errorx.New(errcodes.ErrCodeConfig, "exposure_index %d out of features' range %d", m.params.ExposureIndex, n)
	}
	return nil
}

// InitSchema takes the feature names of data, without the exposure column
func (m *Model) InitSchema(data *dataset.Table) error {
	header := append([]string{}, data.Header...)
	if m.params.ExposureIndex != -1 {
		if err := m.checkExposureIndex(len(header)); err != nil {
			return err
		}
		header = append(header[:m.params.ExposureIndex], header[m.params.ExposureIndex+1:]...)
	}
	m.header = header
	return nil
}

// SetSchema replaces the feature names the weights are keyed by
func (m *Model) SetSchema(header []string) {
	m.header = append([]string{}, header...)
}

// trainData is the numeric view of a table used by strategies
type trainData struct {
	ids      []string
	index    map[string]int
	header   []string
	features []vecmath.Vector
	labels   []float64
	exposure []float64
}

func (td *trainData) rows(ids []string) ([]int, error) {
	rows := make([]int, 0, len(ids))
	for _, id := range ids {
		r, ok := td.index[id]
		if !ok {
			return nil, errorx.New(errcodes.ErrCodeProtocol, "record %s is unknown to this party", id)
		}
		rows = append(rows, r)
	}
	return rows, nil
}

// column returns feature j of the given rows, j == len(header) is the intercept column
func (td *trainData) column(rows []int, j int) []float64 {
	col := make([]float64, 0, len(rows))
	for _, r := range rows {
		if j == len(td.header) {
			col = append(col, 1)
			continue
		}
		col = append(col, td.features[r][j])
	}
	return col
}

// prepare checks data and splits exposure from features, no message is sent before it succeeds
func (m *Model) prepare(data *dataset.Table, needLabel bool) (*trainData, error) {
	if err := dataset.EmptyTableDetection(data); err != nil {
		return nil, err
	}
	if err := dataset.EmptyFeatureDetection(data); err != nil {
		return nil, err
	}
	if m.params.ExposureIndex != -1 {
		if err := m.checkExposureIndex(data.FeatureCount()); err != nil {
			return nil, err
		}
	}

	td := &trainData{index: data.Index()}
	td.header = append([]string{}, data.Header...)
	if m.params.ExposureIndex != -1 {
		td.header = append(td.header[:m.params.ExposureIndex], td.header[m.params.ExposureIndex+1:]...)
		td.exposure = make([]float64, 0, data.Count())
	}
	for _, ins := range data.Instances {
		if needLabel && !ins.HasLabel {
			return nil, errorx.New(errcodes.ErrCodeAbnormalData, "record %s has no label", ins.ID)
		}
		e, err := m.LoadExposure(ins)
		if err != nil {
			return nil, err
		}
		if e <= 0 || math.IsNaN(e) {
			return nil, errorx.New(errcodes.ErrCodeAbnormalData, "record %s has non positive exposure %v", ins.ID, e)
		}
		x, err := m.LoadInstance(ins)
		if err != nil {
			return nil, err
		}
		td.ids = append(td.ids, ins.ID)
		td.features = append(td.features, x.Features)
		td.labels = append(td.labels, ins.Label)
		if td.exposure != nil {
			td.exposure = append(td.exposure, e)
		}
	}
	return td, nil
}

// alignColumns reorders td's features to the model header by name
func (m *Model) alignColumns(td *trainData) error {
	pos := make(map[string]int, len(td.header))
	for i, name := range td.header {
		pos[name] = i
	}
	idx := make([]int, 0, len(m.header))
	for _, name := range m.header {
		i, ok := pos[name]
		if !ok {
			return errorx.New(errcodes.ErrCodeAbnormalData, "feature %s missing in data", name)
		}
		idx = append(idx, i)
	}
	for r, x := range td.features {
		aligned := make(vecmath.Vector, 0, len(idx))
		for _, i := range idx {
			aligned = append(aligned, x[i])
		}
		td.features[r] = aligned
	}
	td.header = m.Header()
	return nil
}

// iterResult is what one iteration produced, committed by Fit as a whole
type iterResult struct {
	weights     *Weights
	loss        float64
	isConverged bool
}

// Fit trains the model. data is nil for the arbiter.
// The loop stops once converged or after max_iter iterations, not converging is no error.
func (m *Model) Fit(ctx context.Context, data *dataset.Table) error {
	var td *trainData
	if m.role != transfer.RoleArbiter {
		var err error
		needLabel := m.role == transfer.RoleGuest || m.role == RoleLocal
		if td, err = m.prepare(data, needLabel); err != nil {
			return err
		}
		if err := m.InitSchema(data); err != nil {
			return err
		}
	}

	m.nIter, m.lossHistory, m.isConverged = 0, nil, false
	m.weights = nil
	if td != nil {
		m.weights = ZeroWeights(len(td.header), m.params.FitIntercept)
	}

	logger.WithFields(logrus.Fields{"role": m.role, "maxIter": m.params.MaxIter}).Info("start poisson regression fit")
	if err := m.strategy.prepare(ctx, m, td); err != nil {
		return err
	}
	for m.nIter < m.params.MaxIter && !m.isConverged {
		r, err := m.strategy.iterate(ctx, m, td, m.nIter)
		if err != nil {
			return errorx.Wrap(err, "iteration %d failed", m.nIter)
		}
		m.commit(r)
		logger.Infof("iter: %d, loss: %v, is_converged: %v", m.nIter, r.loss, m.isConverged)
	}
	logger.WithFields(logrus.Fields{"role": m.role, "iters": m.nIter, "converged": m.isConverged}).Info("finish poisson regression fit")
	return nil
}

// commit replaces weights and convergence state at the end of an iteration
func (m *Model) commit(r *iterResult) {
	history := make([]float64, len(m.lossHistory), len(m.lossHistory)+1)
	copy(history, m.lossHistory)
	if r.weights != nil {
		m.weights = r.weights
	}
	m.lossHistory = append(history, r.loss)
	m.isConverged = m.isConverged || r.isConverged
	m.nIter++
	if m.callback != nil {
		m.callback(m.nIter, r.loss)
	}
}

// lastLoss returns the loss of the previous iteration, NaN before the first one
func (m *Model) lastLoss() float64 {
	if len(m.lossHistory) == 0 {
		return math.NaN()
	}
	return m.lossHistory[len(m.lossHistory)-1]
}

// Prediction holds the expected mean of every record
type Prediction struct {
	IDs    []string
	Mu     []float64
	Labels []float64 // nil when the predicting party holds no label
}

// Predict computes mu for data. Only the guest and the local role return a prediction,
// the host contributes its linear predictor and the arbiter takes no part.
func (m *Model) Predict(ctx context.Context, data *dataset.Table) (*Prediction, error) {
	if m.role == transfer.RoleArbiter {
		return nil, nil
	}
	if m.weights == nil {
		return nil, errorx.New(errcodes.ErrCodeConfig, "model is neither fitted nor loaded")
	}
	td, err := m.prepare(data, false)
	if err != nil {
		return nil, err
	}
	if err := m.alignColumns(td); err != nil {
		return nil, err
	}
	return m.strategy.predict(ctx, m, td, data)
}

// Clone returns an untrained model with the same hyperparameters whose messages are scoped by prefix
func (m *Model) Clone(prefix string) (*Model, error) {
	var ch transfer.Channel
	if m.ch != nil {
		ch = transfer.WithPrefix(m.ch, prefix)
	}
	c, err := NewModel(m.role, m.params, ch)
	if err != nil {
		return nil, err
	}
	c.callback = m.callback
	return c, nil
}

func labelsOf(data *dataset.Table) []float64 {
	for _, ins := range data.Instances {
		if !ins.HasLabel {
			return nil
		}
	}
	return data.Labels()
}
