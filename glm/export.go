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
	"github.com/PaddlePaddle/PaddleDTX/xdb/errorx"

	"github.com/PaddlePaddle/PaddleDTX/hetero/common/vecmath"
	"github.com/PaddlePaddle/PaddleDTX/hetero/errcodes"
	"github.com/PaddlePaddle/PaddleDTX/hetero/model"
	"github.com/PaddlePaddle/PaddleDTX/hetero/transfer"
)

// Meta holds the hyperparameters needed to continue or replay training
type Meta struct {
	Penalty          string  `json:"penalty"`
	Eps              float64 `json:"eps"`
	Alpha            float64 `json:"alpha"`
	Optimizer        string  `json:"optimizer"`
	PartyWeight      float64 `json:"party_weight"`
	BatchSize        int     `json:"batch_size"`
	LearningRate     float64 `json:"learning_rate"`
	MaxIter          int     `json:"max_iter"`
	ConvergeFunc     string  `json:"converge_func"`
	ReEncryptBatches int     `json:"re_encrypt_batches"`
	FitIntercept     bool    `json:"fit_intercept"`
	ExposureIndex    int     `json:"exposure_index"`
}

// Param holds the learned state, weights are keyed by feature name
type Param struct {
	Iters       int                `json:"iters"`
	LossHistory []float64          `json:"loss_history"`
	IsConverged bool               `json:"is_converged"`
	Weight      map[string]float64 `json:"weight"`
	Intercept   float64            `json:"intercept"`
	Header      []string           `json:"header"`
}

func (m *Model) getMeta() *Meta {
	p := m.params
	return &Meta{
		Penalty:          p.Penalty,
		Eps:              p.Eps,
		Alpha:            p.Alpha,
		Optimizer:        p.Optimizer,
		PartyWeight:      p.PartyWeight,
		BatchSize:        p.BatchSize,
		LearningRate:     p.LearningRate,
		MaxIter:          p.MaxIter,
		ConvergeFunc:     p.ConvergeFunc,
		ReEncryptBatches: p.ReEncryptBatches,
		FitIntercept:     p.FitIntercept,
		ExposureIndex:    p.ExposureIndex,
	}
}

func (m *Model) getParam() *Param {
	param := &Param{
		Iters:       m.nIter,
		LossHistory: m.LossHistory(),
		IsConverged: m.isConverged,
		Weight:      make(map[string]float64, len(m.header)),
		Header:      m.Header(),
	}
	if m.weights != nil {
		for i, name := range m.header {
			param.Weight[name] = m.weights.Coef[i]
		}
		param.Intercept = m.weights.Intercept
	}
	return param
}

// ExportModel stores the meta and param records of the model into b
func (m *Model) ExportModel(b *model.Bundle) error {
	if m.weights != nil && len(m.weights.Coef) != len(m.header) {
		return errorx.New(errcodes.ErrCodeInternal, "%d weights for %d header names", len(m.weights.Coef), len(m.header))
	}
	if err := b.Put(model.PoissonRegressionMeta, m.getMeta()); err != nil {
		return err
	}
	return b.Put(model.PoissonRegressionParam, m.getParam())
}

// LoadModel restores hyperparameters and learned state from b.
// A zero-length header yields a model without weights.
func (m *Model) LoadModel(b *model.Bundle) error {
	var meta Meta
	var param Param
	if err := b.GetPair(model.PoissonRegressionMeta, model.PoissonRegressionParam, &meta, &param); err != nil {
		return err
	}

	p := m.params
	p.Penalty, p.Eps, p.Alpha, p.Optimizer = meta.Penalty, meta.Eps, meta.Alpha, meta.Optimizer
	p.PartyWeight, p.BatchSize, p.LearningRate, p.MaxIter = meta.PartyWeight, meta.BatchSize, meta.LearningRate, meta.MaxIter
	p.ConvergeFunc, p.ReEncryptBatches = meta.ConvergeFunc, meta.ReEncryptBatches
	p.FitIntercept, p.ExposureIndex = meta.FitIntercept, meta.ExposureIndex
	if m.role != transfer.RoleGuest && m.role != RoleLocal {
		p.FitIntercept, p.ExposureIndex = false, -1
	}
	if err := p.Validate(); err != nil {
		return errorx.Wrap(err, "invalid model meta")
	}
	converge, err := NewConvergeFunc(p.ConvergeFunc, p.Eps)
	if err != nil {
		return err
	}

	var weights *Weights
	if len(param.Header) > 0 {
		coef := make(vecmath.Vector, 0, len(param.Header))
		for _, name := range param.Header {
			w, ok := param.Weight[name]
			if !ok {
				return errorx.New(errcodes.ErrCodeConfig, "weight of feature %s missing in model param", name)
			}
			coef = append(coef, w)
		}
		weights = &Weights{Coef: coef, FitIntercept: p.FitIntercept}
		if p.FitIntercept {
			weights.Intercept = param.Intercept
		}
	}

	m.params, m.converge, m.opt = p, converge, newOptimizer(p)
	m.header = append([]string{}, param.Header...)
	m.weights = weights
	m.nIter = param.Iters
	m.lossHistory = append([]float64{}, param.LossHistory...)
	m.isConverged = param.IsConverged
	return nil
}
