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

// Package engine runs fit, predict and cross validation tasks of one party,
// chaining feature selection, poisson regression training and model storage.
package engine

import (
	"context"
	"time"

	"github.com/PaddlePaddle/PaddleDTX/xdb/errorx"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/PaddlePaddle/PaddleDTX/hetero/config"
	"github.com/PaddlePaddle/PaddleDTX/hetero/dataset"
	"github.com/PaddlePaddle/PaddleDTX/hetero/errcodes"
	"github.com/PaddlePaddle/PaddleDTX/hetero/glm"
	"github.com/PaddlePaddle/PaddleDTX/hetero/model"
	"github.com/PaddlePaddle/PaddleDTX/hetero/monitor"
	"github.com/PaddlePaddle/PaddleDTX/hetero/selection"
	"github.com/PaddlePaddle/PaddleDTX/hetero/storage/local"
	"github.com/PaddlePaddle/PaddleDTX/hetero/transfer"
)

var logger = logrus.WithField("module", "engine")

// Task kinds
const (
	TaskFit     = "fit"
	TaskPredict = "predict"
	TaskCv      = "cv"
)

// FitResult summarizes a finished fit task
type FitResult struct {
	Version     string
	LeftCols    []string
	NIter       int
	Loss        float64
	IsConverged bool
}

// Party runs tasks of one role. Tasks of all parties share a task ID which scopes their messages.
type Party struct {
	role      string
	selection *config.SelectionConf
	decider   selection.HostColsDecider
	params    glm.Params

	ch       transfer.Channel
	storage  *local.Storage
	recorder *monitor.Recorder
}

// NewParty creates a party, ch may be nil for the local role only
func NewParty(conf *config.PartyConf, ch transfer.Channel, storage *local.Storage, recorder *monitor.Recorder) (*Party, error) {
	if conf == nil {
		return nil, errorx.New(errcodes.ErrCodeConfig, "missing config: party")
	}
	if !transfer.ValidRole(conf.Role) && conf.Role != glm.RoleLocal {
		return nil, errorx.New(errcodes.ErrCodeConfig, "unsupported role %s", conf.Role)
	}
	if ch != nil && ch.Role() != conf.Role {
		return nil, errorx.New(errcodes.ErrCodeConfig, "channel of %s used by %s", ch.Role(), conf.Role)
	}
	if conf.Role == glm.RoleLocal && conf.Selection != nil && hasFederatedFilter(conf.Selection) {
		return nil, errorx.New(errcodes.ErrCodeConfig, "federated filters need a guest and a host")
	}
	if storage == nil {
		return nil, errorx.New(errcodes.ErrCodeConfig, "missing model storage")
	}
	params, err := glm.ParamsFromConf(conf.Glm)
	if err != nil {
		return nil, err
	}
	var decider selection.HostColsDecider
	if conf.Role == transfer.RoleGuest {
		if decider, err = selection.NewHostColsDecider(conf.Selection); err != nil {
			return nil, err
		}
	}
	if recorder == nil {
		recorder = monitor.NewRecorder()
	}
	return &Party{
		role:      conf.Role,
		selection: conf.Selection,
		decider:   decider,
		params:    params,
		ch:        ch,
		storage:   storage,
		recorder:  recorder,
	}, nil
}

// Role returns the role of the party
func (p *Party) Role() string {
	return p.role
}

// Fit selects features, trains the model and stores both under taskID as model version.
// data is nil for the arbiter.
func (p *Party) Fit(ctx context.Context, taskID string, data *dataset.Table) (res *FitResult, err error) {
	start := time.Now()
	defer func() { p.recorder.ObserveTask(p.role, TaskFit, start, err) }()

	ch, err := p.taskChannel(taskID)
	if err != nil {
		return nil, err
	}
	data, expo, err := p.splitExposure(data)
	if err != nil {
		return nil, err
	}
	b := model.NewBundle(taskID)
	res = &FitResult{Version: taskID}

	if p.role != transfer.RoleArbiter {
		sel, out, err := p.selectFeatures(ctx, ch, data)
		if err != nil {
			return nil, err
		}
		if sel != nil {
			if err := sel.Export(b); err != nil {
				return nil, err
			}
			res.LeftCols = sel.FilterResult().LeftNames()
			p.recorder.SetLeftCols(p.role, taskID, len(res.LeftCols))
			data = out
		} else {
			res.LeftCols = append([]string{}, data.Header...)
		}
		if expo != nil {
			if data, err = expo.merge(data); err != nil {
				return nil, err
			}
		}
	}

	m, err := glm.NewModel(p.role, p.modelParams(data, expo), ch)
	if err != nil {
		return nil, err
	}
	m.SetLossCallback(p.recorder.LossCallback(p.role, taskID))
	if err := m.Fit(ctx, data); err != nil {
		return nil, errorx.Wrap(err, "failed to train poisson regression")
	}
	p.recorder.SetConverged(p.role, taskID, m.IsConverged())
	if err := m.ExportModel(b); err != nil {
		return nil, err
	}
	if _, err := p.storage.SaveModel(b); err != nil {
		return nil, err
	}

	history := m.LossHistory()
	res.NIter, res.IsConverged = m.NIter(), m.IsConverged()
	if len(history) > 0 {
		res.Loss = history[len(history)-1]
	}
	logger.WithFields(logrus.Fields{
		"task": taskID, "role": p.role, "iters": res.NIter, "converged": res.IsConverged,
	}).Info("fit task finished")
	return res, nil
}

// Predict replays the stored selection of version on data and predicts with the stored model.
// Only the guest and the local role get a prediction, the arbiter takes no part.
func (p *Party) Predict(ctx context.Context, taskID, version string, data *dataset.Table) (pred *glm.Prediction, err error) {
	start := time.Now()
	defer func() { p.recorder.ObserveTask(p.role, TaskPredict, start, err) }()

	ch, err := p.taskChannel(taskID)
	if err != nil {
		return nil, err
	}
	b, err := p.storage.LoadModel(version)
	if err != nil {
		return nil, err
	}
	if p.role == transfer.RoleArbiter {
		return nil, nil
	}
	data, expo, err := p.splitExposure(data)
	if err != nil {
		return nil, err
	}

	if b.Has(model.FeatureSelectionMeta) || b.Has(model.FeatureSelectionParam) {
		sel := selection.NewSelector(p.role, nil)
		if err := sel.Load(b); err != nil {
			return nil, err
		}
		if data, err = sel.Transform(data); err != nil {
			return nil, err
		}
	}
	if expo != nil {
		if data, err = expo.merge(data); err != nil {
			return nil, err
		}
	}

	m, err := glm.NewModel(p.role, p.modelParams(data, expo), ch)
	if err != nil {
		return nil, err
	}
	if err := m.LoadModel(b); err != nil {
		return nil, err
	}
	return m.Predict(ctx, data)
}

// CrossValidate selects features on data and scores k folds of the configured model, nothing is stored
func (p *Party) CrossValidate(ctx context.Context, taskID string, data *dataset.Table) (res *glm.CvResult, err error) {
	start := time.Now()
	defer func() { p.recorder.ObserveTask(p.role, TaskCv, start, err) }()

	ch, err := p.taskChannel(taskID)
	if err != nil {
		return nil, err
	}
	data, expo, err := p.splitExposure(data)
	if err != nil {
		return nil, err
	}
	if p.role != transfer.RoleArbiter {
		sel, out, err := p.selectFeatures(ctx, ch, data)
		if err != nil {
			return nil, err
		}
		if sel != nil {
			data = out
		}
		if expo != nil {
			if data, err = expo.merge(data); err != nil {
				return nil, err
			}
		}
	}

	m, err := glm.NewModel(p.role, p.modelParams(data, expo), ch)
	if err != nil {
		return nil, err
	}
	m.SetLossCallback(p.recorder.LossCallback(p.role, taskID))
	return glm.NewKFold(p.params.Cv).Run(ctx, m, data)
}

// selectFeatures runs the configured filters, a nil selector means selection is not configured
func (p *Party) selectFeatures(ctx context.Context, ch transfer.Channel, data *dataset.Table) (*selection.Selector, *dataset.Table, error) {
	if p.selection == nil || len(p.selection.FilterMethods) == 0 {
		return nil, data, nil
	}
	filters, err := selection.NewFilters(p.selectionRole(), p.selection, ch, p.decider)
	if err != nil {
		return nil, nil, err
	}
	sel := selection.NewSelector(p.selectionRole(), filters)
	out, err := sel.Fit(ctx, data)
	if err != nil {
		return nil, nil, errorx.Wrap(err, "failed to select features")
	}
	return sel, out, nil
}

// selectionRole maps the local role to the guest, it only runs local filters
func (p *Party) selectionRole() string {
	if p.role == glm.RoleLocal {
		return transfer.RoleGuest
	}
	return p.role
}

func (p *Party) taskChannel(taskID string) (transfer.Channel, error) {
	if _, err := uuid.Parse(taskID); err != nil {
		return nil, errorx.NewCode(err, errcodes.ErrCodeParam, "invalid task id %s", taskID)
	}
	if p.ch == nil {
		return nil, nil
	}
	return transfer.WithPrefix(p.ch, taskID), nil
}

func hasFederatedFilter(conf *config.SelectionConf) bool {
	for _, method := range conf.FilterMethods {
		if method == selection.IvValueThres || method == selection.IvPercentile {
			return true
		}
	}
	return false
}
