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
	"fmt"
	"math"
	"testing"

	"github.com/PaddlePaddle/PaddleDTX/xdb/errorx"
	"github.com/stretchr/testify/require"

	"github.com/PaddlePaddle/PaddleDTX/hetero/cipher"
	"github.com/PaddlePaddle/PaddleDTX/hetero/common/vecmath"
	"github.com/PaddlePaddle/PaddleDTX/hetero/config"
	"github.com/PaddlePaddle/PaddleDTX/hetero/dataset"
	"github.com/PaddlePaddle/PaddleDTX/hetero/errcodes"
	"github.com/PaddlePaddle/PaddleDTX/hetero/model"
	"github.com/PaddlePaddle/PaddleDTX/hetero/transfer"
)

func plainParams() Params {
	p := DefaultParams()
	p.EncryptMethod = cipher.MethodNone
	p.MaxIter = 10
	p.LearningRate = 0.1
	p.BatchSize = 8
	p.Alpha = 0.01
	p.Eps = 1e-6
	return p
}

// jointTable holds x1, x2 and the exposure e of every record, labels are poisson-like counts
func jointTable(n int) *dataset.Table {
	t := &dataset.Table{IDName: "id", LabelName: "y", Header: []string{"x1", "x2", "e"}}
	for i := 0; i < n; i++ {
		x1 := float64(i%5) / 5
		x2 := float64((i*3)%7) / 7
		e := 1 + float64(i%3)*0.5
		y := math.Floor(math.Exp(0.4*x1-0.3*x2+0.2)*e + float64(i%2))
		t.Instances = append(t.Instances, &dataset.Instance{
			ID:       fmt.Sprintf("%02d", i),
			Features: vecmath.Vector{x1, x2, e},
			Label:    y,
			HasLabel: true,
		})
	}
	return t
}

// verticalSplit returns the guest's x1, e with labels and the host's x2 without labels
func verticalSplit(t *testing.T, joint *dataset.Table) (*dataset.Table, *dataset.Table) {
	guest, err := joint.SelectColumns([]int{0, 2})
	require.NoError(t, err)
	host, err := joint.SelectColumns([]int{1})
	require.NoError(t, err)
	for _, ins := range host.Instances {
		ins.Label, ins.HasLabel = 0, false
	}
	host.LabelName = ""
	return guest, host
}

func TestParamsValidate(t *testing.T) {
	p := DefaultParams()
	p.Penalty, p.Optimizer, p.ConvergeFunc, p.EncryptMethod = "l1", "SGD", "", "none"
	require.NoError(t, p.Validate())
	require.Equal(t, PenaltyL1, p.Penalty)
	require.Equal(t, OptimizerSgd, p.Optimizer)
	require.Equal(t, ConvergeDiff, p.ConvergeFunc)
	require.Equal(t, cipher.MethodNone, p.EncryptMethod)

	bad := []func(p *Params){
		func(p *Params) { p.Penalty = "L3" },
		func(p *Params) { p.Optimizer = "adam" },
		func(p *Params) { p.ConvergeFunc = "never" },
		func(p *Params) { p.MaxIter = 0 },
		func(p *Params) { p.LearningRate = 0 },
		func(p *Params) { p.Alpha = -1 },
		func(p *Params) { p.ExposureIndex = -2 },
		func(p *Params) { p.Cv.NSplits = 3 },
		func(p *Params) { p.EncryptMethod, p.KeyLength = cipher.MethodPaillier, 64 },
	}
	for i, mutate := range bad {
		p := DefaultParams()
		mutate(&p)
		err := p.Validate()
		require.Error(t, err, "case %d", i)
		require.True(t, errorx.Is(err, errcodes.ErrCodeConfig), "case %d", i)
	}
}

func TestParamsFromConf(t *testing.T) {
	_, err := ParamsFromConf(nil)
	require.True(t, errorx.Is(err, errcodes.ErrCodeConfig))

	p, err := ParamsFromConf(&config.GlmConf{
		EncryptMethod: "paillier",
		KeyLength:     512,
		Penalty:       "l2",
		Alpha:         0.5,
		BatchSize:     16,
		LearningRate:  0.05,
		MaxIter:       20,
		ExposureIndex: 3,
		FitIntercept:  true,
		Cv:            &config.CvConf{NSplits: 10, Shuffle: true, Seed: "s"},
	})
	require.NoError(t, err)
	require.Equal(t, cipher.MethodPaillier, p.EncryptMethod)
	require.Equal(t, PenaltyL2, p.Penalty)
	require.Equal(t, 3, p.ExposureIndex)
	require.Equal(t, CvParams{NSplits: 10, Shuffle: true, Seed: "s"}, p.Cv)
}

func TestConvergeFunc(t *testing.T) {
	diff, err := NewConvergeFunc(ConvergeDiff, 0.1)
	require.NoError(t, err)
	require.False(t, diff.IsConverged(1, math.NaN(), nil))
	require.True(t, diff.IsConverged(1, 1.05, nil))
	require.False(t, diff.IsConverged(1, 1.5, nil))

	abs, err := NewConvergeFunc(ConvergeAbs, 0.1)
	require.NoError(t, err)
	require.True(t, abs.IsConverged(0.05, math.NaN(), nil))
	require.False(t, abs.IsConverged(0.5, 0.5, nil))

	wd, err := NewConvergeFunc(ConvergeWeightDiff, 0.1)
	require.NoError(t, err)
	require.True(t, wd.IsConverged(9, 1, vecmath.Vector{0.01, 0.02}))
	require.False(t, wd.IsConverged(0, 0, vecmath.Vector{0.3, 0.4}))

	_, err = NewConvergeFunc("other", 0.1)
	require.True(t, errorx.Is(err, errcodes.ErrCodeConfig))
}

func TestPenalty(t *testing.T) {
	w := &Weights{Coef: vecmath.Vector{1, -2}, Intercept: 5, FitIntercept: true}

	p := plainParams()
	p.Alpha = 0.5
	p.Penalty = PenaltyL2
	l2 := newOptimizer(p)
	require.Equal(t, vecmath.Vector{0.5, -1, 0}, l2.penaltyGradient(w))
	require.InDelta(t, 1.25, l2.penaltyLoss(w), 1e-12)

	p.Penalty = PenaltyL1
	l1 := newOptimizer(p)
	require.Equal(t, vecmath.Vector{0.5, -0.5, 0}, l1.penaltyGradient(w))
	require.InDelta(t, 1.5, l1.penaltyLoss(w), 1e-12)

	p.Penalty = PenaltyNone
	require.Equal(t, vecmath.Vector{0, 0, 0}, newOptimizer(p).penaltyGradient(w))

	p.LearningRate = 0.3
	require.InDeltaSlice(t, []float64{0.15, 0.3}, newOptimizer(p).delta(vecmath.Vector{1, 2}, 3), 1e-12)
}

func TestWeights(t *testing.T) {
	w := NewWeights(vecmath.Vector{1, 2, 3}, true)
	require.Equal(t, vecmath.Vector{1, 2}, w.Coef)
	require.Equal(t, 3.0, w.Intercept)
	require.Equal(t, vecmath.Vector{1, 2, 3}, w.Vector())

	next, err := w.Step(vecmath.Vector{1, 1, 1})
	require.NoError(t, err)
	require.Equal(t, vecmath.Vector{0, 1, 2}, next.Vector())
	require.Equal(t, vecmath.Vector{1, 2, 3}, w.Vector())

	_, err = w.Step(vecmath.Vector{1})
	require.Error(t, err)

	mu, err := ComputeMu([]vecmath.Vector{{0, 0}, {1, 0}}, w, []float64{1, 2})
	require.NoError(t, err)
	require.InDelta(t, math.Exp(3), mu[0], 1e-9)
	require.InDelta(t, math.Exp(4)/2, mu[1], 1e-9)

	_, err = LinearPredictor([]vecmath.Vector{{1}}, w)
	require.True(t, errorx.Is(err, errcodes.ErrCodeAbnormalData))

	// a huge linear predictor is clamped instead of overflowing
	big := MuFromLinear([]float64{1e6}, nil)
	require.False(t, math.IsInf(big[0], 1))
}

func TestLoadInstanceWithoutExposure(t *testing.T) {
	m, err := NewModel(RoleLocal, plainParams(), nil)
	require.NoError(t, err)

	ins := &dataset.Instance{ID: "1", Features: vecmath.Vector{1, 2, 3}}
	out, err := m.LoadInstance(ins)
	require.NoError(t, err)
	require.Equal(t, ins, out)

	e, err := m.LoadExposure(ins)
	require.NoError(t, err)
	require.Equal(t, 1.0, e)
}

func TestLoadInstanceWithExposure(t *testing.T) {
	for idx := 0; idx < 3; idx++ {
		p := plainParams()
		p.ExposureIndex = idx
		m, err := NewModel(RoleLocal, p, nil)
		require.NoError(t, err)

		ins := &dataset.Instance{ID: "1", Features: vecmath.Vector{10, 20, 30}}
		out, err := m.LoadInstance(ins)
		require.NoError(t, err)
		require.Len(t, out.Features, 2)
		require.NotContains(t, out.Features, float64(10*(idx+1)))
		require.Equal(t, vecmath.Vector{10, 20, 30}, ins.Features)

		e, err := m.LoadExposure(ins)
		require.NoError(t, err)
		require.Equal(t, float64(10*(idx+1)), e)
	}

	p := plainParams()
	p.ExposureIndex = 3
	m, err := NewModel(RoleLocal, p, nil)
	require.NoError(t, err)
	ins := &dataset.Instance{ID: "1", Features: vecmath.Vector{10, 20, 30}}
	_, err = m.LoadInstance(ins)
	require.True(t, errorx.Is(err, errcodes.ErrCodeConfig))
	_, err = m.LoadExposure(ins)
	require.True(t, errorx.Is(err, errcodes.ErrCodeConfig))
}

func TestNewModel(t *testing.T) {
	_, err := NewModel("observer", plainParams(), nil)
	require.True(t, errorx.Is(err, errcodes.ErrCodeConfig))

	_, err = NewModel(transfer.RoleGuest, plainParams(), nil)
	require.True(t, errorx.Is(err, errcodes.ErrCodeConfig))

	p := plainParams()
	p.ExposureIndex = 1
	hub := transfer.NewLocalHub(0)
	host, err := NewModel(transfer.RoleHost, p, hub.Channel(transfer.RoleHost))
	require.NoError(t, err)
	require.False(t, host.Params().FitIntercept)
	require.Equal(t, -1, host.Params().ExposureIndex)
}

func TestExportLoadModel(t *testing.T) {
	m, err := NewModel(RoleLocal, plainParams(), nil)
	require.NoError(t, err)
	m.SetSchema([]string{"a", "b", "c"})
	m.weights = &Weights{Coef: vecmath.Vector{0.1, -0.2, 0.3}, Intercept: 0.7, FitIntercept: true}
	m.nIter, m.lossHistory, m.isConverged = 2, []float64{3, 2}, true

	b := model.NewBundle("v1")
	require.NoError(t, m.ExportModel(b))
	data, err := b.Bytes()
	require.NoError(t, err)
	restored, err := model.FromBytes(data)
	require.NoError(t, err)

	p := plainParams()
	p.Alpha, p.MaxIter = 9, 99
	loaded, err := NewModel(RoleLocal, p, nil)
	require.NoError(t, err)
	require.NoError(t, loaded.LoadModel(restored))
	require.Equal(t, []string{"a", "b", "c"}, loaded.Header())
	require.Equal(t, m.Weights(), loaded.Weights())
	require.Equal(t, vecmath.Vector{0.1, -0.2, 0.3, 0.7}, loaded.Weights().Vector())
	require.Equal(t, 2, loaded.NIter())
	require.Equal(t, []float64{3, 2}, loaded.LossHistory())
	require.True(t, loaded.IsConverged())
	require.Equal(t, m.Params().Alpha, loaded.Params().Alpha)
	require.Equal(t, m.Params().MaxIter, loaded.Params().MaxIter)
}

func TestLoadModelInvalid(t *testing.T) {
	m, err := NewModel(RoleLocal, plainParams(), nil)
	require.NoError(t, err)

	onlyMeta := model.NewBundle("v1")
	require.NoError(t, onlyMeta.Put(model.PoissonRegressionMeta, m.getMeta()))
	err = m.LoadModel(onlyMeta)
	require.True(t, errorx.Is(err, errcodes.ErrCodeConfig))

	onlyParam := model.NewBundle("v1")
	require.NoError(t, onlyParam.Put(model.PoissonRegressionParam, m.getParam()))
	err = m.LoadModel(onlyParam)
	require.True(t, errorx.Is(err, errcodes.ErrCodeConfig))

	missingWeight := model.NewBundle("v1")
	require.NoError(t, missingWeight.Put(model.PoissonRegressionMeta, m.getMeta()))
	require.NoError(t, missingWeight.Put(model.PoissonRegressionParam, &Param{Header: []string{"a"}, Weight: map[string]float64{"b": 1}}))
	err = m.LoadModel(missingWeight)
	require.True(t, errorx.Is(err, errcodes.ErrCodeConfig))
}

func TestLoadModelEmptyHeader(t *testing.T) {
	hub := transfer.NewLocalHub(0)
	arbiter, err := NewModel(transfer.RoleArbiter, plainParams(), hub.Channel(transfer.RoleArbiter))
	require.NoError(t, err)

	b := model.NewBundle("v1")
	require.NoError(t, arbiter.ExportModel(b))

	loaded, err := NewModel(transfer.RoleArbiter, plainParams(), hub.Channel(transfer.RoleArbiter))
	require.NoError(t, err)
	require.NoError(t, loaded.LoadModel(b))
	require.Empty(t, loaded.Header())
	require.Nil(t, loaded.Weights())
}
