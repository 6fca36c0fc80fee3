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
	"testing"
	"time"

	"github.com/PaddlePaddle/PaddleDTX/xdb/errorx"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/PaddlePaddle/PaddleDTX/hetero/cipher"
	"github.com/PaddlePaddle/PaddleDTX/hetero/dataset"
	"github.com/PaddlePaddle/PaddleDTX/hetero/errcodes"
	"github.com/PaddlePaddle/PaddleDTX/hetero/transfer"
)

func localModel(t *testing.T, p Params) *Model {
	p.ExposureIndex = 2
	m, err := NewModel(RoleLocal, p, nil)
	require.NoError(t, err)
	return m
}

func TestLocalFit(t *testing.T) {
	p := plainParams()
	p.MaxIter = 30
	m := localModel(t, p)

	var calls []int
	m.SetLossCallback(func(iter int, loss float64) {
		calls = append(calls, iter)
	})
	require.NoError(t, m.Fit(context.Background(), jointTable(20)))

	history := m.LossHistory()
	require.Len(t, history, m.NIter())
	require.Len(t, calls, m.NIter())
	require.Less(t, history[len(history)-1], history[0])
	require.Equal(t, []string{"x1", "x2"}, m.Header())
	require.Len(t, m.Weights().Coef, 2)

	pred, err := m.Predict(context.Background(), jointTable(20))
	require.NoError(t, err)
	require.Len(t, pred.Mu, 20)
	require.Len(t, pred.Labels, 20)
	for _, mu := range pred.Mu {
		require.Greater(t, mu, 0.0)
	}
}

func TestLocalFitPaillier(t *testing.T) {
	p := plainParams()
	p.MaxIter = 3
	plain := localModel(t, p)
	require.NoError(t, plain.Fit(context.Background(), jointTable(12)))

	p.EncryptMethod, p.KeyLength = cipher.MethodPaillier, 256
	enc := localModel(t, p)
	require.NoError(t, enc.Fit(context.Background(), jointTable(12)))

	require.InDeltaSlice(t, plain.Weights().Vector(), enc.Weights().Vector(), 1e-6)
	require.InDeltaSlice(t, plain.LossHistory(), enc.LossHistory(), 1e-6)
}

func TestMaxIterOne(t *testing.T) {
	p := plainParams()
	p.MaxIter = 1
	m := localModel(t, p)
	require.NoError(t, m.Fit(context.Background(), jointTable(20)))
	require.Equal(t, 1, m.NIter())
	require.Len(t, m.LossHistory(), 1)
	require.False(t, m.IsConverged())

	p.ConvergeFunc, p.Eps = ConvergeAbs, 1e9
	m = localModel(t, p)
	require.NoError(t, m.Fit(context.Background(), jointTable(20)))
	require.Equal(t, 1, m.NIter())
	require.True(t, m.IsConverged())
}

func TestConvergedStopsEarly(t *testing.T) {
	p := plainParams()
	p.MaxIter = 50
	p.ConvergeFunc, p.Eps = ConvergeWeightDiff, 10
	m := localModel(t, p)
	require.NoError(t, m.Fit(context.Background(), jointTable(20)))
	require.Equal(t, 1, m.NIter())
	require.True(t, m.IsConverged())

	// a second fit starts from a clean state
	p.ConvergeFunc, p.Eps = ConvergeDiff, 0
	require.NoError(t, m.InitModel(p))
	require.NoError(t, m.Fit(context.Background(), jointTable(20)))
	require.Equal(t, p.MaxIter, m.NIter())
	require.False(t, m.IsConverged())
}

func TestFitAbnormalData(t *testing.T) {
	m := localModel(t, plainParams())
	err := m.Fit(context.Background(), &dataset.Table{Header: []string{"x1", "x2", "e"}})
	require.True(t, errorx.Is(err, errcodes.ErrCodeAbnormalData))

	data := jointTable(5)
	data.Instances[2].Features[2] = 0
	err = m.Fit(context.Background(), data)
	require.True(t, errorx.Is(err, errcodes.ErrCodeAbnormalData))

	p := plainParams()
	p.ExposureIndex = 7
	m, err = NewModel(RoleLocal, p, nil)
	require.NoError(t, err)
	err = m.Fit(context.Background(), jointTable(5))
	require.True(t, errorx.Is(err, errcodes.ErrCodeConfig))
}

// a guest failing its local checks must return before touching the channel
func TestFederatedFailsBeforeSend(t *testing.T) {
	hub := transfer.NewLocalHub(0)
	guest, err := NewModel(transfer.RoleGuest, plainParams(), hub.Channel(transfer.RoleGuest))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err = guest.Fit(ctx, &dataset.Table{Header: []string{"x1"}})
	require.True(t, errorx.Is(err, errcodes.ErrCodeAbnormalData))
	require.NoError(t, ctx.Err())
}

func TestPredictColumnOrder(t *testing.T) {
	m := localModel(t, plainParams())
	data := jointTable(10)
	require.NoError(t, m.Fit(context.Background(), data))
	want, err := m.Predict(context.Background(), data)
	require.NoError(t, err)

	reordered, err := data.SelectColumns([]int{1, 0, 2})
	require.NoError(t, err)
	got, err := m.Predict(context.Background(), reordered)
	require.NoError(t, err)
	require.InDeltaSlice(t, want.Mu, got.Mu, 1e-12)

	unfitted := localModel(t, plainParams())
	_, err = unfitted.Predict(context.Background(), data)
	require.True(t, errorx.Is(err, errcodes.ErrCodeConfig))
}

type parties struct {
	guest, host, arbiter *Model
}

func newParties(t *testing.T, p Params) *parties {
	hub := transfer.NewLocalHub(time.Minute)
	gp := p
	gp.ExposureIndex = 1
	guest, err := NewModel(transfer.RoleGuest, gp, hub.Channel(transfer.RoleGuest))
	require.NoError(t, err)
	host, err := NewModel(transfer.RoleHost, p, hub.Channel(transfer.RoleHost))
	require.NoError(t, err)
	arbiter, err := NewModel(transfer.RoleArbiter, p, hub.Channel(transfer.RoleArbiter))
	require.NoError(t, err)
	return &parties{guest: guest, host: host, arbiter: arbiter}
}

func (ps *parties) fit(guestData, hostData *dataset.Table) error {
	g, ctx := errgroup.WithContext(context.Background())
	g.Go(func() error { return ps.guest.Fit(ctx, guestData) })
	g.Go(func() error { return ps.host.Fit(ctx, hostData) })
	g.Go(func() error { return ps.arbiter.Fit(ctx, nil) })
	return g.Wait()
}

func TestFederatedFitMatchesLocal(t *testing.T) {
	p := plainParams()
	p.MaxIter = 3
	p.EncryptMethod, p.KeyLength = cipher.MethodPaillier, 256
	p.ReEncryptBatches = 2

	joint := jointTable(20)
	guestData, hostData := verticalSplit(t, joint)
	ps := newParties(t, p)
	require.NoError(t, ps.fit(guestData, hostData))

	lp := p
	lp.EncryptMethod = cipher.MethodNone
	local := localModel(t, lp)
	require.NoError(t, local.Fit(context.Background(), joint))

	lw := local.Weights()
	gw, hw := ps.guest.Weights(), ps.host.Weights()
	require.InDelta(t, lw.Coef[0], gw.Coef[0], 1e-5)
	require.InDelta(t, lw.Intercept, gw.Intercept, 1e-5)
	require.InDelta(t, lw.Coef[1], hw.Coef[0], 1e-5)
	require.False(t, hw.FitIntercept)

	require.Equal(t, 3, ps.arbiter.NIter())
	require.InDeltaSlice(t, local.LossHistory(), ps.guest.LossHistory(), 1e-5)
	require.Equal(t, ps.guest.LossHistory(), ps.host.LossHistory())
	require.Equal(t, ps.guest.LossHistory(), ps.arbiter.LossHistory())
	require.Nil(t, ps.arbiter.Weights())

	var gPred *Prediction
	g, ctx := errgroup.WithContext(context.Background())
	g.Go(func() error {
		var err error
		gPred, err = ps.guest.Predict(ctx, guestData)
		return err
	})
	g.Go(func() error {
		pred, err := ps.host.Predict(ctx, hostData)
		if pred != nil {
			return errorx.New(errcodes.ErrCodeInternal, "host got a prediction")
		}
		return err
	})
	require.NoError(t, g.Wait())

	lPred, err := local.Predict(context.Background(), joint)
	require.NoError(t, err)
	require.Equal(t, lPred.IDs, gPred.IDs)
	require.InDeltaSlice(t, lPred.Mu, gPred.Mu, 1e-4)
}

func TestFederatedConvergence(t *testing.T) {
	p := plainParams()
	p.MaxIter = 20
	p.ConvergeFunc, p.Eps = ConvergeAbs, 1e9

	guestData, hostData := verticalSplit(t, jointTable(20))
	ps := newParties(t, p)
	require.NoError(t, ps.fit(guestData, hostData))
	for _, m := range []*Model{ps.guest, ps.host, ps.arbiter} {
		require.Equal(t, 1, m.NIter())
		require.True(t, m.IsConverged())
	}
}

func TestFederatedMisalignedIDs(t *testing.T) {
	joint := jointTable(20)
	guestData, hostData := verticalSplit(t, joint)
	hostData.Instances[0].ID = "unknown"

	ps := newParties(t, plainParams())
	err := ps.fit(guestData, hostData)
	require.Error(t, err)
	require.True(t, errorx.Is(err, errcodes.ErrCodeProtocol))
}

func TestLocalCrossValidation(t *testing.T) {
	p := plainParams()
	m := localModel(t, p)
	kf := NewKFold(CvParams{NSplits: 5, Shuffle: true, Seed: "fold"})

	res, err := kf.Run(context.Background(), m, jointTable(20))
	require.NoError(t, err)
	require.Len(t, res.RMSE, 5)
	require.Greater(t, res.Mean, 0.0)
	// the driver leaves the model itself untouched
	require.Nil(t, m.Weights())

	folds, err := kf.Folds(jointTable(20).IDs())
	require.NoError(t, err)
	seen := make(map[string]bool)
	for _, fold := range folds {
		require.Len(t, fold, 4)
		for _, id := range fold {
			require.False(t, seen[id])
			seen[id] = true
		}
	}
	require.Len(t, seen, 20)

	_, err = NewKFold(CvParams{NSplits: 10}).Run(context.Background(), m, jointTable(6))
	require.True(t, errorx.Is(err, errcodes.ErrCodeDataSetSplit))
}

func TestFederatedCrossValidation(t *testing.T) {
	p := plainParams()
	p.MaxIter = 3
	guestData, hostData := verticalSplit(t, jointTable(20))
	ps := newParties(t, p)
	kf := NewKFold(CvParams{NSplits: 5})

	results := make([]*CvResult, 3)
	g, ctx := errgroup.WithContext(context.Background())
	g.Go(func() (err error) {
		results[0], err = kf.Run(ctx, ps.guest, guestData)
		return err
	})
	g.Go(func() (err error) {
		results[1], err = kf.Run(ctx, ps.host, hostData)
		return err
	})
	g.Go(func() (err error) {
		results[2], err = kf.Run(ctx, ps.arbiter, nil)
		return err
	})
	require.NoError(t, g.Wait())
	require.Len(t, results[0].RMSE, 5)
	require.Empty(t, results[1].RMSE)
	require.Empty(t, results[2].RMSE)
}
