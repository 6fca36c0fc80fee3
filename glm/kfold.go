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
	"fmt"
	"sort"

	"github.com/PaddlePaddle/PaddleDTX/crypto/core/machine_learning/evaluation/metrics"
	"github.com/PaddlePaddle/PaddleDTX/crypto/core/machine_learning/evaluation/validation"
	"github.com/PaddlePaddle/PaddleDTX/xdb/errorx"
	"gonum.org/v1/gonum/stat"

	"github.com/PaddlePaddle/PaddleDTX/hetero/dataset"
	"github.com/PaddlePaddle/PaddleDTX/hetero/errcodes"
	"github.com/PaddlePaddle/PaddleDTX/hetero/transfer"
)

const foldIDName = "id"

// KFold drives cross validation over independent clones of a model
type KFold struct {
	NSplits int
	Shuffle bool
	Seed    string
}

// CvResult holds the RMSE of every fold, empty for parties without labels
type CvResult struct {
	RMSE map[int]float64
	Mean float64
	Std  float64
}

// NewKFold creates a driver from cv params, n_splits 0 means 5
func NewKFold(p CvParams) *KFold {
	n := p.NSplits
	if n == 0 {
		n = 5
	}
	return &KFold{NSplits: n, Shuffle: p.Shuffle, Seed: p.Seed}
}

// Folds splits the IDs of data into NSplits held-out sets, every party holding the same IDs gets the same folds
func (kf *KFold) Folds(ids []string) ([][]string, error) {
	rows := make([][]string, 0, len(ids)+1)
	rows = append(rows, []string{foldIDName})
	sorted := append([]string{}, ids...)
	sort.Strings(sorted)
	for _, id := range sorted {
		rows = append(rows, []string{id})
	}

	var (
		parts [][][]string
		err   error
	)
	if kf.Shuffle {
		parts, err = validation.ShuffleKFoldsSplit(rows, foldIDName, kf.NSplits, kf.Seed)
	} else {
		parts, err = validation.KFoldsSplit(rows, kf.NSplits)
	}
	if err != nil {
		return nil, errorx.NewCode(err, errcodes.ErrCodeDataSetSplit, "failed to split %d records into %d folds", len(ids), kf.NSplits)
	}

	folds := make([][]string, 0, len(parts))
	for _, part := range parts {
		fold := make([]string, 0, len(part)-1)
		for _, r := range part[1:] {
			fold = append(fold, r[0])
		}
		folds = append(folds, fold)
	}
	return folds, nil
}

// Run fits a clone of m on every training split and scores it on the held-out fold.
// data is nil for the arbiter, which only takes part in training.
func (kf *KFold) Run(ctx context.Context, m *Model, data *dataset.Table) (*CvResult, error) {
	var folds [][]string
	if m.Role() != transfer.RoleArbiter {
		if err := dataset.EmptyTableDetection(data); err != nil {
			return nil, err
		}
		var err error
		if folds, err = kf.Folds(data.IDs()); err != nil {
			return nil, err
		}
	}

	res := &CvResult{RMSE: make(map[int]float64)}
	for i := 0; i < kf.NSplits; i++ {
		clone, err := m.Clone(fmt.Sprintf("fold%d", i))
		if err != nil {
			return nil, err
		}
		if m.Role() == transfer.RoleArbiter {
			if err := clone.Fit(ctx, nil); err != nil {
				return nil, errorx.Wrap(err, "fold %d failed", i)
			}
			continue
		}

		train, test, err := splitFold(data, folds, i)
		if err != nil {
			return nil, err
		}
		if err := clone.Fit(ctx, train); err != nil {
			return nil, errorx.Wrap(err, "fold %d failed", i)
		}
		pred, err := clone.Predict(ctx, test)
		if err != nil {
			return nil, errorx.Wrap(err, "fold %d failed", i)
		}
		if pred == nil || pred.Labels == nil {
			continue
		}
		rmse, err := metrics.GetRMSE(pred.Labels, pred.Mu)
		if err != nil {
			return nil, errorx.NewCode(err, errcodes.ErrCodeInternal, "failed to score fold %d", i)
		}
		res.RMSE[i] = rmse
		logger.Infof("[Result][CrossValidation] fold %d rmse: %v", i, rmse)
	}

	if len(res.RMSE) > 0 {
		scores := make([]float64, 0, len(res.RMSE))
		for i := 0; i < kf.NSplits; i++ {
			scores = append(scores, res.RMSE[i])
		}
		res.Mean, res.Std = stat.MeanStdDev(scores, nil)
	}
	return res, nil
}

func splitFold(data *dataset.Table, folds [][]string, i int) (*dataset.Table, *dataset.Table, error) {
	var trainIDs []string
	for j, fold := range folds {
		if j != i {
			trainIDs = append(trainIDs, fold...)
		}
	}
	train, err := data.Subset(trainIDs)
	if err != nil {
		return nil, nil, err
	}
	test, err := data.Subset(folds[i])
	if err != nil {
		return nil, nil, err
	}
	return train, test, nil
}
