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

package engine

import (
	"math"

	"github.com/PaddlePaddle/PaddleDTX/xdb/errorx"

	"github.com/PaddlePaddle/PaddleDTX/hetero/dataset"
	"github.com/PaddlePaddle/PaddleDTX/hetero/errcodes"
	"github.com/PaddlePaddle/PaddleDTX/hetero/glm"
	"github.com/PaddlePaddle/PaddleDTX/hetero/transfer"
)

// exposureColumn is the exposure of every record, kept out of feature selection
type exposureColumn struct {
	name   string
	values map[string]float64
}

// splitExposure resolves exposure_index against the raw table and takes the exposure column
// out of it. It runs before any message of the task is sent. A nil column means the party
// trains without exposure.
func (p *Party) splitExposure(data *dataset.Table) (*dataset.Table, *exposureColumn, error) {
	if p.role != transfer.RoleGuest && p.role != glm.RoleLocal {
		return data, nil, nil
	}
	idx := p.params.ExposureIndex
	if idx == -1 {
		return data, nil, nil
	}
	if err := dataset.EmptyTableDetection(data); err != nil {
		return nil, nil, err
	}
	if idx < 0 || idx >= data.FeatureCount() {
		return nil, nil, errorx.New(errcodes.ErrCodeConfig, "exposure_index %d out of features' range %d", idx, data.FeatureCount())
	}

	expo := &exposureColumn{name: data.Header[idx], values: make(map[string]float64, data.Count())}
	for _, ins := range data.Instances {
		if len(ins.Features) != data.FeatureCount() {
			return nil, nil, errorx.New(errcodes.ErrCodeAbnormalData, "record %s has %d features, header has %d",
				ins.ID, len(ins.Features), data.FeatureCount())
		}
		e := ins.Features[idx]
		if e <= 0 || math.IsNaN(e) {
			return nil, nil, errorx.New(errcodes.ErrCodeAbnormalData, "record %s has non positive exposure %v", ins.ID, e)
		}
		expo.values[ins.ID] = e
	}

	cols := make([]int, 0, data.FeatureCount()-1)
	for c := 0; c < data.FeatureCount(); c++ {
		if c != idx {
			cols = append(cols, c)
		}
	}
	rest, err := data.SelectColumns(cols)
	if err != nil {
		return nil, nil, err
	}
	return rest, expo, nil
}

// merge appends the exposure column as the last column of data
func (e *exposureColumn) merge(data *dataset.Table) (*dataset.Table, error) {
	header := append(append([]string{}, data.Header...), e.name)
	return data.Map(header, func(ins *dataset.Instance) (*dataset.Instance, error) {
		v, ok := e.values[ins.ID]
		if !ok {
			return nil, errorx.New(errcodes.ErrCodeAbnormalData, "record %s has no exposure", ins.ID)
		}
		ins.Features = append(ins.Features, v)
		return ins, nil
	})
}

// modelParams returns the hyperparameters for a table built by merge, where the exposure is last
func (p *Party) modelParams(data *dataset.Table, expo *exposureColumn) glm.Params {
	params := p.params
	if expo != nil {
		params.ExposureIndex = data.FeatureCount() - 1
	}
	return params
}
