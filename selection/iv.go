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

package selection

import (
	"context"
	"math"
	"sort"

	"github.com/PaddlePaddle/PaddleDTX/xdb/errorx"

	"github.com/PaddlePaddle/PaddleDTX/hetero/config"
	"github.com/PaddlePaddle/PaddleDTX/hetero/errcodes"
)

// IvDecider keeps host columns by information value. The values are computed outside
// this package and handed over per host column index.
type IvDecider struct {
	values         []float64
	valueThreshold float64
	percentile     float64
}

// NewHostColsDecider picks the guest's decider from conf. With host iv values configured
// the iv thresholds decide, otherwise the agreed host_left_cols answer.
func NewHostColsDecider(conf *config.SelectionConf) (HostColsDecider, error) {
	if conf == nil || conf.Iv == nil {
		return StaticDecider{}, nil
	}
	if len(conf.Iv.HostIvValues) == 0 {
		return StaticDecider(conf.Iv.HostLeftCols), nil
	}
	for _, method := range conf.FilterMethods {
		if method == IvPercentile && (conf.Iv.Percentile <= 0 || conf.Iv.Percentile > 1) {
			return nil, errorx.New(errcodes.ErrCodeConfig, "iv percentile must be in (0, 1], got %v", conf.Iv.Percentile)
		}
	}
	return &IvDecider{
		values:         append([]float64{}, conf.Iv.HostIvValues...),
		valueThreshold: conf.Iv.ValueThreshold,
		percentile:     conf.Iv.Percentile,
	}, nil
}

// DecideHostCols keeps columns with iv >= value_threshold for iv_value_thres, and the
// top percentile of columns by iv for iv_percentile. Ties at the cut are kept.
func (d *IvDecider) DecideHostCols(ctx context.Context, filterName string, hostCols []int) ([]int, error) {
	ivs := make([]float64, 0, len(hostCols))
	for _, c := range hostCols {
		if c < 0 || c >= len(d.values) {
			return nil, errorx.New(errcodes.ErrCodeConfig, "no iv value for host column %d", c)
		}
		ivs = append(ivs, d.values[c])
	}

	var threshold float64
	switch filterName {
	case IvValueThres:
		threshold = d.valueThreshold
	case IvPercentile:
		if len(ivs) == 0 {
			return []int{}, nil
		}
		sorted := append([]float64{}, ivs...)
		sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))
		k := int(math.Ceil(d.percentile * float64(len(sorted))))
		if k < 1 {
			k = 1
		}
		threshold = sorted[k-1]
	default:
		return nil, errorx.New(errcodes.ErrCodeConfig, "filter %s is not an iv filter", filterName)
	}

	left := make([]int, 0, len(hostCols))
	for i, c := range hostCols {
		if ivs[i] >= threshold {
			left = append(left, c)
		}
	}
	return left, nil
}
