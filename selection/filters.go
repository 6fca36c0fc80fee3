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
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/PaddlePaddle/PaddleDTX/hetero/dataset"
	"github.com/PaddlePaddle/PaddleDTX/hetero/errcodes"
)

// Filter method names
const (
	UniqueValue          = "unique_value"
	OutlierCols          = "outlier_cols"
	CoeffOfVarValueThres = "coefficient_of_variation_value_thres"
	IvValueThres         = "iv_value_thres"
	IvPercentile         = "iv_percentile"
)

// Decision is what a filter decided about the current candidates
type Decision struct {
	Left []int
	// FeatureValues holds the per column statistic, keyed by column name
	FeatureValues map[string]float64
}

// Filter is one step of feature selection.
// Local filters only look at the party's own data, federated filters exchange
// column indices with the peer party over a transfer.Channel.
type Filter interface {
	Name() string
	ComputesLocally() bool
	Apply(ctx context.Context, fr *FilterResult, data *dataset.Table) (*Decision, error)
}

// columnFilter computes one statistic per candidate column and decides from it
type columnFilter struct {
	name   string
	decide func(col []float64) (value float64, keep bool)
}

func (f *columnFilter) Name() string {
	return f.name
}

func (f *columnFilter) ComputesLocally() bool {
	return true
}

func (f *columnFilter) Apply(ctx context.Context, fr *FilterResult, data *dataset.Table) (*Decision, error) {
	d := &Decision{FeatureValues: make(map[string]float64)}
	for _, c := range fr.ToSelect() {
		if c >= data.FeatureCount() {
			return nil, errorx.New(errcodes.ErrCodeAbnormalData, "column %d out of range in %s filter", c, f.name)
		}
		v, keep := f.decide(data.Column(c))
		d.FeatureValues[data.Header[c]] = v
		if keep {
			d.Left = append(d.Left, c)
		}
	}
	return d, nil
}

// NewUniqueValueFilter drops columns whose max - min is not above eps
func NewUniqueValueFilter(eps float64) Filter {
	return &columnFilter{
		name: UniqueValue,
		decide: func(col []float64) (float64, bool) {
			if len(col) == 0 {
				return 0, false
			}
			r := floats.Max(col) - floats.Min(col)
			return r, r > eps
		},
	}
}

// NewOutlierFilter drops columns whose value at percentile exceeds upperThreshold
func NewOutlierFilter(percentile, upperThreshold float64) (Filter, error) {
	if percentile < 0 || percentile > 1 {
		return nil, errorx.New(errcodes.ErrCodeConfig, "outlier percentile %v out of [0, 1]", percentile)
	}
	return &columnFilter{
		name: OutlierCols,
		decide: func(col []float64) (float64, bool) {
			if len(col) == 0 {
				return 0, true
			}
			sorted := append([]float64{}, col...)
			sort.Float64s(sorted)
			q := stat.Quantile(percentile, stat.Empirical, sorted, nil)
			return q, q <= upperThreshold
		},
	}, nil
}

// NewCoeffOfVarFilter keeps columns whose std / |mean| reaches threshold, a zero mean always keeps
func NewCoeffOfVarFilter(threshold float64) Filter {
	return &columnFilter{
		name: CoeffOfVarValueThres,
		decide: func(col []float64) (float64, bool) {
			if len(col) < 2 {
				return 0, 0 >= threshold
			}
			mean, std := stat.MeanStdDev(col, nil)
			if mean == 0 {
				return 0, true
			}
			cv := std / math.Abs(mean)
			return cv, cv >= threshold
		},
	}
}
