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

// Package selection implements hetero feature selection: an ordered list of local and
// federated filters shrinking the columns a party keeps, and the replay of that
// decision on new data.
package selection

import (
	"context"
	"strings"

	"github.com/PaddlePaddle/PaddleDTX/xdb/errorx"
	"github.com/sirupsen/logrus"

	"github.com/PaddlePaddle/PaddleDTX/hetero/config"
	"github.com/PaddlePaddle/PaddleDTX/hetero/dataset"
	"github.com/PaddlePaddle/PaddleDTX/hetero/errcodes"
	"github.com/PaddlePaddle/PaddleDTX/hetero/transfer"
)

var logger = logrus.WithField("module", "selection")

// NewFilters builds the configured filters of role in order.
// Unknown or repeated method names are configuration errors.
func NewFilters(role string, conf *config.SelectionConf, ch transfer.Channel, decider HostColsDecider) ([]Filter, error) {
	if conf == nil {
		return nil, errorx.New(errcodes.ErrCodeConfig, "missing selection configuration")
	}
	if role != transfer.RoleGuest && role != transfer.RoleHost {
		return nil, errorx.New(errcodes.ErrCodeConfig, "feature selection does not support role %s", role)
	}

	var filters []Filter
	seen := make(map[string]bool)
	for _, method := range conf.FilterMethods {
		if seen[method] {
			return nil, errorx.New(errcodes.ErrCodeConfig, "filter method %s configured twice", method)
		}
		seen[method] = true

		switch method {
		case UniqueValue:
			eps := 1e-5
			if conf.UniqueValue != nil {
				eps = conf.UniqueValue.Eps
			}
			filters = append(filters, NewUniqueValueFilter(eps))
		case OutlierCols:
			if conf.Outlier == nil {
				return nil, errorx.New(errcodes.ErrCodeConfig, "missing outlier configuration")
			}
			f, err := NewOutlierFilter(conf.Outlier.Percentile, conf.Outlier.UpperThreshold)
			if err != nil {
				return nil, err
			}
			filters = append(filters, f)
		case CoeffOfVarValueThres:
			threshold := 1.0
			if conf.VarianceCoe != nil {
				threshold = conf.VarianceCoe.ValueThreshold
			}
			filters = append(filters, NewCoeffOfVarFilter(threshold))
		case IvValueThres, IvPercentile:
			if ch == nil {
				return nil, errorx.New(errcodes.ErrCodeConfig, "federated filter %s requires a transfer channel", method)
			}
			if role == transfer.RoleHost {
				filters = append(filters, NewHostFederatedFilter(method, ch))
				continue
			}
			if decider == nil {
				return nil, errorx.New(errcodes.ErrCodeConfig, "federated filter %s requires a host cols decider", method)
			}
			filters = append(filters, NewGuestFederatedFilter(method, ch, decider))
		default:
			return nil, errorx.New(errcodes.ErrCodeConfig, "unknown filter method %s", method)
		}
	}
	return filters, nil
}

// Selector drives the filters of one party and replays their outcome on new data
type Selector struct {
	role    string
	filters []Filter

	fitted  bool
	result  *FilterResult
	results []*FilterParam
}

// NewSelector creates a selector running filters in order
func NewSelector(role string, filters []Filter) *Selector {
	return &Selector{
		role:    role,
		filters: filters,
	}
}

// Fit runs every filter and returns data restricted to the surviving columns.
// Malformed data fails before any message is sent.
func (s *Selector) Fit(ctx context.Context, data *dataset.Table) (*dataset.Table, error) {
	logger.Info("Start Hetero Selection Fit and transform.")
	if err := abnormalDetection(data); err != nil {
		return nil, err
	}

	fr := NewFilterResult(data.Header)
	var results []*FilterParam
	for _, f := range s.filters {
		original := fr.ToSelect()
		d, err := f.Apply(ctx, fr, data)
		if err != nil {
			return nil, errorx.Wrap(err, "filter %s failed", f.Name())
		}
		if err := fr.AddLeftCols(d.Left); err != nil {
			return nil, errorx.Wrap(err, "filter %s", f.Name())
		}
		results = append(results, &FilterParam{
			FilterName:    f.Name(),
			FeatureValues: d.FeatureValues,
			LeftCols: LeftCols{
				OriginalCols: original,
				LeftCols:     fr.LeftCols(),
			},
		})
		logger.Infof("[Result][FeatureSelection][%s]Finish %s filter. Current left cols are: %v",
			strings.Title(s.role), f.Name(), fr.LeftNames())
	}

	out, err := data.SelectColumns(fr.LeftCols())
	if err != nil {
		return nil, err
	}
	s.result, s.results, s.fitted = fr, results, true
	logger.Info("Finish Hetero Selection Fit and transform.")
	return out, nil
}

// Transform restricts new data to the stored left columns without running any filter.
// Columns are matched by name, so data may carry its columns in another order.
func (s *Selector) Transform(data *dataset.Table) (*dataset.Table, error) {
	if !s.fitted {
		return nil, errorx.New(errcodes.ErrCodeConfig, "feature selection is neither fitted nor loaded")
	}
	if err := abnormalDetection(data); err != nil {
		return nil, err
	}

	index := make(map[string]int, len(data.Header))
	for i, name := range data.Header {
		index[name] = i
	}
	cols := make([]int, 0, len(s.result.left))
	for _, name := range s.result.LeftNames() {
		c, ok := index[name]
		if !ok {
			return nil, errorx.New(errcodes.ErrCodeAbnormalData, "selected column %s missing in data", name)
		}
		cols = append(cols, c)
	}
	logger.Infof("[Result][FeatureSelection][%s]In transform, Self left cols are: %v",
		strings.Title(s.role), s.result.LeftNames())
	return data.SelectColumns(cols)
}

// FilterResult returns the committed column bookkeeping, nil before Fit or Load
func (s *Selector) FilterResult() *FilterResult {
	return s.result
}

// Results returns the per filter outcome of the last Fit
func (s *Selector) Results() []*FilterParam {
	return s.results
}

func abnormalDetection(data *dataset.Table) error {
	if err := dataset.EmptyTableDetection(data); err != nil {
		return err
	}
	return dataset.EmptyFeatureDetection(data)
}
