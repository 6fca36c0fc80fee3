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
	"github.com/PaddlePaddle/PaddleDTX/xdb/errorx"

	"github.com/PaddlePaddle/PaddleDTX/hetero/errcodes"
)

// LeftCols records a column set before and after a filter
type LeftCols struct {
	OriginalCols []int `json:"original_cols"`
	LeftCols     []int `json:"left_cols"`
}

// FilterParam is the persisted outcome of one filter
type FilterParam struct {
	FilterName    string             `json:"filter_name"`
	FeatureValues map[string]float64 `json:"feature_values,omitempty"`
	LeftCols      LeftCols           `json:"left_cols"`
}

// FilterResult tracks the columns of one party across the ordered filters.
// Indices always refer to the original column space. The left set only shrinks
// and stays a subset of the original columns.
type FilterResult struct {
	header   []string
	original []int
	toSelect []int
	left     []int
}

// NewFilterResult starts with every column of header selected
func NewFilterResult(header []string) *FilterResult {
	all := make([]int, len(header))
	for i := range all {
		all[i] = i
	}
	return &FilterResult{
		header:   append([]string{}, header...),
		original: all,
		toSelect: append([]int{}, all...),
		left:     append([]int{}, all...),
	}
}

// NewFilterResultFromLeft restores bookkeeping from a previously agreed left set
func NewFilterResultFromLeft(header []string, left []int) (*FilterResult, error) {
	fr := NewFilterResult(header)
	if err := fr.AddLeftCols(left); err != nil {
		return nil, err
	}
	return fr, nil
}

// Header returns the original column names
func (fr *FilterResult) Header() []string {
	return append([]string{}, fr.header...)
}

// OriginalCols returns every column index of the unfiltered data
func (fr *FilterResult) OriginalCols() []int {
	return append([]int{}, fr.original...)
}

// ToSelect returns the candidates still under consideration
func (fr *FilterResult) ToSelect() []int {
	return append([]int{}, fr.toSelect...)
}

// LeftCols returns the columns retained by all filters so far
func (fr *FilterResult) LeftCols() []int {
	return append([]int{}, fr.left...)
}

// LeftNames returns the names of the retained columns
func (fr *FilterResult) LeftNames() []string {
	names := make([]string, 0, len(fr.left))
	for _, c := range fr.left {
		names = append(names, fr.header[c])
	}
	return names
}

// AddLeftCols commits the columns a filter retained.
// cols must be a duplicate free subset of the current candidates, the committed
// set keeps the original relative order whatever the order of cols.
func (fr *FilterResult) AddLeftCols(cols []int) error {
	if err := checkSubset(cols, fr.toSelect); err != nil {
		return err
	}
	keep := make(map[int]bool, len(cols))
	for _, c := range cols {
		keep[c] = true
	}
	left := make([]int, 0, len(cols))
	for _, c := range fr.toSelect {
		if keep[c] {
			left = append(left, c)
		}
	}
	fr.left = left
	fr.toSelect = append([]int{}, left...)
	return nil
}

// checkSubset fails unless cols is a duplicate free subset of of
func checkSubset(cols, of []int) error {
	allowed := make(map[int]bool, len(of))
	for _, c := range of {
		allowed[c] = true
	}
	seen := make(map[int]bool, len(cols))
	for _, c := range cols {
		if !allowed[c] {
			return errorx.New(errcodes.ErrCodeProtocol, "column %d is not among the selectable columns %v", c, of)
		}
		if seen[c] {
			return errorx.New(errcodes.ErrCodeProtocol, "column %d appears twice", c)
		}
		seen[c] = true
	}
	return nil
}
