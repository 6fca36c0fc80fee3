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
	"github.com/PaddlePaddle/PaddleDTX/hetero/model"
)

// Meta describes how selection was run
type Meta struct {
	Role          string   `json:"role"`
	FilterMethods []string `json:"filter_methods"`
}

// Param is the outcome of selection
type Param struct {
	Results       []*FilterParam `json:"results"`
	FinalLeftCols LeftCols       `json:"final_left_cols"`
	Header        []string       `json:"header"`
}

// Export stores the selection meta and param into b
func (s *Selector) Export(b *model.Bundle) error {
	if !s.fitted {
		return errorx.New(errcodes.ErrCodeConfig, "feature selection is neither fitted nor loaded")
	}
	meta := &Meta{Role: s.role}
	for _, r := range s.results {
		meta.FilterMethods = append(meta.FilterMethods, r.FilterName)
	}
	param := &Param{
		Results: s.results,
		FinalLeftCols: LeftCols{
			OriginalCols: s.result.OriginalCols(),
			LeftCols:     s.result.LeftCols(),
		},
		Header: s.result.Header(),
	}
	if err := b.Put(model.FeatureSelectionMeta, meta); err != nil {
		return err
	}
	return b.Put(model.FeatureSelectionParam, param)
}

// Load restores the agreed columns from b so that Transform can replay them
func (s *Selector) Load(b *model.Bundle) error {
	var meta Meta
	var param Param
	if err := b.GetPair(model.FeatureSelectionMeta, model.FeatureSelectionParam, &meta, &param); err != nil {
		return err
	}
	if len(meta.FilterMethods) != len(param.Results) {
		return errorx.New(errcodes.ErrCodeConfig, "selection meta lists %d filters, param holds %d results",
			len(meta.FilterMethods), len(param.Results))
	}
	for i, r := range param.Results {
		if r == nil || r.FilterName != meta.FilterMethods[i] {
			return errorx.New(errcodes.ErrCodeConfig, "selection param does not match filter %s", meta.FilterMethods[i])
		}
	}
	if len(param.FinalLeftCols.OriginalCols) != len(param.Header) {
		return errorx.New(errcodes.ErrCodeConfig, "selection param has %d original cols for %d header names",
			len(param.FinalLeftCols.OriginalCols), len(param.Header))
	}
	fr, err := NewFilterResultFromLeft(param.Header, param.FinalLeftCols.LeftCols)
	if err != nil {
		return errorx.NewCode(err, errcodes.ErrCodeConfig, "invalid left cols in selection param")
	}
	s.result, s.results, s.fitted = fr, param.Results, true
	return nil
}
