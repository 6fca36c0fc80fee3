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

// Package model defines the persisted layout of trained artifacts.
// A bundle maps one model version to named records, each record being a JSON document.
package model

import (
	"encoding/json"

	"github.com/PaddlePaddle/PaddleDTX/xdb/errorx"

	"github.com/PaddlePaddle/PaddleDTX/hetero/errcodes"
)

// Record names
const (
	PoissonRegressionMeta  = "PoissonRegressionMeta"
	PoissonRegressionParam = "PoissonRegressionParam"
	FeatureSelectionMeta   = "FeatureSelectionMeta"
	FeatureSelectionParam  = "FeatureSelectionParam"
)

// Bundle is {version: {record name: record}}
type Bundle struct {
	Model map[string]map[string]json.RawMessage `json:"model"`
}

// NewBundle creates an empty bundle holding version
func NewBundle(version string) *Bundle {
	return &Bundle{
		Model: map[string]map[string]json.RawMessage{version: {}},
	}
}

// FromBytes decodes a persisted bundle
func FromBytes(data []byte) (*Bundle, error) {
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, errorx.NewCode(err, errcodes.ErrCodeConfig, "failed to decode model bundle")
	}
	if _, err := b.Version(); err != nil {
		return nil, err
	}
	return &b, nil
}

// Bytes encodes the bundle
func (b *Bundle) Bytes() ([]byte, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return nil, errorx.NewCode(err, errcodes.ErrCodeEncoding, "failed to encode model bundle")
	}
	return data, nil
}

// Version returns the single model version, a bundle with zero or several versions is invalid
func (b *Bundle) Version() (string, error) {
	if b == nil || len(b.Model) != 1 {
		n := 0
		if b != nil {
			n = len(b.Model)
		}
		return "", errorx.New(errcodes.ErrCodeConfig, "model bundle must hold exactly one version, got %d", n)
	}
	for v := range b.Model {
		return v, nil
	}
	return "", nil
}

// Put stores record under name in the bundle's version
func (b *Bundle) Put(name string, record interface{}) error {
	v, err := b.Version()
	if err != nil {
		return err
	}
	data, err := json.Marshal(record)
	if err != nil {
		return errorx.NewCode(err, errcodes.ErrCodeEncoding, "failed to encode record %s", name)
	}
	if b.Model[v] == nil {
		b.Model[v] = make(map[string]json.RawMessage)
	}
	b.Model[v][name] = data
	return nil
}

// Has reports whether a record name exists
func (b *Bundle) Has(name string) bool {
	v, err := b.Version()
	if err != nil {
		return false
	}
	_, ok := b.Model[v][name]
	return ok
}

// Get decodes the record name into out
func (b *Bundle) Get(name string, out interface{}) error {
	v, err := b.Version()
	if err != nil {
		return err
	}
	data, ok := b.Model[v][name]
	if !ok {
		return errorx.New(errcodes.ErrCodeConfig, "record %s missing in model %s", name, v)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errorx.NewCode(err, errcodes.ErrCodeConfig, "failed to decode record %s", name)
	}
	return nil
}

// GetPair decodes a meta and param record which are only valid together
func (b *Bundle) GetPair(metaName, paramName string, meta, param interface{}) error {
	hasMeta, hasParam := b.Has(metaName), b.Has(paramName)
	if hasMeta != hasParam {
		return errorx.New(errcodes.ErrCodeConfig, "records %s and %s must be loaded together", metaName, paramName)
	}
	if err := b.Get(metaName, meta); err != nil {
		return err
	}
	return b.Get(paramName, param)
}
