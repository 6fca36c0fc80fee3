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

package model

import (
	"encoding/json"
	"testing"

	"github.com/PaddlePaddle/PaddleDTX/xdb/errorx"
	"github.com/stretchr/testify/require"

	"github.com/PaddlePaddle/PaddleDTX/hetero/errcodes"
)

type testMeta struct {
	Alpha float64 `json:"alpha"`
}

type testParam struct {
	Weight map[string]float64 `json:"weight"`
}

func TestBundle(t *testing.T) {
	b := NewBundle("v1")
	require.NoError(t, b.Put(PoissonRegressionMeta, testMeta{Alpha: 0.01}))
	require.NoError(t, b.Put(PoissonRegressionParam, testParam{Weight: map[string]float64{"x0": 1.5}}))

	data, err := b.Bytes()
	require.NoError(t, err)
	loaded, err := FromBytes(data)
	require.NoError(t, err)
	v, err := loaded.Version()
	require.NoError(t, err)
	require.Equal(t, "v1", v)

	var meta testMeta
	var param testParam
	require.NoError(t, loaded.GetPair(PoissonRegressionMeta, PoissonRegressionParam, &meta, &param))
	require.Equal(t, 0.01, meta.Alpha)
	require.Equal(t, 1.5, param.Weight["x0"])

	require.False(t, loaded.Has(FeatureSelectionMeta))
	err = loaded.Get(FeatureSelectionMeta, &meta)
	require.True(t, errorx.Is(err, errcodes.ErrCodeConfig))
}

func TestBundleErrors(t *testing.T) {
	half := NewBundle("v1")
	require.NoError(t, half.Put(PoissonRegressionParam, testParam{}))
	var meta testMeta
	var param testParam
	err := half.GetPair(PoissonRegressionMeta, PoissonRegressionParam, &meta, &param)
	require.True(t, errorx.Is(err, errcodes.ErrCodeConfig))

	_, err = FromBytes([]byte(`{"model":{"v1":{},"v2":{}}}`))
	require.True(t, errorx.Is(err, errcodes.ErrCodeConfig))
	_, err = FromBytes([]byte(`{"model":{}}`))
	require.True(t, errorx.Is(err, errcodes.ErrCodeConfig))
	_, err = FromBytes([]byte(`not json`))
	require.True(t, errorx.Is(err, errcodes.ErrCodeConfig))

	two := &Bundle{Model: map[string]map[string]json.RawMessage{"a": {}, "b": {}}}
	require.True(t, errorx.Is(two.Put("x", 1), errcodes.ErrCodeConfig))
}
