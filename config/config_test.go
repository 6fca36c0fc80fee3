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

package config

import (
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitConfig(t *testing.T) {
	path := "./../conf/config.toml"

	err := InitConfig(path)
	require.NoError(t, err)

	pc := GetPartyConf()
	require.Equal(t, "host", pc.Role)
	require.Equal(t, "127.0.0.1:8184", pc.Peers["guest"])
	require.Equal(t, ":9185", pc.MetricsAddress)
	require.Equal(t, []string{"unique_value", "iv_value_thres", "coefficient_of_variation_value_thres"}, pc.Selection.FilterMethods)
	require.Equal(t, "PAILLIER", pc.Glm.EncryptMethod)
	require.Equal(t, -1, pc.Glm.ExposureIndex)
	require.True(t, pc.Glm.FitIntercept)
	require.Equal(t, 5, pc.Glm.Cv.NSplits)
	require.Equal(t, []int{0, 1, 2}, pc.Selection.Iv.HostLeftCols["iv_value_thres"])
	require.Equal(t, []float64{0.15, 0.01, 0.04}, pc.Selection.Iv.HostIvValues)
	require.Equal(t, 0.02, pc.Selection.Iv.ValueThreshold)
	require.Equal(t, 0.9, pc.Selection.Iv.Percentile)
	require.Equal(t, "debug", GetLogConf().Level)
}

func TestExposureIndexDefault(t *testing.T) {
	content := `
[log]
level = "info"
path = "./logs"

[party]
role = "guest"

[party.glm]
encryptMethod = "NONE"
maxIter = 5
`
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, ioutil.WriteFile(path, []byte(content), 0644))

	require.NoError(t, InitConfig(path))
	require.Equal(t, -1, GetPartyConf().Glm.ExposureIndex)
	require.Equal(t, 5, GetPartyConf().Glm.MaxIter)
}
