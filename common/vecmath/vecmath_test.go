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

package vecmath

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDot(t *testing.T) {
	d, err := Dot(Vector{1, 2, 3}, Vector{4, 5, 6})
	require.NoError(t, err)
	require.Equal(t, 32.0, d)

	d, err = Dot(Vector{}, Vector{})
	require.NoError(t, err)
	require.Equal(t, 0.0, d)

	_, err = Dot(Vector{1}, Vector{1, 2})
	require.Error(t, err)
}

func TestExpClamp(t *testing.T) {
	require.Equal(t, math.Exp(1), Exp(1))
	require.False(t, math.IsInf(Exp(1e6), 1))
	require.Equal(t, math.Exp(MaxExponent), Exp(1e6))
	require.Equal(t, math.Exp(-MaxExponent), Exp(-1e6))
	require.True(t, math.IsNaN(Exp(math.NaN())))
}

func TestVectorOps(t *testing.T) {
	v := Vector{1, -2, 0}
	s := Scale(2, v)
	require.Equal(t, Vector{2, -4, 0}, s)
	require.Equal(t, Vector{1, -2, 0}, v)

	a, err := AddScaled(v, 0.5, Vector{2, 2, 2})
	require.NoError(t, err)
	require.Equal(t, Vector{2, -1, 1}, a)

	d, err := Sub(v, Vector{1, 1, 1})
	require.NoError(t, err)
	require.Equal(t, Vector{0, -3, -1}, d)

	require.Equal(t, Vector{1, -1, 0}, Sign(v))
	require.InDelta(t, math.Sqrt(5), Norm(v), 1e-12)
	require.Equal(t, Vector{math.Exp(1), 1}, ExpVec(Vector{1, 0}))
}
