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

package monitor

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestLossCallback(t *testing.T) {
	r := NewRecorder()
	cb := r.LossCallback("guest", "t1")
	cb(1, 2.5)
	cb(2, 1.5)

	require.Equal(t, 1.5, testutil.ToFloat64(r.loss.WithLabelValues("guest", "t1")))
	require.Equal(t, 2.0, testutil.ToFloat64(r.iterations.WithLabelValues("guest", "t1")))

	r.SetConverged("guest", "t1", true)
	require.Equal(t, 1.0, testutil.ToFloat64(r.converged.WithLabelValues("guest", "t1")))
	r.SetLeftCols("host", "t1", 3)
	require.Equal(t, 3.0, testutil.ToFloat64(r.leftCols.WithLabelValues("host", "t1")))
}

func TestObserveTask(t *testing.T) {
	r := NewRecorder()
	r.ObserveTask("host", "fit", time.Now(), nil)
	r.ObserveTask("host", "fit", time.Now(), errors.New("boom"))

	require.Equal(t, 1.0, testutil.ToFloat64(r.taskTotal.WithLabelValues("host", "fit", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(r.taskTotal.WithLabelValues("host", "fit", "failure")))
}

func TestHandler(t *testing.T) {
	r := NewRecorder()
	r.LossCallback("arbiter", "t2")(1, 0.75)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), `hetero_glm_loss{role="arbiter",task="t2"} 0.75`))
}
