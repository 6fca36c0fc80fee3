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

package glm

import (
	"math"

	"github.com/PaddlePaddle/PaddleDTX/xdb/errorx"

	"github.com/PaddlePaddle/PaddleDTX/hetero/common/vecmath"
	"github.com/PaddlePaddle/PaddleDTX/hetero/errcodes"
)

// Weights are the coefficients of one party plus an optional intercept
type Weights struct {
	Coef         vecmath.Vector
	Intercept    float64
	FitIntercept bool
}

// NewWeights splits v into coefficients and, when fitIntercept is set, a trailing intercept slot
func NewWeights(v vecmath.Vector, fitIntercept bool) *Weights {
	w := &Weights{FitIntercept: fitIntercept}
	if fitIntercept && len(v) > 0 {
		w.Coef = v[:len(v)-1].Clone()
		w.Intercept = v[len(v)-1]
		return w
	}
	w.Coef = v.Clone()
	return w
}

// ZeroWeights creates n zero coefficients
func ZeroWeights(n int, fitIntercept bool) *Weights {
	return &Weights{Coef: vecmath.Zeros(n), FitIntercept: fitIntercept}
}

// Vector returns coefficients with the intercept appended when fitted
func (w *Weights) Vector() vecmath.Vector {
	v := w.Coef.Clone()
	if w.FitIntercept {
		v = append(v, w.Intercept)
	}
	return v
}

// Clone deep copies w
func (w *Weights) Clone() *Weights {
	c := *w
	c.Coef = w.Coef.Clone()
	return &c
}

// Step returns a new weights vector w - delta, delta is laid out like Vector
func (w *Weights) Step(delta vecmath.Vector) (*Weights, error) {
	next, err := vecmath.Sub(w.Vector(), delta)
	if err != nil {
		return nil, errorx.Wrap(err, "failed to update weights")
	}
	return NewWeights(next, w.FitIntercept), nil
}

// LinearPredictor returns dot(x, coef) + intercept for every record
func LinearPredictor(features []vecmath.Vector, w *Weights) ([]float64, error) {
	wx := make([]float64, 0, len(features))
	for i, x := range features {
		d, err := vecmath.Dot(x, w.Coef)
		if err != nil {
			return nil, errorx.NewCode(err, errcodes.ErrCodeAbnormalData, "record %d does not match the weights", i)
		}
		wx = append(wx, d+w.Intercept)
	}
	return wx, nil
}

// MuFromLinear returns exp(wx) divided by exposure, a nil exposure divides by nothing
func MuFromLinear(wx []float64, exposure []float64) []float64 {
	mu := make([]float64, len(wx))
	for i, v := range wx {
		mu[i] = vecmath.Exp(v)
		if exposure != nil {
			mu[i] /= exposure[i]
		}
	}
	return mu
}

// ComputeMu returns the expected mean exp(dot(x, coef) + intercept) / exposure of every record
func ComputeMu(features []vecmath.Vector, w *Weights, exposure []float64) ([]float64, error) {
	wx, err := LinearPredictor(features, w)
	if err != nil {
		return nil, err
	}
	return MuFromLinear(wx, exposure), nil
}

// poissonLoss returns mean(mu - y * log(mu))
func poissonLoss(mu, y []float64) float64 {
	if len(mu) == 0 {
		return 0
	}
	var sum float64
	for i := range mu {
		sum += mu[i] - y[i]*math.Log(mu[i])
	}
	return sum / float64(len(mu))
}
