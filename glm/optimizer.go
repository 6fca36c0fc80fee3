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

	"github.com/PaddlePaddle/PaddleDTX/hetero/common/vecmath"
)

// optimizer is a plain gradient descent with learning rate decay 1/sqrt(k+1).
// The intercept is never penalized.
type optimizer struct {
	learningRate float64
	penalty      string
	alpha        float64
}

func newOptimizer(p Params) *optimizer {
	return &optimizer{
		learningRate: p.LearningRate,
		penalty:      p.Penalty,
		alpha:        p.Alpha,
	}
}

// delta returns the step to subtract from the weights in iteration k
func (o *optimizer) delta(grad vecmath.Vector, k int) vecmath.Vector {
	lr := o.learningRate / math.Sqrt(float64(k+1))
	return vecmath.Scale(lr, grad)
}

// penaltyGradient returns the penalty gradient laid out like w.Vector()
func (o *optimizer) penaltyGradient(w *Weights) vecmath.Vector {
	var g vecmath.Vector
	switch o.penalty {
	case PenaltyL2:
		g = vecmath.Scale(o.alpha, w.Coef)
	case PenaltyL1:
		g = vecmath.Scale(o.alpha, vecmath.Sign(w.Coef))
	default:
		g = vecmath.Zeros(len(w.Coef))
	}
	if w.FitIntercept {
		g = append(g, 0)
	}
	return g
}

// penaltyLoss returns the penalty term added to the loss
func (o *optimizer) penaltyLoss(w *Weights) float64 {
	switch o.penalty {
	case PenaltyL2:
		return 0.5 * o.alpha * vecmath.Norm(w.Coef) * vecmath.Norm(w.Coef)
	case PenaltyL1:
		var s float64
		for _, c := range w.Coef {
			s += math.Abs(c)
		}
		return o.alpha * s
	}
	return 0
}
