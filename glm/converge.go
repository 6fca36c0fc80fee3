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

// Convergence functions
const (
	ConvergeDiff       = "diff"
	ConvergeAbs        = "abs"
	ConvergeWeightDiff = "weight_diff"
)

// ConvergeFunc decides whether training converged after an iteration.
// lastLoss is NaN for the first iteration, delta is the weight change of the iteration.
type ConvergeFunc interface {
	IsConverged(loss, lastLoss float64, delta vecmath.Vector) bool
}

type diffConverge struct{ eps float64 }

func (c diffConverge) IsConverged(loss, lastLoss float64, delta vecmath.Vector) bool {
	if math.IsNaN(lastLoss) {
		return false
	}
	return math.Abs(loss-lastLoss) < c.eps
}

type absConverge struct{ eps float64 }

func (c absConverge) IsConverged(loss, lastLoss float64, delta vecmath.Vector) bool {
	return loss < c.eps
}

type weightDiffConverge struct{ eps float64 }

func (c weightDiffConverge) IsConverged(loss, lastLoss float64, delta vecmath.Vector) bool {
	return vecmath.Norm(delta) < c.eps
}

// NewConvergeFunc returns the convergence function called name, empty means diff
func NewConvergeFunc(name string, eps float64) (ConvergeFunc, error) {
	switch name {
	case ConvergeDiff, "":
		return diffConverge{eps: eps}, nil
	case ConvergeAbs:
		return absConverge{eps: eps}, nil
	case ConvergeWeightDiff:
		return weightDiffConverge{eps: eps}, nil
	}
	return nil, errorx.New(errcodes.ErrCodeConfig, "unsupported converge function %s", name)
}
