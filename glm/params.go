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
	"strings"

	"github.com/PaddlePaddle/PaddleDTX/xdb/errorx"

	"github.com/PaddlePaddle/PaddleDTX/hetero/cipher"
	"github.com/PaddlePaddle/PaddleDTX/hetero/config"
	"github.com/PaddlePaddle/PaddleDTX/hetero/errcodes"
)

// Penalties
const (
	PenaltyL1   = "L1"
	PenaltyL2   = "L2"
	PenaltyNone = "NONE"
)

// OptimizerSgd is the only supported optimizer
const OptimizerSgd = "sgd"

// CvParams configures cross validation
type CvParams struct {
	NSplits int
	Shuffle bool
	Seed    string
}

// Params are the hyperparameters of poisson regression
type Params struct {
	EncryptMethod    string
	KeyLength        int
	Precision        int
	Penalty          string
	Eps              float64
	Alpha            float64
	Optimizer        string
	BatchSize        int
	LearningRate     float64
	MaxIter          int
	ConvergeFunc     string
	ReEncryptBatches int
	PartyWeight      float64
	FitIntercept     bool
	ExposureIndex    int
	Cv               CvParams
}

// DefaultParams returns the default hyperparameters
func DefaultParams() Params {
	return Params{
		EncryptMethod: cipher.MethodPaillier,
		KeyLength:     1024,
		Precision:     cipher.DefaultPrecision,
		Penalty:       PenaltyL2,
		Eps:           1e-4,
		Alpha:         1.0,
		Optimizer:     OptimizerSgd,
		BatchSize:     -1,
		LearningRate:  0.01,
		MaxIter:       100,
		ConvergeFunc:  ConvergeDiff,
		PartyWeight:   1,
		FitIntercept:  true,
		ExposureIndex: -1,
		Cv:            CvParams{NSplits: 5},
	}
}

// ParamsFromConf converts the [party.glm] configuration
func ParamsFromConf(conf *config.GlmConf) (Params, error) {
	if conf == nil {
		return Params{}, errorx.New(errcodes.ErrCodeConfig, "missing glm configuration")
	}
	p := Params{
		EncryptMethod:    conf.EncryptMethod,
		KeyLength:        conf.KeyLength,
		Precision:        conf.Precision,
		Penalty:          conf.Penalty,
		Eps:              conf.Eps,
		Alpha:            conf.Alpha,
		Optimizer:        conf.Optimizer,
		BatchSize:        conf.BatchSize,
		LearningRate:     conf.LearningRate,
		MaxIter:          conf.MaxIter,
		ConvergeFunc:     conf.ConvergeFunc,
		ReEncryptBatches: conf.ReEncryptBatches,
		PartyWeight:      conf.PartyWeight,
		FitIntercept:     conf.FitIntercept,
		ExposureIndex:    conf.ExposureIndex,
	}
	if conf.Cv != nil {
		p.Cv = CvParams{NSplits: conf.Cv.NSplits, Shuffle: conf.Cv.Shuffle, Seed: conf.Cv.Seed}
	}
	return p, p.Validate()
}

// Validate checks every hyperparameter, normalizing names to upper or lower case
func (p *Params) Validate() error {
	p.Penalty = strings.ToUpper(p.Penalty)
	if p.Penalty == "" {
		p.Penalty = PenaltyNone
	}
	switch p.Penalty {
	case PenaltyL1, PenaltyL2, PenaltyNone:
	default:
		return errorx.New(errcodes.ErrCodeConfig, "unsupported penalty %s", p.Penalty)
	}

	p.Optimizer = strings.ToLower(p.Optimizer)
	if p.Optimizer == "" {
		p.Optimizer = OptimizerSgd
	}
	if p.Optimizer != OptimizerSgd {
		return errorx.New(errcodes.ErrCodeConfig, "unsupported optimizer %s", p.Optimizer)
	}

	p.ConvergeFunc = strings.ToLower(p.ConvergeFunc)
	if p.ConvergeFunc == "" {
		p.ConvergeFunc = ConvergeDiff
	}
	if _, err := NewConvergeFunc(p.ConvergeFunc, p.Eps); err != nil {
		return err
	}

	p.EncryptMethod = strings.ToUpper(p.EncryptMethod)
	if p.Precision <= 0 {
		p.Precision = cipher.DefaultPrecision
	}
	if cipher.IsPaillier(p.EncryptMethod) && p.KeyLength < cipher.MinKeyLength {
		return errorx.New(errcodes.ErrCodeConfig, "invalid key length %d", p.KeyLength)
	}

	switch {
	case p.MaxIter <= 0:
		return errorx.New(errcodes.ErrCodeConfig, "max_iter must be positive, got %d", p.MaxIter)
	case p.LearningRate <= 0:
		return errorx.New(errcodes.ErrCodeConfig, "learning_rate must be positive, got %v", p.LearningRate)
	case p.Alpha < 0:
		return errorx.New(errcodes.ErrCodeConfig, "alpha must not be negative, got %v", p.Alpha)
	case p.Eps < 0:
		return errorx.New(errcodes.ErrCodeConfig, "eps must not be negative, got %v", p.Eps)
	case p.ReEncryptBatches < 0:
		return errorx.New(errcodes.ErrCodeConfig, "re_encrypt_batches must not be negative, got %d", p.ReEncryptBatches)
	case p.ExposureIndex < -1:
		return errorx.New(errcodes.ErrCodeConfig, "unsupported exposure_index %d", p.ExposureIndex)
	case p.Cv.NSplits != 0 && p.Cv.NSplits != 5 && p.Cv.NSplits != 10:
		return errorx.New(errcodes.ErrCodeConfig, "cv n_splits only could be 5 or 10, got %d", p.Cv.NSplits)
	}
	return nil
}
