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

// Package vecmath implements the fixed-length float64 vector arithmetic used by
// training and prediction. All operations follow IEEE-754 double semantics,
// return new vectors and never mutate their inputs.
package vecmath

import (
	"math"

	"github.com/PaddlePaddle/PaddleDTX/xdb/errorx"
	"gonum.org/v1/gonum/floats"

	"github.com/PaddlePaddle/PaddleDTX/hetero/errcodes"
)

// MaxExponent bounds the argument of Exp, exp(709.78) is the largest finite float64,
// so linear predictors are clamped into [-MaxExponent, MaxExponent] before exponentiation
const MaxExponent = 700.0

// Vector is a fixed-length numeric vector
type Vector []float64

// Zeros returns a vector of n zeros
func Zeros(n int) Vector {
	return make(Vector, n)
}

// Clone returns a copy of v
func (v Vector) Clone() Vector {
	c := make(Vector, len(v))
	copy(c, v)
	return c
}

// Dot returns the inner product of a and b
func Dot(a, b Vector) (float64, error) {
	if len(a) != len(b) {
		return 0, errorx.New(errcodes.ErrCodeParam, "dot product of vectors with different length %d and %d", len(a), len(b))
	}
	if len(a) == 0 {
		return 0, nil
	}
	return floats.Dot(a, b), nil
}

// Exp returns e**x with x clamped into [-MaxExponent, MaxExponent], NaN propagates
func Exp(x float64) float64 {
	if x > MaxExponent {
		x = MaxExponent
	} else if x < -MaxExponent {
		x = -MaxExponent
	}
	return math.Exp(x)
}

// ExpVec applies Exp element-wise
func ExpVec(v Vector) Vector {
	r := make(Vector, len(v))
	for i, x := range v {
		r[i] = Exp(x)
	}
	return r
}

// Scale returns k*v
func Scale(k float64, v Vector) Vector {
	r := v.Clone()
	floats.Scale(k, r)
	return r
}

// AddScaled returns a + k*b
func AddScaled(a Vector, k float64, b Vector) (Vector, error) {
	if len(a) != len(b) {
		return nil, errorx.New(errcodes.ErrCodeParam, "add vectors with different length %d and %d", len(a), len(b))
	}
	r := make(Vector, len(a))
	floats.AddScaledTo(r, a, k, b)
	return r, nil
}

// Sub returns a - b
func Sub(a, b Vector) (Vector, error) {
	if len(a) != len(b) {
		return nil, errorx.New(errcodes.ErrCodeParam, "subtract vectors with different length %d and %d", len(a), len(b))
	}
	r := make(Vector, len(a))
	floats.SubTo(r, a, b)
	return r, nil
}

// Norm returns the euclidean norm of v
func Norm(v Vector) float64 {
	if len(v) == 0 {
		return 0
	}
	return floats.Norm(v, 2)
}

// Sign returns the element-wise sign of v, zero stays zero
func Sign(v Vector) Vector {
	r := make(Vector, len(v))
	for i, x := range v {
		switch {
		case x > 0:
			r[i] = 1
		case x < 0:
			r[i] = -1
		}
	}
	return r
}
