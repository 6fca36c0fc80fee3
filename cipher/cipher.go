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

// Package cipher provides the homomorphic cipher operators used by encrypted-gradient training.
// Training code depends only on Operator, the concrete cipher is picked once from configuration.
package cipher

import (
	"encoding/json"
	"math/big"
	"strings"

	"github.com/PaddlePaddle/PaddleDTX/crypto/common/math/homomorphism/paillier"
	"github.com/PaddlePaddle/PaddleDTX/xdb/errorx"
	"github.com/sirupsen/logrus"

	"github.com/PaddlePaddle/PaddleDTX/hetero/errcodes"
)

const (
	// MethodPaillier selects the additively homomorphic paillier cipher
	MethodPaillier = "PAILLIER"
	// MethodNone selects the identity cipher
	MethodNone = "NONE"

	// DefaultPrecision is the number of decimal digits kept by fixed-point encoding
	DefaultPrecision = 8
)

var logger = logrus.WithField("module", "cipher")

// Ciphertext is a value produced by an Operator.
// For paillier C holds the cipher and Exp the decimal exponent of the fixed-point encoding,
// for the identity cipher Plain holds the value itself.
type Ciphertext struct {
	C     *big.Int `json:"c,omitempty"`
	Exp   int      `json:"e,omitempty"`
	Plain float64  `json:"p,omitempty"`
}

// Operator is the uniform interface over homomorphic ciphers.
// For every x in the supported range Decrypt(Encrypt(x)) == x,
// Decrypt(Add(Encrypt(a), Encrypt(b))) == a+b and Decrypt(MulScalar(Encrypt(a), k)) == k*a.
type Operator interface {
	// Method returns the configured method name
	Method() string
	Encrypt(x float64) (*Ciphertext, error)
	// Decrypt fails with ErrCodeCipher if the operator holds no private key
	Decrypt(c *Ciphertext) (float64, error)
	Add(a, b *Ciphertext) (*Ciphertext, error)
	AddPlain(a *Ciphertext, x float64) (*Ciphertext, error)
	MulScalar(c *Ciphertext, k float64) (*Ciphertext, error)
	// Rerandomize returns a fresh ciphertext of the same plaintext
	Rerandomize(c *Ciphertext) (*Ciphertext, error)
	// PublicKey returns the serialized public key, nil for the identity cipher
	PublicKey() ([]byte, error)
	// CanDecrypt reports whether the operator holds decryption material
	CanDecrypt() bool
}

// NewOperator creates a key-holding operator for method.
// PAILLIER generates a fresh keypair with a modulus of keyLength bits, anything else yields the identity cipher.
func NewOperator(method string, keyLength, precision int) (Operator, error) {
	if !IsPaillier(method) {
		return NewFake(), nil
	}
	if keyLength < MinKeyLength {
		return nil, errorx.New(errcodes.ErrCodeConfig, "invalid key length %d, at least %d bits required", keyLength, MinKeyLength)
	}
	logger.WithField("keyLength", keyLength).Debug("generate paillier key pair")
	return GeneratePaillier(keyLength, precision)
}

// FromPublicKey creates an encrypt-only operator from a serialized public key
func FromPublicKey(method string, key []byte, precision int) (Operator, error) {
	if !IsPaillier(method) {
		return NewFake(), nil
	}
	if len(key) == 0 {
		return nil, errorx.New(errcodes.ErrCodeConfig, "missing public key for %s cipher", MethodPaillier)
	}
	var pk paillier.PublicKey
	if err := json.Unmarshal(key, &pk); err != nil {
		return nil, errorx.NewCode(err, errcodes.ErrCodeConfig, "failed to parse public key")
	}
	if pk.N == nil || pk.G == nil {
		return nil, errorx.New(errcodes.ErrCodeConfig, "incomplete public key for %s cipher", MethodPaillier)
	}
	return newPaillier(&pk, nil, precision)
}

// IsPaillier reports whether method names the paillier cipher
func IsPaillier(method string) bool {
	return strings.ToUpper(method) == MethodPaillier
}

// EncryptVector encrypts every element of v
func EncryptVector(op Operator, v []float64) ([]*Ciphertext, error) {
	cs := make([]*Ciphertext, 0, len(v))
	for _, x := range v {
		c, err := op.Encrypt(x)
		if err != nil {
			return nil, err
		}
		cs = append(cs, c)
	}
	return cs, nil
}

// DecryptVector decrypts every element of cs
func DecryptVector(op Operator, cs []*Ciphertext) ([]float64, error) {
	v := make([]float64, 0, len(cs))
	for _, c := range cs {
		x, err := op.Decrypt(c)
		if err != nil {
			return nil, err
		}
		v = append(v, x)
	}
	return v, nil
}

// WeightedSum returns the encryption of sum(ws[i] * dec(cs[i]))
func WeightedSum(op Operator, cs []*Ciphertext, ws []float64) (*Ciphertext, error) {
	if len(cs) != len(ws) {
		return nil, errorx.New(errcodes.ErrCodeCipher, "weighted sum of %d ciphertexts with %d weights", len(cs), len(ws))
	}
	sum, err := op.Encrypt(0)
	if err != nil {
		return nil, err
	}
	for i, c := range cs {
		p, err := op.MulScalar(c, ws[i])
		if err != nil {
			return nil, err
		}
		if sum, err = op.Add(sum, p); err != nil {
			return nil, err
		}
	}
	return sum, nil
}

// Sum returns the encryption of the sum of every plaintext in cs
func Sum(op Operator, cs []*Ciphertext) (*Ciphertext, error) {
	sum, err := op.Encrypt(0)
	if err != nil {
		return nil, err
	}
	for _, c := range cs {
		if sum, err = op.Add(sum, c); err != nil {
			return nil, err
		}
	}
	return sum, nil
}
