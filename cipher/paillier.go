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

package cipher

import (
	"encoding/json"
	"math"
	"math/big"

	"github.com/PaddlePaddle/PaddleDTX/crypto/common/math/homomorphism/paillier"
	"github.com/PaddlePaddle/PaddleDTX/xdb/errorx"

	"github.com/PaddlePaddle/PaddleDTX/hetero/errcodes"
)

// MinKeyLength is the smallest accepted paillier modulus length in bits
const MinKeyLength = 128

// Paillier is the additively homomorphic cipher.
// Real numbers are encoded as fixed-point integers scaled by 10^Exp, negative numbers
// are represented modulo N and decrypted into (-N/2, N/2].
type Paillier struct {
	pub       *paillier.PublicKey
	priv      *paillier.PrivateKey
	precision int
	halfN     *big.Int
}

// GeneratePaillier generates a keypair whose modulus has keyLength bits
func GeneratePaillier(keyLength, precision int) (*Paillier, error) {
	priv, err := paillier.GeneratePrivateKey(keyLength / 2)
	if err != nil {
		return nil, errorx.NewCode(err, errcodes.ErrCodeCipher, "failed to generate paillier key")
	}
	return newPaillier(&priv.PublicKey, priv, precision)
}

// NewPaillier wraps an existing private key
func NewPaillier(priv *paillier.PrivateKey, precision int) (*Paillier, error) {
	if priv == nil {
		return nil, errorx.New(errcodes.ErrCodeConfig, "missing private key for %s cipher", MethodPaillier)
	}
	return newPaillier(&priv.PublicKey, priv, precision)
}

func newPaillier(pub *paillier.PublicKey, priv *paillier.PrivateKey, precision int) (*Paillier, error) {
	if pub == nil || pub.N == nil || pub.N.Sign() <= 0 {
		return nil, errorx.New(errcodes.ErrCodeConfig, "missing public key for %s cipher", MethodPaillier)
	}
	if precision <= 0 {
		precision = DefaultPrecision
	}
	return &Paillier{
		pub:       pub,
		priv:      priv,
		precision: precision,
		halfN:     new(big.Int).Rsh(pub.N, 1),
	}, nil
}

func (p *Paillier) Method() string {
	return MethodPaillier
}

func (p *Paillier) CanDecrypt() bool {
	return p.priv != nil
}

func (p *Paillier) PublicKey() ([]byte, error) {
	return json.Marshal(p.pub)
}

func (p *Paillier) Encrypt(x float64) (*Ciphertext, error) {
	m, err := p.encode(x, p.precision)
	if err != nil {
		return nil, err
	}
	c, err := p.pub.EncryptSupNegNum(m)
	if err != nil {
		return nil, errorx.NewCode(err, errcodes.ErrCodeCipher, "failed to encrypt")
	}
	return &Ciphertext{C: c, Exp: p.precision}, nil
}

func (p *Paillier) Decrypt(c *Ciphertext) (float64, error) {
	if p.priv == nil {
		return 0, errorx.New(errcodes.ErrCodeCipher, "decrypt without private key")
	}
	if err := p.check(c); err != nil {
		return 0, err
	}
	m := p.priv.DecryptSupNegNum(c.C)
	f, _ := new(big.Rat).SetFrac(m, pow10(c.Exp)).Float64()
	return f, nil
}

func (p *Paillier) Add(a, b *Ciphertext) (*Ciphertext, error) {
	if err := p.check(a); err != nil {
		return nil, err
	}
	if err := p.check(b); err != nil {
		return nil, err
	}
	ca, cb, exp := a.C, b.C, a.Exp
	switch {
	case a.Exp < b.Exp:
		ca = p.pub.CypherPlainMultiply(a.C, pow10(b.Exp-a.Exp))
		exp = b.Exp
	case a.Exp > b.Exp:
		cb = p.pub.CypherPlainMultiply(b.C, pow10(a.Exp-b.Exp))
	}
	return &Ciphertext{C: p.pub.CyphersAdd(ca, cb), Exp: exp}, nil
}

func (p *Paillier) AddPlain(a *Ciphertext, x float64) (*Ciphertext, error) {
	b, err := p.Encrypt(x)
	if err != nil {
		return nil, err
	}
	return p.Add(a, b)
}

func (p *Paillier) MulScalar(c *Ciphertext, k float64) (*Ciphertext, error) {
	if err := p.check(c); err != nil {
		return nil, err
	}
	s, err := p.encode(k, p.precision)
	if err != nil {
		return nil, err
	}
	s.Mod(s, p.pub.N)
	return &Ciphertext{C: p.pub.CypherPlainMultiply(c.C, s), Exp: c.Exp + p.precision}, nil
}

func (p *Paillier) Rerandomize(c *Ciphertext) (*Ciphertext, error) {
	if err := p.check(c); err != nil {
		return nil, err
	}
	zero, err := p.pub.Encrypt(big.NewInt(0))
	if err != nil {
		return nil, errorx.NewCode(err, errcodes.ErrCodeCipher, "failed to encrypt zero")
	}
	return &Ciphertext{C: p.pub.CyphersAdd(c.C, zero), Exp: c.Exp}, nil
}

// encode converts x into round(x * 10^exp), failing outside (-N/2, N/2)
func (p *Paillier) encode(x float64, exp int) (*big.Int, error) {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return nil, errorx.New(errcodes.ErrCodeCipher, "can not encode %v", x)
	}
	f := new(big.Float).SetPrec(256).SetFloat64(x)
	f.Mul(f, new(big.Float).SetPrec(256).SetInt(pow10(exp)))
	if x < 0 {
		f.Sub(f, big.NewFloat(0.5))
	} else {
		f.Add(f, big.NewFloat(0.5))
	}
	m, _ := f.Int(nil)
	if new(big.Int).Abs(m).Cmp(p.halfN) >= 0 {
		return nil, errorx.New(errcodes.ErrCodeCipher, "value %v out of cipher range", x)
	}
	return m, nil
}

func (p *Paillier) check(c *Ciphertext) error {
	if c == nil || c.C == nil {
		return errorx.New(errcodes.ErrCodeCipher, "empty paillier ciphertext")
	}
	return nil
}

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
