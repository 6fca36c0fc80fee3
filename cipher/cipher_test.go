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
	"math"
	"testing"

	"github.com/PaddlePaddle/PaddleDTX/xdb/errorx"
	"github.com/stretchr/testify/require"

	"github.com/PaddlePaddle/PaddleDTX/hetero/errcodes"
)

const testKeyLength = 256

func TestPaillierRoundTrip(t *testing.T) {
	op, err := NewOperator("paillier", testKeyLength, 8)
	require.NoError(t, err)
	require.Equal(t, MethodPaillier, op.Method())
	require.True(t, op.CanDecrypt())

	for _, x := range []float64{0, 1, 1.5, -3.25, 123456.789, -1e-8, 0.12345678} {
		c, err := op.Encrypt(x)
		require.NoError(t, err)
		d, err := op.Decrypt(c)
		require.NoError(t, err)
		require.InDelta(t, x, d, 1e-8)
	}

	_, err = op.Encrypt(math.NaN())
	require.True(t, errorx.Is(err, errcodes.ErrCodeCipher))
	_, err = op.Encrypt(math.Inf(-1))
	require.True(t, errorx.Is(err, errcodes.ErrCodeCipher))
}

func TestPaillierHomomorphism(t *testing.T) {
	op, err := NewOperator(MethodPaillier, testKeyLength, 6)
	require.NoError(t, err)

	a, err := op.Encrypt(2.5)
	require.NoError(t, err)
	b, err := op.Encrypt(-4.25)
	require.NoError(t, err)

	sum, err := op.Add(a, b)
	require.NoError(t, err)
	d, err := op.Decrypt(sum)
	require.NoError(t, err)
	require.InDelta(t, -1.75, d, 1e-6)

	prod, err := op.MulScalar(a, -3)
	require.NoError(t, err)
	d, err = op.Decrypt(prod)
	require.NoError(t, err)
	require.InDelta(t, -7.5, d, 1e-6)

	// different exponents are aligned before addition
	mixed, err := op.Add(prod, b)
	require.NoError(t, err)
	d, err = op.Decrypt(mixed)
	require.NoError(t, err)
	require.InDelta(t, -11.75, d, 1e-6)

	plus, err := op.AddPlain(prod, 10)
	require.NoError(t, err)
	d, err = op.Decrypt(plus)
	require.NoError(t, err)
	require.InDelta(t, 2.5, d, 1e-6)

	zero, err := op.MulScalar(a, 0)
	require.NoError(t, err)
	d, err = op.Decrypt(zero)
	require.NoError(t, err)
	require.InDelta(t, 0, d, 1e-9)

	r, err := op.Rerandomize(a)
	require.NoError(t, err)
	require.NotEqual(t, 0, r.C.Cmp(a.C))
	d, err = op.Decrypt(r)
	require.NoError(t, err)
	require.InDelta(t, 2.5, d, 1e-6)

	ws, err := WeightedSum(op, []*Ciphertext{a, b}, []float64{2, 0.5})
	require.NoError(t, err)
	d, err = op.Decrypt(ws)
	require.NoError(t, err)
	require.InDelta(t, 2.875, d, 1e-6)

	s, err := Sum(op, []*Ciphertext{a, b, a})
	require.NoError(t, err)
	d, err = op.Decrypt(s)
	require.NoError(t, err)
	require.InDelta(t, 0.75, d, 1e-6)

	_, err = WeightedSum(op, []*Ciphertext{a}, nil)
	require.True(t, errorx.Is(err, errcodes.ErrCodeCipher))
}

func TestPublicKeyOperator(t *testing.T) {
	op, err := NewOperator(MethodPaillier, testKeyLength, 8)
	require.NoError(t, err)
	key, err := op.PublicKey()
	require.NoError(t, err)

	pub, err := FromPublicKey(MethodPaillier, key, 8)
	require.NoError(t, err)
	require.False(t, pub.CanDecrypt())

	vs := []float64{1.25, -2, 0}
	cs, err := EncryptVector(pub, vs)
	require.NoError(t, err)
	_, err = DecryptVector(pub, cs)
	require.True(t, errorx.Is(err, errcodes.ErrCodeCipher))

	ds, err := DecryptVector(op, cs)
	require.NoError(t, err)
	for i := range vs {
		require.InDelta(t, vs[i], ds[i], 1e-8)
	}
}

func TestMissingKeyMaterial(t *testing.T) {
	_, err := FromPublicKey(MethodPaillier, nil, 8)
	require.True(t, errorx.Is(err, errcodes.ErrCodeConfig))
	_, err = FromPublicKey(MethodPaillier, []byte("{}"), 8)
	require.True(t, errorx.Is(err, errcodes.ErrCodeConfig))
	_, err = FromPublicKey(MethodPaillier, []byte("not json"), 8)
	require.True(t, errorx.Is(err, errcodes.ErrCodeConfig))
	_, err = NewOperator(MethodPaillier, 0, 8)
	require.True(t, errorx.Is(err, errcodes.ErrCodeConfig))
	_, err = NewPaillier(nil, 8)
	require.True(t, errorx.Is(err, errcodes.ErrCodeConfig))
}

func TestFakeIsIdentity(t *testing.T) {
	for _, method := range []string{MethodNone, "", "plain"} {
		op, err := NewOperator(method, 0, 0)
		require.NoError(t, err)
		require.Equal(t, MethodNone, op.Method())

		c, err := op.Encrypt(3.14159)
		require.NoError(t, err)
		require.Equal(t, 3.14159, c.Plain)
		d, err := op.Decrypt(c)
		require.NoError(t, err)
		require.Equal(t, 3.14159, d)

		m, err := op.MulScalar(c, 2)
		require.NoError(t, err)
		require.Equal(t, 6.28318, m.Plain)
		key, err := op.PublicKey()
		require.NoError(t, err)
		require.Nil(t, key)
	}

	op, err := FromPublicKey(MethodNone, nil, 0)
	require.NoError(t, err)
	require.True(t, op.CanDecrypt())
}
