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

// Fake is the identity cipher, every operation works on the plaintext directly
type Fake struct{}

// NewFake creates an identity cipher
func NewFake() *Fake {
	return &Fake{}
}

func (f *Fake) Method() string {
	return MethodNone
}

func (f *Fake) Encrypt(x float64) (*Ciphertext, error) {
	return &Ciphertext{Plain: x}, nil
}

func (f *Fake) Decrypt(c *Ciphertext) (float64, error) {
	return c.Plain, nil
}

func (f *Fake) Add(a, b *Ciphertext) (*Ciphertext, error) {
	return &Ciphertext{Plain: a.Plain + b.Plain}, nil
}

func (f *Fake) AddPlain(a *Ciphertext, x float64) (*Ciphertext, error) {
	return &Ciphertext{Plain: a.Plain + x}, nil
}

func (f *Fake) MulScalar(c *Ciphertext, k float64) (*Ciphertext, error) {
	return &Ciphertext{Plain: c.Plain * k}, nil
}

func (f *Fake) Rerandomize(c *Ciphertext) (*Ciphertext, error) {
	return &Ciphertext{Plain: c.Plain}, nil
}

func (f *Fake) PublicKey() ([]byte, error) {
	return nil, nil
}

func (f *Fake) CanDecrypt() bool {
	return true
}
