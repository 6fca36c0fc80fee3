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

package local

import (
	"bytes"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/PaddlePaddle/PaddleDTX/xdb/errorx"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/PaddlePaddle/PaddleDTX/hetero/errcodes"
	"github.com/PaddlePaddle/PaddleDTX/hetero/model"
)

const (
	defaultRootPath = "./models"
)

var logger = logrus.WithField("module", "storage.local")

// Storage stores model bundles locally, one file per model version
type Storage struct {
	RootPath string
}

// New creates Storage with given local path, the outer dir is created if absent
func New(rootPath string) (*Storage, error) {
	if len(rootPath) == 0 {
		rootPath = defaultRootPath
	}

	// only create the outer dir, a missing parent is most likely a forgotten mount
	if _, err := os.Stat(rootPath); err != nil {
		if err := os.Mkdir(rootPath, 0777); err != nil {
			return nil, errorx.NewCode(err, errcodes.ErrCodeConfig, "failed to mkdir for storage")
		}
	}
	return &Storage{RootPath: rootPath}, nil
}

// Save saves value under key, an existing key is not overwritten
func (s *Storage) Save(key string, value io.Reader) error {
	exist, err := s.Exist(key)
	if err != nil {
		return err
	}
	if exist {
		return errorx.New(errcodes.ErrCodeAlreadyExists, "key %s already exist", key)
	}

	f, err := os.OpenFile(filepath.Join(s.RootPath, key), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return errorx.NewCode(err, errcodes.ErrCodeInternal, "failed to open file")
	}
	defer f.Close()

	if _, err := io.Copy(f, value); err != nil {
		return errorx.NewCode(err, errcodes.ErrCodeInternal, "failed to write")
	}
	return nil
}

// Load retrieves the content of key
func (s *Storage) Load(key string) (io.ReadCloser, error) {
	exist, err := s.Exist(key)
	if err != nil {
		return nil, err
	}
	if !exist {
		return nil, errorx.New(errcodes.ErrCodeNotFound, "key %s not found", key)
	}

	f, err := os.OpenFile(filepath.Join(s.RootPath, key), os.O_RDONLY, 0644)
	if err != nil {
		return nil, errorx.NewCode(err, errcodes.ErrCodeInternal, "failed to open file")
	}
	return f, nil
}

// Exist checks if key exists
func (s *Storage) Exist(key string) (bool, error) {
	if !isValidKey(key) {
		return false, errorx.New(errcodes.ErrCodeParam, "invalid key: %s", key)
	}
	_, err := os.Stat(filepath.Join(s.RootPath, key))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, errorx.NewCode(err, errcodes.ErrCodeInternal, "failed to check file")
}

// Delete deletes key
func (s *Storage) Delete(key string) error {
	if !isValidKey(key) {
		return errorx.New(errcodes.ErrCodeParam, "invalid key: %s", key)
	}
	if err := os.Remove(filepath.Join(s.RootPath, key)); err != nil {
		if os.IsNotExist(err) {
			return errorx.New(errcodes.ErrCodeNotFound, "key %s not found", key)
		}
		return errorx.NewCode(err, errcodes.ErrCodeInternal, "failed to delete file")
	}
	return nil
}

// SaveModel stores b under its version
func (s *Storage) SaveModel(b *model.Bundle) (string, error) {
	version, err := b.Version()
	if err != nil {
		return "", err
	}
	content, err := b.Bytes()
	if err != nil {
		return "", err
	}
	if err := s.Save(version, bytes.NewReader(content)); err != nil {
		return "", err
	}
	logger.WithField("version", version).Info("model saved")
	return version, nil
}

// LoadModel reads the bundle stored under version
func (s *Storage) LoadModel(version string) (*model.Bundle, error) {
	f, err := s.Load(version)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	content, err := ioutil.ReadAll(f)
	if err != nil {
		return nil, errorx.NewCode(err, errcodes.ErrCodeInternal, "failed to read file")
	}
	b, err := model.FromBytes(content)
	if err != nil {
		return nil, err
	}
	if v, _ := b.Version(); v != version {
		return nil, errorx.New(errcodes.ErrCodeConfig, "file %s holds model version %s", version, v)
	}
	return b, nil
}

func isValidKey(key string) bool {
	// keys are model versions, uuid.Parse keeps them from escaping the root path
	_, err := uuid.Parse(key)
	return err == nil
}
