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

package dataset

import (
	"bytes"
	"encoding/csv"
	"io/ioutil"
	"os"

	"github.com/PaddlePaddle/PaddleDTX/xdb/errorx"

	"github.com/PaddlePaddle/PaddleDTX/hetero/errcodes"
)

// ReadRows reads all rows from csv file content
func ReadRows(content []byte) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(content))
	rows, err := r.ReadAll()
	if err != nil {
		return nil, errorx.NewCode(err, errcodes.ErrCodeEncoding, "failed to read csv rows")
	}
	return rows, nil
}

// ReadCSV loads a table from a csv file
func ReadCSV(path, idName, labelName string) (*Table, error) {
	content, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errorx.NewCode(err, errcodes.ErrCodeNotFound, "failed to read file %s", path)
	}
	rows, err := ReadRows(content)
	if err != nil {
		return nil, err
	}
	return FromRows(rows, idName, labelName)
}

// WriteRows writes all rows into a csv file, truncating it first
func WriteRows(rows [][]string, path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_RDWR, 0644)
	if err != nil {
		return errorx.NewCode(err, errcodes.ErrCodeInternal, "failed to open file %s", path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return errorx.NewCode(err, errcodes.ErrCodeInternal, "failed to write file %s", path)
	}
	return nil
}

// WriteCSV writes the table into a csv file
func WriteCSV(t *Table, path string) error {
	return WriteRows(t.Rows(), path)
}
