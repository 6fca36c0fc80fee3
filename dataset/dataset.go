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

// Package dataset holds the record source consumed by feature selection and training.
// A Table is keyed by record ID, carries an ordered feature header and an optional label column.
package dataset

import (
	"strconv"

	"github.com/PaddlePaddle/PaddleDTX/xdb/errorx"

	"github.com/PaddlePaddle/PaddleDTX/hetero/common/vecmath"
	"github.com/PaddlePaddle/PaddleDTX/hetero/errcodes"
)

// Instance is one record: an ID, its feature vector and an optional label
type Instance struct {
	ID       string
	Features vecmath.Vector
	Label    float64
	HasLabel bool
}

// Clone deep copies the instance
func (ins *Instance) Clone() *Instance {
	c := *ins
	c.Features = ins.Features.Clone()
	return &c
}

// Table is an ordered collection of instances sharing a feature header
type Table struct {
	IDName    string
	LabelName string
	Header    []string
	Instances []*Instance
}

// Count returns the number of records
func (t *Table) Count() int {
	if t == nil {
		return 0
	}
	return len(t.Instances)
}

// FeatureCount returns the number of declared feature columns
func (t *Table) FeatureCount() int {
	if t == nil {
		return 0
	}
	return len(t.Header)
}

// IDs returns record IDs in table order
func (t *Table) IDs() []string {
	ids := make([]string, 0, t.Count())
	for _, ins := range t.Instances {
		ids = append(ids, ins.ID)
	}
	return ids
}

// Index maps record ID to its position
func (t *Table) Index() map[string]int {
	idx := make(map[string]int, t.Count())
	for i, ins := range t.Instances {
		idx[ins.ID] = i
	}
	return idx
}

// Labels returns labels in table order, records without label yield 0
func (t *Table) Labels() []float64 {
	ls := make([]float64, 0, t.Count())
	for _, ins := range t.Instances {
		ls = append(ls, ins.Label)
	}
	return ls
}

// Clone deep copies the table
func (t *Table) Clone() *Table {
	c := &Table{
		IDName:    t.IDName,
		LabelName: t.LabelName,
		Header:    append([]string{}, t.Header...),
		Instances: make([]*Instance, 0, t.Count()),
	}
	for _, ins := range t.Instances {
		c.Instances = append(c.Instances, ins.Clone())
	}
	return c
}

// Map applies fn to a copy of every record and returns a new table with the given header,
// the receiver is left untouched
func (t *Table) Map(header []string, fn func(*Instance) (*Instance, error)) (*Table, error) {
	out := &Table{
		IDName:    t.IDName,
		LabelName: t.LabelName,
		Header:    header,
		Instances: make([]*Instance, 0, t.Count()),
	}
	for _, ins := range t.Instances {
		n, err := fn(ins.Clone())
		if err != nil {
			return nil, err
		}
		out.Instances = append(out.Instances, n)
	}
	return out, nil
}

// Join pairs every record of t with the record of other sharing its ID, in t's order.
// Records without a match are skipped.
func (t *Table) Join(other *Table, fn func(a, b *Instance) error) error {
	idx := other.Index()
	for _, ins := range t.Instances {
		j, ok := idx[ins.ID]
		if !ok {
			continue
		}
		if err := fn(ins, other.Instances[j]); err != nil {
			return err
		}
	}
	return nil
}

// Subset returns the records whose IDs are listed, in the listed order
func (t *Table) Subset(ids []string) (*Table, error) {
	idx := t.Index()
	out := &Table{
		IDName:    t.IDName,
		LabelName: t.LabelName,
		Header:    append([]string{}, t.Header...),
		Instances: make([]*Instance, 0, len(ids)),
	}
	for _, id := range ids {
		i, ok := idx[id]
		if !ok {
			return nil, errorx.New(errcodes.ErrCodeNotFound, "record %s not found in table", id)
		}
		out.Instances = append(out.Instances, t.Instances[i].Clone())
	}
	return out, nil
}

// SelectColumns keeps only the listed columns, in the listed order
func (t *Table) SelectColumns(cols []int) (*Table, error) {
	header := make([]string, 0, len(cols))
	for _, c := range cols {
		if c < 0 || c >= len(t.Header) {
			return nil, errorx.New(errcodes.ErrCodeParam, "column %d out of range [0, %d)", c, len(t.Header))
		}
		header = append(header, t.Header[c])
	}
	return t.Map(header, func(ins *Instance) (*Instance, error) {
		if len(ins.Features) != len(t.Header) {
			return nil, errorx.New(errcodes.ErrCodeAbnormalData, "record %s has %d features, header has %d",
				ins.ID, len(ins.Features), len(t.Header))
		}
		fs := make(vecmath.Vector, 0, len(cols))
		for _, c := range cols {
			fs = append(fs, ins.Features[c])
		}
		ins.Features = fs
		return ins, nil
	})
}

// Column returns the values of column c in table order
func (t *Table) Column(c int) vecmath.Vector {
	col := make(vecmath.Vector, 0, t.Count())
	for _, ins := range t.Instances {
		if c < len(ins.Features) {
			col = append(col, ins.Features[c])
		}
	}
	return col
}

// EmptyTableDetection fails if the table holds no record
func EmptyTableDetection(t *Table) error {
	if t.Count() == 0 {
		return errorx.New(errcodes.ErrCodeAbnormalData, "count of data instance is 0")
	}
	return nil
}

// EmptyFeatureDetection fails if any record has an empty feature vector or one whose
// length differs from the declared header
func EmptyFeatureDetection(t *Table) error {
	if t.FeatureCount() == 0 {
		return errorx.New(errcodes.ErrCodeAbnormalData, "number of features is 0")
	}
	for _, ins := range t.Instances {
		if len(ins.Features) == 0 {
			return errorx.New(errcodes.ErrCodeAbnormalData, "record %s has no feature", ins.ID)
		}
		if len(ins.Features) != t.FeatureCount() {
			return errorx.New(errcodes.ErrCodeAbnormalData, "record %s has %d features, expected %d",
				ins.ID, len(ins.Features), t.FeatureCount())
		}
	}
	return nil
}

// FromRows builds a table from csv rows whose first row is the header.
// labelName may be empty for parties holding no label.
func FromRows(rows [][]string, idName, labelName string) (*Table, error) {
	if len(rows) == 0 {
		return nil, errorx.New(errcodes.ErrCodeAbnormalData, "no header row in file")
	}
	idCol, labelCol := -1, -1
	var header []string
	var featCols []int
	for i, name := range rows[0] {
		switch {
		case name == idName:
			idCol = i
		case labelName != "" && name == labelName:
			labelCol = i
		default:
			header = append(header, name)
			featCols = append(featCols, i)
		}
	}
	if idCol < 0 {
		return nil, errorx.New(errcodes.ErrCodeParam, "id column %s not found in header", idName)
	}
	if labelName != "" && labelCol < 0 {
		return nil, errorx.New(errcodes.ErrCodeParam, "label column %s not found in header", labelName)
	}

	t := &Table{
		IDName:    idName,
		LabelName: labelName,
		Header:    header,
		Instances: make([]*Instance, 0, len(rows)-1),
	}
	for n, r := range rows[1:] {
		if len(r) != len(rows[0]) {
			return nil, errorx.New(errcodes.ErrCodeAbnormalData, "row %d has %d fields, header has %d", n+1, len(r), len(rows[0]))
		}
		ins := &Instance{ID: r[idCol], Features: make(vecmath.Vector, 0, len(featCols))}
		for _, c := range featCols {
			v, err := strconv.ParseFloat(r[c], 64)
			if err != nil {
				return nil, errorx.NewCode(err, errcodes.ErrCodeAbnormalData, "invalid value in row %d column %s", n+1, rows[0][c])
			}
			ins.Features = append(ins.Features, v)
		}
		if labelCol >= 0 {
			v, err := strconv.ParseFloat(r[labelCol], 64)
			if err != nil {
				return nil, errorx.NewCode(err, errcodes.ErrCodeAbnormalData, "invalid label in row %d", n+1)
			}
			ins.Label, ins.HasLabel = v, true
		}
		t.Instances = append(t.Instances, ins)
	}
	return t, nil
}

// Rows converts the table back into csv rows, header first
func (t *Table) Rows() [][]string {
	head := []string{t.IDName}
	if t.LabelName != "" {
		head = append(head, t.LabelName)
	}
	head = append(head, t.Header...)
	rows := [][]string{head}
	for _, ins := range t.Instances {
		r := []string{ins.ID}
		if t.LabelName != "" {
			r = append(r, strconv.FormatFloat(ins.Label, 'g', -1, 64))
		}
		for _, f := range ins.Features {
			r = append(r, strconv.FormatFloat(f, 'g', -1, 64))
		}
		rows = append(rows, r)
	}
	return rows
}
