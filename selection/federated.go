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

package selection

import (
	"context"

	"github.com/PaddlePaddle/PaddleDTX/xdb/errorx"

	"github.com/PaddlePaddle/PaddleDTX/hetero/dataset"
	"github.com/PaddlePaddle/PaddleDTX/hetero/transfer"
)

const (
	hostSelectColsTag = "host_select_cols"
	resultLeftColsTag = "result_left_cols"
)

// HostColsDecider computes the joint statistic of a federated filter on the guest side
// and decides which of the host's candidate columns survive
type HostColsDecider interface {
	DecideHostCols(ctx context.Context, filterName string, hostCols []int) ([]int, error)
}

// StaticDecider answers with columns agreed ahead of time, keyed by filter name.
// A filter without an entry keeps every host candidate.
type StaticDecider map[string][]int

// DecideHostCols returns the configured columns of filterName
func (sd StaticDecider) DecideHostCols(ctx context.Context, filterName string, hostCols []int) ([]int, error) {
	cols, ok := sd[filterName]
	if !ok {
		return append([]int{}, hostCols...), nil
	}
	return append([]int{}, cols...), nil
}

// hostFederatedFilter relays the host's candidates to the guest and accepts its answer
type hostFederatedFilter struct {
	name string
	ch   transfer.Channel
}

// NewHostFederatedFilter creates the host side of a federated filter
func NewHostFederatedFilter(name string, ch transfer.Channel) Filter {
	return &hostFederatedFilter{name: name, ch: ch}
}

func (f *hostFederatedFilter) Name() string {
	return f.name
}

func (f *hostFederatedFilter) ComputesLocally() bool {
	return false
}

func (f *hostFederatedFilter) Apply(ctx context.Context, fr *FilterResult, data *dataset.Table) (*Decision, error) {
	toSelect := fr.ToSelect()
	if err := f.ch.Send(ctx, transfer.RoleGuest, transfer.Tag(hostSelectColsTag, f.name), toSelect); err != nil {
		return nil, errorx.Wrap(err, "failed to send select cols of %s", f.name)
	}
	logger.Info("Sent select cols to guest")

	var left []int
	if err := f.ch.Receive(ctx, transfer.RoleGuest, transfer.Tag(resultLeftColsTag, f.name), &left); err != nil {
		return nil, errorx.Wrap(err, "failed to receive left cols of %s", f.name)
	}
	logger.Infof("Received left columns from guest, received left_cols: %v", left)
	if err := checkSubset(left, toSelect); err != nil {
		return nil, errorx.Wrap(err, "guest returned invalid left cols for %s", f.name)
	}
	return &Decision{Left: left}, nil
}

// guestFederatedFilter answers the host's candidates, its own columns are left unchanged
type guestFederatedFilter struct {
	name    string
	ch      transfer.Channel
	decider HostColsDecider
}

// NewGuestFederatedFilter creates the guest side of a federated filter
func NewGuestFederatedFilter(name string, ch transfer.Channel, decider HostColsDecider) Filter {
	return &guestFederatedFilter{name: name, ch: ch, decider: decider}
}

func (f *guestFederatedFilter) Name() string {
	return f.name
}

func (f *guestFederatedFilter) ComputesLocally() bool {
	return false
}

func (f *guestFederatedFilter) Apply(ctx context.Context, fr *FilterResult, data *dataset.Table) (*Decision, error) {
	var hostCols []int
	if err := f.ch.Receive(ctx, transfer.RoleHost, transfer.Tag(hostSelectColsTag, f.name), &hostCols); err != nil {
		return nil, errorx.Wrap(err, "failed to receive host select cols of %s", f.name)
	}
	left, err := f.decider.DecideHostCols(ctx, f.name, hostCols)
	if err != nil {
		return nil, err
	}
	if err := checkSubset(left, hostCols); err != nil {
		return nil, errorx.Wrap(err, "decided host cols of %s", f.name)
	}
	if err := f.ch.Send(ctx, transfer.RoleHost, transfer.Tag(resultLeftColsTag, f.name), left); err != nil {
		return nil, errorx.Wrap(err, "failed to send left cols of %s", f.name)
	}
	logger.Infof("Sent left cols %v of %s to host", left, f.name)
	return &Decision{Left: fr.ToSelect()}, nil
}
