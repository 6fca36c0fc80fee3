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

package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/PaddlePaddle/PaddleDTX/hetero/p2p"
	"github.com/PaddlePaddle/PaddleDTX/hetero/transfer"
)

func TestServeTransfer(t *testing.T) {
	s := New("127.0.0.1:0")
	require.NoError(t, s.Listen())
	require.NotEmpty(t, s.Addr())

	box := transfer.NewMailbox(transfer.RoleArbiter)
	transfer.NewService(box).RegisterTransferServer(s.GrpcServer)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Serve(ctx)
	}()

	pool := p2p.NewP2P()
	client := transfer.NewRpcClient(map[string]string{transfer.RoleArbiter: s.Addr()}, pool, 3*time.Second, 2, 1)
	guest := transfer.NewRpcChannel(transfer.RoleGuest, transfer.NewMailbox(transfer.RoleGuest), client, 0)
	require.NoError(t, guest.Send(context.Background(), transfer.RoleArbiter, "batch_info", 3))

	arbiter := transfer.NewRpcChannel(transfer.RoleArbiter, box, nil, time.Second)
	var batches int
	require.NoError(t, arbiter.Receive(context.Background(), transfer.RoleGuest, "batch_info", &batches))
	require.Equal(t, 3, batches)

	pool.Stop()
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}
