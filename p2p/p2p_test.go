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

package p2p

import (
	"testing"

	"github.com/PaddlePaddle/PaddleDTX/xdb/errorx"
	"github.com/stretchr/testify/require"

	"github.com/PaddlePaddle/PaddleDTX/hetero/errcodes"
)

func TestPeerPool(t *testing.T) {
	p := NewP2P("127.0.0.1:18184")

	peer, err := p.GetPeer("127.0.0.1:18184")
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:18184", peer.Address())

	again, err := p.GetPeer("127.0.0.1:18184")
	require.NoError(t, err)
	require.True(t, peer == again)

	// dialing is lazy, no server is required
	conn, err := peer.GetConnect()
	require.NoError(t, err)
	require.NotNil(t, conn)

	p.FreePeer()
	p.FreePeer()
	p.Stop()

	_, err = p.GetPeer("127.0.0.1:18185")
	require.True(t, errorx.Is(err, errcodes.ErrCodeRPCFindNoPeer))
}
