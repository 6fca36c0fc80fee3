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

// Package p2p keeps reusable grpc connections to the peers of a party.
package p2p

import (
	"sync"

	"github.com/PaddlePaddle/PaddleDTX/xdb/errorx"
	"github.com/sirupsen/logrus"

	"github.com/PaddlePaddle/PaddleDTX/hetero/errcodes"
)

var logger = logrus.WithField("module", "p2p")

// State is the state of the P2P
type State uint8

const (
	// NEW indicates that the P2P is ready for providing connections
	NEW State = iota

	// CLOSED indicates that the P2P has been closed
	CLOSED
)

// P2P is a pool of peers keyed by address
type P2P struct {
	peers sync.Map // key is 'ip:port', and value is '*Peer'

	lock  sync.RWMutex
	state State
	wg    sync.WaitGroup // in-flight requests, waited for on Stop
}

// NewP2P creates P2P instance with optional known peer addresses
func NewP2P(addrs ...string) *P2P {
	p := &P2P{
		state: NEW,
	}
	for _, a := range addrs {
		p.peers.Store(a, newPeer(a))
	}
	return p
}

// Stop waits for in-flight requests and closes every connection
func (p *P2P) Stop() {
	p.lock.Lock()
	p.state = CLOSED
	p.lock.Unlock()

	logger.Info("shutting down p2p, waiting for in-flight requests")
	p.wg.Wait()

	p.peers.Range(func(k, v interface{}) bool {
		v.(*Peer).closeConn()
		return true
	})
}

// GetPeer returns the peer of address, creating it if unknown.
// Callers must call FreePeer once the request finishes.
func (p *P2P) GetPeer(address string) (*Peer, error) {
	p.lock.RLock()
	defer p.lock.RUnlock()
	if p.state == CLOSED {
		return nil, errorx.New(errcodes.ErrCodeRPCFindNoPeer, "p2p closed")
	}
	peer, _ := p.peers.LoadOrStore(address, newPeer(address))

	p.wg.Add(1)
	return peer.(*Peer), nil
}

// FreePeer releases a peer got from GetPeer
func (p *P2P) FreePeer() {
	p.wg.Done()
}
