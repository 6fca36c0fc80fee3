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

package engine

import (
	"context"
	"net/http"
	"time"

	"github.com/PaddlePaddle/PaddleDTX/xdb/errorx"

	"github.com/PaddlePaddle/PaddleDTX/hetero/config"
	"github.com/PaddlePaddle/PaddleDTX/hetero/errcodes"
	"github.com/PaddlePaddle/PaddleDTX/hetero/monitor"
	"github.com/PaddlePaddle/PaddleDTX/hetero/p2p"
	"github.com/PaddlePaddle/PaddleDTX/hetero/server"
	"github.com/PaddlePaddle/PaddleDTX/hetero/storage/local"
	"github.com/PaddlePaddle/PaddleDTX/hetero/transfer"
)

const (
	// rpcRetryTimes is how many times a failed push is retried
	rpcRetryTimes = 2
	// rpcRetryInterval is the interval between two pushes in seconds
	rpcRetryInterval = 1
)

// Node is a party reachable over gRPC, it owns the transfer server, the peer pool and the metrics endpoint
type Node struct {
	*Party

	server  *server.Server
	pool    *p2p.P2P
	metrics *http.Server
}

// NewNode wires a party from its configuration, nothing listens before Start
func NewNode(conf *config.PartyConf) (*Node, error) {
	if conf == nil {
		return nil, errorx.New(errcodes.ErrCodeConfig, "missing config: party")
	}
	if !transfer.ValidRole(conf.Role) {
		return nil, errorx.New(errcodes.ErrCodeConfig, "role %s can not join a federation", conf.Role)
	}
	if conf.ListenAddress == "" {
		return nil, errorx.New(errcodes.ErrCodeConfig, "missing config: party.listenAddress")
	}
	storagePath := ""
	if conf.Storage != nil {
		storagePath = conf.Storage.LocalStoragePath
	}
	storage, err := local.New(storagePath)
	if err != nil {
		return nil, err
	}

	mailbox := transfer.NewMailbox(conf.Role)
	srv := server.New(conf.ListenAddress)
	transfer.NewService(mailbox).RegisterTransferServer(srv.GrpcServer)

	pool := p2p.NewP2P()
	client := transfer.NewRpcClient(conf.Peers, pool, time.Duration(conf.RpcTimeout)*time.Second, rpcRetryTimes, rpcRetryInterval)
	ch := transfer.NewRpcChannel(conf.Role, mailbox, client, time.Duration(conf.RecvTimeout)*time.Second)

	recorder := monitor.NewRecorder()
	party, err := NewParty(conf, ch, storage, recorder)
	if err != nil {
		return nil, err
	}

	n := &Node{Party: party, server: srv, pool: pool}
	if conf.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", recorder.Handler())
		n.metrics = &http.Server{Addr: conf.MetricsAddress, Handler: mux}
	}
	return n, nil
}

// Start binds the listen address and serves peers in the background until ctx is done
func (n *Node) Start(ctx context.Context) error {
	if err := n.server.Listen(); err != nil {
		return errorx.NewCode(err, errcodes.ErrCodeConfig, "failed to listen")
	}
	go func() {
		if err := n.server.Serve(ctx); err != nil && err != context.Canceled {
			logger.WithError(err).Error("transfer server stopped")
		}
	}()
	if n.metrics != nil {
		go func() {
			if err := n.metrics.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.WithError(err).Error("metrics server stopped")
			}
		}()
	}
	logger.WithField("address", n.server.Addr()).Infof("%s node started", n.Role())
	return nil
}

// Addr returns the bound transfer address, empty before Start
func (n *Node) Addr() string {
	return n.server.Addr()
}

// Close stops serving and releases peer connections
func (n *Node) Close() {
	n.server.Stop()
	n.pool.Stop()
	if n.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		n.metrics.Shutdown(ctx)
	}
}
