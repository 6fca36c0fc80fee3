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

package transfer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/PaddlePaddle/PaddleDTX/xdb/errorx"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/status"

	"github.com/PaddlePaddle/PaddleDTX/hetero/errcodes"
	"github.com/PaddlePaddle/PaddleDTX/hetero/p2p"
)

const (
	codecName      = "json"
	serviceName    = "hetero.Transfer"
	pushMethodName = "/" + serviceName + "/Push"
)

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// jsonCodec lets grpc carry plain Go structs
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return codecName
}

// Ack is the response of Push
type Ack struct{}

// transferServer is the server API of the transfer service
type transferServer interface {
	Push(ctx context.Context, in *Envelope) (*Ack, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*transferServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Push",
			Handler:    pushHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "transfer",
}

func pushHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(Envelope)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(transferServer).Push(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: pushMethodName,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(transferServer).Push(ctx, req.(*Envelope))
	}
	return interceptor(ctx, in, info, handler)
}

// Service receives envelopes from remote parties into the local mailbox
type Service struct {
	mailbox *Mailbox
}

// NewService creates a Service instance
func NewService(mailbox *Mailbox) *Service {
	return &Service{
		mailbox: mailbox,
	}
}

// Push stores an envelope pushed by a remote party
func (s *Service) Push(ctx context.Context, in *Envelope) (*Ack, error) {
	if in == nil || !ValidRole(in.From) || in.To != s.mailbox.Owner() {
		return nil, status.Error(codes.InvalidArgument, "message is not addressed to this party")
	}
	// only a second delivery of a tag fails from here on
	if err := s.mailbox.Deliver(in); err != nil {
		return nil, status.Error(codes.AlreadyExists, err.Error())
	}
	return &Ack{}, nil
}

// RegisterTransferServer registers the service to grpcServer
func (s *Service) RegisterTransferServer(grpcServer *grpc.Server) {
	grpcServer.RegisterService(&serviceDesc, s)
}

// P2P is used to get rpc connection to remote parties,
// remember to call FreePeer() when rpc requests finish
type P2P interface {
	GetPeer(address string) (*p2p.Peer, error)
	FreePeer()
}

// RpcClient pushes envelopes to the parties listed in peers, keyed by role
type RpcClient struct {
	peers   map[string]string
	cluster P2P
	timeout time.Duration
	times   int
	inteSec int64
}

// NewRpcClient returns RpcClient instance.
// timeout bounds one push, a push is retried 2 times at most with inteSec seconds in between.
func NewRpcClient(peers map[string]string, clu P2P, timeout time.Duration, times int, inteSec int64) *RpcClient {
	if times <= 0 {
		times = 1
	} else if times > 2 {
		times = 3
	} else {
		times += 1
	}
	return &RpcClient{
		peers:   peers,
		cluster: clu,
		timeout: timeout,
		times:   times,
		inteSec: inteSec,
	}
}

func (rc *RpcClient) push(ctx context.Context, env *Envelope) error {
	address, ok := rc.peers[env.To]
	if !ok {
		return errorx.New(errcodes.ErrCodeRPCFindNoPeer, "no address configured for %s", env.To)
	}
	peer, err := rc.cluster.GetPeer(address)
	if err != nil {
		return errorx.New(errcodes.ErrCodeRPCFindNoPeer, "failed to get peer %s when do rpc request: %s", address, err.Error())
	}
	defer rc.cluster.FreePeer()

	conn, err := peer.GetConnect()
	if err != nil {
		return errorx.New(errcodes.ErrCodeRPCConnect, "failed to get connection with %s: %s", address, err.Error())
	}

	if rc.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, rc.timeout)
		defer cancel()
	}
	return conn.Invoke(ctx, pushMethodName, env, &Ack{}, grpc.CallContentSubtype(codecName))
}

func (rc *RpcClient) deliver(ctx context.Context, env *Envelope) error {
	var errR error
	for i := 0; i < rc.times; i++ {
		if i > 0 {
			select {
			case <-time.After(time.Duration(rc.inteSec) * time.Second):
			case <-ctx.Done():
				return errorx.NewCode(ctx.Err(), errcodes.ErrCodeProtocol, "send on tag %s cancelled", env.Tag)
			}
		}
		err := rc.push(ctx, env)
		if err == nil {
			return nil
		}
		if status.Code(err) == codes.AlreadyExists {
			// an earlier attempt reached the peer even though it timed out here
			if i > 0 {
				logger.WithField("tag", env.Tag).Info("message already stored by peer on retry")
				return nil
			}
			return errorx.New(errcodes.ErrCodeProtocol, "peer %s rejected tag %s: %s", env.To, env.Tag, status.Convert(err).Message())
		}
		if status.Code(err) == codes.InvalidArgument {
			return errorx.New(errcodes.ErrCodeProtocol, "peer %s refused tag %s: %s", env.To, env.Tag, status.Convert(err).Message())
		}
		logger.WithError(err).WithField("tag", env.Tag).Warn("failed to push message")
		errR = err
	}
	if _, _, ok := errorx.TryParseFromString(errR.Error()); ok {
		return errR
	}
	return errorx.NewCode(errR, errcodes.ErrCodeRPCConnect, "failed to send tag %s to %s", env.Tag, env.To)
}

// NewRpcChannel creates the channel of role whose incoming messages are stored in mailbox
// by a registered Service and outgoing messages are pushed by client
func NewRpcChannel(role string, mailbox *Mailbox, client *RpcClient, recvTimeout time.Duration) Channel {
	return newChannel(role, mailbox, client, recvTimeout)
}
