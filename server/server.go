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

// Package server runs the grpc server through which remote parties push transfer messages.
package server

import (
	"context"
	"net"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
)

const (
	// MaxRecvMsgSize max message size
	MaxRecvMsgSize = 1024 * 1024 * 1024
	// MaxConcurrentStreams max concurrent
	MaxConcurrentStreams = 1000
	// GRPCTIMEOUT grpc connection timeout in seconds
	GRPCTIMEOUT = 20
)

var (
	logger = logrus.WithField("module", "server")
)

// Server wraps a grpc server listening on the party's address
type Server struct {
	listenAddr string
	GrpcServer *grpc.Server

	listener net.Listener
}

// New creates a grpc server which has no service registered and has not
// started to accept requests yet
func New(listenAddr string) *Server {
	ser := grpc.NewServer(grpc.MaxRecvMsgSize(MaxRecvMsgSize),
		grpc.MaxConcurrentStreams(MaxConcurrentStreams), grpc.ConnectionTimeout(time.Second*time.Duration(GRPCTIMEOUT)))
	return &Server{
		listenAddr: listenAddr,
		GrpcServer: ser,
	}
}

// Listen binds the listen address, Serve calls it when not done yet
func (s *Server) Listen() error {
	if s.listener != nil {
		return nil
	}
	lis, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		logger.WithError(err).Errorf("listen tcp error: %v", err)
		return err
	}
	s.listener = lis
	return nil
}

// Addr returns the bound address, empty before Listen
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Serve runs the grpc server and blocks until ctx is done or serving fails
func (s *Server) Serve(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.GrpcServer.Serve(s.listener)
	}()

	select {
	case <-ctx.Done():
		s.Stop()
		<-errCh
		return ctx.Err()
	case err := <-errCh:
		if err != nil {
			logger.WithError(err).Errorf("failed to start grpc serve: %v", err)
		}
		return err
	}
}

// Stop stops the grpc server
func (s *Server) Stop() {
	if s.GrpcServer != nil {
		s.GrpcServer.Stop()
	}
}
