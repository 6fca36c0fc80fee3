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
	"sync"
	"time"

	"github.com/PaddlePaddle/PaddleDTX/xdb/errorx"

	"github.com/PaddlePaddle/PaddleDTX/hetero/errcodes"
)

// LocalHub connects parties living in one process, used by standalone runs and tests
type LocalHub struct {
	recvTimeout time.Duration

	lock      sync.Mutex
	mailboxes map[string]*Mailbox
}

// NewLocalHub creates a hub, recvTimeout <= 0 means receiving blocks until ctx is done
func NewLocalHub(recvTimeout time.Duration) *LocalHub {
	return &LocalHub{
		recvTimeout: recvTimeout,
		mailboxes:   make(map[string]*Mailbox),
	}
}

func (h *LocalHub) mailbox(role string) *Mailbox {
	h.lock.Lock()
	defer h.lock.Unlock()
	m, ok := h.mailboxes[role]
	if !ok {
		m = NewMailbox(role)
		h.mailboxes[role] = m
	}
	return m
}

// Channel returns the channel of role
func (h *LocalHub) Channel(role string) Channel {
	return newChannel(role, h.mailbox(role), h, h.recvTimeout)
}

func (h *LocalHub) deliver(ctx context.Context, env *Envelope) error {
	if err := ctx.Err(); err != nil {
		return errorx.NewCode(err, errcodes.ErrCodeProtocol, "send on tag %s cancelled", env.Tag)
	}
	return h.mailbox(env.To).Deliver(env)
}
