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

	"github.com/PaddlePaddle/PaddleDTX/xdb/errorx"

	"github.com/PaddlePaddle/PaddleDTX/hetero/errcodes"
)

type slot struct {
	ready     chan struct{}
	payload   []byte
	delivered bool
	consumed  bool
}

// receivedSlot replaces a slot once its payload is handed out, it keeps the tag used
var receivedSlot = &slot{delivered: true, consumed: true}

// Mailbox stores the messages addressed to one party until they are received.
// Each (sender, tag) pair may be delivered once and received once.
type Mailbox struct {
	owner string

	lock  sync.Mutex
	slots map[string]*slot
}

// NewMailbox creates the mailbox of role
func NewMailbox(role string) *Mailbox {
	return &Mailbox{
		owner: role,
		slots: make(map[string]*slot),
	}
}

// Owner returns the role the mailbox belongs to
func (m *Mailbox) Owner() string {
	return m.owner
}

func slotKey(from, tag string) string {
	return from + "|" + tag
}

func (m *Mailbox) getSlot(from, tag string) *slot {
	k := slotKey(from, tag)
	s, ok := m.slots[k]
	if !ok {
		s = &slot{ready: make(chan struct{})}
		m.slots[k] = s
	}
	return s
}

// Deliver stores an incoming envelope, a second delivery for the same sender and tag is a protocol error
func (m *Mailbox) Deliver(env *Envelope) error {
	if env == nil || !ValidRole(env.From) {
		return errorx.New(errcodes.ErrCodeProtocol, "message from unknown role")
	}
	if env.To != m.owner {
		return errorx.New(errcodes.ErrCodeProtocol, "message for %s delivered to %s", env.To, m.owner)
	}

	m.lock.Lock()
	defer m.lock.Unlock()
	s := m.getSlot(env.From, env.Tag)
	if s.delivered {
		return errorx.New(errcodes.ErrCodeProtocol, "duplicate message from %s on tag %s", env.From, env.Tag)
	}
	s.payload = env.Payload
	s.delivered = true
	close(s.ready)
	return nil
}

// Wait blocks until the message from sender on tag is delivered.
// Waiting twice on the same tag, or ctx being done first, is a protocol error.
func (m *Mailbox) Wait(ctx context.Context, from, tag string) ([]byte, error) {
	m.lock.Lock()
	s := m.getSlot(from, tag)
	if s.consumed {
		m.lock.Unlock()
		return nil, errorx.New(errcodes.ErrCodeProtocol, "message from %s on tag %s already received", from, tag)
	}
	s.consumed = true
	m.lock.Unlock()

	select {
	case <-s.ready:
		m.lock.Lock()
		payload := s.payload
		m.slots[slotKey(from, tag)] = receivedSlot
		m.lock.Unlock()
		return payload, nil
	case <-ctx.Done():
		return nil, errorx.NewCode(ctx.Err(), errcodes.ErrCodeProtocol, "no message from %s on tag %s", from, tag)
	}
}
