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

// Package transfer carries round-tagged, role-addressed messages between parties.
// It is the single place where cross-party I/O happens, every protocol receives a Channel explicitly.
package transfer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PaddlePaddle/PaddleDTX/xdb/errorx"
	"github.com/sirupsen/logrus"

	"github.com/PaddlePaddle/PaddleDTX/hetero/errcodes"
)

// Roles of a federated computation
const (
	RoleGuest   = "guest"
	RoleHost    = "host"
	RoleArbiter = "arbiter"
)

var logger = logrus.WithField("module", "transfer")

// ValidRole reports whether role is guest, host or arbiter
func ValidRole(role string) bool {
	return role == RoleGuest || role == RoleHost || role == RoleArbiter
}

// Channel sends and receives payloads tagged by round.
// For one (peer, tag) pair there is exactly one send and one receive, Receive blocks until
// the matching payload arrives or ctx is done. Payloads are JSON encoded on the wire.
type Channel interface {
	// Role returns the role of the local party
	Role() string
	Send(ctx context.Context, to, tag string, payload interface{}) error
	Receive(ctx context.Context, from, tag string, out interface{}) error
}

// Envelope is one message on the wire
type Envelope struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Tag     string `json:"tag"`
	Payload []byte `json:"payload"`
}

// Tag joins a logical message name with round identifiers, e.g. Tag("loss", 3, 0) is "loss.3.0"
func Tag(name string, parts ...interface{}) string {
	if len(parts) == 0 {
		return name
	}
	ss := make([]string, 0, len(parts)+1)
	ss = append(ss, name)
	for _, p := range parts {
		ss = append(ss, fmt.Sprint(p))
	}
	return strings.Join(ss, ".")
}

// transport moves an envelope to the mailbox of its recipient
type transport interface {
	deliver(ctx context.Context, env *Envelope) error
}

// channel implements Channel on top of a local mailbox and a transport
type channel struct {
	role        string
	mailbox     *Mailbox
	transport   transport
	recvTimeout time.Duration

	lock sync.Mutex
	sent map[string]bool
}

func newChannel(role string, mailbox *Mailbox, t transport, recvTimeout time.Duration) *channel {
	return &channel{
		role:        role,
		mailbox:     mailbox,
		transport:   t,
		recvTimeout: recvTimeout,
		sent:        make(map[string]bool),
	}
}

func (c *channel) Role() string {
	return c.role
}

func (c *channel) Send(ctx context.Context, to, tag string, payload interface{}) error {
	if !ValidRole(to) || to == c.role {
		return errorx.New(errcodes.ErrCodeProtocol, "invalid recipient %s of %s on tag %s", to, c.role, tag)
	}
	k := to + "|" + tag
	c.lock.Lock()
	if c.sent[k] {
		c.lock.Unlock()
		return errorx.New(errcodes.ErrCodeProtocol, "tag %s already sent to %s", tag, to)
	}
	c.sent[k] = true
	c.lock.Unlock()

	data, err := json.Marshal(payload)
	if err != nil {
		return errorx.NewCode(err, errcodes.ErrCodeEncoding, "failed to encode payload on tag %s", tag)
	}
	env := &Envelope{From: c.role, To: to, Tag: tag, Payload: data}
	if err := c.transport.deliver(ctx, env); err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{"from": c.role, "to": to, "tag": tag}).Debug("message sent")
	return nil
}

func (c *channel) Receive(ctx context.Context, from, tag string, out interface{}) error {
	if !ValidRole(from) || from == c.role {
		return errorx.New(errcodes.ErrCodeProtocol, "invalid sender %s for %s on tag %s", from, c.role, tag)
	}
	if c.recvTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.recvTimeout)
		defer cancel()
	}
	data, err := c.mailbox.Wait(ctx, from, tag)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errorx.NewCode(err, errcodes.ErrCodeEncoding, "failed to decode payload from %s on tag %s", from, tag)
	}
	logger.WithFields(logrus.Fields{"from": from, "to": c.role, "tag": tag}).Debug("message received")
	return nil
}

// prefixChannel scopes every tag of an underlying channel
type prefixChannel struct {
	Channel
	prefix string
}

// WithPrefix returns a channel whose tags are all prefixed, used to isolate
// repeated runs of one protocol such as cross validation folds
func WithPrefix(ch Channel, prefix string) Channel {
	if prefix == "" {
		return ch
	}
	return &prefixChannel{Channel: ch, prefix: prefix}
}

func (p *prefixChannel) Send(ctx context.Context, to, tag string, payload interface{}) error {
	return p.Channel.Send(ctx, to, p.prefix+"/"+tag, payload)
}

func (p *prefixChannel) Receive(ctx context.Context, from, tag string, out interface{}) error {
	return p.Channel.Receive(ctx, from, p.prefix+"/"+tag, out)
}
