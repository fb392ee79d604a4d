// Copyright 2025 Nhat-Nguyen Nguyen
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package rpc is a request/response client for services exposing the NestJS
// TCP microservice transport.
//
// One long-lived connection is kept per Client. Requests are multiplexed on
// it by packet id and a single goroutine reads replies. When the connection
// breaks, every in-flight call fails with ErrConnection and the next call
// dials again, subject to a redial rate limit.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"golang.org/x/time/rate"
)

var noDeadline time.Time

type Client struct {
	name   string
	cfg    ClientConfig
	dial   func(ctx context.Context, network, address string) (net.Conn, error)
	redial *rate.Limiter

	mu      sync.Mutex
	conn    *conn
	dialing *dialCall
	closed  bool
}

// dialCall is a dial in progress. done closes once err is set.
type dialCall struct {
	done chan struct{}
	err  error
}

type conn struct {
	nc      net.Conn
	writeMu sync.Mutex

	mu       sync.Mutex
	pending  map[string]chan reply
	done     chan struct{}
	err      error
	failOnce sync.Once
}

// NewClient does not dial; the first Send does.
func NewClient(name string, cfg ClientConfig) *Client {
	limit := rate.Limit(cfg.RedialRate)
	if cfg.RedialRate <= 0 {
		limit = rate.Inf
	}
	burst := max(cfg.RedialBurst, 1)

	return &Client{
		name:   name,
		cfg:    cfg,
		dial:   (&net.Dialer{Timeout: cfg.DialTimeout}).DialContext,
		redial: rate.NewLimiter(limit, burst),
	}
}

func (c *Client) Name() string { return c.name }

// Send publishes data to pattern and waits for the first reply.
//
// A reply without a response, or with a null one, returns (nil, nil). The
// caller's ctx bounds the whole call; an expired deadline yields ErrTimeout.
func (c *Client) Send(ctx context.Context, pattern Pattern, data any) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, c.contextError(ctx, pattern)
	}

	cn, err := c.connection(ctx)
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	frame, err := encodeRequest(id.String(), pattern, data)
	if err != nil {
		return nil, err
	}

	ch := make(chan reply, 1)
	if !cn.register(id.String(), ch) {
		c.drop(cn)
		return nil, fmt.Errorf("%w: %s: %v", ErrConnection, c.name, cn.err)
	}
	defer cn.unregister(id.String())

	if err := cn.write(ctx, frame); err != nil {
		cn.fail(err)
		c.drop(cn)
		return nil, fmt.Errorf("%w: %s: write: %v", ErrConnection, c.name, err)
	}

	select {
	case rep := <-ch:
		return c.result(pattern, rep)
	case <-cn.done:
		// the reader may have delivered just before failing
		select {
		case rep := <-ch:
			return c.result(pattern, rep)
		default:
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrConnection, c.name, cn.err)
	case <-ctx.Done():
		return nil, c.contextError(ctx, pattern)
	}
}

// Close shuts the connection down. In-flight calls fail with ErrConnection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.conn != nil {
		c.conn.fail(ErrClosed)
		err := c.conn.nc.Close()
		c.conn = nil
		return err
	}
	return nil
}

func (c *Client) result(pattern Pattern, rep reply) (json.RawMessage, error) {
	if rep.HasErr {
		return nil, &RemoteError{Pattern: pattern.Route(), Body: rep.Err}
	}
	return rep.Response, nil
}

func (c *Client) contextError(ctx context.Context, pattern Pattern) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s %s", ErrTimeout, c.name, pattern.Route())
	}
	return ctx.Err()
}

// connection returns the live connection or dials one. Only one dial runs
// at a time; other callers wait for it within their own deadline.
func (c *Client) connection(ctx context.Context) (*conn, error) {
	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return nil, ErrClosed
		}
		if cn := c.conn; cn != nil {
			c.mu.Unlock()
			return cn, nil
		}
		if d := c.dialing; d != nil {
			c.mu.Unlock()
			select {
			case <-d.done:
				// a dial that failed on its caller's deadline says nothing
				// about ours, so try again
				if errors.Is(d.err, ErrConnection) || errors.Is(d.err, ErrClosed) {
					return nil, d.err
				}
				continue
			case <-ctx.Done():
				return nil, c.contextError(ctx, Pattern{})
			}
		}
		if !c.redial.Allow() {
			c.mu.Unlock()
			return nil, fmt.Errorf("%w: %s: redial throttled", ErrConnection, c.name)
		}
		d := &dialCall{done: make(chan struct{})}
		c.dialing = d
		c.mu.Unlock()

		cn, err := c.connect(ctx)

		c.mu.Lock()
		c.dialing = nil
		if err == nil && c.closed {
			_ = cn.nc.Close()
			cn, err = nil, ErrClosed
		}
		if err == nil {
			c.conn = cn
			go c.readLoop(cn)
		}
		d.err = err
		c.mu.Unlock()
		close(d.done)
		return cn, err
	}
}

func (c *Client) connect(ctx context.Context) (*conn, error) {
	nc, err := c.dial(ctx, "tcp", c.cfg.Address())
	if err != nil {
		if ctx.Err() != nil {
			return nil, c.contextError(ctx, Pattern{})
		}
		return nil, fmt.Errorf("%w: %s: dial %s: %v", ErrConnection, c.name, c.cfg.Address(), err)
	}
	slog.DebugContext(ctx, "rpc: connected", slog.String("service", c.name), slog.String("address", c.cfg.Address()))

	return &conn{
		nc:      nc,
		pending: map[string]chan reply{},
		done:    make(chan struct{}),
	}, nil
}

// drop forgets cn so the next call dials again.
func (c *Client) drop(cn *conn) {
	c.mu.Lock()
	if c.conn == cn {
		c.conn = nil
	}
	c.mu.Unlock()
	_ = cn.nc.Close()
}

func (c *Client) readLoop(cn *conn) {
	fr := newFrameReader(cn.nc)
	for {
		payload, err := fr.next()
		if err != nil {
			cn.fail(err)
			c.drop(cn)
			slog.Debug("rpc: connection closed", slog.String("service", c.name), slog.Any("error", err))
			return
		}
		rep, err := decodeReply(payload)
		if err != nil {
			slog.Warn("rpc: dropping undecodable reply", slog.String("service", c.name), slog.Any("error", err))
			continue
		}
		cn.deliver(rep)
	}
}

func (cn *conn) register(id string, ch chan reply) bool {
	cn.mu.Lock()
	defer cn.mu.Unlock()
	if cn.pending == nil {
		return false
	}
	cn.pending[id] = ch
	return true
}

func (cn *conn) unregister(id string) {
	cn.mu.Lock()
	defer cn.mu.Unlock()
	delete(cn.pending, id)
}

// deliver hands the first packet of a call to its waiter. Later packets for
// the same id (the trailing disposal) find no waiter and are ignored.
func (cn *conn) deliver(rep reply) {
	cn.mu.Lock()
	ch, ok := cn.pending[rep.ID]
	delete(cn.pending, rep.ID)
	cn.mu.Unlock()
	if ok {
		ch <- rep
	}
}

func (cn *conn) write(ctx context.Context, frame []byte) error {
	cn.writeMu.Lock()
	defer cn.writeMu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		_ = cn.nc.SetWriteDeadline(deadline)
		defer cn.nc.SetWriteDeadline(noDeadline)
	}
	_, err := cn.nc.Write(frame)
	return err
}

func (cn *conn) fail(err error) {
	cn.failOnce.Do(func() {
		cn.mu.Lock()
		cn.err = err
		cn.pending = nil
		cn.mu.Unlock()
		close(cn.done)
	})
}
