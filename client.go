// Copyright (C) 2024  wwhai
//
// This program is free software; you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation; either version 2 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License along
// with this program; if not, see <https://www.gnu.org/licenses/>.

package givenergy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	serial "github.com/hootrhino/goserial"
)

// ClientConfig carries connection parameters for a data adapter.
type ClientConfig struct {
	Host string
	Port int

	// ConnectTimeout bounds the TCP dial. Zero means 10 seconds.
	ConnectTimeout time.Duration
	// TxPacing is the gap enforced between consecutive outgoing frames.
	// The adapter misbehaves when messages arrive back to back. Zero
	// means 250 milliseconds.
	TxPacing time.Duration
	// QueueDepth is the outgoing frame queue capacity. Zero means 20.
	QueueDepth int
}

func (c *ClientConfig) applyDefaults() {
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.TxPacing == 0 {
		c.TxPacing = 250 * time.Millisecond
	}
	if c.QueueDepth == 0 {
		c.QueueDepth = 20
	}
}

type outboundFrame struct {
	frame []byte
	// closed once the frame has been written to the socket; nil for
	// frames nobody waits on, like heartbeat echoes
	sent chan struct{}
}

// pendingExchange tracks one in-flight request until its response arrives,
// the exchange is superseded by a newer request of the same shape, or the
// caller gives up.
type pendingExchange struct {
	shape      uint64
	resolved   chan TransparentResponse
	superseded chan struct{}
}

// Client speaks the adapter protocol over one long-lived connection. A send
// loop paces outgoing frames from a queue while a receive loop feeds the
// framer and correlates responses with waiting callers by shape, so any
// number of goroutines can issue requests concurrently.
type Client struct {
	cfg   ClientConfig
	conn  io.ReadWriteCloser
	plant *Plant

	txQueue chan *outboundFrame
	done    chan struct{}
	wg      sync.WaitGroup

	mu      sync.Mutex
	pending map[uint64]*pendingExchange
	closed  bool
}

// Connect dials the data adapter over TCP and starts the send and receive
// loops.
func Connect(cfg ClientConfig) (*Client, error) {
	cfg.applyDefaults()
	addr := net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port))
	conn, err := net.DialTimeout("tcp", addr, cfg.ConnectTimeout)
	if err != nil {
		return nil, &CommunicationError{Message: "connecting to " + addr, Cause: err}
	}
	return newClient(cfg, conn), nil
}

// ConnectSerial opens a directly attached adapter through a serial port.
func ConnectSerial(serialCfg *serial.Config, cfg ClientConfig) (*Client, error) {
	cfg.applyDefaults()
	port, err := serial.Open(serialCfg)
	if err != nil {
		return nil, &CommunicationError{Message: "opening serial port " + serialCfg.Address, Cause: err}
	}
	return newClient(cfg, port), nil
}

func newClient(cfg ClientConfig, conn io.ReadWriteCloser) *Client {
	c := &Client{
		cfg:     cfg,
		conn:    conn,
		plant:   NewPlant(),
		txQueue: make(chan *outboundFrame, cfg.QueueDepth),
		done:    make(chan struct{}),
		pending: make(map[uint64]*pendingExchange),
	}
	c.wg.Add(2)
	go c.sendLoop()
	go c.receiveLoop()
	return c
}

// Plant returns the live aggregate state. Safe to read at any time.
func (c *Client) Plant() *Plant {
	return c.plant
}

// Close shuts the connection down and releases both loops. Safe to call more
// than once and from any goroutine.
func (c *Client) Close() error {
	err := c.shutdown()
	c.wg.Wait()
	return err
}

// shutdown marks the client closed, releases every pending exchange and tears
// down the connection. Unlike Close it does not wait for the loops, so the
// loops themselves call it when the socket dies: a connection failure is
// fatal, and waiters must be released promptly rather than left to burn
// their timeout budget against a dead socket.
func (c *Client) shutdown() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	for shape, p := range c.pending {
		close(p.superseded)
		delete(c.pending, shape)
	}
	c.mu.Unlock()

	close(c.done)
	return c.conn.Close()
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Client) sendLoop() {
	defer c.wg.Done()
	for {
		select {
		case <-c.done:
			return
		case out := <-c.txQueue:
			if _, err := c.conn.Write(out.frame); err != nil {
				if !c.isClosed() {
					logf("client: write failed: %v", err)
					c.shutdown()
				}
				if out.sent != nil {
					close(out.sent)
				}
				return
			}
			if out.sent != nil {
				close(out.sent)
			}
			// pace transmissions, the adapter drops frames that
			// arrive back to back
			select {
			case <-c.done:
				return
			case <-time.After(c.cfg.TxPacing):
			}
		}
	}
}

func (c *Client) receiveLoop() {
	defer c.wg.Done()
	framer := NewClientFramer()
	buf := make([]byte, 300)
	for {
		n, err := c.conn.Read(buf)
		if err != nil {
			if !c.isClosed() {
				logf("client: read failed: %v", err)
				c.shutdown()
			}
			return
		}
		for _, result := range framer.Decode(buf[:n]) {
			if result.Err != nil {
				logf("client: discarding undecodable message: %v", result.Err)
				continue
			}
			c.dispatch(result.PDU)
		}
	}
}

func (c *Client) dispatch(pdu PDU) {
	if hb, ok := pdu.(*HeartbeatRequest); ok {
		echo, err := hb.ExpectedResponse().Encode()
		if err != nil {
			logf("client: cannot encode heartbeat reply: %v", err)
			return
		}
		// the adapter drops the connection after three missed
		// heartbeats, so wait for queue space rather than drop the echo
		select {
		case c.txQueue <- &outboundFrame{frame: echo}:
		case <-c.done:
		}
		return
	}

	if resp, ok := pdu.(TransparentResponse); ok {
		c.resolve(resp)
	}
	c.plant.Update(pdu)
}

// expect registers interest in a response shape. A newer expectation for the
// same shape supersedes the old one: the earlier caller is released with an
// error rather than left to race for one reply.
func (c *Client) expect(shape uint64) (*pendingExchange, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, &CommunicationError{Message: "client is closed"}
	}
	if prev, ok := c.pending[shape]; ok {
		close(prev.superseded)
	}
	p := &pendingExchange{
		shape:      shape,
		resolved:   make(chan TransparentResponse, 1),
		superseded: make(chan struct{}),
	}
	c.pending[shape] = p
	return p, nil
}

func (c *Client) abandon(p *pendingExchange) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.pending[p.shape]; ok && cur == p {
		delete(c.pending, p.shape)
	}
}

func (c *Client) resolve(resp TransparentResponse) {
	c.mu.Lock()
	p, ok := c.pending[resp.ShapeHash()]
	if ok {
		delete(c.pending, resp.ShapeHash())
	}
	c.mu.Unlock()
	if ok {
		p.resolved <- resp
	}
}

// SendRequestAndAwaitResponse transmits a request and waits for a matching
// response, retrying on timeout and on error responses. Returns TimeoutError
// once the retry budget is spent.
func (c *Client) SendRequestAndAwaitResponse(req TransparentRequest, timeout time.Duration, retries int) (TransparentResponse, error) {
	shape := req.ExpectedResponse().ShapeHash()
	frame, err := req.Encode()
	if err != nil {
		return nil, err
	}
	// worst case the frame sits behind a full queue of paced messages
	sendBudget := time.Duration(c.cfg.QueueDepth+1) * time.Second

	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			logf("client: timeout awaiting %s, retry %d/%d", req, attempt, retries)
		}
		p, err := c.expect(shape)
		if err != nil {
			return nil, err
		}

		sent := make(chan struct{})
		select {
		case c.txQueue <- &outboundFrame{frame: frame, sent: sent}:
		case <-c.done:
			c.abandon(p)
			return nil, &CommunicationError{Message: "client is closed"}
		}
		select {
		case <-sent:
		case <-c.done:
			c.abandon(p)
			return nil, &CommunicationError{Message: "client is closed"}
		case <-time.After(sendBudget):
			c.abandon(p)
			return nil, &TimeoutError{Message: fmt.Sprintf("%s not sent within %s", req, sendBudget)}
		}

		select {
		case resp := <-p.resolved:
			if resp.IsError() {
				logf("client: error response to %s, retrying", req)
				continue
			}
			return resp, nil
		case <-p.superseded:
			if c.isClosed() {
				return nil, &CommunicationError{Message: "connection lost"}
			}
			return nil, &CommunicationError{Message: fmt.Sprintf("%s superseded by a newer identical request", req)}
		case <-c.done:
			return nil, &CommunicationError{Message: "client is closed"}
		case <-time.After(timeout):
			c.abandon(p)
		}
	}
	return nil, &TimeoutError{Message: fmt.Sprintf("no response to %s after %d attempts", req, retries+1)}
}

// Execute issues a batch of requests concurrently and waits for all of them.
// Individual failures are collected and joined; nil means every request got
// a good response.
func (c *Client) Execute(requests []TransparentRequest, timeout time.Duration, retries int) error {
	errs := make([]error, len(requests))
	var wg sync.WaitGroup
	for i, req := range requests {
		wg.Add(1)
		go func(i int, req TransparentRequest) {
			defer wg.Done()
			_, errs[i] = c.SendRequestAndAwaitResponse(req, timeout, retries)
		}(i, req)
	}
	wg.Wait()
	return errors.Join(errs...)
}

// RefreshPlant runs one polling cycle. A full refresh re-reads the holding
// register banks and probes every battery slot; a partial one only re-reads
// telemetry for the batteries already detected.
func (c *Client) RefreshPlant(full bool, timeout time.Duration, retries int) error {
	reqs := RefreshPlantData(full, c.plant.NumberBatteries(), MaxBatteries)
	for _, base := range c.plant.AdditionalHoldingPages() {
		reqs = append(reqs, RefreshAdditionalHoldingRegisters(base)...)
	}
	return c.Execute(reqs, timeout, retries)
}

// DetectPlant performs the initial full refresh, fixes the battery count and
// probes for the extended holding register pages newer firmware exposes. A
// timeout on the probe only means the firmware predates those pages.
func (c *Client) DetectPlant(timeout time.Duration, retries int) error {
	if err := c.Execute(RefreshPlantData(true, 0, MaxBatteries), timeout, retries); err != nil {
		return err
	}
	n := c.plant.DetectBatteries()
	logf("client: detected %d battery pack(s)", n)

	probe := RefreshAdditionalHoldingRegisters(300)
	if err := c.Execute(probe, timeout, retries); err != nil {
		var te *TimeoutError
		if errors.As(err, &te) {
			logf("client: no extended holding registers, assuming older firmware")
			return nil
		}
		return err
	}
	c.plant.SetAdditionalHoldingPages([]uint16{300})
	return nil
}

// WatchPlant refreshes the plant on a fixed period and hands each fresh
// snapshot to the handler until the context is cancelled. Refresh failures
// are passed to the handler as a nil-safe error; the watch keeps going.
func (c *Client) WatchPlant(ctx context.Context, period time.Duration, timeout time.Duration, retries int, handler func(*Plant, error)) error {
	if err := c.DetectPlant(timeout, retries); err != nil {
		return err
	}
	handler(c.plant, nil)

	ticker := time.NewTicker(period)
	defer ticker.Stop()
	fullEvery := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return &CommunicationError{Message: "client is closed"}
		case <-ticker.C:
			// re-read configuration once an hour or so, telemetry
			// otherwise
			fullEvery++
			full := fullEvery%12 == 0
			err := c.RefreshPlant(full, timeout, retries)
			handler(c.plant, err)
		}
	}
}

// OneShotCommand issues a command batch and follows up with a partial
// refresh so the plant state reflects the change.
func (c *Client) OneShotCommand(requests []TransparentRequest, timeout time.Duration, retries int) error {
	if err := c.Execute(requests, timeout, retries); err != nil {
		return err
	}
	return c.RefreshPlant(false, timeout, retries)
}
