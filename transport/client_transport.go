// Package transport implements the framed TCP connection to a ComfoConnect
// LAN C bridge: length-prefixed frame.Frame envelopes carrying zehnder
// GatewayOperations, correlated by reference id the same way the mini-RPC
// client correlated requests by sequence number.
//
//	goroutine-1 ──Send(ref=1)──┐
//	goroutine-2 ──Send(ref=2)──┼──→ single TCP conn ──→ bridge
//	goroutine-3 ──Send(ref=3)──┘
//
//	recvLoop:  ←── reply(ref=2) → pending[2] chan ← reply → goroutine-2 wakes up
//
// Notifications (PDO pushes, node/alarm events, server-initiated close)
// arrive with reference 0 and are routed to a Notify callback instead of a
// pending channel.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/comfoconnect/comfoconnect-go/frame"
	"github.com/comfoconnect/comfoconnect-go/zehnder"
)

// Response is what a pending Send resolves to: the reply envelope plus its
// raw payload bytes, or a transport-level error if the connection broke
// before a reply arrived.
type Response struct {
	Envelope zehnder.Envelope
	Payload  []byte
	Err      error
}

// Notification is an unsolicited, reference-0 envelope pushed by the bridge:
// PDO values, node join/leave, alarms, or a server-initiated close.
type Notification struct {
	Envelope zehnder.Envelope
	Payload  []byte
}

// ErrClosed is returned by Send once the connection has broken.
var ErrClosed = errors.New("transport: connection closed")

// ErrStalled is the reason recorded when the stall watchdog closes the
// connection after observing no inbound traffic for 3 heartbeat intervals.
var ErrStalled = errors.New("transport: no inbound traffic for 3 heartbeat intervals")

// DefaultHeartbeatInterval is K, the KeepAlive cadence used when NewClient
// is given a zero interval. The stall watchdog fires at 3K of silence.
const DefaultHeartbeatInterval = 5 * time.Second

// Client manages one multiplexed TCP connection to a bridge.
type Client struct {
	conn   net.Conn
	src    [frame.UUIDSize]byte
	dst    [frame.UUIDSize]byte
	logger *zap.Logger
	notify func(Notification)

	ref     uint32
	pending sync.Map // map[uint32]chan Response
	sending sync.Mutex

	lastActivity atomic.Int64 // unix nanos, updated by recvLoop on every decoded frame

	closeOnce sync.Once
	closed    chan struct{}
	closeErr  error
}

// NewClient wraps conn and starts the recvLoop, heartbeatLoop, and stall
// watchdog goroutines. src and dst are the client's and bridge's UUIDs, used
// verbatim as the frame's addressing fields. notify receives every
// reference-0 envelope; it must not block. heartbeatInterval is K; zero uses
// DefaultHeartbeatInterval.
func NewClient(conn net.Conn, src, dst [frame.UUIDSize]byte, logger *zap.Logger, notify func(Notification), heartbeatInterval time.Duration) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if heartbeatInterval == 0 {
		heartbeatInterval = DefaultHeartbeatInterval
	}
	c := &Client{
		conn:   conn,
		src:    src,
		dst:    dst,
		logger: logger,
		notify: notify,
		closed: make(chan struct{}),
	}
	c.lastActivity.Store(time.Now().UnixNano())
	go c.recvLoop()
	go c.heartbeatLoop(heartbeatInterval)
	go c.stallWatchLoop(heartbeatInterval)
	return c
}

// Send serializes opType/payload into an envelope, assigns it a fresh
// reference id, and writes the frame. It returns the reference id and a
// buffered channel that receives exactly one Response.
func (c *Client) Send(opType zehnder.OperationType, payload []byte) (uint32, <-chan Response, error) {
	c.sending.Lock()
	defer c.sending.Unlock()

	select {
	case <-c.closed:
		return 0, nil, ErrClosed
	default:
	}

	c.ref++
	if c.ref == 0 {
		c.ref = 1 // 0 is reserved for unsolicited notifications
	}
	ref := c.ref

	if _, exists := c.pending.Load(ref); exists {
		// The 32-bit reference space wrapped onto a still-outstanding
		// request. Two in-flight requests can never legitimately share a
		// reference, so treat this as a protocol fault and drop the
		// connection rather than silently misroute a reply.
		err := fmt.Errorf("transport: reference id %d wrapped onto a pending request", ref)
		go c.closeAllPending(err)
		c.conn.Close()
		return 0, nil, err
	}

	env := zehnder.Envelope{Type: opType, Reference: ref}
	respChan := make(chan Response, 1)
	c.pending.Store(ref, respChan)

	f := frame.Frame{Src: c.src[:], Dst: c.dst[:], Cmd: env.Marshal(), Msg: payload}
	if err := frame.Encode(c.conn, f); err != nil {
		c.pending.Delete(ref)
		return 0, nil, err
	}
	return ref, respChan, nil
}

// Request is Send followed by a wait for the single response, honoring
// ctx's deadline/cancellation.
func (c *Client) Request(ctx context.Context, opType zehnder.OperationType, payload []byte) (Response, error) {
	ref, ch, err := c.Send(opType, payload)
	if err != nil {
		return Response{}, err
	}
	select {
	case resp := <-ch:
		return resp, resp.Err
	case <-ctx.Done():
		// recvLoop may be racing this deregistration with a reply that just
		// arrived; LoadAndDelete on both sides means at most one of them
		// wins and the map never keeps a stale entry.
		c.pending.LoadAndDelete(ref)
		return Response{}, ctx.Err()
	}
}

// recvLoop reads frames one at a time — TCP is a byte stream, only one
// reader may parse frame boundaries — and either resolves a pending Send or
// forwards a reference-0 envelope to notify.
func (c *Client) recvLoop() {
	for {
		f, err := frame.Decode(c.conn, frame.DefaultMaxFrameSize)
		if err != nil {
			c.closeAllPending(err)
			return
		}
		c.lastActivity.Store(time.Now().UnixNano())

		env, err := zehnder.UnmarshalEnvelope(f.Cmd)
		if err != nil {
			c.logger.Warn("transport: malformed envelope, dropping frame", zap.Error(err))
			continue
		}

		if env.Reference == 0 {
			if c.notify != nil {
				c.notify(Notification{Envelope: env, Payload: f.Msg})
			}
			continue
		}

		if ch, ok := c.pending.LoadAndDelete(env.Reference); ok {
			var respErr error
			if err := env.AsError(); err != nil {
				respErr = err
			}
			ch.(chan Response) <- Response{Envelope: env, Payload: f.Msg, Err: respErr}
		} else {
			// Either a reply for a ref-id nothing is waiting on anymore
			// (Request already timed out and deregistered) or a duplicate
			// reply for a ref-id already resolved. Either way there is no
			// waiter left to deliver to, so log and drop it.
			c.logger.Warn("transport: dropping reply for unknown reference", zap.Uint32("reference", env.Reference))
		}
	}
}

// closeAllPending fires when the connection breaks, so no caller blocks
// forever waiting on a reply that will never come.
func (c *Client) closeAllPending(err error) {
	c.closeOnce.Do(func() {
		c.closeErr = err
		close(c.closed)
	})
	c.pending.Range(func(key, value any) bool {
		value.(chan Response) <- Response{Err: fmt.Errorf("transport: connection broken: %w", err)}
		c.pending.Delete(key)
		return true
	})
}

// stallWatchLoop implements the reader-observes-no-inbound-traffic fault:
// if lastActivity hasn't advanced in 3 heartbeat intervals, the connection
// is presumed dead even though no I/O error has occurred yet.
func (c *Client) stallWatchLoop(interval time.Duration) {
	threshold := 3 * interval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.closed:
			return
		case <-ticker.C:
			last := time.Unix(0, c.lastActivity.Load())
			if time.Since(last) >= threshold {
				c.closeAllPending(ErrStalled)
				c.conn.Close()
				return
			}
		}
	}
}

// heartbeatLoop sends an empty KeepAlive envelope every interval. KeepAlive
// carries no reference and expects no reply. A failed write is logged and
// ends the loop; tearing the connection down is left to recvLoop's I/O error
// or to stallWatchLoop, which watches for inbound silence.
func (c *Client) heartbeatLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.closed:
			return
		case <-ticker.C:
			c.sending.Lock()
			env := zehnder.Envelope{Type: zehnder.KeepAliveType}
			err := frame.Encode(c.conn, frame.Frame{Src: c.src[:], Dst: c.dst[:], Cmd: env.Marshal()})
			c.sending.Unlock()
			if err != nil {
				c.logger.Debug("transport: heartbeat write failed", zap.Error(err))
				return
			}
		}
	}
}

// Done returns a channel that's closed once the connection has broken,
// whether from an I/O error, EOF, or an explicit Close.
func (c *Client) Done() <-chan struct{} {
	return c.closed
}

// Err returns the reason the connection closed: an I/O error from recvLoop,
// ErrStalled from the stall watchdog, or the ref-id-wrap protocol fault from
// Send. It is only meaningful once Done has been closed.
func (c *Client) Err() error {
	return c.closeErr
}

// Close closes the underlying connection, which unblocks recvLoop and
// releases any pending callers via closeAllPending.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Conn returns the underlying connection, mainly for tests and diagnostics.
func (c *Client) Conn() net.Conn {
	return c.conn
}
