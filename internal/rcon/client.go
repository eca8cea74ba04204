package rcon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	// ErrAuth reports a rejected password during Connect.
	ErrAuth = errors.New("rcon: authentication rejected")

	// ErrClosed reports an operation on a disconnected session, or a
	// request outstanding when the connection went away.
	ErrClosed = errors.New("rcon: connection closed")

	// ErrTimeout reports a command whose response never arrived within
	// the bounded window.
	ErrTimeout = errors.New("rcon: command timed out")
)

const defaultTimeout = 5 * time.Second

// Client is one authenticated RCON session. Request ids increase
// monotonically per session; responses are correlated to outstanding
// requests through the pending table, so concurrent Sends are safe even
// when the server answers out of order or back-to-back in one read.
type Client struct {
	conn    net.Conn
	log     *logrus.Entry
	timeout time.Duration

	mu      sync.Mutex
	nextID  int32
	pending map[int32]chan packet
	closed  bool
}

// Connect dials addr and authenticates with password. No command packet
// is written until authentication has resolved; a rejection (echoed
// request id of -1) yields ErrAuth.
func Connect(ctx context.Context, addr, password string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("rcon dial %s: %w", addr, err)
	}

	c := &Client{
		conn:    conn,
		log:     logrus.WithField("rcon", addr),
		timeout: defaultTimeout,
		nextID:  1,
		pending: make(map[int32]chan packet),
	}
	go c.readLoop()

	resp, err := c.roundTrip(ctx, typeAuth, password)
	if err != nil {
		c.shutdown()
		if errors.Is(err, ErrClosed) || errors.Is(err, ErrTimeout) {
			return nil, fmt.Errorf("rcon auth: %w", err)
		}
		return nil, err
	}
	if resp.ID == -1 {
		c.shutdown()
		return nil, ErrAuth
	}
	return c, nil
}

// Send issues one command and returns the response body. Every call
// settles exactly once: with the correlated response, with ErrTimeout,
// or with ErrClosed if the session goes away first.
func (c *Client) Send(ctx context.Context, command string) (string, error) {
	resp, err := c.roundTrip(ctx, typeCommand, command)
	if err != nil {
		return "", err
	}
	return resp.Body, nil
}

// Close tears down the connection. Requests still pending fail with
// ErrClosed rather than hanging. Safe to call more than once.
func (c *Client) Close() error {
	c.shutdown()
	return nil
}

func (c *Client) roundTrip(ctx context.Context, typ int32, body string) (packet, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return packet{}, ErrClosed
	}
	id := c.nextID
	c.nextID++
	ch := make(chan packet, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	if _, err := c.conn.Write(encode(packet{ID: id, Type: typ, Body: body})); err != nil {
		c.take(id)
		c.shutdown()
		return packet{}, fmt.Errorf("rcon write: %w", err)
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()
	select {
	case resp, ok := <-ch:
		if !ok {
			return packet{}, ErrClosed
		}
		return resp, nil
	case <-timer.C:
		// Removal owns settlement: if the response raced the timer and
		// already claimed the slot, take it instead of timing out.
		if c.take(id) {
			return packet{}, ErrTimeout
		}
		resp, ok := <-ch
		if !ok {
			return packet{}, ErrClosed
		}
		return resp, nil
	case <-ctx.Done():
		if c.take(id) {
			return packet{}, ctx.Err()
		}
		resp, ok := <-ch
		if !ok {
			return packet{}, ErrClosed
		}
		return resp, nil
	}
}

// take removes the pending entry for id, reporting whether the caller
// won ownership of its settlement.
func (c *Client) take(id int32) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.pending[id]; !ok {
		return false
	}
	delete(c.pending, id)
	return true
}

// readLoop buffers the receive stream and extracts every complete
// packet, keeping any trailing bytes for the next pass. Responses may
// straddle reads or arrive several to a read; both are normal.
func (c *Client) readLoop() {
	var buf []byte
	tmp := make([]byte, 4096)
	for {
		n, err := c.conn.Read(tmp)
		if n > 0 {
			buf = append(buf, tmp[:n]...)
			for {
				pkt, rest, ok, derr := decode(buf)
				if derr != nil {
					c.log.WithError(derr).Warn("dropping session")
					c.shutdown()
					return
				}
				if !ok {
					break
				}
				buf = rest
				c.dispatch(pkt)
			}
		}
		if err != nil {
			c.shutdown()
			return
		}
	}
}

func (c *Client) dispatch(pkt packet) {
	c.mu.Lock()
	ch, ok := c.pending[pkt.ID]
	if ok {
		delete(c.pending, pkt.ID)
	} else if pkt.ID == -1 {
		// Auth rejection echoes -1 instead of the request id. Only the
		// auth round-trip can be outstanding at that point, so route
		// the rejection to whichever request is waiting.
		for id, pend := range c.pending {
			ch, ok = pend, true
			delete(c.pending, id)
			break
		}
	}
	c.mu.Unlock()

	if ok {
		ch <- pkt
	}
}

// shutdown closes the socket and settles every pending request with
// ErrClosed, exactly once each.
func (c *Client) shutdown() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	pending := c.pending
	c.pending = make(map[int32]chan packet)
	c.mu.Unlock()

	c.conn.Close()
	for _, ch := range pending {
		close(ch)
	}
}
