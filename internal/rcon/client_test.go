package rcon

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeServer speaks the server side of the protocol on a loopback
// listener. The handler decides what, if anything, to write back for
// each decoded request.
type fakeServer struct {
	addr    string
	ln      net.Listener
	handler func(conn net.Conn, p packet)

	mu       sync.Mutex
	received []packet
}

func startFakeServer(t *testing.T, handler func(conn net.Conn, p packet)) *fakeServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := &fakeServer{addr: ln.Addr().String(), ln: ln, handler: handler}
	go s.serve()
	t.Cleanup(func() { ln.Close() })
	return s
}

func (s *fakeServer) serve() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		go s.handleConn(conn)
	}
}

func (s *fakeServer) handleConn(conn net.Conn) {
	defer conn.Close()
	var buf []byte
	tmp := make([]byte, 4096)
	for {
		n, err := conn.Read(tmp)
		if n > 0 {
			buf = append(buf, tmp[:n]...)
			for {
				p, rest, ok, derr := decode(buf)
				if derr != nil {
					return
				}
				if !ok {
					break
				}
				buf = rest
				s.mu.Lock()
				s.received = append(s.received, p)
				s.mu.Unlock()
				s.handler(conn, p)
			}
		}
		if err != nil {
			return
		}
	}
}

func (s *fakeServer) packets() []packet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]packet(nil), s.received...)
}

// authThenEcho accepts password and echoes command bodies back.
func authThenEcho(password string) func(net.Conn, packet) {
	return func(conn net.Conn, p packet) {
		switch p.Type {
		case typeAuth:
			id := p.ID
			if p.Body != password {
				id = -1
			}
			conn.Write(encode(packet{ID: id, Type: typeAuthResponse}))
		case typeCommand:
			conn.Write(encode(packet{ID: p.ID, Type: typeResponse, Body: "echo:" + p.Body}))
		}
	}
}

func TestConnectAndSend(t *testing.T) {
	srv := startFakeServer(t, authThenEcho("hunter2"))

	c, err := Connect(context.Background(), srv.addr, "hunter2")
	require.NoError(t, err)
	defer c.Close()

	body, err := c.Send(context.Background(), "list")
	require.NoError(t, err)
	assert.Equal(t, "echo:list", body)
}

func TestConnectWrongPassword(t *testing.T) {
	srv := startFakeServer(t, authThenEcho("hunter2"))

	_, err := Connect(context.Background(), srv.addr, "wrong")
	assert.ErrorIs(t, err, ErrAuth)

	// No command packet may precede a resolved authentication.
	for _, p := range srv.packets() {
		assert.NotEqual(t, typeCommand, p.Type)
	}
}

func TestConnectRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	_, err = Connect(context.Background(), addr, "pw")
	assert.Error(t, err)
}

func TestConcurrentSendsCorrelated(t *testing.T) {
	// Answer both commands out of order in a single combined write once
	// the second request has arrived.
	var mu sync.Mutex
	var held *packet
	srv := startFakeServer(t, func(conn net.Conn, p packet) {
		switch p.Type {
		case typeAuth:
			conn.Write(encode(packet{ID: p.ID, Type: typeAuthResponse}))
		case typeCommand:
			mu.Lock()
			defer mu.Unlock()
			if held == nil {
				cp := p
				held = &cp
				return
			}
			combined := append(
				encode(packet{ID: p.ID, Type: typeResponse, Body: "echo:" + p.Body}),
				encode(packet{ID: held.ID, Type: typeResponse, Body: "echo:" + held.Body})...)
			conn.Write(combined)
		}
	})

	c, err := Connect(context.Background(), srv.addr, "pw")
	require.NoError(t, err)
	defer c.Close()

	var wg sync.WaitGroup
	results := make([]string, 2)
	errs := make([]error, 2)
	for i, cmd := range []string{"first", "second"} {
		wg.Add(1)
		go func(i int, cmd string) {
			defer wg.Done()
			results[i], errs[i] = c.Send(context.Background(), cmd)
		}(i, cmd)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, "echo:first", results[0])
	assert.Equal(t, "echo:second", results[1])
}

func TestSendTimeout(t *testing.T) {
	srv := startFakeServer(t, func(conn net.Conn, p packet) {
		if p.Type == typeAuth {
			conn.Write(encode(packet{ID: p.ID, Type: typeAuthResponse}))
		}
		// Commands are swallowed.
	})

	c, err := Connect(context.Background(), srv.addr, "pw")
	require.NoError(t, err)
	defer c.Close()
	c.timeout = 50 * time.Millisecond

	_, err = c.Send(context.Background(), "list")
	assert.ErrorIs(t, err, ErrTimeout)

	// The timed-out slot is freed; the table holds nothing stale.
	c.mu.Lock()
	assert.Empty(t, c.pending)
	c.mu.Unlock()
}

func TestCloseSettlesPending(t *testing.T) {
	srv := startFakeServer(t, func(conn net.Conn, p packet) {
		if p.Type == typeAuth {
			conn.Write(encode(packet{ID: p.ID, Type: typeAuthResponse}))
		}
	})

	c, err := Connect(context.Background(), srv.addr, "pw")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := c.Send(context.Background(), "list")
		done <- err
	}()

	// Wait for the command to be in flight before closing.
	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return len(c.pending) > 0
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, c.Close())
	assert.ErrorIs(t, <-done, ErrClosed)

	// Further use of the closed session fails fast.
	_, err = c.Send(context.Background(), "list")
	assert.ErrorIs(t, err, ErrClosed)
	assert.NoError(t, c.Close())
}

func TestServerDisconnectSettlesPending(t *testing.T) {
	srv := startFakeServer(t, func(conn net.Conn, p packet) {
		switch p.Type {
		case typeAuth:
			conn.Write(encode(packet{ID: p.ID, Type: typeAuthResponse}))
		case typeCommand:
			conn.Close()
		}
	})

	c, err := Connect(context.Background(), srv.addr, "pw")
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Send(context.Background(), "list")
	assert.ErrorIs(t, err, ErrClosed)
}
