package transport

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/comfoconnect/comfoconnect-go/frame"
	"github.com/comfoconnect/comfoconnect-go/zehnder"
)

func uuidOf(b byte) [frame.UUIDSize]byte {
	var u [frame.UUIDSize]byte
	for i := range u {
		u[i] = b
	}
	return u
}

// echoBridge accepts one connection and, for every CnRmiRequest it
// receives, replies with a CnRmiResponse carrying the request's Message
// reversed, so tests can tell request and reply apart.
func echoBridge(t *testing.T, ln net.Listener) {
	conn, err := ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	for {
		f, err := frame.Decode(conn, frame.DefaultMaxFrameSize)
		if err != nil {
			return
		}
		env, err := zehnder.UnmarshalEnvelope(f.Cmd)
		if err != nil {
			t.Errorf("bridge: bad envelope: %v", err)
			return
		}
		if env.Type != zehnder.CnRmiRequestType {
			continue // ignore heartbeats and anything else
		}
		req, err := zehnder.UnmarshalCnRmiRequest(f.Msg)
		if err != nil {
			t.Errorf("bridge: bad CnRmiRequest: %v", err)
			return
		}

		reversed := make([]byte, len(req.Message))
		for i, b := range req.Message {
			reversed[len(reversed)-1-i] = b
		}

		replyEnv := zehnder.Envelope{Type: zehnder.CnRmiResponseType, Reference: env.Reference}
		reply := zehnder.CnRmiResponse{Message: reversed}
		out := frame.Frame{Src: f.Dst, Dst: f.Src, Cmd: replyEnv.Marshal(), Msg: reply.Marshal()}
		if err := frame.Encode(conn, out); err != nil {
			return
		}
	}
}

func TestClientTransportSerial(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	go echoBridge(t, ln)

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	client := NewClient(conn, uuidOf(0x01), uuidOf(0x02), nil, nil, 0)
	defer client.Close()

	cases := [][]byte{
		[]byte("abc"),
		[]byte{0x01, 0x02, 0x03},
		[]byte("comfoconnect"),
	}

	for _, msg := range cases {
		req := zehnder.CnRmiRequest{NodeID: 1, Message: msg}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		resp, err := client.Request(ctx, zehnder.CnRmiRequestType, req.Marshal())
		cancel()
		if err != nil {
			t.Fatalf("Request failed: %v", err)
		}
		got, err := zehnder.UnmarshalCnRmiResponse(resp.Payload)
		if err != nil {
			t.Fatalf("UnmarshalCnRmiResponse: %v", err)
		}
		for i, b := range got.Message {
			if b != msg[len(msg)-1-i] {
				t.Fatalf("reversed message mismatch: got % x, from % x", got.Message, msg)
			}
		}
	}
}

func TestClientTransportConcurrent(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	go echoBridge(t, ln)

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	client := NewClient(conn, uuidOf(0x01), uuidOf(0x02), nil, nil, 0)
	defer client.Close()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			msg := []byte{byte(n), byte(n + 1)}
			req := zehnder.CnRmiRequest{NodeID: uint32(n), Message: msg}
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			resp, err := client.Request(ctx, zehnder.CnRmiRequestType, req.Marshal())
			if err != nil {
				t.Errorf("Request failed: %v", err)
				return
			}
			got, err := zehnder.UnmarshalCnRmiResponse(resp.Payload)
			if err != nil {
				t.Errorf("UnmarshalCnRmiResponse: %v", err)
				return
			}
			if got.Message[0] != msg[1] || got.Message[1] != msg[0] {
				t.Errorf("reversed message mismatch for n=%d: got % x", n, got.Message)
			}
		}(i)
	}
	wg.Wait()
}

// TestClientTransportBrokenConnectionReleasesPending checks that closing
// the connection while a request is outstanding delivers an error instead
// of blocking the caller forever.
func TestClientTransportBrokenConnectionReleasesPending(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	client := NewClient(conn, uuidOf(0x01), uuidOf(0x02), nil, nil, 0)
	defer client.Close()

	serverConn := <-accepted
	req := zehnder.CnRmiRequest{NodeID: 1, Message: []byte("hi")}
	_, ch, err := client.Send(zehnder.CnRmiRequestType, req.Marshal())
	if err != nil {
		t.Fatal(err)
	}
	serverConn.Close()

	select {
	case resp := <-ch:
		if resp.Err == nil {
			t.Fatal("expected an error after the connection broke")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pending request never resolved after connection broke")
	}
}

// silentBridge accepts a connection and never replies to anything, so a
// Request against it always times out. It exits once the connection closes.
func silentBridge(ln net.Listener) {
	conn, err := ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()
	for {
		if _, err := frame.Decode(conn, frame.DefaultMaxFrameSize); err != nil {
			return
		}
	}
}

// TestRequestCancelDeregistersPending checks that a Request whose context
// is cancelled before a reply arrives removes its entry from the pending
// map instead of leaking it forever.
func TestRequestCancelDeregistersPending(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	go silentBridge(ln)

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	client := NewClient(conn, uuidOf(0x01), uuidOf(0x02), nil, nil, 0)
	defer client.Close()

	req := zehnder.CnRmiRequest{NodeID: 1, Message: []byte("hi")}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = client.Request(ctx, zehnder.CnRmiRequestType, req.Marshal())
	if err == nil {
		t.Fatal("expected a timeout error")
	}

	pending := 0
	client.pending.Range(func(key, value any) bool {
		pending++
		return true
	})
	if pending != 0 {
		t.Fatalf("pending map has %d entries after cancellation, want 0", pending)
	}
}

// TestStallWatchLoopClosesOnSilence checks that a connection with no inbound
// traffic for 3 heartbeat intervals is torn down with ErrStalled, even
// though nothing about the underlying socket has actually failed.
func TestStallWatchLoopClosesOnSilence(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	serverConn := <-accepted
	defer serverConn.Close()

	// A 20ms heartbeat interval stalls at 60ms, fast enough to keep this
	// test quick without racing the ticker.
	client := NewClient(conn, uuidOf(0x01), uuidOf(0x02), nil, nil, 20*time.Millisecond)
	defer client.Close()

	select {
	case <-client.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("stall watchdog never closed the connection")
	}
	if !errors.Is(client.Err(), ErrStalled) {
		t.Fatalf("client.Err() = %v, want ErrStalled", client.Err())
	}
}
