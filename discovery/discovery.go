// Package discovery implements the UDP broadcast search for ComfoConnect
// LAN C bridges on the local network: a single SearchGatewayRequest sent to
// the broadcast address, collecting SearchGatewayResponse replies for a
// bounded window. Unlike the TCP protocol, these packets carry no outer
// frame.Frame length prefix or UUID addressing — the raw protobuf bytes are
// the whole packet.
package discovery

import (
	"encoding/hex"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/comfoconnect/comfoconnect-go/zehnder"
)

// Port is the UDP port every bridge listens for discovery broadcasts on.
const Port = 56747

// DefaultBroadcastAddr is used when Options.BroadcastAddr is empty.
const DefaultBroadcastAddr = "255.255.255.255"

// Bridge describes one discovered gateway.
type Bridge struct {
	IPAddress string
	UUID      string // hex-encoded, matching how the CLI prints/accepts UUIDs elsewhere
}

// Options configures a Discover call. Zero values fall back to the wire
// defaults (broadcast address, port 56747, 5s window).
type Options struct {
	BroadcastAddr string
	Port          int
	Timeout       time.Duration
	Logger        *zap.Logger
}

// Discover broadcasts a single SearchGatewayRequest and collects replies
// for opts.Timeout, deduplicated by uuid.
func Discover(opts Options) ([]Bridge, error) {
	if opts.BroadcastAddr == "" {
		opts.BroadcastAddr = DefaultBroadcastAddr
	}
	if opts.Port == 0 {
		opts.Port = Port
	}
	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: 0})
	if err != nil {
		return nil, fmt.Errorf("discovery: listen: %w", err)
	}
	defer conn.Close()

	if err := setBroadcast(conn); err != nil {
		return nil, fmt.Errorf("discovery: enable broadcast: %w", err)
	}

	req := zehnder.DiscoveryOperation{SearchGatewayRequest: &zehnder.DiscoveryRequest{}}
	dst := &net.UDPAddr{IP: net.ParseIP(opts.BroadcastAddr), Port: opts.Port}
	if _, err := conn.WriteToUDP(req.Marshal(), dst); err != nil {
		return nil, fmt.Errorf("discovery: send request: %w", err)
	}

	deadline := time.Now().Add(opts.Timeout)
	conn.SetReadDeadline(deadline)

	seen := make(map[string]Bridge)
	buf := make([]byte, 2048)
	for {
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			break // deadline exceeded or socket closed; return what we have
		}
		op, err := zehnder.UnmarshalDiscoveryOperation(buf[:n])
		if err != nil {
			logger.Warn("discovery: malformed reply", zap.Error(err))
			continue
		}
		if op.SearchGatewayResponse == nil {
			continue
		}
		uuid := hex.EncodeToString(op.SearchGatewayResponse.UUID)
		seen[uuid] = Bridge{IPAddress: op.SearchGatewayResponse.IPAddress, UUID: uuid}
	}

	result := make([]Bridge, 0, len(seen))
	for _, b := range seen {
		result = append(result, b)
	}
	return result, nil
}

func setBroadcast(conn *net.UDPConn) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	var sockErr error
	if err := raw.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1)
	}); err != nil {
		return err
	}
	return sockErr
}
