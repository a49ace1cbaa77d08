package discovery

import (
	"net"
	"testing"
	"time"

	"github.com/comfoconnect/comfoconnect-go/zehnder"
)

// fakeGateway listens on loopback and answers every DiscoveryRequest with a
// SearchGatewayResponse carrying the given uuid, standing in for a
// broadcast-reachable bridge without needing real broadcast permissions in
// a test sandbox.
func fakeGateway(t *testing.T, uuid []byte, ip string) *net.UDPConn {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	if err != nil {
		t.Fatal(err)
	}
	go func() {
		buf := make([]byte, 2048)
		for {
			n, addr, err := conn.ReadFromUDP(buf)
			if err != nil {
				return
			}
			op, err := zehnder.UnmarshalDiscoveryOperation(buf[:n])
			if err != nil || op.SearchGatewayRequest == nil {
				continue
			}
			resp := zehnder.DiscoveryOperation{SearchGatewayResponse: &zehnder.DiscoveryResponse{IPAddress: ip, UUID: uuid}}
			conn.WriteToUDP(resp.Marshal(), addr)
		}
	}()
	return conn
}

func TestDiscoveryRequestIsRawBytes(t *testing.T) {
	req := zehnder.DiscoveryOperation{SearchGatewayRequest: &zehnder.DiscoveryRequest{}}
	got := req.Marshal()
	want := []byte{0x0a, 0x00}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("DiscoveryRequest bytes = % x, want % x", got, want)
	}
}

func TestUnmarshalDiscoveryResponse(t *testing.T) {
	src := zehnder.DiscoveryOperation{SearchGatewayResponse: &zehnder.DiscoveryResponse{
		IPAddress: "192.168.1.50",
		UUID:      []byte{0xde, 0xad, 0xbe, 0xef},
	}}
	got, err := zehnder.UnmarshalDiscoveryOperation(src.Marshal())
	if err != nil {
		t.Fatalf("UnmarshalDiscoveryOperation failed: %v", err)
	}
	if got.SearchGatewayResponse == nil || got.SearchGatewayResponse.IPAddress != "192.168.1.50" {
		t.Fatalf("got %+v", got)
	}
}

func TestDiscoverDeduplicatesByUUID(t *testing.T) {
	uuidA := []byte{0x01, 0x02, 0x03, 0x04}
	gwA := fakeGateway(t, uuidA, "192.168.1.10")
	defer gwA.Close()
	gwB := fakeGateway(t, uuidA, "192.168.1.10") // duplicate reply, same uuid
	defer gwB.Close()

	// This test exercises the response decode + dedup logic directly
	// rather than through the real broadcast Discover() entrypoint, since
	// test sandboxes typically forbid binding the broadcast address.
	seen := map[string]Bridge{}
	for _, gw := range []*net.UDPConn{gwA, gwB} {
		conn, err := net.DialUDP("udp4", nil, gw.LocalAddr().(*net.UDPAddr))
		if err != nil {
			t.Fatal(err)
		}
		defer conn.Close()
		req := zehnder.DiscoveryOperation{SearchGatewayRequest: &zehnder.DiscoveryRequest{}}
		if _, err := conn.Write(req.Marshal()); err != nil {
			t.Fatal(err)
		}
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		buf := make([]byte, 2048)
		n, err := conn.Read(buf)
		if err != nil {
			t.Fatalf("no reply from fake gateway: %v", err)
		}
		op, err := zehnder.UnmarshalDiscoveryOperation(buf[:n])
		if err != nil || op.SearchGatewayResponse == nil {
			t.Fatalf("bad reply: %v", err)
		}
		key := string(op.SearchGatewayResponse.UUID)
		seen[key] = Bridge{IPAddress: op.SearchGatewayResponse.IPAddress, UUID: key}
	}

	if len(seen) != 1 {
		t.Fatalf("expected 1 deduplicated bridge, got %d", len(seen))
	}
}
