package zehnder

import "testing"

func TestEnvelopeRoundTrip(t *testing.T) {
	orig := Envelope{Type: CnRmiRequestType, Reference: 42, Result: ResultOK}

	data := orig.Marshal()
	decoded, err := UnmarshalEnvelope(data)
	if err != nil {
		t.Fatalf("UnmarshalEnvelope failed: %v", err)
	}

	if decoded.Type != orig.Type {
		t.Errorf("Type mismatch: got %v, want %v", decoded.Type, orig.Type)
	}
	if decoded.Reference != orig.Reference {
		t.Errorf("Reference mismatch: got %v, want %v", decoded.Reference, orig.Reference)
	}
	if decoded.Result != orig.Result {
		t.Errorf("Result mismatch: got %v, want %v", decoded.Result, orig.Result)
	}
}

func TestEnvelopeResultError(t *testing.T) {
	e := Envelope{Type: StartSessionRequestType, Reference: 1, Result: ResultNotAllowed}
	err := e.AsError()
	if err == nil {
		t.Fatal("expected non-nil error for non-OK result")
	}
	var gwErr *GatewayError
	if ge, ok := err.(*GatewayError); ok {
		gwErr = ge
	} else {
		t.Fatalf("expected *GatewayError, got %T", err)
	}
	if gwErr.Code != ResultNotAllowed {
		t.Errorf("Code mismatch: got %v, want %v", gwErr.Code, ResultNotAllowed)
	}
}

func TestRegisterAppRequestRoundTrip(t *testing.T) {
	orig := RegisterAppRequest{
		UUID:       []byte{0x01, 0x02, 0x03, 0x04},
		PIN:        1234,
		DeviceName: "test-client",
	}
	data := orig.Marshal()
	decoded, err := UnmarshalRegisterAppRequest(data)
	if err != nil {
		t.Fatalf("UnmarshalRegisterAppRequest failed: %v", err)
	}
	if string(decoded.UUID) != string(orig.UUID) {
		t.Errorf("UUID mismatch: got %x, want %x", decoded.UUID, orig.UUID)
	}
	if decoded.PIN != orig.PIN {
		t.Errorf("PIN mismatch: got %d, want %d", decoded.PIN, orig.PIN)
	}
	if decoded.DeviceName != orig.DeviceName {
		t.Errorf("DeviceName mismatch: got %s, want %s", decoded.DeviceName, orig.DeviceName)
	}
}

func TestCnRmiRequestRoundTrip(t *testing.T) {
	orig := CnRmiRequest{NodeID: 1, Message: []byte{0x84, 0x15, 0x01, 0x01, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01}}
	data := orig.Marshal()
	decoded, err := UnmarshalCnRmiRequest(data)
	if err != nil {
		t.Fatalf("UnmarshalCnRmiRequest failed: %v", err)
	}
	if decoded.NodeID != orig.NodeID {
		t.Errorf("NodeID mismatch: got %d, want %d", decoded.NodeID, orig.NodeID)
	}
	if string(decoded.Message) != string(orig.Message) {
		t.Errorf("Message mismatch: got %x, want %x", decoded.Message, orig.Message)
	}
}

func TestDiscoveryOperationRequestIsEmptySubmessage(t *testing.T) {
	op := DiscoveryOperation{SearchGatewayRequest: &DiscoveryRequest{}}
	data := op.Marshal()

	// The vendor wire format for a broadcast discovery request is the raw
	// bytes 0x0a 0x00: field 1 (tag 0x0a = 1<<3|2), length 0.
	want := []byte{0x0a, 0x00}
	if string(data) != string(want) {
		t.Errorf("discovery request bytes = % x, want % x", data, want)
	}

	decoded, err := UnmarshalDiscoveryOperation(data)
	if err != nil {
		t.Fatalf("UnmarshalDiscoveryOperation failed: %v", err)
	}
	if decoded.SearchGatewayRequest == nil {
		t.Error("expected SearchGatewayRequest to be set")
	}
}

func TestDiscoveryOperationResponseRoundTrip(t *testing.T) {
	op := DiscoveryOperation{SearchGatewayResponse: &DiscoveryResponse{
		IPAddress: "192.168.1.50",
		UUID:      []byte{0xaa, 0xbb, 0xcc, 0xdd},
	}}
	data := op.Marshal()
	decoded, err := UnmarshalDiscoveryOperation(data)
	if err != nil {
		t.Fatalf("UnmarshalDiscoveryOperation failed: %v", err)
	}
	if decoded.SearchGatewayResponse == nil {
		t.Fatal("expected SearchGatewayResponse to be set")
	}
	if decoded.SearchGatewayResponse.IPAddress != "192.168.1.50" {
		t.Errorf("IPAddress mismatch: got %s", decoded.SearchGatewayResponse.IPAddress)
	}
	if string(decoded.SearchGatewayResponse.UUID) != string(op.SearchGatewayResponse.UUID) {
		t.Errorf("UUID mismatch: got %x", decoded.SearchGatewayResponse.UUID)
	}
}
