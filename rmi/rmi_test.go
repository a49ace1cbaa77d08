package rmi

import "testing"

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// TestSetSpeedLowBytes reproduces the set-speed-low scenario. set_speed
// hardcodes the ScheduleWrite timeout field to 1 regardless of speed; only
// the trailing value byte selects away(0)/low(1)/medium(2)/high(3).
func TestSetSpeedLowBytes(t *testing.T) {
	got := ScheduleWrite(UnitSchedule, Subunit01, 0x01, 1, 0x01)
	want := []byte{0x84, 0x15, 0x01, 0x01, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01}
	if !bytesEqual(got, want) {
		t.Errorf("ScheduleWrite(low) = % x, want % x", got, want)
	}
}

func TestSetSpeedMediumBytes(t *testing.T) {
	got := ScheduleWrite(UnitSchedule, Subunit01, 0x01, 1, 0x02)
	want := []byte{0x84, 0x15, 0x01, 0x01, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x02}
	if !bytesEqual(got, want) {
		t.Errorf("ScheduleWrite(medium) = % x, want % x", got, want)
	}
}

// TestGetNameBytes reproduces the get-name scenario: reading a UNIT_NODE
// property with GetSingle.
func TestGetNameBytes(t *testing.T) {
	got := GetSingle(UnitNode, Subunit01, 0x14)
	want := []byte{0x01, 0x01, 0x01, 0x10, 0x14}
	if !bytesEqual(got, want) {
		t.Errorf("GetSingle(name) = % x, want % x", got, want)
	}
}

func TestDecodeValueString(t *testing.T) {
	v, err := DecodeValue([]byte("ComfoAirQ\x00\x00\x00"), TypeString)
	if err != nil {
		t.Fatalf("DecodeValue failed: %v", err)
	}
	if v != "ComfoAirQ" {
		t.Errorf("DecodeValue(STRING) = %q, want %q", v, "ComfoAirQ")
	}
}

// TestDecodeValueInt16Temperature reproduces the PDID 276 outdoor
// temperature scenario: 0x3c 0x00 little-endian INT16 decodes to 60, scaled
// by the sensor catalog's /10 formula to 6.0 degrees C.
func TestDecodeValueInt16Temperature(t *testing.T) {
	v, err := DecodeValue([]byte{0x3c, 0x00}, TypeInt16)
	if err != nil {
		t.Fatalf("DecodeValue failed: %v", err)
	}
	raw, ok := v.(int64)
	if !ok {
		t.Fatalf("DecodeValue(INT16) returned %T, want int64", v)
	}
	if raw != 60 {
		t.Errorf("DecodeValue(INT16) = %d, want 60", raw)
	}
	if scaled := float64(raw) / 10; scaled != 6.0 {
		t.Errorf("scaled value = %v, want 6.0", scaled)
	}
}

func TestDecodeValueBool(t *testing.T) {
	v, err := DecodeValue([]byte{0x01}, TypeBool)
	if err != nil {
		t.Fatalf("DecodeValue failed: %v", err)
	}
	if v != true {
		t.Errorf("DecodeValue(BOOL) = %v, want true", v)
	}
}

func TestEncodeDecodeValueRoundTrip(t *testing.T) {
	encoded, err := EncodeValue(1234, TypeUint16)
	if err != nil {
		t.Fatalf("EncodeValue failed: %v", err)
	}
	decoded, err := DecodeValue(encoded, TypeUint16)
	if err != nil {
		t.Fatalf("DecodeValue failed: %v", err)
	}
	if decoded.(uint64) != 1234 {
		t.Errorf("round trip = %v, want 1234", decoded)
	}
}

func TestDecodeVersion(t *testing.T) {
	// Release channel (3), major 3, minor 2, patch 15.
	version := uint32(3)<<30 | uint32(3)<<20 | uint32(2)<<10 | uint32(15)
	got := DecodeVersion(version)
	want := "R3.2.15"
	if got != want {
		t.Errorf("DecodeVersion() = %q, want %q", got, want)
	}
}

func TestGetMultiBytes(t *testing.T) {
	got, err := GetMulti(UnitVentilationConfig, Subunit01, []byte{3, 4, 5, 6})
	if err != nil {
		t.Fatalf("GetMulti failed: %v", err)
	}
	want := []byte{0x02, byte(UnitVentilationConfig), byte(Subunit01), 0x01, 0x14, 3, 4, 5, 6}
	if !bytesEqual(got, want) {
		t.Errorf("GetMulti = % x, want % x", got, want)
	}
}

func TestGetMultiRejectsEmpty(t *testing.T) {
	if _, err := GetMulti(UnitVentilationConfig, Subunit01, nil); err == nil {
		t.Fatal("expected error for zero property ids")
	}
}

func TestGetMultiRejectsTooMany(t *testing.T) {
	ids := make([]byte, 16)
	if _, err := GetMulti(UnitVentilationConfig, Subunit01, ids); err == nil {
		t.Fatal("expected error for 16 property ids")
	}
}

func TestGetMultiAcceptsMaxCount(t *testing.T) {
	ids := make([]byte, maxMultiProperties)
	got, err := GetMulti(UnitVentilationConfig, Subunit01, ids)
	if err != nil {
		t.Fatalf("GetMulti failed at max count: %v", err)
	}
	if got[4] != 0x10|byte(maxMultiProperties) {
		t.Errorf("count nibble = %#x, want %#x", got[4], 0x10|byte(maxMultiProperties))
	}
}

func TestDecodeErrorFromRMIResponse(t *testing.T) {
	err := DecodeError(1, []byte{0x01, 0x15, 0x01, 0x10, 0x14}, []byte{byte(ErrOperationNotFound)})
	if err.Code != ErrOperationNotFound {
		t.Errorf("Code = %v, want %v", err.Code, ErrOperationNotFound)
	}
	if err.NodeID != 1 {
		t.Errorf("NodeID = %d, want 1", err.NodeID)
	}
}
