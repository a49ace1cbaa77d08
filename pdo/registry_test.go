package pdo

import (
	"testing"
	"time"

	"github.com/comfoconnect/comfoconnect-go/rmi"
)

func TestDispatchDecodesKnownSensor(t *testing.T) {
	reg := NewRegistry()
	var got Value
	reg.Subscribe(276, func(v Value) { got = v }, false)

	reg.Dispatch(276, []byte{0x3c, 0x00})

	if !got.Known {
		t.Fatalf("expected pdid 276 to be a known sensor")
	}
	if got.Sensor.Name != "Outdoor Air Temperature" {
		t.Errorf("Name = %q, want %q", got.Sensor.Name, "Outdoor Air Temperature")
	}
	scaled, ok := got.Decoded.(float64)
	if !ok {
		t.Fatalf("Decoded is %T, want float64", got.Decoded)
	}
	if scaled != 6.0 {
		t.Errorf("Decoded = %v, want 6.0", scaled)
	}
}

func TestDispatchUnknownPdidStillDelivered(t *testing.T) {
	reg := NewRegistry()
	delivered := false
	reg.Subscribe(999999, func(v Value) {
		delivered = true
		if v.Known {
			t.Errorf("pdid 999999 should not be in the catalog")
		}
		if len(v.Raw) != 1 || v.Raw[0] != 0x2a {
			t.Errorf("Raw = % x, want [0x2a]", v.Raw)
		}
	}, false)

	reg.Dispatch(999999, []byte{0x2a})

	if !delivered {
		t.Fatalf("expected unknown pdid to still be delivered")
	}
}

func TestDispatchOnlyReachesSubscribedPdid(t *testing.T) {
	reg := NewRegistry()
	calls := 0
	reg.Subscribe(65, func(Value) { calls++ }, false)

	reg.Dispatch(66, []byte{0x01})

	if calls != 0 {
		t.Errorf("consumer for pdid 65 was called for pdid 66's notification")
	}
}

func TestResubscribeSameConsumerReplaces(t *testing.T) {
	reg := NewRegistry()
	calls := 0
	consumer := func(Value) { calls++ }

	reg.Subscribe(65, consumer, false)
	reg.Subscribe(65, consumer, false)
	reg.Dispatch(65, []byte{0x01})

	if calls != 1 {
		t.Errorf("calls = %d, want 1 (re-subscribing must not duplicate delivery)", calls)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	reg := NewRegistry()
	calls := 0
	consumer := func(Value) { calls++ }

	reg.Subscribe(65, consumer, false)
	reg.Unsubscribe(65, consumer)
	reg.Dispatch(65, []byte{0x01})

	if calls != 0 {
		t.Errorf("calls = %d, want 0 after Unsubscribe", calls)
	}
	if reg.Subscribed(65) {
		t.Errorf("Subscribed(65) = true after last consumer unsubscribed")
	}
}

func TestDedupSkipsIdenticalRepeat(t *testing.T) {
	reg := NewRegistry()
	calls := 0
	reg.Subscribe(65, func(Value) { calls++ }, true)

	reg.Dispatch(65, []byte{0x01})
	reg.Dispatch(65, []byte{0x01})
	reg.Dispatch(65, []byte{0x02})

	if calls != 2 {
		t.Errorf("calls = %d, want 2 (repeat identical value should be deduped)", calls)
	}
}

func TestAirflowConstraintsDecoding(t *testing.T) {
	reg := NewRegistry()
	var got Value
	reg.Subscribe(230, func(v Value) { got = v }, false)

	// SupplyMin=10 SupplyMax=100 ExhaustMin=15 ExhaustMax=90 packed little-endian.
	raw, err := rmi.EncodeValue(int64(10)|int64(100)<<8|int64(15)<<16|int64(90)<<24, rmi.TypeInt64)
	if err != nil {
		t.Fatalf("EncodeValue failed: %v", err)
	}
	reg.Dispatch(230, raw)

	c, ok := got.Decoded.(AirflowConstraints)
	if !ok {
		t.Fatalf("Decoded is %T, want AirflowConstraints", got.Decoded)
	}
	if c.SupplyMin != 10 || c.SupplyMax != 100 || c.ExhaustMin != 15 || c.ExhaustMax != 90 {
		t.Errorf("got %+v, want {10 100 15 90}", c)
	}
}

func TestLookupUnknownPdid(t *testing.T) {
	if _, ok := Lookup(0xFFFFFF); ok {
		t.Errorf("Lookup(0xFFFFFF) reported ok=true, want false")
	}
}

func TestHoldBuffersUntilUnhold(t *testing.T) {
	reg := NewRegistry()
	calls := 0
	reg.Subscribe(65, func(Value) { calls++ }, false)

	reg.Hold(time.Hour) // long enough that the timer never fires in this test
	reg.Dispatch(65, []byte{0x01})
	reg.Dispatch(65, []byte{0x02})

	if calls != 0 {
		t.Fatalf("calls = %d, want 0 while held", calls)
	}

	reg.Unhold()

	if calls != 1 {
		t.Errorf("calls = %d, want 1 after Unhold (only the latest value is flushed)", calls)
	}
}

func TestHoldZeroDoesNotBuffer(t *testing.T) {
	reg := NewRegistry()
	calls := 0
	reg.Subscribe(65, func(Value) { calls++ }, false)

	reg.Hold(0)
	reg.Dispatch(65, []byte{0x01})

	if calls != 1 {
		t.Errorf("calls = %d, want 1 (Hold(0) must not buffer)", calls)
	}
}

func TestUnholdWithoutHoldIsANoop(t *testing.T) {
	reg := NewRegistry()
	reg.Unhold() // must not panic on a registry that was never held
}
