package pdo

import (
	"sync"
	"time"

	"github.com/comfoconnect/comfoconnect-go/rmi"
)

// Value is a decoded PDO notification handed to a subscriber. Raw carries
// the bytes exactly as they arrived; Decoded and its Sensor metadata are
// only populated when the pdid is present in Catalog.
type Value struct {
	PDID    uint32
	Raw     []byte
	Sensor  Sensor
	Known   bool
	Decoded any
}

// Consumer receives dispatched PDO values. Implementations must not block;
// Dispatch calls consumers synchronously on the transport's read goroutine.
type Consumer func(Value)

// Registry tracks live subscriptions and turns raw CnRpdoNotification bytes
// into decoded Values delivered to interested consumers. At most one
// subscription is kept per (pdid, consumer) pair; re-subscribing the same
// pair replaces the earlier registration rather than duplicating delivery.
type Registry struct {
	mu         sync.Mutex
	subs       map[uint32]map[uintptr]subscription
	held       bool
	heldValues map[uint32]Value
	holdTimer  *time.Timer
}

type subscription struct {
	consumer Consumer
	dedup    bool
	last     []byte
	hasLast  bool
}

// NewRegistry returns an empty subscription registry.
func NewRegistry() *Registry {
	return &Registry{subs: make(map[uint32]map[uintptr]subscription)}
}

// Subscribe registers consumer for pdid. When dedup is true, Dispatch skips
// delivering a notification whose raw bytes are identical to the previous
// one seen by this subscription.
func (r *Registry) Subscribe(pdid uint32, consumer Consumer, dedup bool) {
	key := consumerKey(consumer)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.subs[pdid] == nil {
		r.subs[pdid] = make(map[uintptr]subscription)
	}
	r.subs[pdid][key] = subscription{consumer: consumer, dedup: dedup}
}

// Unsubscribe removes consumer's subscription to pdid, if any.
func (r *Registry) Unsubscribe(pdid uint32, consumer Consumer) {
	key := consumerKey(consumer)
	r.mu.Lock()
	defer r.mu.Unlock()
	if set, ok := r.subs[pdid]; ok {
		delete(set, key)
		if len(set) == 0 {
			delete(r.subs, pdid)
		}
	}
}

// Subscribed reports whether any consumer is currently subscribed to pdid.
func (r *Registry) Subscribed(pdid uint32) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs[pdid]) > 0
}

// Dispatch decodes a raw CnRpdoNotification payload and delivers it to every
// subscriber of pdid. Decoding failures still deliver the raw bytes, with
// Decoded left nil, rather than dropping the notification. While the
// registry is held (see Hold), the decoded value is cached instead of
// delivered, to work around the bridge sending stale/invalid sensor values
// right after a session starts.
func (r *Registry) Dispatch(pdid uint32, raw []byte) {
	val := decodeValue(pdid, raw)

	r.mu.Lock()
	if r.held {
		r.heldValues[pdid] = val
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	r.deliver(pdid, val)
}

// Hold buffers Dispatch results per pdid instead of delivering them, for d.
// Once d elapses (or Unhold is called early), the latest cached value for
// every pdid seen during the hold is delivered once. Calling Hold again
// resets any hold already in progress.
func (r *Registry) Hold(d time.Duration) {
	r.mu.Lock()
	if r.holdTimer != nil {
		r.holdTimer.Stop()
	}
	r.held = d > 0
	r.heldValues = make(map[uint32]Value)
	r.mu.Unlock()

	if d > 0 {
		r.holdTimer = time.AfterFunc(d, r.Unhold)
	}
}

// Unhold ends a hold started by Hold immediately, flushing the latest cached
// value for each pdid seen during the hold to its subscribers.
func (r *Registry) Unhold() {
	r.mu.Lock()
	if !r.held {
		r.mu.Unlock()
		return
	}
	r.held = false
	pending := r.heldValues
	r.heldValues = nil
	r.mu.Unlock()

	for pdid, val := range pending {
		r.deliver(pdid, val)
	}
}

func decodeValue(pdid uint32, raw []byte) Value {
	val := Value{PDID: pdid, Raw: raw}
	if s, ok := Lookup(pdid); ok {
		val.Sensor = s
		val.Known = true
		if decoded, err := rmi.DecodeValue(raw, s.Type); err == nil {
			if s.ScaleFn != nil {
				decoded = s.ScaleFn(decoded)
			}
			val.Decoded = decoded
		}
	}
	return val
}

func (r *Registry) deliver(pdid uint32, val Value) {
	r.mu.Lock()
	set, ok := r.subs[pdid]
	if !ok {
		r.mu.Unlock()
		return
	}
	deliveries := make([]Consumer, 0, len(set))
	for key, sub := range set {
		if sub.dedup && sub.hasLast && bytesEqual(sub.last, val.Raw) {
			continue
		}
		sub.last = val.Raw
		sub.hasLast = true
		set[key] = sub
		deliveries = append(deliveries, sub.consumer)
	}
	r.mu.Unlock()

	for _, c := range deliveries {
		c(val)
	}
}

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
