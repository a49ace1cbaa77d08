package session

import (
	"context"

	"github.com/comfoconnect/comfoconnect-go/pdo"
	"github.com/comfoconnect/comfoconnect-go/rmi"
	"github.com/comfoconnect/comfoconnect-go/zehnder"
)

// pdoTimeoutForever is what the bridge treats as "subscribe until
// cancelled" in a CnRpdoRequest's timeout field.
const pdoTimeoutForever = 0xFFFFFFFF

// Subscribe asks the bridge to stream pdid and registers consumer to
// receive decoded values. A second Subscribe for the same pdid replaces the
// earlier registration (new type/consumer/dedup), matching the "replaced"
// behavior for repeat subscriptions.
func (s *Session) Subscribe(ctx context.Context, pdid uint32, typ rmi.ValueType, consumer pdo.Consumer, dedup bool) error {
	client, err := s.activeClient()
	if err != nil {
		return err
	}

	req := zehnder.CnRpdoRequest{PDID: pdid, Type: uint32(typ), Zone: 1, Timeout: pdoTimeoutForever}
	if _, err := client.Request(ctx, zehnder.CnRpdoRequestType, req.Marshal()); err != nil {
		return err
	}

	s.mu.Lock()
	prev, hadPrev := s.subscriptions[pdid]
	s.subscriptions[pdid] = subscriptionRecord{valueType: typ, consumer: consumer, dedup: dedup}
	s.mu.Unlock()
	if hadPrev {
		s.registry.Unsubscribe(pdid, prev.consumer)
	}
	s.registry.Subscribe(pdid, consumer, dedup)
	return nil
}

// Unsubscribe cancels a pdid subscription. The local registration is
// removed regardless of whether the bridge's confirm reports success, per
// the design notes ("removes the entry regardless of confirm outcome").
func (s *Session) Unsubscribe(ctx context.Context, pdid uint32) error {
	s.mu.Lock()
	rec, ok := s.subscriptions[pdid]
	delete(s.subscriptions, pdid)
	s.mu.Unlock()
	if !ok {
		return nil
	}
	s.registry.Unsubscribe(pdid, rec.consumer)

	client, err := s.activeClient()
	if err != nil {
		return err
	}
	req := zehnder.CnRpdoRequest{PDID: pdid, Timeout: 0}
	_, err = client.Request(ctx, zehnder.CnRpdoRequestType, req.Marshal())
	return err
}

// reinstallSubscriptions re-sends CnRpdoRequest for every subscription that
// survived a reconnect, without touching the local registry (the consumer
// registrations there are untouched by a reconnect).
func (s *Session) reinstallSubscriptions(ctx context.Context) {
	s.mu.Lock()
	client := s.client
	subs := make(map[uint32]subscriptionRecord, len(s.subscriptions))
	for k, v := range s.subscriptions {
		subs[k] = v
	}
	s.mu.Unlock()

	for pdid, rec := range subs {
		req := zehnder.CnRpdoRequest{PDID: pdid, Type: uint32(rec.valueType), Zone: 1, Timeout: pdoTimeoutForever}
		if _, err := client.Request(ctx, zehnder.CnRpdoRequestType, req.Marshal()); err != nil {
			s.logger.Warn("session: failed to reinstall subscription after reconnect")
		}
	}
}
