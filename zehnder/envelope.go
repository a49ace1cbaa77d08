package zehnder

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Envelope is the GatewayOperation header: every frame's cmd sub-message.
type Envelope struct {
	Type      OperationType
	Reference uint32
	Result    ResultCode
}

const (
	fieldEnvelopeType      = 1
	fieldEnvelopeReference = 2
	fieldEnvelopeResult    = 3
)

// Marshal encodes the envelope with protowire primitives directly: the
// vendor firmware ships no .proto describing GatewayOperation, so there is
// no generated proto.Message to hand off to proto.Marshal.
func (e Envelope) Marshal() []byte {
	var buf []byte
	if e.Type != OperationUnknown {
		buf = protowire.AppendTag(buf, fieldEnvelopeType, protowire.VarintType)
		buf = protowire.AppendVarint(buf, uint64(e.Type))
	}
	if e.Reference != 0 {
		buf = protowire.AppendTag(buf, fieldEnvelopeReference, protowire.VarintType)
		buf = protowire.AppendVarint(buf, uint64(e.Reference))
	}
	if e.Result != ResultOK {
		buf = protowire.AppendTag(buf, fieldEnvelopeResult, protowire.VarintType)
		buf = protowire.AppendVarint(buf, uint64(e.Result))
	}
	return buf
}

// UnmarshalEnvelope decodes an envelope, ignoring unknown fields so future firmware
// revisions that add fields do not break decoding of the ones we know.
func UnmarshalEnvelope(data []byte) (Envelope, error) {
	var e Envelope
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return Envelope{}, fmt.Errorf("zehnder: envelope: bad tag: %w", protowire.ParseError(n))
		}
		data = data[n:]

		switch {
		case num == fieldEnvelopeType && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(data)
			if m < 0 {
				return Envelope{}, fmt.Errorf("zehnder: envelope: bad type field: %w", protowire.ParseError(m))
			}
			e.Type = OperationType(v)
			data = data[m:]
		case num == fieldEnvelopeReference && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(data)
			if m < 0 {
				return Envelope{}, fmt.Errorf("zehnder: envelope: bad reference field: %w", protowire.ParseError(m))
			}
			e.Reference = uint32(v)
			data = data[m:]
		case num == fieldEnvelopeResult && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(data)
			if m < 0 {
				return Envelope{}, fmt.Errorf("zehnder: envelope: bad result field: %w", protowire.ParseError(m))
			}
			e.Result = ResultCode(v)
			data = data[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, data)
			if m < 0 {
				return Envelope{}, fmt.Errorf("zehnder: envelope: bad unknown field %d: %w", num, protowire.ParseError(m))
			}
			data = data[m:]
		}
	}
	return e, nil
}
