package zehnder

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

func appendVarintField(buf []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return buf
	}
	buf = protowire.AppendTag(buf, num, protowire.VarintType)
	return protowire.AppendVarint(buf, v)
}

func appendBoolField(buf []byte, num protowire.Number, v bool) []byte {
	if !v {
		return buf
	}
	buf = protowire.AppendTag(buf, num, protowire.VarintType)
	return protowire.AppendVarint(buf, 1)
}

func appendBytesField(buf []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return buf
	}
	buf = protowire.AppendTag(buf, num, protowire.BytesType)
	return protowire.AppendBytes(buf, v)
}

func appendStringField(buf []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return buf
	}
	return appendBytesField(buf, num, []byte(v))
}

func appendMessageField(buf []byte, num protowire.Number, v []byte) []byte {
	buf = protowire.AppendTag(buf, num, protowire.BytesType)
	return protowire.AppendBytes(buf, v)
}

// walkFields consumes one field at a time, calling fn for varint/bytes
// fields it understands and skipping anything else via ConsumeFieldValue.
func walkFields(data []byte, fn func(num protowire.Number, typ protowire.Type, data []byte) (n int, err error)) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("zehnder: bad tag: %w", protowire.ParseError(n))
		}
		data = data[n:]

		consumed, err := fn(num, typ, data)
		if err != nil {
			return err
		}
		if consumed == 0 {
			consumed = protowire.ConsumeFieldValue(num, typ, data)
			if consumed < 0 {
				return fmt.Errorf("zehnder: bad field %d: %w", num, protowire.ParseError(consumed))
			}
		}
		data = data[consumed:]
	}
	return nil
}
