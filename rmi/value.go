package rmi

import (
	"encoding/binary"
	"fmt"
)

// ValueType is the PDO type tag carried alongside raw property bytes,
// matching PdoType in original_source/const.py.
type ValueType byte

const (
	TypeBool    ValueType = 0x00
	TypeUint8   ValueType = 0x01
	TypeUint16  ValueType = 0x02
	TypeUint32  ValueType = 0x03
	TypeInt8    ValueType = 0x05
	TypeInt16   ValueType = 0x06
	TypeInt64   ValueType = 0x08
	TypeString  ValueType = 0x09
	TypeTime    ValueType = 0x10
	TypeVersion ValueType = 0x11
)

// DecodeValue interprets raw little-endian property bytes according to typ.
// TYPE_CN_TIME decodes the same as an unsigned 32-bit integer (a unix
// timestamp); TYPE_CN_VERSION additionally unpacks its nibble-packed layout
// via DecodeVersion.
func DecodeValue(data []byte, typ ValueType) (any, error) {
	switch typ {
	case TypeString:
		return trimTrailingNul(data), nil
	case TypeBool:
		if len(data) < 1 {
			return nil, fmt.Errorf("rmi: BOOL value needs 1 byte, got %d", len(data))
		}
		return data[0] == 1, nil
	case TypeInt8, TypeInt16, TypeInt64:
		return decodeSigned(data)
	case TypeUint8, TypeUint16, TypeUint32:
		return decodeUnsigned(data)
	case TypeTime:
		v, err := decodeUnsigned(data)
		if err != nil {
			return nil, err
		}
		return uint32(v), nil
	case TypeVersion:
		v, err := decodeUnsigned(data)
		if err != nil {
			return nil, err
		}
		return DecodeVersion(uint32(v)), nil
	default:
		return nil, fmt.Errorf("rmi: unsupported value type 0x%02x", byte(typ))
	}
}

func trimTrailingNul(data []byte) string {
	end := len(data)
	for end > 0 && data[end-1] == 0x00 {
		end--
	}
	return string(data[:end])
}

func decodeSigned(data []byte) (int64, error) {
	switch len(data) {
	case 1:
		return int64(int8(data[0])), nil
	case 2:
		return int64(int16(binary.LittleEndian.Uint16(data))), nil
	case 8:
		return int64(binary.LittleEndian.Uint64(data)), nil
	default:
		return 0, fmt.Errorf("rmi: unsupported signed value width %d", len(data))
	}
}

func decodeUnsigned(data []byte) (uint64, error) {
	switch len(data) {
	case 1:
		return uint64(data[0]), nil
	case 2:
		return uint64(binary.LittleEndian.Uint16(data)), nil
	case 4:
		return uint64(binary.LittleEndian.Uint32(data)), nil
	default:
		return 0, fmt.Errorf("rmi: unsupported unsigned value width %d", len(data))
	}
}

// EncodeValue produces the raw little-endian bytes for a typed set request,
// mirroring original_source/util.py:encode_pdo_value.
func EncodeValue(value int64, typ ValueType) ([]byte, error) {
	switch typ {
	case TypeBool:
		if value != 0 {
			return []byte{1}, nil
		}
		return []byte{0}, nil
	case TypeUint8, TypeInt8:
		buf := []byte{byte(value)}
		return buf, nil
	case TypeUint16, TypeInt16:
		buf := make([]byte, 2)
		binary.LittleEndian.PutUint16(buf, uint16(value))
		return buf, nil
	case TypeUint32:
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, uint32(value))
		return buf, nil
	case TypeInt64:
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, uint64(value))
		return buf, nil
	default:
		return nil, fmt.Errorf("rmi: type 0x%02x is not supported for encoding", byte(typ))
	}
}

// DecodeVersion unpacks a TYPE_CN_VERSION word into the vendor's
// "<channel><major>.<minor>.<patch>" string, e.g. "R3.2.15". The channel
// prefix and bit widths come from original_source/util.py:version_decode.
func DecodeVersion(version uint32) string {
	channel := (version >> 30) & 0x3
	major := (version >> 20) & 0x3FF
	minor := (version >> 10) & 0x3FF
	patch := version & 0x3FF

	var channelLetter byte
	switch channel {
	case 0:
		channelLetter = 'U'
	case 1:
		channelLetter = 'D'
	case 2:
		channelLetter = 'P'
	case 3:
		channelLetter = 'R'
	}

	return fmt.Sprintf("%c%d.%d.%d", channelLetter, major, minor, patch)
}
