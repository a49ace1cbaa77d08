package zehnder

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// RegisterAppRequest asks the bridge to remember this client for future
// sessions, identified by a locally generated UUID and a PIN the user
// entered on the bridge's own screen.
type RegisterAppRequest struct {
	UUID       []byte
	PIN        uint32
	DeviceName string
}

func (m RegisterAppRequest) Marshal() []byte {
	var buf []byte
	buf = appendBytesField(buf, 1, m.UUID)
	buf = appendVarintField(buf, 2, uint64(m.PIN))
	buf = appendStringField(buf, 3, m.DeviceName)
	return buf
}

func UnmarshalRegisterAppRequest(data []byte) (RegisterAppRequest, error) {
	var m RegisterAppRequest
	err := walkFields(data, func(num protowire.Number, typ protowire.Type, d []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(d)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			m.UUID = append([]byte(nil), v...)
			return n, nil
		case num == 2 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(d)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			m.PIN = uint32(v)
			return n, nil
		case num == 3 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(d)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			m.DeviceName = string(v)
			return n, nil
		}
		return 0, nil
	})
	return m, err
}

// DeregisterAppRequest removes a previously registered client by UUID.
type DeregisterAppRequest struct {
	UUID []byte
}

func (m DeregisterAppRequest) Marshal() []byte {
	return appendBytesField(nil, 1, m.UUID)
}

func UnmarshalDeregisterAppRequest(data []byte) (DeregisterAppRequest, error) {
	var m DeregisterAppRequest
	err := walkFields(data, func(num protowire.Number, typ protowire.Type, d []byte) (int, error) {
		if num == 1 && typ == protowire.BytesType {
			v, n := protowire.ConsumeBytes(d)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			m.UUID = append([]byte(nil), v...)
			return n, nil
		}
		return 0, nil
	})
	return m, err
}

// StartSessionRequest logs the registered client in, optionally kicking out
// whichever other client currently holds the bridge's single session slot.
type StartSessionRequest struct {
	TakeOver bool
}

func (m StartSessionRequest) Marshal() []byte {
	return appendBoolField(nil, 1, m.TakeOver)
}

func UnmarshalStartSessionRequest(data []byte) (StartSessionRequest, error) {
	var m StartSessionRequest
	err := walkFields(data, func(num protowire.Number, typ protowire.Type, d []byte) (int, error) {
		if num == 1 && typ == protowire.VarintType {
			v, n := protowire.ConsumeVarint(d)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			m.TakeOver = v != 0
			return n, nil
		}
		return 0, nil
	})
	return m, err
}

// RegisteredApp is one entry of a ListRegisteredAppsConfirm.
type RegisteredApp struct {
	UUID       []byte
	DeviceName string
}

func (m RegisteredApp) marshalInto(buf []byte) []byte {
	buf = appendBytesField(buf, 1, m.UUID)
	buf = appendStringField(buf, 2, m.DeviceName)
	return buf
}

func unmarshalRegisteredApp(data []byte) (RegisteredApp, error) {
	var m RegisteredApp
	err := walkFields(data, func(num protowire.Number, typ protowire.Type, d []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(d)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			m.UUID = append([]byte(nil), v...)
			return n, nil
		case num == 2 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(d)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			m.DeviceName = string(v)
			return n, nil
		}
		return 0, nil
	})
	return m, err
}

// ListRegisteredAppsConfirm lists every client currently registered on the
// bridge (this one included).
type ListRegisteredAppsConfirm struct {
	Apps []RegisteredApp
}

func (m ListRegisteredAppsConfirm) Marshal() []byte {
	var buf []byte
	for _, app := range m.Apps {
		buf = appendMessageField(buf, 1, app.marshalInto(nil))
	}
	return buf
}

func UnmarshalListRegisteredAppsConfirm(data []byte) (ListRegisteredAppsConfirm, error) {
	var m ListRegisteredAppsConfirm
	err := walkFields(data, func(num protowire.Number, typ protowire.Type, d []byte) (int, error) {
		if num == 1 && typ == protowire.BytesType {
			v, n := protowire.ConsumeBytes(d)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			app, err := unmarshalRegisteredApp(v)
			if err != nil {
				return 0, fmt.Errorf("registered app: %w", err)
			}
			m.Apps = append(m.Apps, app)
			return n, nil
		}
		return 0, nil
	})
	return m, err
}

// VersionConfirm reports gateway/firmware version information.
type VersionConfirm struct {
	GatewayVersion  uint32
	SerialNumber    string
	ComfoNetVersion uint32
}

func UnmarshalVersionConfirm(data []byte) (VersionConfirm, error) {
	var m VersionConfirm
	err := walkFields(data, func(num protowire.Number, typ protowire.Type, d []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(d)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			m.GatewayVersion = uint32(v)
			return n, nil
		case num == 2 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(d)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			m.SerialNumber = string(v)
			return n, nil
		case num == 3 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(d)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			m.ComfoNetVersion = uint32(v)
			return n, nil
		}
		return 0, nil
	})
	return m, err
}

// CnTimeConfirm reports the bridge's current time as a unix timestamp.
type CnTimeConfirm struct {
	CurrentTime uint32
}

func UnmarshalCnTimeConfirm(data []byte) (CnTimeConfirm, error) {
	var m CnTimeConfirm
	err := walkFields(data, func(num protowire.Number, typ protowire.Type, d []byte) (int, error) {
		if num == 1 && typ == protowire.VarintType {
			v, n := protowire.ConsumeVarint(d)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			m.CurrentTime = uint32(v)
			return n, nil
		}
		return 0, nil
	})
	return m, err
}

// CnRmiRequest carries a raw RMI byte string addressed to a node on the
// ComfoNet bus behind the bridge. Message is opaque here; the rmi package
// gives it meaning.
type CnRmiRequest struct {
	NodeID  uint32
	Message []byte
}

func (m CnRmiRequest) Marshal() []byte {
	var buf []byte
	buf = appendVarintField(buf, 1, uint64(m.NodeID))
	buf = appendBytesField(buf, 2, m.Message)
	return buf
}

func UnmarshalCnRmiRequest(data []byte) (CnRmiRequest, error) {
	var m CnRmiRequest
	err := walkFields(data, func(num protowire.Number, typ protowire.Type, d []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(d)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			m.NodeID = uint32(v)
			return n, nil
		case num == 2 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(d)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			m.Message = append([]byte(nil), v...)
			return n, nil
		}
		return 0, nil
	})
	return m, err
}

// CnRmiResponse carries the raw RMI reply bytes for a CnRmiRequest.
type CnRmiResponse struct {
	Message []byte
}

func (m CnRmiResponse) Marshal() []byte {
	return appendBytesField(nil, 1, m.Message)
}

func UnmarshalCnRmiResponse(data []byte) (CnRmiResponse, error) {
	var m CnRmiResponse
	err := walkFields(data, func(num protowire.Number, typ protowire.Type, d []byte) (int, error) {
		if num == 1 && typ == protowire.BytesType {
			v, n := protowire.ConsumeBytes(d)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			m.Message = append([]byte(nil), v...)
			return n, nil
		}
		return 0, nil
	})
	return m, err
}

// CnRpdoRequest (un)subscribes to a PDO. Timeout of 0 unsubscribes.
type CnRpdoRequest struct {
	PDID    uint32
	Type    uint32
	Zone    uint32
	Timeout uint32
}

func (m CnRpdoRequest) Marshal() []byte {
	var buf []byte
	buf = appendVarintField(buf, 1, uint64(m.PDID))
	buf = appendVarintField(buf, 2, uint64(m.Type))
	buf = appendVarintField(buf, 3, uint64(m.Zone))
	if m.Timeout != 0 {
		buf = protowire.AppendTag(buf, 4, protowire.VarintType)
		buf = protowire.AppendVarint(buf, uint64(m.Timeout))
	}
	return buf
}

func UnmarshalCnRpdoRequest(data []byte) (CnRpdoRequest, error) {
	var m CnRpdoRequest
	err := walkFields(data, func(num protowire.Number, typ protowire.Type, d []byte) (int, error) {
		if typ != protowire.VarintType {
			return 0, nil
		}
		v, n := protowire.ConsumeVarint(d)
		if n < 0 {
			return 0, protowire.ParseError(n)
		}
		switch num {
		case 1:
			m.PDID = uint32(v)
		case 2:
			m.Type = uint32(v)
		case 3:
			m.Zone = uint32(v)
		case 4:
			m.Timeout = uint32(v)
		default:
			return 0, nil
		}
		return n, nil
	})
	return m, err
}

// CnRpdoNotification is an unsolicited PDO value push from the bridge.
type CnRpdoNotification struct {
	PDID uint32
	Data []byte
}

func UnmarshalCnRpdoNotification(data []byte) (CnRpdoNotification, error) {
	var m CnRpdoNotification
	err := walkFields(data, func(num protowire.Number, typ protowire.Type, d []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(d)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			m.PDID = uint32(v)
			return n, nil
		case num == 2 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(d)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			m.Data = append([]byte(nil), v...)
			return n, nil
		}
		return 0, nil
	})
	return m, err
}

// CnNodeNotification announces a node joining/leaving the ComfoNet bus.
type CnNodeNotification struct {
	NodeID uint32
	Zone   uint32
}

func UnmarshalCnNodeNotification(data []byte) (CnNodeNotification, error) {
	var m CnNodeNotification
	err := walkFields(data, func(num protowire.Number, typ protowire.Type, d []byte) (int, error) {
		if typ != protowire.VarintType {
			return 0, nil
		}
		v, n := protowire.ConsumeVarint(d)
		if n < 0 {
			return 0, protowire.ParseError(n)
		}
		switch num {
		case 1:
			m.NodeID = uint32(v)
		case 2:
			m.Zone = uint32(v)
		default:
			return 0, nil
		}
		return n, nil
	})
	return m, err
}

// CnAlarmNotification reports an active error bitmask for a node.
type CnAlarmNotification struct {
	NodeID           uint32
	Errors           []byte
	SWProgramVersion uint32
}

func UnmarshalCnAlarmNotification(data []byte) (CnAlarmNotification, error) {
	var m CnAlarmNotification
	err := walkFields(data, func(num protowire.Number, typ protowire.Type, d []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(d)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			m.NodeID = uint32(v)
			return n, nil
		case num == 2 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(d)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			m.Errors = append([]byte(nil), v...)
			return n, nil
		case num == 3 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(d)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			m.SWProgramVersion = uint32(v)
			return n, nil
		}
		return 0, nil
	})
	return m, err
}

// DiscoveryRequest is the empty body of a broadcast SearchGatewayRequest.
type DiscoveryRequest struct{}

// DiscoveryResponse is one bridge's reply to a broadcast search.
type DiscoveryResponse struct {
	IPAddress string
	UUID      []byte
}

// DiscoveryOperation is the top-level message exchanged over UDP: it wraps
// either a SearchGatewayRequest (client -> bridge) or a SearchGatewayResponse
// (bridge -> client) as an embedded submessage.
type DiscoveryOperation struct {
	SearchGatewayRequest  *DiscoveryRequest
	SearchGatewayResponse *DiscoveryResponse
}

func (m DiscoveryOperation) Marshal() []byte {
	var buf []byte
	if m.SearchGatewayRequest != nil {
		buf = appendMessageField(buf, 1, nil)
	}
	if m.SearchGatewayResponse != nil {
		var inner []byte
		inner = appendStringField(inner, 1, m.SearchGatewayResponse.IPAddress)
		inner = appendBytesField(inner, 2, m.SearchGatewayResponse.UUID)
		buf = appendMessageField(buf, 2, inner)
	}
	return buf
}

func UnmarshalDiscoveryOperation(data []byte) (DiscoveryOperation, error) {
	var m DiscoveryOperation
	err := walkFields(data, func(num protowire.Number, typ protowire.Type, d []byte) (int, error) {
		if typ != protowire.BytesType {
			return 0, nil
		}
		v, n := protowire.ConsumeBytes(d)
		if n < 0 {
			return 0, protowire.ParseError(n)
		}
		switch num {
		case 1:
			m.SearchGatewayRequest = &DiscoveryRequest{}
			return n, nil
		case 2:
			resp := &DiscoveryResponse{}
			err := walkFields(v, func(inum protowire.Number, ityp protowire.Type, id []byte) (int, error) {
				switch {
				case inum == 1 && ityp == protowire.BytesType:
					iv, in := protowire.ConsumeBytes(id)
					if in < 0 {
						return 0, protowire.ParseError(in)
					}
					resp.IPAddress = string(iv)
					return in, nil
				case inum == 2 && ityp == protowire.BytesType:
					iv, in := protowire.ConsumeBytes(id)
					if in < 0 {
						return 0, protowire.ParseError(in)
					}
					resp.UUID = append([]byte(nil), iv...)
					return in, nil
				}
				return 0, nil
			})
			if err != nil {
				return 0, fmt.Errorf("searchGatewayResponse: %w", err)
			}
			m.SearchGatewayResponse = resp
			return n, nil
		}
		return 0, nil
	})
	return m, err
}
