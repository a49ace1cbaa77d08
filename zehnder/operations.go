// Package zehnder implements the vendor envelope protocol spoken by
// ComfoConnect LAN C bridges: a small protobuf-shaped header (GatewayOperation)
// naming an operation type and carrying a request/reply correlation reference,
// wrapping a second protobuf message specific to that operation.
//
// No .proto schema ships with the bridge firmware, so the wire layout below is
// reconstructed field-by-field from the reference client's generated pb2
// module and re-expressed with protowire directly rather than fabricated
// protoc-gen-go structs.
package zehnder

// OperationType identifies the payload carried alongside a GatewayOperation
// header. Values are assigned in the same relative order as the vendor's own
// enum; exact numbers are this module's own invention since the upstream
// .proto is not distributed with the firmware.
type OperationType int32

const (
	OperationUnknown OperationType = 0

	SetAddressRequestType OperationType = 1
	SetAddressConfirmType OperationType = 2

	RegisterAppRequestType OperationType = 3
	RegisterAppConfirmType OperationType = 4

	StartSessionRequestType OperationType = 5
	StartSessionConfirmType OperationType = 6

	CloseSessionRequestType OperationType = 7
	CloseSessionConfirmType OperationType = 8

	ListRegisteredAppsRequestType OperationType = 9
	ListRegisteredAppsConfirmType OperationType = 10

	DeregisterAppRequestType OperationType = 11
	DeregisterAppConfirmType OperationType = 12

	ChangePinRequestType OperationType = 13
	ChangePinConfirmType OperationType = 14

	VersionRequestType OperationType = 15
	VersionConfirmType OperationType = 16

	GatewayNotificationType OperationType = 17
	KeepAliveType           OperationType = 18

	CnTimeRequestType OperationType = 19
	CnTimeConfirmType OperationType = 20

	CnNodeRequestType      OperationType = 21
	CnNodeNotificationType OperationType = 22

	CnRmiRequestType       OperationType = 23
	CnRmiResponseType      OperationType = 24
	CnRmiAsyncRequestType  OperationType = 25
	CnRmiAsyncConfirmType  OperationType = 26
	CnRmiAsyncResponseType OperationType = 27

	CnRpdoRequestType      OperationType = 28
	CnRpdoConfirmType      OperationType = 29
	CnRpdoNotificationType OperationType = 30

	CnAlarmNotificationType OperationType = 31

	GetRemoteAccessIdRequestType OperationType = 32
	GetRemoteAccessIdConfirmType OperationType = 33
	SetRemoteAccessIdRequestType OperationType = 34
	SetRemoteAccessIdConfirmType OperationType = 35

	GetSupportIdRequestType OperationType = 36
	GetSupportIdConfirmType OperationType = 37
	SetSupportIdRequestType OperationType = 38
	SetSupportIdConfirmType OperationType = 39

	GetWebIdRequestType OperationType = 40
	GetWebIdConfirmType OperationType = 41
	SetWebIdRequestType OperationType = 42
	SetWebIdConfirmType OperationType = 43
)

// GetRemoteAccessIdRequestType through SetWebIdConfirmType round-trip
// through the bridge's own REQUEST_MAPPING/CONFIRM_MAPPING tables but are
// never constructed or read by the reference client itself, so their
// payload layouts have no known schema; envelopes of these types fall
// through Envelope's unknown-tag handling instead of a typed message struct.

// The bridge reuses CloseSessionRequestType to ask us to disconnect: an
// inbound envelope of that type with no reference is a server-initiated
// close, not a reply to anything we sent.

// ResultCode is the GatewayOperation.result field: the outcome of a request,
// echoed back on its reply envelope.
type ResultCode int32

const (
	ResultOK             ResultCode = 0
	ResultBadRequest     ResultCode = 1
	ResultInternalError  ResultCode = 2
	ResultNotReachable   ResultCode = 3
	ResultOtherSession   ResultCode = 4
	ResultNotAllowed     ResultCode = 5
	ResultNoResources    ResultCode = 6
	ResultNotExist       ResultCode = 7
	ResultRMIError       ResultCode = 8
)

func (r ResultCode) String() string {
	switch r {
	case ResultOK:
		return "OK"
	case ResultBadRequest:
		return "BAD_REQUEST"
	case ResultInternalError:
		return "INTERNAL_ERROR"
	case ResultNotReachable:
		return "NOT_REACHABLE"
	case ResultOtherSession:
		return "OTHER_SESSION"
	case ResultNotAllowed:
		return "NOT_ALLOWED"
	case ResultNoResources:
		return "NO_RESOURCES"
	case ResultNotExist:
		return "NOT_EXIST"
	case ResultRMIError:
		return "RMI_ERROR"
	default:
		return "UNKNOWN_RESULT"
	}
}
