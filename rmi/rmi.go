// Package rmi implements the Remote Method Invocation byte protocol carried
// inside a CnRmiRequest/CnRmiResponse envelope payload: get/set operations
// against a (unit, subunit, property) address on a ComfoNet node.
//
// Grounded on the opcode layout in original_source/comfoconnect.py, which
// builds these byte strings inline for every convenience verb rather than
// through a shared encoder; this package factors that out into GetSingle,
// GetMulti and SetSingle so bridge verbs stop hand-assembling byte slices.
package rmi

import (
	"encoding/binary"
	"fmt"
)

// Opcodes, taken verbatim from the byte literals in comfoconnect.py.
const (
	OpGetSingle byte = 0x01
	OpGetMulti  byte = 0x02
	OpSetSingle byte = 0x03
	OpSetPath   byte = 0x04 // path-addressed set, unused by any convenience verb but present on the wire
	OpDefine     byte = 0x83 // "read schedule" style get used by set_speed/set_mode et al.
	OpWrite      byte = 0x84 // scheduled write used by set_speed/set_mode et al.
	OpClear      byte = 0x85 // clears an override, reverting to auto
	OpErrorClear byte = 0x82 // used only by clear_errors
)

// Unit identifies a functional block on the ComfoNet bus.
type Unit byte

const (
	UnitNode               Unit = 0x01
	UnitComfoBus           Unit = 0x02
	UnitError              Unit = 0x03
	UnitSchedule           Unit = 0x15
	UnitValve              Unit = 0x16
	UnitFan                Unit = 0x17
	UnitPowerSensor        Unit = 0x18
	UnitPreheater          Unit = 0x19
	UnitHMI                Unit = 0x1A
	UnitRFCommunication    Unit = 0x1B
	UnitFilter             Unit = 0x1C
	UnitTempHumControl     Unit = 0x1D
	UnitVentilationConfig  Unit = 0x1E
	UnitNodeConfiguration  Unit = 0x20
	UnitTemperatureSensor  Unit = 0x21
	UnitHumiditySensor     Unit = 0x22
	UnitPressureSensor     Unit = 0x23
	UnitPeripherals        Unit = 0x24
	UnitAnalogInput        Unit = 0x25
	UnitCookerhood         Unit = 0x26
	UnitPostheater         Unit = 0x27
	UnitComfoFond          Unit = 0x28
	UnitCO2Sensor          Unit = 0x2B
	UnitServicePrint       Unit = 0x2C
)

// Subunit further addresses a functional block; SUBUNIT_01..08 upstream.
type Subunit byte

const (
	Subunit01 Subunit = 0x01
	Subunit02 Subunit = 0x02
	Subunit03 Subunit = 0x03
	Subunit04 Subunit = 0x04
	Subunit05 Subunit = 0x05
	Subunit06 Subunit = 0x06
	Subunit07 Subunit = 0x07
	Subunit08 Subunit = 0x08
)

// GetSingle builds a "read one property" request:
// [0x01, unit, subunit, 0x10, propertyID].
func GetSingle(unit Unit, subunit Subunit, propertyID byte) []byte {
	return []byte{OpGetSingle, byte(unit), byte(subunit), 0x10, propertyID}
}

// maxMultiProperties is the largest property count GetMulti's count nibble
// can carry: the low nibble of 0x10|count must not overflow into the 0x10
// tag bit, capping count at 15. A count of 0 is equally meaningless, since
// then 0x10|0 collides with a genuine 16-property request.
const maxMultiProperties = 15

// GetMulti builds a "read several properties in one round trip" request:
// [0x02, unit, subunit, 0x01, 0x10|count, propertyIDs...]. propertyIDs must
// hold between 1 and 15 ids inclusive.
func GetMulti(unit Unit, subunit Subunit, propertyIDs []byte) ([]byte, error) {
	if len(propertyIDs) < 1 || len(propertyIDs) > maxMultiProperties {
		return nil, fmt.Errorf("rmi: GetMulti needs 1-%d property ids, got %d", maxMultiProperties, len(propertyIDs))
	}
	msg := make([]byte, 0, 5+len(propertyIDs))
	msg = append(msg, OpGetMulti, byte(unit), byte(subunit), 0x01, 0x10|byte(len(propertyIDs)))
	msg = append(msg, propertyIDs...)
	return msg, nil
}

// SetSingle builds a "write one raw byte property" request:
// [0x03, unit, subunit, propertyID, value].
func SetSingle(unit Unit, subunit Subunit, propertyID, value byte) []byte {
	return []byte{OpSetSingle, byte(unit), byte(subunit), propertyID, value}
}

// SetSingleTyped builds a "write one typed property" request, encoding value
// with the PDO value codec instead of a single raw byte.
func SetSingleTyped(unit Unit, subunit Subunit, propertyID byte, value int64, typ ValueType) ([]byte, error) {
	encoded, err := EncodeValue(value, typ)
	if err != nil {
		return nil, err
	}
	msg := make([]byte, 0, 4+len(encoded))
	msg = append(msg, OpSetSingle, byte(unit), byte(subunit), propertyID)
	msg = append(msg, encoded...)
	return msg, nil
}

// ScheduleWrite builds the "schedule override" byte layout used by
// set_speed/set_mode/set_bypass/etc: an OpWrite opcode, a zeroed 4-byte
// reserved field, a little-endian uint32 timeout, and a trailing value byte
// selecting the override.
func ScheduleWrite(unit Unit, subunit Subunit, function byte, timeout int32, value byte) []byte {
	msg := make([]byte, 0, 13)
	msg = append(msg, OpWrite, byte(unit), byte(subunit), function, 0x00, 0x00, 0x00, 0x00)
	timeoutBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(timeoutBuf, uint32(timeout))
	msg = append(msg, timeoutBuf...)
	msg = append(msg, value)
	return msg
}

// ScheduleClear builds the "revert to auto" byte layout used to cancel a
// ScheduleWrite override: [0x85, unit, subunit, function].
func ScheduleClear(unit Unit, subunit Subunit, function byte) []byte {
	return []byte{OpClear, byte(unit), byte(subunit), function}
}

// ScheduleRead builds the "read current schedule state" byte layout used by
// get_speed/get_mode/get_bypass/etc: [0x83, unit, subunit, function].
func ScheduleRead(unit Unit, subunit Subunit, function byte) []byte {
	return []byte{OpDefine, byte(unit), byte(subunit), function}
}

// ErrorClear builds the "acknowledge/clear active errors" byte layout used
// by clear_errors: [0x82, unit, 0x01]. It carries no subunit or function
// byte, unlike every other builder here.
func ErrorClear(unit Unit) []byte {
	return []byte{OpErrorClear, byte(unit), 0x01}
}
