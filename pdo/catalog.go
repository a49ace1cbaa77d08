// Package pdo implements the Process Data Object layer: a static catalog of
// known sensor pdids (data, not code, per the vendor's PROTOCOL-PDO.md
// mirrored in original_source/sensors.py) and a subscription registry that
// dispatches decoded values to consumers as CnRpdoNotification frames
// arrive.
package pdo

import "github.com/comfoconnect/comfoconnect-go/rmi"

// Sensor describes one known pdid: its display name, unit, wire type, and
// an optional scaling/decoding function applied to the raw decoded value.
type Sensor struct {
	ID       uint32
	Name     string
	Unit     string
	Type     rmi.ValueType
	ScaleFn  func(raw any) any
}

func scale10(raw any) any {
	v, ok := raw.(int64)
	if !ok {
		return raw
	}
	return float64(v) / 10
}

func celsiusOrFahrenheit(raw any) any {
	v, ok := raw.(uint64)
	if !ok {
		return raw
	}
	if v == 0 {
		return "celsius"
	}
	return "fahrenheit"
}

func airflowUnit(raw any) any {
	v, ok := raw.(uint64)
	if !ok {
		return raw
	}
	if v == 3 {
		return "m3ph"
	}
	return "lps"
}

// Catalog is keyed by pdid, ported from original_source/sensors.py. Sensors
// absent here are still delivered to subscribers by Registry.Dispatch, just
// without a decoded name/unit/scale attached (§9 "unknown pdids: transport
// unchanged, no scaling inference").
var Catalog = map[uint32]Sensor{
	16:  {16, "Device State", "", rmi.TypeUint8, nil},
	18:  {18, "Changing Filters", "", rmi.TypeUint8, nil},
	49:  {49, "Operating Mode", "", rmi.TypeUint8, nil},
	54:  {54, "Supply Fan Mode", "", rmi.TypeUint8, nil},
	55:  {55, "Exhaust Fan Mode", "", rmi.TypeUint8, nil},
	56:  {56, "Operating Mode", "", rmi.TypeUint8, nil},
	65:  {65, "Fan Speed", "", rmi.TypeUint8, nil},
	66:  {66, "Bypass Activation State", "", rmi.TypeUint8, nil},
	67:  {67, "Temperature Profile Mode", "", rmi.TypeUint8, nil},
	70:  {70, "Supply Fan Mode", "", rmi.TypeUint8, nil},
	71:  {71, "Exhaust Fan Mode", "", rmi.TypeUint8, nil},
	81:  {81, "Fan Speed Next Change", "", rmi.TypeUint32, nil},
	82:  {82, "Bypass Next Change", "", rmi.TypeUint32, nil},
	86:  {86, "Supply Fan Next Change", "", rmi.TypeUint32, nil},
	87:  {87, "Exhaust Fan Next Change", "", rmi.TypeUint32, nil},
	117: {117, "Exhaust Fan Duty", "%", rmi.TypeUint8, nil},
	118: {118, "Supply Fan Duty", "%", rmi.TypeUint8, nil},
	119: {119, "Exhaust Fan Flow", "m³/h", rmi.TypeUint16, nil},
	120: {120, "Supply Fan Flow", "m³/h", rmi.TypeUint16, nil},
	121: {121, "Exhaust Fan Speed", "rpm", rmi.TypeUint16, nil},
	122: {122, "Supply Fan Speed", "rpm", rmi.TypeUint16, nil},
	128: {128, "Power Usage", "W", rmi.TypeUint16, nil},
	129: {129, "Power Usage (year)", "kWh", rmi.TypeUint16, nil},
	130: {130, "Power Usage (total)", "kWh", rmi.TypeUint16, nil},
	144: {144, "Preheater Power Usage (year)", "kWh", rmi.TypeUint16, nil},
	145: {145, "Preheater Power Usage (total)", "kWh", rmi.TypeUint16, nil},
	146: {146, "Preheater Power Usage", "W", rmi.TypeUint16, nil},
	176: {176, "RF Pairing Mode", "", rmi.TypeUint8, nil},
	192: {192, "Days Remaining To Replace Filter", "", rmi.TypeUint16, nil},
	208: {208, "Device Temperature Unit", "", rmi.TypeUint8, celsiusOrFahrenheit},
	209: {209, "Running Mean Outdoor Temperature (RMOT)", "°C", rmi.TypeInt16, scale10},
	210: {210, "Heating Season Active", "", rmi.TypeBool, nil},
	211: {211, "Cooling Season Active", "", rmi.TypeBool, nil},
	212: {212, "Target Temperature", "°C", rmi.TypeInt16, scale10},
	213: {213, "Avoided Heating Power Usage", "W", rmi.TypeUint16, nil},
	214: {214, "Avoided Heating Power Usage (year)", "kWh", rmi.TypeUint16, nil},
	215: {215, "Avoided Heating Power Usage (total)", "kWh", rmi.TypeUint16, nil},
	216: {216, "Avoided Cooling Power Usage", "W", rmi.TypeUint16, nil},
	217: {217, "Avoided Cooling Power Usage (year)", "kWh", rmi.TypeUint16, nil},
	218: {218, "Avoided Cooling Power Usage (total)", "kWh", rmi.TypeUint16, nil},
	220: {220, "Outdoor Air Temperature (?)", "°C", rmi.TypeInt16, scale10},
	221: {221, "Supply Air Temperature", "°C", rmi.TypeInt16, scale10},
	224: {224, "Device Airflow Unit", "", rmi.TypeUint8, airflowUnit},
	225: {225, "Sensor Based Ventilation Mode", "", rmi.TypeUint8, nil},
	226: {226, "Fan Speed (modulated)", "", rmi.TypeUint16, nil},
	227: {227, "Bypass State", "%", rmi.TypeUint8, nil},
	228: {228, "Frost Protection Unbalance", "", rmi.TypeUint8, nil},
	230: {230, "Airflow Constraints", "", rmi.TypeInt64, decodeAirflowConstraints},
	274: {274, "Extract Air Temperature", "°C", rmi.TypeInt16, scale10},
	275: {275, "Exhaust Air Temperature", "°C", rmi.TypeInt16, scale10},
	276: {276, "Outdoor Air Temperature", "°C", rmi.TypeInt16, scale10},
	277: {277, "Outdoor Air Temperature (?)", "°C", rmi.TypeInt16, scale10},
	278: {278, "Supply Air Temperature (?)", "°C", rmi.TypeInt16, scale10},
	290: {290, "Extract Air Humidity", "%", rmi.TypeUint8, nil},
	291: {291, "Exhaust Air Humidity", "%", rmi.TypeUint8, nil},
	292: {292, "Outdoor Air Humidity", "%", rmi.TypeUint8, nil},
	293: {293, "Outdoor Air Humidity (after preheater)", "%", rmi.TypeUint8, nil},
	294: {294, "Supply Air Humidity", "%", rmi.TypeUint8, nil},
	338: {338, "Bypass Override", "", rmi.TypeUint32, nil},
	342: {342, "Supply Fan Mode", "", rmi.TypeUint32, nil},
	343: {343, "Exhaust Fan Mode", "", rmi.TypeUint32, nil},
	369: {369, "Analog Input 1", "", rmi.TypeUint8, nil},
	370: {370, "Analog Input 2", "", rmi.TypeUint8, nil},
	371: {371, "Analog Input 3", "", rmi.TypeUint8, nil},
	372: {372, "Analog Input 4", "", rmi.TypeUint8, nil},
	416: {416, "ComfoFond Outdoor Air Temperature", "", rmi.TypeInt16, scale10},
	417: {417, "ComfoFond Ground Temperature", "", rmi.TypeInt16, scale10},
	418: {418, "ComfoFond GHE State Percentage", "", rmi.TypeUint8, nil},
	419: {419, "ComfoFond GHE Present", "", rmi.TypeBool, nil},
}

// Lookup returns the catalog entry for pdid, if known.
func Lookup(pdid uint32) (Sensor, bool) {
	s, ok := Catalog[pdid]
	return s, ok
}
