package bridge

import "github.com/comfoconnect/comfoconnect-go/zehnder"

// firmware140Threshold is the swProgramVersion boundary at or below which a
// unit speaks the older (shorter) error bit layout.
const firmware140Threshold = 3222278144

// errorsBase holds the bit numbers common to both firmware generations.
var errorsBase = map[int]string{
	21: "DANGER! OVERHEATING! Two or more sensors are detecting an incorrect temperature. Ventilation has stopped.",
	22: "Temperature too high for ComfoAir Q (TEMP_HRU ERROR)",
	23: "The extract air temperature sensor has a malfunction (SENSOR_ETA ERROR)",
	24: "The extract air temperature sensor is detecting an incorrect temperature (TEMP_SENSOR_ETA ERROR)",
	25: "The exhaust air temperature sensor has a malfunction (SENSOR_EHA ERROR)",
	26: "The exhaust air temperature sensor is detecting an incorrect temperature (TEMP_SENSOR_EHA ERROR)",
	27: "The outdoor air temperature sensor has a malfunction (SENSOR_ODA ERROR)",
	28: "The outdoor air temperature sensor is detecting an incorrect temperature (TEMP_SENSOR_ODA ERROR)",
	29: "The pre-conditioned outdoor air temperature sensor has a malfunction",
	30: "The pre-conditioned outdoor air temperature sensor is detecting an incorrect temperature (TEMP_SENSOR_P-ODA ERROR)",
	31: "The supply air temperature sensor has a malfunction (SENSOR_SUP ERROR)",
	32: "The supply air temperature sensor is detecting an incorrect temperature (TEMP_SENSOR_SUP ERROR)",
	33: "The Ventilation Unit has not been commissioned (INIT ERROR)",
	34: "The front door is open",
	35: "The Pre-heater is present, but not in the correct position (right/left). (PREHEAT_LOCATION ERROR)",
	37: "The pre-heater has a malfunction (PREHEAT ERROR)",
	38: "The pre-heater has a malfunction (PREHEAT ERROR)",
	39: "The extract air humidity sensor has a malfunction (SENSOR_ETA ERROR)",
	41: "The exhaust air humidity sensor has a malfunction (SENSOR_EHA ERROR)",
	43: "The outdoor air humidity sensor has a malfunction (SENSOR_ODA ERROR)",
	45: "The outdoor air humidity sensor has a malfunction (SENSOR_P-ODA ERROR)",
	47: "The supply air humidity sensor has a malfunction (SENSOR_SUP ERROR)",
	49: "The exhaust air flow sensor has a malfunction (SENSOR_EHA ERROR)",
	50: "The supply air flow sensor has a malfunction (SENSOR_SUP ERROR)",
	51: "The extract air fan has a malfunction (FAN_EHA ERROR)",
	52: "The supply air fan has a malfunction (FAN_SUP ERROR)",
	53: "Exhaust air pressure too high. Check air outlets, ducts and filters for pollution and obstructions. Check valve settings (EXT_PRESSURE_EHA ERROR)",
	54: "Supply air pressure too high. Check air outlets, ducts and filters for pollution and obstructions. Check valve settings. (EXT_PRESSURE_SUP ERROR)",
	55: "The extract air fan has a malfunction (FAN_EHA ERROR)",
	56: "The supply air fan has a malfunction (FAN_SUP ERROR)",
	57: "The exhaust air flow is not reaching its set point (AIRFLOW_EHA ERROR)",
	58: "The supply air flow is not reaching its set point (AIRFLOW_SUP ERROR)",
	59: "Failed to reach required temperature too often for outdoor air after pre-heater (TEMPCONTROL_P-ODA ERROR)",
	60: "Failed to reach required temperature too often for supply air. The modulating by-pass may have a malfunction. (TEMPCONTROL_SUP ERROR)",
	61: "Supply air temperature is too low too often (TEMP_SUP_MIN ERROR)",
	62: "Unbalance occurred too often beyond tolerance levels in past period (UNBALANCE ERROR)",
	63: "Postheater was present, but is no longer detected (POSTHEAT_CONNECT ERROR)",
	64: "Temperature sensor value for supply air ComfoCool exceeded limit too often (CCOOL_TEMP ERROR)",
	65: "Room temperature sensor was present, but is no longer detected (T_ROOM_PRES ERROR)",
	66: "RF Communication hardware was present, but is no longer detected (RF_PRES ERROR)",
	67: "Option Box was present, but is no longer detected (OPTION_BOX CONNECT ERROR)",
	68: "Pre-heater was present, but is no longer detected (PREHEAT_PRES ERROR)",
	69: "Postheater was present, but is no longer detected (POSTHEAT_CONNECT ERROR)",
}

// errorsCurrent extends errorsBase for firmware above the 1.4.0 boundary.
var errorsCurrent = mergeErrors(errorsBase, map[int]string{
	70:  "Analog input 1 was present, but is no longer detected (ANALOG_1_PRES ERROR)",
	71:  "Analog input 2 was present, but is no longer detected (ANALOG_2_PRES ERROR)",
	72:  "Analog input 3 was present, but is no longer detected (ANALOG_3_PRES ERROR)",
	73:  "Analog input 4 was present, but is no longer detected (ANALOG_4_PRES ERROR)",
	74:  "ComfoHood was present, but is no longer detected (HOOD_CONNECT ERROR)",
	75:  "ComfoCool was present, but is no longer detected (CCOOL_CONNECT ERROR)",
	76:  "ComfoFond was present, but is no longer detected (GROUND_HEAT_CONNECT ERROR)",
	77:  "The filters of the Ventilation Unit must be replaced now",
	78:  "It is necessary to replace or clean the external filter",
	79:  "Order new filters now, because the remaining filter life time is limited",
	80:  "Service mode is active (SERVICE MODE)",
	81:  "Preheater has no communication with the ComfoAir unit (PREHEAT ERROR , 1081)",
	82:  "ComfoHood temperature error (HOOD_TEMP ERROR)",
	83:  "Postheater temperature error (POSTHEAT_TEMP ERROR)",
	84:  "Outdoor temperature of ComfoFond error (GROUND_HEAT_TEMP ERROR)",
	85:  "Analog input 1 error (ANALOG_1_IN ERROR)",
	86:  "Analog input 2 error (ANALOG_2_IN ERROR)",
	87:  "Analog input 3 error (ANALOG_3_IN ERROR)",
	88:  "Analog input 4 error (ANALOG_4_IN ERROR)",
	89:  "Bypass is in manual mode",
	90:  "ComfoCool is overheating",
	91:  "ComfoCool compressor error (CCOOL_COMPRESSOR ERROR)",
	92:  "ComfoCool room temperature sensor error (CCOOL_TEMP ERROR)",
	93:  "ComfoCool condensor temperature sensor error (CCOOL_TEMP ERROR)",
	94:  "ComfoCool supply air temperature sensor error (CCOOL_TEMP ERROR)",
	95:  "ComfoHood temperature is too high (HOOD_TEMP ERROR)",
	96:  "ComfoHood is activated",
	97:  "QM_Constraint_min_ERR",
	98:  "H_21_qm_min_ERR",
	99:  "Configuration error",
	100: "Error analysis is in progress",
	101: "ComfoNet Error",
	102: "The number of CO2 sensors has decreased - one or more sensors are no longer detected",
	103: "More than 8 sensors detected in a zone",
	104: "CO2 Sensor C error",
})

// errors140 extends errorsBase for firmware 1.4.0 and below, which packs
// the tail of the bitmask differently than errorsCurrent.
var errors140 = mergeErrors(errorsBase, map[int]string{
	70: "ComfoHood was present, but is no longer detected (HOOD_CONNECT ERROR)",
	71: "ComfoCool was present, but is no longer detected (CCOOL_CONNECT ERROR)",
	72: "ComfoFond was present, but is no longer detected (GROUND_HEAT_CONNECT ERROR)",
	73: "The filters of the Ventilation Unit must be replaced now",
	74: "It is necessary to replace or clean the external filter",
	75: "Order new filters now, because the remaining filter life time is limited",
	76: "Service mode is active (SERVICE MODE)",
	77: "Preheater has no communication with the ComfoAir unit (PREHEAT ERROR , 1081)",
	78: "ComfoHood temperature error (HOOD_TEMP ERROR)",
	79: "Postheater temperature error (POSTHEAT_TEMP ERROR)",
	80: "Outdoor temperature of ComfoFond error (GROUND_HEAT_TEMP ERROR)",
	81: "Bypass is in manual mode",
	82: "ComfoCool is overheating",
	83: "ComfoCool compressor error (CCOOL_COMPRESSOR ERROR)",
	84: "ComfoCool room temperature sensor error (CCOOL_TEMP ERROR)",
	85: "ComfoCool condensor temperature sensor error (CCOOL_TEMP ERROR)",
	86: "ComfoCool supply air temperature sensor error (CCOOL_TEMP ERROR)",
})

func mergeErrors(base, extra map[int]string) map[int]string {
	out := make(map[int]string, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// DecodeAlarm turns a CnAlarmNotification's error bitmask into bit ->
// message pairs, picking the errors140 table at or below the firmware
// threshold and errorsCurrent above it.
func DecodeAlarm(note zehnder.CnAlarmNotification) map[int]string {
	table := errorsCurrent
	if note.SWProgramVersion <= firmware140Threshold {
		table = errors140
	}

	active := make(map[int]string)
	for _, bit := range bytesToSetBits(note.Errors) {
		if msg, ok := table[bit]; ok {
			active[bit] = msg
		}
	}
	return active
}

// bytesToSetBits lists, in ascending order, the bit positions set across
// data (bit 0 is the LSB of data[0]).
func bytesToSetBits(data []byte) []int {
	var bits []int
	for byteIdx, b := range data {
		for i := 0; i < 8; i++ {
			if b&(1<<uint(i)) != 0 {
				bits = append(bits, byteIdx*8+i)
			}
		}
	}
	return bits
}
