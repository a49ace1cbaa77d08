package pdo

// AirflowConstraints reports the minimum and maximum supply/exhaust flow
// percentages the device will allow, bit-packed into pdid 230's raw value.
// Ported from original_source/util.py:calculate_airflow_constraints.
type AirflowConstraints struct {
	SupplyMin  uint8
	SupplyMax  uint8
	ExhaustMin uint8
	ExhaustMax uint8
}

func decodeAirflowConstraints(raw any) any {
	v, ok := raw.(int64)
	if !ok {
		return raw
	}
	bits := uint64(v)
	return AirflowConstraints{
		SupplyMin:  uint8(bits & 0xFF),
		SupplyMax:  uint8((bits >> 8) & 0xFF),
		ExhaustMin: uint8((bits >> 16) & 0xFF),
		ExhaustMax: uint8((bits >> 24) & 0xFF),
	}
}
