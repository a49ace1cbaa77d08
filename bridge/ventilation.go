package bridge

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/comfoconnect/comfoconnect-go/rmi"
)

// VentilationMode selects between the unit's own schedule and a manually
// forced speed.
type VentilationMode string

const (
	ModeAuto   VentilationMode = "auto"
	ModeManual VentilationMode = "manual"
)

// VentilationSpeed is one of the four fixed fan speeds.
type VentilationSpeed string

const (
	SpeedAway   VentilationSpeed = "away"
	SpeedLow    VentilationSpeed = "low"
	SpeedMedium VentilationSpeed = "medium"
	SpeedHigh   VentilationSpeed = "high"
)

// Setting is the shared auto/on/off tri-state used by bypass and the
// sensor-based ventilation modes.
type Setting string

const (
	SettingAuto Setting = "auto"
	SettingOn   Setting = "on"
	SettingOff  Setting = "off"
)

// Balance selects which side of the unit is actively controlled.
type Balance string

const (
	BalanceBalanced    Balance = "balance"
	BalanceSupplyOnly  Balance = "supply_only"
	BalanceExhaustOnly Balance = "exhaust_only"
)

// TemperatureProfile shifts the unit's target comfort temperature.
type TemperatureProfile string

const (
	ProfileWarm   TemperatureProfile = "warm"
	ProfileNormal TemperatureProfile = "normal"
	ProfileCool   TemperatureProfile = "cool"
)

// ComfoCoolMode is the auto/off state (two-valued, unlike the tri-state
// Setting) for the ComfoCool option.
type ComfoCoolMode string

const (
	ComfoCoolAuto ComfoCoolMode = "auto"
	ComfoCoolOff  ComfoCoolMode = "off"
)

// noTimeout marks a schedule override as permanent, matching the reference
// client's timeout=-1 default.
const noTimeout int32 = -1

// GetMode reads whether the unit is following its own schedule or a forced
// speed.
func (b *Bridge) GetMode(ctx context.Context) (VentilationMode, error) {
	raw, err := b.rmi(ctx, rmi.ScheduleRead(rmi.UnitSchedule, rmi.Subunit08, 0x01))
	if err != nil {
		return "", err
	}
	if len(raw) == 0 {
		return "", fmt.Errorf("bridge: get mode: empty reply")
	}
	if raw[0] == 1 {
		return ModeManual, nil
	}
	return ModeAuto, nil
}

// SetMode switches between auto (bridge-scheduled) and manual (forced)
// ventilation.
func (b *Bridge) SetMode(ctx context.Context, mode VentilationMode) error {
	switch mode {
	case ModeAuto:
		_, err := b.rmi(ctx, rmi.ScheduleClear(rmi.UnitSchedule, rmi.Subunit08, 0x01))
		return err
	case ModeManual:
		_, err := b.rmi(ctx, rmi.ScheduleWrite(rmi.UnitSchedule, rmi.Subunit08, 0x01, 1, 0x01))
		return err
	default:
		return fmt.Errorf("bridge: invalid mode %q", mode)
	}
}

// GetSpeed reads the current fixed fan speed.
func (b *Bridge) GetSpeed(ctx context.Context) (VentilationSpeed, error) {
	raw, err := b.rmi(ctx, rmi.ScheduleRead(rmi.UnitSchedule, rmi.Subunit01, 0x01))
	if err != nil {
		return "", err
	}
	if len(raw) == 0 {
		return "", fmt.Errorf("bridge: get speed: empty reply")
	}
	return speedFromByte(raw[len(raw)-1])
}

// SetSpeed forces the fan to one of the four fixed speeds. This write
// always carries a hardcoded timeout field of 1, regardless of speed.
func (b *Bridge) SetSpeed(ctx context.Context, speed VentilationSpeed) error {
	value, err := speedToByte(speed)
	if err != nil {
		return err
	}
	_, err = b.rmi(ctx, rmi.ScheduleWrite(rmi.UnitSchedule, rmi.Subunit01, 0x01, 1, value))
	return err
}

func speedFromByte(v byte) (VentilationSpeed, error) {
	switch v {
	case 0:
		return SpeedAway, nil
	case 1:
		return SpeedLow, nil
	case 2:
		return SpeedMedium, nil
	case 3:
		return SpeedHigh, nil
	default:
		return "", fmt.Errorf("bridge: invalid speed byte %d", v)
	}
}

func speedToByte(speed VentilationSpeed) (byte, error) {
	switch speed {
	case SpeedAway:
		return 0x00, nil
	case SpeedLow:
		return 0x01, nil
	case SpeedMedium:
		return 0x02, nil
	case SpeedHigh:
		return 0x03, nil
	default:
		return 0, fmt.Errorf("bridge: invalid speed %q", speed)
	}
}

func flowPropertyID(speed VentilationSpeed) (byte, error) {
	switch speed {
	case SpeedAway:
		return 3, nil
	case SpeedLow:
		return 4, nil
	case SpeedMedium:
		return 5, nil
	case SpeedHigh:
		return 6, nil
	default:
		return 0, fmt.Errorf("bridge: invalid speed %q", speed)
	}
}

// GetFlowForSpeed reads the configured target airflow (m3/h) for speed.
func (b *Bridge) GetFlowForSpeed(ctx context.Context, speed VentilationSpeed) (int16, error) {
	prop, err := flowPropertyID(speed)
	if err != nil {
		return 0, err
	}
	v, err := b.getProperty(ctx, rmi.UnitVentilationConfig, rmi.Subunit01, prop, rmi.TypeInt16)
	if err != nil {
		return 0, err
	}
	return int16(v.(int64)), nil
}

// SetFlowForSpeed configures the target airflow (m3/h) for speed.
func (b *Bridge) SetFlowForSpeed(ctx context.Context, speed VentilationSpeed, flow int16) error {
	prop, err := flowPropertyID(speed)
	if err != nil {
		return err
	}
	return b.setProperty(ctx, rmi.UnitVentilationConfig, rmi.Subunit01, prop, int64(flow), rmi.TypeInt16)
}

// FlowSettings holds the configured target airflow (m3/h) for every fixed
// speed, as read together by GetAllFlowSettings.
type FlowSettings struct {
	Away, Low, Medium, High int16
}

// GetAllFlowSettings reads the target airflow for every fixed speed in one
// RMI round trip via rmi.GetMulti, instead of four separate GetSingle calls.
func (b *Bridge) GetAllFlowSettings(ctx context.Context) (FlowSettings, error) {
	req, err := rmi.GetMulti(rmi.UnitVentilationConfig, rmi.Subunit01, []byte{3, 4, 5, 6})
	if err != nil {
		return FlowSettings{}, err
	}
	raw, err := b.rmi(ctx, req)
	if err != nil {
		return FlowSettings{}, err
	}
	if len(raw) < 8 {
		return FlowSettings{}, fmt.Errorf("bridge: GetAllFlowSettings: short reply (%d bytes)", len(raw))
	}
	flow := func(i int) int16 { return int16(binary.LittleEndian.Uint16(raw[i*2:])) }
	return FlowSettings{Away: flow(0), Low: flow(1), Medium: flow(2), High: flow(3)}, nil
}

// GetBypass reads the current bypass override state.
func (b *Bridge) GetBypass(ctx context.Context) (Setting, error) {
	raw, err := b.rmi(ctx, rmi.ScheduleRead(rmi.UnitSchedule, rmi.Subunit02, 0x01))
	if err != nil {
		return "", err
	}
	if len(raw) == 0 {
		return "", fmt.Errorf("bridge: get bypass: empty reply")
	}
	return settingFromByte(raw[len(raw)-1])
}

// SetBypass overrides the bypass valve. timeout is in seconds; pass -1 for a
// permanent override, matching the reference client's default.
func (b *Bridge) SetBypass(ctx context.Context, mode Setting, timeout int32) error {
	switch mode {
	case SettingAuto:
		_, err := b.rmi(ctx, rmi.ScheduleClear(rmi.UnitSchedule, rmi.Subunit02, 0x01))
		return err
	case SettingOn:
		_, err := b.rmi(ctx, rmi.ScheduleWrite(rmi.UnitSchedule, rmi.Subunit02, 0x01, timeout, 0x01))
		return err
	case SettingOff:
		_, err := b.rmi(ctx, rmi.ScheduleWrite(rmi.UnitSchedule, rmi.Subunit02, 0x01, timeout, 0x02))
		return err
	default:
		return fmt.Errorf("bridge: invalid bypass setting %q", mode)
	}
}

func settingFromByte(v byte) (Setting, error) {
	switch v {
	case 0:
		return SettingAuto, nil
	case 1:
		return SettingOn, nil
	case 2:
		return SettingOff, nil
	default:
		return "", fmt.Errorf("bridge: invalid setting byte %d", v)
	}
}

// GetBalanceMode reads whether both fans, only supply, or only exhaust is
// active, by comparing the SUBUNIT_06/SUBUNIT_07 schedule states.
func (b *Bridge) GetBalanceMode(ctx context.Context) (Balance, error) {
	raw06, err := b.rmi(ctx, rmi.ScheduleRead(rmi.UnitSchedule, rmi.Subunit06, 0x01))
	if err != nil {
		return "", err
	}
	raw07, err := b.rmi(ctx, rmi.ScheduleRead(rmi.UnitSchedule, rmi.Subunit07, 0x01))
	if err != nil {
		return "", err
	}
	if len(raw06) == 0 || len(raw07) == 0 {
		return "", fmt.Errorf("bridge: get balance mode: empty reply")
	}
	mode06, mode07 := raw06[0], raw07[0]

	switch {
	case mode06 == mode07:
		return BalanceBalanced, nil
	case mode06 == 1 && mode07 == 0:
		return BalanceSupplyOnly, nil
	case mode06 == 0 && mode07 == 1:
		return BalanceExhaustOnly, nil
	default:
		return "", fmt.Errorf("bridge: invalid balance mode: 6=%d 7=%d", mode06, mode07)
	}
}

// SetBalanceMode overrides which fans are active.
func (b *Bridge) SetBalanceMode(ctx context.Context, mode Balance, timeout int32) error {
	switch mode {
	case BalanceBalanced:
		if _, err := b.rmi(ctx, rmi.ScheduleClear(rmi.UnitSchedule, rmi.Subunit06, 0x01)); err != nil {
			return err
		}
		_, err := b.rmi(ctx, rmi.ScheduleClear(rmi.UnitSchedule, rmi.Subunit07, 0x01))
		return err
	case BalanceSupplyOnly:
		if _, err := b.rmi(ctx, rmi.ScheduleWrite(rmi.UnitSchedule, rmi.Subunit06, 0x01, timeout, 0x01)); err != nil {
			return err
		}
		_, err := b.rmi(ctx, rmi.ScheduleClear(rmi.UnitSchedule, rmi.Subunit07, 0x01))
		return err
	case BalanceExhaustOnly:
		if _, err := b.rmi(ctx, rmi.ScheduleClear(rmi.UnitSchedule, rmi.Subunit06, 0x01)); err != nil {
			return err
		}
		_, err := b.rmi(ctx, rmi.ScheduleWrite(rmi.UnitSchedule, rmi.Subunit07, 0x01, timeout, 0x01))
		return err
	default:
		return fmt.Errorf("bridge: invalid balance mode %q", mode)
	}
}

// DefaultBoostTimeout is the reference client's default duration for boost
// and away overrides.
const DefaultBoostTimeout = 3600

// GetBoost reports whether boost mode is currently active.
func (b *Bridge) GetBoost(ctx context.Context) (bool, error) {
	raw, err := b.rmi(ctx, rmi.ScheduleRead(rmi.UnitSchedule, rmi.Subunit01, 0x06))
	if err != nil {
		return false, err
	}
	if len(raw) == 0 {
		return false, fmt.Errorf("bridge: get boost: empty reply")
	}
	return raw[0] == 1, nil
}

// SetBoost activates or clears boost mode. timeout is in seconds and only
// applies when activating.
func (b *Bridge) SetBoost(ctx context.Context, on bool, timeout int32) error {
	if on {
		_, err := b.rmi(ctx, rmi.ScheduleWrite(rmi.UnitSchedule, rmi.Subunit01, 0x06, timeout, 0x03))
		return err
	}
	_, err := b.rmi(ctx, rmi.ScheduleClear(rmi.UnitSchedule, rmi.Subunit01, 0x06))
	return err
}

// GetAway reports whether away mode is currently active.
func (b *Bridge) GetAway(ctx context.Context) (bool, error) {
	raw, err := b.rmi(ctx, rmi.ScheduleRead(rmi.UnitSchedule, rmi.Subunit01, 0x0B))
	if err != nil {
		return false, err
	}
	if len(raw) == 0 {
		return false, fmt.Errorf("bridge: get away: empty reply")
	}
	return raw[0] == 1, nil
}

// SetAway activates or clears away mode. timeout is in seconds and only
// applies when activating.
func (b *Bridge) SetAway(ctx context.Context, on bool, timeout int32) error {
	if on {
		_, err := b.rmi(ctx, rmi.ScheduleWrite(rmi.UnitSchedule, rmi.Subunit01, 0x0B, timeout, 0x00))
		return err
	}
	_, err := b.rmi(ctx, rmi.ScheduleClear(rmi.UnitSchedule, rmi.Subunit01, 0x0B))
	return err
}

// GetComfoCoolMode reports the ComfoCool option's auto/off state.
func (b *Bridge) GetComfoCoolMode(ctx context.Context) (ComfoCoolMode, error) {
	raw, err := b.rmi(ctx, rmi.ScheduleRead(rmi.UnitSchedule, rmi.Subunit05, 0x01))
	if err != nil {
		return "", err
	}
	if len(raw) == 0 {
		return "", fmt.Errorf("bridge: get comfocool mode: empty reply")
	}
	if raw[0] == 0 {
		return ComfoCoolAuto, nil
	}
	return ComfoCoolOff, nil
}

// SetComfoCoolMode sets the ComfoCool option's auto/off state.
func (b *Bridge) SetComfoCoolMode(ctx context.Context, mode ComfoCoolMode, timeout int32) error {
	switch mode {
	case ComfoCoolAuto:
		_, err := b.rmi(ctx, rmi.ScheduleClear(rmi.UnitSchedule, rmi.Subunit05, 0x01))
		return err
	case ComfoCoolOff:
		_, err := b.rmi(ctx, rmi.ScheduleWrite(rmi.UnitSchedule, rmi.Subunit05, 0x01, timeout, 0x00))
		return err
	default:
		return fmt.Errorf("bridge: invalid comfocool mode %q", mode)
	}
}

// GetTemperatureProfile reads the unit's comfort temperature bias.
func (b *Bridge) GetTemperatureProfile(ctx context.Context) (TemperatureProfile, error) {
	raw, err := b.rmi(ctx, rmi.ScheduleRead(rmi.UnitSchedule, rmi.Subunit03, 0x01))
	if err != nil {
		return "", err
	}
	if len(raw) == 0 {
		return "", fmt.Errorf("bridge: get temperature profile: empty reply")
	}
	switch raw[len(raw)-1] {
	case 2:
		return ProfileWarm, nil
	case 0:
		return ProfileNormal, nil
	case 1:
		return ProfileCool, nil
	default:
		return "", fmt.Errorf("bridge: invalid temperature profile byte %d", raw[len(raw)-1])
	}
}

// SetTemperatureProfile shifts the unit's comfort temperature bias.
func (b *Bridge) SetTemperatureProfile(ctx context.Context, profile TemperatureProfile, timeout int32) error {
	var value byte
	switch profile {
	case ProfileWarm:
		value = 2
	case ProfileNormal:
		value = 0
	case ProfileCool:
		value = 1
	default:
		return fmt.Errorf("bridge: invalid temperature profile %q", profile)
	}
	_, err := b.rmi(ctx, rmi.ScheduleWrite(rmi.UnitSchedule, rmi.Subunit03, 0x01, timeout, value))
	return err
}

func sensorVentmodeGet(ctx context.Context, b *Bridge, function byte) (Setting, error) {
	raw, err := b.rmi(ctx, rmi.GetSingle(rmi.UnitTempHumControl, rmi.Subunit01, function))
	if err != nil {
		return "", err
	}
	v, err := rmi.DecodeValue(raw, rmi.TypeUint8)
	if err != nil {
		return "", err
	}
	switch v.(uint64) {
	case 1:
		return SettingAuto, nil
	case 2:
		return SettingOn, nil
	case 0:
		return SettingOff, nil
	default:
		return "", fmt.Errorf("bridge: invalid sensor ventmode value %v", v)
	}
}

func sensorVentmodeSet(ctx context.Context, b *Bridge, function byte, mode Setting) error {
	var value byte
	switch mode {
	case SettingAuto:
		value = 1
	case SettingOn:
		value = 2
	case SettingOff:
		value = 0
	default:
		return fmt.Errorf("bridge: invalid sensor ventmode setting %q", mode)
	}
	_, err := b.rmi(ctx, rmi.SetSingle(rmi.UnitTempHumControl, rmi.Subunit01, function, value))
	return err
}

// GetSensorVentmodeTemperaturePassive reads the temperature-passive sensor
// ventilation mode.
func (b *Bridge) GetSensorVentmodeTemperaturePassive(ctx context.Context) (Setting, error) {
	return sensorVentmodeGet(ctx, b, 0x04)
}

// SetSensorVentmodeTemperaturePassive configures the temperature-passive
// sensor ventilation mode.
func (b *Bridge) SetSensorVentmodeTemperaturePassive(ctx context.Context, mode Setting) error {
	return sensorVentmodeSet(ctx, b, 0x04, mode)
}

// GetSensorVentmodeHumidityComfort reads the humidity-comfort sensor
// ventilation mode.
func (b *Bridge) GetSensorVentmodeHumidityComfort(ctx context.Context) (Setting, error) {
	return sensorVentmodeGet(ctx, b, 0x06)
}

// SetSensorVentmodeHumidityComfort configures the humidity-comfort sensor
// ventilation mode.
func (b *Bridge) SetSensorVentmodeHumidityComfort(ctx context.Context, mode Setting) error {
	return sensorVentmodeSet(ctx, b, 0x06, mode)
}

// GetSensorVentmodeHumidityProtection reads the humidity-protection sensor
// ventilation mode.
func (b *Bridge) GetSensorVentmodeHumidityProtection(ctx context.Context) (Setting, error) {
	return sensorVentmodeGet(ctx, b, 0x07)
}

// SetSensorVentmodeHumidityProtection configures the humidity-protection
// sensor ventilation mode.
func (b *Bridge) SetSensorVentmodeHumidityProtection(ctx context.Context, mode Setting) error {
	return sensorVentmodeSet(ctx, b, 0x07, mode)
}

// ClearErrors acknowledges the unit's active errors.
func (b *Bridge) ClearErrors(ctx context.Context) error {
	_, err := b.rmi(ctx, rmi.ErrorClear(rmi.UnitError))
	return err
}
