// Copyright (C) 2024  wwhai
//
// This program is free software; you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation; either version 2 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License along
// with this program; if not, see <https://www.gnu.org/licenses/>.

package givenergy

import (
	"fmt"
	"time"
)

// Conversion describes how raw register words become a typed attribute
// value. The attribute tables below bind each named attribute to its source
// registers and one conversion; given a populated cache the whole mapping is
// a pure function.
type Conversion uint8

const (
	ConvUint16 Conversion = iota
	ConvInt16
	ConvBool
	ConvDuint8
	ConvUint32
	ConvDeci         // value / 10
	ConvCenti        // value / 100
	ConvMilli        // value / 1000
	ConvUint32Deci   // 32-bit combine, then / 10
	ConvUint32Centi  // 32-bit combine, then / 100
	ConvInt16Centi   // signed, then / 100
	ConvInt16Deci    // signed, then / 10
	ConvPowerFactor  // (value - 10000) / 10000
	ConvString       // ASCII concat across registers
	ConvHex          // 4-digit hex per register
	ConvTimeslot     // two HHMM registers
	ConvDatetime     // six Y/M/D/h/m/s registers
)

// Attribute binds a name to source registers and a conversion rule.
type Attribute struct {
	Name    string
	Conv    Conversion
	Sources []Register
}

// Value computes the attribute from raw cache contents.
func (a Attribute) Value(c *RegisterCache) any {
	switch a.Conv {
	case ConvInt16:
		return c.ToInt16(a.Sources[0])
	case ConvBool:
		return c.Get(a.Sources[0]) != 0
	case ConvDuint8:
		hi, lo := c.ToDuint8(a.Sources[0])
		return [2]uint8{hi, lo}
	case ConvUint32:
		return c.ToUint32(a.Sources[0], a.Sources[1])
	case ConvDeci:
		return float64(c.Get(a.Sources[0])) / 10
	case ConvCenti:
		return float64(c.Get(a.Sources[0])) / 100
	case ConvMilli:
		return float64(c.Get(a.Sources[0])) / 1000
	case ConvUint32Deci:
		return float64(c.ToUint32(a.Sources[0], a.Sources[1])) / 10
	case ConvUint32Centi:
		return float64(c.ToUint32(a.Sources[0], a.Sources[1])) / 100
	case ConvInt16Centi:
		return float64(c.ToInt16(a.Sources[0])) / 100
	case ConvInt16Deci:
		return float64(c.ToInt16(a.Sources[0])) / 10
	case ConvPowerFactor:
		return (float64(c.Get(a.Sources[0])) - 10000) / 10000
	case ConvString:
		return c.ToString(a.Sources...)
	case ConvHex:
		return c.ToHexString(a.Sources...)
	case ConvTimeslot:
		slot, ok := c.ToTimeslot(a.Sources[0], a.Sources[1])
		if !ok {
			return nil
		}
		return slot
	case ConvDatetime:
		s := a.Sources
		return c.ToDatetime(s[0], s[1], s[2], s[3], s[4], s[5])
	default:
		return c.Get(a.Sources[0])
	}
}

func regRange(bank RegisterBank, from, to uint16) []Register {
	out := make([]Register, 0, to-from+1)
	for i := from; i <= to; i++ {
		out = append(out, Register{Bank: bank, Index: i})
	}
	return out
}

// inverterAttributes is the declarative register map for the inverter view.
// Attribute names follow the vendor dashboard nomenclature.
var inverterAttributes = []Attribute{
	{"device_type_code", ConvHex, []Register{HR(0)}},
	{"inverter_module", ConvUint32, []Register{HR(1), HR(2)}},
	{"num_mppt_and_num_phases", ConvDuint8, []Register{HR(3)}},
	{"enable_ammeter", ConvBool, []Register{HR(7)}},
	{"first_battery_serial_number", ConvString, regRange(BankHolding, 8, 12)},
	{"inverter_serial_number", ConvString, regRange(BankHolding, 13, 17)},
	{"first_battery_bms_firmware_version", ConvUint16, []Register{HR(18)}},
	{"dsp_firmware_version", ConvUint16, []Register{HR(19)}},
	{"enable_charge_target", ConvBool, []Register{HR(HREnableChargeTarget)}},
	{"arm_firmware_version", ConvUint16, []Register{HR(21)}},
	{"usb_device_inserted", ConvUint16, []Register{HR(22)}},
	{"select_arm_chip", ConvBool, []Register{HR(23)}},
	{"p_grid_port_max_output", ConvUint16, []Register{HR(26)}},
	{"battery_power_mode", ConvUint16, []Register{HR(HRBatteryPowerMode)}},
	{"enable_60hz_freq_mode", ConvBool, []Register{HR(28)}},
	{"soc_force_adjust", ConvUint16, []Register{HR(HRSocForceAdjust)}},
	{"inverter_modbus_address", ConvUint16, []Register{HR(30)}},
	{"charge_slot_2", ConvTimeslot, []Register{HR(HRChargeSlot2Start), HR(HRChargeSlot2End)}},
	{"modbus_version", ConvCenti, []Register{HR(34)}},
	{"system_time", ConvDatetime, regRange(BankHolding, HRSystemTimeYear, HRSystemTimeSecond)},
	{"enable_drm_rj45_port", ConvBool, []Register{HR(41)}},
	{"ct_adjust", ConvUint16, []Register{HR(42)}},
	{"charge_and_discharge_soc", ConvDuint8, []Register{HR(43)}},
	{"discharge_slot_2", ConvTimeslot, []Register{HR(HRDischargeSlot2Start), HR(HRDischargeSlot2End)}},
	{"bms_chip_version", ConvUint16, []Register{HR(46)}},
	{"meter_type", ConvUint16, []Register{HR(47)}},
	{"reverse_115_meter_direct", ConvBool, []Register{HR(48)}},
	{"reverse_418_meter_direct", ConvBool, []Register{HR(49)}},
	{"active_power_rate", ConvUint16, []Register{HR(HRActivePowerRate)}},
	{"reactive_power_rate", ConvUint16, []Register{HR(51)}},
	{"power_factor", ConvPowerFactor, []Register{HR(52)}},
	{"inverter_state", ConvDuint8, []Register{HR(53)}},
	{"battery_type", ConvUint16, []Register{HR(54)}},
	{"battery_nominal_capacity", ConvUint16, []Register{HR(55)}},
	{"discharge_slot_1", ConvTimeslot, []Register{HR(HRDischargeSlot1Start), HR(HRDischargeSlot1End)}},
	{"enable_auto_judge_battery_type", ConvBool, []Register{HR(58)}},
	{"enable_discharge", ConvBool, []Register{HR(HREnableDischarge)}},
	{"v_pv_input_start", ConvDeci, []Register{HR(60)}},
	{"inverter_start_time", ConvUint16, []Register{HR(61)}},
	{"inverter_restart_delay_time", ConvUint16, []Register{HR(62)}},
	{"charge_slot_1", ConvTimeslot, []Register{HR(HRChargeSlot1Start), HR(HRChargeSlot1End)}},
	{"enable_charge", ConvBool, []Register{HR(HREnableCharge)}},
	{"v_battery_under_protection_limit", ConvCenti, []Register{HR(97)}},
	{"v_battery_over_protection_limit", ConvCenti, []Register{HR(98)}},
	{"battery_low_force_charge_time", ConvUint16, []Register{HR(108)}},
	{"enable_bms_read", ConvBool, []Register{HR(109)}},
	{"battery_soc_reserve", ConvUint16, []Register{HR(HRBatterySocReserve)}},
	{"battery_charge_limit", ConvUint16, []Register{HR(HRBatteryChargeLimit)}},
	{"battery_discharge_limit", ConvUint16, []Register{HR(HRBatteryDischargeLimit)}},
	{"enable_buzzer", ConvBool, []Register{HR(113)}},
	{"battery_discharge_min_power_reserve", ConvUint16, []Register{HR(HRBatteryDischargeMinPowerReserve)}},
	{"island_check_continue", ConvUint16, []Register{HR(115)}},
	{"charge_target_soc", ConvUint16, []Register{HR(HRChargeTargetSoc)}},

	{"inverter_status", ConvUint16, []Register{IR(0)}},
	{"v_pv1", ConvDeci, []Register{IR(1)}},
	{"v_pv2", ConvDeci, []Register{IR(2)}},
	{"v_p_bus", ConvDeci, []Register{IR(3)}},
	{"v_n_bus", ConvDeci, []Register{IR(4)}},
	{"v_ac1", ConvDeci, []Register{IR(5)}},
	{"e_battery_throughput_total", ConvUint32Deci, []Register{IR(6), IR(7)}},
	{"i_pv1", ConvCenti, []Register{IR(8)}},
	{"i_pv2", ConvCenti, []Register{IR(9)}},
	{"i_ac1", ConvCenti, []Register{IR(10)}},
	{"e_pv_total", ConvUint32Deci, []Register{IR(11), IR(12)}},
	{"f_ac1", ConvCenti, []Register{IR(13)}},
	{"charge_status", ConvUint16, []Register{IR(14)}},
	{"v_highbrigh_bus", ConvUint16, []Register{IR(15)}},
	{"pf_inverter_out", ConvPowerFactor, []Register{IR(16)}},
	{"e_pv1_day", ConvDeci, []Register{IR(17)}},
	{"p_pv1", ConvUint16, []Register{IR(18)}},
	{"e_pv2_day", ConvDeci, []Register{IR(19)}},
	{"p_pv2", ConvUint16, []Register{IR(20)}},
	{"e_grid_out_total", ConvUint32Deci, []Register{IR(21), IR(22)}},
	{"e_solar_diverter", ConvDeci, []Register{IR(23)}},
	{"p_inverter_out", ConvInt16, []Register{IR(24)}},
	{"e_grid_out_day", ConvDeci, []Register{IR(25)}},
	{"e_grid_in_day", ConvDeci, []Register{IR(26)}},
	{"e_inverter_in_total", ConvUint32Deci, []Register{IR(27), IR(28)}},
	{"e_discharge_year", ConvDeci, []Register{IR(29)}},
	{"p_grid_out", ConvInt16, []Register{IR(30)}},
	{"p_eps_backup", ConvUint16, []Register{IR(31)}},
	{"e_grid_in_total", ConvUint32Deci, []Register{IR(32), IR(33)}},
	{"e_inverter_in_day", ConvDeci, []Register{IR(35)}},
	{"e_battery_charge_day", ConvDeci, []Register{IR(36)}},
	{"e_battery_discharge_day", ConvDeci, []Register{IR(37)}},
	{"inverter_countdown", ConvUint16, []Register{IR(38)}},
	{"fault_code", ConvUint32, []Register{IR(39), IR(40)}},
	{"temp_inverter_heatsink", ConvDeci, []Register{IR(41)}},
	{"p_load_demand", ConvUint16, []Register{IR(42)}},
	{"p_grid_apparent", ConvUint16, []Register{IR(43)}},
	{"e_inverter_out_day", ConvDeci, []Register{IR(44)}},
	{"e_inverter_out_total", ConvUint32Deci, []Register{IR(45), IR(46)}},
	{"work_time_total", ConvUint32, []Register{IR(47), IR(48)}},
	{"system_mode", ConvUint16, []Register{IR(49)}},
	{"v_battery", ConvCenti, []Register{IR(50)}},
	{"i_battery", ConvInt16Centi, []Register{IR(51)}},
	{"p_battery", ConvInt16, []Register{IR(52)}},
	{"v_eps_backup", ConvDeci, []Register{IR(53)}},
	{"f_eps_backup", ConvCenti, []Register{IR(54)}},
	{"temp_charger", ConvDeci, []Register{IR(55)}},
	{"temp_battery", ConvDeci, []Register{IR(56)}},
	{"charger_warning_code", ConvUint16, []Register{IR(57)}},
	{"i_grid_port", ConvCenti, []Register{IR(58)}},
	{"battery_percent", ConvUint16, []Register{IR(59)}},
	{"e_battery_discharge_total", ConvDeci, []Register{IR(180)}},
	{"e_battery_charge_total", ConvDeci, []Register{IR(181)}},
	{"e_battery_discharge_day_2", ConvDeci, []Register{IR(182)}},
	{"e_battery_charge_day_2", ConvDeci, []Register{IR(183)}},
}

// Model is an inverter product family, derived from the device type code.
type Model string

const (
	ModelAC       Model = "AC"
	ModelHybrid   Model = "Hybrid"
	ModelEMS      Model = "EMS"
	ModelGateway  Model = "Gateway"
	ModelAllInOne Model = "All in One"
	ModelUnknown  Model = "Unknown"
)

// ModelFromDeviceTypeCode maps the leading digit of the hex device type code
// onto a product family.
func ModelFromDeviceTypeCode(dtc string) Model {
	if len(dtc) == 0 {
		return ModelUnknown
	}
	switch dtc[0] {
	case '2', '4':
		return ModelHybrid
	case '3', '6':
		return ModelAC
	case '5':
		return ModelEMS
	case '7':
		return ModelGateway
	case '8':
		return ModelAllInOne
	default:
		return ModelUnknown
	}
}

// Inverter is a read-only projection of a register cache through the
// inverter attribute table. Attributes are recomputed on every access, so a
// view stays current as the underlying cache is updated.
type Inverter struct {
	cache *RegisterCache
}

// NewInverter wraps a register cache in the inverter view.
func NewInverter(cache *RegisterCache) Inverter {
	return Inverter{cache: cache}
}

// Attribute looks up one named attribute, or ok=false for an unknown name.
func (inv Inverter) Attribute(name string) (any, bool) {
	for _, a := range inverterAttributes {
		if a.Name == name {
			return a.Value(inv.cache), true
		}
	}
	return nil, false
}

// Dump computes every named attribute.
func (inv Inverter) Dump() map[string]any {
	out := make(map[string]any, len(inverterAttributes))
	for _, a := range inverterAttributes {
		out[a.Name] = a.Value(inv.cache)
	}
	return out
}

func (inv Inverter) SerialNumber() string {
	return inv.cache.ToString(regRange(BankHolding, 13, 17)...)
}

func (inv Inverter) DeviceTypeCode() string {
	return inv.cache.ToHexString(HR(0))
}

func (inv Inverter) Model() Model {
	return ModelFromDeviceTypeCode(inv.DeviceTypeCode())
}

// FirmwareVersion renders the DSP and ARM versions the way the vendor
// dashboard does, e.g. "D0.449-A0.449".
func (inv Inverter) FirmwareVersion() string {
	return fmt.Sprintf("D0.%d-A0.%d", inv.cache.Get(HR(19)), inv.cache.Get(HR(21)))
}

func (inv Inverter) NumMPPT() uint8 {
	hi, _ := inv.cache.ToDuint8(HR(3))
	return hi
}

func (inv Inverter) NumPhases() uint8 {
	_, lo := inv.cache.ToDuint8(HR(3))
	return lo
}

func (inv Inverter) SystemTime() time.Time {
	return inv.cache.ToDatetime(HR(HRSystemTimeYear), HR(HRSystemTimeMonth),
		HR(HRSystemTimeDay), HR(HRSystemTimeHour), HR(HRSystemTimeMinute),
		HR(HRSystemTimeSecond))
}

func (inv Inverter) EnableCharge() bool {
	return inv.cache.Get(HR(HREnableCharge)) != 0
}

func (inv Inverter) EnableDischarge() bool {
	return inv.cache.Get(HR(HREnableDischarge)) != 0
}

func (inv Inverter) EnableChargeTarget() bool {
	return inv.cache.Get(HR(HREnableChargeTarget)) != 0
}

func (inv Inverter) ChargeTargetSoc() uint16 {
	return inv.cache.Get(HR(HRChargeTargetSoc))
}

func (inv Inverter) BatteryPowerMode() uint16 {
	return inv.cache.Get(HR(HRBatteryPowerMode))
}

func (inv Inverter) BatterySocReserve() uint16 {
	return inv.cache.Get(HR(HRBatterySocReserve))
}

func (inv Inverter) ChargeSlot1() (TimeSlot, bool) {
	return inv.cache.ToTimeslot(HR(HRChargeSlot1Start), HR(HRChargeSlot1End))
}

func (inv Inverter) ChargeSlot2() (TimeSlot, bool) {
	return inv.cache.ToTimeslot(HR(HRChargeSlot2Start), HR(HRChargeSlot2End))
}

func (inv Inverter) DischargeSlot1() (TimeSlot, bool) {
	return inv.cache.ToTimeslot(HR(HRDischargeSlot1Start), HR(HRDischargeSlot1End))
}

func (inv Inverter) DischargeSlot2() (TimeSlot, bool) {
	return inv.cache.ToTimeslot(HR(HRDischargeSlot2Start), HR(HRDischargeSlot2End))
}

func (inv Inverter) BatteryPercent() uint16 {
	return inv.cache.Get(IR(59))
}

func (inv Inverter) PInverterOut() int16 {
	return inv.cache.ToInt16(IR(24))
}

func (inv Inverter) PGridOut() int16 {
	return inv.cache.ToInt16(IR(30))
}

func (inv Inverter) PBattery() int16 {
	return inv.cache.ToInt16(IR(52))
}

func (inv Inverter) PLoadDemand() uint16 {
	return inv.cache.Get(IR(42))
}

func (inv Inverter) VBattery() float64 {
	return float64(inv.cache.Get(IR(50))) / 100
}

func (inv Inverter) TempInverterHeatsink() float64 {
	return float64(inv.cache.Get(IR(41))) / 10
}

func (inv Inverter) EPVTotal() float64 {
	return float64(inv.cache.ToUint32(IR(11), IR(12))) / 10
}

func (inv Inverter) EGridInDay() float64 {
	return float64(inv.cache.Get(IR(26))) / 10
}

func (inv Inverter) EGridOutDay() float64 {
	return float64(inv.cache.Get(IR(25))) / 10
}
