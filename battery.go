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

// batteryAttributes is the declarative register map for the per-pack BMS
// view. Battery packs only answer for input registers 60 through 119.
var batteryAttributes = []Attribute{
	{"v_battery_cell_01", ConvMilli, []Register{IR(60)}},
	{"v_battery_cell_02", ConvMilli, []Register{IR(61)}},
	{"v_battery_cell_03", ConvMilli, []Register{IR(62)}},
	{"v_battery_cell_04", ConvMilli, []Register{IR(63)}},
	{"v_battery_cell_05", ConvMilli, []Register{IR(64)}},
	{"v_battery_cell_06", ConvMilli, []Register{IR(65)}},
	{"v_battery_cell_07", ConvMilli, []Register{IR(66)}},
	{"v_battery_cell_08", ConvMilli, []Register{IR(67)}},
	{"v_battery_cell_09", ConvMilli, []Register{IR(68)}},
	{"v_battery_cell_10", ConvMilli, []Register{IR(69)}},
	{"v_battery_cell_11", ConvMilli, []Register{IR(70)}},
	{"v_battery_cell_12", ConvMilli, []Register{IR(71)}},
	{"v_battery_cell_13", ConvMilli, []Register{IR(72)}},
	{"v_battery_cell_14", ConvMilli, []Register{IR(73)}},
	{"v_battery_cell_15", ConvMilli, []Register{IR(74)}},
	{"v_battery_cell_16", ConvMilli, []Register{IR(75)}},
	{"temp_battery_cells_1", ConvDeci, []Register{IR(76)}},
	{"temp_battery_cells_2", ConvDeci, []Register{IR(77)}},
	{"temp_battery_cells_3", ConvDeci, []Register{IR(78)}},
	{"temp_battery_cells_4", ConvDeci, []Register{IR(79)}},
	{"v_battery_cells_sum", ConvMilli, []Register{IR(80)}},
	{"temp_bms_mos", ConvDeci, []Register{IR(81)}},
	{"v_battery_out", ConvUint32, []Register{IR(82), IR(83)}},
	{"battery_full_capacity", ConvUint32Centi, []Register{IR(84), IR(85)}},
	{"battery_design_capacity", ConvUint32Centi, []Register{IR(86), IR(87)}},
	{"battery_remaining_capacity", ConvUint32Centi, []Register{IR(88), IR(89)}},
	{"battery_status_1_2", ConvDuint8, []Register{IR(90)}},
	{"battery_status_3_4", ConvDuint8, []Register{IR(91)}},
	{"battery_status_5_6", ConvDuint8, []Register{IR(92)}},
	{"battery_status_7", ConvDuint8, []Register{IR(93)}},
	{"battery_warning_1_2", ConvDuint8, []Register{IR(94)}},
	{"battery_num_cycles", ConvUint16, []Register{IR(96)}},
	{"battery_num_cells", ConvUint16, []Register{IR(97)}},
	{"bms_firmware_version", ConvUint16, []Register{IR(98)}},
	{"battery_soc", ConvUint16, []Register{IR(100)}},
	{"battery_design_capacity_2", ConvUint32Centi, []Register{IR(101), IR(102)}},
	{"temp_battery_max", ConvDeci, []Register{IR(103)}},
	{"temp_battery_min", ConvDeci, []Register{IR(104)}},
	{"e_battery_discharge_total_2", ConvDeci, []Register{IR(105)}},
	{"e_battery_charge_total_2", ConvDeci, []Register{IR(106)}},
	{"battery_serial_number", ConvString, regRange(BankInput, 110, 114)},
	{"usb_inserted", ConvBool, []Register{IR(115)}},
}

// Battery is a read-only per-pack projection of a register cache through the
// battery attribute table.
type Battery struct {
	cache *RegisterCache
}

// NewBattery wraps a register cache in the battery view.
func NewBattery(cache *RegisterCache) Battery {
	return Battery{cache: cache}
}

// Attribute looks up one named attribute, or ok=false for an unknown name.
func (b Battery) Attribute(name string) (any, bool) {
	for _, a := range batteryAttributes {
		if a.Name == name {
			return a.Value(b.cache), true
		}
	}
	return nil, false
}

// Dump computes every named attribute.
func (b Battery) Dump() map[string]any {
	out := make(map[string]any, len(batteryAttributes))
	for _, a := range batteryAttributes {
		out[a.Name] = a.Value(b.cache)
	}
	return out
}

// SerialNumber is the pack serial decoded from input registers 110-114.
func (b Battery) SerialNumber() string {
	return b.cache.ToString(regRange(BankInput, 110, 114)...)
}

// IsValid reports whether a real battery pack answered at this address.
// Unpopulated addresses echo all-zero registers, which decode to an empty
// serial number.
func (b Battery) IsValid() bool {
	return b.SerialNumber() != ""
}

func (b Battery) Soc() uint16 {
	return b.cache.Get(IR(100))
}

func (b Battery) NumCells() uint16 {
	return b.cache.Get(IR(97))
}

func (b Battery) NumCycles() uint16 {
	return b.cache.Get(IR(96))
}

func (b Battery) VCellsSum() float64 {
	return float64(b.cache.Get(IR(80))) / 1000
}

func (b Battery) FullCapacity() float64 {
	return float64(b.cache.ToUint32(IR(84), IR(85))) / 100
}

func (b Battery) DesignCapacity() float64 {
	return float64(b.cache.ToUint32(IR(86), IR(87))) / 100
}

func (b Battery) RemainingCapacity() float64 {
	return float64(b.cache.ToUint32(IR(88), IR(89))) / 100
}

func (b Battery) TempMax() float64 {
	return float64(b.cache.Get(IR(103))) / 10
}

func (b Battery) TempMin() float64 {
	return float64(b.cache.Get(IR(104))) / 10
}

// CellVoltages returns the 16 per-cell voltages in volts. Packs with fewer
// cells report zero for the unused slots.
func (b Battery) CellVoltages() [16]float64 {
	var out [16]float64
	for i := range out {
		out[i] = float64(b.cache.Get(IR(uint16(60+i)))) / 1000
	}
	return out
}
