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
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// RegisterBank distinguishes the two disjoint 16-bit-addressed register
// banks: holding registers are writable configuration, input registers are
// read-only telemetry.
type RegisterBank uint8

const (
	BankHolding RegisterBank = iota
	BankInput
)

func (b RegisterBank) String() string {
	if b == BankHolding {
		return "HR"
	}
	return "IR"
}

// Register identifies one 16-bit register as (bank, index). Registers have no
// identity beyond this pair; it is the hash/equality key into the cache.
type Register struct {
	Bank  RegisterBank
	Index uint16
}

// HR names a holding register.
func HR(index uint16) Register {
	return Register{Bank: BankHolding, Index: index}
}

// IR names an input register.
func IR(index uint16) Register {
	return Register{Bank: BankInput, Index: index}
}

func (r Register) String() string {
	return fmt.Sprintf("%s(%d)", r.Bank, r.Index)
}

// Well-known holding register locations.
const (
	HREnableChargeTarget              uint16 = 20
	HRBatteryPowerMode                uint16 = 27
	HRSocForceAdjust                  uint16 = 29
	HRChargeSlot2Start                uint16 = 31
	HRChargeSlot2End                  uint16 = 32
	HRSystemTimeYear                  uint16 = 35
	HRSystemTimeMonth                 uint16 = 36
	HRSystemTimeDay                   uint16 = 37
	HRSystemTimeHour                  uint16 = 38
	HRSystemTimeMinute                uint16 = 39
	HRSystemTimeSecond                uint16 = 40
	HRDischargeSlot2Start             uint16 = 44
	HRDischargeSlot2End               uint16 = 45
	HRActivePowerRate                 uint16 = 50
	HRDischargeSlot1Start             uint16 = 56
	HRDischargeSlot1End               uint16 = 57
	HREnableDischarge                 uint16 = 59
	HRChargeSlot1Start                uint16 = 94
	HRChargeSlot1End                  uint16 = 95
	HREnableCharge                    uint16 = 96
	HRBatterySocReserve               uint16 = 110
	HRBatteryChargeLimit              uint16 = 111
	HRBatteryDischargeLimit           uint16 = 112
	HRBatteryDischargeMinPowerReserve uint16 = 114
	HRChargeTargetSoc                 uint16 = 116
	HRReboot                          uint16 = 163
)

// TimeOfDay is a wall-clock time within a day.
type TimeOfDay struct {
	Hour   int
	Minute int
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Repr renders the time in the register encoding, e.g. 16:30 -> 1630.
func (t TimeOfDay) Repr() uint16 {
	return uint16(t.Hour*100 + t.Minute)
}

// TimeSlot is a charge/discharge window with a start and end time.
type TimeSlot struct {
	Start TimeOfDay
	End   TimeOfDay
}

// NewTimeSlot builds a slot from hour/minute components.
func NewTimeSlot(startHour, startMinute, endHour, endMinute int) TimeSlot {
	return TimeSlot{
		Start: TimeOfDay{Hour: startHour, Minute: startMinute},
		End:   TimeOfDay{Hour: endHour, Minute: endMinute},
	}
}

// TimeSlotFromRepr converts from the register encoding: 34 -> 00:34.
func TimeSlotFromRepr(start, end uint16) TimeSlot {
	return TimeSlot{
		Start: TimeOfDay{Hour: int(start) / 100, Minute: int(start) % 100},
		End:   TimeOfDay{Hour: int(end) / 100, Minute: int(end) % 100},
	}
}

func (s TimeSlot) String() string {
	return fmt.Sprintf("%s-%s", s.Start, s.End)
}

// RegisterCache holds the sparse per-device store of raw register values
// populated while querying a device. Entries are only ever overwritten,
// never removed; the newest write wins.
type RegisterCache struct {
	registers map[Register]uint16
}

// NewRegisterCache creates an empty cache.
func NewRegisterCache() *RegisterCache {
	return &RegisterCache{registers: make(map[Register]uint16)}
}

// Get returns the raw value of a register, or 0 when the register has never
// been populated. Hardware reports zero for unsupported registers, so a
// missing key is not an error.
func (c *RegisterCache) Get(r Register) uint16 {
	return c.registers[r]
}

// Has reports whether the register has ever been populated.
func (c *RegisterCache) Has(r Register) bool {
	_, ok := c.registers[r]
	return ok
}

// Set stores a raw register value, overwriting any previous value.
func (c *RegisterCache) Set(r Register, value uint16) {
	c.registers[r] = value
}

// Update merges a batch of register values into the cache.
func (c *RegisterCache) Update(values map[Register]uint16) {
	for r, v := range values {
		c.registers[r] = v
	}
}

// Len returns the number of populated registers.
func (c *RegisterCache) Len() int {
	return len(c.registers)
}

// Conversion helpers shared by the inverter and battery attribute tables.

// ToString combines registers into a trimmed upper-cased ASCII string.
// Non-alphanumeric bytes, including nulls, are dropped.
func (c *RegisterCache) ToString(registers ...Register) string {
	var sb strings.Builder
	for _, r := range registers {
		v := c.Get(r)
		for _, b := range []byte{byte(v >> 8), byte(v)} {
			if b >= '0' && b <= '9' || b >= 'A' && b <= 'Z' || b >= 'a' && b <= 'z' {
				sb.WriteByte(b)
			}
		}
	}
	return strings.ToUpper(sb.String())
}

// ToHexString renders registers as concatenated 4-digit hex values, or ""
// when any register is zero.
func (c *RegisterCache) ToHexString(registers ...Register) string {
	var sb strings.Builder
	for _, r := range registers {
		v := c.Get(r)
		if v == 0 {
			return ""
		}
		fmt.Fprintf(&sb, "%04X", v)
	}
	return sb.String()
}

// ToDuint8 splits a register into its two unsigned 8-bit halves.
func (c *RegisterCache) ToDuint8(r Register) (uint8, uint8) {
	v := c.Get(r)
	return uint8(v >> 8), uint8(v)
}

// ToInt16 reinterprets a register as a 16-bit signed value.
func (c *RegisterCache) ToInt16(r Register) int16 {
	return int16(c.Get(r))
}

// ToUint32 combines two registers into an unsigned 32-bit integer,
// high word first.
func (c *RegisterCache) ToUint32(high, low Register) uint32 {
	return uint32(c.Get(high))<<16 | uint32(c.Get(low))
}

// ToDatetime combines six registers into a timestamp. Zero month/day values,
// seen before the inverter clock has ever been set, are clamped to 1.
func (c *RegisterCache) ToDatetime(y, m, d, h, min, s Register) time.Time {
	month := c.Get(m)
	if month == 0 {
		month = 1
	}
	day := c.Get(d)
	if day == 0 {
		day = 1
	}
	return time.Date(int(c.Get(y))+2000, time.Month(month), int(day),
		int(c.Get(h)), int(c.Get(min)), int(c.Get(s)), 0, time.UTC)
}

// ToTimeslot combines two HHMM-encoded registers into a time slot. A raw
// value of 60 in either register corresponds to the vendor portal showing
// no slot configured and yields ok=false.
func (c *RegisterCache) ToTimeslot(start, end Register) (TimeSlot, bool) {
	s, e := c.Get(start), c.Get(end)
	if s == 60 || e == 60 {
		return TimeSlot{}, false
	}
	return TimeSlotFromRepr(s, e), true
}

// MarshalJSON renders the cache as {"HR(13)": 1234, ...} for capture and
// replay debugging. UnmarshalJSON accepts the same form back.
func (c *RegisterCache) MarshalJSON() ([]byte, error) {
	out := make(map[string]uint16, len(c.registers))
	for r, v := range c.registers {
		out[r.String()] = v
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts both "HR(13)" and "HR:13" key forms.
func (c *RegisterCache) UnmarshalJSON(data []byte) error {
	raw := make(map[string]uint16)
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if c.registers == nil {
		c.registers = make(map[Register]uint16, len(raw))
	}
	for k, v := range raw {
		var bank, idx string
		if i := strings.IndexByte(k, '('); i > 0 && strings.HasSuffix(k, ")") {
			bank, idx = k[:i], k[i+1:len(k)-1]
		} else if i := strings.IndexByte(k, ':'); i > 0 {
			bank, idx = k[:i], k[i+1:]
		} else {
			return fmt.Errorf("%q is not a valid register key", k)
		}
		index, err := strconv.ParseUint(idx, 10, 16)
		if err != nil {
			return fmt.Errorf("%q has an invalid register index: %w", k, err)
		}
		switch bank {
		case "HR":
			c.registers[HR(uint16(index))] = v
		case "IR":
			c.registers[IR(uint16(index))] = v
		default:
			return fmt.Errorf("%q names an unknown register bank", k)
		}
	}
	return nil
}
