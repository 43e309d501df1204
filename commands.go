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

// Command builders. Each returns the ordered batch of transparent requests
// that implements one high-level operation, validating arguments before any
// request is built so a bad value never produces a partial batch.

func boolToUint16(v bool) uint16 {
	if v {
		return 1
	}
	return 0
}

// RefreshPlantData builds the read batch for one polling cycle. A complete
// refresh also fetches holding registers and probes every battery slot; a
// partial one re-reads telemetry for the known battery count only.
func RefreshPlantData(complete bool, numberBatteries, maxBatteries int) []TransparentRequest {
	reqs := []TransparentRequest{
		NewReadInputRegistersRequest(SlaveAddrBatteryBase, 0, 60),
		NewReadInputRegistersRequest(SlaveAddrBatteryBase, 180, 60),
	}
	if complete {
		reqs = append(reqs,
			NewReadHoldingRegistersRequest(SlaveAddrBatteryBase, 0, 60),
			NewReadHoldingRegistersRequest(SlaveAddrBatteryBase, 60, 60),
			NewReadHoldingRegistersRequest(SlaveAddrBatteryBase, 120, 60),
			NewReadInputRegistersRequest(SlaveAddrBatteryBase, 120, 60),
		)
		numberBatteries = maxBatteries
	}
	for i := 0; i < numberBatteries; i++ {
		reqs = append(reqs,
			NewReadBatteryInputRegistersRequest(SlaveAddrBatteryBase+uint8(i), 60, 60))
	}
	return reqs
}

// RefreshAdditionalHoldingRegisters reads one extra 60-register holding page,
// used for the extended slot/config banks newer firmware exposes.
func RefreshAdditionalHoldingRegisters(baseRegister uint16) []TransparentRequest {
	return []TransparentRequest{
		NewReadHoldingRegistersRequest(SlaveAddrBatteryBase, baseRegister, 60),
	}
}

// SetEnableCharge allows or blocks battery charging, subject to the
// configured mode and slots.
func SetEnableCharge(enabled bool) ([]TransparentRequest, error) {
	return []TransparentRequest{
		NewWriteHoldingRegisterRequest(HREnableCharge, boolToUint16(enabled)),
	}, nil
}

// SetEnableDischarge allows or blocks battery discharging, subject to the
// configured mode and slots.
func SetEnableDischarge(enabled bool) ([]TransparentRequest, error) {
	return []TransparentRequest{
		NewWriteHoldingRegisterRequest(HREnableDischarge, boolToUint16(enabled)),
	}, nil
}

// DisableChargeTarget removes the SOC limit and targets 100% charging.
func DisableChargeTarget() ([]TransparentRequest, error) {
	return []TransparentRequest{
		NewWriteHoldingRegisterRequest(HREnableChargeTarget, 0),
		NewWriteHoldingRegisterRequest(HRChargeTargetSoc, 100),
	}, nil
}

// SetChargeTarget stops charging once the battery reaches the given SOC.
// A target of 100 is equivalent to having no target at all, and is issued
// as such.
func SetChargeTarget(targetSoc int) ([]TransparentRequest, error) {
	if targetSoc < 4 || targetSoc > 100 {
		return nil, fmt.Errorf("charge target SOC (%d) must be in [4-100]%%", targetSoc)
	}
	reqs, _ := SetEnableCharge(true)
	if targetSoc == 100 {
		disable, _ := DisableChargeTarget()
		return append(reqs, disable...), nil
	}
	return append(reqs,
		NewWriteHoldingRegisterRequest(HREnableChargeTarget, 1),
		NewWriteHoldingRegisterRequest(HRChargeTargetSoc, uint16(targetSoc)),
	), nil
}

// SetInverterReboot restarts the inverter.
func SetInverterReboot() ([]TransparentRequest, error) {
	return []TransparentRequest{
		NewWriteHoldingRegisterRequest(HRReboot, 100),
	}, nil
}

// SetCalibrateBatterySoc starts recalibration of the battery state of charge
// estimate.
func SetCalibrateBatterySoc() ([]TransparentRequest, error) {
	return []TransparentRequest{
		NewWriteHoldingRegisterRequest(HRSocForceAdjust, 1),
	}, nil
}

// SetDischargeModeMaxPower discharges at full power, exporting to the grid
// whatever exceeds load demand.
func SetDischargeModeMaxPower() ([]TransparentRequest, error) {
	return []TransparentRequest{
		NewWriteHoldingRegisterRequest(HRBatteryPowerMode, 0),
	}, nil
}

// SetDischargeModeToMatchDemand discharges to match load demand, avoiding
// grid export.
func SetDischargeModeToMatchDemand() ([]TransparentRequest, error) {
	return []TransparentRequest{
		NewWriteHoldingRegisterRequest(HRBatteryPowerMode, 1),
	}, nil
}

// SetBatterySocReserve sets the minimum level of charge to maintain.
func SetBatterySocReserve(val int) ([]TransparentRequest, error) {
	if val < 4 || val > 100 {
		return nil, fmt.Errorf("minimum SOC (%d) must be in [4-100]%%", val)
	}
	return []TransparentRequest{
		NewWriteHoldingRegisterRequest(HRBatterySocReserve, uint16(val)),
	}, nil
}

// SetBatteryChargeLimit sets the charge power limit as a percentage.
// 50% (2.6 kW) is the maximum for most inverters.
func SetBatteryChargeLimit(val int) ([]TransparentRequest, error) {
	if val < 0 || val > 50 {
		return nil, fmt.Errorf("charge limit (%d%%) is not in [0-50]%%", val)
	}
	return []TransparentRequest{
		NewWriteHoldingRegisterRequest(HRBatteryChargeLimit, uint16(val)),
	}, nil
}

// SetBatteryDischargeLimit sets the discharge power limit as a percentage.
func SetBatteryDischargeLimit(val int) ([]TransparentRequest, error) {
	if val < 0 || val > 50 {
		return nil, fmt.Errorf("discharge limit (%d%%) is not in [0-50]%%", val)
	}
	return []TransparentRequest{
		NewWriteHoldingRegisterRequest(HRBatteryDischargeLimit, uint16(val)),
	}, nil
}

// SetBatteryPowerReserve sets the cutoff level discharging must not go below.
func SetBatteryPowerReserve(val int) ([]TransparentRequest, error) {
	if val < 4 || val > 100 {
		return nil, fmt.Errorf("battery power reserve (%d) must be in [4-100]%%", val)
	}
	return []TransparentRequest{
		NewWriteHoldingRegisterRequest(HRBatteryDischargeMinPowerReserve, uint16(val)),
	}, nil
}

func setSlot(start, end uint16, slot *TimeSlot) []TransparentRequest {
	if slot == nil {
		return []TransparentRequest{
			NewWriteHoldingRegisterRequest(start, 0),
			NewWriteHoldingRegisterRequest(end, 0),
		}
	}
	return []TransparentRequest{
		NewWriteHoldingRegisterRequest(start, slot.Start.Repr()),
		NewWriteHoldingRegisterRequest(end, slot.End.Repr()),
	}
}

// SetChargeSlot1 sets the first charge slot start and end times.
func SetChargeSlot1(slot TimeSlot) ([]TransparentRequest, error) {
	return setSlot(HRChargeSlot1Start, HRChargeSlot1End, &slot), nil
}

// ResetChargeSlot1 zeroes the first charge slot, disabling it.
func ResetChargeSlot1() ([]TransparentRequest, error) {
	return setSlot(HRChargeSlot1Start, HRChargeSlot1End, nil), nil
}

// SetChargeSlot2 sets the second charge slot start and end times.
func SetChargeSlot2(slot TimeSlot) ([]TransparentRequest, error) {
	return setSlot(HRChargeSlot2Start, HRChargeSlot2End, &slot), nil
}

// ResetChargeSlot2 zeroes the second charge slot, disabling it.
func ResetChargeSlot2() ([]TransparentRequest, error) {
	return setSlot(HRChargeSlot2Start, HRChargeSlot2End, nil), nil
}

// SetDischargeSlot1 sets the first discharge slot start and end times.
func SetDischargeSlot1(slot TimeSlot) ([]TransparentRequest, error) {
	return setSlot(HRDischargeSlot1Start, HRDischargeSlot1End, &slot), nil
}

// ResetDischargeSlot1 zeroes the first discharge slot, disabling it.
func ResetDischargeSlot1() ([]TransparentRequest, error) {
	return setSlot(HRDischargeSlot1Start, HRDischargeSlot1End, nil), nil
}

// SetDischargeSlot2 sets the second discharge slot start and end times.
func SetDischargeSlot2(slot TimeSlot) ([]TransparentRequest, error) {
	return setSlot(HRDischargeSlot2Start, HRDischargeSlot2End, &slot), nil
}

// ResetDischargeSlot2 zeroes the second discharge slot, disabling it.
func ResetDischargeSlot2() ([]TransparentRequest, error) {
	return setSlot(HRDischargeSlot2Start, HRDischargeSlot2End, nil), nil
}

// SetSystemDateTime sets the inverter clock. Years before 2000 or after 2255
// do not fit the register encoding.
func SetSystemDateTime(t time.Time) ([]TransparentRequest, error) {
	if t.Year() < 2000 || t.Year() > 2255 {
		return nil, fmt.Errorf("year %d is outside the settable range [2000-2255]", t.Year())
	}
	return []TransparentRequest{
		NewWriteHoldingRegisterRequest(HRSystemTimeYear, uint16(t.Year()-2000)),
		NewWriteHoldingRegisterRequest(HRSystemTimeMonth, uint16(t.Month())),
		NewWriteHoldingRegisterRequest(HRSystemTimeDay, uint16(t.Day())),
		NewWriteHoldingRegisterRequest(HRSystemTimeHour, uint16(t.Hour())),
		NewWriteHoldingRegisterRequest(HRSystemTimeMinute, uint16(t.Minute())),
		NewWriteHoldingRegisterRequest(HRSystemTimeSecond, uint16(t.Second())),
	}, nil
}

// SetModeDynamic configures Dynamic/Eco mode: charge from excess solar, and
// discharge only to meet load demand. Maximises self-consumption.
func SetModeDynamic() ([]TransparentRequest, error) {
	demand, _ := SetDischargeModeToMatchDemand()
	reserve, err := SetBatterySocReserve(4)
	if err != nil {
		return nil, err
	}
	discharge, _ := SetEnableDischarge(false)
	return append(append(demand, reserve...), discharge...), nil
}

// SetModeStorage configures storage mode with specific discharge slot(s):
// hold solar generation during the day and discharge over the given windows,
// by default 16:00 to 07:00. With exportExcess the battery discharges at full
// power over the slots, exporting whatever exceeds demand. A nil second slot
// clears it.
func SetModeStorage(slot1 TimeSlot, slot2 *TimeSlot, exportExcess bool) ([]TransparentRequest, error) {
	var reqs []TransparentRequest
	var err error
	if exportExcess {
		reqs, err = SetDischargeModeMaxPower()
	} else {
		reqs, err = SetDischargeModeToMatchDemand()
	}
	if err != nil {
		return nil, err
	}
	reserve, err := SetBatterySocReserve(100)
	if err != nil {
		return nil, err
	}
	reqs = append(reqs, reserve...)
	discharge, _ := SetEnableDischarge(true)
	reqs = append(reqs, discharge...)
	reqs = append(reqs, setSlot(HRDischargeSlot1Start, HRDischargeSlot1End, &slot1)...)
	reqs = append(reqs, setSlot(HRDischargeSlot2Start, HRDischargeSlot2End, slot2)...)
	return reqs, nil
}

// DefaultStorageSlot is the 16:00 to 07:00 overnight window SetModeStorage
// uses unless told otherwise.
func DefaultStorageSlot() TimeSlot {
	return TimeSlotFromRepr(1600, 700)
}
