package givenergy

import (
	"testing"
	"time"
)

func testInverterCache() *RegisterCache {
	c := NewRegisterCache()
	c.Set(HR(0), 0x2001)
	c.Set(HR(3), 0x0201) // 2 MPPTs, 1 phase
	c.Set(HR(19), 449)
	c.Set(HR(21), 449)
	c.Update(map[Register]uint16{
		HR(13): 0x5341, HR(14): 0x3132, HR(15): 0x3334, HR(16): 0x4735, HR(17): 0x3637,
	})
	c.Set(HR(HRSystemTimeYear), 22)
	c.Set(HR(HRSystemTimeMonth), 1)
	c.Set(HR(HRSystemTimeDay), 1)
	c.Set(HR(HREnableCharge), 1)
	c.Set(HR(HRChargeSlot1Start), 30)
	c.Set(HR(HRChargeSlot1End), 430)
	c.Set(HR(HRChargeTargetSoc), 85)
	c.Set(IR(11), 0x0001)
	c.Set(IR(12), 0x0002)
	c.Set(IR(24), 0xFFFE) // -2W
	c.Set(IR(41), 521)
	c.Set(IR(50), 5123)
	c.Set(IR(52), 1234)
	c.Set(IR(59), 87)
	return c
}

func TestInverterTypedAccessors(t *testing.T) {
	inv := NewInverter(testInverterCache())

	if inv.SerialNumber() != "SA1234G567" {
		t.Errorf("SerialNumber returned %q", inv.SerialNumber())
	}
	if inv.DeviceTypeCode() != "2001" {
		t.Errorf("DeviceTypeCode returned %q", inv.DeviceTypeCode())
	}
	if inv.Model() != ModelHybrid {
		t.Errorf("Model returned %q", inv.Model())
	}
	if inv.FirmwareVersion() != "D0.449-A0.449" {
		t.Errorf("FirmwareVersion returned %q", inv.FirmwareVersion())
	}
	if inv.NumMPPT() != 2 || inv.NumPhases() != 1 {
		t.Errorf("NumMPPT/NumPhases returned %d/%d", inv.NumMPPT(), inv.NumPhases())
	}
	want := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	if !inv.SystemTime().Equal(want) {
		t.Errorf("SystemTime returned %s", inv.SystemTime())
	}
	if !inv.EnableCharge() || inv.EnableDischarge() {
		t.Error("charge/discharge flags wrong")
	}
	slot, ok := inv.ChargeSlot1()
	if !ok || slot != NewTimeSlot(0, 30, 4, 30) {
		t.Errorf("ChargeSlot1 returned %s, ok=%v", slot, ok)
	}
	if inv.ChargeTargetSoc() != 85 {
		t.Errorf("ChargeTargetSoc returned %d", inv.ChargeTargetSoc())
	}
	if inv.BatteryPercent() != 87 {
		t.Errorf("BatteryPercent returned %d", inv.BatteryPercent())
	}
	if inv.PInverterOut() != -2 {
		t.Errorf("PInverterOut returned %d", inv.PInverterOut())
	}
	if inv.PBattery() != 1234 {
		t.Errorf("PBattery returned %d", inv.PBattery())
	}
	if inv.VBattery() != 51.23 {
		t.Errorf("VBattery returned %v", inv.VBattery())
	}
	if inv.TempInverterHeatsink() != 52.1 {
		t.Errorf("TempInverterHeatsink returned %v", inv.TempInverterHeatsink())
	}
	if inv.EPVTotal() != 6553.8 {
		t.Errorf("EPVTotal returned %v", inv.EPVTotal())
	}
}

func TestInverterAttributeLookup(t *testing.T) {
	inv := NewInverter(testInverterCache())

	v, ok := inv.Attribute("inverter_serial_number")
	if !ok || v != "SA1234G567" {
		t.Errorf("inverter_serial_number = %v, ok=%v", v, ok)
	}
	v, ok = inv.Attribute("p_inverter_out")
	if !ok || v != int16(-2) {
		t.Errorf("p_inverter_out = %v, ok=%v", v, ok)
	}
	v, ok = inv.Attribute("temp_inverter_heatsink")
	if !ok || v != 52.1 {
		t.Errorf("temp_inverter_heatsink = %v, ok=%v", v, ok)
	}
	if _, ok := inv.Attribute("no_such_attribute"); ok {
		t.Error("unknown attribute name returned ok=true")
	}
}

func TestInverterDump(t *testing.T) {
	dump := NewInverter(testInverterCache()).Dump()
	if len(dump) != len(inverterAttributes) {
		t.Fatalf("Dump has %d entries, expected %d", len(dump), len(inverterAttributes))
	}
	if dump["battery_percent"] != uint16(87) {
		t.Errorf("battery_percent = %v", dump["battery_percent"])
	}
	if dump["device_type_code"] != "2001" {
		t.Errorf("device_type_code = %v", dump["device_type_code"])
	}
	// unset slots read as the disabled sentinel only when the raw value is 60;
	// an all-zero slot is 00:00-00:00
	if dump["discharge_slot_1"] != (TimeSlot{}) {
		t.Errorf("discharge_slot_1 = %v", dump["discharge_slot_1"])
	}
}

func TestModelFromDeviceTypeCode(t *testing.T) {
	testCases := []struct {
		dtc      string
		expected Model
	}{
		{dtc: "2001", expected: ModelHybrid},
		{dtc: "4001", expected: ModelHybrid},
		{dtc: "3001", expected: ModelAC},
		{dtc: "6001", expected: ModelAC},
		{dtc: "5001", expected: ModelEMS},
		{dtc: "7001", expected: ModelGateway},
		{dtc: "8001", expected: ModelAllInOne},
		{dtc: "9999", expected: ModelUnknown},
		{dtc: "", expected: ModelUnknown},
	}
	for _, tc := range testCases {
		if got := ModelFromDeviceTypeCode(tc.dtc); got != tc.expected {
			t.Errorf("ModelFromDeviceTypeCode(%q) = %q, expected %q", tc.dtc, got, tc.expected)
		}
	}
}
