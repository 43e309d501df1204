package givenergy

import (
	"encoding/json"
	"testing"
	"time"
)

func TestRegisterString(t *testing.T) {
	if got := HR(13).String(); got != "HR(13)" {
		t.Errorf("HR(13).String() = %q", got)
	}
	if got := IR(59).String(); got != "IR(59)" {
		t.Errorf("IR(59).String() = %q", got)
	}
}

func TestRegisterCacheGetOrZero(t *testing.T) {
	c := NewRegisterCache()
	if v := c.Get(HR(13)); v != 0 {
		t.Errorf("unpopulated register returned %d, expected 0", v)
	}
	if c.Has(HR(13)) {
		t.Error("Has returned true for an unpopulated register")
	}
	c.Set(HR(13), 0x3250)
	if v := c.Get(HR(13)); v != 0x3250 {
		t.Errorf("Get returned %#04x after Set", v)
	}
	if !c.Has(HR(13)) {
		t.Error("Has returned false after Set")
	}
	// holding and input registers at the same index are distinct
	if c.Has(IR(13)) {
		t.Error("IR(13) was populated by a write to HR(13)")
	}
	c.Update(map[Register]uint16{IR(0): 1, IR(1): 2})
	if c.Len() != 3 {
		t.Errorf("Len returned %d, expected 3", c.Len())
	}
}

func TestRegisterCacheToString(t *testing.T) {
	c := NewRegisterCache()
	// "SA1234G567" packed two ASCII bytes per register
	c.Set(HR(13), 0x5341)
	c.Set(HR(14), 0x3132)
	c.Set(HR(15), 0x3334)
	c.Set(HR(16), 0x4735)
	c.Set(HR(17), 0x3637)
	got := c.ToString(HR(13), HR(14), HR(15), HR(16), HR(17))
	if got != "SA1234G567" {
		t.Errorf("ToString returned %q, expected %q", got, "SA1234G567")
	}

	// nulls and other non-alphanumeric bytes are dropped
	c2 := NewRegisterCache()
	c2.Set(IR(110), 0x0041)
	c2.Set(IR(111), 0x6200)
	if got := c2.ToString(IR(110), IR(111)); got != "AB" {
		t.Errorf("ToString returned %q, expected %q", got, "AB")
	}

	// an all-zero serial reads back as empty
	c3 := NewRegisterCache()
	if got := c3.ToString(IR(110), IR(111), IR(112)); got != "" {
		t.Errorf("ToString over zero registers returned %q", got)
	}
}

func TestRegisterCacheToHexString(t *testing.T) {
	c := NewRegisterCache()
	c.Set(HR(0), 0x2001)
	c.Set(HR(1), 0x0003)
	if got := c.ToHexString(HR(0), HR(1)); got != "20010003" {
		t.Errorf("ToHexString returned %q", got)
	}
	if got := c.ToHexString(HR(0), HR(2)); got != "" {
		t.Errorf("ToHexString with a zero register returned %q, expected empty", got)
	}
}

func TestRegisterCacheNumericConversions(t *testing.T) {
	c := NewRegisterCache()
	c.Set(IR(0), 0x0102)
	high, low := c.ToDuint8(IR(0))
	if high != 1 || low != 2 {
		t.Errorf("ToDuint8 returned (%d, %d), expected (1, 2)", high, low)
	}

	c.Set(IR(30), 0xFFFE)
	if got := c.ToInt16(IR(30)); got != -2 {
		t.Errorf("ToInt16 returned %d, expected -2", got)
	}

	c.Set(IR(1), 0x0001)
	c.Set(IR(2), 0x0002)
	if got := c.ToUint32(IR(1), IR(2)); got != 0x10002 {
		t.Errorf("ToUint32 returned %#x, expected 0x10002", got)
	}
}

func TestRegisterCacheToDatetime(t *testing.T) {
	c := NewRegisterCache()
	c.Set(HR(35), 22)
	c.Set(HR(36), 11)
	c.Set(HR(37), 23)
	c.Set(HR(38), 4)
	c.Set(HR(39), 34)
	c.Set(HR(40), 59)
	got := c.ToDatetime(HR(35), HR(36), HR(37), HR(38), HR(39), HR(40))
	want := time.Date(2022, 11, 23, 4, 34, 59, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("ToDatetime returned %s, expected %s", got, want)
	}

	// a never-set clock reports month and day zero; clamp instead of panicking
	c2 := NewRegisterCache()
	got = c2.ToDatetime(HR(35), HR(36), HR(37), HR(38), HR(39), HR(40))
	want = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("ToDatetime over zero registers returned %s, expected %s", got, want)
	}
}

func TestRegisterCacheToTimeslot(t *testing.T) {
	c := NewRegisterCache()
	c.Set(HR(94), 1600)
	c.Set(HR(95), 700)
	slot, ok := c.ToTimeslot(HR(94), HR(95))
	if !ok {
		t.Fatal("ToTimeslot returned ok=false for a configured slot")
	}
	if slot.Start != (TimeOfDay{Hour: 16}) || slot.End != (TimeOfDay{Hour: 7}) {
		t.Errorf("ToTimeslot returned %s", slot)
	}

	// raw value 60 means no slot configured
	c.Set(HR(56), 60)
	c.Set(HR(57), 60)
	if _, ok := c.ToTimeslot(HR(56), HR(57)); ok {
		t.Error("ToTimeslot returned ok=true for the value-60 sentinel")
	}
}

func TestTimeSlotRepr(t *testing.T) {
	slot := NewTimeSlot(16, 30, 7, 5)
	if slot.Start.Repr() != 1630 {
		t.Errorf("Start.Repr() = %d, expected 1630", slot.Start.Repr())
	}
	if slot.End.Repr() != 705 {
		t.Errorf("End.Repr() = %d, expected 705", slot.End.Repr())
	}
	if slot.String() != "16:30-07:05" {
		t.Errorf("String() = %q", slot.String())
	}
	back := TimeSlotFromRepr(slot.Start.Repr(), slot.End.Repr())
	if back != slot {
		t.Errorf("Repr round trip returned %s, expected %s", back, slot)
	}
	if got := TimeSlotFromRepr(34, 0); got.Start != (TimeOfDay{Minute: 34}) {
		t.Errorf("TimeSlotFromRepr(34, 0) start = %s", got.Start)
	}
}

func TestRegisterCacheJSONRoundTrip(t *testing.T) {
	c := NewRegisterCache()
	c.Set(HR(13), 0x5341)
	c.Set(IR(59), 87)

	data, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	back := NewRegisterCache()
	if err := json.Unmarshal(data, back); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if back.Get(HR(13)) != 0x5341 || back.Get(IR(59)) != 87 {
		t.Errorf("round trip lost values: %s", data)
	}

	// the colon form is accepted too
	alt := NewRegisterCache()
	if err := json.Unmarshal([]byte(`{"HR:116": 85}`), alt); err != nil {
		t.Fatalf("Unmarshal of colon form failed: %v", err)
	}
	if alt.Get(HR(116)) != 85 {
		t.Errorf("colon form value lost")
	}

	if err := json.Unmarshal([]byte(`{"XX(1)": 1}`), alt); err == nil {
		t.Error("unknown bank accepted without error")
	}
}
