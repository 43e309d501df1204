package givenergy

import (
	"bytes"
	"testing"
)

func TestPayloadDecoderSequentialReads(t *testing.T) {
	payload := []byte{
		0x01,
		0x12, 0x34,
		0xDE, 0xAD, 0xBE, 0xEF,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x59, 0x59,
		'A', 'B', '1', '2', '3',
	}
	d := NewPayloadDecoder(payload)

	if got := d.DecodeUint8(); got != 0x01 {
		t.Errorf("DecodeUint8 returned %#02x, expected 0x01", got)
	}
	if got := d.DecodeUint16(); got != 0x1234 {
		t.Errorf("DecodeUint16 returned %#04x, expected 0x1234", got)
	}
	if got := d.DecodeUint32(); got != 0xDEADBEEF {
		t.Errorf("DecodeUint32 returned %#08x, expected 0xDEADBEEF", got)
	}
	if got := d.DecodeUint64(); got != 0x5959 {
		t.Errorf("DecodeUint64 returned %#x, expected 0x5959", got)
	}
	if got := d.DecodeString(5); got != "AB123" {
		t.Errorf("DecodeString returned %q, expected %q", got, "AB123")
	}
	if err := d.Err(); err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if !d.DecodingComplete() {
		t.Errorf("DecodingComplete returned false after consuming %d of %d bytes",
			d.DecodedBytes(), d.PayloadSize())
	}
}

func TestPayloadDecoderStickyError(t *testing.T) {
	d := NewPayloadDecoder([]byte{0x01, 0x02})

	if got := d.DecodeUint32(); got != 0 {
		t.Errorf("short DecodeUint32 returned %#x, expected 0", got)
	}
	if d.Err() == nil {
		t.Fatal("expected length-mismatch error, got nil")
	}
	// subsequent reads must not advance the cursor or clear the error
	if got := d.DecodeUint8(); got != 0 {
		t.Errorf("DecodeUint8 after error returned %#x, expected 0", got)
	}
	if d.Err() == nil {
		t.Error("error cleared by a later read")
	}
	if d.DecodedBytes() != 0 {
		t.Errorf("cursor advanced to %d after failed read", d.DecodedBytes())
	}
}

func TestPayloadDecoderRemainingPayload(t *testing.T) {
	d := NewPayloadDecoder([]byte{0xAA, 0xBB, 0xCC, 0xDD})
	d.DecodeUint16()
	if d.RemainingBytes() != 2 {
		t.Errorf("RemainingBytes returned %d, expected 2", d.RemainingBytes())
	}
	if !bytes.Equal(d.RemainingPayload(), []byte{0xCC, 0xDD}) {
		t.Errorf("RemainingPayload returned %v", d.RemainingPayload())
	}
}

func TestPayloadEncoderRoundTrip(t *testing.T) {
	e := NewPayloadEncoder()
	e.AddUint8(0x32)
	e.AddUint16(0xBEEF)
	e.AddUint32(0x01020304)
	e.AddUint64(0x1122334455667788)
	e.AddString("WF2345G678", 10)

	d := NewPayloadDecoder(e.Payload())
	if got := d.DecodeUint8(); got != 0x32 {
		t.Errorf("uint8 round trip returned %#x", got)
	}
	if got := d.DecodeUint16(); got != 0xBEEF {
		t.Errorf("uint16 round trip returned %#x", got)
	}
	if got := d.DecodeUint32(); got != 0x01020304 {
		t.Errorf("uint32 round trip returned %#x", got)
	}
	if got := d.DecodeUint64(); got != 0x1122334455667788 {
		t.Errorf("uint64 round trip returned %#x", got)
	}
	if got := d.DecodeString(10); got != "WF2345G678" {
		t.Errorf("string round trip returned %q", got)
	}
	if err := d.Err(); err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
}

func TestPayloadEncoderAddString(t *testing.T) {
	testCases := []struct {
		value    string
		length   int
		expected string
	}{
		{value: "AB1234G567", length: 10, expected: "AB1234G567"},
		{value: "G567", length: 10, expected: "******G567"},
		{value: "", length: 10, expected: "**********"},
		{value: "XXAB1234G567", length: 10, expected: "AB1234G567"}, // keep trailing characters
	}

	for _, tc := range testCases {
		e := NewPayloadEncoder()
		e.AddString(tc.value, tc.length)
		if got := string(e.Payload()); got != tc.expected {
			t.Errorf("AddString(%q, %d) encoded %q, expected %q", tc.value, tc.length, got, tc.expected)
		}
	}
}

func TestPayloadEncoderReset(t *testing.T) {
	e := NewPayloadEncoder()
	e.AddUint16(0xFFFF)
	e.Reset()
	if len(e.Payload()) != 0 {
		t.Errorf("Reset left %d bytes in the buffer", len(e.Payload()))
	}
	if e.CRC() != 0xFFFF {
		t.Errorf("CRC of empty buffer returned %#04x, expected 0xFFFF", e.CRC())
	}
}
