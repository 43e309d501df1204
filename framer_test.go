package givenergy

import "testing"

func testResponseFrame(t *testing.T, base uint16) []byte {
	t.Helper()
	values := make([]uint16, 60)
	for i := range values {
		values[i] = base + uint16(i)
	}
	resp := fixResponseCheck(&ReadRegistersResponse{
		transparentFields:       transparentFields{Slave: 0x32},
		InverterSerialNumber:    "SA1234G567",
		transparentFunctionCode: TransparentFuncReadInput,
		BaseRegister:            base,
		RegisterCount:           60,
		RegisterValues:          values,
	})
	frame, err := resp.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	return frame
}

func TestFramerSingleFrame(t *testing.T) {
	f := NewClientFramer()
	results := f.Decode(testResponseFrame(t, 0))
	if len(results) != 1 {
		t.Fatalf("Decode yielded %d results, expected 1", len(results))
	}
	if results[0].Err != nil {
		t.Fatalf("unexpected decode error: %v", results[0].Err)
	}
	if _, ok := results[0].PDU.(*ReadRegistersResponse); !ok {
		t.Errorf("decoded %T, expected *ReadRegistersResponse", results[0].PDU)
	}
	if f.BufferedBytes() != 0 {
		t.Errorf("%d bytes left in buffer after a complete frame", f.BufferedBytes())
	}
}

func TestFramerByteAtATime(t *testing.T) {
	frame := testResponseFrame(t, 60)
	f := NewClientFramer()
	var results []DecodeResult
	for _, b := range frame {
		results = append(results, f.Decode([]byte{b})...)
	}
	if len(results) != 1 {
		t.Fatalf("byte-at-a-time feed yielded %d results, expected 1", len(results))
	}
	if results[0].Err != nil {
		t.Fatalf("unexpected decode error: %v", results[0].Err)
	}
}

func TestFramerMultipleFramesPerChunk(t *testing.T) {
	chunk := append([]byte{}, testResponseFrame(t, 0)...)
	chunk = append(chunk, testResponseFrame(t, 60)...)
	chunk = append(chunk, testResponseFrame(t, 120)...)

	f := NewClientFramer()
	results := f.Decode(chunk)
	if len(results) != 3 {
		t.Fatalf("Decode yielded %d results, expected 3", len(results))
	}
	for i, want := range []uint16{0, 60, 120} {
		resp, ok := results[i].PDU.(*ReadRegistersResponse)
		if !ok {
			t.Fatalf("result %d decoded %T", i, results[i].PDU)
		}
		if resp.BaseRegister != want {
			t.Errorf("result %d has base register %d, expected %d", i, resp.BaseRegister, want)
		}
	}
}

func TestFramerDiscardsLeadingGarbage(t *testing.T) {
	chunk := append([]byte{0xDE, 0xAD, 0xBE, 0xEF, 0x00, 0x59}, testResponseFrame(t, 0)...)
	f := NewClientFramer()
	results := f.Decode(chunk)
	if len(results) != 1 {
		t.Fatalf("Decode yielded %d results, expected 1", len(results))
	}
	if results[0].Err != nil {
		t.Fatalf("unexpected decode error: %v", results[0].Err)
	}
}

func TestFramerSkipsTruncatedFrame(t *testing.T) {
	full := testResponseFrame(t, 0)
	// a partial frame cut short by a fresh frame start must be abandoned
	chunk := append(append([]byte{}, full[:10]...), full...)
	f := NewClientFramer()
	results := f.Decode(chunk)
	if len(results) != 1 {
		t.Fatalf("Decode yielded %d results, expected 1", len(results))
	}
	if results[0].Err != nil {
		t.Fatalf("unexpected decode error: %v", results[0].Err)
	}
	if f.BufferedBytes() != 0 {
		t.Errorf("%d bytes left in buffer", f.BufferedBytes())
	}
}

func TestFramerSkipsImplausibleHeader(t *testing.T) {
	// a start marker followed by an implausible length field is corruption;
	// the framer steps past it and finds the real frame behind
	junk := []byte{0x59, 0x59, 0x00, 0x01, 0xFF, 0xFF, 0x55, 0x99,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
	chunk := append(junk, testResponseFrame(t, 0)...)
	f := NewClientFramer()
	results := f.Decode(chunk)
	if len(results) != 1 {
		t.Fatalf("Decode yielded %d results, expected 1", len(results))
	}
	if results[0].Err != nil {
		t.Fatalf("unexpected decode error: %v", results[0].Err)
	}
}

func TestFramerYieldsDecodeErrors(t *testing.T) {
	resp := &ReadRegistersResponse{
		transparentFields:       transparentFields{Slave: 0x32},
		InverterSerialNumber:    "SA1234G567",
		transparentFunctionCode: TransparentFuncReadInput,
		BaseRegister:            0,
		RegisterCount:           1,
		RegisterValues:          []uint16{0x1234},
	}
	resp.Check = resp.expectedCheck() + 1 // guaranteed invalid
	bad, err := resp.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	chunk := append(bad, testResponseFrame(t, 0)...)

	f := NewClientFramer()
	results := f.Decode(chunk)
	if len(results) != 2 {
		t.Fatalf("Decode yielded %d results, expected 2", len(results))
	}
	if results[0].Err == nil {
		t.Error("corrupt frame yielded no error")
	}
	if results[1].Err != nil {
		t.Errorf("valid frame after a corrupt one failed to decode: %v", results[1].Err)
	}
}

func TestFramerReset(t *testing.T) {
	f := NewClientFramer()
	f.Decode(testResponseFrame(t, 0)[:20])
	if f.BufferedBytes() == 0 {
		t.Fatal("expected a buffered partial frame")
	}
	f.Reset()
	if f.BufferedBytes() != 0 {
		t.Errorf("%d bytes left in buffer after Reset", f.BufferedBytes())
	}
}
