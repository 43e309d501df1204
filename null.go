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

import "fmt"

// nullResponseFieldCount is the number of reserved register-sized fields a
// Null response carries.
const nullResponseFieldCount = 62

// NullResponse handles the 2:0/Null quirk of the vendor firmware: from time
// to time these messages arrive unprompted, carrying 62 reserved zero fields.
// They are accepted as a keep-alive and otherwise ignored.
type NullResponse struct {
	transparentFields
	InverterSerialNumber string
	Nulls                [nullResponseFieldCount]uint16
}

func (r *NullResponse) FunctionCode() uint8            { return FunctionTransparent }
func (r *NullResponse) TransparentFunctionCode() uint8 { return TransparentFuncNull }
func (r *NullResponse) InverterSerial() string         { return r.InverterSerialNumber }

func (r *NullResponse) Validate() error {
	if r.InverterSerialNumber != "\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00" && r.InverterSerialNumber != "" {
		logf("unexpected non-null inverter serial number in null response: %q", r.InverterSerialNumber)
	}
	for i, v := range r.Nulls {
		if v != 0 {
			logf("unexpected non-null reserved value in null response: field %d = 0x%04x", i, v)
		}
	}
	return nil
}

func (r *NullResponse) Encode() ([]byte, error) {
	e := NewPayloadEncoder()
	r.encodeTransparentHeader(e, TransparentFuncNull)
	e.AddString(r.InverterSerialNumber, 10)
	for _, v := range r.Nulls {
		e.AddUint16(v)
	}
	e.AddUint16(r.Check)
	return encodeFrame(FunctionTransparent, e.Payload()), nil
}

func (r *NullResponse) ShapeHash() uint64 {
	return shapeHash(true, FunctionTransparent, TransparentFuncNull, 0, 0, 0)
}

func (r *NullResponse) String() string {
	return fmt.Sprintf("2:0/NullResponse(slave_address=0x%02x)", r.Slave)
}

func decodeNullResponse(d *PayloadDecoder, fields transparentFields, inverterSerial string) (*NullResponse, error) {
	if d.RemainingBytes() != nullResponseFieldCount*2+2 {
		logf("null response with unexpected remaining bytes: %db [%x]", d.RemainingBytes(), d.RemainingPayload())
	}
	r := &NullResponse{transparentFields: fields, InverterSerialNumber: inverterSerial}
	for i := 0; i < nullResponseFieldCount; i++ {
		r.Nulls[i] = d.DecodeUint16()
	}
	r.Check = d.DecodeUint16()
	if err := d.Err(); err != nil {
		return nil, &InvalidFrameError{Message: err.Error()}
	}
	return r, nil
}
