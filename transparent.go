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

// Default padding observed on the wire. Requests carry 0x08; responses carry
// 0x8A, or 0x12 when the error bit is set. Zeroing the padding makes the
// inverter stop answering, so it is significant even if not understood.
const (
	requestPadding       = 0x08
	responsePadding      = 0x8A
	errorResponsePadding = 0x12
)

// transparentFields are common to every 2/Transparent message: the 10-byte
// adapter serial, 8 bytes of padding, the target device address, the error
// flag (stripped from the high bit of the transparent function code on
// decode) and the 2-byte trailing check value.
type transparentFields struct {
	DataAdapterSerialNumber string
	Padding                 uint64
	Slave                   uint8
	Error                   bool
	Check                   uint16
}

func (t *transparentFields) SlaveAddress() uint8   { return t.Slave }
func (t *transparentFields) IsError() bool         { return t.Error }
func (t *transparentFields) AdapterSerial() string { return t.DataAdapterSerialNumber }

// encodeTransparentHeader writes the shared prefix of every transparent
// message: adapter serial, padding, slave address and function code.
func (t *transparentFields) encodeTransparentHeader(e *PayloadEncoder, transparentFunctionCode uint8) {
	serial := t.DataAdapterSerialNumber
	if serial == "" {
		serial = DefaultAdapterSerial
	}
	padding := t.Padding
	if padding == 0 {
		padding = requestPadding
	}
	e.AddString(serial, 10)
	e.AddUint64(padding)
	e.AddUint8(t.Slave)
	fc := transparentFunctionCode
	if t.Error {
		fc |= 0x80
	}
	e.AddUint8(fc)
}

// requestCheck computes the check value appended to outgoing requests: a
// Modbus CRC over (slave address, transparent function code, addressing
// fields), byte-swapped before it is written big-endian. The swap is a
// documented wire quirk and is already folded into CRC16.
func requestCheck(slaveAddress, transparentFunctionCode uint8, a, b uint16) uint16 {
	e := NewPayloadEncoder()
	e.AddUint8(slaveAddress)
	e.AddUint8(transparentFunctionCode)
	e.AddUint16(a)
	e.AddUint16(b)
	return e.CRC()
}

// decodeTransparentResponse decodes the transparent sub-frame of a response.
func decodeTransparentResponse(d *PayloadDecoder) (TransparentResponse, error) {
	fields, transparentFunctionCode, err := decodeTransparentHeader(d)
	if err != nil {
		return nil, err
	}
	inverterSerial := d.DecodeString(10)
	if err := d.Err(); err != nil {
		return nil, &InvalidFrameError{Message: err.Error()}
	}
	switch transparentFunctionCode {
	case TransparentFuncNull:
		return decodeNullResponse(d, fields, inverterSerial)
	case TransparentFuncReadHolding, TransparentFuncReadInput:
		return decodeReadRegistersResponse(d, fields, inverterSerial, transparentFunctionCode)
	case TransparentFuncWriteHolding:
		return decodeWriteHoldingRegisterResponse(d, fields, inverterSerial)
	default:
		return nil, &InvalidFrameError{
			Message: fmt.Sprintf("unsupported transparent response function 0x%02x", transparentFunctionCode),
		}
	}
}

// decodeTransparentRequest decodes the transparent sub-frame of a request.
func decodeTransparentRequest(d *PayloadDecoder) (TransparentRequest, error) {
	fields, transparentFunctionCode, err := decodeTransparentHeader(d)
	if err != nil {
		return nil, err
	}
	switch transparentFunctionCode {
	case TransparentFuncReadHolding, TransparentFuncReadInput, TransparentFuncReadBatteryInput:
		return decodeReadRegistersRequest(d, fields, transparentFunctionCode)
	case TransparentFuncWriteHolding:
		return decodeWriteHoldingRegisterRequest(d, fields)
	default:
		return nil, &InvalidFrameError{
			Message: fmt.Sprintf("unsupported transparent request function 0x%02x", transparentFunctionCode),
		}
	}
}

func decodeTransparentHeader(d *PayloadDecoder) (transparentFields, uint8, error) {
	fields := transparentFields{}
	fields.DataAdapterSerialNumber = d.DecodeString(10)
	fields.Padding = d.DecodeUint64()
	fields.Slave = d.DecodeUint8()
	transparentFunctionCode := d.DecodeUint8()
	if err := d.Err(); err != nil {
		return fields, 0, &InvalidFrameError{Message: err.Error()}
	}
	// The high bit of the transparent function code marks an error response.
	if transparentFunctionCode&0x80 != 0 {
		fields.Error = true
		transparentFunctionCode &= 0x7F
	}
	return fields, transparentFunctionCode, nil
}
