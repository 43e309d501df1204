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
	"io"
	"log"
	"sync/atomic"
)

// GivEnergy Frame Constants
//
// The wire protocol looks very similar to normal Modbus TCP, with a 7-byte
// MBAP header followed by a function code, but the transaction identifier is
// always 0x5959 ("YY"), the protocol identifier is always 0x0001, the length
// field counts one byte more than regular Modbus, and the unit identifier is
// 0x00 or 0x01.
const (
	FrameTransactionID = 0x5959 // constant transaction marker, "YY"
	FrameProtocolID    = 0x0001 // constant protocol marker

	FunctionHeartbeat   = 1 // liveness checks pushed by the data adapter
	FunctionTransparent = 2 // vendor sub-frame wrapping inverter commands

	// Transparent sub-function codes.
	TransparentFuncNull             = 0x00
	TransparentFuncReadHolding      = 0x03
	TransparentFuncReadInput        = 0x04
	TransparentFuncWriteHolding     = 0x06
	TransparentFuncReadBatteryInput = 0x16

	// MinFrameLength is the shortest known message (a heartbeat).
	MinFrameLength = 18

	// MaxRegisterCount bounds how many registers one read can request.
	MaxRegisterCount = 60

	// DefaultAdapterSerial is used for client-originated messages, where the
	// adapter serial number is seemingly ignored by the remote device.
	DefaultAdapterSerial = "AB1234G567"
)

// Well-known slave addresses on the vendor bus.
const (
	SlaveAddrMobileApp   = 0x00 // reserved for the mobile app client role
	SlaveAddrInverter    = 0x11 // inverter head unit (responses mirrored to cloud)
	SlaveAddrBatteryBase = 0x32 // battery pack 1; packs 2-5 follow sequentially
)

// PDU is one self-contained protocol message. Instances are transient value
// objects: created per encode/decode cycle, never mutated after decode.
type PDU interface {
	// FunctionCode returns the outer function code (1=Heartbeat, 2=Transparent).
	FunctionCode() uint8
	// Encode renders the PDU as a complete wire frame, validating first.
	Encode() ([]byte, error)
	// Validate sanity checks internal state.
	Validate() error
	// ShapeHash is a coarse identity covering type, function codes and
	// addressing but not payload values. Two PDUs with equal shape are the
	// same outstanding exchange; a newer request legitimately supersedes an
	// older in-flight one of the same shape.
	ShapeHash() uint64
	fmt.Stringer
}

// TransparentRequest is a client-originated Transparent message.
type TransparentRequest interface {
	PDU
	// ExpectedResponse creates a template of the correctly shaped response,
	// used to correlate the future reply.
	ExpectedResponse() TransparentResponse
}

// TransparentResponse is a server-originated Transparent message.
type TransparentResponse interface {
	PDU
	TransparentFunctionCode() uint8
	SlaveAddress() uint8
	IsError() bool
	InverterSerial() string
	AdapterSerial() string
}

// shapeHash packs the identity-relevant fields into a single comparable key:
// role bit, outer and transparent function codes, slave address, and two
// 16-bit addressing fields (base register / register count, or register
// index, or adapter type; zero where not applicable).
func shapeHash(response bool, functionCode, transparentFunctionCode, slaveAddress uint8, a, b uint16) uint64 {
	h := uint64(0)
	if response {
		h = 1
	}
	h = h<<8 | uint64(functionCode)
	h = h<<8 | uint64(transparentFunctionCode)
	h = h<<8 | uint64(slaveAddress)
	h = h<<16 | uint64(a)
	h = h<<16 | uint64(b)
	return h
}

// encodeFrame wraps an inner payload (adapter serial onward) in the MBAP-style
// header. The length field counts the unit id, function code and payload,
// which is one byte more than the function code plus payload that actually
// remain - a documented quirk of the vendor firmware.
func encodeFrame(functionCode uint8, inner []byte) []byte {
	e := NewPayloadEncoder()
	e.AddUint16(FrameTransactionID)
	e.AddUint16(FrameProtocolID)
	e.AddUint16(uint16(len(inner) + 2))
	e.AddUint8(0x01)
	e.AddUint8(functionCode)
	return append(e.Payload(), inner...)
}

// decodeFrameHeader validates the outer header and returns a decoder
// positioned at the start of the inner payload, plus the function code.
func decodeFrameHeader(frame []byte) (*PayloadDecoder, uint8, error) {
	d := NewPayloadDecoder(frame)
	tid := d.DecodeUint16()
	pid := d.DecodeUint16()
	headerLen := int(d.DecodeUint16())
	if err := d.Err(); err != nil {
		return nil, 0, &InvalidFrameError{Message: err.Error(), Frame: frame}
	}
	if tid != FrameTransactionID {
		return nil, 0, &InvalidFrameError{
			Message: fmt.Sprintf("transaction ID 0x%04x != 0x%04x", tid, FrameTransactionID),
			Frame:   frame,
		}
	}
	if pid != FrameProtocolID {
		return nil, 0, &InvalidFrameError{
			Message: fmt.Sprintf("protocol ID 0x%04x != 0x%04x", pid, FrameProtocolID),
			Frame:   frame,
		}
	}
	if headerLen != d.RemainingBytes() {
		return nil, 0, &InvalidFrameError{
			Message: fmt.Sprintf("header length %d != remaining frame length %d", headerLen, d.RemainingBytes()),
			Frame:   frame,
		}
	}
	unitID := d.DecodeUint8()
	if unitID != 0x00 && unitID != 0x01 {
		return nil, 0, &InvalidFrameError{
			Message: fmt.Sprintf("unit ID 0x%02x != 0x00/0x01", unitID),
			Frame:   frame,
		}
	}
	functionCode := d.DecodeUint8()
	return d, functionCode, nil
}

// DecodeClientIncoming decodes a frame from the client's perspective:
// heartbeat requests pushed by the data adapter, and transparent responses.
func DecodeClientIncoming(frame []byte) (PDU, error) {
	d, functionCode, err := decodeFrameHeader(frame)
	if err != nil {
		return nil, err
	}
	var pdu PDU
	switch functionCode {
	case FunctionHeartbeat:
		pdu, err = decodeHeartbeatRequest(d)
	case FunctionTransparent:
		pdu, err = decodeTransparentResponse(d)
	default:
		return nil, &InvalidFrameError{
			Message: fmt.Sprintf("unknown function code 0x%02x for client", functionCode),
			Frame:   frame,
		}
	}
	if err != nil {
		return nil, err
	}
	finishDecode(d, pdu)
	if err := pdu.Validate(); err != nil {
		return pdu, err
	}
	return pdu, nil
}

// DecodeServerIncoming decodes a frame from the server's perspective:
// heartbeat responses and transparent requests. Only needed to decode
// request PDUs for test and debug purposes.
func DecodeServerIncoming(frame []byte) (PDU, error) {
	d, functionCode, err := decodeFrameHeader(frame)
	if err != nil {
		return nil, err
	}
	var pdu PDU
	switch functionCode {
	case FunctionHeartbeat:
		pdu, err = decodeHeartbeatResponse(d)
	case FunctionTransparent:
		pdu, err = decodeTransparentRequest(d)
	default:
		return nil, &InvalidFrameError{
			Message: fmt.Sprintf("unknown function code 0x%02x for server", functionCode),
			Frame:   frame,
		}
	}
	if err != nil {
		return nil, err
	}
	finishDecode(d, pdu)
	if err := pdu.Validate(); err != nil {
		return pdu, err
	}
	return pdu, nil
}

func finishDecode(d *PayloadDecoder, pdu PDU) {
	if !d.DecodingComplete() {
		logf("decoder did not fully consume frame for %s: decoded %db of %db, remaining: [%x]",
			pdu, d.DecodedBytes(), d.PayloadSize(), d.RemainingPayload())
	}
}

// package-level logger, nil by default, held atomically so SetLogger is safe
// to call while a client's loops are running

var pkgLogger atomic.Pointer[log.Logger]

// SetLogger directs library diagnostics to the given writer. Pass nil to
// disable logging entirely.
func SetLogger(w io.Writer) {
	if w == nil {
		pkgLogger.Store(nil)
		return
	}
	pkgLogger.Store(log.New(w, "[GIV] ", log.LstdFlags))
}

func logf(format string, v ...interface{}) {
	if l := pkgLogger.Load(); l != nil {
		l.Printf(format, v...)
	}
}
