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
	"encoding/binary"
	"fmt"
	"strings"
)

// PayloadDecoder is a cursor-based reader over an immutable byte buffer.
// All multi-byte values are big-endian. Reading past the end of the buffer
// sets a sticky length-mismatch error instead of returning garbage; callers
// check Err once after the sequence of reads.
type PayloadDecoder struct {
	payload []byte
	pointer int
	err     error
}

// NewPayloadDecoder creates a decoder over the given payload.
func NewPayloadDecoder(payload []byte) *PayloadDecoder {
	return &PayloadDecoder{payload: payload}
}

func (d *PayloadDecoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if d.RemainingBytes() < n {
		d.err = fmt.Errorf("decode requires %d more bytes, %d bytes remain",
			n-d.RemainingBytes(), d.RemainingBytes())
		return nil
	}
	handle := d.payload[d.pointer : d.pointer+n]
	d.pointer += n
	return handle
}

// DecodeUint8 decodes an 8-bit unsigned int from the buffer.
func (d *PayloadDecoder) DecodeUint8() uint8 {
	b := d.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

// DecodeUint16 decodes a 16-bit big-endian unsigned int from the buffer.
func (d *PayloadDecoder) DecodeUint16() uint16 {
	b := d.take(2)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint16(b)
}

// DecodeUint32 decodes a 32-bit big-endian unsigned int from the buffer.
func (d *PayloadDecoder) DecodeUint32() uint32 {
	b := d.take(4)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

// DecodeUint64 decodes a 64-bit big-endian unsigned int from the buffer.
func (d *PayloadDecoder) DecodeUint64() uint64 {
	b := d.take(8)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

// DecodeString decodes a fixed-length Latin-1/ASCII string from the buffer.
func (d *PayloadDecoder) DecodeString(size int) string {
	b := d.take(size)
	if b == nil {
		return ""
	}
	return string(b)
}

// Err returns the first decoding error encountered, or nil.
func (d *PayloadDecoder) Err() error {
	return d.err
}

// DecodingComplete reports whether the payload has been completely decoded.
func (d *PayloadDecoder) DecodingComplete() bool {
	return d.pointer == len(d.payload)
}

// PayloadSize returns the number of bytes the payload consists of.
func (d *PayloadDecoder) PayloadSize() int {
	return len(d.payload)
}

// DecodedBytes returns the number of payload bytes decoded so far.
func (d *PayloadDecoder) DecodedBytes() int {
	return d.pointer
}

// RemainingBytes returns the number of payload bytes not yet decoded.
func (d *PayloadDecoder) RemainingBytes() int {
	return len(d.payload) - d.pointer
}

// RemainingPayload returns the unprocessed tail of the payload.
func (d *PayloadDecoder) RemainingPayload() []byte {
	return d.payload[d.pointer:]
}

// PayloadEncoder accumulates sequential typed fields into a growable buffer.
// All multi-byte values are big-endian.
type PayloadEncoder struct {
	payload []byte
}

// NewPayloadEncoder creates an empty encoder.
func NewPayloadEncoder() *PayloadEncoder {
	return &PayloadEncoder{}
}

// Reset discards the buffer contents.
func (e *PayloadEncoder) Reset() {
	e.payload = e.payload[:0]
}

// Payload returns the accumulated buffer.
func (e *PayloadEncoder) Payload() []byte {
	return e.payload
}

// CRC calculates a Modbus-compatible CRC over the current buffer contents,
// already in on-wire byte order.
func (e *PayloadEncoder) CRC() uint16 {
	return CRC16(e.payload)
}

// AddUint8 appends an 8-bit unsigned int to the buffer.
func (e *PayloadEncoder) AddUint8(value uint8) {
	e.payload = append(e.payload, value)
}

// AddUint16 appends a 16-bit big-endian unsigned int to the buffer.
func (e *PayloadEncoder) AddUint16(value uint16) {
	e.payload = binary.BigEndian.AppendUint16(e.payload, value)
}

// AddUint32 appends a 32-bit big-endian unsigned int to the buffer.
func (e *PayloadEncoder) AddUint32(value uint32) {
	e.payload = binary.BigEndian.AppendUint32(e.payload, value)
}

// AddUint64 appends a 64-bit big-endian unsigned int to the buffer.
func (e *PayloadEncoder) AddUint64(value uint64) {
	e.payload = binary.BigEndian.AppendUint64(e.payload, value)
}

// AddString appends a fixed-length string to the buffer. Longer values keep
// their trailing characters, shorter values are left-padded with '*'. This
// matches how the data adapter pads serial numbers.
func (e *PayloadEncoder) AddString(value string, length int) {
	if len(value) > length {
		value = value[len(value)-length:]
	}
	if len(value) < length {
		value = strings.Repeat("*", length-len(value)) + value
	}
	e.payload = append(e.payload, value...)
}
