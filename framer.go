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

import "bytes"

// frameStartMarker is the constant prefix of every frame: the fixed
// transaction marker 0x5959 followed by the protocol marker 0x0001. Because
// both header fields are static, the framer scans for this sequence to find
// candidate frames in the byte stream.
var frameStartMarker = []byte{0x59, 0x59, 0x00, 0x01}

// maxPlausibleHeaderLen bounds the header length field during
// resynchronisation; anything larger is assumed to be corruption.
const maxPlausibleHeaderLen = 300

// DecodeResult is one item yielded by the framer: either a decoded PDU or the
// decode error for a single malformed frame. Framing never fails outright on
// a bad frame; the error is yielded and scanning continues.
type DecodeResult struct {
	PDU PDU
	Err error
}

// Framer turns an arbitrary incoming byte stream into a sequence of complete
// PDU frames, resynchronising on corruption.
//
// Incoming chunks are appended to an internal buffer, which may at any point
// hold several complete frames followed by a partial one. The framer
// repeatedly scans for the start marker, sanity checks the header, and
// extracts frames until the buffer runs short, so frames split across chunks
// and multiple frames per chunk are both handled.
type Framer struct {
	buffer []byte
	decode func([]byte) (PDU, error)
}

// NewClientFramer creates a framer decoding messages a client receives:
// heartbeat requests and transparent responses.
func NewClientFramer() *Framer {
	return &Framer{decode: DecodeClientIncoming}
}

// NewServerFramer creates a framer decoding messages a server receives:
// heartbeat responses and transparent requests. Used for test/debug decoding
// of request streams.
func NewServerFramer() *Framer {
	return &Framer{decode: DecodeServerIncoming}
}

// Decode appends data to the internal buffer and extracts every complete
// frame currently available, in order.
func (f *Framer) Decode(data []byte) []DecodeResult {
	f.buffer = append(f.buffer, data...)
	var results []DecodeResult
	for len(f.buffer) >= MinFrameLength {
		offset := bytes.Index(f.buffer, frameStartMarker)
		if offset < 0 {
			logf("no frame header found, awaiting more data")
			break
		}
		if offset > 0 {
			logf("candidate frame found %d bytes into buffer, discarding leading garbage: 0x%x",
				offset, f.buffer[:offset])
			f.buffer = f.buffer[offset:]
			continue
		}

		// A second marker implausibly close behind the first means the
		// current candidate is truncated; skip forward to the next one.
		next := bytes.Index(f.buffer[1:], frameStartMarker)
		if next >= 0 && next+1 < MinFrameLength {
			logf("next frame start found implausibly near (%db), current frame likely corrupt", next+1)
			f.buffer = f.buffer[next+1:]
			continue
		}

		headerLen := int(f.buffer[4])<<8 | int(f.buffer[5])
		unitID := f.buffer[6]
		functionCode := f.buffer[7]
		if headerLen > maxPlausibleHeaderLen || unitID > 1 ||
			(functionCode != FunctionHeartbeat && functionCode != FunctionTransparent) {
			logf("unexpected header values (len=%04x, u_id=%02x, f_id=%02x), discarding candidate frame",
				headerLen, unitID, functionCode)
			f.buffer = f.buffer[4:]
			continue
		}

		frameLen := 6 + headerLen
		if len(f.buffer) < frameLen {
			logf("buffer (%db) insufficient for frame of length %db, awaiting more data",
				len(f.buffer), frameLen)
			break
		}

		frame := make([]byte, frameLen)
		copy(frame, f.buffer[:frameLen])
		f.buffer = f.buffer[frameLen:]
		pdu, err := f.decode(frame)
		results = append(results, DecodeResult{PDU: pdu, Err: err})
	}
	return results
}

// BufferedBytes returns how many bytes are waiting for more data.
func (f *Framer) BufferedBytes() int {
	return len(f.buffer)
}

// Reset discards any partially buffered data, e.g. after a reconnect.
func (f *Framer) Reset() {
	f.buffer = nil
}
