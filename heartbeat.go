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

// HeartbeatRequest is pushed by the data adapter every few minutes to check
// liveness of the client. It is not a reply to anything the client sent; the
// only valid client behaviour is to echo a HeartbeatResponse with the same
// adapter type within a few seconds, otherwise the adapter drops the socket.
type HeartbeatRequest struct {
	DataAdapterSerialNumber string
	DataAdapterType         uint8
}

func (r *HeartbeatRequest) FunctionCode() uint8 { return FunctionHeartbeat }

func (r *HeartbeatRequest) Validate() error { return nil }

func (r *HeartbeatRequest) Encode() ([]byte, error) {
	return encodeHeartbeat(r.DataAdapterSerialNumber, r.DataAdapterType), nil
}

func (r *HeartbeatRequest) ShapeHash() uint64 {
	return shapeHash(false, FunctionHeartbeat, 0, 0, uint16(r.DataAdapterType), 0)
}

func (r *HeartbeatRequest) String() string {
	return fmt.Sprintf("1/HeartbeatRequest(data_adapter_serial_number=%s data_adapter_type=%d)",
		r.DataAdapterSerialNumber, r.DataAdapterType)
}

// ExpectedResponse creates the echo the client must send back.
func (r *HeartbeatRequest) ExpectedResponse() *HeartbeatResponse {
	return &HeartbeatResponse{
		DataAdapterSerialNumber: r.DataAdapterSerialNumber,
		DataAdapterType:         r.DataAdapterType,
	}
}

// HeartbeatResponse is returned by the client to confirm liveness.
type HeartbeatResponse struct {
	DataAdapterSerialNumber string
	DataAdapterType         uint8
}

func (r *HeartbeatResponse) FunctionCode() uint8 { return FunctionHeartbeat }

func (r *HeartbeatResponse) Validate() error { return nil }

func (r *HeartbeatResponse) Encode() ([]byte, error) {
	return encodeHeartbeat(r.DataAdapterSerialNumber, r.DataAdapterType), nil
}

func (r *HeartbeatResponse) ShapeHash() uint64 {
	return shapeHash(true, FunctionHeartbeat, 0, 0, uint16(r.DataAdapterType), 0)
}

func (r *HeartbeatResponse) String() string {
	return fmt.Sprintf("1/HeartbeatResponse(data_adapter_serial_number=%s data_adapter_type=%d)",
		r.DataAdapterSerialNumber, r.DataAdapterType)
}

func encodeHeartbeat(serial string, adapterType uint8) []byte {
	if serial == "" {
		serial = DefaultAdapterSerial
	}
	e := NewPayloadEncoder()
	e.AddString(serial, 10)
	e.AddUint8(adapterType)
	return encodeFrame(FunctionHeartbeat, e.Payload())
}

func decodeHeartbeatRequest(d *PayloadDecoder) (*HeartbeatRequest, error) {
	serial := d.DecodeString(10)
	adapterType := d.DecodeUint8()
	if err := d.Err(); err != nil {
		return nil, &InvalidFrameError{Message: err.Error()}
	}
	return &HeartbeatRequest{DataAdapterSerialNumber: serial, DataAdapterType: adapterType}, nil
}

func decodeHeartbeatResponse(d *PayloadDecoder) (*HeartbeatResponse, error) {
	serial := d.DecodeString(10)
	adapterType := d.DecodeUint8()
	if err := d.Err(); err != nil {
		return nil, &InvalidFrameError{Message: err.Error()}
	}
	return &HeartbeatResponse{DataAdapterSerialNumber: serial, DataAdapterType: adapterType}, nil
}
