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

// InvalidFrameError indicates a message could not be extracted from the frame
// buffer. The framer recovers by resynchronising on the next start marker, so
// this is never fatal to the connection.
type InvalidFrameError struct {
	Message string
	Frame   []byte
}

func (e *InvalidFrameError) Error() string {
	return fmt.Sprintf("invalid frame: %s", e.Message)
}

// InvalidPduStateError indicates a decoded or about-to-be-encoded PDU violates
// a structural invariant (count mismatch, CRC mismatch, unsafe write target).
type InvalidPduStateError struct {
	Message string
	PDU     PDU
}

func (e *InvalidPduStateError) Error() string {
	if e.PDU != nil {
		return fmt.Sprintf("invalid PDU state: %s: %s", e.Message, e.PDU)
	}
	return fmt.Sprintf("invalid PDU state: %s", e.Message)
}

// CommunicationError indicates a socket-level failure. It is fatal to the
// current connection and triggers a client-side close.
type CommunicationError struct {
	Message string
	Cause   error
}

func (e *CommunicationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("communication error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("communication error: %s", e.Message)
}

func (e *CommunicationError) Unwrap() error {
	return e.Cause
}

// TimeoutError indicates no matching response arrived within the timeout
// budget after exhausting all retries.
type TimeoutError struct {
	Message string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout: %s", e.Message)
}
