package givenergy

import (
	"errors"
	"io"
	"strings"
	"testing"
)

func TestCommunicationErrorUnwrap(t *testing.T) {
	err := &CommunicationError{Message: "reading frame", Cause: io.EOF}
	if !errors.Is(err, io.EOF) {
		t.Error("wrapped cause not reachable via errors.Is")
	}
	if !strings.Contains(err.Error(), "reading frame") || !strings.Contains(err.Error(), "EOF") {
		t.Errorf("Error() = %q", err.Error())
	}
	bare := &CommunicationError{Message: "client is closed"}
	if bare.Error() != "communication error: client is closed" {
		t.Errorf("Error() = %q", bare.Error())
	}
}

func TestInvalidPduStateErrorIncludesPDU(t *testing.T) {
	err := &InvalidPduStateError{
		Message: "register count must be in (0,60]",
		PDU:     NewReadInputRegistersRequest(0x32, 0, 0),
	}
	if !strings.Contains(err.Error(), "ReadInputRegistersRequest") {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestErrorTypesAreDistinguishable(t *testing.T) {
	var timeout *TimeoutError
	var comm *CommunicationError
	err := error(&TimeoutError{Message: "no response"})
	if !errors.As(err, &timeout) {
		t.Error("TimeoutError not matched by errors.As")
	}
	if errors.As(err, &comm) {
		t.Error("TimeoutError matched as CommunicationError")
	}
	if !strings.HasPrefix(err.Error(), "timeout: ") {
		t.Errorf("Error() = %q", err.Error())
	}
}
