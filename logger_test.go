package givenergy

import (
	"bytes"
	"io"
	"strings"
	"sync"
	"testing"
)

func TestInferLevel(t *testing.T) {
	testCases := []struct {
		message  string
		expected LogLevel
	}{
		{message: "debug: decoded 164 bytes", expected: LevelDebug},
		{message: "warning: unexpected padding", expected: LevelWarning},
		{message: "warn: short read", expected: LevelWarning},
		{message: "error: connection lost", expected: LevelError},
		{message: "plain message", expected: LevelInfo},
		{message: "[GIV] 2024/01/02 15:04:05 error: boom", expected: LevelError},
		{message: "[GIV] 2024/01/02 15:04:05 detected 2 battery pack(s)", expected: LevelInfo},
	}
	for _, tc := range testCases {
		if got := inferLevel(tc.message); got != tc.expected {
			t.Errorf("inferLevel(%q) = %v, expected %v", tc.message, got, tc.expected)
		}
	}
}

func TestLevelWriterFilters(t *testing.T) {
	var sink bytes.Buffer
	w := NewLevelWriter(&sink, LevelWarning)

	if _, err := w.Write([]byte("debug: noise")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if _, err := w.Write([]byte("plain info")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if sink.Len() != 0 {
		t.Errorf("messages below the threshold reached the sink: %q", sink.String())
	}

	if _, err := w.Write([]byte("error: boom")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	out := sink.String()
	if !strings.Contains(out, "[ERROR] error: boom") {
		t.Errorf("error line not forwarded: %q", out)
	}

	w.SetLevel(LevelNone)
	sink.Reset()
	w.Write([]byte("error: silenced"))
	if sink.Len() != 0 {
		t.Errorf("NONE level still forwarded: %q", sink.String())
	}
}

func TestLevelWriterSetLevelFromString(t *testing.T) {
	w := NewLevelWriter(&bytes.Buffer{}, LevelInfo)
	if err := w.SetLevelFromString("debug"); err != nil {
		t.Fatalf("SetLevelFromString failed: %v", err)
	}
	if w.Level() != LevelDebug {
		t.Errorf("Level returned %v after SetLevelFromString", w.Level())
	}
	if err := w.SetLevelFromString("loud"); err == nil {
		t.Error("invalid level name accepted")
	}
}

func TestPackageLoggerThroughLevelWriter(t *testing.T) {
	var sink bytes.Buffer
	SetLogger(NewLevelWriter(&sink, LevelInfo))
	defer SetLogger(nil)

	logf("debug: should be filtered")
	logf("plant: first sighting of slave address 0x33")

	out := sink.String()
	if strings.Contains(out, "should be filtered") {
		t.Errorf("debug line passed an info threshold: %q", out)
	}
	if !strings.Contains(out, "first sighting of slave address 0x33") {
		t.Errorf("info line did not reach the sink: %q", out)
	}
}

// SetLogger may be called while a client's loops are logging.
func TestSetLoggerConcurrentWithLogf(t *testing.T) {
	defer SetLogger(nil)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				logf("telemetry refresh complete")
			}
		}
	}()
	for i := 0; i < 200; i++ {
		SetLogger(io.Discard)
		SetLogger(nil)
	}
	close(stop)
	wg.Wait()
}
