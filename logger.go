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
	"os"
	"strings"
	"sync"
	"time"
)

// LogLevel defines the severity of a log message.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarning
	LevelError
	LevelNone // disables logging
)

var levelToString = map[LogLevel]string{
	LevelDebug:   "DEBUG",
	LevelInfo:    "INFO",
	LevelWarning: "WARNING",
	LevelError:   "ERROR",
	LevelNone:    "NONE",
}

var stringToLevel = map[string]LogLevel{
	"DEBUG":   LevelDebug,
	"INFO":    LevelInfo,
	"WARNING": LevelWarning,
	"ERROR":   LevelError,
	"NONE":    LevelNone,
}

// LevelWriter is an io.Writer suitable for SetLogger that filters messages
// by severity before forwarding them to an underlying sink. Severity is
// inferred from a "debug:"/"warning:"/"error:" message prefix, defaulting to
// info.
type LevelWriter struct {
	mu     sync.Mutex
	level  LogLevel
	output io.Writer
}

// NewLevelWriter creates a filtering writer. A nil output defaults to
// os.Stdout.
func NewLevelWriter(output io.Writer, level LogLevel) *LevelWriter {
	if output == nil {
		output = os.Stdout
	}
	return &LevelWriter{level: level, output: output}
}

// SetLevel adjusts the filter threshold.
func (l *LevelWriter) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// Level returns the current filter threshold.
func (l *LevelWriter) Level() LogLevel {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// SetLevelFromString adjusts the threshold from its name, e.g. "DEBUG".
func (l *LevelWriter) SetLevelFromString(name string) error {
	if level, ok := stringToLevel[strings.ToUpper(name)]; ok {
		l.SetLevel(level)
		return nil
	}
	return fmt.Errorf("invalid log level %q", name)
}

// Write filters one log line by its inferred severity.
func (l *LevelWriter) Write(p []byte) (int, error) {
	message := string(p)
	level := inferLevel(message)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.level == LevelNone || level < l.level {
		return len(p), nil
	}
	line := fmt.Sprintf("%s [%s] %s\n",
		time.Now().Format(time.RFC3339), levelToString[level], strings.TrimSpace(message))
	return l.output.Write([]byte(line))
}

func inferLevel(message string) LogLevel {
	m := strings.ToUpper(message)
	// strip the log.Logger prefix and timestamp if present
	if i := strings.Index(m, "] "); i >= 0 && i < 12 {
		m = m[i+2:]
	}
	for i := 0; i < len(m); i++ {
		if !(m[i] >= '0' && m[i] <= '9' || m[i] == '/' || m[i] == ':' ||
			m[i] == '.' || m[i] == ' ') {
			m = m[i:]
			break
		}
	}
	switch {
	case strings.HasPrefix(m, "DEBUG:") || strings.HasPrefix(m, "[DEBUG]"):
		return LevelDebug
	case strings.HasPrefix(m, "WARNING:") || strings.HasPrefix(m, "WARN:"):
		return LevelWarning
	case strings.HasPrefix(m, "ERROR:"):
		return LevelError
	default:
		return LevelInfo
	}
}
