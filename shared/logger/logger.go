// Copyright 2025 b1link
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// LogLevel represents the severity of a log entry
type LogLevel string

const (
	DEBUG LogLevel = "DEBUG"
	INFO  LogLevel = "INFO"
	WARN  LogLevel = "WARN"
	ERROR LogLevel = "ERROR"
)

var levelRank = map[LogLevel]int{DEBUG: 0, INFO: 1, WARN: 2, ERROR: 3}

// Logger writes structured JSON log lines
type Logger struct {
	Component  string
	InstanceID string
	Container  string

	mu       sync.Mutex
	out      io.Writer
	minLevel LogLevel
}

// LogEntry is one JSON log line
type LogEntry struct {
	Timestamp  string                 `json:"timestamp"`
	Level      LogLevel               `json:"level"`
	Component  string                 `json:"component"`
	InstanceID string                 `json:"instance_id"`
	Container  string                 `json:"container"`
	ClientID   string                 `json:"client_id"`
	RequestID  string                 `json:"request_id,omitempty"`
	Message    string                 `json:"message"`
	Fields     map[string]interface{} `json:"fields,omitempty"`
}

// New creates a Logger for the component writing to stdout
func New(component string) *Logger {
	return NewWithWriter(component, os.Stdout)
}

// NewWithWriter creates a Logger writing to w
func NewWithWriter(component string, w io.Writer) *Logger {
	instanceID := os.Getenv("INSTANCE_ID")
	if instanceID == "" {
		instanceID = "unknown"
	}

	container, err := os.Hostname()
	if err != nil {
		container = "unknown"
	}

	minLevel := LogLevel(strings.ToUpper(os.Getenv("LOG_LEVEL")))
	if _, ok := levelRank[minLevel]; !ok {
		minLevel = INFO
	}

	return &Logger{
		Component:  component,
		InstanceID: instanceID,
		Container:  container,
		out:        w,
		minLevel:   minLevel,
	}
}

// SetLevel changes the minimum level written
func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := levelRank[level]; ok {
		l.minLevel = level
	}
}

// Log writes one entry if level is at or above the minimum level
func (l *Logger) Log(level LogLevel, clientID, requestID, message string, fields map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if levelRank[level] < levelRank[l.minLevel] {
		return
	}

	entry := LogEntry{
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
		Level:      level,
		Component:  l.Component,
		InstanceID: l.InstanceID,
		Container:  l.Container,
		ClientID:   clientID,
		RequestID:  requestID,
		Message:    message,
		Fields:     fields,
	}

	data, err := json.Marshal(entry)
	if err != nil {
		fmt.Fprintf(l.out, "ERROR: failed to marshal log entry %q: %v\n", message, err)
		return
	}
	data = append(data, '\n')
	_, _ = l.out.Write(data)
}

// Info logs an informational message
func (l *Logger) Info(clientID, requestID, message string, fields map[string]interface{}) {
	l.Log(INFO, clientID, requestID, message, fields)
}

// Error logs an error message
func (l *Logger) Error(clientID, requestID, message string, fields map[string]interface{}) {
	l.Log(ERROR, clientID, requestID, message, fields)
}

// Warn logs a warning message
func (l *Logger) Warn(clientID, requestID, message string, fields map[string]interface{}) {
	l.Log(WARN, clientID, requestID, message, fields)
}

// Debug logs a debug message
func (l *Logger) Debug(clientID, requestID, message string, fields map[string]interface{}) {
	l.Log(DEBUG, clientID, requestID, message, fields)
}

// InfoWithDuration logs an info message with a duration_ms field
func (l *Logger) InfoWithDuration(clientID, requestID, message string, durationMS float64, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["duration_ms"] = durationMS
	l.Info(clientID, requestID, message, fields)
}

// ErrorWithCode logs an error with a status code
func (l *Logger) ErrorWithCode(clientID, requestID, message string, statusCode int, err error, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["status_code"] = statusCode
	if err != nil {
		fields["error"] = err.Error()
	}
	l.Error(clientID, requestID, message, fields)
}
