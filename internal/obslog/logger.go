// Copyright 2025 AxonFlow
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

// Package obslog provides structured JSON logging for the mediator.
//
// Every log entry is a single-line JSON object written to stdout so that
// it can be consumed directly by a log aggregator. Unlike a general logging
// facade, obslog has exactly one required piece of context per entry: the
// component emitting it (analyzer, policy, budget, audit, driver, ...).
package obslog

import (
	"encoding/json"
	"log"
	"os"
	"time"
)

// Level is the severity of a log entry.
type Level string

const (
	Debug Level = "DEBUG"
	Info  Level = "INFO"
	Warn  Level = "WARN"
	Error Level = "ERROR"
)

// Logger emits structured log entries for one component.
type Logger struct {
	Component string
}

// Entry is the JSON shape written for every log line.
type Entry struct {
	Timestamp string         `json:"timestamp"`
	Level     Level          `json:"level"`
	Component string         `json:"component"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// New creates a Logger for the given component name.
func New(component string) *Logger {
	return &Logger{Component: component}
}

func (l *Logger) emit(level Level, message string, fields map[string]any) {
	entry := Entry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level,
		Component: l.Component,
		Message:   message,
		Fields:    fields,
	}

	data, err := json.Marshal(entry)
	if err != nil {
		log.Printf("obslog: failed to marshal entry: %v", err)
		return
	}

	os.Stdout.Write(append(data, '\n'))
}

// Debug logs a debug-level message.
func (l *Logger) Debug(message string, fields map[string]any) {
	l.emit(Debug, message, fields)
}

// Info logs an info-level message.
func (l *Logger) Info(message string, fields map[string]any) {
	l.emit(Info, message, fields)
}

// Warn logs a warn-level message.
func (l *Logger) Warn(message string, fields map[string]any) {
	l.emit(Warn, message, fields)
}

// Error logs an error-level message. err, if non-nil, is folded into fields.
func (l *Logger) Error(message string, err error, fields map[string]any) {
	if err != nil {
		if fields == nil {
			fields = map[string]any{}
		}
		fields["error"] = err.Error()
	}
	l.emit(Error, message, fields)
}
