// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package observability times pipeline stages and emits one structured
// record per operation.
package observability

import (
	"fmt"
	"strings"
	"time"

	"blackout/internal/logging"

	"go.uber.org/zap"
)

// StandardObserver implements observability for all components
type StandardObserver struct {
	level  ObservabilityLevel
	logger *logging.Logger
}

type ObservabilityLevel int

const (
	ObservabilityOff     ObservabilityLevel = 0
	ObservabilityMetrics ObservabilityLevel = 1
	ObservabilityDebug   ObservabilityLevel = 2
)

// String returns the config name of the level
func (l ObservabilityLevel) String() string {
	switch l {
	case ObservabilityOff:
		return "off"
	case ObservabilityMetrics:
		return "metrics"
	case ObservabilityDebug:
		return "debug"
	default:
		return "unknown"
	}
}

// ParseLevel converts a config string to an ObservabilityLevel.
func ParseLevel(s string) (ObservabilityLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off", "":
		return ObservabilityOff, nil
	case "metrics":
		return ObservabilityMetrics, nil
	case "debug":
		return ObservabilityDebug, nil
	}
	return ObservabilityOff, fmt.Errorf("unknown observability level %q", s)
}

// NewStandardObserver creates observability component
func NewStandardObserver(level ObservabilityLevel, logger *logging.Logger) *StandardObserver {
	if logger == nil {
		logger = logging.Nop()
	}
	return &StandardObserver{
		level:  level,
		logger: logger.WithComponent("observer"),
	}
}

// Level returns the configured level.
func (o *StandardObserver) Level() ObservabilityLevel {
	if o == nil {
		return ObservabilityOff
	}
	return o.level
}

// StartTiming returns a function to complete timing. It is safe to call on
// a nil observer.
func (o *StandardObserver) StartTiming(component, operation, subject string) func(success bool, metadata map[string]interface{}) {
	if o == nil || o.level == ObservabilityOff {
		return func(bool, map[string]interface{}) {}
	}
	start := time.Now()

	return func(success bool, metadata map[string]interface{}) {
		o.LogOperation(StandardObservabilityData{
			Component:  component,
			Operation:  operation,
			Subject:    subject,
			DurationMs: time.Since(start).Milliseconds(),
			Success:    success,
			Metadata:   metadata,
		})
	}
}

// LogOperation logs operation data. Metadata is only emitted at debug level.
func (o *StandardObserver) LogOperation(data StandardObservabilityData) {
	if o == nil || o.level == ObservabilityOff {
		return
	}

	fields := []zap.Field{
		zap.String("stage_component", data.Component),
		zap.String("operation", data.Operation),
		zap.Int64("duration_ms", data.DurationMs),
		zap.Bool("success", data.Success),
	}
	if data.Subject != "" {
		fields = append(fields, zap.String("subject", data.Subject))
	}
	if data.Error != "" {
		fields = append(fields, zap.String("error", data.Error))
	}

	if o.level == ObservabilityDebug {
		if len(data.Metadata) > 0 {
			fields = append(fields, zap.Any("metadata", data.Metadata))
		}
		o.logger.Debug("operation", fields...)
		return
	}
	o.logger.Info("operation", fields...)
}

// StandardObservabilityData for all components
type StandardObservabilityData struct {
	Component  string                 `json:"component"`
	Operation  string                 `json:"operation"`
	Subject    string                 `json:"subject,omitempty"`
	DurationMs int64                  `json:"duration_ms,omitempty"`
	Success    bool                   `json:"success"`
	Error      string                 `json:"error,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}
