// Package common provides structured logging for the forge build engine.
// This file layers run/target/phase-aware context on top of logrus so a
// worker's log lines can always be traced back to the build run, target,
// and lifecycle phase that produced them.
package common

import (
	"forge.evalgo.org/version"
	"github.com/sirupsen/logrus"
)

// ContextLogger carries an accumulating set of structured fields across a
// chain of WithField/WithFields calls, the way a request-scoped logger
// would in an HTTP service, generalized here to a build run.
type ContextLogger struct {
	logger *logrus.Logger
	fields logrus.Fields
}

// NewContextLogger creates a new context-aware logger with base fields.
func NewContextLogger(logger *logrus.Logger, fields map[string]interface{}) *ContextLogger {
	if logger == nil {
		logger = Logger
	}

	baseFields := make(logrus.Fields)
	for k, v := range fields {
		baseFields[k] = v
	}

	return &ContextLogger{
		logger: logger,
		fields: baseFields,
	}
}

// WithField adds a single field to the logger context.
func (cl *ContextLogger) WithField(key string, value interface{}) *ContextLogger {
	newFields := make(logrus.Fields)
	for k, v := range cl.fields {
		newFields[k] = v
	}
	newFields[key] = value

	return &ContextLogger{
		logger: cl.logger,
		fields: newFields,
	}
}

// WithFields adds multiple fields to the logger context.
func (cl *ContextLogger) WithFields(fields map[string]interface{}) *ContextLogger {
	newFields := make(logrus.Fields)
	for k, v := range cl.fields {
		newFields[k] = v
	}
	for k, v := range fields {
		newFields[k] = v
	}

	return &ContextLogger{
		logger: cl.logger,
		fields: newFields,
	}
}

// WithError adds an error to the logger context.
func (cl *ContextLogger) WithError(err error) *ContextLogger {
	return cl.WithField("error", err.Error())
}

// WithRun tags every subsequent log line with the build run that produced
// it, so lines from concurrent "forge build" invocations sharing the same
// workspace (e.g. CI retries) can be told apart in aggregated logs.
func (cl *ContextLogger) WithRun(runID string) *ContextLogger {
	return cl.WithField("run_id", runID)
}

// WithTarget tags every subsequent log line with the target it concerns,
// the field a worker's cache/action/executor log lines key on.
func (cl *ContextLogger) WithTarget(id string) *ContextLogger {
	return cl.WithField("target", id)
}

// WithPhase tags every subsequent log line with the build lifecycle phase
// it was emitted from (e.g. "cache-lookup", "action-cache", "execute",
// "commit"), so a single target's lines can be ordered without timestamps.
func (cl *ContextLogger) WithPhase(phase string) *ContextLogger {
	return cl.WithField("phase", phase)
}

// Debug logs a debug message.
func (cl *ContextLogger) Debug(msg string) {
	cl.logger.WithFields(cl.fields).Debug(msg)
}

// Debugf logs a formatted debug message.
func (cl *ContextLogger) Debugf(format string, args ...interface{}) {
	cl.logger.WithFields(cl.fields).Debugf(format, args...)
}

// Info logs an info message.
func (cl *ContextLogger) Info(msg string) {
	cl.logger.WithFields(cl.fields).Info(msg)
}

// Infof logs a formatted info message.
func (cl *ContextLogger) Infof(format string, args ...interface{}) {
	cl.logger.WithFields(cl.fields).Infof(format, args...)
}

// Warn logs a warning message.
func (cl *ContextLogger) Warn(msg string) {
	cl.logger.WithFields(cl.fields).Warn(msg)
}

// Warnf logs a formatted warning message.
func (cl *ContextLogger) Warnf(format string, args ...interface{}) {
	cl.logger.WithFields(cl.fields).Warnf(format, args...)
}

// Error logs an error message.
func (cl *ContextLogger) Error(msg string) {
	cl.logger.WithFields(cl.fields).Error(msg)
}

// Errorf logs a formatted error message.
func (cl *ContextLogger) Errorf(format string, args ...interface{}) {
	cl.logger.WithFields(cl.fields).Errorf(format, args...)
}

// Fatal logs a fatal message and exits.
func (cl *ContextLogger) Fatal(msg string) {
	cl.logger.WithFields(cl.fields).Fatal(msg)
}

// Fatalf logs a formatted fatal message and exits.
func (cl *ContextLogger) Fatalf(format string, args ...interface{}) {
	cl.logger.WithFields(cl.fields).Fatalf(format, args...)
}

// ServiceLogger creates a logger pre-configured with service metadata.
// Automatically includes the forge engine version for debugging purposes.
func ServiceLogger(serviceName, serviceVersion string) *ContextLogger {
	forgeVersion := version.GetForgeVersion()
	return NewContextLogger(Logger, map[string]interface{}{
		"service":       serviceName,
		"version":       serviceVersion,
		"forge_version": forgeVersion,
	})
}
