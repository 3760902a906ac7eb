// Package bldrerr provides the typed error taxonomy shared by every
// subsystem of the build engine: System, Network, Resource, Environment,
// Build, Config, and Integrity errors, each carrying its own recoverability
// rule for the retry orchestrator.
package bldrerr

import (
	"errors"
	"fmt"
)

// Kind classifies the failure so callers can decide whether to retry,
// surface it to the user, or reset the affected store.
type Kind string

const (
	// KindSystem covers I/O failures, process spawn failures, and timeouts.
	KindSystem Kind = "system"
	// KindNetwork covers transient cache-peer or remote-store unreachability.
	KindNetwork Kind = "network"
	// KindResource covers OOM, file-descriptor exhaustion, and similar limits.
	KindResource Kind = "resource"
	// KindEnvironment covers a missing compiler or wrong toolchain version.
	KindEnvironment Kind = "environment"
	// KindBuild covers compile, link, and test failures.
	KindBuild Kind = "build"
	// KindConfig covers malformed configuration, unknown dependencies, cycles.
	KindConfig Kind = "config"
	// KindIntegrity covers corrupt caches, bad checkpoints, signature mismatches.
	KindIntegrity Kind = "integrity"
)

// recoverable records the default retry eligibility for each kind, per the
// error taxonomy table. Individual errors may override this with WithRecoverable.
var recoverable = map[Kind]bool{
	KindSystem:      true,
	KindNetwork:     true,
	KindResource:    true,
	KindEnvironment: false,
	KindBuild:       false,
	KindConfig:      false,
	KindIntegrity:   false,
}

// Error is the engine's typed error. It wraps an underlying cause and
// attaches structured fields (target id, path, etc.) for diagnostics.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
	Fields  map[string]any

	recoverableOverride *bool
}

// New creates a bare Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap attaches a kind to an existing error, preserving it as the cause.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// With attaches a structured field and returns the same error for chaining.
func (e *Error) With(key string, value any) *Error {
	if e.Fields == nil {
		e.Fields = make(map[string]any, 1)
	}
	e.Fields[key] = value
	return e
}

// WithRecoverable overrides the kind's default recoverability.
func (e *Error) WithRecoverable(recoverable bool) *Error {
	e.recoverableOverride = &recoverable
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the cause to errors.Is / errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Recoverable reports whether the retry orchestrator may re-attempt the
// operation that produced this error.
func (e *Error) Recoverable() bool {
	if e.recoverableOverride != nil {
		return *e.recoverableOverride
	}
	return recoverable[e.Kind]
}

// KindOf extracts the Kind from err, walking the wrap chain. The zero Kind
// ("") is returned if err is nil or carries no *Error in its chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsRecoverable reports whether err is recoverable. Errors that are not a
// *bldrerr.Error are treated as unrecoverable, matching the conservative
// default for unexpected bugs.
func IsRecoverable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Recoverable()
	}
	return false
}

// Recover runs reset when err is (or wraps) an Integrity error. This is the
// single place the "corrupt cache / bad checkpoint is never fatal" rule
// (spec §7) is implemented; callers in cache and checkpoint call it on every
// load path instead of re-deriving the rule.
func Recover(err error, reset func()) {
	if KindOf(err) == KindIntegrity && reset != nil {
		reset()
	}
}
