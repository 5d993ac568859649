// Package errors provides centralized error definitions and error handling
// utilities for the rostra codebase. It defines the orchestrator error
// taxonomy, wire error codes, error constructors with context wrapping, and
// error classification helpers.
//
// # Error Types
//
// The package provides four error families, matching how failures propagate
// through the orchestrator:
//
//   - ProtocolError: a client sent a malformed or illegal event (wrong turn,
//     wrong phase, stale phase view, unknown participant, oversized payload).
//     Reported to the originating client only, never broadcast.
//   - TransportError: the underlying connection failed (disconnect, timeout).
//     Recovered through presence/resync, never fatal to the session.
//   - MediaError: an audio frame was rejected (oversized, malformed).
//     Sender-local and non-fatal to the textual protocol.
//   - PersistenceError: the session store failed. Fatal to the mutation in
//     progress and retryable; in-memory state must not advance past it.
//
// # Usage
//
// Creating errors:
//
//	err := errors.NewProtocolError(errors.CodeNotYourTurn, "speech submitted out of turn").
//		WithSession("sess-1").WithParticipant("user-2")
//
//	err := errors.NewPersistenceError("save failed", cause).WithSession("sess-1")
//
// Checking errors:
//
//	if errors.HasCode(err, errors.CodePhaseConflict) { ... }
//
//	var protoErr *errors.ProtocolError
//	if errors.As(err, &protoErr) { ... }
//
//	if errors.IsRetryable(err) { ... }
//
// Translating for the wire:
//
//	code, msg := errors.Wire(err) // always yields a code/message pair
//
// # Error Classification
//
// Errors can be classified by severity and behavior:
//   - Retryable: transient errors that may succeed on retry
//   - UserFacing: errors safe to send to clients (vs internal errors)
//   - Severity: Debug, Info, Warning, Error, Critical
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Wire Codes
// -----------------------------------------------------------------------------

// Code is a stable machine-readable error code carried on error events sent
// to clients. Codes are part of the protocol contract and never change.
type Code string

const (
	// CodeNotYourTurn rejects a speech event from anyone but the current speaker.
	CodeNotYourTurn Code = "NOT_YOUR_TURN"
	// CodeInvalidPhaseForEvent rejects an event that is not legal in the current phase.
	CodeInvalidPhaseForEvent Code = "INVALID_PHASE_FOR_EVENT"
	// CodePhaseConflict rejects a phase transition whose fromPhase is stale or
	// whose toPhase is not the defined successor.
	CodePhaseConflict Code = "PHASE_CONFLICT"
	// CodeUnknownParticipant rejects an event whose participant id is not in the roster.
	CodeUnknownParticipant Code = "UNKNOWN_PARTICIPANT"
	// CodePayloadTooLarge rejects a textual event exceeding the content bound.
	CodePayloadTooLarge Code = "PAYLOAD_TOO_LARGE"
	// CodeInvalidPayload rejects a textual event whose content is empty or malformed.
	CodeInvalidPayload Code = "INVALID_PAYLOAD"
	// CodeChunkTooLarge rejects an audio frame exceeding the frame size bound.
	CodeChunkTooLarge Code = "CHUNK_TOO_LARGE"
	// CodeInvalidAudio rejects a malformed audio frame.
	CodeInvalidAudio Code = "INVALID_AUDIO"
	// CodeUnknownSession signals that no session exists for the requested id.
	CodeUnknownSession Code = "UNKNOWN_SESSION"
	// CodePersistenceFailed signals a store failure; the mutation did not apply
	// and may be retried.
	CodePersistenceFailed Code = "PERSISTENCE_FAILED"
	// CodeInternal is the fallback code for errors with no protocol mapping.
	CodeInternal Code = "INTERNAL"
)

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Session-related sentinel errors
var (
	// ErrSessionNotFound indicates that a session could not be found.
	ErrSessionNotFound = New("session not found")
	// ErrSessionExists indicates that a session with the same id already exists.
	ErrSessionExists = New("session already exists")
	// ErrSessionCompleted indicates that a session is frozen and rejects mutations.
	ErrSessionCompleted = New("session already completed")
)

// Store-related sentinel errors
var (
	// ErrVersionConflict indicates an optimistic-concurrency save lost the race.
	ErrVersionConflict = New("session version conflict")
	// ErrStoreClosed indicates the store has been shut down.
	ErrStoreClosed = New("session store closed")
)

// Transport-related sentinel errors
var (
	// ErrConnectionClosed indicates the peer connection has gone away.
	ErrConnectionClosed = New("connection closed")
	// ErrOriginNotAllowed indicates the websocket origin failed the allowlist check.
	ErrOriginNotAllowed = New("origin not allowed")
	// ErrRegistryClosed indicates the session registry is shutting down.
	ErrRegistryClosed = New("session registry closed")
)

// General sentinel errors
var (
	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = New("operation timed out")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// OrchestratorError is the base interface for all rostra errors.
// It extends the standard error interface with additional methods for
// error handling and classification.
type OrchestratorError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	// This is used by errors.Is() for error comparison.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the error is transient and the operation
	// may succeed on retry.
	IsRetryable() bool

	// IsUserFacing returns true if the error is safe to send to clients.
	IsUserFacing() bool
}

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	severity   Severity
	retryable  bool
	userFacing bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// IsUserFacing returns whether the error is safe to send to clients.
func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

// -----------------------------------------------------------------------------
// Protocol Errors
// -----------------------------------------------------------------------------

// ProtocolError represents a malformed or illegal client event. It is
// reported only to the originating client and never broadcast to the room.
//
// Example:
//
//	err := errors.NewProtocolError(errors.CodeNotYourTurn, "speech submitted out of turn")
//	err = err.WithSession("sess-1").WithParticipant("user-2")
//	fmt.Println(err) // "protocol error [code=NOT_YOUR_TURN, session=sess-1, participant=user-2]: speech submitted out of turn"
type ProtocolError struct {
	baseError
	Code          Code
	SessionID     string
	ParticipantID string
}

// NewProtocolError creates a new ProtocolError with the given wire code.
func NewProtocolError(code Code, message string) *ProtocolError {
	return &ProtocolError{
		baseError: baseError{
			message:    message,
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
		Code: code,
	}
}

// WithSession adds a session ID to the error context.
func (e *ProtocolError) WithSession(id string) *ProtocolError {
	e.SessionID = id
	return e
}

// WithParticipant adds a participant ID to the error context.
func (e *ProtocolError) WithParticipant(id string) *ProtocolError {
	e.ParticipantID = id
	return e
}

// WithCause adds an underlying cause to the error.
func (e *ProtocolError) WithCause(cause error) *ProtocolError {
	e.cause = cause
	return e
}

// WithSeverity sets the error severity.
func (e *ProtocolError) WithSeverity(s Severity) *ProtocolError {
	e.severity = s
	return e
}

// Error returns the formatted error message.
func (e *ProtocolError) Error() string {
	parts := []string{fmt.Sprintf("code=%s", e.Code)}
	if e.SessionID != "" {
		parts = append(parts, fmt.Sprintf("session=%s", e.SessionID))
	}
	if e.ParticipantID != "" {
		parts = append(parts, fmt.Sprintf("participant=%s", e.ParticipantID))
	}

	prefix := fmt.Sprintf("protocol error [%s]", strings.Join(parts, ", "))
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target. A target ProtocolError with an
// empty Code matches any ProtocolError; otherwise codes must agree.
func (e *ProtocolError) Is(target error) bool {
	if other, ok := target.(*ProtocolError); ok {
		return other.Code == "" || other.Code == e.Code
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Transport Errors
// -----------------------------------------------------------------------------

// TransportError represents a connection-level failure (disconnect, read or
// write timeout). It triggers a presence leave but never terminates the
// session; the participant resyncs on reconnect.
//
// Example:
//
//	err := errors.NewTransportError("read failed", io.ErrUnexpectedEOF)
//	err = err.WithSession("sess-1").WithRemoteAddr("203.0.113.9:4821")
type TransportError struct {
	baseError
	SessionID     string
	ParticipantID string
	RemoteAddr    string
}

// NewTransportError creates a new TransportError.
func NewTransportError(message string, cause error) *TransportError {
	return &TransportError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityWarning,
			retryable:  true,
			userFacing: false,
		},
	}
}

// WithSession adds a session ID to the error context.
func (e *TransportError) WithSession(id string) *TransportError {
	e.SessionID = id
	return e
}

// WithParticipant adds a participant ID to the error context.
func (e *TransportError) WithParticipant(id string) *TransportError {
	e.ParticipantID = id
	return e
}

// WithRemoteAddr adds the peer address to the error context.
func (e *TransportError) WithRemoteAddr(addr string) *TransportError {
	e.RemoteAddr = addr
	return e
}

// WithSeverity sets the error severity.
func (e *TransportError) WithSeverity(s Severity) *TransportError {
	e.severity = s
	return e
}

// Error returns the formatted error message.
func (e *TransportError) Error() string {
	var parts []string
	if e.SessionID != "" {
		parts = append(parts, fmt.Sprintf("session=%s", e.SessionID))
	}
	if e.ParticipantID != "" {
		parts = append(parts, fmt.Sprintf("participant=%s", e.ParticipantID))
	}
	if e.RemoteAddr != "" {
		parts = append(parts, fmt.Sprintf("remote=%s", e.RemoteAddr))
	}

	prefix := "transport error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("transport error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *TransportError) Is(target error) bool {
	if _, ok := target.(*TransportError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Media Errors
// -----------------------------------------------------------------------------

// MediaError represents a rejected audio frame. It is sender-local and
// non-fatal: the textual protocol state is unaffected.
//
// Example:
//
//	err := errors.NewMediaError(errors.CodeChunkTooLarge, "frame exceeds size bound")
//	err = err.WithSpeaker("user-1")
type MediaError struct {
	baseError
	Code      Code
	SessionID string
	SpeakerID string
}

// NewMediaError creates a new MediaError with the given wire code.
func NewMediaError(code Code, message string) *MediaError {
	return &MediaError{
		baseError: baseError{
			message:    message,
			severity:   SeverityInfo,
			retryable:  false,
			userFacing: true,
		},
		Code: code,
	}
}

// WithSession adds a session ID to the error context.
func (e *MediaError) WithSession(id string) *MediaError {
	e.SessionID = id
	return e
}

// WithSpeaker adds the sending speaker's ID to the error context.
func (e *MediaError) WithSpeaker(id string) *MediaError {
	e.SpeakerID = id
	return e
}

// WithCause adds an underlying cause to the error.
func (e *MediaError) WithCause(cause error) *MediaError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *MediaError) Error() string {
	parts := []string{fmt.Sprintf("code=%s", e.Code)}
	if e.SessionID != "" {
		parts = append(parts, fmt.Sprintf("session=%s", e.SessionID))
	}
	if e.SpeakerID != "" {
		parts = append(parts, fmt.Sprintf("speaker=%s", e.SpeakerID))
	}

	prefix := fmt.Sprintf("media error [%s]", strings.Join(parts, ", "))
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target. A target MediaError with an
// empty Code matches any MediaError; otherwise codes must agree.
func (e *MediaError) Is(target error) bool {
	if other, ok := target.(*MediaError); ok {
		return other.Code == "" || other.Code == e.Code
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Persistence Errors
// -----------------------------------------------------------------------------

// PersistenceError represents a session-store failure. The mutation in
// progress is aborted and the caller may retry; in-memory state must never
// advance past the store.
//
// Example:
//
//	err := errors.NewPersistenceError("save failed", cause).
//		WithSession("sess-1").WithOp("append-transcript")
type PersistenceError struct {
	baseError
	SessionID string
	Op        string
}

// NewPersistenceError creates a new PersistenceError.
func NewPersistenceError(message string, cause error) *PersistenceError {
	return &PersistenceError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  true,
			userFacing: true,
		},
	}
}

// WithSession adds a session ID to the error context.
func (e *PersistenceError) WithSession(id string) *PersistenceError {
	e.SessionID = id
	return e
}

// WithOp adds the store operation name to the error context.
func (e *PersistenceError) WithOp(op string) *PersistenceError {
	e.Op = op
	return e
}

// WithSeverity sets the error severity.
func (e *PersistenceError) WithSeverity(s Severity) *PersistenceError {
	e.severity = s
	return e
}

// WithRetryable sets whether the error is retryable (default true).
func (e *PersistenceError) WithRetryable(r bool) *PersistenceError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *PersistenceError) Error() string {
	var parts []string
	if e.Op != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Op))
	}
	if e.SessionID != "" {
		parts = append(parts, fmt.Sprintf("session=%s", e.SessionID))
	}

	prefix := "persistence error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("persistence error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *PersistenceError) Is(target error) bool {
	if _, ok := target.(*PersistenceError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if the error represents a transient condition
// that may succeed on retry. This checks for:
//   - Errors implementing OrchestratorError with IsRetryable() returning true
//   - Errors wrapping ErrTimeout
//
// Example:
//
//	if errors.IsRetryable(err) {
//	    time.Sleep(backoff)
//	    return retry(operation)
//	}
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var orchErr OrchestratorError
	if As(err, &orchErr) {
		return orchErr.IsRetryable()
	}

	if Is(err, ErrTimeout) {
		return true
	}

	return false
}

// IsUserFacing returns true if the error is safe to send to clients.
// Protocol, media and persistence errors are user-facing; transport errors
// and unclassified internal errors are not.
//
// Example:
//
//	if errors.IsUserFacing(err) {
//	    conn.SendError(err)
//	} else {
//	    log.Error("internal error", "err", err)
//	}
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}

	var orchErr OrchestratorError
	if As(err, &orchErr) {
		return orchErr.IsUserFacing()
	}

	return false
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement OrchestratorError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	var orchErr OrchestratorError
	if As(err, &orchErr) {
		return orchErr.Severity()
	}

	return SeverityError
}

// IsClientFault returns true if the error was caused by the originating
// client (ProtocolError or MediaError). Client-fault errors are reported to
// the originator only and never treated as session failures.
func IsClientFault(err error) bool {
	if err == nil {
		return false
	}

	var protoErr *ProtocolError
	var mediaErr *MediaError

	return As(err, &protoErr) || As(err, &mediaErr)
}

// CodeOf returns the wire code carried by the error, or CodeInternal when
// the error carries none. Store sentinels map to their protocol equivalents
// so boundary code can translate any error into an error event.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}

	var protoErr *ProtocolError
	if As(err, &protoErr) {
		return protoErr.Code
	}

	var mediaErr *MediaError
	if As(err, &mediaErr) {
		return mediaErr.Code
	}

	var persistErr *PersistenceError
	if As(err, &persistErr) {
		return CodePersistenceFailed
	}

	switch {
	case Is(err, ErrSessionNotFound):
		return CodeUnknownSession
	case Is(err, ErrInvalidInput):
		return CodeInvalidPayload
	case Is(err, ErrVersionConflict), Is(err, ErrStoreClosed):
		return CodePersistenceFailed
	}

	return CodeInternal
}

// HasCode reports whether the error carries the given wire code.
func HasCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// Wire translates any error into a code/message pair for an error event.
// Non-user-facing errors are masked with a generic message so internal
// details never reach clients.
func Wire(err error) (Code, string) {
	if err == nil {
		return "", ""
	}

	code := CodeOf(err)
	if IsUserFacing(err) {
		return code, err.Error()
	}

	switch code {
	case CodeUnknownSession:
		return code, "session not found"
	case CodeInvalidPayload:
		// Input-validation messages are written to be client-safe.
		return code, err.Error()
	case CodePersistenceFailed:
		return code, "temporary storage failure, retry the operation"
	default:
		return CodeInternal, "internal error"
	}
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
//
// Example:
//
//	err := errors.Wrap(baseErr, "failed to route event")
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
//
// Example:
//
//	err := errors.Wrapf(baseErr, "failed to load session %s", sessionID)
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
