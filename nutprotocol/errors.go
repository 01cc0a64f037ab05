package nutprotocol

import (
	"errors"
	"fmt"
)

// Sentinel errors for the NUT protocol.
var (
	// ErrLineTooLong indicates a response line exceeded MaxLineLength.
	ErrLineTooLong = errors.New("line too long")

	// ErrNotConnected indicates an operation on a connection that was never opened or is closed.
	ErrNotConnected = errors.New("not connected")

	// ErrSessionClosed indicates upsd ended the session with OK Goodbye.
	ErrSessionClosed = errors.New("session closed by server")

	// ErrEncryptionRequired indicates forced encryption was refused for a reason
	// none of the known tokens describe.
	ErrEncryptionRequired = errors.New("connection is not encrypted")
)

// ProtocolErrorKind categorizes the error tokens upsd sends.
type ProtocolErrorKind int

const (
	// ErrKindUnrecognized is an error line whose token is not in the known table.
	ErrKindUnrecognized ProtocolErrorKind = iota
	ErrKindAccessDenied
	ErrKindUnknownUPS
	ErrKindVarNotSupported
	ErrKindCmdNotSupported
	ErrKindInvalidArgument
	ErrKindInstCmdFailed
	ErrKindSetFailed
	ErrKindReadOnly
	ErrKindTooLong
	ErrKindFeatureNotSupported
	ErrKindFeatureNotConfigured
	ErrKindAlreadySSLMode
	ErrKindDriverNotConnected
	ErrKindDataStale
	ErrKindAlreadyLoggedIn
	ErrKindInvalidPassword
	ErrKindAlreadySetPassword
	ErrKindInvalidUsername
	ErrKindAlreadySetUsername
	ErrKindUsernameRequired
	ErrKindPasswordRequired
	ErrKindUnknownCommand
	ErrKindInvalidValue
)

var kindDescriptions = map[ProtocolErrorKind]string{
	ErrKindUnrecognized:         "unrecognized server error",
	ErrKindAccessDenied:         "access denied",
	ErrKindUnknownUPS:           "unknown UPS",
	ErrKindVarNotSupported:      "variable not supported",
	ErrKindCmdNotSupported:      "command not supported",
	ErrKindInvalidArgument:      "invalid argument",
	ErrKindInstCmdFailed:        "instant command failed",
	ErrKindSetFailed:            "set failed",
	ErrKindReadOnly:             "variable is read-only",
	ErrKindTooLong:              "value too long",
	ErrKindFeatureNotSupported:  "feature not supported",
	ErrKindFeatureNotConfigured: "feature not configured",
	ErrKindAlreadySSLMode:       "already in SSL mode",
	ErrKindDriverNotConnected:   "driver not connected",
	ErrKindDataStale:            "data stale",
	ErrKindAlreadyLoggedIn:      "already logged in",
	ErrKindInvalidPassword:      "invalid password",
	ErrKindAlreadySetPassword:   "password already set",
	ErrKindInvalidUsername:      "invalid username",
	ErrKindAlreadySetUsername:   "username already set",
	ErrKindUsernameRequired:     "username required",
	ErrKindPasswordRequired:     "password required",
	ErrKindUnknownCommand:       "unknown command",
	ErrKindInvalidValue:         "invalid value",
}

// String returns a human readable description of the kind.
func (k ProtocolErrorKind) String() string {
	if s, ok := kindDescriptions[k]; ok {
		return s
	}
	return fmt.Sprintf("protocol error %d", int(k))
}

// ProtocolError is an error token returned by upsd in place of a value.
type ProtocolError struct {
	Kind    ProtocolErrorKind
	Token   string // Token as sent by the server, e.g. UNKNOWN-UPS
	Command string // Command that produced the error
	Line    string // Offending response text
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	if e.Command != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Command, e.Kind, e.Token)
	}
	return fmt.Sprintf("%s (%s)", e.Kind, e.Token)
}

// Is reports whether target is a ProtocolError of the same kind, so callers
// can write errors.Is(err, nutprotocol.ErrUnknownUPS).
func (e *ProtocolError) Is(target error) bool {
	pe, ok := target.(*ProtocolError)
	if !ok {
		return false
	}
	return pe.Kind == e.Kind
}

// Protocol error values for use with errors.Is.
var (
	ErrUnknownUPS           = &ProtocolError{Kind: ErrKindUnknownUPS, Token: "UNKNOWN-UPS"}
	ErrVarNotSupported      = &ProtocolError{Kind: ErrKindVarNotSupported, Token: "VAR-NOT-SUPPORTED"}
	ErrAccessDenied         = &ProtocolError{Kind: ErrKindAccessDenied, Token: "ACCESS-DENIED"}
	ErrReadOnly             = &ProtocolError{Kind: ErrKindReadOnly, Token: "READONLY"}
	ErrSetFailed            = &ProtocolError{Kind: ErrKindSetFailed, Token: "SET-FAILED"}
	ErrTooLong              = &ProtocolError{Kind: ErrKindTooLong, Token: "TOO-LONG"}
	ErrInvalidArgument      = &ProtocolError{Kind: ErrKindInvalidArgument, Token: "INVALID-ARGUMENT"}
	ErrCmdNotSupported      = &ProtocolError{Kind: ErrKindCmdNotSupported, Token: "CMD-NOT-SUPPORTED"}
	ErrFeatureNotSupported  = &ProtocolError{Kind: ErrKindFeatureNotSupported, Token: "FEATURE-NOT-SUPPORTED"}
	ErrFeatureNotConfigured = &ProtocolError{Kind: ErrKindFeatureNotConfigured, Token: "FEATURE-NOT-CONFIGURED"}
	ErrAlreadySSLMode       = &ProtocolError{Kind: ErrKindAlreadySSLMode, Token: "ALREADY-SSL-MODE"}
	ErrUnrecognized         = &ProtocolError{Kind: ErrKindUnrecognized}
)

// ParseError represents an error that occurred during command or response parsing.
type ParseError struct {
	Kind    ParseErrorKind
	Value   string // The invalid value that caused the error
	Message string // Additional context
}

// ParseErrorKind categorizes parsing errors.
type ParseErrorKind int

const (
	// ErrKindInvalidCommand indicates an unknown or malformed command.
	ErrKindInvalidCommand ParseErrorKind = iota
	// ErrKindMissingArgument indicates a required argument was not provided.
	ErrKindMissingArgument
	// ErrKindInvalidName indicates a UPS, variable or command name containing whitespace or quotes.
	ErrKindInvalidName
	// ErrKindUnexpectedResponse indicates a response whose shape does not fit the command.
	ErrKindUnexpectedResponse
)

// Error implements the error interface.
func (e *ParseError) Error() string {
	switch e.Kind {
	case ErrKindInvalidCommand:
		return fmt.Sprintf("invalid command '%s'", e.Value)
	case ErrKindMissingArgument:
		return e.Message
	case ErrKindInvalidName:
		return fmt.Sprintf("invalid name '%s'", e.Value)
	case ErrKindUnexpectedResponse:
		return fmt.Sprintf("unexpected response: %s", e.Value)
	default:
		return fmt.Sprintf("parse error: %s", e.Value)
	}
}

func newInvalidCommandError(cmd string) error {
	return &ParseError{Kind: ErrKindInvalidCommand, Value: cmd}
}

func newMissingArgumentError(msg string) error {
	return &ParseError{Kind: ErrKindMissingArgument, Message: msg}
}

func newInvalidNameError(name string) error {
	return &ParseError{Kind: ErrKindInvalidName, Value: name}
}

func newUnexpectedResponseError(resp string) error {
	return &ParseError{Kind: ErrKindUnexpectedResponse, Value: resp}
}

// ConnectionError represents a transport failure: dialing, writing or reading.
// A ConnectionError is fatal to the connection it came from.
type ConnectionError struct {
	Op      string // dial, send or receive
	Address string
	Cause   error
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Address, e.Cause)
	}
	return fmt.Sprintf("%s %s failed", e.Op, e.Address)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

// NewConnectionError creates a new connection error.
func NewConnectionError(op, address string, cause error) error {
	return &ConnectionError{Op: op, Address: address, Cause: cause}
}

// HandshakeError reports a failed TLS handshake after upsd accepted STARTTLS.
type HandshakeError struct {
	Address string
	Cause   error
}

// Error implements the error interface.
func (e *HandshakeError) Error() string {
	return fmt.Sprintf("tls handshake with %s: %v", e.Address, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *HandshakeError) Unwrap() error {
	return e.Cause
}
