package nutprotocol

import "strings"

// errorToken maps a protocol token to the kind it raises.
type errorToken struct {
	token string
	kind  ProtocolErrorKind
}

// errorTable is checked in order. No token is a substring of another.
var errorTable = []errorToken{
	{"UNKNOWN-UPS", ErrKindUnknownUPS},
	{"VAR-NOT-SUPPORTED", ErrKindVarNotSupported},
	{"ACCESS-DENIED", ErrKindAccessDenied},
	{"READONLY", ErrKindReadOnly},
	{"SET-FAILED", ErrKindSetFailed},
	{"TOO-LONG", ErrKindTooLong},
	{"INVALID-ARGUMENT", ErrKindInvalidArgument},
	{"CMD-NOT-SUPPORTED", ErrKindCmdNotSupported},
	{"INSTCMD-FAILED", ErrKindInstCmdFailed},
	{"FEATURE-NOT-SUPPORTED", ErrKindFeatureNotSupported},
	{"FEATURE-NOT-CONFIGURED", ErrKindFeatureNotConfigured},
	{"ALREADY-SSL-MODE", ErrKindAlreadySSLMode},
	{"DRIVER-NOT-CONNECTED", ErrKindDriverNotConnected},
	{"DATA-STALE", ErrKindDataStale},
	{"ALREADY-LOGGED-IN", ErrKindAlreadyLoggedIn},
	{"INVALID-PASSWORD", ErrKindInvalidPassword},
	{"ALREADY-SET-PASSWORD", ErrKindAlreadySetPassword},
	{"INVALID-USERNAME", ErrKindInvalidUsername},
	{"ALREADY-SET-USERNAME", ErrKindAlreadySetUsername},
	{"USERNAME-REQUIRED", ErrKindUsernameRequired},
	{"PASSWORD-REQUIRED", ErrKindPasswordRequired},
	{"UNKNOWN-COMMAND", ErrKindUnknownCommand},
	{"INVALID-VALUE", ErrKindInvalidValue},
}

// TokenFor returns the wire token of kind, or "" for ErrKindUnrecognized.
func TokenFor(kind ProtocolErrorKind) string {
	for _, t := range errorTable {
		if t.kind == kind {
			return t.token
		}
	}
	return ""
}

// Classify inspects a framed response for error tokens.
//
// The kinds in checks are searched first, in table order, as substrings of
// the whole response text. If none match but a line starts with ERR, that
// line is classified against the full table, and a token outside the table
// yields ErrKindUnrecognized. A response with no error returns nil.
func Classify(command string, raw RawResponse, checks ...ProtocolErrorKind) error {
	text := raw.Text()

	for _, t := range errorTable {
		if !containsKind(checks, t.kind) {
			continue
		}
		if strings.Contains(text, t.token) {
			return &ProtocolError{Kind: t.kind, Token: t.token, Command: command, Line: text}
		}
	}

	for _, line := range raw.Lines {
		if !isErrorLine(line) {
			continue
		}
		token := errorLineToken(line)
		for _, t := range errorTable {
			if token == t.token {
				return &ProtocolError{Kind: t.kind, Token: t.token, Command: command, Line: line}
			}
		}
		return &ProtocolError{Kind: ErrKindUnrecognized, Token: token, Command: command, Line: line}
	}

	return nil
}

func containsKind(kinds []ProtocolErrorKind, kind ProtocolErrorKind) bool {
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// isErrorLine reports whether line has the "ERR <TOKEN>" shape.
func isErrorLine(line string) bool {
	return line == ErrorPrefix || strings.HasPrefix(line, ErrorPrefix+" ")
}

// errorLineToken returns the word after ERR.
func errorLineToken(line string) string {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return ""
	}
	return fields[1]
}
