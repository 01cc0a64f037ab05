package nutprotocol

import (
	"fmt"
	"strings"
)

// RawResponse is the framed text of one request/response cycle: the trimmed
// lines read between sending a command and either the end of a list block or
// the OK Goodbye sentinel.
type RawResponse struct {
	Lines []string

	// Goodbye is true when the read stopped on the OK Goodbye sentinel.
	Goodbye bool
}

// Text joins the lines with newlines, without a trailing terminator.
func (r RawResponse) Text() string {
	return strings.Join(r.Lines, "\n")
}

// IsEmpty reports whether no lines were collected.
func (r RawResponse) IsEmpty() bool {
	return len(r.Lines) == 0
}

// ListKind tags which shape a ListResponse carries.
type ListKind int

const (
	// ListSequence holds only positional tokens from unquoted lines.
	ListSequence ListKind = iota
	// ListMapping holds keyed entries from quoted lines, plus any positional
	// tokens from unquoted lines in the same response.
	ListMapping
	// ListCommands holds the command names parsed from a HELP reply.
	ListCommands
)

// String returns the kind name.
func (k ListKind) String() string {
	switch k {
	case ListSequence:
		return "sequence"
	case ListMapping:
		return "mapping"
	case ListCommands:
		return "commands"
	default:
		return fmt.Sprintf("ListKind(%d)", int(k))
	}
}

// Entry is one key/value pair from a quoted list line.
type Entry struct {
	Key   string
	Value string
}

// ListResponse is a parsed list reply. Callers switch on Kind.
type ListResponse struct {
	Kind ListKind

	// Entries are keyed values in wire order. Keys may repeat (LIST ENUM).
	Entries []Entry

	// Values are positional tokens from unquoted lines, in wire order.
	Values []string

	// Commands is set only for ListCommands.
	Commands []string
}

// NewMappingResponse builds a ListMapping response from entries.
func NewMappingResponse(entries []Entry) ListResponse {
	return ListResponse{Kind: ListMapping, Entries: entries}
}

// NewSequenceResponse builds a ListSequence response from values.
func NewSequenceResponse(values []string) ListResponse {
	return ListResponse{Kind: ListSequence, Values: values}
}

// Map returns the keyed entries as a map. When a key repeats the last value wins.
func (l ListResponse) Map() map[string]string {
	m := make(map[string]string, len(l.Entries))
	for _, e := range l.Entries {
		m[e.Key] = e.Value
	}
	return m
}

// Get returns the value of the first entry with the given key.
func (l ListResponse) Get(key string) (string, bool) {
	for _, e := range l.Entries {
		if e.Key == key {
			return e.Value, true
		}
	}
	return "", false
}

// Len returns the number of items in the response regardless of shape.
func (l ListResponse) Len() int {
	if l.Kind == ListCommands {
		return len(l.Commands)
	}
	return len(l.Entries) + len(l.Values)
}

// quoteEscaper escapes a value the way upsd does inside double quotes.
var quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// Format renders the response in wire shape, wrapped in BEGIN/END markers
// that carry header (e.g. "VAR dummy-sim"). Keyed entries become
// `<header> KEY "VALUE"` lines with quotes and backslashes escaped,
// positional values `<header> VALUE`.
// A command listing renders as the single HELP line.
func (l ListResponse) Format(header string) []string {
	if l.Kind == ListCommands {
		return []string{HelpPrefix + " " + strings.Join(l.Commands, " ")}
	}
	lines := []string{ListBegin + " " + header}
	prefix := header + " "
	if header == "" {
		prefix = ""
	}
	for _, e := range l.Entries {
		lines = append(lines, fmt.Sprintf(`%s%s "%s"`, prefix, e.Key, quoteEscaper.Replace(e.Value)))
	}
	for _, v := range l.Values {
		lines = append(lines, prefix+v)
	}
	return append(lines, ListEnd+" "+header)
}
