package nutprotocol

import (
	"strings"
	"unicode"
)

// CommandType represents one upsd request verb.
type CommandType int

const (
	// Session commands
	CmdNetVer CommandType = iota
	CmdVer
	CmdHelp
	CmdStartTLS
	CmdLogout

	// Scalar queries
	CmdGetNumLogins
	CmdGetUPSDesc
	CmdGetVar
	CmdGetType
	CmdGetDesc
	CmdGetCmdDesc

	// List queries
	CmdListUPS
	CmdListVar
	CmdListRW
	CmdListCmd
	CmdListEnum
	CmdListRange
	CmdListClient
)

// commandVerbs holds the wire verb of every command type.
var commandVerbs = map[CommandType]string{
	CmdNetVer:       "NETVER",
	CmdVer:          "VER",
	CmdHelp:         "HELP",
	CmdStartTLS:     "STARTTLS",
	CmdLogout:       "LOGOUT",
	CmdGetNumLogins: "GET NUMLOGINS",
	CmdGetUPSDesc:   "GET UPSDESC",
	CmdGetVar:       "GET VAR",
	CmdGetType:      "GET TYPE",
	CmdGetDesc:      "GET DESC",
	CmdGetCmdDesc:   "GET CMDDESC",
	CmdListUPS:      "LIST UPS",
	CmdListVar:      "LIST VAR",
	CmdListRW:       "LIST RW",
	CmdListCmd:      "LIST CMD",
	CmdListEnum:     "LIST ENUM",
	CmdListRange:    "LIST RANGE",
	CmdListClient:   "LIST CLIENT",
}

// Verb returns the wire verb, e.g. "GET VAR".
func (t CommandType) Verb() string {
	return commandVerbs[t]
}

// String returns the wire verb.
func (t CommandType) String() string {
	if v, ok := commandVerbs[t]; ok {
		return v
	}
	return "UNKNOWN"
}

// IsList reports whether upsd answers the command with a BEGIN LIST block.
func (t CommandType) IsList() bool {
	return t >= CmdListUPS && t <= CmdListClient
}

// NeedsUPS reports whether the command takes a device name.
func (t CommandType) NeedsUPS() bool {
	switch t {
	case CmdNetVer, CmdVer, CmdHelp, CmdStartTLS, CmdLogout, CmdListUPS:
		return false
	}
	return true
}

// NeedsName reports whether the command takes a variable or command name.
func (t CommandType) NeedsName() bool {
	switch t {
	case CmdGetVar, CmdGetType, CmdGetDesc, CmdGetCmdDesc, CmdListEnum, CmdListRange:
		return true
	}
	return false
}

// Checks returns the error kinds searched in the response text for t.
// Device-scoped commands check UNKNOWN-UPS, variable-scoped commands also
// check VAR-NOT-SUPPORTED, and CMDDESC checks CMD-NOT-SUPPORTED. Any other
// ERR line is still classified by Classify.
func (t CommandType) Checks() []ProtocolErrorKind {
	switch t {
	case CmdNetVer, CmdVer, CmdHelp, CmdLogout, CmdListUPS:
		return nil
	case CmdStartTLS:
		return startTLSRefusals
	case CmdGetVar, CmdGetType, CmdGetDesc, CmdListEnum, CmdListRange:
		return []ProtocolErrorKind{ErrKindUnknownUPS, ErrKindVarNotSupported}
	case CmdGetCmdDesc:
		return []ProtocolErrorKind{ErrKindUnknownUPS, ErrKindCmdNotSupported}
	default:
		return []ProtocolErrorKind{ErrKindUnknownUPS}
	}
}

// AllCommandTypes lists every command type in declaration order.
func AllCommandTypes() []CommandType {
	types := make([]CommandType, 0, len(commandVerbs))
	for t := CmdNetVer; t <= CmdListClient; t++ {
		types = append(types, t)
	}
	return types
}

// Command is a request to upsd with its arguments.
// Use the constructor functions (NewGetVarCommand, NewListVarCommand, etc.)
// to create Command instances.
type Command struct {
	Type CommandType
	UPS  string // device name, for device-scoped commands
	Name string // variable or instant command name
}

// NewNetVerCommand creates a NETVER command.
func NewNetVerCommand() Command {
	return Command{Type: CmdNetVer}
}

// NewVerCommand creates a VER command.
func NewVerCommand() Command {
	return Command{Type: CmdVer}
}

// NewHelpCommand creates a HELP command.
func NewHelpCommand() Command {
	return Command{Type: CmdHelp}
}

// NewLogoutCommand creates a LOGOUT command.
func NewLogoutCommand() Command {
	return Command{Type: CmdLogout}
}

// NewGetNumLoginsCommand creates a GET NUMLOGINS command.
func NewGetNumLoginsCommand(ups string) Command {
	return Command{Type: CmdGetNumLogins, UPS: ups}
}

// NewGetUPSDescCommand creates a GET UPSDESC command.
func NewGetUPSDescCommand(ups string) Command {
	return Command{Type: CmdGetUPSDesc, UPS: ups}
}

// NewGetVarCommand creates a GET VAR command.
func NewGetVarCommand(ups, name string) Command {
	return Command{Type: CmdGetVar, UPS: ups, Name: name}
}

// NewGetTypeCommand creates a GET TYPE command.
func NewGetTypeCommand(ups, name string) Command {
	return Command{Type: CmdGetType, UPS: ups, Name: name}
}

// NewGetDescCommand creates a GET DESC command.
func NewGetDescCommand(ups, name string) Command {
	return Command{Type: CmdGetDesc, UPS: ups, Name: name}
}

// NewGetCmdDescCommand creates a GET CMDDESC command.
func NewGetCmdDescCommand(ups, name string) Command {
	return Command{Type: CmdGetCmdDesc, UPS: ups, Name: name}
}

// NewListUPSCommand creates a LIST UPS command.
func NewListUPSCommand() Command {
	return Command{Type: CmdListUPS}
}

// NewListVarCommand creates a LIST VAR command.
func NewListVarCommand(ups string) Command {
	return Command{Type: CmdListVar, UPS: ups}
}

// NewListRWCommand creates a LIST RW command.
func NewListRWCommand(ups string) Command {
	return Command{Type: CmdListRW, UPS: ups}
}

// NewListCmdCommand creates a LIST CMD command.
func NewListCmdCommand(ups string) Command {
	return Command{Type: CmdListCmd, UPS: ups}
}

// NewListEnumCommand creates a LIST ENUM command.
func NewListEnumCommand(ups, name string) Command {
	return Command{Type: CmdListEnum, UPS: ups, Name: name}
}

// NewListRangeCommand creates a LIST RANGE command.
func NewListRangeCommand(ups, name string) Command {
	return Command{Type: CmdListRange, UPS: ups, Name: name}
}

// NewListClientCommand creates a LIST CLIENT command.
func NewListClientCommand(ups string) Command {
	return Command{Type: CmdListClient, UPS: ups}
}

// Format returns the command as sent on the wire, without the line terminator.
func (c Command) Format() string {
	parts := []string{c.Type.Verb()}
	if c.Type.NeedsUPS() {
		parts = append(parts, c.UPS)
	}
	if c.Type.NeedsName() {
		parts = append(parts, c.Name)
	}
	return strings.Join(parts, " ")
}

// FormatLine returns the command as a complete protocol line with newline.
func (c Command) FormatLine() string {
	return c.Format() + LineTerminator
}

// Header returns the text upsd echoes after BEGIN LIST / END LIST for this
// command, e.g. "VAR dummy-sim" for LIST VAR dummy-sim.
func (c Command) Header() string {
	if !c.Type.IsList() {
		return ""
	}
	return strings.TrimPrefix(c.Format(), "LIST ")
}

// Validate checks that the arguments the command type needs are present
// and could be sent as single protocol tokens.
func (c Command) Validate() error {
	if _, ok := commandVerbs[c.Type]; !ok {
		return newInvalidCommandError(c.Type.String())
	}
	if c.Type.NeedsUPS() {
		if c.UPS == "" {
			return newMissingArgumentError(c.Type.Verb() + " requires a UPS name")
		}
		if !validName(c.UPS) {
			return newInvalidNameError(c.UPS)
		}
	}
	if c.Type.NeedsName() {
		if c.Name == "" {
			return newMissingArgumentError(c.Type.Verb() + " requires a variable or command name")
		}
		if !validName(c.Name) {
			return newInvalidNameError(c.Name)
		}
	}
	return nil
}

// validName rejects names that would split into several tokens or break
// the line framing.
func validName(name string) bool {
	for _, r := range name {
		if unicode.IsSpace(r) || unicode.IsControl(r) || r == '"' {
			return false
		}
	}
	return name != ""
}
