package nutprotocol

import (
	"strings"
)

// CommandParser parses upsd request lines, as typed by a user or found in a
// script, into Commands. Verbs are case-insensitive; arguments are not.
type CommandParser struct{}

// NewCommandParser creates a new command parser.
func NewCommandParser() *CommandParser {
	return &CommandParser{}
}

// Parse parses a command line into a Command.
func (p *CommandParser) Parse(line string) (Command, error) {
	commandLine := strings.TrimSpace(line)

	if len(commandLine) > MaxLineLength {
		return Command{}, ErrLineTooLong
	}

	fields := strings.Fields(commandLine)
	if len(fields) == 0 {
		return Command{}, newInvalidCommandError("")
	}

	verb := strings.ToUpper(fields[0])
	args := fields[1:]

	switch verb {
	case "NETVER":
		return p.noArgs(NewNetVerCommand(), args)
	case "VER":
		return p.noArgs(NewVerCommand(), args)
	case "HELP":
		return p.noArgs(NewHelpCommand(), args)
	case "STARTTLS":
		return p.noArgs(Command{Type: CmdStartTLS}, args)
	case "LOGOUT":
		return p.noArgs(NewLogoutCommand(), args)
	case "GET":
		return p.parseGet(args)
	case "LIST":
		return p.parseList(args)
	default:
		return Command{}, newInvalidCommandError(fields[0])
	}
}

func (p *CommandParser) noArgs(cmd Command, args []string) (Command, error) {
	if len(args) > 0 {
		return Command{}, newInvalidCommandError(cmd.Type.Verb() + " " + strings.Join(args, " "))
	}
	return cmd, nil
}

func (p *CommandParser) parseGet(args []string) (Command, error) {
	if len(args) == 0 {
		return Command{}, newMissingArgumentError("GET requires a subcommand (NUMLOGINS, UPSDESC, VAR, TYPE, DESC, CMDDESC)")
	}

	var t CommandType
	switch strings.ToUpper(args[0]) {
	case "NUMLOGINS":
		t = CmdGetNumLogins
	case "UPSDESC":
		t = CmdGetUPSDesc
	case "VAR":
		t = CmdGetVar
	case "TYPE":
		t = CmdGetType
	case "DESC":
		t = CmdGetDesc
	case "CMDDESC":
		t = CmdGetCmdDesc
	default:
		return Command{}, newInvalidCommandError("GET " + args[0])
	}
	return p.build(t, args[1:])
}

func (p *CommandParser) parseList(args []string) (Command, error) {
	if len(args) == 0 {
		return Command{}, newMissingArgumentError("LIST requires a subcommand (UPS, VAR, RW, CMD, ENUM, RANGE, CLIENT)")
	}

	var t CommandType
	switch strings.ToUpper(args[0]) {
	case "UPS":
		t = CmdListUPS
	case "VAR":
		t = CmdListVar
	case "RW":
		t = CmdListRW
	case "CMD":
		t = CmdListCmd
	case "ENUM":
		t = CmdListEnum
	case "RANGE":
		t = CmdListRange
	case "CLIENT":
		t = CmdListClient
	default:
		return Command{}, newInvalidCommandError("LIST " + args[0])
	}
	return p.build(t, args[1:])
}

// build assigns positional arguments to the fields t needs, then validates.
func (p *CommandParser) build(t CommandType, args []string) (Command, error) {
	cmd := Command{Type: t}
	want := 0
	if t.NeedsUPS() {
		want++
	}
	if t.NeedsName() {
		want++
	}

	if len(args) > want {
		return Command{}, newInvalidCommandError(t.Verb() + " " + strings.Join(args, " "))
	}
	if t.NeedsUPS() && len(args) > 0 {
		cmd.UPS = args[0]
		args = args[1:]
	}
	if t.NeedsName() && len(args) > 0 {
		cmd.Name = args[0]
	}

	if err := cmd.Validate(); err != nil {
		return Command{}, err
	}
	return cmd, nil
}
