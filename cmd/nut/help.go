package main

import (
	"fmt"
	"io"
	"slices"
	"strings"
)

const helpOverview = `Session Commands:
  .help [topic]     Show help (or help for a specific command)
  .info             Show server address, versions and encryption
  .ups [name]       Show or set the default UPS for shorthands
  .quit             Log out and exit

Shorthands ([ups] may be left out once .ups is set):
  ups               List devices
  vars [ups]        List variables
  rw [ups]          List writable variables
  cmds [ups]        List instant commands
  clients [ups]     List connected clients
  get [ups] <var>   Read one variable
  type [ups] <var>  Show variable type
  enum [ups] <var>  List allowed values
  range [ups] <var> List allowed ranges
  version           Show the server banner

Protocol Commands:
  NETVER, VER, HELP, LOGOUT
  GET NUMLOGINS|UPSDESC <ups>
  GET VAR|TYPE|DESC <ups> <var>
  GET CMDDESC <ups> <cmd>
  LIST UPS
  LIST VAR|RW|CMD|CLIENT <ups>
  LIST ENUM|RANGE <ups> <var>
  Other input is sent to the server as typed.
`

var helpTopics = map[string]string{
	"help": `  .help [topic]
    Show the command overview, or detailed help for one command.

    Examples:
      .help
      .help vars
      .help list`,

	"info": `  .info
    Show the server address, protocol version (NETVER), server version
    (VER) and whether the session is encrypted.`,

	"ups": `  .ups [name]
    Without an argument, show the default UPS. With a name, make it the
    default for shorthands such as vars and get.

  ups
    List the devices served by upsd (LIST UPS).`,

	"quit": `  .quit
    Send LOGOUT and exit. End of input (Ctrl-D) does the same.`,

	"vars": `  vars [ups]
    List every variable of a UPS with its value (LIST VAR).

    Example:
      vars dummy-sim`,

	"rw": `  rw [ups]
    List the writable variables of a UPS (LIST RW).`,

	"cmds": `  cmds [ups]
    List the instant commands a UPS supports (LIST CMD).`,

	"clients": `  clients [ups]
    List the clients logged in to a UPS (LIST CLIENT).`,

	"get": `  get [ups] <var>
    Read one variable (GET VAR). Prefixed forms such as
    "get desc <ups> <var>" are sent as protocol commands.

    Examples:
      get dummy-sim ups.status
      get battery.charge`,

	"type": `  type [ups] <var>
    Show the type of a variable (GET TYPE), e.g. RW ENUM or STRING:64.`,

	"enum": `  enum [ups] <var>
    List the values an ENUM variable accepts (LIST ENUM).`,

	"range": `  range [ups] <var>
    List the min/max ranges a RANGE variable accepts (LIST RANGE).`,

	"version": `  version
    Show the server banner (VER).`,

	"list": `  LIST UPS
  LIST VAR|RW|CMD|CLIENT <ups>
  LIST ENUM|RANGE <ups> <var>
    Multi-line queries. The BEGIN/END LIST markers are removed and the
    entries shown as "name: value" or one per line.`,

	"netver": `  NETVER
    Show the network protocol version upsd speaks.`,

	"logout": `  LOGOUT
    End the session. The server answers "OK Goodbye" and closes the
    connection.`,
}

// GO CONCEPT: The Comma-Ok Idiom
// ------------------------------
// Reading a missing key from a map returns the zero value ("" for
// strings), which looks the same as a key stored with an empty value.
// The two-value form tells them apart:
//
//	text, ok := helpTopics[key]
//
// ok is false when the key is absent. The same shape shows up for type
// assertions (v, ok := x.(T)) and channel receives (v, ok := <-ch).
//
// Compare to Swift: a dictionary lookup returns an Optional, and
// "if let" unwraps it.

// printHelp writes the overview or the help for one topic.
// It reports false when the topic is unknown.
func printHelp(w io.Writer, topic string) bool {
	if topic == "" {
		fmt.Fprint(w, helpOverview)
		return true
	}

	key := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(topic)), ".")
	text, ok := helpTopics[key]
	if !ok {
		return false
	}
	fmt.Fprintln(w, text)
	return true
}

func helpTopicNames() []string {
	names := make([]string, 0, len(helpTopics))
	for name := range helpTopics {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
