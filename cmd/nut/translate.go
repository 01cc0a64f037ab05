package main

import (
	"fmt"
	"strings"
)

// getSubcommands are the words that make "get ..." a raw GET rather than
// the "get <ups> <var>" shorthand.
var getSubcommands = map[string]bool{
	"NUMLOGINS": true,
	"UPSDESC":   true,
	"VAR":       true,
	"TYPE":      true,
	"DESC":      true,
	"CMDDESC":   true,
}

// GO CONCEPT: Switch Without Fallthrough
// --------------------------------------
// A Go switch runs only the matching case. There is no implicit fall
// through to the next case, so no break is needed at the end of each one.
// "break" inside a case leaves the switch early. Below it is used when
// "get" is followed by a GET subcommand: the switch is left and the line
// is returned unchanged at the bottom of the function.
//
// Compare to Swift: Swift switches also do not fall through, but they
// must be exhaustive. Go does not require a default case.

// translateShorthand turns REPL shorthands into protocol commands.
// Anything that is not a shorthand is returned unchanged.
//
//	ups                  LIST UPS
//	vars [ups]           LIST VAR <ups>
//	rw [ups]             LIST RW <ups>
//	cmds [ups]           LIST CMD <ups>
//	clients [ups]        LIST CLIENT <ups>
//	get [ups] <var>      GET VAR <ups> <var>
//	type [ups] <var>     GET TYPE <ups> <var>
//	enum [ups] <var>     LIST ENUM <ups> <var>
//	range [ups] <var>    LIST RANGE <ups> <var>
//	version              VER
//
// The UPS may be left out when defaultUPS is set.
func translateShorthand(line, defaultUPS string) (string, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", nil
	}
	keyword := strings.ToLower(fields[0])
	args := fields[1:]

	switch keyword {
	case "ups":
		if len(args) == 0 {
			return "LIST UPS", nil
		}
	case "vars":
		return deviceCommand("LIST VAR", keyword, args, defaultUPS)
	case "rw":
		return deviceCommand("LIST RW", keyword, args, defaultUPS)
	case "cmds":
		return deviceCommand("LIST CMD", keyword, args, defaultUPS)
	case "clients":
		return deviceCommand("LIST CLIENT", keyword, args, defaultUPS)
	case "get":
		if len(args) > 0 && getSubcommands[strings.ToUpper(args[0])] {
			break
		}
		return variableCommand("GET VAR", keyword, args, defaultUPS)
	case "type":
		return variableCommand("GET TYPE", keyword, args, defaultUPS)
	case "enum":
		return variableCommand("LIST ENUM", keyword, args, defaultUPS)
	case "range":
		return variableCommand("LIST RANGE", keyword, args, defaultUPS)
	case "version":
		if len(args) == 0 {
			return "VER", nil
		}
	}
	return strings.TrimSpace(line), nil
}

// GO CONCEPT: Multiple Return Values
// ----------------------------------
// Functions can return more than one value. The usual pair is a result
// and an error. On failure the result is the zero value ("" here) and the
// caller checks err first:
//
//	cmd, err := deviceCommand("LIST VAR", "vars", args, "")
//	if err != nil { ... }
//
// Compare with Python: returning a tuple looks similar, but Python code
// signals failure with exceptions. Go has no exceptions for ordinary
// errors.

func deviceCommand(prefix, keyword string, args []string, defaultUPS string) (string, error) {
	switch len(args) {
	case 0:
		if defaultUPS == "" {
			return "", fmt.Errorf("%s: UPS name required (or set one with .ups)", keyword)
		}
		return prefix + " " + defaultUPS, nil
	case 1:
		return prefix + " " + args[0], nil
	default:
		return "", fmt.Errorf("usage: %s [ups]", keyword)
	}
}

func variableCommand(prefix, keyword string, args []string, defaultUPS string) (string, error) {
	switch len(args) {
	case 1:
		if defaultUPS == "" {
			return "", fmt.Errorf("%s: UPS name required (or set one with .ups)", keyword)
		}
		return prefix + " " + defaultUPS + " " + args[0], nil
	case 2:
		return prefix + " " + args[0] + " " + args[1], nil
	default:
		return "", fmt.Errorf("usage: %s [ups] <variable>", keyword)
	}
}
