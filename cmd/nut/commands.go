package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/gonut/nut/nutprotocol"
)

var listKinds = []string{"ups", "var", "rw", "cmd", "client", "enum", "range"}

var getKinds = []string{"var", "type", "desc", "cmddesc", "numlogins", "upsdesc"}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show protocol version, server version and encryption state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Logout()

			printInfo(a.out, client.Conn())
			return nil
		},
	}
}

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list <ups|var|rw|cmd|client|enum|range> [ups] [name]",
		Short: "Run a LIST query",
		Example: `  nut list ups
  nut list var dummy-sim
  nut -H dummy-sim@localhost list rw
  nut list range dummy-sim ups.delay.shutdown`,
		Args:      cobra.RangeArgs(1, 3),
		ValidArgs: listKinds,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.query(cmd, "LIST", args)
		},
	}
}

func newGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <var|type|desc|cmddesc|numlogins|upsdesc> [ups] [name]",
		Short: "Run a GET query",
		Example: `  nut get var dummy-sim ups.status
  nut -H dummy-sim@localhost get var battery.charge
  nut get numlogins dummy-sim`,
		Args:      cobra.RangeArgs(1, 3),
		ValidArgs: getKinds,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.query(cmd, "GET", args)
		},
	}
}

func newCommandsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "commands",
		Short: "List the protocol commands the server accepts (HELP)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Logout()

			commands, err := client.Help()
			if err != nil {
				return err
			}
			for _, c := range commands {
				fmt.Fprintln(a.out, c)
			}
			return nil
		},
	}
}

// query parses verb + args into a command, filling in the default UPS
// from "ups@host" when the device argument was left out.
func (a *app) query(cmd *cobra.Command, verb string, args []string) error {
	command, err := parseQuery(verb, args, a.ups)
	if err != nil {
		return err
	}

	client, err := a.connect(cmd.Context())
	if err != nil {
		return err
	}
	defer client.Logout()

	return runCommand(client, command, a.out)
}

func parseQuery(verb string, args []string, defaultUPS string) (nutprotocol.Command, error) {
	parser := nutprotocol.NewCommandParser()
	line := verb + " " + strings.Join(args, " ")
	command, err := parser.Parse(line)

	var pe *nutprotocol.ParseError
	if errors.As(err, &pe) && pe.Kind == nutprotocol.ErrKindMissingArgument && defaultUPS != "" {
		withUPS := append([]string{args[0], defaultUPS}, args[1:]...)
		return parser.Parse(verb + " " + strings.Join(withUPS, " "))
	}
	return command, err
}

// runCommand sends a parsed command and prints the result.
func runCommand(client *nutprotocol.Client, cmd nutprotocol.Command, w io.Writer) error {
	switch cmd.Type {
	case nutprotocol.CmdListRange:
		ranges, err := client.ListRange(cmd.UPS, cmd.Name)
		if err != nil {
			return err
		}
		for _, r := range ranges {
			fmt.Fprintf(w, "%s %s\n", r.Min, r.Max)
		}
		return nil

	case nutprotocol.CmdListEnum:
		values, err := client.ListEnum(cmd.UPS, cmd.Name)
		if err != nil {
			return err
		}
		printValues(w, values)
		return nil

	case nutprotocol.CmdGetType:
		types, err := client.VarType(cmd.UPS, cmd.Name)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, strings.Join(types, " "))
		return nil

	case nutprotocol.CmdLogout:
		return client.Logout()

	case nutprotocol.CmdStartTLS:
		return errors.New("STARTTLS is negotiated when connecting; use --encryption")
	}

	list, err := client.Do(cmd)
	if err != nil {
		return err
	}
	printList(w, list)
	return nil
}

// printList writes mappings as "key: value" and everything else one token per line.
func printList(w io.Writer, list nutprotocol.ListResponse) {
	for _, e := range list.Entries {
		fmt.Fprintf(w, "%s: %s\n", e.Key, e.Value)
	}
	printValues(w, list.Values)
	printValues(w, list.Commands)
}

func printValues(w io.Writer, values []string) {
	for _, v := range values {
		fmt.Fprintln(w, v)
	}
}

func printInfo(w io.Writer, conn *nutprotocol.Conn) {
	label := color.New(color.FgCyan).SprintFunc()
	encryption := color.YellowString(conn.EncryptionState().String())
	if conn.Encrypted() {
		encryption = color.GreenString(conn.EncryptionState().String())
	}

	fmt.Fprintf(w, "%s %s\n", label("Server:          "), conn.Address())
	fmt.Fprintf(w, "%s %s\n", label("Protocol version:"), conn.ProtocolVersion())
	fmt.Fprintf(w, "%s %s\n", label("Server version:  "), conn.ServerVersion())
	fmt.Fprintf(w, "%s %s\n", label("Banner:          "), conn.ServerBanner())
	fmt.Fprintf(w, "%s %s\n", label("Encryption:      "), encryption)
}
