package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gonut/nut/internal/logger"
	"github.com/gonut/nut/nutprotocol"
)

func newREPLCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Interactive session with the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Close()

			editor := NewLineEditor()
			defer editor.Close()

			fmt.Fprintf(a.out, "%s - connected to %s (%s)\n",
				fullTitle(), client.Conn().Address(), client.Conn().ServerBanner())
			fmt.Fprintln(a.out, "Type '.help' for available commands, '.quit' to exit.")

			r := newREPL(client, editor, a.out, a.errOut)
			r.defaultUPS = a.ups
			return r.run()
		},
	}
}

// repl reads commands, sends them and prints the answers.
type repl struct {
	client     *nutprotocol.Client
	parser     *nutprotocol.CommandParser
	in         lineReader
	out        io.Writer
	errOut     io.Writer
	defaultUPS string
}

func newREPL(client *nutprotocol.Client, in lineReader, out, errOut io.Writer) *repl {
	return &repl{
		client: client,
		parser: nutprotocol.NewCommandParser(),
		in:     in,
		out:    out,
		errOut: errOut,
	}
}

func (r *repl) prompt() string {
	if r.defaultUPS != "" {
		return fmt.Sprintf("[%s@%s] > ", r.defaultUPS, r.client.Conn().Host())
	}
	return fmt.Sprintf("[%s] > ", r.client.Conn().Host())
}

// run loops until .quit, end of input or a lost connection.
func (r *repl) run() error {
	for {
		line, err := r.in.GetLine(r.prompt())
		if err != nil {
			if err == io.EOF {
				fmt.Fprintln(r.out)
				return r.quit()
			}
			return err
		}

		done, err := r.execute(strings.TrimSpace(line))
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

// GO CONCEPT: Named Results
// -------------------------
// The results of execute have names: done and err. They document what the
// two values mean in the signature itself. A named result starts at its
// zero value (false, nil) and can still be returned explicitly, which is
// what every return statement below does.

// execute handles one line. It returns done when the session is over and
// an error only when the connection is unusable.
func (r *repl) execute(line string) (done bool, err error) {
	if line == "" {
		return false, nil
	}

	if strings.HasPrefix(line, ".") {
		return r.dotCommand(line)
	}

	translated, err := translateShorthand(line, r.defaultUPS)
	if err != nil {
		printError(r.errOut, err)
		return false, nil
	}

	cmd, err := r.parser.Parse(translated)
	if err != nil {
		var pe *nutprotocol.ParseError
		if errors.As(err, &pe) && pe.Kind == nutprotocol.ErrKindInvalidCommand {
			return r.sendRaw(translated)
		}
		printError(r.errOut, err)
		return false, nil
	}

	logger.Debug("repl command", "command", cmd.Type.String())
	if err := runCommand(r.client, cmd, r.out); err != nil {
		if isConnectionLost(err) {
			return true, err
		}
		printError(r.errOut, err)
		return false, nil
	}
	return cmd.Type == nutprotocol.CmdLogout, nil
}

// sendRaw sends text the parser does not know and prints the reply as is.
func (r *repl) sendRaw(line string) (bool, error) {
	resp, err := r.client.Conn().SendRaw(line)
	if err != nil {
		if isConnectionLost(err) {
			return true, err
		}
		printError(r.errOut, err)
		return false, nil
	}
	for _, l := range resp.Lines {
		fmt.Fprintln(r.out, l)
	}
	if resp.Goodbye {
		fmt.Fprintln(r.out, nutprotocol.GoodbyeSentinel)
		return true, r.client.Close()
	}
	return false, nil
}

func (r *repl) dotCommand(line string) (bool, error) {
	fields := strings.Fields(line)
	keyword := strings.ToLower(fields[0])
	arg := strings.Join(fields[1:], " ")

	switch keyword {
	case ".quit", ".exit":
		return true, r.quit()
	case ".help":
		if !printHelp(r.out, arg) {
			printError(r.errOut, fmt.Errorf("no help for '%s'. Type .help to see available commands", arg))
		}
	case ".info":
		printInfo(r.out, r.client.Conn())
	case ".ups":
		if arg == "" {
			if r.defaultUPS == "" {
				fmt.Fprintln(r.out, "No default UPS set")
			} else {
				fmt.Fprintln(r.out, r.defaultUPS)
			}
		} else {
			r.defaultUPS = arg
		}
	default:
		printError(r.errOut, fmt.Errorf("unknown command '%s'. Type .help to see available commands", fields[0]))
	}
	return false, nil
}

func (r *repl) quit() error {
	if err := r.client.Logout(); err != nil && !isConnectionLost(err) {
		return err
	}
	return nil
}

func isConnectionLost(err error) bool {
	var ce *nutprotocol.ConnectionError
	return errors.As(err, &ce) ||
		errors.Is(err, nutprotocol.ErrSessionClosed) ||
		errors.Is(err, nutprotocol.ErrNotConnected)
}
