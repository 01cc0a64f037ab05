// Command nut is a client for NUT (Network UPS Tools) upsd servers.
//
// Usage:
//
//	nut version                          Show protocol and server version
//	nut list var dummy-sim               List variables of a UPS
//	nut get var dummy-sim ups.status     Read one variable
//	nut -H dummy-sim@ups.lan repl        Interactive session
//	nut --config nut.yaml poll           Poll every configured target
//	nut history localhost dummy-sim      Show the latest stored snapshot
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/gonut/nut/internal/config"
	"github.com/gonut/nut/internal/logger"
	"github.com/gonut/nut/nutprotocol"
)

const (
	version = "0.3.0"
	appName = "nut"

	defaultConfigPath = "nut.yaml"
)

func fullTitle() string {
	return fmt.Sprintf("%s v%s", appName, version)
}

// GO CONCEPT: Struct Embedding
// ---------------------------
// The app struct below lists "settings" with no field name. That embeds
// settings: every field of settings can be used directly on an app, so
// a.host works as well as a.settings.host. Embedding is composition, not
// inheritance. An app is not a settings and cannot be passed where one is
// expected.
//
// Compare to Swift: the closest thing is a protocol extension, but Swift
// has no way to promote another struct's stored properties.
//
// Compare with Python: a class inheriting from a dataclass gets its fields,
// but also becomes a subtype. Go only copies the field access.

// settings holds the global command line flags.
type settings struct {
	configPath  string
	loggingPath string
	targetName  string
	verbose     bool
	noColor     bool

	host       string
	port       int
	timeout    time.Duration
	encryption string

	hostSet, portSet, timeoutSet, encryptionSet bool

	// ups is the default device, from "ups@host".
	ups string
}

// app is the state shared by all subcommands.
type app struct {
	settings
	out    io.Writer
	errOut io.Writer
	cfg    *config.Config
	target config.Target
}

// GO CONCEPT: Closures Over Shared State
// -------------------------------------
// cobra calls a RunE function for each subcommand. Each one is a function
// literal that captures "a", the *app created at the top of newRootCmd.
// All subcommands therefore see the flags parsed into the same app, and
// no package-level variables are needed.
//
// Taking io.Writer parameters instead of writing to os.Stdout lets the
// tests hand in a bytes.Buffer and check what was printed.

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{out: out, errOut: errOut}

	root := &cobra.Command{
		Use:   appName,
		Short: "Client for Network UPS Tools servers",
		Long: `nut talks to upsd, the Network UPS Tools daemon, over its line protocol.

It can run one-shot queries (version, list, get, commands), open an
interactive session (repl) or poll every configured server and store
the readings (poll).

The server may be given as host[:port] or ups@host[:port]; the UPS
name then becomes the default device for commands that need one.`,
		Version:           version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logger.Close()
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	flags := root.PersistentFlags()
	flags.StringVarP(&a.host, "host", "H", "localhost", "upsd host, as host[:port] or ups@host[:port]")
	flags.IntVarP(&a.port, "port", "p", nutprotocol.DefaultPort, "upsd port")
	flags.DurationVarP(&a.timeout, "timeout", "t", nutprotocol.DefaultTimeout, "network timeout")
	flags.StringVarP(&a.encryption, "encryption", "e", "try", "STARTTLS mode: off, try or force")
	flags.StringVarP(&a.configPath, "config", "c", defaultConfigPath, "configuration file")
	flags.StringVar(&a.loggingPath, "logging", "", "logging configuration file")
	flags.StringVar(&a.targetName, "target", "", "configured target to use (default: the first)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")
	flags.BoolVar(&a.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		newVersionCmd(a),
		newListCmd(a),
		newGetCmd(a),
		newCommandsCmd(a),
		newREPLCmd(a),
		newPollCmd(a),
		newHistoryCmd(a),
	)
	return root
}

// setup loads configuration and logging before any subcommand runs.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	a.hostSet = flags.Changed("host")
	a.portSet = flags.Changed("port")
	a.timeoutSet = flags.Changed("timeout")
	a.encryptionSet = flags.Changed("encryption")
	if a.noColor {
		color.NoColor = true
	}

	cfg, err := config.LoadConfig(a.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	a.cfg = cfg

	loggingPath := a.loggingPath
	if loggingPath == "" {
		loggingPath = cfg.Logging
	}
	logCfg, err := logger.LoadConfig(loggingPath)
	if err != nil {
		return fmt.Errorf("failed to load logging config: %w", err)
	}
	if a.verbose {
		logCfg.Level = "DEBUG"
	}
	if err := logger.InitializeWithWriter(logCfg, a.errOut); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	target, err := resolveTarget(cfg, &a.settings)
	if err != nil {
		return err
	}
	a.target = target
	logger.Debug("using target", "name", target.Name, "host", target.Host, "port", target.Port)
	return nil
}

// connect opens a session to the selected target.
func (a *app) connect(ctx context.Context) (*nutprotocol.Client, error) {
	opts, err := a.target.Options()
	if err != nil {
		return nil, err
	}
	opts.Logger = logger.Logger()
	return nutprotocol.Dial(ctx, a.target.Host, opts)
}

func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "%s %v\n", color.RedString("Error:"), err)
}

// GO CONCEPT: Exit Codes
// ----------------------
// func main() returns nothing. A Go program reports failure by calling
// os.Exit with a non-zero code. os.Exit ends the process at once, so
// deferred functions do not run. That is why all the real work happens in
// Execute, which returns an error, and main only turns it into a code.
//
// Compare with Python: sys.exit() raises SystemExit, so finally blocks
// still run. Go's os.Exit skips them.

func main() {
	root := newRootCmd(os.Stdout, os.Stderr)
	if err := root.Execute(); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}
