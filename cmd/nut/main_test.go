package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/gonut/nut/internal/config"
	"github.com/gonut/nut/internal/nuttest"
	"github.com/gonut/nut/internal/store"
	"github.com/gonut/nut/nutprotocol"
)

// runCLI executes the root command with args and returns what it printed.
func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd(&out, &errOut)
	root.SetArgs(append([]string{"--no-color", "--config", filepath.Join(t.TempDir(), "missing.yaml")}, args...))
	err := root.Execute()
	return out.String(), errOut.String(), err
}

func serverArgs(srv *nuttest.Server) []string {
	return []string{
		"--host", srv.Host(),
		"--port", strconv.Itoa(srv.Port()),
		"--encryption", "off",
		"--timeout", "2s",
	}
}

func TestFullTitle(t *testing.T) {
	title := fullTitle()
	if !strings.HasPrefix(title, appName) {
		t.Errorf("fullTitle() = %q, want prefix %q", title, appName)
	}
	if !strings.Contains(title, version) {
		t.Errorf("fullTitle() = %q, missing version %q", title, version)
	}
}

func TestVersionCommand(t *testing.T) {
	srv := nuttest.Start(t)

	out, _, err := runCLI(t, append(serverArgs(srv), "version")...)
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	for _, want := range []string{"Protocol version: 1.3", "2.8.0", "unencrypted", srv.Addr()} {
		if !strings.Contains(out, want) {
			t.Errorf("version output missing %q:\n%s", want, out)
		}
	}

	cmds := srv.Commands()
	if cmds[len(cmds)-1] != "LOGOUT" {
		t.Errorf("last command = %q, want LOGOUT", cmds[len(cmds)-1])
	}
}

func TestListCommand(t *testing.T) {
	srv := nuttest.Start(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"ups", []string{"list", "ups"}, "dummy-sim: Dummy UPS\n"},
		{"var", []string{"list", "var", "dummy-sim"}, "ups.status: OL\n"},
		{"rw", []string{"list", "rw", "dummy-sim"}, "input.transfer.high: 264\nups.delay.shutdown: 20\n"},
		{"cmd", []string{"list", "cmd", "dummy-sim"}, "test.battery.start\n"},
		{"client", []string{"list", "client", "dummy-sim"}, "127.0.0.1\n"},
		{"enum", []string{"list", "enum", "dummy-sim", "input.transfer.high"}, "264\n271\n280\n"},
		{"range", []string{"list", "range", "dummy-sim", "ups.delay.shutdown"}, "0 60\n120 180\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := runCLI(t, append(serverArgs(srv), tt.args...)...)
			if err != nil {
				t.Fatalf("%v failed: %v", tt.args, err)
			}
			if !strings.Contains(out, tt.want) {
				t.Errorf("output = %q, want it to contain %q", out, tt.want)
			}
		})
	}
}

func TestGetCommand(t *testing.T) {
	srv := nuttest.Start(t)

	tests := []struct {
		args []string
		want string
	}{
		{[]string{"get", "var", "dummy-sim", "ups.status"}, "OL\n"},
		{[]string{"get", "type", "dummy-sim", "input.transfer.high"}, "RW ENUM NUMBER\n"},
		{[]string{"get", "desc", "dummy-sim", "ups.status"}, "UPS status\n"},
		{[]string{"get", "cmddesc", "dummy-sim", "test.battery.start"}, "Start a battery test\n"},
		{[]string{"get", "numlogins", "dummy-sim"}, "1\n"},
		{[]string{"get", "upsdesc", "dummy-sim"}, "Dummy UPS\n"},
	}

	for _, tt := range tests {
		t.Run(strings.Join(tt.args[1:], " "), func(t *testing.T) {
			out, _, err := runCLI(t, append(serverArgs(srv), tt.args...)...)
			if err != nil {
				t.Fatalf("%v failed: %v", tt.args, err)
			}
			if out != tt.want {
				t.Errorf("output = %q, want %q", out, tt.want)
			}
		})
	}
}

func TestDefaultUPSFromAddress(t *testing.T) {
	srv := nuttest.Start(t)
	host := fmt.Sprintf("dummy-sim@%s", srv.Addr())

	out, _, err := runCLI(t, "--host", host, "--encryption", "off", "get", "var", "battery.charge")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if out != "100\n" {
		t.Errorf("output = %q, want %q", out, "100\n")
	}

	out, _, err = runCLI(t, "--host", host, "--encryption", "off", "list", "cmd")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if out != "test.battery.start\n" {
		t.Errorf("output = %q", out)
	}
}

func TestCommandsCommand(t *testing.T) {
	srv := nuttest.Start(t)

	out, _, err := runCLI(t, append(serverArgs(srv), "commands")...)
	if err != nil {
		t.Fatalf("commands failed: %v", err)
	}
	lines := strings.Fields(out)
	if len(lines) == 0 || lines[0] != "HELP" {
		t.Errorf("commands output = %q", out)
	}
	if !strings.Contains(out, "STARTTLS\n") {
		t.Errorf("commands output missing STARTTLS: %q", out)
	}
}

func TestProtocolErrorIsReturned(t *testing.T) {
	srv := nuttest.Start(t)

	_, _, err := runCLI(t, append(serverArgs(srv), "list", "var", "nope")...)
	if !errors.Is(err, nutprotocol.ErrUnknownUPS) {
		t.Errorf("error = %v, want ErrUnknownUPS", err)
	}
}

func TestMissingUPSArgument(t *testing.T) {
	srv := nuttest.Start(t)

	_, _, err := runCLI(t, append(serverArgs(srv), "list", "var")...)
	var pe *nutprotocol.ParseError
	if !errors.As(err, &pe) || pe.Kind != nutprotocol.ErrKindMissingArgument {
		t.Errorf("error = %v, want missing argument", err)
	}
	if len(srv.Commands()) != 0 {
		t.Errorf("nothing should be sent for an invalid command, got %v", srv.Commands())
	}
}

func TestInvalidEncryptionFlag(t *testing.T) {
	_, _, err := runCLI(t, "--encryption", "sometimes", "version")
	if err == nil {
		t.Fatal("expected error for invalid encryption mode")
	}
}

func TestConnectionRefused(t *testing.T) {
	srv := nuttest.Start(t)
	args := serverArgs(srv)
	srv.Stop()

	_, _, err := runCLI(t, append(args, "version")...)
	var ce *nutprotocol.ConnectionError
	if !errors.As(err, &ce) {
		t.Errorf("error = %v, want ConnectionError", err)
	}
}

func TestVerboseLogsToStderr(t *testing.T) {
	srv := nuttest.Start(t)

	out, errOut, err := runCLI(t, append(serverArgs(srv), "--verbose", "get", "var", "dummy-sim", "ups.status")...)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if out != "OL\n" {
		t.Errorf("stdout = %q, logging must not reach stdout", out)
	}
	if !strings.Contains(errOut, "level=DEBUG") {
		t.Errorf("stderr has no debug logging:\n%s", errOut)
	}
}

func TestPollOnce(t *testing.T) {
	srv := nuttest.Start(t)

	out, _, err := runCLI(t, append(serverArgs(srv), "poll", "--once")...)
	if err != nil {
		t.Fatalf("poll --once failed: %v", err)
	}
	for _, want := range []string{srv.Host() + "/dummy-sim\n", "  battery.charge: 100\n", "  ups.status: OL\n"} {
		if !strings.Contains(out, want) {
			t.Errorf("poll output missing %q:\n%s", want, out)
		}
	}
}

func TestPollOnceWithStore(t *testing.T) {
	srv := nuttest.Start(t)
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "nut.db")
	cfgPath := filepath.Join(dir, "nut.yaml")

	yaml := fmt.Sprintf(`targets:
  - name: lab
    host: %s
    port: %d
    timeout: 2s
    encryption: "off"
poll:
  variables: [battery.charge, ups.status]
store:
  enabled: true
  driver: sqlite
  path: %s
`, srv.Host(), srv.Port(), dbPath)
	if err := os.WriteFile(cfgPath, []byte(yaml), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	var out, errOut bytes.Buffer
	root := newRootCmd(&out, &errOut)
	root.SetArgs([]string{"--no-color", "--config", cfgPath, "poll", "--once"})
	if err := root.Execute(); err != nil {
		t.Fatalf("poll --once failed: %v\n%s", err, errOut.String())
	}

	st, err := store.Open(config.StoreConfig{Driver: "sqlite", Path: dbPath})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	snap, err := st.Latest(context.Background(), "lab", "dummy-sim")
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	want := map[string]string{"battery.charge": "100", "ups.status": "OL"}
	if len(snap.Values) != len(want) {
		t.Errorf("stored values = %v, want %v", snap.Values, want)
	}
	for k, v := range want {
		if snap.Values[k] != v {
			t.Errorf("stored %s = %q, want %q", k, snap.Values[k], v)
		}
	}
}

func TestPollConfigOverrides(t *testing.T) {
	a := &app{cfg: config.DefaultConfig()}
	a.cfg.Targets = []config.Target{{Name: "a"}, {Name: "b"}}

	if got := a.pollConfig(); len(got.Targets) != 2 {
		t.Errorf("without flags all targets are polled, got %d", len(got.Targets))
	}

	a.hostSet = true
	a.target = config.Target{Name: "override"}
	a.ups = "dummy-sim"
	got := a.pollConfig()
	if len(got.Targets) != 1 || got.Targets[0].Name != "override" {
		t.Fatalf("targets = %+v, want the override only", got.Targets)
	}
	if len(got.Targets[0].UPS) != 1 || got.Targets[0].UPS[0] != "dummy-sim" {
		t.Errorf("UPS = %v, want [dummy-sim]", got.Targets[0].UPS)
	}
	if len(a.cfg.Targets) != 2 {
		t.Error("pollConfig must not modify the loaded configuration")
	}
}
