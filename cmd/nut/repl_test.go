package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/gonut/nut/internal/nuttest"
	"github.com/gonut/nut/nutprotocol"
)

// scriptedInput feeds the REPL a fixed list of lines, then io.EOF.
type scriptedInput struct {
	lines   []string
	prompts []string
}

func (s *scriptedInput) GetLine(prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	if len(s.lines) == 0 {
		return "", io.EOF
	}
	line := s.lines[0]
	s.lines = s.lines[1:]
	return line, nil
}

type replSession struct {
	srv    *nuttest.Server
	client *nutprotocol.Client
	in     *scriptedInput
	out    bytes.Buffer
	errOut bytes.Buffer
	repl   *repl
}

func newTestREPL(t *testing.T, srv *nuttest.Server, lines ...string) *replSession {
	t.Helper()
	client, err := nutprotocol.Dial(context.Background(), srv.Host(), nutprotocol.Options{Port: srv.Port(), Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	s := &replSession{srv: srv, client: client, in: &scriptedInput{lines: lines}}
	s.repl = newREPL(client, s.in, &s.out, &s.errOut)
	return s
}

func lastCommand(srv *nuttest.Server) string {
	cmds := srv.Commands()
	if len(cmds) == 0 {
		return ""
	}
	return cmds[len(cmds)-1]
}

func TestREPLQuitLogsOut(t *testing.T) {
	s := newTestREPL(t, nuttest.Start(t), ".quit")

	if err := s.repl.run(); err != nil {
		t.Fatalf("run() = %v", err)
	}
	if got := lastCommand(s.srv); got != "LOGOUT" {
		t.Errorf("last command = %q, want LOGOUT", got)
	}
	if !s.client.Conn().Closed() {
		t.Error("connection should be closed after .quit")
	}
}

func TestREPLEOFExits(t *testing.T) {
	s := newTestREPL(t, nuttest.Start(t))

	if err := s.repl.run(); err != nil {
		t.Fatalf("run() = %v", err)
	}
	if got := lastCommand(s.srv); got != "LOGOUT" {
		t.Errorf("last command = %q, want LOGOUT", got)
	}
}

func TestREPLEmptyLines(t *testing.T) {
	s := newTestREPL(t, nuttest.Start(t), "", "   ", ".quit")

	if err := s.repl.run(); err != nil {
		t.Fatalf("run() = %v", err)
	}
	if len(s.in.prompts) != 3 {
		t.Errorf("expected 3 prompts, got %d", len(s.in.prompts))
	}
	if got := s.srv.Commands(); len(got) != 3 {
		t.Errorf("empty lines should not be sent, commands = %v", got)
	}
}

func TestREPLRawCommands(t *testing.T) {
	s := newTestREPL(t, nuttest.Start(t),
		"GET VAR dummy-sim ups.status",
		"list cmd dummy-sim",
		"netver",
	)

	if err := s.repl.run(); err != nil {
		t.Fatalf("run() = %v", err)
	}
	want := "OL\ntest.battery.start\n1.3\n"
	if !strings.HasPrefix(s.out.String(), want) {
		t.Errorf("output = %q, want prefix %q", s.out.String(), want)
	}
	if s.errOut.Len() != 0 {
		t.Errorf("unexpected errors: %s", s.errOut.String())
	}
}

func TestREPLShorthands(t *testing.T) {
	s := newTestREPL(t, nuttest.Start(t),
		"ups",
		"get dummy-sim ups.firmware",
		".ups dummy-sim",
		"get battery.charge",
		"type input.transfer.high",
		"enum input.transfer.high",
		"range ups.delay.shutdown",
		"cmds",
	)

	if err := s.repl.run(); err != nil {
		t.Fatalf("run() = %v", err)
	}
	want := strings.Join([]string{
		"dummy-sim: Dummy UPS",
		"01.01.00",
		"100",
		"RW ENUM NUMBER",
		"264", "271", "280",
		"0 60", "120 180",
		"test.battery.start",
	}, "\n") + "\n"
	if !strings.HasPrefix(s.out.String(), want) {
		t.Errorf("output = %q, want prefix %q", s.out.String(), want)
	}
	for _, cmd := range []string{"LIST UPS", "GET VAR dummy-sim battery.charge", "LIST CMD dummy-sim"} {
		found := false
		for _, got := range s.srv.Commands() {
			if got == cmd {
				found = true
			}
		}
		if !found {
			t.Errorf("server never received %q", cmd)
		}
	}
}

func TestREPLPrompt(t *testing.T) {
	s := newTestREPL(t, nuttest.Start(t), ".ups dummy-sim", ".ups")

	if err := s.repl.run(); err != nil {
		t.Fatalf("run() = %v", err)
	}
	host := s.client.Conn().Host()
	if s.in.prompts[0] != "["+host+"] > " {
		t.Errorf("prompt = %q", s.in.prompts[0])
	}
	if s.in.prompts[1] != "[dummy-sim@"+host+"] > " {
		t.Errorf("prompt with default UPS = %q", s.in.prompts[1])
	}
	if !strings.Contains(s.out.String(), "dummy-sim\n") {
		t.Errorf(".ups should print the default UPS, got %q", s.out.String())
	}
}

func TestREPLShorthandNeedsUPS(t *testing.T) {
	s := newTestREPL(t, nuttest.Start(t), "vars")

	if err := s.repl.run(); err != nil {
		t.Fatalf("run() = %v", err)
	}
	if !strings.Contains(s.errOut.String(), "UPS name required") {
		t.Errorf("errors = %q", s.errOut.String())
	}
}

func TestREPLProtocolErrorKeepsSession(t *testing.T) {
	s := newTestREPL(t, nuttest.Start(t), "get dummy-sim no.such.var", "get dummy-sim ups.status")

	if err := s.repl.run(); err != nil {
		t.Fatalf("run() = %v", err)
	}
	if !strings.Contains(s.errOut.String(), "VAR-NOT-SUPPORTED") {
		t.Errorf("errors = %q", s.errOut.String())
	}
	if !strings.HasPrefix(s.out.String(), "OL\n") {
		t.Errorf("output = %q, session should continue after a protocol error", s.out.String())
	}
}

func TestREPLUnparsedCommandIsSentRaw(t *testing.T) {
	s := newTestREPL(t, nuttest.Start(t), "USERNAME monitor")

	if err := s.repl.run(); err != nil {
		t.Fatalf("run() = %v", err)
	}
	if !strings.HasPrefix(s.out.String(), "ERR UNKNOWN-COMMAND\n") {
		t.Errorf("output = %q", s.out.String())
	}
	if s.srv.Commands()[2] != "USERNAME monitor" {
		t.Errorf("commands = %v", s.srv.Commands())
	}
}

func TestREPLInvalidArgumentsNotSent(t *testing.T) {
	s := newTestREPL(t, nuttest.Start(t), "LIST VAR")

	if err := s.repl.run(); err != nil {
		t.Fatalf("run() = %v", err)
	}
	if s.errOut.Len() == 0 {
		t.Error("expected a parse error")
	}
	for _, cmd := range s.srv.Commands() {
		if strings.HasPrefix(cmd, "LIST") {
			t.Errorf("invalid command reached the server: %q", cmd)
		}
	}
}

func TestREPLLogoutCommand(t *testing.T) {
	s := newTestREPL(t, nuttest.Start(t), "logout", "ver")

	if err := s.repl.run(); err != nil {
		t.Fatalf("run() = %v", err)
	}
	if got := lastCommand(s.srv); got != "LOGOUT" {
		t.Errorf("last command = %q, want LOGOUT", got)
	}
	if len(s.in.lines) != 1 {
		t.Error("the REPL should stop reading after LOGOUT")
	}
}

func TestREPLStartTLSRejected(t *testing.T) {
	s := newTestREPL(t, nuttest.Start(t), "starttls")

	if err := s.repl.run(); err != nil {
		t.Fatalf("run() = %v", err)
	}
	if !strings.Contains(s.errOut.String(), "--encryption") {
		t.Errorf("errors = %q", s.errOut.String())
	}
	for _, cmd := range s.srv.Commands() {
		if cmd == "STARTTLS" {
			t.Error("STARTTLS must not be sent mid-session")
		}
	}
}

func TestREPLDotCommands(t *testing.T) {
	s := newTestREPL(t, nuttest.Start(t), ".help", ".HELP vars", ".help nothing", ".info", ".bogus")

	if err := s.repl.run(); err != nil {
		t.Fatalf("run() = %v", err)
	}
	out := s.out.String()
	for _, want := range []string{"Session Commands:", "LIST VAR", "Protocol version:", "2.8.0"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
	errs := s.errOut.String()
	if !strings.Contains(errs, "no help for 'nothing'") {
		t.Errorf("errors = %q", errs)
	}
	if !strings.Contains(errs, "unknown command '.bogus'") {
		t.Errorf("errors = %q", errs)
	}
}

func TestREPLConnectionLost(t *testing.T) {
	srv := nuttest.Start(t, nuttest.WithHangup("BEGIN LIST"), nuttest.WithHandler(func(cmd string) string {
		switch cmd {
		case "NETVER":
			return nuttest.NetVer + "\n"
		case "VER":
			return nuttest.VerBanner + "\n"
		}
		return "BEGIN LIST VAR dummy-sim\n"
	}))
	s := newTestREPL(t, srv, "vars dummy-sim", "ver")

	err := s.repl.run()
	var ce *nutprotocol.ConnectionError
	if !errors.As(err, &ce) {
		t.Fatalf("run() = %v, want ConnectionError", err)
	}
	if len(s.in.lines) != 1 {
		t.Error("the REPL should stop after the connection is lost")
	}
}

func TestREPLRawGoodbyeClosesConnection(t *testing.T) {
	device := nuttest.DeviceHandler(nuttest.DummySim())
	srv := nuttest.Start(t, nuttest.WithHandler(func(cmd string) string {
		if cmd == "QUIT" {
			return nuttest.GoodbyeLine + "\n"
		}
		return device(cmd)
	}))
	s := newTestREPL(t, srv, "QUIT", "ver")

	if err := s.repl.run(); err != nil {
		t.Fatalf("run() = %v", err)
	}
	if !strings.Contains(s.out.String(), nutprotocol.GoodbyeSentinel) {
		t.Errorf("output = %q", s.out.String())
	}
	if !s.client.Conn().Closed() {
		t.Error("connection should be closed after the server says goodbye")
	}
	if len(s.in.lines) != 1 {
		t.Error("the REPL should stop after the server says goodbye")
	}
	// Quitting again after the session ended is harmless.
	if err := s.repl.quit(); err != nil {
		t.Errorf("quit() after goodbye = %v", err)
	}
}
