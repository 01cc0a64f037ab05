package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ergochat/readline"
	"golang.org/x/term"
)

const (
	historyFileName = ".nut_history"
	historySize     = 500
)

// GO CONCEPT: Implicit Interfaces
// -------------------------------
// An interface lists methods. Any type with those methods satisfies it,
// with no "implements" declaration. *LineEditor has a GetLine method, so
// it is a lineReader. So is the scripted input the REPL tests use, which
// never mentions lineReader at all.
//
// Small interfaces defined where they are used, like this one, keep the
// REPL independent of readline.
//
// Compare to Swift: a type must declare protocol conformance, either on
// the type or in an extension.

// lineReader is what the REPL reads input from.
type lineReader interface {
	GetLine(prompt string) (string, error)
}

// LineEditor reads REPL input. On a terminal it uses readline with
// persistent history; otherwise it reads plain lines so piped input and
// editor shells (INSIDE_EMACS) keep working.
type LineEditor struct {
	interactive bool
	rl          *readline.Instance
	scanner     *bufio.Scanner
	prompts     io.Writer
}

// NewLineEditor picks interactive or plain mode based on stdin.
func NewLineEditor() *LineEditor {
	isInteractive := term.IsTerminal(int(os.Stdin.Fd())) &&
		os.Getenv("INSIDE_EMACS") == ""

	if !isInteractive {
		return newPlainLineEditor(os.Stdin, os.Stdout)
	}

	rl, err := readline.NewFromConfig(&readline.Config{
		HistoryFile:            historyPath(),
		HistoryLimit:           historySize,
		DisableAutoSaveHistory: true,
		Prompt:                 "",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: readline init failed (%v), using basic input\n", err)
		return newPlainLineEditor(os.Stdin, os.Stdout)
	}

	return &LineEditor{interactive: true, rl: rl}
}

// GO CONCEPT: bufio.Scanner
// -------------------------
// bufio.Scanner splits a reader into lines. Scan() advances and Text()
// returns the line without its newline. Buffer() sets the starting size
// and the ceiling. A line longer than the ceiling makes Scan stop, and
// Err() then returns bufio.ErrTooLong.

func newPlainLineEditor(in io.Reader, prompts io.Writer) *LineEditor {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 4096), 64*1024)
	return &LineEditor{scanner: scanner, prompts: prompts}
}

func historyPath() string {
	return filepath.Join(homeDir(), historyFileName)
}

// GetLine shows prompt and returns the next line without its newline.
// Ctrl-C and end of input both return io.EOF.
func (le *LineEditor) GetLine(prompt string) (string, error) {
	if le.interactive {
		return le.getInteractiveLine(prompt)
	}
	return le.getPlainLine(prompt)
}

func (le *LineEditor) getInteractiveLine(prompt string) (string, error) {
	le.rl.SetPrompt(prompt)
	line, err := le.rl.Readline()
	if err != nil {
		if err == readline.ErrInterrupt {
			return "", io.EOF
		}
		return "", err
	}

	if trimmed := strings.TrimSpace(line); trimmed != "" {
		le.rl.SaveToHistory(trimmed)
	}
	return line, nil
}

func (le *LineEditor) getPlainLine(prompt string) (string, error) {
	if le.prompts != nil {
		fmt.Fprint(le.prompts, prompt)
	}
	if !le.scanner.Scan() {
		if err := le.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return le.scanner.Text(), nil
}

// Close releases the terminal. Safe to call more than once.
func (le *LineEditor) Close() {
	if le.rl != nil {
		le.rl.Close()
		le.rl = nil
	}
}

// IsInteractive reports whether readline is in use.
func (le *LineEditor) IsInteractive() bool {
	return le.interactive
}
