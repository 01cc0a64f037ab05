package nutprotocol

import (
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// EncryptionMode selects whether STARTTLS is attempted.
type EncryptionMode int

const (
	// EncryptionOff never sends STARTTLS.
	EncryptionOff EncryptionMode = iota
	// EncryptionTry sends STARTTLS and stays in plain text if upsd refuses.
	EncryptionTry
	// EncryptionForce fails the connection if upsd refuses STARTTLS.
	EncryptionForce
)

// String returns the mode name as used in configuration.
func (m EncryptionMode) String() string {
	switch m {
	case EncryptionOff:
		return "off"
	case EncryptionTry:
		return "try"
	case EncryptionForce:
		return "force"
	default:
		return fmt.Sprintf("EncryptionMode(%d)", int(m))
	}
}

// ParseEncryptionMode parses "off", "try" or "force".
func ParseEncryptionMode(s string) (EncryptionMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off", "none", "false":
		return EncryptionOff, nil
	case "try", "", "opportunistic":
		return EncryptionTry, nil
	case "force", "required", "true":
		return EncryptionForce, nil
	default:
		return EncryptionOff, fmt.Errorf("unknown encryption mode %q", s)
	}
}

// EncryptionState is the negotiator's position in the STARTTLS exchange.
type EncryptionState int

const (
	StateUnencrypted EncryptionState = iota
	StateNegotiating
	StateEncrypted
	StateFailed
)

// String returns the state name.
func (s EncryptionState) String() string {
	switch s {
	case StateUnencrypted:
		return "unencrypted"
	case StateNegotiating:
		return "negotiating"
	case StateEncrypted:
		return "encrypted"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("EncryptionState(%d)", int(s))
	}
}

// tlsChannel is the part of the channel the negotiator drives.
type tlsChannel interface {
	lineReader
	WriteLine(command string) error
	UpgradeTLS(cfg *tls.Config) error
	Close() error
}

// startTLSRefusals are the reasons upsd gives for refusing STARTTLS.
var startTLSRefusals = []ProtocolErrorKind{
	ErrKindFeatureNotSupported,
	ErrKindFeatureNotConfigured,
	ErrKindAlreadySSLMode,
}

// negotiator runs STARTTLS once on a fresh channel, before any other command.
type negotiator struct {
	ch     tlsChannel
	mode   EncryptionMode
	config *tls.Config
	logger *slog.Logger
	state  EncryptionState
}

// defaultTLSConfig accepts TLS 1.2 and 1.3 without verifying the peer,
// since upsd certificates are commonly self-signed.
func defaultTLSConfig(serverName string) *tls.Config {
	return &tls.Config{
		MinVersion:         MinTLSVersion,
		MaxVersion:         MaxTLSVersion,
		ServerName:         serverName,
		InsecureSkipVerify: true,
	}
}

func newNegotiator(ch tlsChannel, mode EncryptionMode, cfg *tls.Config, logger *slog.Logger) *negotiator {
	return &negotiator{
		ch:     ch,
		mode:   mode,
		config: cfg,
		logger: logger,
		state:  StateUnencrypted,
	}
}

// negotiate sends STARTTLS and reads one line. On OK STARTTLS the channel is
// upgraded in place; a failed handshake closes it. A refusal is an error
// only in EncryptionForce mode, where the reply token picks the error kind.
func (n *negotiator) negotiate() (EncryptionState, error) {
	if n.mode == EncryptionOff || n.state != StateUnencrypted {
		return n.state, nil
	}
	n.state = StateNegotiating

	if err := n.ch.WriteLine(CmdStartTLS.Verb()); err != nil {
		n.state = StateFailed
		return n.state, err
	}
	resp, err := readResponse(n.ch, FrameOptions{})
	if err != nil {
		n.state = StateFailed
		return n.state, err
	}
	reply := resp.Text()

	if strings.Contains(reply, StartTLSAccepted) {
		if err := n.ch.UpgradeTLS(n.config); err != nil {
			n.ch.Close()
			n.state = StateFailed
			return n.state, err
		}
		n.logger.Debug("STARTTLS negotiated")
		n.state = StateEncrypted
		return n.state, nil
	}

	if n.mode == EncryptionForce {
		n.state = StateFailed
		var pe *ProtocolError
		err := Classify(CmdStartTLS.Verb(), resp, startTLSRefusals...)
		if errors.As(err, &pe) && containsKind(startTLSRefusals, pe.Kind) {
			return n.state, err
		}
		return n.state, fmt.Errorf("%w: %s", ErrEncryptionRequired, reply)
	}

	n.logger.Warn("STARTTLS refused, continuing unencrypted", "reply", reply)
	n.state = StateUnencrypted
	return n.state, nil
}
