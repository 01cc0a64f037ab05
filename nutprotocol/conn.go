package nutprotocol

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"
)

// Options configures a Connection. Zero values select the defaults.
type Options struct {
	// Port of upsd. Defaults to DefaultPort.
	Port int

	// Timeout bounds dialing, the TLS handshake and every line read or write.
	// Defaults to DefaultTimeout.
	Timeout time.Duration

	// Encryption selects STARTTLS behavior. The zero value is EncryptionOff.
	Encryption EncryptionMode

	// TLSConfig overrides the handshake configuration. When nil the peer is
	// not verified and TLS 1.2 to 1.3 is accepted.
	TLSConfig *tls.Config

	// Logger receives debug output. Defaults to a discarding logger.
	Logger *slog.Logger
}

func (o Options) withDefaults(host string) Options {
	if o.Port == 0 {
		o.Port = DefaultPort
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	if o.TLSConfig == nil {
		o.TLSConfig = defaultTLSConfig(host)
	} else {
		cfg := o.TLSConfig.Clone()
		if cfg.MinVersion == 0 {
			cfg.MinVersion = MinTLSVersion
		}
		if cfg.MaxVersion == 0 {
			cfg.MaxVersion = MaxTLSVersion
		}
		if cfg.ServerName == "" && !cfg.InsecureSkipVerify {
			cfg.ServerName = host
		}
		o.TLSConfig = cfg
	}
	return o
}

// Conn is one session with upsd.
//
// A Conn sends exactly one command at a time and waits for its whole
// response before the next command may be written. It is safe to call from
// several goroutines; calls are serialized. Transport failures close the
// Conn, after which every call returns ErrNotConnected.
type Conn struct {
	mu sync.Mutex

	ch      *channel
	host    string
	port    int
	logger  *slog.Logger
	parser  *ValueParser
	state   EncryptionState
	goodbye bool

	protocolVersion string
	serverVersion   string
	serverBanner    string
}

// Connect dials upsd, negotiates encryption as requested and reads the
// protocol and server versions. On any failure the socket is closed and
// no Conn is returned.
func Connect(ctx context.Context, host string, opts Options) (*Conn, error) {
	c, err := dial(ctx, host, opts)
	if err != nil {
		return nil, err
	}
	if err := c.finalizeSession(); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// dial opens the channel and runs STARTTLS. The returned Conn can send
// commands but carries no session metadata yet.
func dial(ctx context.Context, host string, opts Options) (*Conn, error) {
	opts = opts.withDefaults(host)

	ch, err := dialChannel(ctx, host, opts.Port, opts.Timeout)
	if err != nil {
		return nil, err
	}
	opts.Logger.Debug("connected", "address", ch.address)

	n := newNegotiator(ch, opts.Encryption, opts.TLSConfig, opts.Logger)
	state, err := n.negotiate()
	if err != nil {
		ch.Close()
		return nil, receiveError(ch.address, err)
	}

	return &Conn{
		ch:     ch,
		host:   host,
		port:   opts.Port,
		logger: opts.Logger,
		parser: NewValueParser(),
		state:  state,
	}, nil
}

// finalizeSession issues NETVER then VER over the final channel.
func (c *Conn) finalizeSession() error {
	raw, err := c.Send(NewNetVerCommand())
	if err != nil {
		return err
	}
	if c.protocolVersion, err = c.parser.ParseScalar(raw); err != nil {
		return err
	}

	raw, err = c.Send(NewVerCommand())
	if err != nil {
		return err
	}
	if c.serverBanner, err = c.parser.ParseScalar(raw); err != nil {
		return err
	}
	c.serverVersion = LastWord(c.serverBanner)

	c.logger.Debug("session ready",
		"address", c.Address(),
		"protocol", c.protocolVersion,
		"server", c.serverVersion,
		"encrypted", c.Encrypted())
	return nil
}

// Send writes cmd, reads its framed response without list markers and
// classifies it against the command's error checks.
func (c *Conn) Send(cmd Command) (RawResponse, error) {
	if err := cmd.Validate(); err != nil {
		return RawResponse{}, err
	}
	raw, err := c.roundTrip(cmd.Format(), FrameOptions{})
	if err != nil {
		return RawResponse{}, err
	}
	if err := Classify(cmd.Format(), raw, cmd.Type.Checks()...); err != nil {
		return RawResponse{}, err
	}
	return raw, nil
}

// SendRaw writes an arbitrary command line and returns its framed response
// with list markers kept. No error classification is done.
func (c *Conn) SendRaw(line string) (RawResponse, error) {
	if len(line) > MaxLineLength {
		return RawResponse{}, ErrLineTooLong
	}
	return c.roundTrip(line, FrameOptions{KeepScaffolding: true})
}

func (c *Conn) roundTrip(line string, opts FrameOptions) (RawResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ch == nil {
		return RawResponse{}, ErrNotConnected
	}
	if c.goodbye {
		return RawResponse{}, ErrSessionClosed
	}

	if err := c.ch.WriteLine(line); err != nil {
		c.closeLocked()
		return RawResponse{}, err
	}
	raw, err := readResponse(c.ch, opts)
	if err != nil {
		c.closeLocked()
		return RawResponse{}, receiveError(c.Address(), err)
	}
	if raw.Goodbye {
		c.goodbye = true
	}

	c.logger.Debug("response", "command", line, "lines", len(raw.Lines), "goodbye", raw.Goodbye)
	return raw, nil
}

// Logout sends LOGOUT, waits for OK Goodbye and closes the socket. The
// socket is closed even when LOGOUT fails. Logging out of a closed
// connection does nothing.
func (c *Conn) Logout() error {
	if c.Closed() {
		return nil
	}
	_, err := c.Send(NewLogoutCommand())
	if cerr := c.Close(); err == nil {
		err = cerr
	}
	if errors.Is(err, ErrSessionClosed) {
		return nil
	}
	return err
}

// Close closes the socket without LOGOUT. It is safe to call more than once.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked()
}

func (c *Conn) closeLocked() error {
	if c.ch == nil {
		return nil
	}
	err := c.ch.Close()
	c.ch = nil
	return err
}

// Address returns host:port of the server.
func (c *Conn) Address() string {
	return joinAddress(c.host, c.port)
}

// Host returns the host the Conn was dialed with.
func (c *Conn) Host() string { return c.host }

// Port returns the server port.
func (c *Conn) Port() int { return c.port }

// Encrypted reports whether STARTTLS completed. It never reverts to false.
func (c *Conn) Encrypted() bool { return c.state == StateEncrypted }

// EncryptionState returns the negotiator's final state.
func (c *Conn) EncryptionState() EncryptionState { return c.state }

// ProtocolVersion returns the NETVER reply, e.g. "1.3".
func (c *Conn) ProtocolVersion() string { return c.protocolVersion }

// ServerVersion returns the version token of the VER banner, e.g. "2.8.0".
func (c *Conn) ServerVersion() string { return c.serverVersion }

// ServerBanner returns the VER reply without the project URL.
func (c *Conn) ServerBanner() string { return c.serverBanner }

// Closed reports whether the socket has been closed.
func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ch == nil
}

// receiveError makes a broken read a ConnectionError. Errors that are
// already typed pass through.
func receiveError(address string, err error) error {
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, ErrLineTooLong) {
		return NewConnectionError("receive", address, err)
	}
	return err
}
