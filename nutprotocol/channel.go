package nutprotocol

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"strconv"
	"strings"
	"time"
)

// channel owns the TCP stream to upsd, optionally wrapped in TLS after
// STARTTLS. It writes one newline-terminated command at a time and reads
// whole lines back. Every blocking call is bounded by timeout.
type channel struct {
	conn    net.Conn
	reader  *bufio.Reader
	address string
	timeout time.Duration
}

// dialChannel opens a TCP connection to host:port.
func dialChannel(ctx context.Context, host string, port int, timeout time.Duration) (*channel, error) {
	address := joinAddress(host, port)

	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(connectCtx, "tcp", address)
	if err != nil {
		return nil, NewConnectionError("dial", address, err)
	}

	return newChannel(conn, address, timeout), nil
}

func newChannel(conn net.Conn, address string, timeout time.Duration) *channel {
	return &channel{
		conn:    conn,
		reader:  bufio.NewReaderSize(conn, MaxLineLength),
		address: address,
		timeout: timeout,
	}
}

// WriteLine sends command followed by a single newline.
func (ch *channel) WriteLine(command string) error {
	if ch.conn == nil {
		return ErrNotConnected
	}
	if err := ch.conn.SetWriteDeadline(time.Now().Add(ch.timeout)); err != nil {
		return NewConnectionError("send", ch.address, err)
	}
	if _, err := io.WriteString(ch.conn, command+LineTerminator); err != nil {
		return NewConnectionError("send", ch.address, err)
	}
	return nil
}

// ReadLine blocks until a full line arrives and returns it without the
// terminator. A closed stream returns io.EOF immediately, a line longer
// than MaxLineLength returns ErrLineTooLong, and an idle timeout surfaces
// as a ConnectionError.
func (ch *channel) ReadLine() (string, error) {
	if ch.conn == nil {
		return "", ErrNotConnected
	}
	if err := ch.conn.SetReadDeadline(time.Now().Add(ch.timeout)); err != nil {
		return "", NewConnectionError("receive", ch.address, err)
	}

	line, err := ch.reader.ReadSlice('\n')
	switch {
	case err == nil:
	case errors.Is(err, bufio.ErrBufferFull):
		return "", ErrLineTooLong
	case errors.Is(err, io.EOF):
		if len(line) > 0 {
			// Final line without a terminator.
			return strings.TrimRight(string(line), "\r\n"), nil
		}
		return "", io.EOF
	default:
		return "", NewConnectionError("receive", ch.address, err)
	}

	return strings.TrimRight(string(line), "\r\n"), nil
}

// UpgradeTLS performs a client handshake over the existing TCP stream and
// swaps the reader so every following read goes through TLS.
func (ch *channel) UpgradeTLS(cfg *tls.Config) error {
	if ch.conn == nil {
		return ErrNotConnected
	}
	tlsConn := tls.Client(ch.conn, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), ch.timeout)
	defer cancel()
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		return &HandshakeError{Address: ch.address, Cause: err}
	}

	ch.conn = tlsConn
	ch.reader = bufio.NewReaderSize(tlsConn, MaxLineLength)
	return nil
}

// Close closes the underlying stream. It is safe to call more than once.
func (ch *channel) Close() error {
	if ch.conn == nil {
		return nil
	}
	err := ch.conn.Close()
	ch.conn = nil
	ch.reader = nil
	return err
}

func joinAddress(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
