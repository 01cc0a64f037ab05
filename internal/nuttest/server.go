// Package nuttest provides a scripted upsd for tests.
//
// Server listens on a loopback TCP port and answers each command line with
// the text returned by its Handler. STARTTLS is handled by the server itself
// when TLS is enabled, using the net/http/httptest certificate.
package nuttest

import (
	"bufio"
	"crypto/tls"
	"crypto/x509"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// Handler returns the full reply to one command line, including line
// terminators. An empty reply sends nothing.
type Handler func(cmd string) string

// Server is a fake upsd.
type Server struct {
	listener net.Listener
	handler  Handler

	tlsConfig      *tls.Config
	rootCAs        *x509.CertPool
	breakHandshake bool
	hangupPrefixes []string

	mu          sync.Mutex
	connections []net.Conn
	commands    []string

	wg sync.WaitGroup
}

// Option configures a Server.
type Option func(*Server)

// WithHandler replaces the default dummy-sim handler.
func WithHandler(h Handler) Option {
	return func(s *Server) { s.handler = h }
}

// WithTLS makes the server accept STARTTLS with a self-signed certificate.
func WithTLS() Option {
	return func(s *Server) {
		srv := httptest.NewUnstartedServer(http.NotFoundHandler())
		srv.StartTLS()
		s.tlsConfig = &tls.Config{
			Certificates: srv.TLS.Certificates,
			MinVersion:   tls.VersionTLS12,
		}
		s.rootCAs = x509.NewCertPool()
		s.rootCAs.AddCert(srv.Certificate())
		srv.Close()
	}
}

// WithBrokenHandshake makes the server accept STARTTLS and then answer the
// client hello with plain text.
func WithBrokenHandshake() Option {
	return func(s *Server) { s.breakHandshake = true }
}

// WithHangup closes the client socket after sending a reply that starts
// with prefix.
func WithHangup(prefix string) Option {
	return func(s *Server) { s.hangupPrefixes = append(s.hangupPrefixes, prefix) }
}

// WithCloseAfterGoodbye closes the client socket after sending OK Goodbye,
// as upsd does.
func WithCloseAfterGoodbye() Option {
	return WithHangup(GoodbyeLine)
}

// Start starts a server on 127.0.0.1 and stops it when the test ends.
func Start(t testing.TB, opts ...Option) *Server {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}

	s := &Server{
		listener: listener,
		handler:  DeviceHandler(DummySim()),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.wg.Add(1)
	go s.acceptLoop()

	t.Cleanup(s.Stop)
	return s
}

// Host returns the listening host.
func (s *Server) Host() string {
	host, _, _ := net.SplitHostPort(s.listener.Addr().String())
	return host
}

// Port returns the listening port.
func (s *Server) Port() int {
	_, port, _ := net.SplitHostPort(s.listener.Addr().String())
	n, _ := strconv.Atoi(port)
	return n
}

// Addr returns host:port.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// RootCAs returns a pool trusting the STARTTLS certificate, or nil
// without WithTLS.
func (s *Server) RootCAs() *x509.CertPool {
	return s.rootCAs
}

// Commands returns every command line received so far, in order.
func (s *Server) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

// Stop closes the listener and every client connection.
func (s *Server) Stop() {
	s.listener.Close()

	s.mu.Lock()
	for _, conn := range s.connections {
		conn.Close()
	}
	s.connections = nil
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}

		s.mu.Lock()
		s.connections = append(s.connections, conn)
		s.mu.Unlock()

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()

	reader := bufio.NewReader(conn)
	var w io.Writer = conn
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		cmd := strings.TrimRight(line, "\r\n")

		s.mu.Lock()
		s.commands = append(s.commands, cmd)
		s.mu.Unlock()

		if cmd == "STARTTLS" && (s.tlsConfig != nil || s.breakHandshake) {
			io.WriteString(w, "OK STARTTLS\n")
			if s.breakHandshake {
				io.WriteString(w, "this is not a server hello\n")
				conn.Close()
				return
			}
			tlsConn := tls.Server(conn, s.tlsConfig)
			if err := tlsConn.Handshake(); err != nil {
				conn.Close()
				return
			}
			s.mu.Lock()
			s.connections = append(s.connections, tlsConn)
			s.mu.Unlock()
			reader = bufio.NewReader(tlsConn)
			w = tlsConn
			continue
		}

		reply := s.handler(cmd)
		if reply != "" {
			io.WriteString(w, reply)
		}
		if s.hangsUp(reply) {
			conn.Close()
			return
		}
	}
}

func (s *Server) hangsUp(reply string) bool {
	for _, prefix := range s.hangupPrefixes {
		if strings.HasPrefix(reply, prefix) {
			return true
		}
	}
	return false
}
