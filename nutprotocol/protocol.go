package nutprotocol

import (
	"crypto/tls"
	"time"
)

// Protocol constants.
const (
	// DefaultPort is the IANA-assigned port for upsd.
	DefaultPort = 3493

	// DefaultTimeout bounds dialing and every blocking read or write.
	DefaultTimeout = 30 * time.Second

	// MaxLineLength is the maximum accepted length of one response line in bytes.
	MaxLineLength = 4096

	// LineTerminator ends every request line.
	LineTerminator = "\n"

	// ListBegin opens a multi-line list response.
	ListBegin = "BEGIN LIST"

	// ListEnd closes a multi-line list response.
	ListEnd = "END LIST"

	// GoodbyeSentinel is the line upsd sends after LOGOUT.
	GoodbyeSentinel = "OK Goodbye"

	// StartTLSAccepted is the reply to STARTTLS when upsd is ready to handshake.
	StartTLSAccepted = "OK STARTTLS"

	// ErrorPrefix starts every error line.
	ErrorPrefix = "ERR"

	// HelpPrefix starts the single-line HELP reply.
	HelpPrefix = "Commands:"

	// ServerBannerMarker identifies the VER reply.
	ServerBannerMarker = "Network UPS Tools upsd"
)

// ProjectURLs are the project links upsd appends to its VER banner as " - <url>".
var ProjectURLs = []string{
	"https://www.networkupstools.org/",
	"http://www.networkupstools.org/",
}

// TLS protocol bounds accepted during STARTTLS.
const (
	MinTLSVersion = tls.VersionTLS12
	MaxTLSVersion = tls.VersionTLS13
)
