// Package nutprotocol implements the client side of the Network UPS Tools
// (NUT) network protocol spoken by upsd.
//
// # Protocol Overview
//
// The protocol is plain text, line oriented and strictly request/response
// over TCP port 3493. Exactly one command is outstanding at a time.
//
//	Request:          VERB [ARG ...]\n
//	Scalar response:  VAR <ups> <name> "<value>"\n
//	List response:    BEGIN LIST <VERB> ...\n ... END LIST <VERB> ...\n
//	Error response:   ERR <TOKEN> [extra]\n
//	Session end:      OK Goodbye\n
//
// Example session:
//
//	CLI: NETVER
//	SRV: 1.3
//	CLI: GET VAR dummy-sim ups.firmware
//	SRV: VAR dummy-sim ups.firmware "01.01.00"
//	CLI: LOGOUT
//	SRV: OK Goodbye
//
// # Basic Usage
//
//	client, err := nutprotocol.Dial(ctx, "localhost", nutprotocol.Options{
//	    Encryption: nutprotocol.EncryptionTry,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Logout()
//
//	firmware, err := client.Var("dummy-sim", "ups.firmware")
//	if errors.Is(err, nutprotocol.ErrUnknownUPS) {
//	    // try another device
//	}
//
// # Encryption
//
// With EncryptionTry or EncryptionForce the connection sends STARTTLS before
// anything else and upgrades the socket in place when upsd answers
// OK STARTTLS. EncryptionTry stays in plain text when upsd refuses;
// EncryptionForce fails with the refusal's error kind.
//
// # Responses
//
// Conn.Send returns a RawResponse: the trimmed lines of one reply with list
// markers removed. ValueParser turns it into a scalar or a ListResponse,
// which is one of ListSequence, ListMapping or ListCommands.
//
// # Errors
//
//   - ConnectionError: dial, send or receive failed. The Conn is closed.
//   - HandshakeError: TLS handshake failed after OK STARTTLS.
//   - ProtocolError: upsd answered with an error token. Match with errors.Is
//     against ErrUnknownUPS, ErrVarNotSupported and the other values.
//   - ParseError: command text or response shape could not be understood.
//
// # Parsing Commands
//
// To parse command text (e.g., from user input):
//
//	parser := nutprotocol.NewCommandParser()
//	cmd, err := parser.Parse("list var dummy-sim")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Thread Safety
//
// Conn and Client are safe for concurrent use; commands are serialized on
// the connection. Poll several devices concurrently with one Conn each.
package nutprotocol
