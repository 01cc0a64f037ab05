package nutprotocol

import (
	"context"
	"strconv"
	"strings"
)

// Client issues typed upsd queries over a Conn.
//
// Every method sends one command, checks the response for the error
// tokens relevant to that command and only then extracts the value.
// Thread Safety: a Client is as safe as its Conn; calls are serialized.
type Client struct {
	conn   *Conn
	parser *ValueParser
}

// Range is one allowed interval from LIST RANGE.
type Range struct {
	Min string
	Max string
}

// NewClient wraps an established connection.
func NewClient(conn *Conn) *Client {
	return &Client{conn: conn, parser: NewValueParser()}
}

// Dial connects to upsd and returns a Client for it.
func Dial(ctx context.Context, host string, opts Options) (*Client, error) {
	conn, err := Connect(ctx, host, opts)
	if err != nil {
		return nil, err
	}
	return NewClient(conn), nil
}

// Conn returns the underlying connection.
func (c *Client) Conn() *Conn {
	return c.conn
}

// Get sends a scalar command and returns its value.
func (c *Client) Get(cmd Command) (string, error) {
	raw, err := c.conn.Send(cmd)
	if err != nil {
		return "", err
	}
	return c.parser.ParseScalar(raw)
}

// List sends a list command and returns the parsed list.
func (c *Client) List(cmd Command) (ListResponse, error) {
	raw, err := c.conn.Send(cmd)
	if err != nil {
		return ListResponse{}, err
	}
	return c.parser.ParseList(raw), nil
}

// Do sends any command and returns a list for list verbs and HELP, or a
// single-value sequence for scalar verbs.
func (c *Client) Do(cmd Command) (ListResponse, error) {
	if cmd.Type.IsList() || cmd.Type == CmdHelp {
		return c.List(cmd)
	}
	value, err := c.Get(cmd)
	if err != nil {
		return ListResponse{}, err
	}
	return NewSequenceResponse([]string{value}), nil
}

// NetworkVersion asks upsd for its protocol version.
func (c *Client) NetworkVersion() (string, error) {
	return c.Get(NewNetVerCommand())
}

// Version returns the server banner without its URL.
func (c *Client) Version() (string, error) {
	return c.Get(NewVerCommand())
}

// Help returns the command names upsd understands.
func (c *Client) Help() ([]string, error) {
	list, err := c.List(NewHelpCommand())
	if err != nil {
		return nil, err
	}
	if list.Kind != ListCommands {
		return nil, newUnexpectedResponseError("HELP reply without command listing")
	}
	return list.Commands, nil
}

// NumLogins returns how many clients are logged in to ups.
func (c *Client) NumLogins(ups string) (int, error) {
	value, err := c.Get(NewGetNumLoginsCommand(ups))
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, newUnexpectedResponseError(value)
	}
	return n, nil
}

// UPSDescription returns the description configured for ups.
func (c *Client) UPSDescription(ups string) (string, error) {
	return c.Get(NewGetUPSDescCommand(ups))
}

// Var returns the value of one variable.
func (c *Client) Var(ups, name string) (string, error) {
	return c.Get(NewGetVarCommand(ups, name))
}

// VarType returns the type tokens of a variable, e.g. ["RW", "STRING:64"].
func (c *Client) VarType(ups, name string) ([]string, error) {
	raw, err := c.conn.Send(NewGetTypeCommand(ups, name))
	if err != nil {
		return nil, err
	}
	// TYPE <ups> <var> <type>...
	fields := strings.Fields(raw.Text())
	if len(fields) < 4 || fields[0] != "TYPE" {
		return nil, newUnexpectedResponseError(raw.Text())
	}
	return fields[3:], nil
}

// VarDescription returns the description of a variable.
func (c *Client) VarDescription(ups, name string) (string, error) {
	return c.Get(NewGetDescCommand(ups, name))
}

// CommandDescription returns the description of an instant command.
func (c *Client) CommandDescription(ups, command string) (string, error) {
	return c.Get(NewGetCmdDescCommand(ups, command))
}

// ListUPS returns the devices upsd serves, keyed by name with their description.
func (c *Client) ListUPS() (ListResponse, error) {
	return c.List(NewListUPSCommand())
}

// ListVars returns every variable of ups.
func (c *Client) ListVars(ups string) (ListResponse, error) {
	return c.List(NewListVarCommand(ups))
}

// ListRW returns the writable variables of ups.
func (c *Client) ListRW(ups string) (ListResponse, error) {
	return c.List(NewListRWCommand(ups))
}

// ListCommands returns the instant command names of ups.
func (c *Client) ListCommands(ups string) ([]string, error) {
	list, err := c.List(NewListCmdCommand(ups))
	if err != nil {
		return nil, err
	}
	return list.Values, nil
}

// ListClients returns the addresses of clients logged in to ups.
func (c *Client) ListClients(ups string) ([]string, error) {
	list, err := c.List(NewListClientCommand(ups))
	if err != nil {
		return nil, err
	}
	return list.Values, nil
}

// ListEnum returns the values an enumerated variable accepts.
func (c *Client) ListEnum(ups, name string) ([]string, error) {
	list, err := c.List(NewListEnumCommand(ups, name))
	if err != nil {
		return nil, err
	}
	values := make([]string, 0, len(list.Entries))
	for _, e := range list.Entries {
		values = append(values, e.Value)
	}
	return values, nil
}

// ListRange returns the intervals a ranged variable accepts.
func (c *Client) ListRange(ups, name string) ([]Range, error) {
	raw, err := c.conn.Send(NewListRangeCommand(ups, name))
	if err != nil {
		return nil, err
	}
	// RANGE <ups> <var> "<min>" "<max>"
	ranges := make([]Range, 0, len(raw.Lines))
	for _, line := range raw.Lines {
		values := c.parser.ExtractQuotedValues(line)
		if len(values) != 2 {
			return nil, newUnexpectedResponseError(line)
		}
		ranges = append(ranges, Range{Min: values[0], Max: values[1]})
	}
	return ranges, nil
}

// Logout ends the session and closes the connection.
func (c *Client) Logout() error {
	return c.conn.Logout()
}

// Close closes the connection without LOGOUT.
func (c *Client) Close() error {
	return c.conn.Close()
}
