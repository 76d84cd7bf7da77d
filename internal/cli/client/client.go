// Package client implements the wire-protocol client used by stashkv-cli.
package client

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/stashkv/stashkv/internal/protocol"
)

// ErrServerError wraps an error reply from the server.
var ErrServerError = errors.New("client: server error")

// Kind identifies the reply type.
type Kind int

const (
	SimpleString Kind = iota
	BulkString
	NullBulk
)

// Reply is one decoded server response.
type Reply struct {
	Kind  Kind
	Value string
}

// String renders the reply for terminal output.
func (r Reply) String() string {
	switch r.Kind {
	case NullBulk:
		return "(nil)"
	case BulkString:
		return strconv.Quote(r.Value)
	default:
		return r.Value
	}
}

// Client is a single-connection protocol client.
type Client struct {
	conn net.Conn
	br   *bufio.Reader
	bw   *bufio.Writer

	timeout time.Duration
}

// Dial connects to a stashkv server.
func Dial(addr string, timeout time.Duration) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", addr, err)
	}
	return &Client{
		conn:    conn,
		br:      bufio.NewReader(conn),
		bw:      bufio.NewWriter(conn),
		timeout: timeout,
	}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Do sends one command frame and decodes the reply. An error reply from
// the server is returned as an error wrapping ErrServerError.
func (c *Client) Do(tokens ...string) (Reply, error) {
	if len(tokens) == 0 {
		return Reply{}, fmt.Errorf("client: empty command")
	}

	if c.timeout > 0 {
		if err := c.conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
			return Reply{}, err
		}
	}

	if err := protocol.WriteCommand(c.bw, tokens...); err != nil {
		return Reply{}, fmt.Errorf("client: write command: %w", err)
	}
	if err := c.bw.Flush(); err != nil {
		return Reply{}, fmt.Errorf("client: flush: %w", err)
	}

	return c.readReply()
}

func (c *Client) readReply() (Reply, error) {
	line, err := protocol.ReadLine(c.br, protocol.MaxLineLen)
	if err != nil {
		return Reply{}, fmt.Errorf("client: read reply: %w", err)
	}
	if line == "" {
		return Reply{}, fmt.Errorf("client: empty reply line")
	}

	switch line[0] {
	case '+':
		return Reply{Kind: SimpleString, Value: line[1:]}, nil
	case '-':
		return Reply{}, fmt.Errorf("%w: %s", ErrServerError, line[1:])
	case '$':
		n, err := strconv.Atoi(line[1:])
		if err != nil {
			return Reply{}, fmt.Errorf("client: invalid bulk header %q", line)
		}
		if n == -1 {
			return Reply{Kind: NullBulk}, nil
		}
		data, err := protocol.ReadLine(c.br, protocol.MaxLineLen)
		if err != nil {
			return Reply{}, fmt.Errorf("client: read bulk body: %w", err)
		}
		if len(data) != n {
			return Reply{}, fmt.Errorf("client: bulk length mismatch: declared %d, got %d", n, len(data))
		}
		return Reply{Kind: BulkString, Value: data}, nil
	default:
		return Reply{}, fmt.Errorf("client: unexpected reply type %q", line[0])
	}
}
