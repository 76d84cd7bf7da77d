// Package protocol implements the line-oriented wire protocol for stashkv.
//
// Requests are RESP-style frames: an array header "*<N>" followed by N
// length-prefixed bulk tokens, each a "$<len>" header line and a literal
// token line. The parser is fed one terminator-stripped line at a time by
// the connection reader and reassembles frames incrementally.
package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Protocol limits to keep a single frame bounded.
const (
	// MaxTokenLen limits the size of a single bulk token (512KB).
	MaxTokenLen = 512 * 1024

	// MaxLineLen limits the length of any single protocol line.
	MaxLineLen = MaxTokenLen + 2
)

var (
	// ErrMalformed indicates a frame that violates the grammar: a bad
	// array or bulk header, a declared/actual length mismatch, or an
	// arity outside the supported set.
	ErrMalformed = errors.New("protocol: malformed frame")

	// ErrUnknownCommand indicates a well-formed frame naming a command
	// the server does not implement. The connection survives this; the
	// handler replies with a protocol-level error instead.
	ErrUnknownCommand = errors.New("protocol: unknown command")
)

// supportedArities maps the declared token count of a frame to the set of
// command names valid at that arity. Growing the command set means adding
// a row here and a constructor in buildCommand.
var supportedArities = map[int][]string{
	1: {"PING"},
	2: {"ECHO", "GET", "PING"},
	3: {"SET"},
	5: {"SET"},
}

// Parser reassembles command frames from a stream of protocol lines.
//
// A Parser is owned by exactly one connection and is not safe for
// concurrent use. Feed returns (nil, nil) while the current frame is
// incomplete; once the final line of a valid frame arrives it returns
// the Command and resets for the next frame.
type Parser struct {
	arity    int      // declared token count, 0 while idle
	pending  int      // declared length of the next token, -1 when expecting a bulk header
	tokens   []string // completed tokens of the in-progress frame
	inHeader bool     // true when the next line must be a "$<len>" header
}

// NewParser returns a parser ready for the first frame.
func NewParser() *Parser {
	p := &Parser{}
	p.Reset()
	return p
}

// Reset discards any partially accumulated frame. Called after a protocol
// error so the connection can keep reading.
func (p *Parser) Reset() {
	p.arity = 0
	p.pending = -1
	p.tokens = p.tokens[:0]
	p.inHeader = true
}

// Feed consumes one protocol line (CRLF already stripped).
func (p *Parser) Feed(line string) (Command, error) {
	if len(line) > MaxLineLen {
		p.Reset()
		return nil, fmt.Errorf("%w: line exceeds %d bytes", ErrMalformed, MaxLineLen)
	}

	// Idle: the line must be an array header.
	if p.arity == 0 {
		n, err := parseHeader(line, '*')
		if err != nil {
			return nil, err
		}
		if _, ok := supportedArities[n]; !ok {
			return nil, fmt.Errorf("%w: unsupported argument count %d", ErrMalformed, n)
		}
		p.arity = n
		p.inHeader = true
		return nil, nil
	}

	if p.inHeader {
		n, err := parseHeader(line, '$')
		if err != nil {
			p.Reset()
			return nil, err
		}
		if n > MaxTokenLen {
			p.Reset()
			return nil, fmt.Errorf("%w: token length %d exceeds limit %d", ErrMalformed, n, MaxTokenLen)
		}
		p.pending = n
		p.inHeader = false
		return nil, nil
	}

	// Token line: the declared length must match exactly.
	if len(line) != p.pending {
		p.Reset()
		return nil, fmt.Errorf("%w: declared length %d, got %d bytes", ErrMalformed, p.pending, len(line))
	}
	p.tokens = append(p.tokens, line)
	p.inHeader = true

	if len(p.tokens) < p.arity {
		return nil, nil
	}

	cmd, err := buildCommand(p.tokens)
	p.Reset()
	return cmd, err
}

// parseHeader parses a "*<n>" or "$<n>" header line into its count.
func parseHeader(line string, prefix byte) (int, error) {
	if len(line) < 2 || line[0] != prefix {
		return 0, fmt.Errorf("%w: expected %q header, got %q", ErrMalformed, string(prefix), truncate(line))
	}
	n, err := strconv.Atoi(line[1:])
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: invalid %q header %q", ErrMalformed, string(prefix), truncate(line))
	}
	return n, nil
}

// buildCommand maps a complete token list onto a Command constructor,
// keyed by the declared arity and the (case-insensitive) command name.
func buildCommand(tokens []string) (Command, error) {
	name := strings.ToUpper(tokens[0])

	names, ok := supportedArities[len(tokens)]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported argument count %d", ErrMalformed, len(tokens))
	}
	known := false
	for _, candidate := range names {
		if candidate == name {
			known = true
			break
		}
	}
	if !known {
		return nil, fmt.Errorf("%w: '%s' with %d arguments", ErrUnknownCommand, name, len(tokens)-1)
	}

	switch len(tokens) {
	case 1:
		return Ping{}, nil
	case 2:
		switch name {
		case "PING":
			return Ping{}, nil
		case "ECHO":
			return Echo{Arg: tokens[1]}, nil
		default: // GET
			return Get{Key: tokens[1]}, nil
		}
	case 3:
		return Set{Key: tokens[1], Value: tokens[2]}, nil
	default: // 5: SET key value PX <millis>
		if !strings.EqualFold(tokens[3], "PX") {
			return nil, fmt.Errorf("%w: expected PX option, got %q", ErrMalformed, truncate(tokens[3]))
		}
		millis, err := strconv.ParseInt(tokens[4], 10, 64)
		if err != nil || millis <= 0 {
			return nil, fmt.Errorf("%w: invalid PX value %q", ErrMalformed, truncate(tokens[4]))
		}
		return Set{
			Key:   tokens[1],
			Value: tokens[2],
			TTL:   time.Duration(millis) * time.Millisecond,
		}, nil
	}
}

func truncate(s string) string {
	if len(s) > 32 {
		return s[:32] + "..."
	}
	return s
}
