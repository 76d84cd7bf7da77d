package client

import (
	"bufio"
	"errors"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"
)

// stubServer answers each received frame with the next canned reply.
func stubServer(t *testing.T, replies ...string) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		br := bufio.NewReader(conn)
		for _, reply := range replies {
			// Consume the request frame: array header plus one
			// header/body line pair per token.
			header, err := br.ReadString('\n')
			if err != nil {
				return
			}
			n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(header, "*")))
			if err != nil {
				return
			}
			for i := 0; i < n*2; i++ {
				if _, err := br.ReadString('\n'); err != nil {
					return
				}
			}
			if _, err := conn.Write([]byte(reply)); err != nil {
				return
			}
		}
	}()

	return ln.Addr().String()
}

func TestClient_Do(t *testing.T) {
	tests := []struct {
		name   string
		tokens []string
		reply  string
		want   Reply
	}{
		{
			name:   "simple string reply",
			tokens: []string{"PING"},
			reply:  "+PONG\r\n",
			want:   Reply{Kind: SimpleString, Value: "PONG"},
		},
		{
			name:   "bulk reply",
			tokens: []string{"GET", "pear"},
			reply:  "$6\r\norange\r\n",
			want:   Reply{Kind: BulkString, Value: "orange"},
		},
		{
			name:   "null bulk reply",
			tokens: []string{"GET", "missing"},
			reply:  "$-1\r\n",
			want:   Reply{Kind: NullBulk},
		},
		{
			name:   "empty bulk reply",
			tokens: []string{"ECHO", ""},
			reply:  "$0\r\n\r\n",
			want:   Reply{Kind: BulkString, Value: ""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr := stubServer(t, tt.reply)

			c, err := Dial(addr, 2*time.Second)
			if err != nil {
				t.Fatalf("Dial: %v", err)
			}
			defer c.Close()

			got, err := c.Do(tt.tokens...)
			if err != nil {
				t.Fatalf("Do: %v", err)
			}
			if got != tt.want {
				t.Errorf("reply = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestClient_ErrorReply(t *testing.T) {
	addr := stubServer(t, "-ERR unknown command 'QUIT'\r\n")

	c, err := Dial(addr, 2*time.Second)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	_, err = c.Do("QUIT")
	if !errors.Is(err, ErrServerError) {
		t.Fatalf("error = %v, want ErrServerError", err)
	}
	if !strings.Contains(err.Error(), "unknown command") {
		t.Errorf("error text = %q", err.Error())
	}
}

func TestClient_BulkLengthMismatch(t *testing.T) {
	addr := stubServer(t, "$10\r\nshort\r\n")

	c, err := Dial(addr, 2*time.Second)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	if _, err := c.Do("GET", "k"); err == nil {
		t.Error("expected an error for a length mismatch")
	}
}

func TestClient_EmptyCommand(t *testing.T) {
	addr := stubServer(t)

	c, err := Dial(addr, 2*time.Second)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	if _, err := c.Do(); err == nil {
		t.Error("expected an error for an empty command")
	}
}

func TestReply_String(t *testing.T) {
	tests := []struct {
		name  string
		reply Reply
		want  string
	}{
		{
			name:  "simple string",
			reply: Reply{Kind: SimpleString, Value: "OK"},
			want:  "OK",
		},
		{
			name:  "bulk string is quoted",
			reply: Reply{Kind: BulkString, Value: "orange"},
			want:  `"orange"`,
		},
		{
			name:  "null bulk",
			reply: Reply{Kind: NullBulk},
			want:  "(nil)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.reply.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}
