package protocol

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

// ============================================================
// ReadLine
// ============================================================

func TestReadLine(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{
			name:  "simple line",
			input: "*1\r\n",
			want:  "*1",
		},
		{
			name:  "empty line",
			input: "\r\n",
			want:  "",
		},
		{
			name:    "bare LF",
			input:   "PING\n",
			wantErr: ErrMalformed,
		},
		{
			name:    "oversized line",
			input:   strings.Repeat("a", MaxLineLen+1) + "\r\n",
			wantErr: ErrMalformed,
		},
		{
			name:    "EOF before terminator",
			input:   "PING",
			wantErr: io.EOF,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := bufio.NewReader(strings.NewReader(tt.input))
			got, err := ReadLine(r, MaxLineLen)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("line = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReadLine_SmallBuffer(t *testing.T) {
	// A reader buffer smaller than the line forces the ErrBufferFull path.
	r := bufio.NewReaderSize(strings.NewReader("hello world\r\n"), 16)
	got, err := ReadLine(r, MaxLineLen)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "hello world" {
		t.Errorf("line = %q", got)
	}
}

func TestReadLine_Sequential(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("*1\r\n$4\r\nPING\r\n"))
	for _, want := range []string{"*1", "$4", "PING"} {
		got, err := ReadLine(r, MaxLineLen)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != want {
			t.Errorf("line = %q, want %q", got, want)
		}
	}
}

// ============================================================
// Reply writers
// ============================================================

func TestWriters(t *testing.T) {
	tests := []struct {
		name  string
		write func(w *bufio.Writer) error
		want  string
	}{
		{
			name:  "simple string",
			write: func(w *bufio.Writer) error { return WriteSimpleString(w, "PONG") },
			want:  "+PONG\r\n",
		},
		{
			name:  "error",
			write: func(w *bufio.Writer) error { return WriteError(w, "ERR boom") },
			want:  "-ERR boom\r\n",
		},
		{
			name:  "null bulk",
			write: func(w *bufio.Writer) error { return WriteNullBulk(w) },
			want:  "$-1\r\n",
		},
		{
			name:  "bulk string",
			write: func(w *bufio.Writer) error { return WriteBulkString(w, "orange") },
			want:  "$6\r\norange\r\n",
		},
		{
			name:  "empty bulk string",
			write: func(w *bufio.Writer) error { return WriteBulkString(w, "") },
			want:  "$0\r\n\r\n",
		},
		{
			name:  "command frame",
			write: func(w *bufio.Writer) error { return WriteCommand(w, "SET", "pear", "orange") },
			want:  "*3\r\n$3\r\nSET\r\n$4\r\npear\r\n$6\r\norange\r\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			w := bufio.NewWriter(&buf)
			if err := tt.write(w); err != nil {
				t.Fatalf("write error: %v", err)
			}
			if err := w.Flush(); err != nil {
				t.Fatalf("flush error: %v", err)
			}
			if buf.String() != tt.want {
				t.Errorf("wire = %q, want %q", buf.String(), tt.want)
			}
		})
	}
}
