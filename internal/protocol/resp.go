package protocol

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"strconv"
)

// ReadLine reads one CRLF-terminated protocol line from r and returns it
// with the terminator stripped. Lines longer than maxLen fail with
// ErrMalformed; a line missing its CRLF is likewise malformed.
func ReadLine(r *bufio.Reader, maxLen int) (string, error) {
	var buf []byte
	for {
		frag, err := r.ReadSlice('\n')
		if err == nil {
			buf = append(buf, frag...)
			break
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			buf = append(buf, frag...)
			if len(buf) > maxLen {
				return "", fmt.Errorf("%w: line exceeds %d bytes", ErrMalformed, maxLen)
			}
			continue
		}
		return "", err
	}

	if len(buf) > maxLen {
		return "", fmt.Errorf("%w: line exceeds %d bytes", ErrMalformed, maxLen)
	}
	if len(buf) < 2 || !bytes.HasSuffix(buf, []byte("\r\n")) {
		return "", fmt.Errorf("%w: missing CRLF", ErrMalformed)
	}
	return string(buf[:len(buf)-2]), nil
}

func WriteSimpleString(w *bufio.Writer, s string) error {
	_, err := w.WriteString("+" + s + "\r\n")
	return err
}

func WriteError(w *bufio.Writer, s string) error {
	_, err := w.WriteString("-" + s + "\r\n")
	return err
}

func WriteNullBulk(w *bufio.Writer) error {
	_, err := w.WriteString("$-1\r\n")
	return err
}

func WriteBulkString(w *bufio.Writer, s string) error {
	if _, err := w.WriteString("$" + strconv.Itoa(len(s)) + "\r\n"); err != nil {
		return err
	}
	if _, err := w.WriteString(s); err != nil {
		return err
	}
	_, err := w.WriteString("\r\n")
	return err
}

// WriteCommand writes a request frame for the given tokens. Used by the
// client side of the protocol.
func WriteCommand(w *bufio.Writer, tokens ...string) error {
	if _, err := w.WriteString("*" + strconv.Itoa(len(tokens)) + "\r\n"); err != nil {
		return err
	}
	for _, tok := range tokens {
		if err := WriteBulkString(w, tok); err != nil {
			return err
		}
	}
	return nil
}
