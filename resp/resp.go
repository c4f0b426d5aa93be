// Package resp implements the subset of the RESP wire protocol the server
// speaks: bulk strings and arrays on the request path, plus the simple
// string, error, integer, and null reply forms.
//
// See https://redis.io/docs/reference/protocol-spec/ for the framing rules.
package resp

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// ErrProtocol is wrapped by every decode error caused by malformed input,
// as opposed to transport errors from the underlying reader.
var ErrProtocol = errors.New("resp: protocol error")

// Kind discriminates the RESP value forms this package handles.
type Kind byte

const (
	SimpleString Kind = '+'
	ErrorString  Kind = '-'
	Integer      Kind = ':'
	BulkString   Kind = '$'
	Array        Kind = '*'
)

// Value is one decoded RESP value. Which fields are meaningful depends on
// Kind: Str for string forms, Int for integers, Array for arrays. A bulk
// string of length -1 decodes as a BulkString with Null set.
type Value struct {
	Kind  Kind
	Str   string
	Int   int64
	Null  bool
	Array []Value
}

// maxBulkLen bounds a single bulk string so a hostile length prefix cannot
// make us allocate unbounded memory. 512 MiB matches the redis limit.
const maxBulkLen = 512 << 20

// Reader decodes RESP values from a byte stream.
type Reader struct {
	br *bufio.Reader
}

// NewReader wraps r in a buffered RESP decoder.
func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReader(r)}
}

// ReadValue decodes the next value from the stream. io.EOF is returned
// unwrapped when the stream ends cleanly between values.
func (r *Reader) ReadValue() (Value, error) {
	line, err := r.readLine()
	if err != nil {
		return Value{}, err
	}
	if len(line) == 0 {
		return Value{}, fmt.Errorf("%w: empty line", ErrProtocol)
	}

	switch Kind(line[0]) {
	case Array:
		return r.readArray(line[1:])
	case BulkString:
		return r.readBulk(line[1:])
	case SimpleString:
		return Value{Kind: SimpleString, Str: line[1:]}, nil
	case ErrorString:
		return Value{Kind: ErrorString, Str: line[1:]}, nil
	case Integer:
		n, err := strconv.ParseInt(line[1:], 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("%w: bad integer %q", ErrProtocol, line[1:])
		}
		return Value{Kind: Integer, Int: n}, nil
	default:
		return Value{}, fmt.Errorf("%w: unknown type prefix %q", ErrProtocol, line[0])
	}
}

func (r *Reader) readArray(header string) (Value, error) {
	n, err := strconv.Atoi(header)
	if err != nil || n < 0 {
		return Value{}, fmt.Errorf("%w: bad array length %q", ErrProtocol, header)
	}
	v := Value{Kind: Array, Array: make([]Value, 0, n)}
	for i := 0; i < n; i++ {
		el, err := r.ReadValue()
		if err != nil {
			if err == io.EOF {
				// EOF mid-array is a truncated frame, not a clean close.
				err = io.ErrUnexpectedEOF
			}
			return Value{}, err
		}
		v.Array = append(v.Array, el)
	}
	return v, nil
}

func (r *Reader) readBulk(header string) (Value, error) {
	n, err := strconv.Atoi(header)
	if err != nil || n < -1 || n > maxBulkLen {
		return Value{}, fmt.Errorf("%w: bad bulk length %q", ErrProtocol, header)
	}
	if n == -1 {
		return Value{Kind: BulkString, Null: true}, nil
	}

	buf := make([]byte, n+2) // payload + CRLF
	if _, err := io.ReadFull(r.br, buf); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return Value{}, err
	}
	if buf[n] != '\r' || buf[n+1] != '\n' {
		return Value{}, fmt.Errorf("%w: bulk string missing CRLF terminator", ErrProtocol)
	}
	return Value{Kind: BulkString, Str: string(buf[:n])}, nil
}

// readLine reads up to CRLF and returns the line without the terminator.
func (r *Reader) readLine() (string, error) {
	line, err := r.br.ReadString('\n')
	if err != nil {
		if err == io.EOF && len(line) > 0 {
			return "", io.ErrUnexpectedEOF
		}
		return "", err
	}
	if len(line) < 2 || line[len(line)-2] != '\r' {
		return "", fmt.Errorf("%w: line missing CRLF terminator", ErrProtocol)
	}
	return line[:len(line)-2], nil
}

// Writer encodes RESP replies onto a byte stream. Callers must Flush after
// writing a reply.
type Writer struct {
	bw *bufio.Writer
}

// NewWriter wraps w in a buffered RESP encoder.
func NewWriter(w io.Writer) *Writer {
	return &Writer{bw: bufio.NewWriter(w)}
}

// WriteSimpleString writes "+s\r\n".
func (w *Writer) WriteSimpleString(s string) error {
	return w.writeParts("+", s)
}

// WriteError writes "-msg\r\n".
func (w *Writer) WriteError(msg string) error {
	return w.writeParts("-", msg)
}

// WriteInteger writes ":n\r\n".
func (w *Writer) WriteInteger(n int64) error {
	return w.writeParts(":", strconv.FormatInt(n, 10))
}

// WriteBulkString writes "$len\r\ns\r\n".
func (w *Writer) WriteBulkString(s string) error {
	if err := w.writeParts("$", strconv.Itoa(len(s))); err != nil {
		return err
	}
	return w.writeParts("", s)
}

// WriteNull writes the null bulk string "$-1\r\n", the miss reply for GET.
func (w *Writer) WriteNull() error {
	return w.writeParts("$", "-1")
}

// Flush pushes buffered replies to the underlying stream.
func (w *Writer) Flush() error {
	return w.bw.Flush()
}

func (w *Writer) writeParts(prefix, s string) error {
	if prefix != "" {
		if _, err := w.bw.WriteString(prefix); err != nil {
			return err
		}
	}
	if _, err := w.bw.WriteString(s); err != nil {
		return err
	}
	_, err := w.bw.WriteString("\r\n")
	return err
}
