package resp

import (
	"bufio"
	"io"
	"strconv"
)

// Decoder reads RESP messages off a byte stream. It wraps a bufio.Reader
// so that a single underlying Read syscall commonly yields the bytes for
// several pipelined commands; ReadMessage then parses them one at a time
// out of the already-buffered data without touching the network again,
// which is what gives pipelining its throughput win.
type Decoder struct {
	r            *bufio.Reader
	maxBulkLen   int
	maxArrayLen  int
	maxInlineLen int
}

// NewDecoder wraps r. Limits of 0 fall back to the package defaults.
func NewDecoder(r io.Reader, maxBulkLen, maxArrayLen, maxInlineLen int) *Decoder {
	if maxBulkLen <= 0 {
		maxBulkLen = DefaultMaxBulkLen
	}
	if maxArrayLen <= 0 {
		maxArrayLen = DefaultMaxArrayLen
	}
	if maxInlineLen <= 0 {
		maxInlineLen = DefaultMaxInlineLen
	}
	return &Decoder{
		r:            bufio.NewReaderSize(r, 16*1024),
		maxBulkLen:   maxBulkLen,
		maxArrayLen:  maxArrayLen,
		maxInlineLen: maxInlineLen,
	}
}

// ReadMessage reads and decodes exactly one message: a full RESP value, or
// (for legacy clients) one inline command line. It blocks until that much
// is available or the stream errors/closes. A *ProtocolError means the
// caller must write the error reply (if any) and close the connection; no
// partial message is ever returned.
func (d *Decoder) ReadMessage() (Message, error) {
	b, err := d.r.Peek(1)
	if err != nil {
		return Message{}, err
	}

	switch b[0] {
	case byte(SimpleString):
		return d.readSimple(SimpleString)
	case byte(Error):
		return d.readSimple(Error)
	case byte(Integer):
		return d.readInteger()
	case byte(BulkString):
		return d.readBulk()
	case byte(Array):
		return d.readArray()
	default:
		return d.readInline()
	}
}

// readLine reads up to and excluding the terminating CRLF.
func (d *Decoder) readLine(maxLen int) ([]byte, error) {
	line, err := d.r.ReadSlice('\n')
	if err != nil {
		if err == bufio.ErrBufferFull {
			return nil, &ProtocolError{Msg: "too big inline request"}
		}
		return nil, err
	}
	n := len(line)
	if n < 2 || line[n-2] != '\r' {
		return nil, &ProtocolError{Msg: "expected CRLF"}
	}
	if maxLen > 0 && n-2 > maxLen {
		return nil, &ProtocolError{Msg: "line too long"}
	}
	out := make([]byte, n-2)
	copy(out, line[:n-2])
	return out, nil
}

func (d *Decoder) readSimple(t Type) (Message, error) {
	d.r.Discard(1)
	line, err := d.readLine(0)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: t, Str: string(line)}, nil
}

func (d *Decoder) readInteger() (Message, error) {
	d.r.Discard(1)
	line, err := d.readLine(0)
	if err != nil {
		return Message{}, err
	}
	n, err := strconv.ParseInt(string(line), 10, 64)
	if err != nil {
		return Message{}, &ProtocolError{Msg: "invalid integer"}
	}
	return Message{Type: Integer, Int: n}, nil
}

func (d *Decoder) readBulkLen() (int64, error) {
	d.r.Discard(1)
	line, err := d.readLine(0)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(string(line), 10, 64)
	if err != nil {
		return 0, &ProtocolError{Msg: "invalid bulk length"}
	}
	return n, nil
}

func (d *Decoder) readBulk() (Message, error) {
	n, err := d.readBulkLen()
	if err != nil {
		return Message{}, err
	}
	if n < 0 {
		return Message{Type: BulkString, BulkNull: true}, nil
	}
	if n > int64(d.maxBulkLen) {
		return Message{}, &ProtocolError{Msg: "invalid bulk length"}
	}

	buf := make([]byte, n+2) // payload + CRLF
	if _, err := io.ReadFull(d.r, buf); err != nil {
		return Message{}, err
	}
	if buf[n] != '\r' || buf[n+1] != '\n' {
		return Message{}, &ProtocolError{Msg: "expected CRLF after bulk payload"}
	}
	return Message{Type: BulkString, Bulk: buf[:n]}, nil
}

func (d *Decoder) readArray() (Message, error) {
	d.r.Discard(1)
	line, err := d.readLine(0)
	if err != nil {
		return Message{}, err
	}
	n, err := strconv.ParseInt(string(line), 10, 64)
	if err != nil {
		return Message{}, &ProtocolError{Msg: "invalid multibulk length"}
	}
	if n < 0 {
		return Message{Type: Array, ArrayNull: true}, nil
	}
	if n > int64(d.maxArrayLen) {
		return Message{}, &ProtocolError{Msg: "invalid multibulk length"}
	}

	elems := make([]Message, n)
	for i := int64(0); i < n; i++ {
		// Canonical client commands are arrays of bulk strings, but the
		// decoder is the recursive sum in full generality (RESP replies
		// to scripting/monitor-style consumers can nest any type).
		b, err := d.r.Peek(1)
		if err != nil {
			return Message{}, err
		}
		var em Message
		var derr error
		switch b[0] {
		case byte(SimpleString):
			em, derr = d.readSimple(SimpleString)
		case byte(Error):
			em, derr = d.readSimple(Error)
		case byte(Integer):
			em, derr = d.readInteger()
		case byte(BulkString):
			em, derr = d.readBulk()
		case byte(Array):
			em, derr = d.readArray()
		default:
			return Message{}, &ProtocolError{Msg: "expected $ prefix for array element"}
		}
		if derr != nil {
			return Message{}, derr
		}
		elems[i] = em
	}
	return Message{Type: Array, Elems: elems}, nil
}

// readInline parses a legacy inline command: a single whitespace-split
// line, treated as an array of bulk strings. An empty line decodes to a
// zero-length array so the dispatcher can silently skip it, matching
// documented inline-command behavior.
func (d *Decoder) readInline() (Message, error) {
	line, err := d.readLine(d.maxInlineLen)
	if err != nil {
		return Message{}, err
	}

	fields := splitInline(line)
	elems := make([]Message, len(fields))
	for i, f := range fields {
		elems[i] = Message{Type: BulkString, Bulk: f}
	}
	return Message{Type: Array, Elems: elems}, nil
}

func splitInline(line []byte) [][]byte {
	var out [][]byte
	i := 0
	for i < len(line) {
		for i < len(line) && isSpace(line[i]) {
			i++
		}
		if i >= len(line) {
			break
		}
		start := i
		for i < len(line) && !isSpace(line[i]) {
			i++
		}
		field := make([]byte, i-start)
		copy(field, line[start:i])
		out = append(out, field)
	}
	return out
}

func isSpace(b byte) bool { return b == ' ' || b == '\t' }
