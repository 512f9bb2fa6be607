package resp

import (
	"bufio"
	"io"
	"strconv"
)

// Encoder serializes Messages to a writer. It is pure with respect to the
// Message tree (no allocation beyond what the bytes require) and batches
// writes through a bufio.Writer so a pipelined batch of replies can be
// flushed once.
type Encoder struct {
	w *bufio.Writer
}

// NewEncoder wraps w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: bufio.NewWriterSize(w, 16*1024)}
}

// Encode writes msg without flushing; callers pipeline multiple replies
// and call Flush once per batch.
func (e *Encoder) Encode(msg Message) error {
	switch msg.Type {
	case SimpleString:
		_, err := e.w.WriteString("+" + msg.Str + "\r\n")
		return err
	case Error:
		_, err := e.w.WriteString("-" + msg.Str + "\r\n")
		return err
	case Integer:
		_, err := e.w.WriteString(":" + strconv.FormatInt(msg.Int, 10) + "\r\n")
		return err
	case BulkString:
		if msg.BulkNull {
			_, err := e.w.WriteString("$-1\r\n")
			return err
		}
		if _, err := e.w.WriteString("$" + strconv.Itoa(len(msg.Bulk)) + "\r\n"); err != nil {
			return err
		}
		if _, err := e.w.Write(msg.Bulk); err != nil {
			return err
		}
		_, err := e.w.WriteString("\r\n")
		return err
	case Array:
		if msg.ArrayNull {
			_, err := e.w.WriteString("*-1\r\n")
			return err
		}
		if _, err := e.w.WriteString("*" + strconv.Itoa(len(msg.Elems)) + "\r\n"); err != nil {
			return err
		}
		for _, el := range msg.Elems {
			if err := e.Encode(el); err != nil {
				return err
			}
		}
		return nil
	default:
		return &ProtocolError{Msg: "unknown message type to encode"}
	}
}

// Flush pushes any buffered bytes to the underlying writer.
func (e *Encoder) Flush() error { return e.w.Flush() }

// Marshal renders msg to a standalone byte slice, used by tests asserting
// the encode∘decode round trip and by call sites (pubsub fan-out) that
// need the bytes without an io.Writer in hand.
func Marshal(msg Message) []byte {
	var buf []byte
	buf = appendMessage(buf, msg)
	return buf
}

func appendMessage(buf []byte, msg Message) []byte {
	switch msg.Type {
	case SimpleString:
		buf = append(buf, '+')
		buf = append(buf, msg.Str...)
		return append(buf, '\r', '\n')
	case Error:
		buf = append(buf, '-')
		buf = append(buf, msg.Str...)
		return append(buf, '\r', '\n')
	case Integer:
		buf = append(buf, ':')
		buf = strconv.AppendInt(buf, msg.Int, 10)
		return append(buf, '\r', '\n')
	case BulkString:
		if msg.BulkNull {
			return append(buf, '$', '-', '1', '\r', '\n')
		}
		buf = append(buf, '$')
		buf = strconv.AppendInt(buf, int64(len(msg.Bulk)), 10)
		buf = append(buf, '\r', '\n')
		buf = append(buf, msg.Bulk...)
		return append(buf, '\r', '\n')
	case Array:
		if msg.ArrayNull {
			return append(buf, '*', '-', '1', '\r', '\n')
		}
		buf = append(buf, '*')
		buf = strconv.AppendInt(buf, int64(len(msg.Elems)), 10)
		buf = append(buf, '\r', '\n')
		for _, el := range msg.Elems {
			buf = appendMessage(buf, el)
		}
		return buf
	default:
		return buf
	}
}
