package resp

import (
	"bytes"
	"testing"
)

func roundTrip(t *testing.T, msg Message) Message {
	t.Helper()
	b := Marshal(msg)
	dec := NewDecoder(bytes.NewReader(b), 0, 0, 0)
	got, err := dec.ReadMessage()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return got
}

func TestRoundTripSimpleString(t *testing.T) {
	got := roundTrip(t, SimpleStringMsg("OK"))
	if got.Type != SimpleString || got.Str != "OK" {
		t.Fatalf("got %+v", got)
	}
}

func TestRoundTripError(t *testing.T) {
	got := roundTrip(t, ErrorMsg("ERR bad thing"))
	if got.Type != Error || got.Str != "ERR bad thing" {
		t.Fatalf("got %+v", got)
	}
}

func TestRoundTripInteger(t *testing.T) {
	got := roundTrip(t, IntegerMsg(-42))
	if got.Type != Integer || got.Int != -42 {
		t.Fatalf("got %+v", got)
	}
}

func TestRoundTripBulkString(t *testing.T) {
	got := roundTrip(t, BulkStringMsg([]byte("hello\r\nworld")))
	if got.Type != BulkString || got.BulkNull || string(got.Bulk) != "hello\r\nworld" {
		t.Fatalf("got %+v", got)
	}
}

func TestRoundTripNullBulk(t *testing.T) {
	got := roundTrip(t, NullBulk())
	if got.Type != BulkString || !got.BulkNull {
		t.Fatalf("got %+v", got)
	}
}

func TestRoundTripNullArray(t *testing.T) {
	got := roundTrip(t, NullArray())
	if got.Type != Array || !got.ArrayNull {
		t.Fatalf("got %+v", got)
	}
}

func TestRoundTripCommandArray(t *testing.T) {
	msg := BulkStringArray([][]byte{[]byte("SET"), []byte("k"), []byte("v")})
	got := roundTrip(t, msg)
	argv, ok := got.Argv()
	if !ok {
		t.Fatalf("expected argv-shaped array")
	}
	if len(argv) != 3 || string(argv[0]) != "SET" || string(argv[1]) != "k" || string(argv[2]) != "v" {
		t.Fatalf("got %v", argv)
	}
}

func TestRoundTripNestedArray(t *testing.T) {
	msg := ArrayMsg([]Message{
		IntegerMsg(1),
		BulkStringMsg([]byte("a")),
		ArrayMsg([]Message{SimpleStringMsg("nested")}),
		NullBulk(),
	})
	got := roundTrip(t, msg)
	if got.Type != Array || len(got.Elems) != 4 {
		t.Fatalf("got %+v", got)
	}
	if got.Elems[2].Elems[0].Str != "nested" {
		t.Fatalf("nested mismatch: %+v", got.Elems[2])
	}
}

func TestInlineCommand(t *testing.T) {
	dec := NewDecoder(bytes.NewReader([]byte("PING hello\r\n")), 0, 0, 0)
	got, err := dec.ReadMessage()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	argv, ok := got.Argv()
	if !ok || len(argv) != 2 || string(argv[0]) != "PING" || string(argv[1]) != "hello" {
		t.Fatalf("got %v ok=%v", argv, ok)
	}
}

func TestOversizedBulkIsProtocolError(t *testing.T) {
	dec := NewDecoder(bytes.NewReader([]byte("$100\r\n")), 10, 0, 0)
	_, err := dec.ReadMessage()
	if _, ok := err.(*ProtocolError); !ok {
		t.Fatalf("expected *ProtocolError, got %v", err)
	}
}

func TestOversizedArrayIsProtocolError(t *testing.T) {
	dec := NewDecoder(bytes.NewReader([]byte("*100\r\n")), 0, 10, 0)
	_, err := dec.ReadMessage()
	if _, ok := err.(*ProtocolError); !ok {
		t.Fatalf("expected *ProtocolError, got %v", err)
	}
}

func TestPipelinedCommandsDecodeInOrder(t *testing.T) {
	buf := append(Marshal(BulkStringArray([][]byte{[]byte("PING")})),
		Marshal(BulkStringArray([][]byte{[]byte("PING"), []byte("again")}))...)
	dec := NewDecoder(bytes.NewReader(buf), 0, 0, 0)

	first, err := dec.ReadMessage()
	if err != nil {
		t.Fatalf("decode 1: %v", err)
	}
	argv1, _ := first.Argv()
	if len(argv1) != 1 || string(argv1[0]) != "PING" {
		t.Fatalf("got %v", argv1)
	}

	second, err := dec.ReadMessage()
	if err != nil {
		t.Fatalf("decode 2: %v", err)
	}
	argv2, _ := second.Argv()
	if len(argv2) != 2 || string(argv2[1]) != "again" {
		t.Fatalf("got %v", argv2)
	}
}
