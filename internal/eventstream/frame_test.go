package eventstream

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"testing"
)

// buildFrame constructs a well-formed event-stream frame for test fixtures.
// Only string headers are needed for these tests.
func buildFrame(t *testing.T, headers map[string]string, payload []byte) []byte {
	t.Helper()

	var headerBuf bytes.Buffer
	for name, value := range headers {
		headerBuf.WriteByte(byte(len(name)))
		headerBuf.WriteString(name)
		headerBuf.WriteByte(byte(HeaderString))
		var lenBuf [2]byte
		binary.BigEndian.PutUint16(lenBuf[:], uint16(len(value)))
		headerBuf.Write(lenBuf[:])
		headerBuf.WriteString(value)
	}

	totalLength := uint32(preludeLength + crcLength + headerBuf.Len() + len(payload) + crcLength)

	var out bytes.Buffer
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], totalLength)
	out.Write(lenBuf[:])
	binary.BigEndian.PutUint32(lenBuf[:], uint32(headerBuf.Len()))
	out.Write(lenBuf[:])

	preludeCRC := crc32.ChecksumIEEE(out.Bytes())
	binary.BigEndian.PutUint32(lenBuf[:], preludeCRC)
	out.Write(lenBuf[:])

	out.Write(headerBuf.Bytes())
	out.Write(payload)

	messageCRC := crc32.ChecksumIEEE(out.Bytes())
	binary.BigEndian.PutUint32(lenBuf[:], messageCRC)
	out.Write(lenBuf[:])

	return out.Bytes()
}

func TestDecodeFrameRoundTrip(t *testing.T) {
	raw := buildFrame(t, map[string]string{
		":event-type":   "assistantResponseEvent",
		":content-type": "application/json",
		":message-type": "event",
	}, []byte(`{"content":"hello"}`))

	frame, consumed, err := DecodeFrame(raw)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if consumed != len(raw) {
		t.Fatalf("consumed = %d, want %d", consumed, len(raw))
	}
	if frame.EventType() != "assistantResponseEvent" {
		t.Fatalf("EventType = %q", frame.EventType())
	}
	if string(frame.Payload) != `{"content":"hello"}` {
		t.Fatalf("Payload = %q", frame.Payload)
	}
}

func TestDecodeFrameIncomplete(t *testing.T) {
	raw := buildFrame(t, map[string]string{":event-type": "x"}, []byte(`{}`))

	for n := 0; n < len(raw); n++ {
		_, _, err := DecodeFrame(raw[:n])
		if err != ErrIncomplete {
			t.Fatalf("DecodeFrame(raw[:%d]) err = %v, want ErrIncomplete", n, err)
		}
	}
}

func TestDecodeFrameBadCRC(t *testing.T) {
	raw := buildFrame(t, map[string]string{":event-type": "x"}, []byte(`{}`))
	raw[len(raw)-1] ^= 0xFF

	_, _, err := DecodeFrame(raw)
	if err == nil {
		t.Fatal("expected crc mismatch error")
	}
}
