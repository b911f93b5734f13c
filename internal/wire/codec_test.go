package wire

import (
	"strconv"
	"testing"
)

// Tests for the wire codec: checksum/body-length discipline, round-trip
// identity, and restartable decoding across partial buffers.

func TestEncode_ChecksumAndBodyLengthMatchDefinition(t *testing.T) {
	frame := Encode("0", []Field{F(49, "CLIENT"), F(56, "cServer"), F(34, "2")}, nil)

	decoded, n, err := Decode(frame)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if n != len(frame) {
		t.Fatalf("expected to consume entire frame (%d bytes), consumed %d", len(frame), n)
	}
	if decoded.MsgType != "0" {
		t.Fatalf("expected MsgType 0, got %q", decoded.MsgType)
	}

	// The CheckSum field is always exactly 7 bytes: "10=" + 3 digits + SOH.
	chkFieldStart := len(frame) - 7
	want := checksum(frame[:chkFieldStart])
	wantStr := paddedChecksum(want)
	gotField := string(frame[chkFieldStart : len(frame)-1])
	if gotField != "10="+wantStr {
		t.Fatalf("checksum field mismatch: got %q want %q", gotField, "10="+wantStr)
	}

	// BodyLength must equal the byte count from after its own SOH through
	// the SOH preceding CheckSum.
	bodyLenField, _, after, ok := scanField(frame, len("8=FIX.4.4\x01"))
	if !ok || bodyLenField != TagBodyLength {
		t.Fatalf("expected BodyLength as second field")
	}
	declaredLen, _ := strconv.Atoi(mustGetValue(frame, len("8=FIX.4.4\x01")))
	actualLen := chkFieldStart - after
	if declaredLen != actualLen {
		t.Fatalf("BodyLength mismatch: declared %d actual %d", declaredLen, actualLen)
	}
}

func mustGetValue(buf []byte, pos int) string {
	_, v, _, _ := scanField(buf, pos)
	return v
}

func TestEncodeDecode_RoundTripIsIdentity(t *testing.T) {
	body := []Field{F(55, "1"), F(54, "1"), F(38, "1000")}
	header := []Field{F(49, "SENDER"), F(56, "cServer"), F(50, "TRADE"), F(34, "7"), F(52, "20260803-12:00:00.000")}
	frame := Encode("D", header, body)

	decoded, n, err := Decode(frame)
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if n != len(frame) {
		t.Fatalf("expected full consumption, got %d of %d", n, len(frame))
	}
	if decoded.MsgType != "D" {
		t.Fatalf("expected MsgType D, got %s", decoded.MsgType)
	}
	if v, ok := decoded.Get(55); !ok || v != "1" {
		t.Fatalf("expected Symbol=1, got %q ok=%v", v, ok)
	}
	if v, ok := decoded.Get(38); !ok || v != "1000" {
		t.Fatalf("expected OrderQty=1000, got %q ok=%v", v, ok)
	}
}

func TestDecode_IncompleteBufferReturnsZeroConsumed(t *testing.T) {
	frame := Encode("0", []Field{F(49, "A"), F(56, "B")}, nil)
	partial := frame[:len(frame)-5]

	decoded, n, err := Decode(partial)
	if decoded != nil || n != 0 || err != nil {
		t.Fatalf("expected (nil, 0, nil) for partial frame, got (%v, %d, %v)", decoded, n, err)
	}
}

func TestDecode_IsRestartableAcrossMultipleFrames(t *testing.T) {
	f1 := Encode("0", []Field{F(34, "1")}, nil)
	f2 := Encode("1", []Field{F(34, "2")}, nil)
	buf := append(append([]byte{}, f1...), f2...)

	d1, n1, err := Decode(buf)
	if err != nil || n1 != len(f1) {
		t.Fatalf("decoding first frame: n=%d err=%v", n1, err)
	}
	if d1.MsgType != "0" {
		t.Fatalf("expected first frame MsgType 0, got %s", d1.MsgType)
	}

	rest := buf[n1:]
	d2, n2, err := Decode(rest)
	if err != nil || n2 != len(f2) {
		t.Fatalf("decoding second frame: n=%d err=%v", n2, err)
	}
	if d2.MsgType != "1" {
		t.Fatalf("expected second frame MsgType 1, got %s", d2.MsgType)
	}
}

func TestDecode_ChecksumMismatchIsMalformed(t *testing.T) {
	frame := Encode("0", []Field{F(34, "1")}, nil)
	// Corrupt the checksum's last digit.
	corrupted := append([]byte{}, frame...)
	corrupted[len(corrupted)-2] = corrupted[len(corrupted)-2] ^ 1

	_, _, err := Decode(corrupted)
	if err == nil {
		t.Fatalf("expected checksum mismatch error")
	}
	var mfe *MalformedFrameError
	if !asMalformed(err, &mfe) {
		t.Fatalf("expected MalformedFrameError, got %T: %v", err, err)
	}
}

func TestDecode_JunkBeforeBeginStringIsSkippable(t *testing.T) {
	frame := Encode("0", []Field{F(34, "1")}, nil)
	buf := append([]byte("garbage-not-fix"), frame...)

	_, skip, err := Decode(buf)
	if err == nil {
		t.Fatalf("expected malformed frame error for junk prefix")
	}
	if skip != len("garbage-not-fix") {
		t.Fatalf("expected to skip %d bytes of junk, got %d", len("garbage-not-fix"), skip)
	}

	decoded, n, err := Decode(buf[skip:])
	if err != nil || n != len(frame) {
		t.Fatalf("expected clean decode after skipping junk: n=%d err=%v", n, err)
	}
	if decoded.MsgType != "0" {
		t.Fatalf("expected MsgType 0 after resync, got %s", decoded.MsgType)
	}
}

func asMalformed(err error, target **MalformedFrameError) bool {
	if mfe, ok := err.(*MalformedFrameError); ok {
		*target = mfe
		return true
	}
	return false
}

func TestChecksum_IsModuloSumOfBytes(t *testing.T) {
	data := []byte("8=FIX.4.4\x019=5\x0135=0\x01")
	sum := 0
	for _, b := range data {
		sum += int(b)
	}
	want := sum % 256
	if got := checksum(data); got != want {
		t.Fatalf("checksum mismatch: got %d want %d", got, want)
	}
	padded := paddedChecksum(want)
	if len(padded) != 3 {
		t.Fatalf("expected 3-digit padded checksum, got %q", padded)
	}
	if _, err := strconv.Atoi(padded); err != nil {
		t.Fatalf("padded checksum not numeric: %q", padded)
	}
}
