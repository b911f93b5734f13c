/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package wire

import (
	"bytes"
	"strconv"
)

// Encode renders a complete FIX frame. header must already carry every
// header field except BeginString/BodyLength/CheckSum (SenderCompID,
// TargetCompID, SenderSubID, MsgSeqNum, SendingTime, in that order, per
// spec), and body carries the message-specific fields in wire order.
// MsgType is written right after BodyLength, matching cTrader's required
// field ordering: 35, 49, 56, 57, 50, 34, 52, then message-specific tags.
func Encode(msgType string, header []Field, body []Field) []byte {
	var payload bytes.Buffer
	payload.WriteString(strconv.Itoa(TagMsgType))
	payload.WriteByte('=')
	payload.WriteString(msgType)
	payload.WriteByte(SOH)
	for _, f := range header {
		writeField(&payload, f)
	}
	for _, f := range body {
		writeField(&payload, f)
	}

	var out bytes.Buffer
	out.WriteString(strconv.Itoa(TagBeginString))
	out.WriteByte('=')
	out.WriteString(BeginString)
	out.WriteByte(SOH)
	out.WriteString(strconv.Itoa(TagBodyLength))
	out.WriteByte('=')
	out.WriteString(strconv.Itoa(payload.Len()))
	out.WriteByte(SOH)
	out.Write(payload.Bytes())

	sum := checksum(out.Bytes())
	out.WriteString(strconv.Itoa(TagCheckSum))
	out.WriteByte('=')
	out.WriteString(paddedChecksum(sum))
	out.WriteByte(SOH)

	return out.Bytes()
}

func writeField(buf *bytes.Buffer, f Field) {
	buf.WriteString(strconv.Itoa(f.Tag))
	buf.WriteByte('=')
	buf.WriteString(f.Value)
	buf.WriteByte(SOH)
}

// checksum is sum(bytes) mod 256 over every byte passed in.
func checksum(b []byte) int {
	sum := 0
	for _, c := range b {
		sum += int(c)
	}
	return sum % 256
}

func paddedChecksum(sum int) string {
	s := strconv.Itoa(sum)
	for len(s) < 3 {
		s = "0" + s
	}
	return s
}

// Decode scans buf for one complete frame starting at a "8=FIX.4.4\x01"
// boundary. It returns the decoded frame, the number of bytes consumed
// from buf (0 if buf holds no complete frame yet), and an error.
//
// HOT PATH: called once per inbound read; uses single-pass, allocation-
// light scanning in the style of a hand-rolled tag=value parser rather
// than building an intermediate map before the caller needs one.
//
// On a MalformedFrameError, consumed is the offset the caller should skip
// before re-scanning for the next "8=" boundary, per spec.
func Decode(buf []byte) (*Frame, int, error) {
	prefix := []byte("8=" + BeginString + string(SOH))
	start := bytes.Index(buf, prefix)
	if start == -1 {
		return nil, 0, nil
	}
	if start > 0 {
		// Garbage before the boundary: tell the caller to drop it and
		// retry from the boundary rather than parsing it as a frame.
		return nil, start, &MalformedFrameError{Reason: "junk before BeginString", Offset: start}
	}

	pos := len(prefix)

	bodyLenTag, bodyLenVal, next, ok := scanField(buf, pos)
	if !ok {
		return nil, 0, nil // incomplete
	}
	if bodyLenTag != TagBodyLength {
		return nil, next, &MalformedFrameError{Reason: "expected BodyLength after BeginString", Offset: next}
	}
	bodyLen, err := strconv.Atoi(bodyLenVal)
	if err != nil || bodyLen < 0 {
		return nil, next, &MalformedFrameError{Reason: "non-numeric or negative BodyLength", Offset: next}
	}
	pos = next

	bodyStart := pos
	bodyEnd := bodyStart + bodyLen
	if bodyEnd > len(buf) {
		return nil, 0, nil // incomplete: haven't received the full body yet
	}
	body := buf[bodyStart:bodyEnd]

	checksumTag, checksumVal, afterChecksum, ok := scanField(buf, bodyEnd)
	if !ok {
		return nil, 0, nil // incomplete: checksum field not fully received
	}
	if checksumTag != TagCheckSum {
		return nil, afterChecksum, &MalformedFrameError{Reason: "expected CheckSum after body", Offset: afterChecksum}
	}

	gotSum, err := strconv.Atoi(checksumVal)
	if err != nil {
		return nil, afterChecksum, &MalformedFrameError{Reason: "non-numeric CheckSum", Offset: afterChecksum}
	}
	wantSum := checksum(buf[:bodyEnd])
	if gotSum != wantSum {
		return nil, afterChecksum, &MalformedFrameError{Reason: "checksum mismatch", Offset: afterChecksum}
	}

	frame, err := parseBody(body)
	if err != nil {
		return nil, afterChecksum, err
	}

	return frame, afterChecksum, nil
}

// scanField reads one tag=value\x01 field starting at pos. ok is false if
// buf does not yet contain a complete field at that offset.
func scanField(buf []byte, pos int) (tag int, value string, next int, ok bool) {
	eq := bytes.IndexByte(buf[pos:], '=')
	if eq == -1 {
		return 0, "", pos, false
	}
	eq += pos
	tagNum, err := strconv.Atoi(string(buf[pos:eq]))
	if err != nil {
		return 0, "", eq + 1, false
	}
	sohRel := bytes.IndexByte(buf[eq+1:], SOH)
	if sohRel == -1 {
		return 0, "", pos, false
	}
	sohAbs := eq + 1 + sohRel
	return tagNum, string(buf[eq+1 : sohAbs]), sohAbs + 1, true
}

// parseBody walks the body (everything after BodyLength's SOH, up to and
// including the SOH before CheckSum) into an ordered Frame. MsgType is
// lifted out for dispatch convenience but also remains in Body.
func parseBody(body []byte) (*Frame, error) {
	var fields []Field
	pos := 0
	for pos < len(body) {
		tag, val, next, ok := scanField(body, pos)
		if !ok {
			return nil, &MalformedFrameError{Reason: "truncated field in body"}
		}
		fields = append(fields, Field{Tag: tag, Value: val})
		pos = next
	}

	f := &Frame{Body: fields}
	if mt, ok := f.Get(TagMsgType); ok {
		f.MsgType = mt
	} else {
		return nil, &MalformedFrameError{Reason: "missing MsgType in body"}
	}
	return f, nil
}
