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

// Package wire implements the SOH-delimited tag=value framing cTrader's
// FIX 4.4 profile uses on the wire: field encoding, checksum, body length,
// and a restartable decoder that consumes only complete frames.
package wire

import "fmt"

// SOH is the FIX field separator, byte 0x01.
const SOH = byte(0x01)

const (
	TagBeginString = 8
	TagBodyLength  = 9
	TagMsgType     = 35
	TagCheckSum    = 10
)

// BeginString is the only BeginString value this profile emits or accepts.
const BeginString = "FIX.4.4"

// Field is a single tag=value pair. Value must not contain SOH.
type Field struct {
	Tag   int
	Value string
}

func F(tag int, value string) Field { return Field{Tag: tag, Value: value} }

// Frame is a fully decoded FIX message: the ordered body fields between
// BodyLength and CheckSum, plus the MsgType pulled out for convenience.
// Body holds every one of those fields in wire order, MsgType and the
// header fields (SenderCompID, MsgSeqNum, ...) included; BeginString,
// BodyLength and CheckSum are not in it.
type Frame struct {
	MsgType string
	Body    []Field
}

// Get returns the first value for tag, and whether it was present.
func (f *Frame) Get(tag int) (string, bool) {
	for _, fld := range f.Body {
		if fld.Tag == tag {
			return fld.Value, true
		}
	}
	return "", false
}

// GetAll returns every value for tag in wire order, for repeating groups.
func (f *Frame) GetAll(tag int) []string {
	var out []string
	for _, fld := range f.Body {
		if fld.Tag == tag {
			out = append(out, fld.Value)
		}
	}
	return out
}

// MalformedFrameError is returned by Decode when a buffer cannot be parsed
// as a well-formed frame. Offset is how many bytes the caller should skip
// before retrying, to resynchronize on the next plausible "8=" boundary.
type MalformedFrameError struct {
	Reason string
	Offset int
}

func (e *MalformedFrameError) Error() string {
	return fmt.Sprintf("malformed frame: %s", e.Reason)
}
