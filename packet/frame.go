// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package packet

import (
	"encoding/base64"

	"github.com/bitmark-inc/blocksync/fault"
)

// FrameSeparator - terminates a frame, never part of the base64 alphabet
const FrameSeparator = '*'

// Framer - turns packets into wire frames and back
type Framer interface {
	// Encode - one complete frame for a payload
	Encode(payload []byte) []byte

	// Feed - accumulate received bytes and return the payloads of any
	// frames they completed, a non-nil error reports that at least
	// one frame was malformed or oversized and dropped
	Feed(chunk []byte) ([][]byte, error)

	// Reset - drop any partial frame
	Reset()
}

// DelimiterFramer - base64 text terminated by FrameSeparator
//
// bytes outside the base64 alphabet are filtered before separator
// detection, a frame longer than the maximum is reported as
// fault.FrameTooLarge and discarded up to and including its separator
type DelimiterFramer struct {
	buffer     []byte
	maxLength  int
	discarding bool
}

// NewDelimiterFramer - create a framer with a maximum accumulated frame length
func NewDelimiterFramer(maxLength int) *DelimiterFramer {
	return &DelimiterFramer{
		buffer:    make([]byte, 0, 512),
		maxLength: maxLength,
	}
}

// Encode - base64 of the payload followed by the separator
func (f *DelimiterFramer) Encode(payload []byte) []byte {
	n := base64.StdEncoding.EncodedLen(len(payload))
	frame := make([]byte, n+1)
	base64.StdEncoding.Encode(frame, payload)
	frame[n] = FrameSeparator
	return frame
}

// Feed - see Framer
func (f *DelimiterFramer) Feed(chunk []byte) ([][]byte, error) {
	var frames [][]byte
	var err error

	for _, b := range chunk {
		if FrameSeparator == b {
			if f.discarding {
				f.discarding = false
				f.buffer = f.buffer[:0]
				continue
			}
			if 0 == len(f.buffer) {
				continue
			}

			payload := make([]byte, base64.StdEncoding.DecodedLen(len(f.buffer)))
			n, e := base64.StdEncoding.Decode(payload, f.buffer)
			f.buffer = f.buffer[:0]
			if nil != e {
				err = fault.InvalidPacket
				continue
			}
			frames = append(frames, payload[:n])
			continue
		}

		if !isBase64(b) || f.discarding {
			continue
		}

		f.buffer = append(f.buffer, b)
		if f.maxLength > 0 && len(f.buffer) > f.maxLength {
			f.buffer = f.buffer[:0]
			f.discarding = true
			err = fault.FrameTooLarge
		}
	}
	return frames, err
}

// Reset - see Framer
func (f *DelimiterFramer) Reset() {
	f.buffer = f.buffer[:0]
	f.discarding = false
}

func isBase64(b byte) bool {
	switch {
	case b >= 'A' && b <= 'Z':
		return true
	case b >= 'a' && b <= 'z':
		return true
	case b >= '0' && b <= '9':
		return true
	case '+' == b || '/' == b || '=' == b:
		return true
	}
	return false
}
