// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package m5i20

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/snksoft/crc"
)

// Bitstream is an FPGA configuration image.
type Bitstream struct {
	Design string
	Part   string
	Date   string
	Time   string
	Data   []byte // payload sent to the FPGA
}

// CRC16 returns the CRC-16/CCITT of the payload.
func (bs Bitstream) CRC16() uint16 {
	return uint16(crc.CalculateCRC(crc.CCITT, bs.Data))
}

var bitMagic = []byte{
	0x00, 0x09,
	0x0f, 0xf0, 0x0f, 0xf0, 0x0f, 0xf0, 0x0f, 0xf0, 0x00,
	0x00, 0x01,
}

// ReadBitstream reads a Xilinx .bit file or a raw configuration image.
func ReadBitstream(r io.Reader) (Bitstream, error) {
	var bs Bitstream
	raw, err := io.ReadAll(r)
	if err != nil {
		return bs, fmt.Errorf("m5i20: could not read bitstream: %w", err)
	}

	if !bytes.HasPrefix(raw, bitMagic) {
		if len(raw) == 0 {
			return bs, fmt.Errorf("m5i20: empty bitstream")
		}
		bs.Data = raw
		return bs, nil
	}

	buf := raw[len(bitMagic):]
	for {
		if len(buf) < 1 {
			return bs, fmt.Errorf("m5i20: truncated bitstream header")
		}
		key := buf[0]
		buf = buf[1:]

		if key == 'e' {
			if len(buf) < 4 {
				return bs, fmt.Errorf("m5i20: truncated bitstream payload size")
			}
			n := binary.BigEndian.Uint32(buf)
			buf = buf[4:]
			if uint64(n) > uint64(len(buf)) {
				return bs, fmt.Errorf(
					"m5i20: truncated bitstream payload (got=%d, want=%d)",
					len(buf), n,
				)
			}
			bs.Data = buf[:n]
			return bs, nil
		}

		if len(buf) < 2 {
			return bs, fmt.Errorf("m5i20: truncated bitstream field %q", key)
		}
		n := int(binary.BigEndian.Uint16(buf))
		buf = buf[2:]
		if n > len(buf) {
			return bs, fmt.Errorf("m5i20: truncated bitstream field %q", key)
		}
		v := string(bytes.TrimRight(buf[:n], "\x00"))
		buf = buf[n:]

		switch key {
		case 'a':
			bs.Design = v
		case 'b':
			bs.Part = v
		case 'c':
			bs.Date = v
		case 'd':
			bs.Time = v
		default:
			return bs, fmt.Errorf("m5i20: invalid bitstream field %q", key)
		}
	}
}
