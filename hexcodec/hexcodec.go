// Package hexcodec converts between free-form hex text and bytes.
package hexcodec

// --------------------------------------------------------------------------
//
//	Gurux Ltd
//
// Filename:        $HeadURL$
//
// Version:         $Revision$,
//
//	$Date$
//	$Author$
//
// # Copyright (c) Gurux Ltd
//
// ---------------------------------------------------------------------------
//
//	DESCRIPTION
//
// This file is a part of Gurux Device Framework.
//
// Gurux Device Framework is Open Source software; you can redistribute it
// and/or modify it under the terms of the GNU General Public License
// as published by the Free Software Foundation; version 2 of the License.
// Gurux Device Framework is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU General Public License for more details.
//
// More information of Gurux products: https://www.gurux.org
//
// This code is licensed under the GNU General Public License v2.
// Full text may be retrieved at http://www.gnu.org/licenses/gpl-2.0.txt
// ---------------------------------------------------------------------------

import (
	"strings"

	"github.com/sigurn/crc16"
)

const digits = "0123456789ABCDEF"

var modbus = crc16.MakeTable(crc16.CRC16_MODBUS)

func nibble(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// Parse converts text to bytes. Every character that is not a hex digit is
// dropped. When the number of digits is odd a leading zero is assumed, so
// "abc" is parsed as "0abc". Parse never fails; text without hex digits
// gives an empty slice.
func Parse(text string) []byte {
	var nibbles []byte
	for i := 0; i < len(text); i++ {
		if v, ok := nibble(text[i]); ok {
			nibbles = append(nibbles, v)
		}
	}
	if len(nibbles)%2 != 0 {
		nibbles = append([]byte{0}, nibbles...)
	}
	ret := make([]byte, 0, len(nibbles)/2)
	for i := 0; i < len(nibbles); i += 2 {
		ret = append(ret, nibbles[i]<<4|nibbles[i+1])
	}
	return ret
}

// Format renders data as uppercase hex byte pairs separated by single spaces.
func Format(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.Grow(3*len(data) - 1)
	for i, b := range data {
		if i != 0 {
			sb.WriteByte(' ')
		}
		sb.WriteByte(digits[b>>4])
		sb.WriteByte(digits[b&0x0F])
	}
	return sb.String()
}

// FormatASCII renders printable ASCII as is and every other byte as '.'.
func FormatASCII(data []byte) string {
	ret := make([]byte, len(data))
	for i, b := range data {
		if b >= 0x20 && b < 0x7F {
			ret[i] = b
		} else {
			ret[i] = '.'
		}
	}
	return string(ret)
}

// CRC16 returns the CRC-16/MODBUS checksum of data.
func CRC16(data []byte) uint16 {
	return crc16.Checksum(data, modbus)
}

// AppendCRC16 returns data followed by its CRC-16/MODBUS, low byte first.
// data is not modified.
func AppendCRC16(data []byte) []byte {
	crc := CRC16(data)
	ret := make([]byte, 0, len(data)+2)
	ret = append(ret, data...)
	return append(ret, byte(crc), byte(crc>>8))
}
