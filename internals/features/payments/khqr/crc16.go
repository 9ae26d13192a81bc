// file: internals/features/payments/khqr/crc16.go
package khqr

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
)

/* =========================================================
   Checksum unit: CRC16-CCITT + content fingerprint
========================================================= */

// crc16 computes CRC16-CCITT: polynomial 0x1021, initial value 0xFFFF,
// MSB-first, no final XOR.
func crc16(data string) uint16 {
	crc := uint16(0xFFFF)
	for i := 0; i < len(data); i++ {
		crc ^= uint16(data[i]) << 8
		for bit := 0; bit < 8; bit++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// Checksum returns the 4 uppercase hex digits a scanner verifies. The input
// must already end with the checksum tag+length header ("6304"); computing
// the CRC before appending that header yields a payload scanners reject.
func Checksum(data string) string {
	return fmt.Sprintf("%04X", crc16(data))
}

// Fingerprint is the lowercase hex MD5 of the fully assembled payload (CRC
// included). It is the natural idempotency key for "has this exact payment
// request settled": a dedup key, not a security boundary.
func Fingerprint(payload string) string {
	sum := md5.Sum([]byte(payload))
	return hex.EncodeToString(sum[:])
}
