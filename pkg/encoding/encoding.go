// Copyright 2025 Certen Protocol
//
// Encoding primitives for the optimistic roll-in engine: fixed-width integer
// <-> byte buffer conversion, hex <-> bytes, and the packed Keccak-256 hash
// used throughout the account fingerprint and Merkle tree.

package encoding

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// Uint64ToBytes encodes v as 8 big-endian bytes.
func Uint64ToBytes(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

// BytesToUint64 decodes the last 8 bytes of b as a big-endian uint64.
// It errors if b is longer than 8 bytes and any of the leading bytes are non-zero.
func BytesToUint64(b []byte) (uint64, error) {
	if len(b) > 8 {
		for _, c := range b[:len(b)-8] {
			if c != 0 {
				return 0, fmt.Errorf("value overflows uint64: %x", b)
			}
		}
		b = b[len(b)-8:]
	}
	var padded [8]byte
	copy(padded[8-len(b):], b)
	return binary.BigEndian.Uint64(padded[:]), nil
}

// U256BE left-pads v into a 32-byte big-endian scalar, the u256_be(last_time)
// encoding used by the account fingerprint (spec §3).
func U256BE(v uint64) [32]byte {
	var out [32]byte
	binary.BigEndian.PutUint64(out[24:], v)
	return out
}

// HexToBytes decodes a hex string, tolerating an optional "0x"/"0X" prefix.
func HexToBytes(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s)%2 != 0 {
		s = "0" + s
	}
	return hex.DecodeString(s)
}

// BytesToHex encodes b as a "0x"-prefixed hex string.
func BytesToHex(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

// Keccak256 hashes the concatenation of parts with Keccak-256, the hash
// function fixed by spec §3 for the account fingerprint and the Merkle tree.
func Keccak256(parts ...[]byte) [32]byte {
	return crypto.Keccak256Hash(parts...)
}
