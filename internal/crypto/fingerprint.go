// Package crypto holds the hashing and sealing primitives of the client:
// request fingerprints that bind a challenge to its original request and
// authenticated encryption of pending operations kept on disk.
package crypto

import (
	"crypto/subtle"
	"encoding/binary"

	"golang.org/x/crypto/blake2b"
)

// FingerprintLen is the size of a request fingerprint.
const FingerprintLen = blake2b.Size256

// Fingerprint hashes the parts of a request. Each part is length-prefixed so
// that moving bytes between parts changes the result.
func Fingerprint(method, path, query string, body []byte) []byte {
	h, _ := blake2b.New256(nil) // a nil key never fails
	var n [8]byte
	for _, part := range [][]byte{[]byte(method), []byte(path), []byte(query), body} {
		binary.BigEndian.PutUint64(n[:], uint64(len(part)))
		h.Write(n[:])
		h.Write(part)
	}
	return h.Sum(nil)
}

// SameFingerprint compares two fingerprints in constant time.
func SameFingerprint(a, b []byte) bool {
	return len(a) == FingerprintLen && subtle.ConstantTimeCompare(a, b) == 1
}
