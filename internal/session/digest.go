package session

import (
	"encoding/base64"
	"encoding/hex"

	"golang.org/x/crypto/sha3"
)

// DigestLength is the number of bytes in a SHA3-384 digest.
const DigestLength = 48

// Digest is one link of the session hash chain.
//
// It is a value type: copying a Digest is how scope snapshots are taken.
type Digest [DigestLength]byte

// emptyDigest is the accumulator of a session that has seen no lines.
var emptyDigest = Digest(sha3.Sum384(nil))

// next returns SHA3-384(d || line).
//
// d has a fixed length, so the boundary between consecutive lines is
// unambiguous and feeding "ab","c" never collides with "a","bc".
func (d Digest) next(line string) Digest {
	h := sha3.New384()
	h.Write(d[:])
	h.Write([]byte(line))

	var out Digest
	h.Sum(out[:0])
	return out
}

// String encodes the digest as unpadded standard base64.
func (d Digest) String() string {
	return base64.RawStdEncoding.EncodeToString(d[:])
}

// GoString is used by %#v.
func (d Digest) GoString() string {
	return "<SHA3-384:" + hex.EncodeToString(d[:]) + ">"
}
