// The functions in this file implement the Git packfile variable-length
// number encoding.  The encoding uses the standard "MSB set = more
// bytes follow" scheme, but both little- and big-endian encodings are
// used, and the big-endian encoding comes with a twist.  The
// little-endian encoding is exactly the same as the one used by
// encoding/binary (see https://developers.google.com/protocol-buffers/docs/encoding#varints).
// The big-endian encoding is called "modified big-endian" and involves
// adding/substracting one to/from the number before/after shifting it
// during decoding/encoding.  Refer to http://git.rsbx.net/Documents/Git_Data_Formats.txt
// and this source for clarification.

package packfile

import (
	"encoding/binary"
)

// base128LE decodes a uint64 from buf and returns that value and the
// number of bytes read (> 0).  If an error occurred, the value is 0 and
// the number of bytes n is <= 0 meaning:
//
//	n == 0: buf too small
//	n  < 0: value larger than 64 bits (overflow)
//	     and -n is the number of bytes read
func base128LE(buf []byte) (uint64, int) {
	return binary.Uvarint(buf)
}

// base128MBE decodes a modified big-endian base128-encoded number from
// buf: the offset encoding used by ofs-delta pack entries.  It returns
// the decoded value and the number of bytes read (> 0), or n <= 0 if
// buf was exhausted before a terminating byte (high bit clear) was
// found.  Unlike the little-endian encoding, decoding increments the
// accumulator before each shift, which lets every encodable offset be
// represented in the minimum number of bytes with no redundant zero
// prefixes.
func base128MBE(buf []byte) (x uint64, n int) {
	if len(buf) == 0 {
		return 0, 0
	}
	c := buf[0]
	n = 1
	x = uint64(c & 0x7F)
	for c&0x80 != 0 {
		if n >= len(buf) {
			return 0, 0
		}
		if x >= 1<<57-1 {
			return 0, -n
		}
		c = buf[n]
		x = (x+1)<<7 | uint64(c&0x7F)
		n++
	}
	return x, n
}
