// Package packidx reads Git packfile index (v2) files: the fan-out
// table and SHA table that map an object id to its byte offset within
// the companion packfile, without loading the packfile itself.
//
// The format is documented in http://git.rsbx.net/Documents/Git_Data_Formats.txt
// and cross-checked here against remyoudompheng/gigot's PackReader and
// gg-scm/gg's packfile.ReadIndex.
package packidx

import (
	"encoding/binary"
	"errors"

	"github.com/ahmetskilinc/gitbruv/object"
)

// ErrBadMagic is returned when an idx file does not begin with the v2
// magic number.
var ErrBadMagic = errors.New("packidx: bad magic number")

// ErrUnsupportedVersion is returned for any idx version other than 2.
var ErrUnsupportedVersion = errors.New("packidx: unsupported version (only v2 is supported)")

var magic = [4]byte{0xFF, 0x74, 0x4F, 0x63}

const (
	fanoutBase  = 8
	fanoutCount = 256
	fanoutSize  = fanoutCount * 4
	fanoutEnd   = fanoutBase + fanoutSize
	shaSize     = 20
)

// checkHeader validates the magic number and version, and returns N,
// the total object count recorded in the last fan-out slot.
func checkHeader(idx []byte) (n int, err error) {
	if len(idx) < fanoutEnd {
		return 0, ErrBadMagic
	}
	if [4]byte(idx[0:4]) != magic {
		return 0, ErrBadMagic
	}
	version := binary.BigEndian.Uint32(idx[4:8])
	if version != 2 {
		return 0, ErrUnsupportedVersion
	}
	return int(fanout(idx, 255)), nil
}

func fanout(idx []byte, b byte) uint32 {
	off := fanoutBase + int(b)*4
	return binary.BigEndian.Uint32(idx[off : off+4])
}

// FindOffset locates the packfile byte offset of the entry for oid in
// a version 2 idx file. It returns ok == false if the idx header is
// malformed or oid is not present.
func FindOffset(idx []byte, oid object.ID) (offset int64, ok bool) {
	n, err := checkHeader(idx)
	if err != nil {
		return 0, false
	}

	first := oid[0]
	var lo uint32
	if first > 0 {
		lo = fanout(idx, first-1)
	}
	hi := fanout(idx, first)

	shaTableStart := fanoutEnd
	i, found := search(idx, shaTableStart, int(lo), int(hi), oid)
	if !found {
		return 0, false
	}

	crcTableStart := shaTableStart + n*shaSize
	smallOffsetStart := crcTableStart + n*4
	largeOffsetStart := smallOffsetStart + n*4

	smallOff := smallOffsetStart + i*4
	if smallOff+4 > len(idx) {
		return 0, false
	}
	small := binary.BigEndian.Uint32(idx[smallOff : smallOff+4])
	if small&0x80000000 == 0 {
		return int64(small), true
	}

	// High bit set: small holds an index into the large-offset table.
	// largeN is the number of entries that table can legally hold;
	// validate the index against it rather than trusting it blindly
	// (spec.md §9's second open question).
	largeN := countLargeOffsets(idx, smallOffsetStart, n)
	largeIdx := int(small &^ 0x80000000)
	if largeIdx >= largeN {
		return 0, false
	}
	// The table ends where the pack and idx SHA trailer begins.
	largeOff := largeOffsetStart + largeIdx*8
	if largeOff+8 > len(idx)-2*shaSize {
		return 0, false
	}
	return int64(binary.BigEndian.Uint64(idx[largeOff : largeOff+8])), true
}

func countLargeOffsets(idx []byte, smallOffsetStart, n int) int {
	count := 0
	for i := 0; i < n; i++ {
		off := smallOffsetStart + i*4
		if off+4 > len(idx) {
			break
		}
		if binary.BigEndian.Uint32(idx[off:off+4])&0x80000000 != 0 {
			count++
		}
	}
	return count
}

// search performs a binary search for oid in the SHA table's
// [lo, hi) window, which the fan-out table already narrows to the
// objects sharing oid's first byte.
func search(idx []byte, shaTableStart, lo, hi int, oid object.ID) (i int, ok bool) {
	for lo < hi {
		mid := (lo + hi) / 2
		off := shaTableStart + mid*shaSize
		if off+shaSize > len(idx) {
			return 0, false
		}
		switch compareOID(idx[off:off+shaSize], oid) {
		case 0:
			return mid, true
		case -1:
			lo = mid + 1
		case 1:
			hi = mid
		}
	}
	return 0, false
}

func compareOID(a []byte, b object.ID) int {
	for i := 0; i < shaSize; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}
