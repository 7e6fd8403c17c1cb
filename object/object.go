// Package object defines the identity and type vocabulary of Git
// objects. Unlike a full Git object model, it does not marshal or
// unmarshal commit/tree/tag structure: the store this package supports
// treats an object's payload as opaque bytes framed by a wire header
// (see the looseobject package), and never needs to parse it further.
package object

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
)

var errBadIDLen = errors.New("object: invalid ID length")

// An ID is the name of a Git object: the SHA-1 digest of its wire
// representation.
type ID [sha1.Size]byte

// ZeroID (20 zero bytes) is used to designate a nonexistent object.
var ZeroID ID

// DecodeID parses a 40-character hexadecimal string as a Git ID.
func DecodeID(s string) (id ID, err error) {
	b, err := hex.DecodeString(s)
	switch {
	case err != nil:
		return id, err
	case len(b) != len(id):
		return id, errBadIDLen
	}
	copy(id[:], b)
	return id, nil
}

// String returns the ID as a lowercase 40-digit hexadecimal string.
func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

// Scan is a support routine for fmt.Scanner.  The format verb is
// ignored; Scan always attempts to read 40 hexadecimal digits from
// the input.
func (id *ID) Scan(ss fmt.ScanState, verb rune) error {
	var p []byte
	if _, err := fmt.Fscanf(ss, "%40x", &p); err != nil {
		return err
	}
	if copy((*id)[:], p) != len(*id) {
		return errBadIDLen
	}
	return nil
}
