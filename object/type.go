package object

import (
	"bytes"
	"fmt"
	"io"
)

// Type enumerates the standard Git object types.  TypeReserved (5) is
// the pack entry type git reserves and never emits; the core rejects
// it on sight (spec.md §4.4).
type Type byte

const (
	TypeUnknown Type = iota

	TypeCommit
	TypeTree
	TypeBlob
	TypeTag

	TypeReserved
)

// A TypeError is used to report an invalid or unknown Git object type.
// Methods returning a TypeError specify the concrete type of the value
// it holds.
type TypeError struct {
	Value interface{}
}

func (e *TypeError) Error() string {
	if t, ok := e.Value.(Type); ok {
		return fmt.Sprintf("bad Git type code: %#x", t)
	} else {
		return fmt.Sprintf("bad Git object type: %v", e.Value)
	}
}

// String returns "commit", "tree", "blob" or "tag" depending on the
// value of the type.  It returns an empty string if the type is not one
// of the standard Git ones.
func (t Type) String() string {
	switch t {
	case TypeCommit:
		return "commit"
	case TypeTree:
		return "tree"
	case TypeBlob:
		return "blob"
	case TypeTag:
		return "tag"
	default:
		return ""
	}
}

// Scan is a support routine for fmt.Scanner.  It reads a
// whitespace-delimited word from input and attempts to interpret it
// as one of the strings returned by String.  If the word is not
// recognized, a TypeError containing it is returned.
func (t *Type) Scan(ss fmt.ScanState, verb rune) error {
	tok, err := ss.Token(true, nil)
	switch {
	case err != nil:
		return err
	case len(tok) == 0:
		return io.ErrUnexpectedEOF
	}
	switch string(tok) {
	case "commit":
		*t = TypeCommit
	case "tree":
		*t = TypeTree
	case "blob":
		*t = TypeBlob
	case "tag":
		*t = TypeTag
	default:
		return &TypeError{string(tok)}
	}
	return nil
}

// FrameHeader prepends the Git wire header "<type> <len>\0" to a raw
// object payload.  It returns a TypeError containing objType if it is
// not one of the four standard Git object types.
func FrameHeader(objType Type, payload []byte) ([]byte, error) {
	if objType.String() == "" {
		return nil, &TypeError{objType}
	}
	header := []byte(fmt.Sprintf("%s %d\x00", objType, len(payload)))
	return append(header, payload...), nil
}

// StripHeader parses and removes the Git wire header from data,
// returning the recorded type, the payload, and an error if the header
// is malformed or its recorded length does not match the payload that
// follows it.
func StripHeader(data []byte) (objType Type, payload []byte, err error) {
	buf := bytes.NewBuffer(data)
	var length int
	if _, err := fmt.Fscanf(buf, "%s %d\x00", &objType, &length); err != nil {
		return TypeUnknown, nil, err
	}
	if length != buf.Len() {
		return TypeUnknown, nil, fmt.Errorf("object: expected length %d, got %d", length, buf.Len())
	}
	return objType, buf.Bytes(), nil
}
