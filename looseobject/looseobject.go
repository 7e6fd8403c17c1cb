// Package looseobject reads and writes individual Git objects stored
// the "loose" way: one zlib-compressed, header-framed blob per object,
// keyed by its id under objects/<2-hex>/<38-hex>.
package looseobject

import (
	"fmt"

	"github.com/ahmetskilinc/gitbruv/blob"
	"github.com/ahmetskilinc/gitbruv/object"
	"github.com/ahmetskilinc/gitbruv/zlibcodec"
)

// Key returns the blob storage key for a loose object keyed by id,
// under the given repository prefix.
func Key(prefix string, id object.ID) string {
	hex := id.String()
	return fmt.Sprintf("%s/objects/%s/%s", prefix, hex[:2], hex[2:])
}

// Get reads and decompresses the loose object for id out of adapter.
// It returns ok == false if no loose object exists for id, and also
// if one exists but is corrupt (a bad zlib stream or a malformed wire
// header) or adapter.Get itself fails: a read never distinguishes
// missing from unreadable, it only ever reports absence.
func Get(adapter blob.Adapter, prefix string, id object.ID) (objType object.Type, payload []byte, ok bool) {
	data, ok, err := adapter.Get(Key(prefix, id))
	if err != nil || !ok {
		return 0, nil, false
	}
	wire, ok := zlibcodec.Decompress(data)
	if !ok {
		return 0, nil, false
	}
	objType, payload, err = object.StripHeader(wire)
	if err != nil {
		return 0, nil, false
	}
	return objType, payload, true
}

// Put frames payload with its Git wire header, zlib-compresses it, and
// stores it as a loose object for id.
func Put(adapter blob.Adapter, prefix string, id object.ID, objType object.Type, payload []byte) error {
	wire, err := object.FrameHeader(objType, payload)
	if err != nil {
		return err
	}
	return adapter.Put(Key(prefix, id), zlibcodec.Compress(wire))
}
