package packfile

import (
	"testing"

	"github.com/ahmetskilinc/gitbruv/object"
	"github.com/ahmetskilinc/gitbruv/zlibcodec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadEntryNonDeltaBlob(t *testing.T) {
	body := zlibcodec.Compress([]byte("abc"))
	pack := append([]byte{0x33}, body...) // type=blob(3), size=3, no continuation
	typ, payload, err := ReadEntry(pack, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, object.TypeBlob, typ)
	assert.Equal(t, "abc", string(payload))
}

func TestReadEntryOfsDelta(t *testing.T) {
	baseBody := zlibcodec.Compress([]byte("abc"))
	baseEntry := append([]byte{0x33}, baseBody...)

	delta := []byte{
		0x03,                // base length varint: 3
		0x06,                // result length varint: 6
		0x03, 'X', 'Y', 'Z', // insert "XYZ"
		0x90, 0x03, // copy offset=0, length=3
	}
	deltaBody := zlibcodec.Compress(delta)

	// type=ofs-delta(6), size=len(delta)=8 -- the header's declared
	// size is the length of the delta instruction stream itself, NOT
	// of the reconstructed "XYZabc" (len 6) it expands to. Deliberately
	// different from the result length so a test that accidentally
	// checked the wrong thing would fail here.
	deltaHeader := []byte{0x68}
	deltaOffset := []byte{byte(len(baseEntry))} // 0x81, 0x00 pattern not needed: offset fits in one byte here if <128

	pack := append([]byte{}, baseEntry...)
	deltaStart := len(pack)
	pack = append(pack, deltaHeader...)
	pack = append(pack, deltaOffset...)
	pack = append(pack, deltaBody...)

	typ, payload, err := ReadEntry(pack, nil, int64(deltaStart))
	require.NoError(t, err)
	assert.Equal(t, object.TypeBlob, typ)
	assert.Equal(t, "XYZabc", string(payload))
}

func TestReadEntryUnknownTypeRejected(t *testing.T) {
	pack := []byte{0x00} // type=0 (unknown), size=0
	_, _, err := ReadEntry(pack, nil, 0)
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestReadEntryHeaderMultiByteSize(t *testing.T) {
	// size = 200: low nibble 0x8 with continuation bit set, then
	// remaining 7 bits of (200>>4)=12 -> 0x0C.
	body := make([]byte, 200)
	for i := range body {
		body[i] = byte(i)
	}
	compressed := zlibcodec.Compress(body)
	header := []byte{0x38 | 0x80, 0x0C} // type=blob(3), low nibble 8, continuation
	pack := append(header, compressed...)
	typ, payload, err := ReadEntry(pack, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, object.TypeBlob, typ)
	assert.Equal(t, body, payload)
}
