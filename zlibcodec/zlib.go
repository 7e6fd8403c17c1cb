// Package zlibcodec decompresses and compresses the DEFLATE streams
// that frame loose objects and pack entries.  It uses klauspost/compress,
// the same zlib implementation the rest of the retrieval corpus reaches
// for, rather than the standard library's compress/zlib.
package zlibcodec

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/zlib"
)

// Decompress consumes a prefix of data that constitutes one valid zlib
// stream and returns its decompressed contents.  Bytes in data beyond
// the end of the stream are ignored: pack entries are packed back to
// back, so the caller only knows where the next entry starts once this
// stream has been fully consumed by the zlib reader itself.  It reports
// ok == false if data does not begin with a valid zlib stream.
func Decompress(data []byte) (out []byte, ok bool) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, false
	}
	defer zr.Close()
	out, err = io.ReadAll(zr)
	if err != nil {
		return nil, false
	}
	return out, true
}

// Compress returns the standard zlib compression (default level) of
// data.
func Compress(data []byte) []byte {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	w.Write(data)
	w.Close()
	return buf.Bytes()
}
