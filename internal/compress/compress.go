package compress

import "fmt"

// Compress encodes payloads before they reach the byte cache and
// decodes them on the way back out.
type Compress interface {
	Encode(data []byte) ([]byte, error)
	Decode(data []byte) ([]byte, error)
}

// Codec names recorded on cache entries so payloads written by one
// configuration stay readable under another.
const (
	CodecNop    = "nop"
	CodecGZip   = "gzip"
	CodecZstd   = "zstd"
	CodecLZ4    = "lz4"
	CodecBrotli = "brotli"
)

// ForCodec returns the compressor registered under the given name.
func ForCodec(name string) (Compress, error) {
	switch name {
	case CodecNop, "":
		return NewNop(), nil
	case CodecGZip:
		return NewGZip(), nil
	case CodecZstd:
		return NewZstd(), nil
	case CodecLZ4:
		return NewLZ4(), nil
	case CodecBrotli:
		return NewBrotli(), nil
	default:
		return nil, fmt.Errorf("unknown compression codec %q", name)
	}
}
