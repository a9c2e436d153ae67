package compress

import (
	"github.com/klauspost/compress/zstd"
)

type Zstd struct {
}

func NewZstd() Zstd {
	return Zstd{}
}

func (z Zstd) Encode(data []byte) ([]byte, error) {
	w, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	out := w.EncodeAll(data, nil)

	err = w.Close()
	if err != nil {
		return nil, err
	}

	return out, nil
}

func (z Zstd) Decode(data []byte) ([]byte, error) {
	r, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return r.DecodeAll(data, nil)
}
