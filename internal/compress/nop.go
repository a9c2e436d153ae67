package compress

// Nop passes payloads through untouched. Useful when the cache should
// hold sources verbatim, and as the fallback for unnamed codecs.
type Nop struct {
}

func NewNop() Nop {
	return Nop{}
}

func (n Nop) Encode(data []byte) ([]byte, error) {
	return data, nil
}

func (n Nop) Decode(data []byte) ([]byte, error) {
	return data, nil
}
