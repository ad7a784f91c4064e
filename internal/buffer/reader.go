package buffer

import "encoding/binary"

// Reader reads fixed-width fields from a byte slice without running past its end.
// Every read reports ok=false instead of panicking when the data is too short,
// and a failed read does not move the position.
type Reader struct {
	data []byte
	pos  int
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

func (r *Reader) Length() int {
	return len(r.data)
}

func (r *Reader) Position() int {
	return r.pos
}

func (r *Reader) BytesLeft() int {
	if r.pos >= len(r.data) {
		return 0
	}
	return len(r.data) - r.pos
}

// SetPosition moves to an absolute offset, which may equal the length.
func (r *Reader) SetPosition(pos int) bool {
	if pos < 0 || pos > len(r.data) {
		return false
	}
	r.pos = pos
	return true
}

func (r *Reader) Skip(n int) bool {
	if n < 0 || n > r.BytesLeft() {
		return false
	}
	r.pos += n
	return true
}

func (r *Reader) ReadByteValue() (byte, bool) {
	if r.BytesLeft() < 1 {
		return 0, false
	}
	b := r.data[r.pos]
	r.pos++
	return b, true
}

// ReadBytes returns the next n bytes. The slice aliases the underlying data.
func (r *Reader) ReadBytes(n int) ([]byte, bool) {
	if n < 0 || n > r.BytesLeft() {
		return nil, false
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, true
}

// ReadBothUInt16 reads an ISO 9660 both-byte-order field (LE then BE) and returns the LE half.
func (r *Reader) ReadBothUInt16() (uint16, bool) {
	b, ok := r.ReadBytes(4)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint16(b[0:2]), true
}

// ReadBothUInt32 reads an ISO 9660 both-byte-order field (LE then BE) and returns the LE half.
func (r *Reader) ReadBothUInt32() (uint32, bool) {
	b, ok := r.ReadBytes(8)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint32(b[0:4]), true
}
