package dicom

import (
	"encoding/binary"
	"fmt"
	"io"
)

// elementReader wraps an io.Reader with helpers for reading tags, lengths
// and value fields from a little-endian element stream.
type elementReader struct {
	r io.Reader
}

func newElementReader(r io.Reader) *elementReader {
	return &elementReader{r: r}
}

// Tag reads a (group, element) pair and packs it as group<<16 | element.
func (er *elementReader) Tag() (uint32, error) {
	group, err := er.UInt16()
	if err != nil {
		return 0, err
	}
	element, err := er.UInt16()
	if err != nil {
		return 0, err
	}
	return uint32(group)<<16 | uint32(element), nil
}

func (er *elementReader) UInt16() (uint16, error) {
	var v uint16
	err := binary.Read(er.r, binary.LittleEndian, &v)
	return v, err
}

func (er *elementReader) UInt32() (uint32, error) {
	var v uint32
	err := binary.Read(er.r, binary.LittleEndian, &v)
	return v, err
}

// Bytes reads exactly n bytes from the stream.
func (er *elementReader) Bytes(n int) ([]byte, error) {
	b := make([]byte, n)
	got, err := io.ReadFull(er.r, b)
	if err != nil {
		return nil, fmt.Errorf("expected %d value bytes, got %d: %w", n, got, err)
	}
	return b, nil
}

// Skip discards n bytes from the stream.
func (er *elementReader) Skip(n int) error {
	_, err := io.CopyN(io.Discard, er.r, int64(n))
	return err
}
