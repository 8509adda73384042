package codec

import (
	"encoding/binary"

	"github.com/attestgate/attestgate/qvl/errs"
)

// reader is a small bounds-checked little-endian cursor over a quote's
// byte slice. All multi-byte integers in TDX/SGX/SEV-SNP structures are
// little-endian per the vendor specs.
type reader struct {
	buf []byte
	pos int
}

func newReader(buf []byte) *reader { return &reader{buf: buf} }

func (r *reader) need(n int) error {
	if r.pos+n > len(r.buf) {
		return errs.New(errs.TruncatedInput, "unexpected end of input")
	}
	return nil
}

func (r *reader) bytes(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) array16(dst []byte) error {
	b, err := r.bytes(len(dst))
	if err != nil {
		return err
	}
	copy(dst, b)
	return nil
}

func (r *reader) u16() (uint16, error) {
	b, err := r.bytes(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *reader) u32() (uint32, error) {
	b, err := r.bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}
