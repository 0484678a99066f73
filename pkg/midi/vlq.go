package midi

import (
	"fmt"
	"io"
)

// maxVarQuantity is the largest value a variable-length quantity can carry:
// four bytes of seven payload bits each.
const maxVarQuantity = 1<<28 - 1

// readVarQuantity reads a variable-length quantity: 7 bits per byte, most
// significant first, high bit set on every byte but the last. It returns the
// value and the number of bytes consumed.
func readVarQuantity(r io.ByteReader) (uint32, int, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %s", ErrTruncated, err)
	}
	return readVarQuantityAfter(b, r)
}

// readVarQuantityAfter continues a variable-length quantity whose first byte
// has already been consumed by the caller's dispatch.
func readVarQuantityAfter(first byte, r io.ByteReader) (uint32, int, error) {
	val := uint32(first & 0x7F)
	n := 1

	b := first
	for b&0x80 != 0 {
		if n == 4 {
			return 0, n, fmt.Errorf("%w: no terminator within 4 bytes", ErrQuantityTooLarge)
		}

		var err error
		b, err = r.ReadByte()
		if err != nil {
			return 0, n, fmt.Errorf("%w: %s", ErrTruncated, err)
		}
		val = val<<7 | uint32(b&0x7F)
		n++
	}

	return val, n, nil
}

// appendVarQuantity appends the minimal encoding of v to dst.
func appendVarQuantity(dst []byte, v uint32) ([]byte, error) {
	if v > maxVarQuantity {
		return dst, fmt.Errorf("%w: %#x exceeds 28 bits", ErrQuantityTooLarge, v)
	}

	var buf [4]byte
	i := 3
	buf[i] = byte(v & 0x7F)
	for v >>= 7; v != 0; v >>= 7 {
		i--
		buf[i] = byte(v&0x7F) | 0x80
	}

	return append(dst, buf[i:]...), nil
}
