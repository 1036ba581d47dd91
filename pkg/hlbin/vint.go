// Package hlbin serializes a module to its on-wire binary form and reads
// it back (spec §4.6, §6.1), including the custom signed variable-length
// integer encoding used for every index in the format.
package hlbin

import "fmt"

// maxVintMagnitude is the first magnitude vint cannot represent (spec
// §4.6: "Magnitudes ≥ 0x20000000 are unrepresentable and are a writer
// error").
const maxVintMagnitude = 0x20000000

// Overflow is a writer-time error: a value too large for its wire
// encoding (spec §7, error kind 4).
type Overflow struct {
	What  string
	Value int64
}

func (e *Overflow) Error() string {
	return fmt.Sprintf("writer overflow: %s (%d) does not fit its wire encoding", e.What, e.Value)
}

// encodeVint renders i in the 1/2/4-byte signed form of spec §4.6.
func encodeVint(i int64) ([]byte, error) {
	if i >= 0 {
		switch {
		case i < 0x80:
			return []byte{byte(i)}, nil
		case i < 0x2000:
			return []byte{byte((i >> 8) | 0x80), byte(i & 0xFF)}, nil
		case i < maxVintMagnitude:
			return []byte{byte((i >> 24) | 0xC0), byte((i >> 16) & 0xFF), byte((i >> 8) & 0xFF), byte(i & 0xFF)}, nil
		default:
			return nil, &Overflow{What: "vint", Value: i}
		}
	}
	abs := -i
	switch {
	case abs < 0x2000:
		return []byte{byte((abs >> 8) | 0xA0), byte(abs & 0xFF)}, nil
	case abs < maxVintMagnitude:
		return []byte{byte((abs >> 24) | 0xE0), byte((abs >> 16) & 0xFF), byte((abs >> 8) & 0xFF), byte(abs & 0xFF)}, nil
	default:
		return nil, &Overflow{What: "vint", Value: i}
	}
}

// decodeVint reads one vint starting at data[0], returning its value and
// the number of bytes consumed.
func decodeVint(data []byte) (int64, int, error) {
	if len(data) == 0 {
		return 0, 0, fmt.Errorf("vint: unexpected end of input")
	}
	b0 := data[0]
	if b0&0x80 == 0 {
		return int64(b0), 1, nil
	}
	switch b0 & 0xE0 {
	case 0x80: // positive, 2-byte
		if len(data) < 2 {
			return 0, 0, fmt.Errorf("vint: truncated 2-byte positive form")
		}
		return (int64(b0&0x1F) << 8) | int64(data[1]), 2, nil
	case 0xA0: // negative, 2-byte
		if len(data) < 2 {
			return 0, 0, fmt.Errorf("vint: truncated 2-byte negative form")
		}
		abs := (int64(b0&0x1F) << 8) | int64(data[1])
		return -abs, 2, nil
	case 0xC0: // positive, 4-byte
		if len(data) < 4 {
			return 0, 0, fmt.Errorf("vint: truncated 4-byte positive form")
		}
		v := (int64(b0&0x1F) << 24) | (int64(data[1]) << 16) | (int64(data[2]) << 8) | int64(data[3])
		return v, 4, nil
	case 0xE0: // negative, 4-byte
		if len(data) < 4 {
			return 0, 0, fmt.Errorf("vint: truncated 4-byte negative form")
		}
		abs := (int64(b0&0x1F) << 24) | (int64(data[1]) << 16) | (int64(data[2]) << 8) | int64(data[3])
		return -abs, 4, nil
	default:
		return 0, 0, fmt.Errorf("vint: unrecognized lead byte 0x%02x", b0)
	}
}
