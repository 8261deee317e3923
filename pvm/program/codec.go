package program

// E_l encodes x as l little-endian bytes.
func E_l(x uint64, l uint32) []byte {
	out := make([]byte, l)
	for i := range out {
		out[i] = byte(x)
		x >>= 8
	}
	return out
}

// DecodeE_l is the inverse of E_l for len(encoded) bytes.
func DecodeE_l(encoded []byte) uint64 {
	var x uint64
	for i := len(encoded) - 1; i >= 0; i-- {
		x = x<<8 | uint64(encoded[i])
	}
	return x
}

// E is the variable length natural number encoding used by program blobs.
func E(x uint64) []byte {
	for l := uint32(0); l < 8; l++ {
		if x < uint64(1)<<(7*(l+1)) {
			prefix := byte(256 - (1 << (8 - l)) + int(x>>(8*l)))
			return append([]byte{prefix}, E_l(x, l)...)
		}
	}
	return append([]byte{0xff}, E_l(x, 8)...)
}

// DecodeE returns the decoded value and the number of bytes consumed. It
// returns (0, 0) when encoded is truncated.
func DecodeE(encoded []byte) (uint64, uint32) {
	if len(encoded) == 0 {
		return 0, 0
	}
	first := encoded[0]
	if first == 0xff {
		if len(encoded) < 9 {
			return 0, 0
		}
		return DecodeE_l(encoded[1:9]), 9
	}
	l := uint32(0)
	for l < 8 && first&(0x80>>l) != 0 {
		l++
	}
	if uint32(len(encoded)) < 1+l {
		return 0, 0
	}
	high := uint64(first) & (uint64(1)<<(7-l) - 1)
	return high<<(8*l) | DecodeE_l(encoded[1:1+l]), l + 1
}

// XEncode sign-extends the n byte value x to 64 bits.
func XEncode(x uint64, n uint32) uint64 {
	if n == 0 || n > 8 {
		return 0
	}
	if n == 8 {
		return x
	}
	q := x >> (8*n - 1)
	mask := (uint64(1) << (8 * n)) - 1
	return x + q*^mask
}

// ZEncode reinterprets the n byte value a as a signed integer.
func ZEncode(a uint64, n uint32) int64 {
	if n == 0 || n > 8 {
		return 0
	}
	shift := 64 - 8*n
	return int64(a<<shift) >> shift
}
