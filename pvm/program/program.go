package program

import (
	"errors"
	"fmt"
)

var ErrMalformedProgram = errors.New("malformed program blob")

// Program is the decoded core part of a PVM blob: jump table J, code and the
// instruction-start bitmask K (one entry per code byte).
type Program struct {
	JSize uint64
	Z     uint8
	CSize uint64
	J     []uint32
	Code  []byte
	K     []byte
}

// DecodeCorePart decodes E(|j|) ++ E_1(z) ++ E(|c|) ++ E_z(j) ++ c ++ k.
func DecodeCorePart(p []byte) (*Program, error) {
	jSize, n := DecodeE(p)
	if n == 0 {
		return nil, fmt.Errorf("%w: jump table size", ErrMalformedProgram)
	}
	p = p[n:]
	z, n := DecodeE(p)
	if n == 0 || z > 4 || (z == 0 && jSize > 0) {
		return nil, fmt.Errorf("%w: jump table entry size %d", ErrMalformedProgram, z)
	}
	p = p[n:]
	cSize, n := DecodeE(p)
	if n == 0 {
		return nil, fmt.Errorf("%w: code size", ErrMalformedProgram)
	}
	p = p[n:]

	jLen := jSize * z
	kLen := (cSize + 7) / 8
	if uint64(len(p)) < jLen+cSize+kLen {
		return nil, fmt.Errorf("%w: need %d bytes after header, have %d", ErrMalformedProgram, jLen+cSize+kLen, len(p))
	}

	j := make([]uint32, 0, jSize)
	for i := uint64(0); i < jLen; i += z {
		j = append(j, uint32(DecodeE_l(p[i:i+z])))
	}
	code := p[jLen : jLen+cSize]
	return &Program{
		JSize: jSize,
		Z:     uint8(z),
		CSize: cSize,
		J:     j,
		Code:  code,
		K:     expandBits(p[jLen+cSize:jLen+cSize+kLen], uint32(cSize)),
	}, nil
}

// Encode is the inverse of DecodeCorePart.
func (p *Program) Encode() []byte {
	z := uint64(p.Z)
	if z == 0 {
		z = 1
	}
	out := E(uint64(len(p.J)))
	out = append(out, E(z)...)
	out = append(out, E(uint64(len(p.Code)))...)
	for _, j := range p.J {
		out = append(out, E_l(uint64(j), uint32(z))...)
	}
	out = append(out, p.Code...)
	return append(out, packBits(p.K)...)
}

func expandBits(kBytes []byte, cSize uint32) []byte {
	k := make([]byte, cSize)
	for i := range k {
		k[i] = (kBytes[i/8] >> (i % 8)) & 1
	}
	return k
}

func packBits(k []byte) []byte {
	out := make([]byte, (len(k)+7)/8)
	for i, b := range k {
		if b&1 == 1 {
			out[i/8] |= 1 << (i % 8)
		}
	}
	return out
}
