package x86

import (
	"fmt"
	"strings"

	"golang.org/x/arch/x86/x86asm"
)

// Disassemble renders code one instruction per line as
// "0xOFFS: <hex bytes> <instruction>".
func Disassemble(code []byte) string {
	var sb strings.Builder
	offset := 0
	for offset < len(code) {
		inst, err := x86asm.Decode(code[offset:], 64)
		if err != nil {
			sb.WriteString(fmt.Sprintf("0x%04x: db 0x%02x\n", offset, code[offset]))
			offset++
			continue
		}
		var hexBytes []string
		for i := 0; i < inst.Len; i++ {
			hexBytes = append(hexBytes, fmt.Sprintf("%02x", code[offset+i]))
		}
		sb.WriteString(fmt.Sprintf(
			"0x%04x: %-24s %s\n",
			offset,
			strings.Join(hexBytes, " "),
			x86asm.IntelSyntax(inst, uint64(offset), nil),
		))
		offset += inst.Len
	}
	return sb.String()
}

// CountInstructions decodes code and returns the number of instructions, or
// an error at the first undecodable byte.
func CountInstructions(code []byte) (int, error) {
	n := 0
	for offset := 0; offset < len(code); n++ {
		inst, err := x86asm.Decode(code[offset:], 64)
		if err != nil {
			return n, fmt.Errorf("offset 0x%x: %w", offset, err)
		}
		offset += inst.Len
	}
	return n, nil
}
