package program

// NumRegisters is the size of the PVM register file.
const NumRegisters = 13

// ProgramStats contains statistics about a PVM program
type ProgramStats struct {
	InstructionCount   int
	BasicBlockCount    int
	MaxBlockLength     int
	OpcodeDistribution map[byte]int
	// RegisterReads and RegisterWrites count operand roles per guest register.
	RegisterReads  [NumRegisters]int
	RegisterWrites [NumRegisters]int
}

// Analyze decodes the program and gathers instruction, block and register statistics.
func (p *Program) Analyze() (*ProgramStats, error) {
	stats := &ProgramStats{
		OpcodeDistribution: make(map[byte]int),
	}
	blocks, err := p.BasicBlocks()
	if err != nil {
		return nil, err
	}
	stats.BasicBlockCount = len(blocks)
	for _, block := range blocks {
		stats.MaxBlockLength = max(stats.MaxBlockLength, len(block))
		for _, inst := range block {
			stats.InstructionCount++
			stats.OpcodeDistribution[inst.Opcode]++
			for _, r := range inst.SourceRegs {
				stats.RegisterReads[r]++
			}
			for _, r := range inst.DestRegs {
				stats.RegisterWrites[r]++
			}
		}
	}
	return stats, nil
}

// CountInstructions returns the total number of PVM instructions in the program
func (p *Program) CountInstructions() int {
	count := 0
	for i := 0; i < len(p.K); i++ {
		if p.K[i]&1 == 1 {
			count++
		}
	}
	return count
}
