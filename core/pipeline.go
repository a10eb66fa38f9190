package core

// Pipeline drives the five-stage fetch/decode/execute/memory/writeback
// engine one cycle at a time. Each call to Step visits the stages in
// W -> M -> E -> D -> F order, the reverse of data flow, so every stage
// observes the latch contents produced by the PREVIOUS cycle rather than
// the ones being produced this cycle.
type Pipeline struct {
	Regs *RegisterFile
	Mem  *Memory
	CSR  *CSRBank
	Trap *TrapController

	prog              map[uint32]Instruction
	TotalInstructions int

	FD, DE, EM, MW Instruction

	Halted bool

	Retired     []Instruction
	Cycles      uint64
	StallCount  uint64
	BubbleCount uint64
	FlushCount  uint64
}

// NewPipeline returns a pipeline over program, fetching from entry. program
// instructions are assigned sequential addresses starting at entry,
// matching the out-of-scope decoder/loader's convention of laying
// instructions out contiguously.
func NewPipeline(regs *RegisterFile, mem *Memory, csr *CSRBank, trap *TrapController, program []Instruction, entry uint32) *Pipeline {
	prog := make(map[uint32]Instruction, len(program))
	addr := entry
	for _, inst := range program {
		inst.PC = addr
		prog[addr] = inst
		addr += 4
	}
	regs.SetPC(entry)
	regs.SetNextPC(entry)
	return &Pipeline{
		Regs:              regs,
		Mem:               mem,
		CSR:               csr,
		Trap:              trap,
		prog:              prog,
		TotalInstructions: len(program),
		FD:                NewBubble(),
		DE:                NewBubble(),
		EM:                NewBubble(),
		MW:                NewBubble(),
	}
}

// Drained reports whether every latch currently holds a bubble.
func (p *Pipeline) Drained() bool {
	return p.FD.IsBubble && p.DE.IsBubble && p.EM.IsBubble && p.MW.IsBubble
}

// Complete reports whether every supplied instruction has retired and the
// pipeline has drained.
func (p *Pipeline) Complete() bool {
	return len(p.Retired) >= p.TotalInstructions && p.Drained()
}

// Step advances the pipeline by exactly one cycle.
func (p *Pipeline) Step() {
	if p.Mem.CLINT != nil {
		p.Mem.CLINT.Tick(1)
	}

	p.writeback(p.MW)

	mwNext, memFlush, memTarget := p.memoryStage(p.EM)

	flush, target := memFlush, memTarget
	if memFlush {
		p.BubbleCount++
	}

	var emNext Instruction
	if memFlush {
		emNext = NewBubble()
	} else {
		var exFlush bool
		var exTarget uint32
		emNext, exFlush, exTarget = p.executeStage(p.DE)
		if exFlush {
			flush, target = true, exTarget
			p.BubbleCount++
		}
	}

	// Hazard check compares against the latch contents as they stood at
	// the top of this cycle (before this cycle's E/M processing moved
	// them forward), matching "the instruction currently in E and M".
	deProducerE := p.DE
	deProducerM := p.EM

	var deNext Instruction
	stalled := false
	switch {
	case flush:
		deNext = NewBubble()
	case p.FD.IsBubble:
		deNext = NewBubble()
	case hazard(p.FD, deProducerE) || hazard(p.FD, deProducerM):
		deNext = NewBubble()
		stalled = true
	default:
		cand := p.FD
		cand.SrcValues[0] = p.Regs.Read(cand.Src[0])
		if cand.NumSrc > 1 {
			cand.SrcValues[1] = p.Regs.Read(cand.Src[1])
		}
		deNext = cand
	}

	var fdNext Instruction
	switch {
	case flush:
		fdNext = p.fetchAt(target)
		p.FlushCount++
	default:
		if rec, fired := p.Trap.CheckPendingInterrupts(p.Regs.NextPC()); fired {
			deNext = NewBubble()
			p.BubbleCount++
			fdNext = p.fetchAt(rec.HandlerPC)
			p.FlushCount++
		} else if stalled {
			fdNext = p.FD
			p.StallCount++
			p.BubbleCount++
		} else {
			fdNext = p.fetchSequential()
		}
	}

	p.MW, p.EM, p.DE, p.FD = mwNext, emNext, deNext, fdNext

	p.CSR.IncrementCycle()
	p.Cycles++
}

// hazard reports whether consumer reads a register that producer (the
// occupant currently in E or M) will write, per the RAW-only, store-aware
// rule: a bubble or a destination-less producer (branches, stores) never
// stalls a consumer.
func hazard(consumer Instruction, producer Instruction) bool {
	if producer.IsBubble || producer.Dest == NoReg || producer.Op.isStore() {
		return false
	}
	for i := 0; i < consumer.NumSrc; i++ {
		if consumer.Src[i] == producer.Dest {
			return true
		}
	}
	return false
}

func isBranch(op Op) bool {
	switch op {
	case OpBEQ, OpBNE, OpBLT, OpBGE, OpBLTU, OpBGEU:
		return true
	default:
		return false
	}
}

func isValidOp(op Op) bool {
	return op > OpBUBBLE && op <= OpCSRRCI
}

// executeStage evaluates inst and reports whether a flush must be raised
// (taken branch, unconditional jump, MRET, or a system-call/illegal-
// instruction trap), together with the flush target PC.
func (p *Pipeline) executeStage(inst Instruction) (Instruction, bool, uint32) {
	if inst.IsBubble {
		return inst, false, 0
	}
	if !isValidOp(inst.Op) {
		rec := p.Trap.IllegalInstruction(inst.PC, uint32(inst.Op))
		return NewBubble(), true, rec.HandlerPC
	}

	result := Eval(&inst)
	inst.MemAddress = result.MemAddress
	inst.JumpTarget = result.JumpTarget
	inst.Result = result.Outcome

	switch result.Outcome.Kind {
	case OutcomeEcall:
		rec := p.Trap.Ecall(inst.PC)
		return NewBubble(), true, rec.HandlerPC
	case OutcomeEbreak:
		rec := p.Trap.Ebreak(inst.PC)
		return NewBubble(), true, rec.HandlerPC
	case OutcomeMret:
		newPC := p.Trap.MRET()
		return inst, true, newPC
	}

	if result.IsJump {
		return inst, true, result.JumpTarget
	}
	if isBranch(inst.Op) && result.Taken {
		return inst, true, result.JumpTarget
	}
	return inst, false, 0
}

// memoryStage dispatches loads and stores to Mem, raising a flush (via the
// trap controller) on a misaligned-access or out-of-bounds fault.
func (p *Pipeline) memoryStage(inst Instruction) (Instruction, bool, uint32) {
	if inst.IsBubble {
		return inst, false, 0
	}
	switch inst.Op {
	case OpLW:
		v, err := p.Mem.ReadWord(inst.MemAddress)
		if err != nil {
			return p.memFault(inst, err, false)
		}
		inst.Result = ExecuteOutcome{Kind: OutcomeValue, Value: v}
	case OpLH:
		v, err := p.Mem.ReadHalfword(inst.MemAddress, true)
		if err != nil {
			return p.memFault(inst, err, false)
		}
		inst.Result = ExecuteOutcome{Kind: OutcomeValue, Value: v}
	case OpLHU:
		v, err := p.Mem.ReadHalfword(inst.MemAddress, false)
		if err != nil {
			return p.memFault(inst, err, false)
		}
		inst.Result = ExecuteOutcome{Kind: OutcomeValue, Value: v}
	case OpLB:
		v, err := p.Mem.ReadByte(inst.MemAddress, true)
		if err != nil {
			return p.memFault(inst, err, false)
		}
		inst.Result = ExecuteOutcome{Kind: OutcomeValue, Value: v}
	case OpLBU:
		v, err := p.Mem.ReadByte(inst.MemAddress, false)
		if err != nil {
			return p.memFault(inst, err, false)
		}
		inst.Result = ExecuteOutcome{Kind: OutcomeValue, Value: v}
	case OpSW:
		if err := p.Mem.WriteWord(inst.MemAddress, inst.SrcValues[1]); err != nil {
			return p.memFault(inst, err, true)
		}
	case OpSH:
		if err := p.Mem.WriteHalfword(inst.MemAddress, inst.SrcValues[1]); err != nil {
			return p.memFault(inst, err, true)
		}
	case OpSB:
		if err := p.Mem.WriteByte(inst.MemAddress, inst.SrcValues[1]); err != nil {
			return p.memFault(inst, err, true)
		}
	}
	return inst, false, 0
}

func (p *Pipeline) memFault(inst Instruction, err error, isStore bool) (Instruction, bool, uint32) {
	addr := inst.MemAddress
	misaligned := false
	if mf, ok := err.(*MemFault); ok {
		addr = mf.Address
		misaligned = mf.Kind == FaultMisaligned
	}
	var code uint32
	switch {
	case isStore && misaligned:
		code = ExcStoreMisaligned
	case isStore && !misaligned:
		code = ExcStoreAccessFault
	case !isStore && misaligned:
		code = ExcLoadMisaligned
	default:
		code = ExcLoadAccessFault
	}
	rec := p.Trap.TriggerException(code, inst.PC, addr)
	return NewBubble(), true, rec.HandlerPC
}

// writeback commits inst's result: an ordinary value to its destination
// register, or a CSR read-modify-write against the CSR bank with the old
// value delivered to the destination register. Bubbles are not retired.
func (p *Pipeline) writeback(inst Instruction) {
	if inst.IsBubble {
		return
	}

	switch inst.Result.Kind {
	case OutcomeValue:
		if inst.Dest != NoReg {
			p.Regs.Write(inst.Dest, inst.Result.Value)
		}
	case OutcomeCSR:
		old := p.applyCSR(inst)
		if inst.Dest != NoReg {
			p.Regs.Write(inst.Dest, old)
		}
	}

	p.Retired = append(p.Retired, inst)
	p.CSR.IncrementInstret()
}

func (p *Pipeline) applyCSR(inst Instruction) uint32 {
	value := CSRWriteValue(&inst)
	switch inst.Result.CSROp {
	case OpCSRRW, OpCSRRWI:
		return p.CSR.Write(inst.Result.CSRAddr, value)
	case OpCSRRS, OpCSRRSI:
		return p.CSR.SetBits(inst.Result.CSRAddr, value)
	case OpCSRRC, OpCSRRCI:
		return p.CSR.ClearBits(inst.Result.CSRAddr, value)
	default:
		return p.CSR.Read(inst.Result.CSRAddr)
	}
}

// fetchSequential delivers the instruction at the current sequential
// fetch PC, advancing it by 4. Running past the end of the supplied
// program yields a bubble, not a halt.
func (p *Pipeline) fetchSequential() Instruction {
	pc := p.Regs.NextPC()
	inst, ok := p.prog[pc]
	p.Regs.SetPC(pc)
	p.Regs.SetNextPC(pc + 4)
	if !ok {
		return NewBubble()
	}
	inst.PC = pc
	return inst
}

// fetchAt redirects fetch to addr (a flush or trap-handler target). If no
// instruction is mapped there, the core halts: the handler address itself
// cannot be fetched.
func (p *Pipeline) fetchAt(addr uint32) Instruction {
	inst, ok := p.prog[addr]
	p.Regs.SetPC(addr)
	p.Regs.SetNextPC(addr + 4)
	if !ok {
		p.Halted = true
		return NewBubble()
	}
	inst.PC = addr
	return inst
}
