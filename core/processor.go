package core

import (
	"fmt"
	"io"
)

// ProcessorConfig configures a Processor at construction time.
type ProcessorConfig struct {
	MemoryBase uint32
	MemorySize uint32
	MaxCycles  uint64
	TimeScale  uint64
	Mtvec      uint32
	EntryPoint uint32

	// ForwardingEnabled is accepted but has no effect: the facade does
	// not implement EX->EX/MEM->EX forwarding and relies on stalling
	// to resolve RAW hazards instead.
	ForwardingEnabled bool

	UARTEnabled  bool
	UARTOutput   io.Writer
	CLINTEnabled bool
}

// RunResult reports the outcome of one Execute call: every retired
// instruction in program order, the cycle count, the stall/bubble/flush
// counters, and the derived CPI/IPC.
type RunResult struct {
	Retired     []Instruction
	TotalCycles uint64
	StallCount  uint64
	BubbleCount uint64
	FlushCount  uint64
	CPI         float64
	IPC         float64
	Halted      bool
}

// Processor composes the register file, memory, CSR bank, trap
// controller, and pipeline into the top-level simulated machine.
type Processor struct {
	cfg  ProcessorConfig
	Regs *RegisterFile
	Mem  *Memory
	CSR  *CSRBank
	Trap *TrapController
	pipe *Pipeline
}

const (
	defaultMemorySize = 1 << 20 // 1 MiB
	defaultMaxCycles  = 1_000_000
)

// NewProcessor constructs a Processor from cfg, filling in sane defaults
// for any zero-valued knob.
func NewProcessor(cfg ProcessorConfig) *Processor {
	if cfg.MemorySize == 0 {
		cfg.MemorySize = defaultMemorySize
	}
	if cfg.MaxCycles == 0 {
		cfg.MaxCycles = defaultMaxCycles
	}
	if cfg.TimeScale == 0 {
		cfg.TimeScale = 1
	}

	p := &Processor{cfg: cfg}
	p.rebuild()
	return p
}

func (p *Processor) rebuild() {
	p.Regs = NewRegisterFile()
	p.Mem = NewMemory(p.cfg.MemoryBase, p.cfg.MemorySize)
	p.CSR = NewCSRBank()
	if p.cfg.Mtvec != 0 {
		p.CSR.Write(CSRMtvec, p.cfg.Mtvec)
	}
	p.Trap = NewTrapController(p.CSR)
	if p.cfg.CLINTEnabled {
		p.Mem.CLINT = NewCLINT(p.Trap.Interrupt, p.cfg.TimeScale)
	}
	if p.cfg.UARTEnabled {
		out := p.cfg.UARTOutput
		if out == nil {
			out = io.Discard
		}
		p.Mem.UART = NewUART(out)
	}
	p.pipe = nil
}

// InitializeRegisters writes the given index->value pairs into the
// register file before execution.
func (p *Processor) InitializeRegisters(values map[int]uint32) {
	for i, v := range values {
		p.Regs.Write(i, v)
	}
}

// InitializeMemory writes the given word-aligned address->value pairs into
// the backing store before execution.
func (p *Processor) InitializeMemory(values map[uint32]uint32) {
	for addr, v := range values {
		_ = p.Mem.WriteWord(addr, v)
	}
}

// Execute runs program to completion, to a halt, or to the configured
// cycle ceiling, and reports retirement statistics. Only a programmer-
// error at construction (here: an entry point below the memory base, or a
// program that would run past the end of the backing store) surfaces as a
// Go error; every guest-visible fault is
// delivered as an architectural trap instead.
func (p *Processor) Execute(program []Instruction) (RunResult, error) {
	entry := p.cfg.EntryPoint
	if entry < p.cfg.MemoryBase {
		return RunResult{}, fmt.Errorf("entry point 0x%08X is below memory base 0x%08X", entry, p.cfg.MemoryBase)
	}
	span := uint64(len(program)) * 4
	if uint64(entry)+span > uint64(p.cfg.MemoryBase)+uint64(p.cfg.MemorySize) {
		return RunResult{}, fmt.Errorf("program of %d instructions at entry 0x%08X runs past end of %d-byte memory", len(program), entry, p.cfg.MemorySize)
	}

	p.pipe = NewPipeline(p.Regs, p.Mem, p.CSR, p.Trap, program, entry)

	for p.pipe.Cycles < p.cfg.MaxCycles {
		if p.pipe.Complete() {
			break
		}
		if p.pipe.Halted && p.pipe.Drained() {
			break
		}
		p.pipe.Step()
	}

	retired := p.pipe.Retired
	cycles := p.pipe.Cycles
	var cpi, ipc float64
	if len(retired) > 0 {
		cpi = float64(cycles) / float64(len(retired))
		ipc = float64(len(retired)) / float64(cycles)
	}

	return RunResult{
		Retired:     retired,
		TotalCycles: cycles,
		StallCount:  p.pipe.StallCount,
		BubbleCount: p.pipe.BubbleCount,
		FlushCount:  p.pipe.FlushCount,
		CPI:         cpi,
		IPC:         ipc,
		Halted:      p.pipe.Halted,
	}, nil
}

// GetRegister returns the current value of register i.
func (p *Processor) GetRegister(i int) uint32 {
	return p.Regs.Read(i)
}

// GetMemoryWord reads a word from the backing store, failing on
// misalignment or out-of-bounds access.
func (p *Processor) GetMemoryWord(addr uint32) (uint32, error) {
	return p.Mem.ReadWord(addr)
}

// Reset restores the processor to its freshly-constructed state: all
// registers, memory, CSRs, and peripherals are recreated from cfg.
func (p *Processor) Reset() {
	p.rebuild()
}
