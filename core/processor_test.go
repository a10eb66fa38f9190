package core

import "testing"

func TestNewProcessorFillsDefaults(t *testing.T) {
	p := NewProcessor(ProcessorConfig{})
	if p.cfg.MemorySize != defaultMemorySize {
		t.Errorf("MemorySize = %d, want %d", p.cfg.MemorySize, defaultMemorySize)
	}
	if p.cfg.MaxCycles != defaultMaxCycles {
		t.Errorf("MaxCycles = %d, want %d", p.cfg.MaxCycles, defaultMaxCycles)
	}
	if p.cfg.TimeScale != 1 {
		t.Errorf("TimeScale = %d, want 1", p.cfg.TimeScale)
	}
}

func TestProcessorInitializeRegistersAndMemory(t *testing.T) {
	p := NewProcessor(ProcessorConfig{MemoryBase: 0x1000, MemorySize: 256})
	p.InitializeRegisters(map[int]uint32{1: 42, 2: 7})
	p.InitializeMemory(map[uint32]uint32{0x1000: 0xCAFEBABE})

	if got := p.GetRegister(1); got != 42 {
		t.Errorf("R1 = %d, want 42", got)
	}
	if got := p.GetRegister(2); got != 7 {
		t.Errorf("R2 = %d, want 7", got)
	}
	v, err := p.GetMemoryWord(0x1000)
	if err != nil || v != 0xCAFEBABE {
		t.Errorf("GetMemoryWord = (0x%X, %v), want (0xCAFEBABE, nil)", v, err)
	}
}

func TestProcessorExecuteRunsProgramToCompletion(t *testing.T) {
	p := NewProcessor(ProcessorConfig{MemoryBase: 0, MemorySize: 256, EntryPoint: 0})
	program := []Instruction{
		NewInstruction(InstructionSpec{Op: OpADDI, Dest: 1, Src: []int{0}, Imm: 5, HasImm: true}),
		NewInstruction(InstructionSpec{Op: OpADDI, Dest: 2, Src: []int{1}, Imm: 3, HasImm: true}),
	}
	result, err := p.Execute(program)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(result.Retired) != 2 {
		t.Errorf("retired = %d, want 2", len(result.Retired))
	}
	if p.GetRegister(2) != 8 {
		t.Errorf("R2 = %d, want 8", p.GetRegister(2))
	}
	if result.IPC <= 0 {
		t.Errorf("IPC = %f, want > 0", result.IPC)
	}
}

func TestProcessorExecuteRejectsEntryBelowMemoryBase(t *testing.T) {
	p := NewProcessor(ProcessorConfig{MemoryBase: 0x1000, MemorySize: 256, EntryPoint: 0x500})
	_, err := p.Execute([]Instruction{NewInstruction(InstructionSpec{Op: OpADD, Dest: 1})})
	if err == nil {
		t.Fatal("expected an error for entry point below memory base")
	}
}

func TestProcessorExecuteRejectsOversizedProgram(t *testing.T) {
	p := NewProcessor(ProcessorConfig{MemoryBase: 0, MemorySize: 8, EntryPoint: 0})
	program := make([]Instruction, 10)
	for i := range program {
		program[i] = NewInstruction(InstructionSpec{Op: OpADD, Dest: 1})
	}
	_, err := p.Execute(program)
	if err == nil {
		t.Fatal("expected an error for a program that runs past the end of memory")
	}
}

func TestProcessorReset(t *testing.T) {
	p := NewProcessor(ProcessorConfig{MemoryBase: 0, MemorySize: 256, EntryPoint: 0})
	p.InitializeRegisters(map[int]uint32{1: 99})
	p.Reset()
	if got := p.GetRegister(1); got != 0 {
		t.Errorf("R1 after Reset = %d, want 0", got)
	}
}

func TestProcessorCLINTAndUARTWiring(t *testing.T) {
	var buf []byte
	w := writerFunc(func(p []byte) (int, error) {
		buf = append(buf, p...)
		return len(p), nil
	})
	p := NewProcessor(ProcessorConfig{
		MemoryBase: 0, MemorySize: 256, EntryPoint: 0,
		CLINTEnabled: true, UARTEnabled: true, UARTOutput: w,
	})
	if p.Mem.CLINT == nil {
		t.Error("expected CLINT to be wired onto memory")
	}
	if p.Mem.UART == nil {
		t.Error("expected UART to be wired onto memory")
	}
}

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }
