package core

import "testing"

func TestMemoryWordRoundTrip(t *testing.T) {
	m := NewMemory(0x1000, 256)
	if err := m.WriteWord(0x1004, 0xDEADBEEF); err != nil {
		t.Fatalf("WriteWord: %v", err)
	}
	got, err := m.ReadWord(0x1004)
	if err != nil {
		t.Fatalf("ReadWord: %v", err)
	}
	if got != 0xDEADBEEF {
		t.Errorf("ReadWord = 0x%X, want 0xDEADBEEF", got)
	}
}

func TestMemoryHalfwordRoundTrip(t *testing.T) {
	m := NewMemory(0x1000, 256)
	if err := m.WriteHalfword(0x1002, 0xBEEF); err != nil {
		t.Fatalf("WriteHalfword: %v", err)
	}
	got, err := m.ReadHalfword(0x1002, false)
	if err != nil {
		t.Fatalf("ReadHalfword: %v", err)
	}
	if got != 0xBEEF {
		t.Errorf("ReadHalfword = 0x%X, want 0xBEEF", got)
	}
}

func TestMemoryByteSignExtension(t *testing.T) {
	m := NewMemory(0x1000, 256)
	m.WriteByte(0x1000, 0x80)
	signed, _ := m.ReadByte(0x1000, true)
	if signed != 0xFFFFFF80 {
		t.Errorf("signed ReadByte(0x80) = 0x%X, want 0xFFFFFF80", signed)
	}
	unsigned, _ := m.ReadByte(0x1000, false)
	if unsigned != 0x80 {
		t.Errorf("unsigned ReadByte(0x80) = 0x%X, want 0x80", unsigned)
	}
}

func TestMemoryHalfwordSignExtension(t *testing.T) {
	m := NewMemory(0x1000, 256)
	m.WriteHalfword(0x1000, 0x8000)
	signed, _ := m.ReadHalfword(0x1000, true)
	if signed != 0xFFFF8000 {
		t.Errorf("signed ReadHalfword(0x8000) = 0x%X, want 0xFFFF8000", signed)
	}
	unsigned, _ := m.ReadHalfword(0x1000, false)
	if unsigned != 0x8000 {
		t.Errorf("unsigned ReadHalfword(0x8000) = 0x%X, want 0x8000", unsigned)
	}
}

func TestMemoryMisalignedAccessErrors(t *testing.T) {
	m := NewMemory(0x1000, 256)
	if _, err := m.ReadHalfword(0x1001, false); err == nil {
		t.Error("expected misaligned error for halfword read at odd address")
	}
	if _, err := m.ReadWord(0x1002); err == nil {
		t.Error("expected misaligned error for word read not 4-byte aligned")
	}
	_, err := m.ReadWord(0x1001)
	if err == nil {
		t.Fatal("expected error")
	}
	mf, ok := err.(*MemFault)
	if !ok {
		t.Fatalf("error type = %T, want *MemFault", err)
	}
	if mf.Kind != FaultMisaligned {
		t.Errorf("fault kind = %v, want FaultMisaligned", mf.Kind)
	}
}

func TestMemoryOutOfBoundsAccessErrors(t *testing.T) {
	m := NewMemory(0x1000, 16)
	_, err := m.ReadWord(0x2000)
	if err == nil {
		t.Fatal("expected access-fault error for out-of-bounds read")
	}
	mf, ok := err.(*MemFault)
	if !ok || mf.Kind != FaultAccessFault {
		t.Errorf("error = %+v, want a FaultAccessFault MemFault", err)
	}
}

func TestMemoryBelowBaseIsOutOfBounds(t *testing.T) {
	m := NewMemory(0x1000, 16)
	if _, err := m.ReadByte(0x0FFF, false); err == nil {
		t.Error("expected access-fault error for address below memory base")
	}
}

func TestMemoryUARTRoutingPrecedence(t *testing.T) {
	m := NewMemory(0x1000, 16)
	m.UART = NewUART(nil)
	m.UART.Output = discardWriter{}
	if err := m.WriteWord(UARTTxData, 'x'); err != nil {
		t.Fatalf("WriteWord to UART address: %v", err)
	}
	v, err := m.ReadWord(UARTStatus)
	if err != nil {
		t.Fatalf("ReadWord UART status: %v", err)
	}
	if v != uartStatusTxReady {
		t.Errorf("UART status via Memory = 0x%X, want 0x1", v)
	}
}

func TestMemoryCLINTRoutingPrecedence(t *testing.T) {
	m := NewMemory(0x1000, 16)
	csr := NewCSRBank()
	ic := NewInterruptController(csr)
	m.CLINT = NewCLINT(ic, 1)
	if err := m.WriteWord(MTimeCmpBase, 42); err != nil {
		t.Fatalf("WriteWord to CLINT address: %v", err)
	}
	v, err := m.ReadWord(MTimeCmpBase)
	if err != nil {
		t.Fatalf("ReadWord CLINT: %v", err)
	}
	if v != 42 {
		t.Errorf("CLINT mtimecmp-lo via Memory = %d, want 42", v)
	}
}

func TestLoadProgramSuccess(t *testing.T) {
	m := NewMemory(0x1000, 16)
	if err := m.LoadProgram([]byte{1, 2, 3, 4}, 0x1000); err != nil {
		t.Fatalf("LoadProgram: %v", err)
	}
	got, _ := m.ReadWord(0x1000)
	want := uint32(1) | uint32(2)<<8 | uint32(3)<<16 | uint32(4)<<24
	if got != want {
		t.Errorf("loaded word = 0x%X, want 0x%X", got, want)
	}
}

func TestLoadProgramOverflowsMemory(t *testing.T) {
	m := NewMemory(0x1000, 4)
	if err := m.LoadProgram([]byte{1, 2, 3, 4, 5}, 0x1000); err == nil {
		t.Error("expected error when program runs past end of memory")
	}
}

func TestLoadProgramBelowBase(t *testing.T) {
	m := NewMemory(0x1000, 16)
	if err := m.LoadProgram([]byte{1}, 0x0FFF); err == nil {
		t.Error("expected error when start address is below memory base")
	}
}

func TestReadWordLegacySwallowsErrors(t *testing.T) {
	m := NewMemory(0x1000, 16)
	if got := m.ReadWordLegacy(0x9999); got != 0 {
		t.Errorf("ReadWordLegacy on bad address = %d, want 0", got)
	}
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
