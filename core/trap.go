package core

// Exception codes (mcause bit 31 clear).
const (
	ExcInstructionMisaligned = 0
	ExcInstructionAccessFault = 1
	ExcIllegalInstruction    = 2
	ExcBreakpoint            = 3
	ExcLoadMisaligned        = 4
	ExcLoadAccessFault       = 5
	ExcStoreMisaligned       = 6
	ExcStoreAccessFault      = 7
	ExcEcallFromU            = 8
	ExcEcallFromS            = 9
	ExcEcallFromM            = 11
	ExcInstructionPageFault  = 12
	ExcLoadPageFault         = 13
	ExcStorePageFault        = 15
)

// TrapKind distinguishes a synchronous exception from an asynchronous
// interrupt entry.
type TrapKind int

const (
	TrapException TrapKind = iota
	TrapInterrupt
)

// TrapRecord is the entry-sequence result the pipeline uses to redirect
// fetch: the handler PC to jump to, plus the architectural facts already
// committed to the CSR bank by the trap controller.
type TrapRecord struct {
	Kind      TrapKind
	HandlerPC uint32
	Cause     uint32
	EPC       uint32
	Tval      uint32
}

// TrapController owns the mstatus/mepc/mcause/mtval entry sequence for both
// exceptions and interrupts, and holds the interrupt controller consulted
// once per cycle at fetch.
type TrapController struct {
	csr       *CSRBank
	Interrupt *InterruptController
}

// NewTrapController returns a trap controller over csr, with its own bound
// interrupt controller.
func NewTrapController(csr *CSRBank) *TrapController {
	return &TrapController{csr: csr, Interrupt: NewInterruptController(csr)}
}

// mtvecBaseMode splits mtvec into its aligned base and 2-bit mode field.
func (t *TrapController) mtvecBaseMode() (base uint32, mode uint32) {
	v := t.csr.Read(CSRMtvec)
	return v &^ 0x3, v & 0x3
}

// enterTrap performs the common mstatus/mepc/mcause/mtval bundle shared by
// exception and interrupt entry: save MIE to MPIE, clear MIE, set MPP to
// machine (0b11), then stamp mepc/mcause/mtval.
func (t *TrapController) enterTrap(epc uint32, cause uint32, tval uint32) {
	curMIE := t.csr.MstatusMIE()
	t.csr.SetMstatusMPIE(curMIE)
	t.csr.SetMstatusMIE(false)
	t.csr.SetMstatusMPP(0b11)
	t.csr.Write(CSRMepc, epc)
	t.csr.Write(CSRMcause, cause)
	t.csr.Write(CSRMtval, tval)
}

// TriggerException performs the synchronous exception entry sequence.
// Exceptions always dispatch to mtvec's base, never vectored.
func (t *TrapController) TriggerException(code uint32, pc uint32, tval uint32) TrapRecord {
	t.enterTrap(pc, code&0x7FFFFFFF, tval)
	base, _ := t.mtvecBaseMode()
	return TrapRecord{
		Kind:      TrapException,
		HandlerPC: base,
		Cause:     code & 0x7FFFFFFF,
		EPC:       pc,
		Tval:      tval,
	}
}

// CheckPendingInterrupts consults the bound interrupt controller for the
// highest-priority deliverable interrupt. If none is deliverable it returns
// false. Otherwise it clears the bit from mip (edge- or level-triggered),
// runs the interrupt entry sequence with mepc = nextPC, and computes the
// handler PC per mtvec's mode: direct dispatches to base, vectored to
// base + 4*code.
func (t *TrapController) CheckPendingInterrupts(nextPC uint32) (TrapRecord, bool) {
	bit, ok := t.Interrupt.GetHighestPriorityInterrupt()
	if !ok {
		return TrapRecord{}, false
	}
	t.Interrupt.ClearPending(bit)

	code := interruptCode(bit)
	t.enterTrap(nextPC, code, 0)

	base, mode := t.mtvecBaseMode()
	handler := base
	if mode == 1 {
		handler = base + 4*(code&0x7FFFFFFF)
	}
	return TrapRecord{
		Kind:      TrapInterrupt,
		HandlerPC: handler,
		Cause:     code,
		EPC:       nextPC,
	}, true
}

func interruptCode(bit int) uint32 {
	switch bit {
	case IntSoftware:
		return InterruptSoftware
	case IntTimer:
		return InterruptTimer
	case IntExternal:
		return InterruptExternal
	default:
		return 0x80000000
	}
}

// Ecall triggers the machine-mode ECALL exception (cause 11).
func (t *TrapController) Ecall(pc uint32) TrapRecord {
	return t.TriggerException(ExcEcallFromM, pc, 0)
}

// Ebreak triggers the breakpoint exception (cause 3).
func (t *TrapController) Ebreak(pc uint32) TrapRecord {
	return t.TriggerException(ExcBreakpoint, pc, 0)
}

// IllegalInstruction triggers the illegal-instruction exception (cause 2),
// with the offending instruction word as mtval when available.
func (t *TrapController) IllegalInstruction(pc uint32, bits uint32) TrapRecord {
	return t.TriggerException(ExcIllegalInstruction, pc, bits)
}

// MRET resolves the mret operation: read mepc as the proposed new PC, read
// mstatus, set MIE <- MPIE, MPIE <- 1, MPP <- 0 (user), and return the new
// PC. This mirrors the reference implementation's unconditional MPP clear
// rather than strict RISC-V's "restore prior privilege" rule; single
// privilege mode makes the distinction moot here.
func (t *TrapController) MRET() uint32 {
	newPC := t.csr.Read(CSRMepc)
	mpie := t.csr.MstatusMPIE()
	t.csr.SetMstatusMIE(mpie)
	t.csr.SetMstatusMPIE(true)
	t.csr.SetMstatusMPP(0)
	return newPC
}
