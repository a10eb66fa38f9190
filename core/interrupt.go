package core

// Recognized interrupt bit positions in mip/mie.
const (
	IntSoftware = 3
	IntTimer    = 7
	IntExternal = 11
)

// Interrupt codes with bit 31 set, as they appear in mcause.
const (
	InterruptSoftware uint32 = 0x80000003
	InterruptTimer    uint32 = 0x80000007
	InterruptExternal uint32 = 0x8000000B
)

// interruptPriority ranks deliverable interrupts; higher wins.
var interruptPriority = map[int]int{
	IntExternal: 3,
	IntSoftware: 2,
	IntTimer:    1,
}

// InterruptController manipulates mip/mie/mstatus.MIE via the CSR bank and
// tracks which interrupt bits are edge- vs. level-triggered.
type InterruptController struct {
	csr            *CSRBank
	edgeTriggered  map[int]bool
	latchedEdges   map[int]bool
}

// NewInterruptController returns a controller over csr with all three
// recognized bits configured level-triggered by default.
func NewInterruptController(csr *CSRBank) *InterruptController {
	return &InterruptController{
		csr:           csr,
		edgeTriggered: make(map[int]bool),
		latchedEdges:  make(map[int]bool),
	}
}

// SetPending sets mip[bit]. If edge is true the bit is also recorded as a
// latched edge, which governs Acknowledge's behavior later.
func (c *InterruptController) SetPending(bit int, edge bool) {
	mip := c.csr.Read(CSRMip)
	c.csr.Write(CSRMip, mip|(1<<uint(bit)))
	if edge {
		c.latchedEdges[bit] = true
	}
}

// ClearPending clears mip[bit] and removes any latch for it.
func (c *InterruptController) ClearPending(bit int) {
	mip := c.csr.Read(CSRMip)
	c.csr.Write(CSRMip, mip&^(1<<uint(bit)))
	delete(c.latchedEdges, bit)
}

// IsPending reports whether mip[bit] is set.
func (c *InterruptController) IsPending(bit int) bool {
	return c.csr.Read(CSRMip)&(1<<uint(bit)) != 0
}

// IsEnabled reports whether mie[bit] is set.
func (c *InterruptController) IsEnabled(bit int) bool {
	return c.csr.Read(CSRMie)&(1<<uint(bit)) != 0
}

// IsGloballyEnabled reports mstatus.MIE.
func (c *InterruptController) IsGloballyEnabled() bool {
	return c.csr.MstatusMIE()
}

// GetDeliverableInterrupts returns the bits set in both mip and mie among
// {3, 7, 11}, or empty if mstatus.MIE is 0.
func (c *InterruptController) GetDeliverableInterrupts() []int {
	if !c.IsGloballyEnabled() {
		return nil
	}
	var out []int
	for _, bit := range []int{IntSoftware, IntTimer, IntExternal} {
		if c.IsPending(bit) && c.IsEnabled(bit) {
			out = append(out, bit)
		}
	}
	return out
}

// GetHighestPriorityInterrupt returns the highest-priority deliverable
// interrupt bit, and true if one exists.
func (c *InterruptController) GetHighestPriorityInterrupt() (int, bool) {
	deliverable := c.GetDeliverableInterrupts()
	if len(deliverable) == 0 {
		return 0, false
	}
	best := deliverable[0]
	for _, bit := range deliverable[1:] {
		if interruptPriority[bit] > interruptPriority[best] {
			best = bit
		}
	}
	return best, true
}

// Acknowledge clears mip[bit] only if bit is in the latched-edge set;
// level-triggered interrupts must be cleared by their source instead.
func (c *InterruptController) Acknowledge(bit int) {
	if c.latchedEdges[bit] {
		c.ClearPending(bit)
	}
}

// EnableInterrupt sets mie[bit].
func (c *InterruptController) EnableInterrupt(bit int) {
	mie := c.csr.Read(CSRMie)
	c.csr.Write(CSRMie, mie|(1<<uint(bit)))
}

// DisableInterrupt clears mie[bit].
func (c *InterruptController) DisableInterrupt(bit int) {
	mie := c.csr.Read(CSRMie)
	c.csr.Write(CSRMie, mie&^(1<<uint(bit)))
}

// EnableGlobalInterrupts sets mstatus.MIE.
func (c *InterruptController) EnableGlobalInterrupts() {
	c.csr.SetMstatusMIE(true)
}

// DisableGlobalInterrupts clears mstatus.MIE.
func (c *InterruptController) DisableGlobalInterrupts() {
	c.csr.SetMstatusMIE(false)
}

// SetEdgeTriggered configures bit as edge-triggered (else level).
func (c *InterruptController) SetEdgeTriggered(bit int) {
	c.edgeTriggered[bit] = true
}

// SetLevelTriggered configures bit as level-triggered.
func (c *InterruptController) SetLevelTriggered(bit int) {
	delete(c.edgeTriggered, bit)
}

// IsEdgeTriggered reports bit's current trigger mode.
func (c *InterruptController) IsEdgeTriggered(bit int) bool {
	return c.edgeTriggered[bit]
}

// IsLevelTriggered reports bit's current trigger mode.
func (c *InterruptController) IsLevelTriggered(bit int) bool {
	return !c.edgeTriggered[bit]
}

// Reset clears mip, clears the three recognized mie bits, disables global
// interrupts, and clears all latches.
func (c *InterruptController) Reset() {
	c.csr.Write(CSRMip, 0)
	mie := c.csr.Read(CSRMie)
	for _, bit := range []int{IntSoftware, IntTimer, IntExternal} {
		mie &^= 1 << uint(bit)
	}
	c.csr.Write(CSRMie, mie)
	c.DisableGlobalInterrupts()
	c.latchedEdges = make(map[int]bool)
}

// InterruptSource represents a device driving one interrupt bit into a
// bound InterruptController.
type InterruptSource struct {
	Name       string
	Bit        int
	active     bool
	controller *InterruptController
}

// NewInterruptSource returns a disconnected source for the given bit.
func NewInterruptSource(name string, bit int) *InterruptSource {
	return &InterruptSource{Name: name, Bit: bit}
}

// Connect binds the source to a controller.
func (s *InterruptSource) Connect(c *InterruptController) {
	s.controller = c
}

// AssertInterrupt raises the source's interrupt line: edge or level per the
// bound controller's configuration for this bit.
func (s *InterruptSource) AssertInterrupt() {
	s.active = true
	if s.controller == nil {
		return
	}
	s.controller.SetPending(s.Bit, s.controller.IsEdgeTriggered(s.Bit))
}

// DeassertInterrupt lowers the source's line. Only level-triggered bits
// clear pending as a result; edge-triggered bits stay latched until
// acknowledged.
func (s *InterruptSource) DeassertInterrupt() {
	s.active = false
	if s.controller == nil {
		return
	}
	if s.controller.IsLevelTriggered(s.Bit) {
		s.controller.ClearPending(s.Bit)
	}
}

// Pulse asserts then immediately deasserts the line.
func (s *InterruptSource) Pulse() {
	s.AssertInterrupt()
	s.DeassertInterrupt()
}

// IsActive reports the source's last commanded state.
func (s *InterruptSource) IsActive() bool {
	return s.active
}
