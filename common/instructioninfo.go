package common

// Crash signal numbers relevant to the caller-address heuristic.
const (
	SIGILL  = 4
	SIGBUS  = 10
	SIGSEGV = 11
)

// InstructionInfo computes the addresses a stack-unwinder needs from a
// single frame: the instruction-aligned address, the address of the
// previous instruction, and (derived from both, plus whether this is the
// frame that actually crashed) the address that should be used to look up
// symbol/line information for this frame.
type InstructionInfo struct {
	Address       uint64
	Arch          Arch
	CrashingFrame bool
	Signal        *int
	IPRegister    *uint64
}

// AlignedAddress rounds Address down to the architecture's instruction
// alignment. Architectures with variable-length instructions (x86 family)
// report 0 alignment and the address is returned unchanged.
func (i InstructionInfo) AlignedAddress() uint64 {
	align := uint64(i.Arch.CpuFamily().InstructionAlignment())
	if align == 0 {
		return i.Address
	}
	return i.Address - (i.Address % align)
}

// instructionStep returns how many bytes "one instruction" is assumed to
// occupy when walking backwards. MIPS frames step back two instructions,
// matching the teacher-grade heuristic used across Breakpad-derived
// unwinders for delay-slot architectures.
func (i InstructionInfo) instructionStep() uint64 {
	align := uint64(i.Arch.CpuFamily().InstructionAlignment())
	if align == 0 {
		align = 1
	}
	switch i.Arch.CpuFamily() {
	case FamilyMips, FamilyMips64:
		return align * 2
	default:
		return align
	}
}

// PreviousAddress returns the address of the instruction immediately
// preceding this one (two instructions, for MIPS).
func (i InstructionInfo) PreviousAddress() uint64 {
	aligned := i.AlignedAddress()
	step := i.instructionStep()
	if aligned < step {
		return 0
	}
	return aligned - step
}

// ShouldAdjustCaller reports whether the caller address should be taken
// from the previous instruction rather than from the (aligned) address
// itself. Every non-crashing frame holds a return address and is adjusted.
// The crashing frame is not adjusted, since Address already points at the
// faulting instruction, unless a crash signal (SIGILL/SIGBUS/SIGSEGV) was
// raised and the IP register differs from Address.
func (i InstructionInfo) ShouldAdjustCaller() bool {
	if !i.CrashingFrame {
		return true
	}
	if i.IPRegister != nil && *i.IPRegister != i.Address && i.Signal != nil {
		switch *i.Signal {
		case SIGILL, SIGBUS, SIGSEGV:
			return true
		}
	}
	return false
}

// CallerAddress returns the address that should be used to resolve this
// frame's symbol/line information.
func (i InstructionInfo) CallerAddress() uint64 {
	if !i.ShouldAdjustCaller() {
		return i.AlignedAddress()
	}
	return i.PreviousAddress()
}
