package common

// CpuFamily groups related Arch variants that share calling convention and
// instruction-encoding properties.
type CpuFamily int

const (
	FamilyUnknown CpuFamily = iota
	FamilyX86
	FamilyX86_64
	FamilyArm
	FamilyArm64
	FamilyPpc
	FamilyPpc64
	FamilyMips
	FamilyMips64
	FamilyWasm
)

// PointerSize returns the native pointer width in bytes, or 0 if unknown.
func (f CpuFamily) PointerSize() int {
	switch f {
	case FamilyX86, FamilyArm, FamilyPpc, FamilyMips, FamilyWasm:
		return 4
	case FamilyX86_64, FamilyArm64, FamilyPpc64, FamilyMips64:
		return 8
	default:
		return 0
	}
}

// InstructionAlignment returns the fixed instruction alignment in bytes, or
// 0 for architectures with variable-length instructions (x86 family).
func (f CpuFamily) InstructionAlignment() int {
	switch f {
	case FamilyArm, FamilyPpc, FamilyMips, FamilyWasm:
		return 4
	case FamilyArm64, FamilyPpc64, FamilyMips64:
		return 4
	case FamilyX86, FamilyX86_64:
		return 0
	default:
		return 0
	}
}

// IPRegisterName returns the canonical name of the instruction-pointer
// register for this family.
func (f CpuFamily) IPRegisterName() string {
	switch f {
	case FamilyX86:
		return "$eip"
	case FamilyX86_64:
		return "$rip"
	case FamilyArm:
		return "$pc"
	case FamilyArm64:
		return "$pc"
	case FamilyPpc, FamilyPpc64:
		return "$pc"
	case FamilyMips, FamilyMips64:
		return "$pc"
	case FamilyWasm:
		return "$pc"
	default:
		return ""
	}
}

// cfiRegisterNames maps DWARF register numbers to Breakpad CFI register
// names, per family. Only the registers that actually appear in unwind
// rules need to be listed; anything else is reported as unknown so the CFI
// writer can drop the rule rather than emit a bogus name.
var cfiRegisterNames = map[CpuFamily]map[int]string{
	FamilyX86_64: {
		0: "$rax", 1: "$rdx", 2: "$rcx", 3: "$rbx", 4: "$rsi", 5: "$rdi",
		6: "$rbp", 7: "$rsp", 8: "$r8", 9: "$r9", 10: "$r10", 11: "$r11",
		12: "$r12", 13: "$r13", 14: "$r14", 15: "$r15", 16: "$rip",
	},
	FamilyX86: {
		0: "$eax", 1: "$ecx", 2: "$edx", 3: "$ebx", 4: "$esp", 5: "$ebp",
		6: "$esi", 7: "$edi", 8: "$eip",
	},
	FamilyArm: {
		0: "$r0", 1: "$r1", 2: "$r2", 3: "$r3", 4: "$r4", 5: "$r5",
		6: "$r6", 7: "$r7", 8: "$r8", 9: "$r9", 10: "$r10", 11: "$r11",
		12: "$r12", 13: "$sp", 14: "$lr", 15: "$pc",
	},
	FamilyArm64: {
		29: "$fp", 30: "$lr", 31: "$sp", 32: "$pc",
	},
}

// CfiRegisterName returns the Breakpad CFI name for a DWARF register number
// within this family, and whether it is known at all.
func (f CpuFamily) CfiRegisterName(reg int) (string, bool) {
	m, ok := cfiRegisterNames[f]
	if !ok {
		return "", false
	}
	name, ok := m[reg]
	return name, ok
}

func (f CpuFamily) String() string {
	switch f {
	case FamilyX86:
		return "x86"
	case FamilyX86_64:
		return "x86_64"
	case FamilyArm:
		return "arm"
	case FamilyArm64:
		return "arm64"
	case FamilyPpc:
		return "ppc"
	case FamilyPpc64:
		return "ppc64"
	case FamilyMips:
		return "mips"
	case FamilyMips64:
		return "mips64"
	case FamilyWasm:
		return "wasm"
	default:
		return "unknown"
	}
}
