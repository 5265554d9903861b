package common

import "strings"

// Arch is a specific CPU variant, closed over the set this toolkit knows
// how to symbolicate. Unknown values round-trip through ArchUnknown rather
// than erroring, so a partially-recognised cache is still usable.
type Arch uint32

const (
	ArchUnknown Arch = iota
	ArchX86
	ArchX86_64
	ArchArm
	ArchArmV5
	ArchArmV6
	ArchArmV7
	ArchArmV7f
	ArchArmV7s
	ArchArmV7k
	ArchArm64
	ArchArm64e
	ArchPpc
	ArchPpc64
	ArchMips
	ArchMips64
	ArchWasm32
)

var archNames = map[Arch]string{
	ArchUnknown: "unknown",
	ArchX86:     "x86",
	ArchX86_64:  "x86_64",
	ArchArm:     "arm",
	ArchArmV5:   "armv5",
	ArchArmV6:   "armv6",
	ArchArmV7:   "armv7",
	ArchArmV7f:  "armv7f",
	ArchArmV7s:  "armv7s",
	ArchArmV7k:  "armv7k",
	ArchArm64:   "arm64",
	ArchArm64e:  "arm64e",
	ArchPpc:     "ppc",
	ArchPpc64:   "ppc64",
	ArchMips:    "mips",
	ArchMips64:  "mips64",
	ArchWasm32:  "wasm32",
}

var archByName = func() map[string]Arch {
	m := make(map[string]Arch, len(archNames))
	for a, n := range archNames {
		m[n] = a
	}
	return m
}()

// Name returns the canonical lowercase name of the architecture.
func (a Arch) Name() string {
	if n, ok := archNames[a]; ok {
		return n
	}
	return "unknown"
}

func (a Arch) String() string { return a.Name() }

// FromName parses a canonical architecture name, case-insensitively.
func FromName(name string) Arch {
	if a, ok := archByName[strings.ToLower(name)]; ok {
		return a
	}
	return ArchUnknown
}

// FromU32 recovers an Arch from its integer code, as stored in a SymCache.
func FromU32(code uint32) Arch {
	a := Arch(code)
	if _, ok := archNames[a]; ok {
		return a
	}
	return ArchUnknown
}

// U32 returns the integer code used to persist this architecture.
func (a Arch) U32() uint32 { return uint32(a) }

// CpuFamily maps the specific variant to its instruction family.
func (a Arch) CpuFamily() CpuFamily {
	switch a {
	case ArchX86:
		return FamilyX86
	case ArchX86_64:
		return FamilyX86_64
	case ArchArm, ArchArmV5, ArchArmV6, ArchArmV7, ArchArmV7f, ArchArmV7s, ArchArmV7k:
		return FamilyArm
	case ArchArm64, ArchArm64e:
		return FamilyArm64
	case ArchPpc:
		return FamilyPpc
	case ArchPpc64:
		return FamilyPpc64
	case ArchMips:
		return FamilyMips
	case ArchMips64:
		return FamilyMips64
	case ArchWasm32:
		return FamilyWasm
	default:
		return FamilyUnknown
	}
}
