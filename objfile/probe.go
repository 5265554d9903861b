// Package objfile defines the uniform Object/DebugSession abstraction (C3)
// over the container formats this toolkit understands, and the magic-byte
// format probe (C2) that chooses among them.
package objfile

import "bytes"

// FileFormat is the closed set of container formats the probe recognises.
type FileFormat int

const (
	FormatUnknown FileFormat = iota
	FormatBreakpad
	FormatElf
	FormatMacho
	FormatPdb
	FormatPe
	FormatSourceBundle
	FormatWasm
)

var formatNames = map[FileFormat]string{
	FormatUnknown:      "unknown",
	FormatBreakpad:     "breakpad",
	FormatElf:          "elf",
	FormatMacho:        "macho",
	FormatPdb:          "pdb",
	FormatPe:           "pe",
	FormatSourceBundle: "sourcebundle",
	FormatWasm:         "wasm",
}

func (f FileFormat) String() string {
	if n, ok := formatNames[f]; ok {
		return n
	}
	return "unknown"
}

var (
	elfMagic     = []byte{0x7f, 'E', 'L', 'F'}
	machoMagic32 = []byte{0xfe, 0xed, 0xfa, 0xce}
	machoMagic32BE = []byte{0xce, 0xfa, 0xed, 0xfe}
	machoMagic64 = []byte{0xfe, 0xed, 0xfa, 0xcf}
	machoMagic64BE = []byte{0xcf, 0xfa, 0xed, 0xfe}
	machoFatMagic   = []byte{0xca, 0xfe, 0xba, 0xbe}
	machoFatMagicBE = []byte{0xbe, 0xba, 0xfe, 0xca}
	peMagic      = []byte{'M', 'Z'}
	pdbMagic     = []byte("Microsoft C/C++ MSF 7.00\r\n")
	wasmMagic    = []byte{0x00, 'a', 's', 'm'}
	zipMagic     = []byte{'P', 'K', 0x03, 0x04}
)

// Peek inspects a fixed-size prefix of data and returns the format it
// believes the data to be, based on magic bytes only -- it never parses
// beyond the header.
func Peek(data []byte) FileFormat {
	switch {
	case len(data) < 4:
		return probeShort(data)
	case bytes.HasPrefix(data, elfMagic):
		return FormatElf
	case bytes.HasPrefix(data, machoMagic32), bytes.HasPrefix(data, machoMagic32BE),
		bytes.HasPrefix(data, machoMagic64), bytes.HasPrefix(data, machoMagic64BE),
		bytes.HasPrefix(data, machoFatMagic), bytes.HasPrefix(data, machoFatMagicBE):
		return FormatMacho
	case bytes.HasPrefix(data, wasmMagic):
		return FormatWasm
	case bytes.HasPrefix(data, zipMagic):
		return FormatSourceBundle
	case len(data) >= len(pdbMagic) && bytes.HasPrefix(data, pdbMagic):
		return FormatPdb
	case bytes.HasPrefix(data, peMagic):
		return FormatPe
	case looksLikeBreakpad(data):
		return FormatBreakpad
	default:
		return FormatUnknown
	}
}

func probeShort(data []byte) FileFormat {
	if looksLikeBreakpad(data) {
		return FormatBreakpad
	}
	return FormatUnknown
}

// looksLikeBreakpad checks for the handful of record keywords that can
// legally open a Breakpad symbol file.
func looksLikeBreakpad(data []byte) bool {
	for _, kw := range [][]byte{[]byte("MODULE "), []byte("INFO "), []byte("FILE "), []byte("FUNC "), []byte("PUBLIC ")} {
		if bytes.HasPrefix(data, kw) {
			return true
		}
	}
	return false
}

// IsFatMachO reports whether the given magic-prefixed data is a fat
// (multi-architecture) Mach-O archive rather than a single-arch image.
func IsFatMachO(data []byte) bool {
	return bytes.HasPrefix(data, machoFatMagic) || bytes.HasPrefix(data, machoFatMagicBE)
}
