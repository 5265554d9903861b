package objfile_test

import (
	"testing"

	"github.com/crashkit/symbolic/objfile"
	"github.com/crashkit/symbolic/testkit"
)

func TestPeek(t *testing.T) {
	testkit.Equate(t, objfile.Peek([]byte{0x7f, 'E', 'L', 'F', 2, 1, 1}), objfile.FormatElf)
	testkit.Equate(t, objfile.Peek([]byte{0xfe, 0xed, 0xfa, 0xcf, 0, 0}), objfile.FormatMacho)
	testkit.Equate(t, objfile.Peek([]byte{0xca, 0xfe, 0xba, 0xbe, 0, 0, 0, 2}), objfile.FormatMacho)
	testkit.Equate(t, objfile.Peek([]byte("MZ\x90\x00\x03\x00")), objfile.FormatPe)
	testkit.Equate(t, objfile.Peek([]byte("MODULE Linux x86_64 000 a.out")), objfile.FormatBreakpad)
	testkit.Equate(t, objfile.Peek([]byte{0x00, 'a', 's', 'm', 1, 0, 0, 0}), objfile.FormatWasm)
	testkit.Equate(t, objfile.Peek([]byte{1, 2}), objfile.FormatUnknown)
	testkit.Equate(t, objfile.Peek(nil), objfile.FormatUnknown)
}

func TestIsFatMachO(t *testing.T) {
	testkit.Equate(t, objfile.IsFatMachO([]byte{0xca, 0xfe, 0xba, 0xbe, 0, 0, 0, 2}), true)
	testkit.Equate(t, objfile.IsFatMachO([]byte{0xfe, 0xed, 0xfa, 0xcf}), false)
}

func TestObjectKindCodes(t *testing.T) {
	testkit.Equate(t, objfile.KindExecutable.String(), "exe")
	testkit.Equate(t, objfile.KindDebug.String(), "dbg")
}

func TestFileFormatCodes(t *testing.T) {
	testkit.Equate(t, objfile.FormatElf.String(), "elf")
	testkit.Equate(t, objfile.FormatSourceBundle.String(), "sourcebundle")
}
