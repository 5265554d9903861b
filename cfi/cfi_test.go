package cfi_test

import (
	"encoding/binary"
	"testing"

	"github.com/crashkit/symbolic/cfi"
	"github.com/crashkit/symbolic/common"
	"github.com/crashkit/symbolic/dbgerr"
	"github.com/crashkit/symbolic/testkit"
)

func TestFromBytesEmptyAndStackPrefix(t *testing.T) {
	empty, err := cfi.FromBytes(nil)
	testkit.RequireNoError(t, err)
	testkit.Equate(t, empty.IsEmpty(), true)

	c, err := cfi.FromBytes([]byte("STACK CFI INIT 1000 10 .cfa: $rsp 8 +\n"))
	testkit.RequireNoError(t, err)
	testkit.Equate(t, string(c.Bytes()), "STACK CFI INIT 1000 10 .cfa: $rsp 8 +\n")
}

func TestFromBytesBadMagic(t *testing.T) {
	_, err := cfi.FromBytes([]byte("not a cache"))
	kind, ok := dbgerr.KindOf(err)
	testkit.Equate(t, ok, true)
	testkit.Equate(t, kind, dbgerr.BadFileMagic)
}

// TestCfiRoundTrip pins testable property 5: from_bytes(cache.bytes())
// succeeds and yields byte-identical content.
func TestCfiRoundTrip(t *testing.T) {
	w := cfi.NewWriter()
	testkit.RequireNoError(t, cfi.PassthroughBreakpad(w, []byte("MODULE Linux x86_64 000 a.out\nSTACK CFI INIT 1000 10 .cfa: $rsp 8 +\n")))
	cache := w.Finish()

	roundTripped, err := cfi.FromBytes(cache.Bytes())
	testkit.RequireNoError(t, err)
	testkit.Equate(t, string(roundTripped.Bytes()), string(cache.Bytes()))
}

// TestBreakpadPassthrough pins Scenario E: a STACK WIN line passes through
// unchanged.
func TestBreakpadPassthrough(t *testing.T) {
	input := "MODULE Linux x86_64 000 a.out\n" +
		"STACK WIN 4 1000 100 10 0 4 8 10 20 1 $T0 .raSearch = \n" +
		"FUNC 1000 10 0 main\n"

	w := cfi.NewWriter()
	testkit.RequireNoError(t, cfi.PassthroughBreakpad(w, []byte(input)))
	cache := w.Finish()

	testkit.Equate(t, string(cache.Bytes()), "STACK WIN 4 1000 100 10 0 4 8 10 20 1 $T0 .raSearch = \n")
}

func buildTestDebugFrame() []byte {
	var b []byte
	le := binary.LittleEndian

	cieInstructions := []byte{0x0c, 0x07, 0x08, 0x90, 0x01}
	cieBlock := []byte{}
	cieBlock = appendUint32(cieBlock, le, 0xffffffff)
	cieBlock = append(cieBlock, 1)    // version
	cieBlock = append(cieBlock, 0x00) // augmentation (empty)
	cieBlock = append(cieBlock, 0x01) // code alignment ULEB128 = 1
	cieBlock = append(cieBlock, 0x78) // data alignment SLEB128 = -8
	cieBlock = append(cieBlock, 16)   // return address register = rip
	cieBlock = append(cieBlock, cieInstructions...)

	b = appendUint32(b, le, uint32(len(cieBlock)))
	b = append(b, cieBlock...)

	fdeInstructions := []byte{0x02, 0x01, 0x0e, 0x10, 0x86, 0x02}
	fdeBlock := []byte{}
	fdeBlock = appendUint32(fdeBlock, le, 0) // CIE pointer: offset of CIE's length field
	fdeBlock = appendUint64(fdeBlock, le, 0x1000)
	fdeBlock = appendUint64(fdeBlock, le, 0x40)
	fdeBlock = append(fdeBlock, fdeInstructions...)

	b = appendUint32(b, le, uint32(len(fdeBlock)))
	b = append(b, fdeBlock...)

	return b
}

func appendUint32(b []byte, order binary.ByteOrder, v uint32) []byte {
	tmp := make([]byte, 4)
	order.PutUint32(tmp, v)
	return append(b, tmp...)
}

func appendUint64(b []byte, order binary.ByteOrder, v uint64) []byte {
	tmp := make([]byte, 8)
	order.PutUint64(tmp, v)
	return append(b, tmp...)
}

func TestWriteDWARFProducesExpectedRows(t *testing.T) {
	data := buildTestDebugFrame()
	w := cfi.NewWriter()
	testkit.RequireNoError(t, cfi.WriteDWARF(w, data, binary.LittleEndian, common.ArchX86_64, 0))

	cache := w.Finish()
	testkit.Equate(t, string(cache.Bytes()),
		"STACK CFI INIT 1000 40 .cfa: $rsp 8 + .ra: .cfa -8 + ^\n"+
			"STACK CFI 1001 .cfa: $rsp 16 + $rbp: .cfa -16 + ^\n")
}

func TestWriteDWARFDropsRowsBelowLoadAddress(t *testing.T) {
	data := buildTestDebugFrame()
	w := cfi.NewWriter()
	testkit.RequireNoError(t, cfi.WriteDWARF(w, data, binary.LittleEndian, common.ArchX86_64, 0x2000))
	testkit.Equate(t, w.Finish().IsEmpty(), true)
}
