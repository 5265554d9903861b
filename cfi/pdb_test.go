package cfi_test

import (
	"encoding/binary"
	"testing"

	"github.com/crashkit/symbolic/cfi"
	"github.com/crashkit/symbolic/testkit"
)

func buildFrameRecord(rva, codeSize, localSize, paramsSize, maxStack uint32, frameFunc uint32, prolog, savedRegs uint16) []byte {
	b := make([]byte, 32)
	le := binary.LittleEndian
	le.PutUint32(b[0:4], rva)
	le.PutUint32(b[4:8], codeSize)
	le.PutUint32(b[8:12], localSize)
	le.PutUint32(b[12:16], paramsSize)
	le.PutUint32(b[16:20], maxStack)
	le.PutUint32(b[20:24], frameFunc)
	le.PutUint16(b[24:26], prolog)
	le.PutUint16(b[26:28], savedRegs)
	return b
}

func TestWritePDBFrameDataNoProgram(t *testing.T) {
	data := buildFrameRecord(0x1000, 0x100, 0x10, 0, 0x20, 0xffffffff, 0x10, 0)
	records, err := cfi.ParsePDBFrameData(data)
	testkit.RequireNoError(t, err)
	testkit.Equate(t, len(records), 1)

	w := cfi.NewWriter()
	cfi.WritePDBFrameData(w, records, func(uint32) (string, bool) { return "", false })
	testkit.Equate(t, string(w.Finish().Bytes()), "STACK WIN 4 1000 100 10 0 0 0 10 20 0 0\n")
}

func TestWritePDBFrameDataWithProgram(t *testing.T) {
	data := buildFrameRecord(0x2000, 0x40, 0x8, 0x4, 0x10, 0x30, 0x8, 4)
	records, err := cfi.ParsePDBFrameData(data)
	testkit.RequireNoError(t, err)

	w := cfi.NewWriter()
	cfi.WritePDBFrameData(w, records, func(off uint32) (string, bool) {
		if off == 0x30 {
			return "$T0 $eip = $esp 4 + ^", true
		}
		return "", false
	})
	testkit.Equate(t, string(w.Finish().Bytes()), "STACK WIN 4 2000 40 8 0 4 4 8 10 1 $T0 $eip = $esp 4 + ^\n")
}
