package cfi_test

import (
	"encoding/binary"
	"testing"

	"github.com/crashkit/symbolic/cfi"
	"github.com/crashkit/symbolic/testkit"
)

// TestWritePEUnwind pins Scenario F: a runtime function at RVA
// 0x1000..0x1040 whose unwind codes are push_nonvol then alloc_small(0x20),
// giving stack_size = 8 (return address) + 8 (push_nonvol) + 0x20 (alloc) =
// 0x30.
func TestWritePEUnwind(t *testing.T) {
	le := binary.LittleEndian

	pdata := make([]byte, 12)
	le.PutUint32(pdata[0:4], 0x1000)
	le.PutUint32(pdata[4:8], 0x1040)
	le.PutUint32(pdata[8:12], 0x3000) // UNWIND_INFO rva

	unwindInfo := []byte{
		0x01, // version 1, no flags
		0x04, // size of prolog
		0x02, // count of codes
		0x00, // frame register/offset
		0x00, 0x02, // code[0]: offset=0, op=UWOP_ALLOC_SMALL(2), info=3 -> (3*8+8)=0x20
		0x00, 0x00, // code[1]: offset=0, op=UWOP_PUSH_NONVOL(0), info=0
	}
	unwindInfo[4] = 0x00
	unwindInfo[5] = byte(3<<4) | 2 // opInfo=3, op=2 (alloc_small)
	unwindInfo[6] = 0x00
	unwindInfo[7] = 0x00 // op=0 (push_nonvol)

	resolve := func(rva uint32, size uint32) ([]byte, error) {
		if rva != 0x3000 {
			t.Fatalf("unexpected rva 0x%x", rva)
		}
		return unwindInfo[:size], nil
	}

	w := cfi.NewWriter()
	testkit.RequireNoError(t, cfi.WritePEUnwind(w, pdata, resolve))

	cache := w.Finish()
	testkit.Equate(t, string(cache.Bytes()),
		"STACK CFI INIT 1000 40 .cfa: $rsp 8 + .ra: .cfa 8 - ^\n"+
			"STACK CFI 1000 .cfa: $rsp 30 +\n")
}
