package cfi

import (
	"encoding/binary"

	"github.com/crashkit/symbolic/dbgerr"
)

// PE x64 unwind op codes (UNWIND_CODE.UnwindOp), from the Microsoft x64
// exception handling documentation.
const (
	uwopPushNonvol    = 0
	uwopAllocLarge    = 1
	uwopAllocSmall    = 2
	uwopSetFPReg      = 3
	uwopSaveNonvol    = 4
	uwopSaveNonvolFar = 5
	uwopSaveXMM128    = 8
	uwopSaveXMM128Far = 9
	uwopPushMachFrame = 10
)

const runtimeFunctionSize = 12

// WritePEUnwind decodes the x64 RUNTIME_FUNCTION table (the raw contents of
// .pdata) and, for each entry, the UNWIND_INFO it points to, resolved via
// resolveRVA (a callback over the image's sections since UNWIND_INFO lives
// at an arbitrary RVA, not necessarily inside .pdata itself).
//
// Unlike the DWARF path this doesn't track a per-instruction row sequence:
// x64 unwind info only describes the function's prolog, so the table
// collapses to two rows per function -- the entry state before any
// prolog instruction has run, and the steady state once the full stack
// frame has been established. Mid-prolog unwinding (needed only for
// exceptions that occur inside the prolog itself) is out of scope.
func WritePEUnwind(w *Writer, pdata []byte, resolveRVA func(rva uint32, size uint32) ([]byte, error)) error {
	for off := 0; off+runtimeFunctionSize <= len(pdata); off += runtimeFunctionSize {
		begin := binary.LittleEndian.Uint32(pdata[off : off+4])
		end := binary.LittleEndian.Uint32(pdata[off+4 : off+8])
		unwindRVA := binary.LittleEndian.Uint32(pdata[off+8 : off+12])

		header, err := resolveRVA(unwindRVA, 4)
		if err != nil || len(header) < 4 {
			continue
		}
		countOfCodes := int(header[2])
		total := 4 + countOfCodes*2
		info, err := resolveRVA(unwindRVA, uint32(total))
		if err != nil {
			continue
		}

		stackSize, err := computeStackSize(info, countOfCodes)
		if err != nil {
			continue
		}

		w.writeLine("STACK CFI INIT %x %x .cfa: $rsp 8 + .ra: .cfa 8 - ^", begin, end-begin)
		w.writeLine("STACK CFI %x .cfa: $rsp %x +", begin, stackSize)
	}
	return nil
}

// computeStackSize replays UNWIND_CODE entries, accumulating the frame's
// total stack displacement: 8 bytes for the return address pushed by the
// call instruction itself, plus 8 per pushed nonvolatile register, plus
// each allocation, plus the machine-frame size for UWOP_PUSH_MACHFRAME.
func computeStackSize(info []byte, countOfCodes int) (uint64, error) {
	stackSize := uint64(8)
	i := 4
	for c := 0; c < countOfCodes; c++ {
		if i+2 > len(info) {
			return 0, dbgerr.New(dbgerr.BadDebugFile, "cfi: truncated UNWIND_CODE array")
		}
		opByte := info[i+1]
		op := opByte & 0x0f
		opInfo := opByte >> 4
		i += 2

		switch op {
		case uwopPushNonvol:
			stackSize += 8
		case uwopAllocLarge:
			if opInfo == 0 {
				if i+2 > len(info) {
					return 0, dbgerr.New(dbgerr.BadDebugFile, "cfi: truncated alloc_large operand")
				}
				stackSize += uint64(binary.LittleEndian.Uint16(info[i:i+2])) * 8
				i += 2
			} else {
				if i+4 > len(info) {
					return 0, dbgerr.New(dbgerr.BadDebugFile, "cfi: truncated alloc_large operand")
				}
				stackSize += uint64(binary.LittleEndian.Uint32(info[i : i+4]))
				i += 4
			}
		case uwopAllocSmall:
			stackSize += uint64(opInfo)*8 + 8
		case uwopSetFPReg:
			// no operand; frame pointer register choice doesn't affect CFA.
		case uwopSaveNonvol:
			i += 2
		case uwopSaveNonvolFar:
			i += 4
		case uwopSaveXMM128:
			i += 2
		case uwopSaveXMM128Far:
			i += 4
		case uwopPushMachFrame:
			if opInfo == 0 {
				stackSize += 40
			} else {
				stackSize += 48
			}
		default:
			return 0, dbgerr.New(dbgerr.BadDebugFile, "cfi: unsupported UNWIND_CODE op %d", op)
		}
	}
	return stackSize, nil
}
