package cfi

import (
	"encoding/binary"

	"github.com/crashkit/symbolic/dbgerr"
)

// PDBFrameRecord is one decoded entry of a PDB "New Frame Data" stream.
type PDBFrameRecord struct {
	RvaStart     uint32
	CodeSize     uint32
	LocalSize    uint32
	ParamsSize   uint32
	MaxStackSize uint32
	FrameFunc    uint32 // offset into the /names stream, or 0xffffffff
	PrologSize   uint16
	SavedRegs    uint16
	Flags        uint32
}

const pdbFrameRecordSize = 32

// ParsePDBFrameData decodes the raw contents of a New Frame Data stream
// into fixed-size records.
func ParsePDBFrameData(data []byte) ([]PDBFrameRecord, error) {
	if len(data)%pdbFrameRecordSize != 0 {
		return nil, dbgerr.New(dbgerr.BadDebugFile, "cfi: frame data stream size not a multiple of %d", pdbFrameRecordSize)
	}
	le := binary.LittleEndian
	out := make([]PDBFrameRecord, 0, len(data)/pdbFrameRecordSize)
	for off := 0; off+pdbFrameRecordSize <= len(data); off += pdbFrameRecordSize {
		r := data[off : off+pdbFrameRecordSize]
		out = append(out, PDBFrameRecord{
			RvaStart:     le.Uint32(r[0:4]),
			CodeSize:     le.Uint32(r[4:8]),
			LocalSize:    le.Uint32(r[8:12]),
			ParamsSize:   le.Uint32(r[12:16]),
			MaxStackSize: le.Uint32(r[16:20]),
			FrameFunc:    le.Uint32(r[20:24]),
			PrologSize:   le.Uint16(r[24:26]),
			SavedRegs:    le.Uint16(r[26:28]),
			Flags:        le.Uint32(r[28:32]),
		})
	}
	return out, nil
}

const noFrameFunc = 0xffffffff

// WritePDBFrameData emits a STACK WIN record per spec.md §4.8's exact
// format for each frame-data record: resolveProgram looks up the optional
// program string for a record's FrameFunc offset into the /names stream.
//
// When no program string is present, uses_base_pointer is approximated as
// "1" whenever the record reserved saved-register space and "0"
// otherwise -- the New Frame Data format doesn't carry an explicit
// base-pointer flag the way classic FPO_DATA does, so this is a documented
// heuristic rather than a literal field read.
func WritePDBFrameData(w *Writer, records []PDBFrameRecord, resolveProgram func(offset uint32) (string, bool)) {
	for _, r := range records {
		programOrBP := "0"
		hasProgram := 0
		if r.SavedRegs > 0 {
			programOrBP = "1"
		}
		if r.FrameFunc != noFrameFunc {
			if program, ok := resolveProgram(r.FrameFunc); ok {
				programOrBP = program
				hasProgram = 1
			}
		}
		w.writeLine("STACK WIN 4 %x %x %x 0 %x %x %x %x %d %s",
			r.RvaStart, r.CodeSize, r.PrologSize, r.ParamsSize, r.SavedRegs, r.LocalSize, r.MaxStackSize, hasProgram, programOrBP)
	}
}
