package pdb

import (
	"encoding/binary"
)

const dbiStreamIndex = 3
const dbiHeaderSize = 64

// dbgHeaderNewFPO is the New Frame Data Stream's slot in the DBI stream's
// Optional Debug Header substream (a fixed array of stream indices that
// trails the DBI's other substreams).
const dbgHeaderNewFPO = 9

// newFrameDataStreamIndex reads the DBI stream header far enough to find
// the Optional Debug Header substream, and returns the stream index it
// records for "New FPO Data" (the format STACK WIN's frame-data records
// come from), or false if this PDB carries none.
func newFrameDataStreamIndex(m *msfFile) (int, bool) {
	dbi := m.stream(dbiStreamIndex)
	if len(dbi) < dbiHeaderSize {
		return 0, false
	}
	le := binary.LittleEndian

	modInfoSize := int32(le.Uint32(dbi[24:28]))
	sectionContribSize := int32(le.Uint32(dbi[28:32]))
	sectionMapSize := int32(le.Uint32(dbi[32:36]))
	sourceInfoSize := int32(le.Uint32(dbi[36:40]))
	typeServerMapSize := int32(le.Uint32(dbi[40:44]))
	ecSubstreamSize := int32(le.Uint32(dbi[52:56]))
	optionalDbgHeaderSize := int32(le.Uint32(dbi[48:52]))

	off := dbiHeaderSize
	sizes := []int32{modInfoSize, sectionContribSize, sectionMapSize, sourceInfoSize, typeServerMapSize, ecSubstreamSize}
	for _, s := range sizes {
		if s < 0 {
			return 0, false
		}
		off += int(s)
	}

	if optionalDbgHeaderSize <= 0 || off+int(optionalDbgHeaderSize) > len(dbi) {
		return 0, false
	}
	dbgHeader := dbi[off : off+int(optionalDbgHeaderSize)]

	entryOff := dbgHeaderNewFPO * 2
	if entryOff+2 > len(dbgHeader) {
		return 0, false
	}
	idx := le.Uint16(dbgHeader[entryOff : entryOff+2])
	if idx == 0xffff {
		return 0, false
	}
	return int(idx), true
}
