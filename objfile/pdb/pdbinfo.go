package pdb

import (
	"encoding/binary"

	"github.com/crashkit/symbolic/dbgerr"
)

const pdbInfoStreamIndex = 1

// pdbInfoHeader is the fixed-size prefix of the PDB Info Stream: version,
// signature timestamp, age, and the 16-byte GUID spec.md's PDB DebugId is
// built from. A named-stream map follows, which this reader doesn't need.
func readPDBInfo(m *msfFile) (guid [16]byte, age uint32, err error) {
	s := m.stream(pdbInfoStreamIndex)
	if len(s) < 28 {
		return guid, 0, dbgerr.New(dbgerr.BadDebugFile, "pdb: info stream too small")
	}
	le := binary.LittleEndian
	age = le.Uint32(s[8:12])
	copy(guid[:], s[12:28])
	return guid, age, nil
}
