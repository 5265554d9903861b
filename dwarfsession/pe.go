package dwarfsession

import (
	"debug/dwarf"
	"debug/pe"

	"github.com/crashkit/symbolic/common"
	"github.com/crashkit/symbolic/dbgerr"
	"github.com/crashkit/symbolic/objfile"
)

type peSections struct {
	pf *pe.File
}

func (s peSections) DWARFData() (*dwarf.Data, error) { return s.pf.DWARF() }

func (s peSections) Section(name string) ([]byte, uint64) {
	sec := s.pf.Section(name)
	if sec == nil {
		return nil, 0
	}
	data, err := sec.Data()
	if err != nil {
		return nil, 0
	}
	return data, uint64(sec.VirtualAddress)
}

func (s peSections) ByteOrderLittleEndian() bool { return true }

// NewFromPE builds a Session over a PE image's .debug_info sections, for
// the (uncommon but real, e.g. MinGW-produced) PE binaries that carry
// DWARF rather than CodeView debug info.
func NewFromPE(pf *pe.File, arch common.Arch, loadAddress uint64) (objfile.DebugSession, error) {
	data, err := pf.DWARF()
	if err != nil {
		return nil, dbgerr.New(dbgerr.MissingDebugInfo, "pe: no DWARF data: %v", err)
	}
	return New(data, arch, loadAddress, peSections{pf: pf})
}
