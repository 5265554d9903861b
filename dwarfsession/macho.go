package dwarfsession

import (
	"debug/dwarf"
	"debug/macho"

	"github.com/crashkit/symbolic/common"
	"github.com/crashkit/symbolic/dbgerr"
	"github.com/crashkit/symbolic/objfile"
)

type machoSections struct {
	mf *macho.File
}

func (s machoSections) DWARFData() (*dwarf.Data, error) { return s.mf.DWARF() }

func (s machoSections) Section(name string) ([]byte, uint64) {
	sec := s.mf.Section(name)
	if sec == nil {
		return nil, 0
	}
	data, err := sec.Data()
	if err != nil {
		return nil, 0
	}
	return data, sec.Addr
}

func (s machoSections) ByteOrderLittleEndian() bool {
	return s.mf.ByteOrder.String() == "LittleEndian"
}

// NewFromMachO builds a Session over a parsed Mach-O slice's __DWARF
// segment.
func NewFromMachO(mf *macho.File, arch common.Arch, loadAddress uint64) (objfile.DebugSession, error) {
	data, err := mf.DWARF()
	if err != nil {
		return nil, dbgerr.New(dbgerr.MissingDebugInfo, "macho: no DWARF data: %v", err)
	}
	return New(data, arch, loadAddress, machoSections{mf: mf})
}
