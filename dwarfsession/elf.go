package dwarfsession

import (
	"debug/dwarf"
	"debug/elf"

	"github.com/crashkit/symbolic/common"
	"github.com/crashkit/symbolic/dbgerr"
	"github.com/crashkit/symbolic/objfile"
)

// elfSections adapts *elf.File to sectionProvider, decompressing modern
// SHF_COMPRESSED sections the same way debug/elf's own DWARF() does
// internally -- Section(name).Data() already handles that for us.
type elfSections struct {
	ef *elf.File
}

func (s elfSections) DWARFData() (*dwarf.Data, error) { return s.ef.DWARF() }

func (s elfSections) Section(name string) ([]byte, uint64) {
	sec := s.ef.Section(name)
	if sec == nil {
		return nil, 0
	}
	data, err := sec.Data()
	if err != nil {
		return nil, 0
	}
	return data, sec.Addr
}

func (s elfSections) ByteOrderLittleEndian() bool {
	return s.ef.ByteOrder.String() == "LittleEndian"
}

// NewFromELF builds a DebugSession from an already-parsed ELF file.
func NewFromELF(ef *elf.File, arch common.Arch, loadAddress uint64) (objfile.DebugSession, error) {
	data, err := ef.DWARF()
	if err != nil {
		return nil, dbgerr.New(dbgerr.MissingDebugInfo, "elf: no DWARF data: %v", err)
	}
	return New(data, arch, loadAddress, elfSections{ef: ef})
}
