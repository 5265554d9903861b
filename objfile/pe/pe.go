// Package pe implements objfile.Object over Windows PE/COFF executables and
// DLLs, on top of the standard library's debug/pe package. It additionally
// walks the CodeView debug directory entry by hand (debug/pe exposes
// sections and the optional header but not the debug directory itself) to
// recover the PDB GUID/age pair spec.md calls the PE DebugId, and the x64
// exception directory that feeds the CFI writer's PE unwind path.
package pe

import (
	"bytes"
	"debug/pe"
	"encoding/binary"
	"fmt"

	"github.com/crashkit/symbolic/cfi"
	"github.com/crashkit/symbolic/common"
	"github.com/crashkit/symbolic/dbgerr"
	"github.com/crashkit/symbolic/dwarfsession"
	"github.com/crashkit/symbolic/objfile"
)

const (
	imageDirectoryEntryDebug     = 6
	imageDirectoryEntryException = 3
	imageDebugTypeCodeview       = 2
)

// Object wraps a parsed PE image.
type Object struct {
	pf   *pe.File
	arch common.Arch

	codeID    common.CodeId
	debugID   common.DebugId
	haveDebug bool
	sizeOfImage uint32
	malformed bool
}

// Open parses the PE container backed by bv.
func Open(bv common.ByteView) (*Object, error) {
	pf, err := pe.NewFile(bytes.NewReader(bv.AsRef()))
	if err != nil {
		return nil, dbgerr.New(dbgerr.BadDebugFile, "pe: %v", err)
	}

	o := &Object{pf: pf, arch: archFromMachine(pf.Machine)}
	o.sizeOfImage = sizeOfImage(pf)
	o.codeID = common.CodeIdFromBytes([]byte(fmt.Sprintf("%08x%x", pf.TimeDateStamp, o.sizeOfImage)))

	if guid, age, ok := codeViewDebugID(pf); ok {
		o.debugID = common.DebugIdFromGUIDAge(guid, age)
		o.haveDebug = true
	}

	return o, nil
}

func (o *Object) FileFormat() objfile.FileFormat { return objfile.FormatPe }
func (o *Object) Arch() common.Arch              { return o.arch }
func (o *Object) LoadAddress() uint64            { return imageBase(o.pf) }
func (o *Object) IsMalformed() bool              { return o.malformed }
func (o *Object) CodeId() (common.CodeId, bool)  { return o.codeID, !o.codeID.IsNil() }
func (o *Object) DebugId() common.DebugId         { return o.debugID }
func (o *Object) HasSources() bool                { return false }

func (o *Object) Kind() objfile.ObjectKind {
	const characteristicDLL = 0x2000
	if o.pf.Characteristics&characteristicDLL != 0 {
		return objfile.KindLibrary
	}
	return objfile.KindExecutable
}

func (o *Object) HasDebugInfo() bool {
	return o.pf.Section(".debug_info") != nil
}

func (o *Object) HasUnwindInfo() bool {
	_, size := directory(o.pf, imageDirectoryEntryException)
	return size > 0
}

func (o *Object) HasSymbols() bool { return len(o.Symbols()) > 0 }

func (o *Object) Symbols() []common.Symbol {
	out := make([]common.Symbol, 0, len(o.pf.Symbols))
	for _, s := range o.pf.Symbols {
		const sectionNumberUndefined = 0
		if s.SectionNumber <= sectionNumberUndefined || int(s.SectionNumber) > len(o.pf.Sections) {
			continue
		}
		const functionType = 0x20
		if s.Type != functionType {
			continue
		}
		sec := o.pf.Sections[s.SectionNumber-1]
		name := common.NewName(s.Name, common.LangUnknown)
		out = append(out, common.Symbol{Name: &name, Address: uint64(sec.VirtualAddress + s.Value)})
	}
	return out
}

func (o *Object) SymbolMap() common.SymbolMap { return common.NewSymbolMap(o.Symbols()) }

func (o *Object) DebugSession() (objfile.DebugSession, error) {
	return dwarfsession.NewFromPE(o.pf, o.arch, o.LoadAddress())
}

// ExceptionDirectory returns the raw .pdata contents (x64 RUNTIME_FUNCTION
// array) and the image base, for cfi.WritePEUnwind to walk.
func (o *Object) ExceptionDirectory() ([]byte, uint64, error) {
	rva, size := directory(o.pf, imageDirectoryEntryException)
	if size == 0 {
		return nil, 0, dbgerr.New(dbgerr.MissingDebugInfo, "pe: no exception directory")
	}
	data, err := readAtRVA(o.pf, rva, size)
	if err != nil {
		return nil, 0, err
	}
	return data, imageBase(o.pf), nil
}

// WriteCFI appends this image's x64 unwind information to w, in Breakpad
// STACK CFI form, resolving UNWIND_INFO records by RVA against whichever
// section contains them.
func (o *Object) WriteCFI(w *cfi.Writer) error {
	pdata, _, err := o.ExceptionDirectory()
	if err != nil {
		return err
	}
	return cfi.WritePEUnwind(w, pdata, func(rva uint32, size uint32) ([]byte, error) {
		return readAtRVA(o.pf, rva, size)
	})
}

func archFromMachine(m uint16) common.Arch {
	switch m {
	case pe.IMAGE_FILE_MACHINE_I386:
		return common.ArchX86
	case pe.IMAGE_FILE_MACHINE_AMD64:
		return common.ArchX86_64
	case pe.IMAGE_FILE_MACHINE_ARM, pe.IMAGE_FILE_MACHINE_ARMNT:
		return common.ArchArmV7
	case pe.IMAGE_FILE_MACHINE_ARM64:
		return common.ArchArm64
	default:
		return common.ArchUnknown
	}
}

func imageBase(pf *pe.File) uint64 {
	switch oh := pf.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		return uint64(oh.ImageBase)
	case *pe.OptionalHeader64:
		return oh.ImageBase
	default:
		return 0
	}
}

func sizeOfImage(pf *pe.File) uint32 {
	switch oh := pf.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		return oh.SizeOfImage
	case *pe.OptionalHeader64:
		return oh.SizeOfImage
	default:
		return 0
	}
}

// directory returns the (virtual address, size) of data directory index i.
func directory(pf *pe.File, i int) (uint32, uint32) {
	switch oh := pf.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		if i >= len(oh.DataDirectory) {
			return 0, 0
		}
		return oh.DataDirectory[i].VirtualAddress, oh.DataDirectory[i].Size
	case *pe.OptionalHeader64:
		if i >= len(oh.DataDirectory) {
			return 0, 0
		}
		return oh.DataDirectory[i].VirtualAddress, oh.DataDirectory[i].Size
	default:
		return 0, 0
	}
}

// readAtRVA finds the section containing rva and returns size bytes
// starting there.
func readAtRVA(pf *pe.File, rva uint32, size uint32) ([]byte, error) {
	for _, s := range pf.Sections {
		if rva < s.VirtualAddress || rva >= s.VirtualAddress+s.VirtualSize {
			continue
		}
		data, err := s.Data()
		if err != nil {
			return nil, dbgerr.New(dbgerr.BadDebugFile, "pe: section data: %v", err)
		}
		off := rva - s.VirtualAddress
		if uint64(off)+uint64(size) > uint64(len(data)) {
			return nil, dbgerr.New(dbgerr.BadDebugFile, "pe: directory overruns section")
		}
		return data[off : off+size], nil
	}
	return nil, dbgerr.New(dbgerr.BadDebugFile, "pe: rva 0x%x not in any section", rva)
}

// codeViewDebugID walks the debug directory looking for an
// IMAGE_DEBUG_TYPE_CODEVIEW entry carrying an "RSDS" record, and returns
// its GUID and age.
func codeViewDebugID(pf *pe.File) (guid [16]byte, age uint32, ok bool) {
	rva, size := directory(pf, imageDirectoryEntryDebug)
	if size == 0 {
		return guid, 0, false
	}
	dir, err := readAtRVA(pf, rva, size)
	if err != nil {
		return guid, 0, false
	}

	const entrySize = 28
	for off := 0; off+entrySize <= len(dir); off += entrySize {
		entryType := binary.LittleEndian.Uint32(dir[off+12 : off+16])
		if entryType != imageDebugTypeCodeview {
			continue
		}
		dataSize := binary.LittleEndian.Uint32(dir[off+16 : off+20])
		dataRVA := binary.LittleEndian.Uint32(dir[off+20 : off+24])
		cv, err := readAtRVA(pf, dataRVA, dataSize)
		if err != nil || len(cv) < 24 || string(cv[0:4]) != "RSDS" {
			continue
		}
		copy(guid[:], cv[4:20])
		age = binary.LittleEndian.Uint32(cv[20:24])
		return guid, age, true
	}
	return guid, 0, false
}
