// Package macho implements objfile.Object over Mach-O executables, dylibs
// and dSYM companions (single-arch or fat/universal), on top of the
// standard library's debug/macho package -- adapted from objfile/elf's
// debug/elf-backed Object the way the teacher's own ARM-specific debug
// session generalizes across coprocessor variants.
package macho

import (
	"bytes"
	"debug/macho"

	"github.com/crashkit/symbolic/common"
	"github.com/crashkit/symbolic/dbgerr"
	"github.com/crashkit/symbolic/dwarfsession"
	"github.com/crashkit/symbolic/objfile"
)

// Object wraps a single Mach-O slice. OpenFat returns one Object per
// architecture slice in a universal binary.
type Object struct {
	mf   *macho.File
	arch common.Arch

	codeID   common.CodeId
	haveCode bool
	debugID  common.DebugId
	kind     objfile.ObjectKind
	loadAddr uint64
}

// Open parses a single-architecture Mach-O file.
func Open(bv common.ByteView) (*Object, error) {
	mf, err := macho.NewFile(bytes.NewReader(bv.AsRef()))
	if err != nil {
		return nil, dbgerr.New(dbgerr.BadDebugFile, "macho: %v", err)
	}
	return newObject(mf)
}

// OpenFat parses a fat/universal Mach-O, returning one Object per slice.
func OpenFat(bv common.ByteView) ([]*Object, error) {
	ff, err := macho.NewFatFile(bytes.NewReader(bv.AsRef()))
	if err != nil {
		return nil, dbgerr.New(dbgerr.BadDebugFile, "macho: fat: %v", err)
	}
	out := make([]*Object, 0, len(ff.Arches))
	for _, a := range ff.Arches {
		o, err := newObject(a.File)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

func newObject(mf *macho.File) (*Object, error) {
	o := &Object{mf: mf, arch: archFromCPU(mf.Cpu)}
	o.loadAddr = firstTextAddress(mf)
	o.kind = classify(mf)
	o.codeID, o.haveCode = uuidLoadCommand(mf)
	if o.haveCode {
		o.debugID = common.DebugIdFromBuildId(o.codeID.Bytes(), false, 0)
	}
	return o, nil
}

func (o *Object) FileFormat() objfile.FileFormat { return objfile.FormatMacho }
func (o *Object) Arch() common.Arch              { return o.arch }
func (o *Object) Kind() objfile.ObjectKind        { return o.kind }
func (o *Object) LoadAddress() uint64             { return o.loadAddr }
func (o *Object) IsMalformed() bool               { return false }
func (o *Object) CodeId() (common.CodeId, bool)   { return o.codeID, o.haveCode }
func (o *Object) DebugId() common.DebugId          { return o.debugID }

func (o *Object) HasDebugInfo() bool {
	return o.mf.Segment("__DWARF") != nil
}

func (o *Object) HasUnwindInfo() bool {
	return o.mf.Section("__unwind_info") != nil || o.mf.Section("__eh_frame") != nil
}

func (o *Object) HasSources() bool { return false }
func (o *Object) HasSymbols() bool { return len(o.Symbols()) > 0 }

// Symbols returns every symbol table entry that names code within an
// executable section, mirroring the filtering objfile/elf applies for
// STT_FUNC entries -- Mach-O has no equivalent type bit, so N_SECT entries
// in a text-flagged section stand in for it.
func (o *Object) Symbols() []common.Symbol {
	if o.mf.Symtab == nil {
		return nil
	}
	execSections := make(map[uint8]bool)
	for i, s := range o.mf.Sections {
		if s.Flags&0x80000400 != 0 || s.Name == "__text" {
			execSections[uint8(i+1)] = true
		}
	}

	out := make([]common.Symbol, 0, len(o.mf.Symtab.Syms))
	for _, s := range o.mf.Symtab.Syms {
		const nTypeMask = 0x0e
		const nSect = 0x0e
		if s.Type&nTypeMask != nSect {
			continue
		}
		if !execSections[s.Sect] {
			continue
		}
		name := common.NewName(s.Name, common.LangUnknown)
		out = append(out, common.Symbol{Name: &name, Address: s.Value})
	}
	return out
}

func (o *Object) SymbolMap() common.SymbolMap { return common.NewSymbolMap(o.Symbols()) }

func (o *Object) DebugSession() (objfile.DebugSession, error) {
	return dwarfsession.NewFromMachO(o.mf, o.arch, o.LoadAddress())
}

func archFromCPU(cpu macho.Cpu) common.Arch {
	switch cpu {
	case macho.CpuAmd64:
		return common.ArchX86_64
	case macho.Cpu386:
		return common.ArchX86
	case macho.CpuArm:
		return common.ArchArmV7
	case macho.CpuArm64:
		return common.ArchArm64
	case macho.CpuPpc:
		return common.ArchPpc
	case macho.CpuPpc64:
		return common.ArchPpc64
	default:
		return common.ArchUnknown
	}
}

// mhDsym is MH_DSYM (0xa); the standard library's debug/macho package
// doesn't expose a Type constant for it since dSYM bundles aren't a format
// the Go toolchain itself ever needs to classify.
const mhDsym = 0xa

func classify(mf *macho.File) objfile.ObjectKind {
	switch uint32(mf.Type) {
	case uint32(macho.TypeExec):
		return objfile.KindExecutable
	case uint32(macho.TypeDylib):
		return objfile.KindLibrary
	case uint32(macho.TypeObj):
		return objfile.KindRelocatable
	case mhDsym:
		return objfile.KindDebug
	default:
		return objfile.KindOther
	}
}

func firstTextAddress(mf *macho.File) uint64 {
	if seg := mf.Segment("__TEXT"); seg != nil {
		return seg.Addr
	}
	return 0
}

// uuidLoadCommand scans the load commands for LC_UUID and returns its
// 16-byte payload as the object's code id.
func uuidLoadCommand(mf *macho.File) (common.CodeId, bool) {
	for _, l := range mf.Loads {
		raw, ok := l.(macho.LoadBytes)
		if !ok {
			continue
		}
		b := []byte(raw)
		if len(b) < 8 {
			continue
		}
		const lcUUID = 0x1b
		cmd := mf.ByteOrder.Uint32(b[0:4])
		if cmd != lcUUID {
			continue
		}
		if len(b) < 8+16 {
			continue
		}
		return common.CodeIdFromBytes(b[8 : 8+16]), true
	}
	return common.CodeId{}, false
}
