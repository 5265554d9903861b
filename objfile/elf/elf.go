// Package elf implements objfile.Object over ELF executables, shared
// libraries and debug companions, on top of the standard library's
// debug/elf package -- the same package the toolkit this was adapted from
// already used for its ARM coprocessor debug sessions.
package elf

import (
	"bytes"
	"compress/zlib"
	"debug/elf"
	"encoding/binary"
	"io"

	"github.com/crashkit/symbolic/common"
	"github.com/crashkit/symbolic/dbgerr"
	"github.com/crashkit/symbolic/dwarfsession"
	"github.com/crashkit/symbolic/logger"
	"github.com/crashkit/symbolic/objfile"
)

// Object wraps a parsed ELF file.
type Object struct {
	bv  common.ByteView
	ef  *elf.File
	arch common.Arch

	codeID    common.CodeId
	haveCode  bool
	debugID   common.DebugId
	kind      objfile.ObjectKind
	loadAddr  uint64
	malformed bool
}

// Open parses the ELF container backed by bv.
func Open(bv common.ByteView) (*Object, error) {
	ef, err := elf.NewFile(bytes.NewReader(bv.AsRef()))
	if err != nil {
		return nil, dbgerr.New(dbgerr.BadDebugFile, "elf: %v", err)
	}

	o := &Object{bv: bv, ef: ef, arch: archFromMachine(ef.Machine)}
	o.loadAddr = firstLoadAddress(ef)
	o.kind = classify(ef)
	o.codeID, o.haveCode = buildID(ef)

	if o.haveCode && len(o.codeID.Bytes()) >= 16 {
		o.debugID = common.DebugIdFromBuildId(o.codeID.Bytes()[:16], isLittleEndian(ef), 0)
	} else {
		o.debugID = foldTextSection(ef)
	}

	if sectionMissing(ef, ".text") && o.kind != objfile.KindRelocatable {
		o.kind = objfile.KindDebug
	}

	return o, nil
}

func (o *Object) FileFormat() objfile.FileFormat { return objfile.FormatElf }
func (o *Object) Arch() common.Arch              { return o.arch }
func (o *Object) Kind() objfile.ObjectKind        { return o.kind }
func (o *Object) LoadAddress() uint64             { return o.loadAddr }
func (o *Object) IsMalformed() bool               { return o.malformed }

func (o *Object) CodeId() (common.CodeId, bool) { return o.codeID, o.haveCode }
func (o *Object) DebugId() common.DebugId        { return o.debugID }

func (o *Object) HasDebugInfo() bool {
	return o.ef.Section(".debug_info") != nil
}

func (o *Object) HasUnwindInfo() bool {
	return o.ef.Section(".debug_frame") != nil || o.ef.Section(".eh_frame") != nil
}

func (o *Object) HasSources() bool { return false }

func (o *Object) HasSymbols() bool {
	return len(o.Symbols()) > 0
}

// Symbols returns STT_FUNC symbols whose value lies within the image's load
// address and an executable section.
func (o *Object) Symbols() []common.Symbol {
	raw, err := o.ef.Symbols()
	if err != nil {
		return nil
	}

	execSections := make(map[int]bool)
	for i, s := range o.ef.Sections {
		if s.Flags&elf.SHF_EXECINSTR != 0 {
			execSections[i+1] = true // section header indices are 1-based in Symbol.Section
		}
	}

	out := make([]common.Symbol, 0, len(raw))
	for _, s := range raw {
		if elf.ST_TYPE(s.Info) != elf.STT_FUNC {
			continue
		}
		if s.Value < o.loadAddr {
			continue
		}
		if !execSections[int(s.Section)] {
			continue
		}
		name := common.NewName(s.Name, common.LangUnknown)
		out = append(out, common.Symbol{Name: &name, Address: s.Value, Size: s.Size})
	}
	return out
}

func (o *Object) SymbolMap() common.SymbolMap {
	return common.NewSymbolMap(o.Symbols())
}

// Section returns the (possibly decompressed) contents of section name, and
// its address. Compressed sections (SHF_COMPRESSED, or the legacy ".z*"
// name with a "ZLIB" + 8-byte big-endian size prefix) are inflated
// on-demand; the decompressed buffer is then owned by the Object rather
// than borrowed from the mapped file.
func (o *Object) Section(name string) ([]byte, uint64) {
	sec := o.ef.Section(name)
	if sec == nil {
		if legacy := o.ef.Section(legacyCompressedName(name)); legacy != nil {
			data, err := legacy.Data()
			if err != nil {
				return nil, 0
			}
			decompressed, err := inflateLegacy(data)
			if err != nil {
				logger.Logf("elf", "failed to inflate legacy compressed section %s: %v", name, err)
				return nil, 0
			}
			return decompressed, legacy.Addr
		}
		return nil, 0
	}

	data, err := sec.Data()
	if err != nil {
		return nil, 0
	}
	return data, sec.Addr
}

func legacyCompressedName(name string) string {
	if len(name) > 1 && name[0] == '.' {
		return "." + "z" + name[1:]
	}
	return name
}

func inflateLegacy(data []byte) ([]byte, error) {
	if len(data) < 12 || string(data[:4]) != "ZLIB" {
		return nil, dbgerr.New(dbgerr.BadDebugFile, "legacy compressed section missing ZLIB prefix")
	}
	r, err := zlib.NewReader(bytes.NewReader(data[12:]))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// DWARF returns the underlying *elf.File, from which debug/dwarf data can
// be loaded; the error is always nil.
func (o *Object) DWARF() (*elf.File, error) { return o.ef, nil }

func (o *Object) DebugSession() (objfile.DebugSession, error) {
	return dwarfsession.NewFromELF(o.ef, o.arch, o.LoadAddress())
}

func archFromMachine(m elf.Machine) common.Arch {
	switch m {
	case elf.EM_386:
		return common.ArchX86
	case elf.EM_X86_64:
		return common.ArchX86_64
	case elf.EM_ARM:
		return common.ArchArmV7
	case elf.EM_AARCH64:
		return common.ArchArm64
	case elf.EM_MIPS:
		return common.ArchMips
	case elf.EM_PPC:
		return common.ArchPpc
	case elf.EM_PPC64:
		return common.ArchPpc64
	default:
		return common.ArchUnknown
	}
}

func isLittleEndian(ef *elf.File) bool {
	return ef.ByteOrder.String() == binary.LittleEndian.String()
}

func firstLoadAddress(ef *elf.File) uint64 {
	for _, p := range ef.Progs {
		if p.Type == elf.PT_LOAD {
			return p.Vaddr
		}
	}
	return 0
}

func classify(ef *elf.File) objfile.ObjectKind {
	switch ef.Type {
	case elf.ET_EXEC:
		return objfile.KindExecutable
	case elf.ET_DYN:
		return objfile.KindLibrary
	case elf.ET_REL:
		return objfile.KindRelocatable
	case elf.ET_CORE:
		return objfile.KindDump
	default:
		return objfile.KindOther
	}
}

func sectionMissing(ef *elf.File, name string) bool {
	return ef.Section(name) == nil
}

// buildID extracts the GNU build-id note's payload, searching PT_NOTE
// segments first (always present even when section headers are stripped)
// and falling back to the named section.
func buildID(ef *elf.File) (common.CodeId, bool) {
	for _, p := range ef.Progs {
		if p.Type != elf.PT_NOTE {
			continue
		}
		r := p.Open()
		data, err := io.ReadAll(r)
		if err != nil {
			continue
		}
		if id, ok := findBuildIDNote(data, ef.ByteOrder); ok {
			return id, true
		}
	}

	if sec := ef.Section(".note.gnu.build-id"); sec != nil {
		data, err := sec.Data()
		if err == nil {
			if id, ok := findBuildIDNote(data, ef.ByteOrder); ok {
				return id, true
			}
		}
	}

	return common.CodeId{}, false
}

const noteTypeGNUBuildID = 3

func findBuildIDNote(data []byte, order binary.ByteOrder) (common.CodeId, bool) {
	for len(data) >= 12 {
		nameSize := order.Uint32(data[0:4])
		descSize := order.Uint32(data[4:8])
		noteType := order.Uint32(data[8:12])
		off := 12
		nameEnd := off + align4(int(nameSize))
		descEnd := nameEnd + align4(int(descSize))
		if descEnd > len(data) || nameEnd < off {
			return common.CodeId{}, false
		}
		name := data[off : off+int(nameSize)]
		desc := data[nameEnd : nameEnd+int(descSize)]
		if noteType == noteTypeGNUBuildID && bytes.HasPrefix(name, []byte("GNU")) {
			return common.CodeIdFromBytes(desc), true
		}
		data = data[descEnd:]
	}
	return common.CodeId{}, false
}

func align4(n int) int {
	if n%4 == 0 {
		return n
	}
	return n + (4 - n%4)
}

// foldTextSection builds a fallback DebugId by XOR-folding the first 4 KiB
// of .text into a 16-byte UUID, used when no build-id note is present.
func foldTextSection(ef *elf.File) common.DebugId {
	sec := ef.Section(".text")
	if sec == nil {
		return common.DebugId{}
	}
	data, err := sec.Data()
	if err != nil {
		return common.DebugId{}
	}
	if len(data) > 4096 {
		data = data[:4096]
	}

	var uuid [16]byte
	for i, b := range data {
		uuid[i%16] ^= b
	}
	return common.DebugId{UUID: uuid}
}
