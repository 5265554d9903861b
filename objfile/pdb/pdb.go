package pdb

import (
	"github.com/crashkit/symbolic/cfi"
	"github.com/crashkit/symbolic/common"
	"github.com/crashkit/symbolic/dbgerr"
	"github.com/crashkit/symbolic/objfile"
)

// Object wraps a parsed PDB file.
type Object struct {
	msf *msfFile
	arch common.Arch

	debugID       common.DebugId
	haveDebugID   bool
	frameStream   int
	haveFrameData bool
}

// Open parses the PDB container backed by bv.
func Open(bv common.ByteView) (*Object, error) {
	m, err := openMSF(bv.AsRef())
	if err != nil {
		return nil, err
	}

	o := &Object{msf: m, arch: common.ArchUnknown}
	if guid, age, err := readPDBInfo(m); err == nil {
		o.debugID = common.DebugIdFromGUIDAge(guid, age)
		o.haveDebugID = true
	}
	if idx, ok := newFrameDataStreamIndex(m); ok {
		o.frameStream, o.haveFrameData = idx, true
	}

	return o, nil
}

func (o *Object) FileFormat() objfile.FileFormat { return objfile.FormatPdb }
func (o *Object) Arch() common.Arch              { return o.arch }
func (o *Object) Kind() objfile.ObjectKind        { return objfile.KindDebug }
func (o *Object) LoadAddress() uint64             { return 0 }
func (o *Object) IsMalformed() bool               { return false }
func (o *Object) CodeId() (common.CodeId, bool)   { return common.CodeId{}, false }
func (o *Object) DebugId() common.DebugId          { return o.debugID }
func (o *Object) HasDebugInfo() bool               { return false }
func (o *Object) HasUnwindInfo() bool              { return o.haveFrameData }
func (o *Object) HasSources() bool                 { return false }
func (o *Object) HasSymbols() bool                 { return false }
func (o *Object) Symbols() []common.Symbol         { return nil }
func (o *Object) SymbolMap() common.SymbolMap      { return common.NewSymbolMap(nil) }

// DebugSession always reports no functions: this reader decodes the MSF
// container, PDB Info stream, and DBI optional-debug-header table (enough
// for DebugId and CFI) but not the CodeView module symbol/line substreams
// a full function tree would need.
func (o *Object) DebugSession() (objfile.DebugSession, error) {
	if !o.haveDebugID {
		return nil, dbgerr.New(dbgerr.MissingDebugInfo, "pdb: no PDB info stream")
	}
	return emptySession{}, nil
}

type emptySession struct{}

func (emptySession) Functions() ([]objfile.FunctionOrError, error)    { return nil, nil }
func (emptySession) Files() ([]common.FileEntry, error)               { return nil, nil }
func (emptySession) SourceByPath(path string) (string, bool, error) { return "", false, nil }

// WriteCFI appends this PDB's frame-data-stream unwind information to w as
// STACK WIN records. resolveProgram resolves FrameFunc offsets against the
// /names stream; callers with no such resolution available may pass a
// function that always returns (\"\", false).
func (o *Object) WriteCFI(w *cfi.Writer, resolveProgram func(offset uint32) (string, bool)) error {
	if !o.haveFrameData {
		return dbgerr.New(dbgerr.MissingDebugInfo, "pdb: no New Frame Data stream")
	}
	records, err := cfi.ParsePDBFrameData(o.msf.stream(o.frameStream))
	if err != nil {
		return err
	}
	cfi.WritePDBFrameData(w, records, resolveProgram)
	return nil
}
