package objfile

import (
	"github.com/crashkit/symbolic/common"
)

// ObjectKind is the closed set of purposes an Object can serve.
type ObjectKind int

const (
	KindNone ObjectKind = iota
	KindRelocatable
	KindExecutable
	KindLibrary
	KindDump
	KindDebug
	KindSources
	KindOther
)

var objectKindCodes = map[ObjectKind]string{
	KindNone:        "none",
	KindRelocatable: "rel",
	KindExecutable:  "exe",
	KindLibrary:     "lib",
	KindDump:        "dump",
	KindDebug:       "dbg",
	KindSources:     "src",
	KindOther:       "other",
}

func (k ObjectKind) String() string {
	if s, ok := objectKindCodes[k]; ok {
		return s
	}
	return "other"
}

// Object is the uniform interface every concrete format parser
// (objfile/elf, objfile/macho, objfile/pe, objfile/pdb, objfile/breakpad,
// objfile/wasm) must implement.
type Object interface {
	FileFormat() FileFormat
	CodeId() (common.CodeId, bool)
	DebugId() common.DebugId
	Arch() common.Arch
	Kind() ObjectKind
	LoadAddress() uint64
	HasSymbols() bool
	HasDebugInfo() bool
	HasUnwindInfo() bool
	HasSources() bool
	IsMalformed() bool

	// Symbols returns every public symbol found, in whatever order the
	// underlying symbol table stores them.
	Symbols() []common.Symbol
	// SymbolMap returns the same symbols, normalized per
	// common.NewSymbolMap's invariants.
	SymbolMap() common.SymbolMap

	// DebugSession builds a (possibly expensive) session over this
	// object's debug information. Callers that only need symbols should
	// avoid calling this.
	DebugSession() (DebugSession, error)
}

// DebugSession is a (possibly lazy) view over one object's debug
// information: compile units, inlined function trees, and the file list
// they reference. Not safe for concurrent use across goroutines without
// external serialization.
type DebugSession interface {
	// Functions returns the function stream in ascending start-address
	// order. Each element may carry an error instead of a function, for a
	// sub-tree the session chose to skip rather than abort on.
	Functions() ([]FunctionOrError, error)
	// Files returns the union of source files referenced by the session.
	Files() ([]common.FileEntry, error)
	// SourceByPath resolves embedded source (sourcebundle or DWARF5
	// .debug_line_str) for path, if present.
	SourceByPath(path string) (string, bool, error)
}

// FunctionOrError pairs a Function with a possible per-function error, so a
// DebugSession can surface a malformed sub-tree without aborting the whole
// stream.
type FunctionOrError struct {
	Function *common.Function
	Err      error
}
