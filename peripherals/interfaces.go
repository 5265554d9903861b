// Package peripherals collects the interface boundaries for
// functionality this toolkit's core deliberately excludes: demangling,
// source-bundle ZIP reading, minidump processing, Portable PDB sequence
// points, SourceMapCache building, and Unreal Engine crash-context XML.
//
// None of these have an implementation here. The package names the
// boundaries where a caller would plug one in (source files held in a
// bundle rather than in an object's own debug data, for instance, are a
// SourceBundleReader's job) without the core depending on any concrete
// demangler, archive reader, or XML parser.
package peripherals

import "github.com/crashkit/symbolic/common"

// Demangler turns a mangled Name into a human-readable display string.
// Itanium C++, MSVC, Rust and Swift manglings all need different logic
// and different third-party support; this toolkit only records enough
// provenance (common.Name.Mangling/Language) to dispatch to one.
type Demangler interface {
	Demangle(name common.Name) (string, error)
}

// SourceBundleReader resolves a source file's contents from a packaged
// bundle (a zip of sources keyed by path) rather than from an object's
// own embedded debug_line_str.
type SourceBundleReader interface {
	ReadFile(path string) ([]byte, error)
}

// StackFrame is one resolved frame of a MinidumpProcessor's stack trace.
type StackFrame struct {
	InstructionAddr uint64
	ModuleName      string
	FunctionName    string
}

// StackTrace is the ordered frame list a MinidumpProcessor produces for
// one thread.
type StackTrace struct {
	ThreadID uint32
	Frames   []StackFrame
}

// MinidumpProcessor walks a Windows/Breakpad minidump and produces raw
// stack traces, leaving symbolication (mapping addresses to names) to the
// caller via this toolkit's SymCache/CFI output.
type MinidumpProcessor interface {
	Process(bv common.ByteView) (StackTrace, error)
}

// SequencePoint is one IL-offset-to-source-line mapping a .NET Portable
// PDB associates with a method body.
type SequencePoint struct {
	ILOffset uint32
	Line     uint32
	Column   uint32
}

// PortablePDBReader reads sequence points for a method, identified by its
// metadata token, out of a .NET Portable PDB (ECMA-335 format, unrelated
// to the MSF-based PDB objfile/pdb reads).
type PortablePDBReader interface {
	SequencePoints(methodToken uint32) ([]SequencePoint, error)
}

// SourceMapCacheBuilder builds a random-access cache correlating a
// minified JavaScript source, its expanded counterpart, and a source map
// between them -- the SymCache of the web/JS world, out of scope here.
type SourceMapCacheBuilder interface {
	Build(sourceMap, minifiedSource, expandedSource []byte) ([]byte, error)
}

// CrashContext is the subset of an Unreal Engine crash-context XML
// document worth surfacing to a caller (build id, platform, and
// arbitrary key/value context entries).
type CrashContext struct {
	BuildID  string
	Platform string
	Extra    map[string]string
}

// UnrealContextParser parses Unreal Engine's crash-context XML sidecar
// into a CrashContext.
type UnrealContextParser interface {
	Parse(xml []byte) (CrashContext, error)
}
