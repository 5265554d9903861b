// Package dwarfsession implements the DWARF DebugSession (C4): compilation
// units, line programs and inline DIE trees turned into a normalized stream
// of common.Function values by the funcbuilder package.
//
// This mirrors, and generalizes, the pattern the teacher toolkit used for
// its single-architecture ARM coprocessor debug session: walk debug/dwarf's
// entry reader once per compile unit, bucket entries by tag, then resolve
// names/ranges/lines against those buckets.
package dwarfsession

import (
	"debug/dwarf"
	"errors"
	"io"
	"sort"
	"sync"

	"github.com/crashkit/symbolic/common"
	"github.com/crashkit/symbolic/dbgerr"
	"github.com/crashkit/symbolic/funcbuilder"
	"github.com/crashkit/symbolic/logger"
	"github.com/crashkit/symbolic/objfile"
)

// sectionProvider is the minimal surface the session needs from a format
// parser: DWARF data plus the ability to fetch (possibly decompressed)
// named sections. The session itself reads no range lists: function and
// inlinee ranges come only from DW_AT_low_pc/DW_AT_high_pc.
type sectionProvider interface {
	DWARFData() (*dwarf.Data, error)
	Section(name string) ([]byte, uint64)
	ByteOrderLittleEndian() bool
}

// Session is a DWARF-backed objfile.DebugSession.
type Session struct {
	data        *dwarf.Data
	arch        common.Arch
	loadAddress uint64
	sections    sectionProvider

	once        sync.Once
	units       []*unit
	buildErr    error
	malformed   bool

	filesOnce sync.Once
	files     []common.FileEntry
}

type unit struct {
	entry     *dwarf.Entry
	compDir   string
	name      string
	lang      common.Language
	lineProg  []lineRow
	fileTable []common.FileInfo
	reader    *dwarf.Reader
}

type lineRow struct {
	address uint64
	file    common.FileInfo
	line    uint32
}

// New builds a Session directly from parsed DWARF data. Most callers should
// use NewFromELF/NewFromMachO/NewFromPE instead, which also wire up
// section access. Entries whose range is given only by DW_AT_ranges (with
// no DW_AT_low_pc/DW_AT_high_pc pair) are skipped.
func New(data *dwarf.Data, arch common.Arch, loadAddress uint64, sections sectionProvider) (*Session, error) {
	if data == nil {
		return nil, dbgerr.New(dbgerr.MissingDebugInfo, "no DWARF data available")
	}
	return &Session{data: data, arch: arch, loadAddress: loadAddress, sections: sections}, nil
}

func (s *Session) ensureUnits() {
	s.once.Do(func() {
		r := s.data.Reader()
		for {
			entry, err := r.Next()
			if err != nil {
				if !errors.Is(err, io.EOF) {
					s.buildErr = dbgerr.New(dbgerr.BadDebugFile, "dwarf: %v", err)
				}
				return
			}
			if entry == nil {
				return
			}
			if entry.Tag != dwarf.TagCompileUnit {
				continue
			}

			u := &unit{entry: entry}
			if v, ok := entry.Val(dwarf.AttrCompDir).(string); ok {
				u.compDir = v
			}
			if v, ok := entry.Val(dwarf.AttrName).(string); ok {
				u.name = v
			}
			if v, ok := entry.Val(dwarf.AttrLanguage).(int64); ok {
				u.lang = common.LanguageFromDwarf(v)
			}

			lines, files, err := readLineProgram(s.data, entry)
			if err != nil {
				logger.Logf("dwarf", "skipping line program for unit %s: %v", u.name, err)
				s.malformed = true
			}
			u.lineProg = lines
			u.fileTable = files

			s.units = append(s.units, u)
			r.SkipChildren()
		}
	})
}

// readLineProgram decodes one compile unit's line number program into a
// deduplicated, address-sorted sequence, discarding any sequence whose
// addresses turn out non-monotonic (a malformed compiler emission, not
// something we try to repair). It also returns the unit's file table,
// indexed the same way DW_AT_call_file/DW_AT_decl_file reference it, so
// callers outside the line program itself (inlined_subroutine call sites)
// can resolve a raw file index the same way ordinary line rows do.
func readLineProgram(data *dwarf.Data, cu *dwarf.Entry) ([]lineRow, []common.FileInfo, error) {
	lr, err := data.LineReader(cu)
	if err != nil {
		return nil, nil, err
	}
	if lr == nil {
		return nil, nil, nil
	}

	var out []lineRow
	var seq []lineRow
	monotonic := true

	flush := func() {
		if monotonic {
			out = append(out, seq...)
		}
		seq = nil
		monotonic = true
	}

	var le dwarf.LineEntry
	for {
		if err := lr.Next(&le); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return out, fileTable(lr), err
		}
		if le.EndSequence {
			flush()
			continue
		}
		if len(seq) > 0 && le.Address < seq[len(seq)-1].address {
			monotonic = false
		}
		fi := common.FileInfo{}
		if le.File != nil {
			fi = common.FileInfo{Name: []byte(le.File.Name)}
		}
		seq = append(seq, lineRow{address: le.Address, file: fi, line: uint32(le.Line)})
	}
	flush()

	sort.SliceStable(out, func(i, j int) bool { return out[i].address < out[j].address })

	deduped := out[:0:0]
	for i, r := range out {
		if i > 0 && r.address == out[i-1].address && r.line == out[i-1].line {
			continue
		}
		deduped = append(deduped, r)
	}
	return deduped, fileTable(lr), nil
}

// fileTable snapshots a LineReader's file-name table as common.FileInfo
// values, indexed identically to DW_AT_call_file/DW_AT_decl_file and to
// dwarf.LineEntry.File's position within dwarf.LineReader.Files().
func fileTable(lr *dwarf.LineReader) []common.FileInfo {
	files := lr.Files()
	out := make([]common.FileInfo, len(files))
	for i, f := range files {
		if f == nil {
			continue
		}
		out[i] = common.FileInfo{Name: []byte(f.Name)}
	}
	return out
}

// Functions walks every compile unit's top-level subprograms and hands
// their ranges/lines/inlinees to funcbuilder.
func (s *Session) Functions() ([]objfile.FunctionOrError, error) {
	s.ensureUnits()
	if s.buildErr != nil {
		return nil, s.buildErr
	}

	var out []objfile.FunctionOrError
	for _, u := range s.units {
		fns, err := s.functionsForUnit(u)
		if err != nil {
			out = append(out, objfile.FunctionOrError{Err: err})
			continue
		}
		for _, f := range fns {
			out = append(out, objfile.FunctionOrError{Function: f})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		fi, fj := out[i].Function, out[j].Function
		if fi == nil || fj == nil {
			return false
		}
		return fi.Address < fj.Address
	})

	return out, nil
}

func (s *Session) functionsForUnit(u *unit) ([]*common.Function, error) {
	r := s.data.Reader()
	r.Seek(u.entry.Offset)
	top, err := r.Next() // re-read the compile unit entry itself
	if err != nil || top == nil {
		return nil, dbgerr.New(dbgerr.BadDebugFile, "dwarf: unable to re-enter compile unit")
	}

	var funcs []*common.Function
	if top.Children {
		if err := s.walkSiblings(r, u, &funcs); err != nil {
			return funcs, err
		}
	}
	return funcs, nil
}

// walkSiblings reads entries at the reader's current nesting level until it
// sees the terminating null entry, descending into non-subprogram
// containers (namespaces, lexical blocks) to find subprograms nested
// beneath them. A DW_TAG_subprogram's own subtree is consumed entirely by
// buildTopLevelFunction, so it never recurses further here.
func (s *Session) walkSiblings(r *dwarf.Reader, u *unit, funcs *[]*common.Function) error {
	for {
		entry, err := r.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return dbgerr.New(dbgerr.BadDebugFile, "dwarf: %v", err)
		}
		if entry == nil || entry.Tag == 0 {
			return nil
		}

		if entry.Tag == dwarf.TagSubprogram {
			fn, _, ferr := s.buildTopLevelFunction(r, entry, u)
			if ferr != nil {
				logger.Logf("dwarf", "skipping malformed subprogram: %v", ferr)
				s.malformed = true
				continue
			}
			if fn != nil {
				*funcs = append(*funcs, fn)
			}
			continue
		}

		if entry.Children {
			if err := s.walkSiblings(r, u, funcs); err != nil {
				return err
			}
		}
	}
}

func (s *Session) buildTopLevelFunction(r *dwarf.Reader, entry *dwarf.Entry, u *unit) (*common.Function, int, error) {
	low, high, ok := rangesOf(entry)
	if !ok {
		r.SkipChildren()
		return nil, 0, nil
	}

	name := resolveName(s.data, entry, 0)

	var inlinees []funcbuilder.InlineRecord
	if entry.Children {
		var walkErr error
		inlinees, walkErr = collectInlinees(s.data, r, 0, u.fileTable)
		if walkErr != nil {
			return nil, 0, walkErr
		}
	}

	lines := linesInRange(u.lineProg, low, high)

	outer := funcbuilder.OuterFunction{
		Name:           name,
		CompilationDir: []byte(u.compDir),
		Address:        low,
		Size:           high - low,
	}

	fn := funcbuilder.Build(outer, inlinees, lines)
	fn.Inline = false
	return fn, 0, nil
}

// collectInlinees walks the current entry's children (the reader must be
// positioned right after a parent with Children=true), returning every
// DW_TAG_inlined_subroutine found at any depth, tagged with its nesting
// depth relative to the outer subprogram.
func collectInlinees(data *dwarf.Data, r *dwarf.Reader, depth int, files []common.FileInfo) ([]funcbuilder.InlineRecord, error) {
	var out []funcbuilder.InlineRecord
	for {
		entry, err := r.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return out, err
		}
		if entry == nil {
			return out, nil
		}
		if entry.Tag == 0 {
			return out, nil
		}

		switch entry.Tag {
		case dwarf.TagInlinedSubroutine:
			low, high, ok := rangesOf(entry)
			if !ok {
				if entry.Children {
					r.SkipChildren()
				}
				continue
			}
			name := resolveName(data, entry, 0)
			callFile, callLine := callSite(entry, files)

			rec := funcbuilder.InlineRecord{
				Depth:    depth,
				Address:  low,
				Size:     high - low,
				Name:     name,
				CallFile: callFile,
				CallLine: callLine,
			}
			out = append(out, rec)

			if entry.Children {
				nested, err := collectInlinees(data, r, depth+1, files)
				if err != nil {
					return out, err
				}
				out = append(out, nested...)
			}

		case dwarf.TagLexDwarfBlock:
			if entry.Children {
				nested, err := collectInlinees(data, r, depth, files)
				if err != nil {
					return out, err
				}
				out = append(out, nested...)
			}

		default:
			if entry.Children {
				r.SkipChildren()
			}
		}
	}
}

// callSite reports the call-site file/line recorded on an
// inlined_subroutine. DW_AT_call_file is a raw index into the compile
// unit's line-program file table, not a usable name on its own, so it's
// resolved against the same per-unit file table readLineProgram already
// built for ordinary line rows.
func callSite(entry *dwarf.Entry, files []common.FileInfo) (common.FileInfo, uint32) {
	var file common.FileInfo
	var line uint32
	if v := entry.Val(dwarf.AttrCallFile); v != nil {
		if idx := int(toInt64(v)); idx >= 0 && idx < len(files) {
			file = files[idx]
		}
	}
	if v, ok := entry.Val(dwarf.AttrCallLine).(int64); ok {
		line = uint32(v)
	}
	return file, line
}

func rangesOf(entry *dwarf.Entry) (low, high uint64, ok bool) {
	lowVal := entry.Val(dwarf.AttrLowpc)
	lowpc, isUint := lowVal.(uint64)
	if !isUint {
		return 0, 0, false
	}

	highField := entry.AttrField(dwarf.AttrHighpc)
	if highField == nil {
		return 0, 0, false
	}
	switch highField.Class {
	case dwarf.ClassAddress:
		return lowpc, highField.Val.(uint64), true
	case dwarf.ClassConstant:
		return lowpc, lowpc + uint64(toInt64(highField.Val)), true
	default:
		return 0, 0, false
	}
}

func toInt64(v interface{}) int64 {
	switch x := v.(type) {
	case int64:
		return x
	case uint64:
		return int64(x)
	default:
		return 0
	}
}

func linesInRange(rows []lineRow, low, high uint64) []funcbuilder.LeafLine {
	var out []funcbuilder.LeafLine
	for i, r := range rows {
		if r.address < low || r.address >= high {
			continue
		}
		size := uint64(0)
		if i+1 < len(rows) {
			size = rows[i+1].address - r.address
		} else {
			size = high - r.address
		}
		out = append(out, funcbuilder.LeafLine{Address: r.address, Size: size, File: r.file, Line: r.line})
	}
	return out
}

const maxOriginDepth = 32

// resolveName implements the priority order from spec.md §4.4:
// DW_AT_linkage_name (or its MIPS variant) -> DW_AT_name -> recursive
// abstract_origin/specification resolution, bounded to guard against
// reference cycles in malformed input.
func resolveName(data *dwarf.Data, entry *dwarf.Entry, depth int) common.Name {
	if depth > maxOriginDepth {
		return common.Name{}
	}

	if v, ok := entry.Val(dwarf.AttrLinkageName).(string); ok && v != "" {
		return common.NewName(v, common.LangUnknown)
	}
	// Some toolchains (old GCC/MIPS) emit the linkage name under the
	// vendor-specific 0x2007 attribute instead of the DWARF4 standard one.
	if v, ok := entry.Val(dwarf.Attr(0x2007)).(string); ok && v != "" {
		return common.NewName(v, common.LangUnknown)
	}
	if v, ok := entry.Val(dwarf.AttrName).(string); ok && v != "" {
		return common.NewName(v, common.LangUnknown)
	}

	if origin := followReference(data, entry, dwarf.AttrAbstractOrigin); origin != nil {
		return resolveName(data, origin, depth+1)
	}
	if spec := followReference(data, entry, dwarf.AttrSpecification); spec != nil {
		return resolveName(data, spec, depth+1)
	}

	return common.Name{}
}

func followReference(data *dwarf.Data, entry *dwarf.Entry, attr dwarf.Attr) *dwarf.Entry {
	off, ok := entry.Val(attr).(dwarf.Offset)
	if !ok {
		return nil
	}
	r := data.Reader()
	r.Seek(off)
	target, err := r.Next()
	if err != nil || target == nil {
		return nil
	}
	return target
}

// Files returns the union of compilation directories/names referenced by
// every compile unit.
func (s *Session) Files() ([]common.FileEntry, error) {
	s.ensureUnits()
	if s.buildErr != nil {
		return nil, s.buildErr
	}

	s.filesOnce.Do(func() {
		seen := make(map[string]bool)
		for _, u := range s.units {
			for _, row := range u.lineProg {
				key := string(row.file.Name)
				if seen[key] {
					continue
				}
				seen[key] = true
				s.files = append(s.files, common.FileEntry{
					FileInfo:       row.file,
					CompilationDir: []byte(u.compDir),
				})
			}
		}
	})
	return s.files, nil
}

// SourceByPath resolves embedded source. This base DWARF session has no
// embedded-source mechanism of its own (that's DWARF5 .debug_line_str or a
// sourcebundle, delegated to peripherals.SourceBundleReader); it always
// reports "not found" rather than erroring.
func (s *Session) SourceByPath(path string) (string, bool, error) {
	return "", false, nil
}

// IsMalformed reports whether any unit or function was skipped due to
// malformed input encountered during parsing.
func (s *Session) IsMalformed() bool {
	s.ensureUnits()
	return s.malformed
}
