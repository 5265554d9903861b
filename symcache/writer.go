package symcache

import (
	"sort"

	"github.com/crashkit/symbolic/common"
	"github.com/crashkit/symbolic/logger"
)

// fillerFileID is the lineRecord.FileID value emitLines' gap filler rows use
// to mark themselves for Cache.Function to skip on replay (see emitLines).
// It is also the largest value a uint16 file id can hold, so the interned
// file table is capped one short of it (maxFileID) to guarantee a real
// file's id can never collide with the filler marker.
const (
	fillerFileID = 0xffff
	maxFileID    = fillerFileID - 1
)

// entry pairs a function-tree node with its parent pointer (nil for a
// top-level function or a synthetic public-symbol leaf), before final
// address sorting assigns it a stable index.
type entry struct {
	fn     *common.Function
	parent *common.Function
}

// Builder accumulates a SymCache from a DebugSession's function stream
// plus any public symbols not already covered by a function range.
type Builder struct {
	arch    common.Arch
	debugID common.DebugId

	entries []entry
	seen    map[*common.Function]bool

	strings    map[string]strRef
	stringsBuf []byte

	symbolIDs map[string]uint32
	symbols   []symbolRecord

	files     map[string]int
	fileOrder []fileRecord

	hasLines bool
}

// NewBuilder starts an empty SymCache for the given architecture/debug id.
func NewBuilder(arch common.Arch, debugID common.DebugId) *Builder {
	return &Builder{
		arch: arch, debugID: debugID,
		seen:      make(map[*common.Function]bool),
		strings:   make(map[string]strRef),
		symbolIDs: make(map[string]uint32),
		files:     make(map[string]int),
	}
}

// AddFunction cleans and flattens one top-level function's tree (itself
// plus every inlinee) into the builder.
func (b *Builder) AddFunction(fn *common.Function) {
	clean(fn)
	b.walk(fn, nil)
}

// AddPublicSymbol adds a symbol outside any known function's range as a
// synthetic zero-line leaf, the way spec.md's write procedure appends
// out-of-function publics. A symbol of unknown size (0) is stored with the
// largest length a record can hold, so it covers every address from its
// start onward.
func (b *Builder) AddPublicSymbol(sym common.Symbol) {
	name := ""
	if sym.Name != nil {
		name = sym.Name.Raw
	}
	size := sym.Size
	if size == 0 {
		size = uint64(^uint32(0))
	}
	synthetic := &common.Function{Address: sym.Address, Size: size, Name: common.NewName(name, common.LangUnknown)}
	b.walk(synthetic, nil)
}

func (b *Builder) walk(fn *common.Function, parent *common.Function) {
	if b.seen[fn] {
		return
	}
	b.seen[fn] = true
	b.entries = append(b.entries, entry{fn: fn, parent: parent})
	if len(fn.Lines) > 0 {
		b.hasLines = true
	}
	for _, child := range fn.Inlinees {
		b.walk(child, fn)
	}
}

// clean drops redundant/empty leaves per spec.md's cleaning pass: an
// inlinee with no lines of its own and no surviving children carries no
// information a lookup could ever need.
func clean(fn *common.Function) bool {
	kept := fn.Inlinees[:0]
	for _, child := range fn.Inlinees {
		if clean(child) {
			kept = append(kept, child)
		}
	}
	fn.Inlinees = kept
	return len(fn.Lines) > 0 || len(fn.Inlinees) > 0 || !fn.Inline
}

// Finish serializes the accumulated entries into a SymCache byte buffer.
func (b *Builder) Finish() []byte {
	sort.SliceStable(b.entries, func(i, j int) bool { return b.entries[i].fn.Address < b.entries[j].fn.Address })

	index := make(map[*common.Function]int, len(b.entries))
	for i, e := range b.entries {
		index[e.fn] = i
	}

	functionRecords := make([]byte, len(b.entries)*functionRecordSize)
	var lineRecordsBuf []byte

	for i, e := range b.entries {
		parentOffset := uint32(noParent)
		if e.parent != nil {
			if pi, ok := index[e.parent]; ok {
				parentOffset = uint32(pi)
			}
		}

		symID := b.internSymbol(e.fn.Name.Raw)
		compDir := b.internPathSegment(string(e.fn.CompilationDir))

		linesSeg := b.emitLines(e.fn, &lineRecordsBuf)

		rec := functionRecord{
			AddrLow:      uint32(e.fn.Address),
			Len:          uint32(e.fn.Size),
			SymbolID:     symID,
			ParentOffset: parentOffset,
			Lines:        linesSeg,
			CompDir:      compDir,
			Lang:         uint8(e.fn.Name.Language),
		}
		rec.marshal(functionRecords[i*functionRecordSize : (i+1)*functionRecordSize])
	}

	fileRecordsBuf := make([]byte, len(b.fileOrder)*fileRecordSize)
	for i, fr := range b.fileOrder {
		fr.marshal(fileRecordsBuf[i*fileRecordSize : (i+1)*fileRecordSize])
	}

	symbolRecordsBuf := make([]byte, len(b.symbols)*symbolRecordSize)
	for i, sr := range b.symbols {
		sr.marshal(symbolRecordsBuf[i*symbolRecordSize : (i+1)*symbolRecordSize])
	}

	h := header{
		Version:        CurrentVersion,
		Arch:           b.arch.U32(),
		DebugIDUUID:    b.debugID.UUID,
		DebugIDAppx:    b.debugID.Appendix,
		HasLineRecords: boolByte(b.hasLines),
	}

	off := uint32(headerSize)
	h.Functions = segment{Offset: off, Count: uint32(len(b.entries))}
	off += uint32(len(functionRecords))
	h.LineRecords = segment{Offset: off, Count: uint32(len(lineRecordsBuf) / lineRecordSize)}
	off += uint32(len(lineRecordsBuf))
	h.Files = segment{Offset: off, Count: uint32(len(b.fileOrder))}
	off += uint32(len(fileRecordsBuf))
	h.Symbols = segment{Offset: off, Count: uint32(len(b.symbols))}
	off += uint32(len(symbolRecordsBuf))
	h.Strings = segment{Offset: off, Count: uint32(len(b.stringsBuf))}

	out := make([]byte, 0, off+uint32(len(b.stringsBuf)))
	out = append(out, h.marshal()...)
	out = append(out, functionRecords...)
	out = append(out, lineRecordsBuf...)
	out = append(out, fileRecordsBuf...)
	out = append(out, symbolRecordsBuf...)
	out = append(out, b.stringsBuf...)
	return out
}

func boolByte(v bool) uint8 {
	if v {
		return 1
	}
	return 0
}

// internPathSegment interns s into the strings arena, truncating to 255
// bytes at a UTF-8 rune boundary -- the hard cap strRef.Len imposes.
func (b *Builder) internPathSegment(s string) strRef {
	if len(s) > 255 {
		s = truncateUTF8(s, 255)
	}
	return b.intern(s)
}

func truncateUTF8(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && (s[cut]&0xc0) == 0x80 {
		cut--
	}
	return s[:cut]
}

func (b *Builder) intern(s string) strRef {
	if ref, ok := b.strings[s]; ok {
		return ref
	}
	ref := strRef{Offset: uint32(len(b.stringsBuf)), Len: uint8(len(s))}
	b.stringsBuf = append(b.stringsBuf, s...)
	b.strings[s] = ref
	return ref
}

func (b *Builder) internSymbol(name string) uint32 {
	if id, ok := b.symbolIDs[name]; ok {
		return id
	}
	id := uint32(len(b.symbols))
	b.symbols = append(b.symbols, symbolRecord{Name: b.intern(name)})
	b.symbolIDs[name] = id
	return id
}

// internFile interns a file path, capping file ids at maxFileID (so the
// table holds at most maxFileID+1 entries):
// a file table reaching 0xffff entries would otherwise produce a legitimate
// uint16 FileID equal to fillerFileID, indistinguishable on readback from
// emitLines' gap filler rows. Past the cap, every further distinct file
// collapses onto the last valid entry; lines from those files keep their
// address/line info but report the wrong file name.
func (b *Builder) internFile(f common.FileInfo, compDir []byte) int {
	key := string(compDir) + "\x00" + string(f.Dir) + "\x00" + string(f.Name)
	if idx, ok := b.files[key]; ok {
		return idx
	}
	if len(b.fileOrder) > maxFileID {
		logger.Logf("symcache", "file table exceeds %d entries, collapsing %q onto the last entry", maxFileID+1, f.Name)
		return maxFileID
	}
	idx := len(b.fileOrder)
	b.fileOrder = append(b.fileOrder, fileRecord{
		Filename: b.internPathSegment(string(f.Name)),
		BaseDir:  b.internPathSegment(string(f.Dir)),
	})
	b.files[key] = idx
	return idx
}

// emitLines writes fn's line table into lineRecordsBuf, inserting
// zero-delta filler records whenever two consecutive lines' addresses are
// more than 255 bytes apart (the on-disk delta's range).
func (b *Builder) emitLines(fn *common.Function, lineRecordsBuf *[]byte) segment {
	if len(fn.Lines) == 0 {
		return segment{}
	}
	start := uint32(len(*lineRecordsBuf)) / lineRecordSize
	prevAddr := fn.Address
	count := 0
	for _, ln := range fn.Lines {
		delta := ln.Address - prevAddr
		for delta > 255 {
			rec := lineRecord{AddrDelta: 255, FileID: fillerFileID, Line: 0}
			buf := make([]byte, lineRecordSize)
			rec.marshal(buf)
			*lineRecordsBuf = append(*lineRecordsBuf, buf...)
			count++
			delta -= 255
			prevAddr += 255
		}
		fileID := uint16(b.internFile(ln.File, fn.CompilationDir))
		rec := lineRecord{AddrDelta: uint8(delta), FileID: fileID, Line: uint16(ln.Line)}
		buf := make([]byte, lineRecordSize)
		rec.marshal(buf)
		*lineRecordsBuf = append(*lineRecordsBuf, buf...)
		count++
		prevAddr = ln.Address
	}
	return segment{Offset: start, Count: uint32(count)}
}
