package symcache

import (
	"sort"

	"github.com/crashkit/symbolic/common"
	"github.com/crashkit/symbolic/dbgerr"
)

// Cache is a read-only view over a serialized SymCache buffer. Every
// accessor slices directly into the backing byte array -- no record is
// copied out until a caller asks for one.
type Cache struct {
	data []byte
	h    header
}

// Open validates and wraps a SymCache buffer for reading.
func Open(data []byte) (*Cache, error) {
	h, err := unmarshalHeader(data)
	if err != nil {
		return nil, err
	}
	if h.Version != Version1 && h.Version != Version2 {
		return nil, dbgerr.New(dbgerr.BadDebugFile, "symcache: unsupported version %d", h.Version)
	}
	return &Cache{data: data, h: h}, nil
}

// Version reports the on-disk format version (Version1 or Version2).
func (c *Cache) Version() uint32 { return c.h.Version }

// Arch reports the cache's target architecture.
func (c *Cache) Arch() common.Arch { return common.FromU32(c.h.Arch) }

// DebugId reports the debug identifier the cache was built for.
func (c *Cache) DebugId() common.DebugId {
	return common.DebugId{UUID: c.h.DebugIDUUID, Appendix: c.h.DebugIDAppx}
}

// HasLineInfo reports whether any function record carries line records.
func (c *Cache) HasLineInfo() bool { return c.h.HasLineRecords != 0 }

func (c *Cache) functionRecord(i int) functionRecord {
	off := int(c.h.Functions.Offset) + i*functionRecordSize
	return unmarshalFunctionRecord(c.data[off : off+functionRecordSize])
}

func (c *Cache) lineRecord(i int) lineRecord {
	off := int(c.h.LineRecords.Offset) + i*lineRecordSize
	return unmarshalLineRecord(c.data[off : off+lineRecordSize])
}

func (c *Cache) fileRecord(i int) fileRecord {
	off := int(c.h.Files.Offset) + i*fileRecordSize
	return unmarshalFileRecord(c.data[off : off+fileRecordSize])
}

func (c *Cache) symbolRecord(i int) symbolRecord {
	off := int(c.h.Symbols.Offset) + i*symbolRecordSize
	return unmarshalSymbolRecord(c.data[off : off+symbolRecordSize])
}

func (c *Cache) string(ref strRef) string {
	off := int(c.h.Strings.Offset) + int(ref.Offset)
	return string(c.data[off : off+int(ref.Len)])
}

func (c *Cache) symbolName(id uint32) string {
	if id >= c.h.Symbols.Count {
		return ""
	}
	return c.string(c.symbolRecord(int(id)).Name)
}

func (c *Cache) fileInfo(id uint16) common.FileInfo {
	if uint32(id) >= c.h.Files.Count {
		return common.FileInfo{}
	}
	fr := c.fileRecord(int(id))
	return common.FileInfo{Name: []byte(c.string(fr.Filename)), Dir: []byte(c.string(fr.BaseDir))}
}

// ResolvedFunction is one flattened entry from the cache, with its
// ancestor chain's index available via ParentIndex.
type ResolvedFunction struct {
	Index       int
	ParentIndex int // -1 if none
	Address     uint64
	Size        uint64
	Name        string
	CompDir     string
	Language    common.Language
	Lines       []common.LineInfo
}

// FunctionCount reports the number of flattened function records.
func (c *Cache) FunctionCount() int { return int(c.h.Functions.Count) }

// Function decodes the i-th flattened function record.
func (c *Cache) Function(i int) ResolvedFunction {
	r := c.functionRecord(i)
	parent := -1
	if r.ParentOffset != noParent {
		parent = int(r.ParentOffset)
	}

	lines := make([]common.LineInfo, 0, r.Lines.Count)
	addr := r.AddrLow
	for j := uint32(0); j < r.Lines.Count; j++ {
		lr := c.lineRecord(int(r.Lines.Offset) + int(j))
		addr += uint32(lr.AddrDelta)
		if lr.FileID == fillerFileID {
			continue // filler record inserted by emitLines to bridge a >255-byte gap
		}
		lines = append(lines, common.LineInfo{
			Address: uint64(addr),
			File:    c.fileInfo(lr.FileID),
			Line:    uint32(lr.Line),
		})
	}

	return ResolvedFunction{
		Index:       i,
		ParentIndex: parent,
		Address:     uint64(r.AddrLow),
		Size:        uint64(r.Len),
		Name:        c.symbolName(r.SymbolID),
		CompDir:     c.string(r.CompDir),
		Language:    common.Language(r.Lang),
		Lines:       lines,
	}
}

// Functions decodes every flattened function record in address order.
func (c *Cache) Functions() []ResolvedFunction {
	out := make([]ResolvedFunction, c.FunctionCount())
	for i := range out {
		out[i] = c.Function(i)
	}
	return out
}

// Lookup resolves addr to its innermost-first call chain: the deepest
// inlinee covering addr first, then its parent, and so on out to the
// outermost physical function -- spec.md §4.7's lookup algorithm.
func (c *Cache) Lookup(addr uint64) []ResolvedFunction {
	n := c.FunctionCount()
	// binary search for the last record whose Address <= addr
	i := sort.Search(n, func(i int) bool { return c.functionRecord(i).AddrLow > uint32(addr) })
	if i == 0 {
		return nil
	}

	// Records are sorted by address and children are nested inside their
	// parent's range, so the first match scanning backward from addr is
	// necessarily the innermost: any ancestor covering addr must start at
	// an address <= this one's and so would only be found further back.
	var innermost *ResolvedFunction
	for j := i - 1; j >= 0; j-- {
		f := c.Function(j)
		if addr >= f.Address && addr < f.Address+f.Size {
			innermost = &f
			break
		}
	}
	if innermost == nil {
		return nil
	}

	chain := []ResolvedFunction{*innermost}
	for innermost.ParentIndex != -1 {
		parent := c.Function(innermost.ParentIndex)
		chain = append(chain, parent)
		innermost = &parent
	}
	return chain
}
