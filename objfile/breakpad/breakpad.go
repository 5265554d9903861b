// Package breakpad implements objfile.Object over the Breakpad ASCII symbol
// file grammar: MODULE/INFO/FILE/FUNC/INLINE/line/PUBLIC/STACK records. Its
// DebugSession builds functions directly from FUNC/line/INLINE records --
// there is no underlying DWARF to drive, unlike every other format this
// toolkit parses.
package breakpad

import (
	"bufio"
	"bytes"
	"sort"
	"strconv"
	"strings"

	"github.com/crashkit/symbolic/common"
	"github.com/crashkit/symbolic/dbgerr"
	"github.com/crashkit/symbolic/funcbuilder"
	"github.com/crashkit/symbolic/logger"
	"github.com/crashkit/symbolic/objfile"
)

type fileRecord struct {
	id   int
	name string
}

type lineRecord struct {
	address uint64
	size    uint64
	line    uint32
	fileID  int
}

type funcRecord struct {
	multiple bool
	address  uint64
	size     uint64
	name     string
	lines    []lineRecord
	inlines  []inlineRecord
}

type inlineRecord struct {
	depth    int
	callLine uint32
	callFile int
	originID int
	address  uint64
	size     uint64
}

// Object wraps a parsed Breakpad symbol file.
type Object struct {
	raw []byte

	codeID  common.CodeId
	haveID  bool
	debugID common.DebugId
	arch    common.Arch

	files       map[int]fileRecord
	inlineOrig  map[int]string
	funcs       []funcRecord
	publics     []common.Symbol
	hasUnwind   bool
	malformed   bool
}

// Open parses the Breakpad symbol file backed by bv.
func Open(bv common.ByteView) (*Object, error) {
	o := &Object{
		raw:        append([]byte(nil), bv.AsRef()...),
		files:      make(map[int]fileRecord),
		inlineOrig: make(map[int]string),
	}

	sc := bufio.NewScanner(bytes.NewReader(o.raw))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var current *funcRecord
	for sc.Scan() {
		line := sc.Text()
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "MODULE":
			if len(fields) >= 3 {
				o.arch = common.FromName(fields[2])
			}
		case "INFO":
			if len(fields) >= 3 && fields[1] == "CODE_ID" {
				id, err := common.CodeIdFromHex(fields[2])
				if err == nil {
					o.codeID, o.haveID = id, true
				}
			}
		case "FILE":
			if len(fields) >= 3 {
				idx, err := strconv.Atoi(fields[1])
				if err == nil {
					o.files[idx] = fileRecord{id: idx, name: strings.Join(fields[2:], " ")}
				}
			}
		case "INLINE_ORIGIN":
			if len(fields) >= 3 {
				idx, err := strconv.Atoi(fields[1])
				if err == nil {
					o.inlineOrig[idx] = strings.Join(fields[2:], " ")
				}
			}
		case "FUNC":
			rest := fields[1:]
			multiple := false
			if len(rest) > 0 && rest[0] == "m" {
				multiple = true
				rest = rest[1:]
			}
			if len(rest) < 3 {
				logger.Log("breakpad", "malformed FUNC record: "+line)
				o.malformed = true
				continue
			}
			addr, _ := strconv.ParseUint(rest[0], 16, 64)
			size, _ := strconv.ParseUint(rest[1], 16, 64)
			name := strings.Join(rest[3:], " ")
			o.funcs = append(o.funcs, funcRecord{multiple: multiple, address: addr, size: size, name: name})
			current = &o.funcs[len(o.funcs)-1]
		case "INLINE":
			if current == nil || len(fields) < 6 {
				continue
			}
			depth, _ := strconv.Atoi(fields[1])
			callLine, _ := strconv.ParseUint(fields[2], 10, 32)
			callFile, _ := strconv.Atoi(fields[3])
			origin, _ := strconv.Atoi(fields[4])
			// one or more (address, size) range pairs follow.
			for i := 5; i+1 < len(fields); i += 2 {
				addr, _ := strconv.ParseUint(fields[i], 16, 64)
				size, _ := strconv.ParseUint(fields[i+1], 16, 64)
				current.inlines = append(current.inlines, inlineRecord{
					depth: depth, callLine: uint32(callLine), callFile: callFile,
					originID: origin, address: addr, size: size,
				})
			}
		case "PUBLIC":
			rest := fields[1:]
			if len(rest) > 0 && rest[0] == "m" {
				rest = rest[1:]
			}
			if len(rest) < 3 {
				continue
			}
			addr, _ := strconv.ParseUint(rest[0], 16, 64)
			name := strings.Join(rest[2:], " ")
			n := common.NewName(name, common.LangUnknown)
			o.publics = append(o.publics, common.Symbol{Name: &n, Address: addr})
		case "STACK":
			o.hasUnwind = true
		default:
			if current != nil {
				if lr, ok := parseLineRecord(fields); ok {
					current.lines = append(current.lines, lr)
				}
			}
		}
	}

	return o, sc.Err()
}

func parseLineRecord(fields []string) (lineRecord, bool) {
	if len(fields) != 4 {
		return lineRecord{}, false
	}
	addr, err1 := strconv.ParseUint(fields[0], 16, 64)
	size, err2 := strconv.ParseUint(fields[1], 16, 64)
	line, err3 := strconv.ParseUint(fields[2], 10, 32)
	file, err4 := strconv.Atoi(fields[3])
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		return lineRecord{}, false
	}
	return lineRecord{address: addr, size: size, line: uint32(line), fileID: file}, true
}

func (o *Object) FileFormat() objfile.FileFormat { return objfile.FormatBreakpad }
func (o *Object) Arch() common.Arch              { return o.arch }
func (o *Object) Kind() objfile.ObjectKind        { return objfile.KindDebug }
func (o *Object) LoadAddress() uint64             { return 0 }
func (o *Object) IsMalformed() bool               { return o.malformed }
func (o *Object) CodeId() (common.CodeId, bool)   { return o.codeID, o.haveID }
func (o *Object) DebugId() common.DebugId          { return o.debugID }
func (o *Object) HasDebugInfo() bool               { return len(o.funcs) > 0 }
func (o *Object) HasUnwindInfo() bool              { return o.hasUnwind }
func (o *Object) HasSources() bool                 { return false }
func (o *Object) HasSymbols() bool                 { return len(o.publics) > 0 || len(o.funcs) > 0 }

func (o *Object) Symbols() []common.Symbol {
	out := make([]common.Symbol, len(o.publics))
	copy(out, o.publics)
	for _, f := range o.funcs {
		n := common.NewName(f.name, common.LangUnknown)
		out = append(out, common.Symbol{Name: &n, Address: f.address, Size: f.size})
	}
	return out
}

func (o *Object) SymbolMap() common.SymbolMap { return common.NewSymbolMap(o.Symbols()) }

func (o *Object) DebugSession() (objfile.DebugSession, error) {
	if len(o.funcs) == 0 {
		return nil, dbgerr.New(dbgerr.MissingDebugInfo, "breakpad: no FUNC records")
	}
	return &session{obj: o}, nil
}

type session struct{ obj *Object }

func (s *session) Functions() ([]objfile.FunctionOrError, error) {
	var out []objfile.FunctionOrError
	for _, f := range s.obj.funcs {
		fn := buildFunction(s.obj, f)
		out = append(out, objfile.FunctionOrError{Function: fn})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Function.Address < out[j].Function.Address })
	return out, nil
}

func buildFunction(obj *Object, f funcRecord) *common.Function {
	outer := funcbuilder.OuterFunction{
		Name:    common.NewName(f.name, common.LangUnknown),
		Address: f.address,
		Size:    f.size,
	}

	inlineRecs := make([]funcbuilder.InlineRecord, 0, len(f.inlines))
	sort.SliceStable(f.inlines, func(i, j int) bool {
		if f.inlines[i].address != f.inlines[j].address {
			return f.inlines[i].address < f.inlines[j].address
		}
		return f.inlines[i].depth < f.inlines[j].depth
	})
	for _, in := range f.inlines {
		inlineRecs = append(inlineRecs, funcbuilder.InlineRecord{
			Depth:    in.depth,
			Address:  in.address,
			Size:     in.size,
			Name:     common.NewName(obj.inlineOrig[in.originID], common.LangUnknown),
			CallFile: obj.fileInfo(in.callFile),
			CallLine: in.callLine,
		})
	}

	leaves := make([]funcbuilder.LeafLine, 0, len(f.lines))
	sort.SliceStable(f.lines, func(i, j int) bool { return f.lines[i].address < f.lines[j].address })
	for _, ln := range f.lines {
		leaves = append(leaves, funcbuilder.LeafLine{
			Address: ln.address, Size: ln.size, File: obj.fileInfo(ln.fileID), Line: ln.line,
		})
	}

	return funcbuilder.Build(outer, inlineRecs, leaves)
}

func (o *Object) fileInfo(id int) common.FileInfo {
	if f, ok := o.files[id]; ok {
		return common.FileInfo{Name: []byte(f.name)}
	}
	return common.FileInfo{}
}

func (s *session) Files() ([]common.FileEntry, error) {
	out := make([]common.FileEntry, 0, len(s.obj.files))
	for _, f := range s.obj.files {
		out = append(out, common.FileEntry{FileInfo: common.FileInfo{Name: []byte(f.name)}})
	}
	return out, nil
}

func (s *session) SourceByPath(path string) (string, bool, error) { return "", false, nil }
