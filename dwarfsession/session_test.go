package dwarfsession

import (
	"debug/dwarf"
	"testing"

	"github.com/crashkit/symbolic/common"
	"github.com/crashkit/symbolic/testkit"
)

func TestRangesOfConstantHighpc(t *testing.T) {
	entry := &dwarf.Entry{
		Tag: dwarf.TagSubprogram,
		Field: []dwarf.Field{
			{Attr: dwarf.AttrLowpc, Val: uint64(0x1000), Class: dwarf.ClassAddress},
			{Attr: dwarf.AttrHighpc, Val: int64(0x40), Class: dwarf.ClassConstant},
		},
	}
	low, high, ok := rangesOf(entry)
	testkit.Equate(t, ok, true)
	testkit.Equate(t, low, uint64(0x1000))
	testkit.Equate(t, high, uint64(0x1040))
}

func TestRangesOfAddressHighpc(t *testing.T) {
	entry := &dwarf.Entry{
		Tag: dwarf.TagSubprogram,
		Field: []dwarf.Field{
			{Attr: dwarf.AttrLowpc, Val: uint64(0x2000), Class: dwarf.ClassAddress},
			{Attr: dwarf.AttrHighpc, Val: uint64(0x2100), Class: dwarf.ClassAddress},
		},
	}
	low, high, ok := rangesOf(entry)
	testkit.Equate(t, ok, true)
	testkit.Equate(t, low, uint64(0x2000))
	testkit.Equate(t, high, uint64(0x2100))
}

func TestRangesOfMissingLowpc(t *testing.T) {
	entry := &dwarf.Entry{Tag: dwarf.TagSubprogram}
	_, _, ok := rangesOf(entry)
	testkit.Equate(t, ok, false)
}

// TestResolveNamePrefersLinkageName pins Scenario B: linkage name wins over
// a plain name when both are present on the same DIE.
func TestResolveNamePrefersLinkageName(t *testing.T) {
	entry := &dwarf.Entry{
		Tag: dwarf.TagSubprogram,
		Field: []dwarf.Field{
			{Attr: dwarf.AttrName, Val: "plain", Class: dwarf.ClassString},
			{Attr: dwarf.AttrLinkageName, Val: "_Zmangled", Class: dwarf.ClassString},
		},
	}
	name := resolveName(nil, entry, 0)
	testkit.Equate(t, name.Raw, "_Zmangled")
}

func TestResolveNameFallsBackToPlainName(t *testing.T) {
	entry := &dwarf.Entry{
		Tag:   dwarf.TagSubprogram,
		Field: []dwarf.Field{{Attr: dwarf.AttrName, Val: "plain_only", Class: dwarf.ClassString}},
	}
	name := resolveName(nil, entry, 0)
	testkit.Equate(t, name.Raw, "plain_only")
}

func TestResolveNameDepthGuardStopsRecursion(t *testing.T) {
	entry := &dwarf.Entry{Tag: dwarf.TagSubprogram}
	name := resolveName(nil, entry, maxOriginDepth+1)
	testkit.Equate(t, name.Raw, "")
}

func TestLinesInRangeClipsToBounds(t *testing.T) {
	rows := []lineRow{
		{address: 0x10, line: 1},
		{address: 0x20, line: 2},
		{address: 0x30, line: 3}, // outside [0x10, 0x30)
	}
	out := linesInRange(rows, 0x10, 0x30)
	testkit.Equate(t, len(out), 2)
	testkit.Equate(t, out[0].Line, uint32(1))
	testkit.Equate(t, out[0].Size, uint64(0x10))
	testkit.Equate(t, out[1].Line, uint32(2))
	testkit.Equate(t, out[1].Size, uint64(0x10))
}

func TestToInt64(t *testing.T) {
	testkit.Equate(t, toInt64(int64(-1)), int64(-1))
	testkit.Equate(t, toInt64(uint64(5)), int64(5))
	testkit.Equate(t, toInt64("nope"), int64(0))
}

// TestCallSiteResolvesFileIndex pins that DW_AT_call_file is resolved as an
// index into the unit's line-program file table, not returned blank.
func TestCallSiteResolvesFileIndex(t *testing.T) {
	files := []common.FileInfo{
		{Name: []byte("main.c")},
		{Name: []byte("helper.c")},
	}
	entry := &dwarf.Entry{
		Tag: dwarf.TagInlinedSubroutine,
		Field: []dwarf.Field{
			{Attr: dwarf.AttrCallFile, Val: int64(1), Class: dwarf.ClassConstant},
			{Attr: dwarf.AttrCallLine, Val: int64(42), Class: dwarf.ClassConstant},
		},
	}

	file, line := callSite(entry, files)
	testkit.Equate(t, string(file.Name), "helper.c")
	testkit.Equate(t, line, uint32(42))
}

func TestCallSiteOutOfRangeFileIndexStaysEmpty(t *testing.T) {
	entry := &dwarf.Entry{
		Tag:   dwarf.TagInlinedSubroutine,
		Field: []dwarf.Field{{Attr: dwarf.AttrCallFile, Val: int64(7), Class: dwarf.ClassConstant}},
	}

	file, _ := callSite(entry, nil)
	testkit.Equate(t, len(file.Name), 0)
}

