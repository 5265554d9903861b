package breakpad_test

import (
	"testing"

	"github.com/crashkit/symbolic/common"
	"github.com/crashkit/symbolic/objfile/breakpad"
	"github.com/crashkit/symbolic/testkit"
)

const sampleSym = `MODULE Linux x86_64 000000000000000000000000000000000 a.out
INFO CODE_ID 5C04233A0000
FILE 0 /src/outer.c
FILE 1 /src/inner.c
INLINE_ORIGIN 0 g
INLINE_ORIGIN 1 h
FUNC 1000 100 0 outer
INLINE 0 10 0 0 1010 10
INLINE 1 20 1 1 1014 4
1000 10 10 0
1010 4 20 1
1014 4 42 1
1018 8 11 0
PUBLIC 2000 0 exported_data
STACK CFI INIT 1000 100 .cfa: $rsp 8 +
`

// TestBreakpadLookupInnermostFirst pins Scenario D using a hand-authored
// Breakpad symbol file equivalent to the DWARF fixture: outer[0x1000) with
// inlinee g[0x1010,0x1020) inlining h[0x1014,0x1018).
func TestBreakpadLookupInnermostFirst(t *testing.T) {
	obj, err := breakpad.Open(common.FromSlice([]byte(sampleSym)))
	testkit.RequireNoError(t, err)
	testkit.Equate(t, obj.HasUnwindInfo(), true)
	testkit.Equate(t, obj.HasDebugInfo(), true)

	sess, err := obj.DebugSession()
	testkit.RequireNoError(t, err)

	funcs, err := sess.Functions()
	testkit.RequireNoError(t, err)
	testkit.Equate(t, len(funcs), 1)

	outer := funcs[0].Function
	testkit.Equate(t, outer.Name.Raw, "outer")
	testkit.Equate(t, len(outer.Inlinees), 1)

	g := outer.Inlinees[0]
	testkit.Equate(t, g.Name.Raw, "g")
	testkit.Equate(t, len(g.Inlinees), 1)

	h := g.Inlinees[0]
	testkit.Equate(t, h.Name.Raw, "h")
}

func TestBreakpadPublicSymbol(t *testing.T) {
	obj, err := breakpad.Open(common.FromSlice([]byte(sampleSym)))
	testkit.RequireNoError(t, err)

	sm := obj.SymbolMap()
	sym, ok := sm.Lookup(0x2000)
	testkit.Equate(t, ok, true)
	testkit.Equate(t, sym.Name.Raw, "exported_data")
}

func TestBreakpadMalformedFuncIsFlagged(t *testing.T) {
	obj, err := breakpad.Open(common.FromSlice([]byte("MODULE Linux x86_64 0 a.out\nFUNC badhex\n")))
	testkit.RequireNoError(t, err)
	testkit.Equate(t, obj.IsMalformed(), true)
}
