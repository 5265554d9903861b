package symcache_test

import (
	"testing"

	"github.com/crashkit/symbolic/common"
	"github.com/crashkit/symbolic/symcache"
	"github.com/crashkit/symbolic/testkit"
)

func buildNestedTree() *common.Function {
	h := &common.Function{
		Address: 0x1014, Size: 0x4, Inline: true,
		Name:  common.NewName("h", common.LangC),
		Lines: []common.LineInfo{{Address: 0x1014, Line: 30}},
	}
	g := &common.Function{
		Address: 0x1010, Size: 0x10, Inline: true,
		Name:     common.NewName("g", common.LangC),
		Lines:    []common.LineInfo{{Address: 0x1010, Line: 20}},
		Inlinees: []*common.Function{h},
	}
	outer := &common.Function{
		Address: 0x1000, Size: 0x100, Inline: false,
		Name:     common.NewName("outer", common.LangC),
		Lines:    []common.LineInfo{{Address: 0x1000, Line: 10}},
		Inlinees: []*common.Function{g},
	}
	return outer
}

// TestLookupInnermostFirst pins the SymCache analog of the multi-level
// inline chain: looking up an address inside h's range must return
// [h, g, outer] with h first.
func TestLookupInnermostFirst(t *testing.T) {
	b := symcache.NewBuilder(common.ArchX86_64, common.DebugId{})
	b.AddFunction(buildNestedTree())
	data := b.Finish()

	cache, err := symcache.Open(data)
	testkit.RequireNoError(t, err)

	chain := cache.Lookup(0x1015)
	testkit.Equate(t, len(chain), 3)
	testkit.Equate(t, chain[0].Name, "h")
	testkit.Equate(t, chain[1].Name, "g")
	testkit.Equate(t, chain[2].Name, "outer")
}

// TestLookupOutsideAnyInline exercises the boundary just past h's range
// but still inside g, confirming the chain collapses correctly when the
// deepest inlinee no longer covers the address.
func TestLookupOutsideAnyInline(t *testing.T) {
	b := symcache.NewBuilder(common.ArchX86_64, common.DebugId{})
	b.AddFunction(buildNestedTree())
	data := b.Finish()

	cache, err := symcache.Open(data)
	testkit.RequireNoError(t, err)

	chain := cache.Lookup(0x1019)
	testkit.Equate(t, len(chain), 2)
	testkit.Equate(t, chain[0].Name, "g")
	testkit.Equate(t, chain[1].Name, "outer")
}

// TestRoundTripsDebugIdAndArch checks the header fields survive a
// write/read cycle untouched.
func TestRoundTripsDebugIdAndArch(t *testing.T) {
	id := common.DebugId{UUID: [16]byte{1, 2, 3, 4}, Appendix: 9}
	b := symcache.NewBuilder(common.ArchArm64, id)
	b.AddFunction(buildNestedTree())
	data := b.Finish()

	cache, err := symcache.Open(data)
	testkit.RequireNoError(t, err)
	testkit.Equate(t, cache.Arch(), common.ArchArm64)
	testkit.Equate(t, cache.DebugId(), id)
	testkit.Equate(t, cache.Version(), uint32(symcache.CurrentVersion))
	testkit.Equate(t, cache.HasLineInfo(), true)
}

// TestPublicSymbolAppendedOutOfLine confirms a public symbol with no
// enclosing function round-trips as its own zero-parent leaf.
func TestPublicSymbolAppendedOutOfLine(t *testing.T) {
	b := symcache.NewBuilder(common.ArchX86_64, common.DebugId{})
	name := common.NewName("exported_data", common.LangUnknown)
	b.AddPublicSymbol(common.Symbol{Name: &name, Address: 0x5000, Size: 0x10})
	data := b.Finish()

	cache, err := symcache.Open(data)
	testkit.RequireNoError(t, err)

	chain := cache.Lookup(0x5004)
	testkit.Equate(t, len(chain), 1)
	testkit.Equate(t, chain[0].Name, "exported_data")
	testkit.Equate(t, chain[0].ParentIndex, -1)
}
