package common_test

import (
	"testing"

	"github.com/crashkit/symbolic/common"
	"github.com/crashkit/symbolic/testkit"
)

func TestSymbolMapInvariants(t *testing.T) {
	in := []common.Symbol{
		{Address: 0x200, Size: 0},
		{Address: 0x100, Size: 0},
		{Address: 0x100, Size: 0x50}, // duplicate address, dropped
		{Address: 0x300, Size: 0x10},
	}
	m := common.NewSymbolMap(in)

	testkit.Equate(t, m.Len(), 3)
	testkit.Equate(t, m.At(0).Address, uint64(0x100))
	testkit.Equate(t, m.At(0).Size, uint64(0x100)) // filled from successor 0x200
	testkit.Equate(t, m.At(1).Address, uint64(0x200))
	testkit.Equate(t, m.At(1).Size, uint64(0x100)) // filled from successor 0x300
	testkit.Equate(t, m.At(2).Size, uint64(0x10))  // already known, untouched

	for i := 1; i < m.Len(); i++ {
		if m.At(i-1).Address >= m.At(i).Address {
			t.Fatalf("addresses not strictly monotonic at %d", i)
		}
	}
}

func TestSymbolMapLookup(t *testing.T) {
	m := common.NewSymbolMap([]common.Symbol{
		{Address: 0x100, Size: 0x10},
		{Address: 0x200, Size: 0},
	})

	if s, ok := m.Lookup(0x105); !ok || s.Address != 0x100 {
		t.Fatalf("expected to find symbol at 0x100, got %+v %v", s, ok)
	}
	if _, ok := m.Lookup(0x20); ok {
		t.Fatal("expected no covering symbol before the first entry")
	}
	if s, ok := m.Lookup(0x1000); !ok || s.Address != 0x200 {
		t.Fatalf("expected open-ended last symbol to cover far addresses, got %+v %v", s, ok)
	}
	if _, ok := m.Lookup(0x150); ok {
		t.Fatal("expected gap between symbols to report no coverage")
	}
}
