package common

import "sort"

// Symbol is a public symbol-table entry: an optional name, its
// image-relative address, and a size (0 meaning unknown until the
// surrounding SymbolMap fills it in from the following symbol).
type Symbol struct {
	Name    *Name
	Address uint64
	Size    uint64
}

// Covers reports whether addr falls within this symbol's range. A symbol of
// unknown size (Size == 0) is treated as covering every address at or past
// its own, since there's no better information available.
func (s Symbol) Covers(addr uint64) bool {
	if addr < s.Address {
		return false
	}
	if s.Size == 0 {
		return true
	}
	return addr < s.Address+s.Size
}

// SymbolMap is an ordered, contiguous sequence of Symbol sorted by address,
// with duplicates and zero-sized gaps resolved per the construction rules
// in the spec's Symbol Map invariants.
type SymbolMap struct {
	symbols []Symbol
}

// NewSymbolMap builds a SymbolMap from an arbitrary, unordered list of
// symbols:
//   - stable sort by address
//   - at most one symbol per address (later duplicates in the input are
//     dropped, earliest wins)
//   - any symbol whose size is 0 and which has a successor has its size
//     filled in with the distance to that successor's address
func NewSymbolMap(symbols []Symbol) SymbolMap {
	sorted := make([]Symbol, len(symbols))
	copy(sorted, symbols)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Address < sorted[j].Address
	})

	deduped := sorted[:0:0]
	for i, s := range sorted {
		if i > 0 && s.Address == sorted[i-1].Address {
			continue
		}
		deduped = append(deduped, s)
	}

	for i := range deduped {
		if deduped[i].Size == 0 && i+1 < len(deduped) {
			deduped[i].Size = deduped[i+1].Address - deduped[i].Address
		}
	}

	return SymbolMap{symbols: deduped}
}

// Len returns the number of distinct symbols.
func (m SymbolMap) Len() int { return len(m.symbols) }

// At returns the i-th symbol in address order.
func (m SymbolMap) At(i int) Symbol { return m.symbols[i] }

// All returns the symbols in address order. The returned slice must not be
// mutated by the caller.
func (m SymbolMap) All() []Symbol { return m.symbols }

// Lookup performs a binary search for the symbol covering addr, returning
// (Symbol{}, false) if none covers it.
func (m SymbolMap) Lookup(addr uint64) (Symbol, bool) {
	i := sort.Search(len(m.symbols), func(i int) bool {
		return m.symbols[i].Address > addr
	})
	if i == 0 {
		return Symbol{}, false
	}
	s := m.symbols[i-1]
	if s.Covers(addr) {
		return s, true
	}
	return Symbol{}, false
}
