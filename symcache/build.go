package symcache

import (
	"sort"

	"github.com/crashkit/symbolic/logger"
	"github.com/crashkit/symbolic/objfile"
)

// Write builds a complete SymCache for obj: every function from its debug
// session (logging and skipping any sub-tree the session couldn't parse,
// rather than aborting) plus every public symbol whose address isn't
// already covered by a function.
func Write(obj objfile.Object) ([]byte, error) {
	b := NewBuilder(obj.Arch(), obj.DebugId())

	var ranges []addrRange

	if obj.HasDebugInfo() {
		session, err := obj.DebugSession()
		if err == nil {
			funcs, ferr := session.Functions()
			if ferr == nil {
				for _, fe := range funcs {
					if fe.Err != nil {
						logger.Logf("symcache", "skipping function: %v", fe.Err)
						continue
					}
					b.AddFunction(fe.Function)
					ranges = append(ranges, addrRange{fe.Function.Address, fe.Function.End()})
				}
			}
		}
	}
	sort.Slice(ranges, func(i, j int) bool { return ranges[i].start < ranges[j].start })

	symMap := obj.SymbolMap()
	for i := 0; i < symMap.Len(); i++ {
		sym := symMap.At(i)
		if coveredBy(ranges, sym.Address) {
			continue
		}
		b.AddPublicSymbol(sym)
	}

	return b.Finish(), nil
}

type addrRange struct{ start, end uint64 }

func coveredBy(ranges []addrRange, addr uint64) bool {
	i := sort.Search(len(ranges), func(i int) bool { return ranges[i].start > addr })
	if i == 0 {
		return false
	}
	r := ranges[i-1]
	return addr >= r.start && addr < r.end
}
