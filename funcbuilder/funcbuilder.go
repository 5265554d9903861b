// Package funcbuilder implements the function builder (C5): given a flat,
// depth-tagged stream of inlined-subroutine records plus a leaf-line table
// for the whole outer range, it assembles the nested common.Function tree
// spec.md §3/§4.5 requires -- every line assigned to its innermost covering
// function, every inlinee's range contained in its parent's, and every
// parent carrying a call-site line over each inlinee it hosts.
//
// This generalizes the teacher's function/line nesting pass (originally
// written for ARM coprocessor call frames) to arbitrary-depth DWARF inline
// trees instead of a single hardware call stack.
package funcbuilder

import (
	"sort"

	"github.com/crashkit/symbolic/common"
)

// OuterFunction is the top-level (non-inlined) function a DebugSession has
// already located via DW_TAG_subprogram/low_pc/high_pc.
type OuterFunction struct {
	Name           common.Name
	CompilationDir []byte
	Address        uint64
	Size           uint64
}

// InlineRecord describes one DW_TAG_inlined_subroutine, as collected by a
// pre-order walk of the DIE tree: Depth counts how many inlined_subroutine
// ancestors it has within the same outer function (0 = direct child).
type InlineRecord struct {
	Depth    int
	Address  uint64
	Size     uint64
	Name     common.Name
	CallFile common.FileInfo
	CallLine uint32
}

// LeafLine is one row of the outer function's resolved line program,
// restricted to addresses within the outer function's range.
type LeafLine struct {
	Address uint64
	Size    uint64
	File    common.FileInfo
	Line    uint32
}

// Build assembles outer, inlinees and lines into a well-formed
// *common.Function tree: every inlinee nests inside its structural parent
// (reconstructed from the pre-order Depth labels), every line attaches to
// the innermost function whose range contains its address (split at an
// inlinee boundary when it straddles one), and every parent carries a
// call-site LineInfo over the range of each inlinee it hosts.
func Build(outer OuterFunction, inlinees []InlineRecord, lines []LeafLine) *common.Function {
	root := &common.Function{
		Address:        outer.Address,
		Size:           outer.Size,
		Name:           outer.Name,
		CompilationDir: outer.CompilationDir,
		Inline:         false,
	}

	nest(root, inlinees)
	sortInlinees(root)
	assignLines(root, lines)
	sortTree(root)
	return root
}

// nest reconstructs parent/child relationships from a pre-order, depth
// labeled record stream: a stack tracks the chain of currently-open
// ancestors, popping back to depth-1 whenever a record's depth regresses.
// Per spec.md §4.5 step 2, entering an inlinee also appends a call-site
// LineInfo to the parent that was on top of the stack -- the file/line the
// call came from, over the inlinee's own address range -- so a lookup
// landing on that range at the parent's level still resolves to the call
// site rather than falling through to nothing.
func nest(root *common.Function, records []InlineRecord) {
	stack := []*common.Function{root}

	for _, rec := range records {
		// stack[0] is root at depth -1 conceptually; stack[i] for i>=1 holds
		// the inlinee that is the current ancestor at depth i-1.
		wantLen := rec.Depth + 1
		if wantLen > len(stack) {
			wantLen = len(stack)
		}
		stack = stack[:wantLen]

		parent := stack[len(stack)-1]
		size := clampSize(parent, rec.Address, rec.Size)

		parent.Lines = append(parent.Lines, common.LineInfo{
			Address: rec.Address,
			Size:    size,
			File:    rec.CallFile,
			Line:    rec.CallLine,
		})

		child := &common.Function{
			Address:        rec.Address,
			Size:           size,
			Name:           rec.Name,
			CompilationDir: parent.CompilationDir,
			Inline:         true,
		}
		parent.Inlinees = append(parent.Inlinees, child)
		stack = append(stack, child)
	}
}

// clampSize trims an inlinee that starts inside its parent but runs past the
// parent's end, so that it ends at the parent's end. An inlinee that starts
// before its parent, or at or after the parent's end, keeps its full size.
func clampSize(parent *common.Function, addr, size uint64) uint64 {
	if addr < parent.Address {
		return size
	}
	maxEnd := parent.End()
	end := addr + size
	if end > maxEnd && maxEnd > addr {
		return maxEnd - addr
	}
	return size
}

// sortInlinees stable-sorts every function's inlinees by address so
// assignLines can walk them in ascending order when splitting a straddling
// line. Must run before assignLines, since a line's split points depend on
// knowing each frame's children in address order at every depth.
func sortInlinees(f *common.Function) {
	sort.SliceStable(f.Inlinees, func(i, j int) bool { return f.Inlinees[i].Address < f.Inlinees[j].Address })
	for _, child := range f.Inlinees {
		sortInlinees(child)
	}
}

// assignLines walks the whole line table once, routing each row to the
// innermost function whose range contains its start address, splitting it
// at any inlinee boundary it straddles (spec.md §4.5 step 3).
func assignLines(root *common.Function, lines []LeafLine) {
	for _, ln := range lines {
		target := deepestContaining(root, ln.Address)
		if target == nil {
			continue
		}
		assignWithinFrame(target, ln)
	}
}

// assignWithinFrame appends ln to f, splitting it at the boundaries of any
// of f's direct children it overlaps. The portion of ln that falls inside
// a child's range is dropped here rather than reassigned to the child: that
// range is already covered by the call-site line nest appended to f when
// the child was entered, and any line records that genuinely belong inside
// the child arrive as their own LeafLine rows with addresses inside it.
func assignWithinFrame(f *common.Function, ln LeafLine) {
	if ln.Size == 0 {
		f.Lines = append(f.Lines, common.LineInfo{Address: ln.Address, File: ln.File, Line: ln.Line})
		return
	}

	end := ln.Address + ln.Size
	if fEnd := f.End(); end > fEnd {
		end = fEnd
	}
	cur := ln.Address

	for _, child := range f.Inlinees {
		if cur >= end {
			break
		}
		cs, ce := child.Address, child.End()
		if ce <= cur {
			continue
		}
		if cs >= end {
			break
		}
		if cs > cur {
			gapEnd := cs
			if gapEnd > end {
				gapEnd = end
			}
			f.Lines = append(f.Lines, common.LineInfo{Address: cur, Size: gapEnd - cur, File: ln.File, Line: ln.Line})
			cur = gapEnd
		}
		if overlapEnd := ce; overlapEnd > cur {
			if overlapEnd > end {
				overlapEnd = end
			}
			cur = overlapEnd
		}
	}

	if cur < end {
		f.Lines = append(f.Lines, common.LineInfo{Address: cur, Size: end - cur, File: ln.File, Line: ln.Line})
	}
}

func deepestContaining(f *common.Function, addr uint64) *common.Function {
	if !f.Contains(addr) && !(f.Size == 0 && f.Address == addr) {
		return nil
	}
	for _, child := range f.Inlinees {
		if found := deepestContaining(child, addr); found != nil {
			return found
		}
	}
	return f
}

// sortTree stable-sorts every function's lines and inlinees by address, the
// ordering spec.md's testable properties assume.
func sortTree(f *common.Function) {
	sort.SliceStable(f.Lines, func(i, j int) bool { return f.Lines[i].Address < f.Lines[j].Address })
	sort.SliceStable(f.Inlinees, func(i, j int) bool { return f.Inlinees[i].Address < f.Inlinees[j].Address })
	for _, child := range f.Inlinees {
		sortTree(child)
	}
}
