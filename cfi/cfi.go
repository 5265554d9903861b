// Package cfi implements the CFI extractor/writer (C8): it turns
// per-format unwind information (DWARF call frame tables, PE x64 unwind
// data, PDB frame-data streams, Breakpad STACK records) into the Breakpad
// ASCII CFI grammar, emitted as a CfiCache.
//
// The DWARF half of this package generalizes the teacher's ARM coprocessor
// frame-section reader (coprocessor/developer/dwarf/dwarf_frame.go and
// dwarf_frame_instructions.go), which decoded CIE/FDE blocks just far
// enough to answer "what register holds the frame base right now"; this
// version decodes the same opcodes into a full per-row register-rule table
// so every row -- not just the one containing the current PC -- can be
// exported.
package cfi

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"

	"github.com/crashkit/symbolic/dbgerr"
)

// CfiCache is the envelope spec.md §4.8 describes: either empty or
// beginning with the literal bytes "STACK".
type CfiCache struct {
	content []byte
}

const cacheMagic = "STACK"

// CurrentVersion is the CFI cache format version this package emits.
const CurrentVersion = 1

// FromBytes validates data as a CFI cache: empty, or "STACK"-prefixed.
func FromBytes(data []byte) (CfiCache, error) {
	if len(data) == 0 {
		return CfiCache{}, nil
	}
	if !bytes.HasPrefix(data, []byte(cacheMagic)) {
		return CfiCache{}, dbgerr.New(dbgerr.BadFileMagic, "cfi: cache prefix is neither empty nor %q", cacheMagic)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return CfiCache{content: cp}, nil
}

// Bytes returns the cache's raw ASCII content.
func (c CfiCache) Bytes() []byte { return c.content }

// IsEmpty reports whether the cache carries no records.
func (c CfiCache) IsEmpty() bool { return len(c.content) == 0 }

// Writer accumulates STACK CFI/STACK WIN records into a CfiCache.
type Writer struct {
	buf bytes.Buffer
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer { return &Writer{} }

func (w *Writer) writeLine(format string, args ...interface{}) {
	fmt.Fprintf(&w.buf, format+"\n", args...)
}

// Finish returns the accumulated records as a CfiCache.
func (w *Writer) Finish() CfiCache {
	return CfiCache{content: append([]byte(nil), w.buf.Bytes()...)}
}

// PassthroughBreakpad copies every STACK CFI/STACK WIN record out of an
// already-parsed Breakpad symbol file, unchanged -- spec.md's requirement
// that Breakpad input round-trips through the cache verbatim.
func PassthroughBreakpad(w *Writer, breakpadText []byte) error {
	sc := bufio.NewScanner(bytes.NewReader(breakpadText))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "STACK ") {
			w.writeLine("%s", line)
		}
	}
	return sc.Err()
}
