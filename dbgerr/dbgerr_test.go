package dbgerr_test

import (
	"errors"
	"testing"

	"github.com/crashkit/symbolic/dbgerr"
)

func TestErrorf(t *testing.T) {
	err := dbgerr.New(dbgerr.BadDebugFile, "elf: %s", "truncated section header")
	if err.Error() != "elf: truncated section header" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
	if k, ok := dbgerr.KindOf(err); !ok || k != dbgerr.BadDebugFile {
		t.Fatalf("unexpected kind: %v %v", k, ok)
	}
}

func TestDeduplication(t *testing.T) {
	inner := dbgerr.New(dbgerr.BadDebugFile, "truncated")
	outer := dbgerr.New(dbgerr.BadDebugFile, "truncated: %v", inner)
	if outer.Error() != "truncated" {
		t.Fatalf("expected deduplicated message, got %q", outer.Error())
	}
}

func TestIsHas(t *testing.T) {
	inner := dbgerr.New(dbgerr.MissingDebugInfo, "no .debug_info section")
	outer := dbgerr.New(dbgerr.BadDebugFile, "session construction failed: %v", inner)

	if !dbgerr.Is(inner, "no .debug_info section") {
		t.Fatal("expected Is to match the exact pattern")
	}
	if !dbgerr.Has(outer, "no .debug_info section") {
		t.Fatal("expected Has to find the nested pattern")
	}
	if dbgerr.Has(outer, "something else") {
		t.Fatal("Has should not match an unrelated pattern")
	}
}

func TestWrapUnwrap(t *testing.T) {
	sentinel := errors.New("sink closed")
	wrapped := dbgerr.Wrap(dbgerr.WriteFailed, sentinel)
	if !errors.Is(wrapped, sentinel) {
		t.Fatal("expected errors.Is to see through Wrap")
	}
	if k, ok := dbgerr.KindOf(wrapped); !ok || k != dbgerr.WriteFailed {
		t.Fatalf("unexpected kind: %v %v", k, ok)
	}
}
