// Package testkit collects small helpers shared by this module's tests:
// equality assertions and bounded writers for capturing logger output.
package testkit

import (
	"reflect"
	"testing"
)

// Equate fails the test if got != want, using reflect.DeepEqual for
// non-comparable types.
func Equate(t *testing.T, got, want interface{}) {
	t.Helper()
	if !equal(got, want) {
		t.Errorf("got %#v, want %#v", got, want)
	}
}

// ExpectEquality is an alias for Equate kept for tests ported directly from
// the ported style of table-driven assertions.
func ExpectEquality(t *testing.T, got, want interface{}) {
	t.Helper()
	Equate(t, got, want)
}

// ExpectInequality fails the test if got == want.
func ExpectInequality(t *testing.T, got, want interface{}) {
	t.Helper()
	if equal(got, want) {
		t.Errorf("got %#v, did not want equality with %#v", got, want)
	}
}

func equal(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == b
	}
	if va, ok := a.(interface{ Error() string }); ok {
		if vb, ok := b.(interface{ Error() string }); ok {
			return va.Error() == vb.Error()
		}
	}
	return reflect.DeepEqual(a, b)
}

// ExpectSuccess fails the test if v represents a failure: a non-nil error,
// or a false boolean.
func ExpectSuccess(t *testing.T, v interface{}) {
	t.Helper()
	switch x := v.(type) {
	case nil:
		return
	case error:
		t.Errorf("unexpected error: %v", x)
	case bool:
		if !x {
			t.Error("unexpected failure")
		}
	}
}

// ExpectFailure fails the test if v does not represent a failure.
func ExpectFailure(t *testing.T, v interface{}) {
	t.Helper()
	switch x := v.(type) {
	case nil:
		t.Error("expected failure, got nil")
	case error:
		return
	case bool:
		if x {
			t.Error("expected failure")
		}
	}
}

// ExpectApproximate fails unless got is within tolerance of want.
func ExpectApproximate(t *testing.T, got, want, tolerance float64) {
	t.Helper()
	diff := got - want
	if diff < 0 {
		diff = -diff
	}
	if diff > tolerance {
		t.Errorf("got %v, want %v (+/- %v)", got, want, tolerance)
	}
}

// RequireNoError is a fatal variant for setup steps where continuing the
// test after failure would just cascade into confusing follow-on errors.
func RequireNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
