package common

import (
	"encoding/hex"
	"fmt"
)

// CodeId is an opaque, format-specific identifier for the code file itself
// (as opposed to DebugId, which identifies the matching debug companion).
// It is stored and compared as lowercase hex.
type CodeId struct {
	raw []byte
}

// CodeIdFromBytes wraps raw identifier bytes (e.g. the contents of a GNU
// build-id note, or a PE timestamp+size pair already formatted to bytes).
func CodeIdFromBytes(b []byte) CodeId {
	cp := make([]byte, len(b))
	copy(cp, b)
	return CodeId{raw: cp}
}

// CodeIdFromHex parses a lowercase or uppercase hex string into a CodeId.
func CodeIdFromHex(s string) (CodeId, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return CodeId{}, fmt.Errorf("invalid code id %q: %w", s, err)
	}
	return CodeIdFromBytes(b), nil
}

// Hex returns the lowercase hex representation.
func (c CodeId) Hex() string { return hex.EncodeToString(c.raw) }

// IsNil reports whether the identifier carries no bytes.
func (c CodeId) IsNil() bool { return len(c.raw) == 0 }

// Bytes returns the raw identifier bytes.
func (c CodeId) Bytes() []byte { return c.raw }

func (c CodeId) String() string { return c.Hex() }

// DebugId identifies the debug companion for an object: a 16-byte UUID plus
// a 32-bit appendix (used by Breakpad-derived formats to distinguish
// multiple debug files that would otherwise share a UUID, e.g. successive
// PDB ages for the same GUID).
type DebugId struct {
	UUID     [16]byte
	Appendix uint32
}

// DebugIdFromGUIDAge builds a DebugId the way PDB/PE debug directories do:
// a 16-byte GUID plus an incrementing age counter.
func DebugIdFromGUIDAge(guid [16]byte, age uint32) DebugId {
	return DebugId{UUID: guid, Appendix: age}
}

// DebugIdFromBuildId derives a DebugId from the first 16 bytes of a GNU
// build-id / ELF note, with the little-endian byte-group swap applied so
// the UUID displays consistently across formats. appendix is typically 0
// unless the caller has additional disambiguating information.
func DebugIdFromBuildId(buildID []byte, littleEndian bool, appendix uint32) DebugId {
	var uuid [16]byte
	n := copy(uuid[:], buildID)
	_ = n
	if littleEndian {
		uuid = swapUUIDGroups(uuid)
	}
	return DebugId{UUID: uuid, Appendix: appendix}
}

// swapUUIDGroups reverses the byte order of the first three UUID fields
// (4, 2, 2 bytes), which are stored as little-endian integers in memory on
// LE targets but must display in the canonical big-endian UUID string form.
func swapUUIDGroups(u [16]byte) [16]byte {
	var out [16]byte
	reverse := func(dst, src []byte) {
		for i := range src {
			dst[i] = src[len(src)-1-i]
		}
	}
	reverse(out[0:4], u[0:4])
	reverse(out[4:6], u[4:6])
	reverse(out[6:8], u[6:8])
	copy(out[8:], u[8:])
	return out
}

// String renders the canonical "xxxxxxxx-xxxx-xxxx-xxxx-xxxxxxxxxxxx-a"
// form, with the appendix rendered as a bare lowercase hex integer (no
// leading zero padding, matching Scenario A of the spec).
func (d DebugId) String() string {
	u := d.UUID
	return fmt.Sprintf("%08x-%04x-%04x-%04x-%012x-%x",
		u[0:4], u[4:6], u[6:8], u[8:10], u[10:16], d.Appendix)
}

// IsNil reports whether the identifier is the all-zero UUID with no
// appendix.
func (d DebugId) IsNil() bool {
	if d.Appendix != 0 {
		return false
	}
	for _, b := range d.UUID {
		if b != 0 {
			return false
		}
	}
	return true
}
