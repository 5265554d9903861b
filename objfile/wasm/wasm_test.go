package wasm_test

import (
	"testing"

	"github.com/crashkit/symbolic/common"
	"github.com/crashkit/symbolic/objfile/wasm"
	"github.com/crashkit/symbolic/testkit"
)

func uleb(v uint64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			break
		}
	}
	return out
}

func customSection(name string, payload []byte) []byte {
	body := append(uleb(uint64(len(name))), []byte(name)...)
	body = append(body, payload...)
	var sec []byte
	sec = append(sec, 0) // custom section id
	sec = append(sec, uleb(uint64(len(body)))...)
	sec = append(sec, body...)
	return sec
}

func TestOpenReadsBuildID(t *testing.T) {
	module := []byte("\x00asm\x01\x00\x00\x00")
	buildID := make([]byte, 16)
	for i := range buildID {
		buildID[i] = byte(i)
	}
	module = append(module, customSection("build_id", buildID)...)

	obj, err := wasm.Open(common.FromSlice(module))
	testkit.RequireNoError(t, err)

	id, ok := obj.CodeId()
	testkit.Equate(t, ok, true)
	testkit.Equate(t, id.Bytes(), buildID)
}

func TestOpenRejectsBadMagic(t *testing.T) {
	_, err := wasm.Open(common.FromSlice([]byte("not wasm")))
	testkit.ExpectFailure(t, err)
}
