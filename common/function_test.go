package common_test

import (
	"testing"

	"github.com/crashkit/symbolic/common"
	"github.com/crashkit/symbolic/testkit"
)

func TestFileEntryFullPath(t *testing.T) {
	fe := common.FileEntry{
		FileInfo:       common.FileInfo{Name: []byte("main.c"), Dir: []byte("src")},
		CompilationDir: []byte("/build/project"),
	}
	testkit.Equate(t, fe.FullPath(), "/build/project/src/main.c")
}

func TestFunctionContains(t *testing.T) {
	f := &common.Function{Address: 0x100, Size: 0x20}
	testkit.Equate(t, f.Contains(0x100), true)
	testkit.Equate(t, f.Contains(0x11f), true)
	testkit.Equate(t, f.Contains(0x120), false)
	testkit.Equate(t, f.Contains(0xff), false)
	testkit.Equate(t, f.End(), uint64(0x120))
}
