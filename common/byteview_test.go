package common_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/crashkit/symbolic/common"
	"github.com/crashkit/symbolic/testkit"
)

func TestByteViewFromSlice(t *testing.T) {
	data := []byte{1, 2, 3, 4}
	bv := common.FromSlice(data)
	testkit.Equate(t, bv.Len(), 4)
	testkit.Equate(t, bv.AsRef(), data)
	testkit.RequireNoError(t, bv.Close())
}

func TestByteViewFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blob.bin")
	want := []byte("hello, symcache")
	testkit.RequireNoError(t, os.WriteFile(path, want, 0o600))

	bv, err := common.FromPath(path)
	testkit.RequireNoError(t, err)
	defer bv.Close()

	testkit.Equate(t, bv.AsRef(), want)
}

func TestByteViewSlice(t *testing.T) {
	bv := common.FromVec([]byte{0, 1, 2, 3, 4, 5})
	sub := bv.Slice(2, 4)
	testkit.Equate(t, sub.AsRef(), []byte{2, 3})
}
