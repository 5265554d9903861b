package common

import (
	"io"
	"os"
)

// ByteView is a cheaply-cloneable, zero-copy reference to a contiguous byte
// buffer, backed either by a memory-mapped file or by an owned/borrowed
// slice. Every Function/LineInfo/Symbol/Name produced by a parser over a
// ByteView slices directly into its backing bytes rather than copying, so
// the ByteView must outlive anything derived from it.
type ByteView struct {
	data   []byte
	closer io.Closer
}

// FromSlice wraps an existing slice without copying or taking ownership of
// any underlying resource.
func FromSlice(b []byte) ByteView {
	return ByteView{data: b}
}

// FromVec wraps an owned slice (e.g. the result of io.ReadAll).
func FromVec(b []byte) ByteView {
	return ByteView{data: b}
}

// FromPath memory-maps the file at p read-only. The returned ByteView must
// be closed (via Close) once no derived data is needed any more; failing to
// do so leaks the mapping.
func FromPath(p string) (ByteView, error) {
	f, err := os.Open(p)
	if err != nil {
		return ByteView{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return ByteView{}, err
	}
	if info.Size() == 0 {
		return ByteView{data: []byte{}}, nil
	}

	data, closer, err := mmapFile(f, info.Size())
	if err != nil {
		// mmap isn't available on every platform/filesystem (e.g. some
		// container overlay filesystems refuse MAP_SHARED); fall back to a
		// plain read rather than failing the caller outright.
		b, rerr := os.ReadFile(p)
		if rerr != nil {
			return ByteView{}, rerr
		}
		return ByteView{data: b}, nil
	}
	return ByteView{data: data, closer: closer}, nil
}

// AsRef returns the underlying bytes. The slice is only valid as long as
// the ByteView (and anything it was cloned from) hasn't been closed.
func (b ByteView) AsRef() []byte { return b.data }

// Len returns the number of bytes.
func (b ByteView) Len() int { return len(b.data) }

// Slice returns a sub-ByteView over [start, end), sharing the backing
// memory and closer.
func (b ByteView) Slice(start, end int) ByteView {
	return ByteView{data: b.data[start:end], closer: b.closer}
}

// Close releases the mapping, if this ByteView owns one. Safe to call on a
// slice- or vec-backed ByteView (a no-op).
func (b ByteView) Close() error {
	if b.closer != nil {
		return b.closer.Close()
	}
	return nil
}
