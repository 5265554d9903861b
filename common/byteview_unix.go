//go:build linux || darwin || freebsd || openbsd || netbsd

package common

import (
	"io"
	"os"

	"golang.org/x/sys/unix"
)

type unixMapping struct {
	data []byte
}

func (m *unixMapping) Close() error {
	return unix.Munmap(m.data)
}

func mmapFile(f *os.File, size int64) ([]byte, io.Closer, error) {
	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, nil, err
	}
	return data, &unixMapping{data: data}, nil
}
