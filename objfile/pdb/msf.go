// Package pdb implements objfile.Object over the Microsoft Program
// Database (PDB) format: a small MSF (Multi-Stream File) container reader
// sufficient to recover the PDB Info stream (GUID + age, spec.md's PDB
// DebugId) and the New Frame Data stream the CFI extractor's PDB path
// turns into STACK WIN records.
//
// There is no debug/pdb package in the standard library and none of this
// toolkit's example pack carries a PDB reader either, so this is grounded
// directly on the MSF/PDB format's public documentation (the Microsoft PDB
// project on GitHub) rather than adapted from existing Go source, unlike
// every other parser in this package.
package pdb

import (
	"bytes"
	"encoding/binary"

	"github.com/crashkit/symbolic/dbgerr"
)

const msfMagicLen = 32

var msfMagic = []byte("Microsoft C/C++ MSF 7.00\r\n\x1aDS\x00\x00\x00")

type msfFile struct {
	data      []byte
	blockSize uint32
	streams   [][]byte // stream index -> concatenated block contents, trimmed to stream size
}

func openMSF(data []byte) (*msfFile, error) {
	if len(data) < msfMagicLen+24 {
		return nil, dbgerr.New(dbgerr.BadDebugFile, "pdb: file too small for MSF superblock")
	}
	if !bytes.Equal(data[:msfMagicLen], msfMagic[:msfMagicLen]) {
		return nil, dbgerr.New(dbgerr.BadDebugFile, "pdb: bad MSF magic")
	}

	le := binary.LittleEndian
	hdr := data[msfMagicLen:]
	blockSize := le.Uint32(hdr[0:4])
	// hdr[4:8] is FreeBlockMapBlock, unused here.
	numBlocks := le.Uint32(hdr[8:12])
	numDirectoryBytes := le.Uint32(hdr[12:16])
	// hdr[16:20] is reserved ("Unknown").
	blockMapAddr := le.Uint32(hdr[20:24])

	if blockSize == 0 || uint64(numBlocks)*uint64(blockSize) > uint64(len(data)) {
		return nil, dbgerr.New(dbgerr.BadDebugFile, "pdb: implausible MSF superblock")
	}

	readBlock := func(i uint32) []byte {
		start := uint64(i) * uint64(blockSize)
		if start+uint64(blockSize) > uint64(len(data)) {
			return nil
		}
		return data[start : start+uint64(blockSize)]
	}

	numDirBlocks := ceilDiv(numDirectoryBytes, blockSize)
	blockMapBlock := readBlock(blockMapAddr)
	if blockMapBlock == nil || uint64(numDirBlocks)*4 > uint64(len(blockMapBlock)) {
		return nil, dbgerr.New(dbgerr.BadDebugFile, "pdb: block map block out of range")
	}

	dirBlockIDs := make([]uint32, numDirBlocks)
	for i := range dirBlockIDs {
		dirBlockIDs[i] = le.Uint32(blockMapBlock[i*4 : i*4+4])
	}

	var dir []byte
	for _, b := range dirBlockIDs {
		block := readBlock(b)
		if block == nil {
			return nil, dbgerr.New(dbgerr.BadDebugFile, "pdb: directory block out of range")
		}
		dir = append(dir, block...)
	}
	dir = dir[:numDirectoryBytes]

	numStreams := le.Uint32(dir[0:4])
	streamSizes := make([]uint32, numStreams)
	for i := range streamSizes {
		streamSizes[i] = le.Uint32(dir[4+i*4 : 8+i*4])
	}

	offset := 4 + int(numStreams)*4
	streams := make([][]byte, numStreams)
	for i, size := range streamSizes {
		if size == 0 || size == 0xffffffff {
			continue
		}
		nBlocks := ceilDiv(size, blockSize)
		blockIDs := make([]uint32, nBlocks)
		for b := range blockIDs {
			if offset+4 > len(dir) {
				return nil, dbgerr.New(dbgerr.BadDebugFile, "pdb: stream directory truncated")
			}
			blockIDs[b] = le.Uint32(dir[offset : offset+4])
			offset += 4
		}
		var content []byte
		for _, b := range blockIDs {
			block := readBlock(b)
			if block == nil {
				return nil, dbgerr.New(dbgerr.BadDebugFile, "pdb: stream block out of range")
			}
			content = append(content, block...)
		}
		streams[i] = content[:size]
	}

	return &msfFile{data: data, blockSize: blockSize, streams: streams}, nil
}

func (m *msfFile) stream(i int) []byte {
	if i < 0 || i >= len(m.streams) {
		return nil
	}
	return m.streams[i]
}

func ceilDiv(a, b uint32) uint32 {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}
