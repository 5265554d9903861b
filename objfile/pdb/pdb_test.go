package pdb

import (
	"encoding/binary"
	"testing"

	"github.com/crashkit/symbolic/common"
	"github.com/crashkit/symbolic/testkit"
)

// buildMSF hand-constructs a minimal single-level MSF container with two
// streams: stream 0 is unused (classic "Old MSI" slot, left empty), stream
// 1 is the PDB Info stream carrying a fixed GUID+age.
func buildMSF(t *testing.T) []byte {
	t.Helper()
	const blockSize = 512
	le := binary.LittleEndian

	// Stream 1 (PDB info): version(4) signature(4) age(4) guid(16).
	info := make([]byte, 28)
	le.PutUint32(info[0:4], 20000404)   // version
	le.PutUint32(info[4:8], 0x5c04233a) // signature
	le.PutUint32(info[8:12], 7)         // age
	for i := 0; i < 16; i++ {
		info[12+i] = byte(0xA0 + i)
	}

	// Block layout: block 0 = superblock, block 1 = block-map block,
	// block 2 = directory block, block 3 = stream 1's single data block.
	numBlocks := uint32(4)
	buf := make([]byte, int(numBlocks)*blockSize)

	copy(buf[0:msfMagicLen], msfMagic)
	hdr := buf[msfMagicLen:]
	le.PutUint32(hdr[0:4], blockSize)
	le.PutUint32(hdr[4:8], 0) // free block map (unused by reader)
	le.PutUint32(hdr[8:12], numBlocks)

	// directory content: numStreams(4) + sizes(4 each) + block id lists.
	var dir []byte
	dir = append(dir, 0, 0, 0, 0) // placeholder for numStreams, fixed below
	numStreams := uint32(2)
	sizesOff := len(dir)
	dir = append(dir, make([]byte, 8)...) // two stream sizes
	le.PutUint32(dir[0:4], numStreams)
	le.PutUint32(dir[sizesOff:sizesOff+4], 0)            // stream 0 size
	le.PutUint32(dir[sizesOff+4:sizesOff+8], uint32(len(info))) // stream 1 size
	dir = append(dir, 3, 0, 0, 0) // stream 1's single block id = 3

	le.PutUint32(hdr[12:16], uint32(len(dir))) // NumDirectoryBytes
	le.PutUint32(hdr[20:24], 1)                // BlockMapAddr = block 1

	copy(buf[1*blockSize:], []byte{2, 0, 0, 0}) // block-map block -> directory lives in block 2
	copy(buf[2*blockSize:], dir)
	copy(buf[3*blockSize:], info)

	return buf
}

func TestOpenReadsPDBInfo(t *testing.T) {
	data := buildMSF(t)
	obj, err := Open(common.FromSlice(data))
	testkit.RequireNoError(t, err)

	id := obj.DebugId()
	testkit.Equate(t, id.Appendix, uint32(7))
}
