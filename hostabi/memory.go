package hostabi

import (
	"bytes"
	"encoding/binary"
)

// Memory is the view of guest linear memory the boundary reads and
// writes. wazero's api.Memory satisfies it. Read returns a mutable
// view, not a copy, so response bodies can be drained straight into
// guest memory.
type Memory interface {
	Read(offset, byteCount uint32) ([]byte, bool)
	Write(offset uint32, v []byte) bool
	WriteUint32Le(offset, v uint32) bool
	WriteUint64Le(offset, v uint64) bool
	Size() uint32
}

// ByteMemory is a Memory backed by a plain byte slice, for tests where
// guest memory contents are staged and inspected directly.
type ByteMemory []byte

func (m ByteMemory) Read(offset, byteCount uint32) ([]byte, bool) {
	if uint64(offset)+uint64(byteCount) > uint64(len(m)) {
		return nil, false
	}
	return m[offset : offset+byteCount], true
}

func (m ByteMemory) Write(offset uint32, v []byte) bool {
	if uint64(offset)+uint64(len(v)) > uint64(len(m)) {
		return false
	}
	copy(m[offset:], v)
	return true
}

func (m ByteMemory) WriteUint32Le(offset, v uint32) bool {
	if uint64(offset)+4 > uint64(len(m)) {
		return false
	}
	binary.LittleEndian.PutUint32(m[offset:], v)
	return true
}

func (m ByteMemory) WriteUint64Le(offset, v uint64) bool {
	if uint64(offset)+8 > uint64(len(m)) {
		return false
	}
	binary.LittleEndian.PutUint64(m[offset:], v)
	return true
}

func (m ByteMemory) Size() uint32 {
	return uint32(len(m))
}

const cstringChunk = 256

// readCString decodes the NUL-terminated string at ptr. The scan walks
// forward in chunks so a short string near the end of memory does not
// fault on an oversized read. Returns false when the string runs past
// the end of memory without a terminator.
func readCString(mem Memory, ptr uint32) (string, bool) {
	size := mem.Size()
	if ptr >= size {
		return "", false
	}

	var out []byte
	for off := ptr; off < size; {
		n := uint32(cstringChunk)
		if size-off < n {
			n = size - off
		}
		b, ok := mem.Read(off, n)
		if !ok {
			return "", false
		}
		if i := bytes.IndexByte(b, 0); i >= 0 {
			out = append(out, b[:i]...)
			return string(out), true
		}
		out = append(out, b...)
		off += n
	}
	return "", false
}
