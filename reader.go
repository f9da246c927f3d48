package tpx3

import (
	"bytes"
	"io"
	"os"
)

// Stream is a generic byte source so the scanner can work uniformly over
// a memory-mapped file, a plain os.File, or an in-memory buffer. Only
// Read and Seek are required, a minimal contract that abstracts over a
// backing VFS handle versus an in-memory byte reader.
type Stream interface {
	io.Reader
	Seek(offset int64, whence int) (int64, error)
}

// GenericStream chooses between reading the entire source into memory
// (inmem == true, the common case for a memory-mapped or small file) or
// leaving it as a passthrough stream the caller already owns.
func GenericStream(src Stream, size int64, inmem bool) (Stream, error) {
	if !inmem {
		return src, nil
	}
	buffer := make([]byte, size)
	if _, err := io.ReadFull(src, buffer); err != nil {
		return nil, err
	}
	return bytes.NewReader(buffer), nil
}

// OpenFile mmaps-equivalent: for simplicity and portability this reads the
// whole file into memory and returns its bytes.
// Callers processing files larger than memory should use the streaming
// section scanner directly against os.File via ReadAt instead.
func OpenFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return data, nil
}
