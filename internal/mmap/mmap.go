// Package mmap maps files read-only into memory.
package mmap

import (
	"errors"
	"os"
)

// Region is a read-only view of a whole file.
type Region struct {
	data  []byte
	unmap func([]byte) error
}

// Open maps the file at path. An empty file yields an empty region.
// The mapping is advised for sequential access.
func Open(path string) (*Region, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := fi.Size()
	if size == 0 {
		return &Region{data: []byte{}}, nil
	}
	if size < 0 || int64(int(size)) != size {
		return nil, errors.New("mmap: invalid file size")
	}

	data, unmap, err := mapFile(f, int(size))
	if err != nil {
		return nil, err
	}
	return &Region{data: data, unmap: unmap}, nil
}

// Bytes returns the mapped contents. The slice is invalid after Close.
func (r *Region) Bytes() []byte { return r.data }

// Len returns the size of the region.
func (r *Region) Len() int { return len(r.data) }

// Close unmaps the region. It is safe to call more than once.
func (r *Region) Close() error {
	if r == nil || r.data == nil {
		return nil
	}
	data := r.data
	r.data = nil
	if r.unmap == nil {
		return nil
	}
	return r.unmap(data)
}
