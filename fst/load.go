package fst

import (
	"bytes"
	"fmt"

	"github.com/hupe1980/beamdec/internal/mmap"
)

// Load reads the graph file at path. Files starting with the binary magic are
// decoded with Read; anything else is parsed with ReadText using osyms.
//
// The file is memory-mapped while it is parsed; the returned graph does not
// reference the mapping.
func Load(path string, osyms *SymbolTable) (*VectorFst, error) {
	region, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}
	defer region.Close()

	data := region.Bytes()
	var f *VectorFst
	if IsBinary(data) {
		f, err = Read(bytes.NewReader(data))
	} else {
		f, err = ReadText(bytes.NewReader(data), osyms)
	}
	if err != nil {
		return nil, fmt.Errorf("fst: load %s: %w", path, err)
	}
	return f, nil
}
