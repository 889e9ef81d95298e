package cli

import (
	"fmt"
	"os"

	"github.com/hupe1980/beamdec/fst"
)

func loadSymbols(path string) (*fst.SymbolTable, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	st, err := fst.ReadSymbolTable(f)
	if err != nil {
		return nil, fmt.Errorf("load symbols %s: %w", path, err)
	}
	return st, nil
}
