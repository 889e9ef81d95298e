package fst

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildChain(t *testing.T) *VectorFst {
	t.Helper()
	b := NewBuilder()
	b.AddStates(3)
	b.SetStart(0)
	b.AddArc(0, Arc{ILabel: 1, OLabel: 5, Weight: 1.0, NextState: 1})
	b.AddArc(1, Arc{ILabel: 0, OLabel: 0, Weight: 0.5, NextState: 2})
	b.AddArc(2, Arc{ILabel: 2, OLabel: 6, Weight: 0.25, NextState: 2})
	b.SetFinal(2, 1.5)
	f, err := b.Build()
	require.NoError(t, err)
	return f
}

func TestVectorFst(t *testing.T) {
	f := buildChain(t)

	assert.Equal(t, StateID(0), f.Start())
	assert.Equal(t, 3, f.NumStates())
	assert.Equal(t, 3, f.NumArcs())
	assert.True(t, math.IsInf(float64(f.Final(0)), 1))
	assert.Equal(t, float32(1.5), f.Final(2))
	assert.True(t, IsFinal(f, 2))
	assert.False(t, IsFinal(f, 1))
	assert.Nil(t, f.Arcs(7))
	assert.True(t, math.IsInf(float64(f.Final(-1)), 1))

	assert.True(t, f.Arcs(0)[0].Emitting())
	assert.False(t, f.Arcs(1)[0].Emitting())
	assert.Equal(t, uint64(1), f.FinalStates().GetCardinality())
	assert.True(t, f.FinalStates().Contains(2))
}

func TestValidate(t *testing.T) {
	t.Run("DanglingArc", func(t *testing.T) {
		b := NewBuilder()
		b.AddState()
		b.SetStart(0)
		b.AddArc(0, Arc{ILabel: 1, NextState: 4})
		_, err := b.Build()
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidGraph))
		var ae *ArcError
		require.True(t, errors.As(err, &ae))
		assert.Equal(t, StateID(0), ae.State)
		assert.Equal(t, StateID(4), ae.Arc.NextState)
	})

	t.Run("NegativeWeight", func(t *testing.T) {
		b := NewBuilder()
		b.AddStates(2)
		b.SetStart(0)
		b.AddArc(0, Arc{NextState: 1, Weight: -0.1})
		_, err := b.Build()
		assert.ErrorIs(t, err, ErrInvalidGraph)
	})

	t.Run("NegativeFinal", func(t *testing.T) {
		b := NewBuilder()
		b.AddState()
		b.SetStart(0)
		b.SetFinal(0, -1)
		_, err := b.Build()
		assert.ErrorIs(t, err, ErrInvalidGraph)
	})

	t.Run("NoStart", func(t *testing.T) {
		b := NewBuilder()
		b.AddState()
		_, err := b.Build()
		assert.ErrorIs(t, err, ErrInvalidGraph)
	})

	t.Run("Empty", func(t *testing.T) {
		_, err := NewBuilder().Build()
		assert.ErrorIs(t, err, ErrInvalidGraph)
	})
}

func TestReadWrite(t *testing.T) {
	f := buildChain(t)

	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
		t.Run(c.String(), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Write(&buf, f, c))

			got, err := Read(&buf)
			require.NoError(t, err)
			assert.Equal(t, f.Start(), got.Start())
			assert.Equal(t, f.NumStates(), got.NumStates())
			for s := StateID(0); int(s) < f.NumStates(); s++ {
				assert.Equal(t, f.Arcs(s), got.Arcs(s), "state %d", s)
				assert.Equal(t, f.Final(s), got.Final(s), "state %d", s)
			}
		})
	}

	t.Run("Corrupt", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Write(&buf, f, CompressionNone))
		data := buf.Bytes()
		data[len(data)-1] ^= 0xff
		_, err := Read(bytes.NewReader(data))
		assert.ErrorIs(t, err, ErrChecksum)
	})

	t.Run("BadMagic", func(t *testing.T) {
		_, err := Read(bytes.NewReader(make([]byte, headerSize)))
		assert.ErrorIs(t, err, ErrBadMagic)
	})

	t.Run("Truncated", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Write(&buf, f, CompressionZSTD))
		_, err := Read(bytes.NewReader(buf.Bytes()[:buf.Len()-3]))
		assert.Error(t, err)
	})

	header := func(c Compression, rawSize, storedSize uint32) []byte {
		hdr := make([]byte, headerSize)
		copy(hdr, fileMagic)
		hdr[4] = fileVersion
		hdr[5] = byte(c)
		binary.LittleEndian.PutUint32(hdr[8:], rawSize)
		binary.LittleEndian.PutUint32(hdr[12:], storedSize)
		return hdr
	}

	t.Run("OversizedStoredSize", func(t *testing.T) {
		var before, after runtime.MemStats
		runtime.ReadMemStats(&before)
		_, err := Read(bytes.NewReader(header(CompressionNone, math.MaxUint32, math.MaxUint32)))
		runtime.ReadMemStats(&after)
		assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
		assert.Less(t, after.TotalAlloc-before.TotalAlloc, uint64(64<<20))
	})

	t.Run("OversizedRawSize", func(t *testing.T) {
		for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
			data := append(header(c, math.MaxUint32, 8), make([]byte, 8)...)
			_, err := Read(bytes.NewReader(data))
			assert.ErrorIs(t, err, ErrCorrupt, c.String())
		}
	})
}

func TestParseCompression(t *testing.T) {
	for _, name := range []string{"none", "lz4", "zstd"} {
		c, err := ParseCompression(name)
		require.NoError(t, err)
		assert.Equal(t, name, c.String())
	}
	_, err := ParseCompression("brotli")
	assert.Error(t, err)
}

func TestSymbolTable(t *testing.T) {
	st := NewSymbolTable()
	x := st.Add("X")
	y := st.Add("Y")
	assert.Equal(t, Label(1), x)
	assert.Equal(t, Label(2), y)
	assert.Equal(t, x, st.Add("X"))

	sym, ok := st.Symbol(Epsilon)
	require.True(t, ok)
	assert.Equal(t, EpsilonSymbol, sym)
	assert.Equal(t, []string{"Y", "X", "99"}, st.Strings([]Label{y, x, 99}))

	require.NoError(t, st.AddWithLabel("Z", 10))
	assert.Error(t, st.AddWithLabel("Z", 11))
	assert.Equal(t, Label(11), st.Add("W"))

	var buf bytes.Buffer
	require.NoError(t, st.WriteText(&buf))
	back, err := ReadSymbolTable(&buf)
	require.NoError(t, err)
	assert.Equal(t, st.Len(), back.Len())
	l, ok := back.Find("Z")
	require.True(t, ok)
	assert.Equal(t, Label(10), l)

	_, err = ReadSymbolTable(strings.NewReader("a 1 extra\n"))
	assert.Error(t, err)
	_, err = ReadSymbolTable(strings.NewReader("a x\n"))
	assert.Error(t, err)
}

func TestSymbolTableLabels(t *testing.T) {
	st := NewSymbolTable()
	a := st.Add("a")
	b := st.Add("b")

	got, err := st.Labels([]string{"b", "a", EpsilonSymbol})
	require.NoError(t, err)
	assert.Equal(t, []Label{b, a, Epsilon}, got)

	_, err = st.Labels([]string{"a", "zzz"})
	assert.Error(t, err)
}

func TestText(t *testing.T) {
	src := `# start is the source of the first arc
1	2	3	4	0.5
0	1	1	0
1	0	2	5	1.25
2	0.75
2
`
	f, err := ReadText(strings.NewReader(src), nil)
	require.NoError(t, err)
	assert.Equal(t, StateID(1), f.Start())
	assert.Equal(t, 3, f.NumStates())
	assert.Equal(t, 3, f.NumArcs())
	// A later line for the same state overrides the final cost.
	assert.Equal(t, float32(0), f.Final(2))
	assert.Equal(t, []Arc{
		{ILabel: 3, OLabel: 4, Weight: 0.5, NextState: 2},
		{ILabel: 2, OLabel: 5, Weight: 1.25, NextState: 0},
	}, f.Arcs(1))

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, f))
	back, err := ReadText(&buf, nil)
	require.NoError(t, err)
	assert.Equal(t, f.Start(), back.Start())
	for s := range f.NumStates() {
		assert.Equal(t, f.Arcs(StateID(s)), back.Arcs(StateID(s)))
		assert.Equal(t, f.Final(StateID(s)), back.Final(StateID(s)))
	}

	t.Run("OutputSymbols", func(t *testing.T) {
		st := NewSymbolTable()
		hi := st.Add("hi")
		g, err := ReadText(strings.NewReader("0 1 1 hi\n1\n"), st)
		require.NoError(t, err)
		assert.Equal(t, hi, g.Arcs(0)[0].OLabel)

		_, err = ReadText(strings.NewReader("0 1 1 bye\n"), st)
		assert.Error(t, err)
	})

	t.Run("Malformed", func(t *testing.T) {
		for _, in := range []string{
			"",
			"0 1 2\n",
			"0 x 1 1\n",
			"-1 0 1 1\n",
			"0 1 1 1 w\n",
			"0 1 1 1 -2\n",
		} {
			_, err := ReadText(strings.NewReader(in), nil)
			assert.Error(t, err, "input %q", in)
		}
	})

	t.Run("SparseStateIDs", func(t *testing.T) {
		for _, in := range []string{
			"2000000000\n",
			"0 5 1 1\n",
			"0 1 1 1\n1 2 1 1\n9\n",
		} {
			_, err := ReadText(strings.NewReader(in), nil)
			assert.ErrorIs(t, err, ErrInvalidGraph, "input %q", in)
		}

		// A start state with the largest id is still dense.
		g, err := ReadText(strings.NewReader("3 0 1 1\n0 1 1 1\n1 2 1 1\n2 3 1 1\n"), nil)
		require.NoError(t, err)
		assert.Equal(t, StateID(3), g.Start())
		assert.Equal(t, 4, g.NumStates())
	})
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	f := buildChain(t)

	var bin bytes.Buffer
	require.NoError(t, Write(&bin, f, CompressionZSTD))
	binPath := filepath.Join(dir, "chain.fst")
	require.NoError(t, os.WriteFile(binPath, bin.Bytes(), 0o600))

	var txt bytes.Buffer
	require.NoError(t, WriteText(&txt, f))
	txtPath := filepath.Join(dir, "chain.txt")
	require.NoError(t, os.WriteFile(txtPath, txt.Bytes(), 0o600))

	for _, path := range []string{binPath, txtPath} {
		g, err := Load(path, nil)
		require.NoError(t, err, path)
		assert.Equal(t, f.Start(), g.Start())
		assert.Equal(t, f.NumArcs(), g.NumArcs())
		assert.Equal(t, f.Final(2), g.Final(2))
	}

	_, err := Load(filepath.Join(dir, "missing"), nil)
	assert.ErrorIs(t, err, os.ErrNotExist)

	empty := filepath.Join(dir, "empty")
	require.NoError(t, os.WriteFile(empty, nil, 0o600))
	_, err = Load(empty, nil)
	assert.ErrorIs(t, err, ErrInvalidGraph)
}

func TestMaxInputLabel(t *testing.T) {
	assert.Equal(t, Label(2), MaxInputLabel(buildChain(t)))

	b := NewBuilder()
	b.AddStates(2)
	b.SetStart(0)
	b.AddArc(0, Arc{OLabel: 3, NextState: 1})
	f, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, Epsilon, MaxInputLabel(f))
}
