package decodable

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatrix(t *testing.T) {
	m, err := NewMatrix([][]float32{
		{1, 2, 3},
		{4, 5, 6},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, m.NumFramesReady())
	assert.Equal(t, 3, m.NumIndices())
	assert.Equal(t, float32(1), m.AcousticCost(0, 1))
	assert.Equal(t, float32(6), m.AcousticCost(1, 3))
	assert.False(t, m.IsLastFrame(0))
	assert.True(t, m.IsLastFrame(1))

	assert.Panics(t, func() { m.AcousticCost(2, 1) })
	assert.Panics(t, func() { m.AcousticCost(0, 0) })
	assert.Panics(t, func() { m.AcousticCost(0, 4) })

	_, err = NewMatrix([][]float32{{1, 2}, {3}})
	assert.ErrorIs(t, err, ErrRagged)
}

func TestFromLogLikelihoods(t *testing.T) {
	m, err := FromLogLikelihoods([][]float32{{-2, -0.5}}, 0.1)
	require.NoError(t, err)
	assert.InDelta(t, 0.2, m.AcousticCost(0, 1), 1e-6)
	assert.InDelta(t, 0.05, m.AcousticCost(0, 2), 1e-6)
}

func TestReadMatrix(t *testing.T) {
	in := "# frame costs\n1.0 2.5\n\n3 4\n"
	m, err := ReadMatrix(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, 2, m.NumFramesReady())
	assert.Equal(t, float32(2.5), m.AcousticCost(0, 2))

	_, err = ReadMatrix(strings.NewReader("1 x\n"))
	assert.Error(t, err)

	_, err = ReadMatrix(strings.NewReader("1 2\n3\n"))
	assert.ErrorIs(t, err, ErrRagged)

	empty, err := ReadMatrix(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, 0, empty.NumFramesReady())
	assert.Equal(t, 0, empty.NumIndices())
}

func TestOnline(t *testing.T) {
	o := NewOnline(2)
	assert.Equal(t, 0, o.NumFramesReady())

	row := []float32{1, 2}
	require.NoError(t, o.AcceptFrame(row))
	row[0] = 99 // must have been copied
	assert.Equal(t, float32(1), o.AcousticCost(0, 1))
	assert.False(t, o.IsLastFrame(0))

	require.NoError(t, o.AcceptFrame([]float32{3, 4}))
	assert.ErrorIs(t, o.AcceptFrame([]float32{1}), ErrRagged)

	o.InputFinished()
	assert.True(t, o.IsLastFrame(1))
	assert.ErrorIs(t, o.AcceptFrame([]float32{5, 6}), ErrInputFinished)
	assert.Equal(t, 2, o.NumFramesReady())
	assert.Panics(t, func() { o.AcousticCost(2, 1) })
}
