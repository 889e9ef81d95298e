package fst

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"math"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects how the graph payload is stored on disk.
type Compression uint8

const (
	// CompressionNone stores the payload as is.
	CompressionNone Compression = 0
	// CompressionLZ4 uses LZ4 block compression (fast load).
	CompressionLZ4 Compression = 1
	// CompressionZSTD uses zstd (smaller files).
	CompressionZSTD Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

// ParseCompression parses "none", "lz4" or "zstd".
func ParseCompression(s string) (Compression, error) {
	switch s {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZSTD, nil
	default:
		return 0, fmt.Errorf("fst: unknown compression %q", s)
	}
}

var (
	// ErrBadMagic is returned when the input is not a graph file.
	ErrBadMagic = errors.New("fst: bad magic")
	// ErrChecksum is returned when the payload checksum does not match.
	ErrChecksum = errors.New("fst: checksum mismatch")
	// ErrUnsupportedVersion is returned for files written by a newer format.
	ErrUnsupportedVersion = errors.New("fst: unsupported version")
	// ErrCorrupt is returned when header sizes are inconsistent.
	ErrCorrupt = errors.New("fst: corrupt header")
)

const (
	fileMagic   = "BDFS"
	fileVersion = 1

	// magic(4) version(1) compression(1) reserved(2) rawSize(4) storedSize(4) crc(4)
	headerSize = 20
	arcSize    = 16

	maxDecodedSize = 1 << 32
)

var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxDecodedSize))
	return dec
}

// Write serializes f to w.
//
// Layout: a fixed header followed by the (optionally compressed) payload.
// The CRC32C in the header covers the uncompressed payload.
func Write(w io.Writer, f *VectorFst, c Compression) error {
	raw, err := encodePayload(f)
	if err != nil {
		return err
	}

	stored := raw
	switch c {
	case CompressionNone:
	case CompressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(raw)))
		n, err := lz4.CompressBlock(raw, buf, nil)
		if err != nil {
			return fmt.Errorf("fst: lz4: %w", err)
		}
		if n == 0 {
			// Incompressible.
			c = CompressionNone
		} else {
			stored = buf[:n]
		}
	case CompressionZSTD:
		enc := getZstdEncoder()
		stored = enc.EncodeAll(raw, nil)
		zstdEncoderPool.Put(enc)
	default:
		return fmt.Errorf("fst: unknown compression %d", c)
	}

	var hdr [headerSize]byte
	copy(hdr[0:4], fileMagic)
	hdr[4] = fileVersion
	hdr[5] = byte(c)
	binary.LittleEndian.PutUint32(hdr[8:], uint32(len(raw)))
	binary.LittleEndian.PutUint32(hdr[12:], uint32(len(stored)))
	binary.LittleEndian.PutUint32(hdr[16:], crc32.Checksum(raw, crc32cTable))

	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err = w.Write(stored)
	return err
}

// maxExpansion bounds rawSize/storedSize per compression. LZ4 blocks expand at
// most ~255x; zstd is capped well above what arc tables reach.
func maxExpansion(c Compression) uint64 {
	switch c {
	case CompressionNone:
		return 1
	case CompressionLZ4:
		return 255
	default:
		return 4096
	}
}

// IsBinary reports whether b starts with the binary graph magic.
func IsBinary(b []byte) bool {
	return len(b) >= len(fileMagic) && string(b[:len(fileMagic)]) == fileMagic
}

// Read deserializes a graph written by Write and validates it.
func Read(r io.Reader) (*VectorFst, error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("fst: read header: %w", err)
	}
	if string(hdr[0:4]) != fileMagic {
		return nil, ErrBadMagic
	}
	if hdr[4] != fileVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, hdr[4])
	}
	c := Compression(hdr[5])
	rawSize := binary.LittleEndian.Uint32(hdr[8:])
	storedSize := binary.LittleEndian.Uint32(hdr[12:])
	sum := binary.LittleEndian.Uint32(hdr[16:])

	// Header sizes are untrusted: the payload buffer grows with the bytes
	// actually read, and rawSize must be reachable from storedSize.
	stored, err := io.ReadAll(io.LimitReader(r, int64(storedSize)))
	if err != nil {
		return nil, fmt.Errorf("fst: read payload: %w", err)
	}
	if uint32(len(stored)) != storedSize {
		return nil, fmt.Errorf("fst: read payload: %w", io.ErrUnexpectedEOF)
	}
	if uint64(rawSize) > maxExpansion(c)*uint64(storedSize)+64 {
		return nil, fmt.Errorf("%w: payload size %d from %d stored bytes", ErrCorrupt, rawSize, storedSize)
	}

	var raw []byte
	switch c {
	case CompressionNone:
		raw = stored
	case CompressionLZ4:
		raw = make([]byte, rawSize)
		n, err := lz4.UncompressBlock(stored, raw)
		if err != nil {
			return nil, fmt.Errorf("fst: lz4: %w", err)
		}
		raw = raw[:n]
	case CompressionZSTD:
		dec := getZstdDecoder()
		out, err := dec.DecodeAll(stored, make([]byte, 0, rawSize))
		zstdDecoderPool.Put(dec)
		if err != nil {
			return nil, fmt.Errorf("fst: zstd: %w", err)
		}
		raw = out
	default:
		return nil, fmt.Errorf("fst: unknown compression %d", c)
	}

	if uint32(len(raw)) != rawSize {
		return nil, fmt.Errorf("fst: payload size %d, header says %d", len(raw), rawSize)
	}
	if crc32.Checksum(raw, crc32cTable) != sum {
		return nil, ErrChecksum
	}
	return decodePayload(raw)
}

func encodePayload(f *VectorFst) ([]byte, error) {
	var buf bytes.Buffer
	var scratch [arcSize]byte

	binary.LittleEndian.PutUint32(scratch[0:], uint32(f.NumStates()))
	binary.LittleEndian.PutUint32(scratch[4:], uint32(f.start))
	buf.Write(scratch[:8])

	for _, arcs := range f.arcs {
		binary.LittleEndian.PutUint32(scratch[0:], uint32(len(arcs)))
		buf.Write(scratch[:4])
		for _, a := range arcs {
			binary.LittleEndian.PutUint32(scratch[0:], uint32(a.ILabel))
			binary.LittleEndian.PutUint32(scratch[4:], uint32(a.OLabel))
			binary.LittleEndian.PutUint32(scratch[8:], math.Float32bits(a.Weight))
			binary.LittleEndian.PutUint32(scratch[12:], uint32(a.NextState))
			buf.Write(scratch[:arcSize])
		}
	}

	var finals bytes.Buffer
	if _, err := f.finalSet.WriteTo(&finals); err != nil {
		return nil, fmt.Errorf("fst: write final set: %w", err)
	}
	binary.LittleEndian.PutUint32(scratch[0:], uint32(finals.Len()))
	buf.Write(scratch[:4])
	buf.Write(finals.Bytes())

	it := f.finalSet.Iterator()
	for it.HasNext() {
		s := it.Next()
		binary.LittleEndian.PutUint32(scratch[0:], math.Float32bits(f.finals[s]))
		buf.Write(scratch[:4])
	}
	return buf.Bytes(), nil
}

type payloadReader struct {
	data []byte
	off  int
	err  error
}

func (p *payloadReader) u32() uint32 {
	if p.err != nil {
		return 0
	}
	if p.off+4 > len(p.data) {
		p.err = io.ErrUnexpectedEOF
		return 0
	}
	v := binary.LittleEndian.Uint32(p.data[p.off:])
	p.off += 4
	return v
}

func (p *payloadReader) bytes(n int) []byte {
	if p.err != nil {
		return nil
	}
	if n < 0 || p.off+n > len(p.data) {
		p.err = io.ErrUnexpectedEOF
		return nil
	}
	b := p.data[p.off : p.off+n]
	p.off += n
	return b
}

func decodePayload(raw []byte) (*VectorFst, error) {
	p := &payloadReader{data: raw}
	n := int(p.u32())
	start := StateID(int32(p.u32()))
	if p.err != nil {
		return nil, fmt.Errorf("fst: decode: %w", p.err)
	}
	// Every state needs at least its arc count.
	if n > len(raw)/4 {
		return nil, fmt.Errorf("fst: decode: state count %d exceeds payload", n)
	}

	b := NewBuilder()
	b.AddStates(n)
	b.SetStart(start)
	for s := 0; s < n; s++ {
		na := int(p.u32())
		if p.err == nil && na > (len(raw)-p.off)/arcSize {
			return nil, fmt.Errorf("fst: decode: state %d arc count %d exceeds payload", s, na)
		}
		if na > 0 {
			b.arcs[s] = make([]Arc, na)
		}
		for i := 0; i < na; i++ {
			b.arcs[s][i] = Arc{
				ILabel:    Label(int32(p.u32())),
				OLabel:    Label(int32(p.u32())),
				Weight:    math.Float32frombits(p.u32()),
				NextState: StateID(int32(p.u32())),
			}
		}
	}

	finalsLen := int(p.u32())
	finalBytes := p.bytes(finalsLen)
	if p.err != nil {
		return nil, fmt.Errorf("fst: decode: %w", p.err)
	}
	finals := roaring.New()
	if _, err := finals.ReadFrom(bytes.NewReader(finalBytes)); err != nil {
		return nil, fmt.Errorf("fst: decode final set: %w", err)
	}
	it := finals.Iterator()
	for it.HasNext() {
		s := it.Next()
		cost := math.Float32frombits(p.u32())
		if p.err != nil {
			return nil, fmt.Errorf("fst: decode: %w", p.err)
		}
		if int(s) >= n {
			return nil, fmt.Errorf("%w: final state %d out of range", ErrInvalidGraph, s)
		}
		b.SetFinal(StateID(s), cost)
	}
	return b.Build()
}
