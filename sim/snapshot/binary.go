package snapshot

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
)

// binaryFormat is the compact format: a fixed little-endian header
// followed by the canonical arrays as raw float64 streams.
type binaryFormat struct{}

var binaryMagic = [4]byte{'G', 'S', 'N', 'P'}

const (
	binaryVersion = uint32(1)
	maxBinaryN    = int64(1) << 40 // corruption guard, not a real limit
)

type binaryHeader struct {
	Magic   [4]byte
	Version uint32
	NDim    int32
	NSph    int64
	Time    float64
}

func (binaryFormat) Name() string { return "binary" }

func (binaryFormat) Write(path string, s *State) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	hdr := binaryHeader{
		Magic:   binaryMagic,
		Version: binaryVersion,
		NDim:    int32(s.NDim),
		NSph:    int64(s.N()),
		Time:    s.Time,
	}
	if err := binary.Write(w, binary.LittleEndian, &hdr); err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	for _, col := range s.Columns() {
		if err := binary.Write(w, binary.LittleEndian, col.Data); err != nil {
			return fmt.Errorf("snapshot: %s array: %w", col.Name, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	return f.Close()
}

func (binaryFormat) Read(path string) (*State, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var hdr binaryHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("snapshot: %s: header: %w", path, err)
	}
	if !bytes.Equal(hdr.Magic[:], binaryMagic[:]) {
		return nil, fmt.Errorf("snapshot: %s is not a binary snapshot", path)
	}
	if hdr.Version != binaryVersion {
		return nil, fmt.Errorf("snapshot: %s: unsupported version %d", path, hdr.Version)
	}
	if hdr.NSph < 0 || hdr.NSph > maxBinaryN {
		return nil, fmt.Errorf("snapshot: %s: corrupt particle count %d", path, hdr.NSph)
	}

	s, err := NewState(int(hdr.NDim), int(hdr.NSph), hdr.Time)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %s: %w", path, err)
	}
	for _, col := range s.Columns() {
		if err := binary.Read(r, binary.LittleEndian, col.Data); err != nil {
			return nil, fmt.Errorf("snapshot: %s: %s array: %w", path, col.Name, err)
		}
	}
	return s, nil
}
