package model

import (
	"bytes"
	"compress/gzip"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/edsrzf/mmap-go"
)

// TableSnapshot names snapshot failures in LoadError.
const TableSnapshot = "snapshot"

const snapshotMagic = "PYSNAP1\n"

// WriteSnapshot writes t as a single gzip compressed gob stream.
func WriteSnapshot(w io.Writer, t *Tables) error {
	if _, err := io.WriteString(w, snapshotMagic); err != nil {
		return err
	}
	zw := gzip.NewWriter(w)
	if err := gob.NewEncoder(zw).Encode(t); err != nil {
		zw.Close()
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return zw.Close()
}

// ReadSnapshot decodes tables written by WriteSnapshot.
func ReadSnapshot(r io.Reader) (*Tables, error) {
	magic := make([]byte, len(snapshotMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, &LoadError{Table: TableSnapshot, Err: fmt.Errorf("read header: %w", err)}
	}
	if string(magic) != snapshotMagic {
		return nil, &LoadError{Table: TableSnapshot, Err: errors.New("not a model snapshot")}
	}
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, &LoadError{Table: TableSnapshot, Err: err}
	}
	defer zr.Close()

	var t Tables
	if err := gob.NewDecoder(zr).Decode(&t); err != nil {
		return nil, &LoadError{Table: TableSnapshot, Err: fmt.Errorf("decode: %w", err)}
	}
	return &t, nil
}

// OpenSnapshot memory-maps the snapshot at path and decodes it. The mapping
// is released before returning.
func OpenSnapshot(path string) (*Tables, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Table: TableSnapshot, Err: err}
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, &LoadError{Table: TableSnapshot, Err: err}
	}
	if info.Size() == 0 {
		return nil, &LoadError{Table: TableSnapshot, Err: errors.New("empty file")}
	}

	data, err := mmap.Map(file, mmap.RDONLY, 0)
	if err != nil {
		return nil, &LoadError{Table: TableSnapshot, Err: fmt.Errorf("mmap: %w", err)}
	}
	defer data.Unmap()

	return ReadSnapshot(bytes.NewReader(data))
}

// SaveSnapshot writes t to path.
func SaveSnapshot(path string, t *Tables) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	if err := WriteSnapshot(file, t); err != nil {
		return err
	}
	return file.Close()
}
