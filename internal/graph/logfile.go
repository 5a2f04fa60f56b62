package graph

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// CompressedSuffix marks a zstd compressed event log.
const CompressedSuffix = ".zst"

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// CreateLog creates the event log at path. The log is zstd compressed when
// path ends in CompressedSuffix. Close flushes and closes the file.
func CreateLog(path string) (io.WriteCloser, error) {
	f, err := os.Create(path) //nolint:gosec // path is chosen by the operator
	if err != nil {
		return nil, fmt.Errorf("failed to create event log: %w", err)
	}
	if !strings.HasSuffix(path, CompressedSuffix) {
		return f, nil
	}

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to start compressor: %w", err)
	}
	return &compressedWriter{enc: enc, f: f}, nil
}

type compressedWriter struct {
	enc *zstd.Encoder
	f   *os.File
}

func (w *compressedWriter) Write(p []byte) (int, error) {
	return w.enc.Write(p)
}

func (w *compressedWriter) Close() error {
	return errors.Join(w.enc.Close(), w.f.Close())
}

// NewLogReader returns a reader over an event log, decompressing it when it
// starts with a zstd frame.
func NewLogReader(r io.Reader) (io.ReadCloser, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(len(zstdMagic))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read event log: %w", err)
	}
	if !bytes.Equal(head, zstdMagic) {
		return io.NopCloser(br), nil
	}

	dec, err := zstd.NewReader(br)
	if err != nil {
		return nil, fmt.Errorf("failed to start decompressor: %w", err)
	}
	return dec.IOReadCloser(), nil
}
