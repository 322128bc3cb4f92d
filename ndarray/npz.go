package ndarray

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/flate"
)

// NPZ archive handling. An archive is a ZIP container holding exactly
// one deflate-compressed entry named "array.npy". Deflate goes through
// klauspost/compress, which is wire-compatible with compress/flate.

// archiveEntryName is the name of the single array entry.
const archiveEntryName = "array.npy"

// newDeflateWriter is the compressor registered for zip.Deflate.
func newDeflateWriter(w io.Writer) (io.WriteCloser, error) {
	return flate.NewWriter(w, flate.DefaultCompression)
}

// newDeflateReader is the decompressor registered for zip.Deflate.
func newDeflateReader(r io.Reader) io.ReadCloser {
	return flate.NewReader(r)
}

// EncodeNPZ writes the array to w as a compressed archive.
func EncodeNPZ(w io.Writer, a *Array) error {
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, newDeflateWriter)

	entry, err := zw.CreateHeader(&zip.FileHeader{
		Name:   archiveEntryName,
		Method: zip.Deflate,
	})
	if err != nil {
		zw.Close()
		return fmt.Errorf("ndarray: failed to create archive entry: %w", err)
	}
	if _, err := entry.Write(encodeNPY(a)); err != nil {
		zw.Close()
		return fmt.Errorf("ndarray: failed to write archive entry: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("ndarray: failed to finalize archive: %w", err)
	}
	return nil
}

// EncodeNPZBytes returns the array serialized as a compressed archive.
func EncodeNPZBytes(a *Array) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodeNPZ(&buf, a); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeNPZ reads one array from a compressed archive.
func DecodeNPZ(r io.ReaderAt, size int64) (*Array, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("ndarray: corrupt array archive: %w", err)
	}
	zr.RegisterDecompressor(zip.Deflate, newDeflateReader)

	for _, f := range zr.File {
		if f.Name != archiveEntryName && f.Name != "array" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("ndarray: failed to open archive entry: %w", err)
		}
		payload, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("ndarray: failed to read archive entry: %w", err)
		}
		return decodeNPY(payload)
	}
	return nil, fmt.Errorf("ndarray: archive has no %q entry", archiveEntryName)
}

// DecodeNPZBytes reads one array from an in-memory compressed archive.
func DecodeNPZBytes(data []byte) (*Array, error) {
	return DecodeNPZ(bytes.NewReader(data), int64(len(data)))
}

// WriteNPZ writes the array to a new archive file at path.
// The file is flushed and closed before WriteNPZ returns.
func WriteNPZ(path string, a *Array) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("ndarray: failed to create %q: %w", path, err)
	}
	if err := EncodeNPZ(f, a); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("ndarray: failed to sync %q: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("ndarray: failed to close %q: %w", path, err)
	}
	return nil
}

// ReadNPZ reads one array from the archive file at path.
func ReadNPZ(path string) (*Array, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ndarray: failed to open %q: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("ndarray: failed to stat %q: %w", path, err)
	}
	a, err := DecodeNPZ(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("%q: %w", path, err)
	}
	return a, nil
}
