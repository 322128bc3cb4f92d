package qudi

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/Bienpang/qudi/codec"
	"github.com/Bienpang/qudi/document"
)

// Default permission modes for saved files and created directories.
const (
	DefaultFileMode = 0644
	DefaultDirMode  = 0755
)

// LoadOption is a functional option for Load.
type LoadOption func(*loadOptions)

type loadOptions struct {
	ignoreMissing bool
	registry      *codec.Registry
}

// WithIgnoreMissing makes Load return an empty document instead of a
// NotFoundError when the file does not exist.
func WithIgnoreMissing() LoadOption {
	return func(o *loadOptions) {
		o.ignoreMissing = true
	}
}

// WithLoadRegistry selects a tag registry other than the default.
// Mainly useful in tests.
func WithLoadRegistry(r *codec.Registry) LoadOption {
	return func(o *loadOptions) {
		o.registry = r
	}
}

// Load reads and decodes the configuration file at path.
//
// A missing file fails with *document.NotFoundError (which unwraps to
// fs.ErrNotExist) unless WithIgnoreMissing is given, in which case an
// empty document is returned. Relative !extndarray references inside
// the file resolve against the process working directory.
//
// Example:
//
//	doc, err := qudi.Load("/etc/qudi/default.cfg")
//	if errors.Is(err, fs.ErrNotExist) {
//	  // first run, no config yet
//	}
func Load(path string, opts ...LoadOption) (*document.Document, error) {
	var options loadOptions
	for _, opt := range opts {
		opt(&options)
	}

	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist), err == nil && info.IsDir():
		if options.ignoreMissing {
			return document.New(), nil
		}
		return nil, &document.NotFoundError{Path: path}
	case err != nil:
		// Permission and other I/O failures are not "missing" and are
		// never suppressed.
		return nil, fmt.Errorf("failed to stat config file %q: %w", path, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %q: %w", path, err)
	}

	doc, err := codec.NewDecoder(options.registry).DecodeBytes(data)
	if err != nil {
		return nil, annotatePath(err, path)
	}
	return doc, nil
}

// LoadStream decodes configuration text from r. An empty stream
// decodes to an empty document. External array references resolve
// against the process working directory.
func LoadStream(r io.Reader) (*document.Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read config stream: %w", err)
	}
	return codec.NewDecoder(nil).DecodeBytes(data)
}

// SaveOption is a functional option for Save.
type SaveOption func(*saveOptions)

type saveOptions struct {
	fileMode os.FileMode
	dirMode  os.FileMode
	registry *codec.Registry
}

// WithFileMode sets the permission mode of the saved file.
// Default: 0644.
func WithFileMode(mode os.FileMode) SaveOption {
	return func(o *saveOptions) {
		o.fileMode = mode
	}
}

// WithDirMode sets the permission mode of created directories.
// Default: 0755.
func WithDirMode(mode os.FileMode) SaveOption {
	return func(o *saveOptions) {
		o.dirMode = mode
	}
}

// WithSaveRegistry selects a tag registry other than the default.
func WithSaveRegistry(r *codec.Registry) SaveOption {
	return func(o *saveOptions) {
		o.registry = r
	}
}

// Save encodes doc and writes it to path, creating parent directories
// as needed.
//
// Arrays in the document are externalized to sibling archive files
// named after path; an array whose archive cannot be written embeds
// inline instead. The main file is written atomically: the text goes
// to a temporary file in the destination directory which is then
// renamed over path, so a failed save never leaves a truncated
// configuration behind. Already-written array archives are not removed
// on failure.
func Save(path string, doc *document.Document, opts ...SaveOption) error {
	options := saveOptions{
		fileMode: DefaultFileMode,
		dirMode:  DefaultDirMode,
	}
	for _, opt := range opts {
		opt(&options)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, options.dirMode); err != nil {
		return fmt.Errorf("failed to create directory %q: %w", dir, err)
	}

	enc := codec.NewEncoder(options.registry, codec.WithDestination(path))
	data, err := enc.EncodeBytes(doc)
	if err != nil {
		return fmt.Errorf("failed to encode config for %q: %w", path, err)
	}

	return writeFileAtomic(path, data, options.fileMode)
}

// DumpStream encodes doc to w. With no destination path, arrays embed
// inline as !ndarray blobs.
func DumpStream(w io.Writer, doc *document.Document) error {
	data, err := codec.NewEncoder(nil).EncodeBytes(doc)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write config stream: %w", err)
	}
	return nil
}

// writeFileAtomic writes data to path via a temporary file in the same
// directory plus a rename.
func writeFileAtomic(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".qudi-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temporary file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temporary file: %w", err)
	}
	if err := os.Chmod(tmpPath, mode); err != nil {
		return fmt.Errorf("failed to set file permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temporary file to %q: %w", path, err)
	}
	success = true
	return nil
}

// annotatePath fills the path into a ParseError coming from stream
// decoding, so load failures identify the offending file.
func annotatePath(err error, path string) error {
	if perr, ok := err.(*document.ParseError); ok && perr.Path == "" {
		perr.Path = path
		return perr
	}
	return err
}
