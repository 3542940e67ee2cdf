// File: confgen/writer.go
package confgen

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/go-cmp/cmp"
)

// WriteRequest is one rendered artifact to materialize.
type WriteRequest struct {
	// Name is the output file name, extension included.
	Name string
	// Dir is the target directory. An output-dir override on the Writer
	// takes precedence.
	Dir string
	// Content is the rendered text, without banner.
	Content []byte
	// Clean requests clearing the target directory before writing. Never
	// implied.
	Clean bool
}

// Report describes one write that happened or, in dry-run mode, would
// have.
type Report struct {
	Path    string
	Content []byte
}

// Writer materializes rendered content to target locations.
type Writer struct {
	outputDir string
	dryRun    bool
	validate  bool
	banner    bool
	logger    *slog.Logger

	cleaned map[string]bool
}

// WriterOption customizes a Writer.
type WriterOption func(*Writer)

// WithOutputDir overrides every request's target directory.
func WithOutputDir(dir string) WriterOption {
	return func(w *Writer) { w.outputDir = dir }
}

// WithDryRun substitutes a report for the actual write and leaves the
// filesystem untouched.
func WithDryRun(on bool) WriterOption {
	return func(w *Writer) { w.dryRun = on }
}

// WithValidate compares fresh content against pre-existing files instead
// of writing, failing with a diff on mismatch.
func WithValidate(on bool) WriterOption {
	return func(w *Writer) { w.validate = on }
}

// WithBanner prefixes output files with an autogenerated-file marker whose
// comment syntax follows the file extension.
func WithBanner(on bool) WriterOption {
	return func(w *Writer) { w.banner = on }
}

// WithWriterLogger sets the logger.
func WithWriterLogger(l *slog.Logger) WriterOption {
	return func(w *Writer) { w.logger = l }
}

// NewWriter creates a Writer.
func NewWriter(opts ...WriterOption) *Writer {
	w := &Writer{
		logger:  slog.Default(),
		cleaned: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write materializes all requests. In dry-run mode it returns the reports
// without touching the filesystem; in validate mode it compares against
// existing files and writes nothing.
func (w *Writer) Write(requests []WriteRequest) ([]Report, error) {
	reports := make([]Report, 0, len(requests))

	for _, req := range requests {
		dir := req.Dir
		if w.outputDir != "" {
			dir = w.outputDir
		}
		path := filepath.Join(dir, req.Name)
		content := req.Content
		if w.banner {
			content = withBanner(req.Name, content)
		}

		switch {
		case w.validate:
			if err := w.validateFile(path, content); err != nil {
				return nil, err
			}
		case w.dryRun:
			// Report only; no directory creation, no clean.
		default:
			if req.Clean && !w.cleaned[dir] {
				if err := cleanDir(dir); err != nil {
					return nil, err
				}
				w.cleaned[dir] = true
			}
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create target directory '%s': %w", dir, err)
			}
			if err := atomicWriteFile(path, content); err != nil {
				return nil, err
			}
			w.logger.Debug("wrote output file", "path", path, "bytes", len(content))
		}

		reports = append(reports, Report{Path: path, Content: content})
	}

	return reports, nil
}

// validateFile compares fresh content with the file already on disk. A
// missing file is a mismatch too: validate mode asserts the tree is fully
// generated.
func (w *Writer) validateFile(path string, fresh []byte) error {
	existing, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &ValidationMismatchError{Path: path, Diff: "file does not exist"}
		}
		return fmt.Errorf("failed to read existing file '%s': %w", path, err)
	}
	if diff := cmp.Diff(string(existing), string(fresh)); diff != "" {
		return &ValidationMismatchError{Path: path, Diff: diff}
	}
	return nil
}

// cleanDir removes the directory's contents, not the directory itself. A
// missing directory is not an error.
func cleanDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read target directory '%s': %w", dir, err)
	}
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			return fmt.Errorf("failed to clean '%s': %w", dir, err)
		}
	}
	return nil
}

// Banner is the autogenerated-file marker prefixed to output files.
const Banner = "Autogenerated by confgen. Do not edit."

// withBanner prefixes the marker with comment syntax matching the file
// extension. Unknown extensions get no banner.
func withBanner(name string, content []byte) []byte {
	prefix := commentPrefix(name)
	if prefix == "" {
		return content
	}
	banner := prefix + " " + Banner + "\n"
	return append([]byte(banner), content...)
}

func commentPrefix(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml", ".properties", ".py", ".toml", ".conf", ".sh", ".ini":
		return "#"
	case ".json", ".js", ".go", ".java":
		return "//"
	default:
		return ""
	}
}

// atomicWriteFile writes data via a temp file and rename so readers never
// observe a partial file.
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory '%s': %w", dir, err)
	}

	tempFile, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}

	tempPath := tempFile.Name()
	defer os.Remove(tempPath) // Clean up on any error

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		return fmt.Errorf("failed to write temporary file: %w", err)
	}

	if err := tempFile.Sync(); err != nil {
		tempFile.Close()
		return fmt.Errorf("failed to sync temporary file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("failed to close temporary file: %w", err)
	}

	if err := os.Chmod(tempPath, 0644); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}

	return nil
}
