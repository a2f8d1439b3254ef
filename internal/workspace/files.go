package workspace

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Files reads base PDFs from and writes rendered PDFs to the workspace.
type Files struct {
	paths       *PathValidator
	maxFileSize int64
}

// New creates a workspace rooted at dir.
func New(dir string, maxFileSize int64) (*Files, error) {
	paths, err := NewPathValidator(dir)
	if err != nil {
		return nil, err
	}
	if maxFileSize <= 0 {
		return nil, fmt.Errorf("maximum file size must be positive")
	}
	return &Files{paths: paths, maxFileSize: maxFileSize}, nil
}

// Dir returns the workspace directory.
func (f *Files) Dir() string {
	return f.paths.GetConfiguredDirectory()
}

// MaxFileSize returns the base PDF size limit in bytes.
func (f *Files) MaxFileSize() int64 {
	return f.maxFileSize
}

// ReadPDF validates and loads a PDF inside the workspace.
func (f *Files) ReadPDF(path string) ([]byte, error) {
	abs, err := f.paths.NormalizePath(path)
	if err != nil {
		return nil, fmt.Errorf("security validation failed: %w", err)
	}

	fileInfo, err := os.Stat(abs)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("file does not exist: %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("cannot access file: %w", err)
	}
	if err := f.validateFileInfo(abs, fileInfo); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("cannot read file: %w", err)
	}

	// Try to open the PDF to validate it's a valid PDF file
	if _, err := pdf.NewReader(bytes.NewReader(data), int64(len(data))); err != nil {
		return nil, fmt.Errorf("invalid PDF file: %w", err)
	}
	return data, nil
}

// WritePDF writes data to path inside the workspace and returns the absolute path.
func (f *Files) WritePDF(path string, data []byte) (string, error) {
	if !strings.HasSuffix(strings.ToLower(path), ".pdf") {
		return "", fmt.Errorf("output file must have a .pdf extension: %s", path)
	}
	abs, err := f.paths.NormalizePath(path)
	if err != nil {
		return "", fmt.Errorf("security validation failed: %w", err)
	}
	if err := ensureDir(filepath.Dir(abs)); err != nil {
		return "", err
	}
	if err := os.WriteFile(abs, data, 0o644); err != nil {
		return "", fmt.Errorf("cannot write file: %w", err)
	}
	return abs, nil
}

// validateFileInfo performs basic validation on file info without opening the PDF
func (f *Files) validateFileInfo(filePath string, fileInfo os.FileInfo) error {
	if fileInfo.IsDir() {
		return fmt.Errorf("path is a directory, not a file: %s", filePath)
	}

	if !strings.HasSuffix(strings.ToLower(filePath), ".pdf") {
		return fmt.Errorf("file is not a PDF: %s", filePath)
	}

	if fileInfo.Size() == 0 {
		return fmt.Errorf("file is empty: %s", filePath)
	}

	if fileInfo.Size() > f.maxFileSize {
		return fmt.Errorf("file too large: %d bytes (max: %d bytes)",
			fileInfo.Size(), f.maxFileSize)
	}

	return nil
}
